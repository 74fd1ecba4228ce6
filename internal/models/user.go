package models

import "time"

// User представляет пользователя в системе
type User struct {
	ID          string    `json:"id"`            // UUID пользователя
	Username    string    `json:"username"`      // уникальный username
	AuthKeyHash string    `json:"auth_key_hash"` // SHA256 хеш auth_key
	PublicSalt  string    `json:"public_salt"`   // base64 encoded salt (32 bytes)
	CreatedAt   time.Time `json:"created_at"`    // время создания
}

// Session представляет одну авторизованную сессию (устройство/вкладку).
// Сессии пользователя образуют множество; каждой session_id соответствует
// не более одного живого токена. Удаление сессии немедленно отзывает токен.
type Session struct {
	UserID     string    `json:"user_id"`      // UUID пользователя
	SessionID  string    `json:"session_id"`  // UUID сессии
	Token      string    `json:"token"`       // текущий access token сессии
	UserAgent  string    `json:"user_agent"`  // user-agent устройства на момент login
	CreatedAt  time.Time `json:"created_at"`  // время login
	LastUsedAt time.Time `json:"last_used_at"` // обновляется на каждом аутентифицированном вызове
	ExpiresAt  time.Time `json:"expires_at"`  // продлевается до срока жизни токена при использовании
}
