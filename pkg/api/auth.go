package api

import "time"

// RegisterRequest представляет запрос на регистрацию нового пользователя
type RegisterRequest struct {
	Username    string `json:"username"`      // username пользователя
	AuthKeyHash string `json:"auth_key_hash"` // SHA256 хеш auth_key (hex-encoded)
	PublicSalt  string `json:"public_salt"`   // base64 encoded salt (32 bytes)
}

// RegisterResponse представляет ответ на успешную регистрацию
type RegisterResponse struct {
	UserID  string `json:"user_id"` // UUID пользователя
	Message string `json:"message"` // сообщение об успешной регистрации
}

// SaltResponse представляет ответ с публичной солью пользователя
type SaltResponse struct {
	PublicSalt string `json:"public_salt"` // base64 encoded salt
}

// LoginRequest представляет запрос на аутентификацию
type LoginRequest struct {
	Username    string `json:"username"`      // username пользователя
	AuthKeyHash string `json:"auth_key_hash"` // SHA256 хеш auth_key (hex-encoded)
}

// TokenResponse представляет ответ с токеном доступа.
// Каждый login создает новую сессию (устройство/вкладку); токен
// привязан к сессии и отзывается вместе с ней.
type TokenResponse struct {
	AccessToken string `json:"access_token"` // JWT access token с session_id
	SessionID   string `json:"session_id"`   // UUID созданной сессии
	ExpiresIn   int64  `json:"expires_in"`   // время жизни токена в секундах
}

// SessionInfo описывает одну активную сессию пользователя
type SessionInfo struct {
	SessionID  string    `json:"session_id"`
	UserAgent  string    `json:"user_agent"`
	Device     string    `json:"device"` // класс устройства из user-agent
	CreatedAt  time.Time `json:"created_at"`
	LastUsedAt time.Time `json:"last_used_at"`
	Current    bool      `json:"current"` // true для сессии вызывающего
}

// SessionListResponse представляет список активных сессий
type SessionListResponse struct {
	Sessions []SessionInfo `json:"sessions"`
}
