package storage

import (
	"context"
	"time"
)

// AuthStorage определяет хранение авторизационных данных на клиенте
type AuthStorage interface {
	// SaveAuth сохраняет данные авторизации
	SaveAuth(ctx context.Context, auth *AuthData) error

	// GetAuth возвращает сохраненную авторизацию
	// или ErrAuthNotFound, если пользователь не залогинен
	GetAuth(ctx context.Context) (*AuthData, error)

	// DeleteAuth удаляет сохраненную авторизацию (logout)
	DeleteAuth(ctx context.Context) error

	// IsAuthenticated проверяет наличие неистекшей авторизации
	IsAuthenticated(ctx context.Context) (bool, error)
}

// AuthData представляет авторизацию устройства
type AuthData struct {
	Username    string    `json:"username"`
	UserID      string    `json:"user_id"`
	SessionID   string    `json:"session_id"`
	AccessToken string    `json:"access_token"`
	PublicSalt  string    `json:"public_salt"`
	ExpiresAt   time.Time `json:"expires_at"`
}
