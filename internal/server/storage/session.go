package storage

import (
	"context"
	"time"

	"github.com/iudanet/tabkeeper/internal/models"
)

// SessionStorage определяет реестр сессий с поддержкой нескольких
// одновременно живых сессий на пользователя (multi-device)
type SessionStorage interface {
	// CreateSession сохраняет новую сессию (создается при login)
	CreateSession(ctx context.Context, session *models.Session) error

	// GetSession возвращает сессию по (userID, sessionID)
	// или ErrSessionNotFound
	GetSession(ctx context.Context, userID, sessionID string) (*models.Session, error)

	// TouchSession обновляет last_used_at и продлевает expires_at
	// до остатка жизни токена
	TouchSession(ctx context.Context, userID, sessionID string, lastUsedAt, expiresAt time.Time) error

	// ListSessions возвращает живые сессии пользователя (новые первыми)
	ListSessions(ctx context.Context, userID string) ([]*models.Session, error)

	// DeleteSession удаляет одну сессию, немедленно отзывая ее токен.
	// ErrSessionNotFound если сессии нет.
	DeleteSession(ctx context.Context, userID, sessionID string) error

	// DeleteUserSessions удаляет все сессии пользователя
	// (используется delete-account потоком), возвращает количество
	DeleteUserSessions(ctx context.Context, userID string) (int, error)

	// DeleteExpiredSessions удаляет сессии с истекшим expires_at
	DeleteExpiredSessions(ctx context.Context, now time.Time) (int, error)
}
