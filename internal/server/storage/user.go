package storage

import (
	"context"

	"github.com/iudanet/tabkeeper/internal/models"
)

// UserStorage определяет интерфейс для работы с пользователями
type UserStorage interface {
	// CreateUser создает нового пользователя.
	// ErrUserAlreadyExists если username занят.
	CreateUser(ctx context.Context, user *models.User) error

	// GetUserByUsername возвращает пользователя или ErrUserNotFound
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
}
