// Package auth реализует клиентский поток авторизации:
// вывод ключа из пароля, обмен с сервером и локальное хранение сессии.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/iudanet/tabkeeper/internal/client/storage"
	"github.com/iudanet/tabkeeper/internal/crypto"
	"github.com/iudanet/tabkeeper/internal/validation"
	"github.com/iudanet/tabkeeper/pkg/api"
)

// ErrNotAuthenticated - локальной сессии нет или она истекла
var ErrNotAuthenticated = errors.New("not authenticated, please login")

// APIClient определяет операции сервера, нужные потоку авторизации
type APIClient interface {
	Register(ctx context.Context, req api.RegisterRequest) (*api.RegisterResponse, error)
	GetSalt(ctx context.Context, username string) (*api.SaltResponse, error)
	Login(ctx context.Context, req api.LoginRequest) (*api.TokenResponse, error)
	Logout(ctx context.Context) error
	SetToken(token string)
}

// Service связывает derive ключей, API и локальное хранилище
type Service struct {
	client APIClient
	store  storage.AuthStorage
}

// NewService создает auth service
func NewService(client APIClient, store storage.AuthStorage) *Service {
	return &Service{
		client: client,
		store:  store,
	}
}

// Register регистрирует нового пользователя.
// Пароль не покидает клиента: сервер получает только SHA256 хеш
// argon2id ключа и публичную соль.
func (s *Service) Register(ctx context.Context, username, password string) error {
	if err := validation.ValidateUsername(username); err != nil {
		return err
	}
	if err := validation.ValidatePassword(password); err != nil {
		return err
	}

	saltB64, err := crypto.GenerateSaltBase64()
	if err != nil {
		return fmt.Errorf("failed to generate salt: %w", err)
	}

	authKey, err := crypto.DeriveAuthKeyFromBase64Salt(password, username, saltB64)
	if err != nil {
		return fmt.Errorf("failed to derive auth key: %w", err)
	}

	authKeyHash, err := crypto.HashAuthKey(authKey)
	if err != nil {
		return fmt.Errorf("failed to hash auth key: %w", err)
	}

	_, err = s.client.Register(ctx, api.RegisterRequest{
		Username:    username,
		AuthKeyHash: authKeyHash,
		PublicSalt:  saltB64,
	})
	if err != nil {
		return err
	}

	return nil
}

// Login аутентифицируется и сохраняет сессию устройства локально
func (s *Service) Login(ctx context.Context, username, password string) error {
	if err := validation.ValidateUsername(username); err != nil {
		return err
	}

	saltResp, err := s.client.GetSalt(ctx, username)
	if err != nil {
		return err
	}

	authKey, err := crypto.DeriveAuthKeyFromBase64Salt(password, username, saltResp.PublicSalt)
	if err != nil {
		return fmt.Errorf("failed to derive auth key: %w", err)
	}

	authKeyHash, err := crypto.HashAuthKey(authKey)
	if err != nil {
		return fmt.Errorf("failed to hash auth key: %w", err)
	}

	tokenResp, err := s.client.Login(ctx, api.LoginRequest{
		Username:    username,
		AuthKeyHash: authKeyHash,
	})
	if err != nil {
		return err
	}

	auth := &storage.AuthData{
		Username:    username,
		SessionID:   tokenResp.SessionID,
		AccessToken: tokenResp.AccessToken,
		PublicSalt:  saltResp.PublicSalt,
		ExpiresAt:   time.Now().Add(time.Duration(tokenResp.ExpiresIn) * time.Second),
	}

	if err := s.store.SaveAuth(ctx, auth); err != nil {
		return fmt.Errorf("failed to save auth data: %w", err)
	}

	s.client.SetToken(tokenResp.AccessToken)

	return nil
}

// Logout отзывает сессию на сервере и чистит локальную авторизацию.
// Серверная часть best-effort: локальный выход происходит всегда.
func (s *Service) Logout(ctx context.Context) error {
	serverErr := s.client.Logout(ctx)

	if err := s.store.DeleteAuth(ctx); err != nil && !errors.Is(err, storage.ErrAuthNotFound) {
		return fmt.Errorf("failed to delete auth data: %w", err)
	}

	s.client.SetToken("")

	if serverErr != nil {
		return fmt.Errorf("local session cleared, but server logout failed: %w", serverErr)
	}
	return nil
}

// Restore загружает сохраненную сессию и настраивает API клиент.
// Возвращает ErrNotAuthenticated, если сессии нет или она истекла.
func (s *Service) Restore(ctx context.Context) (*storage.AuthData, error) {
	auth, err := s.store.GetAuth(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrAuthNotFound) {
			return nil, ErrNotAuthenticated
		}
		return nil, err
	}

	if time.Now().After(auth.ExpiresAt) {
		return nil, ErrNotAuthenticated
	}

	s.client.SetToken(auth.AccessToken)

	return auth, nil
}
