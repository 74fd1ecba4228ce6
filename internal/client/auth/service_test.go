package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/tabkeeper/internal/client/storage"
	"github.com/iudanet/tabkeeper/internal/crypto"
	"github.com/iudanet/tabkeeper/pkg/api"
)

const (
	testPassword = "correct-horse-battery"
	testSalt     = "dGVzdC1zYWx0LXZhbHVlLTMyLWJ5dGVzLWxvbmchISE=" // base64
)

// mockAPI имитирует сервер: хранит зарегистрированных пользователей
type mockAPI struct {
	users      map[string]api.RegisterRequest
	token      string
	logoutErr  error
	loginCalls int
}

func newMockAPI() *mockAPI {
	return &mockAPI{users: make(map[string]api.RegisterRequest)}
}

func (m *mockAPI) Register(_ context.Context, req api.RegisterRequest) (*api.RegisterResponse, error) {
	if _, ok := m.users[req.Username]; ok {
		return nil, errors.New("username already taken")
	}
	m.users[req.Username] = req
	return &api.RegisterResponse{UserID: "u1"}, nil
}

func (m *mockAPI) GetSalt(_ context.Context, username string) (*api.SaltResponse, error) {
	u, ok := m.users[username]
	if !ok {
		return nil, errors.New("user not found")
	}
	return &api.SaltResponse{PublicSalt: u.PublicSalt}, nil
}

func (m *mockAPI) Login(_ context.Context, req api.LoginRequest) (*api.TokenResponse, error) {
	m.loginCalls++
	u, ok := m.users[req.Username]
	if !ok || u.AuthKeyHash != req.AuthKeyHash {
		return nil, errors.New("invalid credentials")
	}
	return &api.TokenResponse{
		AccessToken: "access-token",
		SessionID:   "sess-1",
		ExpiresIn:   3600,
	}, nil
}

func (m *mockAPI) Logout(_ context.Context) error { return m.logoutErr }

func (m *mockAPI) SetToken(token string) { m.token = token }

// mockAuthStore - AuthStorage в памяти
type mockAuthStore struct {
	auth *storage.AuthData
}

func (m *mockAuthStore) SaveAuth(_ context.Context, a *storage.AuthData) error {
	m.auth = a
	return nil
}

func (m *mockAuthStore) GetAuth(_ context.Context) (*storage.AuthData, error) {
	if m.auth == nil {
		return nil, storage.ErrAuthNotFound
	}
	return m.auth, nil
}

func (m *mockAuthStore) DeleteAuth(_ context.Context) error {
	if m.auth == nil {
		return storage.ErrAuthNotFound
	}
	m.auth = nil
	return nil
}

func (m *mockAuthStore) IsAuthenticated(_ context.Context) (bool, error) {
	return m.auth != nil && time.Now().Before(m.auth.ExpiresAt), nil
}

func TestRegisterThenLogin(t *testing.T) {
	client := newMockAPI()
	store := &mockAuthStore{}
	svc := NewService(client, store)
	ctx := context.Background()

	require.NoError(t, svc.Register(ctx, "testuser", testPassword))

	// Пароль и ключ не должны утекать на сервер
	reg := client.users["testuser"]
	assert.NotContains(t, reg.AuthKeyHash, testPassword)
	assert.Len(t, reg.AuthKeyHash, 64, "auth key hash is hex sha256")

	require.NoError(t, svc.Login(ctx, "testuser", testPassword))

	assert.Equal(t, "access-token", client.token)
	require.NotNil(t, store.auth)
	assert.Equal(t, "sess-1", store.auth.SessionID)
	assert.Equal(t, "access-token", store.auth.AccessToken)
	assert.True(t, store.auth.ExpiresAt.After(time.Now()))
}

func TestLogin_WrongPassword(t *testing.T) {
	client := newMockAPI()
	store := &mockAuthStore{}
	svc := NewService(client, store)
	ctx := context.Background()

	require.NoError(t, svc.Register(ctx, "testuser", testPassword))

	err := svc.Login(ctx, "testuser", "wrong-password-12")
	require.Error(t, err)
	assert.Nil(t, store.auth)
}

func TestRegister_Validation(t *testing.T) {
	svc := NewService(newMockAPI(), &mockAuthStore{})
	ctx := context.Background()

	assert.Error(t, svc.Register(ctx, "ab", testPassword), "short username")
	assert.Error(t, svc.Register(ctx, "testuser", "short"), "short password")
}

func TestLogout(t *testing.T) {
	client := newMockAPI()
	store := &mockAuthStore{auth: &storage.AuthData{
		Username:    "testuser",
		AccessToken: "tok",
		ExpiresAt:   time.Now().Add(time.Hour),
	}}
	svc := NewService(client, store)

	require.NoError(t, svc.Logout(context.Background()))
	assert.Nil(t, store.auth)
	assert.Empty(t, client.token)
}

func TestLogout_ServerFailureStillClearsLocal(t *testing.T) {
	client := newMockAPI()
	client.logoutErr = errors.New("server down")
	store := &mockAuthStore{auth: &storage.AuthData{
		Username:  "testuser",
		ExpiresAt: time.Now().Add(time.Hour),
	}}
	svc := NewService(client, store)

	err := svc.Logout(context.Background())
	assert.Error(t, err)
	// Локальная сессия все равно удалена
	assert.Nil(t, store.auth)
}

func TestRestore(t *testing.T) {
	client := newMockAPI()
	store := &mockAuthStore{}
	svc := NewService(client, store)
	ctx := context.Background()

	_, err := svc.Restore(ctx)
	assert.ErrorIs(t, err, ErrNotAuthenticated)

	store.auth = &storage.AuthData{
		Username:    "testuser",
		AccessToken: "tok",
		ExpiresAt:   time.Now().Add(time.Hour),
	}

	auth, err := svc.Restore(ctx)
	require.NoError(t, err)
	assert.Equal(t, "testuser", auth.Username)
	assert.Equal(t, "tok", client.token)

	// Истекшая сессия требует повторного login
	store.auth.ExpiresAt = time.Now().Add(-time.Minute)
	_, err = svc.Restore(ctx)
	assert.ErrorIs(t, err, ErrNotAuthenticated)
}

func TestDeriveDeterminism(t *testing.T) {
	// Один пароль и соль дают один ключ на любом устройстве
	k1, err := crypto.DeriveAuthKeyFromBase64Salt(testPassword, "testuser", testSalt)
	require.NoError(t, err)
	k2, err := crypto.DeriveAuthKeyFromBase64Salt(testPassword, "testuser", testSalt)
	require.NoError(t, err)
	h1, err := crypto.HashAuthKey(k1)
	require.NoError(t, err)
	h2, err := crypto.HashAuthKey(k2)
	require.NoError(t, err)
	assert.Equal(t, h1, h2)
}
