package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/tabkeeper/internal/models"
	"github.com/iudanet/tabkeeper/internal/server/storage"
	"github.com/iudanet/tabkeeper/pkg/api"
)

// mockUserStorage реализует storage.UserStorage в памяти
type mockUserStorage struct {
	users map[string]*models.User
}

func newMockUserStorage() *mockUserStorage {
	return &mockUserStorage{users: make(map[string]*models.User)}
}

func (m *mockUserStorage) CreateUser(_ context.Context, user *models.User) error {
	if _, ok := m.users[user.Username]; ok {
		return storage.ErrUserAlreadyExists
	}
	m.users[user.Username] = user
	return nil
}

func (m *mockUserStorage) GetUserByUsername(_ context.Context, username string) (*models.User, error) {
	u, ok := m.users[username]
	if !ok {
		return nil, storage.ErrUserNotFound
	}
	return u, nil
}

// mockSessions реализует storage.SessionStorage в памяти
type mockSessions struct {
	sessions map[string]*models.Session
}

func newMockSessions() *mockSessions {
	return &mockSessions{sessions: make(map[string]*models.Session)}
}

func (m *mockSessions) key(userID, sessionID string) string { return userID + "/" + sessionID }

func (m *mockSessions) CreateSession(_ context.Context, s *models.Session) error {
	m.sessions[m.key(s.UserID, s.SessionID)] = s
	return nil
}

func (m *mockSessions) GetSession(_ context.Context, userID, sessionID string) (*models.Session, error) {
	s, ok := m.sessions[m.key(userID, sessionID)]
	if !ok {
		return nil, storage.ErrSessionNotFound
	}
	return s, nil
}

func (m *mockSessions) TouchSession(_ context.Context, userID, sessionID string, lastUsedAt, expiresAt time.Time) error {
	s, ok := m.sessions[m.key(userID, sessionID)]
	if !ok {
		return storage.ErrSessionNotFound
	}
	s.LastUsedAt = lastUsedAt
	s.ExpiresAt = expiresAt
	return nil
}

func (m *mockSessions) ListSessions(_ context.Context, userID string) ([]*models.Session, error) {
	var result []*models.Session
	for _, s := range m.sessions {
		if s.UserID == userID {
			result = append(result, s)
		}
	}
	return result, nil
}

func (m *mockSessions) DeleteSession(_ context.Context, userID, sessionID string) error {
	k := m.key(userID, sessionID)
	if _, ok := m.sessions[k]; !ok {
		return storage.ErrSessionNotFound
	}
	delete(m.sessions, k)
	return nil
}

func (m *mockSessions) DeleteUserSessions(_ context.Context, userID string) (int, error) {
	count := 0
	for k, s := range m.sessions {
		if s.UserID == userID {
			delete(m.sessions, k)
			count++
		}
	}
	return count, nil
}

func (m *mockSessions) DeleteExpiredSessions(_ context.Context, now time.Time) (int, error) {
	count := 0
	for k, s := range m.sessions {
		if s.ExpiresAt.Before(now) {
			delete(m.sessions, k)
			count++
		}
	}
	return count, nil
}

func testAuthJWTConfig() JWTConfig {
	return JWTConfig{
		Secret:         []byte("test-secret"),
		AccessTokenTTL: time.Hour,
	}
}

func setupAuthHandler() (*AuthHandler, *mockUserStorage, *mockSessions) {
	users := newMockUserStorage()
	sessions := newMockSessions()
	return NewAuthHandler(testLogger(), users, sessions, testAuthJWTConfig()), users, sessions
}

func jsonRequest(t *testing.T, method, target string, body any) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	require.NoError(t, json.NewEncoder(&buf).Encode(body))
	return httptest.NewRequest(method, target, &buf)
}

func TestRegister(t *testing.T) {
	h, users, _ := setupAuthHandler()

	req := jsonRequest(t, http.MethodPost, "/api/v1/auth/register", api.RegisterRequest{
		Username:    "testuser",
		AuthKeyHash: "abc123hash",
		PublicSalt:  "c2FsdA==",
	})
	w := httptest.NewRecorder()
	h.Register(w, req)

	require.Equal(t, http.StatusCreated, w.Code)

	var resp api.RegisterResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.NotEmpty(t, resp.UserID)
	assert.NotNil(t, users.users["testuser"])
}

func TestRegister_DuplicateUsername(t *testing.T) {
	h, _, _ := setupAuthHandler()

	body := api.RegisterRequest{
		Username:    "testuser",
		AuthKeyHash: "abc123hash",
		PublicSalt:  "c2FsdA==",
	}

	w := httptest.NewRecorder()
	h.Register(w, jsonRequest(t, http.MethodPost, "/api/v1/auth/register", body))
	require.Equal(t, http.StatusCreated, w.Code)

	w = httptest.NewRecorder()
	h.Register(w, jsonRequest(t, http.MethodPost, "/api/v1/auth/register", body))
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestRegister_Validation(t *testing.T) {
	h, _, _ := setupAuthHandler()

	tests := []struct {
		name string
		req  api.RegisterRequest
	}{
		{name: "short username", req: api.RegisterRequest{Username: "ab", AuthKeyHash: "h", PublicSalt: "s"}},
		{name: "bad characters", req: api.RegisterRequest{Username: "user name", AuthKeyHash: "h", PublicSalt: "s"}},
		{name: "missing hash", req: api.RegisterRequest{Username: "validuser", PublicSalt: "s"}},
		{name: "missing salt", req: api.RegisterRequest{Username: "validuser", AuthKeyHash: "h"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			h.Register(w, jsonRequest(t, http.MethodPost, "/api/v1/auth/register", tt.req))
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}

func TestGetSalt(t *testing.T) {
	h, users, _ := setupAuthHandler()

	users.users["testuser"] = &models.User{
		ID:         "u1",
		Username:   "testuser",
		PublicSalt: "c2FsdA==",
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/salt/testuser", nil)
	req.SetPathValue("username", "testuser")

	w := httptest.NewRecorder()
	h.GetSalt(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var resp api.SaltResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, "c2FsdA==", resp.PublicSalt)
}

func TestGetSalt_UserNotFound(t *testing.T) {
	h, _, _ := setupAuthHandler()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/salt/ghostuser", nil)
	req.SetPathValue("username", "ghostuser")

	w := httptest.NewRecorder()
	h.GetSalt(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestLogin(t *testing.T) {
	h, users, sessions := setupAuthHandler()

	users.users["testuser"] = &models.User{
		ID:          "u1",
		Username:    "testuser",
		AuthKeyHash: "correct-hash",
	}

	req := jsonRequest(t, http.MethodPost, "/api/v1/auth/login", api.LoginRequest{
		Username:    "testuser",
		AuthKeyHash: "correct-hash",
	})
	req.Header.Set("User-Agent", "test-device/1.0")

	w := httptest.NewRecorder()
	h.Login(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var resp api.TokenResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.NotEmpty(t, resp.AccessToken)
	assert.NotEmpty(t, resp.SessionID)
	assert.Positive(t, resp.ExpiresIn)

	// Сессия создана и хранит выданный токен
	session, err := sessions.GetSession(context.Background(), "u1", resp.SessionID)
	require.NoError(t, err)
	assert.Equal(t, resp.AccessToken, session.Token)
	assert.Equal(t, "test-device/1.0", session.UserAgent)
}

func TestLogin_EachDeviceGetsOwnSession(t *testing.T) {
	h, users, sessions := setupAuthHandler()

	users.users["testuser"] = &models.User{
		ID:          "u1",
		Username:    "testuser",
		AuthKeyHash: "correct-hash",
	}

	login := func() api.TokenResponse {
		req := jsonRequest(t, http.MethodPost, "/api/v1/auth/login", api.LoginRequest{
			Username:    "testuser",
			AuthKeyHash: "correct-hash",
		})
		w := httptest.NewRecorder()
		h.Login(w, req)
		require.Equal(t, http.StatusOK, w.Code)

		var resp api.TokenResponse
		require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
		return resp
	}

	first := login()
	second := login()

	assert.NotEqual(t, first.SessionID, second.SessionID)

	// Обе сессии живы одновременно
	list, err := sessions.ListSessions(context.Background(), "u1")
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestLogin_InvalidCredentials(t *testing.T) {
	h, users, _ := setupAuthHandler()

	users.users["testuser"] = &models.User{
		ID:          "u1",
		Username:    "testuser",
		AuthKeyHash: "correct-hash",
	}

	tests := []struct {
		name string
		req  api.LoginRequest
	}{
		{name: "wrong hash", req: api.LoginRequest{Username: "testuser", AuthKeyHash: "wrong"}},
		{name: "unknown user", req: api.LoginRequest{Username: "ghostuser", AuthKeyHash: "correct-hash"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			h.Login(w, jsonRequest(t, http.MethodPost, "/api/v1/auth/login", tt.req))
			assert.Equal(t, http.StatusUnauthorized, w.Code)
			// Одинаковый ответ для обоих случаев
			assert.Contains(t, w.Body.String(), "invalid credentials")
		})
	}
}

func TestLogout(t *testing.T) {
	h, _, sessions := setupAuthHandler()

	require.NoError(t, sessions.CreateSession(context.Background(), &models.Session{
		UserID:    "user123",
		SessionID: "sess-1",
		Token:     "tok",
	}))

	req := authedRequest(t, http.MethodPost, "/api/v1/auth/logout", nil)
	w := httptest.NewRecorder()
	h.Logout(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	_, err := sessions.GetSession(context.Background(), "user123", "sess-1")
	assert.ErrorIs(t, err, storage.ErrSessionNotFound)

	// Повторный logout идемпотентен
	w = httptest.NewRecorder()
	h.Logout(w, authedRequest(t, http.MethodPost, "/api/v1/auth/logout", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}
