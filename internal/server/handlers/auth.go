package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/iudanet/tabkeeper/internal/models"
	"github.com/iudanet/tabkeeper/internal/server/storage"
	"github.com/iudanet/tabkeeper/internal/validation"
	"github.com/iudanet/tabkeeper/pkg/api"
)

// AuthHandler обрабатывает запросы регистрации и авторизации
type AuthHandler struct {
	logger         *slog.Logger
	userStorage    storage.UserStorage
	sessionStorage storage.SessionStorage
	jwtConfig      JWTConfig
}

// NewAuthHandler создает новый handler для авторизации
func NewAuthHandler(logger *slog.Logger, userStorage storage.UserStorage, sessionStorage storage.SessionStorage, jwtConfig JWTConfig) *AuthHandler {
	return &AuthHandler{
		logger:         logger,
		userStorage:    userStorage,
		sessionStorage: sessionStorage,
		jwtConfig:      jwtConfig,
	}
}

// Register обрабатывает POST /api/v1/auth/register
// Регистрация нового пользователя
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req api.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.ErrorContext(ctx, "failed to decode register request", slog.Any("error", err))
		WriteError(w, "invalid request body", "", http.StatusBadRequest)
		return
	}

	if err := validation.ValidateUsername(req.Username); err != nil {
		h.logger.WarnContext(ctx, "invalid username", slog.String("username", req.Username), slog.Any("error", err))
		WriteError(w, err.Error(), "", http.StatusBadRequest)
		return
	}

	if req.AuthKeyHash == "" {
		WriteError(w, "auth_key_hash is required", "", http.StatusBadRequest)
		return
	}
	if req.PublicSalt == "" {
		WriteError(w, "public_salt is required", "", http.StatusBadRequest)
		return
	}

	userID := uuid.New().String()

	user := &models.User{
		ID:          userID,
		Username:    req.Username,
		AuthKeyHash: req.AuthKeyHash, // SHA256 хеш auth_key от клиента
		PublicSalt:  req.PublicSalt,
		CreatedAt:   time.Now(),
	}

	if err := h.userStorage.CreateUser(ctx, user); err != nil {
		if errors.Is(err, storage.ErrUserAlreadyExists) {
			h.logger.WarnContext(ctx, "user already exists", slog.String("username", req.Username))
			WriteError(w, "username already taken", "", http.StatusConflict)
			return
		}
		h.logger.ErrorContext(ctx, "failed to create user", slog.Any("error", err))
		WriteError(w, "internal server error", "", http.StatusInternalServerError)
		return
	}

	h.logger.InfoContext(ctx, "user registered successfully",
		slog.String("username", req.Username),
		slog.String("user_id", userID))

	WriteJSON(w, api.RegisterResponse{
		UserID:  userID,
		Message: "User registered successfully",
	}, http.StatusCreated)
}

// GetSalt обрабатывает GET /api/v1/auth/salt/{username}
// Получение public_salt пользователя
func (h *AuthHandler) GetSalt(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	username := r.PathValue("username")
	if username == "" {
		WriteError(w, "username is required", "", http.StatusBadRequest)
		return
	}

	if err := validation.ValidateUsername(username); err != nil {
		WriteError(w, err.Error(), "", http.StatusBadRequest)
		return
	}

	user, err := h.userStorage.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			h.logger.WarnContext(ctx, "user not found", slog.String("username", username))
			WriteError(w, "user not found", "", http.StatusNotFound)
			return
		}
		h.logger.ErrorContext(ctx, "failed to get user", slog.Any("error", err))
		WriteError(w, "internal server error", "", http.StatusInternalServerError)
		return
	}

	WriteJSON(w, api.SaltResponse{PublicSalt: user.PublicSalt}, http.StatusOK)
}

// Login обрабатывает POST /api/v1/auth/login
// Успешный login создает новую сессию устройства и возвращает
// привязанный к ней токен. Несколько устройств - несколько сессий.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req api.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.ErrorContext(ctx, "failed to decode login request", slog.Any("error", err))
		WriteError(w, "invalid request body", "", http.StatusBadRequest)
		return
	}

	if err := validation.ValidateUsername(req.Username); err != nil {
		WriteError(w, err.Error(), "", http.StatusBadRequest)
		return
	}

	if req.AuthKeyHash == "" {
		WriteError(w, "auth_key_hash is required", "", http.StatusBadRequest)
		return
	}

	user, err := h.userStorage.GetUserByUsername(ctx, req.Username)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			h.logger.WarnContext(ctx, "login failed: user not found", slog.String("username", req.Username))
			WriteError(w, "invalid credentials", "", http.StatusUnauthorized)
			return
		}
		h.logger.ErrorContext(ctx, "failed to get user", slog.Any("error", err))
		WriteError(w, "internal server error", "", http.StatusInternalServerError)
		return
	}

	// Сравниваем детерминированные SHA256 хеши auth_key
	if user.AuthKeyHash != req.AuthKeyHash {
		h.logger.WarnContext(ctx, "login failed: invalid auth key", slog.String("username", req.Username))
		WriteError(w, "invalid credentials", "", http.StatusUnauthorized)
		return
	}

	sessionID := uuid.New().String()

	accessToken, expiresIn, err := GenerateAccessToken(h.jwtConfig, user.ID, user.Username, sessionID)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to generate access token", slog.Any("error", err))
		WriteError(w, "internal server error", "", http.StatusInternalServerError)
		return
	}

	now := time.Now()
	session := &models.Session{
		UserID:     user.ID,
		SessionID:  sessionID,
		Token:      accessToken,
		UserAgent:  r.UserAgent(),
		CreatedAt:  now,
		LastUsedAt: now,
		ExpiresAt:  now.Add(h.jwtConfig.AccessTokenTTL),
	}

	if err := h.sessionStorage.CreateSession(ctx, session); err != nil {
		h.logger.ErrorContext(ctx, "failed to create session", slog.Any("error", err))
		WriteError(w, "internal server error", "", http.StatusInternalServerError)
		return
	}

	h.logger.InfoContext(ctx, "user logged in successfully",
		slog.String("username", req.Username),
		slog.String("user_id", user.ID),
		slog.String("session_id", sessionID))

	WriteJSON(w, api.TokenResponse{
		AccessToken: accessToken,
		SessionID:   sessionID,
		ExpiresIn:   expiresIn,
	}, http.StatusOK)
}

// Logout обрабатывает POST /api/v1/auth/logout (за auth middleware)
// Удаляет собственную сессию вызывающего, отзывая ее токен
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, ok := GetUserID(ctx)
	if !ok {
		WriteError(w, "unauthorized", "", http.StatusUnauthorized)
		return
	}
	sessionID, ok := GetSessionID(ctx)
	if !ok {
		WriteError(w, "unauthorized", "", http.StatusUnauthorized)
		return
	}

	if err := h.sessionStorage.DeleteSession(ctx, userID, sessionID); err != nil {
		if errors.Is(err, storage.ErrSessionNotFound) {
			// Сессия уже отозвана - logout идемпотентен
			WriteJSON(w, api.DeleteResponse{Success: true}, http.StatusOK)
			return
		}
		h.logger.ErrorContext(ctx, "failed to delete session", slog.Any("error", err))
		WriteError(w, "internal server error", "", http.StatusInternalServerError)
		return
	}

	h.logger.InfoContext(ctx, "user logged out",
		slog.String("user_id", userID),
		slog.String("session_id", sessionID))

	WriteJSON(w, api.DeleteResponse{Success: true}, http.StatusOK)
}
