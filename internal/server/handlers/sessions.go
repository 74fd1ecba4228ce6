package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/iudanet/tabkeeper/internal/audit"
	"github.com/iudanet/tabkeeper/internal/server/storage"
	"github.com/iudanet/tabkeeper/pkg/api"
)

// SessionHandler обрабатывает управление сессиями (список, отзыв)
type SessionHandler struct {
	logger         *slog.Logger
	sessionStorage storage.SessionStorage
}

// NewSessionHandler создает новый handler для управления сессиями
func NewSessionHandler(logger *slog.Logger, sessionStorage storage.SessionStorage) *SessionHandler {
	return &SessionHandler{
		logger:         logger,
		sessionStorage: sessionStorage,
	}
}

// List обрабатывает GET /api/v1/sessions
// Возвращает все живые сессии пользователя; токены наружу не отдаются
func (h *SessionHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, ok := GetUserID(ctx)
	if !ok {
		WriteError(w, "unauthorized", "", http.StatusUnauthorized)
		return
	}
	currentSessionID, _ := GetSessionID(ctx)

	sessions, err := h.sessionStorage.ListSessions(ctx, userID)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to list sessions", slog.Any("error", err))
		WriteError(w, "store unavailable", api.CodeStoreUnavailable, http.StatusServiceUnavailable)
		return
	}

	resp := api.SessionListResponse{Sessions: make([]api.SessionInfo, 0, len(sessions))}
	for _, s := range sessions {
		resp.Sessions = append(resp.Sessions, api.SessionInfo{
			SessionID:  s.SessionID,
			UserAgent:  s.UserAgent,
			Device:     audit.DeviceClass(s.UserAgent),
			CreatedAt:  s.CreatedAt,
			LastUsedAt: s.LastUsedAt,
			Current:    s.SessionID == currentSessionID,
		})
	}

	WriteJSON(w, resp, http.StatusOK)
}

// Revoke обрабатывает DELETE /api/v1/sessions/{id}
// Отзывает сессию другого устройства. Собственную текущую сессию
// отозвать нельзя - для этого есть logout.
func (h *SessionHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, ok := GetUserID(ctx)
	if !ok {
		WriteError(w, "unauthorized", "", http.StatusUnauthorized)
		return
	}
	currentSessionID, _ := GetSessionID(ctx)

	targetID := r.PathValue("id")
	if targetID == "" {
		WriteError(w, "session id is required", "", http.StatusBadRequest)
		return
	}

	if targetID == currentSessionID {
		WriteError(w, "cannot revoke own session, use logout", api.CodeCannotRevokeSelf, http.StatusConflict)
		return
	}

	if err := h.sessionStorage.DeleteSession(ctx, userID, targetID); err != nil {
		if errors.Is(err, storage.ErrSessionNotFound) {
			WriteError(w, "session not found", api.CodeSessionNotFound, http.StatusNotFound)
			return
		}
		h.logger.ErrorContext(ctx, "failed to revoke session", slog.Any("error", err))
		WriteError(w, "store unavailable", api.CodeStoreUnavailable, http.StatusServiceUnavailable)
		return
	}

	h.logger.InfoContext(ctx, "session revoked",
		slog.String("user_id", userID),
		slog.String("session_id", targetID))

	WriteJSON(w, api.DeleteResponse{Success: true}, http.StatusOK)
}
