package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/iudanet/tabkeeper/pkg/api"
)

// contextKey тип для ключей контекста
type contextKey string

const (
	// UserIDKey ключ для хранения user_id в контексте
	UserIDKey contextKey = "user_id"
	// UsernameKey ключ для хранения username в контексте
	UsernameKey contextKey = "username"
	// SessionIDKey ключ для хранения session_id в контексте
	SessionIDKey contextKey = "session_id"
)

// GetUserID извлекает user_id из контекста запроса
func GetUserID(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(UserIDKey).(string)
	return userID, ok
}

// GetUsername извлекает username из контекста запроса
func GetUsername(ctx context.Context) (string, bool) {
	username, ok := ctx.Value(UsernameKey).(string)
	return username, ok
}

// GetSessionID извлекает session_id из контекста запроса
func GetSessionID(ctx context.Context) (string, bool) {
	sessionID, ok := ctx.Value(SessionIDKey).(string)
	return sessionID, ok
}

// WriteJSON пишет JSON ответ с указанным статусом
func WriteJSON(w http.ResponseWriter, v any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError пишет JSON ошибку с машиночитаемым кодом
func WriteError(w http.ResponseWriter, message, code string, status int) {
	WriteJSON(w, api.ErrorResponse{Error: message, Code: code}, status)
}
