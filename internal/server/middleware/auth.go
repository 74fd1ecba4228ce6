package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/iudanet/tabkeeper/internal/server/handlers"
	"github.com/iudanet/tabkeeper/internal/server/storage"
	"github.com/iudanet/tabkeeper/pkg/api"
)

// Ошибки проверки учетных данных
var (
	// ErrInvalidToken - подпись не сошлась или токен истек
	ErrInvalidToken = errors.New("invalid token")
	// ErrReauthRequired - токен устаревшего формата без session_id;
	// клиент должен принудительно разлогиниться, а не повторять запрос
	ErrReauthRequired = errors.New("reauth required")
	// ErrTokenMismatch - сессия жива, но хранит другой токен (ротация)
	ErrTokenMismatch = errors.New("token mismatch")
)

// Guard проверяет bearer токен против реестра сессий.
// Последовательность на каждый вызов:
// разбор токена -> требование session claim -> поиск сессии ->
// побайтовое сравнение токена -> продление сессии.
type Guard struct {
	logger   *slog.Logger
	sessions storage.SessionStorage
	jwt      handlers.JWTConfig
}

// NewGuard создает новый session auth guard
func NewGuard(logger *slog.Logger, sessions storage.SessionStorage, jwt handlers.JWTConfig) *Guard {
	return &Guard{
		logger:   logger,
		sessions: sessions,
		jwt:      jwt,
	}
}

// Check валидирует токен и возвращает его claims.
// Ошибки: ErrInvalidToken, ErrReauthRequired, storage.ErrSessionNotFound,
// ErrTokenMismatch, storage.ErrStoreUnavailable.
func (g *Guard) Check(ctx context.Context, token string) (*handlers.CustomClaims, error) {
	claims, err := handlers.ValidateAccessToken(g.jwt, token)
	if err != nil {
		if errors.Is(err, handlers.ErrNoSessionClaim) {
			return nil, ErrReauthRequired
		}
		return nil, ErrInvalidToken
	}

	session, err := g.sessions.GetSession(ctx, claims.UserID, claims.SessionID)
	if err != nil {
		// ErrSessionNotFound и ErrStoreUnavailable отдаем как есть
		return nil, err
	}

	// Сессия могла быть ротирована: действителен только токен,
	// хранящийся в записи сессии
	if session.Token != token {
		return nil, ErrTokenMismatch
	}

	// Продлеваем сессию до остатка жизни токена
	now := time.Now()
	expiresAt := claims.ExpiresAt.Time
	if err := g.sessions.TouchSession(ctx, claims.UserID, claims.SessionID, now, expiresAt); err != nil {
		// Не критично: аутентификация уже прошла
		g.logger.WarnContext(ctx, "failed to touch session", slog.Any("error", err))
	}

	return claims, nil
}

// TokenExtractor извлекает токен из запроса
type TokenExtractor func(r *http.Request) string

// BearerToken извлекает токен из заголовка Authorization
func BearerToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return ""
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}

	return parts[1]
}

// StreamToken извлекает токен для websocket соединений: браузерный
// WebSocket не умеет ставить Authorization, поэтому принимаем и
// query-параметр
func StreamToken(r *http.Request) string {
	if token := BearerToken(r); token != "" {
		return token
	}
	return r.URL.Query().Get("token")
}

// Middleware оборачивает handler проверкой аутентификации.
// Личность из токена кладется в контекст запроса.
func (g *Guard) Middleware(extract TokenExtractor) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := extract(r)
			if token == "" {
				g.logger.WarnContext(r.Context(), "missing bearer token",
					slog.String("path", r.URL.Path))
				handlers.WriteError(w, "missing token", api.CodeInvalidToken, http.StatusUnauthorized)
				return
			}

			claims, err := g.Check(r.Context(), token)
			if err != nil {
				g.writeAuthError(w, r, err)
				return
			}

			ctx := context.WithValue(r.Context(), handlers.UserIDKey, claims.UserID)
			ctx = context.WithValue(ctx, handlers.UsernameKey, claims.Username)
			ctx = context.WithValue(ctx, handlers.SessionIDKey, claims.SessionID)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// writeAuthError переводит ошибку guard в HTTP ответ с кодом
func (g *Guard) writeAuthError(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()

	switch {
	case errors.Is(err, ErrReauthRequired):
		g.logger.WarnContext(ctx, "legacy token without session claim")
		handlers.WriteError(w, "token format is deprecated, please login again",
			api.CodeReauthRequired, http.StatusUnauthorized)
	case errors.Is(err, storage.ErrSessionNotFound):
		g.logger.WarnContext(ctx, "session revoked or expired")
		handlers.WriteError(w, "session not found",
			api.CodeSessionNotFound, http.StatusUnauthorized)
	case errors.Is(err, ErrTokenMismatch):
		g.logger.WarnContext(ctx, "token does not match session")
		handlers.WriteError(w, "token mismatch",
			api.CodeTokenMismatch, http.StatusUnauthorized)
	case errors.Is(err, storage.ErrStoreUnavailable):
		g.logger.ErrorContext(ctx, "session lookup failed", slog.Any("error", err))
		handlers.WriteError(w, "store unavailable",
			api.CodeStoreUnavailable, http.StatusServiceUnavailable)
	default:
		g.logger.WarnContext(ctx, "invalid access token", slog.Any("error", err))
		handlers.WriteError(w, "invalid token",
			api.CodeInvalidToken, http.StatusUnauthorized)
	}
}
