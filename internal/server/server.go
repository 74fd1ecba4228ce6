// Package server собирает HTTP сервер синхронизации: маршруты,
// middleware цепочку и фоновые задачи.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/iudanet/tabkeeper/internal/server/config"
	"github.com/iudanet/tabkeeper/internal/server/handlers"
	"github.com/iudanet/tabkeeper/internal/server/middleware"
	"github.com/iudanet/tabkeeper/internal/server/notify"
	"github.com/iudanet/tabkeeper/internal/server/storage"
	"github.com/iudanet/tabkeeper/internal/server/storage/sqlite"
)

// janitorInterval - период удаления истекших сессий
const janitorInterval = time.Hour

// Server объединяет HTTP сервер, хранилище и hub уведомлений
type Server struct {
	logger   *slog.Logger
	cfg      *config.Config
	httpSrv  *http.Server
	storage  *sqlite.Storage
	hub      *notify.Hub
	janitorC chan struct{}
}

// New создает сервер: открывает базу, прогоняет миграции,
// собирает маршруты и middleware
func New(ctx context.Context, logger *slog.Logger, cfg *config.Config) (*Server, error) {
	store, err := sqlite.New(ctx, cfg.DatabasePath, cfg.HistoryLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}

	hub := notify.NewHub(logger, notify.DefaultEventTTL)

	jwtConfig := handlers.JWTConfig{
		Secret:         []byte(cfg.JWTSecret),
		AccessTokenTTL: cfg.AccessTokenTTL,
	}

	mux := buildMux(logger, cfg, store, hub, jwtConfig)

	s := &Server{
		logger:  logger,
		cfg:     cfg,
		storage: store,
		hub:     hub,
		httpSrv: &http.Server{
			Addr:              cfg.Addr,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		},
		janitorC: make(chan struct{}),
	}

	return s, nil
}

// buildMux собирает маршруты и навешивает middleware
func buildMux(logger *slog.Logger, cfg *config.Config, store *sqlite.Storage, hub *notify.Hub, jwtConfig handlers.JWTConfig) http.Handler {
	authHandler := handlers.NewAuthHandler(logger, store, store, jwtConfig)
	sessionHandler := handlers.NewSessionHandler(logger, store)
	syncHandler := handlers.NewSyncHandler(logger, store, hub)
	streamHandler := notify.NewStreamHandler(logger, hub, cfg.StreamHeartbeat, cfg.StreamMaxLifetime)

	guard := middleware.NewGuard(logger, store, jwtConfig)
	auth := guard.Middleware(middleware.BearerToken)
	streamAuth := guard.Middleware(middleware.StreamToken)

	mux := http.NewServeMux()

	// Публичные маршруты
	mux.HandleFunc("GET /healthz", handlers.Health)
	mux.HandleFunc("POST /api/v1/auth/register", authHandler.Register)
	mux.HandleFunc("GET /api/v1/auth/salt/{username}", authHandler.GetSalt)
	mux.HandleFunc("POST /api/v1/auth/login", authHandler.Login)

	// Маршруты за auth guard
	mux.Handle("POST /api/v1/auth/logout", auth(http.HandlerFunc(authHandler.Logout)))
	mux.Handle("GET /api/v1/sessions", auth(http.HandlerFunc(sessionHandler.List)))
	mux.Handle("DELETE /api/v1/sessions/{id}", auth(http.HandlerFunc(sessionHandler.Revoke)))

	mux.Handle("POST /api/v1/sync", auth(http.HandlerFunc(syncHandler.Save)))
	mux.Handle("GET /api/v1/sync", auth(http.HandlerFunc(syncHandler.Load)))
	mux.Handle("DELETE /api/v1/sync", auth(http.HandlerFunc(syncHandler.Delete)))
	mux.Handle("GET /api/v1/sync/status", auth(http.HandlerFunc(syncHandler.Status)))
	mux.Handle("GET /api/v1/sync/versions", auth(http.HandlerFunc(syncHandler.Versions)))
	mux.Handle("POST /api/v1/sync/restore", auth(http.HandlerFunc(syncHandler.Restore)))

	// Websocket поток: токен допускается в query, логирование пути
	// пропускается чтобы не подменять ResponseWriter до upgrade
	mux.Handle("GET /api/v1/sync/stream", streamAuth(streamHandler))

	rateLimits := []middleware.PathRateLimit{
		{Path: "/api/v1/auth/login", Rate: cfg.AuthRateLimit, Window: time.Minute},
		{Path: "/api/v1/auth/register", Rate: cfg.AuthRateLimit, Window: time.Minute},
	}

	var handler http.Handler = mux
	handler = middleware.RateLimitMiddleware(rateLimits, cfg.DefaultRateLimit, time.Minute, logger)(handler)
	handler = middleware.LoggingWithSkip(logger, []string{"/healthz", "/api/v1/sync/stream"})(handler)
	handler = middleware.RecoveryMiddleware(logger)(handler)

	return handler
}

// Run запускает HTTP сервер и фоновый janitor сессий.
// Блокируется до остановки сервера.
func (s *Server) Run() error {
	go s.sessionJanitor()

	s.logger.Info("server listening", slog.String("addr", s.cfg.Addr))

	if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// sessionJanitor периодически удаляет истекшие сессии
func (s *Server) sessionJanitor() {
	ticker := time.NewTicker(janitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			count, err := s.storage.DeleteExpiredSessions(ctx, time.Now())
			cancel()

			if err != nil {
				s.logger.Error("failed to delete expired sessions", slog.Any("error", err))
				continue
			}
			if count > 0 {
				s.logger.Info("expired sessions deleted", slog.Int("count", count))
			}
		case <-s.janitorC:
			return
		}
	}
}

// Shutdown останавливает сервер, фоновые задачи и закрывает базу
func (s *Server) Shutdown(ctx context.Context) error {
	close(s.janitorC)
	s.hub.Stop()

	if err := s.httpSrv.Shutdown(ctx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}

	if err := s.storage.Close(); err != nil {
		return fmt.Errorf("storage close: %w", err)
	}

	s.logger.Info("server stopped")
	return nil
}

// Storage отдает хранилище (используется в тестах и инструментах)
func (s *Server) Storage() storage.SnapshotStorage {
	return s.storage
}
