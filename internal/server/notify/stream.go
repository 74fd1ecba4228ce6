package notify

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/coder/websocket"

	"github.com/iudanet/tabkeeper/internal/server/handlers"
	"github.com/iudanet/tabkeeper/pkg/api"
)

const (
	// DefaultHeartbeat - интервал heartbeat сообщений
	DefaultHeartbeat = 10 * time.Second
	// DefaultMaxLifetime - жесткий потолок жизни соединения;
	// по истечении клиент должен переподключиться со свежим токеном
	DefaultMaxLifetime = 15 * time.Minute
	// writeTimeout ограничивает запись в медленное соединение
	writeTimeout = 5 * time.Second
)

// StreamHandler обслуживает websocket поток событий.
// Подключение идет через auth middleware, личность берется из контекста.
type StreamHandler struct {
	logger      *slog.Logger
	hub         *Hub
	heartbeat   time.Duration
	maxLifetime time.Duration
}

// NewStreamHandler создает handler websocket потока
func NewStreamHandler(logger *slog.Logger, hub *Hub, heartbeat, maxLifetime time.Duration) *StreamHandler {
	if heartbeat <= 0 {
		heartbeat = DefaultHeartbeat
	}
	if maxLifetime <= 0 {
		maxLifetime = DefaultMaxLifetime
	}

	return &StreamHandler{
		logger:      logger,
		hub:         hub,
		heartbeat:   heartbeat,
		maxLifetime: maxLifetime,
	}
}

// ServeHTTP обрабатывает GET /api/v1/sync/stream
func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, ok := handlers.GetUserID(ctx)
	if !ok {
		handlers.WriteError(w, "unauthorized", "", http.StatusUnauthorized)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		h.logger.WarnContext(ctx, "websocket upgrade failed", slog.Any("error", err))
		return
	}

	sub := h.hub.subscribe(userID)
	defer h.hub.unsubscribe(userID, sub)

	h.logger.InfoContext(ctx, "stream connected",
		slog.String("user_id", userID),
		slog.Int("subscribers", h.hub.Subscribers(userID)))

	// Read loop нам не нужен, но закрытие со стороны клиента
	// должно отменять контекст
	readCtx := conn.CloseRead(ctx)

	if err := h.write(readCtx, conn, api.StreamMessage{
		Type:      api.StreamConnected,
		Timestamp: time.Now(),
	}); err != nil {
		_ = conn.Close(websocket.StatusNormalClosure, "")
		return
	}

	h.run(readCtx, conn, userID, sub)
}

// run крутит цикл доставки до отключения клиента или истечения
// потолка жизни соединения
func (h *StreamHandler) run(ctx context.Context, conn *websocket.Conn, userID string, sub *subscriber) {
	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	lifetime := time.NewTimer(h.maxLifetime)
	defer lifetime.Stop()

	for {
		select {
		case <-ctx.Done():
			h.logger.Info("stream disconnected", slog.String("user_id", userID))
			_ = conn.Close(websocket.StatusNormalClosure, "")
			return

		case <-lifetime.C:
			// Клиент переподключится и перепроверит токен
			h.logger.Info("stream lifetime reached", slog.String("user_id", userID))
			_ = conn.Close(websocket.StatusGoingAway, "connection lifetime reached, reconnect")
			return

		case <-sub.wake:
			if !h.flush(ctx, conn, userID, sub) {
				return
			}

		case <-ticker.C:
			// Heartbeat несет накопившиеся события; без событий
			// уходит пустым, подтверждая живость соединения
			if !h.flush(ctx, conn, userID, sub) {
				return
			}
			if err := h.write(ctx, conn, api.StreamMessage{
				Type:      api.StreamHeartbeat,
				Timestamp: time.Now(),
			}); err != nil {
				_ = conn.Close(websocket.StatusNormalClosure, "")
				return
			}
		}
	}
}

// flush отправляет все еще не виденные этим соединением события.
// Возвращает false, если соединение умерло.
func (h *StreamHandler) flush(ctx context.Context, conn *websocket.Conn, userID string, sub *subscriber) bool {
	for _, msg := range h.hub.collect(userID, sub) {
		if err := h.write(ctx, conn, msg); err != nil {
			h.logger.Warn("failed to push event",
				slog.String("user_id", userID),
				slog.Any("error", err))
			_ = conn.Close(websocket.StatusNormalClosure, "")
			return false
		}
	}
	return true
}

// write отправляет одно JSON сообщение с таймаутом записи
func (h *StreamHandler) write(ctx context.Context, conn *websocket.Conn, msg api.StreamMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	return conn.Write(writeCtx, websocket.MessageText, data)
}
