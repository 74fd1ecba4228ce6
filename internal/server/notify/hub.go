// Package notify доставляет push-уведомления об изменениях данных
// на подключенные устройства пользователя. Канал уведомлений работает
// как best-effort ускоритель: источником истины остается обычный
// опрос состояния, поэтому потеря события не ломает синхронизацию.
package notify

import (
	"log/slog"
	"sync"
	"time"

	"github.com/iudanet/tabkeeper/pkg/api"
)

const (
	// maxPendingPerUser ограничивает очередь недоставленных событий
	maxPendingPerUser = 64
	// DefaultEventTTL - время жизни недоставленного события
	DefaultEventTTL = 5 * time.Minute
)

// pendingEvent хранит событие до доставки подключенным устройствам
type pendingEvent struct {
	msg     api.StreamMessage
	addedAt time.Time
}

// subscriber представляет одно подключенное устройство.
// seen хранит ключи уже отправленных событий, чтобы одно событие
// не уходило в то же соединение дважды.
type subscriber struct {
	wake chan struct{}
	seen map[string]struct{}
	mu   sync.Mutex
}

// markSeen возвращает true, если событие с этим ключом еще не отправлялось
func (s *subscriber) markSeen(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.seen[key]; ok {
		return false
	}
	s.seen[key] = struct{}{}
	return true
}

// Hub хранит очереди событий по пользователям и реестр
// подключенных устройств
type Hub struct {
	logger   *slog.Logger
	pending  map[string][]pendingEvent
	subs     map[string]map[*subscriber]struct{}
	eventTTL time.Duration
	stopC    chan struct{}
	stopOnce sync.Once
	mu       sync.Mutex
}

// NewHub создает hub и запускает фоновую очистку протухших событий
func NewHub(logger *slog.Logger, eventTTL time.Duration) *Hub {
	if eventTTL <= 0 {
		eventTTL = DefaultEventTTL
	}

	h := &Hub{
		logger:   logger,
		pending:  make(map[string][]pendingEvent),
		subs:     make(map[string]map[*subscriber]struct{}),
		eventTTL: eventTTL,
		stopC:    make(chan struct{}),
	}

	go h.cleanupLoop()

	return h
}

// Enqueue ставит событие в очередь пользователя и будит его
// подключенные устройства. Никогда не блокируется.
func (h *Hub) Enqueue(userID string, msg api.StreamMessage) {
	h.mu.Lock()

	queue := h.pending[userID]
	queue = append(queue, pendingEvent{msg: msg, addedAt: time.Now()})
	// При переполнении теряем старейшие события: опрос их доберет
	if len(queue) > maxPendingPerUser {
		queue = queue[len(queue)-maxPendingPerUser:]
	}
	h.pending[userID] = queue

	subs := h.subs[userID]
	for sub := range subs {
		select {
		case sub.wake <- struct{}{}:
		default:
		}
	}
	h.mu.Unlock()

	h.logger.Debug("event enqueued",
		slog.String("user_id", userID),
		slog.String("type", msg.Type),
		slog.Int("subscribers", len(subs)))
}

// subscribe регистрирует новое подключенное устройство
func (h *Hub) subscribe(userID string) *subscriber {
	sub := &subscriber{
		wake: make(chan struct{}, 1),
		seen: make(map[string]struct{}),
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.subs[userID] == nil {
		h.subs[userID] = make(map[*subscriber]struct{})
	}
	h.subs[userID][sub] = struct{}{}

	return sub
}

// unsubscribe убирает устройство из реестра
func (h *Hub) unsubscribe(userID string, sub *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()

	delete(h.subs[userID], sub)
	if len(h.subs[userID]) == 0 {
		delete(h.subs, userID)
	}
}

// collect возвращает события пользователя, которые это соединение
// еще не видело. Очередь не очищается: другие устройства того же
// пользователя получат те же события.
func (h *Hub) collect(userID string, sub *subscriber) []api.StreamMessage {
	h.mu.Lock()
	queue := make([]pendingEvent, len(h.pending[userID]))
	copy(queue, h.pending[userID])
	h.mu.Unlock()

	var fresh []api.StreamMessage
	cutoff := time.Now().Add(-h.eventTTL)
	for _, ev := range queue {
		if ev.addedAt.Before(cutoff) {
			continue
		}
		if sub.markSeen(ev.msg.Key) {
			fresh = append(fresh, ev.msg)
		}
	}

	return fresh
}

// Subscribers возвращает количество подключенных устройств пользователя
func (h *Hub) Subscribers(userID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[userID])
}

// cleanupLoop периодически выбрасывает протухшие события
func (h *Hub) cleanupLoop() {
	ticker := time.NewTicker(h.eventTTL)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			h.dropExpired()
		case <-h.stopC:
			return
		}
	}
}

// dropExpired убирает из очередей события старше eventTTL
func (h *Hub) dropExpired() {
	h.mu.Lock()
	defer h.mu.Unlock()

	cutoff := time.Now().Add(-h.eventTTL)
	for userID, queue := range h.pending {
		kept := queue[:0]
		for _, ev := range queue {
			if !ev.addedAt.Before(cutoff) {
				kept = append(kept, ev)
			}
		}
		if len(kept) == 0 {
			delete(h.pending, userID)
		} else {
			h.pending[userID] = kept
		}
	}
}

// Stop останавливает фоновую очистку
func (h *Hub) Stop() {
	h.stopOnce.Do(func() {
		close(h.stopC)
	})
}
