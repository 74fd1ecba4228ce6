package api

import "time"

// Типы сообщений push-канала
const (
	// StreamConnected - первое сообщение после установки соединения
	StreamConnected = "connected"
	// StreamHeartbeat - периодический keepalive
	StreamHeartbeat = "heartbeat"
	// StreamDatasetUpdated - данные пользователя изменились на другом устройстве
	StreamDatasetUpdated = "dataset_updated"
	// StreamDatasetDeleted - данные пользователя удалены
	StreamDatasetDeleted = "dataset_deleted"
)

// StreamMessage - JSON-кадр push-канала. Доставка at-least-once:
// получатели дедуплицируют по Key, повторная доставка безвредна.
// Push - только оптимизация задержки, источник истины - polling.
type StreamMessage struct {
	Type      string    `json:"type"`
	Key       string    `json:"key,omitempty"`     // ключ дедупликации события
	Version   int64     `json:"version,omitempty"` // версия данных для update событий
	Timestamp time.Time `json:"timestamp"`
}
