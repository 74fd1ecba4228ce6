package models

import "time"

// Snapshot - персистентная запись текущего dataset пользователя.
// Payload хранится в сжатом транспортном виде (см. internal/codec).
type Snapshot struct {
	UserID      string    `json:"user_id"`
	Payload     string    `json:"payload"` // сжатый dataset (gzip+base64)
	Version     int64     `json:"version"`
	UpdatedAt   time.Time `json:"updated_at"`
	Device      string    `json:"device"`  // аудит: класс устройства
	IP          string    `json:"ip"`      // аудит: замаскированный IP
	Country     string    `json:"country"` // аудит: код страны, может быть пустым
	Description string    `json:"description"`
}

// VersionHistoryEntry - легковесная запись в ограниченной истории версий.
// Порядок хранения - по позиции вставки (новые первыми); вытеснение
// строго с хвоста списка, не по timestamp, поэтому restore старой версии
// как новой сбрасывает ее позицию.
type VersionHistoryEntry struct {
	Version      int64     `json:"version"`
	CreatedAt    time.Time `json:"created_at"`
	Description  string    `json:"description"`
	RestoredFrom int64     `json:"restored_from"` // 0 для обычных сохранений
	Device       string    `json:"device"`
	IP           string    `json:"ip"`
	Country      string    `json:"country"`
}
