package storage

import (
	"context"
	"time"

	"github.com/iudanet/tabkeeper/pkg/api"
)

// CacheStorage определяет локальную копию dataset.
// Кэш позволяет работать офлайн и служит базой для debounce
// отправки: локальные правки копятся здесь до выталкивания на сервер.
type CacheStorage interface {
	// SaveCache перезаписывает локальную копию
	SaveCache(ctx context.Context, cache *CachedDataset) error

	// GetCache возвращает локальную копию или ErrNoCache
	GetCache(ctx context.Context) (*CachedDataset, error)

	// DeleteCache удаляет локальную копию
	DeleteCache(ctx context.Context) error
}

// CachedDataset - локальная копия dataset с метаданными синхронизации
type CachedDataset struct {
	Dataset api.Dataset `json:"dataset"`
	// Version - последняя известная клиенту версия
	Version int64 `json:"version"`
	// SyncedAt - время последней успешной синхронизации с сервером
	SyncedAt time.Time `json:"synced_at"`
	// Dirty - есть локальные правки, не отправленные на сервер
	Dirty bool `json:"dirty"`
}
