package storage

import (
	"context"

	"github.com/iudanet/tabkeeper/internal/models"
)

// SnapshotStorage определяет операции версионированного хранилища
// для dataset одного пользователя: текущий snapshot плюс ограниченная
// история версий с payload для restore.
type SnapshotStorage interface {
	// GetCurrent возвращает текущий snapshot или ErrNoSnapshot,
	// если пользователь еще ничего не сохранял
	GetCurrent(ctx context.Context, userID string) (*models.Snapshot, error)

	// PutCurrent перезаписывает текущий snapshot. Версию не назначает -
	// ее передает вызывающий (пути save и restore делят эту логику)
	PutCurrent(ctx context.Context, snapshot *models.Snapshot) error

	// AppendVersion вставляет запись в голову истории, сохраняет payload
	// под ключом версии и вытесняет самые старые записи сверх лимита.
	// Вытеснение строго по позиции вставки, не по timestamp.
	AppendVersion(ctx context.Context, userID string, entry *models.VersionHistoryEntry, payload string) error

	// ListVersions возвращает историю от новых к старым
	ListVersions(ctx context.Context, userID string) ([]*models.VersionHistoryEntry, error)

	// GetVersionPayload возвращает сохраненный payload версии
	// или ErrVersionNotFound
	GetVersionPayload(ctx context.Context, userID string, version int64) (string, error)

	// DeleteAll удаляет текущий snapshot и всю историю пользователя
	DeleteAll(ctx context.Context, userID string) error
}
