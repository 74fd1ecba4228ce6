package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/iudanet/tabkeeper/internal/models"
	"github.com/iudanet/tabkeeper/internal/server/storage"
)

// GetCurrent возвращает текущий snapshot пользователя
func (s *Storage) GetCurrent(ctx context.Context, userID string) (*models.Snapshot, error) {
	query := `
		SELECT user_id, payload, version, updated_at, description, device, ip, country
		FROM snapshots
		WHERE user_id = ?
	`

	snapshot := &models.Snapshot{}

	err := s.db.QueryRowContext(ctx, query, userID).Scan(
		&snapshot.UserID,
		&snapshot.Payload,
		&snapshot.Version,
		&snapshot.UpdatedAt,
		&snapshot.Description,
		&snapshot.Device,
		&snapshot.IP,
		&snapshot.Country,
	)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrNoSnapshot
		}
		return nil, fmt.Errorf("%w: failed to get snapshot: %w", storage.ErrStoreUnavailable, err)
	}

	return snapshot, nil
}

// PutCurrent перезаписывает текущий snapshot пользователя.
// Версию не назначает - она приходит от вызывающего.
func (s *Storage) PutCurrent(ctx context.Context, snapshot *models.Snapshot) error {
	query := `
		INSERT INTO snapshots (user_id, payload, version, updated_at, description, device, ip, country)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			payload = excluded.payload,
			version = excluded.version,
			updated_at = excluded.updated_at,
			description = excluded.description,
			device = excluded.device,
			ip = excluded.ip,
			country = excluded.country
	`

	_, err := s.db.ExecContext(ctx, query,
		snapshot.UserID,
		snapshot.Payload,
		snapshot.Version,
		snapshot.UpdatedAt,
		snapshot.Description,
		snapshot.Device,
		snapshot.IP,
		snapshot.Country,
	)

	if err != nil {
		return fmt.Errorf("%w: failed to put snapshot: %w", storage.ErrStoreUnavailable, err)
	}

	return nil
}

// AppendVersion вставляет запись в голову истории и вытесняет записи
// сверх лимита. Позиция задается autoincrement id, поэтому повторная
// вставка той же версии (INSERT OR REPLACE) сбрасывает ее позицию.
func (s *Storage) AppendVersion(ctx context.Context, userID string, entry *models.VersionHistoryEntry, payload string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: failed to begin tx: %w", storage.ErrStoreUnavailable, err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	insertQuery := `
		INSERT OR REPLACE INTO snapshot_versions
			(user_id, version, payload, description, restored_from, device, ip, country, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = tx.ExecContext(ctx, insertQuery,
		userID,
		entry.Version,
		payload,
		entry.Description,
		entry.RestoredFrom,
		entry.Device,
		entry.IP,
		entry.Country,
		entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("%w: failed to insert version: %w", storage.ErrStoreUnavailable, err)
	}

	// Вытесняем самые старые записи (наименьшие id) сверх лимита.
	// Вместе с записью удаляется и ее payload - они в одной строке.
	evictQuery := `
		DELETE FROM snapshot_versions
		WHERE user_id = ?
		  AND id NOT IN (
			SELECT id FROM snapshot_versions
			WHERE user_id = ?
			ORDER BY id DESC
			LIMIT ?
		)
	`

	if _, err := tx.ExecContext(ctx, evictQuery, userID, userID, s.historyLimit); err != nil {
		return fmt.Errorf("%w: failed to evict old versions: %w", storage.ErrStoreUnavailable, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: failed to commit: %w", storage.ErrStoreUnavailable, err)
	}

	return nil
}

// ListVersions возвращает историю версий от новых к старым
func (s *Storage) ListVersions(ctx context.Context, userID string) ([]*models.VersionHistoryEntry, error) {
	query := `
		SELECT version, created_at, description, restored_from, device, ip, country
		FROM snapshot_versions
		WHERE user_id = ?
		ORDER BY id DESC
	`

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to query versions: %w", storage.ErrStoreUnavailable, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var entries []*models.VersionHistoryEntry

	for rows.Next() {
		entry := &models.VersionHistoryEntry{}
		if err := rows.Scan(
			&entry.Version,
			&entry.CreatedAt,
			&entry.Description,
			&entry.RestoredFrom,
			&entry.Device,
			&entry.IP,
			&entry.Country,
		); err != nil {
			return nil, fmt.Errorf("%w: failed to scan version: %w", storage.ErrStoreUnavailable, err)
		}
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: rows iteration error: %w", storage.ErrStoreUnavailable, err)
	}

	return entries, nil
}

// GetVersionPayload возвращает payload сохраненной версии
func (s *Storage) GetVersionPayload(ctx context.Context, userID string, version int64) (string, error) {
	query := `
		SELECT payload FROM snapshot_versions
		WHERE user_id = ? AND version = ?
	`

	var payload string
	err := s.db.QueryRowContext(ctx, query, userID, version).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", storage.ErrVersionNotFound
		}
		return "", fmt.Errorf("%w: failed to get version payload: %w", storage.ErrStoreUnavailable, err)
	}

	return payload, nil
}

// DeleteAll удаляет текущий snapshot и всю историю пользователя.
// Идемпотентно: отсутствие данных не ошибка.
func (s *Storage) DeleteAll(ctx context.Context, userID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: failed to begin tx: %w", storage.ErrStoreUnavailable, err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `DELETE FROM snapshots WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("%w: failed to delete snapshot: %w", storage.ErrStoreUnavailable, err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM snapshot_versions WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("%w: failed to delete versions: %w", storage.ErrStoreUnavailable, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: failed to commit: %w", storage.ErrStoreUnavailable, err)
	}

	return nil
}
