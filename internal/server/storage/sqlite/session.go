package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/iudanet/tabkeeper/internal/models"
	"github.com/iudanet/tabkeeper/internal/server/storage"
)

// CreateSession сохраняет новую сессию
func (s *Storage) CreateSession(ctx context.Context, session *models.Session) error {
	query := `
		INSERT INTO sessions (user_id, session_id, token, user_agent, created_at, last_used_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		session.UserID,
		session.SessionID,
		session.Token,
		session.UserAgent,
		session.CreatedAt,
		session.LastUsedAt,
		session.ExpiresAt,
	)

	if err != nil {
		return fmt.Errorf("%w: failed to create session: %w", storage.ErrStoreUnavailable, err)
	}

	return nil
}

// GetSession возвращает сессию по (userID, sessionID)
func (s *Storage) GetSession(ctx context.Context, userID, sessionID string) (*models.Session, error) {
	query := `
		SELECT user_id, session_id, token, user_agent, created_at, last_used_at, expires_at
		FROM sessions
		WHERE user_id = ? AND session_id = ?
	`

	session := &models.Session{}

	err := s.db.QueryRowContext(ctx, query, userID, sessionID).Scan(
		&session.UserID,
		&session.SessionID,
		&session.Token,
		&session.UserAgent,
		&session.CreatedAt,
		&session.LastUsedAt,
		&session.ExpiresAt,
	)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrSessionNotFound
		}
		return nil, fmt.Errorf("%w: failed to get session: %w", storage.ErrStoreUnavailable, err)
	}

	return session, nil
}

// TouchSession обновляет last_used_at и продлевает expires_at
func (s *Storage) TouchSession(ctx context.Context, userID, sessionID string, lastUsedAt, expiresAt time.Time) error {
	query := `
		UPDATE sessions
		SET last_used_at = ?, expires_at = ?
		WHERE user_id = ? AND session_id = ?
	`

	result, err := s.db.ExecContext(ctx, query, lastUsedAt, expiresAt, userID, sessionID)
	if err != nil {
		return fmt.Errorf("%w: failed to touch session: %w", storage.ErrStoreUnavailable, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: failed to get rows affected: %w", storage.ErrStoreUnavailable, err)
	}

	if rows == 0 {
		return storage.ErrSessionNotFound
	}

	return nil
}

// ListSessions возвращает живые сессии пользователя, новые первыми
func (s *Storage) ListSessions(ctx context.Context, userID string) ([]*models.Session, error) {
	query := `
		SELECT user_id, session_id, token, user_agent, created_at, last_used_at, expires_at
		FROM sessions
		WHERE user_id = ?
		ORDER BY created_at DESC
	`

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to query sessions: %w", storage.ErrStoreUnavailable, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var sessions []*models.Session

	for rows.Next() {
		session := &models.Session{}
		if err := rows.Scan(
			&session.UserID,
			&session.SessionID,
			&session.Token,
			&session.UserAgent,
			&session.CreatedAt,
			&session.LastUsedAt,
			&session.ExpiresAt,
		); err != nil {
			return nil, fmt.Errorf("%w: failed to scan session: %w", storage.ErrStoreUnavailable, err)
		}
		sessions = append(sessions, session)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: rows iteration error: %w", storage.ErrStoreUnavailable, err)
	}

	return sessions, nil
}

// DeleteSession удаляет одну сессию, немедленно отзывая ее токен
func (s *Storage) DeleteSession(ctx context.Context, userID, sessionID string) error {
	query := `DELETE FROM sessions WHERE user_id = ? AND session_id = ?`

	result, err := s.db.ExecContext(ctx, query, userID, sessionID)
	if err != nil {
		return fmt.Errorf("%w: failed to delete session: %w", storage.ErrStoreUnavailable, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: failed to get rows affected: %w", storage.ErrStoreUnavailable, err)
	}

	if rows == 0 {
		return storage.ErrSessionNotFound
	}

	return nil
}

// DeleteUserSessions удаляет все сессии пользователя
func (s *Storage) DeleteUserSessions(ctx context.Context, userID string) (int, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE user_id = ?`, userID)
	if err != nil {
		return 0, fmt.Errorf("%w: failed to delete user sessions: %w", storage.ErrStoreUnavailable, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%w: failed to get rows affected: %w", storage.ErrStoreUnavailable, err)
	}

	return int(rows), nil
}

// DeleteExpiredSessions удаляет сессии с истекшим expires_at
func (s *Storage) DeleteExpiredSessions(ctx context.Context, now time.Time) (int, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at < ?`, now)
	if err != nil {
		return 0, fmt.Errorf("%w: failed to delete expired sessions: %w", storage.ErrStoreUnavailable, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%w: failed to get rows affected: %w", storage.ErrStoreUnavailable, err)
	}

	return int(rows), nil
}
