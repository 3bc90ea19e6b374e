package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Keys used in the sync_state table.
const (
	// StateLastDrainAt records when the outbound queue last drained
	// fully for a user.
	StateLastDrainAt = "last_drain_at"
	// StateLastPullAt records when a full pull last completed for a
	// user.
	StateLastPullAt = "last_pull_at"
)

// SetSyncState stores a bookkeeping value for the user.
func (s *Store) SetSyncState(ctx context.Context, userID, key, value string) error {
	_, err := s.conn.ExecContext(ctx, `
		INSERT INTO sync_state (user_id, key, value)
		VALUES (?, ?, ?)
		ON CONFLICT(user_id, key) DO UPDATE SET value = excluded.value`,
		userID, key, value)
	if err != nil {
		return fmt.Errorf("failed to set sync state %s: %w", key, err)
	}
	return nil
}

// GetSyncState returns a bookkeeping value for the user, or the empty
// string if unset.
func (s *Store) GetSyncState(ctx context.Context, userID, key string) (string, error) {
	var value string
	err := s.conn.QueryRowContext(ctx,
		"SELECT value FROM sync_state WHERE user_id = ? AND key = ?", userID, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get sync state %s: %w", key, err)
	}
	return value, nil
}

// MarkSyncTime records the current time under the given state key.
func (s *Store) MarkSyncTime(ctx context.Context, userID, key string) error {
	return s.SetSyncState(ctx, userID, key, time.Now().UTC().Format(time.RFC3339))
}
