package store

import (
	"context"
	"fmt"
	"time"
)

// QueueItem is one durable record of a captured local mutation awaiting
// transmission to the remote service.
//
// Items for a single user must be replayed in (EnqueuedAt, ID) order.
// Replaying an update before its corresponding create corrupts remote
// state, so the queue is never drained out of order and ID breaks ties
// between items enqueued in the same instant.
type QueueItem struct {
	// ID is the local auto-increment identifier. It never leaves the
	// device.
	ID int64
	// UserID scopes the item to its owning user.
	UserID string
	// Table is the entity table the mutation applied to.
	Table Table
	// Op is the mutation kind: create, update, or delete.
	Op Op
	// Key is the primary key of the mutated record.
	Key string
	// Payload is the full post-mutation JSON snapshot for creates and
	// updates, nil for deletes (remote deletion needs only the key).
	Payload []byte
	// EnqueuedAt is when the mutation was captured.
	EnqueuedAt time.Time
}

// Enqueue appends an item to the outbound queue within the transaction.
// The item becomes durable when the transaction commits, atomically
// with the mutation that produced it.
func (tx *Tx) Enqueue(item *QueueItem) error {
	if item.UserID == "" {
		return fmt.Errorf("queue item requires a user id")
	}
	if item.Key == "" {
		return fmt.Errorf("queue item requires a primary key")
	}
	if item.EnqueuedAt.IsZero() {
		item.EnqueuedAt = time.Now()
	}

	res, err := tx.tx.ExecContext(tx.ctx, `
		INSERT INTO sync_queue (user_id, tbl, op, key, payload, enqueued_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		item.UserID, string(item.Table), item.Op.String(), item.Key,
		nullableBytes(item.Payload), item.EnqueuedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to enqueue change: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read queue item id: %w", err)
	}
	item.ID = id
	return nil
}

// ListPending returns all queued items for the user in replay order.
func (s *Store) ListPending(ctx context.Context, userID string) ([]*QueueItem, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT id, user_id, tbl, op, key, payload, enqueued_at
		FROM sync_queue
		WHERE user_id = ?
		ORDER BY enqueued_at ASC, id ASC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending queue items: %w", err)
	}
	defer rows.Close()

	var items []*QueueItem
	for rows.Next() {
		var item QueueItem
		var tbl, op string
		var payload []byte
		var enqueuedNanos int64

		if err := rows.Scan(&item.ID, &item.UserID, &tbl, &op, &item.Key, &payload, &enqueuedNanos); err != nil {
			return nil, fmt.Errorf("failed to scan queue item: %w", err)
		}

		item.Table = Table(tbl)
		item.Op, err = ParseOp(op)
		if err != nil {
			return nil, fmt.Errorf("corrupt queue item %d: %w", item.ID, err)
		}
		item.Payload = payload
		item.EnqueuedAt = time.Unix(0, enqueuedNanos)
		items = append(items, &item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating queue items: %w", err)
	}
	return items, nil
}

// RemoveQueueItem deletes a queue item after its successful
// transmission. Removing an already-removed item is a no-op.
func (s *Store) RemoveQueueItem(ctx context.Context, id int64) error {
	if _, err := s.conn.ExecContext(ctx, "DELETE FROM sync_queue WHERE id = ?", id); err != nil {
		return fmt.Errorf("failed to remove queue item %d: %w", id, err)
	}
	return nil
}

// PendingCount returns the number of queued items for the user.
func (s *Store) PendingCount(ctx context.Context, userID string) (int, error) {
	var count int
	err := s.conn.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM sync_queue WHERE user_id = ?", userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count pending queue items: %w", err)
	}
	return count, nil
}

func nullableBytes(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return b
}
