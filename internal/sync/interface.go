package sync

import (
	"context"

	"github.com/DanielZivko/daily-habits/internal/remote"
)

// Remote is the transport contract the sync engine needs from the
// remote service. *remote.Client satisfies it; tests substitute fakes.
type Remote interface {
	// Upsert inserts or overwrites a row keyed by its primary key.
	// Must be idempotent.
	Upsert(ctx context.Context, table string, row map[string]any) error

	// DeleteByKey removes a row by primary key scoped to the owning
	// user. Deleting an absent row is a no-op.
	DeleteByKey(ctx context.Context, table, key, userID string) error

	// SelectAll fetches every row in the table owned by the user.
	SelectAll(ctx context.Context, table, userID string) ([]map[string]any, error)

	// Subscribe opens the per-user push channel, delivering each
	// event to onEvent. Blocks until ctx is cancelled (nil) or the
	// connection fails (error).
	Subscribe(ctx context.Context, userID string, onEvent func(remote.Event)) error

	// Health probes reachability of the service.
	Health(ctx context.Context) error
}
