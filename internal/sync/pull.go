package sync

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync/atomic"

	"github.com/DanielZivko/daily-habits/internal/model"
	"github.com/DanielZivko/daily-habits/internal/remote"
	"github.com/DanielZivko/daily-habits/internal/store"
)

// Puller reconciles local state with the remote service's full table
// snapshots for a user.
//
// Pulled rows are merged over local state with remote-origin bulk
// upserts. The pull never deletes local rows first: a record created
// offline and still pending in the outbound queue has no remote
// counterpart yet, and a destructive clear-then-write would destroy it.
type Puller struct {
	store  *store.Store
	remote Remote
	logger *log.Logger

	pulling atomic.Bool
}

// NewPuller creates a pull synchronizer. A nil logger means a stderr
// default.
func NewPuller(st *store.Store, rem Remote, logger *log.Logger) *Puller {
	if logger == nil {
		logger = log.New(os.Stderr, "[pull] ", log.LstdFlags)
	}
	return &Puller{store: st, remote: rem, logger: logger}
}

// InFlight reports whether a pull is currently running. The realtime
// listener discards events while this is true; the in-flight pull
// supersedes them.
func (p *Puller) InFlight() bool {
	return p.pulling.Load()
}

// Pull fetches the remote snapshot of both entity tables for the user
// and merges it into the local store. A trigger arriving while a pull
// is in flight is dropped. Any remote error aborts the pull with local
// state unchanged; the next trigger retries.
//
// Malformed rows are skipped individually so one bad row cannot block
// the rest of the snapshot.
func (p *Puller) Pull(ctx context.Context, userID string) error {
	if !p.pulling.CompareAndSwap(false, true) {
		return nil
	}
	defer p.pulling.Store(false)

	for _, table := range store.SyncTables {
		rows, err := p.remote.SelectAll(ctx, string(table), userID)
		if err != nil {
			return fmt.Errorf("failed to fetch %s snapshot: %w", table, err)
		}

		recs := make([]model.Record, 0, len(rows))
		for _, row := range rows {
			rec, err := remote.FromRow(string(table), row)
			if err != nil {
				p.logger.Printf("Skipping malformed %s row: %v", table, err)
				continue
			}
			recs = append(recs, rec)
		}

		if err := p.store.BulkPut(ctx, store.OriginRemote, table, recs); err != nil {
			return fmt.Errorf("failed to merge %s snapshot: %w", table, err)
		}

		p.logger.Printf("Merged %d %s row(s) for user %s", len(recs), table, userID)
	}

	if err := p.store.MarkSyncTime(ctx, userID, store.StateLastPullAt); err != nil {
		p.logger.Printf("Warning: failed to record pull time: %v", err)
	}
	return nil
}
