package sync

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"sync/atomic"

	"github.com/DanielZivko/daily-habits/internal/model"
	"github.com/DanielZivko/daily-habits/internal/remote"
	"github.com/DanielZivko/daily-habits/internal/store"
)

// Processor drains the outbound queue against the remote service.
//
// Items are transmitted one at a time in strict enqueue order. The
// first failure halts the drain; the failed item and everything after
// it stay queued untouched, and the next trigger resumes from the
// oldest remaining item. This ordering discipline is what keeps a
// record's update from reaching the remote store before its create.
//
// Delivery is at-least-once: a crash between a successful transmission
// and the queue-item removal re-sends the item later, which is safe
// because remote upserts and keyed deletes are idempotent.
type Processor struct {
	store  *store.Store
	remote Remote
	logger *log.Logger

	draining atomic.Bool
}

// NewProcessor creates a queue processor. A nil logger means a stderr
// default.
func NewProcessor(st *store.Store, rem Remote, logger *log.Logger) *Processor {
	if logger == nil {
		logger = log.New(os.Stderr, "[drain] ", log.LstdFlags)
	}
	return &Processor{store: st, remote: rem, logger: logger}
}

// InFlight reports whether a drain is currently running.
func (p *Processor) InFlight() bool {
	return p.draining.Load()
}

// Drain transmits all pending queue items for the user, oldest first.
// A trigger arriving while a drain is already in flight is dropped, not
// queued. Returns the transmission error that halted the drain, if any;
// callers log it and rely on the next trigger to retry.
func (p *Processor) Drain(ctx context.Context, userID string) error {
	if !p.draining.CompareAndSwap(false, true) {
		return nil
	}
	defer p.draining.Store(false)

	items, err := p.store.ListPending(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to load pending queue: %w", err)
	}
	if len(items) == 0 {
		return nil
	}

	p.logger.Printf("Draining %d queued change(s) for user %s", len(items), userID)

	for _, item := range items {
		if err := p.transmit(ctx, item); err != nil {
			p.logger.Printf("Drain halted at item %d (%s %s/%s): %v",
				item.ID, item.Op, item.Table, item.Key, err)
			return err
		}

		// Remove only after confirmed transmission, never before.
		if err := p.store.RemoveQueueItem(ctx, item.ID); err != nil {
			return fmt.Errorf("failed to remove transmitted queue item %d: %w", item.ID, err)
		}
	}

	if err := p.store.MarkSyncTime(ctx, userID, store.StateLastDrainAt); err != nil {
		p.logger.Printf("Warning: failed to record drain time: %v", err)
	}

	p.logger.Printf("Drain complete for user %s", userID)
	return nil
}

func (p *Processor) transmit(ctx context.Context, item *store.QueueItem) error {
	switch item.Op {
	case store.OpCreate, store.OpUpdate:
		rec, err := unmarshalSnapshot(item.Table, item.Payload)
		if err != nil {
			return err
		}
		row, err := remote.ToRow(string(item.Table), rec)
		if err != nil {
			return err
		}
		return p.remote.Upsert(ctx, string(item.Table), row)
	case store.OpDelete:
		return p.remote.DeleteByKey(ctx, string(item.Table), item.Key, item.UserID)
	default:
		return fmt.Errorf("unknown queue op %v", item.Op)
	}
}

// unmarshalSnapshot decodes the local-format snapshot captured in a
// queue item back into its record type.
func unmarshalSnapshot(table store.Table, payload []byte) (model.Record, error) {
	switch table {
	case store.TableTasks:
		var task model.Task
		if err := json.Unmarshal(payload, &task); err != nil {
			return nil, fmt.Errorf("corrupt task snapshot: %w", err)
		}
		return &task, nil
	case store.TableGroups:
		var group model.Group
		if err := json.Unmarshal(payload, &group); err != nil {
			return nil, fmt.Errorf("corrupt group snapshot: %w", err)
		}
		return &group, nil
	default:
		return nil, fmt.Errorf("unknown table %q", table)
	}
}
