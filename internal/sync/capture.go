package sync

import (
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/DanielZivko/daily-habits/internal/model"
	"github.com/DanielZivko/daily-habits/internal/store"
)

// Capture observes every mutation to the synchronized tables and
// appends exactly one outbound queue item per local-origin mutation.
// Remote-origin mutations are ignored, which is what prevents pulled
// rows from being replicated back out.
//
// The queue append runs inside the mutating transaction, so a captured
// change is durable if and only if the mutation itself committed.
type Capture struct {
	logger *log.Logger
	kick   chan struct{}
}

// NewCapture registers change capture on the store's write hooks.
func NewCapture(st *store.Store, logger *log.Logger) *Capture {
	if logger == nil {
		logger = log.New(os.Stderr, "[capture] ", log.LstdFlags)
	}
	c := &Capture{
		logger: logger,
		kick:   make(chan struct{}, 1),
	}
	st.AddWriteHook(c.hook)
	return c
}

// Kick signals after a local-origin transaction commits with at least
// one captured change. It is a best-effort nudge for an immediate
// drain; the periodic trigger is the correctness backstop.
func (c *Capture) Kick() <-chan struct{} {
	return c.kick
}

func (c *Capture) hook(tx *store.Tx, op store.Op, table store.Table, key string, rec model.Record) error {
	if tx.Origin() == store.OriginRemote {
		return nil
	}
	if rec == nil {
		return fmt.Errorf("capture hook for %s %s/%s received no record", op, table, key)
	}

	item := &store.QueueItem{
		UserID: rec.Owner(),
		Table:  table,
		Op:     op,
		Key:    key,
	}

	// Deletes carry only the key; the remote side needs nothing else.
	if op != store.OpDelete {
		payload, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("failed to snapshot %s %s: %w", table, key, err)
		}
		item.Payload = payload
	}

	if err := tx.Enqueue(item); err != nil {
		return err
	}

	tx.OnCommit(func() {
		select {
		case c.kick <- struct{}{}:
		default:
		}
	})
	return nil
}
