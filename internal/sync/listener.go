package sync

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/DanielZivko/daily-habits/internal/remote"
	"github.com/DanielZivko/daily-habits/internal/store"
)

// Listener applies incremental remote changes pushed over the realtime
// channel, without requiring a full pull.
//
// Events are applied independently and idempotently in remote-origin
// transactions (upsert for insert/update, delete for delete); no
// ordering is assumed across events for different records. Events
// arriving while a pull is in flight are discarded, since the pull's
// snapshot supersedes them and interleaving the two could let a
// partially-applied pull clobber a newer realtime write.
type Listener struct {
	store  *store.Store
	remote Remote
	puller *Puller
	logger *log.Logger

	// redialInterval is the wait before reopening a failed
	// subscription.
	redialInterval time.Duration
}

// NewListener creates a realtime listener. A nil logger means a stderr
// default.
func NewListener(st *store.Store, rem Remote, puller *Puller, logger *log.Logger) *Listener {
	if logger == nil {
		logger = log.New(os.Stderr, "[realtime] ", log.LstdFlags)
	}
	return &Listener{
		store:          st,
		remote:         rem,
		puller:         puller,
		logger:         logger,
		redialInterval: 5 * time.Second,
	}
}

// Run subscribes to the user's push channel and applies events until
// ctx is cancelled. A dropped connection is redialed after a short
// wait; missed events are covered by the next pull.
func (l *Listener) Run(ctx context.Context, userID string) {
	for {
		err := l.remote.Subscribe(ctx, userID, func(ev remote.Event) {
			l.apply(ctx, ev)
		})
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			l.logger.Printf("Realtime subscription lost: %v (redialing in %v)", err, l.redialInterval)
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(l.redialInterval):
		}
	}
}

func (l *Listener) apply(ctx context.Context, ev remote.Event) {
	if l.puller.InFlight() {
		l.logger.Printf("Discarding %s event for %s/%s: pull in flight", ev.Type, ev.Table, ev.Key())
		return
	}

	table := store.Table(ev.Table)
	switch table {
	case store.TableTasks, store.TableGroups:
	default:
		l.logger.Printf("Ignoring event for unknown table %q", ev.Table)
		return
	}

	var err error
	switch ev.Type {
	case remote.EventInsert, remote.EventUpdate:
		rec, convErr := remote.FromRow(ev.Table, ev.NewRow)
		if convErr != nil {
			l.logger.Printf("Skipping malformed %s event: %v", ev.Type, convErr)
			return
		}
		err = l.store.WithTx(ctx, store.OriginRemote, func(tx *store.Tx) error {
			return tx.Put(table, rec)
		})
	case remote.EventDelete:
		key := ev.Key()
		if key == "" {
			l.logger.Printf("Skipping delete event for %s: no key", ev.Table)
			return
		}
		err = l.store.WithTx(ctx, store.OriginRemote, func(tx *store.Tx) error {
			return tx.Delete(table, key)
		})
	default:
		l.logger.Printf("Ignoring event with unknown type %q", ev.Type)
		return
	}

	if err != nil {
		l.logger.Printf("Failed to apply %s event for %s/%s: %v", ev.Type, ev.Table, ev.Key(), err)
	}
}
