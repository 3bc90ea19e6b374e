package sync

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/DanielZivko/daily-habits/internal/store"
)

// Options configures the orchestrator.
type Options struct {
	// DrainInterval is the periodic drain cadence. Zero means 5s.
	DrainInterval time.Duration
	// Logger for orchestration activity. Nil means a stderr default.
	Logger *log.Logger
}

// Orchestrator wires the sync lifecycle together: change capture,
// queue draining, pulls, realtime listening, and the connectivity and
// timer triggers that schedule them.
//
// One orchestrator serves one login session. Construct it at login with
// Start and discard it at logout with Stop; in-flight flags and the
// current user live on the instance, never in process globals.
//
// Trigger wiring:
//   - Start (login): subscribe the realtime listener, pull, then drain.
//   - Reconnect (offline→online): drain, then pull. Draining first
//     narrows the window in which a pull could overlap not-yet-sent
//     local changes; since pulls never delete local rows this is an
//     ordering preference, not a correctness requirement.
//   - Periodic tick and post-commit capture kicks: drain if online.
//   - Stop (logout): cancel the listener and all triggers.
//
// Drain and pull failures are logged and retried on the next trigger,
// never returned to the caller; the only user-visible failure mode is
// staleness.
type Orchestrator struct {
	store     *store.Store
	capture   *Capture
	processor *Processor
	puller    *Puller
	listener  *Listener
	conn      Connectivity
	interval  time.Duration
	logger    *log.Logger

	mu     sync.Mutex
	userID string
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewOrchestrator builds the full sync engine over a store and remote
// transport. Change capture is registered on the store immediately, so
// local mutations are queued even before Start is called.
func NewOrchestrator(st *store.Store, rem Remote, conn Connectivity, opts Options) *Orchestrator {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(os.Stderr, "[sync] ", log.LstdFlags)
	}
	interval := opts.DrainInterval
	if interval <= 0 {
		interval = 5 * time.Second
	}

	capture := NewCapture(st, logger)
	puller := NewPuller(st, rem, logger)

	return &Orchestrator{
		store:     st,
		capture:   capture,
		processor: NewProcessor(st, rem, logger),
		puller:    puller,
		listener:  NewListener(st, rem, puller, logger),
		conn:      conn,
		interval:  interval,
		logger:    logger,
	}
}

// Start begins synchronization for the user. Called on login. Returns
// an error only if a session is already active; sync failures
// themselves are handled internally.
func (o *Orchestrator) Start(ctx context.Context, userID string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.cancel != nil {
		return fmt.Errorf("sync already active for user %s", o.userID)
	}

	ctx, cancel := context.WithCancel(ctx)
	o.userID = userID
	o.cancel = cancel

	o.logger.Printf("Starting sync for user %s", userID)

	// Listening is active for the whole session, alongside drains and
	// pulls.
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		o.listener.Run(ctx, userID)
	}()

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		o.run(ctx, userID)
	}()

	return nil
}

// Stop tears down the session: unsubscribes the listener and stops all
// periodic triggers. Called on logout. Safe to call more than once.
func (o *Orchestrator) Stop() {
	o.mu.Lock()
	cancel := o.cancel
	o.cancel = nil
	o.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	o.wg.Wait()
	o.logger.Printf("Sync stopped")
}

// Processor exposes the queue processor, mainly for an explicit
// "sync now" trigger.
func (o *Orchestrator) Processor() *Processor { return o.processor }

// Puller exposes the pull synchronizer.
func (o *Orchestrator) Puller() *Puller { return o.puller }

func (o *Orchestrator) run(ctx context.Context, userID string) {
	// Login sequence: catch up from the remote, then flush anything
	// queued while logged out.
	if o.conn.Online() {
		o.pull(ctx, userID)
		o.drain(ctx, userID)
	}

	ticker := time.NewTicker(o.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-ticker.C:
			if o.conn.Online() {
				o.drain(ctx, userID)
			}

		case <-o.capture.Kick():
			if o.conn.Online() {
				o.drain(ctx, userID)
			}

		case online := <-o.conn.Changes():
			if !online {
				continue
			}
			// Reconnect: local pending writes go out before the
			// pull merges the remote snapshot back over them.
			o.drain(ctx, userID)
			o.pull(ctx, userID)
		}
	}
}

func (o *Orchestrator) drain(ctx context.Context, userID string) {
	if err := o.processor.Drain(ctx, userID); err != nil {
		o.logger.Printf("Drain failed (will retry): %v", err)
	}
}

func (o *Orchestrator) pull(ctx context.Context, userID string) {
	if err := o.puller.Pull(ctx, userID); err != nil {
		o.logger.Printf("Pull failed (will retry): %v", err)
	}
}
