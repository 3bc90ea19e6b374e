package sync

import (
	"context"
	"log"
	"os"
	"sync"
	"sync/atomic"
	"time"
)

// Connectivity reports whether the remote service is reachable and
// delivers transition events. The orchestrator drains and pulls only
// while online and runs its reconnect sequence on each offline→online
// transition.
type Connectivity interface {
	// Online reports the current state.
	Online() bool
	// Changes delivers the new state on every transition.
	Changes() <-chan bool
}

// Monitor is a Connectivity implementation that periodically probes the
// remote service's health endpoint.
type Monitor struct {
	probe    func(ctx context.Context) error
	interval time.Duration
	logger   *log.Logger

	online  atomic.Bool
	changes chan bool

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewMonitor creates a connectivity monitor. probe is typically
// (*remote.Client).Health. A nil logger means a stderr default.
func NewMonitor(probe func(ctx context.Context) error, interval time.Duration, logger *log.Logger) *Monitor {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	if logger == nil {
		logger = log.New(os.Stderr, "[net] ", log.LstdFlags)
	}
	return &Monitor{
		probe:    probe,
		interval: interval,
		logger:   logger,
		changes:  make(chan bool, 1),
	}
}

// Online implements Connectivity.
func (m *Monitor) Online() bool {
	return m.online.Load()
}

// Changes implements Connectivity.
func (m *Monitor) Changes() <-chan bool {
	return m.changes
}

// Start begins probing in the background. An initial probe runs
// immediately so the first state is known before the first tick.
func (m *Monitor) Start(ctx context.Context) {
	ctx, m.cancel = context.WithCancel(ctx)

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()

		m.check(ctx)

		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.check(ctx)
			}
		}
	}()
}

// Stop halts probing and waits for the probe goroutine to exit.
func (m *Monitor) Stop() {
	if m.cancel != nil {
		m.cancel()
	}
	m.wg.Wait()
}

func (m *Monitor) check(ctx context.Context) {
	probeCtx, cancel := context.WithTimeout(ctx, m.interval)
	err := m.probe(probeCtx)
	cancel()
	if ctx.Err() != nil {
		return
	}

	online := err == nil
	if m.online.Swap(online) == online {
		return
	}

	if online {
		m.logger.Printf("Connectivity: online")
	} else {
		m.logger.Printf("Connectivity: offline (%v)", err)
	}

	// Coalesce: only the latest transition matters.
	select {
	case m.changes <- online:
	default:
		select {
		case <-m.changes:
		default:
		}
		m.changes <- online
	}
}
