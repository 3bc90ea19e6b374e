package sync

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	stdsync "sync"
	"testing"
	"time"

	"github.com/DanielZivko/daily-habits/internal/model"
	"github.com/DanielZivko/daily-habits/internal/remote"
	"github.com/DanielZivko/daily-habits/internal/store"
)

// fakeRemote is an in-memory Remote with scriptable failures. Rows are
// stored by table and primary key, so duplicate upserts overwrite
// rather than duplicate, matching the real service's semantics.
type fakeRemote struct {
	mu    stdsync.Mutex
	rows  map[string]map[string]map[string]any
	calls []string

	// failures maps a call signature (e.g. "upsert tasks/t1") to an
	// error returned instead of performing the call.
	failures map[string]error
	// healthErr makes Health fail when set.
	healthErr error
	// selectGate, when non-nil, blocks SelectAll until closed. Used to
	// hold a pull in flight.
	selectGate chan struct{}
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{
		rows:     make(map[string]map[string]map[string]any),
		failures: make(map[string]error),
	}
}

func (f *fakeRemote) fail(sig string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures[sig] = fmt.Errorf("injected failure for %s", sig)
}

func (f *fakeRemote) unfail(sig string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.failures, sig)
}

func (f *fakeRemote) record(sig string) error {
	f.calls = append(f.calls, sig)
	if err, ok := f.failures[sig]; ok {
		return err
	}
	return nil
}

func (f *fakeRemote) Upsert(ctx context.Context, table string, row map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	key, _ := row["id"].(string)
	if err := f.record("upsert " + table + "/" + key); err != nil {
		return err
	}
	if f.rows[table] == nil {
		f.rows[table] = make(map[string]map[string]any)
	}
	f.rows[table][key] = row
	return nil
}

func (f *fakeRemote) DeleteByKey(ctx context.Context, table, key, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.record("delete " + table + "/" + key); err != nil {
		return err
	}
	delete(f.rows[table], key)
	return nil
}

func (f *fakeRemote) SelectAll(ctx context.Context, table, userID string) ([]map[string]any, error) {
	f.mu.Lock()
	gate := f.selectGate
	err := f.record("select " + table)
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	var out []map[string]any
	for _, row := range f.rows[table] {
		if uid, _ := row["user_id"].(string); uid == userID {
			out = append(out, row)
		}
	}
	return out, nil
}

func (f *fakeRemote) Subscribe(ctx context.Context, userID string, onEvent func(remote.Event)) error {
	f.mu.Lock()
	f.calls = append(f.calls, "subscribe")
	f.mu.Unlock()
	<-ctx.Done()
	return nil
}

func (f *fakeRemote) Health(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.healthErr
}

func (f *fakeRemote) callLog() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	copy(out, f.calls)
	return out
}

func (f *fakeRemote) row(table, key string) map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rows[table][key]
}

func (f *fakeRemote) seed(t *testing.T, table string, rec model.Record) {
	t.Helper()
	row, err := remote.ToRow(table, rec)
	if err != nil {
		t.Fatalf("failed to seed remote row: %v", err)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.rows[table] == nil {
		f.rows[table] = make(map[string]map[string]any)
	}
	f.rows[table][rec.PrimaryKey()] = row
}

// staticConn is a Connectivity whose transitions tests drive by hand.
type staticConn struct {
	online  atomicBool
	changes chan bool
}

type atomicBool struct {
	mu stdsync.Mutex
	v  bool
}

func (b *atomicBool) set(v bool) { b.mu.Lock(); b.v = v; b.mu.Unlock() }
func (b *atomicBool) get() bool  { b.mu.Lock(); defer b.mu.Unlock(); return b.v }

func newStaticConn(online bool) *staticConn {
	c := &staticConn{changes: make(chan bool, 1)}
	c.online.set(online)
	return c
}

func (c *staticConn) Online() bool { return c.online.get() }

func (c *staticConn) Changes() <-chan bool { return c.changes }

func (c *staticConn) transition(online bool) {
	c.online.set(online)
	c.changes <- online
}

func setupTestStore(t *testing.T) *store.Store {
	t.Helper()

	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open test store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	if err := st.InitSchema(context.Background()); err != nil {
		t.Fatalf("failed to initialize schema: %v", err)
	}
	return st
}

func testLogger(t *testing.T) *log.Logger {
	t.Helper()
	return log.New(testWriter{t}, "[test] ", 0)
}

type testWriter struct{ t *testing.T }

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Logf("%s", p)
	return len(p), nil
}

func testTask(id, userID, title string) *model.Task {
	now := time.Now().UTC().Truncate(time.Second)
	return &model.Task{
		ID:        id,
		UserID:    userID,
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func testGroup(id, userID, name string) *model.Group {
	now := time.Now().UTC().Truncate(time.Second)
	return &model.Group{
		ID:        id,
		UserID:    userID,
		Name:      name,
		CreatedAt: now,
		UpdatedAt: now,
	}
}
