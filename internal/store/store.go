// Package store provides the embedded SQLite database that holds all
// local state for daily-habits: the tasks and groups tables, the durable
// outbound sync queue, and per-user sync bookkeeping.
//
// The database runs in embedded mode (ncruces/go-sqlite3, no CGO) with
// WAL enabled for concurrent readers during writes.
//
// Every write goes through a transaction carrying an Origin tag. Local
// writes (user actions) are tagged OriginLocal; writes applied by the
// sync layer on behalf of the remote service are tagged OriginRemote.
// Write-interception hooks registered with AddWriteHook observe every
// mutation together with its origin, which is how change capture keeps
// the outbound queue in step with local edits without re-capturing
// writes that came from the remote side in the first place.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/DanielZivko/daily-habits/internal/model"
)

// ErrNotFound is returned by Get when no row matches the key.
var ErrNotFound = errors.New("record not found")

// Origin tags a transaction with the cause of its writes. It is never
// persisted; its lifetime is exactly the transaction it was created for.
type Origin int

const (
	// OriginLocal marks user-caused writes. These must be captured
	// into the outbound queue.
	OriginLocal Origin = iota
	// OriginRemote marks writes applied by pull or realtime sync.
	// These must NOT be re-enqueued, or every pulled row would be
	// pushed straight back out.
	OriginRemote
)

// String returns a human-readable representation of the origin.
func (o Origin) String() string {
	switch o {
	case OriginLocal:
		return "local"
	case OriginRemote:
		return "remote"
	default:
		return "unknown"
	}
}

// Op is the kind of mutation observed by a write hook.
type Op int

const (
	// OpCreate indicates a new row was inserted.
	OpCreate Op = iota
	// OpUpdate indicates an existing row was overwritten.
	OpUpdate
	// OpDelete indicates a row was removed.
	OpDelete
)

// String returns a human-readable representation of the operation.
func (op Op) String() string {
	switch op {
	case OpCreate:
		return "create"
	case OpUpdate:
		return "update"
	case OpDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// ParseOp is the inverse of Op.String.
func ParseOp(s string) (Op, error) {
	switch s {
	case "create":
		return OpCreate, nil
	case "update":
		return OpUpdate, nil
	case "delete":
		return OpDelete, nil
	default:
		return 0, fmt.Errorf("unknown op %q", s)
	}
}

// Table identifies one of the synchronized entity tables.
type Table string

const (
	// TableTasks holds model.Task rows.
	TableTasks Table = "tasks"
	// TableGroups holds model.Group rows.
	TableGroups Table = "groups"
)

// SyncTables lists the tables subject to synchronization, in a stable
// order.
var SyncTables = []Table{TableTasks, TableGroups}

// WriteHook observes a single mutation inside its committing
// transaction. The hook runs before commit, so anything it writes
// through tx (such as an outbound queue entry) is atomic with the
// mutation itself. rec is the post-mutation snapshot for creates and
// updates, and the previous record for deletes.
type WriteHook func(tx *Tx, op Op, table Table, key string, rec model.Record) error

// Store wraps the embedded SQLite database.
type Store struct {
	conn *sql.DB
	path string

	hooksMu sync.RWMutex
	hooks   []WriteHook
}

// Open creates a database connection at the specified path.
//
// The parent directory is created if missing. If the database does not
// exist it is created; call InitSchema before first use. The caller
// must Close when done.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	conn, err := sql.Open("sqlite3", "file:"+path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	conn.SetMaxOpenConns(10)
	conn.SetMaxIdleConns(2)
	conn.SetConnMaxLifetime(5 * time.Minute)

	s := &Store{conn: conn, path: path}

	// WAL for concurrent reads during sync writes
	if _, err := s.conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if _, err := s.conn.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}
	if _, err := s.conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return s, nil
}

// Path returns the database file path.
func (s *Store) Path() string { return s.path }

// Close closes the database connection after checkpointing the WAL.
func (s *Store) Close() error {
	if s.conn == nil {
		return nil
	}

	if _, err := s.conn.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to checkpoint WAL: %v\n", err)
	}

	if err := s.conn.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}

	s.conn = nil
	return nil
}

// InitSchema creates the database schema if it doesn't exist.
// Idempotent; safe to call on every startup.
func (s *Store) InitSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS tasks (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		title TEXT NOT NULL,
		notes TEXT,
		group_id TEXT,
		done INTEGER NOT NULL DEFAULT 0,
		done_at TEXT,
		due_at TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS groups (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		name TEXT NOT NULL,
		color TEXT,
		position INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- Durable outbound queue. id is local only and never leaves the
	-- device; replay order is (enqueued_at, id).
	CREATE TABLE IF NOT EXISTS sync_queue (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id TEXT NOT NULL,
		tbl TEXT NOT NULL,
		op TEXT NOT NULL,
		key TEXT NOT NULL,
		payload TEXT,
		enqueued_at INTEGER NOT NULL
	);

	-- Per-user sync bookkeeping (last drain/pull timestamps).
	CREATE TABLE IF NOT EXISTS sync_state (
		user_id TEXT NOT NULL,
		key TEXT NOT NULL,
		value TEXT NOT NULL,
		PRIMARY KEY (user_id, key)
	);

	CREATE INDEX IF NOT EXISTS idx_tasks_user ON tasks(user_id);
	CREATE INDEX IF NOT EXISTS idx_tasks_group ON tasks(group_id);
	CREATE INDEX IF NOT EXISTS idx_tasks_done ON tasks(done);
	CREATE INDEX IF NOT EXISTS idx_groups_user ON groups(user_id);
	CREATE INDEX IF NOT EXISTS idx_queue_user_order
	    ON sync_queue(user_id, enqueued_at, id);
	`

	if _, err := s.conn.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	return nil
}

// AddWriteHook registers a hook observing every mutation to the
// synchronized tables. Hooks run inside the mutating transaction, in
// registration order. A hook error aborts the transaction.
func (s *Store) AddWriteHook(h WriteHook) {
	s.hooksMu.Lock()
	defer s.hooksMu.Unlock()
	s.hooks = append(s.hooks, h)
}

func (s *Store) runHooks(tx *Tx, op Op, table Table, key string, rec model.Record) error {
	s.hooksMu.RLock()
	hooks := make([]WriteHook, len(s.hooks))
	copy(hooks, s.hooks)
	s.hooksMu.RUnlock()

	for _, h := range hooks {
		if err := h(tx, op, table, key, rec); err != nil {
			return fmt.Errorf("write hook failed: %w", err)
		}
	}
	return nil
}

// Get retrieves a single record by key. Returns ErrNotFound if absent.
func (s *Store) Get(ctx context.Context, table Table, key string) (model.Record, error) {
	return getRecord(ctx, s.conn, table, key)
}

// QueryByUser returns all records in the table owned by the user,
// ordered by creation time.
func (s *Store) QueryByUser(ctx context.Context, table Table, userID string) ([]model.Record, error) {
	switch table {
	case TableTasks:
		rows, err := s.conn.QueryContext(ctx, `
			SELECT id, user_id, title, notes, group_id, done, done_at, due_at, created_at, updated_at
			FROM tasks WHERE user_id = ? ORDER BY created_at ASC, id ASC`, userID)
		if err != nil {
			return nil, fmt.Errorf("failed to query tasks: %w", err)
		}
		defer rows.Close()
		return scanTasks(rows)
	case TableGroups:
		rows, err := s.conn.QueryContext(ctx, `
			SELECT id, user_id, name, color, position, created_at, updated_at
			FROM groups WHERE user_id = ? ORDER BY position ASC, created_at ASC`, userID)
		if err != nil {
			return nil, fmt.Errorf("failed to query groups: %w", err)
		}
		defer rows.Close()
		return scanGroups(rows)
	default:
		return nil, fmt.Errorf("unknown table %q", table)
	}
}

// Put inserts or overwrites a record in a local-origin transaction.
func (s *Store) Put(ctx context.Context, table Table, rec model.Record) error {
	return s.WithTx(ctx, OriginLocal, func(tx *Tx) error {
		return tx.Put(table, rec)
	})
}

// Delete removes a record in a local-origin transaction. Deleting an
// absent key is a no-op.
func (s *Store) Delete(ctx context.Context, table Table, key string) error {
	return s.WithTx(ctx, OriginLocal, func(tx *Tx) error {
		return tx.Delete(table, key)
	})
}

// BulkPut upserts a batch of records in a single transaction with the
// given origin tag.
func (s *Store) BulkPut(ctx context.Context, origin Origin, table Table, recs []model.Record) error {
	return s.WithTx(ctx, origin, func(tx *Tx) error {
		return tx.BulkPut(table, recs)
	})
}

// timeToNullString converts a time pointer to a nullable string for SQL.
func timeToNullString(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(time.RFC3339Nano), Valid: true}
}

// nullStringToTime converts a nullable SQL string to a time pointer.
func nullStringToTime(ns sql.NullString) *time.Time {
	if !ns.Valid {
		return nil
	}
	t, err := time.Parse(time.RFC3339Nano, ns.String)
	if err != nil {
		return nil
	}
	return &t
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
