package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/DanielZivko/daily-habits/internal/model"
)

// querier is the subset of database/sql shared by *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Tx is a write transaction over the store. All mutations made through
// it commit or roll back together, and all of them carry the
// transaction's origin tag. Multi-table operations (deleting a group and
// its tasks, merging a pulled snapshot) must run inside one Tx so a
// reader never observes a partially-applied state.
type Tx struct {
	ctx      context.Context
	tx       *sql.Tx
	store    *Store
	origin   Origin
	onCommit []func()
}

// WithTx runs fn inside a write transaction tagged with origin. On any
// error the transaction rolls back; otherwise it commits and any
// functions registered with OnCommit run, in order.
func (s *Store) WithTx(ctx context.Context, origin Origin, fn func(tx *Tx) error) error {
	sqlTx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	tx := &Tx{ctx: ctx, tx: sqlTx, store: s, origin: origin}

	if err := fn(tx); err != nil {
		_ = sqlTx.Rollback()
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	for _, f := range tx.onCommit {
		f()
	}
	return nil
}

// Origin returns the transaction's origin tag.
func (tx *Tx) Origin() Origin { return tx.origin }

// Context returns the context the transaction was started with.
func (tx *Tx) Context() context.Context { return tx.ctx }

// OnCommit registers fn to run after the transaction commits. Never runs
// on rollback. Used for best-effort signals that must not fire before
// the data is durable, such as kicking the queue processor.
func (tx *Tx) OnCommit(fn func()) {
	tx.onCommit = append(tx.onCommit, fn)
}

// Get retrieves a single record by key within the transaction.
func (tx *Tx) Get(table Table, key string) (model.Record, error) {
	return getRecord(tx.ctx, tx.tx, table, key)
}

// Put inserts or overwrites a record by primary key. Write hooks
// observe the mutation as a create if the key was absent, an update
// otherwise.
func (tx *Tx) Put(table Table, rec model.Record) error {
	existed, err := rowExists(tx.ctx, tx.tx, table, rec.PrimaryKey())
	if err != nil {
		return err
	}

	if err := upsertRecord(tx.ctx, tx.tx, table, rec); err != nil {
		return err
	}

	op := OpCreate
	if existed {
		op = OpUpdate
	}
	return tx.store.runHooks(tx, op, table, rec.PrimaryKey(), rec)
}

// BulkPut upserts a batch of records. Each row fires hooks
// individually, so change capture sees one mutation per record.
func (tx *Tx) BulkPut(table Table, recs []model.Record) error {
	for _, rec := range recs {
		if err := tx.Put(table, rec); err != nil {
			return err
		}
	}
	return nil
}

// Delete removes a record by key. Deleting an absent key is a no-op and
// fires no hooks, since no mutation happened. Hooks receive the
// previous record (the row as it was before deletion).
func (tx *Tx) Delete(table Table, key string) error {
	prev, err := getRecord(tx.ctx, tx.tx, table, key)
	if err == ErrNotFound {
		return nil
	}
	if err != nil {
		return err
	}

	if _, err := tx.tx.ExecContext(tx.ctx, fmt.Sprintf("DELETE FROM %s WHERE id = ?", table), key); err != nil {
		return fmt.Errorf("failed to delete from %s: %w", table, err)
	}

	return tx.store.runHooks(tx, OpDelete, table, key, prev)
}

func validTable(table Table) error {
	switch table {
	case TableTasks, TableGroups:
		return nil
	default:
		return fmt.Errorf("unknown table %q", table)
	}
}

func rowExists(ctx context.Context, q querier, table Table, key string) (bool, error) {
	if err := validTable(table); err != nil {
		return false, err
	}
	var one int
	err := q.QueryRowContext(ctx, fmt.Sprintf("SELECT 1 FROM %s WHERE id = ?", table), key).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check existence in %s: %w", table, err)
	}
	return true, nil
}

func getRecord(ctx context.Context, q querier, table Table, key string) (model.Record, error) {
	switch table {
	case TableTasks:
		row := q.QueryRowContext(ctx, `
			SELECT id, user_id, title, notes, group_id, done, done_at, due_at, created_at, updated_at
			FROM tasks WHERE id = ?`, key)
		task, err := scanTask(row)
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		if err != nil {
			return nil, fmt.Errorf("failed to get task %s: %w", key, err)
		}
		return task, nil
	case TableGroups:
		row := q.QueryRowContext(ctx, `
			SELECT id, user_id, name, color, position, created_at, updated_at
			FROM groups WHERE id = ?`, key)
		group, err := scanGroup(row)
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		if err != nil {
			return nil, fmt.Errorf("failed to get group %s: %w", key, err)
		}
		return group, nil
	default:
		return nil, fmt.Errorf("unknown table %q", table)
	}
}

func upsertRecord(ctx context.Context, q querier, table Table, rec model.Record) error {
	switch table {
	case TableTasks:
		task, ok := rec.(*model.Task)
		if !ok {
			return fmt.Errorf("table %s requires *model.Task, got %T", table, rec)
		}
		if err := task.Validate(); err != nil {
			return fmt.Errorf("invalid task: %w", err)
		}
		_, err := q.ExecContext(ctx, `
			INSERT INTO tasks (id, user_id, title, notes, group_id, done, done_at, due_at, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				user_id = excluded.user_id,
				title = excluded.title,
				notes = excluded.notes,
				group_id = excluded.group_id,
				done = excluded.done,
				done_at = excluded.done_at,
				due_at = excluded.due_at,
				updated_at = excluded.updated_at`,
			task.ID, task.UserID, task.Title, task.Notes, task.GroupID,
			boolToInt(task.Done),
			timeToNullString(task.DoneAt), timeToNullString(task.DueAt),
			formatTime(task.CreatedAt), formatTime(task.UpdatedAt),
		)
		if err != nil {
			return fmt.Errorf("failed to upsert task %s: %w", task.ID, err)
		}
		return nil
	case TableGroups:
		group, ok := rec.(*model.Group)
		if !ok {
			return fmt.Errorf("table %s requires *model.Group, got %T", table, rec)
		}
		if err := group.Validate(); err != nil {
			return fmt.Errorf("invalid group: %w", err)
		}
		_, err := q.ExecContext(ctx, `
			INSERT INTO groups (id, user_id, name, color, position, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				user_id = excluded.user_id,
				name = excluded.name,
				color = excluded.color,
				position = excluded.position,
				updated_at = excluded.updated_at`,
			group.ID, group.UserID, group.Name, group.Color, group.Position,
			formatTime(group.CreatedAt), formatTime(group.UpdatedAt),
		)
		if err != nil {
			return fmt.Errorf("failed to upsert group %s: %w", group.ID, err)
		}
		return nil
	default:
		return fmt.Errorf("unknown table %q", table)
	}
}

func scanTask(row *sql.Row) (*model.Task, error) {
	var task model.Task
	var notes, groupID sql.NullString
	var done int
	var doneAt, dueAt sql.NullString
	var createdAt, updatedAt string

	err := row.Scan(&task.ID, &task.UserID, &task.Title, &notes, &groupID,
		&done, &doneAt, &dueAt, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	task.Notes = notes.String
	task.GroupID = groupID.String
	task.Done = done != 0
	task.DoneAt = nullStringToTime(doneAt)
	task.DueAt = nullStringToTime(dueAt)
	task.CreatedAt = parseTime(createdAt)
	task.UpdatedAt = parseTime(updatedAt)
	return &task, nil
}

func scanTasks(rows *sql.Rows) ([]model.Record, error) {
	var recs []model.Record
	for rows.Next() {
		var task model.Task
		var notes, groupID sql.NullString
		var done int
		var doneAt, dueAt sql.NullString
		var createdAt, updatedAt string

		err := rows.Scan(&task.ID, &task.UserID, &task.Title, &notes, &groupID,
			&done, &doneAt, &dueAt, &createdAt, &updatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}

		task.Notes = notes.String
		task.GroupID = groupID.String
		task.Done = done != 0
		task.DoneAt = nullStringToTime(doneAt)
		task.DueAt = nullStringToTime(dueAt)
		task.CreatedAt = parseTime(createdAt)
		task.UpdatedAt = parseTime(updatedAt)
		recs = append(recs, &task)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tasks: %w", err)
	}
	return recs, nil
}

func scanGroup(row *sql.Row) (*model.Group, error) {
	var group model.Group
	var color sql.NullString
	var createdAt, updatedAt string

	err := row.Scan(&group.ID, &group.UserID, &group.Name, &color,
		&group.Position, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	group.Color = color.String
	group.CreatedAt = parseTime(createdAt)
	group.UpdatedAt = parseTime(updatedAt)
	return &group, nil
}

func scanGroups(rows *sql.Rows) ([]model.Record, error) {
	var recs []model.Record
	for rows.Next() {
		var group model.Group
		var color sql.NullString
		var createdAt, updatedAt string

		err := rows.Scan(&group.ID, &group.UserID, &group.Name, &color,
			&group.Position, &createdAt, &updatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan group: %w", err)
		}

		group.Color = color.String
		group.CreatedAt = parseTime(createdAt)
		group.UpdatedAt = parseTime(updatedAt)
		recs = append(recs, &group)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating groups: %w", err)
	}
	return recs, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
