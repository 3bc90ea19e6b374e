// Package model defines the entities tracked by daily-habits: tasks and
// the groups that organize them.
//
// Both entities carry client-generated string primary keys and an owning
// user identifier. Keys are assigned at creation time on the device and
// are never renamed by synchronization; the remote service stores them
// verbatim. Conflict resolution across devices is last-write-wins at the
// record level, so the UpdatedAt timestamp is maintained on every local
// mutation.
package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Record is implemented by every synchronized entity. The sync layer
// operates on records generically: it needs the primary key to address
// rows on both sides and the owner to scope remote operations.
type Record interface {
	PrimaryKey() string
	Owner() string
}

// Task is a single habit or todo item.
type Task struct {
	ID     string `json:"id"`
	UserID string `json:"userId"`

	Title   string `json:"title"`
	Notes   string `json:"notes,omitempty"`
	GroupID string `json:"groupId,omitempty"`

	Done   bool       `json:"done"`
	DoneAt *time.Time `json:"doneAt,omitempty"`
	DueAt  *time.Time `json:"dueAt,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// PrimaryKey implements Record.
func (t *Task) PrimaryKey() string { return t.ID }

// Owner implements Record.
func (t *Task) Owner() string { return t.UserID }

// Validate checks that the task has valid field values.
func (t *Task) Validate() error {
	if t.ID == "" {
		return fmt.Errorf("id is required")
	}
	if t.UserID == "" {
		return fmt.Errorf("userId is required")
	}
	if t.Title == "" {
		return fmt.Errorf("title is required")
	}
	if len(t.Title) > 500 {
		return fmt.Errorf("title must be 500 characters or less (got %d)", len(t.Title))
	}
	if t.CreatedAt.IsZero() {
		return fmt.Errorf("createdAt is required")
	}
	if t.UpdatedAt.IsZero() {
		return fmt.Errorf("updatedAt is required")
	}
	return nil
}

// SetDefaults applies default values for optional fields.
func (t *Task) SetDefaults() {
	if t.ID == "" {
		t.ID = NewID()
	}
	now := time.Now().UTC()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	if t.UpdatedAt.IsZero() {
		t.UpdatedAt = now
	}
}

// Touch sets UpdatedAt to the current time. Call on every field change;
// last-write-wins reconciliation depends on it.
func (t *Task) Touch() {
	t.UpdatedAt = time.Now().UTC()
}

// Group is a named collection of tasks.
type Group struct {
	ID     string `json:"id"`
	UserID string `json:"userId"`

	Name     string `json:"name"`
	Color    string `json:"color,omitempty"`
	Position int    `json:"position"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// PrimaryKey implements Record.
func (g *Group) PrimaryKey() string { return g.ID }

// Owner implements Record.
func (g *Group) Owner() string { return g.UserID }

// Validate checks that the group has valid field values.
func (g *Group) Validate() error {
	if g.ID == "" {
		return fmt.Errorf("id is required")
	}
	if g.UserID == "" {
		return fmt.Errorf("userId is required")
	}
	if g.Name == "" {
		return fmt.Errorf("name is required")
	}
	if len(g.Name) > 200 {
		return fmt.Errorf("name must be 200 characters or less (got %d)", len(g.Name))
	}
	if g.CreatedAt.IsZero() {
		return fmt.Errorf("createdAt is required")
	}
	if g.UpdatedAt.IsZero() {
		return fmt.Errorf("updatedAt is required")
	}
	return nil
}

// SetDefaults applies default values for optional fields.
func (g *Group) SetDefaults() {
	if g.ID == "" {
		g.ID = NewID()
	}
	now := time.Now().UTC()
	if g.CreatedAt.IsZero() {
		g.CreatedAt = now
	}
	if g.UpdatedAt.IsZero() {
		g.UpdatedAt = now
	}
}

// Touch sets UpdatedAt to the current time.
func (g *Group) Touch() {
	g.UpdatedAt = time.Now().UTC()
}

// NewID returns a fresh client-generated primary key.
func NewID() string {
	return uuid.NewString()
}
