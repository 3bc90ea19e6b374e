package main

import (
	"context"
	"testing"

	"github.com/DanielZivko/daily-habits/internal/model"
	"github.com/DanielZivko/daily-habits/internal/store"
)

// TestUserEnvCapturesMutations verifies that the environment the
// mutating commands run in enqueues every local write. Each CLI
// invocation is a fresh process, so capture has to be wired here, not
// only in the daemon.
func TestUserEnvCapturesMutations(t *testing.T) {
	t.Setenv("HABITS_DIR", t.TempDir())

	cfg, st, err := openUserEnv()
	if err != nil {
		t.Fatalf("openUserEnv failed: %v", err)
	}
	defer st.Close()

	ctx := context.Background()
	userID := currentUser(cfg)

	task := &model.Task{Title: "Drink water", UserID: userID}
	task.SetDefaults()
	if err := st.Put(ctx, store.TableTasks, task); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	pending, err := st.PendingCount(ctx, userID)
	if err != nil {
		t.Fatalf("PendingCount failed: %v", err)
	}
	if pending != 1 {
		t.Fatalf("pending = %d after a local create, want 1", pending)
	}

	if err := st.Delete(ctx, store.TableTasks, task.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	pending, _ = st.PendingCount(ctx, userID)
	if pending != 2 {
		t.Errorf("pending = %d after create+delete, want 2", pending)
	}
}

// TestPlainEnvDoesNotCapture pins the daemon's environment: it gets its
// capture hook from the orchestrator, so openEnv itself must not add
// one or every mutation there would be enqueued twice.
func TestPlainEnvDoesNotCapture(t *testing.T) {
	t.Setenv("HABITS_DIR", t.TempDir())

	cfg, st, err := openEnv()
	if err != nil {
		t.Fatalf("openEnv failed: %v", err)
	}
	defer st.Close()

	ctx := context.Background()
	task := &model.Task{Title: "Uncaptured", UserID: currentUser(cfg)}
	task.SetDefaults()
	if err := st.Put(ctx, store.TableTasks, task); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	pending, _ := st.PendingCount(ctx, currentUser(cfg))
	if pending != 0 {
		t.Errorf("pending = %d from plain env, want 0", pending)
	}
}

func TestShortID(t *testing.T) {
	cases := []struct {
		id   string
		want string
	}{
		{"", ""},
		{"t1", "t1"},
		{"abcdefgh", "abcdefgh"},
		{"0f8fad5b-d9cb-469f-a165-70867728950e", "0f8fad5b"},
	}
	for _, tc := range cases {
		if got := shortID(tc.id); got != tc.want {
			t.Errorf("shortID(%q) = %q, want %q", tc.id, got, tc.want)
		}
	}
}
