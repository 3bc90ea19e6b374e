// Command habits is an offline-first habit and task tracker.
//
// All data lives in a local SQLite database and is usable with no
// network at all. After `habits login`, a background sync layer
// replicates changes to the habits backend and merges remote changes
// back, so several devices can share one account.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/DanielZivko/daily-habits/internal/config"
	"github.com/DanielZivko/daily-habits/internal/store"
	syncpkg "github.com/DanielZivko/daily-habits/internal/sync"
)

var rootCmd = &cobra.Command{
	Use:   "habits",
	Short: "Offline-first habit and task tracker",
	Long: `Daily Habits: track tasks and habits locally, sync in the background.

Data is stored in a local SQLite database (~/.habits/habits.db) and every
command works fully offline. Once logged in, local changes are queued and
pushed to the remote service whenever the network allows, and remote
changes from other devices are pulled and merged back.`,
	SilenceUsage: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// fatal prints the error and exits, for failures outside cobra's
// RunE flow.
func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}

// openEnv loads config and opens the local store with its schema
// ready. Callers must Close the returned store.
func openEnv() (*config.Config, *store.Store, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}

	st, err := store.Open(cfg.DatabasePath)
	if err != nil {
		return nil, nil, err
	}
	if err := st.InitSchema(context.Background()); err != nil {
		_ = st.Close()
		return nil, nil, err
	}
	return cfg, st, nil
}

// openUserEnv is openEnv plus change capture, for commands that mutate
// local data. Every CLI invocation is its own process, so each one must
// register capture itself; otherwise its writes would commit without
// outbound queue entries and never sync. The daemon registers capture
// through the orchestrator instead and keeps using openEnv.
func openUserEnv() (*config.Config, *store.Store, error) {
	cfg, st, err := openEnv()
	if err != nil {
		return nil, nil, err
	}
	syncpkg.NewCapture(st, nil)
	return cfg, st, nil
}

// shortID returns a display prefix of a primary key. Keys are opaque
// client-generated strings and may be shorter than the prefix.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// currentUser returns the identifier local records are owned by: the
// logged-in user, or "local" before any login.
func currentUser(cfg *config.Config) string {
	if cfg.UserID != "" {
		return cfg.UserID
	}
	return "local"
}
