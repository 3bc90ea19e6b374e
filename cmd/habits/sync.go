package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/DanielZivko/daily-habits/internal/remote"
	"github.com/DanielZivko/daily-habits/internal/store"
	syncpkg "github.com/DanielZivko/daily-habits/internal/sync"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Background synchronization",
}

var syncStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show sync queue and timestamps",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, st, err := openEnv()
		if err != nil {
			fatal("%v", err)
		}
		defer st.Close()

		ctx := context.Background()
		userID := currentUser(cfg)

		pending, err := st.PendingCount(ctx, userID)
		if err != nil {
			fatal("%v", err)
		}
		lastDrain, err := st.GetSyncState(ctx, userID, store.StateLastDrainAt)
		if err != nil {
			fatal("%v", err)
		}
		lastPull, err := st.GetSyncState(ctx, userID, store.StateLastPullAt)
		if err != nil {
			fatal("%v", err)
		}

		fmt.Printf("User:          %s\n", userID)
		fmt.Printf("Database:      %s\n", st.Path())
		fmt.Printf("Pending queue: %d change(s)\n", pending)
		fmt.Printf("Last drain:    %s\n", orNever(lastDrain))
		fmt.Printf("Last pull:     %s\n", orNever(lastPull))
		if cfg.UserID == "" {
			fmt.Println("\nNot logged in; changes stay queued locally until 'habits login'.")
		}
	},
}

var syncNowCmd = &cobra.Command{
	Use:   "now",
	Short: "Drain the queue and pull once, then exit",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, st, err := openEnv()
		if err != nil {
			fatal("%v", err)
		}
		defer st.Close()

		if cfg.UserID == "" || cfg.RemoteURL == "" {
			fatal("not logged in; run 'habits login' first")
		}

		ctx := context.Background()
		client := remote.New(remote.Config{BaseURL: cfg.RemoteURL, APIKey: cfg.APIKey})

		processor := syncpkg.NewProcessor(st, client, nil)
		if err := processor.Drain(ctx, cfg.UserID); err != nil {
			fatal("drain failed: %v", err)
		}

		puller := syncpkg.NewPuller(st, client, nil)
		if err := puller.Pull(ctx, cfg.UserID); err != nil {
			fatal("pull failed: %v", err)
		}

		pending, _ := st.PendingCount(ctx, cfg.UserID)
		fmt.Printf("Sync complete; %d change(s) still queued\n", pending)
	},
}

var syncDaemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run the sync engine in the foreground",
	Long: `Run the full sync engine until interrupted.

The daemon subscribes to the realtime channel, pulls the remote snapshot,
drains the outbound queue on a timer and on every local change, and
monitors connectivity so a reconnect flushes pending changes before
pulling. Logs go to the configured log file (rotated) or stderr.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, st, err := openEnv()
		if err != nil {
			fatal("%v", err)
		}
		defer st.Close()

		if cfg.UserID == "" || cfg.RemoteURL == "" {
			fatal("not logged in; run 'habits login' first")
		}

		logger := log.New(os.Stderr, "[habits] ", log.LstdFlags)
		if cfg.LogFile != "" {
			logger.SetOutput(&lumberjack.Logger{
				Filename:   cfg.LogFile,
				MaxSize:    10, // megabytes
				MaxBackups: 3,
				MaxAge:     30, // days
			})
		}

		client := remote.New(remote.Config{BaseURL: cfg.RemoteURL, APIKey: cfg.APIKey, Logger: logger})

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		monitor := syncpkg.NewMonitor(client.Health, cfg.ProbeInterval, logger)
		monitor.Start(ctx)
		defer monitor.Stop()

		orch := syncpkg.NewOrchestrator(st, client, monitor, syncpkg.Options{
			DrainInterval: cfg.SyncInterval,
			Logger:        logger,
		})
		if err := orch.Start(ctx, cfg.UserID); err != nil {
			fatal("%v", err)
		}

		fmt.Printf("Sync daemon running for %s (Ctrl-C to stop)\n", cfg.UserID)
		<-ctx.Done()
		orch.Stop()
	},
}

func orNever(s string) string {
	if s == "" {
		return "never"
	}
	return s
}

func init() {
	syncCmd.AddCommand(syncStatusCmd, syncNowCmd, syncDaemonCmd)
	rootCmd.AddCommand(syncCmd)
}
