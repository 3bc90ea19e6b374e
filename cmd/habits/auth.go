package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/DanielZivko/daily-habits/internal/config"
)

var loginURL string

var loginCmd = &cobra.Command{
	Use:   "login <user-id>",
	Short: "Store credentials for background sync",
	Long: `Store the user id and API key used to sync with the remote service.

The API key is prompted without echo. Credentials are written to
~/.habits/config.yaml; run 'habits logout' to remove them.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.Load()
		if err != nil {
			fatal("%v", err)
		}

		if loginURL != "" {
			cfg.RemoteURL = loginURL
		}
		if cfg.RemoteURL == "" {
			fatal("no remote url configured; pass --url")
		}

		fmt.Fprint(os.Stderr, "API key: ")
		keyBytes, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			fatal("failed to read API key: %v", err)
		}
		key := strings.TrimSpace(string(keyBytes))
		if key == "" {
			fatal("API key must not be empty")
		}

		cfg.UserID = args[0]
		cfg.APIKey = key
		if err := config.Save(cfg); err != nil {
			fatal("%v", err)
		}

		fmt.Printf("Logged in as %s. Run 'habits sync daemon' to sync in the background.\n", cfg.UserID)
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Remove stored credentials",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.Load()
		if err != nil {
			fatal("%v", err)
		}

		cfg.UserID = ""
		cfg.APIKey = ""
		if err := config.Save(cfg); err != nil {
			fatal("%v", err)
		}
		fmt.Println("Logged out. Local data is untouched.")
	},
}

func init() {
	loginCmd.Flags().StringVar(&loginURL, "url", "", "remote service base url")
	rootCmd.AddCommand(loginCmd, logoutCmd)
}
