// Package cmd provides the CLI commands for the academic portal client.
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"go-academic-portal/internal/config"
	"go-academic-portal/internal/logger"
)

var (
	apiURL      string
	sessionFile string
	logLevel    string
	plainLogs   bool

	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "portal",
	Short: "Academic portal session client",
	Long: `portal signs a user in to the academic portal backend, keeps the
session alive across restarts and warns before the access token expires.

Configuration is read from the environment and an optional .env file.
Flags override the matching environment variables.

Commands:
  session     Sign in (or restore the stored session) and keep it open
  status      Show the stored session
  logout      Forget the stored session
  mockapi     Run the development auth backend`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		if apiURL != "" {
			loaded.APIBaseURL = apiURL
		}
		if sessionFile != "" {
			loaded.SessionFile = sessionFile
		}
		if logLevel != "" {
			loaded.LogLevel = logLevel
		}
		if err := loaded.Validate(); err != nil {
			return err
		}

		slog.SetDefault(logger.New(os.Stderr, loaded.LogLevel, plainLogs))
		cfg = loaded
		return nil
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", "", "auth backend base URL (default: $API_BASE_URL)")
	rootCmd.PersistentFlags().StringVar(&sessionFile, "session-file", "", "session file path (default: $SESSION_FILE)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "debug, info, warn or error (default: $LOG_LEVEL)")
	rootCmd.PersistentFlags().BoolVar(&plainLogs, "plain", false, "disable colored log output")
}
