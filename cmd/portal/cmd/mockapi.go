package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/spf13/cobra"

	"go-academic-portal/internal/app"
	"go-academic-portal/internal/mockapi"
)

var mockPort string

var mockapiCmd = &cobra.Command{
	Use:   "mockapi",
	Short: "Run the development auth backend",
	Long: `mockapi serves /api/auth/login, /api/auth/verify and /api/auth/refresh
with the same response shapes as the portal backend. Without MOCK_USERS_FILE
it serves the built-in demo accounts.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if mockPort != "" {
			cfg.MockPort = mockPort
		}

		server, err := app.NewMockServer(cfg)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if cfg.MockUsersFile == "" {
			creds := mockapi.DemoCredentials()
			emails := make([]string, 0, len(creds))
			for email := range creds {
				emails = append(emails, email)
			}
			sort.Strings(emails)

			fmt.Fprintln(out, "Demo accounts:")
			for _, email := range emails {
				fmt.Fprintf(out, "  %-24s %s\n", email, creds[email])
			}
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return app.Serve(ctx, server)
	},
}

func init() {
	rootCmd.AddCommand(mockapiCmd)
	mockapiCmd.Flags().StringVarP(&mockPort, "port", "p", "", "port to listen on (default: $MOCK_PORT)")
}
