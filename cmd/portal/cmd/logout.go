package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"go-academic-portal/internal/app"
)

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the stored session",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := app.New(cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.Store().Clear(); err != nil {
			return fmt.Errorf("failed to clear session: %w", err)
		}

		fmt.Fprintln(cmd.OutOrStdout(), "Signed out.")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(logoutCmd)
}
