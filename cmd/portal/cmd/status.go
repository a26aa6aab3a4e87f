package cmd

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"go-academic-portal/internal/app"
	"go-academic-portal/internal/model"
)

var verifyStatus bool

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the stored session",
	Long: `status reads the session file without contacting the backend.
With --verify it restores the session the same way "session" does and
prints the signed-in user.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := app.New(cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		out := cmd.OutOrStdout()
		record := a.Store().Load()
		if record.Empty() {
			fmt.Fprintln(out, "No stored session.")
			return nil
		}

		fmt.Fprintf(out, "Token duration: %s\n", record.Duration)
		if remaining := a.Store().Remaining(); remaining > 0 {
			fmt.Fprintf(out, "Expires in:     %s\n", remaining.Round(time.Second))
		} else {
			fmt.Fprintln(out, "Expires in:     expired (a refresh will be attempted)")
		}
		if record.CurrentRole != "" {
			fmt.Fprintf(out, "Active role:    %s\n", record.CurrentRole)
		}

		if !verifyStatus {
			return nil
		}

		ctrl := a.Controller()
		if err := ctrl.Init(cmd.Context()); err != nil {
			return err
		}
		printSession(out, ctrl.Snapshot())
		return nil
	},
}

func printSession(w io.Writer, s model.Session) {
	if !s.IsAuthenticated || s.User == nil {
		fmt.Fprintln(w, "Not signed in.")
		return
	}

	name := s.User.FullName()
	if name == "" {
		name = s.User.Email
	}
	fmt.Fprintf(w, "Signed in as %s <%s>\n", name, s.User.Email)
	for _, r := range s.User.Roles {
		marker := " "
		if r.Name == s.CurrentRole {
			marker = "*"
		}
		fmt.Fprintf(w, "  %s %s\n", marker, r.Name)
	}
	fmt.Fprintf(w, "State: %s, token duration %s\n", s.State, s.TokenDuration)
}

func init() {
	rootCmd.AddCommand(statusCmd)
	statusCmd.Flags().BoolVar(&verifyStatus, "verify", false, "verify the stored session against the backend")
}
