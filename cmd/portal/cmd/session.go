package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"go-academic-portal/internal/app"
	"go-academic-portal/internal/event"
	"go-academic-portal/internal/session"
)

var (
	loginEmail    string
	loginPassword string
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Sign in (or restore the stored session) and keep it open",
	Long: `session restores the stored session or signs in, then waits for
commands. Before the access token expires it prints a countdown; type
"continue" to refresh the token.

Commands inside the session:
  continue       refresh the access token
  role [name]    list roles or switch the active role
  status         show the signed-in user
  logout         end the session and forget the stored tokens
  quit           leave, keeping the stored session`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := app.New(cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		events, unsubscribe := a.Events().Subscribe()
		defer unsubscribe()

		if cfg.MetricsAddr != "" {
			go serveMetrics(ctx, cfg.MetricsAddr, a.MetricsHandler())
		}

		ctrl := a.Controller()
		if err := ctrl.Init(ctx); err != nil {
			return err
		}

		in := bufio.NewScanner(cmd.InOrStdin())
		out := cmd.OutOrStdout()

		if !ctrl.IsAuthenticated() {
			email, password, err := credentials(in, out)
			if err != nil {
				return err
			}
			if _, err := ctrl.Login(ctx, email, password); err != nil {
				return fmt.Errorf("login failed: %w", err)
			}
		}
		printSession(out, ctrl.Snapshot())

		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()

		r := &repl{ctrl: ctrl, out: out}
		return r.run(ctx, readLines(in), events, ticker.C)
	},
}

func credentials(in *bufio.Scanner, out io.Writer) (string, string, error) {
	email, password := loginEmail, loginPassword
	if email == "" {
		fmt.Fprint(out, "Email: ")
		if !in.Scan() {
			return "", "", errors.New("no email given")
		}
		email = strings.TrimSpace(in.Text())
	}
	if password == "" {
		fmt.Fprint(out, "Password: ")
		if !in.Scan() {
			return "", "", errors.New("no password given")
		}
		password = in.Text()
	}
	return email, password, nil
}

func readLines(in *bufio.Scanner) <-chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)
		for in.Scan() {
			lines <- in.Text()
		}
	}()
	return lines
}

func serveMetrics(ctx context.Context, addr string, handler http.Handler) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", handler)

	server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	if err := app.Serve(ctx, server); err != nil {
		slog.Error("metrics server failed", "addr", addr, "error", err)
	}
}

// repl drives one interactive session until the user leaves, logs out or
// the session expires.
type repl struct {
	ctrl      *session.Controller
	out       io.Writer
	countdown int
}

func (r *repl) run(ctx context.Context, lines <-chan string, events <-chan event.Event, tick <-chan time.Time) error {
	fmt.Fprintln(r.out, `Type "help" for commands.`)

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if done := r.handleEvent(ev); done {
				return nil
			}

		case <-tick:
			r.printCountdown()

		case line, ok := <-lines:
			if !ok {
				return nil
			}
			done, err := r.handleCommand(ctx, line)
			if err != nil || done {
				return err
			}
		}
	}
}

func (r *repl) handleEvent(ev event.Event) bool {
	switch ev.Type {
	case event.TypeSessionWarning:
		r.countdown = 0
		fmt.Fprintln(r.out, `Your session is about to expire. Type "continue" to stay signed in.`)
		r.printCountdown()
	case event.TypeSessionRefreshed:
		r.countdown = 0
		fmt.Fprintf(r.out, "Session extended for %s.\n", r.ctrl.TokenDuration())
	case event.TypeSessionExpired:
		reason := ""
		if p, ok := ev.Payload.(event.ExpiredPayload); ok {
			reason = p.Reason
		}
		fmt.Fprintf(r.out, "Session expired (%s). Sign in again to continue.\n", reason)
		return true
	case event.TypeSessionEnded:
		fmt.Fprintln(r.out, "Signed out.")
		return true
	case event.TypeRoleSwitched:
		if p, ok := ev.Payload.(event.RolePayload); ok {
			fmt.Fprintf(r.out, "Active role: %s\n", p.To)
		}
	}
	return false
}

func (r *repl) printCountdown() {
	if !r.ctrl.WarningActive() {
		return
	}
	seconds := r.ctrl.RemainingWarningSeconds()
	if seconds == r.countdown {
		return
	}
	r.countdown = seconds
	fmt.Fprintf(r.out, "Expires in %ds\n", seconds)
}

func (r *repl) handleCommand(ctx context.Context, line string) (bool, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false, nil
	}

	switch strings.ToLower(fields[0]) {
	case "continue", "c":
		if err := r.ctrl.ContinueSession(ctx); err != nil {
			fmt.Fprintf(r.out, "Could not extend the session: %v\n", err)
		}
	case "role":
		if len(fields) < 2 {
			printSession(r.out, r.ctrl.Snapshot())
			return false, nil
		}
		if !r.ctrl.SwitchRole(fields[1]) {
			fmt.Fprintf(r.out, "You do not hold the role %q.\n", fields[1])
		}
	case "status":
		printSession(r.out, r.ctrl.Snapshot())
	case "logout":
		r.ctrl.Logout()
	case "quit", "exit":
		return true, nil
	case "help":
		fmt.Fprintln(r.out, "Commands: continue, role [name], status, logout, quit")
	default:
		fmt.Fprintf(r.out, "Unknown command %q.\n", fields[0])
	}
	return false, nil
}

func init() {
	rootCmd.AddCommand(sessionCmd)
	sessionCmd.Flags().StringVarP(&loginEmail, "email", "e", "", "email to sign in with")
	sessionCmd.Flags().StringVar(&loginPassword, "password", "", "password (prompted when omitted)")
}
