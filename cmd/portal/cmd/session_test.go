package cmd

import (
	"bufio"
	"bytes"
	"context"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-academic-portal/internal/app"
	"go-academic-portal/internal/config"
	"go-academic-portal/internal/timer/timerfake"
)

func newTestApp(t *testing.T) (*app.App, *timerfake.Scheduler) {
	t.Helper()

	c := &config.Config{
		APIKey:               "dev-key",
		RequestTimeout:       5 * time.Second,
		SessionFile:          filepath.Join(t.TempDir(), "session.db"),
		DefaultTokenDuration: 15 * time.Second,
		MockPort:             "0",
		MockJWTSecret:        "test-secret",
		MockAccessTTL:        15 * time.Second,
		MockRefreshTTL:       time.Hour,
		MockBcryptCost:       4,
		AuthRateLimitRPM:     1000,
	}

	server, err := app.NewMockServer(c)
	require.NoError(t, err)
	backend := httptest.NewServer(server.Handler)
	t.Cleanup(backend.Close)
	c.APIBaseURL = backend.URL

	sched := timerfake.New()
	a, err := app.New(c, app.WithScheduler(sched))
	require.NoError(t, err)
	t.Cleanup(a.Close)

	require.NoError(t, a.Controller().Init(context.Background()))
	return a, sched
}

func TestReplCommandsUntilLogout(t *testing.T) {
	a, _ := newTestApp(t)
	events, unsubscribe := a.Events().Subscribe()
	defer unsubscribe()

	_, err := a.Controller().Login(context.Background(), "ana@portal.edu", "ana123")
	require.NoError(t, err)

	lines := make(chan string, 4)
	lines <- "role docente"
	lines <- "status"
	lines <- "role rector"
	lines <- "logout"

	var out bytes.Buffer
	r := &repl{ctrl: a.Controller(), out: &out}
	require.NoError(t, r.run(context.Background(), lines, events, nil))

	text := out.String()
	assert.Contains(t, text, "Active role: docente")
	assert.Contains(t, text, "Signed in as Ana Ruiz <ana@portal.edu>")
	assert.Contains(t, text, `You do not hold the role "rector".`)
	assert.Contains(t, text, "Signed out.")
	assert.True(t, a.Store().Load().Empty())
}

func TestReplWarningCountdownAndExpiry(t *testing.T) {
	a, sched := newTestApp(t)
	events, unsubscribe := a.Events().Subscribe()
	defer unsubscribe()

	ctrl := a.Controller()
	_, err := ctrl.Login(context.Background(), "docente@portal.edu", "docente123")
	require.NoError(t, err)

	var out bytes.Buffer
	r := &repl{ctrl: ctrl, out: &out}

	sched.Advance(9 * time.Second)
	require.True(t, ctrl.WarningActive())
	r.printCountdown()
	assert.Contains(t, out.String(), "Expires in 6s")

	sched.Advance(6 * time.Second)
	require.NoError(t, r.run(context.Background(), nil, events, nil))

	text := out.String()
	assert.Contains(t, text, "about to expire")
	assert.Contains(t, text, "Session expired (timeout)")
}

func TestReplQuitKeepsSession(t *testing.T) {
	a, _ := newTestApp(t)

	_, err := a.Controller().Login(context.Background(), "estudiante@portal.edu", "estudiante123")
	require.NoError(t, err)

	lines := make(chan string, 2)
	lines <- ""
	lines <- "quit"

	var out bytes.Buffer
	r := &repl{ctrl: a.Controller(), out: &out}
	require.NoError(t, r.run(context.Background(), lines, nil, nil))

	assert.False(t, a.Store().Load().Empty())
}

func TestCredentialsPromptsForMissingValues(t *testing.T) {
	in := bufio.NewScanner(strings.NewReader(" ana@portal.edu \nana123\n"))
	var out bytes.Buffer

	email, password, err := credentials(in, &out)
	require.NoError(t, err)
	assert.Equal(t, "ana@portal.edu", email)
	assert.Equal(t, "ana123", password)
	assert.Contains(t, out.String(), "Email: ")

	_, _, err = credentials(bufio.NewScanner(strings.NewReader("")), &out)
	require.Error(t, err)
}
