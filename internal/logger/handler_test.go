package logger

import (
	"bytes"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPrettyHandlerPlainOutput(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := New(&buf, "debug", true).With("component", "session").WithGroup("timer")

	log.Debug("timers scheduled", "warning_in", 9*time.Second, "expiry_in", 15*time.Second)

	out := buf.String()
	require.Contains(t, out, "DEBUG timers scheduled")
	require.Contains(t, out, " component=session")
	require.Contains(t, out, " timer.warning_in=9s")
	require.Contains(t, out, " timer.expiry_in=15s")
	require.NotContains(t, out, "\033[")
}

func TestPrettyHandlerLevelFilter(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := New(&buf, "warn", true)

	log.Info("hidden")
	log.Warn("shown")

	require.NotContains(t, buf.String(), "hidden")
	require.Contains(t, buf.String(), "WARN  shown")
}

func TestParseLevel(t *testing.T) {
	t.Parallel()

	require.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	require.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	require.Equal(t, slog.LevelError, ParseLevel(" error "))
	require.Equal(t, slog.LevelInfo, ParseLevel("verbose"))
}
