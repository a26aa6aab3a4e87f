package timer_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"go-academic-portal/internal/timer"
	"go-academic-portal/internal/timer/timerfake"
)

type recorder struct {
	mu       sync.Mutex
	warnings []uint64
	expiries []uint64
}

func (r *recorder) warn(gen uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.warnings = append(r.warnings, gen)
}

func (r *recorder) expire(gen uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.expiries = append(r.expiries, gen)
}

func (r *recorder) counts() (int, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.warnings), len(r.expiries)
}

func newFakeEngine() (*timer.Engine, *timerfake.Scheduler, *recorder) {
	sched := timerfake.New()
	rec := &recorder{}
	return timer.New(rec.warn, rec.expire, timer.WithScheduler(sched)), sched, rec
}

func TestWarningWindow(t *testing.T) {
	t.Parallel()

	cases := []struct {
		duration time.Duration
		want     time.Duration
	}{
		{15 * time.Second, 6 * time.Second},
		{100 * time.Second, 40 * time.Second},
		{150 * time.Second, 60 * time.Second},
		{15 * time.Minute, 60 * time.Second},
		{time.Millisecond, 400 * time.Microsecond},
		{0, 0},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, timer.WarningWindow(tc.duration), "duration %s", tc.duration)
	}
}

func TestEngineStartSchedulesPair(t *testing.T) {
	t.Parallel()

	engine, sched, rec := newFakeEngine()
	engine.Start(15 * time.Second)

	require.Equal(t, []time.Duration{9 * time.Second, 15 * time.Second}, sched.PendingDelays())
	require.Equal(t, 6*time.Second, engine.Window())
	require.True(t, engine.Active())

	sched.Advance(9*time.Second - time.Millisecond)
	warnings, expiries := rec.counts()
	require.Zero(t, warnings)
	require.Zero(t, expiries)

	sched.Advance(time.Millisecond)
	warnings, expiries = rec.counts()
	require.Equal(t, 1, warnings)
	require.Zero(t, expiries)

	sched.Advance(6 * time.Second)
	warnings, expiries = rec.counts()
	require.Equal(t, 1, warnings)
	require.Equal(t, 1, expiries)
}

func TestEngineRestartReplacesPair(t *testing.T) {
	t.Parallel()

	engine, sched, rec := newFakeEngine()
	first := engine.Start(15 * time.Second)
	second := engine.Start(100 * time.Second)

	require.NotEqual(t, first, second)
	require.False(t, engine.Current(first))
	require.True(t, engine.Current(second))
	require.Equal(t, []time.Duration{60 * time.Second, 100 * time.Second}, sched.PendingDelays())

	sched.Advance(200 * time.Second)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	require.Equal(t, []uint64{second}, rec.warnings)
	require.Equal(t, []uint64{second}, rec.expiries)
}

func TestEngineWarnsImmediatelyWhenInsideWindow(t *testing.T) {
	t.Parallel()

	engine, sched, rec := newFakeEngine()
	engine.StartWithRemaining(3*time.Second, 15*time.Second)

	require.Equal(t, []time.Duration{0, 3 * time.Second}, sched.PendingDelays())
	require.Equal(t, 6*time.Second, engine.Window())

	sched.Advance(0)
	warnings, expiries := rec.counts()
	require.Equal(t, 1, warnings)
	require.Zero(t, expiries)
}

func TestEngineStartWithRemainingUsesFullWindow(t *testing.T) {
	t.Parallel()

	engine, sched, _ := newFakeEngine()
	engine.StartWithRemaining(10*time.Minute, 15*time.Minute)

	require.Equal(t, []time.Duration{9 * time.Minute, 10 * time.Minute}, sched.PendingDelays())

	engine.StartWithRemaining(8*time.Second, 0)
	require.Equal(t, []time.Duration{8*time.Second - 3200*time.Millisecond, 8 * time.Second}, sched.PendingDelays())
}

func TestEngineZeroDurationFiresBoth(t *testing.T) {
	t.Parallel()

	engine, sched, rec := newFakeEngine()
	engine.Start(0)
	sched.Advance(0)

	warnings, expiries := rec.counts()
	require.Equal(t, 1, warnings)
	require.Equal(t, 1, expiries)
}

func TestEngineCancel(t *testing.T) {
	t.Parallel()

	engine, sched, rec := newFakeEngine()
	engine.Cancel()
	require.False(t, engine.Active())

	gen := engine.Start(15 * time.Second)
	engine.Cancel()
	engine.Cancel()
	engine.Teardown()

	require.Empty(t, sched.Pending())
	require.False(t, engine.Current(gen))

	sched.Advance(time.Hour)
	warnings, expiries := rec.counts()
	require.Zero(t, warnings)
	require.Zero(t, expiries)
}

func TestEngineRealScheduler(t *testing.T) {
	defer goleak.VerifyNone(t)

	order := make(chan string, 2)
	engine := timer.New(
		func(uint64) { order <- "warning" },
		func(uint64) { order <- "expire" },
	)

	engine.Start(50 * time.Millisecond)

	for _, want := range []string{"warning", "expire"} {
		select {
		case got := <-order:
			require.Equal(t, want, got)
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for %s", want)
		}
	}
	engine.Teardown()
}

func TestEngineRealSchedulerCancelledPairNeverFires(t *testing.T) {
	defer goleak.VerifyNone(t)

	fired := make(chan struct{}, 2)
	engine := timer.New(
		func(uint64) { fired <- struct{}{} },
		func(uint64) { fired <- struct{}{} },
	)

	engine.Start(20 * time.Millisecond)
	engine.Start(time.Hour)
	engine.Teardown()

	select {
	case <-fired:
		t.Fatal("callback fired after teardown")
	case <-time.After(100 * time.Millisecond):
	}
}
