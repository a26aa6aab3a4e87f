// Package timer schedules the warning and expiry callbacks of a session.
// At most one warning/expiry pair is live; scheduling a new pair cancels
// the previous one first.
package timer

import (
	"log/slog"
	"sync"
	"time"
)

const maxWarningWindow = 60 * time.Second

// WarningWindow is how long before expiry the warning fires: 40% of the
// duration, capped at one minute.
func WarningWindow(d time.Duration) time.Duration {
	w := d * 4 / 10
	if w > maxWarningWindow {
		return maxWarningWindow
	}
	return w
}

// Timer is a pending callback that can be stopped.
type Timer interface {
	Stop() bool
}

// Scheduler runs f once after d on its own goroutine.
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Timer
}

type realScheduler struct{}

func (realScheduler) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// RealScheduler is backed by time.AfterFunc.
func RealScheduler() Scheduler {
	return realScheduler{}
}

// Callback receives the generation of the pair that fired. Owners compare
// it with Current to drop callbacks of a pair replaced while in flight.
type Callback func(gen uint64)

type Engine struct {
	mu        sync.Mutex
	scheduler Scheduler
	logger    *slog.Logger
	onWarning Callback
	onExpire  Callback

	warning  Timer
	expiry   Timer
	gen      uint64
	active   bool
	window   time.Duration
	duration time.Duration
}

type Option func(*Engine)

func WithScheduler(s Scheduler) Option {
	return func(e *Engine) {
		e.scheduler = s
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

func New(onWarning Callback, onExpire Callback, opts ...Option) *Engine {
	e := &Engine{
		scheduler: RealScheduler(),
		logger:    slog.Default(),
		onWarning: onWarning,
		onExpire:  onExpire,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Start schedules a fresh pair for a token valid for d.
func (e *Engine) Start(d time.Duration) uint64 {
	return e.schedule(d, d)
}

// StartWithRemaining resumes a session of length total that has remaining
// time left. The warning window is derived from total so the countdown keeps
// its configured length; both delays are relative to remaining.
func (e *Engine) StartWithRemaining(remaining time.Duration, total time.Duration) uint64 {
	if total <= 0 {
		total = remaining
	}
	return e.schedule(remaining, total)
}

func (e *Engine) schedule(remaining time.Duration, total time.Duration) uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.cancelLocked()

	if remaining < 0 {
		remaining = 0
	}

	e.gen++
	gen := e.gen
	e.active = true
	e.duration = total
	e.window = WarningWindow(total)

	warnIn := time.Duration(0)
	if remaining > e.window {
		warnIn = remaining - e.window
	}

	e.warning = e.scheduler.AfterFunc(warnIn, func() { e.fire(gen, e.onWarning) })
	e.expiry = e.scheduler.AfterFunc(remaining, func() { e.fire(gen, e.onExpire) })

	e.logger.Debug("session timers scheduled",
		"generation", gen,
		"warning_in", warnIn,
		"expiry_in", remaining,
		"window", e.window,
	)

	return gen
}

func (e *Engine) fire(gen uint64, cb Callback) {
	if !e.Current(gen) || cb == nil {
		return
	}
	cb(gen)
}

// Cancel stops both pending callbacks. Safe when nothing is scheduled.
func (e *Engine) Cancel() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cancelLocked()
}

// Teardown releases the timers when the owner is disposed.
func (e *Engine) Teardown() {
	e.Cancel()
}

func (e *Engine) cancelLocked() {
	if e.warning != nil {
		e.warning.Stop()
		e.warning = nil
	}
	if e.expiry != nil {
		e.expiry.Stop()
		e.expiry = nil
	}
	if e.active {
		// Invalidate callbacks that already left their timer.
		e.gen++
	}
	e.active = false
}

// Current reports whether gen is the live pair.
func (e *Engine) Current(gen uint64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.active && gen == e.gen
}

func (e *Engine) Active() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.active
}

// Window is the warning window of the live (or last) pair.
func (e *Engine) Window() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.window
}
