// Package timerfake provides a manually advanced timer.Scheduler for tests.
package timerfake

import (
	"sort"
	"sync"
	"time"

	"go-academic-portal/internal/timer"
)

type Timer struct {
	s       *Scheduler
	Delay   time.Duration
	fireAt  time.Duration
	seq     int
	f       func()
	stopped bool
	fired   bool
}

func (t *Timer) Stop() bool {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

// Scheduler fires callbacks only when Advance moves its clock past them.
type Scheduler struct {
	mu     sync.Mutex
	now    time.Duration
	seq    int
	timers []*Timer
}

var _ timer.Scheduler = (*Scheduler)(nil)

func New() *Scheduler {
	return &Scheduler{}
}

func (s *Scheduler) AfterFunc(d time.Duration, f func()) timer.Timer {
	s.mu.Lock()
	defer s.mu.Unlock()

	if d < 0 {
		d = 0
	}
	s.seq++
	t := &Timer{s: s, Delay: d, fireAt: s.now + d, seq: s.seq, f: f}
	s.timers = append(s.timers, t)
	return t
}

// Advance moves the clock forward by d and runs every due callback in
// deadline order, on the calling goroutine.
func (s *Scheduler) Advance(d time.Duration) {
	s.mu.Lock()
	target := s.now + d
	s.mu.Unlock()

	for {
		s.mu.Lock()
		next := s.nextDueLocked(target)
		if next == nil {
			s.now = target
			s.mu.Unlock()
			return
		}
		s.now = next.fireAt
		next.fired = true
		s.mu.Unlock()

		next.f()
	}
}

func (s *Scheduler) nextDueLocked(target time.Duration) *Timer {
	var due *Timer
	for _, t := range s.timers {
		if t.stopped || t.fired || t.fireAt > target {
			continue
		}
		if due == nil || t.fireAt < due.fireAt || (t.fireAt == due.fireAt && t.seq < due.seq) {
			due = t
		}
	}
	return due
}

// Pending lists timers that are neither stopped nor fired, in the order
// they were scheduled.
func (s *Scheduler) Pending() []*Timer {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*Timer, 0, len(s.timers))
	for _, t := range s.timers {
		if !t.stopped && !t.fired {
			out = append(out, t)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].seq < out[j].seq })
	return out
}

// PendingDelays returns the original delays of the pending timers.
func (s *Scheduler) PendingDelays() []time.Duration {
	pending := s.Pending()
	out := make([]time.Duration, 0, len(pending))
	for _, t := range pending {
		out = append(out, t.Delay)
	}
	return out
}

// Now is the elapsed fake time.
func (s *Scheduler) Now() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now
}
