// Package clock abstracts wall time and delayed callbacks so that countdowns and
// simulated progress can run on real timers in production and on a manually
// advanced clock in tests.
package clock

import (
	"sort"
	"sync"
	"time"
)

// Task is a pending callback that can be canceled.
type Task interface {
	// Stop prevents the callback from firing if it has not started yet.
	Stop() bool
}

// Clock tells time and schedules callbacks.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Task
}

// Real is backed by the time package.
type Real struct{}

func (Real) Now() time.Time { return time.Now() }

func (Real) AfterFunc(d time.Duration, f func()) Task {
	return time.AfterFunc(d, f)
}

// Manual only moves when Advance is called. Callbacks run synchronously on the
// goroutine calling Advance, in due order.
type Manual struct {
	mu    sync.Mutex
	now   time.Time
	seq   int
	tasks []*manualTask
}

type manualTask struct {
	clock   *Manual
	due     time.Time
	seq     int
	f       func()
	stopped bool
}

func (t *manualTask) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if t.stopped {
		return false
	}
	t.stopped = true
	for i, pending := range t.clock.tasks {
		if pending == t {
			t.clock.tasks = append(t.clock.tasks[:i], t.clock.tasks[i+1:]...)
			return true
		}
	}
	return false
}

// NewManual returns a clock frozen at start.
func NewManual(start time.Time) *Manual {
	return &Manual{now: start}
}

func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

func (m *Manual) AfterFunc(d time.Duration, f func()) Task {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	t := &manualTask{clock: m, due: m.now.Add(d), seq: m.seq, f: f}
	m.tasks = append(m.tasks, t)
	sort.SliceStable(m.tasks, func(i, j int) bool {
		if !m.tasks[i].due.Equal(m.tasks[j].due) {
			return m.tasks[i].due.Before(m.tasks[j].due)
		}
		return m.tasks[i].seq < m.tasks[j].seq
	})
	return t
}

// Advance moves the clock forward by d, firing every callback that becomes due,
// including callbacks scheduled by callbacks fired during this call.
func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	target := m.now.Add(d)
	m.mu.Unlock()

	for {
		m.mu.Lock()
		if len(m.tasks) == 0 || m.tasks[0].due.After(target) {
			m.now = target
			m.mu.Unlock()
			return
		}
		next := m.tasks[0]
		m.tasks = m.tasks[1:]
		next.stopped = true
		m.now = next.due
		m.mu.Unlock()

		next.f()
	}
}

// Pending reports how many callbacks are scheduled.
func (m *Manual) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tasks)
}
