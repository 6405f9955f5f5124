package app

import (
	"fmt"
	"sync"
	"time"

	"classroom-competition/internal/clock"
	"classroom-competition/internal/domain"
)

const (
	tickInterval = time.Second
	// maxDurationSeconds caps both the configured duration and the remaining time.
	maxDurationSeconds = 60 * 60
)

// countdown decrements the remaining competition time once per second. It shares
// the competition lock; methods ending in Locked expect it to be held.
type countdown struct {
	lock     sync.Locker
	clock    clock.Clock
	onChange func()

	task      clock.Task
	gen       uint64
	running   bool
	duration  int
	remaining int
}

func newCountdown(lock sync.Locker, clk clock.Clock, onChange func()) *countdown {
	return &countdown{lock: lock, clock: clk, onChange: onChange}
}

// startLocked is a no-op when the countdown is already running.
func (c *countdown) startLocked(minutes int) {
	if c.running {
		return
	}
	c.running = true
	c.duration = minutes * 60
	c.remaining = c.duration
	c.scheduleLocked()
}

func (c *countdown) stopLocked() {
	c.gen++
	if c.task != nil {
		c.task.Stop()
		c.task = nil
	}
	c.running = false
	c.remaining = 0
}

// extendLocked adds minutes without letting the configured duration or the
// remaining time exceed one hour. It returns the new remaining seconds.
func (c *countdown) extendLocked(minutes int) (int, error) {
	if !c.running {
		return 0, domain.ErrSessionNotRunning
	}
	if minutes <= 0 {
		return c.remaining, nil
	}
	added := min(minutes*60, maxDurationSeconds-c.duration)
	if added <= 0 {
		return c.remaining, nil
	}
	c.duration += added
	c.remaining = min(c.remaining+added, maxDurationSeconds)
	if c.task == nil {
		c.scheduleLocked()
	}
	return c.remaining, nil
}

func (c *countdown) scheduleLocked() {
	gen := c.gen
	c.task = c.clock.AfterFunc(tickInterval, func() { c.tick(gen) })
}

func (c *countdown) tick(gen uint64) {
	c.lock.Lock()
	defer c.lock.Unlock()
	if !c.running || gen != c.gen {
		return
	}

	c.task = nil
	if c.remaining > 0 {
		c.remaining--
	}
	// Pinned at zero; ending the competition is the teacher's call.
	if c.remaining > 0 {
		c.scheduleLocked()
	}
	if c.onChange != nil {
		c.onChange()
	}
}

// FormatRemaining renders seconds as MM:SS.
func FormatRemaining(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%02d:%02d", seconds/60, seconds%60)
}
