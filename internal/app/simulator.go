package app

import (
	"sync"
	"time"

	"classroom-competition/internal/clock"
	"classroom-competition/internal/domain"
)

const (
	simMinDelay        = 300 * time.Millisecond
	simDelaySpread     = 700 * time.Millisecond
	simDoubleStepOdds  = 0.3
	simCorrectAnswerP  = 0.7
	simMaxPerTickCount = 2
)

// RandomSource is the subset of *rand.Rand the simulator draws from.
type RandomSource interface {
	Intn(n int) int
	Float64() float64
}

// simulator fabricates progress for students that are not connected so the
// leaderboard moves during a competition. It shares the competition lock.
type simulator struct {
	lock     sync.Locker
	clock    clock.Clock
	rnd      RandomSource
	onChange func()

	task     clock.Task
	gen      uint64
	students []*domain.StudentProgress
}

func newSimulator(lock sync.Locker, clk clock.Clock, rnd RandomSource, onChange func()) *simulator {
	return &simulator{lock: lock, clock: clk, rnd: rnd, onChange: onChange}
}

// startLocked replaces any previous simulation with students.
func (s *simulator) startLocked(students []*domain.StudentProgress) {
	s.stopLocked()
	s.students = students
	if s.anyIncompleteLocked() {
		s.scheduleLocked()
	}
}

// stopLocked cancels the pending tick and drops all simulated working state.
func (s *simulator) stopLocked() {
	s.gen++
	if s.task != nil {
		s.task.Stop()
		s.task = nil
	}
	s.students = nil
}

// releaseLocked stops simulating fullName, e.g. once a real student shows up.
func (s *simulator) releaseLocked(fullName string) {
	for i, p := range s.students {
		if p.FullName == fullName {
			s.students = append(s.students[:i:i], s.students[i+1:]...)
			return
		}
	}
}

func (s *simulator) scheduleLocked() {
	gen := s.gen
	delay := simMinDelay + time.Duration(s.rnd.Intn(int(simDelaySpread/time.Millisecond)))*time.Millisecond
	s.task = s.clock.AfterFunc(delay, func() { s.tick(gen) })
}

func (s *simulator) tick(gen uint64) {
	s.lock.Lock()
	defer s.lock.Unlock()
	if gen != s.gen {
		return
	}

	s.task = nil
	s.advanceLocked()
	if s.anyIncompleteLocked() {
		s.scheduleLocked()
	}
	if s.onChange != nil {
		s.onChange()
	}
}

func (s *simulator) advanceLocked() {
	count := 1
	if s.rnd.Float64() < simDoubleStepOdds {
		count = simMaxPerTickCount
	}

	candidates := make([]*domain.StudentProgress, 0, len(s.students))
	for _, p := range s.students {
		if p.Completed < p.TotalQuestions {
			candidates = append(candidates, p)
		}
	}
	if count > len(candidates) {
		count = len(candidates)
	}

	// Partial Fisher-Yates: the first count entries are a sample without replacement.
	for i := 0; i < count; i++ {
		j := i + s.rnd.Intn(len(candidates)-i)
		candidates[i], candidates[j] = candidates[j], candidates[i]
	}

	for _, p := range candidates[:count] {
		p.Completed++
		if s.rnd.Float64() < simCorrectAnswerP {
			p.Correct++
		}
		if p.Completed >= p.TotalQuestions {
			p.IsCompleted = true
		}
	}
}

func (s *simulator) anyIncompleteLocked() bool {
	for _, p := range s.students {
		if p.Completed < p.TotalQuestions {
			return true
		}
	}
	return false
}
