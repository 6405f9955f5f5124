package app

import (
	"fmt"
	"log"
	"math/rand"
	"sort"
	"strings"
	"sync"
	"time"

	"classroom-competition/internal/clock"
	"classroom-competition/internal/domain"
)

const maxDurationMinutes = maxDurationSeconds / 60

// StartOptions configures one competition run.
type StartOptions struct {
	Questions       []domain.Question
	DurationMinutes int
	Participants    []domain.Participant
	// Teacher is excluded from the leaderboard.
	Teacher string
	// RealStudents answer for themselves and are never simulated.
	RealStudents []string
}

// Competition is the in-memory state of a classroom's learning competition.
// A single mutex serializes commands, countdown ticks and simulator ticks.
type Competition struct {
	id    string
	clock clock.Clock

	mu           sync.RWMutex
	countdown    *countdown
	simulator    *simulator
	status       domain.Status
	endRequested bool
	teacher      string
	questions    []domain.Question
	order        []string
	participants map[string]*domain.StudentProgress
	answers      map[string]map[domain.QuestionID]string
	cursors      map[string]int
	submitted    map[string]bool
	real         map[string]bool
	results      []domain.StudentProgress
	subscribers  map[chan domain.Snapshot]struct{}
}

// NewCompetition returns an idle competition driven by wall time.
func NewCompetition(id string) *Competition {
	return NewCompetitionWith(id, clock.Real{}, rand.New(rand.NewSource(time.Now().UnixNano())))
}

// NewCompetitionWith allows tests to drive time and randomness.
func NewCompetitionWith(id string, clk clock.Clock, rnd RandomSource) *Competition {
	c := &Competition{
		id:           id,
		clock:        clk,
		status:       domain.StatusIdle,
		participants: make(map[string]*domain.StudentProgress),
		answers:      make(map[string]map[domain.QuestionID]string),
		cursors:      make(map[string]int),
		submitted:    make(map[string]bool),
		real:         make(map[string]bool),
		subscribers:  make(map[chan domain.Snapshot]struct{}),
	}
	c.countdown = newCountdown(&c.mu, clk, c.broadcastLocked)
	c.simulator = newSimulator(&c.mu, clk, rnd, c.broadcastLocked)
	return c
}

// ID returns the classroom the competition belongs to.
func (c *Competition) ID() string {
	return c.id
}

// Start resets the competition and begins a new run. On error nothing changes.
func (c *Competition) Start(opts StartOptions) error {
	if len(opts.Questions) == 0 {
		return fmt.Errorf("%w: no questions", domain.ErrInvalidConfiguration)
	}
	if opts.DurationMinutes < 1 || opts.DurationMinutes > maxDurationMinutes {
		return fmt.Errorf("%w: duration must be between 1 and %d minutes", domain.ErrInvalidConfiguration, maxDurationMinutes)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.countdown.stopLocked()
	c.simulator.stopLocked()

	c.questions = append([]domain.Question(nil), opts.Questions...)
	c.teacher = opts.Teacher
	c.participants = make(map[string]*domain.StudentProgress, len(opts.Participants))
	c.order = c.order[:0]
	for _, p := range opts.Participants {
		name := strings.TrimSpace(p.FullName)
		if name == "" || name == opts.Teacher {
			continue
		}
		if _, dup := c.participants[name]; dup {
			continue
		}
		c.participants[name] = &domain.StudentProgress{
			FullName:       name,
			Initials:       p.Initials,
			TotalQuestions: len(c.questions),
			Rank:           1,
		}
		c.order = append(c.order, name)
	}
	names := newNameOrder()
	sort.SliceStable(c.order, func(i, j int) bool { return names.less(c.order[i], c.order[j]) })

	c.answers = make(map[string]map[domain.QuestionID]string)
	c.cursors = make(map[string]int)
	c.submitted = make(map[string]bool)
	c.real = make(map[string]bool)
	for _, name := range opts.RealStudents {
		if _, ok := c.participants[name]; ok {
			c.real[name] = true
		}
	}
	c.results = nil
	c.endRequested = false
	c.status = domain.StatusRunning

	c.countdown.startLocked(opts.DurationMinutes)
	simulated := make([]*domain.StudentProgress, 0, len(c.order))
	for _, name := range c.order {
		if !c.real[name] {
			simulated = append(simulated, c.participants[name])
		}
	}
	c.simulator.startLocked(simulated)

	log.Printf("competition %s started: %d questions, %d students (%d simulated), %d min",
		c.id, len(c.questions), len(c.order), len(simulated), opts.DurationMinutes)
	c.broadcastLocked()
	return nil
}

// Claim marks a student as real so the simulator leaves their progress alone.
func (c *Competition) Claim(student string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, err := c.participantLocked(student); err != nil {
		return err
	}
	if c.claimLocked(student) {
		c.broadcastLocked()
	}
	return nil
}

// claimLocked releases a simulated student and rebuilds their counters from
// their own answers. It reports whether the student was newly claimed.
func (c *Competition) claimLocked(student string) bool {
	if c.real[student] {
		return false
	}
	c.real[student] = true
	c.simulator.releaseLocked(student)
	if p, ok := c.participants[student]; ok && c.status == domain.StatusRunning {
		p.Completed, p.Correct = c.scoreLocked(c.answers[student])
		p.IsCompleted = len(c.questions) > 0 && p.Completed == len(c.questions)
	}
	return true
}

// RecordAnswer stores a student's answer and recomputes their counters from the
// whole answer set, so repeating the same answers yields the same progress.
func (c *Competition) RecordAnswer(student string, questionID domain.QuestionID, text string) (domain.StudentProgress, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.recordAnswerLocked(student, questionID, text)
}

func (c *Competition) recordAnswerLocked(student string, questionID domain.QuestionID, text string) (domain.StudentProgress, error) {
	if c.status != domain.StatusRunning {
		return domain.StudentProgress{}, domain.ErrSessionNotRunning
	}
	p, err := c.participantLocked(student)
	if err != nil {
		return domain.StudentProgress{}, err
	}
	if c.submitted[student] {
		return *p, domain.ErrAlreadySubmitted
	}
	if c.questionIndexLocked(questionID) < 0 {
		return *p, domain.ErrQuestionNotFound
	}

	c.claimLocked(student)
	set, ok := c.answers[student]
	if !ok {
		set = make(map[domain.QuestionID]string)
		c.answers[student] = set
	}
	set[questionID] = text

	completed, correct := c.scoreLocked(set)
	p.Completed = completed
	p.Correct = correct
	p.IsCompleted = completed == len(c.questions)

	c.broadcastLocked()
	return *p, nil
}

// SubmitFinal overwrites a student's counters and marks them completed.
func (c *Competition) SubmitFinal(student string, completed, correct, totalQuestions int) (domain.StudentProgress, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.submitFinalLocked(student, completed, correct, totalQuestions)
}

func (c *Competition) submitFinalLocked(student string, completed, correct, totalQuestions int) (domain.StudentProgress, error) {
	if c.status != domain.StatusRunning {
		return domain.StudentProgress{}, domain.ErrSessionNotRunning
	}
	p, err := c.participantLocked(student)
	if err != nil {
		return domain.StudentProgress{}, err
	}

	c.claimLocked(student)
	totalQuestions = max(totalQuestions, 0)
	completed = min(max(completed, 0), totalQuestions)
	correct = min(max(correct, 0), completed)

	p.Completed = completed
	p.Correct = correct
	p.TotalQuestions = totalQuestions
	p.IsCompleted = true
	c.submitted[student] = true

	c.broadcastLocked()
	return *p, nil
}

// Submit scores the student's answer set once every question is answered.
func (c *Competition) Submit(student string) (domain.StudentProgress, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.status != domain.StatusRunning {
		return domain.StudentProgress{}, domain.ErrSessionNotRunning
	}
	p, err := c.participantLocked(student)
	if err != nil {
		return domain.StudentProgress{}, err
	}
	if c.submitted[student] {
		return *p, domain.ErrAlreadySubmitted
	}
	set := c.answers[student]
	completed, correct := c.scoreLocked(set)
	if completed < len(c.questions) {
		return *p, domain.ErrIncompleteAnswers
	}
	return c.submitFinalLocked(student, len(c.questions), correct, len(c.questions))
}

// RequestEnd flags that the teacher wants to end; ConfirmEnd or CancelEnd follows.
func (c *Competition) RequestEnd() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.status != domain.StatusRunning {
		return domain.ErrSessionNotRunning
	}
	c.endRequested = true
	c.broadcastLocked()
	return nil
}

// CancelEnd withdraws an end request.
func (c *Competition) CancelEnd() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.status != domain.StatusRunning {
		return domain.ErrSessionNotRunning
	}
	c.endRequested = false
	c.broadcastLocked()
	return nil
}

// ConfirmEnd stops the countdown and the simulator. When shareResults is set it
// returns the formatted results message; otherwise the message is empty.
func (c *Competition) ConfirmEnd(shareResults bool) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.status != domain.StatusRunning {
		return "", domain.ErrSessionNotRunning
	}

	c.countdown.stopLocked()
	c.simulator.stopLocked()
	c.status = domain.StatusEnded
	c.endRequested = false
	c.results = Rank(c.progressLocked())

	log.Printf("competition %s ended (share results: %v)", c.id, shareResults)
	c.broadcastLocked()
	if !shareResults {
		return "", nil
	}
	return FormatResults(c.results), nil
}

// Extend adds minutes to the countdown and returns the remaining seconds.
func (c *Competition) Extend(minutes int) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.status != domain.StatusRunning {
		return 0, domain.ErrSessionNotRunning
	}
	remaining, err := c.countdown.extendLocked(minutes)
	if err != nil {
		return 0, err
	}
	c.broadcastLocked()
	return remaining, nil
}

// NextQuestion moves the student's cursor forward; it stays on the last question.
func (c *Competition) NextQuestion(student string) (int, error) {
	return c.moveCursor(student, 1)
}

// PreviousQuestion moves the student's cursor back; it stays on the first question.
func (c *Competition) PreviousQuestion(student string) (int, error) {
	return c.moveCursor(student, -1)
}

func (c *Competition) moveCursor(student string, delta int) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.status != domain.StatusRunning {
		return 0, domain.ErrSessionNotRunning
	}
	if _, err := c.participantLocked(student); err != nil {
		return 0, err
	}
	idx := c.cursors[student] + delta
	if idx >= 0 && idx < len(c.questions) {
		c.cursors[student] = idx
	}
	return c.cursors[student], nil
}

// AnswerCurrentQuestion records text for the question under the student's cursor.
func (c *Competition) AnswerCurrentQuestion(student, text string) (domain.StudentProgress, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.status != domain.StatusRunning {
		return domain.StudentProgress{}, domain.ErrSessionNotRunning
	}
	if _, err := c.participantLocked(student); err != nil {
		return domain.StudentProgress{}, err
	}
	q := c.questions[c.cursors[student]]
	return c.recordAnswerLocked(student, q.ID, text)
}

// QuestionIndex returns the student's current question index.
func (c *Competition) QuestionIndex(student string) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cursors[student]
}

// Answers returns a copy of the student's answer set.
func (c *Competition) Answers(student string) map[domain.QuestionID]string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[domain.QuestionID]string, len(c.answers[student]))
	for k, v := range c.answers[student] {
		out[k] = v
	}
	return out
}

// Teacher returns the teacher excluded from the current run.
func (c *Competition) Teacher() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.teacher
}

// Snapshot returns a read-only view of the competition.
func (c *Competition) Snapshot() domain.Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snapshotLocked()
}

// SnapshotFor is Snapshot with the viewer's question cursor filled in.
func (c *Competition) SnapshotFor(student string) domain.Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	snap := c.snapshotLocked()
	snap.CurrentQuestionIndex = c.cursors[student]
	return snap
}

// Leaderboard returns the participants in the requested display order.
func (c *Competition) Leaderboard(mode domain.SortMode) []domain.StudentProgress {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.status == domain.StatusEnded && mode == domain.SortRank {
		return append([]domain.StudentProgress(nil), c.results...)
	}
	return SortForDisplay(c.progressLocked(), mode)
}

// IsIdle reports whether nothing is running and nobody is listening.
func (c *Competition) IsIdle() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.status != domain.StatusRunning && len(c.subscribers) == 0
}

// Subscribe returns a channel of snapshots. The caller must invoke cancel.
func (c *Competition) Subscribe() (<-chan domain.Snapshot, func()) {
	ch := make(chan domain.Snapshot, 8)

	c.mu.Lock()
	c.subscribers[ch] = struct{}{}
	// Queued under the lock so no broadcast can overtake it.
	ch <- c.snapshotLocked()
	c.mu.Unlock()

	cancel := func() {
		c.mu.Lock()
		if _, ok := c.subscribers[ch]; ok {
			delete(c.subscribers, ch)
			close(ch)
		}
		c.mu.Unlock()
	}
	return ch, cancel
}

func (c *Competition) broadcastLocked() {
	if len(c.subscribers) == 0 {
		return
	}
	snap := c.snapshotLocked()
	for ch := range c.subscribers {
		select {
		case ch <- snap:
		default:
			// Slow reader: replace the stale snapshot instead of blocking the tick.
			select {
			case <-ch:
			default:
			}
			ch <- snap
		}
	}
}

func (c *Competition) snapshotLocked() domain.Snapshot {
	snap := domain.Snapshot{
		ClassroomID:     c.id,
		Status:          c.status,
		DurationSeconds: c.countdown.duration,
		EndRequested:    c.endRequested,
		Questions:       append([]domain.Question(nil), c.questions...),
		UpdatedAt:       c.clock.Now(),
	}
	if c.status == domain.StatusRunning {
		remaining := c.countdown.remaining
		snap.RemainingSeconds = &remaining
	}
	if c.status == domain.StatusEnded {
		snap.Participants = append([]domain.StudentProgress(nil), c.results...)
	} else {
		snap.Participants = assignRanks(c.progressLocked())
	}
	return snap
}

// progressLocked copies progress in the initial alphabetical order.
func (c *Competition) progressLocked() []domain.StudentProgress {
	out := make([]domain.StudentProgress, 0, len(c.order))
	for _, name := range c.order {
		out = append(out, *c.participants[name])
	}
	return out
}

func (c *Competition) participantLocked(student string) (*domain.StudentProgress, error) {
	p, ok := c.participants[student]
	if !ok {
		log.Printf("competition %s: unknown participant %q", c.id, student)
		return nil, domain.ErrUnknownParticipant
	}
	return p, nil
}

func (c *Competition) questionIndexLocked(id domain.QuestionID) int {
	for i := range c.questions {
		if c.questions[i].ID == id {
			return i
		}
	}
	return -1
}

func (c *Competition) scoreLocked(set map[domain.QuestionID]string) (completed, correct int) {
	for _, q := range c.questions {
		text, ok := set[q.ID]
		if !ok || !answered(text) {
			continue
		}
		completed++
		if Evaluate(q, text) {
			correct++
		}
	}
	return completed, correct
}
