package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"sync"
	"time"

	"classroom-competition/internal/domain"
	"classroom-competition/internal/questions"
	"github.com/google/uuid"
)

// CompetitionRepository abstracts where classroom competitions live (in-memory, Redis, etc).
type CompetitionRepository interface {
	GetOrCreate(classroomID string) *Competition
	Get(classroomID string) (*Competition, bool)
	DeleteIfIdle(classroomID string)
}

// QuestionSetRepository loads stored question sets (from cache/backing store).
type QuestionSetRepository interface {
	GetQuestionSet(ctx context.Context, setID string) (domain.QuestionSet, error)
}

// Directory supplies a classroom's teacher and students at start time.
type Directory interface {
	Roster(ctx context.Context, classroomID string) (domain.Participant, []domain.Participant, error)
}

// ChatSink receives messages posted to a classroom chat.
type ChatSink interface {
	Post(ctx context.Context, msg domain.ChatMessage) error
}

// Defaults fill in what a start request leaves out.
type Defaults struct {
	DurationMinutes int
	Grade           int
	QuestionCount   int
}

// StartRequest describes a competition the teacher wants to run. Questions are
// taken from the first non-empty source: Questions, QuestionsJSON, QuestionSetID,
// then a generated arithmetic set.
type StartRequest struct {
	Questions       []domain.Question `json:"questions,omitempty"`
	QuestionsJSON   string            `json:"questionsJson,omitempty"`
	QuestionSetID   string            `json:"questionSetId,omitempty"`
	DurationMinutes int               `json:"durationMinutes,omitempty"`
	Grade           int               `json:"grade,omitempty"`
	RealStudents    []string          `json:"realStudents,omitempty"`
}

// Role tells the transport which commands a member may issue.
type Role string

const (
	RoleTeacher Role = "teacher"
	RoleStudent Role = "student"
)

// CompetitionService contains the classroom competition use cases.
type CompetitionService struct {
	competitions CompetitionRepository
	questionSets QuestionSetRepository
	directory    Directory
	chat         ChatSink
	defaults     Defaults
	now          func() time.Time

	rndMu sync.Mutex
	rnd   *rand.Rand
}

func NewCompetitionService(store CompetitionRepository, sets QuestionSetRepository, directory Directory, chat ChatSink, defaults Defaults) *CompetitionService {
	if defaults.DurationMinutes <= 0 {
		defaults.DurationMinutes = 10
	}
	if defaults.Grade <= 0 {
		defaults.Grade = 3
	}
	if defaults.QuestionCount <= 0 {
		defaults.QuestionCount = questions.DefaultCount
	}
	return &CompetitionService{
		competitions: store,
		questionSets: sets,
		directory:    directory,
		chat:         chat,
		defaults:     defaults,
		now:          time.Now,
		rnd:          rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Join checks the member belongs to the classroom and returns their role and the
// current snapshot. A student joining a running competition stops being simulated.
func (s *CompetitionService) Join(ctx context.Context, classroomID, name string) (Role, domain.Snapshot, error) {
	teacher, students, err := s.directory.Roster(ctx, classroomID)
	if err != nil {
		return "", domain.Snapshot{}, err
	}
	competition := s.competitions.GetOrCreate(classroomID)
	if name == teacher.FullName {
		return RoleTeacher, competition.Snapshot(), nil
	}
	for _, p := range students {
		if p.FullName != name {
			continue
		}
		if competition.Snapshot().Status == domain.StatusRunning {
			// A student missing from the running roster is fine; they join the next run.
			if err := competition.Claim(name); err != nil && !errors.Is(err, domain.ErrUnknownParticipant) {
				return "", domain.Snapshot{}, err
			}
		}
		return RoleStudent, competition.SnapshotFor(name), nil
	}
	log.Printf("classroom %s: %q is not on the roster", classroomID, name)
	return "", domain.Snapshot{}, domain.ErrUnknownParticipant
}

// Start resolves questions and participants and starts the classroom competition.
func (s *CompetitionService) Start(ctx context.Context, classroomID string, req StartRequest) (domain.Snapshot, error) {
	teacher, students, err := s.directory.Roster(ctx, classroomID)
	if err != nil {
		return domain.Snapshot{}, err
	}
	qs, err := s.resolveQuestions(ctx, req)
	if err != nil {
		return domain.Snapshot{}, err
	}

	duration := req.DurationMinutes
	if duration == 0 {
		duration = s.defaults.DurationMinutes
	}

	competition := s.competitions.GetOrCreate(classroomID)
	if err := competition.Start(StartOptions{
		Questions:       qs,
		DurationMinutes: duration,
		Participants:    students,
		Teacher:         teacher.FullName,
		RealStudents:    req.RealStudents,
	}); err != nil {
		return domain.Snapshot{}, err
	}
	return competition.Snapshot(), nil
}

func (s *CompetitionService) resolveQuestions(ctx context.Context, req StartRequest) ([]domain.Question, error) {
	if len(req.Questions) > 0 {
		if err := questions.Validate(req.Questions); err != nil {
			return nil, err
		}
		return req.Questions, nil
	}
	if req.QuestionsJSON != "" {
		qs, err := questions.Parse(req.QuestionsJSON)
		if err != nil {
			return nil, err
		}
		if len(qs) > 0 {
			return qs, nil
		}
	}
	if req.QuestionSetID != "" {
		set, err := s.questionSets.GetQuestionSet(ctx, req.QuestionSetID)
		if err != nil {
			return nil, err
		}
		if len(set.Questions) > 0 {
			return set.Questions, nil
		}
	}

	grade := req.Grade
	if grade <= 0 {
		grade = s.defaults.Grade
	}
	s.rndMu.Lock()
	defer s.rndMu.Unlock()
	return questions.Generate(grade, s.defaults.QuestionCount, s.rnd), nil
}

// RecordAnswer stores a live answer edit.
func (s *CompetitionService) RecordAnswer(_ context.Context, classroomID, student string, questionID domain.QuestionID, text string) (domain.StudentProgress, error) {
	competition, err := s.get(classroomID)
	if err != nil {
		return domain.StudentProgress{}, err
	}
	return competition.RecordAnswer(student, questionID, text)
}

// AnswerCurrentQuestion answers the question under the student's cursor.
func (s *CompetitionService) AnswerCurrentQuestion(_ context.Context, classroomID, student, text string) (domain.StudentProgress, error) {
	competition, err := s.get(classroomID)
	if err != nil {
		return domain.StudentProgress{}, err
	}
	return competition.AnswerCurrentQuestion(student, text)
}

// NextQuestion advances the student's cursor.
func (s *CompetitionService) NextQuestion(_ context.Context, classroomID, student string) (int, error) {
	competition, err := s.get(classroomID)
	if err != nil {
		return 0, err
	}
	return competition.NextQuestion(student)
}

// PreviousQuestion moves the student's cursor back.
func (s *CompetitionService) PreviousQuestion(_ context.Context, classroomID, student string) (int, error) {
	competition, err := s.get(classroomID)
	if err != nil {
		return 0, err
	}
	return competition.PreviousQuestion(student)
}

// Submit finalizes a student's answers.
func (s *CompetitionService) Submit(_ context.Context, classroomID, student string) (domain.StudentProgress, error) {
	competition, err := s.get(classroomID)
	if err != nil {
		return domain.StudentProgress{}, err
	}
	return competition.Submit(student)
}

// SubmitFinal records counters computed by the client.
func (s *CompetitionService) SubmitFinal(_ context.Context, classroomID, student string, completed, correct, total int) (domain.StudentProgress, error) {
	competition, err := s.get(classroomID)
	if err != nil {
		return domain.StudentProgress{}, err
	}
	return competition.SubmitFinal(student, completed, correct, total)
}

// Extend adds minutes to the countdown.
func (s *CompetitionService) Extend(_ context.Context, classroomID string, minutes int) (int, error) {
	competition, err := s.get(classroomID)
	if err != nil {
		return 0, err
	}
	return competition.Extend(minutes)
}

// RequestEnd asks for confirmation before ending.
func (s *CompetitionService) RequestEnd(_ context.Context, classroomID string) error {
	competition, err := s.get(classroomID)
	if err != nil {
		return err
	}
	return competition.RequestEnd()
}

// CancelEnd keeps the competition running.
func (s *CompetitionService) CancelEnd(_ context.Context, classroomID string) error {
	competition, err := s.get(classroomID)
	if err != nil {
		return err
	}
	return competition.CancelEnd()
}

// ConfirmEnd ends the competition. When shareResults is set the results message
// is posted to the classroom chat; a failed post is logged and not retried.
func (s *CompetitionService) ConfirmEnd(ctx context.Context, classroomID string, shareResults bool) (string, error) {
	competition, err := s.get(classroomID)
	if err != nil {
		return "", err
	}
	body, err := competition.ConfirmEnd(shareResults)
	if err != nil || !shareResults {
		return body, err
	}

	msg := domain.ChatMessage{
		ID:          uuid.NewString(),
		ClassroomID: classroomID,
		Sender:      competition.Teacher(),
		Body:        body,
		SentAt:      s.now(),
	}
	if s.chat != nil {
		if err := s.chat.Post(ctx, msg); err != nil {
			log.Printf("classroom %s: post results: %v", classroomID, err)
		}
	}
	return body, nil
}

// Snapshot returns the classroom view for viewer ("" for the teacher).
func (s *CompetitionService) Snapshot(_ context.Context, classroomID, viewer string) (domain.Snapshot, error) {
	competition, err := s.get(classroomID)
	if err != nil {
		return domain.Snapshot{}, err
	}
	return competition.SnapshotFor(viewer), nil
}

// Leaderboard returns participants in the requested display order.
func (s *CompetitionService) Leaderboard(_ context.Context, classroomID string, mode domain.SortMode) ([]domain.StudentProgress, error) {
	competition, err := s.get(classroomID)
	if err != nil {
		return nil, err
	}
	return competition.Leaderboard(mode), nil
}

// Subscribe returns a channel that receives snapshot updates for a classroom.
// The caller must invoke the returned cancel function to avoid leaks.
func (s *CompetitionService) Subscribe(_ context.Context, classroomID string) (<-chan domain.Snapshot, func(), error) {
	competition, err := s.get(classroomID)
	if err != nil {
		return nil, nil, err
	}
	ch, cancel := competition.Subscribe()
	return ch, cancel, nil
}

// Leave drops the classroom competition once nothing runs and nobody listens.
func (s *CompetitionService) Leave(_ context.Context, classroomID string) {
	s.competitions.DeleteIfIdle(classroomID)
}

func (s *CompetitionService) get(classroomID string) (*Competition, error) {
	competition, ok := s.competitions.Get(classroomID)
	if !ok {
		return nil, fmt.Errorf("classroom %q: %w", classroomID, domain.ErrSessionNotRunning)
	}
	return competition, nil
}

// MultiChatSink posts to every sink and joins their errors.
type MultiChatSink []ChatSink

func (m MultiChatSink) Post(ctx context.Context, msg domain.ChatMessage) error {
	var errs []error
	for _, sink := range m {
		if err := sink.Post(ctx, msg); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
