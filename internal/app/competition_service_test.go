package app_test

import (
	"context"
	"errors"
	"math/rand"
	"strings"
	"sync"
	"testing"
	"time"

	"classroom-competition/internal/app"
	"classroom-competition/internal/clock"
	"classroom-competition/internal/domain"
	"classroom-competition/internal/infra/memory"
	"classroom-competition/internal/roster"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSink struct {
	mu       sync.Mutex
	messages []domain.ChatMessage
	err      error
}

func (s *recordingSink) Post(_ context.Context, msg domain.ChatMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.messages = append(s.messages, msg)
	return nil
}

func newTestService(t *testing.T, chat app.ChatSink) (*app.CompetitionService, *clock.Manual) {
	t.Helper()
	clk := clock.NewManual(time.Date(2024, 11, 22, 9, 0, 0, 0, time.UTC))
	store := memory.NewCompetitionStoreWith(func(id string) *app.Competition {
		return app.NewCompetitionWith(id, clk, rand.New(rand.NewSource(42)))
	})
	sets := memory.NewQuestionSetRepository(memory.NewStaticQuestionSetLoader(map[string]domain.QuestionSet{
		"set-1": {ID: "set-1", Title: "Doubles", Grade: 1, Questions: twoQuestions()},
	}), time.Minute)
	directory := roster.NewDirectory(map[string]roster.Classroom{
		"class-1": {
			Teacher: roster.Entry{FullName: "Teacher Name"},
			Rooms: []roster.Room{{
				Name:         "Room Alpha",
				Participants: []roster.Entry{{FullName: "Alice Anderson"}, {FullName: "Sam Sim"}},
			}},
		},
	})
	return app.NewCompetitionService(store, sets, directory, chat, app.Defaults{}), clk
}

func TestServiceJoinAssignsRoles(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService(t, nil)

	role, _, err := service.Join(ctx, "class-1", "Teacher Name")
	require.NoError(t, err)
	assert.Equal(t, app.RoleTeacher, role)

	role, snap, err := service.Join(ctx, "class-1", "Alice Anderson")
	require.NoError(t, err)
	assert.Equal(t, app.RoleStudent, role)
	assert.Equal(t, domain.StatusIdle, snap.Status)

	_, _, err = service.Join(ctx, "class-1", "Mallory")
	assert.ErrorIs(t, err, domain.ErrUnknownParticipant)

	_, _, err = service.Join(ctx, "class-9", "Teacher Name")
	assert.ErrorIs(t, err, domain.ErrClassroomNotFound)
}

func TestServiceStartResolvesQuestions(t *testing.T) {
	ctx := context.Background()

	cases := []struct {
		name  string
		req   app.StartRequest
		count int
		err   error
	}{
		{name: "explicit", req: app.StartRequest{Questions: twoQuestions()}, count: 2},
		{name: "pasted json", req: app.StartRequest{QuestionsJSON: `[{"id":1,"type":"free-text","question":"1+1","correctAnswer":"2"}]`}, count: 1},
		{name: "stored set", req: app.StartRequest{QuestionSetID: "set-1"}, count: 2},
		{name: "generated", req: app.StartRequest{Grade: 4}, count: 10},
		{name: "malformed json", req: app.StartRequest{QuestionsJSON: `{"id":1}`}, err: domain.ErrMalformedQuestionInput},
		{name: "missing set", req: app.StartRequest{QuestionSetID: "nope"}, err: domain.ErrQuestionSetNotFound},
		{name: "too long", req: app.StartRequest{Questions: twoQuestions(), DurationMinutes: 90}, err: domain.ErrInvalidConfiguration},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			service, _ := newTestService(t, nil)
			snap, err := service.Start(ctx, "class-1", tc.req)
			if tc.err != nil {
				assert.ErrorIs(t, err, tc.err)
				return
			}
			require.NoError(t, err)
			assert.Len(t, snap.Questions, tc.count)
			assert.Equal(t, 600, snap.DurationSeconds)
			assert.Equal(t, []string{"Alice Anderson", "Sam Sim"}, names(snap.Participants))
		})
	}
}

func TestServiceCommandsNeedACompetition(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService(t, nil)

	_, err := service.RecordAnswer(ctx, "class-1", "Alice Anderson", "1", "4")
	assert.ErrorIs(t, err, domain.ErrSessionNotRunning)
	_, err = service.Extend(ctx, "class-1", 5)
	assert.ErrorIs(t, err, domain.ErrSessionNotRunning)
	_, _, err = service.Subscribe(ctx, "class-1")
	assert.ErrorIs(t, err, domain.ErrSessionNotRunning)
}

func TestServiceJoinClaimsRunningStudent(t *testing.T) {
	ctx := context.Background()
	service, clk := newTestService(t, nil)

	_, err := service.Start(ctx, "class-1", app.StartRequest{Questions: twoQuestions()})
	require.NoError(t, err)
	_, _, err = service.Join(ctx, "class-1", "Alice Anderson")
	require.NoError(t, err)

	clk.Advance(time.Minute)
	board, err := service.Leaderboard(ctx, "class-1", domain.SortAlphabetical)
	require.NoError(t, err)
	assert.Equal(t, 0, board[0].Completed, "joined student must not be simulated")
	assert.Equal(t, 2, board[1].Completed)
}

func TestServiceConfirmEndPostsResults(t *testing.T) {
	ctx := context.Background()
	sink := &recordingSink{}
	service, _ := newTestService(t, sink)

	_, err := service.Start(ctx, "class-1", app.StartRequest{Questions: twoQuestions(), RealStudents: []string{"Alice Anderson", "Sam Sim"}})
	require.NoError(t, err)
	_, err = service.RecordAnswer(ctx, "class-1", "Alice Anderson", "1", "4")
	require.NoError(t, err)
	_, err = service.SubmitFinal(ctx, "class-1", "Sam Sim", 2, 0, 2)
	require.NoError(t, err)

	require.NoError(t, service.RequestEnd(ctx, "class-1"))
	body, err := service.ConfirmEnd(ctx, "class-1", true)
	require.NoError(t, err)

	require.Len(t, sink.messages, 1)
	msg := sink.messages[0]
	assert.Equal(t, body, msg.Body)
	assert.Equal(t, "Teacher Name", msg.Sender)
	assert.Equal(t, "class-1", msg.ClassroomID)
	assert.NotEmpty(t, msg.ID)

	lines := strings.Split(body, "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "🥇 Alice Anderson  1/1", lines[1])
	assert.Equal(t, "🥈 Sam Sim         0/2", lines[2])

	snap, err := service.Snapshot(ctx, "class-1", "")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusEnded, snap.Status)
	assert.Nil(t, snap.RemainingSeconds)
}

func TestServiceConfirmEndSurvivesChatFailure(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService(t, &recordingSink{err: errors.New("chat down")})

	_, err := service.Start(ctx, "class-1", app.StartRequest{Questions: twoQuestions()})
	require.NoError(t, err)
	body, err := service.ConfirmEnd(ctx, "class-1", true)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(body, "🏆 Learning Competition Results"))
}

func TestServiceStudentFlow(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService(t, nil)

	_, err := service.Start(ctx, "class-1", app.StartRequest{Questions: twoQuestions(), RealStudents: []string{"Alice Anderson"}})
	require.NoError(t, err)

	p, err := service.AnswerCurrentQuestion(ctx, "class-1", "Alice Anderson", "4")
	require.NoError(t, err)
	assert.Equal(t, 1, p.Correct)

	idx, err := service.NextQuestion(ctx, "class-1", "Alice Anderson")
	require.NoError(t, err)
	assert.Equal(t, 1, idx)

	_, err = service.Submit(ctx, "class-1", "Alice Anderson")
	assert.ErrorIs(t, err, domain.ErrIncompleteAnswers)

	_, err = service.AnswerCurrentQuestion(ctx, "class-1", "Alice Anderson", "1.25")
	require.NoError(t, err)
	idx, err = service.PreviousQuestion(ctx, "class-1", "Alice Anderson")
	require.NoError(t, err)
	assert.Equal(t, 0, idx)

	p, err = service.Submit(ctx, "class-1", "Alice Anderson")
	require.NoError(t, err)
	assert.Equal(t, domain.StudentProgress{
		FullName: "Alice Anderson", Initials: "AA",
		Completed: 2, Correct: 2, TotalQuestions: 2, IsCompleted: true, Rank: 1,
	}, p)

	remaining, err := service.Extend(ctx, "class-1", 5)
	require.NoError(t, err)
	assert.Equal(t, 900, remaining)
	require.NoError(t, service.CancelEnd(ctx, "class-1"))
}

func TestServiceSubscribeAndLeave(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService(t, nil)

	_, _, err := service.Join(ctx, "class-1", "Teacher Name")
	require.NoError(t, err)
	ch, cancel, err := service.Subscribe(ctx, "class-1")
	require.NoError(t, err)

	<-ch // initial snapshot
	_, err = service.Start(ctx, "class-1", app.StartRequest{Questions: twoQuestions()})
	require.NoError(t, err)
	update := <-ch
	assert.Equal(t, domain.StatusRunning, update.Status)

	cancel()
	service.Leave(ctx, "class-1")
	_, err = service.Snapshot(ctx, "class-1", "")
	require.NoError(t, err, "running competitions are kept")

	_, err = service.ConfirmEnd(ctx, "class-1", false)
	require.NoError(t, err)
	service.Leave(ctx, "class-1")
	_, err = service.Snapshot(ctx, "class-1", "")
	assert.ErrorIs(t, err, domain.ErrSessionNotRunning)
}
