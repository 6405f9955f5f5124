package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"classroom-competition/internal/domain"
)

func TestQuestionSetRepositoryCaches(t *testing.T) {
	loader := &countingLoader{
		QuestionSetLoader: NewStaticQuestionSetLoader(map[string]domain.QuestionSet{
			"set-1": sampleSet(),
		}),
	}
	repo := NewQuestionSetRepository(loader, time.Minute)

	if _, err := repo.GetQuestionSet(context.Background(), "set-1"); err != nil {
		t.Fatalf("get set: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected loader once, got %d", loader.calls)
	}

	if _, err := repo.GetQuestionSet(context.Background(), "set-1"); err != nil {
		t.Fatalf("get set 2: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected cache hit, loader calls %d", loader.calls)
	}

	repo.Invalidate("set-1")
	if _, err := repo.GetQuestionSet(context.Background(), "set-1"); err != nil {
		t.Fatalf("get set 3: %v", err)
	}
	if loader.calls != 2 {
		t.Fatalf("expected reload after invalidate, loader calls %d", loader.calls)
	}
}

func TestQuestionSetRepositoryExpires(t *testing.T) {
	loader := &countingLoader{
		QuestionSetLoader: NewStaticQuestionSetLoader(map[string]domain.QuestionSet{"set-1": sampleSet()}),
	}
	repo := NewQuestionSetRepository(loader, time.Minute)
	now := time.Unix(1_700_000_000, 0)
	repo.clock = func() time.Time { return now }

	_, _ = repo.GetQuestionSet(context.Background(), "set-1")
	now = now.Add(2 * time.Minute)
	_, _ = repo.GetQuestionSet(context.Background(), "set-1")
	if loader.calls != 2 {
		t.Fatalf("expected reload after ttl, loader calls %d", loader.calls)
	}
}

func TestFallbackLoader(t *testing.T) {
	empty := NewStaticQuestionSetLoader(nil)
	full := NewStaticQuestionSetLoader(map[string]domain.QuestionSet{"set-1": sampleSet()})

	set, err := FallbackLoader{empty, full}.LoadQuestionSet(context.Background(), "set-1")
	if err != nil || set.ID != "set-1" {
		t.Fatalf("expected set from second loader, got %+v (%v)", set, err)
	}
	if _, err := (FallbackLoader{empty}).LoadQuestionSet(context.Background(), "missing"); !errors.Is(err, domain.ErrQuestionSetNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestCompetitionStoreLifecycle(t *testing.T) {
	store := NewCompetitionStore()

	competition := store.GetOrCreate("class-1")
	if competition == nil {
		t.Fatalf("expected competition")
	}
	if again := store.GetOrCreate("class-1"); again != competition {
		t.Fatalf("expected the same competition")
	}
	if _, ok := store.Get("class-1"); !ok {
		t.Fatalf("expected competition present")
	}

	_, cancel := competition.Subscribe()
	store.DeleteIfIdle("class-1")
	if _, ok := store.Get("class-1"); !ok {
		t.Fatalf("expected competition kept while someone listens")
	}

	cancel()
	store.DeleteIfIdle("class-1")
	if _, ok := store.Get("class-1"); ok {
		t.Fatalf("expected competition removed when idle")
	}
}

func TestChatLogHistoryAndSubscribe(t *testing.T) {
	log := NewChatLog(2)
	ch, cancel, err := log.Subscribe(context.Background(), "class-1")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer cancel()

	for _, body := range []string{"one", "two", "three"} {
		if err := log.Post(context.Background(), domain.ChatMessage{ClassroomID: "class-1", Body: body}); err != nil {
			t.Fatalf("post: %v", err)
		}
	}
	_ = log.Post(context.Background(), domain.ChatMessage{ClassroomID: "class-2", Body: "elsewhere"})

	history, _ := log.History(context.Background(), "class-1")
	if len(history) != 2 || history[0].Body != "two" || history[1].Body != "three" {
		t.Fatalf("expected last two messages, got %+v", history)
	}
	if got := (<-ch).Body; got != "one" {
		t.Fatalf("expected first message on subscription, got %q", got)
	}
	if len(ch) != 2 {
		t.Fatalf("expected only class-1 messages delivered, got %d queued", len(ch))
	}
}

type countingLoader struct {
	QuestionSetLoader
	calls int
}

func (l *countingLoader) LoadQuestionSet(ctx context.Context, setID string) (domain.QuestionSet, error) {
	l.calls++
	return l.QuestionSetLoader.LoadQuestionSet(ctx, setID)
}

func sampleSet() domain.QuestionSet {
	return domain.QuestionSet{
		ID:    "set-1",
		Title: "Addition",
		Grade: 1,
		Questions: []domain.Question{
			{ID: "q1", Type: domain.QuestionMultipleChoice, Question: "What is 2 + 2?", Options: []string{"3", "4"}, CorrectAnswer: "4"},
		},
	}
}
