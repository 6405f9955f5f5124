package memory

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"classroom-competition/internal/domain"
	"golang.org/x/sync/singleflight"
)

// QuestionSetLoader fetches question sets from a backing store (e.g., Postgres).
type QuestionSetLoader interface {
	LoadQuestionSet(ctx context.Context, setID string) (domain.QuestionSet, error)
}

// QuestionSetRepository caches question sets with TTL to avoid repeated DB hits.
type QuestionSetRepository struct {
	loader QuestionSetLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rnd    *rand.Rand

	mu    sync.RWMutex
	cache map[string]cachedQuestionSet
}

type cachedQuestionSet struct {
	set       domain.QuestionSet
	expiresAt time.Time
}

func NewQuestionSetRepository(loader QuestionSetLoader, ttl time.Duration) *QuestionSetRepository {
	return &QuestionSetRepository{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:  make(map[string]cachedQuestionSet),
	}
}

func (r *QuestionSetRepository) GetQuestionSet(ctx context.Context, setID string) (domain.QuestionSet, error) {
	now := r.clock()

	r.mu.RLock()
	if entry, ok := r.cache[setID]; ok && entry.expiresAt.After(now) {
		r.mu.RUnlock()
		return entry.set, nil
	}
	r.mu.RUnlock()

	result, err, _ := r.sf.Do(setID, func() (interface{}, error) {
		now := r.clock()
		r.mu.RLock()
		if entry, ok := r.cache[setID]; ok && entry.expiresAt.After(now) {
			r.mu.RUnlock()
			return entry.set, nil
		}
		r.mu.RUnlock()

		set, err := r.loader.LoadQuestionSet(ctx, setID)
		if err != nil {
			return domain.QuestionSet{}, err
		}

		r.mu.Lock()
		r.cache[setID] = cachedQuestionSet{
			set:       set,
			expiresAt: now.Add(r.ttlWithJitter()),
		}
		r.mu.Unlock()
		return set, nil
	})
	if err != nil {
		return domain.QuestionSet{}, err
	}
	return result.(domain.QuestionSet), nil
}

// Invalidate drops a cached set so the next read goes to the loader.
func (r *QuestionSetRepository) Invalidate(setID string) {
	r.mu.Lock()
	delete(r.cache, setID)
	r.mu.Unlock()
}

func (r *QuestionSetRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(r.ttl) / 10
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}

// StaticQuestionSetLoader serves sets from a map (config-provided sets, tests, demos).
type StaticQuestionSetLoader struct {
	sets map[string]domain.QuestionSet
}

func NewStaticQuestionSetLoader(sets map[string]domain.QuestionSet) *StaticQuestionSetLoader {
	return &StaticQuestionSetLoader{sets: sets}
}

func (l *StaticQuestionSetLoader) LoadQuestionSet(_ context.Context, setID string) (domain.QuestionSet, error) {
	if set, ok := l.sets[setID]; ok {
		return set, nil
	}
	return domain.QuestionSet{}, fmt.Errorf("question set %q: %w", setID, domain.ErrQuestionSetNotFound)
}

// FallbackLoader tries each loader in order and returns the first set found.
type FallbackLoader []QuestionSetLoader

func (f FallbackLoader) LoadQuestionSet(ctx context.Context, setID string) (domain.QuestionSet, error) {
	err := fmt.Errorf("question set %q: %w", setID, domain.ErrQuestionSetNotFound)
	for _, loader := range f {
		set, loadErr := loader.LoadQuestionSet(ctx, setID)
		if loadErr == nil {
			return set, nil
		}
		err = loadErr
	}
	return domain.QuestionSet{}, err
}
