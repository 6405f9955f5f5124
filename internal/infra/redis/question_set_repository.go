package redis

import (
	"context"
	"encoding/json"
	"log"
	"math/rand"
	"sync"
	"time"

	"classroom-competition/internal/domain"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// QuestionSetLoader fetches question sets from a backing store (e.g., Postgres).
type QuestionSetLoader interface {
	LoadQuestionSet(ctx context.Context, setID string) (domain.QuestionSet, error)
}

// QuestionSetRepository caches question sets in Redis and falls back to a loader on cache miss.
// Sets are stored as JSON: SET classroom:questionset:{setID} {json} EX ttl
type QuestionSetRepository struct {
	client *redis.Client
	loader QuestionSetLoader
	ttl    time.Duration
	sf     singleflight.Group

	rndMu sync.Mutex
	rnd   *rand.Rand
}

func NewQuestionSetRepository(client *redis.Client, loader QuestionSetLoader, ttl time.Duration) *QuestionSetRepository {
	return &QuestionSetRepository{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (r *QuestionSetRepository) GetQuestionSet(ctx context.Context, setID string) (domain.QuestionSet, error) {
	if set, ok := r.cached(ctx, setID); ok {
		return set, nil
	}

	result, err, _ := r.sf.Do(setID, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if set, ok := r.cached(ctx, setID); ok {
			return set, nil
		}

		set, err := r.loader.LoadQuestionSet(ctx, setID)
		if err != nil {
			return domain.QuestionSet{}, err
		}

		raw, err := json.Marshal(set)
		if err != nil {
			return domain.QuestionSet{}, err
		}
		if err := r.client.Set(ctx, r.key(setID), raw, r.ttlWithJitter()).Err(); err != nil {
			log.Printf("cache question set %s: %v", setID, err)
		}
		return set, nil
	})
	if err != nil {
		return domain.QuestionSet{}, err
	}
	return result.(domain.QuestionSet), nil
}

// Invalidate removes the cached copy, e.g. after an import replaced the set.
func (r *QuestionSetRepository) Invalidate(ctx context.Context, setID string) error {
	return r.client.Del(ctx, r.key(setID)).Err()
}

func (r *QuestionSetRepository) cached(ctx context.Context, setID string) (domain.QuestionSet, bool) {
	raw, err := r.client.Get(ctx, r.key(setID)).Bytes()
	if err != nil {
		return domain.QuestionSet{}, false
	}
	var set domain.QuestionSet
	if err := json.Unmarshal(raw, &set); err != nil {
		log.Printf("decode cached question set %s: %v", setID, err)
		return domain.QuestionSet{}, false
	}
	return set, true
}

func (r *QuestionSetRepository) key(setID string) string {
	return "classroom:questionset:" + setID
}

func (r *QuestionSetRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	jitterMax := int64(r.ttl) / 10
	r.rndMu.Lock()
	defer r.rndMu.Unlock()
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
