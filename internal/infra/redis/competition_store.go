package redis

import (
	"context"
	"sync"
	"time"

	"classroom-competition/internal/app"
	"github.com/redis/go-redis/v9"
)

// CompetitionStore is a Redis-aware implementation of app.CompetitionRepository.
// Competitions themselves stay in process; Redis only marks which classrooms
// have a live competition on some instance.
type CompetitionStore struct {
	client       *redis.Client
	ttl          time.Duration
	mu           sync.RWMutex
	competitions map[string]*app.Competition
}

func NewCompetitionStore(client *redis.Client, ttl time.Duration) *CompetitionStore {
	return &CompetitionStore{
		client:       client,
		ttl:          ttl,
		competitions: make(map[string]*app.Competition),
	}
}

func (s *CompetitionStore) GetOrCreate(classroomID string) *app.Competition {
	s.mu.Lock()
	defer s.mu.Unlock()
	if competition, ok := s.competitions[classroomID]; ok {
		// refresh liveness while the classroom is in use
		_ = s.client.Expire(context.Background(), s.key(classroomID), s.ttl).Err()
		return competition
	}
	competition := app.NewCompetition(classroomID)
	s.competitions[classroomID] = competition
	// best-effort liveness marker
	_ = s.client.Set(context.Background(), s.key(classroomID), "1", s.ttl).Err()
	return competition
}

func (s *CompetitionStore) Get(classroomID string) (*app.Competition, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	competition, ok := s.competitions[classroomID]
	return competition, ok
}

func (s *CompetitionStore) DeleteIfIdle(classroomID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	competition, ok := s.competitions[classroomID]
	if !ok {
		return
	}
	if competition.IsIdle() {
		delete(s.competitions, classroomID)
		_ = s.client.Del(context.Background(), s.key(classroomID)).Err()
	}
}

func (s *CompetitionStore) key(classroomID string) string {
	return "classroom:competition:" + classroomID
}
