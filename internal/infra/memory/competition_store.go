package memory

import (
	"sync"

	"classroom-competition/internal/app"
)

// CompetitionStore is an in-memory implementation of app.CompetitionRepository.
type CompetitionStore struct {
	newCompetition func(classroomID string) *app.Competition

	mu           sync.RWMutex
	competitions map[string]*app.Competition
}

// NewCompetitionStore builds competitions with app.NewCompetition.
func NewCompetitionStore() *CompetitionStore {
	return NewCompetitionStoreWith(app.NewCompetition)
}

// NewCompetitionStoreWith lets tests control how competitions are built.
func NewCompetitionStoreWith(factory func(classroomID string) *app.Competition) *CompetitionStore {
	return &CompetitionStore{
		newCompetition: factory,
		competitions:   make(map[string]*app.Competition),
	}
}

func (s *CompetitionStore) GetOrCreate(classroomID string) *app.Competition {
	s.mu.Lock()
	defer s.mu.Unlock()
	if competition, ok := s.competitions[classroomID]; ok {
		return competition
	}
	competition := s.newCompetition(classroomID)
	s.competitions[classroomID] = competition
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
	}
}
