package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"classroom-competition/internal/domain"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

// QuestionSetLoader loads question set JSONB from Postgres.
type QuestionSetLoader struct {
	pool *pgxpool.Pool
}

func NewQuestionSetLoader(pool *pgxpool.Pool) *QuestionSetLoader {
	return &QuestionSetLoader{pool: pool}
}

func (l *QuestionSetLoader) LoadQuestionSet(ctx context.Context, setID string) (domain.QuestionSet, error) {
	var (
		title string
		grade int
		raw   []byte
	)
	err := l.pool.QueryRow(ctx, `SELECT title, grade, questions FROM question_sets WHERE id=$1`, setID).Scan(&title, &grade, &raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.QuestionSet{}, fmt.Errorf("question set %q: %w", setID, domain.ErrQuestionSetNotFound)
	}
	if err != nil {
		return domain.QuestionSet{}, fmt.Errorf("load question set: %w", err)
	}
	set := domain.QuestionSet{ID: setID, Title: title, Grade: grade}
	if err := json.Unmarshal(raw, &set.Questions); err != nil {
		return domain.QuestionSet{}, fmt.Errorf("unmarshal question set: %w", err)
	}
	return set, nil
}
