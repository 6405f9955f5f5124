package postgres

import (
	"context"
	"fmt"
	"time"

	"classroom-competition/internal/domain"
	"github.com/uptrace/bun"
)

// QuestionSetRow maps the question_sets table.
type QuestionSetRow struct {
	bun.BaseModel `bun:"table:question_sets"`

	ID        string            `bun:"id,pk"`
	Title     string            `bun:"title,notnull"`
	Grade     int               `bun:"grade,notnull"`
	Questions []domain.Question `bun:"questions,type:jsonb,notnull"`
	UpdatedAt time.Time         `bun:"updated_at,notnull,default:current_timestamp"`
}

// QuestionSetWriter stores question sets through bun; used by the import command.
type QuestionSetWriter struct {
	db  *bun.DB
	now func() time.Time
}

func NewQuestionSetWriter(db *bun.DB) *QuestionSetWriter {
	return &QuestionSetWriter{db: db, now: time.Now}
}

// Upsert inserts the set or replaces an existing one with the same ID.
func (w *QuestionSetWriter) Upsert(ctx context.Context, set domain.QuestionSet) error {
	row := &QuestionSetRow{
		ID:        set.ID,
		Title:     set.Title,
		Grade:     set.Grade,
		Questions: set.Questions,
		UpdatedAt: w.now().UTC(),
	}
	_, err := w.db.NewInsert().
		Model(row).
		On("CONFLICT (id) DO UPDATE").
		Set("title = EXCLUDED.title").
		Set("grade = EXCLUDED.grade").
		Set("questions = EXCLUDED.questions").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("upsert question set %q: %w", set.ID, err)
	}
	return nil
}
