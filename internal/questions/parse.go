// Package questions turns pasted JSON into validated competition questions and
// generates a default arithmetic set when a teacher supplies none.
package questions

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"

	"classroom-competition/internal/domain"
)

// Parse decodes a JSON array of questions. Any failure wraps
// domain.ErrMalformedQuestionInput. An empty array is valid and yields no questions.
func Parse(raw string) ([]domain.Question, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	var qs []domain.Question
	if err := json.Unmarshal([]byte(raw), &qs); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrMalformedQuestionInput, err)
	}
	if err := Validate(qs); err != nil {
		return nil, err
	}
	return qs, nil
}

// ReadFile parses a JSON question file.
func ReadFile(path string) ([]domain.Question, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	qs, err := Parse(string(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return qs, nil
}

// Validate checks question shape: known type, text, answer, options iff
// multiple-choice, unique IDs.
func Validate(qs []domain.Question) error {
	seen := make(map[domain.QuestionID]bool, len(qs))
	for i, q := range qs {
		if q.ID == "" {
			return fmt.Errorf("%w: question %d has no id", domain.ErrMalformedQuestionInput, i+1)
		}
		if seen[q.ID] {
			return fmt.Errorf("%w: duplicate question id %q", domain.ErrMalformedQuestionInput, q.ID)
		}
		seen[q.ID] = true
		if strings.TrimSpace(q.Question) == "" {
			return fmt.Errorf("%w: question %q has no text", domain.ErrMalformedQuestionInput, q.ID)
		}
		if strings.TrimSpace(q.CorrectAnswer) == "" {
			return fmt.Errorf("%w: question %q has no correct answer", domain.ErrMalformedQuestionInput, q.ID)
		}
		switch q.Type {
		case domain.QuestionMultipleChoice:
			if len(q.Options) == 0 {
				return fmt.Errorf("%w: multiple-choice question %q has no options", domain.ErrMalformedQuestionInput, q.ID)
			}
		case domain.QuestionFreeText:
			if len(q.Options) > 0 {
				return fmt.Errorf("%w: free-text question %q has options", domain.ErrMalformedQuestionInput, q.ID)
			}
		default:
			return fmt.Errorf("%w: question %q has unknown type %q", domain.ErrMalformedQuestionInput, q.ID, q.Type)
		}
	}
	return nil
}

// Draft holds the text a teacher is editing. Unparseable edits are kept for
// further editing while the last valid question set stays active.
type Draft struct {
	mu        sync.RWMutex
	raw       string
	questions []domain.Question
}

// SetText stores raw and, if it parses, replaces the active questions.
func (d *Draft) SetText(raw string) error {
	qs, err := Parse(raw)

	d.mu.Lock()
	defer d.mu.Unlock()
	d.raw = raw
	if err != nil {
		return err
	}
	d.questions = qs
	return nil
}

// Raw returns the text as last typed.
func (d *Draft) Raw() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.raw
}

// Questions returns the last valid parse.
func (d *Draft) Questions() []domain.Question {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]domain.Question(nil), d.questions...)
}
