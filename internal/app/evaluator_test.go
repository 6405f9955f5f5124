package app_test

import (
	"testing"

	"classroom-competition/internal/app"
	"classroom-competition/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestEvaluate(t *testing.T) {
	freeText := func(answer string) domain.Question {
		return domain.Question{ID: "q", Type: domain.QuestionFreeText, Question: "?", CorrectAnswer: answer}
	}
	multipleChoice := func(answer string, options ...string) domain.Question {
		return domain.Question{ID: "q", Type: domain.QuestionMultipleChoice, Question: "?", Options: options, CorrectAnswer: answer}
	}

	cases := []struct {
		name      string
		question  domain.Question
		submitted string
		want      bool
	}{
		{"empty", freeText("12"), "", false},
		{"whitespace", freeText("12"), "   \t", false},
		{"whitespace mc", multipleChoice("Paris", "Paris", "Rome"), " ", false},
		{"exact trimmed", freeText("12"), " 12 ", true},
		{"case insensitive", freeText("Paris"), "pARIS", true},
		{"numeric tolerance", freeText("1.25"), "1.24995", true},
		{"numeric too far", freeText("1.25"), "1.2", false},
		{"numeric equivalent form", freeText("0.5"), ".50", true},
		{"non numeric mismatch", freeText("Paris"), "Rome", false},
		{"numeric vs word", freeText("4"), "four", false},
		{"mc exact", multipleChoice("2", "1", "2"), "2", true},
		{"mc no numeric fallback", multipleChoice("2", "1", "2"), "2.0", false},
		{"mc case insensitive", multipleChoice("Blue", "Blue", "Red"), "blue", true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, app.Evaluate(tc.question, tc.submitted))
		})
	}
}
