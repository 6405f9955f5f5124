package app

import (
	"math"
	"strconv"
	"strings"

	"classroom-competition/internal/domain"
)

// numericTolerance lets "1.25" match "1.24995" on free-text questions.
const numericTolerance = 0.01

// Evaluate reports whether submitted answers q correctly. Blank submissions are
// never correct; callers treat them as not completed.
func Evaluate(q domain.Question, submitted string) bool {
	answer := strings.ToLower(strings.TrimSpace(submitted))
	if answer == "" {
		return false
	}
	expected := strings.ToLower(strings.TrimSpace(q.CorrectAnswer))
	if answer == expected {
		return true
	}
	if q.Type != domain.QuestionFreeText {
		return false
	}

	got, err := strconv.ParseFloat(answer, 64)
	if err != nil {
		return false
	}
	want, err := strconv.ParseFloat(expected, 64)
	if err != nil {
		return false
	}
	return math.Abs(got-want) < numericTolerance
}

// answered reports whether a submission counts towards completed.
func answered(submitted string) bool {
	return strings.TrimSpace(submitted) != ""
}
