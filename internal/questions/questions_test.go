package questions

import (
	"errors"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"classroom-competition/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const pasted = `[
  {"id": 1, "type": "multiple-choice", "question": "2 + 2?", "options": ["3", "4", "5"], "correctAnswer": "4"},
  {"id": "q2", "type": "free-text", "question": "5/4 as a decimal", "correctAnswer": "1.25"}
]`

func TestParseValidQuestions(t *testing.T) {
	qs, err := Parse(pasted)
	require.NoError(t, err)
	require.Len(t, qs, 2)
	assert.Equal(t, domain.QuestionID("1"), qs[0].ID)
	assert.Equal(t, domain.QuestionMultipleChoice, qs[0].Type)
	assert.Equal(t, []string{"3", "4", "5"}, qs[0].Options)
	assert.Equal(t, domain.QuestionID("q2"), qs[1].ID)
}

func TestParseRejectsMalformedInput(t *testing.T) {
	cases := map[string]string{
		"not json":           `[{"id": 1,`,
		"not an array":       `{"id": 1}`,
		"unknown type":       `[{"id": 1, "type": "essay", "question": "x", "correctAnswer": "y"}]`,
		"mc without options": `[{"id": 1, "type": "multiple-choice", "question": "x", "correctAnswer": "y"}]`,
		"free text options":  `[{"id": 1, "type": "free-text", "question": "x", "options": ["a"], "correctAnswer": "a"}]`,
		"missing answer":     `[{"id": 1, "type": "free-text", "question": "x"}]`,
		"duplicate ids":      `[{"id": 1, "type": "free-text", "question": "x", "correctAnswer": "1"}, {"id": "1", "type": "free-text", "question": "y", "correctAnswer": "2"}]`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse(raw)
			require.Error(t, err)
			assert.True(t, errors.Is(err, domain.ErrMalformedQuestionInput), "got %v", err)
		})
	}
}

func TestReadFile(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.json")
	require.NoError(t, os.WriteFile(good, []byte(pasted), 0o600))
	qs, err := ReadFile(good)
	require.NoError(t, err)
	assert.Len(t, qs, 2)

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`[{"id": 1}]`), 0o600))
	_, err = ReadFile(bad)
	assert.True(t, errors.Is(err, domain.ErrMalformedQuestionInput))

	_, err = ReadFile(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)
}

func TestParseEmptyInput(t *testing.T) {
	qs, err := Parse("   ")
	require.NoError(t, err)
	assert.Empty(t, qs)

	qs, err = Parse("[]")
	require.NoError(t, err)
	assert.Empty(t, qs)
}

func TestDraftKeepsLastValidParse(t *testing.T) {
	var d Draft
	require.NoError(t, d.SetText(pasted))

	broken := pasted[:len(pasted)-3]
	err := d.SetText(broken)
	require.ErrorIs(t, err, domain.ErrMalformedQuestionInput)

	assert.Equal(t, broken, d.Raw())
	assert.Len(t, d.Questions(), 2)
}

func TestGenerateProducesValidQuestions(t *testing.T) {
	for _, grade := range []int{1, 3, 6} {
		qs := Generate(grade, 8, rand.New(rand.NewSource(int64(grade))))
		require.Len(t, qs, 8)
		require.NoError(t, Validate(qs), "grade %d", grade)

		for i, q := range qs {
			assert.Equal(t, domain.QuestionID(strconv.Itoa(i+1)), q.ID)
			if q.Type == domain.QuestionMultipleChoice {
				assert.Len(t, q.Options, 4)
				assert.Contains(t, q.Options, q.CorrectAnswer)
			}
		}
	}
}

func TestGenerateAlternatesQuestionTypes(t *testing.T) {
	qs := Generate(3, 4, rand.New(rand.NewSource(9)))
	want := []domain.QuestionType{
		domain.QuestionMultipleChoice, domain.QuestionFreeText,
		domain.QuestionMultipleChoice, domain.QuestionFreeText,
	}
	for i, q := range qs {
		assert.Equal(t, want[i], q.Type, "question %s", q.ID)
	}
}

func TestGenerateDefaultsCount(t *testing.T) {
	qs := Generate(2, 0, rand.New(rand.NewSource(1)))
	assert.Len(t, qs, DefaultCount)
}
