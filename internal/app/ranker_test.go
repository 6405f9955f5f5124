package app_test

import (
	"testing"

	"classroom-competition/internal/app"
	"classroom-competition/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func progress(name string, completed, correct, total int) domain.StudentProgress {
	return domain.StudentProgress{FullName: name, Completed: completed, Correct: correct, TotalQuestions: total}
}

func names(list []domain.StudentProgress) []string {
	out := make([]string, len(list))
	for i, p := range list {
		out[i] = p.FullName
	}
	return out
}

func ranks(list []domain.StudentProgress) []int {
	out := make([]int, len(list))
	for i, p := range list {
		out[i] = p.Rank
	}
	return out
}

func TestRankOrdersByCorrectThenCompleted(t *testing.T) {
	ranked := app.Rank([]domain.StudentProgress{
		progress("Dan", 5, 2, 5),
		progress("Eve", 3, 3, 5),
		progress("Ann", 5, 3, 5),
		progress("Bob", 0, 0, 5),
	})
	assert.Equal(t, []string{"Ann", "Eve", "Dan", "Bob"}, names(ranked))
	assert.Equal(t, []int{1, 2, 3, 4}, ranks(ranked))
}

func TestRankTiesBreakAlphabeticallyAndDeterministically(t *testing.T) {
	input := []domain.StudentProgress{
		progress("Zoe", 4, 3, 5),
		progress("adam", 4, 3, 5),
		progress("Mia", 4, 3, 5),
	}
	for i := 0; i < 5; i++ {
		ranked := app.Rank(input)
		assert.Equal(t, []string{"adam", "Mia", "Zoe"}, names(ranked))
		assert.Equal(t, []int{1, 1, 1}, ranks(ranked))
	}
}

func TestRankSkipsAfterTies(t *testing.T) {
	ranked := app.Rank([]domain.StudentProgress{
		progress("D", 5, 4, 5),
		progress("C", 5, 5, 5),
		progress("B", 5, 5, 5),
		progress("A", 5, 5, 5),
	})
	require.Equal(t, []string{"A", "B", "C", "D"}, names(ranked))
	assert.Equal(t, []int{1, 1, 1, 4}, ranks(ranked))
}

func TestRankDoesNotMutateInput(t *testing.T) {
	input := []domain.StudentProgress{progress("B", 1, 1, 2), progress("A", 2, 2, 2)}
	_ = app.Rank(input)
	assert.Equal(t, "B", input[0].FullName)
	assert.Zero(t, input[0].Rank)
}

func TestSortForDisplayAlphabetical(t *testing.T) {
	sorted := app.SortForDisplay([]domain.StudentProgress{
		progress("Carol", 1, 1, 3),
		progress("alice", 0, 0, 3),
		progress("Bob", 3, 3, 3),
	}, domain.SortAlphabetical)
	assert.Equal(t, []string{"alice", "Bob", "Carol"}, names(sorted))
	// Ranks still reflect performance.
	assert.Equal(t, []int{3, 1, 2}, ranks(sorted))
}

func TestSortForDisplayProgress(t *testing.T) {
	sorted := app.SortForDisplay([]domain.StudentProgress{
		progress("Done Low", 4, 1, 4),
		progress("Half", 2, 2, 4),
		progress("Done High", 4, 4, 4),
		progress("Quarter B", 1, 1, 4),
		progress("Quarter A", 1, 0, 4),
		progress("Quarter C", 1, 0, 4),
	}, domain.SortProgress)
	assert.Equal(t, []string{
		"Quarter A", "Quarter C", // least progress, fewer correct, then name
		"Quarter B",
		"Half",
		"Done High", "Done Low", // complete students, more correct first
	}, names(sorted))
}
