package app

import (
	"sort"
	"strings"

	"classroom-competition/internal/domain"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// Rank returns a copy of list ordered best-first with ranks assigned.
// Ties on (correct, completed, accuracy) share a rank; the next distinct
// performance is ranked by its position, so three students tied for first are
// followed by rank 4.
func Rank(list []domain.StudentProgress) []domain.StudentProgress {
	ranked := assignRanks(list)
	names := newNameOrder()
	sort.SliceStable(ranked, func(i, j int) bool {
		return rankLess(ranked[i], ranked[j], names)
	})
	return ranked
}

// SortForDisplay orders list for a leaderboard panel. Ranks are always assigned
// by performance, whatever the display order.
func SortForDisplay(list []domain.StudentProgress, mode domain.SortMode) []domain.StudentProgress {
	sorted := assignRanks(list)
	names := newNameOrder()

	switch mode {
	case domain.SortAlphabetical:
		sort.SliceStable(sorted, func(i, j int) bool {
			return names.less(sorted[i].FullName, sorted[j].FullName)
		})
	case domain.SortProgress:
		sort.SliceStable(sorted, func(i, j int) bool {
			return progressLess(sorted[i], sorted[j], names)
		})
	default:
		sort.SliceStable(sorted, func(i, j int) bool {
			return rankLess(sorted[i], sorted[j], names)
		})
	}
	return sorted
}

// assignRanks counts strictly better peers for every entry.
func assignRanks(list []domain.StudentProgress) []domain.StudentProgress {
	out := make([]domain.StudentProgress, len(list))
	copy(out, list)
	for i := range out {
		better := 0
		for j := range list {
			if performanceCompare(list[j], out[i]) > 0 {
				better++
			}
		}
		out[i].Rank = better + 1
	}
	return out
}

// performanceCompare returns >0 when a performed better than b, <0 when worse
// and 0 on a tie.
func performanceCompare(a, b domain.StudentProgress) int {
	if a.Correct != b.Correct {
		return a.Correct - b.Correct
	}
	if a.Completed != b.Completed {
		return a.Completed - b.Completed
	}
	switch aa, ba := a.Accuracy(), b.Accuracy(); {
	case aa > ba:
		return 1
	case aa < ba:
		return -1
	}
	return 0
}

func rankLess(a, b domain.StudentProgress, names *nameOrder) bool {
	if c := performanceCompare(a, b); c != 0 {
		return c > 0
	}
	return names.less(a.FullName, b.FullName)
}

func progressLess(a, b domain.StudentProgress, names *nameOrder) bool {
	aDone := a.TotalQuestions > 0 && a.Completed >= a.TotalQuestions
	bDone := b.TotalQuestions > 0 && b.Completed >= b.TotalQuestions
	if aDone != bDone {
		return !aDone
	}

	aFrac := fraction(a)
	bFrac := fraction(b)
	if aDone {
		if aFrac != bFrac {
			return aFrac > bFrac
		}
		if a.Correct != b.Correct {
			return a.Correct > b.Correct
		}
	} else {
		if aFrac != bFrac {
			return aFrac < bFrac
		}
		if a.Correct != b.Correct {
			return a.Correct < b.Correct
		}
	}
	return names.less(a.FullName, b.FullName)
}

func fraction(p domain.StudentProgress) float64 {
	if p.TotalQuestions <= 0 {
		return 0
	}
	return float64(p.Completed) / float64(p.TotalQuestions)
}

// nameOrder compares full names the way a reader expects ("anna" before
// "Bob"), falling back to byte order so the ordering stays total.
type nameOrder struct {
	collator *collate.Collator
}

// newNameOrder returns a fresh collator; collators are not safe for concurrent use.
func newNameOrder() *nameOrder {
	return &nameOrder{collator: collate.New(language.English)}
}

func (n *nameOrder) less(a, b string) bool {
	if c := n.collator.CompareString(a, b); c != 0 {
		return c < 0
	}
	return strings.Compare(a, b) < 0
}
