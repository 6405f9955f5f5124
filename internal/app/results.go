package app

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"classroom-competition/internal/domain"
)

const resultsHeader = "🏆 Learning Competition Results"

var medals = map[int]string{
	1: "🥇",
	2: "🥈",
	3: "🥉",
}

// FormatResults renders ranked progress as the chat message shared at the end of
// a competition. Names are padded to the longest name plus two spaces.
func FormatResults(ranked []domain.StudentProgress) string {
	width := 0
	for _, p := range ranked {
		width = max(width, utf8.RuneCountInString(p.FullName))
	}
	width += 2

	var b strings.Builder
	b.WriteString(resultsHeader)
	for _, p := range ranked {
		prefix, ok := medals[p.Rank]
		if !ok {
			prefix = fmt.Sprintf("%d.", p.Rank)
		}
		padding := strings.Repeat(" ", width-utf8.RuneCountInString(p.FullName))
		fmt.Fprintf(&b, "\n%s %s%s%d/%d", prefix, p.FullName, padding, p.Correct, p.Completed)
	}
	return b.String()
}
