package questions

import (
	"fmt"
	"math"
	"strconv"

	"classroom-competition/internal/domain"
)

// Rand is the subset of *rand.Rand the generator uses.
type Rand interface {
	Intn(n int) int
}

// DefaultCount is used when a caller asks for zero questions.
const DefaultCount = 10

// Generate builds count arithmetic questions suited to grade. Odd-numbered
// questions (1, 3, 5...) are multiple-choice, the rest free-text.
//
//	grade 1-2: addition and subtraction within 20
//	grade 3-4: multiplication and exact division up to 12x12
//	grade 5+:  fractions written as decimals
func Generate(grade, count int, rnd Rand) []domain.Question {
	if count <= 0 {
		count = DefaultCount
	}
	out := make([]domain.Question, 0, count)
	for i := 0; i < count; i++ {
		prompt, answer := problem(grade, rnd)
		q := domain.Question{
			ID:            domain.QuestionID(strconv.Itoa(i + 1)),
			Question:      prompt,
			CorrectAnswer: answer,
		}
		if i%2 == 0 {
			q.Type = domain.QuestionMultipleChoice
			q.Options = options(answer, rnd)
		} else {
			q.Type = domain.QuestionFreeText
		}
		out = append(out, q)
	}
	return out
}

func problem(grade int, rnd Rand) (string, string) {
	switch {
	case grade <= 2:
		a, b := rnd.Intn(10)+1, rnd.Intn(10)+1
		if rnd.Intn(2) == 0 {
			return fmt.Sprintf("What is %d + %d?", a, b), strconv.Itoa(a + b)
		}
		if a < b {
			a, b = b, a
		}
		return fmt.Sprintf("What is %d - %d?", a, b), strconv.Itoa(a - b)
	case grade <= 4:
		a, b := rnd.Intn(11)+2, rnd.Intn(11)+2
		if rnd.Intn(2) == 0 {
			return fmt.Sprintf("What is %d × %d?", a, b), strconv.Itoa(a * b)
		}
		return fmt.Sprintf("What is %d ÷ %d?", a*b, b), strconv.Itoa(a)
	default:
		denominators := []int{2, 4, 5, 8, 10}
		d := denominators[rnd.Intn(len(denominators))]
		n := rnd.Intn(2*d) + 1
		value := float64(n) / float64(d)
		return fmt.Sprintf("Write %d/%d as a decimal.", n, d), strconv.FormatFloat(value, 'f', -1, 64)
	}
}

// options returns four distinct choices containing answer at a random position.
func options(answer string, rnd Rand) []string {
	choices := []string{answer}
	seen := map[string]bool{answer: true}

	base, err := strconv.ParseFloat(answer, 64)
	if err != nil {
		return choices
	}
	step := 1.0
	if base != float64(int(base)) {
		step = 0.25
	}
	for offset := 1; len(choices) < 4; offset++ {
		for _, sign := range []float64{1, -1} {
			candidate := math.Round((base+sign*float64(offset)*step)*1000) / 1000
			if candidate < 0 || len(choices) == 4 {
				continue
			}
			s := strconv.FormatFloat(candidate, 'f', -1, 64)
			if !seen[s] {
				seen[s] = true
				choices = append(choices, s)
			}
		}
	}

	for i := len(choices) - 1; i > 0; i-- {
		j := rnd.Intn(i + 1)
		choices[i], choices[j] = choices[j], choices[i]
	}
	return choices
}
