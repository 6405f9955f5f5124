package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// QuestionType distinguishes how a submitted answer is evaluated.
type QuestionType string

const (
	QuestionMultipleChoice QuestionType = "multiple-choice"
	QuestionFreeText       QuestionType = "free-text"
)

// QuestionID identifies a question within a set. Pasted question sets use either
// strings or numbers; both decode to the same canonical string.
type QuestionID string

func (id *QuestionID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = QuestionID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("question id must be a string or number: %w", err)
	}
	if i, err := n.Int64(); err == nil {
		*id = QuestionID(strconv.FormatInt(i, 10))
		return nil
	}
	*id = QuestionID(n.String())
	return nil
}

// Question is a single competition question.
type Question struct {
	ID            QuestionID   `json:"id"`
	Type          QuestionType `json:"type"`
	Question      string       `json:"question"`
	Options       []string     `json:"options,omitempty"` // multiple-choice only
	CorrectAnswer string       `json:"correctAnswer"`
}

// QuestionSet is a stored, named collection of questions.
type QuestionSet struct {
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	Grade     int        `json:"grade"`
	Questions []Question `json:"questions"`
}

// Participant is the canonical shape of a classroom member.
type Participant struct {
	FullName string `json:"fullName"`
	Initials string `json:"initials"`
}

// StudentProgress is one student's standing in a running or finished competition.
type StudentProgress struct {
	FullName       string `json:"fullName"`
	Initials       string `json:"initials"`
	Completed      int    `json:"completed"`
	Correct        int    `json:"correct"`
	TotalQuestions int    `json:"totalQuestions"`
	IsCompleted    bool   `json:"isCompleted"`
	Rank           int    `json:"rank"`
}

// Accuracy is correct/completed, or 0 before anything was completed.
func (p StudentProgress) Accuracy() float64 {
	if p.Completed == 0 {
		return 0
	}
	return float64(p.Correct) / float64(p.Completed)
}

// Status is the lifecycle state of a competition.
type Status string

const (
	StatusIdle    Status = "idle"
	StatusRunning Status = "running"
	StatusEnded   Status = "ended"
)

// SortMode selects the leaderboard display order.
type SortMode string

const (
	SortRank         SortMode = "rank"
	SortAlphabetical SortMode = "alphabetical"
	SortProgress     SortMode = "progress"
)

// Snapshot is a read-only view of a competition for rendering collaborators.
type Snapshot struct {
	ClassroomID          string            `json:"classroomId"`
	Status               Status            `json:"status"`
	RemainingSeconds     *int              `json:"remainingSeconds"`
	DurationSeconds      int               `json:"durationSeconds"`
	EndRequested         bool              `json:"endRequested"`
	Participants         []StudentProgress `json:"participants"`
	Questions            []Question        `json:"questions"`
	CurrentQuestionIndex int               `json:"currentQuestionIndex"`
	UpdatedAt            time.Time         `json:"updatedAt"`
}

// ChatMessage is a message handed to a chat sink.
type ChatMessage struct {
	ID          string    `json:"id"`
	ClassroomID string    `json:"classroomId"`
	Sender      string    `json:"sender"`
	Body        string    `json:"body"`
	SentAt      time.Time `json:"sentAt"`
}
