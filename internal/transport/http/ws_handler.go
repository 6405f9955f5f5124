package http

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"sync"

	"classroom-competition/internal/app"
	"classroom-competition/internal/domain"
	"classroom-competition/internal/questions"
	"github.com/gorilla/websocket"
)

// ChatFeed is the read side of the classroom chat.
type ChatFeed interface {
	History(ctx context.Context, classroomID string) ([]domain.ChatMessage, error)
	Subscribe(ctx context.Context, classroomID string) (<-chan domain.ChatMessage, func(), error)
}

type WSHandler struct {
	service  *app.CompetitionService
	chat     ChatFeed
	upgrader websocket.Upgrader
}

// NewWSHandler wires the competition use cases to websockets. chat may be nil.
func NewWSHandler(service *app.CompetitionService, chat ChatFeed) *WSHandler {
	return &WSHandler{
		service: service,
		chat:    chat,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type extendPayload struct {
	Minutes int `json:"minutes"`
}

type confirmEndPayload struct {
	ShareResults bool `json:"shareResults"`
}

type answerPayload struct {
	QuestionID domain.QuestionID `json:"questionId"`
	Answer     string            `json:"answer"`
}

type submitFinalPayload struct {
	Completed      int `json:"completed"`
	Correct        int `json:"correct"`
	TotalQuestions int `json:"totalQuestions"`
}

type editQuestionsPayload struct {
	Text string `json:"text"`
}

type questionsDraft struct {
	Raw       string            `json:"raw"`
	Questions []domain.Question `json:"questions"`
	Error     string            `json:"error,omitempty"`
}

type leaderboardPayload struct {
	SortMode domain.SortMode `json:"sortMode"`
}

type joinedPayload struct {
	Role     app.Role             `json:"role"`
	Name     string               `json:"name"`
	Snapshot domain.Snapshot      `json:"snapshot"`
	Chat     []domain.ChatMessage `json:"chat,omitempty"`
}

type progressPayload struct {
	Progress             domain.StudentProgress `json:"progress"`
	CurrentQuestionIndex int                    `json:"currentQuestionIndex"`
}

type leaderboardResult struct {
	SortMode     domain.SortMode          `json:"sortMode"`
	Participants []domain.StudentProgress `json:"participants"`
}

type resultsPayload struct {
	Message      string                   `json:"message,omitempty"`
	Participants []domain.StudentProgress `json:"participants"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

func errorFrame(err error) outboundMessage[any] {
	return outboundMessage[any]{Type: "error", Payload: errorPayload{Message: err.Error()}}
}

var errUnsupported = errors.New("unsupported message type")

// member is one connected classroom user.
type member struct {
	classroomID string
	name        string
	role        app.Role
	// draft holds the teacher's pasted question text between edits.
	draft *questions.Draft
}

// ServeWS upgrades HTTP requests to websockets and wires them into the competition use cases.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	classroomID := r.URL.Query().Get("classroomId")
	name := r.URL.Query().Get("name")
	if classroomID == "" || name == "" {
		http.Error(w, "missing classroomId or name", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	ctx := r.Context()
	role, snapshot, err := h.service.Join(ctx, classroomID, name)
	if err == nil {
		if want := app.Role(r.URL.Query().Get("role")); want != "" && want != role {
			err = domain.ErrForbidden
		}
	}
	if err != nil {
		_ = conn.WriteJSON(errorFrame(err))
		return
	}
	m := member{classroomID: classroomID, name: name, role: role, draft: &questions.Draft{}}

	// Deferred first so it runs after cancel and sees this listener gone.
	defer h.service.Leave(ctx, classroomID)
	updates, cancel, err := h.service.Subscribe(ctx, classroomID)
	if err != nil {
		_ = conn.WriteJSON(errorFrame(err))
		return
	}
	defer cancel()

	joined := joinedPayload{Role: role, Name: name, Snapshot: snapshot}
	var chatUpdates <-chan domain.ChatMessage
	if h.chat != nil {
		if history, err := h.chat.History(ctx, classroomID); err == nil {
			joined.Chat = history
		}
		ch, cancelChat, err := h.chat.Subscribe(ctx, classroomID)
		if err != nil {
			log.Printf("classroom %s: chat subscribe: %v", classroomID, err)
		} else {
			chatUpdates = ch
			defer cancelChat()
		}
	}

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	var forwarders sync.WaitGroup

	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				log.Printf("ws write error: %v", err)
				return
			}
		}
	}()

	forward := func(next func() (outboundMessage[any], bool)) {
		defer forwarders.Done()
		for {
			msg, ok := next()
			if !ok {
				return
			}
			select {
			case send <- msg:
			case <-closeSignals:
				return
			}
		}
	}

	forwarders.Add(1)
	go forward(func() (outboundMessage[any], bool) {
		select {
		case update, ok := <-updates:
			return outboundMessage[any]{Type: "snapshot", Payload: update}, ok
		case <-closeSignals:
			return outboundMessage[any]{}, false
		}
	})
	if chatUpdates != nil {
		forwarders.Add(1)
		go forward(func() (outboundMessage[any], bool) {
			select {
			case msg, ok := <-chatUpdates:
				return outboundMessage[any]{Type: "chat", Payload: msg}, ok
			case <-closeSignals:
				return outboundMessage[any]{}, false
			}
		})
	}

	send <- outboundMessage[any]{Type: "joined", Payload: joined}

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		for _, frame := range h.handle(ctx, m, inbound) {
			send <- frame
		}
	}

	close(closeSignals)
	forwarders.Wait()
	close(send)
	<-writerDone
}

// handle runs one inbound command and returns the frames to send back.
func (h *WSHandler) handle(ctx context.Context, m member, inbound inboundMessage) []outboundMessage[any] {
	frame, err := h.dispatch(ctx, m, inbound)
	if err != nil {
		return []outboundMessage[any]{errorFrame(err)}
	}
	if frame == nil {
		return nil
	}
	return []outboundMessage[any]{*frame}
}

func (h *WSHandler) dispatch(ctx context.Context, m member, inbound inboundMessage) (*outboundMessage[any], error) {
	if err := authorize(m.role, inbound.Type); err != nil {
		return nil, err
	}

	switch inbound.Type {
	case "start":
		var req app.StartRequest
		if err := decode(inbound.Payload, &req); err != nil {
			return nil, err
		}
		if len(req.Questions) == 0 && req.QuestionsJSON == "" && req.QuestionSetID == "" {
			req.Questions = m.draft.Questions()
		}
		if _, err := h.service.Start(ctx, m.classroomID, req); err != nil {
			return nil, err
		}
		return nil, nil // the snapshot subscription carries the new state
	case "editQuestions":
		var p editQuestionsPayload
		if err := decode(inbound.Payload, &p); err != nil {
			return nil, err
		}
		draft := questionsDraft{Raw: p.Text}
		if err := m.draft.SetText(p.Text); err != nil {
			draft.Error = err.Error()
		}
		draft.Questions = m.draft.Questions()
		return &outboundMessage[any]{Type: "questions", Payload: draft}, nil
	case "extend":
		var p extendPayload
		if err := decode(inbound.Payload, &p); err != nil {
			return nil, err
		}
		_, err := h.service.Extend(ctx, m.classroomID, p.Minutes)
		return nil, err
	case "requestEnd":
		return nil, h.service.RequestEnd(ctx, m.classroomID)
	case "cancelEnd":
		return nil, h.service.CancelEnd(ctx, m.classroomID)
	case "confirmEnd":
		var p confirmEndPayload
		if err := decode(inbound.Payload, &p); err != nil {
			return nil, err
		}
		message, err := h.service.ConfirmEnd(ctx, m.classroomID, p.ShareResults)
		if err != nil {
			return nil, err
		}
		board, err := h.service.Leaderboard(ctx, m.classroomID, domain.SortRank)
		if err != nil {
			return nil, err
		}
		return &outboundMessage[any]{Type: "results", Payload: resultsPayload{Message: message, Participants: board}}, nil
	case "answer":
		var p answerPayload
		if err := decode(inbound.Payload, &p); err != nil {
			return nil, err
		}
		progress, err := h.service.RecordAnswer(ctx, m.classroomID, m.name, p.QuestionID, p.Answer)
		if err != nil {
			return nil, err
		}
		return h.progressFrame(ctx, m, progress)
	case "answerCurrent":
		var p answerPayload
		if err := decode(inbound.Payload, &p); err != nil {
			return nil, err
		}
		progress, err := h.service.AnswerCurrentQuestion(ctx, m.classroomID, m.name, p.Answer)
		if err != nil {
			return nil, err
		}
		return h.progressFrame(ctx, m, progress)
	case "next", "previous":
		move := h.service.NextQuestion
		if inbound.Type == "previous" {
			move = h.service.PreviousQuestion
		}
		if _, err := move(ctx, m.classroomID, m.name); err != nil {
			return nil, err
		}
		snap, err := h.service.Snapshot(ctx, m.classroomID, m.name)
		if err != nil {
			return nil, err
		}
		return &outboundMessage[any]{Type: "snapshot", Payload: snap}, nil
	case "submit":
		progress, err := h.service.Submit(ctx, m.classroomID, m.name)
		if err != nil {
			return nil, err
		}
		return h.progressFrame(ctx, m, progress)
	case "submitFinal":
		var p submitFinalPayload
		if err := decode(inbound.Payload, &p); err != nil {
			return nil, err
		}
		progress, err := h.service.SubmitFinal(ctx, m.classroomID, m.name, p.Completed, p.Correct, p.TotalQuestions)
		if err != nil {
			return nil, err
		}
		return h.progressFrame(ctx, m, progress)
	case "leaderboard":
		var p leaderboardPayload
		if err := decode(inbound.Payload, &p); err != nil {
			return nil, err
		}
		if p.SortMode == "" {
			p.SortMode = domain.SortRank
		}
		board, err := h.service.Leaderboard(ctx, m.classroomID, p.SortMode)
		if err != nil {
			return nil, err
		}
		return &outboundMessage[any]{Type: "leaderboard", Payload: leaderboardResult{SortMode: p.SortMode, Participants: board}}, nil
	default:
		return nil, errUnsupported
	}
}

func (h *WSHandler) progressFrame(ctx context.Context, m member, progress domain.StudentProgress) (*outboundMessage[any], error) {
	snap, err := h.service.Snapshot(ctx, m.classroomID, m.name)
	if err != nil {
		return nil, err
	}
	return &outboundMessage[any]{Type: "progress", Payload: progressPayload{
		Progress:             progress,
		CurrentQuestionIndex: snap.CurrentQuestionIndex,
	}}, nil
}

var teacherCommands = map[string]bool{
	"editQuestions": true,
	"start":         true,
	"extend":        true,
	"requestEnd":    true,
	"cancelEnd":     true,
	"confirmEnd":    true,
}

var studentCommands = map[string]bool{
	"answer":        true,
	"answerCurrent": true,
	"next":          true,
	"previous":      true,
	"submit":        true,
	"submitFinal":   true,
}

func authorize(role app.Role, command string) error {
	if teacherCommands[command] && role != app.RoleTeacher {
		return domain.ErrForbidden
	}
	if studentCommands[command] && role != app.RoleStudent {
		return domain.ErrForbidden
	}
	return nil
}

// decode accepts a missing payload as the zero value.
func decode(raw json.RawMessage, v any) error {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return errors.New("invalid payload")
	}
	return nil
}
