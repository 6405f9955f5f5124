package memory

import (
	"context"
	"sync"

	"classroom-competition/internal/domain"
)

const defaultChatHistory = 100

// ChatLog keeps recent classroom chat messages and fans them out to listeners.
type ChatLog struct {
	limit int

	mu          sync.RWMutex
	history     map[string][]domain.ChatMessage
	subscribers map[string]map[chan domain.ChatMessage]struct{}
}

func NewChatLog(limit int) *ChatLog {
	if limit <= 0 {
		limit = defaultChatHistory
	}
	return &ChatLog{
		limit:       limit,
		history:     make(map[string][]domain.ChatMessage),
		subscribers: make(map[string]map[chan domain.ChatMessage]struct{}),
	}
}

// Post implements app.ChatSink.
func (l *ChatLog) Post(_ context.Context, msg domain.ChatMessage) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	messages := append(l.history[msg.ClassroomID], msg)
	if len(messages) > l.limit {
		messages = messages[len(messages)-l.limit:]
	}
	l.history[msg.ClassroomID] = messages

	for ch := range l.subscribers[msg.ClassroomID] {
		select {
		case ch <- msg:
		default:
			// listener is behind; it can catch up from History
		}
	}
	return nil
}

// History returns the classroom's messages, oldest first.
func (l *ChatLog) History(_ context.Context, classroomID string) ([]domain.ChatMessage, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]domain.ChatMessage(nil), l.history[classroomID]...), nil
}

// Subscribe returns a channel of new messages for a classroom. The caller must invoke cancel.
func (l *ChatLog) Subscribe(_ context.Context, classroomID string) (<-chan domain.ChatMessage, func(), error) {
	ch := make(chan domain.ChatMessage, 8)

	l.mu.Lock()
	if l.subscribers[classroomID] == nil {
		l.subscribers[classroomID] = make(map[chan domain.ChatMessage]struct{})
	}
	l.subscribers[classroomID][ch] = struct{}{}
	l.mu.Unlock()

	cancel := func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		subs := l.subscribers[classroomID]
		if _, ok := subs[ch]; !ok {
			return
		}
		delete(subs, ch)
		close(ch)
		if len(subs) == 0 {
			delete(l.subscribers, classroomID)
		}
	}
	return ch, cancel, nil
}
