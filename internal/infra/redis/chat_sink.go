package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"classroom-competition/internal/domain"
	"github.com/redis/go-redis/v9"
)

// ChatSink appends classroom chat messages to a capped Redis list and publishes
// them so every instance can forward them to connected clients.
//
//	RPUSH   classroom:chat:{classroomID}        {json}
//	LTRIM   classroom:chat:{classroomID}        -limit -1
//	PUBLISH classroom:chat:{classroomID}:events {json}
type ChatSink struct {
	client *redis.Client
	limit  int64
}

func NewChatSink(client *redis.Client, limit int) *ChatSink {
	if limit <= 0 {
		limit = 100
	}
	return &ChatSink{client: client, limit: int64(limit)}
}

// Post implements app.ChatSink.
func (s *ChatSink) Post(ctx context.Context, msg domain.ChatMessage) error {
	raw, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode chat message: %w", err)
	}
	pipe := s.client.TxPipeline()
	pipe.RPush(ctx, s.historyKey(msg.ClassroomID), raw)
	pipe.LTrim(ctx, s.historyKey(msg.ClassroomID), -s.limit, -1)
	pipe.Publish(ctx, s.channel(msg.ClassroomID), raw)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("post chat message: %w", err)
	}
	return nil
}

// History returns the stored messages for a classroom, oldest first.
func (s *ChatSink) History(ctx context.Context, classroomID string) ([]domain.ChatMessage, error) {
	items, err := s.client.LRange(ctx, s.historyKey(classroomID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("load chat history: %w", err)
	}
	out := make([]domain.ChatMessage, 0, len(items))
	for _, item := range items {
		var msg domain.ChatMessage
		if err := json.Unmarshal([]byte(item), &msg); err != nil {
			return nil, fmt.Errorf("decode chat message: %w", err)
		}
		out = append(out, msg)
	}
	return out, nil
}

// Subscribe listens for messages published to a classroom. The caller must invoke cancel.
func (s *ChatSink) Subscribe(ctx context.Context, classroomID string) (<-chan domain.ChatMessage, func(), error) {
	pubsub := s.client.Subscribe(ctx, s.channel(classroomID))
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, nil, fmt.Errorf("subscribe chat: %w", err)
	}

	out := make(chan domain.ChatMessage, 8)
	go func() {
		defer close(out)
		for m := range pubsub.Channel() {
			var msg domain.ChatMessage
			if err := json.Unmarshal([]byte(m.Payload), &msg); err != nil {
				continue
			}
			select {
			case out <- msg:
			default:
				// slow listener; History still has it
			}
		}
	}()
	return out, func() { _ = pubsub.Close() }, nil
}

func (s *ChatSink) historyKey(classroomID string) string {
	return "classroom:chat:" + classroomID
}

func (s *ChatSink) channel(classroomID string) string {
	return "classroom:chat:" + classroomID + ":events"
}
