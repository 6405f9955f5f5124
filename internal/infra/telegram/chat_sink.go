// Package telegram mirrors classroom chat messages into a Telegram group.
package telegram

import (
	"context"
	"fmt"
	"net/http"

	"classroom-competition/internal/domain"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// ChatSink posts classroom chat messages to a Telegram chat.
type ChatSink struct {
	api    *tgbotapi.BotAPI
	chatID int64
}

// NewChatSink connects to the Bot API. endpoint may be empty for the public API.
func NewChatSink(token, endpoint string, chatID int64, client *http.Client) (*ChatSink, error) {
	if endpoint == "" {
		endpoint = tgbotapi.APIEndpoint
	}
	if client == nil {
		client = &http.Client{}
	}
	api, err := tgbotapi.NewBotAPIWithClient(token, endpoint, client)
	if err != nil {
		return nil, fmt.Errorf("telegram bot: %w", err)
	}
	return &ChatSink{api: api, chatID: chatID}, nil
}

// Post implements app.ChatSink.
func (s *ChatSink) Post(_ context.Context, msg domain.ChatMessage) error {
	text := msg.Body
	if msg.Sender != "" {
		text = msg.Sender + ":\n" + msg.Body
	}
	if _, err := s.api.Send(tgbotapi.NewMessage(s.chatID, text)); err != nil {
		return fmt.Errorf("telegram send to %d: %w", s.chatID, err)
	}
	return nil
}
