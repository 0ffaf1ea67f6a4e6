package providers

import (
	"context"
	"errors"
)

// ErrNoChoices is returned when the completion response has no choices.
var ErrNoChoices = errors.New("providers: completion returned no choices")

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatClient produces the assistant reply for a conversation.
type ChatClient interface {
	Chat(ctx context.Context, messages []Message) (string, error)
	GetDefaultModel() string
}
