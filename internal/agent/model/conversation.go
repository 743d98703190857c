package model

import (
	"context"

	"github.com/cloudwego/eino/schema"
)

// CheckpointRepository persists the ordered message history of a
// conversation. Unknown conversation ids load as empty histories so a chat
// request never requires the conversation to pre-exist.
type CheckpointRepository interface {
	// AddMessage appends a message to the conversation history.
	AddMessage(ctx context.Context, conversationID string, message *schema.Message) error

	// LoadHistory retrieves the full ordered history for a conversation.
	LoadHistory(ctx context.Context, conversationID string) (*ConversationHistory, error)

	// ClearHistory removes all history for a conversation.
	ClearHistory(ctx context.Context, conversationID string) error

	// MessageCount returns the number of persisted messages.
	MessageCount(ctx context.Context, conversationID string) (int, error)
}

// ConversationHistory represents loaded conversation data with metadata.
type ConversationHistory struct {
	ConversationID string
	Messages       []*schema.Message
}
