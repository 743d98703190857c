// Package conversations mediates between the agent graph and the checkpoint
// store: it persists messages at turn boundaries and rebuilds the model
// context when a conversation resumes.
package conversations

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/schema"

	"github.com/webchat-agent/server/internal/agent/model"
)

type Manager struct {
	repo model.CheckpointRepository
}

func NewManager(repo model.CheckpointRepository) *Manager {
	return &Manager{repo: repo}
}

// AppendAndLoad persists the incoming user message and returns the full
// ordered history including it. A conversation id never seen before starts
// from an empty history.
func (m *Manager) AppendAndLoad(ctx context.Context, conversationID string, message *schema.Message) ([]*schema.Message, error) {
	if err := m.repo.AddMessage(ctx, conversationID, message); err != nil {
		return nil, fmt.Errorf("persist user message: %w", err)
	}

	history, err := m.repo.LoadHistory(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("load conversation history: %w", err)
	}
	return history.Messages, nil
}

// SaveMessage appends one produced message (assistant output or tool result)
// to the conversation checkpoint.
func (m *Manager) SaveMessage(ctx context.Context, conversationID string, message *schema.Message) error {
	return m.repo.AddMessage(ctx, conversationID, message)
}

// Clear drops the persisted history for a conversation.
func (m *Manager) Clear(ctx context.Context, conversationID string) error {
	return m.repo.ClearHistory(ctx, conversationID)
}

// History loads the persisted history for the retrieval endpoint.
func (m *Manager) History(ctx context.Context, conversationID string) (*model.ConversationHistory, error) {
	return m.repo.LoadHistory(ctx, conversationID)
}
