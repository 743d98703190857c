package graph

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/webchat-agent/server/internal/agent/graph/conversations"
	"github.com/webchat-agent/server/internal/agent/model"
	logx "github.com/webchat-agent/server/pkg/logger"
)

// newInputPreHandler resets per-run state before a new chat turn starts.
func newInputPreHandler() func(context.Context, model.ChatInput, *model.AppState) (model.ChatInput, error) {
	return func(ctx context.Context, in model.ChatInput, s *model.AppState) (model.ChatInput, error) {
		s.ConversationID = in.ConversationID
		s.History = nil
		s.ToolRounds = 0
		s.ToolCallIDSeq = 0
		return in, nil
	}
}

// newInputNode persists the incoming user message and loads the full ordered
// history so the model sees prior turns of the same conversation.
func newInputNode(mgr *conversations.Manager) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, in model.ChatInput) ([]*schema.Message, error) {
		if in.ConversationID == "" {
			return nil, fmt.Errorf("conversation id is empty")
		}
		if in.Message == nil {
			return nil, fmt.Errorf("input message is nil")
		}

		history, err := mgr.AppendAndLoad(ctx, in.ConversationID, in.Message)
		if err != nil {
			return nil, fmt.Errorf("prepare conversation context: %w", err)
		}
		return history, nil
	})
}

// newModelPreHandler folds incoming messages into the running history and
// feeds the model the full context.
func newModelPreHandler() func(context.Context, []*schema.Message, *model.AppState) ([]*schema.Message, error) {
	return func(ctx context.Context, in []*schema.Message, state *model.AppState) ([]*schema.Message, error) {
		state.History = append(state.History, in...)
		logx.Debug().
			Str("conversation_id", state.ConversationID).
			Int("context_messages", len(state.History)).
			Msg("invoking chat model")
		return state.History, nil
	}
}

// newModelPostHandler normalizes the assistant output, records it in state and
// persists it to the checkpoint store.
func newModelPostHandler(mgr *conversations.Manager) func(context.Context, *schema.Message, *model.AppState) (*schema.Message, error) {
	return func(ctx context.Context, out *schema.Message, state *model.AppState) (*schema.Message, error) {
		if out == nil {
			return nil, fmt.Errorf("chat model returned nil message")
		}

		// Some providers omit tool call IDs; synthesize them so tool results
		// can be matched back to their originating call.
		for i := range out.ToolCalls {
			if strings.TrimSpace(out.ToolCalls[i].ID) == "" {
				state.ToolCallIDSeq++
				out.ToolCalls[i].ID = fmt.Sprintf("call_%d", state.ToolCallIDSeq)
			}
		}

		state.History = append(state.History, out)

		if len(out.ToolCalls) > 0 {
			logx.Debug().
				Str("conversation_id", state.ConversationID).
				Int("tool_count", len(out.ToolCalls)).
				Msg("assistant requested tools")
		} else {
			logx.Debug().
				Str("conversation_id", state.ConversationID).
				Msg("assistant response ready")
		}

		if err := mgr.SaveMessage(ctx, state.ConversationID, out); err != nil {
			return nil, fmt.Errorf("persist assistant message: %w", err)
		}
		return out, nil
	}
}

// newToolsPreHandler counts a tool round each time the executor is entered.
func newToolsPreHandler() func(context.Context, *schema.Message, *model.AppState) (*schema.Message, error) {
	return func(ctx context.Context, in *schema.Message, state *model.AppState) (*schema.Message, error) {
		state.ToolRounds++
		logx.Debug().
			Str("conversation_id", state.ConversationID).
			Int("round", state.ToolRounds).
			Msg("executing tool round")
		return in, nil
	}
}

// newToolsPostHandler persists every tool result message before the results
// loop back into the model.
func newToolsPostHandler(mgr *conversations.Manager) func(context.Context, []*schema.Message, *model.AppState) ([]*schema.Message, error) {
	return func(ctx context.Context, out []*schema.Message, state *model.AppState) ([]*schema.Message, error) {
		for _, msg := range out {
			if msg == nil {
				continue
			}
			if err := mgr.SaveMessage(ctx, state.ConversationID, msg); err != nil {
				return nil, fmt.Errorf("persist tool result: %w", err)
			}
		}
		return out, nil
	}
}

// newToolRoutingCondition routes assistant output either to the tool executor
// or to the end of the graph. Exceeding the round limit aborts the run.
func newToolRoutingCondition(maxRounds int) func(context.Context, *schema.Message) (string, error) {
	return func(ctx context.Context, out *schema.Message) (string, error) {
		if out == nil || len(out.ToolCalls) == 0 {
			return compose.END, nil
		}

		var rounds int
		if err := compose.ProcessState(ctx, func(_ context.Context, state *model.AppState) error {
			rounds = state.ToolRounds
			return nil
		}); err != nil {
			return "", fmt.Errorf("read graph state: %w", err)
		}

		if rounds >= maxRounds {
			logx.Warn().Int("rounds", rounds).Int("limit", maxRounds).
				Msg("tool round limit exceeded, aborting run")
			return "", fmt.Errorf("%w after %d rounds", ErrToolRoundLimit, rounds)
		}
		return NodeTools, nil
	}
}
