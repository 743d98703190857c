package model

import (
	"github.com/cloudwego/eino/schema"
)

// AppState stores per-invocation state for the agent graph.
// Concurrency model:
//   - This struct is registered as Graph Local State via compose.WithGenLocalState.
//   - All reads/writes happen only inside Eino state handlers:
//     WithStatePreHandler, WithStatePostHandler, or compose.ProcessState.
//   - Eino serializes access to state within these handlers, so no additional
//     mutex/atomic is required as long as you never touch it outside handlers.
type AppState struct {
	ConversationID string
	History        []*schema.Message // mutated only inside Eino state handlers
	ToolRounds     int               // tool-executor entries for this run
	ToolCallIDSeq  int               // local sequence to synthesize tool_call_id when provider omits
}

// ChatInput is what one dispatcher run feeds into the compiled graph: the
// conversation to resume and the already-composed user message (plain text
// or multimodal).
type ChatInput struct {
	ConversationID string          `json:"conversation_id"`
	Message        *schema.Message `json:"message"`
}
