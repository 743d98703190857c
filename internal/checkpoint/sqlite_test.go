package checkpoint

import (
	"context"
	"testing"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := OpenSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSQLiteStoreRoundTrip(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.AddMessage(ctx, "c1", schema.UserMessage("hello")))
	require.NoError(t, store.AddMessage(ctx, "c1", schema.AssistantMessage("hi there", nil)))
	require.NoError(t, store.AddMessage(ctx, "c2", schema.UserMessage("other conversation")))

	history, err := store.LoadHistory(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, history.Messages, 2)
	assert.Equal(t, schema.User, history.Messages[0].Role)
	assert.Equal(t, "hello", history.Messages[0].Content)
	assert.Equal(t, schema.Assistant, history.Messages[1].Role)

	n, err := store.MessageCount(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestSQLiteStorePreservesToolCallMetadata(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	assistant := &schema.Message{
		Role: schema.Assistant,
		ToolCalls: []schema.ToolCall{{
			ID:       "call_1",
			Function: schema.FunctionCall{Name: "calculator", Arguments: `{"expression":"2+2"}`},
		}},
	}
	toolResult := &schema.Message{
		Role:       schema.Tool,
		ToolCallID: "call_1",
		Content:    "4",
	}

	require.NoError(t, store.AddMessage(ctx, "c1", assistant))
	require.NoError(t, store.AddMessage(ctx, "c1", toolResult))

	history, err := store.LoadHistory(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, history.Messages, 2)

	require.Len(t, history.Messages[0].ToolCalls, 1)
	assert.Equal(t, "call_1", history.Messages[0].ToolCalls[0].ID)
	assert.Equal(t, "calculator", history.Messages[0].ToolCalls[0].Function.Name)
	assert.Equal(t, "call_1", history.Messages[1].ToolCallID)
}

func TestSQLiteStoreUnknownConversationIsEmpty(t *testing.T) {
	store := openTestStore(t)

	history, err := store.LoadHistory(context.Background(), "never-seen")
	require.NoError(t, err)
	assert.Empty(t, history.Messages)
	assert.NotNil(t, history.Messages)
}

func TestSQLiteStoreClearHistory(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.AddMessage(ctx, "c1", schema.UserMessage("one")))
	require.NoError(t, store.AddMessage(ctx, "c2", schema.UserMessage("two")))
	require.NoError(t, store.ClearHistory(ctx, "c1"))

	n, err := store.MessageCount(ctx, "c1")
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = store.MessageCount(ctx, "c2")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
