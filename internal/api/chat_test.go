package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"sync"
	"testing"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/webchat-agent/server/internal/agent/graph"
	"github.com/webchat-agent/server/internal/agent/graph/conversations"
	"github.com/webchat-agent/server/internal/agent/model"
	"github.com/webchat-agent/server/internal/agent/tools"
	"github.com/webchat-agent/server/pkg/sse"
)

// memoryRepo keeps conversation history in memory for handler tests.
type memoryRepo struct {
	mu   sync.Mutex
	msgs map[string][]*schema.Message
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{msgs: make(map[string][]*schema.Message)}
}

func (r *memoryRepo) AddMessage(ctx context.Context, conversationID string, message *schema.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs[conversationID] = append(r.msgs[conversationID], message)
	return nil
}

func (r *memoryRepo) LoadHistory(ctx context.Context, conversationID string) (*model.ConversationHistory, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return &model.ConversationHistory{
		ConversationID: conversationID,
		Messages:       slices.Clone(r.msgs[conversationID]),
	}, nil
}

func (r *memoryRepo) ClearHistory(ctx context.Context, conversationID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.msgs, conversationID)
	return nil
}

func (r *memoryRepo) MessageCount(ctx context.Context, conversationID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.msgs[conversationID]), nil
}

// scriptedModel replays canned turns, each as a chunk stream.
type scriptedModel struct {
	mu    sync.Mutex
	turns [][]*schema.Message
}

var _ einomodel.ToolCallingChatModel = (*scriptedModel)(nil)

func (m *scriptedModel) WithTools(infos []*schema.ToolInfo) (einomodel.ToolCallingChatModel, error) {
	return m, nil
}

func (m *scriptedModel) next() ([]*schema.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.turns) == 0 {
		return nil, fmt.Errorf("no scripted turns left")
	}
	turn := m.turns[0]
	m.turns = m.turns[1:]
	return turn, nil
}

func (m *scriptedModel) Generate(ctx context.Context, in []*schema.Message, opts ...einomodel.Option) (*schema.Message, error) {
	turn, err := m.next()
	if err != nil {
		return nil, err
	}
	return schema.ConcatMessages(turn)
}

func (m *scriptedModel) Stream(ctx context.Context, in []*schema.Message, opts ...einomodel.Option) (*schema.StreamReader[*schema.Message], error) {
	turn, err := m.next()
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderFromArray(turn), nil
}

func testServer(t *testing.T, cm einomodel.ToolCallingChatModel, repo model.CheckpointRepository, defs ...*tools.Definition) *Server {
	t.Helper()

	reg, err := tools.NewRegistry(defs...)
	require.NoError(t, err)
	manager := conversations.NewManager(repo)

	cache := graph.NewCache(graph.DefaultCacheSize, func(ctx context.Context, modelID string, toolIDs []string) (graph.Runnable, error) {
		return graph.Build(ctx, &graph.BuildConfig{
			Model:   cm,
			Tools:   reg.Enabled(toolIDs),
			Manager: manager,
		})
	})

	return NewServer(cache, graph.NewDispatcher(), manager, nil)
}

func postChat(t *testing.T, srv *Server, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(body))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeFrames(t *testing.T, body []byte) []sse.Event {
	t.Helper()
	var d sse.Decoder
	events, err := d.Feed(body)
	require.NoError(t, err)
	assert.Zero(t, d.Rest(), "stream must end on a frame boundary")
	return events
}

func TestChatStreamsChunksAndEnd(t *testing.T) {
	t.Parallel()

	cm := &scriptedModel{turns: [][]*schema.Message{{
		schema.AssistantMessage("Hello ", nil),
		schema.AssistantMessage("world", nil),
	}}}
	srv := testServer(t, cm, newMemoryRepo())

	rec := postChat(t, srv, `{"message":"hi","conversationId":"c1"}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.Equal(t, "no-cache", rec.Header().Get("Cache-Control"))

	events := decodeFrames(t, rec.Body.Bytes())
	require.NotEmpty(t, events)

	var content strings.Builder
	for _, ev := range events[:len(events)-1] {
		require.Equal(t, sse.TypeChunk, ev.Type)
		content.WriteString(ev.Content)
	}
	assert.Equal(t, "Hello world", content.String())

	last := events[len(events)-1]
	assert.Equal(t, sse.TypeEnd, last.Type)
	assert.Equal(t, "c1", last.ThreadID)
}

func TestChatEmitsCumulativeToolUsage(t *testing.T) {
	t.Parallel()

	echo := &tools.Definition{
		ID:      "echo",
		Name:    "echo",
		Desc:    "echoes",
		Enabled: true,
		Handler: func(ctx context.Context, args json.RawMessage) (string, error) {
			return "echoed", nil
		},
	}

	cm := &scriptedModel{turns: [][]*schema.Message{
		{{
			Role: schema.Assistant,
			ToolCalls: []schema.ToolCall{{
				ID:       "call_1",
				Function: schema.FunctionCall{Name: "echo", Arguments: `{}`},
			}},
		}},
		{schema.AssistantMessage("done", nil)},
	}}
	srv := testServer(t, cm, newMemoryRepo(), echo)

	rec := postChat(t, srv, `{"message":"go","conversationId":"c1","toolIds":["echo"]}`)
	require.Equal(t, http.StatusOK, rec.Code)

	events := decodeFrames(t, rec.Body.Bytes())

	var toolFrames [][]string
	for _, ev := range events {
		if ev.Type == sse.TypeToolUsage {
			toolFrames = append(toolFrames, ev.Tools)
		}
	}
	require.NotEmpty(t, toolFrames)
	// A frame goes out on every tool start and always carries the full
	// cumulative name set, so repeats of one tool never change the payload.
	for _, frame := range toolFrames {
		assert.Equal(t, []string{"echo"}, frame)
	}

	assert.Equal(t, sse.TypeEnd, events[len(events)-1].Type)
}

func TestChatResendsToolUsageAcrossRounds(t *testing.T) {
	t.Parallel()

	echo := &tools.Definition{
		ID:      "echo",
		Name:    "echo",
		Desc:    "echoes",
		Enabled: true,
		Handler: func(ctx context.Context, args json.RawMessage) (string, error) {
			return "echoed", nil
		},
	}

	callEcho := []*schema.Message{{
		Role: schema.Assistant,
		ToolCalls: []schema.ToolCall{{
			Function: schema.FunctionCall{Name: "echo", Arguments: `{}`},
		}},
	}}
	cm := &scriptedModel{turns: [][]*schema.Message{
		callEcho,
		callEcho,
		{schema.AssistantMessage("done", nil)},
	}}
	srv := testServer(t, cm, newMemoryRepo(), echo)

	rec := postChat(t, srv, `{"message":"twice","conversationId":"c1","toolIds":["echo"]}`)
	require.Equal(t, http.StatusOK, rec.Code)

	events := decodeFrames(t, rec.Body.Bytes())

	var toolFrames [][]string
	for _, ev := range events {
		if ev.Type == sse.TypeToolUsage {
			toolFrames = append(toolFrames, ev.Tools)
		}
	}
	// The second round repeats the tool, and each start still produces a
	// frame with the unchanged cumulative set.
	require.GreaterOrEqual(t, len(toolFrames), 2)
	for _, frame := range toolFrames {
		assert.Equal(t, []string{"echo"}, frame)
	}
	assert.Equal(t, sse.TypeEnd, events[len(events)-1].Type)
}

func TestChatValidation(t *testing.T) {
	t.Parallel()

	srv := testServer(t, &scriptedModel{}, newMemoryRepo())

	rec := postChat(t, srv, `{"message":"hi"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = postChat(t, srv, `{"conversationId":"c1"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = postChat(t, srv, `not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestChatModelFailureEmitsErrorFrame(t *testing.T) {
	t.Parallel()

	// No scripted turns left means the model errors immediately.
	srv := testServer(t, &scriptedModel{}, newMemoryRepo())

	rec := postChat(t, srv, `{"message":"hi","conversationId":"c1"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	events := decodeFrames(t, rec.Body.Bytes())
	require.NotEmpty(t, events)
	last := events[len(events)-1]
	assert.Equal(t, sse.TypeError, last.Type)
	assert.NotEmpty(t, last.Message)
}

func TestHistoryEndpoint(t *testing.T) {
	t.Parallel()

	repo := newMemoryRepo()
	ctx := context.Background()
	require.NoError(t, repo.AddMessage(ctx, "c1", schema.UserMessage("q")))
	require.NoError(t, repo.AddMessage(ctx, "c1", schema.AssistantMessage("a", nil)))

	srv := testServer(t, &scriptedModel{}, repo)

	req := httptest.NewRequest(http.MethodGet, "/api/chat?conversationId=c1", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Data []*schema.Message `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 2)
	assert.Equal(t, "q", resp.Data[0].Content)

	// Unknown conversations yield an empty list, not an error.
	req = httptest.NewRequest(http.MethodGet, "/api/chat?conversationId=ghost", nil)
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Empty(t, resp.Data)

	req = httptest.NewRequest(http.MethodGet, "/api/chat", nil)
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBuildUserMessageMultimodal(t *testing.T) {
	t.Parallel()

	msg := buildUserMessage(chatRequest{
		Message: "what is this",
		Images:  []imagePayload{{Base64: "aGk=", MimeType: "image/png"}},
	})

	require.Len(t, msg.MultiContent, 2)
	assert.Equal(t, schema.ChatMessagePartTypeText, msg.MultiContent[0].Type)
	assert.Equal(t, "what is this", msg.MultiContent[0].Text)
	assert.Equal(t, schema.ChatMessagePartTypeImageURL, msg.MultiContent[1].Type)
	assert.Equal(t, "data:image/png;base64,aGk=", msg.MultiContent[1].ImageURL.URL)

	// Empty text falls back to the default prompt.
	msg = buildUserMessage(chatRequest{
		Images: []imagePayload{{Base64: "aGk=", MimeType: "image/jpeg"}},
	})
	assert.Equal(t, defaultImagePrompt, msg.MultiContent[0].Text)

	// No images produces a plain text message.
	msg = buildUserMessage(chatRequest{Message: "plain"})
	assert.Empty(t, msg.MultiContent)
	assert.Equal(t, "plain", msg.Content)
}
