package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/cloudwego/eino/schema"

	"github.com/webchat-agent/server/internal/agent/graph"
	"github.com/webchat-agent/server/internal/agent/model"
	logx "github.com/webchat-agent/server/pkg/logger"
	"github.com/webchat-agent/server/pkg/sse"
)

// defaultImagePrompt stands in for the text part when a multimodal request
// carries images but no message text.
const defaultImagePrompt = "please describe this image"

type chatRequest struct {
	Message        string         `json:"message"`
	ConversationID string         `json:"conversationId"`
	Model          string         `json:"model,omitempty"`
	ToolIDs        []string       `json:"toolIds,omitempty"`
	Images         []imagePayload `json:"images,omitempty"`
}

type imagePayload struct {
	Base64   string `json:"base64"`
	MimeType string `json:"mimeType"`
}

// handleChat runs one chat turn and streams the response as SSE frames.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	if strings.TrimSpace(req.ConversationID) == "" {
		badRequest(w, "conversationId is required")
		return
	}
	if strings.TrimSpace(req.Message) == "" && len(req.Images) == 0 {
		badRequest(w, "message is required")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	flusher, _ := w.(http.Flusher)
	out := sse.NewWriter(w, flusher)

	ctx := r.Context()

	wf, err := s.cache.GetOrBuild(ctx, req.Model, req.ToolIDs)
	if err != nil {
		logx.Error().Err(err).Str("model", req.Model).Msg("failed to build workflow")
		out.Write(sse.Error("failed to prepare workflow"))
		return
	}

	input := model.ChatInput{
		ConversationID: req.ConversationID,
		Message:        buildUserMessage(req),
	}

	// Cumulative set of tool names invoked so far; every tool_usage frame
	// carries the full set, not a delta.
	seen := make(map[string]bool)
	var toolNames []string

	for ev := range s.dispatcher.Run(ctx, wf, input) {
		switch ev.Type {
		case graph.EventContentDelta:
			if err := out.Write(sse.Chunk(ev.Content)); err != nil {
				logx.Warn().Err(err).Msg("client gone, aborting chat stream")
				return
			}
		case graph.EventToolStart:
			if !seen[ev.Tool] {
				seen[ev.Tool] = true
				toolNames = append(toolNames, ev.Tool)
			}
			// Every tool start re-sends the full cumulative set.
			if err := out.Write(sse.ToolUsage(toolNames)); err != nil {
				logx.Warn().Err(err).Msg("client gone, aborting chat stream")
				return
			}
		case graph.EventEnd:
			out.Write(sse.End(ev.ThreadID))
			return
		case graph.EventError:
			logx.Error().Err(ev.Err).Str("conversation_id", req.ConversationID).
				Msg("chat run failed")
			out.Write(sse.Error(ev.Err.Error()))
			return
		}
	}
}

// buildUserMessage turns the request into the user message for this turn.
// Requests with images produce a multimodal content list: one text part
// followed by one image part per supplied image.
func buildUserMessage(req chatRequest) *schema.Message {
	if len(req.Images) == 0 {
		return schema.UserMessage(req.Message)
	}

	text := req.Message
	if strings.TrimSpace(text) == "" {
		text = defaultImagePrompt
	}

	parts := make([]schema.ChatMessagePart, 0, len(req.Images)+1)
	parts = append(parts, schema.ChatMessagePart{
		Type: schema.ChatMessagePartTypeText,
		Text: text,
	})
	for _, img := range req.Images {
		parts = append(parts, schema.ChatMessagePart{
			Type: schema.ChatMessagePartTypeImageURL,
			ImageURL: &schema.ChatMessageImageURL{
				URL:      fmt.Sprintf("data:%s;base64,%s", img.MimeType, img.Base64),
				MIMEType: img.MimeType,
			},
		})
	}

	return &schema.Message{
		Role:         schema.User,
		MultiContent: parts,
	}
}

// handleHistory returns the persisted message history for a conversation.
// Unknown conversation ids yield an empty list.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	conversationID := r.URL.Query().Get("conversationId")
	if conversationID == "" {
		badRequest(w, "conversationId is required")
		return
	}

	history, err := s.manager.History(r.Context(), conversationID)
	if err != nil {
		writeError(w, err)
		return
	}

	messages := history.Messages
	if messages == nil {
		messages = []*schema.Message{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": messages})
}
