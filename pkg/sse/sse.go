// Package sse implements the server-sent-events wire protocol used by the
// chat endpoint: one "data: <json>\n\n" frame per event, flushed as soon as
// it is written, plus the buffering decoder clients need to reassemble
// frames that arrive split across network reads.
package sse

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// Event types carried in the "type" discriminator of every frame.
const (
	TypeChunk     = "chunk"
	TypeToolUsage = "tool_usage"
	TypeEnd       = "end"
	TypeError     = "error"
)

// Event is the JSON payload of a single SSE frame. Only the fields relevant
// to the event type are populated.
type Event struct {
	Type     string   `json:"type"`
	Content  string   `json:"content,omitempty"`
	Tools    []string `json:"tools,omitempty"`
	ThreadID string   `json:"thread_id,omitempty"`
	Message  string   `json:"message,omitempty"`
}

// Chunk builds a partial-content event.
func Chunk(content string) Event {
	return Event{Type: TypeChunk, Content: content}
}

// ToolUsage builds a cumulative tool-usage event.
func ToolUsage(tools []string) Event {
	return Event{Type: TypeToolUsage, Tools: tools}
}

// End builds the terminal success event.
func End(threadID string) Event {
	return Event{Type: TypeEnd, ThreadID: threadID}
}

// Error builds the terminal failure event.
func Error(message string) Event {
	return Event{Type: TypeError, Message: message}
}

// Writer serialises events onto an HTTP response, flushing after every frame
// so partial output reaches the client without buffering delays.
type Writer struct {
	w       io.Writer
	flusher http.Flusher
}

// NewWriter wraps the destination. flusher may be nil when the underlying
// writer does not support flushing (tests, buffers).
func NewWriter(w io.Writer, flusher http.Flusher) *Writer {
	return &Writer{w: w, flusher: flusher}
}

// Write emits exactly one wire frame for the event and flushes it.
func (sw *Writer) Write(ev Event) error {
	b, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal sse event: %w", err)
	}
	if _, err := fmt.Fprintf(sw.w, "data: %s\n\n", b); err != nil {
		return fmt.Errorf("write sse frame: %w", err)
	}
	if sw.flusher != nil {
		sw.flusher.Flush()
	}
	return nil
}

// Decoder reassembles events from a byte stream that may split frames at
// arbitrary boundaries. Incomplete trailing fragments are buffered and
// carried forward; a partial frame is never parsed or dropped.
type Decoder struct {
	buf bytes.Buffer
}

var frameSep = []byte("\n\n")

// Feed appends the next read to the internal buffer and returns every
// complete event that became available.
func (d *Decoder) Feed(p []byte) ([]Event, error) {
	d.buf.Write(p)

	var events []Event
	for {
		raw := d.buf.Bytes()
		idx := bytes.Index(raw, frameSep)
		if idx < 0 {
			return events, nil
		}

		frame := make([]byte, idx)
		copy(frame, raw[:idx])
		d.buf.Next(idx + len(frameSep))

		data, ok := bytes.CutPrefix(bytes.TrimSpace(frame), []byte("data: "))
		if !ok {
			// Comment or unknown field lines are legal SSE, skip them.
			continue
		}

		var ev Event
		if err := json.Unmarshal(data, &ev); err != nil {
			return events, fmt.Errorf("decode sse frame: %w", err)
		}
		events = append(events, ev)
	}
}

// Rest reports the number of buffered bytes still waiting for a frame
// terminator. Useful for asserting clean stream shutdown.
func (d *Decoder) Rest() int {
	return d.buf.Len()
}
