package graph

// EventType discriminates the events a dispatcher run produces.
type EventType string

const (
	// EventContentDelta carries one partial piece of assistant text.
	EventContentDelta EventType = "content-delta"
	// EventToolStart fires as soon as a tool invocation is recognized,
	// before the tool finishes executing.
	EventToolStart EventType = "tool-start"
	// EventEnd terminates a successful run. Exactly one terminal event is
	// produced per run.
	EventEnd EventType = "end"
	// EventError terminates a failed run instead of EventEnd.
	EventError EventType = "error"
)

// Event is one element of the dispatcher's event stream.
type Event struct {
	Type     EventType
	Content  string // EventContentDelta
	Tool     string // EventToolStart
	ThreadID string // EventEnd
	Err      error  // EventError
}
