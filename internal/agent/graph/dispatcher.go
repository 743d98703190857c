package graph

import (
	"context"
	"errors"
	"io"

	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/webchat-agent/server/internal/agent/model"
	logx "github.com/webchat-agent/server/pkg/logger"
)

// Dispatcher runs compiled workflows and exposes their progress as a typed
// event stream.
type Dispatcher struct {
	buffer int
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{buffer: 16}
}

// Run starts the workflow for one chat turn and returns its event stream.
//
// The stream carries at most one terminal event (EventEnd or EventError) and
// is closed once the run finishes, so consumers can range over it. Sends give
// up when ctx is cancelled; a cancelled run may therefore close the stream
// without a terminal event, but it always closes.
func (d *Dispatcher) Run(ctx context.Context, wf *Workflow, in model.ChatInput) <-chan Event {
	events := make(chan Event, d.buffer)
	emit := func(ev Event) {
		select {
		case events <- ev:
		case <-ctx.Done():
		}
	}

	go func() {
		// The observer finishes all its emits before the terminal emit
		// (obs.wait below), so this goroutine is the only sender left when
		// it closes the channel.
		defer close(events)

		obs := newStreamObserver(emit)

		stream, err := wf.Runnable.Stream(ctx, in, compose.WithCallbacks(obs.handler()))
		if err != nil {
			logx.Error().Err(err).Str("conversation_id", in.ConversationID).
				Msg("workflow failed to start")
			obs.wait()
			emit(Event{Type: EventError, Err: err})
			return
		}

		// Content reaches the consumer through the observer; the graph output
		// stream is drained only to drive the run and detect failure.
		runErr := drain(stream)
		obs.wait()

		if runErr != nil {
			logx.Error().Err(runErr).Str("conversation_id", in.ConversationID).
				Msg("workflow run failed")
			emit(Event{Type: EventError, Err: runErr})
			return
		}
		emit(Event{Type: EventEnd, ThreadID: in.ConversationID})
	}()

	return events
}

func drain(stream *schema.StreamReader[*schema.Message]) error {
	defer stream.Close()
	for {
		if _, err := stream.Recv(); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
	}
}
