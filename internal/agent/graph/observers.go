package graph

import (
	"context"
	"io"
	"sync"

	einocb "github.com/cloudwego/eino/callbacks"
	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"
	callbackHelper "github.com/cloudwego/eino/utils/callbacks"

	logx "github.com/webchat-agent/server/pkg/logger"
)

// streamObserver translates eino callback activity into dispatcher events:
// model output chunks become content deltas and tool activity becomes
// tool-start events. Tool starts surface both from the model stream (the
// moment a call is recognized) and from the executor, so consumers must
// tolerate duplicates per tool name.
type streamObserver struct {
	emit func(Event)
	wg   sync.WaitGroup
}

func newStreamObserver(emit func(Event)) *streamObserver {
	return &streamObserver{emit: emit}
}

func (o *streamObserver) handler() einocb.Handler {
	return callbackHelper.NewHandlerHelper().
		ChatModel(o.modelHandler()).
		Tool(o.toolHandler()).
		Handler()
}

// wait blocks until every model stream copy has been drained, so the caller
// can order its terminal event after the last content delta.
func (o *streamObserver) wait() {
	o.wg.Wait()
}

func (o *streamObserver) modelHandler() *callbackHelper.ModelCallbackHandler {
	return &callbackHelper.ModelCallbackHandler{
		OnEndWithStreamOutput: func(ctx context.Context, info *einocb.RunInfo, output *schema.StreamReader[*einomodel.CallbackOutput]) context.Context {
			o.wg.Add(1)
			go func() {
				defer o.wg.Done()
				defer output.Close()
				for {
					chunk, err := output.Recv()
					if err == io.EOF {
						return
					}
					if err != nil {
						logx.Warn().Err(err).Msg("model output stream interrupted")
						return
					}
					o.emitFromMessage(chunkMessage(chunk))
				}
			}()
			return ctx
		},
		OnEnd: func(ctx context.Context, info *einocb.RunInfo, output *einomodel.CallbackOutput) context.Context {
			// Non-streaming model path: surface the whole message at once.
			o.emitFromMessage(chunkMessage(output))
			return ctx
		},
	}
}

func (o *streamObserver) toolHandler() *callbackHelper.ToolCallbackHandler {
	return &callbackHelper.ToolCallbackHandler{
		OnStart: func(ctx context.Context, info *einocb.RunInfo, input *tool.CallbackInput) context.Context {
			if info != nil && info.Name != "" {
				o.emit(Event{Type: EventToolStart, Tool: info.Name})
			}
			return ctx
		},
	}
}

func (o *streamObserver) emitFromMessage(msg *schema.Message) {
	if msg == nil {
		return
	}
	if msg.Content != "" {
		o.emit(Event{Type: EventContentDelta, Content: msg.Content})
	}
	for _, tc := range msg.ToolCalls {
		if tc.Function.Name != "" {
			o.emit(Event{Type: EventToolStart, Tool: tc.Function.Name})
		}
	}
}

func chunkMessage(output *einomodel.CallbackOutput) *schema.Message {
	if output == nil {
		return nil
	}
	return output.Message
}
