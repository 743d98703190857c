package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"

	logx "github.com/webchat-agent/server/pkg/logger"
)

// capability adapts a Definition to the eino tool contract. Handler failures
// are trapped and fed back to the model as a textual result so a broken tool
// never aborts the surrounding model turn.
type capability struct {
	def *Definition
}

// Adapt wraps an (already enabled-filtered) definition into an invocable
// tool. The enabled flag is not re-checked at call time.
func Adapt(def *Definition) tool.InvokableTool {
	return &capability{def: def}
}

// AdaptAll adapts a slice of definitions for a tools node.
func AdaptAll(defs []*Definition) []tool.BaseTool {
	adapted := make([]tool.BaseTool, 0, len(defs))
	for _, def := range defs {
		adapted = append(adapted, Adapt(def))
	}
	return adapted
}

func (c *capability) Info(_ context.Context) (*schema.ToolInfo, error) {
	return c.def.Info(), nil
}

func (c *capability) InvokableRun(ctx context.Context, argumentsInJSON string, _ ...tool.Option) (string, error) {
	out, err := c.def.Handler(ctx, json.RawMessage(argumentsInJSON))
	if err != nil {
		logx.Warn().Err(err).Str("tool", c.def.Name).Str("arguments", argumentsInJSON).
			Msg("tool handler failed, returning failure text")
		return fmt.Sprintf("tool %s failed: %v", c.def.Name, err), nil
	}
	return out, nil
}

var _ tool.InvokableTool = (*capability)(nil)
