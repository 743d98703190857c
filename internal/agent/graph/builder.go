// Package graph composes and runs the agent workflow: a cyclic eino graph in
// which the chat model either answers directly or requests tools, whose
// results loop back into the model until it produces a final answer.
package graph

import (
	"context"
	"errors"
	"fmt"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/webchat-agent/server/internal/agent/graph/conversations"
	"github.com/webchat-agent/server/internal/agent/model"
	"github.com/webchat-agent/server/internal/agent/tools"
	logx "github.com/webchat-agent/server/pkg/logger"
)

// Node names inside the workflow graph.
const (
	NodeInput = "input"
	NodeModel = "model"
	NodeTools = "tools"
)

// ErrToolRoundLimit aborts a run when the model keeps requesting tools past
// the configured round limit.
var ErrToolRoundLimit = errors.New("tool round limit exceeded")

// DefaultMaxToolRounds caps the model/tool loop when no limit is configured.
const DefaultMaxToolRounds = 10

// BuildConfig holds everything needed to compose one workflow variant.
type BuildConfig struct {
	Model         einomodel.ToolCallingChatModel
	Tools         []*tools.Definition
	Manager       *conversations.Manager
	MaxToolRounds int
}

// Builder assembles the workflow graph step by step.
type Builder struct {
	config *BuildConfig
	graph  *compose.Graph[model.ChatInput, *schema.Message]
}

// Build validates the config, wires the graph and compiles it into a
// runnable. Configurations without tools compile to a straight
// input -> model -> end pipeline with an unbound model.
func Build(ctx context.Context, config *BuildConfig) (compose.Runnable[model.ChatInput, *schema.Message], error) {
	if config == nil {
		return nil, fmt.Errorf("build config is nil")
	}
	if config.Model == nil {
		return nil, fmt.Errorf("chat model is nil")
	}
	if config.Manager == nil {
		return nil, fmt.Errorf("conversation manager is nil")
	}
	if config.MaxToolRounds <= 0 {
		config.MaxToolRounds = DefaultMaxToolRounds
	}

	b := &Builder{
		config: config,
		graph: compose.NewGraph[model.ChatInput, *schema.Message](
			compose.WithGenLocalState(func(ctx context.Context) *model.AppState {
				return &model.AppState{}
			}),
		),
	}

	if err := b.setup(ctx); err != nil {
		return nil, err
	}
	return b.compile(ctx)
}

func (b *Builder) setup(ctx context.Context) error {
	b.graph.AddLambdaNode(NodeInput,
		newInputNode(b.config.Manager),
		compose.WithStatePreHandler(newInputPreHandler()),
	)

	chatModel := b.config.Model
	withTools := len(b.config.Tools) > 0

	if withTools {
		infos := make([]*schema.ToolInfo, 0, len(b.config.Tools))
		for _, def := range b.config.Tools {
			infos = append(infos, def.Info())
		}

		bound, err := chatModel.WithTools(infos)
		if err != nil {
			logx.Error().Err(err).Msg("failed to bind tools to chat model")
			return fmt.Errorf("bind tools to chat model: %w", err)
		}
		chatModel = bound

		toolsNode, err := compose.NewToolNode(ctx, &compose.ToolsNodeConfig{
			Tools: tools.AdaptAll(b.config.Tools),
			UnknownToolsHandler: func(ctx context.Context, name, input string) (string, error) {
				// Hallucinated or malformed tool calls must not kill the run;
				// feed the model a structured note instead.
				logx.Warn().
					Str("tool_name", name).
					Str("arguments", input).
					Msg("unknown tool call, returning fallback result")
				return fmt.Sprintf("{\"error\":\"unknown_tool\",\"name\":%q,\"note\":\"ignored\"}", name), nil
			},
		})
		if err != nil {
			return fmt.Errorf("create tools node: %w", err)
		}

		b.graph.AddToolsNode(NodeTools, toolsNode,
			compose.WithStatePreHandler(newToolsPreHandler()),
			compose.WithStatePostHandler(newToolsPostHandler(b.config.Manager)),
		)
	}

	b.graph.AddChatModelNode(NodeModel, chatModel,
		compose.WithStatePreHandler(newModelPreHandler()),
		compose.WithStatePostHandler(newModelPostHandler(b.config.Manager)),
	)

	b.graph.AddEdge(compose.START, NodeInput)
	b.graph.AddEdge(NodeInput, NodeModel)

	if !withTools {
		b.graph.AddEdge(NodeModel, compose.END)
		return nil
	}

	b.graph.AddEdge(NodeTools, NodeModel)

	branch := compose.NewGraphBranch(
		newToolRoutingCondition(b.config.MaxToolRounds),
		map[string]bool{
			NodeTools:   true,
			compose.END: true,
		},
	)
	if err := b.graph.AddBranch(NodeModel, branch); err != nil {
		logx.Error().Err(err).Msg("error adding tool routing branch")
		return fmt.Errorf("add tool routing branch: %w", err)
	}
	return nil
}

func (b *Builder) compile(ctx context.Context) (compose.Runnable[model.ChatInput, *schema.Message], error) {
	// Each tool round costs two steps (model + tools); leave headroom for the
	// input node and the final model pass.
	maxSteps := 10 + b.config.MaxToolRounds*2
	if maxSteps < 20 {
		maxSteps = 20
	}

	runnable, err := b.graph.Compile(ctx, compose.WithMaxRunSteps(maxSteps))
	if err != nil {
		logx.Error().Err(err).Msg("error compiling workflow graph")
		return nil, fmt.Errorf("compile workflow graph: %w", err)
	}

	logx.Debug().Int("tools", len(b.config.Tools)).Msg("workflow graph compiled")
	return runnable, nil
}
