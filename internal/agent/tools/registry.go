// Package tools holds the tool registry and the adapter that turns a tool
// definition into the invocable form the agent graph binds to a model.
package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/cloudwego/eino/schema"

	logx "github.com/webchat-agent/server/pkg/logger"
)

// Handler executes a tool against its raw JSON arguments and returns a text
// result for the model to consume.
type Handler func(ctx context.Context, args json.RawMessage) (string, error)

// Definition describes one tool: identity, presentation, declarative
// parameter schema and the handler capability. Only enabled definitions are
// ever exposed to a model.
type Definition struct {
	ID      string
	Name    string
	Desc    string
	Params  map[string]*schema.ParameterInfo
	Enabled bool
	Handler Handler
}

// Info renders the definition as the schema a chat model binds to.
func (d *Definition) Info() *schema.ToolInfo {
	return &schema.ToolInfo{
		Name:        d.Name,
		Desc:        d.Desc,
		ParamsOneOf: schema.NewParamsOneOfByParams(d.Params),
	}
}

// Registry maps tool ids to definitions. Definitions are validated at
// registration time so call sites never have to re-check them.
type Registry struct {
	defs  map[string]*Definition
	order []string
}

// NewRegistry builds a registry from the given definitions.
func NewRegistry(defs ...*Definition) (*Registry, error) {
	r := &Registry{defs: make(map[string]*Definition, len(defs))}
	for _, def := range defs {
		if err := r.Register(def); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds a definition, rejecting duplicates and incomplete entries.
func (r *Registry) Register(def *Definition) error {
	if def == nil || def.ID == "" || def.Name == "" {
		return fmt.Errorf("tool definition needs an id and a name")
	}
	if def.Handler == nil {
		return fmt.Errorf("tool %s has no handler", def.ID)
	}
	if _, exists := r.defs[def.ID]; exists {
		return fmt.Errorf("tool %s already registered", def.ID)
	}
	r.defs[def.ID] = def
	r.order = append(r.order, def.ID)
	return nil
}

// Get returns the definition for an id.
func (r *Registry) Get(id string) (*Definition, bool) {
	def, ok := r.defs[id]
	return def, ok
}

// IDs returns all registered tool ids in registration order.
func (r *Registry) IDs() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Enabled resolves the requested ids to enabled definitions. Unknown ids and
// disabled tools are dropped silently, matching the permissive contract of
// the chat endpoint.
func (r *Registry) Enabled(ids []string) []*Definition {
	defs := make([]*Definition, 0, len(ids))
	for _, id := range ids {
		def, ok := r.defs[id]
		if !ok {
			logx.Debug().Str("tool_id", id).Msg("unknown tool id requested, dropping")
			continue
		}
		if !def.Enabled {
			logx.Debug().Str("tool_id", id).Msg("disabled tool requested, dropping")
			continue
		}
		defs = append(defs, def)
	}
	return defs
}
