package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/cloudwego/eino/schema"
	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	logx "github.com/webchat-agent/server/pkg/logger"
)

// MCPServer names one external MCP server reachable over streamable HTTP.
type MCPServer struct {
	Name     string
	Endpoint string
}

// ParseMCPServers parses the MCP_SERVERS value: a comma-separated list of
// name=endpoint pairs. Malformed entries are dropped with a warning.
func ParseMCPServers(spec string) []MCPServer {
	if strings.TrimSpace(spec) == "" {
		return nil
	}
	var servers []MCPServer
	for _, entry := range strings.Split(spec, ",") {
		name, endpoint, ok := strings.Cut(strings.TrimSpace(entry), "=")
		if !ok || name == "" || endpoint == "" {
			logx.Warn().Str("entry", entry).Msg("malformed MCP server entry, skipping")
			continue
		}
		servers = append(servers, MCPServer{Name: name, Endpoint: endpoint})
	}
	return servers
}

// MCPSource holds the live sessions to external MCP servers whose tools were
// merged into the registry.
type MCPSource struct {
	sessions []*mcp.ClientSession
}

// ConnectMCP connects to each configured server, lists its tools and
// registers one definition per tool. Connection failures degrade gracefully:
// the server is skipped and the rest of the registry stays usable.
func ConnectMCP(ctx context.Context, reg *Registry, servers []MCPServer) (*MCPSource, error) {
	src := &MCPSource{}
	client := mcp.NewClient(&mcp.Implementation{Name: "webchat-agent", Version: "0.1.0"}, nil)

	for _, srv := range servers {
		session, err := client.Connect(ctx, &mcp.StreamableClientTransport{Endpoint: srv.Endpoint}, nil)
		if err != nil {
			logx.Warn().Err(err).Str("server", srv.Name).Str("endpoint", srv.Endpoint).
				Msg("failed to connect MCP server, skipping")
			continue
		}

		listed, err := session.ListTools(ctx, nil)
		if err != nil {
			logx.Warn().Err(err).Str("server", srv.Name).Msg("failed to list MCP tools, skipping server")
			session.Close()
			continue
		}

		src.sessions = append(src.sessions, session)
		for _, t := range listed.Tools {
			def := mcpDefinition(session, t)
			if err := reg.Register(def); err != nil {
				logx.Warn().Err(err).Str("server", srv.Name).Str("tool", t.Name).
					Msg("could not register MCP tool")
				continue
			}
			logx.Info().Str("server", srv.Name).Str("tool", t.Name).Msg("registered MCP tool")
		}
	}
	return src, nil
}

// Close terminates all MCP sessions.
func (s *MCPSource) Close() error {
	var firstErr error
	for _, session := range s.sessions {
		if err := session.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func mcpDefinition(session *mcp.ClientSession, t *mcp.Tool) *Definition {
	name := t.Name
	return &Definition{
		ID:      name,
		Name:    name,
		Desc:    t.Description,
		Params:  paramsFromJSONSchema(decodeInputSchema(t.InputSchema)),
		Enabled: true,
		Handler: func(ctx context.Context, args json.RawMessage) (string, error) {
			params := &mcp.CallToolParams{Name: name}
			if len(args) > 0 {
				params.Arguments = args
			}
			res, err := session.CallTool(ctx, params)
			if err != nil {
				return "", fmt.Errorf("call MCP tool %s: %w", name, err)
			}

			var b strings.Builder
			for _, content := range res.Content {
				if tc, ok := content.(*mcp.TextContent); ok {
					b.WriteString(tc.Text)
				}
			}
			if res.IsError {
				if b.Len() == 0 {
					return "", fmt.Errorf("MCP tool %s reported an error", name)
				}
				return "", fmt.Errorf("MCP tool %s: %s", name, b.String())
			}
			return b.String(), nil
		},
	}
}

// decodeInputSchema converts the wire value of a tool's input schema into a
// typed schema. The SDK declares the field as any, so over the wire it
// arrives as unmarshalled JSON rather than a concrete schema type.
func decodeInputSchema(raw any) *jsonschema.Schema {
	switch v := raw.(type) {
	case nil:
		return nil
	case *jsonschema.Schema:
		return v
	}

	b, err := json.Marshal(raw)
	if err != nil {
		logx.Warn().Err(err).Msg("could not encode MCP tool input schema")
		return nil
	}
	var js jsonschema.Schema
	if err := json.Unmarshal(b, &js); err != nil {
		logx.Warn().Err(err).Msg("could not decode MCP tool input schema")
		return nil
	}
	return &js
}

// paramsFromJSONSchema flattens the top level of an MCP tool's input schema
// into eino parameter infos. Nested object details beyond one level are not
// carried over; models only need names, types and descriptions to call.
func paramsFromJSONSchema(js *jsonschema.Schema) map[string]*schema.ParameterInfo {
	if js == nil || len(js.Properties) == 0 {
		return nil
	}
	params := make(map[string]*schema.ParameterInfo, len(js.Properties))
	for name, prop := range js.Properties {
		if prop == nil {
			continue
		}
		info := &schema.ParameterInfo{
			Type:     dataTypeOf(prop.Type),
			Desc:     prop.Description,
			Required: slices.Contains(js.Required, name),
		}
		if info.Type == schema.Array && prop.Items != nil {
			info.ElemInfo = &schema.ParameterInfo{
				Type: dataTypeOf(prop.Items.Type),
				Desc: prop.Items.Description,
			}
		}
		params[name] = info
	}
	return params
}

func dataTypeOf(t string) schema.DataType {
	switch t {
	case "number":
		return schema.Number
	case "integer":
		return schema.Integer
	case "boolean":
		return schema.Boolean
	case "array":
		return schema.Array
	case "object":
		return schema.Object
	case "null":
		return schema.Null
	default:
		return schema.String
	}
}
