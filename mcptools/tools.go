// Package mcptools publishes the type hierarchy commands as Model Context
// Protocol tools using github.com/modelcontextprotocol/go-sdk.
//
// Each command becomes one tool whose input is the command's single argument.
// Results carry the item list twice: as structured content {"items": [...]}
// and as a JSON text block for clients that ignore structured output.
// Argument problems are reported as tool errors, not protocol errors.
package mcptools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ggoodman/typehierarchy-go/commands"
	"github.com/ggoodman/typehierarchy-go/internal/logctx"
	"github.com/ggoodman/typehierarchy-go/typehierarchy"
	"github.com/google/uuid"
	"github.com/invopop/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// ItemsResult is the structured content of every tool result.
type ItemsResult struct {
	Items []typehierarchy.Item `json:"items"`
}

// Server wraps an MCP server exposing the dispatcher's commands.
type Server struct {
	dispatcher *commands.Dispatcher
	server     *mcp.Server
	log        *slog.Logger
	tools      []string
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger used for tool calls.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.log = l }
}

// ToolName maps a command name to its tool name.
func ToolName(command string) string {
	return strings.ReplaceAll(command, ".", "_")
}

// New builds an MCP server with one tool per dispatcher command.
func New(d *commands.Dispatcher, name, version string, opts ...Option) (*Server, error) {
	s := &Server{
		dispatcher: d,
		server:     mcp.NewServer(&mcp.Implementation{Name: name, Version: version}, nil),
		log:        slog.New(slog.DiscardHandler),
	}
	for _, o := range opts {
		o(s)
	}
	for _, c := range d.Commands() {
		schema, err := inputSchema(c.Argument)
		if err != nil {
			return nil, fmt.Errorf("mcptools: schema for %s: %w", c.Name, err)
		}
		tool := &mcp.Tool{
			Name:        ToolName(c.Name),
			Description: c.Description,
			InputSchema: schema,
		}
		s.server.AddTool(tool, s.handler(c.Name))
		s.tools = append(s.tools, tool.Name)
	}
	return s, nil
}

// MCP returns the underlying server, e.g. to Connect additional transports.
func (s *Server) MCP() *mcp.Server { return s.server }

// Tools returns the registered tool names.
func (s *Server) Tools() []string { return append([]string(nil), s.tools...) }

// Run serves t until the client disconnects or ctx is done.
func (s *Server) Run(ctx context.Context, t mcp.Transport) error {
	return s.server.Run(ctx, t)
}

func (s *Server) handler(command string) mcp.ToolHandler {
	return func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		ctx = logctx.WithRequestData(ctx, &logctx.RequestData{RequestID: uuid.NewString(), Method: "tools/call", Command: command})

		var arg json.RawMessage
		if req.Params != nil {
			arg = req.Params.Arguments
		}
		items, err := s.dispatcher.Execute(ctx, command, arg)
		if err != nil {
			s.log.InfoContext(ctx, "tool call rejected", slog.String("err", err.Error()))
			return &mcp.CallToolResult{
				IsError: true,
				Content: []mcp.Content{&mcp.TextContent{Text: err.Error()}},
			}, nil
		}

		out := ItemsResult{Items: items}
		text, err := json.Marshal(out)
		if err != nil {
			return nil, err
		}
		return &mcp.CallToolResult{
			Content:           []mcp.Content{&mcp.TextContent{Text: string(text)}},
			StructuredContent: out,
		}, nil
	}
}

// inputSchema converts a reflected schema into the plain JSON object form
// tools advertise.
func inputSchema(s *jsonschema.Schema) (map[string]any, error) {
	b, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	delete(m, "$schema")
	delete(m, "$id")
	m["type"] = "object"
	return m, nil
}
