// Package mcp exposes every catalog entry as a Model Context Protocol tool
// over stdio, so an external agent runtime can call them.
package mcp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	jsoniter "github.com/json-iterator/go"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"friday/pkg/api"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// RunWorkflowTool is the extra tool that runs a sequence of capabilities.
const RunWorkflowTool = "run_workflow"

type MCPConfig struct {
	Name    string `json:"name"`    // Default: friday
	Version string `json:"version"` // Default: 1.0.0
}

type MCPChannel struct {
	config MCPConfig
	in     io.Reader
	out    io.Writer

	cancel context.CancelFunc
	done   chan struct{}
	mu     sync.Mutex
}

// NewMCPChannel serves on in and out, normally os.Stdin and os.Stdout.
func NewMCPChannel(cfg MCPConfig, in io.Reader, out io.Writer) *MCPChannel {
	if cfg.Name == "" {
		cfg.Name = "friday"
	}
	if cfg.Version == "" {
		cfg.Version = "1.0.0"
	}
	return &MCPChannel{config: cfg, in: in, out: out}
}

// Stdio is the default transport.
func Stdio(cfg MCPConfig) *MCPChannel {
	return NewMCPChannel(cfg, os.Stdin, os.Stdout)
}

func (c *MCPChannel) ID() string {
	return "mcp"
}

// NewServer builds the MCP server with one tool per catalog entry.
func (c *MCPChannel) NewServer(core api.ChannelContext) *server.MCPServer {
	s := server.NewMCPServer(
		c.config.Name,
		c.config.Version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
		server.WithPromptCapabilities(false),
	)
	s.AddTools(Tools(core)...)
	return s
}

func (c *MCPChannel) Start(core api.ChannelContext) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		return errors.New("mcp channel already started")
	}

	s := c.NewServer(core)
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.done = make(chan struct{})

	slog.Info("MCP stdio server started", "tools", len(core.Catalog())+1)

	go func() {
		defer close(c.done)
		err := server.NewStdioServer(s).Listen(ctx, c.in, c.out)
		if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, io.EOF) {
			slog.Error("MCP stdio server stopped", "error", err)
		}
	}()
	return nil
}

func (c *MCPChannel) Stop() error {
	c.mu.Lock()
	cancel, done := c.cancel, c.done
	c.cancel = nil
	c.mu.Unlock()
	if cancel == nil {
		return nil
	}
	cancel()
	<-done
	return nil
}

// Tools converts the catalog into MCP tools plus run_workflow.
func Tools(core api.ChannelContext) []server.ServerTool {
	catalog := core.Catalog()
	tools := make([]server.ServerTool, 0, len(catalog)+1)
	for _, d := range catalog {
		tools = append(tools, server.ServerTool{
			Tool:    toolFor(d),
			Handler: invokeHandler(core, d.Name),
		})
	}
	tools = append(tools, server.ServerTool{
		Tool: mcp.NewTool(RunWorkflowTool,
			mcp.WithDescription("Run capabilities in order and report each step. A failed step does not stop the rest unless it is marked critical."),
			mcp.WithString("name",
				mcp.Description("Name used in the report"),
			),
			mcp.WithArray("steps",
				mcp.Required(),
				mcp.Description("Steps to run, each {\"capability\": name, \"arguments\": {...}, \"critical\": bool}"),
				mcp.Items(map[string]any{
					"type": "object",
					"properties": map[string]any{
						"capability": map[string]any{"type": "string"},
						"arguments":  map[string]any{"type": "object"},
						"critical":   map[string]any{"type": "boolean"},
					},
					"required": []string{"capability"},
				}),
			),
		),
		Handler: workflowHandler(core),
	})
	return tools
}

func toolFor(d api.Descriptor) mcp.Tool {
	desc := d.Description
	if len(d.Providers) > 0 {
		desc = fmt.Sprintf("%s (tries %v in order)", desc, d.Providers)
	}
	opts := []mcp.ToolOption{mcp.WithDescription(desc)}
	for _, p := range d.Params {
		opts = append(opts, paramOption(p))
	}
	return mcp.NewTool(d.Name, opts...)
}

func paramOption(p api.Param) mcp.ToolOption {
	props := []mcp.PropertyOption{}
	if p.Required {
		props = append(props, mcp.Required())
	}
	if desc := describeParam(p); desc != "" {
		props = append(props, mcp.Description(desc))
	}

	switch p.Type {
	case api.ParamBoolean:
		if b, ok := p.Default.(bool); ok {
			props = append(props, mcp.DefaultBool(b))
		}
		return mcp.WithBoolean(p.Name, props...)
	case api.ParamInteger, api.ParamNumber, api.ParamPercent:
		if n, ok := number(p.Default); ok {
			props = append(props, mcp.DefaultNumber(n))
		}
		return mcp.WithNumber(p.Name, props...)
	case api.ParamEnum:
		props = append(props, mcp.Enum(p.Enum...))
		fallthrough
	default:
		if s, ok := p.Default.(string); ok {
			props = append(props, mcp.DefaultString(s))
		}
		return mcp.WithString(p.Name, props...)
	}
}

// describeParam states numeric ranges in prose rather than as schema
// bounds: out-of-range values are clamped, and clients that validate
// minimum and maximum would refuse them before they arrive.
func describeParam(p api.Param) string {
	var rng string
	switch {
	case p.Type == api.ParamPercent:
		rng = "0-100"
	case p.Min != nil && p.Max != nil:
		rng = fmt.Sprintf("%g-%g", *p.Min, *p.Max)
	case p.Min != nil:
		rng = fmt.Sprintf("at least %g", *p.Min)
	case p.Max != nil:
		rng = fmt.Sprintf("at most %g", *p.Max)
	default:
		return p.Description
	}
	note := fmt.Sprintf("(%s, values outside are clamped)", rng)
	if p.Description == "" {
		return note
	}
	return p.Description + " " + note
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

func invokeHandler(core api.ChannelContext, name string) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		out := core.Invoke(ctx, name, api.Args(req.GetArguments()))
		if !out.OK {
			return mcp.NewToolResultError(out.Render()), nil
		}
		return mcp.NewToolResultText(out.Render()), nil
	}
}

func workflowHandler(core api.ChannelContext) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := req.GetArguments()
		name, _ := args["name"].(string)
		if name == "" {
			name = "mcp"
		}

		// Round-trip through JSON to get typed steps.
		raw, err := json.Marshal(args["steps"])
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Error (%s): steps: %v", api.KindInvalidArgument, err)), nil
		}
		var steps []api.WorkflowStep
		if err := json.Unmarshal(raw, &steps); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Error (%s): steps must be a list of {capability, arguments}", api.KindInvalidArgument)), nil
		}
		return mcp.NewToolResultText(core.RunWorkflow(ctx, name, steps)), nil
	}
}
