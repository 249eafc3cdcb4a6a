// Package mcp provides the exbuild MCP server, registering the build tools
// and publishing model instructions.
package mcp

import (
	"context"
	_ "embed"
	"io"
	"net/url"
	"sync"
	"time"

	"github.com/bigdouble/exbuild"
	"github.com/bigdouble/exbuild/internal/config"
	"github.com/bigdouble/exbuild/internal/metrics"
	"github.com/bigdouble/exbuild/internal/report"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

//go:embed instructions.md
var Instructions string

// handler holds shared dependencies for all tool handlers.
type handler struct {
	mu        sync.Mutex
	cfg       *config.Config
	workspace string
	root      string

	store   report.Store
	metrics *metrics.Collector // nil disables metrics
	logOut  io.Writer          // build records are mirrored here; never stdout
}

// NewServer creates an MCP server with all exbuild tools registered.
// Builds run in workspace and their records are saved to store.
func NewServer(cfg *config.Config, store report.Store, workspace string, opts ...ServerOption) *mcp.Server {
	h := &handler{
		cfg:       cfg,
		workspace: workspace,
		root:      workspace, // updated via roots
		store:     store,
		logOut:    io.Discard,
	}

	var so serverOptions
	for _, o := range opts {
		o(&so)
	}
	if so.logOut != nil {
		h.logOut = so.logOut
	}
	h.metrics = so.metrics

	mcpOpts := &mcp.ServerOptions{
		Instructions: Instructions,
		Capabilities: &mcp.ServerCapabilities{
			Tools: &mcp.ToolCapabilities{ListChanged: false},
		},
		InitializedHandler: func(ctx context.Context, req *mcp.InitializedRequest) {
			h.updateWorkspaceFromRoots(ctx, req.Session)
		},
	}
	s := mcp.NewServer(&mcp.Implementation{Name: "exbuild", Version: exbuild.Version}, mcpOpts)

	mcp.AddTool(s, &mcp.Tool{
		Name:        "exb_workspace",
		Description: "Summarise the build workspace: project root, compiler command, whether the compiler is on PATH, and the git revision.",
	}, h.workspaceHandler)

	mcp.AddTool(s, &mcp.Tool{
		Name: "exb_build",
		Description: `Compile the example with the configured Dart command and report the result.

Runs "<executable> compile <target> <source>" once in the workspace. Fields left empty use the
configured defaults. Returns the exit code, timing, and the compiler output. Results are stored
for later retrieval via exb_result.`,
	}, h.buildHandler)

	mcp.AddTool(s, &mcp.Tool{
		Name:        "exb_result",
		Description: "Fetch a stored build result by the run_id returned from exb_build.",
	}, h.resultHandler)

	return s
}

// ServerOption configures the exbuild MCP server.
type ServerOption func(*serverOptions)

type serverOptions struct {
	logOut  io.Writer
	metrics *metrics.Collector
}

// WithLogOutput mirrors build log records to w.
func WithLogOutput(w io.Writer) ServerOption {
	return func(o *serverOptions) {
		o.logOut = w
	}
}

// WithMetrics records every build in c.
func WithMetrics(c *metrics.Collector) ServerOption {
	return func(o *serverOptions) {
		o.metrics = c
	}
}

// snapshot returns the current config and workspace under the lock.
func (h *handler) snapshot() (*config.Config, string, string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.cfg, h.workspace, h.root
}

// updateWorkspaceFromRoots queries the client for MCP roots and switches
// the workspace and config if a valid file root is returned.
// This is called during session initialization, before any tool calls.
func (h *handler) updateWorkspaceFromRoots(ctx context.Context, session *mcp.ServerSession) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	roots, err := session.ListRoots(ctx, &mcp.ListRootsParams{})
	if err != nil {
		return
	}
	if len(roots.Roots) == 0 {
		return
	}

	u, err := url.Parse(roots.Roots[0].URI)
	if err != nil || u.Scheme != "file" {
		return
	}
	workspace := u.Path

	loaded, err := config.Load(workspace)
	if err != nil {
		return
	}

	h.mu.Lock()
	h.cfg = loaded.Config
	h.workspace = workspace
	h.root = loaded.ProjectRoot
	h.mu.Unlock()
}

// textResult is a helper to build a text-only tool result.
func textResult(text string) (*mcp.CallToolResult, any, error) {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}, nil, nil
}

// errorResult is a helper to build an error tool result.
func errorResult(text string) (*mcp.CallToolResult, any, error) {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
		IsError: true,
	}, nil, nil
}
