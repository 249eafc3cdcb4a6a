package mcp

import (
	"context"
	"fmt"
	"strings"

	"github.com/bigdouble/exbuild/internal/build"
	"github.com/bigdouble/exbuild/internal/runner"
	"github.com/bigdouble/exbuild/internal/vcs"
	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

type workspaceParams struct{}

func (h *handler) workspaceHandler(ctx context.Context, req *sdkmcp.CallToolRequest, _ workspaceParams) (*sdkmcp.CallToolResult, any, error) {
	cfg, workspace, root := h.snapshot()
	inv := cfg.Invocation()

	var b strings.Builder
	fmt.Fprintf(&b, "Workspace: %s\n", workspace)
	fmt.Fprintf(&b, "Project root: %s\n", root)

	r := &runner.Runner{Workspace: workspace, Confine: true}
	dir, err := r.ResolveDir(inv.Dir)
	if err != nil {
		return errorResult(fmt.Sprintf("Invalid build directory: %v", err))
	}
	fmt.Fprintf(&b, "Build directory: %s\n", dir)
	fmt.Fprintf(&b, "Command: %s\n", strings.Join(inv.Argv(), " "))
	fmt.Fprintf(&b, "Expected artifact: %s\n", build.ExpectedArtifact(inv))

	if path, err := build.ResolveCompiler(inv.Executable); err != nil {
		fmt.Fprintf(&b, "Compiler: unavailable (%v)\n", err)
	} else {
		fmt.Fprintf(&b, "Compiler: %s\n", path)
	}

	rev, err := vcs.Revision(workspace)
	switch {
	case err != nil:
		fmt.Fprintf(&b, "Revision: (unknown: %v)\n", err)
	case rev == "":
		fmt.Fprintln(&b, "Revision: (not a git repository)")
	default:
		fmt.Fprintf(&b, "Revision: %s\n", rev)
	}

	if t := cfg.Timeout(); t > 0 {
		fmt.Fprintf(&b, "Timeout: %s\n", t)
	} else {
		fmt.Fprintln(&b, "Timeout: none")
	}

	return textResult(b.String())
}
