package mcp

import (
	"context"
	"fmt"

	"github.com/bigdouble/exbuild/internal/build"
	"github.com/bigdouble/exbuild/internal/buildlog"
	"github.com/bigdouble/exbuild/internal/runner"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

type buildParams struct {
	Executable string `json:"executable,omitempty" jsonschema:"Compiler launcher: dart, dart.bat, dart.exe or flutter (default: the configured launcher)."`
	Target     string `json:"target,omitempty" jsonschema:"dart compile target kind, e.g. exe, aot-snapshot, js. Default: exe."`
	Source     string `json:"source,omitempty" jsonschema:"Entry point relative to dir. Default: example/main.dart."`
	Dir        string `json:"dir,omitempty" jsonschema:"Working directory relative to the workspace. Default: the workspace itself."`
	Label      string `json:"label,omitempty" jsonschema:"Name shown in log records. Default: DART_BUILD."`
}

func (h *handler) buildHandler(ctx context.Context, req *mcp.CallToolRequest, params buildParams) (*mcp.CallToolResult, any, error) {
	cfg, workspace, _ := h.snapshot()

	inv := cfg.Invocation()
	if params.Executable != "" && params.Executable != inv.Executable {
		if !build.IsKnownCompiler(params.Executable) {
			return errorResult(fmt.Sprintf("executable %q is not allowed: use the configured launcher or one of dart, dart.bat, dart.exe, flutter", params.Executable))
		}
		inv.Executable = params.Executable
	}
	if params.Target != "" {
		inv.Target = params.Target
	}
	if params.Source != "" {
		inv.Source = params.Source
	}
	if params.Dir != "" {
		inv.Dir = params.Dir
	}
	if params.Label != "" {
		inv.Label = params.Label
	}

	log := buildlog.New(h.logOut, cfg.Logger(), buildlog.ParseLevel(cfg.LogLevel))
	eng := &build.Engine{
		Invocation: inv,
		Runner: &runner.Runner{
			Workspace: workspace,
			Timeout:   cfg.Timeout(),
			MaxOutput: cfg.MaxOutputBytes(),
			Confine:   true,
			Log:       log,
		},
		Log:     log,
		Store:   h.store,
		Metrics: h.metrics,
	}

	result, err := eng.Build(ctx)
	if err != nil {
		return errorResult(fmt.Sprintf("Build could not start: %v", err))
	}

	return textResult(result.RunResult.String() + fmt.Sprintf("\nFetch again with exb_result(run_id=%q).\n", result.RunResult.ID))
}
