package mcp

import (
	"context"
	"errors"
	"fmt"

	"github.com/bigdouble/exbuild/internal/report"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

type resultParams struct {
	RunID string `json:"run_id" jsonschema:"the run ID from an exb_build result"`
}

func (h *handler) resultHandler(ctx context.Context, req *mcp.CallToolRequest, params resultParams) (*mcp.CallToolResult, any, error) {
	if params.RunID == "" {
		return errorResult("run_id is required")
	}

	result, err := h.store.Load(params.RunID)
	if err != nil {
		if errors.Is(err, report.ErrNotFound) {
			return errorResult(fmt.Sprintf("No build with run_id %s.", params.RunID))
		}
		return errorResult(fmt.Sprintf("Failed to load run %s: %v", params.RunID, err))
	}

	return textResult(result.String())
}
