package tools

import (
	"context"
	"fmt"
	"os"

	"github.com/nextlevelbuilder/agentrun/internal/security"
)

// noticeBudget is reserved out of the requested window so the truncation
// notice itself never pushes the returned payload over limit.
const noticeBudget = 256

func newReadTool(policy *security.PathPolicy) *Tool {
	return &Tool{
		Name:        "read",
		Description: "Read a byte-wise window of a UTF-8 text file.",
		Category:    CategoryRead,
		ParametersSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"path":   map[string]any{"type": "string"},
				"offset": map[string]any{"type": "integer", "minimum": 0},
				"limit":  map[string]any{"type": "integer", "minimum": 1},
			},
			"required":             []any{"path"},
			"additionalProperties": false,
		},
		Execute: func(ctx context.Context, args map[string]any) Result {
			return execRead(ctx, policy, args)
		},
	}
}

func execRead(ctx context.Context, policy *security.PathPolicy, args map[string]any) Result {
	path, _ := args["path"].(string)
	vr := policy.Validate(ctx, path)
	if !vr.Allowed {
		return Error("Access denied: " + vr.Reason)
	}

	data, err := os.ReadFile(vr.ResolvedPath)
	if err != nil {
		return Error(fmt.Sprintf("cannot read %s: %v", path, err))
	}

	offset := intArg(args, "offset", 0)
	limit := intArg(args, "limit", len(data))
	if offset < 0 {
		offset = 0
	}
	if offset > len(data) {
		offset = len(data)
	}
	end := offset + limit
	truncated := end < len(data)
	if truncated {
		end -= noticeBudget
		if end < offset {
			end = offset
		}
	} else {
		end = len(data)
	}

	window := string(data[offset:end])
	if truncated {
		window += fmt.Sprintf("\n[read truncated] showing bytes %d-%d of %d.\nContinue with offset=%d.", offset, end, len(data), end)
	}
	return Ok(window)
}

func intArg(args map[string]any, key string, def int) int {
	v, ok := args[key]
	if !ok {
		return def
	}
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	default:
		return def
	}
}
