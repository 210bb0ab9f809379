package tools

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/nextlevelbuilder/agentrun/internal/security"
)

func newWriteTool(policy *security.PathPolicy) *Tool {
	return &Tool{
		Name:        "write",
		Description: "Write UTF-8 content to a file, creating parent directories as needed.",
		Category:    CategoryWrite,
		ParametersSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"path":    map[string]any{"type": "string"},
				"content": map[string]any{"type": "string"},
			},
			"required":             []any{"path", "content"},
			"additionalProperties": false,
		},
		Execute: func(ctx context.Context, args map[string]any) Result {
			path, _ := args["path"].(string)
			content, _ := args["content"].(string)

			vr := policy.Validate(ctx, path)
			if !vr.Allowed {
				return Error("Access denied: " + vr.Reason)
			}
			if hardlinked, err := security.CheckHardlink(vr.ResolvedPath); err == nil && hardlinked {
				return Error("Access denied: refusing to write through a hard-linked file")
			}

			if err := os.MkdirAll(filepath.Dir(vr.ResolvedPath), 0o755); err != nil {
				return Error(fmt.Sprintf("cannot create parent directories: %v", err))
			}
			if err := os.WriteFile(vr.ResolvedPath, []byte(content), 0o644); err != nil {
				return Error(fmt.Sprintf("cannot write %s: %v", path, err))
			}
			return Ok(fmt.Sprintf("Wrote %d bytes to %s", len(content), path))
		},
	}
}
