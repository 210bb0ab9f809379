package tools

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/nextlevelbuilder/agentrun/internal/security"
)

func newLsTool(policy *security.PathPolicy) *Tool {
	return &Tool{
		Name:        "ls",
		Description: "List directory entries, sorted, directories suffixed with /.",
		Category:    CategoryRead,
		ParametersSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"path": map[string]any{"type": "string"},
			},
			"required":             []any{"path"},
			"additionalProperties": false,
		},
		Execute: func(ctx context.Context, args map[string]any) Result {
			path, _ := args["path"].(string)
			vr := policy.Validate(ctx, path)
			if !vr.Allowed {
				return Error("Access denied: " + vr.Reason)
			}
			entries, err := os.ReadDir(vr.ResolvedPath)
			if err != nil {
				return Error(fmt.Sprintf("cannot list %s: %v", path, err))
			}
			names := make([]string, 0, len(entries))
			for _, e := range entries {
				name := e.Name()
				if e.IsDir() {
					name += "/"
				}
				names = append(names, name)
			}
			sort.Strings(names)
			return Ok(strings.Join(names, "\n"))
		},
	}
}
