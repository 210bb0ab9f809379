package tools

import (
	"context"
	"fmt"
	"os"
	"path"
	"strings"

	"github.com/nextlevelbuilder/agentrun/internal/security"
)

func newFindTool(policy *security.PathPolicy) *Tool {
	return &Tool{
		Name:        "find",
		Description: "Find files/directories by glob pattern or substring.",
		Category:    CategoryRead,
		ParametersSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"path":       map[string]any{"type": "string"},
				"pattern":    map[string]any{"type": "string"},
				"kind":       map[string]any{"type": "string", "enum": []any{"all", "file", "directory"}},
				"maxResults": map[string]any{"type": "integer", "minimum": 1},
			},
			"required":             []any{"path"},
			"additionalProperties": false,
		},
		Execute: func(ctx context.Context, args map[string]any) Result {
			return execFind(ctx, policy, args)
		},
	}
}

func execFind(ctx context.Context, policy *security.PathPolicy, args map[string]any) Result {
	pathArg, _ := args["path"].(string)
	pattern, _ := args["pattern"].(string)
	kind, _ := args["kind"].(string)
	if kind == "" {
		kind = "all"
	}
	maxResults := intArg(args, "maxResults", 500)

	vr := policy.Validate(ctx, pathArg)
	if !vr.Allowed {
		return Error("Access denied: " + vr.Reason)
	}

	isGlob := strings.ContainsAny(pattern, "*?")

	var results []string
	truncated := false
	err := walkBoundedAll(policy, vr.ResolvedPath, func(p string, isDir bool) bool {
		if len(results) >= maxResults {
			truncated = true
			return false
		}
		if kind == "file" && isDir {
			return true
		}
		if kind == "directory" && !isDir {
			return true
		}
		name := path.Base(p)
		matched := pattern == ""
		if !matched && isGlob {
			matched, _ = path.Match(pattern, name)
		} else if !matched {
			matched = strings.Contains(name, pattern)
		}
		if matched {
			results = append(results, p)
		}
		return true
	})
	if err != nil {
		return Error(fmt.Sprintf("find failed: %v", err))
	}

	out := strings.Join(results, "\n")
	if truncated {
		out += fmt.Sprintf("\n[find truncated] showing first %d results.", maxResults)
	}
	return Ok(out)
}

// walkBoundedAll is like walkBounded but visits directories too (find
// matches both files and directories depending on kind).
func walkBoundedAll(policy *security.PathPolicy, root string, fn func(path string, isDir bool) bool) error {
	return walkDirBounded(policy, root, root, fn)
}

func walkDirBounded(policy *security.PathPolicy, root, dir string, fn func(path string, isDir bool) bool) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	for _, e := range entries {
		full := dir + string('/') + e.Name()
		vr := policy.ValidateResolved(full, root)
		if !vr.Allowed {
			continue
		}
		if !fn(full, e.IsDir()) {
			return nil
		}
		if e.IsDir() {
			if err := walkDirBounded(policy, root, full, fn); err != nil {
				return err
			}
		}
	}
	return nil
}
