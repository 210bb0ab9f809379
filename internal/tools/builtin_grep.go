package tools

import (
	"bufio"
	"context"
	"fmt"
	"io/fs"
	"os"
	"regexp"
	"strings"

	"github.com/nextlevelbuilder/agentrun/internal/security"
)

func newGrepTool(policy *security.PathPolicy) *Tool {
	return &Tool{
		Name:        "grep",
		Description: "Recursively search text files for a pattern.",
		Category:    CategoryRead,
		ParametersSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"path":          map[string]any{"type": "string"},
				"pattern":       map[string]any{"type": "string"},
				"regex":         map[string]any{"type": "boolean"},
				"caseSensitive": map[string]any{"type": "boolean"},
				"maxResults":    map[string]any{"type": "integer", "minimum": 1},
			},
			"required":             []any{"path", "pattern"},
			"additionalProperties": false,
		},
		Execute: func(ctx context.Context, args map[string]any) Result {
			return execGrep(ctx, policy, args)
		},
	}
}

func execGrep(ctx context.Context, policy *security.PathPolicy, args map[string]any) Result {
	path, _ := args["path"].(string)
	pattern, _ := args["pattern"].(string)
	isRegex, _ := args["regex"].(bool)
	caseSensitive := true
	if v, ok := args["caseSensitive"].(bool); ok {
		caseSensitive = v
	}
	maxResults := intArg(args, "maxResults", 200)

	vr := policy.Validate(ctx, path)
	if !vr.Allowed {
		return Error("Access denied: " + vr.Reason)
	}

	matcher, err := buildMatcher(pattern, isRegex, caseSensitive)
	if err != nil {
		return Error(fmt.Sprintf("invalid pattern: %v", err))
	}

	var sb strings.Builder
	count := 0
	truncated := false
	err = walkBounded(policy, vr.ResolvedPath, func(file string, d fs.DirEntry) error {
		if count >= maxResults {
			truncated = true
			return nil
		}
		f, err := os.Open(file)
		if err != nil {
			return nil
		}
		defer f.Close()
		scanner := bufio.NewScanner(f)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		lineNo := 0
		for scanner.Scan() {
			lineNo++
			line := scanner.Text()
			if loc := matcher(line); loc != nil {
				fmt.Fprintf(&sb, "%s:%d:%d:%s\n", file, lineNo, loc[0]+1, line)
				count++
				if count >= maxResults {
					truncated = true
					break
				}
			}
		}
		return nil
	})
	if err != nil {
		return Error(fmt.Sprintf("grep failed: %v", err))
	}
	if truncated {
		sb.WriteString(fmt.Sprintf("[grep truncated] showing first %d matches.\n", maxResults))
	}
	return Ok(sb.String())
}

func buildMatcher(pattern string, isRegex, caseSensitive bool) (func(string) []int, error) {
	if isRegex {
		flags := ""
		if !caseSensitive {
			flags = "(?i)"
		}
		re, err := regexp.Compile(flags + pattern)
		if err != nil {
			return nil, err
		}
		return func(line string) []int {
			loc := re.FindStringIndex(line)
			return loc
		}, nil
	}
	needle := pattern
	return func(line string) []int {
		hay, n := line, needle
		if !caseSensitive {
			hay, n = strings.ToLower(hay), strings.ToLower(n)
		}
		idx := strings.Index(hay, n)
		if idx < 0 {
			return nil
		}
		return []int{idx, idx + len(n)}
	}, nil
}
