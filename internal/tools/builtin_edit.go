package tools

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/nextlevelbuilder/agentrun/internal/security"
)

func newEditTool(policy *security.PathPolicy) *Tool {
	return &Tool{
		Name:        "edit",
		Description: "Replace an exact (or whitespace-flexible) occurrence of text in a file.",
		Category:    CategoryWrite,
		ParametersSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"path":     map[string]any{"type": "string"},
				"oldText":  map[string]any{"type": "string"},
				"newText":  map[string]any{"type": "string"},
			},
			"required":             []any{"path", "oldText", "newText"},
			"additionalProperties": false,
		},
		Execute: func(ctx context.Context, args map[string]any) Result {
			return execEdit(ctx, policy, args)
		},
	}
}

func execEdit(ctx context.Context, policy *security.PathPolicy, args map[string]any) Result {
	path, _ := args["path"].(string)
	oldText, _ := args["oldText"].(string)
	newText, _ := args["newText"].(string)

	vr := policy.Validate(ctx, path)
	if !vr.Allowed {
		return Error("Access denied: " + vr.Reason)
	}

	data, err := os.ReadFile(vr.ResolvedPath)
	if err != nil {
		return Error(fmt.Sprintf("cannot read %s: %v", path, err))
	}
	original := string(data)

	count := strings.Count(original, oldText)
	var replaced string
	switch count {
	case 1:
		replaced = strings.Replace(original, oldText, newText, 1)
	case 0:
		pattern, err := whitespaceFlexiblePattern(oldText)
		if err != nil {
			return Error("not found: oldText does not appear in file")
		}
		matches := pattern.FindAllStringIndex(original, -1)
		if len(matches) == 0 {
			return Error("not found: oldText does not appear in file")
		}
		if len(matches) > 1 {
			return Error(fmt.Sprintf("ambiguous: oldText matches %d locations", len(matches)))
		}
		m := matches[0]
		replaced = original[:m[0]] + newText + original[m[1]:]
	default:
		return Error(fmt.Sprintf("ambiguous: oldText matches %d locations", count))
	}

	if err := os.WriteFile(vr.ResolvedPath, []byte(replaced), 0o644); err != nil {
		return Error(fmt.Sprintf("cannot write %s: %v", path, err))
	}
	return Ok(unifiedDiffHunk(path, original, replaced))
}

// whitespaceFlexiblePattern tokenizes text on runs of whitespace and joins
// the escaped tokens with a whitespace-run matcher, so an edit survives
// reformatting that only changed spacing.
func whitespaceFlexiblePattern(text string) (*regexp.Regexp, error) {
	tokens := strings.Fields(text)
	if len(tokens) == 0 {
		return nil, fmt.Errorf("empty oldText")
	}
	escaped := make([]string, len(tokens))
	for i, t := range tokens {
		escaped[i] = regexp.QuoteMeta(t)
	}
	return regexp.Compile(strings.Join(escaped, `\s+`))
}

// unifiedDiffHunk synthesizes a minimal unified-diff-style header plus the
// changed-line hunk, without shelling out to diff.
func unifiedDiffHunk(path, before, after string) string {
	beforeLines := strings.Split(before, "\n")
	afterLines := strings.Split(after, "\n")

	start := 0
	for start < len(beforeLines) && start < len(afterLines) && beforeLines[start] == afterLines[start] {
		start++
	}
	endB := len(beforeLines)
	endA := len(afterLines)
	for endB > start && endA > start && beforeLines[endB-1] == afterLines[endA-1] {
		endB--
		endA--
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "--- %s\n+++ %s\n", path, path)
	fmt.Fprintf(&sb, "@@ -%d,%d +%d,%d @@\n", start+1, endB-start, start+1, endA-start)
	for _, l := range beforeLines[start:endB] {
		sb.WriteString("-" + l + "\n")
	}
	for _, l := range afterLines[start:endA] {
		sb.WriteString("+" + l + "\n")
	}
	return sb.String()
}
