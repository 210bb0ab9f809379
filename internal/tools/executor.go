package tools

import (
	"context"
	"fmt"
	"strings"
	"time"
)

const (
	defaultOutputLimitBytes = 200000
	defaultTimeoutSeconds   = 120
	minTimeoutSeconds       = 1
)

// ExecuteTool implements the spec's executeTool(registry, name, args,
// cancel) pipeline: lookup, schema validation, timeout-raced execution,
// and output truncation.
func ExecuteTool(ctx context.Context, registry *Registry, name string, args map[string]any) Result {
	tool, ok := registry.Get(name)
	if !ok {
		return Error(fmt.Sprintf("Unknown tool: %s", name))
	}

	if err := tool.compiled.Validate(args); err != nil {
		return Error(formatValidationError(err))
	}

	timeout := time.Duration(tool.TimeoutSeconds) * time.Second
	if tool.TimeoutSeconds == 0 {
		timeout = defaultTimeoutSeconds * time.Second
	} else if tool.TimeoutSeconds < minTimeoutSeconds {
		timeout = minTimeoutSeconds * time.Second
	}

	innerCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type outcome struct {
		res Result
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: fmt.Errorf("panic: %v", r)}
			}
		}()
		done <- outcome{res: tool.Execute(innerCtx, args)}
	}()

	select {
	case o := <-done:
		if o.err != nil {
			return Error(fmt.Sprintf("Tool execution failed: %v", o.err))
		}
		return truncate(o.res, outputLimit(tool))
	case <-innerCtx.Done():
		if ctx.Err() != nil {
			// Outer cancellation, not a timeout of this call specifically.
			return Error("Tool execution cancelled.")
		}
		return Error(fmt.Sprintf("Tool execution timed out after %dms.", timeout.Milliseconds()))
	}
}

func outputLimit(t *Tool) int {
	if t.OutputLimitBytes > 0 {
		return t.OutputLimitBytes
	}
	return defaultOutputLimitBytes
}

// truncate keeps content's prefix up to limit bytes, appending a marker
// when it exceeds the limit. Length is always measured in bytes, not
// runes, per the spec.
func truncate(res Result, limit int) Result {
	if len(res.Content) <= limit {
		return res
	}
	res.Content = res.Content[:limit] + "\n[output truncated]"
	return res
}

func formatValidationError(err error) string {
	var sb strings.Builder
	sb.WriteString(err.Error())
	return sb.String()
}
