package tools

import "fmt"

// Result is the outcome of one tool execution, mirroring the {content,
// isError} pair the spec's executeTool returns.
type Result struct {
	Content string
	IsError bool
}

func Ok(content string) Result    { return Result{Content: content} }
func Error(content string) Result { return Result{Content: content, IsError: true} }

func Errorf(format string, args ...any) Result {
	return Result{Content: fmt.Sprintf(format, args...), IsError: true}
}
