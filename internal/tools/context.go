package tools

import "context"

// Execution context keys. These thread per-run values (workspace root,
// cancellation-aware streaming callback) into Tool.Execute without mutable
// setter fields on tool instances, so a single Tool value is safe to
// invoke concurrently from multiple runs.
type ctxKey string

const (
	ctxWorkspace ctxKey = "tool_workspace"
	ctxStreamCB  ctxKey = "tool_stream_cb"
)

// StreamCallback receives incremental output chunks from long-running
// tools (bash). The spec reserves this capability without mandating it be
// wired to any transport (Open Question 3).
type StreamCallback func(chunk string)

func WithWorkspace(ctx context.Context, path string) context.Context {
	return context.WithValue(ctx, ctxWorkspace, path)
}

func WorkspaceFromContext(ctx context.Context) string {
	v, _ := ctx.Value(ctxWorkspace).(string)
	return v
}

func WithStreamCallback(ctx context.Context, cb StreamCallback) context.Context {
	return context.WithValue(ctx, ctxStreamCB, cb)
}

func StreamCallbackFromContext(ctx context.Context) StreamCallback {
	cb, _ := ctx.Value(ctxStreamCB).(StreamCallback)
	return cb
}
