package agent

import "time"

// EventType tags the kind of value forwarded through a Loop's event sink.
type EventType string

const (
	EventStreamTextDelta   EventType = "stream.text_delta"
	EventStreamToolCallEnd EventType = "stream.toolcall_end"
	EventToolResult        EventType = "toolResult"
	EventStatus            EventType = "status"
	EventError             EventType = "error"
)

// Event is the loop's single outward-facing value type; the caller (the
// WebSocket run orchestrator, a cron fire, a workflow step) switches on
// Type and reads only the fields that type defines.
type Event struct {
	Type EventType

	TextDelta string

	ToolCallID string
	ToolName   string
	Arguments  map[string]any

	ToolResultContent string
	ToolResultIsError bool

	StatusAttempt     int
	StatusMaxAttempts int
	StatusDelay       time.Duration
	StatusMessage     string

	ErrorMessage string
}

// Sink receives every Event a run produces, in order.
type Sink func(Event)

// TurnMetrics is reported once per completed turn via OnTurnComplete.
type TurnMetrics struct {
	DurationMs   int64
	InputTokens  int
	OutputTokens int
	ToolCalls    int
	TotalTokens  int
}
