// Package protocol defines the WebSocket wire frames exchanged between a
// client and one session's run orchestrator (C8).
package protocol

import "encoding/json"

const ProtocolVersion = 1

// Client→server frame types.
const (
	FrameSendMessage = "send_message"
	FrameCancel      = "cancel"
)

// Server→client frame types.
const (
	FrameRunStart       = "run_start"
	FrameStreamDelta    = "stream_delta"
	FrameToolStart      = "tool_start"
	FrameToolResult     = "tool_result"
	FrameStatus         = "status"
	FrameMessageComplete = "message_complete"
	FrameSessionRenamed = "session_renamed"
	FrameError          = "error"
)

// ClientFrame is a decoded inbound frame. Only the fields relevant to
// Type are populated.
type ClientFrame struct {
	Type      string `json:"type"`
	SessionID string `json:"sessionId"`
	RunID     string `json:"runId,omitempty"`
	Content   string `json:"content,omitempty"`
}

// ServerFrame is an outbound frame. Payload fields are flattened onto the
// frame per the spec's `{type, sessionId, runId, …payload}` shape.
type ServerFrame struct {
	Type      string `json:"type"`
	SessionID string `json:"sessionId"`
	RunID     string `json:"runId,omitempty"`

	StartedAt string `json:"startedAt,omitempty"`

	Delta string `json:"delta,omitempty"`

	ToolCallID string         `json:"id,omitempty"`
	Arguments  map[string]any `json:"arguments,omitempty"`
	Content    string         `json:"content,omitempty"`
	IsError    bool           `json:"isError,omitempty"`

	Attempt int    `json:"attempt,omitempty"`
	DelayMs int64  `json:"delayMs,omitempty"`
	Status  string `json:"status,omitempty"`

	// Name is tool_start's tool name or session_renamed's new name;
	// never both on the same frame.
	Name string `json:"name,omitempty"`

	Message string `json:"message,omitempty"`
}

func DecodeClientFrame(data []byte) (ClientFrame, error) {
	var f ClientFrame
	err := json.Unmarshal(data, &f)
	return f, err
}

func (f ServerFrame) Encode() ([]byte, error) {
	return json.Marshal(f)
}
