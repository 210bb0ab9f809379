// Package session implements C5: the append-only per-session JSONL log
// plus metadata.json, ordered replay, and the compaction overlay.
package session

import "time"

const schemaVersion = 1

// ContentBlock is a tagged union persisted within a Message record. Only
// text and toolCall blocks are ever persisted; thinking blocks are
// deliberately dropped at persistence time.
type ContentBlock struct {
	Type     string        `json:"type"` // "text" | "toolCall"
	Text     string        `json:"text,omitempty"`
	ToolCall *ToolCallBlock `json:"toolCall,omitempty"`
}

type ToolCallBlock struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// Role enumerates Message.Role.
type Role string

const (
	RoleUser       Role = "user"
	RoleAssistant  Role = "assistant"
	RoleToolResult Role = "toolResult"
)

// Record is the tagged union persisted to session.jsonl: either a Message
// or a Compaction overlay.
type Record struct {
	Seq           int            `json:"seq"`
	RecordType    string         `json:"recordType"` // "message" | "compaction"
	SchemaVersion int            `json:"schemaVersion"`
	Timestamp     time.Time      `json:"timestamp"`

	// Message fields
	Role       Role           `json:"role,omitempty"`
	Content    []ContentBlock `json:"content,omitempty"`
	IsError    *bool          `json:"isError,omitempty"`
	ToolCallID string         `json:"toolCallId,omitempty"`
	ToolName   string         `json:"toolName,omitempty"`

	// Compaction fields
	Summary       string   `json:"summary,omitempty"`
	FirstKeptSeq  int      `json:"firstKeptSeq,omitempty"`
	TokensBefore  int      `json:"tokensBefore,omitempty"`
	ReadFiles     []string `json:"readFiles,omitempty"`
	ModifiedFiles []string `json:"modifiedFiles,omitempty"`
}

func (r Record) IsMessage() bool    { return r.RecordType == "message" }
func (r Record) IsCompaction() bool { return r.RecordType == "compaction" }

// NewMessageRecord builds an unsequenced Message record; Seq and Timestamp
// are assigned by Store.AppendMessage.
func NewMessageRecord(role Role, content []ContentBlock, isError *bool, toolCallID, toolName string) Record {
	return Record{
		RecordType:    "message",
		SchemaVersion: schemaVersion,
		Role:          role,
		Content:       content,
		IsError:       isError,
		ToolCallID:    toolCallID,
		ToolName:      toolName,
	}
}

// Metrics accumulates per-session turn statistics.
type Metrics struct {
	TotalTurns      int   `json:"totalTurns"`
	TotalTokens     int64 `json:"totalTokens"`
	TotalToolCalls  int   `json:"totalToolCalls"`
	TotalDurationMs int64 `json:"totalDurationMs"`
}

// Source distinguishes interactive sessions from cron-fired ones.
type Source string

const (
	SourceInteractive Source = "interactive"
	SourceCron        Source = "cron"
)

// Metadata is the content of metadata.json.
type Metadata struct {
	ID                   string    `json:"id"`
	CreatedAt            time.Time `json:"createdAt"`
	LastMessageAt        time.Time `json:"lastMessageAt"`
	MessageCount         int       `json:"messageCount"`
	NextSeq              int       `json:"nextSeq"`
	Model                string    `json:"model"`
	Name                 string    `json:"name"`
	Source               Source    `json:"source"`
	CronJobID            string    `json:"cronJobId,omitempty"`
	SystemPromptOverride string    `json:"systemPromptOverride,omitempty"`
	Metrics              Metrics   `json:"metrics"`
}

// DefaultName is the sentinel name a session starts with; generateTitle is
// a no-op once the name differs from this value.
const DefaultName = "New Session"
