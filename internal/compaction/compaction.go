// Package compaction implements C6: deciding where to cut a session's
// message history, summarizing the cut prefix through an external
// collaborator, and merging the cumulative read/modified file sets.
package compaction

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/nextlevelbuilder/agentrun/internal/session"
)

// Mode distinguishes a from-scratch summary from one that folds in a
// prior summary.
type Mode string

const (
	ModeInitial Mode = "initial"
	ModeUpdate  Mode = "update"
)

// SummarizeRequest is passed to the external summarizer collaborator.
type SummarizeRequest struct {
	Mode   Mode
	Prompt string
}

// Summarizer produces the replacement summary text for a cut prefix. It
// is supplied by the caller (the agent loop's model client) so this
// package never depends on a provider directly.
type Summarizer func(req SummarizeRequest) (string, error)

const fallbackExcerptLen = 500

// Engine implements session.Compactor.
type Engine struct {
	Summarize Summarizer
}

func New(summarize Summarizer) *Engine {
	return &Engine{Summarize: summarize}
}

// Compact runs the cut-point algorithm against records and returns the
// new Compaction record. ok is false when the algorithm determines no
// compaction should occur (too few messages, or the tool-boundary guard
// exhausts the candidate range).
func (e *Engine) Compact(records []session.Record, keepRecentTokens, reserveTokens int) (*session.Record, bool, error) {
	messages := messagesOf(records)
	if len(messages) < 2 {
		return nil, false, nil
	}

	cutIndex := cutPoint(messages, keepRecentTokens)
	cutIndex = applyToolBoundaryGuard(messages, cutIndex)
	if cutIndex <= 0 || cutIndex >= len(messages) {
		return nil, false, nil
	}

	prefix := messages[:cutIndex]
	prevCompaction := latestCompaction(records)

	serialized := serialize(prefix)
	mode := ModeInitial
	prompt := serialized
	if prevCompaction != nil {
		mode = ModeUpdate
		prompt = fmt.Sprintf("<previous-summary>\n%s\n</previous-summary>\n%s", prevCompaction.Summary, serialized)
	}

	summary := ""
	if e.Summarize != nil {
		s, err := e.Summarize(SummarizeRequest{Mode: mode, Prompt: prompt})
		if err != nil {
			return nil, false, err
		}
		summary = strings.TrimSpace(s)
	}
	if summary == "" {
		summary = fallbackSummary(serialized)
	}

	readFiles, modifiedFiles := fileSets(prefix, prevCompaction)

	tokensBefore := 0
	for _, m := range prefix {
		tokensBefore += session.EstimateTokens([]session.Record{m})
	}

	maxSeq := 0
	for _, r := range records {
		if r.Seq > maxSeq {
			maxSeq = r.Seq
		}
	}

	compaction := session.Record{
		RecordType:    "compaction",
		Seq:           maxSeq + 1,
		Summary:       summary,
		FirstKeptSeq:  messages[cutIndex].Seq,
		TokensBefore:  tokensBefore,
		ReadFiles:     readFiles,
		ModifiedFiles: modifiedFiles,
	}
	return &compaction, true, nil
}

func messagesOf(records []session.Record) []session.Record {
	var out []session.Record
	for _, r := range records {
		if r.IsMessage() {
			out = append(out, r)
		}
	}
	return out
}

func latestCompaction(records []session.Record) *session.Record {
	var latest *session.Record
	for i := range records {
		if records[i].IsCompaction() {
			c := records[i]
			latest = &c
		}
	}
	return latest
}

// cutPoint walks messages from newest to oldest, accumulating estimated
// tokens until the running sum reaches keepRecentTokens, and returns the
// index of the oldest message that should be kept.
func cutPoint(messages []session.Record, keepRecentTokens int) int {
	sum := 0
	for i := len(messages) - 1; i >= 0; i-- {
		sum += session.EstimateTokens([]session.Record{messages[i]})
		if sum >= keepRecentTokens {
			return i
		}
	}
	return 0
}

// applyToolBoundaryGuard backs cutIndex off while it lands on a
// toolResult whose matching toolCall lives in the preceding message, so
// a compaction cut never splits a toolCall/toolResult pair.
func applyToolBoundaryGuard(messages []session.Record, cutIndex int) int {
	for cutIndex > 0 && cutIndex < len(messages) {
		m := messages[cutIndex]
		if m.Role != session.RoleToolResult || m.ToolCallID == "" {
			break
		}
		prev := messages[cutIndex-1]
		if !hasToolCall(prev, m.ToolCallID) {
			break
		}
		cutIndex--
	}
	return cutIndex
}

func hasToolCall(m session.Record, toolCallID string) bool {
	for _, b := range m.Content {
		if b.ToolCall != nil && b.ToolCall.ID == toolCallID {
			return true
		}
	}
	return false
}

func serialize(messages []session.Record) string {
	var sb strings.Builder
	for _, m := range messages {
		switch m.Role {
		case session.RoleUser:
			fmt.Fprintf(&sb, "[User]: %s\n", textOf(m))
		case session.RoleAssistant:
			if calls := toolCallsOf(m); calls != "" {
				fmt.Fprintf(&sb, "[Assistant tool calls]: %s\n", calls)
			}
			if text := textOf(m); text != "" {
				fmt.Fprintf(&sb, "[Assistant]: %s\n", text)
			}
		case session.RoleToolResult:
			fmt.Fprintf(&sb, "[Tool result]: %s\n", textOf(m))
		}
	}
	return sb.String()
}

func textOf(m session.Record) string {
	var parts []string
	for _, b := range m.Content {
		if b.Type == "text" && b.Text != "" {
			parts = append(parts, b.Text)
		}
	}
	return strings.Join(parts, " ")
}

func toolCallsOf(m session.Record) string {
	var parts []string
	for _, b := range m.Content {
		if b.ToolCall == nil {
			continue
		}
		args, _ := json.Marshal(b.ToolCall.Arguments)
		parts = append(parts, fmt.Sprintf("%s(%s)", b.ToolCall.Name, string(args)))
	}
	return strings.Join(parts, ", ")
}

func fallbackSummary(serialized string) string {
	excerpt := serialized
	if len(excerpt) > fallbackExcerptLen {
		excerpt = excerpt[:fallbackExcerptLen]
	}
	return fmt.Sprintf("Summary unavailable; excerpt of compacted history:\n%s", excerpt)
}

var readToolNames = map[string]bool{"read": true, "read_file": true}
var writeToolNames = map[string]bool{"write": true, "write_file": true}

// fileSets computes the cumulative readFiles/modifiedFiles, merges with
// the prior compaction's sets, and removes from readFiles anything
// present in modifiedFiles since a write invalidates a prior read.
func fileSets(prefix []session.Record, prev *session.Record) (readFiles, modifiedFiles []string) {
	read := map[string]bool{}
	modified := map[string]bool{}
	if prev != nil {
		for _, f := range prev.ReadFiles {
			read[f] = true
		}
		for _, f := range prev.ModifiedFiles {
			modified[f] = true
		}
	}

	for _, m := range prefix {
		for _, b := range m.Content {
			if b.ToolCall == nil {
				continue
			}
			path, ok := b.ToolCall.Arguments["path"].(string)
			if !ok || path == "" {
				continue
			}
			switch {
			case readToolNames[b.ToolCall.Name]:
				read[path] = true
			case writeToolNames[b.ToolCall.Name]:
				modified[path] = true
			}
		}
	}

	for f := range modified {
		delete(read, f)
	}

	readFiles = sortedKeys(read)
	modifiedFiles = sortedKeys(modified)
	return
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
