// Package agent implements C7: the bounded stream→tool→stream loop that
// drives one turn of a session against a model provider and tool
// registry.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"sync"
	"time"

	"github.com/nextlevelbuilder/agentrun/internal/providers"
	"github.com/nextlevelbuilder/agentrun/internal/tools"
)

const defaultMaxIterations = 20

// Loop drives one run: repeated provider calls interleaved with tool
// execution, bounded by MaxIterations.
type Loop struct {
	Provider providers.Provider
	Model    string
	Tools    *tools.Registry
	// ToolNames scopes which tools are offered and callable this run; nil
	// means "everything in Tools". Cron fires (C9) pass a restricted set.
	ToolNames []string

	SystemPrompt  string
	MaxIterations int

	Logger *slog.Logger

	OnTurnComplete func(TurnMetrics)
	Sink           Sink

	SessionID string
	RunID     string
}

func (l *Loop) logger() *slog.Logger {
	if l.Logger != nil {
		return l.Logger
	}
	return slog.Default()
}

func (l *Loop) emit(e Event) {
	if l.Sink != nil {
		l.Sink(e)
	}
}

// Run executes the loop against messages, prepending SystemPrompt to every
// provider request, and returns the full message list including every
// assistant/tool turn it produced.
func (l *Loop) Run(ctx context.Context, messages []providers.Message) ([]providers.Message, error) {
	maxIterations := l.MaxIterations
	if maxIterations <= 0 {
		maxIterations = defaultMaxIterations
	}

	toolDefs := l.toolDefinitions()

	turnStart := time.Now()
	var totalUsage providers.Usage
	var toolCallCount int

	ctx = providers.WithRetryHook(ctx, func(attempt, maxAttempts int, delay time.Duration, err error) {
		l.emit(Event{
			Type:              EventStatus,
			StatusAttempt:     attempt,
			StatusMaxAttempts: maxAttempts,
			StatusDelay:       delay,
			StatusMessage:     err.Error(),
		})
	})

	iteration := 0
	for iteration < maxIterations {
		if err := ctx.Err(); err != nil {
			return messages, err
		}
		iteration++

		chatReq := providers.ChatRequest{
			Messages: withSystemPrompt(messages, l.SystemPrompt),
			Tools:    toolDefs,
			Model:    l.Model,
			Options: map[string]interface{}{
				providers.OptMaxTokens:   8192,
				providers.OptTemperature: 0.7,
			},
		}

		resp, err := l.Provider.ChatStream(ctx, chatReq, func(chunk providers.StreamChunk) {
			if chunk.Content != "" {
				l.emit(Event{Type: EventStreamTextDelta, TextDelta: chunk.Content})
			}
		})
		if err != nil {
			l.emit(Event{Type: EventError, ErrorMessage: err.Error()})
			return messages, fmt.Errorf("agent loop: iteration %d: %w", iteration, err)
		}

		if resp.Usage != nil {
			totalUsage.PromptTokens += resp.Usage.PromptTokens
			totalUsage.CompletionTokens += resp.Usage.CompletionTokens
			totalUsage.TotalTokens += resp.Usage.TotalTokens
		}

		assistantMsg := providers.Message{
			Role:                 "assistant",
			Content:              resp.Content,
			ToolCalls:            resp.ToolCalls,
			RawAssistantContent:  resp.RawAssistantContent,
		}
		messages = append(messages, assistantMsg)

		if len(resp.ToolCalls) == 0 {
			l.reportTurn(turnStart, totalUsage, toolCallCount)
			return messages, nil
		}

		for _, tc := range resp.ToolCalls {
			l.emit(Event{Type: EventStreamToolCallEnd, ToolCallID: tc.ID, ToolName: tc.Name, Arguments: tc.Arguments})
		}

		toolMsgs := l.executeToolCalls(ctx, resp.ToolCalls)
		toolCallCount += len(toolMsgs)
		messages = append(messages, toolMsgs...)
	}

	messages = append(messages, providers.Message{
		Role:    "assistant",
		Content: "Stopped: maximum iteration limit reached.",
	})
	l.emit(Event{Type: EventError, ErrorMessage: "maximum iteration limit reached"})
	l.reportTurn(turnStart, totalUsage, toolCallCount)
	return messages, nil
}

func (l *Loop) reportTurn(start time.Time, usage providers.Usage, toolCalls int) {
	if l.OnTurnComplete == nil {
		return
	}
	l.OnTurnComplete(TurnMetrics{
		DurationMs:   time.Since(start).Milliseconds(),
		InputTokens:  usage.PromptTokens,
		OutputTokens: usage.CompletionTokens,
		ToolCalls:    toolCalls,
		TotalTokens:  usage.TotalTokens,
	})
}

// executeToolCalls runs a single call sequentially (no goroutine
// overhead) or a batch in parallel, collecting results and sorting back
// into request order so message ordering stays deterministic.
func (l *Loop) executeToolCalls(ctx context.Context, calls []providers.ToolCall) []providers.Message {
	if len(calls) == 1 {
		return []providers.Message{l.executeOne(ctx, calls[0])}
	}

	type indexed struct {
		idx int
		msg providers.Message
	}
	resultCh := make(chan indexed, len(calls))
	var wg sync.WaitGroup
	for i, tc := range calls {
		wg.Add(1)
		go func(idx int, tc providers.ToolCall) {
			defer wg.Done()
			resultCh <- indexed{idx: idx, msg: l.executeOne(ctx, tc)}
		}(i, tc)
	}
	go func() { wg.Wait(); close(resultCh) }()

	collected := make([]indexed, 0, len(calls))
	for r := range resultCh {
		collected = append(collected, r)
	}
	sort.Slice(collected, func(i, j int) bool { return collected[i].idx < collected[j].idx })

	out := make([]providers.Message, len(collected))
	for i, c := range collected {
		out[i] = c.msg
	}
	return out
}

var blockedResultPattern = regexp.MustCompile(`(?i)\[output truncated\]|\[grep truncated\]|\[find truncated\]|\[read truncated\]|blocked command|unknown tool|tool execution failed|timed out`)

func (l *Loop) executeOne(ctx context.Context, tc providers.ToolCall) providers.Message {
	if ctx.Err() != nil {
		return providers.Message{Role: "tool", ToolCallID: tc.ID, Content: "cancelled"}
	}
	if !l.toolAllowed(tc.Name) {
		return providers.Message{Role: "tool", ToolCallID: tc.ID, Content: fmt.Sprintf("Unknown tool: %s", tc.Name)}
	}

	result := tools.ExecuteTool(ctx, l.Tools, tc.Name, tc.Arguments)

	if blockedResultPattern.MatchString(result.Content) {
		argsJSON, _ := json.Marshal(tc.Arguments)
		l.logger().Warn("tool call signal", "tool", tc.Name, "args_len", len(argsJSON), "content_preview", preview(result.Content, 120))
	}

	l.emit(Event{
		Type:               EventToolResult,
		ToolCallID:         tc.ID,
		ToolName:           tc.Name,
		ToolResultContent:  result.Content,
		ToolResultIsError:  result.IsError,
	})

	return providers.Message{Role: "tool", ToolCallID: tc.ID, Content: result.Content, IsError: result.IsError}
}

func preview(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

func (l *Loop) toolAllowed(name string) bool {
	if l.ToolNames == nil {
		return true
	}
	for _, n := range l.ToolNames {
		if n == name {
			return true
		}
	}
	return false
}

func (l *Loop) toolDefinitions() []providers.ToolDefinition {
	snapshot := l.Tools.Snapshot()
	names := l.ToolNames
	if names == nil {
		names = make([]string, 0, len(snapshot))
		for n := range snapshot {
			names = append(names, n)
		}
		sort.Strings(names)
	}

	defs := make([]providers.ToolDefinition, 0, len(names))
	for _, name := range names {
		t, ok := snapshot[name]
		if !ok {
			continue
		}
		defs = append(defs, providers.ToolDefinition{
			Type: "function",
			Function: providers.ToolFunctionSchema{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.ParametersSchema,
			},
		})
	}
	return defs
}

func withSystemPrompt(messages []providers.Message, systemPrompt string) []providers.Message {
	if systemPrompt == "" {
		return messages
	}
	out := make([]providers.Message, 0, len(messages)+1)
	out = append(out, providers.Message{Role: "system", Content: systemPrompt})
	out = append(out, messages...)
	return out
}
