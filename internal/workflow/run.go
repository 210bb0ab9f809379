package workflow

import (
	"context"
	"fmt"
	"regexp"

	"github.com/nextlevelbuilder/agentrun/internal/agent"
	"github.com/nextlevelbuilder/agentrun/internal/compaction"
	"github.com/nextlevelbuilder/agentrun/internal/providers"
	"github.com/nextlevelbuilder/agentrun/internal/session"
	"github.com/nextlevelbuilder/agentrun/internal/tools"
)

// StepStatus is one step's outcome in a Result.
type StepStatus string

const (
	StepPending StepStatus = "pending"
	StepSkipped StepStatus = "skipped"
	StepOK      StepStatus = "ok"
	StepFailed  StepStatus = "failed"
)

type StepResult struct {
	Name   string     `json:"name"`
	Status StepStatus `json:"status"`
	Output string     `json:"output,omitempty"`
	Error  string      `json:"error,omitempty"`
}

// Result is runWorkflow's return value.
type Result struct {
	Workflow  string       `json:"workflow"`
	SessionID string       `json:"sessionId"`
	Steps     []StepResult `json:"steps"`
	Success   bool         `json:"success"`
	Error     string       `json:"error,omitempty"`
}

var failureTextPattern = regexp.MustCompile(`(?i)\b(fail(ed)?|error)\b`)
var stoppedMaxIterations = "Stopped: maximum iteration limit reached."

// Deps wires runWorkflow to the rest of the runtime; supplied fresh from
// the current runtime Snapshot (C11) on every invocation.
type Deps struct {
	Sessions          *session.Store
	Tools             *tools.Registry
	Provider          providers.Provider
	Model             string
	ContextWindow     int
	CompactionEnabled bool
	KeepRecentTokens  int
	ReserveTokens     int
	SystemPrompt      string
	MaxIterations     int
}

// Run implements spec §4.10's runWorkflow(name, params).
func Run(ctx context.Context, def *Definition, params map[string]any, deps Deps) (*Result, error) {
	resolved, err := def.ValidateParams(params)
	if err != nil {
		return nil, fmt.Errorf("validate workflow params: %w", err)
	}

	meta, err := deps.Sessions.Create(session.CreateOptions{
		Model: deps.Model,
		Name:  fmt.Sprintf("[workflow] %s", def.Name),
	})
	if err != nil {
		return nil, fmt.Errorf("create workflow session: %w", err)
	}

	result := &Result{Workflow: def.Name, SessionID: meta.ID, Success: true}
	for _, st := range def.Steps {
		result.Steps = append(result.Steps, StepResult{Name: st.Name, Status: StepPending})
	}

	halted := false
	for i, st := range def.Steps {
		if halted {
			break
		}

		if st.Condition != "" {
			ok, err := EvalCondition(st.Condition, resolved)
			if err != nil {
				result.Steps[i].Status = StepSkipped
				result.Steps[i].Error = err.Error()
				continue
			}
			if !ok {
				result.Steps[i].Status = StepSkipped
				continue
			}
		}

		prompt, err := ExpandTemplate(st.Prompt, resolved)
		if err != nil {
			result.Steps[i].Status = StepFailed
			result.Steps[i].Error = err.Error()
			result.Success = false
			halted = applyOnFailure(st.effectiveOnFailure(), result, i)
			continue
		}

		output, failed, stepErr := runStep(ctx, meta.ID, prompt, deps)
		result.Steps[i].Output = output
		if stepErr != nil {
			result.Steps[i].Status = StepFailed
			result.Steps[i].Error = stepErr.Error()
			result.Success = false
			halted = applyOnFailure(st.effectiveOnFailure(), result, i)
			continue
		}
		if failed {
			result.Steps[i].Status = StepFailed
			result.Success = false
			halted = applyOnFailure(st.effectiveOnFailure(), result, i)
			continue
		}
		result.Steps[i].Status = StepOK
	}

	return result, nil
}

// applyOnFailure marks later steps per policy and reports whether the
// remaining loop should stop entirely.
func applyOnFailure(policy OnFailure, result *Result, failedIdx int) bool {
	switch policy {
	case OnFailureHalt:
		return true
	case OnFailureSkipRemaining:
		for j := failedIdx + 1; j < len(result.Steps); j++ {
			result.Steps[j].Status = StepSkipped
		}
		return true
	default: // continue
		return false
	}
}

// runStep appends prompt as a user message, runs the agent loop, persists
// every resulting record, and classifies the step's outcome.
func runStep(ctx context.Context, sessionID, prompt string, deps Deps) (output string, failed bool, err error) {
	userRecord := session.NewMessageRecord(session.RoleUser, []session.ContentBlock{{Type: "text", Text: prompt}}, nil, "", "")
	if _, err := deps.Sessions.AppendMessage(sessionID, userRecord); err != nil {
		return "", false, fmt.Errorf("append workflow prompt: %w", err)
	}

	engine := compaction.New(agent.NewModelSummarizer(ctx, deps.Provider, deps.Model))
	records, err := deps.Sessions.BuildContextForRun(sessionID, deps.CompactionEnabled, deps.ContextWindow, deps.KeepRecentTokens, deps.ReserveTokens, engine)
	if err != nil {
		return "", false, fmt.Errorf("build workflow context: %w", err)
	}

	anyToolError := false
	loop := &agent.Loop{
		Provider:      deps.Provider,
		Model:         deps.Model,
		Tools:         deps.Tools,
		SystemPrompt:  deps.SystemPrompt,
		MaxIterations: deps.MaxIterations,
		SessionID:     sessionID,
		Sink: func(e agent.Event) {
			if e.Type == agent.EventToolResult && e.ToolResultIsError {
				anyToolError = true
			}
		},
	}

	messages := agent.ToProviderMessages(records)
	startLen := len(messages)
	result, runErr := loop.Run(ctx, messages)

	for _, rec := range agent.RecordsSince(result, startLen) {
		if _, aerr := deps.Sessions.AppendMessage(sessionID, rec); aerr != nil {
			return "", false, fmt.Errorf("persist workflow step: %w", aerr)
		}
	}
	if runErr != nil {
		return "", false, runErr
	}

	output = lastAssistantText(result)
	hitMaxIterations := output == stoppedMaxIterations
	failed = hitMaxIterations || anyToolError || failureTextPattern.MatchString(output)
	return output, failed, nil
}

func lastAssistantText(messages []providers.Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == "assistant" {
			return messages[i].Content
		}
	}
	return ""
}
