package wsrun

import (
	"context"
	"fmt"
	"time"

	"github.com/nextlevelbuilder/agentrun/internal/agent"
	"github.com/nextlevelbuilder/agentrun/internal/compaction"
	"github.com/nextlevelbuilder/agentrun/internal/providers"
	"github.com/nextlevelbuilder/agentrun/internal/session"
	"github.com/nextlevelbuilder/agentrun/internal/tools"
	"github.com/nextlevelbuilder/agentrun/pkg/protocol"
)

// RunConfig carries the pieces of runtime state (C11) a run needs but
// that can change between runs (model, system prompt, compaction knobs)
// without the Orchestrator itself being rebuilt.
type RunConfig struct {
	Provider providers.Provider
	Model    string
	Tools    *tools.Registry

	ContextWindow       int
	MaxIterations       int
	CompactionEnabled   bool
	KeepRecentTokens    int
	ReserveTokens       int

	SystemPrompt string
}

// ConfigProvider returns the current RunConfig snapshot; it is the seam
// the runtime supervisor (C11) uses to hot-swap model/tools/config
// without restarting the orchestrator.
type ConfigProvider func() RunConfig

// Emit delivers one outbound frame to every subscriber of a session; the
// transport layer (internal/gateway) supplies this.
type Emit func(frame protocol.ServerFrame)

type Orchestrator struct {
	Sessions *session.Store
	Config   ConfigProvider

	Queues   *Queues
	Registry *Registry
}

func NewOrchestrator(sessions *session.Store, cfg ConfigProvider) *Orchestrator {
	return &Orchestrator{
		Sessions: sessions,
		Config:   cfg,
		Queues:   NewQueues(),
		Registry: NewRegistry(),
	}
}

// HandleSendMessage enqueues a run for sessionID; overflow surfaces as an
// error frame without touching any in-flight run.
func (o *Orchestrator) HandleSendMessage(sessionID, runID, content string, emit Emit) {
	err := o.Queues.Submit(context.Background(), sessionID, func(ctx context.Context) {
		o.runStep(ctx, sessionID, runID, content, emit)
	})
	if err != nil {
		emit(protocol.ServerFrame{Type: protocol.FrameError, SessionID: sessionID, RunID: runID, Message: "Session queue is full. Please retry later."})
	}
}

// HandleCancel looks up the active run and cancels it.
func (o *Orchestrator) HandleCancel(sessionID, runID string) {
	o.Registry.Cancel(sessionID, runID)
}

// Shutdown cancels every active run with a shutdown reason. Transport
// close (socket code 1001) is the caller's responsibility.
func (o *Orchestrator) Shutdown() {
	o.Registry.CancelAll()
	o.Queues.CloseAll()
}

func (o *Orchestrator) runStep(parent context.Context, sessionID, runID, content string, emit Emit) {
	ctx, cancel := context.WithCancel(parent)
	o.Registry.Register(sessionID, runID, cancel)
	defer o.Registry.Remove(sessionID, runID)

	if _, err := o.Sessions.Get(sessionID); err != nil {
		emit(protocol.ServerFrame{Type: protocol.FrameError, SessionID: sessionID, RunID: runID, Message: "Session not found."})
		return
	}

	emit(protocol.ServerFrame{Type: protocol.FrameRunStart, SessionID: sessionID, RunID: runID, StartedAt: time.Now().UTC().Format(time.RFC3339)})

	userRecord := session.NewMessageRecord(session.RoleUser, []session.ContentBlock{{Type: "text", Text: content}}, nil, "", "")
	if _, err := o.Sessions.AppendMessage(sessionID, userRecord); err != nil {
		emit(protocol.ServerFrame{Type: protocol.FrameError, SessionID: sessionID, RunID: runID, Message: err.Error()})
		return
	}

	meta, err := o.Sessions.Get(sessionID)
	if err != nil {
		emit(protocol.ServerFrame{Type: protocol.FrameError, SessionID: sessionID, RunID: runID, Message: err.Error()})
		return
	}
	shouldGenerateTitle := meta.Name == session.DefaultName && meta.MessageCount == 1

	cfg := o.Config()
	engine := compaction.New(agent.NewModelSummarizer(ctx, cfg.Provider, cfg.Model))

	records, err := o.Sessions.BuildContextForRun(sessionID, cfg.CompactionEnabled, cfg.ContextWindow, cfg.KeepRecentTokens, cfg.ReserveTokens, engine)
	if err != nil {
		emit(protocol.ServerFrame{Type: protocol.FrameError, SessionID: sessionID, RunID: runID, Message: err.Error()})
		return
	}

	messages := agent.ToProviderMessages(records)
	startLen := len(messages)

	loop := &agent.Loop{
		Provider:      cfg.Provider,
		Model:         cfg.Model,
		Tools:         cfg.Tools,
		SystemPrompt:  cfg.SystemPrompt,
		MaxIterations: cfg.MaxIterations,
		SessionID:     sessionID,
		RunID:         runID,
		OnTurnComplete: func(m agent.TurnMetrics) {
			o.Sessions.RecordTurnMetrics(sessionID, m.DurationMs, m.InputTokens, m.OutputTokens, m.ToolCalls)
		},
		Sink: func(e agent.Event) {
			emit(mapEvent(sessionID, runID, e))
		},
	}

	result, runErr := loop.Run(ctx, messages)

	for _, rec := range agent.RecordsSince(result, startLen) {
		if _, err := o.Sessions.AppendMessage(sessionID, rec); err != nil {
			emit(protocol.ServerFrame{Type: protocol.FrameError, SessionID: sessionID, RunID: runID, Message: err.Error()})
			return
		}
	}

	if runErr != nil {
		emit(protocol.ServerFrame{Type: protocol.FrameError, SessionID: sessionID, RunID: runID, Message: runErr.Error()})
		return
	}

	finalContent := lastAssistantText(result)
	emit(protocol.ServerFrame{Type: protocol.FrameMessageComplete, SessionID: sessionID, RunID: runID, Content: finalContent})

	if shouldGenerateTitle {
		go func() {
			titleErr := o.Sessions.GenerateTitle(sessionID, content, finalContent, func(prompt string) (string, error) {
				resp, err := cfg.Provider.Chat(context.Background(), providers.ChatRequest{
					Model:    cfg.Model,
					Messages: []providers.Message{{Role: "user", Content: prompt}},
				})
				if err != nil {
					return "", err
				}
				return resp.Content, nil
			})
			if titleErr == nil {
				if m, err := o.Sessions.Get(sessionID); err == nil {
					emit(protocol.ServerFrame{Type: protocol.FrameSessionRenamed, SessionID: sessionID, RunID: runID, Name: m.Name})
				}
			}
		}()
	}
}

func lastAssistantText(messages []providers.Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == "assistant" {
			return messages[i].Content
		}
	}
	return ""
}

func mapEvent(sessionID, runID string, e agent.Event) protocol.ServerFrame {
	f := protocol.ServerFrame{SessionID: sessionID, RunID: runID}
	switch e.Type {
	case agent.EventStreamTextDelta:
		f.Type = protocol.FrameStreamDelta
		f.Delta = e.TextDelta
	case agent.EventStreamToolCallEnd:
		f.Type = protocol.FrameToolStart
		f.ToolCallID = e.ToolCallID
		f.Name = e.ToolName
		f.Arguments = e.Arguments
	case agent.EventToolResult:
		f.Type = protocol.FrameToolResult
		f.ToolCallID = e.ToolCallID
		f.Content = e.ToolResultContent
		f.IsError = e.ToolResultIsError
	case agent.EventStatus:
		f.Type = protocol.FrameStatus
		f.Attempt = e.StatusAttempt
		f.DelayMs = e.StatusDelay.Milliseconds()
		f.Status = e.StatusMessage
	case agent.EventError:
		f.Type = protocol.FrameError
		f.Message = e.ErrorMessage
	default:
		f.Type = protocol.FrameError
		f.Message = fmt.Sprintf("unknown event type %q", e.Type)
	}
	return f
}
