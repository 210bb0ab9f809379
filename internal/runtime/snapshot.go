// Package runtime implements C11: the mutable runtime state a serving
// process holds (config, model provider, tool registry, cron scheduler,
// workflow engine, prepared system prompt) and the atomic, rollback-safe
// sequence that replaces all of it when a file changes on disk.
package runtime

import (
	"sync"
	"sync/atomic"

	"github.com/nextlevelbuilder/agentrun/internal/config"
	"github.com/nextlevelbuilder/agentrun/internal/cron"
	"github.com/nextlevelbuilder/agentrun/internal/providers"
	"github.com/nextlevelbuilder/agentrun/internal/session"
	"github.com/nextlevelbuilder/agentrun/internal/tools"
	"github.com/nextlevelbuilder/agentrun/internal/wsrun"
	"github.com/nextlevelbuilder/agentrun/internal/workflow"
)

// Snapshot is one fully-built runtime generation. ApplyFromDisk builds a
// new Snapshot and swaps the Supervisor's pointer to it rather than
// replacing fields of an existing one. Config is shared: every Snapshot
// holds the Supervisor's long-lived *config.Config, which ApplyFromDisk
// updates in place via ReplaceFrom.
type Snapshot struct {
	Version int

	Config   *config.Config
	Provider providers.Provider
	Tools    *tools.Registry
	Cron     *cron.Scheduler
	Workflow *workflow.Engine
	Prompt   PreparedSystemPrompt
}

// Supervisor holds the current Snapshot behind an atomic pointer so every
// reader (the WebSocket orchestrator, cron fires, workflow runs) always
// observes either the old or the new generation, never a
// half-built one.
type Supervisor struct {
	current atomic.Pointer[Snapshot]

	mu       sync.Mutex // serializes ApplyFromDisk calls
	sessions *session.Store
	paths    Paths
	cfg      *config.Config // stable identity; ReplaceFrom mutates it in place
}

// Paths names the on-disk locations ApplyFromDisk reads from.
type Paths struct {
	ConfigFile   string
	WorkflowsDir string
}

func NewSupervisor(sessions *session.Store, paths Paths) *Supervisor {
	return &Supervisor{sessions: sessions, paths: paths}
}

// Current returns the live snapshot. Safe for concurrent use; never nil
// after the first successful ApplyFromDisk.
func (s *Supervisor) Current() *Snapshot {
	return s.current.Load()
}

// WsrunConfigProvider adapts the current snapshot into the seam
// wsrun.Orchestrator hot-swaps through.
func (s *Supervisor) WsrunConfigProvider() wsrun.ConfigProvider {
	return func() wsrun.RunConfig {
		snap := s.Current()
		cfg := snap.Config.Snapshot()
		return wsrun.RunConfig{
			Provider:          snap.Provider,
			Model:             cfg.Model.Name,
			Tools:             snap.Tools,
			ContextWindow:     contextWindowFor(cfg.Model.Name),
			MaxIterations:     cfg.Tools.MaxIterations,
			CompactionEnabled: cfg.Compaction.Enabled,
			KeepRecentTokens:  cfg.Compaction.KeepRecentTokens,
			ReserveTokens:     cfg.Compaction.ReserveTokens,
			SystemPrompt:      snap.Prompt.Render(""),
		}
	}
}

// CronDeps adapts the current snapshot into cron.Deps.
func (s *Supervisor) CronDeps() cron.Deps {
	snap := s.Current()
	cfg := snap.Config.Snapshot()
	return cron.Deps{
		Sessions:          s.sessions,
		Tools:             snap.Tools,
		Provider:          snap.Provider,
		Model:             cfg.Model.Name,
		ContextWindow:     contextWindowFor(cfg.Model.Name),
		CompactionEnabled: cfg.Compaction.Enabled,
		KeepRecentTokens:  cfg.Compaction.KeepRecentTokens,
		ReserveTokens:     cfg.Compaction.ReserveTokens,
		SystemPrompt:      snap.Prompt.Render(""),
	}
}

// WorkflowDeps adapts the current snapshot into workflow.Deps.
func (s *Supervisor) WorkflowDeps() workflow.Deps {
	snap := s.Current()
	cfg := snap.Config.Snapshot()
	return workflow.Deps{
		Sessions:          s.sessions,
		Tools:             snap.Tools,
		Provider:          snap.Provider,
		Model:             cfg.Model.Name,
		ContextWindow:     contextWindowFor(cfg.Model.Name),
		CompactionEnabled: cfg.Compaction.Enabled,
		KeepRecentTokens:  cfg.Compaction.KeepRecentTokens,
		ReserveTokens:     cfg.Compaction.ReserveTokens,
		SystemPrompt:      snap.Prompt.Render(""),
		MaxIterations:     cfg.Tools.MaxIterations,
	}
}

// modelContextWindows carries the known context windows of the models this
// runtime has been exercised against; an unlisted model falls back to a
// conservative default rather than failing a run outright.
var modelContextWindows = map[string]int{
	"claude-sonnet-4-5-20250929": 200000,
	"claude-opus-4-1-20250805":   200000,
	"gpt-4o":                     128000,
	"gpt-4o-mini":                128000,
}

const defaultContextWindow = 200000

// contextWindowFor returns the model's context window used for
// compaction's threshold check.
func contextWindowFor(model string) int {
	if w, ok := modelContextWindows[model]; ok {
		return w
	}
	return defaultContextWindow
}
