// Package cron implements C9: firing isolated agent sessions on a
// schedule, with a scoped tool registry per job and per-job failure
// tracking that never lets one job's error halt the scheduler.
package cron

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/adhocore/gronx"

	"github.com/nextlevelbuilder/agentrun/internal/agent"
	"github.com/nextlevelbuilder/agentrun/internal/compaction"
	"github.com/nextlevelbuilder/agentrun/internal/providers"
	"github.com/nextlevelbuilder/agentrun/internal/session"
	"github.com/nextlevelbuilder/agentrun/internal/tools"
)

const tickInterval = 30 * time.Second
const defaultMaxIterations = 20
const errorSnippetLen = 200

// JobPolicy restricts which tools a fire may use and how many iterations
// it gets.
type JobPolicy struct {
	AllowedTools  []string
	MaxIterations int
}

// JobConfig is one entry of the configured schedule.
type JobConfig struct {
	ID       string
	Schedule string
	Prompt   string
	Enabled  bool
	Timezone string
	Policy   JobPolicy
}

// Status is a point-in-time snapshot returned by GetStatus.
type Status struct {
	ID                  string
	Schedule            string
	Enabled             bool
	LastRunAt           time.Time
	LastStatus          string // "ok", "error", "" (never run)
	ConsecutiveFailures int
	LastErrorSnippet    string
	NextRunAt           time.Time
}

// Deps wires the scheduler to the rest of the runtime; they come from the
// current runtime Snapshot (C11) so a hot-reload affects the next fire
// without restarting the scheduler.
type Deps struct {
	Sessions *session.Store
	Tools    *tools.Registry
	Provider providers.Provider
	Model    string

	ContextWindow     int
	CompactionEnabled bool
	KeepRecentTokens  int
	ReserveTokens     int
	SystemPrompt      string
}

type DepsProvider func() Deps

type jobState struct {
	cfg     JobConfig
	enabled bool
	running bool

	lastRunAt           time.Time
	lastStatus          string
	consecutiveFailures int
	lastErrorSnippet    string
}

// Scheduler runs one ticker that checks every job's schedule each tick
// and fires it when due, serialized per job so a job can never overlap
// itself.
type Scheduler struct {
	deps DepsProvider
	gx   gronx.Gronx

	mu     sync.Mutex
	jobs   map[string]*jobState
	cancel context.CancelFunc
}

func NewScheduler(deps DepsProvider) *Scheduler {
	return &Scheduler{deps: deps, gx: gronx.New(), jobs: make(map[string]*jobState)}
}

// Start installs jobs, stopping and replacing any previous set, and
// begins the ticker.
func (s *Scheduler) Start(jobs []JobConfig) {
	s.Stop()

	s.mu.Lock()
	s.jobs = make(map[string]*jobState, len(jobs))
	for _, j := range jobs {
		s.jobs[j.ID] = &jobState{cfg: j, enabled: j.Enabled}
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.mu.Unlock()

	go s.tickLoop(ctx)
}

func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (s *Scheduler) Pause(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.jobs[id]; ok {
		st.enabled = false
	}
}

func (s *Scheduler) Resume(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.jobs[id]; ok {
		st.enabled = true
	}
}

func (s *Scheduler) GetStatus() []Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Status, 0, len(s.jobs))
	for _, st := range s.jobs {
		next, _ := gronx.NextTick(st.cfg.Schedule, true)
		out = append(out, Status{
			ID:                  st.cfg.ID,
			Schedule:            st.cfg.Schedule,
			Enabled:             st.enabled,
			LastRunAt:           st.lastRunAt,
			LastStatus:          st.lastStatus,
			ConsecutiveFailures: st.consecutiveFailures,
			LastErrorSnippet:    st.lastErrorSnippet,
			NextRunAt:           next,
		})
	}
	return out
}

func (s *Scheduler) tickLoop(ctx context.Context) {
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			s.tick(ctx, now)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context, now time.Time) {
	s.mu.Lock()
	due := make([]*jobState, 0)
	for _, st := range s.jobs {
		if !st.enabled || st.running {
			continue
		}
		ok, err := s.gx.IsDue(st.cfg.Schedule, now)
		if err != nil {
			slog.Warn("cron: invalid schedule", "job", st.cfg.ID, "schedule", st.cfg.Schedule, "error", err)
			continue
		}
		if ok {
			st.running = true
			due = append(due, st)
		}
	}
	s.mu.Unlock()

	for _, st := range due {
		go s.fire(ctx, st)
	}
}

func (s *Scheduler) fire(ctx context.Context, st *jobState) {
	defer func() {
		s.mu.Lock()
		st.running = false
		s.mu.Unlock()
	}()

	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("cron job panic: %v", r)
			}
		}()
		return s.runJob(ctx, st.cfg)
	}()

	s.mu.Lock()
	st.lastRunAt = time.Now().UTC()
	if err != nil {
		st.lastStatus = "error"
		st.consecutiveFailures++
		st.lastErrorSnippet = snippet(err.Error(), errorSnippetLen)
		slog.Warn("cron: job failed", "job", st.cfg.ID, "error", err)
	} else {
		st.lastStatus = "ok"
		st.consecutiveFailures = 0
		st.lastErrorSnippet = ""
	}
	s.mu.Unlock()
}

func (s *Scheduler) runJob(ctx context.Context, cfg JobConfig) error {
	deps := s.deps()

	name := fmt.Sprintf("[cron] %s - %s", cfg.ID, time.Now().UTC().Format("2006-01-02 15:04"))
	meta, err := deps.Sessions.Create(session.CreateOptions{
		Model:     deps.Model,
		Name:      name,
		Source:    session.SourceCron,
		CronJobID: cfg.ID,
	})
	if err != nil {
		return fmt.Errorf("create cron session: %w", err)
	}

	userRecord := session.NewMessageRecord(session.RoleUser, []session.ContentBlock{{Type: "text", Text: cfg.Prompt}}, nil, "", "")
	if _, err := deps.Sessions.AppendMessage(meta.ID, userRecord); err != nil {
		return fmt.Errorf("append cron prompt: %w", err)
	}

	engine := compaction.New(agent.NewModelSummarizer(ctx, deps.Provider, deps.Model))
	records, err := deps.Sessions.BuildContextForRun(meta.ID, deps.CompactionEnabled, deps.ContextWindow, deps.KeepRecentTokens, deps.ReserveTokens, engine)
	if err != nil {
		return fmt.Errorf("build cron context: %w", err)
	}

	maxIterations := cfg.Policy.MaxIterations
	if maxIterations <= 0 {
		maxIterations = defaultMaxIterations
	}

	loop := &agent.Loop{
		Provider:      deps.Provider,
		Model:         deps.Model,
		Tools:         deps.Tools,
		ToolNames:     ScopedToolNames(deps.Tools, cfg.Policy.AllowedTools),
		SystemPrompt:  deps.SystemPrompt,
		MaxIterations: maxIterations,
		SessionID:     meta.ID,
		RunID:         "cron:" + cfg.ID,
	}

	messages := agent.ToProviderMessages(records)
	startLen := len(messages)
	result, runErr := loop.Run(ctx, messages)

	for _, rec := range agent.RecordsSince(result, startLen) {
		if _, err := deps.Sessions.AppendMessage(meta.ID, rec); err != nil {
			return fmt.Errorf("persist cron turn: %w", err)
		}
	}
	return runErr
}

func snippet(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
