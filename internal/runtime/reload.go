package runtime

import (
	"fmt"
	"log/slog"
	"regexp"

	"github.com/nextlevelbuilder/agentrun/internal/config"
	"github.com/nextlevelbuilder/agentrun/internal/cron"
	"github.com/nextlevelbuilder/agentrun/internal/security"
	"github.com/nextlevelbuilder/agentrun/internal/tools"
	"github.com/nextlevelbuilder/agentrun/internal/workflow"
)

// ApplyFromDisk implements C11's reload sequence: build an entire next
// generation (config, provider, tools, workflows, cron) off to the side,
// and only after every build step succeeds does it become the live
// Snapshot. A failure at any step leaves the previous Snapshot untouched.
func (s *Supervisor) ApplyFromDisk(reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	newCfg, err := config.Load(s.paths.ConfigFile)
	if err != nil {
		return fmt.Errorf("apply from disk (%s): load config: %w", reason, err)
	}

	provider, err := buildProvider(newCfg)
	if err != nil {
		return fmt.Errorf("apply from disk (%s): build provider: %w", reason, err)
	}

	registry, err := buildToolRegistry(newCfg)
	if err != nil {
		return fmt.Errorf("apply from disk (%s): build tools: %w", reason, err)
	}

	engine := workflow.NewEngine(s.WorkflowDeps)
	if s.paths.WorkflowsDir != "" {
		if err := engine.LoadDir(s.paths.WorkflowsDir); err != nil {
			return fmt.Errorf("apply from disk (%s): load workflows: %w", reason, err)
		}
	}
	registry.ReplaceWorkflowTools(engine.BuildTools())

	prepared, err := buildPreparedPrompt(newCfg, registry, engine)
	if err != nil {
		return fmt.Errorf("apply from disk (%s): build prompt: %w", reason, err)
	}

	cronScheduler := cron.NewScheduler(s.CronDeps)
	cronScheduler.Start(convertCronJobs(newCfg.Cron.Jobs))

	old := s.current.Load()

	if s.cfg == nil {
		s.cfg = newCfg
		s.cfg.Version++
	} else {
		s.cfg.ReplaceFrom(newCfg)
	}

	next := &Snapshot{
		Version:  s.cfg.Version,
		Config:   s.cfg,
		Provider: provider,
		Tools:    registry,
		Cron:     cronScheduler,
		Workflow: engine,
		Prompt:   prepared,
	}
	s.current.Store(next)

	if old != nil && old.Cron != nil {
		old.Cron.Stop()
	}

	slog.Info("runtime: applied new snapshot", "reason", reason, "version", next.Version)
	return nil
}

func buildToolRegistry(cfg *config.Config) (*tools.Registry, error) {
	registry := tools.NewRegistry()

	policy := &security.PathPolicy{
		Workspace:    cfg.Security.Workspace,
		AllowedPaths: cfg.Security.AllowedPaths,
		DeniedPaths:  cfg.Security.DeniedPaths,
	}

	var denyRegex []*regexp.Regexp
	for _, pattern := range cfg.Security.BlockedCommands {
		re, err := regexp.Compile(pattern)
		if err != nil {
			slog.Warn("runtime: invalid blocked_commands pattern, skipping", "pattern", pattern, "error", err)
			continue
		}
		denyRegex = append(denyRegex, re)
	}

	bashCfg := tools.BashConfig{
		AllowedEnvKeys: cfg.Security.AllowedEnv,
		ExtraDenyRegex: denyRegex,
		TempDir:        "",
	}

	tools.RegisterBuiltins(registry, policy, bashCfg)

	if cfg.Tools.CLIToolsFile != "" {
		doc, err := tools.LoadCLIToolDocument(cfg.Tools.CLIToolsFile)
		if err != nil {
			return nil, fmt.Errorf("load CLI tools: %w", err)
		}
		for _, spec := range doc.Tools {
			t, err := tools.BuildCLITool(spec)
			if err != nil {
				return nil, fmt.Errorf("build CLI tool %q: %w", spec.Name, err)
			}
			if err := registry.Register(t); err != nil {
				return nil, fmt.Errorf("register CLI tool %q: %w", spec.Name, err)
			}
		}
	}

	return registry, nil
}

func convertCronJobs(jobs []config.CronJobConfig) []cron.JobConfig {
	out := make([]cron.JobConfig, 0, len(jobs))
	for _, j := range jobs {
		out = append(out, cron.JobConfig{
			ID:       j.ID,
			Schedule: j.Schedule,
			Prompt:   j.Prompt,
			Enabled:  j.Enabled,
			Timezone: j.Timezone,
			Policy: cron.JobPolicy{
				AllowedTools:  j.Policy.AllowedTools,
				MaxIterations: j.Policy.MaxIterations,
			},
		})
	}
	return out
}
