package runtime

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/nextlevelbuilder/agentrun/internal/config"
	"github.com/nextlevelbuilder/agentrun/internal/tools"
	"github.com/nextlevelbuilder/agentrun/internal/workflow"
)

// PreparedSystemPrompt is the expensive-to-assemble, rarely-changing part
// of a turn's system prompt: identity, tool catalog, and workflow catalog.
// It is rebuilt once per ApplyFromDisk and combined with a session's own
// SystemPromptOverride at turn time, not per-turn.
type PreparedSystemPrompt struct {
	Identity            string
	CustomInstructions  string
	ToolCatalog         string
	WorkflowCatalog     string
}

// Render combines the prepared fragments with an optional per-session
// override into the final string passed to agent.Loop.
func (p PreparedSystemPrompt) Render(sessionOverride string) string {
	var b strings.Builder
	if p.Identity != "" {
		b.WriteString(p.Identity)
		b.WriteString("\n\n")
	}
	if p.CustomInstructions != "" {
		b.WriteString(p.CustomInstructions)
		b.WriteString("\n\n")
	}
	if p.ToolCatalog != "" {
		b.WriteString(p.ToolCatalog)
		b.WriteString("\n\n")
	}
	if p.WorkflowCatalog != "" {
		b.WriteString(p.WorkflowCatalog)
		b.WriteString("\n\n")
	}
	if sessionOverride != "" {
		b.WriteString(sessionOverride)
	}
	return strings.TrimRight(b.String(), "\n")
}

// buildPreparedPrompt reads the identity/custom-instructions files named by
// cfg and assembles the tool and workflow catalogs from the freshly built
// registry and engine, all before the atomic swap.
func buildPreparedPrompt(cfg *config.Config, registry *tools.Registry, engine *workflow.Engine) (PreparedSystemPrompt, error) {
	identity, err := readOptionalFile(cfg.SystemPrompt.IdentityFile)
	if err != nil {
		return PreparedSystemPrompt{}, fmt.Errorf("read identity file: %w", err)
	}
	custom, err := readOptionalFile(cfg.SystemPrompt.CustomInstructionsFile)
	if err != nil {
		return PreparedSystemPrompt{}, fmt.Errorf("read custom instructions file: %w", err)
	}

	return PreparedSystemPrompt{
		Identity:           identity,
		CustomInstructions: custom,
		ToolCatalog:        buildToolCatalog(registry),
		WorkflowCatalog:    buildWorkflowCatalog(engine),
	}, nil
}

func readOptionalFile(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", err
	}
	return strings.TrimRight(string(data), "\n"), nil
}

func buildToolCatalog(registry *tools.Registry) string {
	names := registry.List()
	if len(names) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("Available tools:\n")
	for _, name := range names {
		t, ok := registry.Get(name)
		if !ok {
			continue
		}
		fmt.Fprintf(&b, "- %s: %s\n", t.Name, t.Description)
	}
	return strings.TrimRight(b.String(), "\n")
}

func buildWorkflowCatalog(engine *workflow.Engine) string {
	names := engine.List()
	if len(names) == 0 {
		return ""
	}
	sort.Strings(names)
	var b strings.Builder
	b.WriteString("Available workflows:\n")
	for _, name := range names {
		def, ok := engine.Get(name)
		if !ok {
			continue
		}
		fmt.Fprintf(&b, "- %s: %s\n", def.Name, def.Description)
	}
	return strings.TrimRight(b.String(), "\n")
}
