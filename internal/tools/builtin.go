package tools

import (
	"context"
	"log/slog"
	"sync"

	"github.com/nextlevelbuilder/agentrun/internal/security"
)

// RegisterBuiltins registers read/write/edit/bash/ls/grep/find plus legacy
// aliases (read_file, write_file, list_directory) into registry.
func RegisterBuiltins(registry *Registry, policy *security.PathPolicy, bashCfg BashConfig) {
	registry.MustRegister(newReadTool(policy))
	registry.MustRegister(newWriteTool(policy))
	registry.MustRegister(newEditTool(policy))
	registry.MustRegister(newLsTool(policy))
	registry.MustRegister(newGrepTool(policy))
	registry.MustRegister(newFindTool(policy))
	registry.MustRegister(newBashTool(bashCfg))

	registerLegacyAlias(registry, "read_file", "read")
	registerLegacyAlias(registry, "write_file", "write")
	registerLegacyAlias(registry, "list_directory", "ls")
}

var deprecationWarned sync.Map // alias name -> struct{}, one warning per alias per process

// registerLegacyAlias registers a thin wrapper around canonical that warns
// once per process the first time the alias is invoked.
func registerLegacyAlias(registry *Registry, alias, canonical string) {
	target, ok := registry.Get(canonical)
	if !ok {
		return
	}
	wrapped := *target
	wrapped.Name = alias
	wrapped.Execute = func(ctx context.Context, args map[string]any) Result {
		if _, warned := deprecationWarned.LoadOrStore(alias, struct{}{}); !warned {
			slog.Warn("deprecated tool alias invoked", "alias", alias, "canonical", canonical)
		}
		return target.Execute(ctx, args)
	}
	registry.MustRegister(&wrapped)
}
