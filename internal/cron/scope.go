package cron

import (
	"sort"

	"github.com/nextlevelbuilder/agentrun/internal/tools"
)

// legacyToolAliases maps renamed tool names so an older allowedTools list
// in a saved job config still resolves after a tool is renamed.
var legacyToolAliases = map[string]string{
	"read_file":  "read",
	"write_file": "write",
}

// ScopedToolNames derives the restricted tool set a cron fire may use: if
// allowedTools is non-empty it wins (after alias normalization); otherwise
// every registered "read" category tool is allowed, and "admin" tools are
// never reachable either way.
func ScopedToolNames(registry *tools.Registry, allowedTools []string) []string {
	if len(allowedTools) > 0 {
		names := make([]string, 0, len(allowedTools))
		for _, n := range allowedTools {
			if alias, ok := legacyToolAliases[n]; ok {
				n = alias
			}
			if t, ok := registry.Get(n); ok && t.Category != tools.CategoryAdmin {
				names = append(names, n)
			}
		}
		sort.Strings(names)
		return names
	}

	names := make([]string, 0)
	for _, n := range registry.List() {
		t, ok := registry.Get(n)
		if ok && t.Category == tools.CategoryRead {
			names = append(names, n)
		}
	}
	return names
}
