package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/nextlevelbuilder/agentrun/internal/tools"
)

const toolNamePrefix = "workflow_"

// Engine owns the loaded workflow definitions and hands out a tool set
// that exposes each one to the agent as workflow_<name>.
type Engine struct {
	mu   sync.RWMutex
	defs map[string]*Definition
	deps func() Deps
}

func NewEngine(deps func() Deps) *Engine {
	return &Engine{defs: make(map[string]*Definition), deps: deps}
}

// LoadDir replaces the loaded definitions with every *.yaml/*.yml file in
// dir, parsed and validated. A file that cannot be read or parsed fails the
// whole load and leaves the loaded definitions unchanged.
func (e *Engine) LoadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			e.mu.Lock()
			e.defs = make(map[string]*Definition)
			e.mu.Unlock()
			return nil
		}
		return fmt.Errorf("read workflows dir: %w", err)
	}

	next := make(map[string]*Definition)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := filepath.Ext(entry.Name())
		if ext != ".yaml" && ext != ".yml" {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return fmt.Errorf("read workflow %s: %w", entry.Name(), err)
		}
		def, err := Parse(data)
		if err != nil {
			return fmt.Errorf("load workflow %s: %w", entry.Name(), err)
		}
		next[def.Name] = def
	}

	e.mu.Lock()
	e.defs = next
	e.mu.Unlock()
	return nil
}

func (e *Engine) Get(name string) (*Definition, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	d, ok := e.defs[name]
	return d, ok
}

// List returns every loaded workflow's name, sorted.
func (e *Engine) List() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	names := make([]string, 0, len(e.defs))
	for n := range e.defs {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// RunByName looks up a definition by name and runs it.
func (e *Engine) RunByName(ctx context.Context, name string, params map[string]any) (*Result, error) {
	def, ok := e.Get(name)
	if !ok {
		return nil, fmt.Errorf("unknown workflow %q", name)
	}
	return Run(ctx, def, params, e.deps())
}

// BuildTools returns one tools.Tool per loaded workflow, named
// workflow_<name>, for installation into the registry alongside built-ins.
func (e *Engine) BuildTools() map[string]*tools.Tool {
	e.mu.RLock()
	defs := make([]*Definition, 0, len(e.defs))
	for _, d := range e.defs {
		defs = append(defs, d)
	}
	e.mu.RUnlock()

	out := make(map[string]*tools.Tool, len(defs))
	for _, def := range defs {
		def := def
		name := toolNamePrefix + def.Name
		out[name] = &tools.Tool{
			Name:             name,
			Description:      fmt.Sprintf("Run workflow %q: %s", def.Name, def.Description),
			Category:         tools.CategoryWrite,
			ParametersSchema: parameterSchema(def),
			Execute: func(ctx context.Context, args map[string]any) tools.Result {
				result, err := Run(ctx, def, args, e.deps())
				if err != nil {
					return tools.Error(err.Error())
				}
				data, err := json.Marshal(result)
				if err != nil {
					return tools.Error(fmt.Sprintf("marshal workflow result: %v", err))
				}
				if !result.Success {
					return tools.Error(string(data))
				}
				return tools.Ok(string(data))
			},
		}
	}
	return out
}

func parameterSchema(def *Definition) map[string]any {
	properties := make(map[string]any, len(def.Parameters))
	var required []string
	for name, spec := range def.Parameters {
		prop := map[string]any{"type": jsonSchemaType(spec.Type)}
		if len(spec.Enum) > 0 {
			prop["enum"] = spec.Enum
		}
		properties[name] = prop
		if spec.Default == nil {
			required = append(required, name)
		}
	}
	schema := map[string]any{"type": "object", "properties": properties}
	if len(required) > 0 {
		sort.Strings(required)
		schema["required"] = required
	}
	return schema
}

func jsonSchemaType(t string) string {
	switch t {
	case "number", "string", "boolean", "integer":
		return t
	default:
		return "string"
	}
}
