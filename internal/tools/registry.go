package tools

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// Category gates cron visibility (spec §4.9): cron jobs default to "read"
// and never see "admin" tools unless explicitly allow-listed.
type Category string

const (
	CategoryRead  Category = "read"
	CategoryWrite Category = "write"
	CategoryAdmin Category = "admin"
)

// Executor is the callable body of a tool. args has already been validated
// against ParametersSchema by the time Execute is called.
type Executor func(ctx context.Context, args map[string]any) Result

// Tool is a named, schema-validated callable.
type Tool struct {
	Name             string
	Description      string
	Category         Category
	ParametersSchema map[string]any
	OutputLimitBytes int // 0 means use the registry default (200000)
	TimeoutSeconds   int // 0 means use the registry default (120)
	Execute          Executor

	compiled *jsonschema.Schema
}

// Registry is a name -> Tool map, copy-on-replace so that a snapshot
// returned by Snapshot is stable for the duration of one agent-loop
// iteration even while hot-reload installs a fresh map underneath.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]*Tool
}

func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]*Tool)}
}

// Register adds a tool. Duplicate names fail.
func (r *Registry) Register(t *Tool) error {
	compiled, err := compileSchema(t.Name, t.ParametersSchema)
	if err != nil {
		return fmt.Errorf("tool %q: %w", t.Name, err)
	}
	t.compiled = compiled

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[t.Name]; exists {
		return fmt.Errorf("tool %q already registered", t.Name)
	}
	r.tools[t.Name] = t
	return nil
}

// MustRegister panics on registration failure; used for built-ins whose
// schemas are static and known-good at compile time.
func (r *Registry) MustRegister(t *Tool) {
	if err := r.Register(t); err != nil {
		panic(err)
	}
}

// Get returns the tool by name.
func (r *Registry) Get(name string) (*Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// List returns tool names, sorted for deterministic iteration.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for n := range r.tools {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Snapshot returns a point-in-time copy of the tool map, stable even if
// ReplaceAll runs concurrently.
func (r *Registry) Snapshot() map[string]*Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cp := make(map[string]*Tool, len(r.tools))
	for k, v := range r.tools {
		cp[k] = v
	}
	return cp
}

// ReplaceAll atomically swaps the entire tool set, used by hot-reload (C11).
func (r *Registry) ReplaceAll(next map[string]*Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools = next
}

// ReplaceWorkflowTools replaces only entries whose name begins "workflow_",
// leaving built-ins and CLI tools untouched. Used when workflows reload
// independently of the rest of the tool set.
func (r *Registry) ReplaceWorkflowTools(next map[string]*Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for name := range r.tools {
		if isWorkflowToolName(name) {
			delete(r.tools, name)
		}
	}
	for name, t := range next {
		r.tools[name] = t
	}
}

func isWorkflowToolName(name string) bool {
	return len(name) > len("workflow_") && name[:len("workflow_")] == "workflow_"
}

func compileSchema(name string, schema map[string]any) (*jsonschema.Schema, error) {
	if schema == nil {
		schema = map[string]any{"type": "object"}
	}
	c := jsonschema.NewCompiler()
	url := "mem://tools/" + name
	if err := c.AddResource(url, schema); err != nil {
		return nil, fmt.Errorf("invalid parameter schema: %w", err)
	}
	return c.Compile(url)
}
