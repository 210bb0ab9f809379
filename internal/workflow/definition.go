// Package workflow implements C10: YAML-defined step sequences that drive
// the agent loop through a prompt at a time, gated by a small condition
// language and templated with run parameters.
package workflow

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// OnFailure is the policy applied when a step's run is classified failed.
type OnFailure string

const (
	OnFailureHalt         OnFailure = "halt"
	OnFailureContinue     OnFailure = "continue"
	OnFailureSkipRemaining OnFailure = "skip_remaining"
)

// ParameterSpec describes one entry of a workflow's parameters map.
type ParameterSpec struct {
	Type    string `yaml:"type"`
	Enum    []any  `yaml:"enum,omitempty"`
	Default any    `yaml:"default,omitempty"`
}

// Step is one entry of a workflow's steps list.
type Step struct {
	Name      string    `yaml:"name"`
	Prompt    string    `yaml:"prompt"`
	Condition string    `yaml:"condition,omitempty"`
	OnFailure OnFailure `yaml:"on_failure,omitempty"`
}

// Definition is one parsed workflow YAML document.
type Definition struct {
	Name        string                   `yaml:"name"`
	Description string                   `yaml:"description,omitempty"`
	Parameters  map[string]ParameterSpec `yaml:"parameters,omitempty"`
	Steps       []Step                   `yaml:"steps"`
}

// Parse decodes one workflow YAML document and validates its shape.
func Parse(data []byte) (*Definition, error) {
	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("parse workflow: %w", err)
	}
	if def.Name == "" {
		return nil, fmt.Errorf("workflow: missing name")
	}
	if len(def.Steps) == 0 {
		return nil, fmt.Errorf("workflow %q: no steps", def.Name)
	}
	for i, st := range def.Steps {
		if st.Name == "" {
			return nil, fmt.Errorf("workflow %q: step %d missing name", def.Name, i)
		}
		switch st.OnFailure {
		case "", OnFailureHalt, OnFailureContinue, OnFailureSkipRemaining:
		default:
			return nil, fmt.Errorf("workflow %q: step %q: invalid on_failure %q", def.Name, st.Name, st.OnFailure)
		}
	}
	return &def, nil
}

// effectiveOnFailure returns the step's policy, defaulting to halt.
func (s Step) effectiveOnFailure() OnFailure {
	if s.OnFailure == "" {
		return OnFailureHalt
	}
	return s.OnFailure
}

// ValidateParams checks params against the definition's parameter specs,
// applying defaults and rejecting unknown or enum-violating values.
func (d *Definition) ValidateParams(params map[string]any) (map[string]any, error) {
	resolved := make(map[string]any, len(d.Parameters))
	for name, spec := range d.Parameters {
		v, ok := params[name]
		if !ok {
			if spec.Default == nil {
				return nil, fmt.Errorf("missing required parameter %q", name)
			}
			v = spec.Default
		}
		if len(spec.Enum) > 0 && !enumContains(spec.Enum, v) {
			return nil, fmt.Errorf("parameter %q: value %v not in enum", name, v)
		}
		resolved[name] = v
	}
	for name := range params {
		if _, ok := d.Parameters[name]; !ok {
			return nil, fmt.Errorf("unknown parameter %q", name)
		}
	}
	return resolved, nil
}

func enumContains(enum []any, v any) bool {
	for _, e := range enum {
		if fmt.Sprintf("%v", e) == fmt.Sprintf("%v", v) {
			return true
		}
	}
	return false
}
