// CLI-tool loader (C4): turns a declarative document of external-command
// tools into registry entries that spawn processes with templated,
// shell-disabled argv.
package tools

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strings"

	"github.com/titanous/json5"
)

// CLIParamType is the declared type of one CLI-tool parameter.
type CLIParamType string

const (
	CLIParamString  CLIParamType = "string"
	CLIParamNumber  CLIParamType = "number"
	CLIParamBoolean CLIParamType = "boolean"
)

// CLIParam describes one templated parameter.
type CLIParam struct {
	Type     CLIParamType `json:"type"`
	Enum     []string     `json:"enum,omitempty"`
	Pattern  string       `json:"pattern,omitempty"`
	Optional bool         `json:"optional,omitempty"`
}

// CLIToolSpec is one entry of the declarative document.
type CLIToolSpec struct {
	Name         string                `json:"name"`
	Description  string                `json:"description"`
	Category     Category              `json:"category"`
	Cmd          string                `json:"cmd"`
	Args         []string              `json:"args"`
	OptionalArgs map[string][]string   `json:"optional_args"`
	Env          map[string]string     `json:"env"`
	Parameters   map[string]CLIParam   `json:"parameters"`
}

// CLIToolDocument is the top-level declarative document.
type CLIToolDocument struct {
	Tools []CLIToolSpec `json:"tools"`
}

// LoadCLIToolDocument reads and parses a JSON5 CLI-tool document from path.
func LoadCLIToolDocument(path string) (*CLIToolDocument, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read cli tools document: %w", err)
	}
	var doc CLIToolDocument
	if err := json5.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse cli tools document: %w", err)
	}
	return &doc, nil
}

var templateRef = regexp.MustCompile(`\{\{\s*([a-zA-Z0-9_]+)\s*\}\}`)
var envRef = regexp.MustCompile(`^\$\{([A-Za-z_][A-Za-z0-9_]*)\}$`)

// BuildCLITool compiles one spec into a registry Tool. It fails fast on an
// unknown parameter type, matching the spec's load-time validation.
func BuildCLITool(spec CLIToolSpec) (*Tool, error) {
	properties := make(map[string]any, len(spec.Parameters))
	var required []any
	for name, p := range spec.Parameters {
		prop := map[string]any{}
		switch p.Type {
		case CLIParamString:
			prop["type"] = "string"
		case CLIParamNumber:
			prop["type"] = "number"
		case CLIParamBoolean:
			prop["type"] = "boolean"
		default:
			return nil, fmt.Errorf("cli tool %q: unknown parameter type %q for %q", spec.Name, p.Type, name)
		}
		if len(p.Enum) > 0 {
			enum := make([]any, len(p.Enum))
			for i, e := range p.Enum {
				enum[i] = e
			}
			prop["enum"] = enum
		}
		if p.Pattern != "" {
			prop["pattern"] = p.Pattern
		}
		properties[name] = prop
		if !p.Optional {
			required = append(required, name)
		}
	}

	schema := map[string]any{
		"type":                 "object",
		"properties":           properties,
		"additionalProperties": false,
	}
	if len(required) > 0 {
		schema["required"] = required
	}

	return &Tool{
		Name:             spec.Name,
		Description:      spec.Description,
		Category:         spec.Category,
		ParametersSchema: schema,
		Execute: func(ctx context.Context, args map[string]any) Result {
			return executeCLITool(ctx, spec, args)
		},
	}, nil
}

func executeCLITool(ctx context.Context, spec CLIToolSpec, args map[string]any) Result {
	renderedArgs := make([]string, 0, len(spec.Args))
	for _, a := range spec.Args {
		renderedArgs = append(renderedArgs, renderTemplate(a, args))
	}
	for param, tmplArgs := range spec.OptionalArgs {
		if _, present := args[param]; !present {
			continue
		}
		for _, a := range tmplArgs {
			renderedArgs = append(renderedArgs, renderTemplate(a, args))
		}
	}

	env := os.Environ()
	for k, v := range spec.Env {
		if m := envRef.FindStringSubmatch(v); m != nil {
			if resolved, ok := os.LookupEnv(m[1]); ok {
				v = resolved
			} else {
				v = ""
			}
		}
		env = append(env, k+"="+v)
	}

	// Spawn with shell disabled: argv is built directly, so metacharacters
	// in parameter values are never interpreted.
	cmd := exec.CommandContext(ctx, spec.Cmd, renderedArgs...)
	cmd.Env = env

	var out, stderr bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return Error(fmt.Sprintf("%s failed: %v\n%s", spec.Name, err, stderr.String()))
	}
	return Ok(out.String())
}

// renderTemplate replaces every {{ name }} with args[name] (stringified),
// or empty string if the argument is missing.
func renderTemplate(tmpl string, args map[string]any) string {
	return templateRef.ReplaceAllStringFunc(tmpl, func(m string) string {
		name := templateRef.FindStringSubmatch(m)[1]
		v, ok := args[name]
		if !ok {
			return ""
		}
		return stringifyArg(v)
	})
}

func stringifyArg(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strings.TrimSuffix(strings.TrimRight(fmt.Sprintf("%f", t), "0"), ".")
	case bool:
		return fmt.Sprintf("%t", t)
	default:
		return fmt.Sprintf("%v", t)
	}
}
