package workflow

import "testing"

func TestParse(t *testing.T) {
	t.Run("valid document", func(t *testing.T) {
		def, err := Parse([]byte(`
name: triage
description: triage incoming bugs
parameters:
  severity:
    type: string
    default: low
steps:
  - name: classify
    prompt: "classify {{ parameters.severity }}"
  - name: escalate
    prompt: "escalate it"
    condition: 'parameters.severity == "high"'
    on_failure: continue
`))
		if err != nil {
			t.Fatalf("Parse() unexpected error: %v", err)
		}
		if def.Name != "triage" {
			t.Errorf("Name = %q, want triage", def.Name)
		}
		if len(def.Steps) != 2 {
			t.Fatalf("len(Steps) = %d, want 2", len(def.Steps))
		}
		if def.Steps[1].effectiveOnFailure() != OnFailureContinue {
			t.Errorf("effectiveOnFailure() = %q, want continue", def.Steps[1].effectiveOnFailure())
		}
		if def.Steps[0].effectiveOnFailure() != OnFailureHalt {
			t.Errorf("default effectiveOnFailure() = %q, want halt", def.Steps[0].effectiveOnFailure())
		}
	})

	t.Run("missing name", func(t *testing.T) {
		if _, err := Parse([]byte("steps:\n  - name: a\n    prompt: x\n")); err == nil {
			t.Fatal("Parse() = nil error, want error for missing name")
		}
	})

	t.Run("no steps", func(t *testing.T) {
		if _, err := Parse([]byte("name: empty\n")); err == nil {
			t.Fatal("Parse() = nil error, want error for no steps")
		}
	})

	t.Run("invalid on_failure", func(t *testing.T) {
		doc := "name: bad\nsteps:\n  - name: a\n    prompt: x\n    on_failure: retry\n"
		if _, err := Parse([]byte(doc)); err == nil {
			t.Fatal("Parse() = nil error, want error for invalid on_failure")
		}
	})
}

func TestDefinitionValidateParams(t *testing.T) {
	def := &Definition{
		Name: "deploy",
		Parameters: map[string]ParameterSpec{
			"env": {Type: "string", Enum: []any{"staging", "prod"}},
			"dry": {Type: "bool", Default: false},
		},
	}

	t.Run("fills defaults", func(t *testing.T) {
		resolved, err := def.ValidateParams(map[string]any{"env": "staging"})
		if err != nil {
			t.Fatalf("ValidateParams() unexpected error: %v", err)
		}
		if resolved["dry"] != false {
			t.Errorf("dry = %v, want false", resolved["dry"])
		}
	})

	t.Run("missing required", func(t *testing.T) {
		if _, err := def.ValidateParams(map[string]any{}); err == nil {
			t.Fatal("ValidateParams() = nil error, want error for missing required param")
		}
	})

	t.Run("enum violation", func(t *testing.T) {
		if _, err := def.ValidateParams(map[string]any{"env": "dev"}); err == nil {
			t.Fatal("ValidateParams() = nil error, want error for enum violation")
		}
	})

	t.Run("unknown parameter", func(t *testing.T) {
		if _, err := def.ValidateParams(map[string]any{"env": "prod", "extra": "x"}); err == nil {
			t.Fatal("ValidateParams() = nil error, want error for unknown parameter")
		}
	})
}
