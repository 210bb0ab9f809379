package workflow

import "testing"

func TestEvalCondition(t *testing.T) {
	params := map[string]any{
		"env":     "prod",
		"retries": float64(3),
		"dryRun":  false,
		"enabled": true,
	}

	tests := []struct {
		name    string
		expr    string
		want    bool
		wantErr bool
	}{
		{"literal true", "true", true, false},
		{"literal false", "false", false, false},
		{"negation", "!false", true, false},
		{"string equality true", `parameters.env == "prod"`, true, false},
		{"string equality false", `parameters.env == "staging"`, false, false},
		{"not equal", `parameters.env != "staging"`, true, false},
		{"numeric equality", "parameters.retries == 3", true, false},
		{"and both true", "parameters.enabled && !parameters.dryRun", true, false},
		{"and short circuit false", "parameters.dryRun && parameters.enabled", false, false},
		{"or with one true", `parameters.dryRun || parameters.env == "prod"`, true, false},
		{"parens", `(parameters.env == "prod") && !parameters.dryRun`, true, false},
		{"unknown parameter errors", "parameters.missing == \"x\"", false, true},
		{"non-boolean result errors", "parameters.retries", false, true},
		{"trailing garbage errors", "true true", false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := EvalCondition(tt.expr, params)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("EvalCondition(%q) = nil error, want error", tt.expr)
				}
				return
			}
			if err != nil {
				t.Fatalf("EvalCondition(%q) unexpected error: %v", tt.expr, err)
			}
			if got != tt.want {
				t.Errorf("EvalCondition(%q) = %v, want %v", tt.expr, got, tt.want)
			}
		})
	}
}

func TestTokenizeCondition(t *testing.T) {
	toks := tokenizeCondition(`parameters.env == "prod" && !parameters.dryRun`)
	want := []string{"parameters", ".", "env", "==", `"prod"`, "&&", "!", "parameters", ".", "dryRun"}
	if len(toks) != len(want) {
		t.Fatalf("tokenizeCondition() = %v, want %v", toks, want)
	}
	for i := range want {
		if toks[i] != want[i] {
			t.Errorf("token %d = %q, want %q", i, toks[i], want[i])
		}
	}
}
