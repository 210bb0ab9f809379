package workflow

import "testing"

func TestExpandTemplate(t *testing.T) {
	params := map[string]any{
		"repo":  "agentrun",
		"count": float64(3),
	}

	tests := []struct {
		name    string
		prompt  string
		want    string
		wantErr bool
	}{
		{"single ref", "Review {{ parameters.repo }} now", "Review agentrun now", false},
		{"tight braces", "Review {{parameters.repo}}", "Review agentrun", false},
		{"multiple refs", "{{ parameters.repo }} has {{ parameters.count }} issues", "agentrun has 3 issues", false},
		{"no refs", "Review the repo", "Review the repo", false},
		{"unknown ref", "Review {{ parameters.missing }}", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExpandTemplate(tt.prompt, params)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ExpandTemplate(%q) = nil error, want error", tt.prompt)
				}
				return
			}
			if err != nil {
				t.Fatalf("ExpandTemplate(%q) unexpected error: %v", tt.prompt, err)
			}
			if got != tt.want {
				t.Errorf("ExpandTemplate(%q) = %q, want %q", tt.prompt, got, tt.want)
			}
		})
	}
}
