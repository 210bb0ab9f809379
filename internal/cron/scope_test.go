package cron

import (
	"context"
	"reflect"
	"sort"
	"testing"

	"github.com/nextlevelbuilder/agentrun/internal/tools"
)

func newTestRegistry(t *testing.T) *tools.Registry {
	t.Helper()
	r := tools.NewRegistry()
	r.MustRegister(&tools.Tool{
		Name: "read", Category: tools.CategoryRead,
		Execute: func(ctx context.Context, args map[string]any) tools.Result { return tools.Ok("") },
	})
	r.MustRegister(&tools.Tool{
		Name: "grep", Category: tools.CategoryRead,
		Execute: func(ctx context.Context, args map[string]any) tools.Result { return tools.Ok("") },
	})
	r.MustRegister(&tools.Tool{
		Name: "write", Category: tools.CategoryWrite,
		Execute: func(ctx context.Context, args map[string]any) tools.Result { return tools.Ok("") },
	})
	r.MustRegister(&tools.Tool{
		Name: "bash", Category: tools.CategoryAdmin,
		Execute: func(ctx context.Context, args map[string]any) tools.Result { return tools.Ok("") },
	})
	return r
}

func TestScopedToolNamesDefault(t *testing.T) {
	registry := newTestRegistry(t)
	got := ScopedToolNames(registry, nil)
	sort.Strings(got)
	want := []string{"grep", "read"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ScopedToolNames(nil) = %v, want %v", got, want)
	}
}

func TestScopedToolNamesExplicitAllowlist(t *testing.T) {
	registry := newTestRegistry(t)

	got := ScopedToolNames(registry, []string{"read_file", "write"})
	sort.Strings(got)
	want := []string{"read", "write"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ScopedToolNames(legacy alias) = %v, want %v", got, want)
	}
}

func TestScopedToolNamesNeverIncludesAdmin(t *testing.T) {
	registry := newTestRegistry(t)

	got := ScopedToolNames(registry, []string{"bash", "read"})
	want := []string{"read"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ScopedToolNames(with admin tool requested) = %v, want %v", got, want)
	}
}

func TestScopedToolNamesUnknownToolDropped(t *testing.T) {
	registry := newTestRegistry(t)

	got := ScopedToolNames(registry, []string{"read", "does_not_exist"})
	want := []string{"read"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ScopedToolNames(unknown tool) = %v, want %v", got, want)
	}
}
