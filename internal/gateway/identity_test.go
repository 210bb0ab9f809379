package gateway

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestIdentityMiddlewareNoAllowlistPassesThrough(t *testing.T) {
	called := false
	h := IdentityMiddleware(nil, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.RemoteAddr = "203.0.113.5:54321"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if !called {
		t.Fatal("next handler was not called when allowlist is empty")
	}
}

func TestIdentityMiddlewareLoopbackBypasses(t *testing.T) {
	called := false
	h := IdentityMiddleware([]string{"alice@example.com"}, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.RemoteAddr = "127.0.0.1:54321"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if !called {
		t.Fatal("next handler was not called for a loopback remote address")
	}
}

func TestIdentityMiddlewareRejectsUnlistedUser(t *testing.T) {
	called := false
	h := IdentityMiddleware([]string{"alice@example.com"}, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.RemoteAddr = "203.0.113.5:54321"
	req.Header.Set(headerTailscaleUserLogin, "mallory@example.com")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if called {
		t.Fatal("next handler was called for a user not in the allowlist")
	}
	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusForbidden)
	}
}

func TestIdentityMiddlewareAllowsListedUser(t *testing.T) {
	called := false
	h := IdentityMiddleware([]string{"alice@example.com"}, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.RemoteAddr = "203.0.113.5:54321"
	req.Header.Set(headerTailscaleUserLogin, "alice@example.com")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if !called {
		t.Fatal("next handler was not called for an allowed user")
	}
}

func TestIsLoopback(t *testing.T) {
	tests := []struct {
		addr string
		want bool
	}{
		{"127.0.0.1:1234", true},
		{"[::1]:1234", true},
		{"203.0.113.5:1234", false},
		{"not-an-addr", false},
	}
	for _, tt := range tests {
		if got := isLoopback(tt.addr); got != tt.want {
			t.Errorf("isLoopback(%q) = %v, want %v", tt.addr, got, tt.want)
		}
	}
}
