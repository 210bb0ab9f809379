package gateway

import (
	"log/slog"
	"net"
	"net/http"
)

const (
	headerTailscaleUserLogin = "Tailscale-User-Login"
	headerTailscaleUserName  = "Tailscale-User-Name"
)

// IdentityMiddleware implements spec §6.6: it reads the identity headers a
// Tailscale Serve proxy attaches to every forwarded request and rejects
// non-loopback clients whose login isn't in allowedUsers. An empty
// allowedUsers disables the check entirely.
func IdentityMiddleware(allowedUsers []string, next http.Handler) http.Handler {
	if len(allowedUsers) == 0 {
		return next
	}
	allowed := make(map[string]struct{}, len(allowedUsers))
	for _, u := range allowedUsers {
		allowed[u] = struct{}{}
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if isLoopback(r.RemoteAddr) {
			next.ServeHTTP(w, r)
			return
		}
		login := r.Header.Get(headerTailscaleUserLogin)
		if _, ok := allowed[login]; !ok {
			slog.Warn("gateway: identity rejected", "login", login, "name", r.Header.Get(headerTailscaleUserName), "remote", r.RemoteAddr)
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func isLoopback(remoteAddr string) bool {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		host = remoteAddr
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
