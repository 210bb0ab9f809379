//go:build tsnet

package gateway

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"time"

	"tailscale.com/tsnet"

	"github.com/nextlevelbuilder/agentrun/internal/config"
)

const tsnetShutdownTimeout = 10 * time.Second

// InitTailscale brings up a tsnet node and serves mux on it alongside the
// plain TCP listener, per spec §6.6. Compiled via `go build -tags tsnet`;
// the no-op build (tailscale_stub.go) is used otherwise so a default build
// never needs tailnet credentials. Returns a cleanup func, or nil if
// cfg.Hostname is empty.
func InitTailscale(ctx context.Context, cfg config.TailscaleConfig, mux http.Handler) func() {
	if cfg.Hostname == "" {
		return nil
	}

	srv := &tsnet.Server{
		Hostname:  cfg.Hostname,
		Dir:       cfg.StateDir,
		AuthKey:   cfg.AuthKey,
		Ephemeral: cfg.Ephemeral,
	}

	var ln net.Listener
	var err error
	if cfg.EnableTLS {
		ln, err = srv.ListenTLS("tcp", ":443")
	} else {
		ln, err = srv.Listen("tcp", ":80")
	}
	if err != nil {
		slog.Error("gateway: tsnet listen failed", "error", err)
		srv.Close()
		return nil
	}

	httpSrv := &http.Server{Handler: mux}
	go func() {
		if err := httpSrv.Serve(ln); err != nil && err != http.ErrServerClosed {
			slog.Error("gateway: tsnet serve error", "error", err)
		}
	}()
	slog.Info("gateway: serving on tailnet", "hostname", cfg.Hostname, "tls", cfg.EnableTLS)

	return func() {
		shutdownCtx, cancel := context.WithTimeout(ctx, tsnetShutdownTimeout)
		defer cancel()
		httpSrv.Shutdown(shutdownCtx)
		srv.Close()
	}
}
