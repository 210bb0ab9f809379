package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/agentrun/internal/config"
	"github.com/nextlevelbuilder/agentrun/internal/gateway"
	"github.com/nextlevelbuilder/agentrun/internal/logging"
	"github.com/nextlevelbuilder/agentrun/internal/runtime"
	"github.com/nextlevelbuilder/agentrun/internal/session"
	"github.com/nextlevelbuilder/agentrun/internal/wsrun"
)

const shutdownGraceTimeout = 10 * time.Second

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the agent runtime server",
		Run: func(cmd *cobra.Command, args []string) {
			runServe()
		},
	}
}

// runServe wires the session store, runtime supervisor, WebSocket
// orchestrator, and HTTP gateway together, then blocks until SIGINT or
// SIGTERM requests a graceful shutdown.
func runServe() {
	configPath := resolveConfigPath()

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "agentrun: load config: %v\n", err)
		os.Exit(1)
	}

	level := cfg.Logging.Level
	if verbose {
		level = "debug"
	}
	logger, closeLog, err := logging.New(logging.Config{
		File:    cfg.Logging.File,
		Level:   level,
		Stdout:  cfg.Logging.Stdout,
		MaxDays: cfg.Logging.Rotation.MaxDays,
		MaxMB:   cfg.Logging.Rotation.MaxSizeMB,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "agentrun: init logging: %v\n", err)
		os.Exit(1)
	}
	defer closeLog()
	slog.SetDefault(logger)

	sessionsRoot := os.Getenv("AGENTRUN_SESSIONS_DIR")
	if sessionsRoot == "" {
		sessionsRoot = "sessions"
	}
	sessions := session.New(sessionsRoot)

	sup := runtime.NewSupervisor(sessions, runtime.Paths{
		ConfigFile:   configPath,
		WorkflowsDir: cfg.Workflows.Dir,
	})
	if err := sup.ApplyFromDisk("startup"); err != nil {
		slog.Error("agentrun: initial config load failed", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := sup.Watch(ctx); err != nil {
		slog.Warn("agentrun: hot-reload watch disabled", "error", err)
	}

	orchestrator := wsrun.NewOrchestrator(sessions, sup.WsrunConfigProvider())
	srv := gateway.NewServer(orchestrator, cfg.Server.AllowedOrigins, cfg.Security.AllowedUsers)

	// Serve the same routes over the tailnet, in addition to the plain TCP
	// listener below; a no-op unless built with -tags tsnet and configured.
	tsCleanup := gateway.InitTailscale(ctx, cfg.Tailscale, srv.Mux())
	if tsCleanup != nil {
		defer tsCleanup()
	}

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("agentrun: received signal, shutting down", "signal", sig.String())
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownGraceTimeout)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("agentrun: shutdown error", "error", err)
		}
	}()

	if err := srv.Serve(addr); err != nil {
		slog.Error("agentrun: server exited", "error", err)
		os.Exit(1)
	}
}
