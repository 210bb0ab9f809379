//go:build !tsnet

package gateway

import (
	"context"
	"net/http"

	"github.com/nextlevelbuilder/agentrun/internal/config"
)

// InitTailscale is a no-op in the default build; build with -tags tsnet to
// enable the real tailnet listener (tailscale.go).
func InitTailscale(ctx context.Context, cfg config.TailscaleConfig, mux http.Handler) func() {
	return nil
}
