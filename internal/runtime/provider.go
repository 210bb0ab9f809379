package runtime

import (
	"fmt"
	"os"
	"time"

	"github.com/nextlevelbuilder/agentrun/internal/config"
	"github.com/nextlevelbuilder/agentrun/internal/providers"
)

// buildProvider resolves cfg.Model.Provider into a concrete Provider,
// reading its API key from the environment (never persisted to config).
func buildProvider(cfg *config.Config) (providers.Provider, error) {
	retryCfg := providers.RetryConfig{
		BaseDelay:         msToDuration(cfg.Retry.BaseDelayMs),
		MaxDelay:          msToDuration(cfg.Retry.MaxDelayMs),
		MaxRetries:        cfg.Retry.MaxRetries,
		RetryableStatuses: statusSet(cfg.Retry.RetryableStatuses),
	}

	switch cfg.Model.Provider {
	case "", "anthropic":
		key := os.Getenv("ANTHROPIC_API_KEY")
		if key == "" {
			return nil, fmt.Errorf("ANTHROPIC_API_KEY is not set")
		}
		return providers.NewAnthropicProvider(key,
			providers.WithAnthropicModel(cfg.Model.Name),
			providers.WithAnthropicRetryConfig(retryCfg),
		), nil
	case "openai":
		key := os.Getenv("OPENAI_API_KEY")
		if key == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY is not set")
		}
		return providers.NewOpenAIProvider("openai", key, os.Getenv("OPENAI_API_BASE"), cfg.Model.Name).
			WithRetryConfig(retryCfg), nil
	case "openrouter":
		key := os.Getenv("OPENROUTER_API_KEY")
		if key == "" {
			return nil, fmt.Errorf("OPENROUTER_API_KEY is not set")
		}
		return providers.NewOpenAIProvider("openrouter", key, "https://openrouter.ai/api/v1", cfg.Model.Name).
			WithRetryConfig(retryCfg), nil
	default:
		return nil, fmt.Errorf("unknown model provider %q", cfg.Model.Provider)
	}
}

func msToDuration(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}

func statusSet(codes []int) map[int]bool {
	if len(codes) == 0 {
		return providers.DefaultRetryConfig().RetryableStatuses
	}
	out := make(map[int]bool, len(codes))
	for _, c := range codes {
		out[c] = true
	}
	return out
}
