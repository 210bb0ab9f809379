package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Load reads and parses the YAML config at path. A missing file falls back
// to Default() plus environment overrides, matching the teacher's
// tolerant-bootstrap behavior; a present-but-invalid file is an error.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg := Default()
			applyEnvOverrides(cfg)
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	applyEnvOverrides(cfg)
	return cfg, nil
}

// applyEnvOverrides layers AGENTRUN_*-prefixed environment variables over
// the loaded config. Env always wins over file content, matching the
// teacher's layering order (file, then env) for secrets that operators
// prefer never to commit to disk.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("AGENTRUN_MODEL_PROVIDER"); v != "" {
		cfg.Model.Provider = v
	}
	if v := os.Getenv("AGENTRUN_MODEL_NAME"); v != "" {
		cfg.Model.Name = v
	}
	if v := os.Getenv("AGENTRUN_SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("AGENTRUN_SERVER_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = n
		}
	}
	if v := os.Getenv("AGENTRUN_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("AGENTRUN_WORKSPACE"); v != "" {
		cfg.Security.Workspace = v
	}
	if v := os.Getenv("AGENTRUN_ALLOWED_USERS"); v != "" {
		cfg.Security.AllowedUsers = strings.Split(v, ",")
	}
	if v := os.Getenv("AGENTRUN_TSNET_AUTH_KEY"); v != "" {
		cfg.Tailscale.AuthKey = v
	}
	if v := os.Getenv("AGENTRUN_ALLOWED_PATHS"); v != "" {
		cfg.Security.AllowedPaths = strings.Split(v, ",")
	}
}
