// Package config defines the runtime's configuration shape and the
// in-place atomic reload used by hot-reload (C11). It follows the
// teacher's pattern of an embedded mutex plus a ReplaceFrom method that
// copies fields into the existing struct rather than swapping pointers,
// so that goroutines holding a reference never observe a half-updated or
// freed config.
package config

import "sync"

// Config is the root configuration document. All sections are optional
// except Model; YAML keys are snake_case and normalized to these field
// names by the loader. Unknown keys are dropped.
type Config struct {
	mu sync.RWMutex

	Model        ModelConfig        `yaml:"model"`
	Server       ServerConfig       `yaml:"server"`
	Tools        ToolsConfig        `yaml:"tools"`
	Logging      LoggingConfig      `yaml:"logging"`
	Retry        RetryConfig        `yaml:"retry"`
	Security     SecurityConfig     `yaml:"security"`
	SystemPrompt SystemPromptConfig `yaml:"system_prompt"`
	Compaction   CompactionConfig   `yaml:"compaction"`
	Cron         CronConfig         `yaml:"cron"`
	Workflows    WorkflowsConfig    `yaml:"workflows"`
	Tailscale    TailscaleConfig    `yaml:"tailscale"`

	// Version increments on every successful ApplyFromDisk so readers can
	// detect staleness without comparing deep structures.
	Version int `yaml:"-"`
}

type ModelConfig struct {
	Provider string `yaml:"provider"`
	Name     string `yaml:"name"`
}

type ServerConfig struct {
	Host           string   `yaml:"host"`
	Port           int      `yaml:"port"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

type ToolsConfig struct {
	MaxIterations int `yaml:"max_iterations"`
	OutputLimit   int `yaml:"output_limit"`
	Timeout       int `yaml:"timeout"`
	// CLIToolsFile points at the declarative CLI-tool document (C4).
	CLIToolsFile string `yaml:"cli_tools_file"`
}

type RotationConfig struct {
	MaxDays   int `yaml:"max_days"`
	MaxSizeMB int `yaml:"max_size_mb"`
}

type LoggingConfig struct {
	File     string         `yaml:"file"`
	Level    string         `yaml:"level"`
	Stdout   bool           `yaml:"stdout"`
	Rotation RotationConfig `yaml:"rotation"`
}

type RetryConfig struct {
	BaseDelayMs       int   `yaml:"base_delay_ms"`
	MaxDelayMs        int   `yaml:"max_delay_ms"`
	MaxRetries        int   `yaml:"max_retries"`
	RetryableStatuses []int `yaml:"retryable_statuses"`
}

type SecurityConfig struct {
	Workspace       string   `yaml:"workspace"`
	AllowedEnv      []string `yaml:"allowed_env"`
	AllowedPaths    []string `yaml:"allowed_paths"`
	AllowedUsers    []string `yaml:"allowed_users"`
	BlockedCommands []string `yaml:"blocked_commands"`
	DeniedPaths     []string `yaml:"denied_paths"`
}

type SystemPromptConfig struct {
	IdentityFile           string `yaml:"identity_file"`
	CustomInstructionsFile string `yaml:"custom_instructions_file"`
}

type CompactionConfig struct {
	Enabled          bool `yaml:"enabled"`
	KeepRecentTokens int  `yaml:"keep_recent_tokens"`
	ReserveTokens    int  `yaml:"reserve_tokens"`
}

type CronJobPolicy struct {
	AllowedTools  []string `yaml:"allowed_tools"`
	MaxIterations int      `yaml:"max_iterations"`
}

type CronJobConfig struct {
	ID       string        `yaml:"id"`
	Schedule string        `yaml:"schedule"`
	Prompt   string        `yaml:"prompt"`
	Enabled  bool          `yaml:"enabled"`
	Timezone string        `yaml:"timezone"`
	Policy   CronJobPolicy `yaml:"policy"`
}

type CronConfig struct {
	Jobs []CronJobConfig `yaml:"jobs"`
}

type WorkflowsConfig struct {
	Dir string `yaml:"dir"`
}

// TailscaleConfig configures the optional tsnet listener (§6.6): when
// Hostname is set, the server also serves its mux over the tailnet in
// addition to the plain TCP listener. AuthKey is never read from this
// struct's YAML tag; it comes from AGENTRUN_TSNET_AUTH_KEY only.
type TailscaleConfig struct {
	Hostname  string `yaml:"hostname"`
	StateDir  string `yaml:"state_dir"`
	AuthKey   string `yaml:"-"`
	Ephemeral bool   `yaml:"ephemeral"`
	EnableTLS bool   `yaml:"enable_tls"`
}

// Default returns the baseline configuration applied before any file or
// environment overrides.
func Default() *Config {
	return &Config{
		Model: ModelConfig{Provider: "anthropic", Name: "claude-sonnet-4-5-20250929"},
		Server: ServerConfig{
			Host: "127.0.0.1",
			Port: 8080,
		},
		Tools: ToolsConfig{
			MaxIterations: 20,
			OutputLimit:   200000,
			Timeout:       120,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Stdout: true,
			Rotation: RotationConfig{
				MaxDays:   14,
				MaxSizeMB: 100,
			},
		},
		Retry: RetryConfig{
			BaseDelayMs:       1000,
			MaxDelayMs:        30000,
			MaxRetries:        3,
			RetryableStatuses: []int{429, 500, 502, 503, 529},
		},
		Compaction: CompactionConfig{
			Enabled:          true,
			KeepRecentTokens: 20000,
			ReserveTokens:    16384,
		},
	}
}

// ReplaceFrom copies every field of src into c in place, under lock. This
// is the core of C11's hot-reload: in-flight goroutines holding a pointer
// to c observe the new values on their next read, and no reference ever
// dangles from a swapped-out struct.
func (c *Config) ReplaceFrom(src *Config) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.Model = src.Model
	c.Server = src.Server
	c.Tools = src.Tools
	c.Logging = src.Logging
	c.Retry = src.Retry
	c.Security = src.Security
	c.SystemPrompt = src.SystemPrompt
	c.Compaction = src.Compaction
	c.Cron = src.Cron
	c.Workflows = src.Workflows
	c.Tailscale = src.Tailscale
	c.Version++
}

// Snapshot returns a shallow copy safe to read without holding the lock
// beyond this call.
func (c *Config) Snapshot() Config {
	c.mu.RLock()
	defer c.mu.RUnlock()
	cp := *c
	cp.mu = sync.RWMutex{}
	return cp
}
