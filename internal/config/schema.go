// Package config handles YAML configuration loading, environment variable
// expansion, and structural validation for threadpilot.
package config

import (
	"time"

	"github.com/flemzord/threadpilot/internal/gateway"
	"github.com/flemzord/threadpilot/internal/provider/openaicompat"
)

// Config is the top-level configuration structure.
type Config struct {
	// Version is the config format version. Currently only "1" is supported.
	Version string `yaml:"version"`

	// SystemPrompt is prepended to every completion request.
	SystemPrompt string `yaml:"system_prompt"`

	Slack      SlackConfig         `yaml:"slack"`
	Provider   openaicompat.Config `yaml:"provider"`
	Context    ContextConfig       `yaml:"context"`
	RateLimit  RateLimitConfig     `yaml:"ratelimit"`
	Gateway    gateway.Config      `yaml:"gateway"`
	Transcript TranscriptConfig    `yaml:"transcript"`
	Tracing    TracingConfig       `yaml:"tracing"`
}

// SlackConfig holds the Slack credentials.
type SlackConfig struct {
	// AppToken is the app-level token (xapp-...) for Socket Mode.
	AppToken string `yaml:"app_token"`

	// BotToken is the bot token (xoxb-...) for the Web API.
	BotToken string `yaml:"bot_token"`

	// BaseURL overrides the Web API endpoint. Tests only.
	BaseURL string `yaml:"base_url"`
}

// ContextConfig bounds the in-memory thread context cache.
type ContextConfig struct {
	// TTL is how long an untouched thread context stays usable.
	TTL time.Duration `yaml:"ttl"`

	// MaxUserTurns bounds how many user turns one thread keeps.
	MaxUserTurns int `yaml:"max_user_turns"`

	// MaxThreads bounds how many threads are cached at once.
	MaxThreads int `yaml:"max_threads"`

	// SweepSchedule is the cron expression for the TTL sweep.
	SweepSchedule string `yaml:"sweep_schedule"`
}

// RateLimitConfig bounds per-user request admission.
type RateLimitConfig struct {
	// Window is the trailing duration requests are counted over.
	Window time.Duration `yaml:"window"`

	// MaxRequests is the per-window cap for one user.
	MaxRequests int `yaml:"max_requests"`
}

// TranscriptConfig controls the SQLite exchange log.
type TranscriptConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// TracingConfig controls OTLP trace export. An empty endpoint disables
// tracing entirely.
type TracingConfig struct {
	Endpoint string `yaml:"endpoint"`
}
