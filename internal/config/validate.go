package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate checks the structural soundness of a loaded config. It collects
// every problem instead of stopping at the first one.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Version != "" && cfg.Version != "1" {
		errs = append(errs, fmt.Errorf("unsupported config version %q", cfg.Version))
	}

	if cfg.Slack.AppToken == "" {
		errs = append(errs, errors.New("slack.app_token is required"))
	} else if !strings.HasPrefix(cfg.Slack.AppToken, "xapp-") {
		errs = append(errs, errors.New("slack.app_token must be an app-level token (xapp-...)"))
	}

	if cfg.Slack.BotToken == "" {
		errs = append(errs, errors.New("slack.bot_token is required"))
	} else if !strings.HasPrefix(cfg.Slack.BotToken, "xoxb-") {
		errs = append(errs, errors.New("slack.bot_token must be a bot token (xoxb-...)"))
	}

	if cfg.Provider.APIKey == "" && cfg.Provider.APIKeyEnv == "" {
		errs = append(errs, errors.New("provider needs api_key or api_key_env"))
	}

	if cfg.Context.TTL < 0 {
		errs = append(errs, errors.New("context.ttl must not be negative"))
	}
	if cfg.Context.MaxUserTurns < 0 {
		errs = append(errs, errors.New("context.max_user_turns must not be negative"))
	}
	if cfg.Context.MaxThreads < 0 {
		errs = append(errs, errors.New("context.max_threads must not be negative"))
	}

	if cfg.RateLimit.Window < 0 {
		errs = append(errs, errors.New("ratelimit.window must not be negative"))
	}
	if cfg.RateLimit.MaxRequests < 0 {
		errs = append(errs, errors.New("ratelimit.max_requests must not be negative"))
	}

	if cfg.Transcript.Enabled && cfg.Transcript.Path == "" {
		errs = append(errs, errors.New("transcript.path is required when transcript.enabled"))
	}

	return errors.Join(errs...)
}
