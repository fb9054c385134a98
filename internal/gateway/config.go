package gateway

// defaultListen binds to localhost only; operators expose the gateway
// deliberately, typically behind a reverse proxy.
const defaultListen = "127.0.0.1:8990"

// Config holds the YAML-decoded gateway configuration.
type Config struct {
	// Listen is the address the HTTP server binds to.
	Listen string `yaml:"listen"`

	// BearerToken guards /status. Empty leaves /status unmounted.
	BearerToken string `yaml:"bearer_token"`

	// Webhooks maps a source name to its settings. Sources without a
	// secret accept unsigned payloads.
	Webhooks map[string]WebhookConfig `yaml:"webhooks"`
}

// WebhookConfig is the per-source webhook configuration.
type WebhookConfig struct {
	// Secret is the HMAC-SHA256 key payload signatures are checked with.
	Secret string `yaml:"secret"`

	// Channel is the Slack channel notifications from this source go to.
	Channel string `yaml:"channel"`
}

// Defaults fills in zero-value fields.
func (c *Config) Defaults() {
	if c.Listen == "" {
		c.Listen = defaultListen
	}
}
