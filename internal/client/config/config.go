package config

import "time"

// Config holds runtime settings for chatctl.
//
// Fields:
//   - ServerURL: base URL of the chatterbox HTTP API.
//   - Token: session token sent as a bearer credential; empty means logged out.
//   - RequestTimeout: upper bound for a single API call.
type Config struct {
	ServerURL      string        `env:"CHATTERBOX_SERVER_URL"`
	Token          string        `env:"CHATTERBOX_TOKEN"`
	RequestTimeout time.Duration `env:"CHATTERBOX_REQUEST_TIMEOUT"`
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerURL = "http://127.0.0.1:3001"
	c.RequestTimeout = 10 * time.Second
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// JSON (if present), the environment and command-line flags. Later sources
// take precedence over earlier ones.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseEnv(cfg)
	parseFlags(cfg)
	return cfg
}
