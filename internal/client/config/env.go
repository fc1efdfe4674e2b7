package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// parseEnv overlays CHATTERBOX_SERVER_URL, CHATTERBOX_TOKEN and
// CHATTERBOX_REQUEST_TIMEOUT when they are set.
func parseEnv(cfg *Config) {
	if err := env.Parse(cfg); err != nil {
		panic(fmt.Errorf("parse env: %w", err))
	}
}
