package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// parseEnv overlays CHATTERBOX_* variables. Unset variables leave the field
// untouched, so defaults and JSON values survive. Durations use Go syntax
// ("90s", "1h").
func parseEnv(config *Config) {
	if err := env.Parse(config); err != nil {
		panic(fmt.Errorf("parse env: %w", err))
	}
}
