package config

import "github.com/caarlos0/env/v11"

// parseEnv overlays Config with SHELLKEEPER_* environment variables. Unset
// variables leave the current values alone. Panics on malformed values, like
// the other loaders.
func parseEnv(cfg *Config) {
	if err := env.Parse(cfg); err != nil {
		panic(err)
	}
}
