package config

import "github.com/caarlos0/env/v11"

// parseEnv overlays Config with SHELLKEEPER_WORKER_* variables. Panics on
// malformed values.
func parseEnv(cfg *Config) {
	if err := env.Parse(cfg); err != nil {
		panic(err)
	}
}
