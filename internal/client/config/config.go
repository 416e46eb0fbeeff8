package config

import "time"

// Config holds runtime settings for the session guard CLI.
//
// Fields:
//   - BackendURL / PublicKey: the backend service and its public (anon) key.
//     Both are required for the backend client to be constructed.
//   - ProfileTable: table holding one profile row per identity id.
//   - StoragePath: SQLite file backing the persisted web storage.
//   - ProfileDSN: optional Postgres DSN for direct profile lookups.
//   - LoginPath: view the guard navigates to when the user must sign in.
//   - RequestTimeout: per-request timeout for backend calls.
type Config struct {
	BackendURL     string        `env:"SHELLKEEPER_BACKEND_URL"`
	PublicKey      string        `env:"SHELLKEEPER_PUBLIC_KEY"`
	ProfileTable   string        `env:"SHELLKEEPER_PROFILE_TABLE"`
	StoragePath    string        `env:"SHELLKEEPER_STORAGE_PATH"`
	ProfileDSN     string        `env:"SHELLKEEPER_PROFILE_DSN"`
	LoginPath      string        `env:"SHELLKEEPER_LOGIN_PATH"`
	RequestTimeout time.Duration `env:"SHELLKEEPER_REQUEST_TIMEOUT"`
	LogLevel       string        `env:"SHELLKEEPER_LOG_LEVEL"`
}

// LoadDefaults populates c with sensible defaults. The backend URL and public
// key have no default.
func (c *Config) LoadDefaults() {
	c.ProfileTable = "profiles"
	c.StoragePath = "shellkeeper.db"
	c.LoginPath = "login.html"
	c.RequestTimeout = 10 * time.Second
	c.LogLevel = "info"
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// the environment, JSON (if present) and command-line flags (if present).
// Later sources take precedence over earlier ones.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseEnv(cfg)
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
