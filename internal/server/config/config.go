package config

import (
	"errors"
	"fmt"
	"time"
)

const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
	BackendS3     = "s3"
)

// Config holds runtime settings for the offline cache worker.
type Config struct {
	ListenAddr   string        `env:"SHELLKEEPER_WORKER_ADDR"`
	Origin       string        `env:"SHELLKEEPER_WORKER_ORIGIN"`
	CachePrefix  string        `env:"SHELLKEEPER_WORKER_PREFIX"`
	Version      string        `env:"SHELLKEEPER_WORKER_VERSION"`
	Backend      string        `env:"SHELLKEEPER_WORKER_BACKEND"`
	SQLitePath   string        `env:"SHELLKEEPER_WORKER_SQLITE_PATH"`
	S3Bucket     string        `env:"SHELLKEEPER_WORKER_S3_BUCKET"`
	S3Region     string        `env:"SHELLKEEPER_WORKER_S3_REGION"`
	S3Endpoint   string        `env:"SHELLKEEPER_WORKER_S3_ENDPOINT"`
	S3AccessKey  string        `env:"SHELLKEEPER_WORKER_S3_ACCESS_KEY"`
	S3SecretKey  string        `env:"SHELLKEEPER_WORKER_S3_SECRET_KEY"`
	FetchTimeout time.Duration `env:"SHELLKEEPER_WORKER_FETCH_TIMEOUT"`
	LogLevel     string        `env:"SHELLKEEPER_WORKER_LOG_LEVEL"`
	Essential    []string      `env:"SHELLKEEPER_WORKER_ESSENTIAL" envSeparator:","`
	Modules      []string      `env:"SHELLKEEPER_WORKER_MODULES" envSeparator:","`
}

// LoadDefaults populates c with development defaults: an in-memory cache in
// front of a local origin, priming both shells.
func (c *Config) LoadDefaults() {
	c.ListenAddr = ":8080"
	c.Origin = "http://127.0.0.1:3000/"
	c.CachePrefix = "shellkeeper"
	c.Version = "v1"
	c.Backend = BackendMemory
	c.SQLitePath = "worker-cache.db"
	c.S3Bucket = "shellkeeper-cache"
	c.S3Region = "us-east-1"
	c.FetchTimeout = 15 * time.Second
	c.LogLevel = "info"
	c.Essential = []string{"index.html", "mobile/index.html"}
	c.Modules = nil
}

// Validate reports settings the worker cannot start with.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendMemory, BackendSQLite:
	case BackendS3:
		if c.S3Bucket == "" {
			return errors.New("s3 backend needs a bucket")
		}
	default:
		return fmt.Errorf("unknown cache backend %q", c.Backend)
	}
	if c.Origin == "" || c.CachePrefix == "" || c.Version == "" {
		return errors.New("origin, cache prefix and version are required")
	}
	return nil
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// the environment, JSON (if present) and command-line flags (if present).
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseEnv(cfg)
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
