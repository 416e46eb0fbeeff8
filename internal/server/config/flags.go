package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/shellkeeper/internal/flagx"
)

var workerFlags = []string{"-a", "-o", "-p", "-v", "-b", "-d", "-u", "-w", "-g", "-e", "-k", "-t", "-L"}

// parseFlags populates Config fields from the short flags listed in the
// package documentation. The fetch timeout is given in seconds.
func parseFlags(cfg *Config) {
	args := flagx.FilterArgs(os.Args[1:], workerFlags)

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&cfg.ListenAddr, "a", cfg.ListenAddr, "address and port to listen on")
	fs.StringVar(&cfg.Origin, "o", cfg.Origin, "application origin")
	fs.StringVar(&cfg.CachePrefix, "p", cfg.CachePrefix, "cache name prefix")
	fs.StringVar(&cfg.Version, "v", cfg.Version, "worker version")
	fs.StringVar(&cfg.Backend, "b", cfg.Backend, "cache backend (memory|sqlite|s3)")
	fs.StringVar(&cfg.SQLitePath, "d", cfg.SQLitePath, "SQLite cache database path")
	fs.StringVar(&cfg.S3AccessKey, "u", cfg.S3AccessKey, "S3 access key")
	fs.StringVar(&cfg.S3SecretKey, "w", cfg.S3SecretKey, "S3 secret key")
	fs.StringVar(&cfg.S3Region, "g", cfg.S3Region, "S3 region")
	fs.StringVar(&cfg.S3Endpoint, "e", cfg.S3Endpoint, "S3 endpoint")
	fs.StringVar(&cfg.S3Bucket, "k", cfg.S3Bucket, "S3 bucket")
	fs.StringVar(&cfg.LogLevel, "L", cfg.LogLevel, "log level")
	fetchTimeout := fs.Int("t", int(cfg.FetchTimeout.Seconds()), "network fetch timeout (in seconds)")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	cfg.FetchTimeout = time.Duration(*fetchTimeout) * time.Second
}
