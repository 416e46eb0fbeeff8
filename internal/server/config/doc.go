// Package config loads runtime configuration for the offline cache worker.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. SHELLKEEPER_WORKER_* environment variables (see parseEnv).
//  3. Optional JSON file selected via -c or -config (see parseJson).
//  4. Command-line flags (see parseFlags), which override earlier values.
//
// Supported flags
//
//	-a string   listen address
//	-o string   application origin
//	-p string   cache name prefix
//	-v string   worker version
//	-b string   cache backend: memory, sqlite or s3
//	-d string   SQLite cache database path
//	-u string   S3 access key
//	-w string   S3 secret key
//	-g string   S3 region
//	-e string   S3 endpoint
//	-k string   S3 bucket
//	-t int      network fetch timeout, seconds
//	-L string   log level
//
// The essential and module asset lists are read from JSON or from the
// comma separated SHELLKEEPER_WORKER_ESSENTIAL / SHELLKEEPER_WORKER_MODULES
// variables.
//
// # JSON schema
//
//	{
//	  "listen_addr": ":8080",
//	  "origin": "https://app.example.org/",
//	  "cache_prefix": "shellkeeper",
//	  "version": "v2",
//	  "backend": "sqlite",
//	  "sqlite_path": "worker-cache.db",
//	  "s3_bucket": "shellkeeper-cache",
//	  "s3_region": "us-east-1",
//	  "s3_endpoint": "http://127.0.0.1:9000/",
//	  "s3_access_key": "admin",
//	  "s3_secret_key": "secretpassword",
//	  "fetch_timeout": "15s",
//	  "log_level": "info",
//	  "essential": ["index.html", "mobile/index.html", "app.css"],
//	  "modules": ["modules/loans.js"]
//	}
package config
