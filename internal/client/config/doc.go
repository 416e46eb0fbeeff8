// Package config loads runtime configuration for the session guard CLI.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. SHELLKEEPER_* environment variables (see parseEnv).
//  3. Optional JSON file selected via -c or -config (see parseJson).
//  4. Command-line flags (see parseFlags), which override earlier values.
//
// Supported flags
//
//	-u string   backend service URL          (SHELLKEEPER_BACKEND_URL)
//	-k string   backend public key           (SHELLKEEPER_PUBLIC_KEY)
//	-t string   profile table                (SHELLKEEPER_PROFILE_TABLE)
//	-s string   local storage database path  (SHELLKEEPER_STORAGE_PATH)
//	-d string   Postgres DSN                 (SHELLKEEPER_PROFILE_DSN)
//	-l string   login view                   (SHELLKEEPER_LOGIN_PATH)
//	-r int      request timeout, seconds     (SHELLKEEPER_REQUEST_TIMEOUT, e.g. "10s")
//	-L string   log level                    (SHELLKEEPER_LOG_LEVEL)
//
// # JSON schema
//
//	{
//	  "backend_url": "https://project.example.co",
//	  "public_key": "eyJ...",
//	  "profile_table": "profiles",
//	  "storage_path": "shellkeeper.db",
//	  "profile_dsn": "postgres://...",
//	  "login_path": "login.html",
//	  "request_timeout": "10s",
//	  "log_level": "info"
//	}
package config
