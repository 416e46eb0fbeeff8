package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/shellkeeper/internal/flagx"
)

// ValuedFlags lists the flags this package owns together with -c/-config.
// The CLI uses it to tell configuration apart from a one-shot command.
var ValuedFlags = []string{"-u", "-k", "-t", "-s", "-d", "-l", "-r", "-L", "-c", "-config"}

// parseFlags populates selected Config fields from command-line flags.
//
//	-u string   backend service URL
//	-k string   backend public key
//	-t string   profile table
//	-s string   path of the local storage database
//	-d string   Postgres DSN for direct profile lookups
//	-l string   login view
//	-r int      backend request timeout (seconds)
//	-L string   log level
func parseFlags(cfg *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-u", "-k", "-t", "-s", "-d", "-l", "-r", "-L"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&cfg.BackendURL, "u", cfg.BackendURL, "backend service URL")
	fs.StringVar(&cfg.PublicKey, "k", cfg.PublicKey, "backend public key")
	fs.StringVar(&cfg.ProfileTable, "t", cfg.ProfileTable, "profile table")
	fs.StringVar(&cfg.StoragePath, "s", cfg.StoragePath, "local storage database path")
	fs.StringVar(&cfg.ProfileDSN, "d", cfg.ProfileDSN, "Postgres DSN for profile lookups")
	fs.StringVar(&cfg.LoginPath, "l", cfg.LoginPath, "login view")
	fs.StringVar(&cfg.LogLevel, "L", cfg.LogLevel, "log level")
	requestTimeout := fs.Int("r", int(cfg.RequestTimeout.Seconds()), "backend request timeout (in seconds)")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	cfg.RequestTimeout = time.Duration(*requestTimeout) * time.Second
}
