package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmitrijs2005/shellkeeper/internal/client/cli"
	"github.com/dmitrijs2005/shellkeeper/internal/client/config"
	"github.com/dmitrijs2005/shellkeeper/internal/flagx"
	"github.com/dmitrijs2005/shellkeeper/internal/logging"
)

func main() {

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := config.LoadConfig()
	logger := logging.New(os.Stderr, "text", cfg.LogLevel)

	app, err := cli.NewApp(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("%v", err)
		return
	}

	args := flagx.Positional(os.Args[1:], config.ValuedFlags)
	if err := app.Run(ctx, args); err != nil {
		if !errors.Is(err, cli.ErrNotAuthenticated) {
			logger.Error(ctx, "command failed", "error", err)
		}
		stop()
		os.Exit(1)
	}

}
