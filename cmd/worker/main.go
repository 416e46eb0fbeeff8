package main

import (
	"context"
	"log"
	"os"

	"github.com/dmitrijs2005/shellkeeper/internal/logging"
	"github.com/dmitrijs2005/shellkeeper/internal/server"
	"github.com/dmitrijs2005/shellkeeper/internal/server/config"
)

func main() {

	ctx := context.Background()
	cfg := config.LoadConfig()
	logger := logging.New(os.Stdout, "json", cfg.LogLevel)

	app, err := server.NewApp(ctx, cfg, logger)
	if err != nil {
		log.Printf("%v", err)
		os.Exit(1)
	}

	if err := app.Run(ctx); err != nil {
		logger.Error(ctx, "shutdown failed", "error", err)
		os.Exit(1)
	}

}
