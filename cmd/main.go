package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/desertthunder/melodymatch/internal/services"
	"github.com/desertthunder/melodymatch/internal/shared"
	"github.com/urfave/cli/v3"
)

func main() {
	logger := shared.NewLogger(nil)

	config, err := shared.LoadConfig("config.toml")
	switch {
	case errors.Is(err, shared.ErrMissingConfig):
		config = shared.DefaultConfig()
	case err != nil:
		logger.Warn("failed to load config.toml, using defaults", "error", err)
		config = shared.DefaultConfig()
	}

	if err := config.ApplyEnv(".env"); err != nil {
		logger.Fatalf("invalid environment: %v", err)
	}
	shared.SetLogLevel(logger, shared.ParseLogLevel(config.LogLevel))

	api := services.NewAPIService(config.Backend.APIURL, nil)
	logger.Debug("backend configured", "url", api.BaseURL())

	runner := NewRunner(RunnerOpts{
		Config:     config,
		ConfigPath: "config.toml",
		Backend:    api,
		Logger:     logger,
	})
	defer runner.Close()

	app := &cli.Command{
		Name:     "melodymatch",
		Usage:    "Melody Match front-end: web pages, Spotify login and your music profile",
		Version:  "0.1.0",
		Commands: runner.register(),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.Run(ctx, os.Args); err != nil {
		runner.Close()
		logger.Fatalf("application error: %v", err)
	}
}
