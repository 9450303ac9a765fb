package main

import (
	"context"
	"errors"
	"os"

	"github.com/desertthunder/readdon/internal/shared"
	"github.com/urfave/cli/v3"
)

const defaultConfigPath = "config.toml"

func main() {
	logger := shared.NewLogger(nil)

	config := shared.DefaultConfig()
	configPath := ""
	if _, err := os.Stat(defaultConfigPath); err == nil {
		loaded, err := shared.LoadConfig(defaultConfigPath)
		if err != nil {
			logger.Fatalf("failed to load %s: %v", defaultConfigPath, err)
		}
		config, configPath = loaded, defaultConfigPath
	}

	fileLogger, closer, err := shared.NewFileLogger(os.Stderr, config.Files.Log)
	if err != nil {
		logger.Warn("log file unavailable, logging to stderr only", "path", config.Files.Log, "error", err)
	} else {
		logger = fileLogger
		defer closer.Close()
	}

	runner := NewRunner(RunnerOpts{
		Config:     config,
		ConfigPath: configPath,
		Logger:     logger,
	})

	app := newApp(runner)

	if err := app.Run(context.Background(), os.Args); err != nil {
		switch {
		case errors.Is(err, shared.ErrNotImplemented):
			logger.Warn("not implemented")
			os.Exit(0)
		case errors.Is(err, shared.ErrCancelled):
			logger.Warn("cancelled")
			os.Exit(130)
		default:
			logger.Fatalf("application error: %v", err)
		}
	}
}

// newApp builds the root command around runner.
func newApp(runner *Runner) *cli.Command {
	return &cli.Command{
		Name:    "readdon",
		Usage:   "Reconcile Stremio addon collections across many accounts",
		Version: "0.3.0",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to configuration file",
				Value:   defaultConfigPath,
			},
			&cli.BoolFlag{
				Name:  "verbose",
				Usage: "Enable debug logging",
			},
		},
		Before:   runner.configure,
		Commands: runner.register(),
	}
}
