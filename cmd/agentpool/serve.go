package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/aatumaykin/agentpool/internal/app"
	"github.com/aatumaykin/agentpool/internal/logger"
	"github.com/aatumaykin/agentpool/internal/version"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the scheduler until interrupted",
	Long: `Start the scheduler with the configured agent pool, storage and
metrics endpoint. Unfinished tasks from a previous run are restored from
storage. SIGINT or SIGTERM triggers a graceful shutdown.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer log.Close()

	log.Info("starting agentpool",
		logger.Field{Key: "version", Value: version.Version},
		logger.Field{Key: "config", Value: configPath},
		logger.Field{Key: "storage", Value: cfg.MaskedStorageURL()},
		logger.Field{Key: "max_agents", Value: cfg.Scheduler.MaxAgents})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return app.New(cfg, log).Run(ctx)
}
