package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/aatumaykin/agentpool/internal/app"
	"github.com/aatumaykin/agentpool/internal/task"
)

var runTimeout time.Duration

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run <tasks.yaml>",
	Short: "Run a batch of tasks and print their results",
	Long: `Submit every task of a YAML task file, wait until all of them are
finished and print the final task records as JSON. The metrics endpoint is
not started. Exits non-zero when any task did not complete.`,
	Args: cobra.ExactArgs(1),
	RunE: runBatch,
}

func init() {
	runCmd.Flags().DurationVarP(&runTimeout, "timeout", "t", 0, "abort the batch after this long (0 waits forever)")
}

func runBatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	cfg.Metrics.Enabled = false
	if cfg.Logging.Output == "" || cfg.Logging.Output == "stdout" {
		cfg.Logging.Output = "stderr"
	}

	tasks, err := app.LoadTaskFile(args[0])
	if err != nil {
		return err
	}

	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer log.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if runTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, runTimeout)
		defer cancel()
	}

	a := app.New(cfg, log)
	if err := a.Initialize(ctx); err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		_ = a.Shutdown(shutdownCtx)
	}()
	if err := a.Start(ctx); err != nil {
		return err
	}

	results, err := a.RunBatch(ctx, tasks)
	if err != nil {
		return err
	}
	return printResults(cmd, results)
}

func printResults(cmd *cobra.Command, results []*task.Task) error {
	records := make([]task.Record, len(results))
	failed := 0
	for i, t := range results {
		records[i] = t.ToRecord()
		if t.Status != task.StatusCompleted {
			failed++
		}
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(records); err != nil {
		return fmt.Errorf("failed to encode results: %w", err)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d task(s) did not complete", failed, len(results))
	}
	return nil
}
