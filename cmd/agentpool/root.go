package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aatumaykin/agentpool/internal/config"
	"github.com/aatumaykin/agentpool/internal/constants"
	"github.com/aatumaykin/agentpool/internal/logger"
)

var (
	configPath string
	logLevel   string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "agentpool",
	Short: "agentpool - priority task scheduler for a pool of typed agents",
	Long: `agentpool queues prioritized tasks and dispatches them to a pool of
typed agents, with retry, timeouts, health monitoring and persistence
to memory, SQLite or Redis.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", constants.DefaultConfigPath, "path to config.toml")
	rootCmd.PersistentFlags().StringVarP(&logLevel, "log-level", "l", "", "override logging level (debug, info, warn, error)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(tasksCmd)
}

// loadConfig reads .env (when present) and the config file, applies the
// --log-level flag and validates the result.
func loadConfig() (*config.Config, error) {
	if err := config.LoadEnvOptional(constants.DefaultEnvPath); err != nil {
		return nil, err
	}

	cfg, err := config.LoadOrDefault(configPath)
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, &validationErrors{errs: errs}
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) (*logger.Logger, error) {
	log, err := logger.New(cfg.LoggerConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	logger.SetDefault(log)
	return log, nil
}

// validationErrors reports every problem found in the configuration.
type validationErrors struct {
	errs []error
}

func (v *validationErrors) Error() string {
	msg := fmt.Sprintf("configuration has %d error(s):", len(v.errs))
	for _, e := range v.errs {
		msg += "\n  - " + e.Error()
	}
	return msg
}
