package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aatumaykin/agentpool/internal/config"
	"github.com/aatumaykin/agentpool/internal/constants"
)

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configValidateCmd = &cobra.Command{
	Use:   "validate [config-file]",
	Short: "Validate configuration file",
	Long: `Load the configuration file (with .env and AGENTPOOL_* overrides applied)
and report every validation error.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := configPath
		if len(args) > 0 {
			path = args[0]
		}

		if err := config.LoadEnvOptional(constants.DefaultEnvPath); err != nil {
			return err
		}
		cfg, err := config.Load(path)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if errs := cfg.Validate(); len(errs) > 0 {
			fmt.Fprint(out, constants.MsgConfigInvalid)
			for _, e := range errs {
				fmt.Fprintf(out, constants.MsgConfigError, e)
			}
			return fmt.Errorf("%d validation error(s) in %s", len(errs), path)
		}

		fmt.Fprintf(out, constants.MsgConfigValid, path)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configValidateCmd)
}
