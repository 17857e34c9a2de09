package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"memstore-backup/internal/config"
	"memstore-backup/internal/display"
)

var configShowFormat string

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect and generate configuration",
	Long: `Inspect the effective configuration or generate a template.

Examples:
  # Write a commented template to start from
  memstore-backup config init > memstore-backup.yaml

  # Show the effective configuration after files, env, and flags
  memstore-backup config show --format yaml`,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Print a commented configuration template",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Fprint(os.Stdout, config.GenerateConfigTemplate())
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Long: `Show the configuration that results from merging files, environment
variables, and command line flags. Secrets are not redacted; treat the
output accordingly.`,
	RunE: runConfigShow,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)

	configShowCmd.Flags().StringVar(&configShowFormat, "format", "yaml", "output format (json, yaml)")
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	appConfig, err := loadConfig()
	if err != nil {
		return err
	}

	format, err := display.ParseOutputFormat(configShowFormat)
	if err != nil {
		return err
	}
	if format == display.FormatTable {
		return fmt.Errorf("config show supports json and yaml output only")
	}

	return display.NewService().PrintStructured(format, appConfig)
}
