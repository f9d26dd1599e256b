package app

import (
	"log/slog"

	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a registry configuration without fetching anything",
	RunE: func(cmd *cobra.Command, _ []string) error {
		path, err := cmd.Flags().GetString("config")
		if err != nil {
			return err
		}

		cfg, err := loadConfig(path)
		if err != nil {
			return err
		}

		slog.Info("Configuration is valid",
			"path", path,
			"sources", len(cfg.Sources))
		return nil
	},
}

func init() {
	validateCmd.Flags().String("config", "", "Path to the registry configuration file (YAML, required)")
	if err := validateCmd.MarkFlagRequired("config"); err != nil {
		slog.Error("Failed to mark config flag as required", "error", err)
	}
}
