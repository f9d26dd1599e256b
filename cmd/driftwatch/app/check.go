package app

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/biodwh/driftwatch/internal/baseline"
	"github.com/biodwh/driftwatch/internal/config"
	"github.com/biodwh/driftwatch/internal/detect"
	"github.com/biodwh/driftwatch/internal/report"
)

// ErrDriftDetected is returned by check when any source reported Changed,
// Unreachable, or ExtractionFailed; main maps it to exit status 2 so the
// scheduler can distinguish detection results from configuration errors.
var ErrDriftDetected = errors.New("drift detected")

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check all registered sources for version drift",
	Long: `Check fetches the current state of every registered data source, extracts a
version signature, compares it against the persisted baseline, and writes the
run report. The exit status is 0 when every source is Unchanged, 2 when any
source drifted or failed, and 1 on configuration errors.`,
	RunE: runCheck,
}

func init() {
	checkCmd.Flags().String("config", "", "Path to the registry configuration file (YAML, required)")
	checkCmd.Flags().String("baseline", "", "Override the baseline file location")
	checkCmd.Flags().String("report", "", "Override the report file location")
	checkCmd.Flags().Int("concurrency", 0, "Override the concurrency limit")

	for _, flag := range []string{"config", "baseline", "report", "concurrency"} {
		if err := viper.BindPFlag(flag, checkCmd.Flags().Lookup(flag)); err != nil {
			slog.Error("Failed to bind flag", "flag", flag, "error", err)
		}
	}

	if err := checkCmd.MarkFlagRequired("config"); err != nil {
		slog.Error("Failed to mark config flag as required", "error", err)
	}
}

func runCheck(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	cfg, err := loadConfig(viper.GetString("config"))
	if err != nil {
		return err
	}

	if path := viper.GetString("baseline"); path != "" {
		cfg.Engine.BaselinePath = path
	}
	if path := viper.GetString("report"); path != "" {
		cfg.Engine.ReportPath = path
	}
	if n := viper.GetInt("concurrency"); n > 0 {
		cfg.Engine.Concurrency = n
	}

	slog.Info("Starting drift check",
		"sources", len(cfg.Sources),
		"concurrency", cfg.Engine.EffectiveConcurrency(),
		"runDeadline", cfg.Engine.EffectiveRunDeadline().String())

	store := baseline.NewFileStore(cfg.Engine.EffectiveBaselinePath())
	engine := detect.New(detect.Options{
		Concurrency:    cfg.Engine.EffectiveConcurrency(),
		FetchTimeout:   cfg.Engine.EffectiveFetchTimeout(),
		MaxAttempts:    cfg.Engine.EffectiveMaxAttempts(),
		BackoffInitial: cfg.Engine.EffectiveBackoffInitial(),
		BackoffMax:     cfg.Engine.EffectiveBackoffMax(),
		RunDeadline:    cfg.Engine.EffectiveRunDeadline(),
	}, store)

	rep, err := engine.Run(ctx, cfg.Sources)
	if err != nil {
		if rep == nil {
			return fmt.Errorf("failed to run drift check: %w", err)
		}
		// The report is complete even when the baseline could not be
		// persisted; surface the failure but still write the report.
		slog.Error("Failed to persist baseline", "error", err)
	}

	reportPath := cfg.Engine.EffectiveReportPath()
	if err := report.WriteFile(reportPath, cfg.Engine.CompactReportPath, rep); err != nil {
		return fmt.Errorf("failed to write run report: %w", err)
	}

	slog.Info("Drift check complete",
		"runId", rep.RunID,
		"durationMs", rep.DurationMs,
		"unchanged", rep.Summary.Unchanged,
		"changed", rep.Summary.Changed,
		"unreachable", rep.Summary.Unreachable,
		"extractionFailed", rep.Summary.ExtractionFailed,
		"report", reportPath)

	if rep.Failed() {
		return ErrDriftDetected
	}
	return nil
}

func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(config.WithConfigPath(path))
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
