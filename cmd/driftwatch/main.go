// Package main is the entry point for the driftwatch CLI.
package main

import (
	"errors"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/viper"

	"github.com/biodwh/driftwatch/cmd/driftwatch/app"
	"github.com/biodwh/driftwatch/internal/config"
)

// getLogLevel parses the DRIFTWATCH_LOG_LEVEL environment variable.
// Defaults to slog.LevelInfo if unset or invalid.
func getLogLevel() slog.Level {
	v := viper.New()
	v.SetEnvPrefix(config.EnvPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	levelStr := v.GetString("LOG_LEVEL")

	switch strings.ToLower(levelStr) {
	case "debug":
		return slog.LevelDebug
	case "info", "":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		slog.Warn("Invalid LOG_LEVEL, using INFO", "value", levelStr)
		return slog.LevelInfo
	}
}

func main() {
	// Structured JSON logging on stderr keeps stdout clean for commands that
	// output data (e.g. version --format json).
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: getLogLevel()})
	slog.SetDefault(slog.New(handler))

	err := app.NewRootCmd().Execute()
	switch {
	case err == nil:
	case errors.Is(err, app.ErrDriftDetected):
		// The report carries the detail; the exit status is the alarm signal
		// for the scheduler.
		os.Exit(2)
	default:
		os.Exit(1)
	}
}
