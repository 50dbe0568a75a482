package config

import (
	"log/slog"
	"os"
)

// NewLogger installs a JSON slog logger as the process default. Non
// production environments log at debug level.
func NewLogger(cfg App) *slog.Logger {
	level := slog.LevelInfo
	if !cfg.IsProduction() {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return logger
}
