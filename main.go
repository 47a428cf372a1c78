package main

import (
	"log/slog"
	"os"

	"signwatch/cmd"
	"signwatch/internal/conf"
	"signwatch/internal/logging"
)

func main() {
	logging.Init(slog.LevelInfo)

	settings, err := conf.Load()
	if err != nil {
		logging.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	if settings.Debug {
		logging.Init(slog.LevelDebug)
	}

	rootCmd := cmd.RootCommand(settings)
	if err := rootCmd.Execute(); err != nil {
		logging.Error("Command failed", "error", err)
		os.Exit(1)
	}
}
