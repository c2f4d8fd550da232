package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/oliveyard/harvest-go/cmd"
	"github.com/oliveyard/harvest-go/internal/conf"
	"github.com/oliveyard/harvest-go/internal/logging"
)

func main() {
	logging.Init()

	settings, err := conf.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	if settings.Main.Log.Enabled {
		closeLog, err := logging.EnableFileOutput(settings.Main.Log.Path, slog.LevelInfo, logging.Rotation{
			MaxSizeMB:  settings.Main.Log.MaxSize,
			MaxBackups: settings.Main.Log.MaxBackups,
			MaxAgeDays: settings.Main.Log.MaxAge,
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error opening log file: %v\n", err)
			os.Exit(1)
		}
		defer closeLog()
	}

	rootCmd := cmd.RootCommand(settings)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
