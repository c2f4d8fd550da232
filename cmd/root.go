package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/oliveyard/harvest-go/cmd/db"
	"github.com/oliveyard/harvest-go/cmd/importboundaries"
	"github.com/oliveyard/harvest-go/cmd/importfile"
	"github.com/oliveyard/harvest-go/cmd/serve"
	"github.com/oliveyard/harvest-go/cmd/sync"
	"github.com/oliveyard/harvest-go/internal/conf"
	"github.com/oliveyard/harvest-go/internal/logging"
)

// RootCommand creates and returns the root command
func RootCommand(settings *conf.Settings) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "harvest",
		Short: "Harvest submission ingestion and reconciliation",
	}

	if err := setupFlags(rootCmd, settings); err != nil {
		cobra.CheckErr(err)
	}

	rootCmd.AddCommand(
		sync.Command(settings),
		importfile.Command(settings),
		importboundaries.Command(settings),
		serve.Command(settings),
		db.Command(settings),
	)

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if settings.Debug {
			logging.SetLevel(logging.LevelTrace)
		}
		return nil
	}

	return rootCmd
}

// setupFlags defines flags that are global to the command line interface
func setupFlags(rootCmd *cobra.Command, settings *conf.Settings) error {
	rootCmd.PersistentFlags().BoolVarP(&settings.Debug, "debug", "d", viper.GetBool("debug"), "Enable debug output")

	if err := viper.BindPFlags(rootCmd.PersistentFlags()); err != nil {
		return fmt.Errorf("error binding flags: %w", err)
	}

	return nil
}
