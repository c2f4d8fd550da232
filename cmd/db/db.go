// Package db provides database maintenance commands.
package db

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/oliveyard/harvest-go/internal/conf"
	"github.com/oliveyard/harvest-go/internal/datastore"
)

// Command creates and returns the db command group
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "db",
		Short: "Database maintenance",
	}

	cmd.AddCommand(wipeCommand(settings))

	return cmd
}

func wipeCommand(settings *conf.Settings) *cobra.Command {
	var confirmed bool

	cmd := &cobra.Command{
		Use:   "wipe",
		Short: "Delete every harvest record",
		Long: `Wipe removes all harvest records, including archived ones. Parcels,
harvesters, batch history and validation errors are kept. The operation
cannot be undone and requires --yes.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !confirmed {
				return fmt.Errorf("refusing to wipe harvest records without --yes")
			}
			return runWipe(settings)
		},
	}

	cmd.Flags().BoolVar(&confirmed, "yes", false, "Confirm deletion of all harvest records")

	return cmd
}

func runWipe(settings *conf.Settings) error {
	store := datastore.New(settings)
	if store == nil {
		return fmt.Errorf("no database output enabled in configuration")
	}
	if err := store.Open(); err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer store.Close()

	if err := store.WipeHarvests(); err != nil {
		return fmt.Errorf("wipe failed: %w", err)
	}

	fmt.Println("All harvest records deleted")
	return nil
}
