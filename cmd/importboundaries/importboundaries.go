// Package importboundaries provides the parcel boundary import command.
package importboundaries

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/oliveyard/harvest-go/internal/conf"
	"github.com/oliveyard/harvest-go/internal/datastore"
	"github.com/oliveyard/harvest-go/internal/geofence"
)

// Command creates and returns the importboundaries command
func Command(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "importboundaries [boundaries.geojson]",
		Short: "Import parcel boundary polygons from a GeoJSON file",
		Long: `Importboundaries loads parcel boundary polygons from a GeoJSON feature
collection. Each feature needs a "code" property and a Polygon geometry;
missing parcels are created, existing ones get their boundary replaced.
Geofence resolution only works for parcels loaded this way.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(settings, args[0])
		},
	}
}

func runImport(settings *conf.Settings, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open boundary file: %w", err)
	}
	defer f.Close()

	boundaries, err := geofence.ReadBoundaries(f)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	store := datastore.New(settings)
	if store == nil {
		return fmt.Errorf("no database output enabled in configuration")
	}
	if err := store.Open(); err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer store.Close()

	for _, b := range boundaries {
		if _, err := store.UpsertParcel(b.Code, b.Name); err != nil {
			return fmt.Errorf("upserting parcel %s: %w", b.Code, err)
		}
		if err := store.ImportParcelBoundary(b.Code, b.Ring); err != nil {
			return fmt.Errorf("importing boundary for parcel %s: %w", b.Code, err)
		}
	}

	fmt.Printf("Imported %d parcel boundaries\n", len(boundaries))
	return nil
}
