// Package importfile provides the spreadsheet import command.
package importfile

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/oliveyard/harvest-go/internal/conf"
	"github.com/oliveyard/harvest-go/internal/datastore"
	"github.com/oliveyard/harvest-go/internal/ingest"
	"github.com/oliveyard/harvest-go/internal/photos"
)

// Command creates and returns the importfile command
func Command(settings *conf.Settings) *cobra.Command {
	var historical bool

	cmd := &cobra.Command{
		Use:   "importfile [input.csv]",
		Short: "Import harvest rows from a spreadsheet export",
		Long: `Importfile reads a CSV export of the season spreadsheet and ingests it as
one batch. Current-season imports reconcile rows by box code so the same file
can be imported repeatedly. With --historical, rows from past seasons are
imported with relaxed parcel resolution and exact duplicates are skipped.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(settings, args[0], historical)
		},
	}

	cmd.Flags().BoolVar(&historical, "historical", false, "Treat the file as a past-season export")

	return cmd
}

func runImport(settings *conf.Settings, path string, historical bool) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open input file: %w", err)
	}
	defer f.Close()

	var (
		rows []ingest.RawRow
		mode ingest.Mode
	)
	if historical {
		rows, err = ingest.ReadHistoricalSheet(f)
		mode = ingest.ModeHistorical
	} else {
		rows, err = ingest.ReadCurrentSheet(f)
		mode = ingest.ModeSheet
	}
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

	var fetcher ingest.PhotoFetcher
	if settings.Photos.Enabled {
		fetcher = photos.NewFetcher(settings.Photos)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

	pipeline := ingest.New(store, fetcher, settings)
	summary, err := pipeline.Run(ctx, &ingest.Source{
		Label: filepath.Base(path),
		Mode:  mode,
		Rows:  rows,
	})
	if err != nil {
		return fmt.Errorf("ingestion failed: %w", err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(summary)
}
