// Package sync provides the command that pulls submissions from the field API.
package sync

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/oliveyard/harvest-go/internal/conf"
	"github.com/oliveyard/harvest-go/internal/datastore"
	"github.com/oliveyard/harvest-go/internal/fieldapi"
	"github.com/oliveyard/harvest-go/internal/ingest"
	"github.com/oliveyard/harvest-go/internal/photos"
)

// Command creates and returns the sync command
func Command(settings *conf.Settings) *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Pull new submissions from the field API and ingest them",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(settings, timeout)
		},
	}

	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Minute, "Overall time limit for the sync run")

	return cmd
}

func runSync(settings *conf.Settings, timeout time.Duration) error {
	if !settings.FieldAPI.Enabled {
		return fmt.Errorf("field API access is not enabled in configuration")
	}

	store := datastore.New(settings)
	if store == nil {
		return fmt.Errorf("no database output enabled in configuration")
	}
	if err := store.Open(); err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer store.Close()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	client := fieldapi.NewClient(settings.FieldAPI)
	rows, err := client.FetchSubmissions(ctx)
	if err != nil {
		return fmt.Errorf("fetching submissions: %w", err)
	}
	if len(rows) == 0 {
		fmt.Println("No submissions to ingest")
		return nil
	}

	var fetcher ingest.PhotoFetcher
	if settings.Photos.Enabled {
		fetcher = photos.NewFetcher(settings.Photos)
	}

	pipeline := ingest.New(store, fetcher, settings)
	summary, err := pipeline.Run(ctx, &ingest.Source{
		Label: "field api sync",
		Mode:  ingest.ModeLive,
		Rows:  rows,
	})
	if err != nil {
		return fmt.Errorf("ingestion failed: %w", err)
	}

	return printSummary(summary)
}

func printSummary(summary *ingest.Summary) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(summary)
}
