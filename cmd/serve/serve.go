// Package serve provides the HTTP server command.
package serve

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/oliveyard/harvest-go/internal/api"
	"github.com/oliveyard/harvest-go/internal/conf"
	"github.com/oliveyard/harvest-go/internal/datastore"
	"github.com/oliveyard/harvest-go/internal/ingest"
	"github.com/oliveyard/harvest-go/internal/logging"
	"github.com/oliveyard/harvest-go/internal/photos"
)

// Command creates and returns the serve command
func Command(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(settings)
		},
	}
}

func runServe(settings *conf.Settings) error {
	if !settings.WebServer.Enabled {
		return fmt.Errorf("web server is not enabled in configuration")
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

	pipeline := ingest.New(store, fetcher, settings)
	controller := api.New(store, pipeline, settings)

	errCh := make(chan error, 1)
	go func() {
		errCh <- controller.Start()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		logging.Info("shutting down", "signal", sig.String())
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return controller.Echo.Shutdown(ctx)
	}
}
