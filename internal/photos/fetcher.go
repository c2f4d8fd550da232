// Package photos downloads submission photos, best effort. Retrieval is
// bounded, idempotent per box code, and never fails the owning harvest row.
package photos

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/sync/errgroup"

	"github.com/oliveyard/harvest-go/internal/conf"
	"github.com/oliveyard/harvest-go/internal/errors"
	"github.com/oliveyard/harvest-go/internal/ingest"
	"github.com/oliveyard/harvest-go/internal/logging"
)

// Fetcher retrieves photos with a bounded fan-out and a TTL dedup cache
// keyed by box code. The cache is injected state with explicit invalidation,
// so tests can control expiry deterministically.
type Fetcher struct {
	client   *http.Client
	settings conf.PhotoSettings
	cache    *cache.Cache
	log      *slog.Logger
	mu       sync.Mutex // serializes directory creation
}

// NewFetcher creates a photo fetcher from settings. The dedup cache uses the
// configured TTL; pass a zero TTL to keep entries until invalidated.
func NewFetcher(settings conf.PhotoSettings) *Fetcher {
	ttl := settings.CacheTTL
	if ttl <= 0 {
		ttl = cache.NoExpiration
	}
	timeout := settings.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Fetcher{
		client:   &http.Client{Timeout: timeout},
		settings: settings,
		cache:    cache.New(ttl, 10*time.Minute),
		log:      logging.ForService("photos"),
	}
}

// SetClient replaces the HTTP client. Intended for tests.
func (f *Fetcher) SetClient(client *http.Client) {
	f.client = client
}

// Invalidate drops the cached entry for a box code, forcing a re-download on
// the next fetch.
func (f *Fetcher) Invalidate(boxCode string) {
	f.cache.Delete(boxCode)
}

// FetchAll downloads all jobs with a bounded fan-out. Every job gets a
// result; failures are reported per job and never abort the rest.
func (f *Fetcher) FetchAll(ctx context.Context, jobs []ingest.PhotoJob) []ingest.PhotoResult {
	results := make([]ingest.PhotoResult, len(jobs))

	g, ctx := errgroup.WithContext(ctx)
	fanOut := f.settings.FanOut
	if fanOut <= 0 {
		fanOut = 1
	}
	g.SetLimit(fanOut)

	for i, job := range jobs {
		g.Go(func() error {
			path, err := f.fetchOne(ctx, job)
			results[i] = ingest.PhotoResult{Job: job, Path: path, Err: err}
			// Errors are carried in the result, not the group
			return nil
		})
	}
	// The workers never return errors; Wait only syncs completion
	_ = g.Wait()
	return results
}

// fetchOne downloads one photo unless the box code was fetched recently.
func (f *Fetcher) fetchOne(ctx context.Context, job ingest.PhotoJob) (string, error) {
	if cached, found := f.cache.Get(job.BoxCode); found {
		return cached.(string), nil
	}

	if job.URL == "" {
		return "", errors.Newf("no photo URL for box %s", job.BoxCode).
			Component("photos").
			Category(errors.CategoryPhotoFetch).
			Build()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, job.URL, nil)
	if err != nil {
		return "", errors.New(fmt.Errorf("building photo request: %w", err)).
			Component("photos").
			Category(errors.CategoryPhotoFetch).
			Context("box_code", job.BoxCode).
			Build()
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return "", errors.New(fmt.Errorf("downloading photo: %w", err)).
			Component("photos").
			Category(errors.CategoryNetwork).
			Context("box_code", job.BoxCode).
			Build()
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", errors.Newf("photo download returned status %d", resp.StatusCode).
			Component("photos").
			Category(errors.CategoryHTTP).
			Context("box_code", job.BoxCode).
			Build()
	}

	path, err := f.store(job.BoxCode, resp.Body)
	if err != nil {
		return "", err
	}

	f.cache.SetDefault(job.BoxCode, path)
	if f.log != nil {
		f.log.Debug("photo stored", "box_code", job.BoxCode, "path", path)
	}
	return path, nil
}

// store writes the photo body to <directory>/<boxcode>.jpg.
func (f *Fetcher) store(boxCode string, body io.Reader) (string, error) {
	f.mu.Lock()
	err := os.MkdirAll(f.settings.Directory, 0o755)
	f.mu.Unlock()
	if err != nil {
		return "", fmt.Errorf("creating photo directory: %w", err)
	}

	path := filepath.Join(f.settings.Directory, boxCode+".jpg")
	out, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("creating photo file: %w", err)
	}
	defer out.Close()

	if _, err := io.Copy(out, body); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("writing photo file: %w", err)
	}
	return path, nil
}
