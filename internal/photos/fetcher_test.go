package photos

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oliveyard/harvest-go/internal/conf"
	"github.com/oliveyard/harvest-go/internal/ingest"
)

func newTestFetcher(t *testing.T) (*Fetcher, *http.Client) {
	t.Helper()

	settings := conf.PhotoSettings{
		Enabled:   true,
		Directory: t.TempDir(),
		FanOut:    2,
		CacheTTL:  time.Hour,
		Timeout:   5 * time.Second,
	}

	fetcher := NewFetcher(settings)
	client := &http.Client{}
	httpmock.ActivateNonDefault(client)
	t.Cleanup(httpmock.DeactivateAndReset)
	fetcher.SetClient(client)
	return fetcher, client
}

func TestFetchAllStoresPhotos(t *testing.T) {
	fetcher, _ := newTestFetcher(t)

	httpmock.RegisterResponder(http.MethodGet, "https://example.test/a.jpg",
		httpmock.NewBytesResponder(http.StatusOK, []byte("jpeg-a")))
	httpmock.RegisterResponder(http.MethodGet, "https://example.test/b.jpg",
		httpmock.NewBytesResponder(http.StatusOK, []byte("jpeg-b")))

	results := fetcher.FetchAll(context.Background(), []ingest.PhotoJob{
		{RecordID: 1, BoxCode: "15-617848", URL: "https://example.test/a.jpg"},
		{RecordID: 2, BoxCode: "21-000101", URL: "https://example.test/b.jpg"},
	})
	require.Len(t, results, 2)

	for _, res := range results {
		require.NoError(t, res.Err)
		data, err := os.ReadFile(res.Path)
		require.NoError(t, err)
		assert.NotEmpty(t, data)
		assert.Equal(t, res.Job.BoxCode+".jpg", filepath.Base(res.Path))
	}
}

func TestFetchDeduplicatesByBoxCode(t *testing.T) {
	fetcher, _ := newTestFetcher(t)

	var calls atomic.Int64
	httpmock.RegisterResponder(http.MethodGet, "https://example.test/a.jpg",
		func(req *http.Request) (*http.Response, error) {
			calls.Add(1)
			return httpmock.NewBytesResponse(http.StatusOK, []byte("jpeg")), nil
		})

	job := ingest.PhotoJob{RecordID: 1, BoxCode: "15-617848", URL: "https://example.test/a.jpg"}

	first := fetcher.FetchAll(context.Background(), []ingest.PhotoJob{job})
	require.NoError(t, first[0].Err)
	second := fetcher.FetchAll(context.Background(), []ingest.PhotoJob{job})
	require.NoError(t, second[0].Err)

	assert.Equal(t, int64(1), calls.Load(), "repeat downloads must short-circuit on the cache")
	assert.Equal(t, first[0].Path, second[0].Path)

	// Explicit invalidation forces a re-download
	fetcher.Invalidate(job.BoxCode)
	third := fetcher.FetchAll(context.Background(), []ingest.PhotoJob{job})
	require.NoError(t, third[0].Err)
	assert.Equal(t, int64(2), calls.Load())
}

func TestFetchFailuresReportedPerJob(t *testing.T) {
	fetcher, _ := newTestFetcher(t)

	httpmock.RegisterResponder(http.MethodGet, "https://example.test/ok.jpg",
		httpmock.NewBytesResponder(http.StatusOK, []byte("jpeg")))
	httpmock.RegisterResponder(http.MethodGet, "https://example.test/missing.jpg",
		httpmock.NewStringResponder(http.StatusNotFound, "not found"))

	results := fetcher.FetchAll(context.Background(), []ingest.PhotoJob{
		{BoxCode: "15-1", URL: "https://example.test/ok.jpg"},
		{BoxCode: "15-2", URL: "https://example.test/missing.jpg"},
		{BoxCode: "15-3", URL: ""},
	})
	require.Len(t, results, 3)

	assert.NoError(t, results[0].Err)
	assert.Error(t, results[1].Err, "non-200 must fail the job")
	assert.Error(t, results[2].Err, "missing URL must fail the job")
}
