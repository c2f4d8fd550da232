package ingest

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oliveyard/harvest-go/internal/conf"
	"github.com/oliveyard/harvest-go/internal/datastore"
)

func testSettings(t *testing.T) *conf.Settings {
	t.Helper()
	settings := &conf.Settings{}
	settings.Output.SQLite.Enabled = true
	settings.Output.SQLite.Path = t.TempDir() + "/test.db"
	settings.Ingest.MaxWeightGrams = 20000
	settings.Ingest.SentinelParcel = "NO-PARCEL"
	settings.Photos.Enabled = true
	settings.Photos.FanOut = 2
	return settings
}

func newTestPipeline(t *testing.T, photos PhotoFetcher) (*Pipeline, datastore.Interface) {
	t.Helper()
	settings := testSettings(t)

	store := datastore.New(settings)
	require.NoError(t, store.Open())
	t.Cleanup(func() { assert.NoError(t, store.Close()) })

	return New(store, photos, settings), store
}

// seedParcelWithPolygon stores an active parcel whose boundary contains the
// point (lat 38.1, lng 23.1).
func seedParcelWithPolygon(t *testing.T, store datastore.Interface) {
	t.Helper()
	_, err := store.UpsertParcel("K3", "Upper Grove")
	require.NoError(t, err)
	require.NoError(t, store.ImportParcelBoundary("K3", []datastore.ParcelVertex{
		{Longitude: 23.0, Latitude: 38.0},
		{Longitude: 23.2, Latitude: 38.0},
		{Longitude: 23.2, Latitude: 38.2},
		{Longitude: 23.0, Latitude: 38.2},
	}))
}

func liveRow(boxCode, weight string) *APIRow {
	return &APIRow{
		Parcel:  "K3 - Upper Grove",
		BoxCode: boxCode,
		Weight:  StringOrNumber(weight),
		Start:   "2025-11-03T09:30:00",
	}
}

func TestLiveIngestionResolvesParcelByGeofence(t *testing.T) {
	pipeline, store := newTestPipeline(t, nil)
	seedParcelWithPolygon(t, store)

	// No parcel string at all; coordinates inside the K3 polygon
	row := &APIRow{
		BoxCode:     "15-617848",
		Weight:      "8.285",
		Geolocation: "38.1 23.1",
		Start:       "2025-11-03T09:30:00",
	}

	summary, err := pipeline.Run(context.Background(), &Source{
		Label: "api sync", Mode: ModeLive, Rows: []RawRow{row},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.SuccessRows)
	assert.Zero(t, summary.ErrorRows)
	assert.Equal(t, datastore.BatchCompleted, summary.Status)

	records, err := store.ListHarvests(false, 10, 0)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "15-617848", records[0].BoxCode)
	assert.Equal(t, "K3", records[0].ParcelCode)
	assert.Equal(t, 8285, records[0].WeightGrams)
	assert.Equal(t, 15, records[0].HarvesterID)

	// The harvester was auto-created on first reference
	harvester, err := store.GetHarvester(15)
	require.NoError(t, err)
	assert.Equal(t, 15, harvester.Code)
}

func TestLiveDuplicateBoxQuarantined(t *testing.T) {
	pipeline, store := newTestPipeline(t, nil)

	first, err := pipeline.Run(context.Background(), &Source{
		Label: "sync 1", Mode: ModeLive, Rows: []RawRow{liveRow("15-617848", "8.285")},
	})
	require.NoError(t, err)
	require.Equal(t, 1, first.SuccessRows)

	second, err := pipeline.Run(context.Background(), &Source{
		Label: "sync 2", Mode: ModeLive, Rows: []RawRow{liveRow("15-617848", "8.285")},
	})
	require.NoError(t, err)
	assert.Zero(t, second.SuccessRows)
	assert.Equal(t, 1, second.ErrorRows)
	assert.Equal(t, int64(1), second.ErrorCounts[datastore.ErrDuplicateBox])

	// The store still contains exactly one record for that code
	records, err := store.ListHarvests(false, 10, 0)
	require.NoError(t, err)
	assert.Len(t, records, 1)

	rows, err := store.GetBatchErrors(second.BatchID)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "15-617848", rows[0].BoxCode)
	assert.NotEmpty(t, rows[0].RawRow)
}

func TestLiveDuplicateCheckedBeforeContentRules(t *testing.T) {
	pipeline, store := newTestPipeline(t, nil)

	first, err := pipeline.Run(context.Background(), &Source{
		Label: "sync 1", Mode: ModeLive, Rows: []RawRow{liveRow("15-617848", "8.285")},
	})
	require.NoError(t, err)
	require.Equal(t, 1, first.SuccessRows)

	// Re-submission of a stored box with a misplaced decimal point: the
	// duplicate check runs before weight bounds, so the row is quarantined
	// as a duplicate, not rejected for its weight
	second, err := pipeline.Run(context.Background(), &Source{
		Label: "sync 2", Mode: ModeLive, Rows: []RawRow{liveRow("15-617848", "82.85")},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, second.ErrorRows)
	assert.Equal(t, int64(1), second.ErrorCounts[datastore.ErrDuplicateBox])
	assert.Zero(t, second.ErrorCounts[datastore.ErrOverWeight])

	records, err := store.ListHarvests(false, 10, 0)
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestConcurrentLiveBatchesStoreOneRecord(t *testing.T) {
	pipeline, store := newTestPipeline(t, nil)

	summaries := make([]*Summary, 2)
	var wg sync.WaitGroup
	for i := range summaries {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			summary, err := pipeline.Run(context.Background(), &Source{
				Label: fmt.Sprintf("sync %d", i+1), Mode: ModeLive,
				Rows: []RawRow{liveRow("15-617848", "8.285")},
			})
			assert.NoError(t, err)
			summaries[i] = summary
		}(i)
	}
	wg.Wait()

	require.NotNil(t, summaries[0])
	require.NotNil(t, summaries[1])
	success := summaries[0].SuccessRows + summaries[1].SuccessRows
	dupes := summaries[0].ErrorCounts[datastore.ErrDuplicateBox] +
		summaries[1].ErrorCounts[datastore.ErrDuplicateBox]
	assert.Equal(t, 1, success)
	assert.Equal(t, int64(1), dupes)

	records, err := store.ListHarvests(false, 10, 0)
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestSheetIngestionIsIdempotent(t *testing.T) {
	pipeline, store := newTestPipeline(t, nil)

	rows := []RawRow{
		&SheetRow{Parcel: "K3 - Upper Grove", BoxCode: "15-617848", Weight: "8.285", Year: "2025", Month: "11", Day: "3"},
		&SheetRow{Parcel: "M1 - Lower Field", BoxCode: "21-000101", Weight: "5.5", Year: "2025", Month: "11", Day: "4"},
	}

	for run := 1; run <= 2; run++ {
		summary, err := pipeline.Run(context.Background(), &Source{
			Label: "2025-current.csv", Mode: ModeSheet, Rows: rows,
		})
		require.NoError(t, err, "run %d", run)
		assert.Equal(t, 2, summary.SuccessRows, "run %d", run)
		assert.Zero(t, summary.ErrorRows, "run %d", run)
	}

	records, err := store.ListHarvests(false, 10, 0)
	require.NoError(t, err)
	assert.Len(t, records, 2, "re-running an unchanged spreadsheet must not duplicate")
}

func TestHistoricalSentinelParcel(t *testing.T) {
	pipeline, store := newTestPipeline(t, nil)

	// Unparseable parcel, no coordinates: historical ingestion tags the
	// sentinel instead of rejecting
	row := &HistoricalSheetRow{
		SheetRow: SheetRow{BoxCode: "15-617848", Weight: "8.285"},
		Start:    "2023-11-05T07:45:00",
	}
	summary, err := pipeline.Run(context.Background(), &Source{
		Label: "2023-historical.csv", Mode: ModeHistorical, Rows: []RawRow{row},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.SuccessRows)

	records, err := store.ListHarvests(false, 10, 0)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "NO-PARCEL", records[0].ParcelCode)
}

func TestHistoricalExactDuplicateSilentlySkipped(t *testing.T) {
	pipeline, store := newTestPipeline(t, nil)

	rows := []RawRow{&HistoricalSheetRow{
		SheetRow: SheetRow{Parcel: "K3 - Upper Grove", BoxCode: "15-617848", Weight: "8.285"},
		Start:    "2023-11-05T07:45:00",
	}}

	// Overlapping export windows re-deliver the same row
	for run := 1; run <= 2; run++ {
		summary, err := pipeline.Run(context.Background(), &Source{
			Label: fmt.Sprintf("window-%d.csv", run), Mode: ModeHistorical, Rows: rows,
		})
		require.NoError(t, err)
		assert.Equal(t, 1, summary.SuccessRows, "skip is not an error")
		assert.Zero(t, summary.ErrorRows)
	}

	records, err := store.ListHarvests(false, 10, 0)
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestLiveRejectsUnresolvableParcel(t *testing.T) {
	pipeline, store := newTestPipeline(t, nil)

	row := &APIRow{BoxCode: "15-617848", Weight: "8.285"}
	summary, err := pipeline.Run(context.Background(), &Source{
		Label: "sync", Mode: ModeLive, Rows: []RawRow{row},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.ErrorRows)
	assert.Equal(t, int64(1), summary.ErrorCounts[datastore.ErrInvalidParcel])

	records, err := store.ListHarvests(false, 10, 0)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestErrorTaxonomyAndAccounting(t *testing.T) {
	pipeline, store := newTestPipeline(t, nil)
	seedParcelWithPolygon(t, store)

	noParcel := &APIRow{BoxCode: "21-1", Weight: "5.0"} // invalid_parcel: nothing to resolve
	rows := []RawRow{
		liveRow("15-617848", "8.285"), // accepted
		liveRow("no hyphen", "8.285"), // invalid_format
		liveRow("15-617849", "heavy"), // missing_data
		liveRow("15-617850", "82.85"), // over_weight: misplaced decimal point
		noParcel,
	}

	summary, err := pipeline.Run(context.Background(), &Source{
		Label: "mixed", Mode: ModeLive, Rows: rows,
	})
	require.NoError(t, err)
	assert.Equal(t, 5, summary.TotalRows)
	assert.Equal(t, 1, summary.SuccessRows)
	assert.Equal(t, 4, summary.ErrorRows)
	assert.Equal(t, summary.TotalRows, summary.SuccessRows+summary.ErrorRows)
	assert.Equal(t, datastore.BatchCompleted, summary.Status)

	assert.Equal(t, int64(1), summary.ErrorCounts[datastore.ErrInvalidFormat])
	assert.Equal(t, int64(1), summary.ErrorCounts[datastore.ErrMissingData])
	assert.Equal(t, int64(1), summary.ErrorCounts[datastore.ErrOverWeight])
	assert.Equal(t, int64(1), summary.ErrorCounts[datastore.ErrInvalidParcel])
}

func TestBatchFailedWhenEveryRowFails(t *testing.T) {
	pipeline, _ := newTestPipeline(t, nil)

	summary, err := pipeline.Run(context.Background(), &Source{
		Label: "all bad", Mode: ModeLive,
		Rows: []RawRow{liveRow("bad", "1"), liveRow("also bad", "1")},
	})
	require.NoError(t, err)
	assert.Equal(t, datastore.BatchFailed, summary.Status)
	assert.Equal(t, 2, summary.ErrorRows)
}

func TestEmptyBatchCompletes(t *testing.T) {
	pipeline, _ := newTestPipeline(t, nil)

	summary, err := pipeline.Run(context.Background(), &Source{
		Label: "empty", Mode: ModeLive, Rows: nil,
	})
	require.NoError(t, err)
	assert.Equal(t, datastore.BatchCompleted, summary.Status)
	assert.Zero(t, summary.TotalRows)
}

// stubFetcher fulfills photo jobs from a canned result set.
type stubFetcher struct {
	fail bool
	got  []PhotoJob
}

func (s *stubFetcher) FetchAll(_ context.Context, jobs []PhotoJob) []PhotoResult {
	s.got = append(s.got, jobs...)
	results := make([]PhotoResult, 0, len(jobs))
	for _, job := range jobs {
		if s.fail {
			results = append(results, PhotoResult{Job: job, Err: fmt.Errorf("connection refused")})
		} else {
			results = append(results, PhotoResult{Job: job, Path: "photos/" + job.BoxCode + ".jpg"})
		}
	}
	return results
}

func photoRow(boxCode string) *APIRow {
	row := liveRow(boxCode, "8.285")
	row.Attachments = []Attachment{{DownloadURL: "https://example.test/" + boxCode + ".jpg"}}
	return row
}

func TestPhotoFetchSuccessStoresPath(t *testing.T) {
	fetcher := &stubFetcher{}
	pipeline, store := newTestPipeline(t, fetcher)

	summary, err := pipeline.Run(context.Background(), &Source{
		Label: "sync", Mode: ModeLive, Rows: []RawRow{photoRow("15-617848")},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.SuccessRows)
	require.Len(t, fetcher.got, 1)

	records, err := store.ListHarvests(false, 10, 0)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "photos/15-617848.jpg", records[0].PhotoPath)
}

func TestPhotoFailureIsNonFatalWarning(t *testing.T) {
	fetcher := &stubFetcher{fail: true}
	pipeline, store := newTestPipeline(t, fetcher)

	summary, err := pipeline.Run(context.Background(), &Source{
		Label: "sync", Mode: ModeLive, Rows: []RawRow{photoRow("15-617848")},
	})
	require.NoError(t, err)

	// The row itself still succeeds: harvest data outranks the photo
	assert.Equal(t, 1, summary.SuccessRows)
	assert.Zero(t, summary.ErrorRows)

	rows, err := store.GetBatchErrors(summary.BatchID)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, datastore.ErrPhotoDownloadFailed, rows[0].ErrorType)
	assert.True(t, rows[0].Warning)

	records, err := store.ListHarvests(false, 10, 0)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Empty(t, records[0].PhotoPath)
}

func TestInterruptedRunLeavesProcessingBatch(t *testing.T) {
	pipeline, store := newTestPipeline(t, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := pipeline.Run(ctx, &Source{
		Label: "cancelled", Mode: ModeLive, Rows: []RawRow{liveRow("15-617848", "8.285")},
	})
	require.Error(t, err)

	// The ledger row stays in processing state for manual inspection.
	// Look it up through the error it would own: none were written, so scan
	// by listing nothing; instead verify no records were committed.
	records, err := store.ListHarvests(false, 10, 0)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestNewParcelVisibleToGeofenceWithinBatch(t *testing.T) {
	pipeline, store := newTestPipeline(t, nil)
	seedParcelWithPolygon(t, store)

	// First row auto-creates parcel M1 (no polygon), second row still
	// geofences into K3: the snapshot mutation must not break resolution.
	rows := []RawRow{
		liveRow("21-000101", "5.5"),
		&APIRow{BoxCode: "15-617848", Weight: "8.285", Geolocation: "38.1 23.1"},
	}
	rows[0].(*APIRow).Parcel = "M1 - Lower Field"

	summary, err := pipeline.Run(context.Background(), &Source{
		Label: "sync", Mode: ModeLive, Rows: rows,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, summary.SuccessRows)

	parcel, err := store.GetParcel("M1")
	require.NoError(t, err)
	assert.Equal(t, "Lower Field", parcel.Name)
}
