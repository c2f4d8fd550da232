package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/oliveyard/harvest-go/internal/conf"
	"github.com/oliveyard/harvest-go/internal/datastore"
	"github.com/oliveyard/harvest-go/internal/errors"
	"github.com/oliveyard/harvest-go/internal/geofence"
	"github.com/oliveyard/harvest-go/internal/logging"
)

// Mode selects the duplicate and overwrite semantics of an ingestion run.
// The asymmetry is intentional and must be preserved: the live path never
// overwrites, the spreadsheet paths overwrite by box code.
type Mode int

const (
	// ModeLive is API and bulk-payload ingestion: any box code collision is
	// quarantined as duplicate_box, records are insert-only.
	ModeLive Mode = iota
	// ModeSheet is current-season spreadsheet ingestion: records are
	// upserted by box code so re-running an unchanged export converges.
	ModeSheet
	// ModeHistorical is historical spreadsheet ingestion: exact duplicates
	// (box code and timestamp) are silently skipped, other rows upsert by
	// box code, and unresolvable parcels get the sentinel code because the
	// data is no longer correctable at the source.
	ModeHistorical
)

func (m Mode) String() string {
	switch m {
	case ModeLive:
		return "live"
	case ModeSheet:
		return "sheet"
	case ModeHistorical:
		return "historical"
	default:
		return "unknown"
	}
}

// Source is one ingestion input: a page of API rows, a spreadsheet, or a
// bulk payload.
type Source struct {
	Label      string
	UploadedBy string
	Mode       Mode
	Rows       []RawRow
}

// PhotoJob is a best-effort photo retrieval request for a stored record.
type PhotoJob struct {
	RecordID uint
	BoxCode  string
	URL      string
}

// PhotoResult is the outcome of one photo retrieval.
type PhotoResult struct {
	Job  PhotoJob
	Path string
	Err  error
}

// PhotoFetcher retrieves submission photos. Implementations are expected to
// bound their own concurrency and deduplicate by box code.
type PhotoFetcher interface {
	FetchAll(ctx context.Context, jobs []PhotoJob) []PhotoResult
}

// Summary is the caller-facing outcome of one batch run. Per-row detail
// stays behind the batch id to keep large-batch responses small.
type Summary struct {
	BatchID     string           `json:"batchId"`
	TotalRows   int              `json:"totalRows"`
	SuccessRows int              `json:"successRows"`
	ErrorRows   int              `json:"errorRows"`
	Status      string           `json:"status"`
	ErrorCounts map[string]int64 `json:"errorCounts,omitempty"`
}

// Pipeline runs ingestion batches against the canonical store.
type Pipeline struct {
	store    datastore.Interface
	photos   PhotoFetcher
	settings *conf.Settings
	log      *slog.Logger

	// Serializes batch runs: duplicate checks and catalog upserts assume no
	// concurrent batch is mutating the store through this process.
	mu sync.Mutex
}

// New creates an ingestion pipeline. photos may be nil to disable retrieval.
func New(store datastore.Interface, photos PhotoFetcher, settings *conf.Settings) *Pipeline {
	return &Pipeline{
		store:    store,
		photos:   photos,
		settings: settings,
		log:      logging.ForService("ingest"),
	}
}

// Run processes one source as a single batch: every row is validated,
// accepted rows are upserted into the canonical store and rejected rows are
// quarantined in the error ledger. Row failures never abort the batch.
// Batch-level failures (storage unavailable) propagate to the caller and
// leave the ledger row in processing state for manual inspection.
func (p *Pipeline) Run(ctx context.Context, source *Source) (*Summary, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	runTime := time.Now()

	batch := &datastore.UploadBatch{
		BatchID:     uuid.New().String(),
		SourceLabel: source.Label,
		UploadedBy:  source.UploadedBy,
		TotalRows:   len(source.Rows),
	}
	if err := p.store.CreateBatch(batch); err != nil {
		return nil, fmt.Errorf("creating batch ledger row: %w", err)
	}

	// Batch-scoped snapshot of the active parcel catalog; mutated in memory
	// as new parcels are auto-created, never shared across batches.
	parcels, err := p.store.GetActiveParcels()
	if err != nil {
		return nil, errors.New(fmt.Errorf("snapshotting parcel catalog: %w", err)).
			Component("ingest").
			Category(errors.CategoryDatabase).
			Context("batch_id", batch.BatchID).
			Build()
	}
	run := &batchRun{
		pipeline:     p,
		batchID:      batch.BatchID,
		mode:         source.Mode,
		runTime:      runTime,
		fence:        geofence.NewIndex(parcels),
		knownParcels: make(map[string]bool, len(parcels)),
	}
	for i := range parcels {
		run.knownParcels[parcels[i].Code] = true
	}

	var photoJobs []PhotoJob
	for _, row := range source.Rows {
		if err := ctx.Err(); err != nil {
			// Interrupted runs leave the processing ledger row behind;
			// recovery is manual or by re-running the idempotent paths.
			return nil, err
		}

		job, rowErr, err := run.processRow(row)
		if err != nil {
			// Store failures are batch-level: the ledger row stays in
			// processing state for manual inspection.
			return nil, err
		}
		if rowErr != nil {
			if err := p.recordRowError(batch.BatchID, row, rowErr); err != nil {
				return nil, err
			}
			continue
		}
		if err := p.store.AddBatchResult(batch.BatchID, true); err != nil {
			return nil, err
		}
		if job != nil && p.photos != nil && p.settings.Photos.Enabled {
			photoJobs = append(photoJobs, *job)
		}
	}

	p.fetchPhotos(ctx, batch.BatchID, photoJobs)

	completed, err := p.store.CompleteBatch(batch.BatchID)
	if err != nil {
		return nil, err
	}
	counts, err := p.store.ErrorCategoryCounts(batch.BatchID)
	if err != nil {
		return nil, err
	}

	summary := &Summary{
		BatchID:     completed.BatchID,
		TotalRows:   completed.TotalRows,
		SuccessRows: completed.SuccessRows,
		ErrorRows:   completed.ErrorRows,
		Status:      completed.Status,
		ErrorCounts: counts,
	}
	if p.log != nil {
		p.log.Info("batch completed",
			"batch_id", summary.BatchID,
			"source", source.Label,
			"mode", source.Mode.String(),
			"total", summary.TotalRows,
			"success", summary.SuccessRows,
			"errors", summary.ErrorRows,
			"status", summary.Status)
	}
	return summary, nil
}

// recordRowError writes the quarantine ledger row and bumps the error counter.
func (p *Pipeline) recordRowError(batchID string, row RawRow, rowErr *rowOutcome) error {
	ve := &datastore.ValidationError{
		BatchID:    batchID,
		ErrorType:  rowErr.errType,
		BoxCode:    rowErr.boxCode,
		ParcelCode: rowErr.parcelCode,
		Message:    rowErr.message,
		RawRow:     row.Snapshot(),
	}
	if err := p.store.SaveValidationError(ve); err != nil {
		return err
	}
	return p.store.AddBatchResult(batchID, false)
}

// fetchPhotos runs the best-effort photo phase. Failures are recorded as
// non-fatal warnings on the batch; the rows already succeeded.
func (p *Pipeline) fetchPhotos(ctx context.Context, batchID string, jobs []PhotoJob) {
	if p.photos == nil || len(jobs) == 0 {
		return
	}

	for _, res := range p.photos.FetchAll(ctx, jobs) {
		if res.Err != nil {
			ve := &datastore.ValidationError{
				BatchID:   batchID,
				ErrorType: datastore.ErrPhotoDownloadFailed,
				BoxCode:   res.Job.BoxCode,
				Message:   fmt.Sprintf("photo download failed: %v", res.Err),
				Warning:   true,
			}
			if err := p.store.SaveValidationError(ve); err != nil && p.log != nil {
				p.log.Error("failed to record photo warning", "batch_id", batchID, "error", err)
			}
			continue
		}
		if res.Path != "" {
			if err := p.store.SetHarvestPhotoPath(res.Job.RecordID, res.Path); err != nil && p.log != nil {
				p.log.Warn("failed to store photo path", "box_code", res.Job.BoxCode, "error", err)
			}
		}
	}
}

// rowOutcome carries the quarantine decision with enough identifying context
// for the ledger.
type rowOutcome struct {
	errType    string
	message    string
	boxCode    string
	parcelCode string
}

// batchRun holds the per-batch state: parcel snapshot, geofence index and
// duplicate semantics.
type batchRun struct {
	pipeline     *Pipeline
	batchID      string
	mode         Mode
	runTime      time.Time
	fence        *geofence.Index
	knownParcels map[string]bool
}

// processRow validates and stores one row. It returns a photo job for
// accepted rows carrying a photo reference, or a rowOutcome describing the
// quarantine. The first failing rule wins, and the rules run in a fixed
// order: box code structure, duplicate checks, parcel resolution, weight
// bounds. A duplicate of a stored box is always duplicate_box, whatever
// else is wrong with the row. Store failures are returned as batch-level
// errors; a panic anywhere else is caught and mapped to the catch-all
// "other" category so one malformed row cannot sink the batch.
func (b *batchRun) processRow(row RawRow) (job *PhotoJob, outcome *rowOutcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			job = nil
			err = nil
			outcome = &rowOutcome{
				errType: datastore.ErrOther,
				message: fmt.Sprintf("unexpected error processing row: %v", r),
			}
			if b.pipeline.log != nil {
				b.pipeline.log.Error("row processing panicked",
					"batch_id", b.batchID, "panic", fmt.Sprintf("%v", r))
			}
		}
	}()

	cand := row.Normalize(b.runTime)

	// 1. Box code structure; failures never reach the duplicate checks
	box, rowErr := ParseBoxCode(cand.RawBoxCode)
	if rowErr != nil {
		return nil, &rowOutcome{errType: rowErr.Type, message: rowErr.Message, boxCode: cand.RawBoxCode}, nil
	}
	boxCode := box.String()

	// 2. Duplicate rules, per path, before any content validation: a
	// collision with a stored box is duplicate_box even when the row is
	// also over-weight or missing fields
	switch b.mode {
	case ModeHistorical:
		exists, err := b.pipeline.store.ExactDuplicateExists(boxCode, cand.CollectedAt)
		if err != nil {
			return nil, nil, fmt.Errorf("checking exact duplicate: %w", err)
		}
		if exists {
			// Expected when re-ingesting overlapping export windows
			return nil, nil, nil
		}
	case ModeLive:
		exists, err := b.pipeline.store.BoxCodeExists(boxCode)
		if err != nil {
			return nil, nil, fmt.Errorf("checking box code: %w", err)
		}
		if exists {
			return nil, &rowOutcome{
				errType: datastore.ErrDuplicateBox,
				message: fmt.Sprintf("box code %s already stored, likely a mislabeled box", boxCode),
				boxCode: boxCode,
			}, nil
		}
	case ModeSheet:
		// Overwrite-by-box-code semantics, no duplicate check
	}

	// 3. Parcel resolution: parse, then geofence, then per-mode fallback
	parcelCode, parcelName, ok := ParseParcelCode(cand.RawParcel)
	if !ok {
		parcelCode, parcelName, ok = b.resolveByGeofence(&cand)
	}
	if !ok {
		if b.mode != ModeHistorical {
			return nil, &rowOutcome{
				errType: datastore.ErrInvalidParcel,
				message: fmt.Sprintf("parcel %q unparseable and geofencing failed", cand.RawParcel),
				boxCode: boxCode,
			}, nil
		}
		// Historical data is not correctable at the source
		parcelCode = b.pipeline.settings.Ingest.SentinelParcel
		parcelName = parcelCode
	}

	// 4. Weight bounds
	grams, rowErr := ParseWeight(cand.RawWeight, b.pipeline.settings.Ingest.MaxWeightGrams)
	if rowErr != nil {
		return nil, &rowOutcome{errType: rowErr.Type, message: rowErr.Message, boxCode: boxCode, parcelCode: parcelCode}, nil
	}

	// 5. Catalog upserts
	if !b.knownParcels[parcelCode] {
		parcel, err := b.pipeline.store.UpsertParcel(parcelCode, parcelName)
		if err != nil {
			return nil, nil, fmt.Errorf("upserting parcel %q: %w", parcelCode, err)
		}
		b.knownParcels[parcelCode] = true
		b.fence.AddParcel(parcel)
	}
	if _, err := b.pipeline.store.UpsertHarvester(box.HarvesterID, ""); err != nil {
		return nil, nil, fmt.Errorf("upserting harvester %d: %w", box.HarvesterID, err)
	}

	record := &datastore.HarvestRecord{
		SourceID:    cand.SourceID,
		BoxCode:     boxCode,
		HarvesterID: box.HarvesterID,
		ParcelCode:  parcelCode,
		ParcelName:  parcelName,
		WeightGrams: grams,
		PhotoURL:    cand.PhotoURL,
		Latitude:    cand.Latitude,
		Longitude:   cand.Longitude,
		CollectedAt: cand.CollectedAt,
	}

	// 6. Store, with per-path overwrite semantics
	if b.mode == ModeLive {
		if err := b.pipeline.store.InsertHarvest(record); err != nil {
			if datastore.IsConflict(err) {
				// The storage-layer guard caught a racing duplicate that
				// slipped past the fast-path check
				return nil, &rowOutcome{
					errType:    datastore.ErrDuplicateBox,
					message:    fmt.Sprintf("box code %s already stored", boxCode),
					boxCode:    boxCode,
					parcelCode: parcelCode,
				}, nil
			}
			return nil, nil, fmt.Errorf("inserting harvest record: %w", err)
		}
	} else {
		if _, err := b.pipeline.store.UpsertHarvestByBoxCode(record); err != nil {
			return nil, nil, fmt.Errorf("upserting harvest record: %w", err)
		}
	}

	if cand.PhotoURL != "" {
		return &PhotoJob{RecordID: record.ID, BoxCode: boxCode, URL: cand.PhotoURL}, nil, nil
	}
	return nil, nil, nil
}

// resolveByGeofence recovers the parcel from coordinates when code parsing
// failed. Only called with the batch-scoped index.
func (b *batchRun) resolveByGeofence(cand *Candidate) (code, name string, ok bool) {
	if !cand.HasCoordinates() {
		return "", "", false
	}
	entry, found := b.fence.Resolve(geofence.Point{Lng: *cand.Longitude, Lat: *cand.Latitude})
	if !found {
		return "", "", false
	}
	return entry.Code, entry.Name, true
}
