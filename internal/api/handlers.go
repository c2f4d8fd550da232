package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/oliveyard/harvest-go/internal/datastore"
	"github.com/oliveyard/harvest-go/internal/ingest"
)

// bulkPayload is a wrapped list of API-shaped rows submitted directly.
type bulkPayload struct {
	Label      string          `json:"label,omitempty"`
	UploadedBy string          `json:"uploadedBy,omitempty"`
	Rows       []ingest.APIRow `json:"rows"`
}

// IngestBulk runs one live-mode batch over a bulk payload and returns the
// batch summary. Per-row detail stays behind the batch id.
func (c *Controller) IngestBulk(ctx echo.Context) error {
	var payload bulkPayload
	if err := ctx.Bind(&payload); err != nil {
		return c.handleError(ctx, http.StatusBadRequest, fmt.Errorf("malformed bulk payload: %w", err))
	}
	if len(payload.Rows) == 0 {
		return c.handleError(ctx, http.StatusBadRequest, fmt.Errorf("bulk payload has no rows"))
	}

	label := payload.Label
	if label == "" {
		label = "bulk upload"
	}
	rows := make([]ingest.RawRow, 0, len(payload.Rows))
	for i := range payload.Rows {
		rows = append(rows, &payload.Rows[i])
	}

	summary, err := c.Pipeline.Run(ctx.Request().Context(), &ingest.Source{
		Label:      label,
		UploadedBy: payload.UploadedBy,
		Mode:       ingest.ModeLive,
		Rows:       rows,
	})
	if err != nil {
		return c.handleError(ctx, statusFor(err), err)
	}
	return ctx.JSON(http.StatusOK, summary)
}

// batchResponse is the batch summary shape for reporting reads.
type batchResponse struct {
	BatchID     string           `json:"batchId"`
	SourceLabel string           `json:"sourceLabel"`
	TotalRows   int              `json:"totalRows"`
	SuccessRows int              `json:"successRows"`
	ErrorRows   int              `json:"errorRows"`
	Status      string           `json:"status"`
	ErrorCounts map[string]int64 `json:"errorCounts,omitempty"`
}

// GetBatch returns one batch summary with per-category error counts.
func (c *Controller) GetBatch(ctx echo.Context) error {
	batch, err := c.DS.GetBatch(ctx.Param("id"))
	if err != nil {
		return c.handleError(ctx, statusFor(err), err)
	}
	counts, err := c.DS.ErrorCategoryCounts(batch.BatchID)
	if err != nil {
		return c.handleError(ctx, statusFor(err), err)
	}
	return ctx.JSON(http.StatusOK, batchResponse{
		BatchID:     batch.BatchID,
		SourceLabel: batch.SourceLabel,
		TotalRows:   batch.TotalRows,
		SuccessRows: batch.SuccessRows,
		ErrorRows:   batch.ErrorRows,
		Status:      batch.Status,
		ErrorCounts: counts,
	})
}

// GetBatchErrors returns the full per-row error detail for a batch.
func (c *Controller) GetBatchErrors(ctx echo.Context) error {
	// Verify the batch exists so unknown ids read as 404, not empty lists
	if _, err := c.DS.GetBatch(ctx.Param("id")); err != nil {
		return c.handleError(ctx, statusFor(err), err)
	}
	rows, err := c.DS.GetBatchErrors(ctx.Param("id"))
	if err != nil {
		return c.handleError(ctx, statusFor(err), err)
	}
	return ctx.JSON(http.StatusOK, rows)
}

// ResolveError marks one validation error as handled by an operator.
func (c *Controller) ResolveError(ctx echo.Context) error {
	id, err := parseID(ctx.Param("id"))
	if err != nil {
		return c.handleError(ctx, http.StatusBadRequest, err)
	}
	if err := c.DS.ResolveValidationError(id); err != nil {
		return c.handleError(ctx, statusFor(err), err)
	}
	return ctx.NoContent(http.StatusNoContent)
}

// DeleteError discards one validation error.
func (c *Controller) DeleteError(ctx echo.Context) error {
	id, err := parseID(ctx.Param("id"))
	if err != nil {
		return c.handleError(ctx, http.StatusBadRequest, err)
	}
	if err := c.DS.DeleteValidationError(id); err != nil {
		return c.handleError(ctx, statusFor(err), err)
	}
	return ctx.NoContent(http.StatusNoContent)
}

// ListRecords lists harvest records. The operational view excludes archived
// records; archived=true switches to the dedicated archive view and search=
// narrows by box code or parcel.
func (c *Controller) ListRecords(ctx echo.Context) error {
	limit := queryInt(ctx, "limit", 100)
	offset := queryInt(ctx, "offset", 0)

	var (
		records []datastore.HarvestRecord
		err     error
	)
	switch {
	case ctx.QueryParam("archived") == "true":
		records, err = c.DS.ListArchivedHarvests(limit, offset)
	case ctx.QueryParam("search") != "":
		records, err = c.DS.SearchHarvests(ctx.QueryParam("search"), limit, offset)
	default:
		records, err = c.DS.ListHarvests(false, limit, offset)
	}
	if err != nil {
		return c.handleError(ctx, statusFor(err), err)
	}
	return ctx.JSON(http.StatusOK, records)
}

// idSet is the request body of the bulk archive/restore operations.
type idSet struct {
	IDs []uint `json:"ids"`
}

// affectedResponse reports how many records an operator action touched.
type affectedResponse struct {
	Affected int64 `json:"affected"`
}

// ArchiveRecords soft-deletes the given record ids.
func (c *Controller) ArchiveRecords(ctx echo.Context) error {
	var body idSet
	if err := ctx.Bind(&body); err != nil {
		return c.handleError(ctx, http.StatusBadRequest, fmt.Errorf("malformed id set: %w", err))
	}
	affected, err := c.DS.ArchiveHarvests(body.IDs)
	if err != nil {
		return c.handleError(ctx, statusFor(err), err)
	}
	return ctx.JSON(http.StatusOK, affectedResponse{Affected: affected})
}

// RestoreRecords returns archived records to the operational views.
func (c *Controller) RestoreRecords(ctx echo.Context) error {
	var body idSet
	if err := ctx.Bind(&body); err != nil {
		return c.handleError(ctx, http.StatusBadRequest, fmt.Errorf("malformed id set: %w", err))
	}
	affected, err := c.DS.RestoreHarvests(body.IDs)
	if err != nil {
		return c.handleError(ctx, statusFor(err), err)
	}
	return ctx.JSON(http.StatusOK, affectedResponse{Affected: affected})
}

// HarvesterStats returns per-harvester weight totals, archived excluded.
func (c *Controller) HarvesterStats(ctx echo.Context) error {
	totals, err := c.DS.HarvesterTotals()
	if err != nil {
		return c.handleError(ctx, statusFor(err), err)
	}
	return ctx.JSON(http.StatusOK, totals)
}

// ParcelStats returns per-parcel weight totals, archived excluded.
func (c *Controller) ParcelStats(ctx echo.Context) error {
	totals, err := c.DS.ParcelTotals()
	if err != nil {
		return c.handleError(ctx, statusFor(err), err)
	}
	return ctx.JSON(http.StatusOK, totals)
}

func parseID(raw string) (uint, error) {
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid id %q", raw)
	}
	return uint(id), nil
}

func queryInt(ctx echo.Context, name string, fallback int) int {
	raw := ctx.QueryParam(name)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		return fallback
	}
	return value
}
