package datastore

import (
	"fmt"
	"time"

	"github.com/oliveyard/harvest-go/internal/errors"
	"gorm.io/gorm"
)

// CreateBatch stores a new upload batch ledger row in processing state.
func (ds *DataStore) CreateBatch(batch *UploadBatch) error {
	if batch.BatchID == "" {
		return errors.Newf("batch id is empty").
			Component("datastore").
			Category(errors.CategoryValidation).
			Build()
	}
	if batch.Status == "" {
		batch.Status = BatchProcessing
	}
	if err := ds.DB.Create(batch).Error; err != nil {
		return errors.New(fmt.Errorf("creating upload batch: %w", err)).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("batch_id", batch.BatchID).
			Build()
	}
	return nil
}

// GetBatch retrieves an upload batch by its batch id.
func (ds *DataStore) GetBatch(batchID string) (*UploadBatch, error) {
	var batch UploadBatch
	if err := ds.DB.Where("batch_id = ?", batchID).First(&batch).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New(err).
				Component("datastore").
				Category(errors.CategoryNotFound).
				Context("batch_id", batchID).
				Build()
		}
		return nil, fmt.Errorf("getting batch %q: %w", batchID, err)
	}
	return &batch, nil
}

// AddBatchResult increments the success or error counter of a processing
// batch. Counters are incremented atomically in the database so they hold
// success + error <= total at all times.
func (ds *DataStore) AddBatchResult(batchID string, success bool) error {
	column := "error_rows"
	if success {
		column = "success_rows"
	}
	result := ds.DB.Model(&UploadBatch{}).
		Where("batch_id = ? AND status = ?", batchID, BatchProcessing).
		Update(column, gorm.Expr(column+" + 1"))
	if result.Error != nil {
		return fmt.Errorf("updating batch %q counters: %w", batchID, result.Error)
	}
	if result.RowsAffected == 0 {
		return errors.Newf("batch %q is not in processing state", batchID).
			Component("datastore").
			Category(errors.CategoryIngest).
			Build()
	}
	return nil
}

// CompleteBatch finalizes a batch: status becomes failed only when every row
// failed, completed otherwise, and the completion timestamp is set.
func (ds *DataStore) CompleteBatch(batchID string) (*UploadBatch, error) {
	batch, err := ds.GetBatch(batchID)
	if err != nil {
		return nil, err
	}

	status := BatchCompleted
	if batch.TotalRows > 0 && batch.ErrorRows == batch.TotalRows {
		status = BatchFailed
	}

	now := time.Now()
	err = ds.DB.Model(&UploadBatch{}).
		Where("batch_id = ?", batchID).
		Updates(map[string]any{
			"status":       status,
			"completed_at": &now,
		}).Error
	if err != nil {
		return nil, fmt.Errorf("completing batch %q: %w", batchID, err)
	}

	return ds.GetBatch(batchID)
}

// SaveValidationError stores one rejected or flagged row for a batch.
func (ds *DataStore) SaveValidationError(ve *ValidationError) error {
	if err := ds.DB.Create(ve).Error; err != nil {
		return errors.New(fmt.Errorf("saving validation error: %w", err)).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("batch_id", ve.BatchID).
			Context("error_type", ve.ErrorType).
			Build()
	}
	return nil
}

// GetBatchErrors returns all error rows recorded for a batch, oldest first.
func (ds *DataStore) GetBatchErrors(batchID string) ([]ValidationError, error) {
	var validationErrors []ValidationError
	err := ds.DB.Where("batch_id = ?", batchID).
		Order("id ASC").
		Find(&validationErrors).Error
	if err != nil {
		return nil, fmt.Errorf("listing errors for batch %q: %w", batchID, err)
	}
	return validationErrors, nil
}

// ErrorCategoryCounts returns the number of error rows per error type for a
// batch. Warnings are counted under their own type as well.
func (ds *DataStore) ErrorCategoryCounts(batchID string) (map[string]int64, error) {
	type row struct {
		ErrorType string
		Count     int64
	}
	var rows []row
	err := ds.DB.Model(&ValidationError{}).
		Select("error_type, COUNT(*) AS count").
		Where("batch_id = ?", batchID).
		Group("error_type").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("counting error categories for batch %q: %w", batchID, err)
	}

	counts := make(map[string]int64, len(rows))
	for _, r := range rows {
		counts[r.ErrorType] = r.Count
	}
	return counts, nil
}

// ResolveValidationError marks an error row as resolved by an operator.
func (ds *DataStore) ResolveValidationError(id uint) error {
	result := ds.DB.Model(&ValidationError{}).
		Where("id = ?", id).
		Update("resolved", true)
	if result.Error != nil {
		return fmt.Errorf("resolving validation error %d: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return errors.Newf("validation error %d not found", id).
			Component("datastore").
			Category(errors.CategoryNotFound).
			Build()
	}
	return nil
}

// DeleteValidationError discards an error row an operator has judged
// unrecoverable.
func (ds *DataStore) DeleteValidationError(id uint) error {
	result := ds.DB.Delete(&ValidationError{}, id)
	if result.Error != nil {
		return fmt.Errorf("deleting validation error %d: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return errors.Newf("validation error %d not found", id).
			Component("datastore").
			Category(errors.CategoryNotFound).
			Build()
	}
	return nil
}
