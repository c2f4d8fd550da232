package datastore

import (
	"fmt"
	"time"
)

// ArchiveHarvests soft-deletes the given records by setting the archived flag
// and timestamp. Already-archived records are left untouched. Returns the
// number of records archived.
func (ds *DataStore) ArchiveHarvests(ids []uint) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	now := time.Now()
	result := ds.DB.Model(&HarvestRecord{}).
		Where("id IN ? AND archived = ?", ids, false).
		Updates(map[string]any{
			"archived":    true,
			"archived_at": &now,
		})
	if result.Error != nil {
		return 0, fmt.Errorf("archiving harvest records: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// RestoreHarvests clears the archived flag and timestamp on the given records,
// returning them to operational listings with all other fields unchanged.
func (ds *DataStore) RestoreHarvests(ids []uint) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	result := ds.DB.Model(&HarvestRecord{}).
		Where("id IN ? AND archived = ?", ids, true).
		Updates(map[string]any{
			"archived":    false,
			"archived_at": nil,
		})
	if result.Error != nil {
		return 0, fmt.Errorf("restoring harvest records: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// ListArchivedHarvests returns archived records only, newest archive first.
// This is the dedicated archive view; operational listings never include
// these rows.
func (ds *DataStore) ListArchivedHarvests(limit, offset int) ([]HarvestRecord, error) {
	var records []HarvestRecord
	err := ds.DB.Where("archived = ?", true).
		Order("archived_at DESC").
		Limit(limit).Offset(offset).
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("listing archived harvest records: %w", err)
	}
	return records, nil
}
