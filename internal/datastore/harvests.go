package datastore

import (
	"fmt"
	"time"

	"github.com/oliveyard/harvest-go/internal/errors"
	"gorm.io/gorm"
)

// InsertHarvest stores a new harvest record with insert-only semantics: a
// non-archived record with the same box code, at any timestamp, is a
// CategoryConflict so callers can quarantine the row. The existence check and
// the insert run in one transaction so racing batches cannot both store the
// same code; the composite unique index on (box_code, collected_at) stays as
// the backstop for exact duplicates.
func (ds *DataStore) InsertHarvest(record *HarvestRecord) error {
	boxTaken := errors.Newf("box code %q already stored", record.BoxCode).
		Component("datastore").
		Category(errors.CategoryConflict).
		Context("box_code", record.BoxCode).
		Build()

	err := ds.DB.Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&HarvestRecord{}).
			Where("box_code = ? AND archived = ?", record.BoxCode, false).
			Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return boxTaken
		}
		return tx.Create(record).Error
	})
	switch {
	case err == nil:
		return nil
	case IsConflict(err):
		return err
	case isUniqueViolation(err):
		return errors.New(fmt.Errorf("harvest record %q at %s already exists: %w",
			record.BoxCode, record.CollectedAt.Format(time.RFC3339), err)).
			Component("datastore").
			Category(errors.CategoryConflict).
			Context("box_code", record.BoxCode).
			Build()
	default:
		return errors.New(fmt.Errorf("inserting harvest record: %w", err)).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("box_code", record.BoxCode).
			Build()
	}
}

// UpsertHarvestByBoxCode inserts the record or, when a record with the same
// box code already exists, updates it in place. This is the bulk spreadsheet
// semantics: repeated ingestion of the same export converges instead of
// duplicating. The live path must not use this; it pre-filters duplicates
// and only ever inserts.
func (ds *DataStore) UpsertHarvestByBoxCode(record *HarvestRecord) (bool, error) {
	created := false
	err := ds.DB.Transaction(func(tx *gorm.DB) error {
		var existing HarvestRecord
		err := tx.Where("box_code = ?", record.BoxCode).First(&existing).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			created = true
			return tx.Create(record).Error
		case err != nil:
			return err
		default:
			record.ID = existing.ID
			record.CreatedAt = existing.CreatedAt
			// Archive state survives re-ingestion of the same export
			record.Archived = existing.Archived
			record.ArchivedAt = existing.ArchivedAt
			return tx.Model(&existing).Select("*").Omit("id", "created_at").Updates(record).Error
		}
	})
	if err != nil {
		return false, errors.New(fmt.Errorf("upserting harvest by box code: %w", err)).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("box_code", record.BoxCode).
			Build()
	}
	return created, nil
}

// BoxCodeExists reports whether a non-archived record with the given box code
// is already stored. Used by the live-path duplicate check.
func (ds *DataStore) BoxCodeExists(boxCode string) (bool, error) {
	var count int64
	err := ds.DB.Model(&HarvestRecord{}).
		Where("box_code = ? AND archived = ?", boxCode, false).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("checking box code %q: %w", boxCode, err)
	}
	return count > 0, nil
}

// ExactDuplicateExists reports whether a record with the same box code and
// collection timestamp is already stored. Used by the historical path, where
// overlapping export windows make exact duplicates expected.
func (ds *DataStore) ExactDuplicateExists(boxCode string, collectedAt time.Time) (bool, error) {
	var count int64
	err := ds.DB.Model(&HarvestRecord{}).
		Where("box_code = ? AND collected_at = ? AND archived = ?", boxCode, collectedAt, false).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("checking exact duplicate for %q: %w", boxCode, err)
	}
	return count > 0, nil
}

// GetHarvest retrieves a harvest record by primary key.
func (ds *DataStore) GetHarvest(id uint) (*HarvestRecord, error) {
	var record HarvestRecord
	if err := ds.DB.First(&record, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New(err).
				Component("datastore").
				Category(errors.CategoryNotFound).
				Context("record_id", id).
				Build()
		}
		return nil, fmt.Errorf("getting harvest record %d: %w", id, err)
	}
	return &record, nil
}

// ListHarvests returns harvest records ordered by collection time, newest
// first. Archived records are excluded unless includeArchived is set.
func (ds *DataStore) ListHarvests(includeArchived bool, limit, offset int) ([]HarvestRecord, error) {
	query := ds.DB.Model(&HarvestRecord{})
	if !includeArchived {
		query = query.Where("archived = ?", false)
	}

	var records []HarvestRecord
	err := query.Order("collected_at DESC").Limit(limit).Offset(offset).Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("listing harvest records: %w", err)
	}
	return records, nil
}

// SearchHarvests returns non-archived records whose box code or parcel
// matches the query, newest first. Box and parcel codes match by prefix so
// operators can narrow by harvester id or parcel without typing full codes.
func (ds *DataStore) SearchHarvests(query string, limit, offset int) ([]HarvestRecord, error) {
	var records []HarvestRecord
	err := ds.DB.Model(&HarvestRecord{}).
		Where("archived = ?", false).
		Where("box_code LIKE ? OR parcel_code LIKE ? OR parcel_name LIKE ?",
			query+"%", query+"%", "%"+query+"%").
		Order("collected_at DESC").
		Limit(limit).Offset(offset).
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("searching harvest records for %q: %w", query, err)
	}
	return records, nil
}

// UpdateBoxCode changes a record's box code and preserves the pre-edit code
// in the audit columns.
func (ds *DataStore) UpdateBoxCode(id uint, newBoxCode string) error {
	return ds.DB.Transaction(func(tx *gorm.DB) error {
		var record HarvestRecord
		if err := tx.First(&record, id).Error; err != nil {
			return fmt.Errorf("editing box code: record %d not found: %w", id, err)
		}

		updates := map[string]any{
			"box_code":        newBoxCode,
			"manually_edited": true,
		}
		// Only the first edit captures the original code
		if !record.ManuallyEdited {
			updates["original_box_code"] = record.BoxCode
		}

		return tx.Model(&record).Updates(updates).Error
	})
}

// SetHarvestPhotoPath records where a record's photo was stored locally.
func (ds *DataStore) SetHarvestPhotoPath(id uint, path string) error {
	result := ds.DB.Model(&HarvestRecord{}).
		Where("id = ?", id).
		Update("photo_path", path)
	if result.Error != nil {
		return fmt.Errorf("setting photo path for record %d: %w", id, result.Error)
	}
	return nil
}

// WipeHarvests hard-deletes all harvest records. Only reachable through the
// explicit bulk-wipe CLI action.
func (ds *DataStore) WipeHarvests() error {
	if err := ds.DB.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&HarvestRecord{}).Error; err != nil {
		return fmt.Errorf("wiping harvest records: %w", err)
	}
	return nil
}

// HarvesterTotals aggregates stored box counts and weight per harvester,
// excluding archived records.
func (ds *DataStore) HarvesterTotals() ([]HarvesterTotal, error) {
	var totals []HarvesterTotal
	err := ds.DB.Model(&HarvestRecord{}).
		Select("harvester_id, COUNT(*) AS boxes, SUM(weight_grams) AS weight_grams").
		Where("archived = ?", false).
		Group("harvester_id").
		Order("harvester_id ASC").
		Scan(&totals).Error
	if err != nil {
		return nil, fmt.Errorf("aggregating harvester totals: %w", err)
	}
	return totals, nil
}

// ParcelTotals aggregates stored box counts and weight per parcel, excluding
// archived records.
func (ds *DataStore) ParcelTotals() ([]ParcelTotal, error) {
	var totals []ParcelTotal
	err := ds.DB.Model(&HarvestRecord{}).
		Select("parcel_code, COUNT(*) AS boxes, SUM(weight_grams) AS weight_grams").
		Where("archived = ?", false).
		Group("parcel_code").
		Order("parcel_code ASC").
		Scan(&totals).Error
	if err != nil {
		return nil, fmt.Errorf("aggregating parcel totals: %w", err)
	}
	return totals, nil
}
