package datastore

import (
	"fmt"

	"github.com/oliveyard/harvest-go/internal/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// UpsertParcel inserts a parcel by code or, on conflict, refreshes its display
// name and updated-at timestamp. The polygon is never touched from this path;
// boundaries are only set through ImportParcelBoundary.
func (ds *DataStore) UpsertParcel(code, name string) (*Parcel, error) {
	if code == "" {
		return nil, errors.Newf("parcel code is empty").
			Component("datastore").
			Category(errors.CategoryValidation).
			Build()
	}

	parcel := Parcel{
		Code:   code,
		Name:   name,
		Active: true,
	}

	err := ds.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "code"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "updated_at"}),
	}).Create(&parcel).Error
	if err != nil {
		return nil, errors.New(fmt.Errorf("upserting parcel %q: %w", code, err)).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("parcel_code", code).
			Build()
	}

	return ds.GetParcel(code)
}

// GetParcel retrieves a parcel by code, including its boundary vertices.
func (ds *DataStore) GetParcel(code string) (*Parcel, error) {
	var parcel Parcel
	err := ds.DB.Preload("Vertices", func(db *gorm.DB) *gorm.DB {
		return db.Order("position ASC")
	}).Where("code = ?", code).First(&parcel).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New(err).
				Component("datastore").
				Category(errors.CategoryNotFound).
				Context("parcel_code", code).
				Build()
		}
		return nil, fmt.Errorf("getting parcel %q: %w", code, err)
	}
	return &parcel, nil
}

// GetActiveParcels returns all active parcels with their boundary vertices,
// ordered by catalog insertion order. The ingestion pipeline snapshots this
// set once per batch.
func (ds *DataStore) GetActiveParcels() ([]Parcel, error) {
	var parcels []Parcel
	err := ds.DB.Preload("Vertices", func(db *gorm.DB) *gorm.DB {
		return db.Order("position ASC")
	}).Where("active = ?", true).Order("id ASC").Find(&parcels).Error
	if err != nil {
		return nil, fmt.Errorf("listing active parcels: %w", err)
	}
	return parcels, nil
}

// ImportParcelBoundary replaces the boundary ring of the parcel identified by
// code. This is the only write path for parcel polygons.
func (ds *DataStore) ImportParcelBoundary(code string, ring []ParcelVertex) error {
	if len(ring) < 3 {
		return errors.Newf("boundary ring needs at least 3 vertices, got %d", len(ring)).
			Component("datastore").
			Category(errors.CategoryValidation).
			Context("parcel_code", code).
			Build()
	}

	return ds.DB.Transaction(func(tx *gorm.DB) error {
		var parcel Parcel
		if err := tx.Where("code = ?", code).First(&parcel).Error; err != nil {
			return fmt.Errorf("boundary import: parcel %q not found: %w", code, err)
		}

		if err := tx.Where("parcel_id = ?", parcel.ID).Delete(&ParcelVertex{}).Error; err != nil {
			return fmt.Errorf("boundary import: clearing old ring: %w", err)
		}

		for i := range ring {
			ring[i].ID = 0
			ring[i].ParcelID = parcel.ID
			ring[i].Position = i
		}
		if err := tx.Create(&ring).Error; err != nil {
			return fmt.Errorf("boundary import: saving ring: %w", err)
		}

		return tx.Model(&parcel).Update("updated_at", tx.NowFunc()).Error
	})
}

// defaultHarvesterName returns the default display name for reserved codes.
func defaultHarvesterName(code int) string {
	switch code {
	case HarvesterSecondCollection:
		return "second collection"
	case HarvesterSecondQuality:
		return "second quality"
	case HarvesterWaste:
		return "waste"
	default:
		return ""
	}
}

// UpsertHarvester inserts a harvester by numeric code or, on conflict,
// refreshes updated-at only. Display name changes are a separate
// administrative action and never happen on this path.
func (ds *DataStore) UpsertHarvester(code int, name string) (*Harvester, error) {
	if code < 1 || code > 99 {
		return nil, errors.Newf("harvester code %d out of range [1, 99]", code).
			Component("datastore").
			Category(errors.CategoryValidation).
			Build()
	}

	if name == "" {
		name = defaultHarvesterName(code)
	}

	harvester := Harvester{
		Code: code,
		Name: name,
	}

	err := ds.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "code"}},
		DoUpdates: clause.AssignmentColumns([]string{"updated_at"}),
	}).Create(&harvester).Error
	if err != nil {
		return nil, errors.New(fmt.Errorf("upserting harvester %d: %w", code, err)).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("harvester_code", code).
			Build()
	}

	return ds.GetHarvester(code)
}

// GetHarvester retrieves a harvester by numeric code.
func (ds *DataStore) GetHarvester(code int) (*Harvester, error) {
	var harvester Harvester
	if err := ds.DB.Where("code = ?", code).First(&harvester).Error; err != nil {
		return nil, fmt.Errorf("getting harvester %d: %w", code, err)
	}
	return &harvester, nil
}
