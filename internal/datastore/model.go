// model.go this code defines the data model for the application
package datastore

import "time"

// HarvestRecord represents one physical container of harvested product.
type HarvestRecord struct {
	ID          uint   `gorm:"primaryKey"`
	SourceID    string `gorm:"index:idx_harvests_source"` // id assigned by the origin system, empty for spreadsheet rows
	BoxCode     string `gorm:"index:idx_harvests_boxcode;uniqueIndex:idx_harvests_boxcode_collected,priority:1;not null"`
	HarvesterID int    `gorm:"index:idx_harvests_harvester"`
	ParcelCode  string `gorm:"index:idx_harvests_parcel"`
	ParcelName  string
	WeightGrams int
	PhotoURL    string
	PhotoPath   string
	Latitude    *float64
	Longitude   *float64
	CollectedAt time.Time `gorm:"index:idx_harvests_collected;uniqueIndex:idx_harvests_boxcode_collected,priority:2"`

	// Manual edit audit trail
	ManuallyEdited  bool
	OriginalBoxCode string

	// Soft delete, see archive.go
	Archived   bool `gorm:"index:idx_harvests_archived"`
	ArchivedAt *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Parcel represents a named land unit, optionally carrying a polygon boundary.
type Parcel struct {
	ID        uint   `gorm:"primaryKey"`
	Code      string `gorm:"uniqueIndex;not null"`
	Name      string
	Active    bool           `gorm:"index"`
	Vertices  []ParcelVertex `gorm:"foreignKey:ParcelID;constraint:OnDelete:CASCADE"` // ordered boundary ring, empty when no polygon is known
	CreatedAt time.Time
	UpdatedAt time.Time
}

// HasPolygon reports whether the parcel carries a usable boundary ring.
func (p *Parcel) HasPolygon() bool {
	return len(p.Vertices) >= 3
}

// ParcelVertex is one vertex of a parcel boundary ring, ordered by Position.
type ParcelVertex struct {
	ID        uint `gorm:"primaryKey"`
	ParcelID  uint `gorm:"index;not null"`
	Position  int  `gorm:"not null"`
	Longitude float64
	Latitude  float64
}

// Reserved harvester codes for non-human collection categories.
const (
	HarvesterSecondCollection = 97
	HarvesterSecondQuality    = 98
	HarvesterWaste            = 99
)

// Harvester represents a harvester identity with a numeric code in [1, 99].
type Harvester struct {
	ID        uint `gorm:"primaryKey"`
	Code      int  `gorm:"uniqueIndex;not null"`
	Name      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Upload batch statuses.
const (
	BatchProcessing = "processing"
	BatchCompleted  = "completed"
	BatchFailed     = "failed"
)

// UploadBatch is the ledger entry for one ingestion run.
type UploadBatch struct {
	ID          uint   `gorm:"primaryKey"`
	BatchID     string `gorm:"uniqueIndex;not null"`
	SourceLabel string
	UploadedBy  string
	TotalRows   int
	SuccessRows int
	ErrorRows   int
	Status      string `gorm:"type:varchar(20);index"`
	CreatedAt   time.Time
	CompletedAt *time.Time
}

// Validation error types.
const (
	ErrInvalidFormat       = "invalid_format"
	ErrInvalidParcel       = "invalid_parcel"
	ErrMissingData         = "missing_data"
	ErrOverWeight          = "over_weight"
	ErrDuplicateBox        = "duplicate_box"
	ErrPhotoDownloadFailed = "photo_download_failed"
	ErrOther               = "other"
)

// ValidationError records one rejected or flagged row of an upload batch.
// RawRow keeps a serialized snapshot of the source row so an operator can
// repair and re-submit it without reprocessing the whole file.
type ValidationError struct {
	ID         uint   `gorm:"primaryKey"`
	BatchID    string `gorm:"index;not null"`
	ErrorType  string `gorm:"type:varchar(30);index"`
	BoxCode    string
	ParcelCode string
	Message    string `gorm:"type:text"`
	RawRow     string `gorm:"type:text"`
	Warning    bool   // true for non-fatal flags that did not reject the row
	Resolved   bool   `gorm:"index"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
