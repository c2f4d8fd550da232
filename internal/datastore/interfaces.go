// interfaces.go: this code defines the interface for the database operations
package datastore

import (
	"time"

	"github.com/oliveyard/harvest-go/internal/conf"
	"gorm.io/gorm"
)

// Interface abstracts the underlying database implementation and defines the
// operations the ingestion pipeline and the reporting layer depend on.
type Interface interface {
	Open() error
	Close() error

	// Parcel catalog
	UpsertParcel(code, name string) (*Parcel, error)
	GetParcel(code string) (*Parcel, error)
	GetActiveParcels() ([]Parcel, error)
	ImportParcelBoundary(code string, ring []ParcelVertex) error

	// Harvester catalog
	UpsertHarvester(code int, name string) (*Harvester, error)
	GetHarvester(code int) (*Harvester, error)

	// Harvest records
	InsertHarvest(record *HarvestRecord) error
	UpsertHarvestByBoxCode(record *HarvestRecord) (created bool, err error)
	BoxCodeExists(boxCode string) (bool, error)
	ExactDuplicateExists(boxCode string, collectedAt time.Time) (bool, error)
	GetHarvest(id uint) (*HarvestRecord, error)
	ListHarvests(includeArchived bool, limit, offset int) ([]HarvestRecord, error)
	SearchHarvests(query string, limit, offset int) ([]HarvestRecord, error)
	ListArchivedHarvests(limit, offset int) ([]HarvestRecord, error)
	UpdateBoxCode(id uint, newBoxCode string) error
	SetHarvestPhotoPath(id uint, path string) error
	WipeHarvests() error

	// Archive lifecycle
	ArchiveHarvests(ids []uint) (int64, error)
	RestoreHarvests(ids []uint) (int64, error)

	// Batch ledger
	CreateBatch(batch *UploadBatch) error
	GetBatch(batchID string) (*UploadBatch, error)
	AddBatchResult(batchID string, success bool) error
	CompleteBatch(batchID string) (*UploadBatch, error)

	// Validation errors
	SaveValidationError(ve *ValidationError) error
	GetBatchErrors(batchID string) ([]ValidationError, error)
	ErrorCategoryCounts(batchID string) (map[string]int64, error)
	ResolveValidationError(id uint) error
	DeleteValidationError(id uint) error

	// Reporting
	HarvesterTotals() ([]HarvesterTotal, error)
	ParcelTotals() ([]ParcelTotal, error)
}

// HarvesterTotal is an aggregate of stored weight per harvester.
type HarvesterTotal struct {
	HarvesterID int
	Boxes       int64
	WeightGrams int64
}

// ParcelTotal is an aggregate of stored weight per parcel.
type ParcelTotal struct {
	ParcelCode  string
	Boxes       int64
	WeightGrams int64
}

// DataStore implements Interface using a GORM database.
type DataStore struct {
	DB *gorm.DB // GORM database instance
}

// New creates a new datastore instance based on the provided configuration.
func New(settings *conf.Settings) Interface {
	switch {
	case settings.Output.SQLite.Enabled:
		return &SQLiteStore{
			Settings: settings,
		}
	case settings.Output.MySQL.Enabled:
		return &MySQLStore{
			Settings: settings,
		}
	default:
		return nil
	}
}

// Close closes the underlying database connection.
func (ds *DataStore) Close() error {
	if ds.DB == nil {
		return nil
	}
	sqlDB, err := ds.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
