package datastore

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/oliveyard/harvest-go/internal/logging"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// DefaultSlowQueryThreshold defines the duration after which a query is
// considered slow. Migration batch queries can take most of a second, so the
// threshold is kept high enough to avoid false positives during migrations.
const DefaultSlowQueryThreshold = 1 * time.Second

// slogGormWriter adapts the application slog logger to GORM's logger interface.
type slogGormWriter struct {
	logger *slog.Logger
}

func (w *slogGormWriter) Printf(format string, args ...any) {
	if w.logger == nil {
		return
	}
	w.logger.Warn(fmt.Sprintf(format, args...))
}

// createGormLogger configures and returns a new GORM logger instance.
func createGormLogger() gormlogger.Interface {
	return gormlogger.New(
		&slogGormWriter{logger: logging.ForService("datastore")},
		gormlogger.Config{
			SlowThreshold:             DefaultSlowQueryThreshold,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
		},
	)
}

// performAutoMigration runs GORM auto-migration for all model tables.
func performAutoMigration(db *gorm.DB, debug bool, dbType, connectionInfo string) error {
	if err := db.AutoMigrate(
		&Parcel{},
		&ParcelVertex{},
		&Harvester{},
		&HarvestRecord{},
		&UploadBatch{},
		&ValidationError{},
	); err != nil {
		return fmt.Errorf("failed to auto-migrate %s database: %w", dbType, err)
	}

	if debug {
		logging.Debug("Database initialized",
			"type", dbType,
			"connection", connectionInfo)
	}

	return nil
}

// checkConnection verifies the database connection is alive.
func checkConnection(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database handle: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	return nil
}
