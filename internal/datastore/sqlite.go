package datastore

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/oliveyard/harvest-go/internal/conf"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// SQLiteStore implements DataStore for SQLite
type SQLiteStore struct {
	DataStore
	Settings *conf.Settings
}

func validateSQLiteConfig(settings *conf.Settings) error {
	if settings.Output.SQLite.Path == "" {
		return fmt.Errorf("sqlite database path is empty")
	}
	return nil
}

// Open sets up the SQLite database connection and runs migrations.
func (store *SQLiteStore) Open() error {
	if err := validateSQLiteConfig(store.Settings); err != nil {
		return err
	}

	dbPath := store.Settings.Output.SQLite.Path
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	newLogger := createGormLogger()

	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{Logger: newLogger})
	if err != nil {
		return fmt.Errorf("failed to open SQLite database: %w", err)
	}

	// Foreign keys are off by default in SQLite
	if err := db.Exec("PRAGMA foreign_keys = ON").Error; err != nil {
		return fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	store.DB = db
	return performAutoMigration(db, store.Settings.Debug, "SQLite", dbPath)
}

// Close closes the SQLite database connection.
func (store *SQLiteStore) Close() error {
	return store.DataStore.Close()
}
