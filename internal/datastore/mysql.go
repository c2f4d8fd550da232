package datastore

import (
	"fmt"

	"github.com/oliveyard/harvest-go/internal/conf"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

// MySQLStore implements DataStore for MySQL
type MySQLStore struct {
	DataStore
	Settings *conf.Settings
}

func validateMySQLConfig(settings *conf.Settings) error {
	c := settings.Output.MySQL
	if c.Host == "" || c.Port == "" || c.Database == "" || c.Username == "" {
		return fmt.Errorf("incomplete MySQL configuration")
	}
	return nil
}

// Open sets up the MySQL database connection and runs migrations.
func (store *MySQLStore) Open() error {
	if err := validateMySQLConfig(store.Settings); err != nil {
		return err
	}

	dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		store.Settings.Output.MySQL.Username, store.Settings.Output.MySQL.Password,
		store.Settings.Output.MySQL.Host, store.Settings.Output.MySQL.Port,
		store.Settings.Output.MySQL.Database)

	newLogger := createGormLogger()

	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{Logger: newLogger})
	if err != nil {
		return fmt.Errorf("failed to open MySQL database: %w", err)
	}

	if err := checkConnection(db); err != nil {
		return err
	}

	store.DB = db
	connectionInfo := fmt.Sprintf("%s@%s:%s/%s",
		store.Settings.Output.MySQL.Username,
		store.Settings.Output.MySQL.Host,
		store.Settings.Output.MySQL.Port,
		store.Settings.Output.MySQL.Database)
	return performAutoMigration(db, store.Settings.Debug, "MySQL", connectionInfo)
}

// Close closes the MySQL database connection.
func (store *MySQLStore) Close() error {
	return store.DataStore.Close()
}
