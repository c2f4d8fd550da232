// config.go: settings struct and functions to load and access the harvest-go configuration.
package conf

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/spf13/viper"
)

//go:embed config.yaml
var configFiles embed.FS

// LogConfig contains settings for file logging and rotation.
type LogConfig struct {
	Enabled    bool   // true to enable logging to file
	Path       string // path to log file
	MaxSize    int    // maximum log file size in megabytes before rotation
	MaxBackups int    // maximum number of rotated log files to keep
	MaxAge     int    // maximum age of rotated log files in days
}

// FieldAPISettings contains settings for the remote data-collection platform.
type FieldAPISettings struct {
	Enabled  bool          // true to enable live sync from the field API
	BaseURL  string        // base URL of the field data API
	APIToken string        // API token for authentication
	FormID   string        // identifier of the submission form to pull
	PageSize int           // number of submissions per page
	Timeout  time.Duration // per-request timeout
	TokenTTL time.Duration // how long a session token stays cached
}

// PhotoSettings contains settings for best-effort photo retrieval.
type PhotoSettings struct {
	Enabled   bool          // true to download submission photos
	Directory string        // directory for downloaded photos
	FanOut    int           // maximum concurrent downloads per batch
	CacheTTL  time.Duration // how long a downloaded box code is remembered
	Timeout   time.Duration // per-download timeout
}

// IngestSettings contains validation bounds for the ingestion pipeline.
type IngestSettings struct {
	MaxWeightGrams int    // operational weight ceiling in grams
	SentinelParcel string // parcel code assigned when historical geofencing fails
}

// WebServerSettings contains settings for the HTTP surface.
type WebServerSettings struct {
	Enabled bool   // true to enable the HTTP server
	Port    string // port to listen on
}

// Settings contains all runtime settings for the application.
type Settings struct {
	Debug bool // true to enable debug mode

	Main struct {
		Name string    // name of this node, can be used to identify the source of harvest records
		Log  LogConfig // logging settings
	}

	Output struct {
		SQLite struct {
			Enabled bool   // true to enable sqlite output
			Path    string // path to sqlite database
		}

		MySQL struct {
			Enabled  bool   // true to enable mysql output
			Username string // username for mysql database
			Password string // password for mysql database
			Database string // database name for mysql database
			Host     string // host for mysql database
			Port     string // port for mysql database
		}
	}

	FieldAPI  FieldAPISettings
	Photos    PhotoSettings
	Ingest    IngestSettings
	WebServer WebServerSettings
}

var (
	settingsInstance *Settings
	once             sync.Once
	settingsMutex    sync.RWMutex
)

// Load reads the configuration file and environment variables into a Settings struct.
func Load() (*Settings, error) {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()

	settings := &Settings{}

	if err := initViper(); err != nil {
		return nil, fmt.Errorf("error initializing viper: %w", err)
	}

	if err := viper.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("error unmarshaling config into struct: %w", err)
	}

	if err := ValidateSettings(settings); err != nil {
		return nil, fmt.Errorf("error validating settings: %w", err)
	}

	settingsInstance = settings
	return settingsInstance, nil
}

// initViper initializes viper with default values and reads the configuration file.
func initViper() error {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	configPaths, err := GetDefaultConfigPaths()
	if err != nil {
		return fmt.Errorf("error getting default config paths: %w", err)
	}

	for _, path := range configPaths {
		viper.AddConfigPath(path)
	}

	viper.SetEnvPrefix("HARVEST")
	viper.AutomaticEnv()

	// defined in defaults.go
	setDefaultConfig()

	if err := viper.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if errors.As(err, &configFileNotFoundError) {
			// Config file not found, create config with defaults
			return createDefaultConfig()
		}
		return fmt.Errorf("fatal error reading config file: %w", err)
	}

	return nil
}

// createDefaultConfig writes the embedded default configuration to the first
// config path and re-reads it through viper.
func createDefaultConfig() error {
	configPaths, err := GetDefaultConfigPaths()
	if err != nil {
		return fmt.Errorf("error getting default config paths: %w", err)
	}
	configPath := filepath.Join(configPaths[0], "config.yaml")

	defaultConfig, err := fs.ReadFile(configFiles, "config.yaml")
	if err != nil {
		return fmt.Errorf("error reading embedded default config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		return fmt.Errorf("error creating directories for config file: %w", err)
	}

	if err := os.WriteFile(configPath, defaultConfig, 0o644); err != nil {
		return fmt.Errorf("error writing default config file: %w", err)
	}

	log.Printf("Created default config file at: %s", configPath)
	return viper.ReadInConfig()
}

// GetDefaultConfigPaths returns the list of directories searched for config.yaml,
// in priority order: current directory, then the user config directory.
func GetDefaultConfigPaths() ([]string, error) {
	paths := []string{"."}
	configDir, err := os.UserConfigDir()
	if err == nil {
		paths = append(paths, filepath.Join(configDir, "harvest-go"))
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no config paths available")
	}
	return paths, nil
}

// Setting returns the global settings instance, loading it on first use.
func Setting() *Settings {
	once.Do(func() {
		if settingsInstance == nil {
			_, err := Load()
			if err != nil {
				log.Fatalf("Error loading settings: %v", err)
			}
		}
	})
	return GetSettings()
}

// GetSettings returns the current settings instance without loading.
func GetSettings() *Settings {
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()
	return settingsInstance
}

// SetSettings replaces the global settings instance.
func SetSettings(s *Settings) {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()
	settingsInstance = s
}
