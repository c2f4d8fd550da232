package conf

import (
	"fmt"
	"strconv"
	"strings"
)

// ValidationError holds a list of settings validation failures.
type ValidationError struct {
	Errors []string
}

func (ve ValidationError) Error() string {
	return fmt.Sprintf("invalid configuration: %s", strings.Join(ve.Errors, "; "))
}

// ValidateSettings checks the loaded settings for consistency.
func ValidateSettings(settings *Settings) error {
	ve := ValidationError{}

	if err := validateOutputSettings(settings); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	if err := validateFieldAPISettings(&settings.FieldAPI); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	if err := validatePhotoSettings(&settings.Photos); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	if err := validateIngestSettings(&settings.Ingest); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	if err := validateWebServerSettings(&settings.WebServer); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	if len(ve.Errors) > 0 {
		return ve
	}
	return nil
}

func validateOutputSettings(settings *Settings) error {
	if settings.Output.SQLite.Enabled && settings.Output.MySQL.Enabled {
		return fmt.Errorf("only one database output can be enabled at a time")
	}
	if !settings.Output.SQLite.Enabled && !settings.Output.MySQL.Enabled {
		return fmt.Errorf("one database output must be enabled")
	}
	if settings.Output.SQLite.Enabled && settings.Output.SQLite.Path == "" {
		return fmt.Errorf("sqlite path must not be empty")
	}
	return nil
}

func validateFieldAPISettings(s *FieldAPISettings) error {
	if !s.Enabled {
		return nil
	}
	if s.BaseURL == "" {
		return fmt.Errorf("fieldapi.baseurl is required when fieldapi is enabled")
	}
	if s.PageSize <= 0 {
		return fmt.Errorf("fieldapi.pagesize must be positive")
	}
	return nil
}

func validatePhotoSettings(s *PhotoSettings) error {
	if !s.Enabled {
		return nil
	}
	if s.FanOut <= 0 {
		return fmt.Errorf("photos.fanout must be positive")
	}
	if s.Directory == "" {
		return fmt.Errorf("photos.directory must not be empty")
	}
	return nil
}

func validateIngestSettings(s *IngestSettings) error {
	if s.MaxWeightGrams <= 0 {
		return fmt.Errorf("ingest.maxweightgrams must be positive")
	}
	if s.SentinelParcel == "" {
		return fmt.Errorf("ingest.sentinelparcel must not be empty")
	}
	return nil
}

func validateWebServerSettings(s *WebServerSettings) error {
	if !s.Enabled {
		return nil
	}
	port, err := strconv.Atoi(s.Port)
	if err != nil || port < 1 || port > 65535 {
		return fmt.Errorf("webserver.port must be a valid port number")
	}
	return nil
}
