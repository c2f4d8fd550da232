package api

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/oliveyard/harvest-go/internal/conf"
)

// settingsView is the externally readable and editable settings subset.
// Credentials and database outputs stay configuration-file only.
type settingsView struct {
	Debug  bool       `json:"debug"`
	Ingest ingestView `json:"ingest"`
	Photos photosView `json:"photos"`
}

type ingestView struct {
	MaxWeightGrams int    `json:"maxWeightGrams"`
	SentinelParcel string `json:"sentinelParcel"`
}

type photosView struct {
	Enabled   bool   `json:"enabled"`
	Directory string `json:"directory"`
	FanOut    int    `json:"fanOut"`
}

// settingsUpdate uses pointers so absent sections stay untouched.
type settingsUpdate struct {
	Debug  *bool       `json:"debug"`
	Ingest *ingestView `json:"ingest"`
	Photos *photosView `json:"photos"`
}

func (c *Controller) settingsView() settingsView {
	return settingsView{
		Debug: c.Settings.Debug,
		Ingest: ingestView{
			MaxWeightGrams: c.Settings.Ingest.MaxWeightGrams,
			SentinelParcel: c.Settings.Ingest.SentinelParcel,
		},
		Photos: photosView{
			Enabled:   c.Settings.Photos.Enabled,
			Directory: c.Settings.Photos.Directory,
			FanOut:    c.Settings.Photos.FanOut,
		},
	}
}

// GetAppSettings returns the editable settings subset.
func (c *Controller) GetAppSettings(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, c.settingsView())
}

// UpdateAppSettings applies a settings update to the running process and
// persists it to the configuration file. Updated sections are validated
// against a copy first so a rejected update leaves the runtime untouched.
func (c *Controller) UpdateAppSettings(ctx echo.Context) error {
	var update settingsUpdate
	if err := ctx.Bind(&update); err != nil {
		return c.handleError(ctx, http.StatusBadRequest, fmt.Errorf("malformed settings update: %w", err))
	}

	next := *c.Settings
	if update.Debug != nil {
		next.Debug = *update.Debug
	}
	if update.Ingest != nil {
		next.Ingest.MaxWeightGrams = update.Ingest.MaxWeightGrams
		next.Ingest.SentinelParcel = update.Ingest.SentinelParcel
	}
	if update.Photos != nil {
		next.Photos.Enabled = update.Photos.Enabled
		next.Photos.Directory = update.Photos.Directory
		next.Photos.FanOut = update.Photos.FanOut
	}
	if err := conf.ValidateSettings(&next); err != nil {
		return c.handleError(ctx, http.StatusBadRequest, err)
	}

	*c.Settings = next
	conf.SetSettings(c.Settings)
	if err := conf.SaveSettings(); err != nil {
		return c.handleError(ctx, http.StatusInternalServerError, err)
	}
	return ctx.JSON(http.StatusOK, c.settingsView())
}
