// Package api exposes the ingestion pipeline and the batch/error ledger over
// HTTP for bulk submitters and the reporting layer. No rendering, no auth.
package api

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/oliveyard/harvest-go/internal/conf"
	"github.com/oliveyard/harvest-go/internal/datastore"
	"github.com/oliveyard/harvest-go/internal/ingest"
	"github.com/oliveyard/harvest-go/internal/logging"
)

// Controller manages the API routes and handlers.
type Controller struct {
	Echo     *echo.Echo
	Group    *echo.Group
	DS       datastore.Interface
	Pipeline *ingest.Pipeline
	Settings *conf.Settings

	apiLogger *slog.Logger
}

// New creates the API controller and registers all routes.
func New(ds datastore.Interface, pipeline *ingest.Pipeline, settings *conf.Settings) *Controller {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())

	c := &Controller{
		Echo:      e,
		DS:        ds,
		Pipeline:  pipeline,
		Settings:  settings,
		apiLogger: logging.ForService("api"),
	}

	c.Group = e.Group("/api/v1")
	c.initRoutes()
	return c
}

func (c *Controller) initRoutes() {
	c.Group.POST("/ingest/bulk", c.IngestBulk)

	c.Group.GET("/batches/:id", c.GetBatch)
	c.Group.GET("/batches/:id/errors", c.GetBatchErrors)

	c.Group.POST("/errors/:id/resolve", c.ResolveError)
	c.Group.DELETE("/errors/:id", c.DeleteError)

	c.Group.GET("/records", c.ListRecords)
	c.Group.POST("/records/archive", c.ArchiveRecords)
	c.Group.POST("/records/restore", c.RestoreRecords)

	c.Group.GET("/stats/harvesters", c.HarvesterStats)
	c.Group.GET("/stats/parcels", c.ParcelStats)

	c.Group.GET("/settings", c.GetAppSettings)
	c.Group.PUT("/settings", c.UpdateAppSettings)
}

// Start runs the HTTP server on the configured port.
func (c *Controller) Start() error {
	addr := ":" + c.Settings.WebServer.Port
	if c.apiLogger != nil {
		c.apiLogger.Info("starting HTTP server", "addr", addr)
	}
	return c.Echo.Start(addr)
}

// errorResponse is the uniform error payload.
type errorResponse struct {
	Error string `json:"error"`
}

func (c *Controller) handleError(ctx echo.Context, status int, err error) error {
	if c.apiLogger != nil {
		c.apiLogger.Error("request failed",
			"path", ctx.Path(),
			"status", status,
			"error", err)
	}
	return ctx.JSON(status, errorResponse{Error: err.Error()})
}

func statusFor(err error) int {
	if datastore.IsNotFound(err) {
		return http.StatusNotFound
	}
	if datastore.IsConflict(err) {
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}
