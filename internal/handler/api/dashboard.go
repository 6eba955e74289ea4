package api

import (
	"errors"
	"time"

	"github.com/labstack/echo/v4"

	"Sentinel/internal/domain/models"
	"Sentinel/internal/domain/repository"
	"Sentinel/internal/usecase"
	"Sentinel/pkg/config"
	xhttp "Sentinel/pkg/http"
	applogger "Sentinel/pkg/logger"
	"Sentinel/pkg/util"
)

// HealthProvider exposes adapter circuit state. The source router
// satisfies it.
type HealthProvider interface {
	Health() []repository.SourceHealth
}

// DashboardHandler serves the monitoring API.
type DashboardHandler struct {
	runner  *usecase.Runner
	tracker *usecase.Tracker
	store   repository.RecordStore
	health  HealthProvider
	cfg     *config.Config
	logger  *applogger.Logger
	started time.Time
}

// NewDashboardHandler creates the API handler.
func NewDashboardHandler(
	runner *usecase.Runner,
	tracker *usecase.Tracker,
	store repository.RecordStore,
	health HealthProvider,
	cfg *config.Config,
	l *applogger.Logger,
) *DashboardHandler {
	return &DashboardHandler{
		runner:  runner,
		tracker: tracker,
		store:   store,
		health:  health,
		cfg:     cfg,
		logger:  l,
		started: time.Now(),
	}
}

// RegisterRoutes mounts the dashboard API.
func (h *DashboardHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.GET("/status", h.Status)
	g.GET("/records/latest", h.LatestRecord)
	g.GET("/records", h.RecordByDate)
	g.GET("/scorecard", h.Scorecard)
	g.GET("/health/sources", h.SourceHealth)
	g.POST("/run", h.TriggerRun)
}

// Status reports service identity and session state.
func (h *DashboardHandler) Status(c echo.Context) error {
	now := time.Now()
	return xhttp.SuccessResponse(c, map[string]interface{}{
		"service":          "sentinel",
		"environment":      h.cfg.Environment,
		"uptime":           now.Sub(h.started).Round(time.Second).String(),
		"watchlist":        len(h.cfg.Watchlist),
		"trading_day":      util.IsTradingDay(now),
		"session_progress": util.SessionProgress(now),
	})
}

// LatestRecord returns the newest record for a mode.
func (h *DashboardHandler) LatestRecord(c echo.Context) error {
	req := new(models.RecordRequest)
	if errs := xhttp.ReadAndValidateRequest(c, req); errs != nil {
		return xhttp.BadRequestResponse(c, errs)
	}

	rec, err := h.store.LatestRecord(c.Request().Context(), req.Mode)
	if errors.Is(err, repository.ErrNotFound) {
		return xhttp.NotFoundResponse(c, "no records for mode "+req.Mode)
	}
	if err != nil {
		h.logger.Error("latest record lookup failed", applogger.Error(err))
		return xhttp.InternalServerErrorResponse(c)
	}
	return xhttp.SuccessResponse(c, rec)
}

// RecordByDate returns one record by date and mode.
func (h *DashboardHandler) RecordByDate(c echo.Context) error {
	req := new(models.RecordRequest)
	if errs := xhttp.ReadAndValidateRequest(c, req); errs != nil {
		return xhttp.BadRequestResponse(c, errs)
	}
	if req.Date == "" {
		return xhttp.BadRequestResponse(c, "date is required")
	}

	rec, err := h.store.RecordByDate(c.Request().Context(), req.Date, req.Mode)
	if errors.Is(err, repository.ErrNotFound) {
		return xhttp.NotFoundResponse(c, "no record for "+req.Date+"/"+req.Mode)
	}
	if err != nil {
		h.logger.Error("record lookup failed", applogger.Error(err))
		return xhttp.InternalServerErrorResponse(c)
	}
	return xhttp.SuccessResponse(c, rec)
}

// Scorecard returns the rolling hit-rate window.
func (h *DashboardHandler) Scorecard(c echo.Context) error {
	req := new(models.ScorecardRequest)
	if errs := xhttp.ReadAndValidateRequest(c, req); errs != nil {
		return xhttp.BadRequestResponse(c, errs)
	}

	card, err := h.tracker.Scorecard(c.Request().Context(), req.Mode, req.Days)
	if err != nil {
		h.logger.Error("scorecard failed", applogger.Error(err))
		return xhttp.InternalServerErrorResponse(c)
	}
	return xhttp.SuccessResponse(c, card)
}

// SourceHealth reports per-adapter circuit state.
func (h *DashboardHandler) SourceHealth(c echo.Context) error {
	return xhttp.SuccessResponse(c, h.health.Health())
}

// TriggerRun starts a pipeline pass. The runner serializes concurrent
// triggers, so a double-click waits instead of double-fetching.
func (h *DashboardHandler) TriggerRun(c echo.Context) error {
	req := new(models.RunRequest)
	if errs := xhttp.ReadAndValidateRequest(c, req); errs != nil {
		return xhttp.BadRequestResponse(c, errs)
	}

	rec, err := h.runner.Run(c.Request().Context(), req.Mode, req.DryRun)
	if err != nil && rec == nil {
		h.logger.Error("triggered run failed", applogger.Error(err))
		return xhttp.InternalServerErrorResponse(c)
	}
	resp := map[string]interface{}{"record": rec}
	if err != nil {
		// persisted-write failures still carry a usable record
		resp["warning"] = err.Error()
	}
	return xhttp.SuccessResponse(c, resp)
}
