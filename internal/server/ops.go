package server

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/fieldops/reportbot/internal/report"
	"github.com/fieldops/reportbot/internal/version"
)

// StatsSource summarizes report volume.
type StatsSource interface {
	GetStats(ctx context.Context) (report.Stats, error)
}

// SessionCounter reports the number of live conversation sessions.
type SessionCounter interface {
	Len() int
}

// OpsHandler serves liveness and the read-only stats endpoint.
type OpsHandler struct {
	stats    StatsSource
	sessions SessionCounter
	logger   *slog.Logger
}

// NewOpsHandler creates the ops handler.
func NewOpsHandler(log *slog.Logger, stats StatsSource, sessions SessionCounter) *OpsHandler {
	if log == nil {
		log = slog.Default()
	}
	return &OpsHandler{
		stats:    stats,
		sessions: sessions,
		logger:   log.With(slog.String("handler", "ops")),
	}
}

// Register mounts GET /health and GET /api/stats on the Echo instance.
func (h *OpsHandler) Register(e *echo.Echo) {
	e.GET("/health", h.Health)
	e.HEAD("/health", h.HealthHead)
	e.GET("/api/stats", h.Stats)
}

// Health returns 200 JSON {"status":"ok","version":...}.
func (h *OpsHandler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":  "ok",
		"version": version.GetInfo(),
	})
}

// HealthHead returns 200 No Content for health checks.
func (h *OpsHandler) HealthHead(c echo.Context) error {
	return c.NoContent(http.StatusOK)
}

type statsResponse struct {
	Reports  report.Stats `json:"reports"`
	Sessions int          `json:"sessions"`
}

// Stats returns report volume and live session counts.
func (h *OpsHandler) Stats(c echo.Context) error {
	stats, err := h.stats.GetStats(c.Request().Context())
	if err != nil {
		h.logger.Error("load stats", slog.Any("error", err))
		return echo.NewHTTPError(http.StatusInternalServerError, "stats unavailable")
	}
	return c.JSON(http.StatusOK, statsResponse{
		Reports:  stats,
		Sessions: h.sessions.Len(),
	})
}
