package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

const readyTimeout = 2 * time.Second

// Pinger checks that the database answers.
type Pinger interface {
	Ping(ctx context.Context) error
}

type healthResponse struct {
	Status    string `json:"status"`
	Database  string `json:"database,omitempty"`
	Timestamp string `json:"timestamp"`
}

// HealthHandler serves liveness and readiness probes.
type HealthHandler struct {
	db  Pinger
	now func() time.Time
}

// NewHealthHandler creates a new HealthHandler.
func NewHealthHandler(db Pinger) *HealthHandler {
	return &HealthHandler{db: db, now: time.Now}
}

func (h *HealthHandler) Routes() []Route {
	return []Route{
		{Method: http.MethodGet, Path: "/health", Access: AccessPublic, Handler: h.Health},
		{Method: http.MethodGet, Path: "/ready", Access: AccessPublic, Handler: h.Ready},
	}
}

// Health reports that the process is up.
func (h *HealthHandler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, healthResponse{Status: "ok", Timestamp: h.timestamp()})
}

// Ready reports whether the database is reachable.
func (h *HealthHandler) Ready(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), readyTimeout)
	defer cancel()

	if err := h.db.Ping(ctx); err != nil {
		slog.Warn("readiness check failed", "error", err)
		return c.JSON(http.StatusServiceUnavailable, healthResponse{
			Status:    "not ready",
			Database:  "disconnected",
			Timestamp: h.timestamp(),
		})
	}
	return c.JSON(http.StatusOK, healthResponse{
		Status:    "ready",
		Database:  "connected",
		Timestamp: h.timestamp(),
	})
}

func (h *HealthHandler) timestamp() string {
	return h.now().UTC().Format(time.RFC3339Nano)
}
