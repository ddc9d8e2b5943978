package http

import (
	"net/http"
	"time"

	"github.com/go-chi/render"

	"github.com/briantruongvn/ngocson-tss-converter/internal/config"
)

// HealthHandler answers liveness and version probes.
type HealthHandler struct {
	startedAt time.Time
}

// NewHealthHandler creates a health handler.
func NewHealthHandler() *HealthHandler {
	return &HealthHandler{startedAt: time.Now()}
}

// HealthCheck handles GET /api/health.
func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, map[string]interface{}{
		"status":    "healthy",
		"uptime":    time.Since(h.startedAt).String(),
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

// Version handles GET /api/version.
func (h *HealthHandler) Version(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, map[string]string{
		"name":    config.AppName,
		"version": config.AppVersion,
	})
}
