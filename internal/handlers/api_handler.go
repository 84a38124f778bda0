package handlers

import (
	"net/http"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/searchops/meilivault/internal/common"
)

// APIHandler serves health, version and status endpoints.
type APIHandler struct {
	config    *common.Config
	logger    arbor.ILogger
	startedAt time.Time
}

// NewAPIHandler creates an API handler.
func NewAPIHandler(config *common.Config, logger arbor.ILogger) *APIHandler {
	return &APIHandler{
		config:    config,
		logger:    logger,
		startedAt: time.Now(),
	}
}

// Health handles GET /api/health.
func (h *APIHandler) Health(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// Version handles GET /api/version.
func (h *APIHandler) Version(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{
		"version": common.GetVersion(),
		"build":   common.Build,
		"commit":  common.GitCommit,
	})
}

// Status handles GET /api/status.
func (h *APIHandler) Status(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status":      "running",
		"version":     common.GetVersion(),
		"environment": h.config.Environment,
		"uptime":      time.Since(h.startedAt).Round(time.Second).String(),
		"scheduler":   h.config.Scheduler.Enabled,
	})
}
