package handlers

import (
	"net/http"

	"github.com/ternarybob/arbor"

	"github.com/searchops/meilivault/internal/models"
	"github.com/searchops/meilivault/internal/services/backup"
)

// IndexHandler serves index listings for the backup tab.
type IndexHandler struct {
	backupService *backup.Service
	logger        arbor.ILogger
}

// NewIndexHandler creates an index handler.
func NewIndexHandler(backupService *backup.Service, logger arbor.ILogger) *IndexHandler {
	return &IndexHandler{backupService: backupService, logger: logger}
}

type listIndexesRequest struct {
	Connection models.Connection `json:"connection"`
}

// ListIndexes handles POST /api/indexes/list. The connection travels in the
// body rather than a query string so keys stay out of access logs.
func (h *IndexHandler) ListIndexes(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	var req listIndexesRequest
	if !DecodeAndValidate(w, r, &req) {
		return
	}
	if !req.Connection.HasMeilisearch() {
		WriteError(w, http.StatusBadRequest, "Meilisearch URL and API key are required")
		return
	}
	req.Connection.Normalize()

	summaries, err := h.backupService.ListIndexes(r.Context(), req.Connection)
	if err != nil {
		h.logger.Warn().Err(err).Msg("Failed to list indexes")
		WriteError(w, http.StatusBadGateway, err.Error())
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "success",
		"indexes": summaries,
	})
}
