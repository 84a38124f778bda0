package handlers

import (
	"net/http"

	"github.com/ternarybob/arbor"

	"github.com/searchops/meilivault/internal/models"
	"github.com/searchops/meilivault/internal/services/query"
)

// QueryHandler answers questions through the embedding API.
type QueryHandler struct {
	queryService *query.Service
	logger       arbor.ILogger
}

// NewQueryHandler creates a query handler.
func NewQueryHandler(queryService *query.Service, logger arbor.ILogger) *QueryHandler {
	return &QueryHandler{queryService: queryService, logger: logger}
}

// Ask handles POST /api/query.
func (h *QueryHandler) Ask(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	var req models.QueryRequest
	if !DecodeAndValidate(w, r, &req) {
		return
	}
	if !req.Connection.HasEmbedding() {
		WriteError(w, http.StatusBadRequest, "Embedding API URL is required")
		return
	}
	req.Connection.Normalize()

	result, err := h.queryService.Ask(r.Context(), req)
	if err != nil {
		WriteError(w, http.StatusBadGateway, err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{"status": "success", "result": result})
}
