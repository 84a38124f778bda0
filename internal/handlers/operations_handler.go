package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/searchops/meilivault/internal/services/backup"
	"github.com/searchops/meilivault/internal/services/report"
)

// OperationsHandler serves operation reports and their PDF exports.
type OperationsHandler struct {
	operations    *backup.OperationRegistry
	reportService *report.Service
	logger        arbor.ILogger
}

// NewOperationsHandler creates an operations handler.
func NewOperationsHandler(operations *backup.OperationRegistry, reportService *report.Service, logger arbor.ILogger) *OperationsHandler {
	return &OperationsHandler{
		operations:    operations,
		reportService: reportService,
		logger:        logger,
	}
}

// List handles GET /api/operations.
func (h *OperationsHandler) List(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status":     "success",
		"operations": h.operations.List(),
	})
}

// Get handles GET /api/operations/{id} and GET /api/operations/{id}/pdf.
func (h *OperationsHandler) Get(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/api/operations/")
	id := rest
	wantPDF := false
	if strings.HasSuffix(rest, "/pdf") {
		id = strings.TrimSuffix(rest, "/pdf")
		wantPDF = true
	}
	if id == "" || strings.Contains(id, "/") {
		WriteError(w, http.StatusBadRequest, "Invalid operation ID")
		return
	}

	opReport := h.operations.Get(id)
	if opReport == nil {
		WriteError(w, http.StatusNotFound, "Operation not found")
		return
	}

	if !wantPDF {
		WriteJSON(w, http.StatusOK, map[string]interface{}{
			"status":    "success",
			"operation": opReport.Snapshot(),
		})
		return
	}

	pdf, err := h.reportService.Render(opReport)
	if err != nil {
		h.logger.Error().Err(err).Str("operation_id", id).Msg("Failed to render report PDF")
		WriteError(w, http.StatusInternalServerError, "Failed to render PDF")
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", id+".pdf"))
	w.Write(pdf)
}
