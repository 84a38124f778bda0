package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/searchops/meilivault/internal/common"
	"github.com/searchops/meilivault/internal/models"
	"github.com/searchops/meilivault/internal/services/backup"
)

// BackupHandler streams backup archives to the browser.
type BackupHandler struct {
	backupService *backup.Service
	logger        arbor.ILogger
}

// NewBackupHandler creates a backup handler.
func NewBackupHandler(backupService *backup.Service, logger arbor.ILogger) *BackupHandler {
	return &BackupHandler{backupService: backupService, logger: logger}
}

type backupRequest struct {
	Connection models.Connection `json:"connection"`
	Indexes    []string          `json:"indexes"`
}

// Backup handles POST /api/backup. The archive streams directly as the
// response body; the operation ID rides along in a header so the UI can fetch
// the report afterwards.
func (h *BackupHandler) Backup(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	var req backupRequest
	if !DecodeAndValidate(w, r, &req) {
		return
	}
	if !req.Connection.HasMeilisearch() {
		WriteError(w, http.StatusBadRequest, "Meilisearch URL and API key are required")
		return
	}
	req.Connection.Normalize()

	report := models.NewOperationReport(common.NewOperationID(), models.OperationBackup)
	h.backupService.Operations().Register(report)

	filename := fmt.Sprintf("meilisearch_backup_%s.zip", time.Now().UTC().Format("20060102T150405Z"))
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("X-Operation-Id", report.ID)

	bw := &bodyWriter{ResponseWriter: w}
	err := h.backupService.Backup(r.Context(), req.Connection, req.Indexes, bw, report)
	report.Finish(err)
	if err != nil {
		h.logger.Warn().Err(err).Str("operation_id", report.ID).Msg("Backup failed")
		if !bw.wrote {
			// Nothing streamed yet, the zip headers can still be replaced.
			w.Header().Del("Content-Disposition")
			w.Header().Del("Content-Type")
			WriteError(w, http.StatusBadGateway, err.Error())
		}
	}
}

// bodyWriter tracks whether any response bytes went out so a failure before
// the first write can still produce a JSON error.
type bodyWriter struct {
	http.ResponseWriter
	wrote bool
}

func (b *bodyWriter) Write(p []byte) (int, error) {
	b.wrote = true
	return b.ResponseWriter.Write(p)
}
