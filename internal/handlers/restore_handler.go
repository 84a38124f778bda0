package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/searchops/meilivault/internal/common"
	"github.com/searchops/meilivault/internal/interfaces"
	"github.com/searchops/meilivault/internal/models"
	"github.com/searchops/meilivault/internal/services/backup"
)

// restoreTimeout bounds a single restore run once the request has returned.
const restoreTimeout = 2 * time.Hour

// RestoreHandler accepts archive uploads and runs restores asynchronously.
type RestoreHandler struct {
	config        *common.Config
	backupService *backup.Service
	events        interfaces.EventService
	logger        arbor.ILogger
}

// NewRestoreHandler creates a restore handler.
func NewRestoreHandler(config *common.Config, backupService *backup.Service, events interfaces.EventService, logger arbor.ILogger) *RestoreHandler {
	return &RestoreHandler{
		config:        config,
		backupService: backupService,
		events:        events,
		logger:        logger,
	}
}

// Restore handles POST /api/restore. Multipart form fields: "archive" (the
// zip upload), "connection" (JSON) and optional "indexes" (JSON array). The
// restore runs in the background; progress streams over the websocket and the
// final report is available under /api/operations/{id}.
func (h *RestoreHandler) Restore(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	maxSize := h.config.Restore.MaxArchiveSize
	r.Body = http.MaxBytesReader(w, r.Body, maxSize)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		WriteError(w, http.StatusBadRequest, fmt.Sprintf("Invalid upload: %v", err))
		return
	}

	var conn models.Connection
	if err := json.Unmarshal([]byte(r.FormValue("connection")), &conn); err != nil {
		WriteError(w, http.StatusBadRequest, "Missing or invalid connection field")
		return
	}
	if err := validate.Struct(conn); err != nil {
		WriteError(w, http.StatusBadRequest, fmt.Sprintf("Validation failed: %v", err))
		return
	}
	if !conn.HasMeilisearch() {
		WriteError(w, http.StatusBadRequest, "Meilisearch URL and API key are required")
		return
	}
	conn.Normalize()

	var uids []string
	if raw := r.FormValue("indexes"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &uids); err != nil {
			WriteError(w, http.StatusBadRequest, "Invalid indexes field")
			return
		}
	}

	file, header, err := r.FormFile("archive")
	if err != nil {
		WriteError(w, http.StatusBadRequest, "Missing archive upload")
		return
	}
	defer file.Close()

	if !strings.HasSuffix(strings.ToLower(header.Filename), ".zip") {
		WriteError(w, http.StatusBadRequest, "Archive must be a .zip file")
		return
	}

	// The upload has to be fully buffered; zip needs random access.
	data, err := io.ReadAll(file)
	if err != nil {
		WriteError(w, http.StatusBadRequest, fmt.Sprintf("Failed to read upload: %v", err))
		return
	}

	report := models.NewOperationReport(common.NewOperationID(), models.OperationRestore)
	h.backupService.Operations().Register(report)

	go h.runRestore(conn, data, uids, report)

	WriteStarted(w, report.ID, "Restore started")
}

func (h *RestoreHandler) runRestore(conn models.Connection, data []byte, uids []string, report *models.OperationReport) {
	ctx, cancel := context.WithTimeout(context.Background(), restoreTimeout)
	defer cancel()

	err := h.backupService.Restore(ctx, conn, bytes.NewReader(data), int64(len(data)), uids, report)
	report.Finish(err)

	if err != nil {
		h.logger.Warn().Err(err).Str("operation_id", report.ID).Msg("Restore failed")
	} else {
		h.logger.Info().Str("operation_id", report.ID).Msg("Restore finished")
	}

	if h.events != nil {
		_ = h.events.Publish(context.Background(), interfaces.Event{
			Type: interfaces.EventOperationDone,
			Payload: interfaces.ProgressPayload{
				OperationID: report.ID,
				Message:     string(report.Snapshot().Status),
			},
		})
	}
}
