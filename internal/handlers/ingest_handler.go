package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/ternarybob/arbor"

	"github.com/searchops/meilivault/internal/common"
	"github.com/searchops/meilivault/internal/models"
	"github.com/searchops/meilivault/internal/services/ingest"
)

// IngestHandler submits documents to the embedding API.
type IngestHandler struct {
	config        *common.Config
	ingestService *ingest.Service
	logger        arbor.ILogger
}

// NewIngestHandler creates an ingest handler.
func NewIngestHandler(config *common.Config, ingestService *ingest.Service, logger arbor.ILogger) *IngestHandler {
	return &IngestHandler{config: config, ingestService: ingestService, logger: logger}
}

// Text handles POST /api/ingest/text.
func (h *IngestHandler) Text(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	var req models.IngestTextRequest
	if !DecodeAndValidate(w, r, &req) {
		return
	}
	if !req.Connection.HasEmbedding() {
		WriteError(w, http.StatusBadRequest, "Embedding API URL is required")
		return
	}
	req.Connection.Normalize()

	result, err := h.ingestService.IngestText(r.Context(), req)
	if err != nil {
		WriteError(w, http.StatusBadGateway, err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{"status": "success", "result": result})
}

// PDF handles POST /api/ingest/pdf, ingesting a PDF by URL.
func (h *IngestHandler) PDF(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	var req models.IngestPDFRequest
	if !DecodeAndValidate(w, r, &req) {
		return
	}
	if !req.Connection.HasEmbedding() {
		WriteError(w, http.StatusBadRequest, "Embedding API URL is required")
		return
	}
	req.Connection.Normalize()

	result, err := h.ingestService.IngestPDF(r.Context(), req)
	if err != nil {
		WriteError(w, http.StatusBadGateway, err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{"status": "success", "result": result})
}

// Upload handles POST /api/ingest/upload. Multipart form fields: "file" (the
// PDF), "connection" (JSON) and "index".
func (h *IngestHandler) Upload(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.config.Ingest.MaxUploadSize)
	if err := r.ParseMultipartForm(8 << 20); err != nil {
		WriteError(w, http.StatusBadRequest, fmt.Sprintf("Invalid upload: %v", err))
		return
	}

	var conn models.Connection
	if err := json.Unmarshal([]byte(r.FormValue("connection")), &conn); err != nil {
		WriteError(w, http.StatusBadRequest, "Missing or invalid connection field")
		return
	}
	if !conn.HasEmbedding() {
		WriteError(w, http.StatusBadRequest, "Embedding API URL is required")
		return
	}
	conn.Normalize()

	index := r.FormValue("index")
	if index == "" {
		WriteError(w, http.StatusBadRequest, "Index is required")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		WriteError(w, http.StatusBadRequest, "Missing file upload")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		WriteError(w, http.StatusBadRequest, fmt.Sprintf("Failed to read upload: %v", err))
		return
	}

	result, err := h.ingestService.IngestUpload(r.Context(), conn, index, header.Filename, data)
	if err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{"status": "success", "result": result})
}
