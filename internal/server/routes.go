package server

import (
	"net/http"
)

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	// UI page (single-page console)
	mux.HandleFunc("/", s.app.PageHandler.ServeIndex)

	// Static files (CSS, JS, images)
	mux.HandleFunc("/static/", s.app.PageHandler.StaticFileHandler)

	// WebSocket route (operation progress streaming)
	mux.HandleFunc("/ws", s.app.WSHandler.HandleWebSocket)

	// API routes - Index discovery
	mux.HandleFunc("/api/indexes/list", s.app.IndexHandler.ListIndexes) // POST - connection in body

	// API routes - Backup and restore
	mux.HandleFunc("/api/backup", s.app.BackupHandler.Backup)    // POST - streams zip archive
	mux.HandleFunc("/api/restore", s.app.RestoreHandler.Restore) // POST - multipart archive upload

	// API routes - Operation reports
	mux.HandleFunc("/api/operations", s.app.OperationsHandler.List)
	mux.HandleFunc("/api/operations/", s.app.OperationsHandler.Get) // GET /{id} and /{id}/pdf

	// API routes - Document ingestion
	mux.HandleFunc("/api/ingest/text", s.app.IngestHandler.Text)
	mux.HandleFunc("/api/ingest/pdf", s.app.IngestHandler.PDF)
	mux.HandleFunc("/api/ingest/upload", s.app.IngestHandler.Upload)

	// API routes - Question answering
	mux.HandleFunc("/api/query", s.app.QueryHandler.Ask)

	// API routes - Connection profiles (redacted)
	mux.HandleFunc("/api/profiles", s.app.ProfileHandler.List)

	// API routes - System
	mux.HandleFunc("/api/health", s.app.APIHandler.Health)
	mux.HandleFunc("/api/version", s.app.APIHandler.Version)
	mux.HandleFunc("/api/status", s.app.APIHandler.Status)

	return mux
}
