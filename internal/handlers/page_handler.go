package handlers

import (
	"html/template"
	"net/http"
	"os"
	"path/filepath"

	"github.com/ternarybob/arbor"

	"github.com/searchops/meilivault/internal/common"
)

// PageHandler renders the single-page console UI.
type PageHandler struct {
	logger      arbor.ILogger
	templates   *template.Template
	clientDebug bool
}

// NewPageHandler creates a page handler, parsing templates from the pages
// directory.
func NewPageHandler(logger arbor.ILogger, clientDebug bool) *PageHandler {
	pagesDir := findPagesDir()
	templates := template.Must(template.ParseGlob(filepath.Join(pagesDir, "*.html")))

	return &PageHandler{
		logger:      logger,
		templates:   templates,
		clientDebug: clientDebug,
	}
}

// findPagesDir locates the pages directory (in bin/ after build).
func findPagesDir() string {
	dirs := []string{
		"./pages",  // Running from project root
		"../pages", // Running from bin/
		".",        // Current directory (for deployed bin/)
	}

	for _, dir := range dirs {
		if _, err := os.Stat(dir); err == nil {
			abs, _ := filepath.Abs(dir)
			return abs
		}
	}
	return "."
}

// ServeIndex renders the console page.
func (h *PageHandler) ServeIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	data := map[string]interface{}{
		"Version":     common.GetVersion(),
		"ClientDebug": h.clientDebug,
	}
	if err := h.templates.ExecuteTemplate(w, "index.html", data); err != nil {
		h.logger.Error().Err(err).Msg("Failed to render page")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}

// StaticFileHandler serves static files (CSS, JS, images).
func (h *PageHandler) StaticFileHandler(w http.ResponseWriter, r *http.Request) {
	staticDir := filepath.Join(findPagesDir(), "static")

	path := r.URL.Path[len("/static/"):]
	fullPath := filepath.Join(staticDir, path)

	// Prevent directory traversal
	if !filepath.HasPrefix(fullPath, staticDir) {
		http.NotFound(w, r)
		return
	}

	http.ServeFile(w, r, fullPath)
}
