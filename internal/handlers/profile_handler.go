package handlers

import (
	"net/http"

	"github.com/ternarybob/arbor"

	"github.com/searchops/meilivault/internal/services/profiles"
)

// ProfileHandler lists connection presets for the UI sidebar.
type ProfileHandler struct {
	profileService *profiles.Service
	logger         arbor.ILogger
}

// NewProfileHandler creates a profile handler.
func NewProfileHandler(profileService *profiles.Service, logger arbor.ILogger) *ProfileHandler {
	return &ProfileHandler{profileService: profileService, logger: logger}
}

// List handles GET /api/profiles. Keys are redacted; presets only pre-fill
// URLs, the user still enters key material by hand.
func (h *ProfileHandler) List(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	list, err := h.profileService.List()
	if err != nil {
		h.logger.Warn().Err(err).Msg("Failed to load profiles")
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status":   "success",
		"profiles": list,
	})
}
