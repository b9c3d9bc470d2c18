package server

import (
	"encoding/json"
	"net/http"

	"focus-blocks/internal/models"
)

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	current, err := s.coord.Settings(r.Context())
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "settings": current})
}

func (s *Server) handleSaveSettings(w http.ResponseWriter, r *http.Request) {
	// The token hash is never accepted from clients.
	var payload models.Settings
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeBadBody(w)
		return
	}
	payload.APITokenHash = ""
	saved, err := s.coord.SaveSettings(r.Context(), payload)
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "settings": saved})
}
