package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"focus-blocks/internal/coordinator"
	"focus-blocks/internal/models"
)

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(data)
}

// writeFailure reports a failed request. Malformed input is a 400; every
// other failure is a soft {success:false} with 200 so message clients can
// treat all responses alike.
func (s *Server) writeFailure(w http.ResponseWriter, err error) {
	status := http.StatusOK
	if errors.Is(err, models.ErrValidation) || errors.Is(err, coordinator.ErrUnknownRequest) {
		status = http.StatusBadRequest
	} else {
		s.logger.Errorf("server: request failed: %v", err)
	}
	writeJSON(w, status, map[string]any{"success": false, "error": err.Error()})
}

func writeBadBody(w http.ResponseWriter) {
	writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "error": "invalid JSON body"})
}
