package server

import "net/http"

func (s *Server) handleRegenerateToken(w http.ResponseWriter, r *http.Request) {
	if s.auth == nil {
		writeJSON(w, http.StatusNotFound, map[string]any{"success": false, "error": "authentication is disabled"})
		return
	}
	token, err := s.auth.RegenerateToken(r.Context())
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "token": token})
}
