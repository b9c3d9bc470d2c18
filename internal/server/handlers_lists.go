package server

import (
	"encoding/json"
	"net/http"

	"focus-blocks/internal/models"
)

func (s *Server) handleGetBlockLists(w http.ResponseWriter, r *http.Request) {
	lists, err := s.coord.BlockLists(r.Context())
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "lists": lists})
}

func (s *Server) handlePutBlockLists(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Lists models.BlockLists `json:"lists"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeBadBody(w)
		return
	}
	saved, err := s.coord.UpdateBlockLists(r.Context(), payload.Lists)
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "lists": saved})
}

func (s *Server) handleGetSchedules(w http.ResponseWriter, r *http.Request) {
	views, err := s.coord.Schedules(r.Context())
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "schedules": views})
}

func (s *Server) handlePutSchedules(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Schedules []models.Schedule `json:"schedules"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeBadBody(w)
		return
	}
	if payload.Schedules == nil {
		payload.Schedules = []models.Schedule{}
	}
	saved, err := s.coord.UpdateSchedules(r.Context(), payload.Schedules)
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "schedules": saved})
}

func (s *Server) handleGetBypasses(w http.ResponseWriter, r *http.Request) {
	table, err := s.coord.Bypasses(r.Context())
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "bypasses": table})
}

func (s *Server) handleGrantBypass(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Target  string `json:"target"`
		Minutes int    `json:"minutes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeBadBody(w)
		return
	}
	domain, expiresAt, err := s.coord.GrantBypass(r.Context(), payload.Target, payload.Minutes)
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "domain": domain, "expiresAt": expiresAt})
}

func (s *Server) handleBypassLog(w http.ResponseWriter, r *http.Request) {
	entries, err := s.coord.BypassLog(r.Context())
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "entries": entries})
}
