package server

import (
	"encoding/json"
	"net/http"

	"focus-blocks/internal/coordinator"
)

func (s *Server) handleMessage(w http.ResponseWriter, r *http.Request) {
	var msg coordinator.Message
	if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
		writeBadBody(w)
		return
	}
	s.dispatch(w, r, msg)
}

func (s *Server) handleStartSession(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		DurationMinutes int    `json:"durationMinutes"`
		BlockListName   string `json:"blockListName"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeBadBody(w)
		return
	}
	s.dispatch(w, r, coordinator.Message{
		Type:            coordinator.RequestStartSession,
		DurationMinutes: payload.DurationMinutes,
		BlockListName:   payload.BlockListName,
	})
}

func (s *Server) handleEndSession(w http.ResponseWriter, r *http.Request) {
	s.dispatch(w, r, coordinator.Message{Type: coordinator.RequestEndSession})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.dispatch(w, r, coordinator.Message{Type: coordinator.RequestGetStatus})
}

func (s *Server) handleRules(w http.ResponseWriter, r *http.Request) {
	s.dispatch(w, r, coordinator.Message{
		Type:      coordinator.RequestGetRules,
		Namespace: r.URL.Query().Get("namespace"),
	})
}

func (s *Server) handleAlarms(w http.ResponseWriter, r *http.Request) {
	s.dispatch(w, r, coordinator.Message{Type: coordinator.RequestGetAlarms})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	s.dispatch(w, r, coordinator.Message{Type: coordinator.RequestGetStats})
}

func (s *Server) dispatch(w http.ResponseWriter, r *http.Request, msg coordinator.Message) {
	resp, err := s.coord.Dispatch(r.Context(), msg)
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}
