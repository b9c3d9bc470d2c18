package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"focus-blocks/internal/broadcast"
)

// handleStream registers the connection as a broadcast page for its
// lifetime. The current status is sent first as a session-changed event.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // disable nginx buffering

	page := broadcast.NewStreamPage("sse-"+uuid.NewString(), 16)
	events := s.coord.Events()
	events.Register(page)
	defer events.Unregister(page.ID())

	ctx := r.Context()
	fmt.Fprintf(w, "retry: 5000\n\n")
	flusher.Flush()

	if status, err := s.coord.Status(ctx); err == nil {
		writeEvent(w, broadcast.Event{Name: broadcast.EventSessionChanged, Data: status, Time: time.Now()})
		flusher.Flush()
	}

	keepAlive := time.NewTicker(s.keepAlive)
	defer keepAlive.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-keepAlive.C:
			fmt.Fprintf(w, ": keep-alive\n\n")
			flusher.Flush()
		case event := <-page.Events():
			writeEvent(w, event)
			flusher.Flush()
		}
	}
}

func writeEvent(w http.ResponseWriter, event broadcast.Event) {
	bytes, err := json.Marshal(event)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\n", event.Name)
	fmt.Fprintf(w, "data: %s\n\n", bytes)
}

func (s *Server) handleListPages(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "pages": s.coord.Events().Pages()})
}

func (s *Server) handleRegisterPage(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		ID  string `json:"id"`
		URL string `json:"url"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeBadBody(w)
		return
	}
	id := strings.TrimSpace(payload.ID)
	if id == "" {
		id = "webhook-" + uuid.NewString()
	}
	page, err := broadcast.NewWebhookPage(id, strings.TrimSpace(payload.URL))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "error": err.Error()})
		return
	}
	s.coord.Events().Register(page)
	s.logger.Infof("server: registered webhook page %s -> %s", id, page.URL())
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "id": id})
}

func (s *Server) handleUnregisterPage(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !s.coord.Events().Unregister(id) {
		writeJSON(w, http.StatusNotFound, map[string]any{"success": false, "error": "page not found"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}
