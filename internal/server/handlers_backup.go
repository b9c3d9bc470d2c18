package server

import (
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"time"

	"focus-blocks/internal/backup"
)

const maxBackupBytes = 8 << 20

func (s *Server) handleExportBackup(w http.ResponseWriter, r *http.Request) {
	snapshot, err := s.backup.Export(r.Context())
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	stamp := time.Unix(snapshot.ExportedAt, 0).UTC().Format("20060102-150405")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s-%s.json"`, backup.FormatName, stamp))
	writeJSON(w, http.StatusOK, snapshot)
}

// handleImportBackup accepts the snapshot either as the JSON body or as the
// "file" field of a multipart upload.
func (s *Server) handleImportBackup(w http.ResponseWriter, r *http.Request) {
	body := http.MaxBytesReader(w, r.Body, maxBackupBytes)
	var source io.Reader = body
	if mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type")); mediaType == "multipart/form-data" {
		r.Body = body
		if err := r.ParseMultipartForm(maxBackupBytes); err != nil {
			s.writeFailure(w, fmt.Errorf("%w: invalid multipart payload", backup.ErrInvalidSnapshot))
			return
		}
		file, _, err := r.FormFile("file")
		if err != nil {
			s.writeFailure(w, fmt.Errorf("%w: backup file is required", backup.ErrInvalidSnapshot))
			return
		}
		defer file.Close()
		source = file
	}

	var snapshot backup.Snapshot
	if err := json.NewDecoder(source).Decode(&snapshot); err != nil {
		s.writeFailure(w, fmt.Errorf("%w: invalid JSON body", backup.ErrInvalidSnapshot))
		return
	}
	result, err := s.backup.Import(r.Context(), snapshot)
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "warnings": result.Warnings})
}
