package server

import (
	"net/http"

	"focus-blocks/internal/domains"
)

const blockedPageTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>Blocked - focus-blocks</title>
<style>
body { font-family: system-ui, sans-serif; background: #111; color: #eee; display: flex; align-items: center; justify-content: center; height: 100vh; margin: 0; }
main { max-width: 32rem; text-align: center; }
code { color: #f5a623; }
</style>
</head>
<body>
<main>
<h1>Stay focused</h1>
{{if .Domain}}<p><code>{{.Domain}}</code> is blocked right now.</p>{{else}}<p>This site is blocked right now.</p>{{end}}
{{if .Pattern}}<p>Matched rule <code>{{.Pattern}}</code>.</p>{{end}}
{{if .TodayMinutes}}<p>You have focused for {{.TodayMinutes}} minutes today.</p>{{end}}
{{if .Domain}}<p>Need it anyway? Run <code>focusblocks bypass {{.Domain}}</code> for a short break.</p>{{end}}
</main>
</body>
</html>
`

type blockedPage struct {
	Pattern      string
	Domain       string
	TodayMinutes int
}

// handleBlocked renders the redirect target of installed rules.
func (s *Server) handleBlocked(w http.ResponseWriter, r *http.Request) {
	pattern := r.URL.Query().Get("from")
	data := blockedPage{
		Pattern: pattern,
		Domain:  domains.Extract(pattern),
	}
	if settings, err := s.coord.Settings(r.Context()); err == nil && settings.ShowStats {
		if snap, err := s.coord.Stats(r.Context()); err == nil {
			data.TodayMinutes = snap.TodayMinutes
		} else {
			s.logger.Warnf("blocked page: load stats: %v", err)
		}
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.templates.ExecuteTemplate(w, "blocked", data); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
