package auth

import (
	"net/http"
	"strings"
)

// Middleware is a chi-compatible HTTP middleware that enforces the API token.
//
// Public paths that bypass auth:
//   - GET /healthz
//   - GET /blocked (redirect target of installed rules)
//
// The token may also be passed as ?token= for EventSource clients that
// cannot set headers.
func (m *Manager) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if isPublicPath(r.URL.Path) || m.isAuthenticated(r) {
			next.ServeHTTP(w, r)
			return
		}
		writeError(w, http.StatusUnauthorized, "unauthorized")
	})
}

// AllowlistMiddleware rejects clients outside the allowlist with 403.
func AllowlistMiddleware(list *Allowlist) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !list.ContainsRemote(r.RemoteAddr) {
				writeError(w, http.StatusForbidden, "forbidden")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (m *Manager) isAuthenticated(r *http.Request) bool {
	if header := r.Header.Get("Authorization"); strings.HasPrefix(header, "Bearer ") {
		return m.ValidateToken(r.Context(), strings.TrimPrefix(header, "Bearer "))
	}
	if token := r.URL.Query().Get("token"); token != "" {
		return m.ValidateToken(r.Context(), token)
	}
	return false
}

func isPublicPath(path string) bool {
	return path == "/healthz" || path == "/blocked"
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(`{"success":false,"error":"` + message + `"}`))
}
