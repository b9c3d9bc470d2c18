package server

import (
	"fmt"
	"html/template"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"focus-blocks/internal/auth"
	"focus-blocks/internal/backup"
	"focus-blocks/internal/coordinator"
	"focus-blocks/internal/diaglog"
	"focus-blocks/internal/rules"
	"focus-blocks/internal/version"
)

// Options configure a Server. Auth and Allowlist are optional; without them
// the API is open to every client that can reach the listener.
type Options struct {
	Coordinator *coordinator.Coordinator
	Auth        *auth.Manager
	Allowlist   *auth.Allowlist
	Logger      diaglog.Logger
	BlockedPath string

	// KeepAlive is the SSE comment interval. Zero uses 15s.
	KeepAlive time.Duration
}

// Server exposes the coordinator over HTTP.
type Server struct {
	coord       *coordinator.Coordinator
	auth        *auth.Manager
	allowlist   *auth.Allowlist
	logger      diaglog.Logger
	blockedPath string
	keepAlive   time.Duration
	templates   *template.Template
	backup      *backup.Manager
}

// New creates an HTTP server.
func New(opts Options) (*Server, error) {
	if opts.Coordinator == nil {
		return nil, fmt.Errorf("coordinator is required")
	}
	tmpl, err := template.New("blocked").Parse(blockedPageTemplate)
	if err != nil {
		return nil, err
	}
	blockedPath := strings.TrimSpace(opts.BlockedPath)
	if blockedPath == "" {
		blockedPath = rules.DefaultBlockedPath
	}
	keepAlive := opts.KeepAlive
	if keepAlive <= 0 {
		keepAlive = 15 * time.Second
	}
	backupManager, err := backup.NewManager(opts.Coordinator)
	if err != nil {
		return nil, err
	}
	return &Server{
		coord:       opts.Coordinator,
		auth:        opts.Auth,
		allowlist:   opts.Allowlist,
		logger:      diaglog.OrDiscard(opts.Logger),
		blockedPath: blockedPath,
		keepAlive:   keepAlive,
		templates:   tmpl,
		backup:      backupManager,
	}, nil
}

// Router constructs the http.Handler with all routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Get(s.blockedPath, s.handleBlocked)

	r.Route("/api", func(api chi.Router) {
		if s.allowlist != nil {
			api.Use(auth.AllowlistMiddleware(s.allowlist))
		}
		if s.auth != nil {
			api.Use(s.auth.Middleware)
		}

		api.Post("/messages", s.handleMessage)

		api.Post("/session/start", s.handleStartSession)
		api.Post("/session/end", s.handleEndSession)
		api.Get("/status", s.handleStatus)

		api.Get("/blocklists", s.handleGetBlockLists)
		api.Put("/blocklists", s.handlePutBlockLists)
		api.Get("/schedules", s.handleGetSchedules)
		api.Put("/schedules", s.handlePutSchedules)

		api.Get("/bypass", s.handleGetBypasses)
		api.Post("/bypass", s.handleGrantBypass)
		api.Get("/bypass/log", s.handleBypassLog)

		api.Get("/rules", s.handleRules)
		api.Get("/alarms", s.handleAlarms)
		api.Get("/stats", s.handleStats)

		api.Get("/backup", s.handleExportBackup)
		api.Post("/backup", s.handleImportBackup)

		api.Get("/settings", s.handleGetSettings)
		api.Put("/settings", s.handleSaveSettings)
		api.Post("/auth/token", s.handleRegenerateToken)

		api.Get("/events", s.handleStream)
		api.Get("/pages", s.handleListPages)
		api.Post("/pages", s.handleRegisterPage)
		api.Delete("/pages/{id}", s.handleUnregisterPage)
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "version": version.Current()})
}
