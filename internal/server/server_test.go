package server

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"focus-blocks/internal/alarm"
	"focus-blocks/internal/auth"
	"focus-blocks/internal/broadcast"
	"focus-blocks/internal/coordinator"
	"focus-blocks/internal/database"
	"focus-blocks/internal/rules"
	"focus-blocks/internal/settings"
	"focus-blocks/internal/store"
)

type testEnv struct {
	server   *Server
	router   http.Handler
	host     *rules.MemoryHost
	clock    *alarm.ManualClock
	settings *settings.Manager
}

func newTestEnv(t *testing.T, configure func(*Options, *settings.Manager)) *testEnv {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	st := store.New(db)
	sm := settings.NewManager(st)
	host := rules.NewMemoryHost()
	clock := alarm.NewManualClock(time.Date(2024, 3, 4, 8, 0, 0, 0, time.UTC))
	coord, err := coordinator.New(coordinator.Options{
		Store:       st,
		Host:        host,
		Clock:       clock,
		Events:      broadcast.New(0, time.Millisecond, nil),
		Settings:    sm,
		BlockedPath: "/blocked",
		Location:    time.UTC,
	})
	if err != nil {
		t.Fatalf("coordinator.New: %v", err)
	}
	if err := coord.Init(context.Background()); err != nil {
		t.Fatalf("Init: %v", err)
	}
	t.Cleanup(coord.Close)

	opts := Options{Coordinator: coord, BlockedPath: "/blocked", KeepAlive: time.Hour}
	if configure != nil {
		configure(&opts, sm)
	}
	srv, err := New(opts)
	if err != nil {
		t.Fatalf("server.New: %v", err)
	}
	return &testEnv{server: srv, router: srv.Router(), host: host, clock: clock, settings: sm}
}

func (e *testEnv) do(t *testing.T, method, path, body string, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	var request *http.Request
	if body == "" {
		request = httptest.NewRequest(method, path, nil)
	} else {
		request = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	for key, values := range header {
		request.Header[key] = values
	}
	recorder := httptest.NewRecorder()
	e.router.ServeHTTP(recorder, request)
	return recorder
}

func decodeBody(t *testing.T, recorder *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(recorder.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response %q: %v", recorder.Body.String(), err)
	}
	return body
}

func TestHealthz(t *testing.T) {
	env := newTestEnv(t, nil)
	recorder := env.do(t, http.MethodGet, "/healthz", "", nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", recorder.Code)
	}
}

func TestSessionLifecycleOverREST(t *testing.T) {
	env := newTestEnv(t, nil)

	recorder := env.do(t, http.MethodPost, "/api/session/start", `{"durationMinutes":120,"blockListName":"deep_work"}`, nil)
	body := decodeBody(t, recorder)
	if recorder.Code != http.StatusOK || body["success"] != true || body["mode"] != "deep" {
		t.Fatalf("unexpected start response %d %v", recorder.Code, body)
	}
	if len(env.host.Patterns(rules.Session)) == 0 {
		t.Fatalf("expected session rules installed")
	}

	body = decodeBody(t, env.do(t, http.MethodGet, "/api/status", "", nil))
	if body["active"] != true || body["state"] != "active_deep" {
		t.Fatalf("unexpected status %v", body)
	}
	if _, ok := body["schedules"]; !ok {
		t.Fatalf("status should list schedules")
	}

	body = decodeBody(t, env.do(t, http.MethodPost, "/api/session/end", "", nil))
	if body["success"] != true {
		t.Fatalf("unexpected end response %v", body)
	}
	if len(env.host.Patterns(rules.Session)) != 0 {
		t.Fatalf("expected session rules removed")
	}
}

func TestMessageEnvelope(t *testing.T) {
	env := newTestEnv(t, nil)

	body := decodeBody(t, env.do(t, http.MethodPost, "/api/messages", `{"type":"start-session","durationMinutes":25}`, nil))
	if body["success"] != true || body["mode"] != "quick" {
		t.Fatalf("unexpected start response %v", body)
	}

	recorder := env.do(t, http.MethodPost, "/api/messages", `{"type":"launch-rockets"}`, nil)
	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown request, got %d", recorder.Code)
	}
	if body := decodeBody(t, recorder); body["success"] != false {
		t.Fatalf("expected success false, got %v", body)
	}

	recorder = env.do(t, http.MethodPost, "/api/messages", `{not json`, nil)
	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed body, got %d", recorder.Code)
	}
}

func TestValidationFailuresAreBadRequests(t *testing.T) {
	env := newTestEnv(t, nil)

	recorder := env.do(t, http.MethodPut, "/api/blocklists", `{"lists":{"bad":["*://*.com/*"]}}`, nil)
	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for public suffix pattern, got %d", recorder.Code)
	}
	recorder = env.do(t, http.MethodPut, "/api/schedules", `{"schedules":[{"name":"x","list":"workday","days":[9],"start":"09:00","end":"10:00","enabled":true}]}`, nil)
	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid day, got %d", recorder.Code)
	}
	recorder = env.do(t, http.MethodPost, "/api/bypass", `{"target":"not a url"}`, nil)
	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for target without domain, got %d", recorder.Code)
	}
	recorder = env.do(t, http.MethodPost, "/api/session/start", `{"durationMinutes":0}`, nil)
	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for zero duration, got %d", recorder.Code)
	}
}

func TestHostFailureIsSoftFailure(t *testing.T) {
	env := newTestEnv(t, nil)
	env.host.UpdateErr = context.DeadlineExceeded

	recorder := env.do(t, http.MethodPost, "/api/session/start", `{"durationMinutes":120}`, nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200 for host failure, got %d", recorder.Code)
	}
	body := decodeBody(t, recorder)
	if body["success"] != false || body["error"] == "" {
		t.Fatalf("expected success false with error, got %v", body)
	}
}

func TestSchedulesAndBypassRoutes(t *testing.T) {
	env := newTestEnv(t, nil)

	body := decodeBody(t, env.do(t, http.MethodPut, "/api/schedules", `{"schedules":[{"id":"work","name":"Work","list":"workday","days":[1,2,3,4,5],"start":"9:00","end":"17:00","enabled":true}]}`, nil))
	if body["success"] != true {
		t.Fatalf("unexpected schedules response %v", body)
	}
	saved := body["schedules"].([]any)[0].(map[string]any)
	if saved["start"] != "09:00" {
		t.Fatalf("expected normalized start time, got %v", saved["start"])
	}

	body = decodeBody(t, env.do(t, http.MethodGet, "/api/alarms", "", nil))
	if alarms := body["alarms"].([]any); len(alarms) != 10 {
		t.Fatalf("expected 10 schedule alarms, got %d", len(alarms))
	}

	body = decodeBody(t, env.do(t, http.MethodPost, "/api/bypass", `{"target":"https://www.reddit.com/r/golang","minutes":10}`, nil))
	if body["domain"] != "reddit.com" {
		t.Fatalf("unexpected bypass response %v", body)
	}
	body = decodeBody(t, env.do(t, http.MethodGet, "/api/bypass", "", nil))
	if _, ok := body["bypasses"].(map[string]any)["reddit.com"]; !ok {
		t.Fatalf("expected reddit.com bypass listed, got %v", body)
	}
	body = decodeBody(t, env.do(t, http.MethodGet, "/api/bypass/log", "", nil))
	if entries := body["entries"].([]any); len(entries) != 1 {
		t.Fatalf("expected one log entry, got %v", entries)
	}

	recorder := env.do(t, http.MethodGet, "/api/rules?namespace=nope", "", nil)
	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown namespace, got %d", recorder.Code)
	}
}

func TestSettingsRoutesHideTokenHash(t *testing.T) {
	env := newTestEnv(t, nil)
	body := decodeBody(t, env.do(t, http.MethodPut, "/api/settings", `{"enableNotifications":false,"quickFocusDuration":30,"deepFocusDuration":100,"apiTokenHash":"x"}`, nil))
	if body["success"] != true {
		t.Fatalf("unexpected settings response %v", body)
	}
	current, err := env.settings.Get(context.Background())
	if err != nil {
		t.Fatalf("settings.Get: %v", err)
	}
	if current.APITokenHash != "" || current.QuickFocusDuration != 30 {
		t.Fatalf("unexpected stored settings %+v", current)
	}
	if strings.Contains(env.do(t, http.MethodGet, "/api/settings", "", nil).Body.String(), "apiTokenHash") {
		t.Fatalf("token hash must never be returned")
	}
}

func TestBlockedPage(t *testing.T) {
	env := newTestEnv(t, nil)
	recorder := env.do(t, http.MethodGet, "/blocked?from=%2A%3A%2F%2F%2A.youtube.com%2F%2A", "", nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", recorder.Code)
	}
	page := recorder.Body.String()
	if !strings.Contains(page, "youtube.com") || !strings.Contains(page, "focusblocks bypass youtube.com") {
		t.Fatalf("blocked page missing domain: %s", page)
	}
}

func TestBlockedPageShowsTodaysFocusTime(t *testing.T) {
	env := newTestEnv(t, nil)
	if recorder := env.do(t, http.MethodPost, "/api/session/start", `{"durationMinutes":30}`, nil); recorder.Code != http.StatusOK {
		t.Fatalf("start: %d %s", recorder.Code, recorder.Body.String())
	}
	env.clock.Advance(31 * time.Minute)

	stats := decodeBody(t, env.do(t, http.MethodGet, "/api/stats", "", nil))
	if stats["todayMinutesSaved"] != float64(30) || stats["sessions"] != float64(1) {
		t.Fatalf("unexpected stats %v", stats)
	}
	page := env.do(t, http.MethodGet, "/blocked", "", nil).Body.String()
	if !strings.Contains(page, "focused for 30 minutes today") {
		t.Fatalf("blocked page missing focus time: %s", page)
	}

	if recorder := env.do(t, http.MethodPut, "/api/settings", `{"enableNotifications":true,"showStats":false,"quickFocusDuration":25,"deepFocusDuration":90}`, nil); recorder.Code != http.StatusOK {
		t.Fatalf("save settings: %d %s", recorder.Code, recorder.Body.String())
	}
	page = env.do(t, http.MethodGet, "/blocked", "", nil).Body.String()
	if strings.Contains(page, "minutes today") {
		t.Fatalf("focus time shown with showStats disabled: %s", page)
	}
}

func TestAuthMiddleware(t *testing.T) {
	var token string
	env := newTestEnv(t, func(opts *Options, sm *settings.Manager) {
		manager := auth.NewManager(sm, filepath.Join(t.TempDir(), "api-token"))
		var err error
		token, err = manager.EnsureToken(context.Background())
		if err != nil {
			t.Fatalf("EnsureToken: %v", err)
		}
		opts.Auth = manager
	})

	if recorder := env.do(t, http.MethodGet, "/api/status", "", nil); recorder.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", recorder.Code)
	}
	header := http.Header{"Authorization": []string{"Bearer " + token}}
	if recorder := env.do(t, http.MethodGet, "/api/status", "", header); recorder.Code != http.StatusOK {
		t.Fatalf("expected 200 with token, got %d", recorder.Code)
	}
	if recorder := env.do(t, http.MethodGet, "/healthz", "", nil); recorder.Code != http.StatusOK {
		t.Fatalf("healthz must stay public, got %d", recorder.Code)
	}
	if recorder := env.do(t, http.MethodGet, "/blocked", "", nil); recorder.Code != http.StatusOK {
		t.Fatalf("blocked page must stay public, got %d", recorder.Code)
	}
}

func TestAllowlistMiddleware(t *testing.T) {
	env := newTestEnv(t, func(opts *Options, _ *settings.Manager) {
		list, err := auth.NewAllowlist([]string{"10.0.0.0/8"})
		if err != nil {
			t.Fatalf("NewAllowlist: %v", err)
		}
		opts.Allowlist = list
	})
	// httptest requests come from 192.0.2.1.
	if recorder := env.do(t, http.MethodGet, "/api/status", "", nil); recorder.Code != http.StatusForbidden {
		t.Fatalf("expected 403 outside allowlist, got %d", recorder.Code)
	}
}

func TestWebhookPageRegistration(t *testing.T) {
	env := newTestEnv(t, nil)

	if recorder := env.do(t, http.MethodPost, "/api/pages", `{"url":"ftp://example.com/hook"}`, nil); recorder.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for non-http webhook, got %d", recorder.Code)
	}
	body := decodeBody(t, env.do(t, http.MethodPost, "/api/pages", `{"id":"options","url":"http://127.0.0.1:9/hook"}`, nil))
	if body["id"] != "options" {
		t.Fatalf("unexpected register response %v", body)
	}
	body = decodeBody(t, env.do(t, http.MethodGet, "/api/pages", "", nil))
	if pages := body["pages"].([]any); len(pages) != 1 || pages[0] != "options" {
		t.Fatalf("unexpected pages %v", pages)
	}
	if recorder := env.do(t, http.MethodDelete, "/api/pages/options", "", nil); recorder.Code != http.StatusOK {
		t.Fatalf("expected 200 on unregister, got %d", recorder.Code)
	}
	if recorder := env.do(t, http.MethodDelete, "/api/pages/options", "", nil); recorder.Code != http.StatusNotFound {
		t.Fatalf("expected 404 on second unregister, got %d", recorder.Code)
	}
}

func TestStreamSendsInitialStatusAndBroadcasts(t *testing.T) {
	env := newTestEnv(t, nil)
	httpServer := httptest.NewServer(env.router)
	defer httpServer.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, httpServer.URL+"/api/events", nil)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	response, err := http.DefaultClient.Do(request)
	if err != nil {
		t.Fatalf("GET /api/events: %v", err)
	}
	defer response.Body.Close()
	if got := response.Header.Get("Content-Type"); got != "text/event-stream" {
		t.Fatalf("unexpected content type %q", got)
	}

	reader := bufio.NewReader(response.Body)
	waitFor := func(want string) {
		t.Helper()
		for {
			line, err := reader.ReadString('\n')
			if err != nil {
				t.Fatalf("reading stream waiting for %q: %v", want, err)
			}
			if strings.TrimSpace(line) == want {
				return
			}
		}
	}
	waitFor("event: session-changed")

	go func() {
		resp, err := http.Post(httpServer.URL+"/api/session/start", "application/json", strings.NewReader(`{"durationMinutes":120}`))
		if err == nil {
			resp.Body.Close()
		}
	}()
	waitFor("event: session-changed")
}

func TestBackupExportAndRestore(t *testing.T) {
	env := newTestEnv(t, nil)

	recorder := env.do(t, http.MethodGet, "/api/backup", "", nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("export: %d %s", recorder.Code, recorder.Body.String())
	}
	if !strings.Contains(recorder.Header().Get("Content-Disposition"), "focus-blocks-backup-") {
		t.Fatalf("missing attachment header: %v", recorder.Header())
	}
	exported := decodeBody(t, recorder)
	if exported["format"] != "focus-blocks-backup" {
		t.Fatalf("unexpected export %v", exported)
	}

	restore := `{"format":"focus-blocks-backup","version":1,
		"lists":{"reading":["*://*.news.ycombinator.com/*"]},
		"schedules":[{"id":"evening","name":"Evening","list":"reading","days":[0],"start":"20:00","end":"22:00","enabled":true}],
		"settings":{"enableNotifications":true,"showStats":true,"quickFocusDuration":20,"deepFocusDuration":90}}`
	recorder = env.do(t, http.MethodPost, "/api/backup", restore, nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("restore: %d %s", recorder.Code, recorder.Body.String())
	}
	lists := decodeBody(t, env.do(t, http.MethodGet, "/api/blocklists", "", nil))
	if got := lists["lists"].(map[string]any); len(got) != 1 || got["reading"] == nil {
		t.Fatalf("lists not restored: %v", lists)
	}

	recorder = env.do(t, http.MethodPost, "/api/backup", `{"format":"something-else","lists":{}}`, nil)
	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for foreign format, got %d", recorder.Code)
	}
	recorder = env.do(t, http.MethodPost, "/api/backup", `not json`, nil)
	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad body, got %d", recorder.Code)
	}
}
