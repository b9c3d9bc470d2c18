// Package client talks to a running focus-blocks daemon.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/tidwall/gjson"

	"focus-blocks/internal/models"
	"focus-blocks/internal/stats"
	"focus-blocks/internal/version"
)

const DefaultRetries = 3

// Client is a daemon API client. Connection errors and 5xx responses are
// retried; 4xx responses are not.
type Client struct {
	baseURL string
	token   string
	http    *retryablehttp.Client
}

// APIError is a failure reported by the daemon.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("daemon error (%d): %s", e.StatusCode, e.Message)
}

// New creates a client for the daemon at baseURL. An empty token sends no
// Authorization header.
func New(baseURL, token string) *Client {
	retryClient := retryablehttp.NewClient()
	retryClient.Logger = log.New(io.Discard, "", 0)
	retryClient.RetryMax = DefaultRetries
	retryClient.RetryWaitMin = 100 * time.Millisecond
	retryClient.RetryWaitMax = time.Second
	retryClient.HTTPClient.Timeout = 10 * time.Second
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   strings.TrimSpace(token),
		http:    retryClient,
	}
}

// SetRetryWait overrides the retry backoff bounds.
func (c *Client) SetRetryWait(min, max time.Duration) {
	c.http.RetryWaitMin = min
	c.http.RetryWaitMax = max
}

// Do sends body as JSON and returns the raw response body. A response with
// "success": false is returned as an *APIError.
func (c *Client) Do(ctx context.Context, method, path string, body any) (string, error) {
	var payload io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return "", err
		}
		payload = bytes.NewReader(encoded)
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, method, c.baseURL+path, payload)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", version.Current().UserAgent())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	text := string(raw)

	if resp.StatusCode >= http.StatusBadRequest || gjson.Get(text, "success").Type == gjson.False {
		message := gjson.Get(text, "error").String()
		if message == "" {
			message = strings.TrimSpace(text)
		}
		if message == "" {
			message = http.StatusText(resp.StatusCode)
		}
		return "", &APIError{StatusCode: resp.StatusCode, Message: message}
	}
	return text, nil
}

// Status is the daemon's get-status answer.
type Status struct {
	Active      bool
	State       models.State
	Mode        models.Mode
	BlockList   string
	ActiveUntil time.Time
	Remaining   time.Duration
	Schedules   []ScheduleStatus
}

// ScheduleStatus summarizes one schedule.
type ScheduleStatus struct {
	ID      string
	Name    string
	List    string
	Start   string
	End     string
	Enabled bool
	Active  bool
}

// Status fetches the session and schedule state.
func (c *Client) Status(ctx context.Context) (Status, error) {
	body, err := c.Do(ctx, http.MethodGet, "/api/status", nil)
	if err != nil {
		return Status{}, err
	}
	return parseStatus(body), nil
}

func parseStatus(body string) Status {
	fields := gjson.GetMany(body, "active", "state", "mode", "blockList", "activeUntil", "remainingMs")
	status := Status{
		Active:    fields[0].Bool(),
		State:     models.State(fields[1].String()),
		Mode:      models.Mode(fields[2].String()),
		BlockList: fields[3].String(),
		Remaining: time.Duration(fields[5].Int()) * time.Millisecond,
	}
	if status.State == "" {
		status.State = models.StateIdle
	}
	if until := fields[4].Int(); until > 0 {
		status.ActiveUntil = models.FromMillis(until)
	}
	for _, sched := range gjson.Get(body, "schedules").Array() {
		status.Schedules = append(status.Schedules, ScheduleStatus{
			ID:      sched.Get("id").String(),
			Name:    sched.Get("name").String(),
			List:    sched.Get("list").String(),
			Start:   sched.Get("start").String(),
			End:     sched.Get("end").String(),
			Enabled: sched.Get("enabled").Bool(),
			Active:  sched.Get("active").Bool(),
		})
	}
	return status
}

// StartSession starts a session and returns its deadline and mode.
func (c *Client) StartSession(ctx context.Context, minutes int, list string) (time.Time, models.Mode, error) {
	body, err := c.Do(ctx, http.MethodPost, "/api/session/start", map[string]any{
		"durationMinutes": minutes,
		"blockListName":   list,
	})
	if err != nil {
		return time.Time{}, "", err
	}
	return models.FromMillis(gjson.Get(body, "activeUntil").Int()), models.Mode(gjson.Get(body, "mode").String()), nil
}

// EndSession ends the active session.
func (c *Client) EndSession(ctx context.Context) error {
	_, err := c.Do(ctx, http.MethodPost, "/api/session/end", nil)
	return err
}

// GrantBypass exempts target's domain for minutes.
func (c *Client) GrantBypass(ctx context.Context, target string, minutes int) (string, time.Time, error) {
	body, err := c.Do(ctx, http.MethodPost, "/api/bypass", map[string]any{
		"target":  target,
		"minutes": minutes,
	})
	if err != nil {
		return "", time.Time{}, err
	}
	return gjson.Get(body, "domain").String(), models.FromMillis(gjson.Get(body, "expiresAt").Int()), nil
}

// BlockLists fetches every list.
func (c *Client) BlockLists(ctx context.Context) (models.BlockLists, error) {
	body, err := c.Do(ctx, http.MethodGet, "/api/blocklists", nil)
	if err != nil {
		return nil, err
	}
	lists := models.BlockLists{}
	if err := json.Unmarshal([]byte(gjson.Get(body, "lists").Raw), &lists); err != nil {
		return nil, fmt.Errorf("decode lists: %w", err)
	}
	return lists, nil
}

// UpdateBlockLists replaces every list.
func (c *Client) UpdateBlockLists(ctx context.Context, lists models.BlockLists) error {
	_, err := c.Do(ctx, http.MethodPut, "/api/blocklists", map[string]any{"lists": lists})
	return err
}

// Schedules fetches every schedule.
func (c *Client) Schedules(ctx context.Context) ([]models.Schedule, error) {
	body, err := c.Do(ctx, http.MethodGet, "/api/schedules", nil)
	if err != nil {
		return nil, err
	}
	var schedules []models.Schedule
	if err := json.Unmarshal([]byte(gjson.Get(body, "schedules").Raw), &schedules); err != nil {
		return nil, fmt.Errorf("decode schedules: %w", err)
	}
	return schedules, nil
}

// UpdateSchedules replaces every schedule.
func (c *Client) UpdateSchedules(ctx context.Context, schedules []models.Schedule) error {
	_, err := c.Do(ctx, http.MethodPut, "/api/schedules", map[string]any{"schedules": schedules})
	return err
}

// Rule is an installed rule as reported by the daemon.
type Rule struct {
	ID      int
	Pattern string
}

// Rules lists installed rules, optionally limited to one namespace.
func (c *Client) Rules(ctx context.Context, namespace string) ([]Rule, error) {
	path := "/api/rules"
	if namespace != "" {
		path += "?namespace=" + url.QueryEscape(namespace)
	}
	body, err := c.Do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	var out []Rule
	for _, rule := range gjson.Get(body, "rules").Array() {
		out = append(out, Rule{
			ID:      int(rule.Get("id").Int()),
			Pattern: rule.Get("condition.urlFilter").String(),
		})
	}
	return out, nil
}

// Alarm is a pending daemon timer.
type Alarm struct {
	Name string
	When time.Time
}

// Alarms lists pending timers.
func (c *Client) Alarms(ctx context.Context) ([]Alarm, error) {
	body, err := c.Do(ctx, http.MethodGet, "/api/alarms", nil)
	if err != nil {
		return nil, err
	}
	var out []Alarm
	gjson.Get(body, "alarms").ForEach(func(_, value gjson.Result) bool {
		out = append(out, Alarm{
			Name: value.Get("name").String(),
			When: models.FromMillis(value.Get("scheduledTime").Int()),
		})
		return true
	})
	return out, nil
}

// Settings fetches the user preferences.
func (c *Client) Settings(ctx context.Context) (models.Settings, error) {
	body, err := c.Do(ctx, http.MethodGet, "/api/settings", nil)
	if err != nil {
		return models.Settings{}, err
	}
	var settings models.Settings
	if err := json.Unmarshal([]byte(gjson.Get(body, "settings").Raw), &settings); err != nil {
		return models.Settings{}, fmt.Errorf("decode settings: %w", err)
	}
	return settings, nil
}

// Stats fetches recorded focus time.
func (c *Client) Stats(ctx context.Context) (stats.Snapshot, error) {
	body, err := c.Do(ctx, http.MethodGet, "/api/stats", nil)
	if err != nil {
		return stats.Snapshot{}, err
	}
	var snap stats.Snapshot
	if err := json.Unmarshal([]byte(body), &snap); err != nil {
		return stats.Snapshot{}, fmt.Errorf("decode stats: %w", err)
	}
	return snap, nil
}

// ExportBackup returns the daemon's configuration backup as JSON.
func (c *Client) ExportBackup(ctx context.Context) ([]byte, error) {
	body, err := c.Do(ctx, http.MethodGet, "/api/backup", nil)
	if err != nil {
		return nil, err
	}
	return []byte(body), nil
}

// ImportBackup restores a backup produced by ExportBackup and returns any
// warnings the daemon reported.
func (c *Client) ImportBackup(ctx context.Context, snapshot []byte) ([]string, error) {
	if !gjson.ValidBytes(snapshot) {
		return nil, fmt.Errorf("backup is not valid JSON")
	}
	body, err := c.Do(ctx, http.MethodPost, "/api/backup", json.RawMessage(snapshot))
	if err != nil {
		return nil, err
	}
	var warnings []string
	for _, warning := range gjson.Get(body, "warnings").Array() {
		warnings = append(warnings, warning.String())
	}
	return warnings, nil
}
