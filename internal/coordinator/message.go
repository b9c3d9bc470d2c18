package coordinator

import (
	"context"
	"errors"
	"fmt"

	"focus-blocks/internal/models"
	"focus-blocks/internal/rules"
	"focus-blocks/internal/stats"
)

// Request types accepted by Dispatch.
const (
	RequestStartSession     = "start-session"
	RequestEndSession       = "end-session"
	RequestGetStatus        = "get-status"
	RequestUpdateBlockLists = "update-blocklists"
	RequestUpdateSchedules  = "update-schedules"
	RequestGrantBypass      = "grant-bypass"
	RequestGetRules         = "get-rules"
	RequestGetAlarms        = "get-alarms"
	RequestGetStats         = "get-stats"
)

// ErrUnknownRequest is returned for a message type Dispatch does not know.
var ErrUnknownRequest = errors.New("unknown request type")

// Message is the RPC envelope. Only the fields of Type are read.
type Message struct {
	Type string `json:"type"`

	DurationMinutes int               `json:"durationMinutes,omitempty"`
	BlockListName   string            `json:"blockListName,omitempty"`
	Lists           models.BlockLists `json:"lists,omitempty"`
	Schedules       []models.Schedule `json:"schedules,omitempty"`
	Target          string            `json:"target,omitempty"`
	Minutes         int               `json:"minutes,omitempty"`
	Namespace       string            `json:"namespace,omitempty"`
}

// Ack answers requests that only report success.
type Ack struct {
	Success bool `json:"success"`
}

// StartResponse answers start-session.
type StartResponse struct {
	Success     bool        `json:"success"`
	ActiveUntil int64       `json:"activeUntil"`
	Mode        models.Mode `json:"mode"`
}

// StatsResponse answers get-stats.
type StatsResponse struct {
	Success bool `json:"success"`
	stats.Snapshot
}

// StatusResponse answers get-status.
type StatusResponse struct {
	Success bool `json:"success"`
	StatusView
}

// BypassResponse answers grant-bypass.
type BypassResponse struct {
	Success   bool   `json:"success"`
	Domain    string `json:"domain"`
	ExpiresAt int64  `json:"expiresAt"`
}

// RulesResponse answers get-rules.
type RulesResponse struct {
	Success bool         `json:"success"`
	Rules   []rules.Rule `json:"rules"`
}

// AlarmsResponse answers get-alarms.
type AlarmsResponse struct {
	Success bool        `json:"success"`
	Alarms  []AlarmInfo `json:"alarms"`
}

// AlarmInfo is a pending alarm with its fire time in unix milliseconds.
type AlarmInfo struct {
	Name          string `json:"name"`
	ScheduledTime int64  `json:"scheduledTime"`
}

// Dispatch runs one request envelope. A returned error means the request
// failed; errors wrapping models.ErrValidation or ErrUnknownRequest are the
// caller's fault.
func (c *Coordinator) Dispatch(ctx context.Context, msg Message) (any, error) {
	switch msg.Type {
	case RequestStartSession:
		session, err := c.StartSession(ctx, msg.DurationMinutes, msg.BlockListName)
		if err != nil {
			return nil, err
		}
		return StartResponse{Success: true, ActiveUntil: session.ActiveUntil, Mode: session.Mode}, nil
	case RequestEndSession:
		if err := c.EndSession(ctx); err != nil {
			return nil, err
		}
		return Ack{Success: true}, nil
	case RequestGetStatus:
		status, err := c.Status(ctx)
		if err != nil {
			return nil, err
		}
		return StatusResponse{Success: true, StatusView: status}, nil
	case RequestUpdateBlockLists:
		if msg.Lists == nil {
			return nil, fmt.Errorf("%w: lists is required", models.ErrValidation)
		}
		if _, err := c.UpdateBlockLists(ctx, msg.Lists); err != nil {
			return nil, err
		}
		return Ack{Success: true}, nil
	case RequestUpdateSchedules:
		schedules := msg.Schedules
		if schedules == nil {
			schedules = []models.Schedule{}
		}
		if _, err := c.UpdateSchedules(ctx, schedules); err != nil {
			return nil, err
		}
		return Ack{Success: true}, nil
	case RequestGrantBypass:
		domain, expiresAt, err := c.GrantBypass(ctx, msg.Target, msg.Minutes)
		if err != nil {
			return nil, err
		}
		return BypassResponse{Success: true, Domain: domain, ExpiresAt: expiresAt}, nil
	case RequestGetRules:
		var (
			installed []rules.Rule
			err       error
		)
		if msg.Namespace == "" {
			installed, err = c.AllRules(ctx)
		} else {
			ns, perr := rules.ParseNamespace(msg.Namespace)
			if perr != nil {
				return nil, fmt.Errorf("%w: %v", models.ErrValidation, perr)
			}
			installed, err = c.Rules(ctx, ns)
		}
		if err != nil {
			return nil, err
		}
		return RulesResponse{Success: true, Rules: installed}, nil
	case RequestGetAlarms:
		return AlarmsResponse{Success: true, Alarms: c.AlarmInfos()}, nil
	case RequestGetStats:
		snap, err := c.Stats(ctx)
		if err != nil {
			return nil, err
		}
		return StatsResponse{Success: true, Snapshot: snap}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownRequest, msg.Type)
	}
}

// AlarmInfos returns the pending alarms in wire form.
func (c *Coordinator) AlarmInfos() []AlarmInfo {
	pending := c.Alarms()
	out := make([]AlarmInfo, 0, len(pending))
	for _, a := range pending {
		out = append(out, AlarmInfo{Name: a.Name, ScheduledTime: models.Millis(a.ScheduledTime)})
	}
	return out
}
