package models

import "time"

// DeepFocusThresholdMinutes is the shortest session that blocks at the network layer.
const DeepFocusThresholdMinutes = 90

// Mode is the blocking strategy of a focus session.
type Mode string

const (
	// ModeQuick hides distractions in the page only; no network rules.
	ModeQuick Mode = "quick"
	// ModeDeep redirects whole sites through network rules.
	ModeDeep Mode = "deep"
)

// State is the derived lifecycle state of the singleton session.
type State string

const (
	StateIdle        State = "idle"
	StateActiveQuick State = "active_quick"
	StateActiveDeep  State = "active_deep"
)

// ModeFor returns the mode a session of the given length runs in.
func ModeFor(durationMinutes, thresholdMinutes int) Mode {
	if thresholdMinutes <= 0 {
		thresholdMinutes = DeepFocusThresholdMinutes
	}
	if durationMinutes >= thresholdMinutes {
		return ModeDeep
	}
	return ModeQuick
}

// Session is the persisted focus session singleton. Timestamps are unix
// milliseconds so consumers can compare them with their own clocks directly.
type Session struct {
	Active          bool   `json:"active"`
	ActiveUntil     int64  `json:"activeUntil"`
	Mode            Mode   `json:"mode,omitempty"`
	BlockList       string `json:"blockList,omitempty"`
	StartedAt       int64  `json:"startedAt,omitempty"`
	DurationMinutes int    `json:"durationMinutes,omitempty"`
}

// State derives the lifecycle state at now. A session whose deadline has
// passed is idle even if the persisted flag still claims otherwise.
func (s Session) State(now time.Time) State {
	if !s.Active || s.ActiveUntil <= Millis(now) {
		return StateIdle
	}
	if s.Mode == ModeDeep {
		return StateActiveDeep
	}
	return StateActiveQuick
}

// Stale reports whether the persisted flag claims active past the deadline.
func (s Session) Stale(now time.Time) bool {
	return s.Active && s.ActiveUntil <= Millis(now)
}

// Remaining returns the time left until the deadline, never negative.
func (s Session) Remaining(now time.Time) time.Duration {
	remaining := FromMillis(s.ActiveUntil).Sub(now)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Millis converts t to unix milliseconds.
func Millis(t time.Time) int64 {
	return t.UnixMilli()
}

// FromMillis converts unix milliseconds to a time.
func FromMillis(ms int64) time.Time {
	return time.UnixMilli(ms)
}
