package models

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// Schedule is a recurring weekly blocking window.
type Schedule struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	List    string `json:"list"`
	Days    []int  `json:"days"`
	Start   string `json:"start"`
	End     string `json:"end"`
	Enabled bool   `json:"enabled"`
}

// ClockTime is a local wall-clock time with minute resolution.
type ClockTime struct {
	Hour   int
	Minute int
}

// Minutes returns minutes since midnight.
func (c ClockTime) Minutes() int {
	return c.Hour*60 + c.Minute
}

func (c ClockTime) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}

// ParseClock parses "HH:MM" (24h).
func ParseClock(raw string) (ClockTime, error) {
	parts := strings.Split(strings.TrimSpace(raw), ":")
	if len(parts) != 2 {
		return ClockTime{}, fmt.Errorf("%w: time %q must be HH:MM", ErrValidation, raw)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return ClockTime{}, fmt.Errorf("%w: invalid hour in %q", ErrValidation, raw)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return ClockTime{}, fmt.Errorf("%w: invalid minute in %q", ErrValidation, raw)
	}
	return ClockTime{Hour: hour, Minute: minute}, nil
}

// StartClock parses the start time. Schedules read back from the store were
// validated on write, so callers may treat an error as a stale entry.
func (s Schedule) StartClock() (ClockTime, error) {
	return ParseClock(s.Start)
}

// EndClock parses the end time.
func (s Schedule) EndClock() (ClockTime, error) {
	return ParseClock(s.End)
}

// HasDay reports whether day (0=Sunday) is part of the schedule.
func (s Schedule) HasDay(day int) bool {
	for _, d := range s.Days {
		if d == day {
			return true
		}
	}
	return false
}

// FindSchedule returns the schedule with id, if present.
func FindSchedule(schedules []Schedule, id string) (Schedule, bool) {
	for _, s := range schedules {
		if s.ID == id {
			return s, true
		}
	}
	return Schedule{}, false
}

// NormalizeSchedules validates a full schedule list as submitted by a UI.
// Schedules without an id get a fresh one; everything else must be present.
func NormalizeSchedules(schedules []Schedule) ([]Schedule, error) {
	out := make([]Schedule, 0, len(schedules))
	seen := make(map[string]struct{}, len(schedules))
	for i, raw := range schedules {
		normalized, err := normalizeSchedule(raw)
		if err != nil {
			return nil, fmt.Errorf("schedule %d: %w", i, err)
		}
		if _, dup := seen[normalized.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate schedule id %q", ErrValidation, normalized.ID)
		}
		seen[normalized.ID] = struct{}{}
		out = append(out, normalized)
	}
	return out, nil
}

func normalizeSchedule(s Schedule) (Schedule, error) {
	s.ID = strings.TrimSpace(s.ID)
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	if strings.ContainsAny(s.ID, ": \t\n") {
		return Schedule{}, fmt.Errorf("%w: schedule id %q contains reserved characters", ErrValidation, s.ID)
	}
	s.Name = strings.TrimSpace(s.Name)
	if s.Name == "" {
		return Schedule{}, fmt.Errorf("%w: schedule name is required", ErrValidation)
	}
	s.List = strings.TrimSpace(s.List)
	if s.List == "" {
		return Schedule{}, fmt.Errorf("%w: schedule %q needs a block list", ErrValidation, s.Name)
	}
	if len(s.Days) == 0 {
		return Schedule{}, fmt.Errorf("%w: schedule %q needs at least one day", ErrValidation, s.Name)
	}
	days := make([]int, 0, len(s.Days))
	seenDays := make(map[int]struct{}, len(s.Days))
	for _, day := range s.Days {
		if day < 0 || day > 6 {
			return Schedule{}, fmt.Errorf("%w: schedule %q has invalid day %d", ErrValidation, s.Name, day)
		}
		if _, dup := seenDays[day]; dup {
			continue
		}
		seenDays[day] = struct{}{}
		days = append(days, day)
	}
	sort.Ints(days)
	s.Days = days

	start, err := ParseClock(s.Start)
	if err != nil {
		return Schedule{}, err
	}
	end, err := ParseClock(s.End)
	if err != nil {
		return Schedule{}, err
	}
	if start == end {
		return Schedule{}, fmt.Errorf("%w: schedule %q starts and ends at %s", ErrValidation, s.Name, start)
	}
	s.Start = start.String()
	s.End = end.String()
	return s, nil
}
