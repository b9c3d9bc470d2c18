package schedule

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"focus-blocks/internal/models"
)

// AlarmPrefix names every schedule alarm: schedule:<id>:<day>:<edge>. The
// day is always the day the window opens, also for an end edge.
const AlarmPrefix = "schedule:"

// Edge is the boundary of a schedule window an alarm fires for.
type Edge string

const (
	EdgeStart Edge = "start"
	EdgeEnd   Edge = "end"
)

// AlarmName builds the alarm name for one (schedule, day, edge) triple.
func AlarmName(id string, day int, edge Edge) string {
	return fmt.Sprintf("%s%s:%d:%s", AlarmPrefix, id, day, edge)
}

// ParseAlarm splits a schedule alarm name. Parsing works from the right so
// the id itself is opaque.
func ParseAlarm(name string) (id string, day int, edge Edge, ok bool) {
	if !strings.HasPrefix(name, AlarmPrefix) {
		return "", 0, "", false
	}
	rest := strings.TrimPrefix(name, AlarmPrefix)
	i := strings.LastIndex(rest, ":")
	if i < 0 {
		return "", 0, "", false
	}
	edge = Edge(rest[i+1:])
	if edge != EdgeStart && edge != EdgeEnd {
		return "", 0, "", false
	}
	rest = rest[:i]
	j := strings.LastIndex(rest, ":")
	if j <= 0 {
		return "", 0, "", false
	}
	day, err := strconv.Atoi(rest[j+1:])
	if err != nil || day < 0 || day > 6 {
		return "", 0, "", false
	}
	return rest[:j], day, edge, true
}

// NextOccurrence returns the next wall-clock time strictly after now that
// falls on weekday day (0=Sunday) at clock, in loc. A time equal to now
// counts as passed.
func NextOccurrence(now time.Time, day int, clock models.ClockTime, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.Local
	}
	local := now.In(loc)
	ahead := (day - int(local.Weekday()) + 7) % 7
	candidate := time.Date(local.Year(), local.Month(), local.Day()+ahead, clock.Hour, clock.Minute, 0, 0, loc)
	if !candidate.After(local) {
		candidate = time.Date(local.Year(), local.Month(), local.Day()+ahead+7, clock.Hour, clock.Minute, 0, 0, loc)
	}
	return candidate
}

// InProgress reports whether a window of s is open at now. An overnight
// window opened on day d stays open until its end time on day d+1.
func InProgress(s models.Schedule, now time.Time, loc *time.Location) bool {
	if loc == nil {
		loc = time.Local
	}
	start, err := s.StartClock()
	if err != nil {
		return false
	}
	end, err := s.EndClock()
	if err != nil || start.Minutes() == end.Minutes() {
		return false
	}
	local := now.In(loc)
	today := int(local.Weekday())
	minute := local.Hour()*60 + local.Minute()
	if start.Minutes() < end.Minutes() {
		return s.HasDay(today) && minute >= start.Minutes() && minute < end.Minutes()
	}
	if s.HasDay(today) && minute >= start.Minutes() {
		return true
	}
	return s.HasDay((today+6)%7) && minute < end.Minutes()
}

// EdgeDay is the weekday an edge of the window opened on day falls on.
// The end of an overnight window lands on the following day.
func EdgeDay(s models.Schedule, day int, edge Edge) int {
	if edge == EdgeEnd && Overnight(s) {
		return (day + 1) % 7
	}
	return day
}

// Overnight reports whether the window wraps past midnight.
func Overnight(s models.Schedule) bool {
	start, err := s.StartClock()
	if err != nil {
		return false
	}
	end, err := s.EndClock()
	if err != nil {
		return false
	}
	return start.Minutes() > end.Minutes()
}
