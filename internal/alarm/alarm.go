// Package alarm provides named, cancellable one-shot timers.
//
// Re-scheduling a name replaces its pending timer. A callback that already
// passed its generation check still runs after a cancel; callers treat such
// fires as stale.
package alarm

import (
	"sort"
	"strings"
	"sync"
	"time"

	"focus-blocks/internal/diaglog"
)

// Handler receives the name of every fired alarm.
type Handler func(name string)

// Alarm describes a pending alarm.
type Alarm struct {
	Name          string    `json:"name"`
	ScheduledTime time.Time `json:"scheduledTime"`
}

type entry struct {
	gen   uint64
	when  time.Time
	timer Timer
}

// Manager owns the set of pending alarms.
type Manager struct {
	clock  Clock
	logger diaglog.Logger

	mu      sync.Mutex
	handler Handler
	gen     uint64
	alarms  map[string]*entry
}

// NewManager creates an alarm manager on clock. A nil clock uses real time.
func NewManager(clock Clock, logger diaglog.Logger) *Manager {
	if clock == nil {
		clock = RealClock{}
	}
	return &Manager{
		clock:  clock,
		logger: diaglog.OrDiscard(logger),
		alarms: make(map[string]*entry),
	}
}

// SetHandler registers the dispatch callback for fired alarms.
func (m *Manager) SetHandler(handler Handler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handler = handler
}

// Now returns the manager clock's current time.
func (m *Manager) Now() time.Time {
	return m.clock.Now()
}

// Schedule arms name to fire at when, replacing any pending alarm of the
// same name. A time in the past fires as soon as possible.
func (m *Manager) Schedule(name string, when time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.cancelLocked(name)
	m.gen++
	gen := m.gen
	delay := when.Sub(m.clock.Now())
	if delay < 0 {
		delay = 0
	}
	e := &entry{gen: gen, when: when}
	e.timer = m.clock.AfterFunc(delay, func() { m.fire(name, gen) })
	m.alarms[name] = e
	m.logger.Debugf("alarm %s armed for %s", name, when.Format(time.RFC3339))
}

// Cancel removes a pending alarm and reports whether one existed.
func (m *Manager) Cancel(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cancelLocked(name)
}

// CancelPrefix removes every pending alarm whose name starts with prefix.
func (m *Manager) CancelPrefix(prefix string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for name := range m.alarms {
		if strings.HasPrefix(name, prefix) && m.cancelLocked(name) {
			count++
		}
	}
	return count
}

// Get returns the pending alarm called name.
func (m *Manager) Get(name string) (Alarm, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.alarms[name]
	if !ok {
		return Alarm{}, false
	}
	return Alarm{Name: name, ScheduledTime: e.when}, true
}

// List returns pending alarms ordered by fire time, then name.
func (m *Manager) List() []Alarm {
	m.mu.Lock()
	out := make([]Alarm, 0, len(m.alarms))
	for name, e := range m.alarms {
		out = append(out, Alarm{Name: name, ScheduledTime: e.when})
	}
	m.mu.Unlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].ScheduledTime.Equal(out[j].ScheduledTime) {
			return out[i].Name < out[j].Name
		}
		return out[i].ScheduledTime.Before(out[j].ScheduledTime)
	})
	return out
}

// Stop cancels every pending alarm.
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for name := range m.alarms {
		m.cancelLocked(name)
	}
}

func (m *Manager) cancelLocked(name string) bool {
	e, ok := m.alarms[name]
	if !ok {
		return false
	}
	e.timer.Stop()
	delete(m.alarms, name)
	return true
}

func (m *Manager) fire(name string, gen uint64) {
	m.mu.Lock()
	e, ok := m.alarms[name]
	if !ok || e.gen != gen {
		m.mu.Unlock()
		m.logger.Debugf("alarm %s superseded before firing", name)
		return
	}
	delete(m.alarms, name)
	handler := m.handler
	m.mu.Unlock()

	if handler == nil {
		m.logger.Warnf("alarm %s fired with no handler", name)
		return
	}
	handler(name)
}
