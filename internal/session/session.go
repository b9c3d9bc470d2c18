// Package session runs the focus session lifecycle: idle, active quick and
// active deep.
//
// Quick sessions never install network rules. Deep sessions install the
// resolved block list, minus bypassed domains, into the SESSION namespace.
// All state is read fresh from the store inside each call; the caller
// serializes calls.
package session

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"focus-blocks/internal/alarm"
	"focus-blocks/internal/broadcast"
	"focus-blocks/internal/diaglog"
	"focus-blocks/internal/domains"
	"focus-blocks/internal/models"
	"focus-blocks/internal/rules"
)

// AlarmName is the session expiry alarm.
const AlarmName = "focusSessionEnd"

// ErrInvalidDuration is returned for non-positive durations.
var ErrInvalidDuration = fmt.Errorf("%w: session duration must be positive", models.ErrValidation)

type Store interface {
	Session(ctx context.Context) (models.Session, error)
	SaveSession(ctx context.Context, session models.Session) error
	ClearSession(ctx context.Context) error
	BlockLists(ctx context.Context) (models.BlockLists, error)
}

type RuleSetter interface {
	SetBlockRules(ctx context.Context, patterns []string, enable bool, ns rules.Namespace) error
}

type Bypasses interface {
	FilterPatterns(ctx context.Context, patterns []string) ([]string, error)
	Clear(ctx context.Context) error
}

type Broadcaster interface {
	Broadcast(ctx context.Context, name string, data any)
}

type Notifier interface {
	Notify(ctx context.Context, title, message string)
}

// Recorder receives each session as it finishes.
type Recorder interface {
	Record(ctx context.Context, session models.Session, ended time.Time) error
}

// Deps are the collaborators of a Machine. Events, Notifier and Stats are
// optional.
type Deps struct {
	Store    Store
	Rules    RuleSetter
	Bypasses Bypasses
	Alarms   *alarm.Manager
	Events   Broadcaster
	Notifier Notifier
	Stats    Recorder
	Logger   diaglog.Logger

	// DeepThresholdMinutes defaults to 90.
	DeepThresholdMinutes int
}

// Machine owns the session singleton.
type Machine struct {
	store     Store
	rules     RuleSetter
	bypasses  Bypasses
	alarms    *alarm.Manager
	events    Broadcaster
	notifier  Notifier
	stats     Recorder
	logger    diaglog.Logger
	threshold int
}

// Status is the externally visible session view.
type Status struct {
	Active          bool         `json:"active"`
	ActiveUntil     int64        `json:"activeUntil"`
	Mode            models.Mode  `json:"mode,omitempty"`
	State           models.State `json:"state"`
	BlockList       string       `json:"blockList,omitempty"`
	DurationMinutes int          `json:"durationMinutes,omitempty"`
	RemainingMS     int64        `json:"remainingMs"`
}

// New validates deps and returns a Machine.
func New(deps Deps) (*Machine, error) {
	if deps.Store == nil {
		return nil, fmt.Errorf("session store is required")
	}
	if deps.Rules == nil {
		return nil, fmt.Errorf("rule engine is required")
	}
	if deps.Bypasses == nil {
		return nil, fmt.Errorf("bypass tracker is required")
	}
	if deps.Alarms == nil {
		return nil, fmt.Errorf("alarm manager is required")
	}
	threshold := deps.DeepThresholdMinutes
	if threshold <= 0 {
		threshold = models.DeepFocusThresholdMinutes
	}
	return &Machine{
		store:     deps.Store,
		rules:     deps.Rules,
		bypasses:  deps.Bypasses,
		alarms:    deps.Alarms,
		events:    deps.Events,
		notifier:  deps.Notifier,
		stats:     deps.Stats,
		logger:    diaglog.OrDiscard(deps.Logger),
		threshold: threshold,
	}, nil
}

// Start begins a session of minutes on listName, replacing any active one.
// Rules are applied before anything is persisted; if they fail, the stored
// session is left untouched.
func (m *Machine) Start(ctx context.Context, minutes int, listName string) (models.Session, error) {
	if minutes <= 0 {
		return models.Session{}, fmt.Errorf("%w: got %d", ErrInvalidDuration, minutes)
	}
	previous, err := m.store.Session(ctx)
	if err != nil {
		return models.Session{}, err
	}
	lists, err := m.store.BlockLists(ctx)
	if err != nil {
		return models.Session{}, err
	}
	resolved, patterns := m.resolveList(lists, listName)
	mode := models.ModeFor(minutes, m.threshold)

	if mode == models.ModeDeep {
		// Deep focus overrides bypasses, so the whole list is installed and
		// the table cleared afterwards.
		if err := m.rules.SetBlockRules(ctx, patterns, true, rules.Session); err != nil {
			return models.Session{}, fmt.Errorf("install session rules: %w", err)
		}
		if err := m.bypasses.Clear(ctx); err != nil {
			m.logger.Warnf("session: clear bypasses on deep start: %v", err)
		}
	} else {
		if err := m.rules.SetBlockRules(ctx, nil, false, rules.Session); err != nil {
			return models.Session{}, fmt.Errorf("clear session rules: %w", err)
		}
	}

	now := m.alarms.Now()
	until := now.Add(time.Duration(minutes) * time.Minute)
	session := models.Session{
		Active:          true,
		ActiveUntil:     models.Millis(until),
		Mode:            mode,
		BlockList:       resolved,
		StartedAt:       models.Millis(now),
		DurationMinutes: minutes,
	}
	if err := m.store.SaveSession(ctx, session); err != nil {
		return models.Session{}, fmt.Errorf("persist session: %w", err)
	}
	m.alarms.Schedule(AlarmName, until)
	if previous.Active {
		m.record(ctx, previous, now)
	}
	m.logger.Infof("session: started %s session on %q for %d minutes", mode, resolved, minutes)

	m.broadcast(ctx, broadcast.EventSessionChanged, m.view(session, now))
	if mode == models.ModeDeep {
		m.broadcast(ctx, broadcast.EventRefreshBlocked, broadcast.RefreshBlocked{Domains: blockedDomains(patterns)})
		m.notify(ctx, "Deep Focus Started", "Distracting sites will be fully blocked")
	} else {
		m.notify(ctx, "Focus Started", "Distractions will be hidden")
	}
	return session, nil
}

// End returns to idle. It reports false when the session was already idle.
// If rule removal fails the session stays active so a later sweep retries.
func (m *Machine) End(ctx context.Context) (bool, error) {
	session, err := m.store.Session(ctx)
	if err != nil {
		return false, err
	}
	if !session.Active {
		m.alarms.Cancel(AlarmName)
		return false, nil
	}
	if err := m.rules.SetBlockRules(ctx, nil, false, rules.Session); err != nil {
		return false, fmt.Errorf("remove session rules: %w", err)
	}
	if err := m.store.ClearSession(ctx); err != nil {
		return false, fmt.Errorf("clear session: %w", err)
	}
	m.alarms.Cancel(AlarmName)
	m.logger.Infof("session: ended %s session on %q", session.Mode, session.BlockList)

	now := m.alarms.Now()
	m.record(ctx, session, now)
	m.broadcast(ctx, broadcast.EventSessionChanged, m.view(models.Session{}, now))
	m.broadcast(ctx, broadcast.EventForceClear, nil)
	if session.Mode == models.ModeDeep {
		if lists, err := m.store.BlockLists(ctx); err != nil {
			m.logger.Warnf("session: read lists for page refresh: %v", err)
		} else {
			_, patterns := m.resolveList(lists, session.BlockList)
			m.broadcast(ctx, broadcast.EventRefreshBlocked, broadcast.RefreshBlocked{Domains: blockedDomains(patterns)})
		}
	}
	m.notify(ctx, "Focus Session Ended", "Distracting sites are now accessible again")
	return true, nil
}

// Expire handles the session alarm. A fire that lost a race with a newer
// start re-arms for the newer deadline instead of ending it.
func (m *Machine) Expire(ctx context.Context) error {
	session, err := m.store.Session(ctx)
	if err != nil {
		return err
	}
	if !session.Active {
		m.logger.Debugf("session: stale expiry alarm, session already idle")
		return nil
	}
	now := m.alarms.Now()
	if session.ActiveUntil > models.Millis(now) {
		m.alarms.Schedule(AlarmName, models.FromMillis(session.ActiveUntil))
		m.logger.Debugf("session: stale expiry alarm, session runs until %d", session.ActiveUntil)
		return nil
	}
	_, err = m.End(ctx)
	return err
}

// Recover restores the timer after a restart, or ends a session whose
// deadline passed while the process was down.
func (m *Machine) Recover(ctx context.Context) error {
	session, err := m.store.Session(ctx)
	if err != nil {
		return err
	}
	if !session.Active {
		return nil
	}
	now := m.alarms.Now()
	if session.Stale(now) {
		m.logger.Infof("session: deadline passed while stopped, ending")
		_, err := m.End(ctx)
		return err
	}
	m.alarms.Schedule(AlarmName, models.FromMillis(session.ActiveUntil))
	m.logger.Infof("session: recovered %s session, %s remaining", session.Mode, session.Remaining(now).Round(time.Second))
	return m.Reapply(ctx)
}

// Sweep re-checks the session invariant independently of the timer.
func (m *Machine) Sweep(ctx context.Context) error {
	session, err := m.store.Session(ctx)
	if err != nil {
		return err
	}
	if !session.Active {
		return nil
	}
	now := m.alarms.Now()
	if session.Stale(now) {
		m.logger.Infof("session: sweep found expired session, ending")
		_, err := m.End(ctx)
		return err
	}
	if _, ok := m.alarms.Get(AlarmName); !ok {
		m.logger.Warnf("session: expiry alarm missing, re-arming")
		m.alarms.Schedule(AlarmName, models.FromMillis(session.ActiveUntil))
	}
	return nil
}

// Reapply reinstalls SESSION rules for an active deep session, filtered
// through current bypasses. Other states are left alone.
func (m *Machine) Reapply(ctx context.Context) error {
	session, err := m.store.Session(ctx)
	if err != nil {
		return err
	}
	if session.State(m.alarms.Now()) != models.StateActiveDeep {
		return nil
	}
	lists, err := m.store.BlockLists(ctx)
	if err != nil {
		return err
	}
	_, patterns := m.resolveList(lists, session.BlockList)
	filtered, err := m.bypasses.FilterPatterns(ctx, patterns)
	if err != nil {
		return err
	}
	if err := m.rules.SetBlockRules(ctx, filtered, true, rules.Session); err != nil {
		return fmt.Errorf("reinstall session rules: %w", err)
	}
	m.logger.Debugf("session: reapplied %d of %d patterns", len(filtered), len(patterns))
	return nil
}

// BlockListsChanged reinstalls rules when an edit touched the list in
// effect for an active deep session.
func (m *Machine) BlockListsChanged(ctx context.Context, before, after models.BlockLists) error {
	session, err := m.store.Session(ctx)
	if err != nil {
		return err
	}
	if session.State(m.alarms.Now()) != models.StateActiveDeep {
		return nil
	}
	_, was := m.resolveList(before, session.BlockList)
	_, is := m.resolveList(after, session.BlockList)
	if models.EqualPatterns(was, is) {
		return nil
	}
	m.logger.Infof("session: list %q changed during deep session, reinstalling", session.BlockList)
	return m.Reapply(ctx)
}

// Status returns the session view at the current time. An expired session
// not yet swept reads as idle.
func (m *Machine) Status(ctx context.Context) (Status, error) {
	session, err := m.store.Session(ctx)
	if err != nil {
		return Status{}, err
	}
	return m.view(session, m.alarms.Now()), nil
}

func (m *Machine) view(session models.Session, now time.Time) Status {
	state := session.State(now)
	if state == models.StateIdle {
		return Status{State: models.StateIdle}
	}
	return Status{
		Active:          true,
		ActiveUntil:     session.ActiveUntil,
		Mode:            session.Mode,
		State:           state,
		BlockList:       session.BlockList,
		DurationMinutes: session.DurationMinutes,
		RemainingMS:     session.Remaining(now).Milliseconds(),
	}
}

// resolveList picks the named list, falling back to the default list.
func (m *Machine) resolveList(lists models.BlockLists, name string) (string, []string) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = models.DefaultBlockListName
	}
	if patterns, ok := lists[name]; ok {
		return name, patterns
	}
	m.logger.Warnf("session: unknown block list %q, using %q", name, models.DefaultBlockListName)
	if patterns, ok := lists[models.DefaultBlockListName]; ok {
		return models.DefaultBlockListName, patterns
	}
	return models.DefaultBlockListName, models.DefaultBlockLists()[models.DefaultBlockListName]
}

// blockedDomains returns the sorted distinct domains of patterns.
func blockedDomains(patterns []string) []string {
	seen := make(map[string]struct{}, len(patterns))
	out := make([]string, 0, len(patterns))
	for _, pattern := range patterns {
		domain := domains.Extract(pattern)
		if domain == "" {
			continue
		}
		if _, ok := seen[domain]; ok {
			continue
		}
		seen[domain] = struct{}{}
		out = append(out, domain)
	}
	sort.Strings(out)
	return out
}

func (m *Machine) broadcast(ctx context.Context, name string, data any) {
	if m.events != nil {
		m.events.Broadcast(ctx, name, data)
	}
}

func (m *Machine) record(ctx context.Context, session models.Session, ended time.Time) {
	if m.stats == nil {
		return
	}
	if err := m.stats.Record(ctx, session, ended); err != nil {
		m.logger.Warnf("session: record focus time: %v", err)
	}
}

func (m *Machine) notify(ctx context.Context, title, message string) {
	if m.notifier != nil {
		m.notifier.Notify(ctx, title, message)
	}
}
