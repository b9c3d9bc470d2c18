// Package bypass tracks temporary per-domain exemptions from blocking.
package bypass

import (
	"context"
	"fmt"
	"strings"
	"time"

	"focus-blocks/internal/alarm"
	"focus-blocks/internal/diaglog"
	"focus-blocks/internal/domains"
	"focus-blocks/internal/models"
)

// AlarmPrefix names every bypass expiry alarm: bypass:<domain>.
const AlarmPrefix = "bypass:"

// ErrInvalidTarget is returned when no domain can be extracted from a target.
var ErrInvalidTarget = fmt.Errorf("%w: bypass target has no domain", models.ErrValidation)

// Store is the persistence the tracker reads and writes.
type Store interface {
	Bypasses(ctx context.Context) (models.Bypasses, error)
	SaveBypasses(ctx context.Context, table models.Bypasses) error
	AppendBypassLog(ctx context.Context, entry models.BypassLogEntry) error
}

// Tracker owns the bypass table. Every operation reads the table fresh from
// the store; the caller serializes calls.
type Tracker struct {
	store  Store
	alarms *alarm.Manager
	logger diaglog.Logger
}

// NewTracker creates a tracker.
func NewTracker(store Store, alarms *alarm.Manager, logger diaglog.Logger) *Tracker {
	return &Tracker{store: store, alarms: alarms, logger: diaglog.OrDiscard(logger)}
}

// ExtractDomain returns the domain of a wildcard pattern or concrete URL,
// or "" when none can be found.
func ExtractDomain(target string) string {
	return domains.Extract(target)
}

// AlarmName returns the expiry alarm name for domain.
func AlarmName(domain string) string {
	return AlarmPrefix + domain
}

// DomainFromAlarm parses a bypass alarm name.
func DomainFromAlarm(name string) (string, bool) {
	if !strings.HasPrefix(name, AlarmPrefix) {
		return "", false
	}
	domain := strings.TrimPrefix(name, AlarmPrefix)
	return domain, domain != ""
}

// Grant exempts the domain of target for minutes (5 when zero). Repeated
// grants keep the later expiry. The expiry alarm is armed at the stored
// expiry.
func (t *Tracker) Grant(ctx context.Context, target string, minutes int) (string, int64, error) {
	domain := ExtractDomain(target)
	if domain == "" {
		return "", 0, fmt.Errorf("%w: %q", ErrInvalidTarget, target)
	}
	if minutes < 0 {
		return "", 0, fmt.Errorf("%w: bypass minutes must not be negative, got %d", models.ErrValidation, minutes)
	}
	if minutes == 0 {
		minutes = models.DefaultBypassMinutes
	}

	now := t.alarms.Now()
	table, err := t.store.Bypasses(ctx)
	if err != nil {
		return "", 0, err
	}
	table.Prune(now)
	requested := models.Millis(now.Add(time.Duration(minutes) * time.Minute))
	expiresAt := requested
	if existing := table[domain]; existing > expiresAt {
		expiresAt = existing
	}
	table[domain] = expiresAt
	if err := t.store.SaveBypasses(ctx, table); err != nil {
		return "", 0, err
	}
	t.alarms.Schedule(AlarmName(domain), models.FromMillis(expiresAt))

	entry := models.BypassLogEntry{
		Timestamp: models.Millis(now),
		Domain:    domain,
		Target:    target,
		Minutes:   minutes,
		ExpiresAt: expiresAt,
	}
	if err := t.store.AppendBypassLog(ctx, entry); err != nil {
		t.logger.Warnf("bypass: record grant for %s: %v", domain, err)
	}
	t.logger.Infof("bypass: granted %s for %d minutes (expires %s)", domain, minutes, models.FromMillis(expiresAt).Format(time.RFC3339))
	return domain, expiresAt, nil
}

// IsBypassed reports whether domain is currently exempt.
func (t *Tracker) IsBypassed(ctx context.Context, domain string) (bool, error) {
	table, err := t.Active(ctx)
	if err != nil {
		return false, err
	}
	return table.Active(domain, t.alarms.Now()), nil
}

// Active returns the unexpired entries, pruning expired ones from the store.
func (t *Tracker) Active(ctx context.Context) (models.Bypasses, error) {
	table, err := t.store.Bypasses(ctx)
	if err != nil {
		return nil, err
	}
	if table.Prune(t.alarms.Now()) {
		if err := t.store.SaveBypasses(ctx, table); err != nil {
			return nil, err
		}
	}
	return table, nil
}

// FilterPatterns drops every pattern whose domain is currently bypassed.
func (t *Tracker) FilterPatterns(ctx context.Context, patterns []string) ([]string, error) {
	table, err := t.Active(ctx)
	if err != nil {
		return nil, err
	}
	return Filter(patterns, table, t.alarms.Now()), nil
}

// Filter is the pure form of FilterPatterns.
func Filter(patterns []string, table models.Bypasses, now time.Time) []string {
	active := table.ActiveDomains(now)
	out := make([]string, 0, len(patterns))
	for _, pattern := range patterns {
		if _, skip := active[ExtractDomain(pattern)]; skip {
			continue
		}
		out = append(out, pattern)
	}
	return out
}

// Expire handles a fired expiry alarm. It reports whether the entry was
// removed; an entry extended past now is kept and its alarm re-armed.
func (t *Tracker) Expire(ctx context.Context, domain string) (bool, error) {
	now := t.alarms.Now()
	table, err := t.store.Bypasses(ctx)
	if err != nil {
		return false, err
	}
	expiresAt, ok := table[domain]
	if !ok {
		t.logger.Debugf("bypass: expiry for %s found no entry", domain)
		return false, nil
	}
	if expiresAt > models.Millis(now) {
		t.alarms.Schedule(AlarmName(domain), models.FromMillis(expiresAt))
		t.logger.Debugf("bypass: %s was extended, re-armed", domain)
		return false, nil
	}
	delete(table, domain)
	if err := t.store.SaveBypasses(ctx, table); err != nil {
		return false, err
	}
	t.logger.Infof("bypass: %s expired", domain)
	return true, nil
}

// Clear drops every entry and cancels every pending expiry alarm.
func (t *Tracker) Clear(ctx context.Context) error {
	if err := t.store.SaveBypasses(ctx, models.Bypasses{}); err != nil {
		return err
	}
	if n := t.alarms.CancelPrefix(AlarmPrefix); n > 0 {
		t.logger.Infof("bypass: cleared %d active bypasses", n)
	}
	return nil
}

// Recover prunes expired entries and re-arms alarms for the live ones,
// for use after a restart.
func (t *Tracker) Recover(ctx context.Context) error {
	table, err := t.Active(ctx)
	if err != nil {
		return err
	}
	for domain, expiresAt := range table {
		t.alarms.Schedule(AlarmName(domain), models.FromMillis(expiresAt))
	}
	if len(table) > 0 {
		t.logger.Infof("bypass: recovered %d active bypasses", len(table))
	}
	return nil
}
