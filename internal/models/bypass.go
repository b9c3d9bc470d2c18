package models

import "time"

// DefaultBypassMinutes is used when a grant names no duration.
const DefaultBypassMinutes = 5

// MaxBypassLogEntries bounds the persisted grant history.
const MaxBypassLogEntries = 100

// Bypasses maps a domain to its expiry in unix milliseconds.
type Bypasses map[string]int64

// Active reports whether domain has an unexpired entry at now.
// The empty domain is never bypassed.
func (b Bypasses) Active(domain string, now time.Time) bool {
	if domain == "" {
		return false
	}
	expires, ok := b[domain]
	return ok && expires > Millis(now)
}

// ActiveDomains returns the domains still bypassed at now.
func (b Bypasses) ActiveDomains(now time.Time) map[string]struct{} {
	out := make(map[string]struct{}, len(b))
	for domain := range b {
		if b.Active(domain, now) {
			out[domain] = struct{}{}
		}
	}
	return out
}

// Prune deletes entries expired at now and reports whether any were removed.
func (b Bypasses) Prune(now time.Time) bool {
	removed := false
	nowMS := Millis(now)
	for domain, expires := range b {
		if expires <= nowMS {
			delete(b, domain)
			removed = true
		}
	}
	return removed
}

// BypassLogEntry records one granted bypass.
type BypassLogEntry struct {
	Timestamp int64  `json:"timestamp"`
	Domain    string `json:"domain"`
	Target    string `json:"target"`
	Minutes   int    `json:"minutes"`
	ExpiresAt int64  `json:"expiresAt"`
}
