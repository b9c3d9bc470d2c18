package auth

import (
	"fmt"
	"net"
	"net/netip"
	"strings"

	"go4.org/netipx"
)

// DefaultAllowedCIDRs admits loopback clients only.
var DefaultAllowedCIDRs = []string{"127.0.0.0/8", "::1/128"}

// Allowlist is the set of client networks allowed to reach the API.
type Allowlist struct {
	set *netipx.IPSet
}

// NewAllowlist builds an allowlist from CIDR or bare address strings.
func NewAllowlist(entries []string) (*Allowlist, error) {
	var builder netipx.IPSetBuilder
	for _, raw := range entries {
		entry := strings.TrimSpace(raw)
		if entry == "" {
			continue
		}
		if strings.Contains(entry, "/") {
			prefix, err := netip.ParsePrefix(entry)
			if err != nil {
				return nil, fmt.Errorf("invalid cidr %q: %w", entry, err)
			}
			builder.AddPrefix(prefix.Masked())
			continue
		}
		addr, err := netip.ParseAddr(entry)
		if err != nil {
			return nil, fmt.Errorf("invalid address %q: %w", entry, err)
		}
		builder.Add(addr)
	}
	set, err := builder.IPSet()
	if err != nil {
		return nil, err
	}
	return &Allowlist{set: set}, nil
}

// Contains reports whether addr is allowed. IPv4-mapped IPv6 addresses are
// matched as IPv4.
func (a *Allowlist) Contains(addr netip.Addr) bool {
	if a == nil || a.set == nil {
		return false
	}
	return a.set.Contains(addr.Unmap())
}

// ContainsRemote parses an http.Request RemoteAddr ("host:port").
func (a *Allowlist) ContainsRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	addr, err := netip.ParseAddr(strings.Trim(host, "[]"))
	if err != nil {
		return false
	}
	return a.Contains(addr)
}

// Prefixes returns the minimal prefix list covering the set.
func (a *Allowlist) Prefixes() []netip.Prefix {
	if a == nil || a.set == nil {
		return nil
	}
	return a.set.Prefixes()
}
