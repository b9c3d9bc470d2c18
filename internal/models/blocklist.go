package models

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"focus-blocks/internal/domains"
)

// ErrValidation marks malformed input rejected at the boundary.
var ErrValidation = errors.New("validation failed")

// DefaultBlockListName is used when a session names no list or an unknown one.
const DefaultBlockListName = "deep_work"

// BlockLists maps a list name to its ordered URL-match patterns.
type BlockLists map[string][]string

// DefaultBlockLists returns the lists seeded on first start.
func DefaultBlockLists() BlockLists {
	return BlockLists{
		"workday": {
			"*://*.instagram.com/*",
			"*://*.reddit.com/*",
			"*://*.twitter.com/*",
			"*://*.x.com/*",
		},
		DefaultBlockListName: {
			"*://*.youtube.com/*",
			"*://*.instagram.com/*",
			"*://*.reddit.com/*",
			"*://*.twitter.com/*",
			"*://*.x.com/*",
			"*://*.tiktok.com/*",
			"*://*.facebook.com/*",
		},
		"social_media": {
			"*://*.instagram.com/*",
			"*://*.twitter.com/*",
			"*://*.x.com/*",
			"*://*.facebook.com/*",
			"*://*.tiktok.com/*",
		},
	}
}

// Names returns the list names in sorted order.
func (b BlockLists) Names() []string {
	names := make([]string, 0, len(b))
	for name := range b {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Clone returns a deep copy.
func (b BlockLists) Clone() BlockLists {
	out := make(BlockLists, len(b))
	for name, patterns := range b {
		out[name] = append([]string(nil), patterns...)
	}
	return out
}

// Equal reports whether two pattern slices hold the same patterns in the same order.
func EqualPatterns(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// NormalizeBlockLists trims names and patterns, drops repeated patterns
// within a list and rejects patterns that cannot be installed.
func NormalizeBlockLists(lists BlockLists) (BlockLists, error) {
	if lists == nil {
		return nil, fmt.Errorf("%w: lists are required", ErrValidation)
	}
	out := make(BlockLists, len(lists))
	for rawName, patterns := range lists {
		name := strings.TrimSpace(rawName)
		if name == "" {
			return nil, fmt.Errorf("%w: list name is required", ErrValidation)
		}
		if _, dup := out[name]; dup {
			return nil, fmt.Errorf("%w: duplicate list name %q", ErrValidation, name)
		}
		normalized, err := NormalizePatterns(patterns)
		if err != nil {
			return nil, fmt.Errorf("list %q: %w", name, err)
		}
		out[name] = normalized
	}
	return out, nil
}

// NormalizePatterns validates a single list's patterns, keeping first occurrences.
func NormalizePatterns(patterns []string) ([]string, error) {
	out := make([]string, 0, len(patterns))
	seen := make(map[string]struct{}, len(patterns))
	for _, raw := range patterns {
		pattern := strings.TrimSpace(raw)
		if pattern == "" {
			continue
		}
		if strings.ContainsAny(pattern, " \t\r\n") {
			return nil, fmt.Errorf("%w: pattern %q contains whitespace", ErrValidation, pattern)
		}
		if domain := domains.Extract(pattern); domain != "" && domains.IsPublicSuffix(domain) {
			return nil, fmt.Errorf("%w: pattern %q would block the whole %q suffix", ErrValidation, pattern, domain)
		}
		if _, dup := seen[pattern]; dup {
			continue
		}
		seen[pattern] = struct{}{}
		out = append(out, pattern)
	}
	return out, nil
}
