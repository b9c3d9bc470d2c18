package rules

import (
	"context"
	"fmt"
	"sync"
)

// Host is the network-rule subsystem rules are installed into.
// UpdateDynamicRules must apply the removal and the addition atomically.
type Host interface {
	DynamicRules(ctx context.Context) ([]Rule, error)
	UpdateDynamicRules(ctx context.Context, removeIDs []int, add []Rule) error
}

// MemoryHost is an in-memory Host with failure injection for tests.
type MemoryHost struct {
	mu    sync.Mutex
	rules map[int]Rule

	// UpdateErr, when set, fails every update without changing state.
	UpdateErr error
	// ReadErr, when set, fails every read.
	ReadErr error

	Updates int
}

// NewMemoryHost returns an empty host.
func NewMemoryHost() *MemoryHost {
	return &MemoryHost{rules: make(map[int]Rule)}
}

func (h *MemoryHost) DynamicRules(ctx context.Context) ([]Rule, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.ReadErr != nil {
		return nil, h.ReadErr
	}
	out := make([]Rule, 0, len(h.rules))
	for _, rule := range h.rules {
		out = append(out, rule)
	}
	sortByID(out)
	return out, nil
}

func (h *MemoryHost) UpdateDynamicRules(ctx context.Context, removeIDs []int, add []Rule) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.UpdateErr != nil {
		return h.UpdateErr
	}
	next := make(map[int]Rule, len(h.rules)+len(add))
	for id, rule := range h.rules {
		next[id] = rule
	}
	for _, id := range removeIDs {
		delete(next, id)
	}
	for _, rule := range add {
		if _, exists := next[rule.ID]; exists {
			return fmt.Errorf("rule id %d already installed", rule.ID)
		}
		next[rule.ID] = rule
	}
	h.rules = next
	h.Updates++
	return nil
}

// Patterns returns the URL filters installed in ns, ordered by rule ID.
func (h *MemoryHost) Patterns(ns Namespace) []string {
	all, _ := h.DynamicRules(context.Background())
	installed := InNamespace(all, ns)
	out := make([]string, len(installed))
	for i, rule := range installed {
		out[i] = rule.Pattern()
	}
	return out
}
