// Package rules installs redirect blocking rules into a rule host, one
// disjoint ID range per namespace.
package rules

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/fnv"
	"sort"
	"strings"

	"focus-blocks/internal/diaglog"
)

// ErrNamespaceExhausted is returned when a pattern set does not fit a range.
var ErrNamespaceExhausted = errors.New("rule namespace exhausted")

// DefaultBlockedPath is the redirect target when none is configured.
const DefaultBlockedPath = "/blocked"

// Engine maps pattern sets to installed rules. It does no locking; the
// caller serializes calls.
type Engine struct {
	host        Host
	blockedPath string
	logger      diaglog.Logger
}

// NewEngine creates an engine over host.
func NewEngine(host Host, blockedPath string, logger diaglog.Logger) *Engine {
	if strings.TrimSpace(blockedPath) == "" {
		blockedPath = DefaultBlockedPath
	}
	return &Engine{host: host, blockedPath: blockedPath, logger: diaglog.OrDiscard(logger)}
}

// SetBlockRules replaces the rules of ns with one rule per pattern when
// enable is true, or removes them all when enable is false. The host is
// updated in a single atomic call, and not at all when it already holds
// exactly the desired rules.
func (e *Engine) SetBlockRules(ctx context.Context, patterns []string, enable bool, ns Namespace) error {
	all, err := e.host.DynamicRules(ctx)
	if err != nil {
		e.logger.Errorf("rules: read installed %s rules: %v", ns, err)
		return fmt.Errorf("read installed rules: %w", err)
	}
	installed := InNamespace(all, ns)

	var desired []Rule
	if enable {
		desired, err = e.buildRules(patterns, ns)
		if err != nil {
			e.logger.Errorf("rules: build %s rules: %v", ns, err)
			return err
		}
	}

	if sameRules(installed, desired) {
		e.logger.Debugf("rules: %s already holds %d rules, nothing to do", ns, len(desired))
		return nil
	}

	if err := e.host.UpdateDynamicRules(ctx, ruleIDs(installed), desired); err != nil {
		e.logger.Errorf("rules: update %s (remove=%d add=%d): %v", ns, len(installed), len(desired), err)
		return fmt.Errorf("update %s rules: %w", ns, err)
	}
	e.logger.Infof("rules: %s now holds %d rules (removed %d)", ns, len(desired), len(installed))
	return nil
}

// Rules returns the installed rules of ns, ordered by ID.
func (e *Engine) Rules(ctx context.Context, ns Namespace) ([]Rule, error) {
	all, err := e.host.DynamicRules(ctx)
	if err != nil {
		return nil, err
	}
	return InNamespace(all, ns), nil
}

// AllRules returns every installed rule.
func (e *Engine) AllRules(ctx context.Context) ([]Rule, error) {
	all, err := e.host.DynamicRules(ctx)
	if err != nil {
		return nil, err
	}
	sortByID(all)
	return all, nil
}

func (e *Engine) buildRules(patterns []string, ns Namespace) ([]Rule, error) {
	unique := dedupe(patterns)
	ids, err := AllocateIDs(unique, ns)
	if err != nil {
		return nil, err
	}
	out := make([]Rule, len(unique))
	for i, pattern := range unique {
		out[i] = NewBlockRule(ids[i], pattern, e.blockedPath)
	}
	sortByID(out)
	return out, nil
}

// AllocateIDs derives one ID per pattern inside ns, returned in the order
// of patterns. The mapping depends only on the set of patterns: reordering
// the input yields the same ID for each pattern. Collisions probe linearly
// and wrap within the range, never leaving it. patterns must not repeat.
func AllocateIDs(patterns []string, ns Namespace) ([]int, error) {
	size := ns.Size()
	if len(patterns) > size {
		return nil, fmt.Errorf("%w: %d patterns for %s (capacity %d)", ErrNamespaceExhausted, len(patterns), ns, size)
	}
	sorted := append([]string(nil), patterns...)
	sort.Strings(sorted)
	seed := patternSetHash(sorted)

	byPattern := make(map[string]int, len(sorted))
	used := make(map[int]struct{}, len(sorted))
	for i, pattern := range sorted {
		offset := int(indexHash(seed, i) % uint32(size))
		for {
			if _, taken := used[offset]; !taken {
				break
			}
			offset = (offset + 1) % size
		}
		used[offset] = struct{}{}
		byPattern[pattern] = ns.Start + offset
	}

	ids := make([]int, len(patterns))
	for i, pattern := range patterns {
		ids[i] = byPattern[pattern]
	}
	return ids, nil
}

func patternSetHash(patterns []string) uint32 {
	h := fnv.New32a()
	for _, pattern := range patterns {
		_, _ = h.Write([]byte(pattern))
		_, _ = h.Write([]byte{0})
	}
	return h.Sum32()
}

func indexHash(seed uint32, index int) uint32 {
	var buf [12]byte
	binary.BigEndian.PutUint32(buf[:4], seed)
	binary.BigEndian.PutUint64(buf[4:], uint64(index))
	h := fnv.New32a()
	_, _ = h.Write(buf[:])
	return h.Sum32()
}

func dedupe(patterns []string) []string {
	out := make([]string, 0, len(patterns))
	seen := make(map[string]struct{}, len(patterns))
	for _, pattern := range patterns {
		pattern = strings.TrimSpace(pattern)
		if pattern == "" {
			continue
		}
		if _, ok := seen[pattern]; ok {
			continue
		}
		seen[pattern] = struct{}{}
		out = append(out, pattern)
	}
	return out
}

// sameRules compares two ID-ordered rule slices.
func sameRules(a, b []Rule) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].equal(b[i]) {
			return false
		}
	}
	return true
}
