package rules

import (
	"net/url"
	"sort"
)

// DefaultPriority pre-empts rules installed at the default priority of 1.
const DefaultPriority = 100

// Rule is one installed network blocking rule.
type Rule struct {
	ID        int       `json:"id"`
	Priority  int       `json:"priority"`
	Action    Action    `json:"action"`
	Condition Condition `json:"condition"`
}

type Action struct {
	Type     string    `json:"type"`
	Redirect *Redirect `json:"redirect,omitempty"`
}

type Redirect struct {
	ExtensionPath string `json:"extensionPath"`
}

type Condition struct {
	URLFilter     string   `json:"urlFilter"`
	ResourceTypes []string `json:"resourceTypes"`
}

// NewBlockRule builds a rule redirecting top-level navigations matching
// pattern to blockedPath, carrying the pattern as the from parameter.
func NewBlockRule(id int, pattern, blockedPath string) Rule {
	return Rule{
		ID:       id,
		Priority: DefaultPriority,
		Action: Action{
			Type:     "redirect",
			Redirect: &Redirect{ExtensionPath: blockedPath + "?from=" + url.QueryEscape(pattern)},
		},
		Condition: Condition{
			URLFilter:     pattern,
			ResourceTypes: []string{"main_frame"},
		},
	}
}

// Pattern returns the URL filter the rule was built from.
func (r Rule) Pattern() string {
	return r.Condition.URLFilter
}

func (r Rule) equal(other Rule) bool {
	if r.ID != other.ID || r.Priority != other.Priority || r.Action.Type != other.Action.Type {
		return false
	}
	if (r.Action.Redirect == nil) != (other.Action.Redirect == nil) {
		return false
	}
	if r.Action.Redirect != nil && r.Action.Redirect.ExtensionPath != other.Action.Redirect.ExtensionPath {
		return false
	}
	if r.Condition.URLFilter != other.Condition.URLFilter || len(r.Condition.ResourceTypes) != len(other.Condition.ResourceTypes) {
		return false
	}
	for i := range r.Condition.ResourceTypes {
		if r.Condition.ResourceTypes[i] != other.Condition.ResourceTypes[i] {
			return false
		}
	}
	return true
}

// InNamespace returns the rules whose ID is in ns, ordered by ID.
func InNamespace(all []Rule, ns Namespace) []Rule {
	out := make([]Rule, 0, len(all))
	for _, rule := range all {
		if ns.Contains(rule.ID) {
			out = append(out, rule)
		}
	}
	sortByID(out)
	return out
}

func sortByID(rules []Rule) {
	sort.Slice(rules, func(i, j int) bool { return rules[i].ID < rules[j].ID })
}

func ruleIDs(rules []Rule) []int {
	ids := make([]int, len(rules))
	for i, rule := range rules {
		ids[i] = rule.ID
	}
	return ids
}
