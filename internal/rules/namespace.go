package rules

import (
	"fmt"
	"strings"
)

// Namespace is a reserved, contiguous rule-ID range [Start, End).
type Namespace struct {
	Name  string
	Start int
	End   int
}

var (
	Session  = Namespace{Name: "SESSION", Start: 10000, End: 20000}
	Schedule = Namespace{Name: "SCHEDULE", Start: 20000, End: 30000}
	Custom   = Namespace{Name: "CUSTOM", Start: 30000, End: 40000}
)

// Namespaces lists every namespace in ID order.
func Namespaces() []Namespace {
	return []Namespace{Session, Schedule, Custom}
}

// ParseNamespace resolves a namespace by case-insensitive name.
func ParseNamespace(raw string) (Namespace, error) {
	for _, ns := range Namespaces() {
		if strings.EqualFold(strings.TrimSpace(raw), ns.Name) {
			return ns, nil
		}
	}
	return Namespace{}, fmt.Errorf("unknown rule namespace %q", raw)
}

// Size is the number of IDs in the range.
func (n Namespace) Size() int {
	return n.End - n.Start
}

// Contains reports whether id falls inside the range.
func (n Namespace) Contains(id int) bool {
	return id >= n.Start && id < n.End
}

func (n Namespace) String() string {
	return n.Name
}
