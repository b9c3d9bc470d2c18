package rules

import (
	"strings"
	"sync"
)

// MockExec records commands instead of running them.
type MockExec struct {
	mu sync.Mutex

	RunCalls  [][]string
	RunErrors map[string]error
}

func (m *MockExec) Run(name string, args ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	call := append([]string{name}, args...)
	m.RunCalls = append(m.RunCalls, call)
	if err, ok := m.RunErrors[strings.Join(call, " ")]; ok {
		return err
	}
	return nil
}

// Calls returns a copy of the recorded commands.
func (m *MockExec) Calls() [][]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][]string(nil), m.RunCalls...)
}
