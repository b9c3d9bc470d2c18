// Package diaglog builds the daemon logger and the optional diagnostics file.
package diaglog

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Logger is the logging surface components depend on.
// *logrus.Logger and *logrus.Entry satisfy it.
type Logger interface {
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
}

// New returns a text logger writing to out at the given level.
func New(out io.Writer, levelRaw string) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(out)
	logger.SetLevel(ParseLevel(levelRaw))
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	return logger
}

// Discard returns a logger that drops everything.
func Discard() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

// OrDiscard returns l, or a discarding logger when l is nil.
func OrDiscard(l Logger) Logger {
	if l == nil {
		return Discard()
	}
	return l
}

// ParseLevel maps a config level string to a logrus level. Unknown values
// fall back to info.
func ParseLevel(raw string) logrus.Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return logrus.DebugLevel
	case "warn", "warning":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	default:
		return logrus.InfoLevel
	}
}

// Manager mirrors log entries into a persistent diagnostics file. It is
// installed as a logrus hook and can be toggled at runtime.
type Manager struct {
	path    string
	mu      sync.RWMutex
	enabled bool
	level   logrus.Level
	file    *os.File
}

// NewManager creates a diagnostics hook writing to path when enabled.
func NewManager(path string) *Manager {
	return &Manager{
		path:  strings.TrimSpace(path),
		level: logrus.InfoLevel,
	}
}

// Configure updates runtime logging controls.
func (m *Manager) Configure(enabled bool, levelRaw string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.level = ParseLevel(levelRaw)
	m.enabled = enabled && m.path != ""
	if !m.enabled {
		if m.file != nil {
			_ = m.file.Close()
			m.file = nil
		}
		return nil
	}
	return m.ensureFileLocked()
}

// Close closes the diagnostics file descriptor.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.file == nil {
		return nil
	}
	err := m.file.Close()
	m.file = nil
	return err
}

// Enabled returns whether diagnostics logging is currently enabled.
func (m *Manager) Enabled() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.enabled
}

// Levels implements logrus.Hook. Filtering against the configured level
// happens in Fire so Configure can change it later.
func (m *Manager) Levels() []logrus.Level {
	return logrus.AllLevels
}

// Fire implements logrus.Hook.
func (m *Manager) Fire(entry *logrus.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.enabled || entry.Level > m.level {
		return nil
	}
	if err := m.ensureFileLocked(); err != nil || m.file == nil {
		return nil
	}
	line := fmt.Sprintf(
		"%s [%s] %s\n",
		entry.Time.UTC().Format(time.RFC3339),
		strings.ToUpper(entry.Level.String()),
		entry.Message,
	)
	_, _ = m.file.WriteString(line)
	return nil
}

func (m *Manager) ensureFileLocked() error {
	if m.path == "" {
		return nil
	}
	if m.file != nil {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(m.path), 0o755); err != nil {
		return err
	}
	file, err := os.OpenFile(m.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	m.file = file
	return nil
}
