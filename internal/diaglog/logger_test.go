package diaglog

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
)

func newHookedLogger(t *testing.T, path string) (*logrus.Logger, *Manager) {
	t.Helper()
	manager := NewManager(path)
	t.Cleanup(func() { _ = manager.Close() })
	logger := New(io.Discard, "debug")
	logger.AddHook(manager)
	return logger, manager
}

func TestManagerWritesWhenEnabledAndLevelMatches(t *testing.T) {
	path := filepath.Join(t.TempDir(), "diagnostics.log")
	logger, manager := newHookedLogger(t, path)

	if err := manager.Configure(true, "debug"); err != nil {
		t.Fatalf("Configure failed: %v", err)
	}
	logger.Debugf("debug message %d", 42)
	logger.Infof("info message")

	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	text := string(content)
	if !strings.Contains(text, "[DEBUG] debug message 42") {
		t.Fatalf("expected debug line in log: %q", text)
	}
	if !strings.Contains(text, "[INFO] info message") {
		t.Fatalf("expected info line in log: %q", text)
	}
}

func TestManagerRespectsLevelFiltering(t *testing.T) {
	path := filepath.Join(t.TempDir(), "diagnostics.log")
	logger, manager := newHookedLogger(t, path)

	if err := manager.Configure(true, "warn"); err != nil {
		t.Fatalf("Configure failed: %v", err)
	}
	logger.Debugf("debug hidden")
	logger.Infof("info hidden")
	logger.Warnf("warn shown")

	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	text := string(content)
	if strings.Contains(text, "debug hidden") || strings.Contains(text, "info hidden") {
		t.Fatalf("unexpected filtered lines in log: %q", text)
	}
	if !strings.Contains(text, "[WARNING] warn shown") {
		t.Fatalf("expected warning line in log: %q", text)
	}
}

func TestManagerDisableStopsWriting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "diagnostics.log")
	logger, manager := newHookedLogger(t, path)

	if err := manager.Configure(true, "debug"); err != nil {
		t.Fatalf("Configure failed: %v", err)
	}
	logger.Infof("before disable")
	if err := manager.Configure(false, "debug"); err != nil {
		t.Fatalf("Configure disable failed: %v", err)
	}
	logger.Errorf("after disable")

	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	text := string(content)
	if !strings.Contains(text, "before disable") {
		t.Fatalf("expected line before disable in log: %q", text)
	}
	if strings.Contains(text, "after disable") {
		t.Fatalf("did not expect line after disable in log: %q", text)
	}
	if manager.Enabled() {
		t.Fatalf("expected manager disabled")
	}
}

func TestNewRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, "warning")
	logger.Infof("quiet")
	logger.Warnf("loud")
	if strings.Contains(buf.String(), "quiet") || !strings.Contains(buf.String(), "loud") {
		t.Fatalf("unexpected output %q", buf.String())
	}
	if ParseLevel("bogus") != logrus.InfoLevel {
		t.Fatalf("unknown level should fall back to info")
	}
}

func TestOrDiscard(t *testing.T) {
	if OrDiscard(nil) == nil {
		t.Fatalf("OrDiscard(nil) returned nil")
	}
	logger := New(io.Discard, "info")
	if OrDiscard(logger) != Logger(logger) {
		t.Fatalf("OrDiscard should return the given logger")
	}
}
