// Package systemd installs the focusblocks daemon as a systemd user service.
package systemd

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	homedir "github.com/mitchellh/go-homedir"
)

// UnitName is the daemon's unit.
const UnitName = "focusblocks.service"

// CommandRunner abstracts process execution for testability.
type CommandRunner interface {
	Run(name string, args ...string) error
	Output(name string, args ...string) ([]byte, error)
}

type execRunner struct{}

func (execRunner) Run(name string, args ...string) error {
	cmd := exec.Command(name, args...)
	return cmd.Run()
}

func (execRunner) Output(name string, args ...string) ([]byte, error) {
	cmd := exec.Command(name, args...)
	return cmd.CombinedOutput()
}

// Manager writes the unit file and drives `systemctl --user`.
type Manager struct {
	unitsDir string
	runner   CommandRunner
}

// NewManager creates a manager for the invoking user's unit directory.
func NewManager() (*Manager, error) {
	home, err := homedir.Dir()
	if err != nil {
		return nil, err
	}
	return &Manager{
		unitsDir: filepath.Join(home, ".config", "systemd", "user"),
		runner:   execRunner{},
	}, nil
}

// NewManagerWithDeps creates a manager with a custom unit directory and command runner.
func NewManagerWithDeps(unitsDir string, runner CommandRunner) *Manager {
	if runner == nil {
		runner = execRunner{}
	}
	return &Manager{unitsDir: unitsDir, runner: runner}
}

// UnitPath is where Install writes the unit.
func (m *Manager) UnitPath() string {
	return filepath.Join(m.unitsDir, UnitName)
}

// UnitContent renders the unit running `<binary> [--config <file>] serve`.
func UnitContent(binaryPath, configPath string) string {
	execStart := quoteArg(binaryPath)
	if strings.TrimSpace(configPath) != "" {
		execStart += " --config " + quoteArg(configPath)
	}
	execStart += " serve"
	return fmt.Sprintf(`[Unit]
Description=focusblocks focus session daemon
After=network.target

[Service]
Type=simple
ExecStart=%s
Restart=on-failure
RestartSec=5

[Install]
WantedBy=default.target
`, execStart)
}

// Install writes the unit, reloads systemd and enables the service now.
func (m *Manager) Install(binaryPath, configPath string) error {
	if strings.TrimSpace(binaryPath) == "" {
		return fmt.Errorf("binary path is required")
	}
	if err := os.MkdirAll(m.unitsDir, 0o755); err != nil {
		return err
	}
	if err := writeFileAtomic(m.UnitPath(), []byte(UnitContent(binaryPath, configPath)), 0o644); err != nil {
		return err
	}
	if err := m.systemctl("daemon-reload"); err != nil {
		return err
	}
	return m.systemctl("enable", "--now", UnitName)
}

// Uninstall stops and disables the service and removes its unit. A service
// that is already stopped or missing is not an error.
func (m *Manager) Uninstall() error {
	_ = m.systemctl("disable", "--now", UnitName)
	if err := os.Remove(m.UnitPath()); err != nil && !os.IsNotExist(err) {
		return err
	}
	return m.systemctl("daemon-reload")
}

// Restart runs `systemctl --user restart`.
func (m *Manager) Restart() error {
	return m.systemctl("restart", UnitName)
}

// Status runs `systemctl --user is-active` and returns the resulting state string.
func (m *Manager) Status() (string, error) {
	out, runErr := m.runner.Output("systemctl", "--user", "is-active", UnitName)
	status := strings.TrimSpace(string(out))
	if runErr != nil {
		return status, fmt.Errorf("systemctl is-active %s: %w", UnitName, runErr)
	}
	return status, nil
}

func (m *Manager) systemctl(args ...string) error {
	full := append([]string{"--user"}, args...)
	if err := m.runner.Run("systemctl", full...); err != nil {
		return fmt.Errorf("systemctl %s: %w", strings.Join(args, " "), err)
	}
	return nil
}

// quoteArg quotes a path for ExecStart when it contains whitespace.
func quoteArg(arg string) string {
	if strings.ContainsAny(arg, " \t\"") {
		return `"` + strings.ReplaceAll(arg, `"`, `\"`) + `"`
	}
	return arg
}

func writeFileAtomic(path string, content []byte, mode os.FileMode) error {
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, content, mode); err != nil {
		return err
	}
	if err := os.Chmod(tmpPath, mode); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	return nil
}
