// Package popup is the terminal stand-in for the extension popup: it shows
// the session state with a live countdown and starts or ends sessions.
package popup

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"focus-blocks/internal/client"
	"focus-blocks/internal/models"
)

// Key bindings.
const (
	KeyQuit       = "q"
	KeyCtrlC      = "ctrl+c"
	KeyQuickStart = "s"
	KeyDeepStart  = "d"
	KeyEnd        = "e"
)

const pollInterval = time.Second

// Backend is the part of the daemon client the popup uses.
type Backend interface {
	Status(ctx context.Context) (client.Status, error)
	StartSession(ctx context.Context, minutes int, list string) (time.Time, models.Mode, error)
	EndSession(ctx context.Context) error
}

// Options configure the popup.
type Options struct {
	QuickMinutes int
	DeepMinutes  int
	BlockList    string
}

type statusMsg struct{ status client.Status }

type statusErrMsg struct{ err error }

type actionDoneMsg struct{ err error }

type tickMsg time.Time

// Model is the bubbletea model.
type Model struct {
	backend Backend
	opts    Options
	now     func() time.Time

	status    client.Status
	connected bool
	busy      bool
	errText   string
}

// New creates the popup model. Zero durations use the default settings.
func New(backend Backend, opts Options) Model {
	defaults := models.DefaultSettings()
	if opts.QuickMinutes <= 0 {
		opts.QuickMinutes = defaults.QuickFocusDuration
	}
	if opts.DeepMinutes <= 0 {
		opts.DeepMinutes = defaults.DeepFocusDuration
	}
	return Model{backend: backend, opts: opts, now: time.Now}
}

// Run shows the popup until the user quits.
func Run(backend Backend, opts Options) error {
	_, err := tea.NewProgram(New(backend, opts)).Run()
	return err
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.fetchStatus(), tick())
}

func tick() tea.Cmd {
	return tea.Tick(pollInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m Model) fetchStatus() tea.Cmd {
	backend := m.backend
	return func() tea.Msg {
		status, err := backend.Status(context.Background())
		if err != nil {
			return statusErrMsg{err: err}
		}
		return statusMsg{status: status}
	}
}

func (m Model) start(minutes int) tea.Cmd {
	backend, list := m.backend, m.opts.BlockList
	return func() tea.Msg {
		_, _, err := backend.StartSession(context.Background(), minutes, list)
		return actionDoneMsg{err: err}
	}
}

func (m Model) end() tea.Cmd {
	backend := m.backend
	return func() tea.Msg {
		return actionDoneMsg{err: backend.EndSession(context.Background())}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tickMsg:
		return m, tea.Batch(m.fetchStatus(), tick())

	case statusMsg:
		m.status = msg.status
		m.connected = true
		if !m.busy {
			m.errText = ""
		}
		return m, nil

	case statusErrMsg:
		m.connected = false
		m.errText = msg.err.Error()
		return m, nil

	case actionDoneMsg:
		m.busy = false
		if msg.err != nil {
			m.errText = msg.err.Error()
		} else {
			m.errText = ""
		}
		return m, m.fetchStatus()
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case KeyQuit, KeyCtrlC:
		return m, tea.Quit
	}
	if m.busy {
		return m, nil
	}
	switch msg.String() {
	case KeyQuickStart:
		m.busy = true
		return m, m.start(m.opts.QuickMinutes)
	case KeyDeepStart:
		m.busy = true
		return m, m.start(m.opts.DeepMinutes)
	case KeyEnd:
		if !m.status.Active {
			return m, nil
		}
		m.busy = true
		return m, m.end()
	}
	return m, nil
}

func (m Model) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("focus-blocks"))
	b.WriteString("\n\n")

	switch {
	case !m.connected && m.errText != "":
		b.WriteString(errorStyle.Render("daemon unreachable: " + m.errText))
		b.WriteString("\n")
	case !m.status.Active:
		b.WriteString(idleStyle.Render("Not focusing"))
		b.WriteString("\n")
	default:
		label := quickStyle.Render("Quick focus")
		if m.status.Mode == models.ModeDeep {
			label = deepStyle.Render("Deep focus")
		}
		b.WriteString(label)
		if m.status.BlockList != "" {
			b.WriteString(idleStyle.Render(" · " + m.status.BlockList))
		}
		b.WriteString("\n")
		b.WriteString(countdownStyle.Render(FormatCountdown(m.status.ActiveUntil.Sub(m.now()))))
		b.WriteString("\n")
	}

	var active []string
	for _, sched := range m.status.Schedules {
		if sched.Active {
			active = append(active, sched.Name)
		}
	}
	if len(active) > 0 {
		b.WriteString(scheduleActiveStyle.Render("Schedules blocking: " + strings.Join(active, ", ")))
		b.WriteString("\n")
	}
	if m.connected && m.errText != "" {
		b.WriteString(errorStyle.Render(m.errText))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(helpStyle.Render(fmt.Sprintf("s quick %dm · d deep %dm · e end · q quit", m.opts.QuickMinutes, m.opts.DeepMinutes)))
	b.WriteString("\n")
	return b.String()
}

// FormatCountdown renders d as H:MM:SS or MM:SS, never negative.
func FormatCountdown(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int(d.Round(time.Second) / time.Second)
	hours, minutes, seconds := total/3600, (total%3600)/60, total%60
	if hours > 0 {
		return fmt.Sprintf("%d:%02d:%02d", hours, minutes, seconds)
	}
	return fmt.Sprintf("%02d:%02d", minutes, seconds)
}
