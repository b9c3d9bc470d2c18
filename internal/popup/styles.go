package popup

import "github.com/charmbracelet/lipgloss"

var (
	colorRed    = lipgloss.Color("#FF5F5F")
	colorGreen  = lipgloss.Color("#5FD787")
	colorYellow = lipgloss.Color("#FFD75F")
	colorCyan   = lipgloss.Color("#5FD7FF")
	colorGray   = lipgloss.Color("#767676")
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorCyan)

	idleStyle = lipgloss.NewStyle().
			Foreground(colorGray)

	quickStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorYellow)

	deepStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorRed)

	countdownStyle = lipgloss.NewStyle().
			Bold(true).
			Padding(0, 1).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorCyan)

	scheduleActiveStyle = lipgloss.NewStyle().
				Foreground(colorGreen)

	helpStyle = lipgloss.NewStyle().
			Foreground(colorGray)

	errorStyle = lipgloss.NewStyle().
			Foreground(colorRed)
)
