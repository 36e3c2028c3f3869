package ui

import "github.com/charmbracelet/lipgloss"

var (
	Primary   = lipgloss.Color("#FF6B35")
	Secondary = lipgloss.Color("#1E88E5")
	Success   = lipgloss.Color("#4CAF50")
	Warning   = lipgloss.Color("#FFB74D")
	Error     = lipgloss.Color("#F44336")
	Text      = lipgloss.Color("#E0E0E0")
	Muted     = lipgloss.Color("#90A4AE")
	PanelBg   = lipgloss.Color("#161B26")
	Track     = lipgloss.Color("#30363D")
)

var (
	HeaderStyle = lipgloss.NewStyle().
			Foreground(Text).
			Bold(true).
			Padding(0, 1).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(Primary)

	PanelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(Track).
			Padding(1, 2)

	TimeCodeStyle = lipgloss.NewStyle().
			Foreground(Primary).
			Bold(true)

	PlayingStyle = lipgloss.NewStyle().
			Foreground(Success).
			Bold(true)

	PausedStyle = lipgloss.NewStyle().
			Foreground(Warning).
			Bold(true)

	ScrubbingStyle = lipgloss.NewStyle().
			Foreground(Secondary).
			Bold(true)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(Error).
			Bold(true)

	MutedStyle = lipgloss.NewStyle().
			Foreground(Muted)

	SliderFillStyle = lipgloss.NewStyle().
			Foreground(Primary)

	SliderTrackStyle = lipgloss.NewStyle().
				Foreground(Track)
)
