// Package ui is the terminal front end for frame-accurate playback.
package ui

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/zsiec/slomo/internal/playback"
)

const (
	// scrubStep is the slider fraction moved by one scrub key press.
	scrubStep = 0.02
	// scrubSettle ends a scrub gesture after this long without a scrub key.
	scrubSettle = 300 * time.Millisecond
	bigStep     = 10
	minSlider   = 20
)

// Rates offered by the +/- keys.
var Rates = []float64{0.125, 0.25, 0.5, 1, 2}

// Controller is the part of playback.Controller the player drives.
type Controller interface {
	TogglePlayPause() error
	StepFrame(delta int) error
	BeginScrubbing() error
	Scrub(fraction float64) error
	EndScrubbing() error
	SetRate(multiplier float64) error
	Snapshot() playback.State
	Updates() <-chan playback.State
}

type stateMsg playback.State

type scrubSettledMsg struct{ gen int }

// PlayerModel is the bubbletea model for `slomo play`.
type PlayerModel struct {
	ctrl  Controller
	state playback.State
	err   error
	width int

	scrubbing bool
	scrubPos  float64
	scrubGen  int
}

func NewPlayerModel(ctrl Controller) *PlayerModel {
	return &PlayerModel{ctrl: ctrl, state: ctrl.Snapshot(), width: 80}
}

func waitForState(updates <-chan playback.State) tea.Cmd {
	return func() tea.Msg {
		s, ok := <-updates
		if !ok {
			return nil
		}
		return stateMsg(s)
	}
}

func settleScrub(gen int) tea.Cmd {
	return tea.Tick(scrubSettle, func(time.Time) tea.Msg {
		return scrubSettledMsg{gen: gen}
	})
}

func (m *PlayerModel) Init() tea.Cmd {
	return waitForState(m.ctrl.Updates())
}

func (m *PlayerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case stateMsg:
		m.state = playback.State(msg)
		return m, waitForState(m.ctrl.Updates())

	case scrubSettledMsg:
		if msg.gen == m.scrubGen && m.scrubbing {
			m.scrubbing = false
			m.setErr(m.ctrl.EndScrubbing())
			m.state = m.ctrl.Snapshot()
		}
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m *PlayerModel) setErr(err error) {
	m.err = err
}

func (m *PlayerModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch msg.String() {
	case "q", "ctrl+c", "esc":
		return m, tea.Quit
	case " ", "k":
		m.setErr(m.ctrl.TogglePlayPause())
	case "right", "l":
		m.setErr(m.ctrl.StepFrame(1))
	case "left", "h":
		m.setErr(m.ctrl.StepFrame(-1))
	case "shift+right", "L":
		m.setErr(m.ctrl.StepFrame(bigStep))
	case "shift+left", "H":
		m.setErr(m.ctrl.StepFrame(-bigStep))
	case "]":
		cmd = m.scrub(scrubStep)
	case "[":
		cmd = m.scrub(-scrubStep)
	case "+", "=":
		m.setErr(m.ctrl.SetRate(nextRate(m.state.Rate, 1)))
	case "-", "_":
		m.setErr(m.ctrl.SetRate(nextRate(m.state.Rate, -1)))
	case "0":
		m.setErr(m.ctrl.SetRate(0))
	default:
		return m, nil
	}
	m.state = m.ctrl.Snapshot()
	return m, cmd
}

// scrub moves the slider and restarts the settle timer. The gesture ends
// with one exact seek once keys stop arriving.
func (m *PlayerModel) scrub(delta float64) tea.Cmd {
	if !m.scrubbing {
		if err := m.ctrl.BeginScrubbing(); err != nil {
			m.setErr(err)
			return nil
		}
		m.scrubbing = true
		m.scrubPos = m.state.SliderPosition
	}
	m.scrubPos = clamp01(m.scrubPos + delta)
	m.setErr(m.ctrl.Scrub(m.scrubPos))
	m.scrubGen++
	return settleScrub(m.scrubGen)
}

func clamp01(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}

// nextRate returns the neighbouring entry of Rates in direction dir.
func nextRate(current float64, dir int) float64 {
	i := 0
	for j, r := range Rates {
		if r <= current {
			i = j
		}
	}
	i += dir
	if i < 0 {
		i = 0
	}
	if i >= len(Rates) {
		i = len(Rates) - 1
	}
	return Rates[i]
}

func (m *PlayerModel) View() string {
	s := m.state
	if !s.Loaded {
		return PanelStyle.Render(MutedStyle.Render("No recording loaded")) + "\n"
	}

	header := HeaderStyle.Render(fmt.Sprintf("%s  %s fps", filepath.Base(s.AssetPath), s.FrameRate))

	body := lipgloss.JoinVertical(lipgloss.Left,
		TimeCodeStyle.Render(s.TimeCode)+"   "+MutedStyle.Render("frame "+s.FrameCounter()),
		"",
		renderSlider(s.SliderPosition, m.sliderWidth()),
		"",
		m.statusLine(),
	)

	help := MutedStyle.Render("space play/pause  ←/→ step  shift+←/→ step 10  [ ] scrub  +/- rate  q quit")

	lines := []string{header, PanelStyle.Render(body), help}
	if m.err != nil {
		lines = append(lines, ErrorStyle.Render(m.err.Error()))
	}
	return strings.Join(lines, "\n") + "\n"
}

func (m *PlayerModel) sliderWidth() int {
	w := m.width - 10
	if w < minSlider {
		return minSlider
	}
	return w
}

func (m *PlayerModel) statusLine() string {
	s := m.state
	var mode string
	switch {
	case s.Scrubbing:
		mode = ScrubbingStyle.Render("SCRUBBING")
	case s.Playing:
		mode = PlayingStyle.Render("PLAYING")
	case s.AtEnd:
		mode = PausedStyle.Render("END")
	default:
		mode = PausedStyle.Render("PAUSED")
	}

	shown := ""
	if fps := s.FrameRate.Float64(); fps > 0 && s.Rate > 0 {
		shown = fmt.Sprintf("  %.0f frames/s", fps*s.Rate)
	}
	return fmt.Sprintf("%s  rate %gx  %s / %s%s",
		mode, s.Rate, formatClock(s.Position), formatClock(s.Duration), MutedStyle.Render(shown))
}

func renderSlider(pos float64, width int) string {
	filled := int(clamp01(pos) * float64(width))
	if filled > width {
		filled = width
	}
	return SliderFillStyle.Render(strings.Repeat("━", filled)) +
		SliderTrackStyle.Render(strings.Repeat("─", width-filled))
}

func formatClock(d time.Duration) string {
	ms := d.Milliseconds()
	return fmt.Sprintf("%d:%02d.%03d", ms/60000, (ms/1000)%60, ms%1000)
}
