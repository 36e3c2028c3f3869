package ui

import (
	"errors"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zsiec/slomo/internal/media"
	"github.com/zsiec/slomo/internal/playback"
)

type fakeController struct {
	state   playback.State
	updates chan playback.State
	calls   []string
	steps   []int
	scrubs  []float64
	rates   []float64
	err     error
}

func newFakeController() *fakeController {
	return &fakeController{
		state: playback.State{
			AssetPath:   "/rec/clip.flv",
			Loaded:      true,
			FrameRate:   media.FrameRate120,
			Duration:    2 * time.Second,
			TotalFrames: 240,
			TimeCode:    "00:00:00:00",
			Rate:        1,
		},
		updates: make(chan playback.State, 1),
	}
}

func (f *fakeController) TogglePlayPause() error {
	f.calls = append(f.calls, "toggle")
	f.state.Playing = !f.state.Playing
	return f.err
}

func (f *fakeController) StepFrame(delta int) error {
	f.calls = append(f.calls, "step")
	f.steps = append(f.steps, delta)
	return f.err
}

func (f *fakeController) BeginScrubbing() error {
	f.calls = append(f.calls, "begin")
	f.state.Scrubbing = true
	return f.err
}

func (f *fakeController) Scrub(fraction float64) error {
	f.calls = append(f.calls, "scrub")
	f.scrubs = append(f.scrubs, fraction)
	f.state.SliderPosition = fraction
	return nil
}

func (f *fakeController) EndScrubbing() error {
	f.calls = append(f.calls, "end")
	f.state.Scrubbing = false
	return nil
}

func (f *fakeController) SetRate(multiplier float64) error {
	f.calls = append(f.calls, "rate")
	f.rates = append(f.rates, multiplier)
	if multiplier > 0 {
		f.state.Rate = multiplier
	}
	return f.err
}

func (f *fakeController) Snapshot() playback.State      { return f.state }
func (f *fakeController) Updates() <-chan playback.State { return f.updates }

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func press(t *testing.T, m *PlayerModel, key tea.KeyMsg) tea.Cmd {
	t.Helper()
	model, cmd := m.Update(key)
	require.Same(t, m, model)
	return cmd
}

func TestPlayerModel_Keys(t *testing.T) {
	ctrl := newFakeController()
	m := NewPlayerModel(ctrl)

	press(t, m, tea.KeyMsg{Type: tea.KeySpace})
	assert.True(t, m.state.Playing)

	press(t, m, tea.KeyMsg{Type: tea.KeyRight})
	press(t, m, tea.KeyMsg{Type: tea.KeyLeft})
	press(t, m, tea.KeyMsg{Type: tea.KeyShiftRight})
	press(t, m, runes("H"))
	assert.Equal(t, []int{1, -1, 10, -10}, ctrl.steps)

	press(t, m, runes("+"))
	assert.Equal(t, 2.0, m.state.Rate)
	press(t, m, runes("-"))
	press(t, m, runes("-"))
	press(t, m, runes("0"))
	assert.Equal(t, []float64{2, 1, 0.5, 0}, ctrl.rates)

	before := len(ctrl.calls)
	press(t, m, runes("x"))
	assert.Len(t, ctrl.calls, before)
}

func TestPlayerModel_Quit(t *testing.T) {
	m := NewPlayerModel(newFakeController())
	cmd := press(t, m, runes("q"))
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
}

func TestPlayerModel_ScrubGesture(t *testing.T) {
	ctrl := newFakeController()
	ctrl.state.SliderPosition = 0.5
	m := NewPlayerModel(ctrl)

	press(t, m, runes("]"))
	press(t, m, runes("]"))
	press(t, m, runes("["))
	assert.Equal(t, []string{"begin", "scrub", "scrub", "scrub"}, ctrl.calls)
	require.Len(t, ctrl.scrubs, 3)
	assert.InDelta(t, 0.52, ctrl.scrubs[0], 1e-9)
	assert.InDelta(t, 0.54, ctrl.scrubs[1], 1e-9)
	assert.InDelta(t, 0.52, ctrl.scrubs[2], 1e-9)

	// only the latest settle timer ends the gesture
	m.Update(scrubSettledMsg{gen: 1})
	assert.NotContains(t, ctrl.calls, "end")

	m.Update(scrubSettledMsg{gen: 3})
	assert.Equal(t, "end", ctrl.calls[len(ctrl.calls)-1])
	assert.False(t, m.scrubbing)
	assert.False(t, m.state.Scrubbing)

	m.Update(scrubSettledMsg{gen: 3})
	assert.Len(t, ctrl.calls, 5)
}

func TestPlayerModel_ScrubClamps(t *testing.T) {
	ctrl := newFakeController()
	ctrl.state.SliderPosition = 0.01
	m := NewPlayerModel(ctrl)

	press(t, m, runes("["))
	press(t, m, runes("["))
	assert.Equal(t, []float64{0, 0}, ctrl.scrubs)
}

func TestPlayerModel_StateUpdates(t *testing.T) {
	ctrl := newFakeController()
	m := NewPlayerModel(ctrl)
	require.NotNil(t, m.Init())

	next := ctrl.state
	next.FrameIndex = 120
	next.TimeCode = "00:00:01:00"
	next.SliderPosition = 0.5
	_, cmd := m.Update(stateMsg(next))
	require.NotNil(t, cmd)
	assert.Equal(t, "00:00:01:00", m.state.TimeCode)

	ctrl.updates <- next
	msg := cmd()
	assert.Equal(t, stateMsg(next), msg)
}

func TestPlayerModel_View(t *testing.T) {
	ctrl := newFakeController()
	ctrl.state.FrameIndex = 120
	ctrl.state.TimeCode = "00:00:01:00"
	ctrl.state.SliderPosition = 0.5
	ctrl.state.Position = time.Second
	m := NewPlayerModel(ctrl)
	m.Update(tea.WindowSizeMsg{Width: 60, Height: 20})

	view := m.View()
	assert.Contains(t, view, "clip.flv")
	assert.Contains(t, view, "00:00:01:00")
	assert.Contains(t, view, "121/240")
	assert.Contains(t, view, "PAUSED")
	assert.Contains(t, view, "0:01.000 / 0:02.000")
	assert.Contains(t, view, "120 frames/s")

	ctrl.err = errors.New("boom")
	press(t, m, tea.KeyMsg{Type: tea.KeySpace})
	view = m.View()
	assert.Contains(t, view, "PLAYING")
	assert.Contains(t, view, "boom")
}

func TestPlayerModel_ViewNotLoaded(t *testing.T) {
	ctrl := newFakeController()
	ctrl.state = playback.State{}
	assert.Contains(t, NewPlayerModel(ctrl).View(), "No recording loaded")
}

func TestNextRate(t *testing.T) {
	tests := []struct {
		current float64
		dir     int
		want    float64
	}{
		{1, 1, 2},
		{2, 1, 2},
		{1, -1, 0.5},
		{0.125, -1, 0.125},
		{0.3, 1, 0.5},
		{0, 1, 0.25},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, nextRate(tt.current, tt.dir), "current=%v dir=%d", tt.current, tt.dir)
	}
}

func TestRenderSlider(t *testing.T) {
	assert.Equal(t, "━━━━━─────", renderSlider(0.5, 10))
	assert.Equal(t, "──────────", renderSlider(-1, 10))
	assert.Equal(t, "━━━━━━━━━━", renderSlider(2, 10))
}
