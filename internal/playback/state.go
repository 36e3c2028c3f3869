package playback

import (
	"fmt"
	"strings"
	"time"

	"github.com/zsiec/slomo/internal/media"
)

// State is the derived view of playback: everything a shell needs to
// render the time code, slider and frame counter. All fields come from one
// position so they never disagree.
type State struct {
	AssetPath   string         `json:"asset_path"`
	Loaded      bool           `json:"loaded"`
	FrameRate   media.Rational `json:"frame_rate"`
	Position    time.Duration  `json:"position_ns"`
	Duration    time.Duration  `json:"duration_ns"`
	FrameIndex  int64          `json:"frame_index"`
	TotalFrames int64          `json:"total_frames"`
	TimeCode    string         `json:"time_code"`
	// SliderPosition is Position / Duration in [0, 1].
	SliderPosition float64 `json:"slider_position"`
	Playing        bool    `json:"playing"`
	// Rate is the multiplier applied when playing.
	Rate      float64 `json:"rate"`
	Scrubbing bool    `json:"scrubbing"`
	AtEnd     bool    `json:"at_end"`
}

// FrameCounter renders "frame / total" with one-based numbering.
func (s State) FrameCounter() string {
	if !s.Loaded {
		return "-/-"
	}
	return fmt.Sprintf("%d/%d", s.FrameIndex+1, s.TotalFrames)
}

// EndBehavior decides what happens when playback reaches the end.
type EndBehavior string

const (
	// EndHold pauses on the last frame.
	EndHold EndBehavior = "hold"
	// EndRewind pauses and returns to the first frame.
	EndRewind EndBehavior = "rewind"
)

// ParseEndBehavior parses "hold" or "rewind".
func ParseEndBehavior(s string) (EndBehavior, error) {
	switch b := EndBehavior(strings.ToLower(strings.TrimSpace(s))); b {
	case EndHold, EndRewind:
		return b, nil
	case "":
		return EndHold, nil
	default:
		return "", fmt.Errorf("unknown end behavior %q", s)
	}
}

// EventType identifies a playback event.
type EventType string

const (
	EventAssetLoaded EventType = "asset_loaded"
	EventEndOfItem   EventType = "end_of_item"
)

// Event is delivered on Controller.Events.
type Event struct {
	Type  EventType
	State State
}
