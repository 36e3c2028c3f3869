// Package library catalogues finished recordings so they can be listed and
// opened later by id.
package library

import (
	"time"

	"github.com/zsiec/slomo/internal/capture"
	"github.com/zsiec/slomo/internal/media"
)

// Status is the outcome of the session that produced a recording.
type Status string

const (
	StatusComplete Status = "complete"
	// StatusFailed recordings ended with a writer error; the file holds the
	// frames written before the failure.
	StatusFailed Status = "failed"
)

// Recording is one catalogued movie file.
type Recording struct {
	ID          string           `json:"id"`
	Path        string           `json:"path"`
	FrameRate   media.Rational   `json:"frame_rate"`
	FPS         float64          `json:"fps"`
	Resolution  media.Resolution `json:"resolution"`
	PixelFormat string           `json:"pixel_format"`
	Frames      int              `json:"frames"`
	Dropped     int              `json:"dropped"`
	// CaptureElapsed is the real time between the first and last frame.
	CaptureElapsed time.Duration `json:"capture_elapsed_ns"`
	// Duration is the playback length at the native frame rate.
	Duration  time.Duration `json:"duration_ns"`
	StartedAt time.Time     `json:"started_at"`
	IndexedAt time.Time     `json:"indexed_at"`
	Status    Status        `json:"status"`
	Error     string        `json:"error,omitempty"`
}

// FromResult builds the catalogue entry for a finished session.
func FromResult(res *capture.RecordingResult) *Recording {
	rec := &Recording{
		ID:             res.SessionID,
		Path:           res.Path,
		FrameRate:      res.Format.FrameRate,
		FPS:            res.Format.FrameRate.Float64(),
		Resolution:     res.Format.Resolution,
		PixelFormat:    string(res.Format.PixelFormat),
		Frames:         res.Frames,
		Dropped:        res.Dropped,
		CaptureElapsed: res.Elapsed,
		Duration:       media.DurationOf(int64(res.Frames), res.Format.FrameRate),
		StartedAt:      res.StartedAt,
		IndexedAt:      time.Now().UTC(),
		Status:         StatusComplete,
	}
	if res.Err != nil {
		rec.Status = StatusFailed
		rec.Error = res.Err.Error()
	}
	return rec
}

// FrameAt returns the frame displayed at playback position t, clamped to
// the recording.
func (r *Recording) FrameAt(t time.Duration) int64 {
	if r.Frames <= 0 {
		return 0
	}
	idx := media.FrameIndexAt(t, r.FrameRate)
	if last := int64(r.Frames) - 1; idx > last {
		return last
	}
	return idx
}
