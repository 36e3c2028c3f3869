package capture

import (
	"time"

	"github.com/zsiec/slomo/internal/media"
)

// State is the recording state of the manager.
type State int

const (
	StateIdle State = iota
	StateRecording
)

func (s State) String() string {
	if s == StateRecording {
		return "recording"
	}
	return "idle"
}

// SetupResult is the outcome of Configure.
type SetupResult int

const (
	SetupPending SetupResult = iota
	SetupSuccess
	SetupNotAuthorized
	SetupConfigurationFailed
)

func (r SetupResult) String() string {
	switch r {
	case SetupSuccess:
		return "success"
	case SetupNotAuthorized:
		return "not_authorized"
	case SetupConfigurationFailed:
		return "configuration_failed"
	default:
		return "pending"
	}
}

// EventType identifies a manager event.
type EventType string

const (
	EventConfigured        EventType = "configured"
	EventFormatChanged     EventType = "format_changed"
	EventRecordingStarted  EventType = "recording_started"
	EventRecordingFinished EventType = "recording_finished"
)

// Event is delivered on Manager.Events. Exactly one RecordingFinished event
// follows every RecordingStarted event.
type Event struct {
	Type      EventType
	SessionID string
	Format    media.CaptureFormat
	// SystemTime is the host clock reading when recording started.
	SystemTime time.Duration
	WallTime   time.Time
	// Result is set on RecordingFinished.
	Result *RecordingResult
}

// RecordingResult describes a finished recording session.
type RecordingResult struct {
	SessionID string
	Path      string
	Format    media.CaptureFormat
	StartedAt time.Time
	// Timestamps holds one host clock sample per frame written.
	Timestamps []time.Duration
	Frames     int
	Dropped    int
	// Elapsed is the span between the first and last frame timestamps.
	Elapsed time.Duration
	Err     error
}

// Success reports whether the recording was written and finalized.
func (r *RecordingResult) Success() bool {
	return r.Err == nil
}
