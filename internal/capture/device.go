package capture

import (
	"context"
	"time"

	"github.com/zsiec/slomo/internal/media"
)

// FrameHandler receives every frame the device produces, on the device's
// own goroutine. pts is sampled from the host monotonic clock.
type FrameHandler func(frame *media.Frame, pts time.Duration)

// ErrorHandler receives runtime sensor failures. After a call the device
// may stop producing frames.
type ErrorHandler func(err error)

// Device is the camera capability the manager drives.
type Device interface {
	// Open requests access to the sensor. A denied request should return an
	// error carrying errors.CodeNotAuthorized.
	Open(ctx context.Context) error
	// SupportedFormats lists the formats the sensor offers, in a stable order.
	SupportedFormats() []media.CaptureFormat
	ActiveFormat() media.CaptureFormat
	ApplyFormat(format media.CaptureFormat) error
	AttachPreview(target PreviewTarget) error
	StartStreaming(handler FrameHandler, onError ErrorHandler) error
	StopStreaming() error
	Close() error
}

// PreviewTarget is the live preview surface. It is presentation only and
// never affects what is recorded.
type PreviewTarget interface {
	SetOrientation(o media.Orientation)
	Orientation() media.Orientation
	SetGravity(g media.Gravity)
	Gravity() media.Gravity
}

// OrientationSource reports the orientation of a reference view, usually
// the window hosting the preview.
type OrientationSource interface {
	Orientation() media.Orientation
}

// Writer persists one recording. Append is only ever called from a single
// goroutine.
type Writer interface {
	Append(frame *media.Frame, pts time.Duration) error
	Finalize() error
	Path() string
}

// WriterFactory creates the writer for a new recording.
type WriterFactory interface {
	CreateWriter(path string, format media.CaptureFormat) (Writer, error)
}

// WriterFactoryFunc adapts a function to WriterFactory.
type WriterFactoryFunc func(path string, format media.CaptureFormat) (Writer, error)

func (f WriterFactoryFunc) CreateWriter(path string, format media.CaptureFormat) (Writer, error) {
	return f(path, format)
}
