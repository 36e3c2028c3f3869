package media

import (
	"fmt"
	"time"
)

// PixelFormat identifies the sensor output buffer layout.
type PixelFormat string

const (
	PixelFormatNV12  PixelFormat = "nv12"
	PixelFormatYUYV  PixelFormat = "yuyv"
	PixelFormatBGRA  PixelFormat = "bgra"
	PixelFormatP010  PixelFormat = "p010"
	PixelFormatUnset PixelFormat = ""
)

// Resolution is a frame size in pixels.
type Resolution struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Area returns the number of pixels per frame.
func (r Resolution) Area() int {
	return r.Width * r.Height
}

func (r Resolution) String() string {
	return fmt.Sprintf("%dx%d", r.Width, r.Height)
}

// CaptureFormat is one configuration a capture device offers. Values are
// immutable once enumerated.
type CaptureFormat struct {
	FrameRate   Rational    `json:"frame_rate"`
	Resolution  Resolution  `json:"resolution"`
	PixelFormat PixelFormat `json:"pixel_format"`
}

// IsZero reports whether no format has been set.
func (f CaptureFormat) IsZero() bool {
	return f == CaptureFormat{}
}

// FrameInterval returns the nominal duration of one frame.
func (f CaptureFormat) FrameInterval() time.Duration {
	if !f.FrameRate.IsValid() {
		return 0
	}
	return time.Duration(int64(f.FrameRate.Den) * int64(time.Second) / int64(f.FrameRate.Num))
}

func (f CaptureFormat) String() string {
	return fmt.Sprintf("%s@%sfps/%s", f.Resolution, f.FrameRate, f.PixelFormat)
}
