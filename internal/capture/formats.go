package capture

import (
	"fmt"
	"sort"

	"github.com/zsiec/slomo/internal/errors"
	"github.com/zsiec/slomo/internal/media"
)

// SortFormats returns a copy of formats ordered by frame rate, then
// resolution area, then pixel format.
func SortFormats(formats []media.CaptureFormat) []media.CaptureFormat {
	sorted := append([]media.CaptureFormat(nil), formats...)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if c := a.FrameRate.Compare(b.FrameRate); c != 0 {
			return c < 0
		}
		if a.Resolution.Area() != b.Resolution.Area() {
			return a.Resolution.Area() < b.Resolution.Area()
		}
		return a.PixelFormat < b.PixelFormat
	})
	return sorted
}

// SelectFormat picks the format whose frame rate is the smallest one at or
// above desired. Among formats at that rate the largest resolution wins;
// remaining ties keep device order.
func SelectFormat(formats []media.CaptureFormat, desired float64) (media.CaptureFormat, error) {
	if desired <= 0 {
		return HighestFrameRate(formats)
	}

	best := -1
	for i, f := range formats {
		if !f.FrameRate.IsValid() || f.FrameRate.Float64() < desired {
			continue
		}
		if best < 0 || better(f, formats[best]) {
			best = i
		}
	}
	if best < 0 {
		return media.CaptureFormat{}, errors.NewConfigurationError(
			fmt.Sprintf("no format satisfies %g fps", desired)).WithCode(errors.CodeNoMatchingFormat)
	}
	return formats[best], nil
}

// better reports whether a beats b: lower frame rate first (smallest
// overshoot), then larger resolution.
func better(a, b media.CaptureFormat) bool {
	if c := a.FrameRate.Compare(b.FrameRate); c != 0 {
		return c < 0
	}
	return a.Resolution.Area() > b.Resolution.Area()
}

// HighestFrameRate picks the fastest format, preferring larger resolutions
// at equal rate.
func HighestFrameRate(formats []media.CaptureFormat) (media.CaptureFormat, error) {
	best := -1
	for i, f := range formats {
		if !f.FrameRate.IsValid() {
			continue
		}
		if best < 0 {
			best = i
			continue
		}
		c := f.FrameRate.Compare(formats[best].FrameRate)
		if c > 0 || (c == 0 && f.Resolution.Area() > formats[best].Resolution.Area()) {
			best = i
		}
	}
	if best < 0 {
		return media.CaptureFormat{}, errors.NewConfigurationError("device offers no formats").
			WithCode(errors.CodeNoMatchingFormat)
	}
	return formats[best], nil
}
