package capture

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zsiec/slomo/internal/errors"
	"github.com/zsiec/slomo/internal/media"
)

func fmtAt(rate media.Rational, w, h int) media.CaptureFormat {
	return media.CaptureFormat{FrameRate: rate, Resolution: media.Resolution{Width: w, Height: h}, PixelFormat: media.PixelFormatNV12}
}

func TestSelectFormat(t *testing.T) {
	f30 := fmtAt(media.FrameRate30, 1920, 1080)
	f60 := fmtAt(media.FrameRate60, 1920, 1080)
	f120 := fmtAt(media.FrameRate120, 1280, 720)
	f120hd := fmtAt(media.FrameRate120, 1920, 1080)
	f240 := fmtAt(media.FrameRate240, 1280, 720)
	f11988 := fmtAt(media.FrameRate119_88, 1920, 1080)

	tests := []struct {
		name    string
		formats []media.CaptureFormat
		desired float64
		want    media.CaptureFormat
		wantErr bool
	}{
		{"closest above", []media.CaptureFormat{f30, f60, f120, f240}, 100, f120, false},
		{"exact match", []media.CaptureFormat{f30, f60, f120, f240}, 60, f60, false},
		{"order independent", []media.CaptureFormat{f240, f120, f60, f30}, 100, f120, false},
		{"larger resolution wins tie", []media.CaptureFormat{f120, f120hd, f240}, 90, f120hd, false},
		{"ntsc is below its nominal rate", []media.CaptureFormat{f11988, f120}, 120, f120, false},
		{"ntsc satisfies lower request", []media.CaptureFormat{f120, f11988}, 119, f11988, false},
		{"nothing fast enough", []media.CaptureFormat{f30, f60}, 120, media.CaptureFormat{}, true},
		{"zero picks highest", []media.CaptureFormat{f30, f240, f60}, 0, f240, false},
		{"empty", nil, 30, media.CaptureFormat{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := SelectFormat(tt.formats, tt.desired)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, errors.ErrConfiguration)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestHighestFrameRate(t *testing.T) {
	low := fmtAt(media.FrameRate240, 640, 480)
	high := fmtAt(media.FrameRate240, 1280, 720)
	got, err := HighestFrameRate([]media.CaptureFormat{fmtAt(media.FrameRate60, 3840, 2160), low, high})
	require.NoError(t, err)
	assert.Equal(t, high, got)

	_, err = HighestFrameRate([]media.CaptureFormat{{}})
	assert.Error(t, err)
}

func TestSortFormats(t *testing.T) {
	in := []media.CaptureFormat{
		fmtAt(media.FrameRate240, 1280, 720),
		fmtAt(media.FrameRate30, 1920, 1080),
		fmtAt(media.FrameRate30, 1280, 720),
		fmtAt(media.FrameRate29_97, 3840, 2160),
	}
	out := SortFormats(in)

	assert.Equal(t, media.FrameRate29_97, out[0].FrameRate)
	assert.Equal(t, 1280, out[1].Resolution.Width)
	assert.Equal(t, 1920, out[2].Resolution.Width)
	assert.Equal(t, media.FrameRate240, out[3].FrameRate)
	assert.Equal(t, media.FrameRate240, in[0].FrameRate, "input must not be reordered")
}

func TestTimestampLog(t *testing.T) {
	l := NewTimestampLog(4)
	assert.Zero(t, l.Elapsed())
	assert.True(t, l.Accepts(0))

	for _, pts := range []time.Duration{10, 20, 20, 35} {
		require.True(t, l.Accepts(pts))
		l.Append(pts)
	}
	assert.False(t, l.Accepts(34))
	assert.True(t, l.Accepts(35))
	assert.Equal(t, 4, l.Len())
	assert.Equal(t, time.Duration(25), l.Elapsed())

	snap := l.Snapshot()
	snap[0] = 999
	assert.Equal(t, time.Duration(10), l.First())

	l.Truncate(2)
	assert.Equal(t, []time.Duration{10, 20}, l.Snapshot())
	l.Truncate(10)
	assert.Equal(t, 2, l.Len())

	l.Reset()
	assert.Zero(t, l.Len())
	assert.True(t, l.Accepts(1))
}
