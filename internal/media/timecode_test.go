package media

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrameIndexAt(t *testing.T) {
	tests := []struct {
		name     string
		t        time.Duration
		rate     Rational
		expected int64
	}{
		{"start", 0, FrameRate120, 0},
		{"negative clamps to zero", -time.Second, FrameRate120, 0},
		{"one second at 120", time.Second, FrameRate120, 120},
		{"just before frame boundary", time.Second - time.Nanosecond, FrameRate120, 119},
		{"half second at 240", 500 * time.Millisecond, FrameRate240, 120},
		{"ntsc one second", time.Second, FrameRate29_97, 29},
		{"ntsc exact boundary", 1001 * time.Millisecond, FrameRate29_97, 30},
		{"invalid rate", time.Second, Rational{}, 0},
		{"ten hours at 119.88", 10 * time.Hour, FrameRate119_88, 4315684},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, FrameIndexAt(tt.t, tt.rate))
		})
	}
}

func TestFrameStartRoundTrip(t *testing.T) {
	rates := []Rational{FrameRate24, FrameRate29_97, FrameRate60, FrameRate119_88, FrameRate120, FrameRate240, {Num: 1000, Den: 1}}
	for _, rate := range rates {
		for i := int64(0); i < 2000; i++ {
			start := FrameStart(i, rate)
			require.Equal(t, i, FrameIndexAt(start, rate), "rate %s index %d", rate, i)
			if i > 0 {
				require.Equal(t, i-1, FrameIndexAt(start-1, rate), "rate %s index %d", rate, i)
			}
		}
	}
}

func TestFrameStartEdgeCases(t *testing.T) {
	assert.Equal(t, time.Duration(0), FrameStart(-5, FrameRate120))
	assert.Equal(t, time.Duration(0), FrameStart(10, Rational{}))
	assert.Equal(t, 2*time.Second, DurationOf(240, FrameRate120))
	assert.Equal(t, int64(240), FramesIn(2*time.Second, FrameRate120))
	assert.Equal(t, time.Duration(math.MaxInt64), FrameStart(math.MaxInt64, FrameRate240))
}

func TestTimeCodeFor(t *testing.T) {
	tests := []struct {
		name     string
		index    int64
		rate     Rational
		expected string
	}{
		{"zero", 0, FrameRate120, "00:00:00:00"},
		{"ten frames at 120", 10, FrameRate120, "00:00:00:10"},
		{"one second at 120", 120, FrameRate120, "00:00:01:00"},
		{"last frame of two seconds", 239, FrameRate120, "00:00:01:119"},
		{"minute rollover", 60 * 30, FrameRate30, "00:01:00:00"},
		{"hour rollover", 3600*24 + 5, FrameRate24, "01:00:00:05"},
		{"ntsc uses nominal rate", 31, FrameRate29_97, "00:00:01:01"},
		{"negative index", -1, FrameRate30, "00:00:00:00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, FormatTimeCode(tt.index, tt.rate))
		})
	}
}

func TestTimeCodeFrameIndexRoundTrip(t *testing.T) {
	for _, index := range []int64{0, 1, 119, 120, 7199, 432001} {
		tc := TimeCodeFor(index, FrameRate120)
		assert.Equal(t, index, tc.FrameIndex(FrameRate120))
	}
}

func TestParseTimeCode(t *testing.T) {
	tc, err := ParseTimeCode("01:02:03:04")
	require.NoError(t, err)
	assert.Equal(t, TimeCode{Hours: 1, Minutes: 2, Seconds: 3, Frames: 4}, tc)

	_, err = ParseTimeCode("00:61:00:00")
	assert.Error(t, err)

	_, err = ParseTimeCode("garbage")
	assert.Error(t, err)
}
