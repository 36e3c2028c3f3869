package media

import (
	"fmt"
	"math"
	"math/bits"
	"time"
)

// FrameIndexAt maps a position on the playback timeline onto the index of
// the frame displayed at that position: floor(t * rate). The arithmetic is
// done in 128 bits so long recordings at NTSC rates do not overflow.
func FrameIndexAt(t time.Duration, rate Rational) int64 {
	if t <= 0 || !rate.IsValid() {
		return 0
	}
	divisor := uint64(rate.Den) * uint64(time.Second)
	hi, lo := bits.Mul64(uint64(t), uint64(rate.Num))
	if hi >= divisor {
		return math.MaxInt64
	}
	q, _ := bits.Div64(hi, lo, divisor)
	if q > math.MaxInt64 {
		return math.MaxInt64
	}
	return int64(q)
}

// FrameStart returns the earliest position that FrameIndexAt maps to index.
// It rounds up, so FrameIndexAt(FrameStart(i), rate) == i for every i >= 0.
func FrameStart(index int64, rate Rational) time.Duration {
	if index <= 0 || !rate.IsValid() {
		return 0
	}
	hi, lo := bits.Mul64(uint64(index), uint64(rate.Den)*uint64(time.Second))
	if hi >= uint64(rate.Num) {
		return time.Duration(math.MaxInt64)
	}
	q, r := bits.Div64(hi, lo, uint64(rate.Num))
	if r > 0 {
		q++
	}
	if q > math.MaxInt64 {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(q)
}

// FramesIn returns how many whole frames fit in d at rate.
func FramesIn(d time.Duration, rate Rational) int64 {
	return FrameIndexAt(d, rate)
}

// DurationOf returns the timeline length of count frames at rate.
func DurationOf(count int64, rate Rational) time.Duration {
	return FrameStart(count, rate)
}

// TimeCode is a non-drop-frame HH:MM:SS:FF position.
type TimeCode struct {
	Hours   int64
	Minutes int64
	Seconds int64
	Frames  int64
}

// TimeCodeFor splits a frame index into a time code. The frame field counts
// modulo the nominal integer rate (30 for 29.97) and the seconds field is
// derived from the same index, so both always agree.
func TimeCodeFor(index int64, rate Rational) TimeCode {
	nominal := int64(rate.Nominal())
	if nominal <= 0 || index < 0 {
		return TimeCode{}
	}
	totalSeconds := index / nominal
	return TimeCode{
		Hours:   totalSeconds / 3600,
		Minutes: (totalSeconds / 60) % 60,
		Seconds: totalSeconds % 60,
		Frames:  index % nominal,
	}
}

// FrameIndex converts the time code back into an absolute frame index.
func (tc TimeCode) FrameIndex(rate Rational) int64 {
	nominal := int64(rate.Nominal())
	return ((tc.Hours*3600+tc.Minutes*60+tc.Seconds)*nominal + tc.Frames)
}

func (tc TimeCode) String() string {
	return fmt.Sprintf("%02d:%02d:%02d:%02d", tc.Hours, tc.Minutes, tc.Seconds, tc.Frames)
}

// FormatTimeCode is shorthand for TimeCodeFor(index, rate).String().
func FormatTimeCode(index int64, rate Rational) string {
	return TimeCodeFor(index, rate).String()
}

// ParseTimeCode parses HH:MM:SS:FF.
func ParseTimeCode(s string) (TimeCode, error) {
	var tc TimeCode
	n, err := fmt.Sscanf(s, "%d:%d:%d:%d", &tc.Hours, &tc.Minutes, &tc.Seconds, &tc.Frames)
	if err != nil {
		return TimeCode{}, fmt.Errorf("invalid time code %q: %w", s, err)
	}
	if n != 4 || tc.Minutes >= 60 || tc.Seconds >= 60 || tc.Hours < 0 || tc.Minutes < 0 || tc.Seconds < 0 || tc.Frames < 0 {
		return TimeCode{}, fmt.Errorf("invalid time code %q", s)
	}
	return tc, nil
}
