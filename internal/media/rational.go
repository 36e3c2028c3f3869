package media

import (
	"fmt"
	"math"
)

// Rational represents a rational number (numerator/denominator).
// Used for frame rates so NTSC rates stay exact.
type Rational struct {
	Num int // Numerator
	Den int // Denominator
}

// NewRational creates a new rational number
func NewRational(num, den int) Rational {
	if den == 0 {
		den = 1
	}
	return Rational{Num: num, Den: den}
}

// RationalFromFloat converts a frame rate such as 29.97 or 120 into a Rational.
// Values within 0.01 of a standard 1001-based rate map onto that rate.
func RationalFromFloat(fps float64) Rational {
	if fps <= 0 || math.IsNaN(fps) || math.IsInf(fps, 0) {
		return Rational{Num: 0, Den: 1}
	}
	if rounded := math.Round(fps); math.Abs(fps-rounded) < 1e-6 {
		return Rational{Num: int(rounded), Den: 1}
	}
	ntsc := math.Round(fps * 1.001)
	if math.Abs(ntsc*1000/1001-fps) < 0.01 {
		return Rational{Num: int(ntsc) * 1000, Den: 1001}
	}
	return Rational{Num: int(math.Round(fps * 1000)), Den: 1000}
}

// Float64 returns the floating point representation
func (r Rational) Float64() float64 {
	if r.Den == 0 {
		return 0
	}
	return float64(r.Num) / float64(r.Den)
}

// Invert returns the inverted rational (den/num)
func (r Rational) Invert() Rational {
	return Rational{Num: r.Den, Den: r.Num}
}

// IsValid reports whether the rational describes a positive rate.
func (r Rational) IsValid() bool {
	return r.Num > 0 && r.Den > 0
}

// Nominal returns the integer frame count per second used for time code
// frame fields, e.g. 30 for 29.97.
func (r Rational) Nominal() int {
	if !r.IsValid() {
		return 0
	}
	return int(math.Round(r.Float64()))
}

// Compare returns -1, 0 or 1 as r is less than, equal to or greater than o.
func (r Rational) Compare(o Rational) int {
	left := int64(r.Num) * int64(o.Den)
	right := int64(o.Num) * int64(r.Den)
	switch {
	case left < right:
		return -1
	case left > right:
		return 1
	default:
		return 0
	}
}

func (r Rational) String() string {
	if r.Den == 1 {
		return fmt.Sprintf("%d", r.Num)
	}
	return fmt.Sprintf("%d/%d", r.Num, r.Den)
}

// Common frame rates
var (
	FrameRate24  = Rational{Num: 24, Den: 1}
	FrameRate25  = Rational{Num: 25, Den: 1}
	FrameRate30  = Rational{Num: 30, Den: 1}
	FrameRate60  = Rational{Num: 60, Den: 1}
	FrameRate120 = Rational{Num: 120, Den: 1}
	FrameRate240 = Rational{Num: 240, Den: 1}

	// NTSC frame rates
	FrameRate29_97  = Rational{Num: 30000, Den: 1001}
	FrameRate59_94  = Rational{Num: 60000, Den: 1001}
	FrameRate119_88 = Rational{Num: 120000, Den: 1001}
)
