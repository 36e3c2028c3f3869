// Package container stores recordings as FLV movies. The negotiated capture
// format travels in an onMetaData script tag so playback can recover the
// frame rate from the file alone; an onCaptureSummary trailer keeps the
// nanosecond capture timing that FLV tag timestamps cannot represent.
package container

import (
	"time"

	"github.com/yutopp/go-amf0"

	"github.com/zsiec/slomo/internal/media"
	"github.com/zsiec/slomo/pkg/version"
)

const (
	metaDataName       = "onMetaData"
	captureSummaryName = "onCaptureSummary"

	keyFrameRate    = "framerate"
	keyFrameRateNum = "framerate_num"
	keyFrameRateDen = "framerate_den"
	keyWidth        = "width"
	keyHeight       = "height"
	keyPixelFormat  = "pixelformat"
	keyCodecID      = "videocodecid"
	keyEncoder      = "encoder"
	keyCreationDate = "creationdate"

	keyFrames     = "frames"
	keyFirstPTS   = "first_pts_ns"
	keyLastPTS    = "last_pts_ns"
	keyElapsed    = "elapsed_ns"
	keyKeyframes  = "keyframes"
	keyDurationMS = "duration"
)

func metaDataFor(format media.CaptureFormat, codecID int, created time.Time) amf0.ECMAArray {
	return amf0.ECMAArray{
		keyFrameRate:    format.FrameRate.Float64(),
		keyFrameRateNum: float64(format.FrameRate.Num),
		keyFrameRateDen: float64(format.FrameRate.Den),
		keyWidth:        float64(format.Resolution.Width),
		keyHeight:       float64(format.Resolution.Height),
		keyPixelFormat:  string(format.PixelFormat),
		keyCodecID:      float64(codecID),
		keyEncoder:      version.Encoder(),
		keyCreationDate: created.UTC().Format(time.RFC3339),
	}
}

// Summary is the capture timing written when a recording is finalized.
type Summary struct {
	Frames    int64
	Keyframes int64
	FirstPTS  time.Duration
	LastPTS   time.Duration
}

// Elapsed is the true capture time between the first and last frame.
func (s Summary) Elapsed() time.Duration {
	return s.LastPTS - s.FirstPTS
}

func (s Summary) toECMA(rate media.Rational) amf0.ECMAArray {
	return amf0.ECMAArray{
		keyFrames:     float64(s.Frames),
		keyKeyframes:  float64(s.Keyframes),
		keyFirstPTS:   float64(s.FirstPTS),
		keyLastPTS:    float64(s.LastPTS),
		keyElapsed:    float64(s.Elapsed()),
		keyDurationMS: float64(media.DurationOf(s.Frames, rate).Milliseconds()),
	}
}

func summaryFromECMA(obj amf0.ECMAArray) Summary {
	return Summary{
		Frames:    int64(number(obj, keyFrames)),
		Keyframes: int64(number(obj, keyKeyframes)),
		FirstPTS:  time.Duration(number(obj, keyFirstPTS)),
		LastPTS:   time.Duration(number(obj, keyLastPTS)),
	}
}

// number reads an AMF0 number, which always decodes as float64.
func number(obj amf0.ECMAArray, key string) float64 {
	switch v := obj[key].(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case uint32:
		return float64(v)
	default:
		return 0
	}
}

func str(obj amf0.ECMAArray, key string) string {
	s, _ := obj[key].(string)
	return s
}

// frameRateFrom recovers the exact rate from onMetaData, preferring the
// rational fields over the float.
func frameRateFrom(obj amf0.ECMAArray) media.Rational {
	num, den := int(number(obj, keyFrameRateNum)), int(number(obj, keyFrameRateDen))
	if num > 0 && den > 0 {
		return media.NewRational(num, den)
	}
	return media.RationalFromFloat(number(obj, keyFrameRate))
}
