package container

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/yutopp/go-flv"
	"github.com/yutopp/go-flv/tag"

	"github.com/zsiec/slomo/internal/errors"
	"github.com/zsiec/slomo/internal/logger"
	"github.com/zsiec/slomo/internal/media"
)

// Asset is a recording opened for playback.
type Asset struct {
	path        string
	rate        media.Rational
	rateSource  string
	resolution  media.Resolution
	pixelFormat media.PixelFormat
	encoder     string
	created     string

	timestamps []time.Duration // per-frame FLV tag time, millisecond resolution
	keyframes  []int64
	bytes      int64

	summary    Summary
	hasSummary bool
}

// Info is a JSON-friendly description of an asset.
type Info struct {
	Path           string           `json:"path"`
	FrameRate      string           `json:"frame_rate"`
	FPS            float64          `json:"fps"`
	FrameRateFrom  string           `json:"frame_rate_source"`
	Frames         int64            `json:"frames"`
	Keyframes      int              `json:"keyframes"`
	Duration       time.Duration    `json:"duration_ns"`
	CaptureElapsed time.Duration    `json:"capture_elapsed_ns"`
	SlowdownAt30   float64          `json:"slowdown_at_30fps"`
	Resolution     media.Resolution `json:"resolution"`
	PixelFormat    string           `json:"pixel_format"`
	Encoder        string           `json:"encoder,omitempty"`
	Created        string           `json:"created,omitempty"`
	PayloadBytes   int64            `json:"payload_bytes"`
}

// Open reads the recording at path. It fails with an UnreadableAssetError
// when the file is not an FLV movie, holds no video frames, or carries no
// usable frame rate.
func Open(path string) (*Asset, error) {
	return OpenWithLogger(path, logger.NewNullLogger())
}

// OpenWithLogger is Open with diagnostics sent to log.
func OpenWithLogger(path string, log logger.Logger) (*Asset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.WrapUnreadableAssetError(err, path)
	}
	defer f.Close()

	dec, err := flv.NewDecoder(fullReader{bufio.NewReader(f)})
	if err != nil {
		return nil, errors.WrapUnreadableAssetError(err, path)
	}

	a := &Asset{path: path}
	for {
		var t tag.FlvTag
		if err := dec.Decode(&t); err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				if err == io.ErrUnexpectedEOF {
					log.WithField("asset", path).Warn("Recording ends with a truncated tag")
				}
				break
			}
			return nil, errors.WrapUnreadableAssetError(err, path)
		}
		err := a.consume(&t)
		t.Close()
		if err != nil {
			return nil, errors.WrapUnreadableAssetError(err, path)
		}
	}

	if len(a.timestamps) == 0 {
		return nil, errors.NewUnreadableAssetError(fmt.Sprintf("%s contains no video frames", path))
	}

	if !a.rate.IsValid() {
		a.rate = estimateRate(a.timestamps)
		a.rateSource = "estimated"
		log.WithFields(map[string]interface{}{
			"asset":     path,
			"estimated": a.rate.String(),
		}).Warn("Recording has no frame rate metadata, estimating from tag timestamps")
	}
	if !a.rate.IsValid() {
		return nil, errors.NewUnreadableAssetError(fmt.Sprintf("%s has no recoverable frame rate", path))
	}
	return a, nil
}

// fullReader fills p completely on every Read unless the stream ends.
// The tag decoder reads fixed-size headers with a single Read call and
// misparses a short one, which bufio returns at buffer boundaries.
type fullReader struct {
	r io.Reader
}

func (fr fullReader) Read(p []byte) (int, error) {
	return io.ReadFull(fr.r, p)
}

func (a *Asset) consume(t *tag.FlvTag) error {
	switch data := t.Data.(type) {
	case *tag.VideoData:
		if data.FrameType == tag.FrameTypeKeyFrame {
			a.keyframes = append(a.keyframes, int64(len(a.timestamps)))
		}
		a.timestamps = append(a.timestamps, time.Duration(t.Timestamp)*time.Millisecond)
		if data.Data != nil {
			n, err := io.Copy(io.Discard, data.Data)
			if err != nil {
				return fmt.Errorf("read frame %d: %w", len(a.timestamps)-1, err)
			}
			a.bytes += n
		}
	case *tag.ScriptData:
		if meta, ok := data.Objects[metaDataName]; ok {
			a.rate = frameRateFrom(meta)
			if a.rate.IsValid() {
				a.rateSource = "metadata"
			}
			a.resolution = media.Resolution{Width: int(number(meta, keyWidth)), Height: int(number(meta, keyHeight))}
			a.pixelFormat = media.PixelFormat(str(meta, keyPixelFormat))
			a.encoder = str(meta, keyEncoder)
			a.created = str(meta, keyCreationDate)
		}
		if sum, ok := data.Objects[captureSummaryName]; ok {
			a.summary = summaryFromECMA(sum)
			a.hasSummary = true
		}
	}
	return nil
}

// estimateRate derives a rate from the span of the millisecond tag
// timestamps.
func estimateRate(ts []time.Duration) media.Rational {
	if len(ts) < 2 {
		return media.Rational{}
	}
	span := ts[len(ts)-1] - ts[0]
	if span <= 0 {
		return media.Rational{}
	}
	return media.RationalFromFloat(float64(len(ts)-1) / span.Seconds())
}

func (a *Asset) Path() string                  { return a.path }
func (a *Asset) FrameRate() media.Rational     { return a.rate }
func (a *Asset) Resolution() media.Resolution  { return a.resolution }
func (a *Asset) PixelFormat() media.PixelFormat { return a.pixelFormat }

// FrameCount returns the number of video frames in the file.
func (a *Asset) FrameCount() int64 {
	return int64(len(a.timestamps))
}

// Duration is the playback length: frames / frame rate.
func (a *Asset) Duration() time.Duration {
	return media.DurationOf(a.FrameCount(), a.rate)
}

// FrameTimestamps returns the per-frame tag times relative to the first
// frame.
func (a *Asset) FrameTimestamps() []time.Duration {
	return append([]time.Duration(nil), a.timestamps...)
}

// Keyframes returns the indices of keyframes in ascending order.
func (a *Asset) Keyframes() []int64 {
	return append([]int64(nil), a.keyframes...)
}

// CaptureElapsed is the real time the recording spanned. It comes from the
// capture summary when present and from tag timestamps otherwise.
func (a *Asset) CaptureElapsed() time.Duration {
	if a.hasSummary {
		return a.summary.Elapsed()
	}
	return a.timestamps[len(a.timestamps)-1] - a.timestamps[0]
}

// Summary returns the capture summary and whether the file carried one.
// Files whose recording was aborted have none.
func (a *Asset) Summary() (Summary, bool) {
	return a.summary, a.hasSummary
}

// Info describes the asset.
func (a *Asset) Info() Info {
	info := Info{
		Path:           a.path,
		FrameRate:      a.rate.String(),
		FPS:            a.rate.Float64(),
		FrameRateFrom:  a.rateSource,
		Frames:         a.FrameCount(),
		Keyframes:      len(a.keyframes),
		Duration:       a.Duration(),
		CaptureElapsed: a.CaptureElapsed(),
		Resolution:     a.resolution,
		PixelFormat:    string(a.pixelFormat),
		Encoder:        a.encoder,
		Created:        a.created,
		PayloadBytes:   a.bytes,
	}
	if a.rate.IsValid() {
		info.SlowdownAt30 = a.rate.Float64() / 30
	}
	return info
}
