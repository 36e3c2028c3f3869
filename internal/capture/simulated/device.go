// Package simulated provides a software camera sensor and preview surface
// that satisfy the capture capability interfaces.
package simulated

import (
	"context"
	"encoding/binary"
	"fmt"
	"sync"
	"time"

	"github.com/zsiec/slomo/internal/capture"
	"github.com/zsiec/slomo/internal/config"
	"github.com/zsiec/slomo/internal/errors"
	"github.com/zsiec/slomo/internal/media"
)

const (
	defaultFrameSize        = 4096
	defaultKeyframeInterval = 30
)

// Options configures a simulated Device.
type Options struct {
	Name    string
	Formats []media.CaptureFormat
	// Authorized false makes Open fail with errors.CodeNotAuthorized.
	Authorized bool
	// FrameSize is the payload length of every synthetic frame.
	FrameSize        int
	KeyframeInterval int
	Clock            media.Clock
	// Realtime starts a ticker-driven delivery loop in StartStreaming.
	// Without it frames are only produced by Deliver.
	Realtime bool
}

// DefaultFormats returns 1280x720 NV12 at 30, 60, 120 and 240 fps.
func DefaultFormats() []media.CaptureFormat {
	res := media.Resolution{Width: 1280, Height: 720}
	var formats []media.CaptureFormat
	for _, r := range []media.Rational{media.FrameRate30, media.FrameRate60, media.FrameRate120, media.FrameRate240} {
		formats = append(formats, media.CaptureFormat{FrameRate: r, Resolution: res, PixelFormat: media.PixelFormatNV12})
	}
	return formats
}

// OptionsFromConfig builds device options from the capture device config.
func OptionsFromConfig(cfg config.DeviceConfig, clock media.Clock, realtime bool) Options {
	res := media.Resolution{Width: cfg.Width, Height: cfg.Height}
	var formats []media.CaptureFormat
	for _, fps := range cfg.FrameRates {
		formats = append(formats, media.CaptureFormat{
			FrameRate:   media.RationalFromFloat(fps),
			Resolution:  res,
			PixelFormat: media.PixelFormat(cfg.PixelFormat),
		})
	}
	return Options{
		Name:             cfg.Name,
		Formats:          formats,
		Authorized:       cfg.Authorized,
		FrameSize:        cfg.FrameSize,
		KeyframeInterval: cfg.KeyframeInterval,
		Clock:            clock,
		Realtime:         realtime,
	}
}

// Device is a software sensor. Frames carry their sequence number in the
// first eight payload bytes.
type Device struct {
	opts Options

	mu        sync.Mutex
	active    media.CaptureFormat
	opened    bool
	preview   capture.PreviewTarget
	handler   capture.FrameHandler
	onError   capture.ErrorHandler
	streaming bool
	stop      chan struct{}
	stopped   chan struct{}

	// deliverMu serializes handler calls, like a device callback queue.
	deliverMu sync.Mutex
	seq       uint64
}

// NewDevice creates a simulated device. The first format is active until
// another one is applied.
func NewDevice(opts Options) *Device {
	if len(opts.Formats) == 0 {
		opts.Formats = DefaultFormats()
	}
	if opts.FrameSize <= 0 {
		opts.FrameSize = defaultFrameSize
	}
	if opts.FrameSize < 8 {
		opts.FrameSize = 8
	}
	if opts.KeyframeInterval <= 0 {
		opts.KeyframeInterval = defaultKeyframeInterval
	}
	if opts.Clock == nil {
		opts.Clock = media.NewSystemClock()
	}
	if opts.Name == "" {
		opts.Name = "sim0"
	}
	return &Device{opts: opts, active: opts.Formats[0]}
}

// Name returns the device name.
func (d *Device) Name() string {
	return d.opts.Name
}

func (d *Device) Open(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !d.opts.Authorized {
		return errors.NewConfigurationError(fmt.Sprintf("access to %s was denied", d.opts.Name)).
			WithCode(errors.CodeNotAuthorized)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.opened {
		return errors.NewConfigurationError(fmt.Sprintf("%s is already open", d.opts.Name)).
			WithCode(errors.CodeDeviceBusy)
	}
	d.opened = true
	return nil
}

func (d *Device) SupportedFormats() []media.CaptureFormat {
	return append([]media.CaptureFormat(nil), d.opts.Formats...)
}

func (d *Device) ActiveFormat() media.CaptureFormat {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.active
}

// ApplyFormat switches the active format. A running realtime loop picks up
// the new frame interval.
func (d *Device) ApplyFormat(format media.CaptureFormat) error {
	for _, f := range d.opts.Formats {
		if f == format {
			d.mu.Lock()
			d.active = format
			restart := d.streaming && d.opts.Realtime
			d.mu.Unlock()

			if restart {
				d.stopLoop()
				d.startLoop()
			}
			return nil
		}
	}
	return fmt.Errorf("format %s is not offered by %s", format, d.opts.Name)
}

func (d *Device) AttachPreview(target capture.PreviewTarget) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.opened {
		return fmt.Errorf("%s is not open", d.opts.Name)
	}
	d.preview = target
	return nil
}

func (d *Device) StartStreaming(handler capture.FrameHandler, onError capture.ErrorHandler) error {
	d.mu.Lock()
	if !d.opened {
		d.mu.Unlock()
		return fmt.Errorf("%s is not open", d.opts.Name)
	}
	if d.streaming {
		d.mu.Unlock()
		return fmt.Errorf("%s is already streaming", d.opts.Name)
	}
	d.handler = handler
	d.onError = onError
	d.streaming = true
	d.mu.Unlock()

	if d.opts.Realtime {
		d.startLoop()
	}
	return nil
}

// StopStreaming stops delivery and waits for an in-flight callback to
// return.
func (d *Device) StopStreaming() error {
	d.mu.Lock()
	if !d.streaming {
		d.mu.Unlock()
		return nil
	}
	d.streaming = false
	d.mu.Unlock()

	d.stopLoop()

	d.deliverMu.Lock()
	d.handler = nil
	d.onError = nil
	d.deliverMu.Unlock()
	return nil
}

// Fail reports err as a runtime sensor failure through the streaming error
// handler, in order with frame callbacks. It returns false when nothing is
// streaming.
func (d *Device) Fail(err error) bool {
	d.deliverMu.Lock()
	defer d.deliverMu.Unlock()
	if d.onError == nil {
		return false
	}
	d.onError(err)
	return true
}

func (d *Device) Close() error {
	if err := d.StopStreaming(); err != nil {
		return err
	}
	d.mu.Lock()
	d.opened = false
	d.preview = nil
	d.mu.Unlock()
	return nil
}

// Deliver synchronously produces n frames at the active rate. The first
// frame is stamped with the current clock reading and each following one
// exactly one frame period later; a ManualClock is advanced past the last
// frame. It returns the number of frames handed to the callback.
func (d *Device) Deliver(n int) (int, error) {
	d.mu.Lock()
	streaming := d.streaming
	rate := d.active.FrameRate
	d.mu.Unlock()
	if !streaming {
		return 0, fmt.Errorf("%s is not streaming", d.opts.Name)
	}

	base := d.opts.Clock.Now()
	for i := 0; i < n; i++ {
		if !d.emit(base + media.DurationOf(int64(i), rate)) {
			return i, nil
		}
	}
	if c, ok := d.opts.Clock.(*media.ManualClock); ok {
		c.Set(base + media.DurationOf(int64(n), rate))
	}
	return n, nil
}

// DeliverAt produces one frame stamped with pts, which need not be in
// order.
func (d *Device) DeliverAt(pts time.Duration) bool {
	return d.emit(pts)
}

func (d *Device) emit(pts time.Duration) bool {
	d.deliverMu.Lock()
	defer d.deliverMu.Unlock()
	if d.handler == nil {
		return false
	}
	d.handler(d.nextFrame(), pts)
	return true
}

func (d *Device) nextFrame() *media.Frame {
	seq := d.seq
	d.seq++
	data := make([]byte, d.opts.FrameSize)
	binary.BigEndian.PutUint64(data, seq)
	return &media.Frame{
		Sequence:   seq,
		Data:       data,
		IsKeyframe: seq%uint64(d.opts.KeyframeInterval) == 0,
	}
}

func (d *Device) startLoop() {
	d.mu.Lock()
	interval := d.active.FrameInterval()
	stop := make(chan struct{})
	stopped := make(chan struct{})
	d.stop, d.stopped = stop, stopped
	d.mu.Unlock()

	go func() {
		defer close(stopped)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				d.emit(d.opts.Clock.Now())
			}
		}
	}()
}

func (d *Device) stopLoop() {
	d.mu.Lock()
	stop, stopped := d.stop, d.stopped
	d.stop, d.stopped = nil, nil
	d.mu.Unlock()

	if stop != nil {
		close(stop)
		<-stopped
	}
}
