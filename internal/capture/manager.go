package capture

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/zsiec/slomo/internal/config"
	"github.com/zsiec/slomo/internal/errors"
	"github.com/zsiec/slomo/internal/logger"
	"github.com/zsiec/slomo/internal/media"
	"github.com/zsiec/slomo/internal/metrics"
	"github.com/zsiec/slomo/internal/notify"
)

const (
	// DefaultFrameQueueSize bounds the frames buffered between the device
	// callback and the writer (about two seconds at 240fps).
	DefaultFrameQueueSize = 512

	// RecordingExtension is the file extension of recorded movies.
	RecordingExtension = ".flv"
)

type queuedFrame struct {
	frame *media.Frame
	pts   time.Duration
}

// session is one Idle -> Recording -> Idle cycle.
type session struct {
	id        string
	path      string
	format    media.CaptureFormat
	startWall time.Time
	startSys  time.Duration
	writer    Writer

	frames chan queuedFrame
	done   chan struct{}

	// guarded by Manager.mu
	dropped   int
	deviceErr error

	// owned by the writer goroutine until done is closed
	written  int
	writeErr error
	failed   atomic.Bool
}

// Manager owns the capture device and the recording state machine.
//
// Configuration, format changes, start, stop and finalization run one at a
// time on the manager's task goroutine. The device frame callback only takes
// mu, appends to the timestamp log and hands the frame to the session's
// writer goroutine without blocking.
type Manager struct {
	device  Device
	writers WriterFactory
	clock   media.Clock
	cfg     *config.CaptureConfig

	logger   logger.Logger
	frameLog *logger.SampledLogger

	tasks chan func()
	quit  chan struct{}
	wg    sync.WaitGroup

	events    *notify.Dispatcher[Event]
	closeOnce sync.Once

	// owned by the task goroutine
	preview       PreviewTarget
	configured    bool
	setupErr      error
	initialFormat media.CaptureFormat

	mu          sync.Mutex
	state       State
	setupResult SetupResult
	session     *session
	log         *TimestampLog
	lastStart   time.Time
}

// NewManager creates a manager for device. Recordings are written through
// writers into cfg.OutputDir.
func NewManager(device Device, writers WriterFactory, clock media.Clock, cfg *config.CaptureConfig, log logger.Logger) *Manager {
	if clock == nil {
		clock = media.NewSystemClock()
	}
	if log == nil {
		log = logger.NewNullLogger()
	}
	log = log.WithField("component", "capture_manager")

	m := &Manager{
		device:   device,
		writers:  writers,
		clock:    clock,
		cfg:      cfg,
		logger:   log,
		frameLog: logger.NewCaptureLogger(log),
		tasks:    make(chan func()),
		quit:     make(chan struct{}),
		events:   notify.New[Event](),
		log:      NewTimestampLog(queueSize(cfg)),
	}

	m.wg.Add(1)
	go m.loop()
	return m
}

func queueSize(cfg *config.CaptureConfig) int {
	if cfg == nil || cfg.FrameQueueSize <= 0 {
		return DefaultFrameQueueSize
	}
	return cfg.FrameQueueSize
}

func (m *Manager) loop() {
	defer m.wg.Done()
	metrics.GoroutineStarted("capture_tasks")
	defer metrics.GoroutineStopped("capture_tasks")

	for {
		select {
		case task := <-m.tasks:
			task()
		case <-m.quit:
			return
		}
	}
}

// do runs fn on the task goroutine and waits for its result. ctx only
// bounds the wait for the task goroutine to accept fn; once accepted, fn
// runs to completion and its result is returned, so the caller never sees
// ctx.Err() for an operation that took effect.
func (m *Manager) do(ctx context.Context, operation string, fn func() error) error {
	result := make(chan error, 1)
	select {
	case m.tasks <- func() { result <- fn() }:
	case <-m.quit:
		return errors.NewInvalidStateError(operation, "closed")
	case <-ctx.Done():
		return ctx.Err()
	}
	return <-result
}

// enqueue schedules fn without waiting. It reports false once the manager
// is closed.
func (m *Manager) enqueue(fn func()) bool {
	select {
	case m.tasks <- fn:
		return true
	case <-m.quit:
		return false
	}
}

// Events returns the channel on which manager events are delivered. It is
// closed by Close.
func (m *Manager) Events() <-chan Event {
	return m.events.C()
}

// Configure opens the device, attaches the preview and starts streaming
// frames. A failure is terminal: the setup result is recorded and every
// later call returns the same error.
func (m *Manager) Configure(ctx context.Context, preview PreviewTarget) error {
	return m.do(ctx, "configure", func() error {
		if m.setupErr != nil {
			return m.setupErr
		}
		if m.configured {
			return errors.NewInvalidStateError("configure", "configured")
		}

		if err := m.device.Open(ctx); err != nil {
			result := SetupConfigurationFailed
			if appErr, ok := errors.GetAppError(err); ok && appErr.Code == errors.CodeNotAuthorized {
				result = SetupNotAuthorized
			}
			return m.failSetup(result, err, "open capture device")
		}

		if preview != nil {
			if err := m.device.AttachPreview(preview); err != nil {
				_ = m.device.Close()
				return m.failSetup(SetupConfigurationFailed, err, "attach preview")
			}
		}

		if err := m.device.StartStreaming(m.OnFrameDelivered, m.OnDeviceError); err != nil {
			_ = m.device.Close()
			return m.failSetup(SetupConfigurationFailed, err, "start streaming")
		}

		m.preview = preview
		m.initialFormat = m.device.ActiveFormat()
		m.configured = true

		m.mu.Lock()
		m.setupResult = SetupSuccess
		m.mu.Unlock()

		metrics.SetActiveFrameRate(m.initialFormat.FrameRate.Float64())
		m.logger.WithField("format", m.initialFormat.String()).Info("Capture device configured")
		m.events.Emit(Event{Type: EventConfigured, Format: m.initialFormat})
		return nil
	})
}

func (m *Manager) failSetup(result SetupResult, cause error, message string) error {
	err := cause
	if !errors.IsType(cause, errors.ErrorTypeConfiguration) {
		err = errors.WrapConfigurationError(cause, message).WithCode(errors.CodeSessionConfigFailed)
	}
	m.setupErr = err

	m.mu.Lock()
	m.setupResult = result
	m.mu.Unlock()

	m.logger.WithError(cause).WithField("setup_result", result.String()).Error("Capture configuration failed")
	return err
}

// requireConfigured must run on the task goroutine.
func (m *Manager) requireConfigured(operation string) error {
	if m.setupErr != nil {
		return m.setupErr
	}
	if !m.configured {
		return errors.NewInvalidStateError(operation, "unconfigured").WithCode(errors.CodeNotConfigured)
	}
	return nil
}

func (m *Manager) requireIdle(operation string) error {
	if state := m.State(); state != StateIdle {
		return errors.NewInvalidStateError(operation, state.String())
	}
	return nil
}

// ListFormats returns the device formats sorted by frame rate.
func (m *Manager) ListFormats() ([]media.CaptureFormat, error) {
	var formats []media.CaptureFormat
	err := m.do(context.Background(), "list_formats", func() error {
		if err := m.requireConfigured("list_formats"); err != nil {
			return err
		}
		formats = SortFormats(m.device.SupportedFormats())
		return nil
	})
	return formats, err
}

// SelectFormat activates the supported format with the smallest frame rate
// at or above desiredFPS. A desiredFPS of zero or less selects the highest
// rate the device offers. It is rejected while recording.
func (m *Manager) SelectFormat(desiredFPS float64) (media.CaptureFormat, error) {
	var selected media.CaptureFormat
	err := m.do(context.Background(), "select_format", func() error {
		if err := m.requireConfigured("select_format"); err != nil {
			return err
		}
		if err := m.requireIdle("select_format"); err != nil {
			return err
		}

		format, err := SelectFormat(m.device.SupportedFormats(), desiredFPS)
		if err != nil {
			return err
		}
		if err := m.applyFormat(format); err != nil {
			return err
		}
		selected = format
		return nil
	})
	return selected, err
}

// ResetFormat restores the format that was active when the device was
// configured.
func (m *Manager) ResetFormat() error {
	return m.do(context.Background(), "reset_format", func() error {
		if err := m.requireConfigured("reset_format"); err != nil {
			return err
		}
		if err := m.requireIdle("reset_format"); err != nil {
			return err
		}
		return m.applyFormat(m.initialFormat)
	})
}

func (m *Manager) applyFormat(format media.CaptureFormat) error {
	if err := m.device.ApplyFormat(format); err != nil {
		return errors.WrapConfigurationError(err, fmt.Sprintf("apply format %s", format))
	}
	metrics.SetActiveFrameRate(format.FrameRate.Float64())
	m.logger.WithField("format", format.String()).Info("Capture format selected")
	m.events.Emit(Event{Type: EventFormatChanged, Format: format})
	return nil
}

// StartRecording opens a writer for a new output file and starts accepting
// frames. The timestamp log is cleared first.
func (m *Manager) StartRecording(ctx context.Context) error {
	return m.do(ctx, "start_recording", func() error {
		if err := m.requireConfigured("start_recording"); err != nil {
			return err
		}
		if err := m.requireIdle("start_recording"); err != nil {
			return err
		}

		format := m.device.ActiveFormat()
		wall := time.Now()
		id := uuid.New().String()
		path := filepath.Join(m.outputDir(), fmt.Sprintf("%s-%s%s", wall.UTC().Format("20060102-150405"), id[:8], RecordingExtension))

		w, err := m.writers.CreateWriter(path, format)
		if err != nil {
			return errors.WrapRecordingIOError(err, "create recording writer").
				WithDetails(map[string]interface{}{"path": path})
		}

		s := &session{
			id:        id,
			path:      w.Path(),
			format:    format,
			startWall: wall,
			writer:    w,
			frames:    make(chan queuedFrame, queueSize(m.cfg)),
			done:      make(chan struct{}),
		}
		go m.writeLoop(s)

		m.mu.Lock()
		m.log.Reset()
		s.startSys = m.clock.Now()
		m.session = s
		m.state = StateRecording
		m.lastStart = wall
		m.mu.Unlock()

		metrics.RecordingStarted()
		m.logger.WithFields(map[string]interface{}{
			"session_id": s.id,
			"path":       s.path,
			"format":     format.String(),
		}).Info("Recording started")
		m.events.Emit(Event{
			Type:       EventRecordingStarted,
			SessionID:  s.id,
			Format:     format,
			SystemTime: s.startSys,
			WallTime:   wall,
		})
		return nil
	})
}

func (m *Manager) outputDir() string {
	if m.cfg == nil || m.cfg.OutputDir == "" {
		return "."
	}
	return m.cfg.OutputDir
}

// StopRecording stops accepting frames, flushes the queued frames, finalizes
// the file and emits one RecordingFinished event. Writer failures are
// reported through that event. Stopping while idle is an InvalidStateError
// and emits nothing.
func (m *Manager) StopRecording(ctx context.Context) error {
	return m.do(ctx, "stop_recording", func() error {
		m.mu.Lock()
		s := m.session
		m.mu.Unlock()

		if s == nil {
			m.logger.Warn("Stop requested while not recording")
			return errors.NewInvalidStateError("stop_recording", StateIdle.String())
		}
		m.finishSession(s)
		return nil
	})
}

// finishSession runs on the task goroutine. Whoever moves the session out
// of Recording finalizes it; later calls for the same session are no-ops.
func (m *Manager) finishSession(s *session) {
	m.mu.Lock()
	if m.session != s {
		m.mu.Unlock()
		return
	}
	m.state = StateIdle
	m.session = nil
	m.mu.Unlock()

	// No send can be in progress: sends happen under mu while Recording.
	close(s.frames)
	<-s.done

	finalizeErr := s.writer.Finalize()

	m.mu.Lock()
	if s.writeErr != nil {
		m.log.Truncate(s.written)
	}
	deviceErr := s.deviceErr
	result := &RecordingResult{
		SessionID:  s.id,
		Path:       s.path,
		Format:     s.format,
		StartedAt:  s.startWall,
		Timestamps: m.log.Snapshot(),
		Frames:     m.log.Len(),
		Dropped:    s.dropped,
		Elapsed:    m.log.Elapsed(),
	}
	m.mu.Unlock()

	switch {
	case deviceErr != nil:
		result.Err = errors.WrapRecordingIOError(deviceErr, "capture device failed")
	case s.writeErr != nil:
		result.Err = errors.WrapRecordingIOError(s.writeErr, "append frame")
	case finalizeErr != nil:
		result.Err = errors.WrapRecordingIOError(finalizeErr, "finalize recording")
	}

	metrics.RecordingFinished(result.Elapsed.Seconds(), result.Err)
	metrics.SetWriterQueueDepth(0)

	entry := m.logger.WithFields(map[string]interface{}{
		"session_id": s.id,
		"path":       s.path,
		"frames":     result.Frames,
		"dropped":    result.Dropped,
		"elapsed":    result.Elapsed.String(),
	})
	if result.Err != nil {
		entry.WithError(result.Err).Error("Recording failed")
	} else {
		entry.Info("Recording finished")
	}

	m.events.Emit(Event{
		Type:      EventRecordingFinished,
		SessionID: s.id,
		Format:    s.format,
		WallTime:  time.Now(),
		Result:    result,
	})
}

// writeLoop drains the session queue into the writer. After the first
// append error it keeps draining without writing and asks the task
// goroutine to end the session.
func (m *Manager) writeLoop(s *session) {
	defer close(s.done)
	metrics.GoroutineStarted("capture_writer")
	defer metrics.GoroutineStopped("capture_writer")

	for qf := range s.frames {
		if s.writeErr != nil {
			continue
		}
		if err := s.writer.Append(qf.frame, qf.pts); err != nil {
			s.writeErr = err
			s.failed.Store(true)
			metrics.FrameDropped("write_error")
			m.logger.WithError(err).WithField("session_id", s.id).Error("Writer failed, aborting recording")
			go m.enqueue(func() { m.finishSession(s) })
			continue
		}
		s.written++
		metrics.SetWriterQueueDepth(len(s.frames))
	}
}

// OnFrameDelivered is the device frame callback. While recording it appends
// pts to the timestamp log and queues the frame for the writer; it never
// blocks. Nil frames, frames that would break timestamp order and frames
// that find the queue full are dropped and left out of the log.
func (m *Manager) OnFrameDelivered(frame *media.Frame, pts time.Duration) {
	m.mu.Lock()
	s := m.session
	if m.state != StateRecording || s == nil {
		m.mu.Unlock()
		return
	}

	reason := ""
	switch {
	case s.failed.Load():
		reason = "write_error"
	case s.deviceErr != nil:
		reason = "device_error"
	case frame == nil:
		reason = "invalid_frame"
	case !m.log.Accepts(pts):
		reason = "out_of_order"
	default:
		select {
		case s.frames <- queuedFrame{frame: frame, pts: pts}:
			m.log.Append(pts)
		default:
			reason = "queue_full"
		}
	}
	if reason != "" {
		s.dropped++
	}
	count := m.log.Len()
	m.mu.Unlock()

	fields := map[string]interface{}{
		"session_id": s.id,
		"pts":        pts.String(),
	}
	if frame != nil {
		fields["sequence"] = frame.Sequence
	}

	if reason != "" {
		metrics.FrameDropped(reason)
		fields["reason"] = reason
		m.frameLog.WarnWithCategory(logger.CategoryFrameDrop, "Frame dropped", fields)
		return
	}
	metrics.FrameCaptured()
	fields["frame"] = count
	m.frameLog.DebugWithCategory(logger.CategoryFrameDelivery, "Frame queued", fields)
}

// OnDeviceError is the device error callback. A failure while recording
// aborts the session: frames stop being accepted and the task goroutine
// finalizes the file and reports the failure in the RecordingFinished
// event. Failures while idle are only logged.
func (m *Manager) OnDeviceError(err error) {
	m.mu.Lock()
	s := m.session
	if m.state != StateRecording || s == nil || s.deviceErr != nil {
		m.mu.Unlock()
		m.logger.WithError(err).Warn("Capture device error outside an active recording")
		return
	}
	s.deviceErr = err
	m.mu.Unlock()

	m.logger.WithError(err).WithField("session_id", s.id).Error("Capture device failed, aborting recording")
	go m.enqueue(func() { m.finishSession(s) })
}

// TogglePreviewGravity cycles the preview scaling mode.
func (m *Manager) TogglePreviewGravity() (media.Gravity, error) {
	var g media.Gravity
	err := m.do(context.Background(), "toggle_gravity", func() error {
		if err := m.requirePreview("toggle_gravity"); err != nil {
			return err
		}
		g = m.preview.Gravity().Next()
		m.preview.SetGravity(g)
		return nil
	})
	return g, err
}

// TogglePreviewOrientation flips the preview between portrait and landscape.
func (m *Manager) TogglePreviewOrientation() (media.Orientation, error) {
	var o media.Orientation
	err := m.do(context.Background(), "toggle_orientation", func() error {
		if err := m.requirePreview("toggle_orientation"); err != nil {
			return err
		}
		o = media.OrientationLandscapeRight
		if m.preview.Orientation().IsLandscape() {
			o = media.OrientationPortrait
		}
		m.preview.SetOrientation(o)
		return nil
	})
	return o, err
}

// UpdateOrientation matches the preview to the reference view.
func (m *Manager) UpdateOrientation(ref OrientationSource) error {
	return m.do(context.Background(), "update_orientation", func() error {
		if err := m.requirePreview("update_orientation"); err != nil {
			return err
		}
		m.preview.SetOrientation(ref.Orientation())
		return nil
	})
}

func (m *Manager) requirePreview(operation string) error {
	if err := m.requireConfigured(operation); err != nil {
		return err
	}
	if m.preview == nil {
		return errors.NewInvalidStateError(operation, "no preview attached")
	}
	return nil
}

// State returns the current recording state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// IsRecording reports whether a session is active.
func (m *Manager) IsRecording() bool {
	return m.State() == StateRecording
}

// SetupResult returns the outcome of Configure.
func (m *Manager) SetupResult() SetupResult {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.setupResult
}

// ActiveFormat returns the device's active format.
func (m *Manager) ActiveFormat() media.CaptureFormat {
	return m.device.ActiveFormat()
}

// Timestamps returns a copy of the timestamp log of the current or most
// recent recording.
func (m *Manager) Timestamps() []time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.log.Snapshot()
}

// FrameCount returns the number of frames accepted into the current or most
// recent recording.
func (m *Manager) FrameCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.log.Len()
}

// StartTime returns the wall clock time the current or most recent
// recording started.
func (m *Manager) StartTime() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastStart
}

// Close finalizes an active recording, stops streaming and releases the
// device. Pending events are delivered until ctx is done; the Events
// channel is closed afterwards.
func (m *Manager) Close(ctx context.Context) error {
	var err error
	m.closeOnce.Do(func() {
		err = m.do(ctx, "close", func() error {
			m.mu.Lock()
			s := m.session
			m.mu.Unlock()
			if s != nil {
				m.finishSession(s)
			}

			if !m.configured {
				return nil
			}
			m.configured = false
			if err := m.device.StopStreaming(); err != nil {
				m.logger.WithError(err).Warn("Failed to stop streaming")
			}
			return m.device.Close()
		})

		close(m.quit)
		m.wg.Wait()
		m.events.Close(ctx)
	})
	return err
}
