package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Capture metrics
	recordingsStartedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "slomo_capture_recordings_started_total",
		Help: "Total recordings started",
	})

	recordingsFinishedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "slomo_capture_recordings_finished_total",
		Help: "Total recordings finished by result",
	}, []string{"result"})

	framesCapturedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "slomo_capture_frames_total",
		Help: "Frames accepted into a recording",
	})

	framesDroppedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "slomo_capture_frames_dropped_total",
		Help: "Frames dropped while recording by reason",
	}, []string{"reason"})

	recordingDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "slomo_capture_recording_duration_seconds",
		Help:    "Elapsed capture time of finished recordings",
		Buckets: prometheus.ExponentialBuckets(0.25, 2, 12), // 250ms to ~8.5m
	})

	captureRecording = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "slomo_capture_recording",
		Help: "1 while a recording session is active",
	})

	captureFrameRate = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "slomo_capture_active_frame_rate",
		Help: "Frame rate of the active capture format",
	})

	writerQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "slomo_capture_writer_queue_depth",
		Help: "Frames queued for the container writer",
	})

	// Playback metrics
	assetsLoadedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "slomo_playback_assets_loaded_total",
		Help: "Asset load attempts by result",
	}, []string{"result"})

	seeksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "slomo_playback_seeks_total",
		Help: "Seeks issued by mode and completion result",
	}, []string{"mode", "result"})

	ticksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "slomo_playback_ticks_total",
		Help: "Periodic ticks that refreshed playback state",
	})

	scrubSessionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "slomo_playback_scrub_sessions_total",
		Help: "Completed scrub gestures",
	})

	stepsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "slomo_playback_steps_total",
		Help: "Frame steps by direction",
	}, []string{"direction"})

	// Library metrics
	indexOperationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "slomo_library_index_operations_total",
		Help: "Recording index operations by operation and result",
	}, []string{"operation", "result"})

	// Debug metrics
	activeGoroutines = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "slomo_debug_goroutines_active",
		Help: "Goroutines currently running per component",
	}, []string{"component"})
)

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

// RecordingStarted marks the start of a capture session.
func RecordingStarted() {
	recordingsStartedTotal.Inc()
	captureRecording.Set(1)
}

// RecordingFinished records the outcome of a capture session.
func RecordingFinished(elapsedSeconds float64, err error) {
	recordingsFinishedTotal.WithLabelValues(result(err)).Inc()
	captureRecording.Set(0)
	if err == nil {
		recordingDuration.Observe(elapsedSeconds)
	}
}

// FrameCaptured counts a frame accepted into the active recording.
func FrameCaptured() {
	framesCapturedTotal.Inc()
}

// FrameDropped counts a frame rejected while recording.
// Reasons: "queue_full", "out_of_order", "write_error".
func FrameDropped(reason string) {
	framesDroppedTotal.WithLabelValues(reason).Inc()
}

// SetActiveFrameRate publishes the active capture format's frame rate.
func SetActiveFrameRate(fps float64) {
	captureFrameRate.Set(fps)
}

// SetWriterQueueDepth publishes the writer backlog.
func SetWriterQueueDepth(depth int) {
	writerQueueDepth.Set(float64(depth))
}

// AssetLoaded records an asset load attempt.
func AssetLoaded(err error) {
	assetsLoadedTotal.WithLabelValues(result(err)).Inc()
}

// SeekCompleted records a seek completion. mode is "exact" or "best_effort";
// superseded completions are recorded as "stale".
func SeekCompleted(mode string, finished, stale bool) {
	r := "finished"
	switch {
	case stale:
		r = "stale"
	case !finished:
		r = "interrupted"
	}
	seeksTotal.WithLabelValues(mode, r).Inc()
}

// PlaybackTick counts a tick that refreshed the published state.
func PlaybackTick() {
	ticksTotal.Inc()
}

// ScrubFinished counts a completed scrub gesture.
func ScrubFinished() {
	scrubSessionsTotal.Inc()
}

// FrameStepped counts a frame step in the direction of delta.
func FrameStepped(delta int) {
	dir := "forward"
	if delta < 0 {
		dir = "backward"
	}
	stepsTotal.WithLabelValues(dir).Inc()
}

// IndexOperation records a recording index call.
func IndexOperation(operation string, err error) {
	indexOperationsTotal.WithLabelValues(operation, result(err)).Inc()
}

// GoroutineStarted and GoroutineStopped track long-lived goroutines.
func GoroutineStarted(component string) {
	activeGoroutines.WithLabelValues(component).Inc()
}

func GoroutineStopped(component string) {
	activeGoroutines.WithLabelValues(component).Dec()
}
