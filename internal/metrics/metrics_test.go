package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordingLifecycle(t *testing.T) {
	started := testutil.ToFloat64(recordingsStartedTotal)
	ok := testutil.ToFloat64(recordingsFinishedTotal.WithLabelValues("success"))
	failed := testutil.ToFloat64(recordingsFinishedTotal.WithLabelValues("error"))

	RecordingStarted()
	assert.Equal(t, started+1, testutil.ToFloat64(recordingsStartedTotal))
	assert.Equal(t, float64(1), testutil.ToFloat64(captureRecording))

	RecordingFinished(2.0, nil)
	assert.Equal(t, float64(0), testutil.ToFloat64(captureRecording))
	assert.Equal(t, ok+1, testutil.ToFloat64(recordingsFinishedTotal.WithLabelValues("success")))

	RecordingStarted()
	RecordingFinished(0, assert.AnError)
	assert.Equal(t, failed+1, testutil.ToFloat64(recordingsFinishedTotal.WithLabelValues("error")))
}

func TestRecordingDurationObservedOnSuccessOnly(t *testing.T) {
	before := histogramCount(t, recordingDuration)
	RecordingFinished(1.5, nil)
	RecordingFinished(9, assert.AnError)
	assert.Equal(t, before+1, histogramCount(t, recordingDuration))
}

func histogramCount(t *testing.T, h prometheus.Histogram) uint64 {
	t.Helper()
	m := &dto.Metric{}
	require.NoError(t, h.Write(m))
	return m.GetHistogram().GetSampleCount()
}

func TestFrameCounters(t *testing.T) {
	captured := testutil.ToFloat64(framesCapturedTotal)
	full := testutil.ToFloat64(framesDroppedTotal.WithLabelValues("queue_full"))

	for i := 0; i < 240; i++ {
		FrameCaptured()
	}
	FrameDropped("queue_full")
	FrameDropped("queue_full")

	assert.Equal(t, captured+240, testutil.ToFloat64(framesCapturedTotal))
	assert.Equal(t, full+2, testutil.ToFloat64(framesDroppedTotal.WithLabelValues("queue_full")))
}

func TestGauges(t *testing.T) {
	SetActiveFrameRate(119.88)
	SetWriterQueueDepth(17)
	assert.InDelta(t, 119.88, testutil.ToFloat64(captureFrameRate), 1e-9)
	assert.Equal(t, float64(17), testutil.ToFloat64(writerQueueDepth))
}

func TestSeekCompleted(t *testing.T) {
	tests := []struct {
		finished, stale bool
		label           string
	}{
		{true, false, "finished"},
		{false, false, "interrupted"},
		{true, true, "stale"},
		{false, true, "stale"},
	}
	for _, tt := range tests {
		c := seeksTotal.WithLabelValues("exact", tt.label)
		before := testutil.ToFloat64(c)
		SeekCompleted("exact", tt.finished, tt.stale)
		assert.Equal(t, before+1, testutil.ToFloat64(c), tt.label)
	}
}

func TestPlaybackCounters(t *testing.T) {
	fwd := testutil.ToFloat64(stepsTotal.WithLabelValues("forward"))
	back := testutil.ToFloat64(stepsTotal.WithLabelValues("backward"))
	ticks := testutil.ToFloat64(ticksTotal)
	scrubs := testutil.ToFloat64(scrubSessionsTotal)
	loads := testutil.ToFloat64(assetsLoadedTotal.WithLabelValues("error"))

	FrameStepped(1)
	FrameStepped(-3)
	PlaybackTick()
	ScrubFinished()
	AssetLoaded(assert.AnError)

	assert.Equal(t, fwd+1, testutil.ToFloat64(stepsTotal.WithLabelValues("forward")))
	assert.Equal(t, back+1, testutil.ToFloat64(stepsTotal.WithLabelValues("backward")))
	assert.Equal(t, ticks+1, testutil.ToFloat64(ticksTotal))
	assert.Equal(t, scrubs+1, testutil.ToFloat64(scrubSessionsTotal))
	assert.Equal(t, loads+1, testutil.ToFloat64(assetsLoadedTotal.WithLabelValues("error")))
}

func TestIndexOperationAndGoroutines(t *testing.T) {
	c := indexOperationsTotal.WithLabelValues("put", "success")
	before := testutil.ToFloat64(c)
	IndexOperation("put", nil)
	assert.Equal(t, before+1, testutil.ToFloat64(c))

	g := activeGoroutines.WithLabelValues("test_component")
	base := testutil.ToFloat64(g)
	GoroutineStarted("test_component")
	GoroutineStarted("test_component")
	GoroutineStopped("test_component")
	assert.Equal(t, base+1, testutil.ToFloat64(g))
}
