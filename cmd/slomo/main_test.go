package main

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zsiec/slomo/internal/capture"
	"github.com/zsiec/slomo/internal/capture/simulated"
	"github.com/zsiec/slomo/internal/config"
	"github.com/zsiec/slomo/internal/container"
	"github.com/zsiec/slomo/internal/library"
	"github.com/zsiec/slomo/internal/logger"
	"github.com/zsiec/slomo/internal/media"
)

func TestParseDuration(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Duration
		wantErr bool
	}{
		{"1.5s", 1500 * time.Millisecond, false},
		{"250ms", 250 * time.Millisecond, false},
		{"2", 2 * time.Second, false},
		{"0.25", 250 * time.Millisecond, false},
		{"-1s", 0, true},
		{"-3", 0, true},
		{"soon", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseDuration(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCatalogueForwardsFirstRecording(t *testing.T) {
	idx := library.NewMemoryIndex()
	events := make(chan capture.Event, 3)
	out := make(chan *library.Recording, 1)

	finished := func(id string) capture.Event {
		return capture.Event{
			Type:      capture.EventRecordingFinished,
			SessionID: id,
			Result: &capture.RecordingResult{
				SessionID: id,
				Path:      "/rec/" + id + ".flv",
				Format:    media.CaptureFormat{FrameRate: media.FrameRate240},
				Frames:    10,
			},
		}
	}
	events <- capture.Event{Type: capture.EventRecordingStarted, SessionID: "a"}
	events <- finished("a")
	events <- finished("b")
	close(events)

	catalogue(library.NewCataloguer(idx, nil), events, out)

	rec, ok := <-out
	require.True(t, ok)
	assert.Equal(t, "a", rec.ID)
	_, ok = <-out
	assert.False(t, ok)

	recs, err := idx.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, recs, 2)
}

func TestCommandsAreUnique(t *testing.T) {
	seen := map[string]bool{}
	for _, c := range commands {
		assert.False(t, seen[c.name], c.name)
		seen[c.name] = true
		assert.NotNil(t, c.run)
	}
	assert.True(t, seen["record"])
	assert.True(t, seen["play"])
}

func TestFastRecordingOpensForPlayback(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Capture.OutputDir = t.TempDir()
	cfg.Capture.DesiredFPS = 100

	log := logrus.New()
	log.SetOutput(io.Discard)

	clock := media.NewManualClock(0)
	device := simulated.NewDevice(simulated.OptionsFromConfig(cfg.Capture.Device, clock, false))
	mgr := capture.NewManager(device, container.NewFactory(), clock, &cfg.Capture, logger.NewNullLogger())

	results := make(chan *library.Recording, 1)
	go catalogue(library.NewCataloguer(library.NewMemoryIndex(), nil), mgr.Events(), results)

	ctx := context.Background()
	require.NoError(t, record(ctx, mgr, device, cfg, 2*time.Second, true, log))

	closeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	require.NoError(t, mgr.Close(closeCtx))

	rec, ok := <-results
	require.True(t, ok)
	require.NotNil(t, rec)

	asset, err := container.Open(rec.Path)
	require.NoError(t, err, "the file a recording produces must open for playback")
	assert.Equal(t, rec.FrameRate, asset.FrameRate())
	assert.Equal(t, int64(rec.Frames), asset.FrameCount())
	assert.GreaterOrEqual(t, asset.FrameCount(), int64(200))
	assert.NotEmpty(t, asset.Keyframes())
}
