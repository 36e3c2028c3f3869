package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/zsiec/slomo/internal/capture"
	"github.com/zsiec/slomo/internal/capture/simulated"
	"github.com/zsiec/slomo/internal/config"
	"github.com/zsiec/slomo/internal/container"
	"github.com/zsiec/slomo/internal/library"
	"github.com/zsiec/slomo/internal/logger"
	"github.com/zsiec/slomo/internal/media"
)

const (
	progressInterval = 250 * time.Millisecond
	// fastBatch frames are delivered between yields so the writer keeps up.
	fastBatch = 64
)

func runRecord(args []string) error {
	fs := flag.NewFlagSet("record", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to configuration file")
	fps := fs.Float64("fps", 0, "Desired frame rate (overrides capture.desired_fps, negative selects the highest)")
	duration := fs.Duration("duration", 2*time.Second, "How long to record")
	outDir := fs.String("out", "", "Output directory (overrides capture.output_dir)")
	fast := fs.Bool("fast", false, "Generate frames as fast as possible on a simulated clock")
	_ = fs.Parse(args)

	cfg, log, err := setup(*configPath)
	if err != nil {
		return err
	}
	if *fps != 0 {
		cfg.Capture.DesiredFPS = *fps
	}
	if *outDir != "" {
		cfg.Capture.OutputDir = *outDir
	}
	if err := os.MkdirAll(cfg.Capture.OutputDir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	ctx, cancel := signalContext(log)
	defer cancel()

	if cfg.Metrics.Enabled {
		go startMetricsServer(cfg.Metrics, log)
	}

	idx, _, err := openIndex(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer idx.Close()

	var clock media.Clock = media.NewSystemClock()
	if *fast {
		clock = media.NewManualClock(0)
	}
	device := simulated.NewDevice(simulated.OptionsFromConfig(cfg.Capture.Device, clock, !*fast))
	mgr := capture.NewManager(device, container.NewFactory(), clock, &cfg.Capture, logger.ForComponent(log, "capture"))

	cataloguer := library.NewCataloguer(idx, logger.ForComponent(log, "library"))
	results := make(chan *library.Recording, 1)
	go catalogue(cataloguer, mgr.Events(), results)

	recErr := record(ctx, mgr, device, cfg, *duration, *fast, log)

	closeCtx, closeCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer closeCancel()
	if err := mgr.Close(closeCtx); err != nil {
		log.WithError(err).Warn("Failed to close capture manager")
	}
	if recErr != nil {
		return recErr
	}

	rec, ok := <-results
	if !ok || rec == nil {
		return fmt.Errorf("recording was not catalogued")
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(rec)
}

// catalogue indexes finished recordings and forwards the first one.
func catalogue(c *library.Cataloguer, events <-chan capture.Event, out chan<- *library.Recording) {
	defer close(out)
	sent := false
	for ev := range events {
		rec, err := c.Handle(context.Background(), ev)
		if err != nil || rec == nil || sent {
			continue
		}
		out <- rec
		sent = true
	}
}

func record(ctx context.Context, mgr *capture.Manager, device *simulated.Device, cfg *config.Config, duration time.Duration, fast bool, log *logrus.Logger) error {
	if err := mgr.Configure(ctx, simulated.NewPreview()); err != nil {
		return fmt.Errorf("capture setup %s: %w", mgr.SetupResult(), err)
	}

	format, err := mgr.SelectFormat(cfg.Capture.DesiredFPS)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "Recording %s for %s\n", format, duration)

	if err := mgr.StartRecording(ctx); err != nil {
		return err
	}

	if fast {
		deliverFast(ctx, device, media.FramesIn(duration, format.FrameRate))
	} else {
		waitRecording(ctx, mgr, duration)
	}

	if err := mgr.StopRecording(context.Background()); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "\rframes: %d\n", mgr.FrameCount())
	log.WithField("frames", mgr.FrameCount()).Debug("Capture stopped")
	return nil
}

func deliverFast(ctx context.Context, device *simulated.Device, total int64) {
	for sent := int64(0); sent < total; {
		if ctx.Err() != nil {
			return
		}
		n := int64(fastBatch)
		if total-sent < n {
			n = total - sent
		}
		delivered, err := device.Deliver(int(n))
		if err != nil {
			return
		}
		sent += int64(delivered)
		time.Sleep(time.Millisecond)
	}
}

func waitRecording(ctx context.Context, mgr *capture.Manager, duration time.Duration) {
	deadline := time.NewTimer(duration)
	defer deadline.Stop()
	ticker := time.NewTicker(progressInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-deadline.C:
			return
		case <-ticker.C:
			fmt.Fprintf(os.Stderr, "\rframes: %d", mgr.FrameCount())
		}
	}
}

func runFormats(args []string) error {
	fs := flag.NewFlagSet("formats", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to configuration file")
	_ = fs.Parse(args)

	cfg, log, err := setup(*configPath)
	if err != nil {
		return err
	}

	ctx := context.Background()
	clock := media.NewManualClock(0)
	device := simulated.NewDevice(simulated.OptionsFromConfig(cfg.Capture.Device, clock, false))
	mgr := capture.NewManager(device, container.NewFactory(), clock, &cfg.Capture, logger.ForComponent(log, "capture"))
	defer mgr.Close(ctx)

	if err := mgr.Configure(ctx, nil); err != nil {
		return fmt.Errorf("capture setup %s: %w", mgr.SetupResult(), err)
	}
	formats, err := mgr.ListFormats()
	if err != nil {
		return err
	}

	highest, _ := capture.HighestFrameRate(formats)
	fmt.Printf("%s\n", device.Name())
	for _, f := range formats {
		mark := " "
		if f == highest {
			mark = "*"
		}
		fmt.Printf(" %s %-12s %8.3f fps  %s  %s\n", mark, f.FrameRate, f.FrameRate.Float64(), f.Resolution, f.PixelFormat)
	}
	return nil
}
