package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/zsiec/slomo/internal/container"
	"github.com/zsiec/slomo/internal/logger"
	"github.com/zsiec/slomo/internal/media"
	"github.com/zsiec/slomo/internal/playback"
	"github.com/zsiec/slomo/internal/ui"
)

func runPlay(args []string) error {
	fs := flag.NewFlagSet("play", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to configuration file")
	id := fs.String("id", "", "Play the catalogued recording with this id instead of a path")
	rate := fs.Float64("rate", 0, "Initial playback rate (overrides playback.default_rate)")
	_ = fs.Parse(args)

	cfg, log, err := setup(*configPath)
	if err != nil {
		return err
	}
	// the terminal belongs to the player
	if cfg.Logging.Output == "stdout" || cfg.Logging.Output == "stderr" {
		log.SetOutput(io.Discard)
	}
	if *rate > 0 {
		cfg.Playback.DefaultRate = *rate
	}

	ctx, cancel := signalContext(log)
	defer cancel()

	path := fs.Arg(0)
	if *id != "" {
		idx, _, err := openIndex(ctx, cfg, log)
		if err != nil {
			return err
		}
		rec, err := idx.Get(ctx, *id)
		idx.Close()
		if err != nil {
			return err
		}
		path = rec.Path
	}
	if path == "" {
		return fmt.Errorf("usage: slomo play [-id id | <recording.flv>]")
	}

	opts, err := playback.OptionsFromConfig(&cfg.Playback)
	if err != nil {
		return err
	}
	assetLog := logger.ForComponent(log, "container")
	opener := playback.AssetOpenerFunc(func(p string) (playback.Asset, error) {
		a, err := container.OpenWithLogger(p, assetLog)
		if err != nil {
			return nil, err
		}
		return a, nil
	})
	players := playback.NewClockPlayerFactory(media.NewSystemClock(), cfg.Playback.MaxRate)
	ctrl := playback.NewController(opener, players, opts, logger.ForComponent(log, "playback"))
	defer func() {
		closeCtx, closeCancel := context.WithTimeout(context.Background(), time.Second)
		defer closeCancel()
		ctrl.Close(closeCtx)
	}()

	if err := ctrl.LoadAsset(path); err != nil {
		return err
	}

	go func() {
		for ev := range ctrl.Events() {
			log.WithField("event", string(ev.Type)).Debug("Playback event")
		}
	}()
	go ctrl.Run(ctx)

	program := tea.NewProgram(ui.NewPlayerModel(ctrl), tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := program.Run(); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}
