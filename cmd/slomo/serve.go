package main

import (
	"flag"
	"fmt"

	"github.com/zsiec/slomo/internal/container"
	"github.com/zsiec/slomo/internal/health"
	"github.com/zsiec/slomo/internal/server"
	"github.com/zsiec/slomo/pkg/version"
)

func runServe(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to configuration file")
	port := fs.Int("port", 0, "Listen port (overrides server.port)")
	_ = fs.Parse(args)

	cfg, log, err := setup(*configPath)
	if err != nil {
		return err
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}
	cfg.Server.Enabled = true
	if err := cfg.Server.Validate(); err != nil {
		return fmt.Errorf("invalid server config: %w", err)
	}

	log.WithField("version", version.GetInfo().Short()).Info("Starting slomo catalogue server")

	ctx, cancel := signalContext(log)
	defer cancel()

	idx, client, err := openIndex(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer idx.Close()

	checkers := []health.Checker{health.NewOutputDirChecker(cfg.Capture.OutputDir)}
	if client != nil {
		checkers = append(checkers, health.NewRedisChecker(client))
	}

	if cfg.Metrics.Enabled {
		go startMetricsServer(cfg.Metrics, log)
	}

	srv := server.New(&cfg.Server, log, server.Deps{
		Index:    idx,
		Checkers: checkers,
		Opener:   container.Open,
	})
	if err := srv.Start(ctx); err != nil {
		return fmt.Errorf("server error: %w", err)
	}

	log.Info("Server shutdown complete")
	return nil
}
