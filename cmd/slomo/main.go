package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/zsiec/slomo/internal/config"
	"github.com/zsiec/slomo/internal/library"
	"github.com/zsiec/slomo/internal/logger"
	"github.com/zsiec/slomo/pkg/version"
)

type command struct {
	name  string
	usage string
	run   func(args []string) error
}

var commands = []command{
	{"record", "capture a high-frame-rate recording from the simulated sensor", runRecord},
	{"formats", "list the capture formats the sensor offers", runFormats},
	{"inspect", "print what a recording file carries", runInspect},
	{"play", "play a recording frame by frame in the terminal", runPlay},
	{"serve", "serve the recording catalogue over HTTP", runServe},
	{"version", "show version information", runVersion},
}

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: slomo <command> [flags]\n\nCommands:\n")
	for _, c := range commands {
		fmt.Fprintf(os.Stderr, "  %-8s %s\n", c.name, c.usage)
	}
	fmt.Fprintf(os.Stderr, "\nRun 'slomo <command> -h' for command flags.\n")
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	name := os.Args[1]
	if name == "-h" || name == "-help" || name == "help" {
		usage()
		return
	}
	for _, c := range commands {
		if c.name != name {
			continue
		}
		if err := c.run(os.Args[2:]); err != nil {
			fmt.Fprintf(os.Stderr, "slomo %s: %v\n", name, err)
			os.Exit(1)
		}
		return
	}

	fmt.Fprintf(os.Stderr, "unknown command %q\n\n", name)
	usage()
	os.Exit(2)
}

func runVersion(args []string) error {
	fs := flag.NewFlagSet("version", flag.ExitOnError)
	short := fs.Bool("short", false, "Print the version only")
	_ = fs.Parse(args)

	if *short {
		fmt.Println(version.GetInfo().Short())
		return nil
	}
	fmt.Println(version.GetInfo().String())
	return nil
}

// setup loads configuration and builds the root logger.
func setup(configPath string) (*config.Config, *logrus.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	log, err := logger.New(&cfg.Logging)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	log.WithField("config_path", configPath).Debug("Configuration loaded")
	return cfg, log, nil
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext(log *logrus.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		select {
		case sig := <-sigCh:
			log.WithField("signal", sig).Info("Received shutdown signal")
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()
	return ctx, cancel
}

func newRedisClient(cfg *config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         cfg.Addresses[0],
		Password:     cfg.Password,
		DB:           cfg.DB,
		MaxRetries:   cfg.MaxRetries,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
	})
}

// openIndex builds the configured recording index. The returned client is
// nil for the memory backend.
func openIndex(ctx context.Context, cfg *config.Config, log *logrus.Logger) (library.Index, *redis.Client, error) {
	var client *redis.Client
	if cfg.Index.Backend == "redis" {
		client = newRedisClient(&cfg.Redis)
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		log.WithField("addr", cfg.Redis.Addresses[0]).Info("Connected to Redis successfully")
	}

	idx, err := library.New(&cfg.Index, client, logger.ForComponent(log, "library"))
	if err != nil {
		if client != nil {
			client.Close()
		}
		return nil, nil, err
	}
	return idx, client, nil
}

func startMetricsServer(cfg config.MetricsConfig, log *logrus.Logger) {
	mux := http.NewServeMux()
	mux.Handle(cfg.Path, promhttp.Handler())

	addr := fmt.Sprintf(":%d", cfg.Port)
	log.WithField("addr", addr).Info("Starting metrics server")

	if err := http.ListenAndServe(addr, mux); err != nil {
		log.WithError(err).Error("Metrics server error")
	}
}
