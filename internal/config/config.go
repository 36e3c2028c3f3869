package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Index    IndexConfig    `mapstructure:"index"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Capture  CaptureConfig  `mapstructure:"capture"`
	Playback PlaybackConfig `mapstructure:"playback"`
}

type ServerConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	ListenAddr      string        `mapstructure:"listen_addr"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	DebugEndpoints  bool          `mapstructure:"debug_endpoints"`
	RateLimit       float64       `mapstructure:"rate_limit"` // API requests per second, 0 = unlimited
	RateBurst       int           `mapstructure:"rate_burst"`
}

type RedisConfig struct {
	Addresses    []string      `mapstructure:"addresses"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	MaxRetries   int           `mapstructure:"max_retries"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
}

// IndexConfig selects where finished recordings are catalogued.
type IndexConfig struct {
	Backend string        `mapstructure:"backend"` // redis or memory
	Prefix  string        `mapstructure:"prefix"`
	TTL     time.Duration `mapstructure:"ttl"` // 0 keeps entries forever
}

type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`   // json or text
	Output     string `mapstructure:"output"`   // stdout, stderr, or file path
	MaxSize    int    `mapstructure:"max_size"` // MB
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"` // days
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
	Port    int    `mapstructure:"port"`
}

type CaptureConfig struct {
	OutputDir      string       `mapstructure:"output_dir"`
	DesiredFPS     float64      `mapstructure:"desired_fps"`      // <= 0 selects the highest rate
	FrameQueueSize int          `mapstructure:"frame_queue_size"` // frames buffered between delivery and writer
	Device         DeviceConfig `mapstructure:"device"`
}

// DeviceConfig describes the simulated sensor used when no hardware
// capability is wired in.
type DeviceConfig struct {
	Name             string    `mapstructure:"name"`
	Width            int       `mapstructure:"width"`
	Height           int       `mapstructure:"height"`
	FrameRates       []float64 `mapstructure:"frame_rates"`
	PixelFormat      string    `mapstructure:"pixel_format"`
	Authorized       bool      `mapstructure:"authorized"`
	FrameSize        int       `mapstructure:"frame_size"` // payload bytes per synthetic frame
	KeyframeInterval int       `mapstructure:"keyframe_interval"`
}

type PlaybackConfig struct {
	TickInterval   time.Duration `mapstructure:"tick_interval"`
	EndBehavior    string        `mapstructure:"end_behavior"`     // hold or rewind
	ScrubSeekRate  float64       `mapstructure:"scrub_seek_rate"`  // best-effort seeks per second, 0 = unlimited
	ScrubSeekBurst int           `mapstructure:"scrub_seek_burst"`
	DefaultRate    float64       `mapstructure:"default_rate"`
	MaxRate        float64       `mapstructure:"max_rate"`
}

// Load reads configuration from configPath. An empty path loads defaults
// and environment overrides only.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	// Environment variable override
	v.SetEnvPrefix("SLOMO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.enabled", false)
	v.SetDefault("server.listen_addr", "127.0.0.1")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "15s")
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("server.debug_endpoints", false)
	v.SetDefault("server.rate_limit", 50)
	v.SetDefault("server.rate_burst", 100)

	// Redis defaults
	v.SetDefault("redis.addresses", []string{"localhost:6379"})
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.max_retries", 3)
	v.SetDefault("redis.dial_timeout", "5s")
	v.SetDefault("redis.read_timeout", "3s")
	v.SetDefault("redis.write_timeout", "3s")
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.min_idle_conns", 1)

	// Index defaults
	v.SetDefault("index.backend", "memory")
	v.SetDefault("index.prefix", "slomo:recordings:")
	v.SetDefault("index.ttl", "0s")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
	v.SetDefault("logging.output", "stderr")
	v.SetDefault("logging.max_size", 100)
	v.SetDefault("logging.max_backups", 5)
	v.SetDefault("logging.max_age", 30)

	// Metrics defaults
	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.path", "/metrics")
	v.SetDefault("metrics.port", 9090)

	// Capture defaults
	v.SetDefault("capture.output_dir", "recordings")
	v.SetDefault("capture.desired_fps", 120)
	v.SetDefault("capture.frame_queue_size", 512) // ~2s at 240fps
	v.SetDefault("capture.device.name", "sim0")
	v.SetDefault("capture.device.width", 1280)
	v.SetDefault("capture.device.height", 720)
	v.SetDefault("capture.device.frame_rates", []float64{30, 60, 120, 240})
	v.SetDefault("capture.device.pixel_format", "nv12")
	v.SetDefault("capture.device.authorized", true)
	v.SetDefault("capture.device.frame_size", 4096)
	v.SetDefault("capture.device.keyframe_interval", 30)

	// Playback defaults
	v.SetDefault("playback.tick_interval", "33ms")
	v.SetDefault("playback.end_behavior", "hold")
	v.SetDefault("playback.scrub_seek_rate", 30)
	v.SetDefault("playback.scrub_seek_burst", 1)
	v.SetDefault("playback.default_rate", 1.0)
	v.SetDefault("playback.max_rate", 8.0)
}
