package config

import (
	"fmt"
)

func (c *Config) Validate() error {
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("server config: %w", err)
	}

	if err := c.Index.Validate(); err != nil {
		return fmt.Errorf("index config: %w", err)
	}

	// Redis is only dialed for the redis index backend
	if c.Index.Backend == "redis" {
		if err := c.Redis.Validate(); err != nil {
			return fmt.Errorf("redis config: %w", err)
		}
	}

	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	if err := c.Metrics.Validate(); err != nil {
		return fmt.Errorf("metrics config: %w", err)
	}

	if err := c.Capture.Validate(); err != nil {
		return fmt.Errorf("capture config: %w", err)
	}

	if err := c.Playback.Validate(); err != nil {
		return fmt.Errorf("playback config: %w", err)
	}

	if c.Server.Enabled && c.Metrics.Enabled && c.Server.Port == c.Metrics.Port {
		return fmt.Errorf("server and metrics ports must differ")
	}

	return nil
}

func (s *ServerConfig) Validate() error {
	if !s.Enabled {
		return nil
	}

	if s.Port < 1 || s.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", s.Port)
	}

	if s.ListenAddr == "" {
		return fmt.Errorf("listen address cannot be empty")
	}

	if s.ReadTimeout < 0 || s.WriteTimeout < 0 || s.ShutdownTimeout < 0 {
		return fmt.Errorf("timeouts cannot be negative")
	}

	if s.RateLimit < 0 {
		return fmt.Errorf("rate_limit cannot be negative")
	}

	if s.RateLimit > 0 && s.RateBurst <= 0 {
		return fmt.Errorf("rate_burst must be positive when rate_limit is set")
	}

	return nil
}

func (r *RedisConfig) Validate() error {
	if len(r.Addresses) == 0 {
		return fmt.Errorf("at least one Redis address is required")
	}

	if r.DB < 0 {
		return fmt.Errorf("invalid Redis database number: %d", r.DB)
	}

	if r.MaxRetries < 0 {
		return fmt.Errorf("max_retries cannot be negative")
	}

	if r.PoolSize <= 0 {
		return fmt.Errorf("pool_size must be positive")
	}

	if r.MinIdleConns < 0 {
		return fmt.Errorf("min_idle_conns cannot be negative")
	}

	if r.MinIdleConns > r.PoolSize {
		return fmt.Errorf("min_idle_conns cannot be greater than pool_size")
	}

	return nil
}

func (i *IndexConfig) Validate() error {
	if i.Backend != "redis" && i.Backend != "memory" {
		return fmt.Errorf("backend must be 'redis' or 'memory'")
	}

	if i.Backend == "redis" && i.Prefix == "" {
		return fmt.Errorf("prefix cannot be empty for redis backend")
	}

	if i.TTL < 0 {
		return fmt.Errorf("ttl cannot be negative")
	}

	return nil
}

func (l *LoggingConfig) Validate() error {
	validLevels := map[string]bool{
		"panic": true,
		"fatal": true,
		"error": true,
		"warn":  true,
		"info":  true,
		"debug": true,
		"trace": true,
	}

	if !validLevels[l.Level] {
		return fmt.Errorf("invalid log level: %s", l.Level)
	}

	if l.Format != "json" && l.Format != "text" {
		return fmt.Errorf("log format must be 'json' or 'text'")
	}

	if l.Output != "stdout" && l.Output != "stderr" {
		if l.MaxSize <= 0 {
			return fmt.Errorf("max_size must be positive for file output")
		}

		if l.MaxBackups < 0 {
			return fmt.Errorf("max_backups cannot be negative")
		}

		if l.MaxAge < 0 {
			return fmt.Errorf("max_age cannot be negative")
		}
	}

	return nil
}

func (m *MetricsConfig) Validate() error {
	if !m.Enabled {
		return nil
	}

	if m.Port < 1 || m.Port > 65535 {
		return fmt.Errorf("invalid metrics port: %d", m.Port)
	}

	if m.Path == "" || m.Path[0] != '/' {
		return fmt.Errorf("metrics path must start with /")
	}

	return nil
}

func (c *CaptureConfig) Validate() error {
	if c.OutputDir == "" {
		return fmt.Errorf("output_dir cannot be empty")
	}

	if c.FrameQueueSize <= 0 {
		return fmt.Errorf("frame_queue_size must be positive")
	}

	if err := c.Device.Validate(); err != nil {
		return fmt.Errorf("device config: %w", err)
	}

	return nil
}

func (d *DeviceConfig) Validate() error {
	if d.Width <= 0 || d.Height <= 0 {
		return fmt.Errorf("invalid resolution: %dx%d", d.Width, d.Height)
	}

	if len(d.FrameRates) == 0 {
		return fmt.Errorf("at least one frame rate is required")
	}

	for _, rate := range d.FrameRates {
		if rate <= 0 {
			return fmt.Errorf("frame rates must be positive, got %g", rate)
		}
	}

	if d.FrameSize <= 0 {
		return fmt.Errorf("frame_size must be positive")
	}

	if d.KeyframeInterval <= 0 {
		return fmt.Errorf("keyframe_interval must be positive")
	}

	return nil
}

func (p *PlaybackConfig) Validate() error {
	if p.TickInterval <= 0 {
		return fmt.Errorf("tick_interval must be positive")
	}

	if p.EndBehavior != "hold" && p.EndBehavior != "rewind" {
		return fmt.Errorf("end_behavior must be 'hold' or 'rewind'")
	}

	if p.ScrubSeekRate < 0 {
		return fmt.Errorf("scrub_seek_rate cannot be negative")
	}

	if p.ScrubSeekRate > 0 && p.ScrubSeekBurst <= 0 {
		return fmt.Errorf("scrub_seek_burst must be positive when scrub_seek_rate is set")
	}

	if p.DefaultRate <= 0 {
		return fmt.Errorf("default_rate must be positive")
	}

	if p.MaxRate < p.DefaultRate {
		return fmt.Errorf("max_rate cannot be lower than default_rate")
	}

	return nil
}
