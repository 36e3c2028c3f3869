package health

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/redis/go-redis/v9"

	"github.com/zsiec/slomo/internal/capture"
)

// RedisChecker pings the recording index.
type RedisChecker struct {
	client *redis.Client
}

func NewRedisChecker(client *redis.Client) *RedisChecker {
	return &RedisChecker{client: client}
}

func (r *RedisChecker) Name() string {
	return "redis"
}

func (r *RedisChecker) Check(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

// OutputDirChecker verifies that recordings can be created in a directory.
type OutputDirChecker struct {
	dir string
}

func NewOutputDirChecker(dir string) *OutputDirChecker {
	return &OutputDirChecker{dir: dir}
}

func (o *OutputDirChecker) Name() string {
	return "output_dir"
}

func (o *OutputDirChecker) Check(ctx context.Context) error {
	if err := os.MkdirAll(o.dir, 0o755); err != nil {
		return fmt.Errorf("cannot create %s: %w", o.dir, err)
	}
	f, err := os.CreateTemp(o.dir, ".health-*")
	if err != nil {
		return fmt.Errorf("%s is not writable: %w", o.dir, err)
	}
	name := f.Name()
	f.Close()
	if err := os.Remove(name); err != nil {
		return fmt.Errorf("cannot remove probe file %s: %w", filepath.Base(name), err)
	}
	return nil
}

// SetupReporter exposes the capture setup outcome.
type SetupReporter interface {
	SetupResult() capture.SetupResult
}

// CaptureChecker reports down when the capture device was refused or
// failed to configure, and degraded while configuration is pending.
type CaptureChecker struct {
	source SetupReporter
}

func NewCaptureChecker(source SetupReporter) *CaptureChecker {
	return &CaptureChecker{source: source}
}

func (c *CaptureChecker) Name() string {
	return "capture"
}

func (c *CaptureChecker) Check(ctx context.Context) error {
	switch r := c.source.SetupResult(); r {
	case capture.SetupSuccess:
		return nil
	case capture.SetupPending:
		return fmt.Errorf("capture not configured: %w", ErrDegraded)
	default:
		return fmt.Errorf("capture setup %s", r)
	}
}
