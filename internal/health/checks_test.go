package health

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zsiec/slomo/internal/capture"
)

func TestRedisChecker(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	checker := NewRedisChecker(client)
	assert.Equal(t, "redis", checker.Name())
	assert.NoError(t, checker.Check(context.Background()))

	mr.Close()
	err = checker.Check(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis ping failed")
}

func TestOutputDirChecker(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "recordings")
	checker := NewOutputDirChecker(dir)
	assert.Equal(t, "output_dir", checker.Name())

	require.NoError(t, checker.Check(context.Background()))
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "probe file is removed")

	file := filepath.Join(t.TempDir(), "not-a-dir")
	require.NoError(t, os.WriteFile(file, nil, 0o644))
	assert.Error(t, NewOutputDirChecker(file).Check(context.Background()))
}

type setupResult capture.SetupResult

func (s setupResult) SetupResult() capture.SetupResult { return capture.SetupResult(s) }

func TestCaptureChecker(t *testing.T) {
	ctx := context.Background()

	assert.NoError(t, NewCaptureChecker(setupResult(capture.SetupSuccess)).Check(ctx))

	err := NewCaptureChecker(setupResult(capture.SetupPending)).Check(ctx)
	assert.ErrorIs(t, err, ErrDegraded)

	err = NewCaptureChecker(setupResult(capture.SetupNotAuthorized)).Check(ctx)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrDegraded)
	assert.Contains(t, err.Error(), "not_authorized")
}
