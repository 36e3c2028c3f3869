package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zsiec/slomo/internal/config"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.LoggingConfig
		level   logrus.Level
		wantErr bool
	}{
		{
			name:  "json to stdout",
			cfg:   config.LoggingConfig{Level: "debug", Format: "json", Output: "stdout"},
			level: logrus.DebugLevel,
		},
		{
			name:  "text to stderr",
			cfg:   config.LoggingConfig{Level: "warn", Format: "text", Output: "stderr"},
			level: logrus.WarnLevel,
		},
		{
			name:    "bad level",
			cfg:     config.LoggingConfig{Level: "loud", Format: "text", Output: "stderr"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log, err := New(&tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.level, log.GetLevel())
		})
	}
}

func TestNew_FileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "slomo.log")
	log, err := New(&config.LoggingConfig{
		Level: "info", Format: "json", Output: path,
		MaxSize: 1, MaxBackups: 1, MaxAge: 1,
	})
	require.NoError(t, err)

	log.Info("written to file")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "written to file")
}

func TestNew_DefaultFields(t *testing.T) {
	log, err := New(&config.LoggingConfig{Level: "info", Format: "json", Output: "stdout"})
	require.NoError(t, err)

	var buf bytes.Buffer
	log.SetOutput(&buf)
	log.WithField("service", "override").Info("one")
	log.Info("two")

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 2)

	var first, second map[string]interface{}
	require.NoError(t, json.Unmarshal(lines[0], &first))
	require.NoError(t, json.Unmarshal(lines[1], &second))

	assert.Equal(t, "override", first["service"])
	assert.Equal(t, "slomo", second["service"])
	assert.NotEmpty(t, second["version"])
	assert.Equal(t, "two", second["message"])
}

func newBufferLogger(buf *bytes.Buffer) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(buf)
	log.SetFormatter(&logrus.JSONFormatter{})
	log.SetLevel(logrus.DebugLevel)
	return log
}

func TestScopedEntries(t *testing.T) {
	var buf bytes.Buffer
	log := newBufferLogger(&buf)

	WithSession(log, "sess-1").Info("session")
	WithAsset(log, "/tmp/a.flv").Info("asset")
	WithComponent(log, "capture").Info("component")

	out := buf.String()
	assert.Contains(t, out, `"session_id":"sess-1"`)
	assert.Contains(t, out, `"asset":"/tmp/a.flv"`)
	assert.Contains(t, out, `"component":"capture"`)
}

func TestLogrusAdapter(t *testing.T) {
	var buf bytes.Buffer
	log := newBufferLogger(&buf)

	l := ForComponent(log, "playback")
	l.WithFields(map[string]interface{}{"frame": 12}).WithField("rate", 0.25).Infof("seek to %d", 12)
	l.WithError(assert.AnError).Warn("failed")
	l.Log(logrus.DebugLevel, "debug via Log")

	out := buf.String()
	assert.Contains(t, out, `"component":"playback"`)
	assert.Contains(t, out, `"frame":12`)
	assert.Contains(t, out, `"rate":0.25`)
	assert.Contains(t, out, "seek to 12")
	assert.Contains(t, out, assert.AnError.Error())
	assert.Contains(t, out, "debug via Log")
}

func TestNullLogger(t *testing.T) {
	l := NewNullLogger()
	assert.NotPanics(t, func() {
		l.WithField("a", 1).WithFields(nil).WithError(assert.AnError).Info("x")
		l.Errorf("y %d", 1)
		l.Fatal("does not exit")
	})
	assert.Equal(t, l, l.WithField("session_id", "s1").WithError(assert.AnError),
		"derived loggers stay discarding")
}
