package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zsiec/slomo/internal/config"
	"github.com/zsiec/slomo/internal/container"
	"github.com/zsiec/slomo/internal/errors"
	"github.com/zsiec/slomo/internal/health"
	"github.com/zsiec/slomo/internal/library"
	"github.com/zsiec/slomo/internal/media"
)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return l
}

func testConfig() *config.ServerConfig {
	return &config.ServerConfig{
		Enabled:         true,
		ListenAddr:      "127.0.0.1",
		Port:            0,
		ShutdownTimeout: time.Second,
	}
}

type fixture struct {
	srv   *Server
	index *library.MemoryIndex
	dir   string
}

func newFixture(t *testing.T, cfg *config.ServerConfig, checkers ...health.Checker) *fixture {
	t.Helper()
	f := &fixture{index: library.NewMemoryIndex(), dir: t.TempDir()}
	f.srv = New(cfg, quietLogger(), Deps{Index: f.index, Checkers: checkers})
	return f
}

// addRecording writes a real 120 fps recording and indexes it.
func (f *fixture) addRecording(t *testing.T, id string, frames int) *library.Recording {
	t.Helper()
	format := media.CaptureFormat{
		FrameRate:   media.FrameRate120,
		Resolution:  media.Resolution{Width: 1280, Height: 720},
		PixelFormat: media.PixelFormatNV12,
	}
	path := filepath.Join(f.dir, id+".flv")
	w, err := container.Create(path, format)
	require.NoError(t, err)
	for i := 0; i < frames; i++ {
		require.NoError(t, w.Append(&media.Frame{Sequence: uint64(i), Data: []byte{1, 2}, IsKeyframe: i%30 == 0},
			media.DurationOf(int64(i), format.FrameRate)))
	}
	require.NoError(t, w.Finalize())

	rec := &library.Recording{
		ID:        id,
		Path:      path,
		FrameRate: format.FrameRate,
		FPS:       120,
		Frames:    frames,
		Duration:  media.DurationOf(int64(frames), format.FrameRate),
		StartedAt: time.Now().UTC(),
		Status:    library.StatusComplete,
	}
	require.NoError(t, f.index.Put(context.Background(), rec))
	return rec
}

func (f *fixture) do(t *testing.T, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	f.srv.Handler().ServeHTTP(rr, httptest.NewRequest(method, target, nil))
	return rr
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) errors.ErrorResponse {
	t.Helper()
	var resp errors.ErrorResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	return resp
}

func TestVersion(t *testing.T) {
	f := newFixture(t, testConfig())
	rr := f.do(t, http.MethodGet, "/version")

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	assert.NotEmpty(t, rr.Header().Get("X-Request-ID"))

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Contains(t, body, "version")
}

func TestListRecordings(t *testing.T) {
	f := newFixture(t, testConfig())

	rr := f.do(t, http.MethodGet, "/api/v1/recordings")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"recordings":[],"count":0}`, rr.Body.String())

	f.addRecording(t, "a", 10)
	f.addRecording(t, "b", 10)
	rr = f.do(t, http.MethodGet, "/api/v1/recordings")
	var body struct {
		Recordings []library.Recording `json:"recordings"`
		Count      int                 `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, 2, body.Count)
}

func TestGetRecording(t *testing.T) {
	f := newFixture(t, testConfig())
	f.addRecording(t, "clip", 24)

	rr := f.do(t, http.MethodGet, "/api/v1/recordings/clip")
	require.Equal(t, http.StatusOK, rr.Code)
	var rec library.Recording
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &rec))
	assert.Equal(t, "clip", rec.ID)
	assert.Equal(t, media.FrameRate120, rec.FrameRate)

	rr = f.do(t, http.MethodGet, "/api/v1/recordings/nope")
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, errors.ErrorTypeNotFound, decodeError(t, rr).Error.Type)
}

func TestTimeCode(t *testing.T) {
	f := newFixture(t, testConfig())
	f.addRecording(t, "clip", 240)

	tests := []struct {
		query    string
		frame    int64
		timeCode string
	}{
		{"t=1s", 120, "00:00:01:00"},
		{"t=0.5", 60, "00:00:00:60"},
		{"t=90ms", 10, "00:00:00:10"},
		{"t=1h", 239, "00:00:01:119"},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			rr := f.do(t, http.MethodGet, "/api/v1/recordings/clip/timecode?"+tt.query)
			require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

			var resp TimeCodeResponse
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
			assert.Equal(t, tt.frame, resp.FrameIndex)
			assert.Equal(t, tt.timeCode, resp.TimeCode)
			assert.Equal(t, media.FrameStart(tt.frame, media.FrameRate120), resp.FrameStart)
			assert.Equal(t, 240, resp.TotalFrames)
		})
	}

	for _, bad := range []string{"", "t=", "t=abc", "t=-1", "t=-2s"} {
		rr := f.do(t, http.MethodGet, "/api/v1/recordings/clip/timecode?"+bad)
		assert.Equal(t, http.StatusBadRequest, rr.Code, bad)
		assert.Equal(t, errors.ErrorTypeValidation, decodeError(t, rr).Error.Type)
	}
}

func TestDeleteRecording(t *testing.T) {
	f := newFixture(t, testConfig())
	keep := f.addRecording(t, "keep-file", 5)
	gone := f.addRecording(t, "remove-file", 5)

	rr := f.do(t, http.MethodDelete, "/api/v1/recordings/keep-file")
	assert.Equal(t, http.StatusNoContent, rr.Code)
	_, err := os.Stat(keep.Path)
	assert.NoError(t, err)

	rr = f.do(t, http.MethodDelete, "/api/v1/recordings/remove-file?remove_file=true")
	assert.Equal(t, http.StatusNoContent, rr.Code)
	_, err = os.Stat(gone.Path)
	assert.True(t, os.IsNotExist(err))

	rr = f.do(t, http.MethodDelete, "/api/v1/recordings/keep-file")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestAssetInfo(t *testing.T) {
	f := newFixture(t, testConfig())
	rec := f.addRecording(t, "clip", 240)

	rr := f.do(t, http.MethodGet, "/api/v1/recordings/clip/asset")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var info container.Info
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &info))
	assert.Equal(t, int64(240), info.Frames)
	assert.Equal(t, 2*time.Second, info.Duration)
	assert.Equal(t, 4.0, info.SlowdownAt30)

	require.NoError(t, os.Remove(rec.Path))
	rr = f.do(t, http.MethodGet, "/api/v1/recordings/clip/asset")
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	assert.Equal(t, errors.ErrorTypeUnreadableAsset, decodeError(t, rr).Error.Type)
}

func TestRateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimit = 0.001
	cfg.RateBurst = 2
	f := newFixture(t, cfg)

	assert.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/api/v1/recordings").Code)
	assert.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/api/v1/recordings").Code)

	rr := f.do(t, http.MethodGet, "/api/v1/recordings")
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.Equal(t, "1", rr.Header().Get("Retry-After"))
	assert.Equal(t, errors.ErrorTypeRateLimit, decodeError(t, rr).Error.Type)

	// probes are outside the API and never limited
	assert.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/live").Code)
}

type staticChecker struct{ err error }

func (c staticChecker) Name() string                  { return "static" }
func (c staticChecker) Check(context.Context) error { return c.err }

func TestHealthRoutes(t *testing.T) {
	f := newFixture(t, testConfig(), staticChecker{})

	rr := f.do(t, http.MethodGet, "/health")
	require.Equal(t, http.StatusOK, rr.Code)
	var resp health.Response
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, health.StatusOK, resp.Status)
	assert.Contains(t, resp.Checks, "static")

	assert.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/ready").Code)

	down := newFixture(t, testConfig(), staticChecker{err: assert.AnError})
	assert.Equal(t, http.StatusServiceUnavailable, down.do(t, http.MethodGet, "/health").Code)
}

func TestUnknownRoutes(t *testing.T) {
	f := newFixture(t, testConfig())

	rr := f.do(t, http.MethodGet, "/nope")
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = f.do(t, http.MethodPost, "/api/v1/recordings")
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
	assert.Contains(t, rr.Body.String(), "Method not allowed")

	rr = f.do(t, http.MethodPut, "/api/v1/recordings/abc")
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)

	rr = f.do(t, http.MethodGet, "/api/v1/nope")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestRegisterRoutesUnderAPIPrefix(t *testing.T) {
	f := newFixture(t, testConfig())
	f.srv.RegisterRoutes(func(r *mux.Router) {
		r.HandleFunc("/api/v1/extra", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusTeapot)
		})
	})

	assert.Equal(t, http.StatusTeapot, f.do(t, http.MethodGet, "/api/v1/extra").Code)
}

func TestDebugEndpoints(t *testing.T) {
	off := newFixture(t, testConfig())
	assert.Equal(t, http.StatusNotFound, off.do(t, http.MethodGet, "/debug/info").Code)

	cfg := testConfig()
	cfg.DebugEndpoints = true
	on := newFixture(t, cfg)
	assert.Equal(t, http.StatusOK, on.do(t, http.MethodGet, "/debug/info").Code)
	assert.Equal(t, http.StatusOK, on.do(t, http.MethodGet, "/debug/pprof/").Code)
}

func TestRegisterRoutes(t *testing.T) {
	f := newFixture(t, testConfig())
	f.srv.RegisterRoutes(func(r *mux.Router) {
		r.HandleFunc("/extra", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusTeapot)
		})
	})
	assert.Equal(t, http.StatusTeapot, f.do(t, http.MethodGet, "/extra").Code)
}

func TestRecoveryMiddleware(t *testing.T) {
	f := newFixture(t, testConfig())
	f.srv.RegisterRoutes(func(r *mux.Router) {
		r.HandleFunc("/panic", func(http.ResponseWriter, *http.Request) { panic("boom") })
	})

	rr := f.do(t, http.MethodGet, "/panic")
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Equal(t, errors.ErrorTypeInternal, decodeError(t, rr).Error.Type)
}

func TestCORSPreflight(t *testing.T) {
	f := newFixture(t, testConfig())
	f.srv.RegisterRoutes(func(r *mux.Router) {
		r.HandleFunc("/preflight", func(http.ResponseWriter, *http.Request) {}).Methods(http.MethodOptions)
	})

	rr := f.do(t, http.MethodOptions, "/preflight")
	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Equal(t, "*", rr.Header().Get("Access-Control-Allow-Origin"))
}

func TestStartAndShutdown(t *testing.T) {
	f := newFixture(t, testConfig())
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- f.srv.Start(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestParsePosition(t *testing.T) {
	d, err := parsePosition(" 1.25 ")
	require.NoError(t, err)
	assert.Equal(t, 1250*time.Millisecond, d)

	d, err = parsePosition("3ms")
	require.NoError(t, err)
	assert.Equal(t, 3*time.Millisecond, d)
}
