package logger

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
)

// SampledLogger throttles high-frequency log categories such as per-frame
// delivery, which at 240fps would otherwise flood the output.
type SampledLogger struct {
	base     Logger
	samplers map[string]*LogSampler
	mu       *sync.RWMutex
}

// LogSampler holds the throttling state for one category. Within each
// window of length interval at most burst messages pass; after that only
// every everyNth message is logged. everyNth <= 0 drops the overflow.
type LogSampler struct {
	name     string
	interval time.Duration
	burst    int64
	everyNth int64

	windowStart int64 // unix nanos (atomic)
	inWindow    int64 // messages seen in the current window (atomic)

	total   int64 // (atomic)
	logged  int64 // (atomic)
	dropped int64 // (atomic)
}

// NewSampledLogger creates a new sampled logger
func NewSampledLogger(base Logger) *SampledLogger {
	return &SampledLogger{
		base:     base,
		samplers: make(map[string]*LogSampler),
		mu:       &sync.RWMutex{},
	}
}

// WithSampler configures sampling for a category.
func (s *SampledLogger) WithSampler(name string, interval time.Duration, burst int, everyNth int) *SampledLogger {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.samplers[name] = &LogSampler{
		name:     name,
		interval: interval,
		burst:    int64(burst),
		everyNth: int64(everyNth),
	}
	return s
}

func (s *SampledLogger) sampler(category string) *LogSampler {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.samplers[category]
}

// shouldLog reports whether a message in category passes sampling.
// Categories without a sampler always log.
func (s *SampledLogger) shouldLog(category string) bool {
	sp := s.sampler(category)
	if sp == nil {
		return true
	}
	return sp.allow(time.Now().UnixNano())
}

func (sp *LogSampler) allow(now int64) bool {
	atomic.AddInt64(&sp.total, 1)

	start := atomic.LoadInt64(&sp.windowStart)
	if now-start >= sp.interval.Nanoseconds() && atomic.CompareAndSwapInt64(&sp.windowStart, start, now) {
		atomic.StoreInt64(&sp.inWindow, 0)
	}

	n := atomic.AddInt64(&sp.inWindow, 1)
	if n <= sp.burst || (sp.everyNth > 0 && (n-sp.burst)%sp.everyNth == 0) {
		atomic.AddInt64(&sp.logged, 1)
		return true
	}

	atomic.AddInt64(&sp.dropped, 1)
	return false
}

// CategoryLog logs msg at level if the category's sampler lets it through.
// Sampling counters are attached so dropped volume stays visible.
func (s *SampledLogger) CategoryLog(level logrus.Level, category string, msg string, fields map[string]interface{}) {
	if !s.shouldLog(category) {
		return
	}
	if fields == nil {
		fields = make(map[string]interface{})
	}
	fields["category"] = category
	if sp := s.sampler(category); sp != nil {
		fields["sampled_dropped"] = atomic.LoadInt64(&sp.dropped)
	}
	s.base.WithFields(fields).Log(level, msg)
}

// DebugWithCategory logs a debug message with sampling for the category
func (s *SampledLogger) DebugWithCategory(category, msg string, fields map[string]interface{}) {
	s.CategoryLog(logrus.DebugLevel, category, msg, fields)
}

// WarnWithCategory logs a warning message with sampling for the category
func (s *SampledLogger) WarnWithCategory(category, msg string, fields map[string]interface{}) {
	s.CategoryLog(logrus.WarnLevel, category, msg, fields)
}

// ErrorWithCategory logs an error message; errors are never sampled.
func (s *SampledLogger) ErrorWithCategory(category, msg string, fields map[string]interface{}) {
	if fields == nil {
		fields = make(map[string]interface{})
	}
	fields["category"] = category
	s.base.WithFields(fields).Error(msg)
}

// SamplerStats holds statistics for a log sampler
type SamplerStats struct {
	Name    string `json:"name"`
	Total   int64  `json:"total"`
	Logged  int64  `json:"logged"`
	Dropped int64  `json:"dropped"`
}

// GetSamplerStats returns statistics for all samplers
func (s *SampledLogger) GetSamplerStats() map[string]SamplerStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := make(map[string]SamplerStats, len(s.samplers))
	for name, sp := range s.samplers {
		stats[name] = SamplerStats{
			Name:    name,
			Total:   atomic.LoadInt64(&sp.total),
			Logged:  atomic.LoadInt64(&sp.logged),
			Dropped: atomic.LoadInt64(&sp.dropped),
		}
	}
	return stats
}

// Capture and playback log categories
const (
	CategoryFrameDelivery = "frame_delivery"
	CategoryFrameDrop     = "frame_drop"
	CategoryWriterQueue   = "writer_queue"
	CategoryPlaybackTick  = "playback_tick"
	CategorySeek          = "seek"
)

// NewCaptureLogger creates a sampled logger preconfigured for the capture
// and playback hot paths.
func NewCaptureLogger(base Logger) *SampledLogger {
	return NewSampledLogger(base).
		// one second of 240fps delivery logs at most 5 lines
		WithSampler(CategoryFrameDelivery, time.Second, 1, 60).
		WithSampler(CategoryFrameDrop, time.Second, 10, 10).
		WithSampler(CategoryWriterQueue, time.Second, 2, 0).
		WithSampler(CategoryPlaybackTick, time.Second, 1, 30).
		WithSampler(CategorySeek, 100*time.Millisecond, 3, 0)
}

// Logger interface

func (s *SampledLogger) derive(base Logger) *SampledLogger {
	return &SampledLogger{base: base, samplers: s.samplers, mu: s.mu}
}

func (s *SampledLogger) WithFields(fields map[string]interface{}) Logger {
	return s.derive(s.base.WithFields(fields))
}

func (s *SampledLogger) WithField(key string, value interface{}) Logger {
	return s.derive(s.base.WithField(key, value))
}

func (s *SampledLogger) WithError(err error) Logger {
	return s.derive(s.base.WithError(err))
}

func (s *SampledLogger) Debug(args ...interface{})                 { s.base.Debug(args...) }
func (s *SampledLogger) Info(args ...interface{})                  { s.base.Info(args...) }
func (s *SampledLogger) Warn(args ...interface{})                  { s.base.Warn(args...) }
func (s *SampledLogger) Error(args ...interface{})                 { s.base.Error(args...) }
func (s *SampledLogger) Log(level logrus.Level, args ...interface{}) { s.base.Log(level, args...) }
func (s *SampledLogger) Debugf(format string, args ...interface{}) { s.base.Debugf(format, args...) }
func (s *SampledLogger) Infof(format string, args ...interface{})  { s.base.Infof(format, args...) }
func (s *SampledLogger) Warnf(format string, args ...interface{})  { s.base.Warnf(format, args...) }
func (s *SampledLogger) Errorf(format string, args ...interface{}) { s.base.Errorf(format, args...) }
func (s *SampledLogger) Fatal(args ...interface{})                 { s.base.Fatal(args...) }
