package capture

import "time"

// TimestampLog is the ordered list of host-clock samples, one per frame
// accepted into the current recording. It is not safe for concurrent use;
// the manager guards it with its frame-path mutex.
type TimestampLog struct {
	samples []time.Duration
}

// NewTimestampLog creates a log with room for capacity samples.
func NewTimestampLog(capacity int) *TimestampLog {
	return &TimestampLog{samples: make([]time.Duration, 0, capacity)}
}

// Accepts reports whether pts keeps the log non-decreasing.
func (l *TimestampLog) Accepts(pts time.Duration) bool {
	n := len(l.samples)
	return n == 0 || pts >= l.samples[n-1]
}

// Append records pts. Callers check Accepts first.
func (l *TimestampLog) Append(pts time.Duration) {
	l.samples = append(l.samples, pts)
}

// Len returns the number of samples.
func (l *TimestampLog) Len() int {
	return len(l.samples)
}

// Reset empties the log, keeping its storage.
func (l *TimestampLog) Reset() {
	l.samples = l.samples[:0]
}

// Truncate drops every sample after the first n.
func (l *TimestampLog) Truncate(n int) {
	if n >= 0 && n < len(l.samples) {
		l.samples = l.samples[:n]
	}
}

// Snapshot returns a copy of the samples.
func (l *TimestampLog) Snapshot() []time.Duration {
	return append([]time.Duration(nil), l.samples...)
}

// First and Last return the boundary samples, or zero when empty.
func (l *TimestampLog) First() time.Duration {
	if len(l.samples) == 0 {
		return 0
	}
	return l.samples[0]
}

func (l *TimestampLog) Last() time.Duration {
	if len(l.samples) == 0 {
		return 0
	}
	return l.samples[len(l.samples)-1]
}

// Elapsed returns Last - First.
func (l *TimestampLog) Elapsed() time.Duration {
	return l.Last() - l.First()
}
