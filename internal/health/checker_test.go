package health

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockChecker struct {
	name  string
	err   error
	delay time.Duration
}

func (m *mockChecker) Name() string { return m.name }

func (m *mockChecker) Check(ctx context.Context) error {
	if m.delay > 0 {
		select {
		case <-time.After(m.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return m.err
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return l
}

func TestManager_RunChecks(t *testing.T) {
	m := NewManager(quietLogger())
	m.Register(&mockChecker{name: "ok"})
	m.Register(&mockChecker{name: "broken", err: errors.New("broken")})
	m.Register(&mockChecker{name: "slow-start", err: fmt.Errorf("warming up: %w", ErrDegraded)})

	results := m.RunChecks(context.Background())
	require.Len(t, results, 3)

	assert.Equal(t, StatusOK, results["ok"].Status)
	assert.Empty(t, results["ok"].Message)
	assert.Equal(t, StatusDown, results["broken"].Status)
	assert.Equal(t, "broken", results["broken"].Message)
	assert.Equal(t, StatusDegraded, results["slow-start"].Status)
	assert.Equal(t, StatusDown, m.GetOverallStatus())
}

func TestManager_OverallStatus(t *testing.T) {
	tests := []struct {
		name     string
		errs     []error
		expected Status
	}{
		{"nothing run", nil, StatusDown},
		{"all ok", []error{nil, nil}, StatusOK},
		{"degraded", []error{nil, ErrDegraded}, StatusDegraded},
		{"down wins", []error{ErrDegraded, errors.New("x")}, StatusDown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewManager(quietLogger())
			for i, err := range tt.errs {
				m.Register(&mockChecker{name: fmt.Sprintf("c%d", i), err: err})
			}
			if len(tt.errs) > 0 {
				m.RunChecks(context.Background())
			}
			assert.Equal(t, tt.expected, m.GetOverallStatus())
		})
	}
}

func TestManager_Timeout(t *testing.T) {
	m := NewManager(quietLogger())
	m.checkTimeout = 10 * time.Millisecond
	m.Register(&mockChecker{name: "hung", delay: time.Second})

	results := m.RunChecks(context.Background())
	assert.Equal(t, StatusDown, results["hung"].Status)
	assert.Equal(t, "Health check timed out", results["hung"].Message)
}

func TestManager_GetResultsReturnsCopies(t *testing.T) {
	m := NewManager(quietLogger())
	m.Register(&mockChecker{name: "a"})
	m.RunChecks(context.Background())

	r := m.GetResults()
	r["a"].Status = StatusDown
	assert.Equal(t, StatusOK, m.GetResults()["a"].Status)
}

func TestManager_StartPeriodicChecks(t *testing.T) {
	m := NewManager(quietLogger())
	m.Register(&mockChecker{name: "a"})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.StartPeriodicChecks(ctx, 10*time.Millisecond)
		close(done)
	}()

	assert.Eventually(t, func() bool { return m.GetOverallStatus() == StatusOK }, time.Second, 5*time.Millisecond)
	cancel()
	<-done
}
