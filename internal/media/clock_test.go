package media

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestManualClock(t *testing.T) {
	c := NewManualClock(time.Second)
	assert.Equal(t, time.Second, c.Now())
	assert.Equal(t, 1500*time.Millisecond, c.Advance(500*time.Millisecond))
	c.Set(0)
	assert.Equal(t, time.Duration(0), c.Now())
}

func TestSystemClockMonotonic(t *testing.T) {
	c := NewSystemClock()
	a := c.Now()
	time.Sleep(time.Millisecond)
	assert.Greater(t, c.Now(), a)
}
