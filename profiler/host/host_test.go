package host

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type stepClock struct {
	t    time.Time
	step time.Duration
}

func (c *stepClock) Now() time.Time {
	now := c.t
	c.t = c.t.Add(c.step)
	return now
}

func TestSimHost(t *testing.T) {
	c := &stepClock{t: time.Unix(0, 0), step: time.Millisecond}
	h := NewSimHost(WithClock(c.Now), WithStartTick(41))

	assert.EqualValues(t, 41, h.Time())
	assert.EqualValues(t, 42, h.Advance())

	assert.InDelta(t, 1.0, h.CPUUsed(), 1e-9)
	assert.InDelta(t, 2.0, h.CPUUsed(), 1e-9)
	h.ResetCPU()
	assert.InDelta(t, 1.0, h.CPUUsed(), 1e-9)

	assert.Nil(t, h.Console())
	h.InstallConsole("console")
	assert.Equal(t, "console", h.Console())
}
