//go:build linux || darwin
// +build linux darwin

package host

import (
	"sync/atomic"
	"time"

	"golang.org/x/sys/unix"
)

// ProcessHost charges the CPU time of the whole process (user + system) to the current tick.
// Ticks advance on demand, as with SimHost.
type ProcessHost struct {
	tick    int64
	started time.Duration
}

func NewProcessHost(startTick int64) *ProcessHost {
	h := &ProcessHost{tick: startTick}
	h.ResetCPU()
	return h
}

func (h *ProcessHost) Time() int64 {
	return atomic.LoadInt64(&h.tick)
}

func (h *ProcessHost) Advance() int64 {
	return atomic.AddInt64(&h.tick, 1)
}

// CPUUsed returns milliseconds of process CPU since the last ResetCPU, or 0 when rusage is
// unavailable.
func (h *ProcessHost) CPUUsed() float64 {
	used := processCPU() - h.started
	if used < 0 {
		return 0
	}
	return float64(used) / float64(time.Millisecond)
}

func (h *ProcessHost) ResetCPU() {
	h.started = processCPU()
}

func processCPU() time.Duration {
	var ru unix.Rusage
	if err := unix.Getrusage(unix.RUSAGE_SELF, &ru); err != nil {
		return 0
	}
	return time.Duration(ru.Utime.Nano() + ru.Stime.Nano())
}

var (
	_ Host        = &ProcessHost{}
	_ CPUResetter = &ProcessHost{}
)
