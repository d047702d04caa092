// Package host describes the capabilities the profiler needs from the environment that drives
// ticks: the current tick number and a monotonic measure of CPU spent in the current tick.
package host

import (
	"sync/atomic"
	"time"
)

// Host is the per-tick environment. CPUUsed is in host time units (milliseconds for SimHost)
// and only grows within a tick.
type Host interface {
	Time() int64
	CPUUsed() float64
}

// CPUResetter is implemented by hosts whose CPU counter must be restarted at each profiled tick.
type CPUResetter interface {
	ResetCPU()
}

// ConsoleInstaller is implemented by hosts that expose the profiler console to an interactive
// prompt. The console is reinstalled every tick because hosts usually rebuild their globals.
type ConsoleInstaller interface {
	InstallConsole(console interface{})
}

// SimHost is an in-process host: ticks advance on demand and CPU is wall time since the
// last reset.
type SimHost struct {
	tick    int64
	now     func() time.Time
	started time.Time

	console atomic.Value
}

type SimOption func(*SimHost)

// WithClock replaces time.Now, which makes CPU readings deterministic in tests.
func WithClock(now func() time.Time) SimOption {
	return func(h *SimHost) {
		h.now = now
	}
}

func WithStartTick(tick int64) SimOption {
	return func(h *SimHost) {
		h.tick = tick
	}
}

func NewSimHost(opts ...SimOption) *SimHost {
	h := &SimHost{now: time.Now}
	for _, opt := range opts {
		opt(h)
	}
	h.started = h.now()
	return h
}

func (h *SimHost) Time() int64 {
	return atomic.LoadInt64(&h.tick)
}

// Advance moves to the next tick.
func (h *SimHost) Advance() int64 {
	return atomic.AddInt64(&h.tick, 1)
}

func (h *SimHost) CPUUsed() float64 {
	return float64(h.now().Sub(h.started)) / float64(time.Millisecond)
}

func (h *SimHost) ResetCPU() {
	h.started = h.now()
}

func (h *SimHost) InstallConsole(console interface{}) {
	h.console.Store(consoleHolder{console})
}

// Console returns the value last passed to InstallConsole, or nil.
func (h *SimHost) Console() interface{} {
	c, _ := h.console.Load().(consoleHolder)
	return c.v
}

type consoleHolder struct {
	v interface{}
}

var (
	_ Host             = &SimHost{}
	_ CPUResetter      = &SimHost{}
	_ ConsoleInstaller = &SimHost{}
)
