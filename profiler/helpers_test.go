package profiler

import (
	"bytes"
	"context"
	"testing"

	"github.com/volcengine/apminsight-tick-profiler-go/profiler/logger"
	"github.com/volcengine/apminsight-tick-profiler-go/profiler/store"
)

const startTick = 1000

// testHost charges CPU only when a test calls spend.
type testHost struct {
	tick   int64
	cpu    float64
	resets int
}

func (h *testHost) Time() int64      { return h.tick }
func (h *testHost) CPUUsed() float64 { return h.cpu }
func (h *testHost) spend(ms float64) { h.cpu += ms }
func (h *testHost) advance()         { h.tick++ }

func (h *testHost) ResetCPU() {
	h.cpu = 0
	h.resets++
}

type exported struct {
	name string
	data string
}

type fakeExporter struct {
	exports []exported
}

func (e *fakeExporter) Export(_ context.Context, name string, data []byte) error {
	e.exports = append(e.exports, exported{name: name, data: string(data)})
	return nil
}

func newTestProfiler(t *testing.T, opts ...Option) (*Profiler, *testHost, *bytes.Buffer) {
	t.Helper()
	h := &testHost{tick: startTick}
	console := bytes.NewBuffer(nil)
	base := []Option{
		WithHost(h),
		WithConsole(console),
		WithLogger(&logger.NoopLogger{}),
		WithStore(store.NewMemoryStore()),
		WithExporter(&fakeExporter{}),
	}
	p := NewProfiler(append(base, opts...)...)
	return p, h, console
}

// spender returns a function that charges ms of CPU per call.
func spender(h *testHost, name string, ms float64) *Function {
	return NewFunction(name, func(interface{}, ...interface{}) (interface{}, error) {
		h.spend(ms)
		return nil, nil
	})
}

func tick(p *Profiler, h *testHost, main func()) {
	_ = p.Loop(func() error {
		if main != nil {
			main()
		}
		return nil
	})
	h.advance()
}
