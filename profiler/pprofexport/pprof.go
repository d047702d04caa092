// Package pprofexport converts a profiling session into a pprof profile so it can be read with
// `go tool pprof`.
//
// A session only knows caller/callee pairs, not full stacks, so every (parent, child) pair
// becomes a two-frame sample. Its cpu value is the child's exclusive share of that edge, which
// keeps the flat view exact and the cumulative view one level deep.
package pprofexport

import (
	"bytes"
	"math"
	"sort"
	"time"

	"github.com/google/pprof/profile"
	"github.com/volcengine/apminsight-tick-profiler-go/profiler/common"
)

// nanoseconds per host time unit (milliseconds)
const nanosPerUnit = 1e6

type builder struct {
	p         *profile.Profile
	functions map[string]*profile.Function
	locations map[string]*profile.Location
}

func (b *builder) location(name string) *profile.Location {
	if loc, ok := b.locations[name]; ok {
		return loc
	}
	fn := &profile.Function{
		ID:         uint64(len(b.functions) + 1),
		Name:       name,
		SystemName: name,
	}
	b.functions[name] = fn
	b.p.Function = append(b.p.Function, fn)

	loc := &profile.Location{
		ID:   uint64(len(b.locations) + 1),
		Line: []profile.Line{{Function: fn}},
	}
	b.locations[name] = loc
	b.p.Location = append(b.p.Location, loc)
	return loc
}

func sortedNames(m common.FrameMap) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// selfRatio is the exclusive fraction of a label's cost.
func selfRatio(f *common.Frame) float64 {
	if f == nil || f.Time <= 0 {
		return 0
	}
	children := 0.0
	for _, sub := range f.Subs {
		children += sub.Time
	}
	r := (f.Time - children) / f.Time
	if r < 0 {
		return 0
	}
	return r
}

// Build returns the profile of s as seen at tick now.
func Build(s *common.Session, now int64, tickDuration time.Duration) *profile.Profile {
	b := &builder{
		p: &profile.Profile{
			SampleType: []*profile.ValueType{
				{Type: "calls", Unit: "count"},
				{Type: "cpu", Unit: "nanoseconds"},
			},
			PeriodType:    &profile.ValueType{Type: "tick", Unit: "count"},
			Period:        1,
			TimeNanos:     time.Now().UnixNano(),
			DurationNanos: s.ElapsedTicks(now) * int64(tickDuration),
		},
		functions: map[string]*profile.Function{},
		locations: map[string]*profile.Location{},
	}

	for _, parent := range sortedNames(s.Map) {
		for _, child := range sortedNames(s.Map[parent].Subs) {
			edge := s.Map[parent].Subs[child]
			cpu := edge.Time * selfRatio(s.Map[child]) * nanosPerUnit
			b.p.Sample = append(b.p.Sample, &profile.Sample{
				// leaf first
				Location: []*profile.Location{b.location(child), b.location(parent)},
				Value:    []int64{edge.Calls, int64(math.Round(cpu))},
			})
		}
	}
	return b.p
}

// Encode builds and serializes the profile in the gzipped protobuf format.
func Encode(s *common.Session, now int64, tickDuration time.Duration) ([]byte, error) {
	p := Build(s, now, tickDuration)
	if err := p.CheckValid(); err != nil {
		return nil, err
	}
	buf := bytes.NewBuffer(nil)
	if err := p.Write(buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
