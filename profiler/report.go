package profiler

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/volcengine/apminsight-tick-profiler-go/profiler/common"
)

const (
	defaultOutputLimit = 1000
	notActive          = "Profiler not active."

	// callgrind costs are integers; CPU milliseconds are scaled to nanoseconds
	callgrindScale = 1000000
	// CPU charged for every intent that returned OK
	intentCost = 0.2
	// callgrind position column, a single fake line per function
	callgrindPos = 1
)

type lineStat struct {
	name        string
	calls       int64
	totalTime   float64
	averageTime float64
}

func lines(m common.FrameMap) []string {
	stats := make([]lineStat, 0, len(m))
	for name, f := range m {
		if f.Calls == 0 {
			continue // parent-only holder such as (tick)
		}
		stats = append(stats, lineStat{
			name:        name,
			calls:       f.Calls,
			totalTime:   f.Time,
			averageTime: f.Time / float64(f.Calls),
		})
	}
	sort.Slice(stats, func(i, j int) bool {
		if stats[i].totalTime != stats[j].totalTime {
			return stats[i].totalTime > stats[j].totalTime
		}
		return stats[i].name < stats[j].name
	})

	out := make([]string, 0, len(stats))
	for _, s := range stats {
		out = append(out, strings.Join([]string{
			strconv.FormatInt(s.calls, 10),
			strconv.FormatFloat(s.totalTime, 'f', 1, 64),
			strconv.FormatFloat(s.averageTime, 'f', 3, 64),
			s.name,
		}, "\t\t"))
	}
	return out
}

// Output renders the flat report. Body lines are added in order of descending total time while
// the whole text stays shorter than limit; header and footer are always present. A limit of
// zero or less means 1000.
func (p *Profiler) Output(limit int) string {
	if limit <= 0 {
		limit = defaultOutputLimit
	}
	s := p.session
	if s == nil {
		return notActive
	}

	elapsedTicks := s.ElapsedTicks(p.host.Time())
	header := "calls\t\ttime\t\tavg\t\tfunction"
	avg := 0.0
	if elapsedTicks > 0 {
		avg = s.TotalTime / float64(elapsedTicks)
	}
	footer := strings.Join([]string{
		fmt.Sprintf("Avg: %.2f", avg),
		fmt.Sprintf("Total: %.2f", s.TotalTime),
		fmt.Sprintf("Ticks: %d", elapsedTicks),
	}, "\t")

	out := []string{header}
	currentLength := len(header) + 1 + len(footer)
	for _, line := range lines(s.Map) {
		// every line adds its length plus a newline
		if currentLength+len(line)+1 >= limit {
			break
		}
		out = append(out, line)
		currentLength += len(line) + 1
	}
	out = append(out, footer)
	return strings.Join(out, "\n")
}

// callgraph returns the session frames plus the (tick) and (root) bookkeeping frames, without
// touching the session itself.
func callgraph(s *common.Session, elapsedTicks int64) common.FrameMap {
	m := make(common.FrameMap, len(s.Map)+2)
	for name, f := range s.Map {
		m[name] = f
	}
	tick := &common.Frame{Calls: elapsedTicks, Time: s.TotalTime, OKs: s.TotalOKs, NOKs: s.TotalNOKs, Subs: common.FrameMap{}}
	if holder, ok := s.Map[TickLabel]; ok {
		tick.Subs = holder.Subs
	}
	m[TickLabel] = tick
	m[RootLabel] = &common.Frame{
		Calls: 1, Time: s.TotalTime, OKs: s.TotalOKs, NOKs: s.TotalNOKs,
		Subs: common.FrameMap{
			TickLabel: {Calls: elapsedTicks, Time: s.TotalTime, OKs: s.TotalOKs, NOKs: s.TotalNOKs, Subs: common.FrameMap{}},
		},
	}
	return m
}

func sortedNames(m common.FrameMap) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func scaled(v float64) int64 {
	return int64(math.Round(v * callgrindScale))
}

// Callgrind renders the session as a callgrind profile. It reports false when no session has
// started. Each function gets its exclusive cost followed by one call record per callee with
// the callee's inclusive cost.
func (p *Profiler) Callgrind() (string, bool) {
	s := p.session
	if s == nil || s.EnabledTick == 0 {
		return "", false
	}
	m := callgraph(s, s.ElapsedTicks(p.host.Time()))
	if p.classifier != nil {
		return callgrindWithIntents(s, m), true
	}

	sb := strings.Builder{}
	sb.WriteString("events: ns\n")
	fmt.Fprintf(&sb, "summary: %d\n", scaled(s.TotalTime))
	for _, name := range sortedNames(m) {
		fn := m[name]
		callsBody := strings.Builder{}
		callsTime := 0.0
		for _, callName := range sortedNames(fn.Subs) {
			call := fn.Subs[callName]
			fmt.Fprintf(&callsBody, "cfn=%s\ncalls=%d %d\n%d %d\n", callName, call.Calls, callgrindPos, callgrindPos, scaled(call.Time))
			callsTime += call.Time
		}
		fmt.Fprintf(&sb, "\nfn=%s\n%d %d\n%s", name, callgrindPos, scaled(fn.Time-callsTime), callsBody.String())
	}
	return sb.String(), true
}

// callgrindWithIntents renders three events per record: wall CPU, CPU charged to OK intents,
// and the number of failed intents.
func callgrindWithIntents(s *common.Session, m common.FrameMap) string {
	body := strings.Builder{}
	for _, name := range sortedNames(m) {
		fn := m[name]
		wallOuter := fn.Time * callgrindScale
		intentOuter := float64(fn.OKs) * intentCost * callgrindScale
		noksOuter := fn.NOKs

		callsBody := strings.Builder{}
		for _, callName := range sortedNames(fn.Subs) {
			call := fn.Subs[callName]
			wallInner := call.Time * callgrindScale
			intentInner := float64(call.OKs) * intentCost * callgrindScale
			wallOuter -= wallInner
			intentOuter -= intentInner
			noksOuter -= call.NOKs
			fmt.Fprintf(&callsBody, "cfn=%s\ncalls=%d %d\n%d %d %d %d\n", callName, call.Calls, callgrindPos,
				callgrindPos, int64(math.Round(wallInner)), int64(math.Round(intentInner)), call.NOKs)
		}
		fmt.Fprintf(&body, "\nfn=%s\n%d %d %d %d\n%s", name, callgrindPos,
			int64(math.Round(wallOuter)), int64(math.Round(intentOuter)), noksOuter, callsBody.String())
	}

	sb := strings.Builder{}
	sb.WriteString("# callgrind format\n")
	sb.WriteString("event: wall_uCPU : uCPU total\n")
	sb.WriteString("event: intent_uCPU : uCPU [I]ntent cost\n")
	sb.WriteString("event: delta_uCPU = wall_uCPU - intent_uCPU : uCPU without [I]ntent cost\n")
	sb.WriteString("event: NOKs : [I]ntents that did not return OK\n")
	sb.WriteString("events: wall_uCPU intent_uCPU NOKs\n")
	fmt.Fprintf(&sb, "summary: %d %d %d\n", scaled(s.TotalTime), int64(math.Round(float64(s.TotalOKs)*intentCost*callgrindScale)), s.TotalNOKs)
	sb.WriteString(body.String())
	return sb.String()
}
