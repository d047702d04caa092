package profiler

import "github.com/volcengine/apminsight-tick-profiler-go/profiler/common"

type registeredProfiler struct {
	profiler     *Profiler
	isRegistered bool
}

var (
	globalProfiler registeredProfiler
)

func SetGlobalProfiler(p *Profiler) {
	globalProfiler = registeredProfiler{p, true}
}

// GlobalProfiler returns the registered profiler, creating a default one on first use.
func GlobalProfiler() *Profiler {
	if !globalProfiler.isRegistered {
		SetGlobalProfiler(NewProfiler())
	}
	return globalProfiler.profiler
}

func IsGlobalProfilerRegistered() bool {
	return globalProfiler.isRegistered
}

// Enable instruments the catalog of the global profiler. Call it once, outside the loop.
func Enable() {
	GlobalProfiler().Enable()
}

// Loop wraps one tick of the host's main function.
func Loop(main func() error) error {
	return GlobalProfiler().Loop(main)
}

func RegisterClass(class interface{}, label string) (Target, error) {
	return GlobalProfiler().RegisterClass(class, label)
}

func RegisterObject(object interface{}, label string) (Target, error) {
	return GlobalProfiler().RegisterObject(object, label)
}

func RegisterFunction(fn interface{}, label string) (*Function, error) {
	return GlobalProfiler().RegisterFunction(fn, label)
}

func RegisterFunc(label string, fn func()) func() {
	return GlobalProfiler().RegisterFunc(label, fn)
}

// Output returns the flat report of the global profiler.
func Output(limit int) string {
	return GlobalProfiler().Output(limit)
}

// Callgrind returns the call graph of the global profiler.
func Callgrind() (string, bool) {
	return GlobalProfiler().Callgrind()
}

// Session returns the live session of the global profiler, or nil.
func Session() *common.Session {
	return GlobalProfiler().Session()
}
