package profiler

import (
	"fmt"
	"sort"
)

// CallFunc is the plain call entry point of a Function. this is the receiver the caller bound.
type CallFunc func(this interface{}, args ...interface{}) (interface{}, error)

// ConstructFunc is the construction entry point of a Function.
type ConstructFunc func(args ...interface{}) (interface{}, error)

const wrappedPrefix = "// tick-profiler wrapped function:\n"

// properties never copied from an original function onto its wrapper
var commonProperties = map[string]struct{}{
	"length":    {},
	"name":      {},
	"arguments": {},
	"caller":    {},
	"prototype": {},
	profilerKey: {},
}

const profilerKey = "__profiler"

// Function is a callable the profiler can instrument. Plain calls go through Call and
// construction through New; a Function may support either or both.
type Function struct {
	name      string
	source    string
	call      CallFunc
	construct ConstructFunc
	props     map[string]interface{}

	// wrapper state
	label    string
	original *Function
	profiler *Profiler
}

func NewFunction(name string, call CallFunc) *Function {
	return &Function{name: name, call: call}
}

// NewConstructor returns a Function that can be invoked with New. call may be nil for
// constructors that cannot be called plainly.
func NewConstructor(name string, call CallFunc, construct ConstructFunc) *Function {
	return &Function{name: name, call: call, construct: construct}
}

// WithSource sets the text returned by String.
func (f *Function) WithSource(source string) *Function {
	f.source = source
	return f
}

func (f *Function) Name() string {
	return f.name
}

func (f *Function) SetProp(key string, value interface{}) *Function {
	if f.props == nil {
		f.props = make(map[string]interface{})
	}
	f.props[key] = value
	return f
}

func (f *Function) Prop(key string) (interface{}, bool) {
	v, ok := f.props[key]
	return v, ok
}

// A Function is also a Target over its own props, so function-valued helpers hung off a
// callable can be instrumented like methods of an object.

func (f *Function) Prototype() Target {
	return nil
}

func (f *Function) OwnPropertyNames() []string {
	names := make([]string, 0, len(f.props))
	for name := range f.props {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (f *Function) OwnProperty(name string) (Descriptor, bool) {
	v, ok := f.props[name]
	if !ok {
		return Descriptor{}, false
	}
	return Descriptor{Value: v, Writable: true, Configurable: true, Enumerable: true}, true
}

// DefineProperty stores d.Value; props hold data only.
func (f *Function) DefineProperty(name string, d Descriptor) {
	f.SetProp(name, d.Value)
}

func (f *Function) IsConstructor() bool {
	return f.construct != nil
}

// Call invokes f with receiver this.
func (f *Function) Call(this interface{}, args ...interface{}) (interface{}, error) {
	if f.call == nil {
		return nil, fmt.Errorf("%s: %w", f.name, ErrNotCallable)
	}
	return f.call(this, args...)
}

// New invokes f as a constructor.
func (f *Function) New(args ...interface{}) (interface{}, error) {
	if f.construct == nil {
		return nil, fmt.Errorf("%s: %w", f.name, ErrNotConstructor)
	}
	return f.construct(args...)
}

// IsProfiled reports whether f is a profiler wrapper.
func (f *Function) IsProfiled() bool {
	return f.original != nil
}

// Original returns the wrapped function, or f itself when f is not a wrapper.
func (f *Function) Original() *Function {
	if f.original == nil {
		return f
	}
	return f.original
}

// Label is the report label of a wrapper, empty otherwise.
func (f *Function) Label() string {
	return f.label
}

// Profiler returns the controller a wrapper currently reports to.
func (f *Function) Profiler() *Profiler {
	return f.profiler
}

func (f *Function) String() string {
	if f.original != nil {
		return wrappedPrefix + f.original.String()
	}
	if f.source != "" {
		return f.source
	}
	return fmt.Sprintf("func %s() { [native code] }", f.name)
}

func (f *Function) dispatch(this interface{}, args []interface{}, construct bool) (interface{}, error) {
	if construct {
		return f.New(args...)
	}
	return f.Call(this, args...)
}

// wrapFunction returns a timed proxy for fn. Wrapping a wrapper only rebinds its profiler.
func (p *Profiler) wrapFunction(label string, fn *Function) *Function {
	if fn.IsProfiled() {
		fn.profiler = p
		return fn
	}

	w := &Function{
		name:     fn.name,
		label:    label,
		original: fn,
		profiler: p,
	}
	for k, v := range fn.props {
		if _, skip := commonProperties[k]; skip {
			continue
		}
		w.SetProp(k, v)
	}
	if fn.call != nil {
		w.call = func(this interface{}, args ...interface{}) (interface{}, error) {
			return w.invoke(this, args, false)
		}
	}
	if fn.construct != nil {
		w.construct = func(args ...interface{}) (interface{}, error) {
			return w.invoke(nil, args, true)
		}
	}
	return w
}

// invoke is the body of every wrapper. The profiler is read from the wrapper on each call so
// rebinding takes effect for functions wrapped earlier.
func (w *Function) invoke(this interface{}, args []interface{}, construct bool) (interface{}, error) {
	p := w.profiler
	if p == nil || !p.IsProfiling() {
		return w.original.dispatch(this, args, construct)
	}

	s := p.session
	filter := s.Filter
	nameMatchesFilter := filter != "" && w.label == filter
	if nameMatchesFilter {
		p.depth++
	}
	startOKs, startNOKs := s.TotalOKs, s.TotalNOKs
	parent := p.parent
	p.parent = w.label

	start := p.host.CPUUsed()
	result, err := w.original.dispatch(this, args, construct)
	end := p.host.CPUUsed()

	p.parent = parent
	// intents outside the filtered subtree are not counted either
	if p.depth > 0 || filter == "" {
		if p.classifier != nil {
			if intent, ok := p.classifier(w.label, result, err); intent {
				if ok {
					s.TotalOKs++
				} else {
					s.TotalNOKs++
				}
			}
		}
		record(s.Map, w.label, end-start, parent, s.TotalOKs-startOKs, s.TotalNOKs-startNOKs)
	}
	if nameMatchesFilter {
		p.depth--
	}
	return result, err
}
