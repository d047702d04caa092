package profiler

import (
	"fmt"
)

// slots never instrumented: constructors must keep their identity and the host's CPU
// accessor is called by the profiler itself
var functionBlackList = map[string]struct{}{
	"constructor": {},
	"getUsed":     {},
}

func extendLabel(label, name string) string {
	if label == "" {
		return name
	}
	return label + "." + name
}

// instrumentObject wraps every writable function slot and every configurable accessor of t and
// of its prototype, in place.
func (p *Profiler) instrumentObject(t Target, label string) Target {
	if proto := t.Prototype(); proto != nil {
		p.instrumentObject(proto, label)
	}

	for _, name := range t.OwnPropertyNames() {
		if _, ok := functionBlackList[name]; ok {
			continue
		}
		descriptor, ok := t.OwnProperty(name)
		if !ok {
			continue
		}
		extendedLabel := extendLabel(label, name)

		if descriptor.IsAccessor() {
			if !descriptor.Configurable {
				p.logger.Debug("[instrumentObject] skipping non-configurable accessor %s", extendedLabel)
				continue
			}
			if descriptor.Get != nil {
				descriptor.Get = p.profileFunction(descriptor.Get, extendedLabel+":get")
			}
			if descriptor.Set != nil {
				descriptor.Set = p.profileFunction(descriptor.Set, extendedLabel+":set")
			}
			t.DefineProperty(name, descriptor)
			continue
		}

		fn, isFunction := descriptor.Value.(*Function)
		if !isFunction || fn == nil || !descriptor.Writable {
			continue
		}
		descriptor.Value = p.profileFunction(fn, extendedLabel)
		t.DefineProperty(name, descriptor)
	}
	return t
}

// profileFunction wraps fn under label, falling back to the function's own name. Unnamed
// functions are returned unwrapped.
func (p *Profiler) profileFunction(fn *Function, label string) *Function {
	if label == "" {
		label = fn.Name()
	}
	if label == "" {
		p.logger.Info("[profileFunction] couldn't find a function name for %s, will not profile this function", fn)
		return fn
	}
	return p.wrapFunction(label, fn)
}

type named interface {
	Name() string
}

func asTarget(v interface{}) (Target, bool) {
	t, ok := v.(Target)
	if !ok {
		return nil, false
	}
	switch tt := t.(type) {
	case *Object:
		return t, tt != nil
	case *Class:
		return t, tt != nil && tt.Object != nil
	case *Function:
		return t, tt != nil
	}
	return t, true
}

// RegisterClass instruments the instance and static members of a class.
func (p *Profiler) RegisterClass(class interface{}, label string) (Target, error) {
	t, ok := asTarget(class)
	if !ok {
		return nil, fmt.Errorf("asked to profile non-class %v for %q (%T): %w", class, label, class, ErrNotObject)
	}
	if label == "" {
		if n, ok := t.(named); ok {
			label = n.Name()
		}
	}
	return p.instrumentObject(t, label), nil
}

// RegisterObject instruments every function and accessor slot of object.
func (p *Profiler) RegisterObject(object interface{}, label string) (Target, error) {
	t, ok := asTarget(object)
	if !ok {
		return nil, fmt.Errorf("asked to profile non-object %v for %q (%T): %w", object, label, object, ErrNotObject)
	}
	return p.instrumentObject(t, label), nil
}

// RegisterFunction returns fn wrapped for profiling. The label is optional for named functions.
// Callers must use the returned function; fn itself is not modified.
func (p *Profiler) RegisterFunction(fn interface{}, label string) (*Function, error) {
	f, ok := fn.(*Function)
	if !ok || f == nil {
		return nil, fmt.Errorf("asked to profile non-function %v for %q (%T): %w", fn, label, fn, ErrNotFunction)
	}
	return p.profileFunction(f, label), nil
}

// RegisterFunc profiles a plain Go function under label.
func (p *Profiler) RegisterFunc(label string, fn func()) func() {
	w := p.profileFunction(NewFunction(label, func(interface{}, ...interface{}) (interface{}, error) {
		fn()
		return nil, nil
	}), label)
	return func() {
		_, _ = w.Call(nil)
	}
}

// RegisterFuncE profiles a plain Go function that returns an error.
func (p *Profiler) RegisterFuncE(label string, fn func() error) func() error {
	w := p.profileFunction(NewFunction(label, func(interface{}, ...interface{}) (interface{}, error) {
		return nil, fn()
	}), label)
	return func() error {
		_, err := w.Call(nil)
		return err
	}
}
