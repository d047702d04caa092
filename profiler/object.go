package profiler

import (
	"fmt"
)

// Descriptor describes one own property of a Target. A descriptor with Get or Set is an
// accessor; otherwise Value holds the data.
type Descriptor struct {
	Value        interface{}
	Get          *Function
	Set          *Function
	Writable     bool
	Configurable bool
	Enumerable   bool
}

func (d Descriptor) IsAccessor() bool {
	return d.Get != nil || d.Set != nil
}

// Target is a mutable table of named slots the profiler can instrument in place. Prototype
// returns the table holding instance members (for classes), or nil.
type Target interface {
	Prototype() Target
	OwnPropertyNames() []string
	OwnProperty(name string) (Descriptor, bool)
	DefineProperty(name string, d Descriptor)
}

// Object is an ordered property table.
type Object struct {
	proto *Object
	names []string
	props map[string]*Descriptor
}

func NewObject() *Object {
	return &Object{props: make(map[string]*Descriptor)}
}

// SetPrototype sets the table that holds the members shared by instances.
func (o *Object) SetPrototype(proto *Object) *Object {
	o.proto = proto
	return o
}

func (o *Object) Prototype() Target {
	if o.proto == nil {
		return nil
	}
	return o.proto
}

func (o *Object) OwnPropertyNames() []string {
	names := make([]string, len(o.names))
	copy(names, o.names)
	return names
}

func (o *Object) OwnProperty(name string) (Descriptor, bool) {
	d, ok := o.props[name]
	if !ok {
		return Descriptor{}, false
	}
	return *d, true
}

func (o *Object) DefineProperty(name string, d Descriptor) {
	if _, ok := o.props[name]; !ok {
		o.names = append(o.names, name)
	}
	o.props[name] = &d
}

// Method adds a writable, configurable function slot.
func (o *Object) Method(name string, fn *Function) *Object {
	o.DefineProperty(name, Descriptor{Value: fn, Writable: true, Configurable: true, Enumerable: true})
	return o
}

// Field adds a writable data slot.
func (o *Object) Field(name string, value interface{}) *Object {
	o.DefineProperty(name, Descriptor{Value: value, Writable: true, Configurable: true, Enumerable: true})
	return o
}

// Accessor adds a getter/setter pair. Either may be nil.
func (o *Object) Accessor(name string, get, set *Function, configurable bool) *Object {
	o.DefineProperty(name, Descriptor{Get: get, Set: set, Configurable: configurable, Enumerable: true})
	return o
}

// Func returns the function stored in slot name, or nil.
func (o *Object) Func(name string) *Function {
	d, ok := o.props[name]
	if !ok {
		return nil
	}
	fn, _ := d.Value.(*Function)
	return fn
}

// Get reads slot name, running its getter with o as receiver.
func (o *Object) Get(name string) (interface{}, error) {
	d, ok := o.props[name]
	if !ok {
		return nil, nil
	}
	if d.IsAccessor() {
		if d.Get == nil {
			return nil, nil
		}
		return d.Get.Call(o)
	}
	return d.Value, nil
}

// Put writes slot name, running its setter with o as receiver.
func (o *Object) Put(name string, value interface{}) error {
	d, ok := o.props[name]
	if !ok {
		o.Field(name, value)
		return nil
	}
	if d.IsAccessor() {
		if d.Set == nil {
			return fmt.Errorf("%s: %w", name, ErrReadOnly)
		}
		_, err := d.Set.Call(o, value)
		return err
	}
	if !d.Writable {
		return fmt.Errorf("%s: %w", name, ErrReadOnly)
	}
	d.Value = value
	return nil
}

// Invoke calls the method in slot name with o as receiver.
func (o *Object) Invoke(name string, args ...interface{}) (interface{}, error) {
	fn := o.Func(name)
	if fn == nil {
		return nil, fmt.Errorf("%s: %w", name, ErrNotFunction)
	}
	return fn.Call(o, args...)
}

// Class pairs a constructor with its static members (the embedded Object) and the members
// shared by its instances (Instance, also returned by Prototype).
type Class struct {
	*Object
	name     string
	instance *Object
	ctor     *Function
}

func NewClass(name string, construct ConstructFunc) *Class {
	c := &Class{
		Object:   NewObject(),
		name:     name,
		instance: NewObject(),
	}
	c.ctor = NewConstructor(name, nil, construct)
	c.Object.SetPrototype(c.instance)
	c.instance.DefineProperty("constructor", Descriptor{Value: c.ctor, Writable: true, Configurable: true})
	return c
}

func (c *Class) Name() string {
	return c.name
}

func (c *Class) Instance() *Object {
	return c.instance
}

func (c *Class) Constructor() *Function {
	return c.ctor
}

func (c *Class) New(args ...interface{}) (interface{}, error) {
	return c.ctor.New(args...)
}

var (
	_ Target = &Object{}
	_ Target = &Class{}
	_ Target = &Function{}
)
