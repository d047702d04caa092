package profiler

import "errors"

var (
	ErrNotObject          = errors.New("not an object")
	ErrNotFunction        = errors.New("not a function")
	ErrNotCallable        = errors.New("function is a constructor and must be invoked with New")
	ErrNotConstructor     = errors.New("function is not a constructor")
	ErrReadOnly           = errors.New("property is read-only")
	ErrNotProfiling       = errors.New("profiler is not profiling")
	ErrNoSession          = errors.New("no profiling session")
	ErrUnknownSessionType = errors.New("unknown session type")
	ErrCommandQueueFull   = errors.New("command queue full")
)
