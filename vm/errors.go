package vm

import (
	"errors"
	"fmt"
)

// ---------------------------------------------------------------------------
// Runtime errors
// ---------------------------------------------------------------------------

// ErrNoEntryPoint is returned by Load when a program lacks the requested
// entry function.
var ErrNoEntryPoint = errors.New("vm: entry point not found")

// ErrCallDepth is the cause of a RuntimeError raised on runaway recursion.
var ErrCallDepth = errors.New("call depth exceeded")

// RuntimeError is raised when executing a program fails. Line is the unit
// source line of the failing instruction, 0 if unknown.
type RuntimeError struct {
	Function string
	Line     int
	Err      error
}

func (e *RuntimeError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s (in %s, line %d)", e.Err, e.Function, e.Line)
	}
	if e.Function != "" {
		return fmt.Sprintf("%s (in %s)", e.Err, e.Function)
	}
	return e.Err.Error()
}

func (e *RuntimeError) Unwrap() error { return e.Err }

// scriptPanic carries an error out of the dispatch loop; it is recovered
// at the Machine boundary and never escapes the package.
type scriptPanic struct {
	err error
}

func throw(format string, args ...any) {
	panic(scriptPanic{err: fmt.Errorf(format, args...)})
}

func throwErr(err error) {
	panic(scriptPanic{err: err})
}
