package runner

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a script failure.
type ErrorKind int

const (
	// FileReadError: the script source could not be read.
	FileReadError ErrorKind = iota
	// InvalidScript: bad version header or a compile error.
	InvalidScript
	// LoadError: the artifact compiled but cannot be instantiated.
	LoadError
	// RuntimeError: a fault raised while the entry point executed.
	RuntimeError
)

var kindNames = [...]string{
	FileReadError: "FileReadError",
	InvalidScript: "InvalidScript",
	LoadError:     "LoadError",
	RuntimeError:  "RuntimeError",
}

func (k ErrorKind) String() string {
	if k >= 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("ErrorKind(%d)", int(k))
}

// ErrCompilationFailed is the cause of every InvalidScript raised for
// compile errors. The diagnostics travel in a *CompileError.
var ErrCompilationFailed = errors.New("compilation failed due to error")

// ScriptError is the single error type surfaced by Run. Its message is the
// message of the wrapped cause.
type ScriptError struct {
	Kind ErrorKind
	Err  error
}

func newError(kind ErrorKind, err error) *ScriptError {
	return &ScriptError{Kind: kind, Err: err}
}

func (e *ScriptError) Error() string {
	if e.Err == nil {
		return e.Kind.String()
	}
	return e.Err.Error()
}

func (e *ScriptError) Unwrap() error {
	return e.Err
}

// IsKind reports whether err is, or wraps, a ScriptError of the given kind.
// The outermost ScriptError decides.
func IsKind(err error, kind ErrorKind) bool {
	var se *ScriptError
	return errors.As(err, &se) && se.Kind == kind
}

// KindOf returns the kind of the outermost ScriptError in err's chain.
func KindOf(err error) (ErrorKind, bool) {
	var se *ScriptError
	if errors.As(err, &se) {
		return se.Kind, true
	}
	return 0, false
}
