// Package runner compiles scripts through a pluggable front end, caches the
// artifacts by content hash and executes them behind the capability facade.
package runner

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/tliron/commonlog"

	"github.com/chazu/botscript/compiler"
	"github.com/chazu/botscript/script"
	"github.com/chazu/botscript/vm"
)

// Compiler turns a synthesized unit into an artifact. The artifact must be
// nil whenever an error diagnostic is returned.
type Compiler interface {
	Compile(source, unitID string, libraries []string) (*vm.Artifact, []compiler.Diagnostic)
}

// CompileError carries the diagnostics of a failed compilation, with lines
// mapped back to the script. It unwraps to ErrCompilationFailed.
type CompileError struct {
	Script      string
	Diagnostics []compiler.Diagnostic
}

func (e *CompileError) Error() string {
	return ErrCompilationFailed.Error()
}

func (e *CompileError) Unwrap() error {
	return ErrCompilationFailed
}

// Detail lists every diagnostic, one per line.
func (e *CompileError) Detail() string {
	var sb strings.Builder
	for i, d := range e.Diagnostics {
		if i > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString(d.Error())
	}
	return sb.String()
}

// Runner is the script run entry point. It is safe for concurrent use:
// compilation is serialized by the shared cache, execution is not.
type Runner struct {
	cache    *CompileCache
	compiler Compiler
	executor Executor
	log      commonlog.Logger
	newID    func() string
}

// Option configures a Runner.
type Option func(*Runner)

// WithLogger replaces the default "botscript.runner" logger.
func WithLogger(log commonlog.Logger) Option {
	return func(r *Runner) { r.log = log }
}

// WithUnitIDs replaces the compilation-unit ID generator.
func WithUnitIDs(newID func() string) Option {
	return func(r *Runner) { r.newID = newID }
}

// New creates a runner sharing cache. The runner holds a reference to the
// cache until Close.
func New(cache *CompileCache, c Compiler, e Executor, opts ...Option) *Runner {
	r := &Runner{
		cache:    cache.Retain(),
		compiler: c,
		executor: e,
		log:      commonlog.GetLogger("botscript.runner"),
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// NewVM creates a runner compiling with the botscript front end and
// executing on the VM, both resolving natives against reg.
func NewVM(cache *CompileCache, reg *vm.Registry, opts ...Option) *Runner {
	return New(cache, compiler.NewFrontend(reg), NewVMExecutor(reg), opts...)
}

// Cache returns the shared compile cache.
func (r *Runner) Cache() *CompileCache {
	return r.cache
}

// Close releases the runner's cache reference.
func (r *Runner) Close() {
	r.cache.Release()
}

// Run compiles lines, reusing a cached artifact when possible, and executes
// the entry point with caps and args when run is true. With run false the
// script is only compiled and the result is nil.
//
// Every failure is a *ScriptError.
func (r *Runner) Run(caps Capabilities, lines, args []string, run bool, name string) (vm.Value, error) {
	if len(lines) < 1 || lines[0] != script.VersionMarker {
		return nil, newError(InvalidScript, script.ErrInvalidFormat)
	}

	s := script.New(name, lines)
	a, err := r.cache.GetOrCompile(s.Hash(), func() (*vm.Artifact, error) {
		return r.compile(s)
	})
	if err != nil {
		return nil, err
	}

	if !run {
		return nil, nil
	}
	result, err := r.executor.Execute(a, caps, args)
	if err != nil {
		if _, ok := KindOf(err); !ok {
			err = newError(RuntimeError, err)
		}
		return nil, err
	}
	return result, nil
}

// compile preprocesses, synthesizes and compiles s. It runs under the
// cache lock.
func (r *Runner) compile(s *script.Script) (*vm.Artifact, error) {
	sections, err := script.Preprocess(s.Lines)
	if err != nil {
		return nil, newError(InvalidScript, err)
	}
	unit := script.Synthesize(sections)

	r.log.Infof("[Script] Starting compilation for %s...", s.Name)
	a, diags := r.compiler.Compile(unit.Source, r.newID(), unit.Libraries)

	mapped := make([]compiler.Diagnostic, len(diags))
	for i, d := range diags {
		d.Pos.Line = unit.ScriptLine(d.Pos.Line)
		mapped[i] = d
	}

	if errs := compiler.Errors(mapped); len(errs) > 0 || a == nil {
		r.log.Error("[Script] Compilation failed with error(s):")
		for _, d := range errs {
			r.log.Errorf("[Script] Error in %s, line:col(%d,%d): [%s] %s", s.Name, d.Pos.Line, d.Pos.Column, d.ID, d.Message)
		}
		return nil, newError(InvalidScript, &CompileError{Script: s.Name, Diagnostics: errs})
	}
	for _, d := range mapped {
		r.log.Warningf("[Script] Warning in %s, line:col(%d,%d): [%s] %s", s.Name, d.Pos.Line, d.Pos.Column, d.ID, d.Message)
	}

	r.log.Info("[Script] Compilation done with no errors.")
	return a, nil
}

// Describe formats err for the console: the kind, the cause and, for
// compile failures, every diagnostic.
func Describe(err error) string {
	kind, ok := KindOf(err)
	if !ok {
		return err.Error()
	}
	msg := fmt.Sprintf("%s: %s", kind, err)
	var ce *CompileError
	if errors.As(err, &ce) && len(ce.Diagnostics) > 0 {
		msg += "\n" + ce.Detail()
	}
	return msg
}
