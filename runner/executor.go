package runner

import (
	"fmt"

	"github.com/chazu/botscript/script"
	"github.com/chazu/botscript/vm"
)

// Executor runs a compiled artifact's entry point.
type Executor interface {
	Execute(a *vm.Artifact, caps Capabilities, args []string) (vm.Value, error)
}

// VMExecutor executes artifacts on the botscript VM. Every call gets a
// fresh Machine, so executions of the same artifact may run in parallel.
type VMExecutor struct {
	registry *vm.Registry
}

// NewVMExecutor creates an executor resolving natives against reg.
func NewVMExecutor(reg *vm.Registry) *VMExecutor {
	return &VMExecutor{registry: reg}
}

// Execute loads a and invokes its entry point with the bound capability
// handle and args. Failing to instantiate the artifact is a LoadError; any
// fault while the entry point runs is a RuntimeError. Execution has no
// deadline.
func (e *VMExecutor) Execute(a *vm.Artifact, caps Capabilities, args []string) (vm.Value, error) {
	m, err := vm.Load(a, e.registry)
	if err != nil {
		return nil, newError(LoadError, err)
	}
	if m.Program().FunctionIndex(script.EntryPoint) < 0 {
		return nil, newError(LoadError, fmt.Errorf("%w: %s", vm.ErrNoEntryPoint, script.EntryPoint))
	}

	result, err := m.Invoke(script.EntryPoint, Bind(caps), vm.StringList(args))
	if err != nil {
		return nil, newError(RuntimeError, err)
	}
	return result, nil
}
