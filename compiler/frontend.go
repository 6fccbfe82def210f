package compiler

import (
	"github.com/chazu/botscript/script"
	"github.com/chazu/botscript/vm"
)

// DiagEmit is reported when a compiled program cannot be serialized.
const DiagEmit = "BS8000"

// Frontend compiles botscript units into artifacts. Native namespaces and
// libraries come from its registry. It is safe for concurrent use.
type Frontend struct {
	registry *vm.Registry

	// EntryPoint is the function every unit must define; empty disables
	// the check.
	EntryPoint string
}

// NewFrontend creates a front end resolving natives against reg.
func NewFrontend(reg *vm.Registry) *Frontend {
	return &Frontend{registry: reg, EntryPoint: script.EntryPoint}
}

// Registry returns the registry the front end compiles against.
func (f *Frontend) Registry() *vm.Registry {
	return f.registry
}

// Check parses and analyzes source without generating code. The returned
// file is nil when parsing failed.
func (f *Frontend) Check(source string, libraries []string) (*SourceFile, []Diagnostic) {
	sf, diags := Parse(source)
	if HasErrors(diags) {
		return nil, diags
	}

	visible, missing := f.registry.Namespaces(libraries)
	var lib diagList
	for _, ref := range missing {
		lib.errorAt(Position{}, DiagUnknownLibrary, "metadata file '%s' could not be found", ref)
	}
	diags = append(diags, lib.items...)

	sa := NewSemanticAnalyzer(visible)
	sa.Analyze(sf)
	diags = append(diags, sa.Diagnostics()...)

	if f.EntryPoint != "" && sf.Unit != nil && !hasFunction(sf.Unit, f.EntryPoint) {
		var entry diagList
		entry.errorAt(sf.Unit.At, DiagNoEntryPoint,
			"unit '%s' does not contain a '%s' function suitable for an entry point", sf.Unit.Name, f.EntryPoint)
		diags = append(diags, entry.items...)
	}

	sorted := diagList{items: diags}
	return sf, sorted.sorted()
}

// Compile compiles a synthesized unit. The artifact is nil whenever an
// error diagnostic is returned; warnings may accompany a valid artifact.
func (f *Frontend) Compile(source, unitID string, libraries []string) (*vm.Artifact, []Diagnostic) {
	sf, diags := f.Check(source, libraries)
	if HasErrors(diags) {
		return nil, diags
	}

	c := NewCompiler()
	prog := c.CompileUnit(sf, unitID, libraries)
	diags = append(diags, c.Diagnostics()...)
	if HasErrors(diags) {
		return nil, diags
	}

	a, err := vm.EncodeProgram(prog)
	if err != nil {
		return nil, append(diags, Diagnostic{ID: DiagEmit, Severity: SeverityError, Message: err.Error()})
	}
	return a, diags
}

func hasFunction(unit *UnitDecl, name string) bool {
	for _, fn := range unit.Funcs {
		if fn.Name == name {
			return true
		}
	}
	return false
}
