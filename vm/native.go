package vm

import (
	"fmt"
	"path"
	"sort"
	"strings"
	"sync"
)

// ---------------------------------------------------------------------------
// Native functions, namespaces and libraries
// ---------------------------------------------------------------------------

// Variadic marks a NativeFunc without an upper argument bound.
const Variadic = -1

// NativeFunc is a Go function callable from scripts.
type NativeFunc struct {
	Name    string
	MinArgs int
	MaxArgs int // Variadic for no limit
	Fn      func(args []Value) (Value, error)
}

// Accepts reports whether argc arguments are allowed.
func (f *NativeFunc) Accepts(argc int) bool {
	return argc >= f.MinArgs && (f.MaxArgs == Variadic || argc <= f.MaxArgs)
}

// Namespace groups native functions under an importable name.
//
// A namespace with a Receiver holds no functions of its own: calls into it
// are compiled as method invocations on the unit field named by Receiver,
// and Methods lists the callable names with their arities.
type Namespace struct {
	Name      string
	Functions map[string]*NativeFunc
	Receiver  string
	Methods   map[string]*NativeFunc
}

// NewNamespace creates a namespace from a function list.
func NewNamespace(name string, fns ...*NativeFunc) *Namespace {
	ns := &Namespace{Name: name, Functions: make(map[string]*NativeFunc, len(fns))}
	for _, fn := range fns {
		ns.Functions[fn.Name] = fn
	}
	return ns
}

// Lookup finds a function or receiver method by name.
func (ns *Namespace) Lookup(name string) (*NativeFunc, bool) {
	if ns.Receiver != "" {
		fn, ok := ns.Methods[name]
		return fn, ok
	}
	fn, ok := ns.Functions[name]
	return fn, ok
}

// Names returns the sorted function names.
func (ns *Namespace) Names() []string {
	src := ns.Functions
	if ns.Receiver != "" {
		src = ns.Methods
	}
	names := make([]string, 0, len(src))
	for n := range src {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Library is a loadable bundle of namespaces, referenced from scripts by
// name through a native library directive.
type Library struct {
	Name       string
	Namespaces []*Namespace
}

// Registry holds the namespaces every unit may import and the libraries a
// unit may reference. It is safe for concurrent use.
type Registry struct {
	mu         sync.RWMutex
	namespaces map[string]*Namespace
	libraries  map[string]*Library
}

// NewRegistry creates a registry preloaded with the standard namespaces.
func NewRegistry() *Registry {
	r := &Registry{
		namespaces: make(map[string]*Namespace),
		libraries:  make(map[string]*Library),
	}
	for _, ns := range standardNamespaces() {
		r.RegisterNamespace(ns)
	}
	return r
}

// RegisterNamespace makes ns importable by every unit.
func (r *Registry) RegisterNamespace(ns *Namespace) {
	r.mu.Lock()
	r.namespaces[ns.Name] = ns
	r.mu.Unlock()
}

// RegisterLibrary makes lib available to units that reference it.
func (r *Registry) RegisterLibrary(lib *Library) {
	r.mu.Lock()
	r.libraries[lib.Name] = lib
	r.mu.Unlock()
}

// Namespace returns a core namespace.
func (r *Registry) Namespace(name string) (*Namespace, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ns, ok := r.namespaces[name]
	return ns, ok
}

// Library resolves a library reference. References may carry a directory
// or a file extension ("libs/regex.so" resolves "regex").
func (r *Registry) Library(ref string) (*Library, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if lib, ok := r.libraries[ref]; ok {
		return lib, true
	}
	base := path.Base(strings.ReplaceAll(ref, "\\", "/"))
	if lib, ok := r.libraries[base]; ok {
		return lib, true
	}
	lib, ok := r.libraries[strings.TrimSuffix(base, path.Ext(base))]
	return lib, ok
}

// Namespaces returns the namespaces visible to a unit referencing libs.
// Unknown library references are returned separately.
func (r *Registry) Namespaces(libs []string) (map[string]*Namespace, []string) {
	visible := make(map[string]*Namespace)
	r.mu.RLock()
	for name, ns := range r.namespaces {
		visible[name] = ns
	}
	r.mu.RUnlock()

	var missing []string
	for _, ref := range libs {
		lib, ok := r.Library(ref)
		if !ok {
			missing = append(missing, ref)
			continue
		}
		for _, ns := range lib.Namespaces {
			visible[ns.Name] = ns
		}
	}
	return visible, missing
}

// ResolveNative finds a "namespace.Function" reference for a unit that
// referenced libs.
func (r *Registry) ResolveNative(qualified string, libs []string) (*NativeFunc, error) {
	nsName, fnName, ok := strings.Cut(qualified, ".")
	if !ok {
		return nil, fmt.Errorf("malformed native reference %q", qualified)
	}
	visible, missing := r.Namespaces(libs)
	if len(missing) > 0 {
		return nil, fmt.Errorf("library not available: %s", strings.Join(missing, ", "))
	}
	ns, ok := visible[nsName]
	if !ok || ns.Receiver != "" {
		return nil, fmt.Errorf("namespace %q not available", nsName)
	}
	fn, ok := ns.Functions[fnName]
	if !ok {
		return nil, fmt.Errorf("function %q not found", qualified)
	}
	return fn, nil
}
