package runner

import (
	"fmt"

	"github.com/chazu/botscript/script"
	"github.com/chazu/botscript/vm"
)

// DefaultReconnectAttempts passed as extraAttempts asks the host to use
// its own retry count.
const DefaultReconnectAttempts = -999999

// HostNamespace is the namespace name scripts import to reach the
// capability handle.
const HostNamespace = "host"

// ReconnectRequest describes a reconnect asked for by a script.
type ReconnectRequest struct {
	// ExtraAttempts is meaningful only when DefaultAttempts is false.
	ExtraAttempts   int
	DefaultAttempts bool
	DelaySeconds    int
	KeepSettings    bool // keep account and server settings
}

// Host is the bot platform behind the capability facade. Scripts never
// see it directly.
type Host interface {
	LogToConsole(text string)
	SendText(text string) bool
	PerformInternalCommand(command string) bool
	ReconnectToTheServer(req ReconnectRequest)
	DisconnectAndExit()
	LoadBot(name string) error
	GetOnlinePlayers() []string
	GetOnlinePlayersWithUUID() map[string]string
}

// ScriptSource supplies script lines by path.
type ScriptSource interface {
	ReadLines(path string) ([]string, error)
}

// Capabilities is the complete set of operations a running script may
// perform.
type Capabilities interface {
	LogToConsole(text vm.Value)
	SendText(text vm.Value) bool
	PerformInternalCommand(command string) bool
	ReconnectToTheServer(extraAttempts, delaySeconds int, keepAccountAndServerSettings bool)
	DisconnectAndExit()
	LoadBot(name string) error
	GetOnlinePlayers() []string
	GetOnlinePlayersWithUUID() map[string]string
	CallScript(path string, args []string) (vm.Value, error)
}

// ---------------------------------------------------------------------------
// API: the Capabilities implementation over a Host
// ---------------------------------------------------------------------------

// API forwards capability calls to a Host. CallScript reads the target
// through source and re-enters runner.
type API struct {
	host   Host
	runner *Runner
	source ScriptSource
}

// NewAPI creates a capability facade.
func NewAPI(host Host, r *Runner, source ScriptSource) *API {
	return &API{host: host, runner: r, source: source}
}

func (a *API) LogToConsole(text vm.Value) {
	a.host.LogToConsole(vm.ToText(text))
}

// SendText sends any value as text. It always reports true; the result is
// kept for scripts that test it.
func (a *API) SendText(text vm.Value) bool {
	a.host.SendText(vm.ToText(text))
	return true
}

func (a *API) PerformInternalCommand(command string) bool {
	return a.host.PerformInternalCommand(command)
}

func (a *API) ReconnectToTheServer(extraAttempts, delaySeconds int, keepAccountAndServerSettings bool) {
	req := ReconnectRequest{DelaySeconds: delaySeconds, KeepSettings: keepAccountAndServerSettings}
	if extraAttempts == DefaultReconnectAttempts {
		req.DefaultAttempts = true
	} else {
		req.ExtraAttempts = extraAttempts
	}
	a.host.ReconnectToTheServer(req)
}

func (a *API) DisconnectAndExit() {
	a.host.DisconnectAndExit()
}

func (a *API) LoadBot(name string) error {
	return a.host.LoadBot(name)
}

func (a *API) GetOnlinePlayers() []string {
	return a.host.GetOnlinePlayers()
}

func (a *API) GetOnlinePlayersWithUUID() map[string]string {
	return a.host.GetOnlinePlayersWithUUID()
}

// CallScript runs another script synchronously and returns its result.
// A read failure is a FileReadError.
func (a *API) CallScript(path string, args []string) (vm.Value, error) {
	lines, err := ReadScript(a.source, path)
	if err != nil {
		return nil, err
	}
	return a.runner.Run(a, lines, args, true, path)
}

// ReadScript reads path from source. A read failure is a FileReadError.
func ReadScript(source ScriptSource, path string) ([]string, error) {
	lines, err := source.ReadLines(path)
	if err != nil {
		return nil, newError(FileReadError, err)
	}
	return lines, nil
}

// ---------------------------------------------------------------------------
// Script binding
// ---------------------------------------------------------------------------

type capMethod struct {
	minArgs, maxArgs int
	call             func(c Capabilities, args []vm.Value) (vm.Value, error)
}

var capMethods = map[string]capMethod{
	"LogToConsole": {1, 1, func(c Capabilities, args []vm.Value) (vm.Value, error) {
		c.LogToConsole(args[0])
		return nil, nil
	}},
	"SendText": {1, 1, func(c Capabilities, args []vm.Value) (vm.Value, error) {
		return c.SendText(args[0]), nil
	}},
	"PerformInternalCommand": {1, 1, func(c Capabilities, args []vm.Value) (vm.Value, error) {
		return c.PerformInternalCommand(vm.ToText(args[0])), nil
	}},
	"ReconnectToTheServer": {0, 3, func(c Capabilities, args []vm.Value) (vm.Value, error) {
		extra, delay, keep := int64(DefaultReconnectAttempts), int64(0), false
		var err error
		if len(args) > 0 {
			if extra, err = intArg("ReconnectToTheServer", args[0]); err != nil {
				return nil, err
			}
		}
		if len(args) > 1 {
			if delay, err = intArg("ReconnectToTheServer", args[1]); err != nil {
				return nil, err
			}
		}
		if len(args) > 2 {
			b, ok := args[2].(bool)
			if !ok {
				return nil, fmt.Errorf("ReconnectToTheServer: expected bool, got %s", vm.TypeName(args[2]))
			}
			keep = b
		}
		c.ReconnectToTheServer(int(extra), int(delay), keep)
		return nil, nil
	}},
	"DisconnectAndExit": {0, 0, func(c Capabilities, args []vm.Value) (vm.Value, error) {
		c.DisconnectAndExit()
		return nil, nil
	}},
	"LoadBot": {1, 1, func(c Capabilities, args []vm.Value) (vm.Value, error) {
		return nil, c.LoadBot(vm.ToText(args[0]))
	}},
	"GetOnlinePlayers": {0, 0, func(c Capabilities, args []vm.Value) (vm.Value, error) {
		return c.GetOnlinePlayers(), nil
	}},
	"GetOnlinePlayersWithUUID": {0, 0, func(c Capabilities, args []vm.Value) (vm.Value, error) {
		return c.GetOnlinePlayersWithUUID(), nil
	}},
	"CallScript": {1, 2, func(c Capabilities, args []vm.Value) (vm.Value, error) {
		var scriptArgs []string
		if len(args) > 1 && args[1] != nil {
			list, ok := args[1].(*vm.List)
			if !ok {
				return nil, fmt.Errorf("CallScript: expected list of arguments, got %s", vm.TypeName(args[1]))
			}
			for _, item := range list.Items {
				scriptArgs = append(scriptArgs, vm.ToText(item))
			}
		}
		return c.CallScript(vm.ToText(args[0]), scriptArgs)
	}},
}

func intArg(method string, v vm.Value) (int64, error) {
	n, ok := v.(int64)
	if !ok {
		return 0, fmt.Errorf("%s: expected int, got %s", method, vm.TypeName(v))
	}
	return n, nil
}

// handle is the value scripts hold in their handle field. It exposes only
// the capability method table.
type handle struct {
	caps Capabilities
}

// Bind wraps caps as the script-visible capability handle.
func Bind(caps Capabilities) vm.Object {
	return &handle{caps: caps}
}

func (h *handle) TypeName() string { return "API" }

func (h *handle) Invoke(method string, args []vm.Value) (vm.Value, error) {
	m, ok := capMethods[method]
	if !ok {
		return nil, fmt.Errorf("API has no method %s", method)
	}
	if len(args) < m.minArgs || len(args) > m.maxArgs {
		return nil, fmt.Errorf("API.%s: wrong number of arguments (%d)", method, len(args))
	}
	return m.call(h.caps, args)
}

// CapabilityNamespace describes the capability methods to the compiler.
// Calls resolve to method invocations on the unit's handle field.
func CapabilityNamespace() *vm.Namespace {
	ns := &vm.Namespace{
		Name:     HostNamespace,
		Receiver: script.HandleField,
		Methods:  make(map[string]*vm.NativeFunc, len(capMethods)),
	}
	for name, m := range capMethods {
		ns.Methods[name] = &vm.NativeFunc{Name: name, MinArgs: m.minArgs, MaxArgs: m.maxArgs}
	}
	return ns
}

// NewRegistry returns a registry with the standard namespaces, the
// capability namespace and the given libraries.
func NewRegistry(libs ...*vm.Library) *vm.Registry {
	reg := vm.NewRegistry()
	reg.RegisterNamespace(CapabilityNamespace())
	for _, lib := range libs {
		reg.RegisterLibrary(lib)
	}
	return reg
}
