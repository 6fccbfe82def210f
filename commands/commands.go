// Package commands implements the bot's internal commands: the ones
// scripts reach through PerformInternalCommand and the console reaches
// through the internal command prefix.
package commands

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Status is the outcome of a command.
type Status int

const (
	Done Status = iota
	Fail
	NeedArgs
	Unknown
)

// Result is what a command reports back.
type Result struct {
	Status  Status
	Message string
}

// OK reports whether the command succeeded.
func (r Result) OK() bool {
	return r.Status == Done
}

// Env is the host side of the built-in commands.
type Env interface {
	// Restart reconnects, optionally keeping the current account and
	// server settings.
	Restart(keepAccountAndServerSettings bool)
	Exit()
	RunScript(path string, args []string) error
}

// Command is one named internal command.
type Command struct {
	Name        string
	Usage       string
	Description string
	Run         func(env Env, args []string) Result
}

// ErrUnterminatedQuote is returned by Split for a dangling '"'.
var ErrUnterminatedQuote = errors.New("unterminated quote")

// ---------------------------------------------------------------------------
// Dispatcher
// ---------------------------------------------------------------------------

// Dispatcher routes command lines to registered commands. It is safe for
// concurrent use.
type Dispatcher struct {
	mu       sync.RWMutex
	commands map[string]*Command
}

// NewDispatcher creates a dispatcher with the built-in commands.
func NewDispatcher() *Dispatcher {
	d := &Dispatcher{commands: make(map[string]*Command)}
	for _, cmd := range Builtins() {
		d.Register(cmd)
	}
	return d
}

// Register adds or replaces a command. Names are case-insensitive.
func (d *Dispatcher) Register(cmd *Command) {
	d.mu.Lock()
	d.commands[strings.ToLower(cmd.Name)] = cmd
	d.mu.Unlock()
}

// Lookup finds a command by name.
func (d *Dispatcher) Lookup(name string) (*Command, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	cmd, ok := d.commands[strings.ToLower(name)]
	return cmd, ok
}

// Names returns the sorted command names, "help" included.
func (d *Dispatcher) Names() []string {
	d.mu.RLock()
	names := make([]string, 0, len(d.commands)+1)
	for name := range d.commands {
		names = append(names, name)
	}
	d.mu.RUnlock()
	names = append(names, "help")
	sort.Strings(names)
	return names
}

// Execute runs one command line. "help" and "<cmd> _help" are answered by
// the dispatcher itself.
func (d *Dispatcher) Execute(env Env, line string) Result {
	fields, err := Split(line)
	if err != nil {
		return Result{Status: Fail, Message: err.Error()}
	}
	if len(fields) == 0 {
		return Result{Status: NeedArgs, Message: "missing command"}
	}

	name, args := strings.ToLower(fields[0]), fields[1:]
	if name == "help" {
		return d.help(args)
	}
	cmd, ok := d.Lookup(name)
	if !ok {
		return Result{Status: Unknown, Message: fmt.Sprintf("unknown command '%s'. Use 'help' for the command list.", name)}
	}
	if len(args) == 1 && args[0] == "_help" {
		return Result{Status: Done, Message: describe(cmd)}
	}
	return cmd.Run(env, args)
}

func (d *Dispatcher) help(args []string) Result {
	if len(args) > 0 {
		cmd, ok := d.Lookup(args[0])
		if !ok {
			return Result{Status: Unknown, Message: fmt.Sprintf("unknown command '%s'", args[0])}
		}
		return Result{Status: Done, Message: describe(cmd)}
	}
	return Result{Status: Done, Message: "help <cmdname>. Available commands: " + strings.Join(d.Names(), ", ")}
}

func describe(cmd *Command) string {
	return fmt.Sprintf("%s: %s", cmd.Usage, cmd.Description)
}

// Split breaks a command line into fields at spaces. Double quotes group
// a field and are removed.
func Split(line string) ([]string, error) {
	var (
		fields  []string
		cur     strings.Builder
		inQuote bool
		started bool
	)
	for _, r := range line {
		switch {
		case r == '"':
			inQuote = !inQuote
			started = true
		case r == ' ' && !inQuote:
			if started {
				fields = append(fields, cur.String())
				cur.Reset()
				started = false
			}
		default:
			cur.WriteRune(r)
			started = true
		}
	}
	if inQuote {
		return nil, ErrUnterminatedQuote
	}
	if started {
		fields = append(fields, cur.String())
	}
	return fields, nil
}

// ---------------------------------------------------------------------------
// Built-in commands
// ---------------------------------------------------------------------------

// Builtins returns the standard commands.
func Builtins() []*Command {
	return []*Command{
		{
			Name:        "reco",
			Usage:       "reco",
			Description: "restart and reconnect to the server",
			Run: func(env Env, args []string) Result {
				env.Restart(true)
				return Result{Status: Done}
			},
		},
		{
			Name:        "quit",
			Usage:       "quit",
			Description: "disconnect from the server and exit",
			Run: func(env Env, args []string) Result {
				env.Exit()
				return Result{Status: Done}
			},
		},
		{
			Name:        "script",
			Usage:       "script <scriptname> [args...]",
			Description: "run a script file",
			Run: func(env Env, args []string) Result {
				if len(args) == 0 {
					return Result{Status: NeedArgs, Message: "usage: script <scriptname> [args...]"}
				}
				if err := env.RunScript(args[0], args[1:]); err != nil {
					return Result{Status: Fail, Message: err.Error()}
				}
				return Result{Status: Done}
			},
		},
	}
}
