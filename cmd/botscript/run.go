package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/chazu/botscript/config"
	"github.com/chazu/botscript/host"
	"github.com/chazu/botscript/runner"
	"github.com/chazu/botscript/store"
	"github.com/chazu/botscript/vm"
)

// listFlag collects a repeated string flag.
type listFlag []string

func (l *listFlag) String() string     { return strings.Join(*l, ",") }
func (l *listFlag) Set(v string) error { *l = append(*l, v); return nil }

// nativeLibraries are the libraries this binary ships.
var nativeLibraries = []*vm.Library{
	vm.RegexLibrary(),
}

// newRegistry registers the libraries named in [Scripting].Libraries, or
// every shipped library when the list is empty.
func newRegistry(cfg *config.Config) (*vm.Registry, error) {
	if len(cfg.Scripting.Libraries) == 0 {
		return runner.NewRegistry(nativeLibraries...), nil
	}
	all := vm.NewRegistry()
	for _, lib := range nativeLibraries {
		all.RegisterLibrary(lib)
	}
	var libs []*vm.Library
	for _, ref := range cfg.Scripting.Libraries {
		lib, ok := all.Library(ref)
		if !ok {
			return nil, fmt.Errorf("unknown library %q in [Scripting].Libraries", ref)
		}
		libs = append(libs, lib)
	}
	return runner.NewRegistry(libs...), nil
}

// app wires settings, storage, host and runner together.
type app struct {
	cfg    *config.Config
	runner *runner.Runner
	host   *host.ConsoleHost
	api    *runner.API
	source runner.ScriptSource
	close  func()

	outMu sync.Mutex
	out   io.Writer

	exited atomic.Bool
}

func newApp(cfg *config.Config, stdout io.Writer) (*app, error) {
	cmdChar, err := cfg.InternalCommandChar()
	if err != nil {
		return nil, err
	}
	reg, err := newRegistry(cfg)
	if err != nil {
		return nil, err
	}

	cache, err := runner.NewCompileCache(cfg.Main.Advanced.CacheScript, cfg.Main.Advanced.ScriptCacheSize)
	if err != nil {
		return nil, err
	}
	r := runner.NewVM(cache, reg)
	cache.Release()

	a := &app{cfg: cfg, runner: r, out: stdout}
	a.close = r.Close

	if db := cfg.DatabasePath(); db != "" {
		sqlite, err := store.OpenSQLite(db)
		if err != nil {
			r.Close()
			return nil, err
		}
		a.source = sqlite
		a.close = func() {
			r.Close()
			sqlite.Close()
		}
	} else {
		a.source = store.NewFileStore(cfg.ScriptDirPath(), cfg.Scripting.Extensions...)
	}

	a.host = host.NewConsole(lockedWriter{a}, lockedWriter{a})
	a.host.CommandChar = cmdChar
	a.host.OnReconnect = func(req runner.ReconnectRequest) {
		a.println("[botscript] reconnect requested; no server connection in console mode")
	}
	a.host.OnExit = func() {
		a.exited.Store(true)
		a.println("[botscript] exit requested")
	}
	a.api = runner.NewAPI(a.host, r, a.source)
	a.host.Scripts = func(path string, args []string) error {
		_, err := a.api.CallScript(path, args)
		return err
	}
	return a, nil
}

func (a *app) println(text string) {
	a.outMu.Lock()
	defer a.outMu.Unlock()
	fmt.Fprintln(a.out, text)
}

type lockedWriter struct{ a *app }

func (w lockedWriter) Write(p []byte) (int, error) {
	w.a.outMu.Lock()
	defer w.a.outMu.Unlock()
	return w.a.out.Write(p)
}

// runScripts compiles every script concurrently and, when execute is set,
// runs it. Every failure is reported; the first one is returned.
func (a *app) runScripts(paths, args []string, execute bool) error {
	var g errgroup.Group
	g.SetLimit(runtime.NumCPU())

	for _, path := range paths {
		g.Go(func() error {
			lines, err := runner.ReadScript(a.source, path)
			if err == nil {
				var result vm.Value
				result, err = a.runner.Run(a.api, lines, args, execute, path)
				if err == nil && execute && result != nil {
					a.println(fmt.Sprintf("%s => %s", path, vm.ToText(result)))
				}
			}
			if err != nil {
				a.println(fmt.Sprintf("%s: %s", path, runner.Describe(err)))
				return fmt.Errorf("%s: %w", path, err)
			}
			if !execute {
				a.println(fmt.Sprintf("%s: ok", path))
			}
			return nil
		})
	}
	return g.Wait()
}

// console feeds lines from r to the host until input ends or a quit
// command is run.
func (a *app) console(r io.Reader) error {
	scanner := bufio.NewScanner(r)
	for !a.exited.Load() && scanner.Scan() {
		a.host.Input(scanner.Text())
	}
	return scanner.Err()
}

// handleRunCommand processes the `botscript run` and `botscript check`
// subcommands and returns the exit code.
func handleRunCommand(cfg *config.Config, args []string, execute bool) int {
	name := "check"
	if execute {
		name = "run"
	}
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	var scriptArgs, players listFlag
	if execute {
		fs.Var(&scriptArgs, "arg", "Argument passed to every script (repeatable)")
		fs.Var(&players, "player", "Online player name (repeatable)")
	}
	fs.Parse(args)

	if fs.NArg() == 0 {
		fmt.Fprintf(os.Stderr, "Usage: botscript %s <script>...\n", name)
		return 2
	}

	a, err := newApp(cfg, os.Stdout)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	defer a.close()

	roster := make(map[string]string, len(players))
	for i, p := range players {
		roster[fmt.Sprintf("player-%d", i+1)] = p
	}
	a.host.SetPlayers(roster)

	if err := a.runScripts(fs.Args(), scriptArgs, execute); err != nil {
		return 1
	}
	return 0
}

// handleImportCommand processes the `botscript import` subcommand.
func handleImportCommand(cfg *config.Config, args []string) int {
	db := cfg.DatabasePath()
	if db == "" || len(args) == 0 {
		fmt.Fprintln(os.Stderr, "Usage: botscript import <script>...  (requires [Scripting].Database)")
		return 2
	}
	sqlite, err := store.OpenSQLite(db)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	defer sqlite.Close()

	files := store.NewFileStore(cfg.ScriptDirPath(), cfg.Scripting.Extensions...)
	if err := sqlite.Import(files, args...); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	fmt.Printf("Imported %d script(s) into %s\n", len(args), db)
	return 0
}

// handleConsoleCommand processes the `botscript console` subcommand: an
// interactive session where prefixed lines are internal commands.
func handleConsoleCommand(cfg *config.Config) int {
	a, err := newApp(cfg, os.Stdout)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	defer a.close()

	if err := a.console(os.Stdin); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}
