// botscript CLI - compiles, checks and runs bot scripts
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"

	"github.com/chazu/botscript/config"
	"github.com/chazu/botscript/server"
)

func main() {
	configPath := flag.String("config", "", "Settings file (default: nearest botscript.toml)")
	verbosity := flag.Int("v", -1, "Log verbosity (overrides settings)")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: botscript [options] <command> [args...]\n\n")
		fmt.Fprintf(os.Stderr, "Commands:\n")
		fmt.Fprintf(os.Stderr, "  run [-arg value]... [-player name]... <script>...  Run scripts concurrently\n")
		fmt.Fprintf(os.Stderr, "  check <script>...                                  Compile scripts without running them\n")
		fmt.Fprintf(os.Stderr, "  import <script>...                                 Copy scripts into the settings database\n")
		fmt.Fprintf(os.Stderr, "  console                                            Read chat and internal commands from stdin\n")
		fmt.Fprintf(os.Stderr, "  lsp                                                Start the language server on stdio\n")
		fmt.Fprintf(os.Stderr, "  config init [path]                                 Write default settings\n")
		fmt.Fprintf(os.Stderr, "\nOptions:\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(2)
	}

	if args[0] == "config" {
		handleConfigCommand(args[1:])
		return
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if *verbosity >= 0 {
		cfg.Logging.Verbosity = *verbosity
	}
	configureLogging(cfg)

	switch args[0] {
	case "run":
		os.Exit(handleRunCommand(cfg, args[1:], true))
	case "check":
		os.Exit(handleRunCommand(cfg, args[1:], false))
	case "import":
		os.Exit(handleImportCommand(cfg, args[1:]))
	case "console":
		os.Exit(handleConsoleCommand(cfg))
	case "lsp":
		reg, err := newRegistry(cfg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		lsp := server.NewLSP(reg)
		if err := lsp.Run(); err != nil {
			fmt.Fprintf(os.Stderr, "LSP error: %v\n", err)
			os.Exit(1)
		}
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", args[0])
		flag.Usage()
		os.Exit(2)
	}
}

func loadConfig(path string) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if path != "" {
		cfg, err = config.Load(path)
	} else {
		cfg, err = config.FindAndLoad(".")
	}
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func configureLogging(cfg *config.Config) {
	var path *string
	if file := strings.TrimSpace(cfg.Logging.File); file != "" {
		path = &file
	}
	commonlog.Configure(cfg.Logging.Verbosity, path)
}

// handleConfigCommand processes the `botscript config` subcommand.
func handleConfigCommand(args []string) {
	if len(args) == 0 || args[0] != "init" {
		fmt.Fprintln(os.Stderr, "Usage: botscript config init [path]")
		os.Exit(2)
	}
	path := config.FileName
	if len(args) > 1 {
		path = args[1]
	}
	if _, err := os.Stat(path); err == nil {
		fmt.Fprintf(os.Stderr, "Error: %s already exists\n", path)
		os.Exit(1)
	}
	if err := config.Write(path, config.Default()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Wrote %s\n", path)
}
