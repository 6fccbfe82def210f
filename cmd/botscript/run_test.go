package main

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/chazu/botscript/config"
	"github.com/chazu/botscript/runner"
	"github.com/chazu/botscript/store"
)

func testApp(t *testing.T, cfg *config.Config) (*app, *bytes.Buffer) {
	t.Helper()
	var out bytes.Buffer
	a, err := newApp(cfg, &out)
	if err != nil {
		t.Fatalf("newApp: %v", err)
	}
	t.Cleanup(a.close)
	return a, &out
}

func writeScripts(t *testing.T, dir string, scripts map[string][]string) {
	t.Helper()
	fs := store.NewFileStore(dir)
	for name, lines := range scripts {
		if err := fs.WriteLines(name, lines); err != nil {
			t.Fatal(err)
		}
	}
}

func TestRunScriptsFromFiles(t *testing.T) {
	dir := t.TempDir()
	writeScripts(t, dir, map[string][]string{
		"hello.cs": {"//MCCScript 1.0", `LogToConsole("hello " + args[0]);`},
		"sum.cs":   {"//MCCScript 1.0", `return 40 + 2;`},
		"chat.cs":  {"//MCCScript 1.0", `PerformInternalCommand("script hello.cs again");`},
	})
	cfg := config.Default()
	cfg.Scripting.ScriptDir = dir

	a, out := testApp(t, cfg)
	if err := a.runScripts([]string{"hello.cs", "sum", "chat.cs"}, []string{"world"}, true); err != nil {
		t.Fatalf("runScripts: %v\n%s", err, out)
	}
	for _, want := range []string{"hello world\n", "sum => 42\n", "hello again\n"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestCheckScripts(t *testing.T) {
	dir := t.TempDir()
	writeScripts(t, dir, map[string][]string{
		"good.cs": {"//MCCScript 1.0", `LogToConsole("never printed");`},
		"bad.cs":  {"//MCCScript 1.0", `Nope();`},
	})
	cfg := config.Default()
	cfg.Scripting.ScriptDir = dir

	a, out := testApp(t, cfg)
	err := a.runScripts([]string{"good.cs", "bad.cs", "missing.cs"}, nil, false)
	if err == nil {
		t.Fatal("expected an error")
	}

	text := out.String()
	if strings.Contains(text, "never printed") {
		t.Error("check executed a script")
	}
	if !strings.Contains(text, "good.cs: ok") {
		t.Errorf("good.cs not reported ok:\n%s", text)
	}
	if !strings.Contains(text, "bad.cs: InvalidScript: compilation failed due to error") ||
		!strings.Contains(text, "(2,1): error BS0103:") {
		t.Errorf("bad.cs diagnostics missing:\n%s", text)
	}
	if !strings.Contains(text, "missing.cs: FileReadError") {
		t.Errorf("missing.cs not reported as FileReadError:\n%s", text)
	}
	if a.runner.Cache().Len() != 1 {
		t.Errorf("cache entries = %d, want 1", a.runner.Cache().Len())
	}
}

func TestRunScriptsFromDatabase(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Scripting.Database = filepath.Join(dir, "scripts.db")

	db, err := store.OpenSQLite(cfg.Scripting.Database)
	if err != nil {
		t.Fatal(err)
	}
	if err := db.Put("greet", []string{"//MCCScript 1.0", `return "hi";`}); err != nil {
		t.Fatal(err)
	}
	db.Close()

	a, out := testApp(t, cfg)
	if err := a.runScripts([]string{"greet"}, nil, true); err != nil {
		t.Fatalf("runScripts: %v", err)
	}
	if !strings.Contains(out.String(), "greet => hi") {
		t.Errorf("output = %q", out)
	}

	err = a.runScripts([]string{"absent"}, nil, true)
	if !runner.IsKind(err, runner.FileReadError) {
		t.Errorf("absent script error = %v, want FileReadError", err)
	}
}

func TestConsoleSession(t *testing.T) {
	dir := t.TempDir()
	writeScripts(t, dir, map[string][]string{
		"hello.cs": {"//MCCScript 1.0", `LogToConsole("hello " + args[0]);`},
	})
	cfg := config.Default()
	cfg.Scripting.ScriptDir = dir

	a, out := testApp(t, cfg)
	input := strings.NewReader("hi everyone\n/script hello.cs there\n/nope\n/quit\nnot read\n")
	if err := a.console(input); err != nil {
		t.Fatalf("console: %v", err)
	}

	text := out.String()
	for _, want := range []string{"hi everyone\n", "hello there\n", "unknown command 'nope'", "exit requested"} {
		if !strings.Contains(text, want) {
			t.Errorf("output missing %q:\n%s", want, text)
		}
	}
	if strings.Contains(text, "not read") {
		t.Errorf("input read after quit:\n%s", text)
	}
}

func TestConfiguredLibraries(t *testing.T) {
	dir := t.TempDir()
	writeScripts(t, dir, map[string][]string{
		"match.cs": {"//MCCScript 1.0", "//using regex;", "//dll regex", `return IsMatch("bot-42", "[0-9]+$");`},
	})
	cfg := config.Default()
	cfg.Scripting.ScriptDir = dir
	cfg.Scripting.Libraries = []string{"lib/regex.dll"}

	a, out := testApp(t, cfg)
	if err := a.runScripts([]string{"match.cs"}, nil, true); err != nil {
		t.Fatalf("runScripts: %v\n%s", err, out)
	}
	if !strings.Contains(out.String(), "match.cs => true") {
		t.Errorf("output = %q", out)
	}

	cfg.Scripting.Libraries = []string{"nothere.dll"}
	if _, err := newApp(cfg, &bytes.Buffer{}); err == nil || !strings.Contains(err.Error(), `unknown library "nothere.dll"`) {
		t.Errorf("newApp with unknown library: err = %v", err)
	}
}
