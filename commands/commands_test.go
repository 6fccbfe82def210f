package commands

import (
	"errors"
	"reflect"
	"strings"
	"testing"
)

type recordingEnv struct {
	restarts []bool
	exits    int
	scripts  [][]string
	fail     error
}

func (e *recordingEnv) Restart(keep bool) { e.restarts = append(e.restarts, keep) }
func (e *recordingEnv) Exit()             { e.exits++ }

func (e *recordingEnv) RunScript(path string, args []string) error {
	e.scripts = append(e.scripts, append([]string{path}, args...))
	return e.fail
}

func TestSplit(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"", nil},
		{"   ", nil},
		{"reco", []string{"reco"}},
		{"script  a.cs x y", []string{"script", "a.cs", "x", "y"}},
		{`script "my script.cs" "two words"`, []string{"script", "my script.cs", "two words"}},
		{`say ""`, []string{"say", ""}},
	}
	for _, tt := range tests {
		got, err := Split(tt.in)
		if err != nil {
			t.Errorf("Split(%q) error: %v", tt.in, err)
			continue
		}
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("Split(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}

	if _, err := Split(`script "open`); !errors.Is(err, ErrUnterminatedQuote) {
		t.Errorf("unterminated quote error = %v", err)
	}
}

func TestReco(t *testing.T) {
	d := NewDispatcher()
	env := &recordingEnv{}

	r := d.Execute(env, "reco")
	if !r.OK() {
		t.Fatalf("reco = %+v", r)
	}
	if !reflect.DeepEqual(env.restarts, []bool{true}) {
		t.Errorf("restarts = %v, want [true]", env.restarts)
	}

	// Names are case-insensitive.
	d.Execute(env, "RECO")
	if len(env.restarts) != 2 {
		t.Errorf("restarts = %d, want 2", len(env.restarts))
	}
}

func TestQuit(t *testing.T) {
	env := &recordingEnv{}
	if r := NewDispatcher().Execute(env, "quit"); !r.OK() || env.exits != 1 {
		t.Errorf("quit = %+v, exits = %d", r, env.exits)
	}
}

func TestScript(t *testing.T) {
	d := NewDispatcher()
	env := &recordingEnv{}

	if r := d.Execute(env, `script hello.cs "a b" c`); !r.OK() {
		t.Fatalf("script = %+v", r)
	}
	want := [][]string{{"hello.cs", "a b", "c"}}
	if !reflect.DeepEqual(env.scripts, want) {
		t.Errorf("scripts = %q, want %q", env.scripts, want)
	}

	if r := d.Execute(env, "script"); r.Status != NeedArgs {
		t.Errorf("script without args status = %v, want NeedArgs", r.Status)
	}

	env.fail = errors.New("no such script")
	r := d.Execute(env, "script missing.cs")
	if r.Status != Fail || r.Message != "no such script" {
		t.Errorf("failing script = %+v", r)
	}
}

func TestHelp(t *testing.T) {
	d := NewDispatcher()
	env := &recordingEnv{}

	r := d.Execute(env, "help")
	if !r.OK() || !strings.Contains(r.Message, "help, quit, reco, script") {
		t.Errorf("help = %+v", r)
	}

	r = d.Execute(env, "help reco")
	if !r.OK() || !strings.HasPrefix(r.Message, "reco: ") {
		t.Errorf("help reco = %+v", r)
	}

	r = d.Execute(env, "reco _help")
	if !r.OK() || !strings.HasPrefix(r.Message, "reco: ") {
		t.Errorf("reco _help = %+v", r)
	}
	if len(env.restarts) != 0 {
		t.Error("_help ran the command")
	}

	if r := d.Execute(env, "help nope"); r.Status != Unknown {
		t.Errorf("help nope status = %v", r.Status)
	}
}

func TestUnknownAndCustom(t *testing.T) {
	d := NewDispatcher()
	env := &recordingEnv{}

	if r := d.Execute(env, "dance"); r.Status != Unknown {
		t.Errorf("dance status = %v, want Unknown", r.Status)
	}
	if r := d.Execute(env, ""); r.Status != NeedArgs {
		t.Errorf("empty status = %v, want NeedArgs", r.Status)
	}

	var got []string
	d.Register(&Command{Name: "Dance", Usage: "dance <style>", Description: "dance", Run: func(env Env, args []string) Result {
		got = args
		return Result{Status: Done, Message: "dancing"}
	}})
	r := d.Execute(env, "dance salsa")
	if !r.OK() || r.Message != "dancing" || !reflect.DeepEqual(got, []string{"salsa"}) {
		t.Errorf("dance = %+v, args %v", r, got)
	}
}
