package vm

import (
	"testing"
)

func callNative(t *testing.T, reg *Registry, qualified string, libs []string, args ...Value) (Value, error) {
	t.Helper()
	fn, err := reg.ResolveNative(qualified, libs)
	if err != nil {
		t.Fatalf("ResolveNative(%s): %v", qualified, err)
	}
	if !fn.Accepts(len(args)) {
		t.Fatalf("%s does not accept %d args", qualified, len(args))
	}
	return fn.Fn(args)
}

func TestStandardNatives(t *testing.T) {
	reg := NewRegistry()
	tests := []struct {
		name string
		args []Value
		want Value
	}{
		{"text.Str", []Value{2.0}, "2.0"},
		{"text.Format", []Value{"{1}-{0}-{9}", "a", int64(2)}, "2-a-{9}"},
		{"text.Join", []Value{",", NewList("a", int64(1))}, "a,1"},
		{"text.Repeat", []Value{"ab", int64(2)}, "abab"},
		{"text.ParseInt", []Value{" 42 "}, int64(42)},
		{"text.ParseInt", []Value{"x"}, nil},
		{"math.Abs", []Value{int64(-4)}, int64(4)},
		{"math.Max", []Value{int64(1), 7.5, int64(3)}, 7.5},
		{"math.Min", []Value{int64(4), int64(2)}, int64(2)},
		{"math.Floor", []Value{2.7}, 2.0},
		{"math.Int", []Value{"12"}, int64(12)},
		{"collections.Len", []Value{"héllo"}, int64(5)},
	}
	for _, tt := range tests {
		got, err := callNative(t, reg, tt.name, nil, tt.args...)
		if err != nil {
			t.Errorf("%s: %v", tt.name, err)
			continue
		}
		if !Equal(got, tt.want) || TypeName(got) != TypeName(tt.want) {
			t.Errorf("%s(%v) = %#v, want %#v", tt.name, tt.args, got, tt.want)
		}
	}
}

func TestRangeAndAppend(t *testing.T) {
	reg := NewRegistry()
	r, err := callNative(t, reg, "collections.Range", nil, int64(2), int64(5))
	if err != nil {
		t.Fatal(err)
	}
	if ToText(r) != "[2, 3, 4]" {
		t.Errorf("Range = %s", ToText(r))
	}
	l, err := callNative(t, reg, "collections.Append", nil, r, "x")
	if err != nil {
		t.Fatal(err)
	}
	if l != r || ToText(l) != `[2, 3, 4, "x"]` {
		t.Errorf("Append = %s", ToText(l))
	}
}

func TestNativeArgumentErrors(t *testing.T) {
	reg := NewRegistry()
	if _, err := callNative(t, reg, "text.Join", nil, int64(1), NewList()); err == nil {
		t.Error("Join accepted a non-string separator")
	}
	if _, err := callNative(t, reg, "math.Random", nil, int64(0)); err == nil {
		t.Error("Random accepted a zero bound")
	}
}

func TestRegexLibrary(t *testing.T) {
	reg := NewRegistry()
	reg.RegisterLibrary(RegexLibrary())
	libs := []string{"regex"}

	got, err := callNative(t, reg, "regex.Replace", libs, "a1b22", `\d+`, "#")
	if err != nil || got != "a#b#" {
		t.Errorf("Replace = %v, %v", got, err)
	}
	got, err = callNative(t, reg, "regex.Find", libs, "user=bob", `user=(\w+)`)
	if err != nil || ToText(got) != `["user=bob", "bob"]` {
		t.Errorf("Find = %v, %v", ToText(got), err)
	}
}

func TestRegistryNamespaces(t *testing.T) {
	reg := NewRegistry()
	visible, missing := reg.Namespaces([]string{"nothing.dll"})
	if len(missing) != 1 || missing[0] != "nothing.dll" {
		t.Errorf("missing = %v", missing)
	}
	for _, name := range []string{"text", "math", "collections", "time"} {
		if _, ok := visible[name]; !ok {
			t.Errorf("namespace %s not visible", name)
		}
	}

	host := &Namespace{Name: "host", Receiver: "MCC", Methods: map[string]*NativeFunc{
		"SendText": {Name: "SendText", MinArgs: 1, MaxArgs: 1},
	}}
	reg.RegisterNamespace(host)
	if _, err := reg.ResolveNative("host.SendText", nil); err == nil {
		t.Error("receiver namespace resolved as a native")
	}
	if names := host.Names(); len(names) != 1 || names[0] != "SendText" {
		t.Errorf("Names() = %v", names)
	}
}
