package vm

import (
	"testing"
)

func TestToText(t *testing.T) {
	m := NewMap()
	m.Set("b", int64(1))
	m.Set("a", nil)

	tests := []struct {
		in   Value
		want string
	}{
		{nil, ""},
		{true, "true"},
		{int64(-3), "-3"},
		{2.0, "2.0"},
		{0.25, "0.25"},
		{"plain", "plain"},
		{NewList(int64(1), "x", nil), `[1, "x", null]`},
		{m, `{"b": 1, "a": null}`},
	}
	for _, tt := range tests {
		if got := ToText(tt.in); got != tt.want {
			t.Errorf("ToText(%#v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestEqual(t *testing.T) {
	l := NewList()
	tests := []struct {
		a, b Value
		want bool
	}{
		{nil, nil, true},
		{int64(2), 2.0, true},
		{2.5, int64(2), false},
		{"a", "a", true},
		{"1", int64(1), false},
		{l, l, true},
		{l, NewList(), false},
		{true, true, true},
		{nil, false, false},
	}
	for _, tt := range tests {
		if got := Equal(tt.a, tt.b); got != tt.want {
			t.Errorf("Equal(%#v, %#v) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestMapPreservesInsertionOrder(t *testing.T) {
	m := NewMap()
	for _, k := range []string{"z", "a", "m"} {
		m.Set(k, k)
	}
	m.Set("a", "again")
	if !m.Delete("z") || m.Delete("missing") {
		t.Fatal("Delete returned wrong presence")
	}
	keys := m.Keys()
	if len(keys) != 2 || keys[0] != "a" || keys[1] != "m" {
		t.Errorf("Keys() = %v, want [a m]", keys)
	}
	if v, _ := m.Get("a"); v != "again" {
		t.Errorf("Get(a) = %v", v)
	}
}

func TestFromGo(t *testing.T) {
	if got := FromGo(7); got != int64(7) {
		t.Errorf("FromGo(int) = %#v", got)
	}
	l, ok := FromGo([]string{"a", "b"}).(*List)
	if !ok || len(l.Items) != 2 || l.Items[1] != "b" {
		t.Errorf("FromGo([]string) = %#v", l)
	}
	mm, ok := FromGo(map[string]string{"y": "2", "x": "1"}).(*Map)
	if !ok || mm.Keys()[0] != "x" {
		t.Errorf("FromGo(map) = %#v", mm)
	}
}

func TestTypeName(t *testing.T) {
	tests := map[string]Value{
		"null":     nil,
		"int":      int64(1),
		"float":    1.5,
		"string":   "",
		"list":     NewList(),
		"map":      NewMap(),
		"Recorder": &recorder{},
	}
	for want, v := range tests {
		if got := TypeName(v); got != want {
			t.Errorf("TypeName(%#v) = %q, want %q", v, got, want)
		}
	}
}
