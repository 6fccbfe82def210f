package vm

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// ---------------------------------------------------------------------------
// Values
// ---------------------------------------------------------------------------

// Value is any botscript value: nil, bool, int64, float64, string, *List,
// *Map or an Object supplied by the host.
type Value = any

// Object is a host-provided value scripts can call methods on.
type Object interface {
	TypeName() string
	Invoke(method string, args []Value) (Value, error)
}

// List is a mutable, reference-semantics sequence.
type List struct {
	Items []Value
}

// NewList wraps items in a List.
func NewList(items ...Value) *List {
	return &List{Items: items}
}

// StringList converts a string slice to a List.
func StringList(ss []string) *List {
	items := make([]Value, len(ss))
	for i, s := range ss {
		items[i] = s
	}
	return &List{Items: items}
}

// Map is a string-keyed dictionary that iterates in insertion order.
type Map struct {
	keys  []string
	items map[string]Value
}

// NewMap creates an empty Map.
func NewMap() *Map {
	return &Map{items: make(map[string]Value)}
}

// StringMap converts a Go map to a Map with keys in sorted order.
func StringMap(m map[string]string) *Map {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := NewMap()
	for _, k := range keys {
		out.Set(k, m[k])
	}
	return out
}

// Get returns the value stored under key.
func (m *Map) Get(key string) (Value, bool) {
	v, ok := m.items[key]
	return v, ok
}

// Set stores value under key, appending new keys to the iteration order.
func (m *Map) Set(key string, value Value) {
	if _, ok := m.items[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.items[key] = value
}

// Delete removes key and reports whether it was present.
func (m *Map) Delete(key string) bool {
	if _, ok := m.items[key]; !ok {
		return false
	}
	delete(m.items, key)
	for i, k := range m.keys {
		if k == key {
			m.keys = append(m.keys[:i], m.keys[i+1:]...)
			break
		}
	}
	return true
}

// Keys returns the keys in insertion order.
func (m *Map) Keys() []string {
	out := make([]string, len(m.keys))
	copy(out, m.keys)
	return out
}

// Len returns the number of entries.
func (m *Map) Len() int {
	return len(m.keys)
}

// TypeName returns the script-visible type name of v.
func TypeName(v Value) string {
	switch x := v.(type) {
	case nil:
		return "null"
	case bool:
		return "bool"
	case int64:
		return "int"
	case float64:
		return "float"
	case string:
		return "string"
	case *List:
		return "list"
	case *Map:
		return "map"
	case Object:
		return x.TypeName()
	default:
		return fmt.Sprintf("%T", v)
	}
}

// ToText is the default textual representation of a value. Null renders as
// the empty string.
func ToText(v Value) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case bool:
		if x {
			return "true"
		}
		return "false"
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		if math.IsInf(x, 0) || math.IsNaN(x) {
			return strconv.FormatFloat(x, 'g', -1, 64)
		}
		if x == math.Trunc(x) && math.Abs(x) < 1e15 {
			return strconv.FormatFloat(x, 'f', 1, 64)
		}
		return strconv.FormatFloat(x, 'g', -1, 64)
	case *List:
		parts := make([]string, len(x.Items))
		for i, item := range x.Items {
			parts[i] = quoteNested(item)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case *Map:
		parts := make([]string, 0, x.Len())
		for _, k := range x.keys {
			parts = append(parts, strconv.Quote(k)+": "+quoteNested(x.items[k]))
		}
		return "{" + strings.Join(parts, ", ") + "}"
	case Object:
		return x.TypeName()
	case fmt.Stringer:
		return x.String()
	default:
		return fmt.Sprint(v)
	}
}

func quoteNested(v Value) string {
	switch x := v.(type) {
	case string:
		return strconv.Quote(x)
	case nil:
		return "null"
	default:
		return ToText(x)
	}
}

// Equal compares two values. Numbers compare by value across int and float;
// lists, maps and objects compare by identity.
func Equal(a, b Value) bool {
	switch x := a.(type) {
	case nil:
		return b == nil
	case bool:
		y, ok := b.(bool)
		return ok && x == y
	case string:
		y, ok := b.(string)
		return ok && x == y
	case int64:
		switch y := b.(type) {
		case int64:
			return x == y
		case float64:
			return float64(x) == y
		}
		return false
	case float64:
		switch y := b.(type) {
		case int64:
			return x == float64(y)
		case float64:
			return x == y
		}
		return false
	case *List:
		y, ok := b.(*List)
		return ok && x == y
	case *Map:
		y, ok := b.(*Map)
		return ok && x == y
	default:
		return a == b
	}
}

// FromGo converts common Go values returned by hosts and natives.
func FromGo(v any) Value {
	switch x := v.(type) {
	case int:
		return int64(x)
	case int32:
		return int64(x)
	case uint32:
		return int64(x)
	case float32:
		return float64(x)
	case []string:
		return StringList(x)
	case map[string]string:
		return StringMap(x)
	case []Value:
		return NewList(x...)
	default:
		return v
	}
}
