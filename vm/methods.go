package vm

import (
	"math"
	"slices"
	"strings"
)

// ---------------------------------------------------------------------------
// Operators
// ---------------------------------------------------------------------------

func arith(op Opcode, a, b Value) Value {
	if op == OpAdd {
		_, as := a.(string)
		_, bs := b.(string)
		if as || bs {
			return ToText(a) + ToText(b)
		}
		if la, ok := a.(*List); ok {
			if lb, ok := b.(*List); ok {
				out := make([]Value, 0, len(la.Items)+len(lb.Items))
				return NewList(append(append(out, la.Items...), lb.Items...)...)
			}
		}
	}

	if x, ok := a.(int64); ok {
		if y, ok := b.(int64); ok {
			return intArith(op, x, y)
		}
	}
	x, okA := toFloat(a)
	y, okB := toFloat(b)
	if !okA || !okB {
		throw("operator %s not defined for %s and %s", opSymbol(op), TypeName(a), TypeName(b))
	}
	switch op {
	case OpAdd:
		return x + y
	case OpSub:
		return x - y
	case OpMul:
		return x * y
	case OpDiv:
		if y == 0 {
			throw("division by zero")
		}
		return x / y
	default:
		if y == 0 {
			throw("division by zero")
		}
		return math.Mod(x, y)
	}
}

func intArith(op Opcode, x, y int64) Value {
	switch op {
	case OpAdd:
		return x + y
	case OpSub:
		return x - y
	case OpMul:
		return x * y
	case OpDiv:
		if y == 0 {
			throw("division by zero")
		}
		return x / y
	default:
		if y == 0 {
			throw("division by zero")
		}
		return x % y
	}
}

func compare(op Opcode, a, b Value) bool {
	if sa, ok := a.(string); ok {
		sb, ok := b.(string)
		if !ok {
			throw("cannot compare string and %s", TypeName(b))
		}
		return cmpResult(op, strings.Compare(sa, sb))
	}
	c, ok := compareNumbers(a, b)
	if !ok {
		throw("operator %s not defined for %s and %s", opSymbol(op), TypeName(a), TypeName(b))
	}
	return cmpResult(op, c)
}

func cmpResult(op Opcode, c int) bool {
	switch op {
	case OpLt:
		return c < 0
	case OpLe:
		return c <= 0
	case OpGt:
		return c > 0
	default:
		return c >= 0
	}
}

func compareNumbers(a, b Value) (int, bool) {
	if x, ok := a.(int64); ok {
		if y, ok := b.(int64); ok {
			switch {
			case x < y:
				return -1, true
			case x > y:
				return 1, true
			}
			return 0, true
		}
	}
	x, okA := toFloat(a)
	y, okB := toFloat(b)
	if !okA || !okB {
		return 0, false
	}
	switch {
	case x < y:
		return -1, true
	case x > y:
		return 1, true
	}
	return 0, true
}

func toFloat(v Value) (float64, bool) {
	switch x := v.(type) {
	case int64:
		return float64(x), true
	case float64:
		return x, true
	}
	return 0, false
}

func opSymbol(op Opcode) string {
	switch op {
	case OpAdd:
		return "+"
	case OpSub:
		return "-"
	case OpMul:
		return "*"
	case OpDiv:
		return "/"
	case OpMod:
		return "%"
	case OpLt:
		return "<"
	case OpLe:
		return "<="
	case OpGt:
		return ">"
	case OpGe:
		return ">="
	}
	return op.String()
}

// ---------------------------------------------------------------------------
// Indexing
// ---------------------------------------------------------------------------

func index(recv, idx Value) Value {
	switch x := recv.(type) {
	case *List:
		return x.Items[listIndex(len(x.Items), idx)]
	case string:
		runes := []rune(x)
		return string(runes[listIndex(len(runes), idx)])
	case *Map:
		k, ok := idx.(string)
		if !ok {
			throw("map key must be string, got %s", TypeName(idx))
		}
		v, ok := x.Get(k)
		if !ok {
			throw("key %q not found", k)
		}
		return v
	case nil:
		throw("cannot index null")
	}
	throw("%s cannot be indexed", TypeName(recv))
	return nil
}

func setIndex(recv, idx, val Value) {
	switch x := recv.(type) {
	case *List:
		x.Items[listIndex(len(x.Items), idx)] = val
		return
	case *Map:
		k, ok := idx.(string)
		if !ok {
			throw("map key must be string, got %s", TypeName(idx))
		}
		x.Set(k, val)
		return
	case nil:
		throw("cannot index null")
	}
	throw("%s does not support element assignment", TypeName(recv))
}

func listIndex(n int, idx Value) int {
	i, ok := idx.(int64)
	if !ok {
		throw("index must be int, got %s", TypeName(idx))
	}
	if i < 0 || i >= int64(n) {
		throw("index %d out of range [0, %d)", i, n)
	}
	return int(i)
}

// ---------------------------------------------------------------------------
// Built-in members
// ---------------------------------------------------------------------------

func getMember(recv Value, name string) Value {
	switch x := recv.(type) {
	case string:
		if name == "Length" {
			return int64(len([]rune(x)))
		}
	case *List:
		if name == "Count" || name == "Length" {
			return int64(len(x.Items))
		}
	case *Map:
		switch name {
		case "Count":
			return int64(x.Len())
		case "Keys":
			return StringList(x.Keys())
		}
	case nil:
		throw("cannot read %s of null", name)
	}
	throw("%s has no member %s", TypeName(recv), name)
	return nil
}

func invoke(recv Value, name string, args []Value) Value {
	switch x := recv.(type) {
	case nil:
		throw("cannot call %s on null", name)
	case Object:
		v, err := x.Invoke(name, args)
		if err != nil {
			throwErr(err)
		}
		return FromGo(v)
	case string:
		return stringMethod(x, name, args)
	case *List:
		return listMethod(x, name, args)
	case *Map:
		return mapMethod(x, name, args)
	}
	if name == "ToString" && len(args) == 0 {
		return ToText(recv)
	}
	throw("%s has no method %s", TypeName(recv), name)
	return nil
}

func wantArgs(name string, args []Value, n int) {
	if len(args) != n {
		throw("%s expects %d argument(s), got %d", name, n, len(args))
	}
}

func stringArg(name string, args []Value, i int) string {
	s, ok := args[i].(string)
	if !ok {
		throw("%s: argument %d must be string, got %s", name, i+1, TypeName(args[i]))
	}
	return s
}

func stringMethod(s, name string, args []Value) Value {
	switch name {
	case "ToUpper":
		wantArgs(name, args, 0)
		return strings.ToUpper(s)
	case "ToLower":
		wantArgs(name, args, 0)
		return strings.ToLower(s)
	case "Trim":
		wantArgs(name, args, 0)
		return strings.TrimSpace(s)
	case "ToString":
		wantArgs(name, args, 0)
		return s
	case "Contains":
		wantArgs(name, args, 1)
		return strings.Contains(s, stringArg(name, args, 0))
	case "StartsWith":
		wantArgs(name, args, 1)
		return strings.HasPrefix(s, stringArg(name, args, 0))
	case "EndsWith":
		wantArgs(name, args, 1)
		return strings.HasSuffix(s, stringArg(name, args, 0))
	case "IndexOf":
		wantArgs(name, args, 1)
		i := strings.Index(s, stringArg(name, args, 0))
		if i < 0 {
			return int64(-1)
		}
		return int64(len([]rune(s[:i])))
	case "Replace":
		wantArgs(name, args, 2)
		return strings.ReplaceAll(s, stringArg(name, args, 0), stringArg(name, args, 1))
	case "Split":
		wantArgs(name, args, 1)
		return StringList(strings.Split(s, stringArg(name, args, 0)))
	case "Substring":
		runes := []rune(s)
		if len(args) < 1 || len(args) > 2 {
			throw("Substring expects 1 or 2 arguments, got %d", len(args))
		}
		start, ok := args[0].(int64)
		if !ok || start < 0 || start > int64(len(runes)) {
			throw("Substring: start index out of range")
		}
		end := int64(len(runes))
		if len(args) == 2 {
			n, ok := args[1].(int64)
			if !ok || n < 0 || start+n > end {
				throw("Substring: length out of range")
			}
			end = start + n
		}
		return string(runes[start:end])
	}
	throw("string has no method %s", name)
	return nil
}

func listMethod(l *List, name string, args []Value) Value {
	switch name {
	case "Add":
		wantArgs(name, args, 1)
		l.Items = append(l.Items, args[0])
		return nil
	case "Contains":
		wantArgs(name, args, 1)
		return slices.ContainsFunc(l.Items, func(v Value) bool { return Equal(v, args[0]) })
	case "IndexOf":
		wantArgs(name, args, 1)
		return int64(slices.IndexFunc(l.Items, func(v Value) bool { return Equal(v, args[0]) }))
	case "RemoveAt":
		wantArgs(name, args, 1)
		i := listIndex(len(l.Items), args[0])
		l.Items = slices.Delete(l.Items, i, i+1)
		return nil
	case "Clear":
		wantArgs(name, args, 0)
		l.Items = l.Items[:0]
		return nil
	case "Join":
		wantArgs(name, args, 1)
		return joinList(l, stringArg(name, args, 0))
	case "ToString":
		wantArgs(name, args, 0)
		return ToText(l)
	}
	throw("list has no method %s", name)
	return nil
}

func mapMethod(m *Map, name string, args []Value) Value {
	switch name {
	case "ContainsKey":
		wantArgs(name, args, 1)
		_, ok := m.Get(stringArg(name, args, 0))
		return ok
	case "Get":
		wantArgs(name, args, 1)
		v, _ := m.Get(stringArg(name, args, 0))
		return v
	case "Set":
		wantArgs(name, args, 2)
		m.Set(stringArg(name, args, 0), args[1])
		return nil
	case "Remove":
		wantArgs(name, args, 1)
		return m.Delete(stringArg(name, args, 0))
	case "ToString":
		wantArgs(name, args, 0)
		return ToText(m)
	}
	throw("map has no method %s", name)
	return nil
}

// ---------------------------------------------------------------------------
// Iteration
// ---------------------------------------------------------------------------

type iterator struct {
	items []Value
	pos   int
}

func newIterator(v Value) *iterator {
	switch x := v.(type) {
	case *List:
		return &iterator{items: slices.Clone(x.Items)}
	case *Map:
		keys := x.Keys()
		items := make([]Value, len(keys))
		for i, k := range keys {
			items[i] = k
		}
		return &iterator{items: items}
	case string:
		runes := []rune(x)
		items := make([]Value, len(runes))
		for i, r := range runes {
			items[i] = string(r)
		}
		return &iterator{items: items}
	case nil:
		throw("cannot iterate over null")
	}
	throw("%s is not iterable", TypeName(v))
	return nil
}

func (it *iterator) next() (Value, bool) {
	if it.pos >= len(it.items) {
		return nil, false
	}
	v := it.items[it.pos]
	it.pos++
	return v, true
}
