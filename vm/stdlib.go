package vm

import (
	"fmt"
	"math"
	"math/rand/v2"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// ---------------------------------------------------------------------------
// Standard namespaces
// ---------------------------------------------------------------------------

func standardNamespaces() []*Namespace {
	return []*Namespace{
		textNamespace(),
		mathNamespace(),
		collectionsNamespace(),
		timeNamespace(),
	}
}

// RegexLibrary is the optional "regex" library.
func RegexLibrary() *Library {
	return &Library{Name: "regex", Namespaces: []*Namespace{regexNamespace()}}
}

func native(name string, minArgs, maxArgs int, fn func(args []Value) (Value, error)) *NativeFunc {
	return &NativeFunc{Name: name, MinArgs: minArgs, MaxArgs: maxArgs, Fn: fn}
}

func textNamespace() *Namespace {
	return NewNamespace("text",
		native("Str", 1, 1, func(args []Value) (Value, error) {
			return ToText(args[0]), nil
		}),
		native("Format", 1, Variadic, func(args []Value) (Value, error) {
			pattern, err := argString(args, 0)
			if err != nil {
				return nil, err
			}
			return formatPositional(pattern, args[1:]), nil
		}),
		native("Join", 2, 2, func(args []Value) (Value, error) {
			sep, err := argString(args, 0)
			if err != nil {
				return nil, err
			}
			list, err := argList(args, 1)
			if err != nil {
				return nil, err
			}
			return joinList(list, sep), nil
		}),
		native("Upper", 1, 1, func(args []Value) (Value, error) {
			return strings.ToUpper(ToText(args[0])), nil
		}),
		native("Lower", 1, 1, func(args []Value) (Value, error) {
			return strings.ToLower(ToText(args[0])), nil
		}),
		native("Repeat", 2, 2, func(args []Value) (Value, error) {
			n, err := argInt(args, 1)
			if err != nil {
				return nil, err
			}
			if n < 0 {
				return nil, fmt.Errorf("Repeat: negative count %d", n)
			}
			return strings.Repeat(ToText(args[0]), int(n)), nil
		}),
		native("ParseInt", 1, 1, func(args []Value) (Value, error) {
			n, err := strconv.ParseInt(strings.TrimSpace(ToText(args[0])), 10, 64)
			if err != nil {
				return nil, nil
			}
			return n, nil
		}),
		native("ParseFloat", 1, 1, func(args []Value) (Value, error) {
			f, err := strconv.ParseFloat(strings.TrimSpace(ToText(args[0])), 64)
			if err != nil {
				return nil, nil
			}
			return f, nil
		}),
	)
}

func mathNamespace() *Namespace {
	unary := func(name string, op func(float64) float64) *NativeFunc {
		return native(name, 1, 1, func(args []Value) (Value, error) {
			f, err := argFloat(args, 0)
			if err != nil {
				return nil, err
			}
			return op(f), nil
		})
	}
	return NewNamespace("math",
		native("Abs", 1, 1, func(args []Value) (Value, error) {
			switch x := args[0].(type) {
			case int64:
				if x < 0 {
					return -x, nil
				}
				return x, nil
			case float64:
				return math.Abs(x), nil
			}
			return nil, fmt.Errorf("Abs: expected number, got %s", TypeName(args[0]))
		}),
		native("Min", 1, Variadic, func(args []Value) (Value, error) { return extremum("Min", args, -1) }),
		native("Max", 1, Variadic, func(args []Value) (Value, error) { return extremum("Max", args, 1) }),
		unary("Floor", math.Floor),
		unary("Ceil", math.Ceil),
		unary("Round", math.Round),
		unary("Sqrt", math.Sqrt),
		native("Pow", 2, 2, func(args []Value) (Value, error) {
			x, err := argFloat(args, 0)
			if err != nil {
				return nil, err
			}
			y, err := argFloat(args, 1)
			if err != nil {
				return nil, err
			}
			return math.Pow(x, y), nil
		}),
		native("Int", 1, 1, func(args []Value) (Value, error) {
			switch x := args[0].(type) {
			case int64:
				return x, nil
			case float64:
				return int64(x), nil
			case string:
				n, err := strconv.ParseInt(strings.TrimSpace(x), 10, 64)
				if err != nil {
					return nil, fmt.Errorf("Int: %q is not an integer", x)
				}
				return n, nil
			}
			return nil, fmt.Errorf("Int: cannot convert %s", TypeName(args[0]))
		}),
		native("Float", 1, 1, func(args []Value) (Value, error) {
			return argFloat(args, 0)
		}),
		native("Random", 1, 1, func(args []Value) (Value, error) {
			n, err := argInt(args, 0)
			if err != nil {
				return nil, err
			}
			if n <= 0 {
				return nil, fmt.Errorf("Random: bound must be positive, got %d", n)
			}
			return rand.Int64N(n), nil
		}),
	)
}

func collectionsNamespace() *Namespace {
	return NewNamespace("collections",
		native("List", 0, Variadic, func(args []Value) (Value, error) {
			items := make([]Value, len(args))
			copy(items, args)
			return NewList(items...), nil
		}),
		native("Map", 0, 0, func(args []Value) (Value, error) {
			return NewMap(), nil
		}),
		native("Len", 1, 1, func(args []Value) (Value, error) {
			switch x := args[0].(type) {
			case string:
				return int64(len([]rune(x))), nil
			case *List:
				return int64(len(x.Items)), nil
			case *Map:
				return int64(x.Len()), nil
			}
			return nil, fmt.Errorf("Len: %s has no length", TypeName(args[0]))
		}),
		native("Append", 1, Variadic, func(args []Value) (Value, error) {
			list, err := argList(args, 0)
			if err != nil {
				return nil, err
			}
			list.Items = append(list.Items, args[1:]...)
			return list, nil
		}),
		native("Keys", 1, 1, func(args []Value) (Value, error) {
			m, ok := args[0].(*Map)
			if !ok {
				return nil, fmt.Errorf("Keys: expected map, got %s", TypeName(args[0]))
			}
			return StringList(m.Keys()), nil
		}),
		native("Range", 1, 2, func(args []Value) (Value, error) {
			start, end := int64(0), int64(0)
			var err error
			if len(args) == 1 {
				end, err = argInt(args, 0)
			} else {
				if start, err = argInt(args, 0); err == nil {
					end, err = argInt(args, 1)
				}
			}
			if err != nil {
				return nil, err
			}
			out := &List{}
			for i := start; i < end; i++ {
				out.Items = append(out.Items, i)
			}
			return out, nil
		}),
	)
}

func timeNamespace() *Namespace {
	return NewNamespace("time",
		native("Sleep", 1, 1, func(args []Value) (Value, error) {
			ms, err := argInt(args, 0)
			if err != nil {
				return nil, err
			}
			time.Sleep(time.Duration(ms) * time.Millisecond)
			return nil, nil
		}),
		native("Now", 0, 0, func(args []Value) (Value, error) {
			return time.Now().UnixMilli(), nil
		}),
		native("Timestamp", 0, 0, func(args []Value) (Value, error) {
			return time.Now().Format("15:04:05"), nil
		}),
	)
}

func regexNamespace() *Namespace {
	compile := func(args []Value, i int) (*regexp.Regexp, error) {
		pattern, err := argString(args, i)
		if err != nil {
			return nil, err
		}
		return regexp.Compile(pattern)
	}
	return NewNamespace("regex",
		native("IsMatch", 2, 2, func(args []Value) (Value, error) {
			re, err := compile(args, 1)
			if err != nil {
				return nil, err
			}
			return re.MatchString(ToText(args[0])), nil
		}),
		native("Find", 2, 2, func(args []Value) (Value, error) {
			re, err := compile(args, 1)
			if err != nil {
				return nil, err
			}
			m := re.FindStringSubmatch(ToText(args[0]))
			if m == nil {
				return nil, nil
			}
			return StringList(m), nil
		}),
		native("Replace", 3, 3, func(args []Value) (Value, error) {
			re, err := compile(args, 1)
			if err != nil {
				return nil, err
			}
			return re.ReplaceAllString(ToText(args[0]), ToText(args[2])), nil
		}),
	)
}

// ---------------------------------------------------------------------------
// Argument helpers
// ---------------------------------------------------------------------------

func argString(args []Value, i int) (string, error) {
	s, ok := args[i].(string)
	if !ok {
		return "", fmt.Errorf("argument %d: expected string, got %s", i+1, TypeName(args[i]))
	}
	return s, nil
}

func argInt(args []Value, i int) (int64, error) {
	switch x := args[i].(type) {
	case int64:
		return x, nil
	case float64:
		if x == math.Trunc(x) {
			return int64(x), nil
		}
	}
	return 0, fmt.Errorf("argument %d: expected int, got %s", i+1, TypeName(args[i]))
}

func argFloat(args []Value, i int) (float64, error) {
	switch x := args[i].(type) {
	case int64:
		return float64(x), nil
	case float64:
		return x, nil
	}
	return 0, fmt.Errorf("argument %d: expected number, got %s", i+1, TypeName(args[i]))
}

func argList(args []Value, i int) (*List, error) {
	l, ok := args[i].(*List)
	if !ok {
		return nil, fmt.Errorf("argument %d: expected list, got %s", i+1, TypeName(args[i]))
	}
	return l, nil
}

func extremum(name string, args []Value, sign int) (Value, error) {
	best := args[0]
	for i := range args {
		if _, err := argFloat(args, i); err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		c, _ := compareNumbers(args[i], best)
		if c*sign > 0 {
			best = args[i]
		}
	}
	return best, nil
}

// formatPositional replaces {0}, {1}, ... with the matching argument.
func formatPositional(pattern string, args []Value) string {
	var sb strings.Builder
	for i := 0; i < len(pattern); i++ {
		if pattern[i] == '{' {
			end := strings.IndexByte(pattern[i:], '}')
			if end > 1 {
				if n, err := strconv.Atoi(pattern[i+1 : i+end]); err == nil && n >= 0 && n < len(args) {
					sb.WriteString(ToText(args[n]))
					i += end
					continue
				}
			}
		}
		sb.WriteByte(pattern[i])
	}
	return sb.String()
}

func joinList(l *List, sep string) string {
	parts := make([]string, len(l.Items))
	for i, item := range l.Items {
		parts[i] = ToText(item)
	}
	return strings.Join(parts, sep)
}
