package vm

import (
	"fmt"
)

// MaxCallDepth bounds nested unit function calls within one Machine.
const MaxCallDepth = 512

// ---------------------------------------------------------------------------
// Machine: one instantiated program
// ---------------------------------------------------------------------------

// Machine executes a loaded Program. A Machine holds the unit's field values
// and is not safe for concurrent use; create one per execution.
type Machine struct {
	prog        *Program
	natives     []*NativeFunc
	globals     []Value
	depth       int
	initialized bool
}

// Load decodes an artifact and resolves its native references against reg.
// Any failure means the artifact cannot be instantiated.
func Load(a *Artifact, reg *Registry) (*Machine, error) {
	prog, err := DecodeProgram(a)
	if err != nil {
		return nil, err
	}
	if prog.Init >= len(prog.Functions) {
		return nil, fmt.Errorf("vm: initializer index %d out of range", prog.Init)
	}
	natives := make([]*NativeFunc, len(prog.Natives))
	for i, q := range prog.Natives {
		fn, err := reg.ResolveNative(q, prog.Libraries)
		if err != nil {
			return nil, fmt.Errorf("vm: resolve %s: %w", q, err)
		}
		natives[i] = fn
	}
	return New(prog, natives), nil
}

// New creates a Machine for prog; natives[i] implements prog.Natives[i].
func New(prog *Program, natives []*NativeFunc) *Machine {
	return &Machine{
		prog:    prog,
		natives: natives,
		globals: make([]Value, len(prog.Globals)),
	}
}

// Program returns the loaded program.
func (m *Machine) Program() *Program {
	return m.prog
}

// Global returns the current value of a unit field.
func (m *Machine) Global(name string) (Value, bool) {
	for i, g := range m.prog.Globals {
		if g == name {
			return m.globals[i], true
		}
	}
	return nil, false
}

// Invoke calls the named unit function synchronously. The field
// initializer runs before the first invocation. Faults raised while
// executing, including Go panics in natives or host objects, are returned
// as *RuntimeError.
func (m *Machine) Invoke(name string, args ...Value) (result Value, err error) {
	idx := m.prog.FunctionIndex(name)
	if idx < 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoEntryPoint, name)
	}

	defer func() {
		if r := recover(); r != nil {
			result = nil
			if re, ok := r.(*RuntimeError); ok {
				err = re
				return
			}
			err = &RuntimeError{Function: name, Err: panicError(r)}
		}
	}()

	if !m.initialized {
		m.initialized = true
		if m.prog.Init >= 0 {
			m.call(m.prog.Init, nil)
		}
	}
	return m.call(idx, args), nil
}

func panicError(r any) error {
	switch x := r.(type) {
	case scriptPanic:
		return x.err
	case error:
		return fmt.Errorf("panic: %w", x)
	default:
		return fmt.Errorf("panic: %v", x)
	}
}

// ---------------------------------------------------------------------------
// Dispatch loop
// ---------------------------------------------------------------------------

type frame struct {
	stack []Value
}

func (f *frame) push(v Value) {
	f.stack = append(f.stack, v)
}

func (f *frame) pop() Value {
	n := len(f.stack) - 1
	if n < 0 {
		throw("stack underflow")
	}
	v := f.stack[n]
	f.stack = f.stack[:n]
	return v
}

func (f *frame) top() Value {
	if len(f.stack) == 0 {
		throw("stack underflow")
	}
	return f.stack[len(f.stack)-1]
}

func (f *frame) popN(n int) []Value {
	if n > len(f.stack) {
		throw("stack underflow")
	}
	out := make([]Value, n)
	copy(out, f.stack[len(f.stack)-n:])
	f.stack = f.stack[:len(f.stack)-n]
	return out
}

func truthy(v Value) bool {
	b, ok := v.(bool)
	if !ok {
		throw("condition must be bool, got %s", TypeName(v))
	}
	return b
}

func (m *Machine) call(idx int, args []Value) Value {
	fn := &m.prog.Functions[idx]
	if len(args) != fn.NumParams {
		throw("%s expects %d argument(s), got %d", fn.Name, fn.NumParams, len(args))
	}
	if m.depth >= MaxCallDepth {
		throwErr(ErrCallDepth)
	}
	m.depth++
	defer func() { m.depth-- }()

	code := fn.Code
	locals := make([]Value, max(fn.NumLocals, fn.NumParams))
	copy(locals, args)
	f := &frame{stack: make([]Value, 0, 16)}

	ip, start := 0, 0
	defer func() {
		if r := recover(); r != nil {
			if re, ok := r.(*RuntimeError); ok {
				panic(re)
			}
			panic(&RuntimeError{Function: fn.Name, Line: fn.LineAt(start), Err: panicError(r)})
		}
	}()

	for ip < len(code) {
		start = ip
		op := Opcode(code[ip])
		ip++

		switch op {
		case OpNOP:
		case OpPOP:
			f.pop()
		case OpConst:
			f.push(fn.Constants[readUint16(code, ip)].Value())
			ip += 2
		case OpNull:
			f.push(nil)
		case OpTrue:
			f.push(true)
		case OpFalse:
			f.push(false)

		case OpLoadLocal:
			f.push(locals[readUint16(code, ip)])
			ip += 2
		case OpStoreLocal:
			locals[readUint16(code, ip)] = f.pop()
			ip += 2
		case OpLoadGlobal:
			f.push(m.globals[readUint16(code, ip)])
			ip += 2
		case OpStoreGlobal:
			m.globals[readUint16(code, ip)] = f.pop()
			ip += 2

		case OpAdd, OpSub, OpMul, OpDiv, OpMod:
			b := f.pop()
			a := f.pop()
			f.push(arith(op, a, b))
		case OpLt, OpLe, OpGt, OpGe:
			b := f.pop()
			a := f.pop()
			f.push(compare(op, a, b))
		case OpEq:
			b := f.pop()
			f.push(Equal(f.pop(), b))
		case OpNe:
			b := f.pop()
			f.push(!Equal(f.pop(), b))
		case OpNot:
			f.push(!truthy(f.pop()))
		case OpNeg:
			switch x := f.pop().(type) {
			case int64:
				f.push(-x)
			case float64:
				f.push(-x)
			default:
				throw("operator - not defined for %s", TypeName(x))
			}

		case OpJump:
			ip += 2 + readOffset(code, ip)
		case OpJumpFalse:
			off := readOffset(code, ip)
			ip += 2
			if !truthy(f.pop()) {
				ip += off
			}
		case OpAndJump:
			off := readOffset(code, ip)
			ip += 2
			if !truthy(f.top()) {
				ip += off
			} else {
				f.pop()
			}
		case OpOrJump:
			off := readOffset(code, ip)
			ip += 2
			if truthy(f.top()) {
				ip += off
			} else {
				f.pop()
			}
		case OpIterInit:
			locals[readUint16(code, ip)] = newIterator(f.pop())
			ip += 2
		case OpIterNext:
			slot := readUint16(code, ip)
			off := readOffset(code, ip+2)
			ip += 4
			it, ok := locals[slot].(*iterator)
			if !ok {
				throw("corrupt iterator slot %d", slot)
			}
			if v, more := it.next(); more {
				f.push(v)
			} else {
				ip += off
			}

		case OpCall:
			target := int(readUint16(code, ip))
			argc := int(code[ip+2])
			ip += 3
			f.push(m.call(target, f.popN(argc)))
		case OpCallNative:
			nf := m.natives[readUint16(code, ip)]
			argc := int(code[ip+2])
			ip += 3
			if !nf.Accepts(argc) {
				throw("%s: wrong number of arguments (%d)", nf.Name, argc)
			}
			v, err := nf.Fn(f.popN(argc))
			if err != nil {
				throwErr(err)
			}
			f.push(FromGo(v))
		case OpInvoke:
			name := fn.Constants[readUint16(code, ip)].Str
			argc := int(code[ip+2])
			ip += 3
			args := f.popN(argc)
			f.push(invoke(f.pop(), name, args))
		case OpGetMember:
			name := fn.Constants[readUint16(code, ip)].Str
			ip += 2
			f.push(getMember(f.pop(), name))
		case OpIndex:
			i := f.pop()
			f.push(index(f.pop(), i))
		case OpSetIndex:
			v := f.pop()
			i := f.pop()
			setIndex(f.pop(), i, v)
		case OpMakeList:
			f.push(NewList(f.popN(int(readUint16(code, ip)))...))
			ip += 2

		case OpReturn:
			return f.pop()
		case OpReturnNull:
			return nil

		default:
			throw("invalid opcode 0x%02X", byte(op))
		}
	}
	return nil
}
