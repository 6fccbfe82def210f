package vm

import (
	"encoding/binary"
	"fmt"
	"strings"
)

// ---------------------------------------------------------------------------
// Opcode definitions
// ---------------------------------------------------------------------------

// Opcode represents a single bytecode instruction.
type Opcode byte

// Stack and constants
const (
	OpNOP   Opcode = 0x00 // no operation
	OpPOP   Opcode = 0x01 // discard top of stack
	OpConst Opcode = 0x02 // push constant (16-bit index)
	OpNull  Opcode = 0x03 // push null
	OpTrue  Opcode = 0x04 // push true
	OpFalse Opcode = 0x05 // push false
)

// Variables
const (
	OpLoadLocal   Opcode = 0x10 // push local slot (16-bit index)
	OpStoreLocal  Opcode = 0x11 // pop into local slot (16-bit index)
	OpLoadGlobal  Opcode = 0x12 // push unit field (16-bit index)
	OpStoreGlobal Opcode = 0x13 // pop into unit field (16-bit index)
)

// Operators
const (
	OpAdd Opcode = 0x20
	OpSub Opcode = 0x21
	OpMul Opcode = 0x22
	OpDiv Opcode = 0x23
	OpMod Opcode = 0x24
	OpNeg Opcode = 0x25
	OpNot Opcode = 0x26
	OpEq  Opcode = 0x27
	OpNe  Opcode = 0x28
	OpLt  Opcode = 0x29
	OpLe  Opcode = 0x2A
	OpGt  Opcode = 0x2B
	OpGe  Opcode = 0x2C
)

// Control flow. Jump operands are signed 16-bit offsets relative to the end
// of the instruction.
const (
	OpJump      Opcode = 0x30 // unconditional jump
	OpJumpFalse Opcode = 0x31 // pop, jump if false
	OpAndJump   Opcode = 0x32 // if top is false jump (keep), else pop
	OpOrJump    Opcode = 0x33 // if top is true jump (keep), else pop
	OpIterInit  Opcode = 0x34 // pop collection, store iterator in slot (16-bit)
	OpIterNext  Opcode = 0x35 // push next item from slot, or jump when done (16-bit slot, 16-bit offset)
)

// Calls
const (
	OpCall       Opcode = 0x40 // call unit function (16-bit index, 8-bit argc)
	OpCallNative Opcode = 0x41 // call native function (16-bit index, 8-bit argc)
	OpInvoke     Opcode = 0x42 // invoke method on receiver (16-bit name constant, 8-bit argc)
	OpGetMember  Opcode = 0x43 // read member of receiver (16-bit name constant)
	OpIndex      Opcode = 0x44 // pop index and receiver, push element
	OpSetIndex   Opcode = 0x45 // pop value, index and receiver, store element
	OpMakeList   Opcode = 0x46 // pop N items into a list (16-bit count)
)

// Returns
const (
	OpReturn     Opcode = 0x50 // return top of stack
	OpReturnNull Opcode = 0x51 // return null
)

// ---------------------------------------------------------------------------
// Opcode metadata
// ---------------------------------------------------------------------------

// OpcodeInfo holds metadata about an opcode.
type OpcodeInfo struct {
	Name         string // human-readable name
	OperandBytes int    // number of operand bytes
}

var opcodeTable = map[Opcode]OpcodeInfo{
	OpNOP:   {"NOP", 0},
	OpPOP:   {"POP", 0},
	OpConst: {"CONST", 2},
	OpNull:  {"NULL", 0},
	OpTrue:  {"TRUE", 0},
	OpFalse: {"FALSE", 0},

	OpLoadLocal:   {"LOAD_LOCAL", 2},
	OpStoreLocal:  {"STORE_LOCAL", 2},
	OpLoadGlobal:  {"LOAD_GLOBAL", 2},
	OpStoreGlobal: {"STORE_GLOBAL", 2},

	OpAdd: {"ADD", 0},
	OpSub: {"SUB", 0},
	OpMul: {"MUL", 0},
	OpDiv: {"DIV", 0},
	OpMod: {"MOD", 0},
	OpNeg: {"NEG", 0},
	OpNot: {"NOT", 0},
	OpEq:  {"EQ", 0},
	OpNe:  {"NE", 0},
	OpLt:  {"LT", 0},
	OpLe:  {"LE", 0},
	OpGt:  {"GT", 0},
	OpGe:  {"GE", 0},

	OpJump:      {"JUMP", 2},
	OpJumpFalse: {"JUMP_FALSE", 2},
	OpAndJump:   {"AND_JUMP", 2},
	OpOrJump:    {"OR_JUMP", 2},
	OpIterInit:  {"ITER_INIT", 2},
	OpIterNext:  {"ITER_NEXT", 4},

	OpCall:       {"CALL", 3},
	OpCallNative: {"CALL_NATIVE", 3},
	OpInvoke:     {"INVOKE", 3},
	OpGetMember:  {"GET_MEMBER", 2},
	OpIndex:      {"INDEX", 0},
	OpSetIndex:   {"SET_INDEX", 0},
	OpMakeList:   {"MAKE_LIST", 2},

	OpReturn:     {"RETURN", 0},
	OpReturnNull: {"RETURN_NULL", 0},
}

// Info returns the metadata for an opcode.
func (op Opcode) Info() OpcodeInfo {
	if info, ok := opcodeTable[op]; ok {
		return info
	}
	return OpcodeInfo{Name: fmt.Sprintf("UNKNOWN_%02X", byte(op))}
}

// String implements the Stringer interface.
func (op Opcode) String() string {
	return op.Info().Name
}

// ---------------------------------------------------------------------------
// BytecodeBuilder: Helper for constructing bytecode
// ---------------------------------------------------------------------------

// BytecodeBuilder helps construct bytecode sequences.
type BytecodeBuilder struct {
	bytes []byte
	lines []LineEntry
}

// NewBytecodeBuilder creates a new bytecode builder.
func NewBytecodeBuilder() *BytecodeBuilder {
	return &BytecodeBuilder{
		bytes: make([]byte, 0, 64),
	}
}

// Bytes returns the constructed bytecode.
func (b *BytecodeBuilder) Bytes() []byte {
	return b.bytes
}

// Lines returns the line table.
func (b *BytecodeBuilder) Lines() []LineEntry {
	return b.lines
}

// Len returns the current length.
func (b *BytecodeBuilder) Len() int {
	return len(b.bytes)
}

// MarkLine records that code emitted from here on belongs to line.
func (b *BytecodeBuilder) MarkLine(line int) {
	off := uint32(len(b.bytes))
	if n := len(b.lines); n > 0 {
		last := &b.lines[n-1]
		if last.Line == uint32(line) {
			return
		}
		if last.Offset == off {
			last.Line = uint32(line)
			return
		}
	}
	b.lines = append(b.lines, LineEntry{Offset: off, Line: uint32(line)})
}

// Emit appends an opcode with no operands.
func (b *BytecodeBuilder) Emit(op Opcode) {
	b.bytes = append(b.bytes, byte(op))
}

// EmitUint16 appends an opcode with a 16-bit operand (little-endian).
func (b *BytecodeBuilder) EmitUint16(op Opcode, operand uint16) {
	b.bytes = append(b.bytes, byte(op), byte(operand), byte(operand>>8))
}

// EmitCall appends a CALL, CALL_NATIVE or INVOKE instruction.
func (b *BytecodeBuilder) EmitCall(op Opcode, index uint16, argc uint8) {
	b.bytes = append(b.bytes, byte(op), byte(index), byte(index>>8), argc)
}

// ---------------------------------------------------------------------------
// Label management for jumps
// ---------------------------------------------------------------------------

// Label represents a jump target.
type Label struct {
	resolved bool
	position int
	refs     []int // operand positions waiting for this label
}

// NewLabel creates an unresolved label.
func (b *BytecodeBuilder) NewLabel() *Label {
	return &Label{refs: make([]int, 0, 2)}
}

// Mark resolves a label to the current position and patches forward jumps.
func (b *BytecodeBuilder) Mark(label *Label) {
	if label.resolved {
		panic("label already resolved")
	}
	label.resolved = true
	label.position = len(b.bytes)
	for _, ref := range label.refs {
		b.patch(ref, label.position)
	}
	label.refs = nil
}

func (b *BytecodeBuilder) patch(ref, target int) {
	offset := int16(target - (ref + 2))
	b.bytes[ref] = byte(uint16(offset))
	b.bytes[ref+1] = byte(uint16(offset) >> 8)
}

// EmitJump emits a jump instruction targeting label.
func (b *BytecodeBuilder) EmitJump(op Opcode, label *Label) {
	b.bytes = append(b.bytes, byte(op))
	b.emitOffset(label)
}

// EmitIterNext emits ITER_NEXT for slot, exiting to label when exhausted.
func (b *BytecodeBuilder) EmitIterNext(slot uint16, label *Label) {
	b.bytes = append(b.bytes, byte(OpIterNext), byte(slot), byte(slot>>8))
	b.emitOffset(label)
}

func (b *BytecodeBuilder) emitOffset(label *Label) {
	ref := len(b.bytes)
	b.bytes = append(b.bytes, 0, 0)
	if label.resolved {
		b.patch(ref, label.position)
		return
	}
	label.refs = append(label.refs, ref)
}

// ---------------------------------------------------------------------------
// Operand decoding
// ---------------------------------------------------------------------------

func readUint16(code []byte, pos int) uint16 {
	return binary.LittleEndian.Uint16(code[pos:])
}

func readOffset(code []byte, pos int) int {
	return int(int16(binary.LittleEndian.Uint16(code[pos:])))
}

// Disassemble renders a function's bytecode, one instruction per line.
func Disassemble(fn *Function) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s (params=%d locals=%d)\n", fn.Name, fn.NumParams, fn.NumLocals)
	code := fn.Code
	for ip := 0; ip < len(code); {
		op := Opcode(code[ip])
		info := op.Info()
		fmt.Fprintf(&sb, "  %04d %-12s", ip, info.Name)
		operands := code[ip+1 : min(len(code), ip+1+info.OperandBytes)]
		switch op {
		case OpConst:
			idx := readUint16(operands, 0)
			if int(idx) < len(fn.Constants) {
				fmt.Fprintf(&sb, " %d ; %s", idx, fn.Constants[idx].String())
			}
		case OpJump, OpJumpFalse, OpAndJump, OpOrJump:
			fmt.Fprintf(&sb, " -> %04d", ip+3+readOffset(operands, 0))
		case OpIterNext:
			fmt.Fprintf(&sb, " %d -> %04d", readUint16(operands, 0), ip+5+readOffset(operands, 2))
		case OpCall, OpCallNative, OpInvoke:
			fmt.Fprintf(&sb, " %d argc=%d", readUint16(operands, 0), operands[2])
		default:
			if info.OperandBytes == 2 {
				fmt.Fprintf(&sb, " %d", readUint16(operands, 0))
			}
		}
		sb.WriteByte('\n')
		ip += 1 + info.OperandBytes
	}
	return sb.String()
}
