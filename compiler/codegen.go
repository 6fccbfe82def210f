package compiler

import (
	"math"

	"github.com/chazu/botscript/vm"
)

// ---------------------------------------------------------------------------
// Codegen: Compile an analyzed AST to a vm.Program
// ---------------------------------------------------------------------------

// InitFunction is the name of the generated field initializer.
const InitFunction = "<init>"

// Compiler compiles analyzed AST nodes to bytecode.
type Compiler struct {
	// Current function context
	builder   *vm.BytecodeBuilder
	constants []vm.Constant
	constMap  map[vm.Constant]int
	loops     []loopLabels

	// Unit context
	natives   []string
	nativeMap map[string]int
	diags     diagList
}

type loopLabels struct {
	brk  *vm.Label
	cont *vm.Label
}

// NewCompiler creates a new compiler.
func NewCompiler() *Compiler {
	return &Compiler{nativeMap: make(map[string]int)}
}

// Diagnostics returns limit violations found while generating code.
func (c *Compiler) Diagnostics() []Diagnostic {
	return c.diags.items
}

// CompileUnit generates the program for an analyzed source file. Functions
// keep their declaration order; the field initializer, if any, comes last.
func (c *Compiler) CompileUnit(sf *SourceFile, unitID string, libraries []string) *vm.Program {
	unit := sf.Unit
	prog := &vm.Program{
		ID:        unitID,
		Unit:      unit.Name,
		Libraries: libraries,
		Init:      -1,
	}
	for _, f := range unit.Fields {
		prog.Globals = append(prog.Globals, f.Name)
	}

	for _, fn := range unit.Funcs {
		prog.Functions = append(prog.Functions, c.compileFunction(fn.Name, len(fn.Params), fn.NumLocals, func() {
			c.compileStatements(fn.Body.Stmts)
		}))
	}

	hasInit := false
	for _, f := range unit.Fields {
		hasInit = hasInit || f.Init != nil
	}
	if hasInit {
		prog.Init = len(prog.Functions)
		prog.Functions = append(prog.Functions, c.compileFunction(InitFunction, 0, sf.InitLocals, func() {
			for slot, f := range unit.Fields {
				if f.Init == nil {
					continue
				}
				c.builder.MarkLine(f.At.Line)
				c.compileExpr(f.Init)
				c.emitSlot(vm.OpStoreGlobal, slot, f.At)
			}
		}))
	}

	prog.Natives = c.natives
	return prog
}

func (c *Compiler) compileFunction(name string, numParams, numLocals int, body func()) vm.Function {
	c.builder = vm.NewBytecodeBuilder()
	c.constants = nil
	c.constMap = make(map[vm.Constant]int)
	c.loops = nil

	body()
	c.builder.Emit(vm.OpReturnNull)

	return vm.Function{
		Name:      name,
		NumParams: numParams,
		NumLocals: numLocals,
		Code:      c.builder.Bytes(),
		Constants: c.constants,
		Lines:     c.builder.Lines(),
	}
}

// ---------------------------------------------------------------------------
// Operands
// ---------------------------------------------------------------------------

func (c *Compiler) addConstant(k vm.Constant, pos Position) uint16 {
	if idx, ok := c.constMap[k]; ok {
		return uint16(idx)
	}
	idx := len(c.constants)
	if idx > math.MaxUint16 {
		c.diags.errorAt(pos, DiagLimitExceeded, "too many constants in one function")
		return 0
	}
	c.constants = append(c.constants, k)
	c.constMap[k] = idx
	return uint16(idx)
}

func (c *Compiler) nameConstant(name string, pos Position) uint16 {
	return c.addConstant(vm.Constant{Kind: vm.ConstString, Str: name}, pos)
}

func (c *Compiler) nativeIndex(qualified string, pos Position) uint16 {
	if idx, ok := c.nativeMap[qualified]; ok {
		return uint16(idx)
	}
	idx := len(c.natives)
	if idx > math.MaxUint16 {
		c.diags.errorAt(pos, DiagLimitExceeded, "too many native references")
		return 0
	}
	c.natives = append(c.natives, qualified)
	c.nativeMap[qualified] = idx
	return uint16(idx)
}

func (c *Compiler) emitSlot(op vm.Opcode, slot int, pos Position) {
	if slot > math.MaxUint16 {
		c.diags.errorAt(pos, DiagLimitExceeded, "too many variables")
		return
	}
	c.builder.EmitUint16(op, uint16(slot))
}

func (c *Compiler) argc(n int, pos Position) uint8 {
	if n > math.MaxUint8 {
		c.diags.errorAt(pos, DiagLimitExceeded, "too many arguments")
		return 0
	}
	return uint8(n)
}

func (c *Compiler) loadVar(ref VarRef, pos Position) {
	if ref.Kind == RefField {
		c.emitSlot(vm.OpLoadGlobal, ref.Slot, pos)
		return
	}
	c.emitSlot(vm.OpLoadLocal, ref.Slot, pos)
}

func (c *Compiler) storeVar(ref VarRef, pos Position) {
	if ref.Kind == RefField {
		c.emitSlot(vm.OpStoreGlobal, ref.Slot, pos)
		return
	}
	c.emitSlot(vm.OpStoreLocal, ref.Slot, pos)
}

// ---------------------------------------------------------------------------
// Statements
// ---------------------------------------------------------------------------

func (c *Compiler) compileStatements(stmts []Stmt) {
	for _, stmt := range stmts {
		c.compileStmt(stmt)
	}
}

func (c *Compiler) compileStmt(stmt Stmt) {
	if stmt == nil {
		return
	}
	if _, isBlock := stmt.(*Block); !isBlock {
		c.builder.MarkLine(stmt.Pos().Line)
	}

	switch n := stmt.(type) {
	case *VarDecl:
		if n.Init != nil {
			c.compileExpr(n.Init)
		} else {
			c.builder.Emit(vm.OpNull)
		}
		c.emitSlot(vm.OpStoreLocal, n.Slot, n.At)

	case *Assign:
		c.compileAssign(n.Target, n.Op, n.Temps, n.At, func() { c.compileExpr(n.Value) })

	case *IncDec:
		op := TokenPlusAssign
		if n.Op == TokenDecrement {
			op = TokenMinusAssign
		}
		one := vm.Constant{Kind: vm.ConstInt, Int: 1}
		c.compileAssign(n.Target, op, n.Temps, n.At, func() {
			c.builder.EmitUint16(vm.OpConst, c.addConstant(one, n.At))
		})

	case *ExprStmt:
		c.compileExpr(n.X)
		c.builder.Emit(vm.OpPOP)

	case *Block:
		c.compileStatements(n.Stmts)

	case *If:
		elseLabel := c.builder.NewLabel()
		c.compileExpr(n.Cond)
		c.builder.EmitJump(vm.OpJumpFalse, elseLabel)
		c.compileStmt(n.Then)
		if n.Else == nil {
			c.builder.Mark(elseLabel)
			return
		}
		end := c.builder.NewLabel()
		c.builder.EmitJump(vm.OpJump, end)
		c.builder.Mark(elseLabel)
		c.compileStmt(n.Else)
		c.builder.Mark(end)

	case *While:
		top := c.builder.NewLabel()
		end := c.builder.NewLabel()
		c.builder.Mark(top)
		c.compileExpr(n.Cond)
		c.builder.EmitJump(vm.OpJumpFalse, end)
		c.loop(end, top, n.Body)
		c.builder.EmitJump(vm.OpJump, top)
		c.builder.Mark(end)

	case *For:
		c.compileStmt(n.Init)
		top := c.builder.NewLabel()
		next := c.builder.NewLabel()
		end := c.builder.NewLabel()
		c.builder.Mark(top)
		if n.Cond != nil {
			c.builder.MarkLine(n.At.Line)
			c.compileExpr(n.Cond)
			c.builder.EmitJump(vm.OpJumpFalse, end)
		}
		c.loop(end, next, n.Body)
		c.builder.Mark(next)
		c.compileStmt(n.Post)
		c.builder.EmitJump(vm.OpJump, top)
		c.builder.Mark(end)

	case *Foreach:
		top := c.builder.NewLabel()
		end := c.builder.NewLabel()
		c.compileExpr(n.Collection)
		c.emitSlot(vm.OpIterInit, n.IterSlot, n.At)
		c.builder.Mark(top)
		c.builder.MarkLine(n.At.Line)
		c.builder.EmitIterNext(uint16(n.IterSlot), end)
		c.emitSlot(vm.OpStoreLocal, n.VarSlot, n.At)
		c.loop(end, top, n.Body)
		c.builder.EmitJump(vm.OpJump, top)
		c.builder.Mark(end)

	case *Break:
		c.builder.EmitJump(vm.OpJump, c.loops[len(c.loops)-1].brk)

	case *Continue:
		c.builder.EmitJump(vm.OpJump, c.loops[len(c.loops)-1].cont)

	case *Return:
		if n.Value == nil {
			c.builder.Emit(vm.OpReturnNull)
			return
		}
		c.compileExpr(n.Value)
		c.builder.Emit(vm.OpReturn)
	}
}

func (c *Compiler) loop(brk, cont *vm.Label, body Stmt) {
	c.loops = append(c.loops, loopLabels{brk: brk, cont: cont})
	c.compileStmt(body)
	c.loops = c.loops[:len(c.loops)-1]
}

var compoundOps = map[TokenType]vm.Opcode{
	TokenPlusAssign:  vm.OpAdd,
	TokenMinusAssign: vm.OpSub,
	TokenStarAssign:  vm.OpMul,
	TokenSlashAssign: vm.OpDiv,
}

// compileAssign stores value() into target, combining it with the current
// value first for compound operators.
func (c *Compiler) compileAssign(target Expr, op TokenType, temps [2]int, pos Position, value func()) {
	switch t := target.(type) {
	case *Identifier:
		if op != TokenAssign {
			c.loadVar(t.Ref, pos)
		}
		value()
		if op != TokenAssign {
			c.builder.Emit(compoundOps[op])
		}
		c.storeVar(t.Ref, pos)

	case *Index:
		if op == TokenAssign {
			c.compileExpr(t.Receiver)
			c.compileExpr(t.Index)
			value()
			c.builder.Emit(vm.OpSetIndex)
			return
		}
		c.compileExpr(t.Receiver)
		c.emitSlot(vm.OpStoreLocal, temps[0], pos)
		c.compileExpr(t.Index)
		c.emitSlot(vm.OpStoreLocal, temps[1], pos)
		c.emitSlot(vm.OpLoadLocal, temps[0], pos)
		c.emitSlot(vm.OpLoadLocal, temps[1], pos)
		c.emitSlot(vm.OpLoadLocal, temps[0], pos)
		c.emitSlot(vm.OpLoadLocal, temps[1], pos)
		c.builder.Emit(vm.OpIndex)
		value()
		c.builder.Emit(compoundOps[op])
		c.builder.Emit(vm.OpSetIndex)
	}
}

// ---------------------------------------------------------------------------
// Expressions
// ---------------------------------------------------------------------------

var binaryOps = map[TokenType]vm.Opcode{
	TokenPlus:      vm.OpAdd,
	TokenMinus:     vm.OpSub,
	TokenStar:      vm.OpMul,
	TokenSlash:     vm.OpDiv,
	TokenPercent:   vm.OpMod,
	TokenEq:        vm.OpEq,
	TokenNotEq:     vm.OpNe,
	TokenLess:      vm.OpLt,
	TokenLessEq:    vm.OpLe,
	TokenGreater:   vm.OpGt,
	TokenGreaterEq: vm.OpGe,
}

func (c *Compiler) compileExprs(exprs []Expr) {
	for _, e := range exprs {
		c.compileExpr(e)
	}
}

func (c *Compiler) compileExpr(expr Expr) {
	switch n := expr.(type) {
	case *IntLiteral:
		c.builder.EmitUint16(vm.OpConst, c.addConstant(vm.Constant{Kind: vm.ConstInt, Int: n.Value}, n.At))
	case *FloatLiteral:
		c.builder.EmitUint16(vm.OpConst, c.addConstant(vm.Constant{Kind: vm.ConstFloat, Float: n.Value}, n.At))
	case *StringLiteral:
		c.builder.EmitUint16(vm.OpConst, c.addConstant(vm.Constant{Kind: vm.ConstString, Str: n.Value}, n.At))
	case *BoolLiteral:
		if n.Value {
			c.builder.Emit(vm.OpTrue)
		} else {
			c.builder.Emit(vm.OpFalse)
		}
	case *NullLiteral:
		c.builder.Emit(vm.OpNull)

	case *Identifier:
		c.loadVar(n.Ref, n.At)

	case *Unary:
		c.compileExpr(n.Operand)
		if n.Op == TokenBang {
			c.builder.Emit(vm.OpNot)
		} else {
			c.builder.Emit(vm.OpNeg)
		}

	case *Binary:
		if n.Op == TokenAnd || n.Op == TokenOr {
			end := c.builder.NewLabel()
			c.compileExpr(n.Left)
			if n.Op == TokenAnd {
				c.builder.EmitJump(vm.OpAndJump, end)
			} else {
				c.builder.EmitJump(vm.OpOrJump, end)
			}
			c.compileExpr(n.Right)
			c.builder.Mark(end)
			return
		}
		c.compileExpr(n.Left)
		c.compileExpr(n.Right)
		c.builder.Emit(binaryOps[n.Op])

	case *ListLiteral:
		c.compileExprs(n.Elements)
		c.emitSlot(vm.OpMakeList, len(n.Elements), n.At)

	case *NewExpr:
		if collectionKind(n.Type) == "map" {
			c.builder.EmitCall(vm.OpCallNative, c.nativeIndex("collections.Map", n.At), 0)
			return
		}
		c.builder.EmitUint16(vm.OpMakeList, 0)

	case *Index:
		c.compileExpr(n.Receiver)
		c.compileExpr(n.Index)
		c.builder.Emit(vm.OpIndex)

	case *Member:
		c.compileExpr(n.Receiver)
		c.builder.EmitUint16(vm.OpGetMember, c.nameConstant(n.Name, n.At))

	case *Call:
		c.compileCall(n.Target, nil, n.Name, n.Args, n.At)

	case *MemberCall:
		c.compileCall(n.Target, n.Receiver, n.Name, n.Args, n.At)
	}
}

func (c *Compiler) compileCall(target CallTarget, recv Expr, name string, args []Expr, pos Position) {
	argc := c.argc(len(args), pos)
	switch target.Kind {
	case CallUnit:
		c.compileExprs(args)
		c.builder.EmitCall(vm.OpCall, uint16(target.Index), argc)
	case CallNative:
		c.compileExprs(args)
		c.builder.EmitCall(vm.OpCallNative, c.nativeIndex(target.Qualified, pos), argc)
	case CallHost:
		c.emitSlot(vm.OpLoadGlobal, target.Field, pos)
		c.compileExprs(args)
		c.builder.EmitCall(vm.OpInvoke, c.nameConstant(name, pos), argc)
	case CallMethod:
		c.compileExpr(recv)
		c.compileExprs(args)
		c.builder.EmitCall(vm.OpInvoke, c.nameConstant(name, pos), argc)
	}
}

// ---------------------------------------------------------------------------
// Convenience
// ---------------------------------------------------------------------------

// Compile parses, analyzes and compiles source against the namespaces in
// visible. The program is nil when any error was reported.
func Compile(source, unitID string, libraries []string, visible map[string]*vm.Namespace) (*vm.Program, []Diagnostic) {
	sf, diags := Parse(source)
	if HasErrors(diags) {
		return nil, diags
	}

	sa := NewSemanticAnalyzer(visible)
	sa.Analyze(sf)
	diags = append(diags, sa.Diagnostics()...)
	if HasErrors(diags) {
		return nil, diags
	}

	c := NewCompiler()
	prog := c.CompileUnit(sf, unitID, libraries)
	diags = append(diags, c.Diagnostics()...)
	if HasErrors(diags) {
		return nil, diags
	}
	return prog, diags
}
