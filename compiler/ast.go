package compiler

// ---------------------------------------------------------------------------
// AST: Abstract Syntax Tree for botscript
// ---------------------------------------------------------------------------

// Position represents a source location.
type Position struct {
	Offset int // byte offset
	Line   int // 1-based line number
	Column int // 1-based column number
}

// Node is the interface implemented by all AST nodes.
type Node interface {
	Pos() Position
	node() // marker method
}

// ---------------------------------------------------------------------------
// Expression nodes
// ---------------------------------------------------------------------------

// Expr is the interface for expression nodes.
type Expr interface {
	Node
	expr() // marker method
}

// IntLiteral represents an integer literal.
type IntLiteral struct {
	At    Position
	Value int64
}

// FloatLiteral represents a floating-point literal.
type FloatLiteral struct {
	At    Position
	Value float64
}

// StringLiteral represents a string literal.
type StringLiteral struct {
	At    Position
	Value string
}

// BoolLiteral represents true or false.
type BoolLiteral struct {
	At    Position
	Value bool
}

// NullLiteral represents null.
type NullLiteral struct {
	At Position
}

// ListLiteral represents [a, b, c].
type ListLiteral struct {
	At       Position
	Elements []Expr
}

// NewExpr represents new T(...). Only collection types can be created.
type NewExpr struct {
	At   Position
	Type string
	Args []Expr
}

// Identifier is a variable reference. Ref is filled in by the analyzer.
type Identifier struct {
	At   Position
	Name string
	Ref  VarRef
}

// Unary represents a prefix operator application.
type Unary struct {
	At      Position
	Op      TokenType
	Operand Expr
}

// Binary represents an infix operator application.
type Binary struct {
	At    Position
	Op    TokenType
	Left  Expr
	Right Expr
}

// Call represents f(args). Target is filled in by the analyzer.
type Call struct {
	At     Position
	Name   string
	Args   []Expr
	Target CallTarget
}

// MemberCall represents recv.Name(args). When Receiver names a namespace
// the analyzer resolves it to a native call through Target.
type MemberCall struct {
	At       Position
	Receiver Expr
	Name     string
	Args     []Expr
	Target   CallTarget
}

// Member represents recv.Name.
type Member struct {
	At       Position
	Receiver Expr
	Name     string
}

// Index represents recv[index].
type Index struct {
	At       Position
	Receiver Expr
	Index    Expr
}

func (n *IntLiteral) Pos() Position    { return n.At }
func (n *FloatLiteral) Pos() Position  { return n.At }
func (n *StringLiteral) Pos() Position { return n.At }
func (n *BoolLiteral) Pos() Position   { return n.At }
func (n *NullLiteral) Pos() Position   { return n.At }
func (n *ListLiteral) Pos() Position   { return n.At }
func (n *NewExpr) Pos() Position       { return n.At }
func (n *Identifier) Pos() Position    { return n.At }
func (n *Unary) Pos() Position         { return n.At }
func (n *Binary) Pos() Position        { return n.At }
func (n *Call) Pos() Position          { return n.At }
func (n *MemberCall) Pos() Position    { return n.At }
func (n *Member) Pos() Position        { return n.At }
func (n *Index) Pos() Position         { return n.At }

func (n *IntLiteral) node()    {}
func (n *FloatLiteral) node()  {}
func (n *StringLiteral) node() {}
func (n *BoolLiteral) node()   {}
func (n *NullLiteral) node()   {}
func (n *ListLiteral) node()   {}
func (n *NewExpr) node()       {}
func (n *Identifier) node()    {}
func (n *Unary) node()         {}
func (n *Binary) node()        {}
func (n *Call) node()          {}
func (n *MemberCall) node()    {}
func (n *Member) node()        {}
func (n *Index) node()         {}

func (n *IntLiteral) expr()    {}
func (n *FloatLiteral) expr()  {}
func (n *StringLiteral) expr() {}
func (n *BoolLiteral) expr()   {}
func (n *NullLiteral) expr()   {}
func (n *ListLiteral) expr()   {}
func (n *NewExpr) expr()       {}
func (n *Identifier) expr()    {}
func (n *Unary) expr()         {}
func (n *Binary) expr()        {}
func (n *Call) expr()          {}
func (n *MemberCall) expr()    {}
func (n *Member) expr()        {}
func (n *Index) expr()         {}

// ---------------------------------------------------------------------------
// Resolution results
// ---------------------------------------------------------------------------

// RefKind classifies a resolved variable.
type RefKind int

const (
	RefUnresolved RefKind = iota
	RefLocal
	RefField
)

// VarRef is a resolved variable slot.
type VarRef struct {
	Kind RefKind
	Slot int
}

// CallKind classifies a resolved call.
type CallKind int

const (
	CallUnresolved CallKind = iota
	CallUnit                // unit function, Index into the function table
	CallNative              // native function, Qualified name
	CallHost                // method on the receiver field, Field slot
	CallMethod              // dynamic method on a runtime value
)

// CallTarget is where a call goes.
type CallTarget struct {
	Kind      CallKind
	Index     int
	Qualified string
	Field     int
}

// ---------------------------------------------------------------------------
// Statement nodes
// ---------------------------------------------------------------------------

// Stmt is the interface for statement nodes.
type Stmt interface {
	Node
	stmt() // marker method
}

// VarDecl declares a local: var x = e; or Type x = e;
type VarDecl struct {
	At   Position
	Type string // "var" or the declared type name
	Name string
	Init Expr // may be nil
	Slot int
}

// Assign represents target op= value. Target is an Identifier or Index.
type Assign struct {
	At     Position
	Op     TokenType
	Target Expr
	Value  Expr
	Temps  [2]int // receiver and index slots for compound element updates
}

// IncDec represents x++ or x--.
type IncDec struct {
	At     Position
	Op     TokenType
	Target Expr
	Temps  [2]int
}

// ExprStmt is an expression evaluated for its effect.
type ExprStmt struct {
	At Position
	X  Expr
}

// Block is a braced statement list.
type Block struct {
	At    Position
	Stmts []Stmt
}

// If represents if (cond) then [else otherwise].
type If struct {
	At   Position
	Cond Expr
	Then Stmt
	Else Stmt // may be nil
}

// While represents while (cond) body.
type While struct {
	At   Position
	Cond Expr
	Body Stmt
}

// For represents for (init; cond; post) body. Any clause may be nil.
type For struct {
	At   Position
	Init Stmt
	Cond Expr
	Post Stmt
	Body Stmt
}

// Foreach represents foreach (var x in coll) body.
type Foreach struct {
	At         Position
	Var        string
	Collection Expr
	Body       Stmt
	VarSlot    int
	IterSlot   int
}

// Break exits the innermost loop.
type Break struct {
	At Position
}

// Continue starts the next iteration of the innermost loop.
type Continue struct {
	At Position
}

// Return leaves the function, with an optional value.
type Return struct {
	At    Position
	Value Expr // may be nil
}

func (n *VarDecl) Pos() Position  { return n.At }
func (n *Assign) Pos() Position   { return n.At }
func (n *IncDec) Pos() Position   { return n.At }
func (n *ExprStmt) Pos() Position { return n.At }
func (n *Block) Pos() Position    { return n.At }
func (n *If) Pos() Position       { return n.At }
func (n *While) Pos() Position    { return n.At }
func (n *For) Pos() Position      { return n.At }
func (n *Foreach) Pos() Position  { return n.At }
func (n *Break) Pos() Position    { return n.At }
func (n *Continue) Pos() Position { return n.At }
func (n *Return) Pos() Position   { return n.At }

func (n *VarDecl) node()  {}
func (n *Assign) node()   {}
func (n *IncDec) node()   {}
func (n *ExprStmt) node() {}
func (n *Block) node()    {}
func (n *If) node()       {}
func (n *While) node()    {}
func (n *For) node()      {}
func (n *Foreach) node()  {}
func (n *Break) node()    {}
func (n *Continue) node() {}
func (n *Return) node()   {}

func (n *VarDecl) stmt()  {}
func (n *Assign) stmt()   {}
func (n *IncDec) stmt()   {}
func (n *ExprStmt) stmt() {}
func (n *Block) stmt()    {}
func (n *If) stmt()       {}
func (n *While) stmt()    {}
func (n *For) stmt()      {}
func (n *Foreach) stmt()  {}
func (n *Break) stmt()    {}
func (n *Continue) stmt() {}
func (n *Return) stmt()   {}

// ---------------------------------------------------------------------------
// Declarations
// ---------------------------------------------------------------------------

// Param is a function parameter.
type Param struct {
	Name string
	Type string
}

// FuncDecl is a unit function.
type FuncDecl struct {
	At         Position
	ReturnType string
	Name       string
	Params     []Param
	Body       *Block
	NumLocals  int // filled in by the analyzer
}

// FieldDecl is a unit field.
type FieldDecl struct {
	At   Position
	Type string
	Name string
	Init Expr // may be nil
}

// UsingDecl imports a namespace.
type UsingDecl struct {
	At        Position
	Namespace string
}

// UnitDecl is the single compilation unit.
type UnitDecl struct {
	At     Position
	Name   string
	Fields []*FieldDecl
	Funcs  []*FuncDecl
}

// SourceFile is a parsed compilation unit with its imports.
type SourceFile struct {
	Usings []*UsingDecl
	Unit   *UnitDecl

	// InitLocals is the number of temporaries the field initializer needs.
	InitLocals int
}
