package compiler

import (
	"strings"

	"github.com/chazu/botscript/vm"
)

// ---------------------------------------------------------------------------
// Semantic Analyzer: name resolution and pre-codegen checks
// ---------------------------------------------------------------------------

// SemanticAnalyzer resolves every name in a SourceFile, allocates local
// slots and reports semantic errors. Codegen relies on the annotations it
// leaves on the AST and must only run when no error was reported.
type SemanticAnalyzer struct {
	diags diagList

	visible   map[string]*vm.Namespace // every namespace the unit can name
	imported  []*vm.Namespace          // namespaces named by using directives
	unitName  string
	funcs     map[string]int
	funcDecls []*FuncDecl
	fields    map[string]int

	// per-function state
	scopes    []map[string]int
	numLocals int
	loopDepth int
}

// NewSemanticAnalyzer creates an analyzer for a unit that can see the
// given namespaces.
func NewSemanticAnalyzer(visible map[string]*vm.Namespace) *SemanticAnalyzer {
	return &SemanticAnalyzer{visible: visible}
}

// Diagnostics returns the accumulated diagnostics.
func (s *SemanticAnalyzer) Diagnostics() []Diagnostic {
	return s.diags.items
}

// Analyze checks and annotates sf.
func (s *SemanticAnalyzer) Analyze(sf *SourceFile) {
	for _, u := range sf.Usings {
		ns, ok := s.visible[u.Namespace]
		if !ok {
			s.diags.errorAt(u.At, DiagUnknownNamespace,
				"the type or namespace name '%s' could not be found (are you missing a library reference?)", u.Namespace)
			continue
		}
		s.imported = append(s.imported, ns)
	}

	unit := sf.Unit
	if unit == nil {
		return
	}
	s.unitName = unit.Name
	s.collectMembers(unit)

	s.beginFunction()
	for _, f := range unit.Fields {
		if f.Init != nil {
			s.analyzeExpr(f.Init)
		}
	}
	sf.InitLocals = s.numLocals

	for _, fn := range unit.Funcs {
		s.analyzeFunc(fn)
	}
}

func (s *SemanticAnalyzer) collectMembers(unit *UnitDecl) {
	s.funcs = make(map[string]int)
	s.fields = make(map[string]int)
	seen := make(map[string]bool)
	duplicate := func(pos Position, name string) bool {
		if seen[name] {
			s.diags.errorAt(pos, DiagDuplicateMember,
				"the unit '%s' already contains a definition for '%s'", unit.Name, name)
			return true
		}
		seen[name] = true
		return false
	}
	for i, f := range unit.Fields {
		if !duplicate(f.At, f.Name) {
			s.fields[f.Name] = i
		}
	}
	for _, fn := range unit.Funcs {
		if !duplicate(fn.At, fn.Name) {
			s.funcs[fn.Name] = len(s.funcDecls)
		}
		// keep the table aligned with unit.Funcs so indices match codegen
		s.funcDecls = append(s.funcDecls, fn)
	}
}

func (s *SemanticAnalyzer) beginFunction() {
	s.scopes = []map[string]int{{}}
	s.numLocals = 0
	s.loopDepth = 0
}

func (s *SemanticAnalyzer) analyzeFunc(fn *FuncDecl) {
	s.beginFunction()
	for _, p := range fn.Params {
		s.declare(fn.At, p.Name)
	}
	s.analyzeBlock(fn.Body)
	fn.NumLocals = s.numLocals
}

// ---------------------------------------------------------------------------
// Scopes
// ---------------------------------------------------------------------------

func (s *SemanticAnalyzer) pushScope() {
	s.scopes = append(s.scopes, map[string]int{})
}

func (s *SemanticAnalyzer) popScope() {
	s.scopes = s.scopes[:len(s.scopes)-1]
}

// declare allocates a slot for a new local. Shadowing a local of an
// enclosing scope in the same function is an error.
func (s *SemanticAnalyzer) declare(pos Position, name string) int {
	if _, ok := s.lookupLocal(name); ok {
		s.diags.errorAt(pos, DiagDuplicateLocal,
			"a local variable named '%s' is already defined in this scope", name)
	}
	slot := s.newTemp()
	s.scopes[len(s.scopes)-1][name] = slot
	return slot
}

func (s *SemanticAnalyzer) newTemp() int {
	slot := s.numLocals
	s.numLocals++
	return slot
}

func (s *SemanticAnalyzer) lookupLocal(name string) (int, bool) {
	for i := len(s.scopes) - 1; i >= 0; i-- {
		if slot, ok := s.scopes[i][name]; ok {
			return slot, true
		}
	}
	return 0, false
}

func (s *SemanticAnalyzer) lookupVar(name string) (VarRef, bool) {
	if slot, ok := s.lookupLocal(name); ok {
		return VarRef{Kind: RefLocal, Slot: slot}, true
	}
	if slot, ok := s.fields[name]; ok {
		return VarRef{Kind: RefField, Slot: slot}, true
	}
	return VarRef{}, false
}

func (s *SemanticAnalyzer) undefined(pos Position, name string) {
	s.diags.errorAt(pos, DiagUndefinedName, "the name '%s' does not exist in the current context", name)
}

// ---------------------------------------------------------------------------
// Statements
// ---------------------------------------------------------------------------

func (s *SemanticAnalyzer) analyzeBlock(b *Block) {
	s.pushScope()
	s.analyzeStatements(b.Stmts)
	s.popScope()
}

func (s *SemanticAnalyzer) analyzeStatements(stmts []Stmt) {
	warned := false
	for i, stmt := range stmts {
		if !warned && i > 0 && terminates(stmts[i-1]) {
			s.diags.warnAt(stmt.Pos(), DiagUnreachable, "unreachable code detected")
			warned = true
		}
		s.analyzeStmt(stmt)
	}
}

// analyzeEmbedded analyzes the body of if/while/for in its own scope.
func (s *SemanticAnalyzer) analyzeEmbedded(stmt Stmt) {
	if stmt == nil {
		return
	}
	s.pushScope()
	s.analyzeStmt(stmt)
	s.popScope()
}

func (s *SemanticAnalyzer) analyzeStmt(stmt Stmt) {
	switch n := stmt.(type) {
	case *VarDecl:
		if n.Init != nil {
			s.analyzeExpr(n.Init)
		}
		n.Slot = s.declare(n.At, n.Name)

	case *Assign:
		s.analyzeTarget(n.Target)
		s.analyzeExpr(n.Value)
		if n.Op != TokenAssign {
			s.allocElementTemps(n.Target, &n.Temps)
		}

	case *IncDec:
		s.analyzeTarget(n.Target)
		s.allocElementTemps(n.Target, &n.Temps)

	case *ExprStmt:
		switch n.X.(type) {
		case *Call, *MemberCall, *NewExpr:
		default:
			s.diags.errorAt(n.At, DiagInvalidStatement,
				"only assignment, call, increment, decrement and new object expressions can be used as a statement")
		}
		s.analyzeExpr(n.X)

	case *Block:
		s.analyzeBlock(n)

	case *If:
		s.analyzeExpr(n.Cond)
		s.analyzeEmbedded(n.Then)
		s.analyzeEmbedded(n.Else)

	case *While:
		s.analyzeExpr(n.Cond)
		s.loopDepth++
		s.analyzeEmbedded(n.Body)
		s.loopDepth--

	case *For:
		s.pushScope()
		if n.Init != nil {
			s.analyzeStmt(n.Init)
		}
		if n.Cond != nil {
			s.analyzeExpr(n.Cond)
		}
		s.loopDepth++
		s.analyzeEmbedded(n.Body)
		s.loopDepth--
		if n.Post != nil {
			s.analyzeStmt(n.Post)
		}
		s.popScope()

	case *Foreach:
		s.analyzeExpr(n.Collection)
		s.pushScope()
		n.IterSlot = s.newTemp()
		n.VarSlot = s.declare(n.At, n.Var)
		s.loopDepth++
		s.analyzeEmbedded(n.Body)
		s.loopDepth--
		s.popScope()

	case *Break, *Continue:
		if s.loopDepth == 0 {
			s.diags.errorAt(stmt.Pos(), DiagNoEnclosingLoop, "no enclosing loop out of which to break or continue")
		}

	case *Return:
		if n.Value != nil {
			s.analyzeExpr(n.Value)
		}
	}
}

func (s *SemanticAnalyzer) analyzeTarget(target Expr) {
	switch t := target.(type) {
	case *Identifier:
		ref, ok := s.lookupVar(t.Name)
		if !ok {
			s.undefined(t.At, t.Name)
			return
		}
		t.Ref = ref
	case *Index:
		s.analyzeExpr(t.Receiver)
		s.analyzeExpr(t.Index)
	case *Member:
		s.analyzeExpr(t.Receiver)
		s.diags.errorAt(t.At, DiagNotAssignable, "property '%s' cannot be assigned to", t.Name)
	default:
		s.diags.errorAt(target.Pos(), DiagNotAssignable,
			"the left-hand side of an assignment must be a variable or indexer")
	}
}

// allocElementTemps reserves slots holding the receiver and index of a
// compound element update (a[i] += v) so each is evaluated once.
func (s *SemanticAnalyzer) allocElementTemps(target Expr, temps *[2]int) {
	if _, ok := target.(*Index); ok {
		temps[0] = s.newTemp()
		temps[1] = s.newTemp()
	}
}

// terminates reports whether control cannot fall through stmt.
func terminates(stmt Stmt) bool {
	switch n := stmt.(type) {
	case *Return, *Break, *Continue:
		return true
	case *Block:
		return len(n.Stmts) > 0 && terminates(n.Stmts[len(n.Stmts)-1])
	case *If:
		return n.Else != nil && terminates(n.Then) && terminates(n.Else)
	}
	return false
}

// ---------------------------------------------------------------------------
// Expressions
// ---------------------------------------------------------------------------

func (s *SemanticAnalyzer) analyzeExprs(exprs []Expr) {
	for _, e := range exprs {
		s.analyzeExpr(e)
	}
}

func (s *SemanticAnalyzer) analyzeExpr(expr Expr) {
	switch n := expr.(type) {
	case *Identifier:
		ref, ok := s.lookupVar(n.Name)
		if !ok {
			s.undefined(n.At, n.Name)
			return
		}
		n.Ref = ref

	case *Unary:
		s.analyzeExpr(n.Operand)

	case *Binary:
		s.analyzeExpr(n.Left)
		s.analyzeExpr(n.Right)

	case *ListLiteral:
		s.analyzeExprs(n.Elements)

	case *Index:
		s.analyzeExpr(n.Receiver)
		s.analyzeExpr(n.Index)

	case *Member:
		if ns, ok := s.namespaceReceiver(n.Receiver); ok {
			s.diags.errorAt(n.At, DiagNoMember, "'%s' does not contain a definition for '%s'", ns.Name, n.Name)
			return
		}
		s.analyzeExpr(n.Receiver)

	case *NewExpr:
		s.analyzeExprs(n.Args)
		if collectionKind(n.Type) == "" {
			s.diags.errorAt(n.At, DiagUnknownType, "the type name '%s' could not be found", n.Type)
		} else if len(n.Args) != 0 {
			s.diags.errorAt(n.At, DiagArity, "'%s' does not take %d arguments", n.Type, len(n.Args))
		}

	case *Call:
		s.analyzeExprs(n.Args)
		s.resolveCall(n)

	case *MemberCall:
		s.analyzeExprs(n.Args)
		s.resolveMemberCall(n)
	}
}

// collectionKind maps a constructible type name to "list" or "map".
func collectionKind(typ string) string {
	base, _, _ := strings.Cut(typ, "<")
	if i := strings.LastIndexByte(base, '.'); i >= 0 {
		base = base[i+1:]
	}
	switch base {
	case "List", "ArrayList":
		return "list"
	case "Dictionary", "Hashtable":
		return "map"
	}
	return ""
}

func (s *SemanticAnalyzer) checkArity(pos Position, name string, argc int, ok bool) {
	if !ok {
		s.diags.errorAt(pos, DiagArity, "no overload for method '%s' takes %d arguments", name, argc)
	}
}

// resolveCall binds f(args): unit function, then a function of an imported
// namespace, then a method of an imported receiver namespace.
func (s *SemanticAnalyzer) resolveCall(n *Call) {
	argc := len(n.Args)
	if idx, ok := s.funcs[n.Name]; ok {
		n.Target = CallTarget{Kind: CallUnit, Index: idx}
		s.checkArity(n.At, n.Name, argc, len(s.funcDecls[idx].Params) == argc)
		return
	}
	for _, ns := range s.imported {
		if ns.Receiver != "" {
			continue
		}
		if fn, ok := ns.Functions[n.Name]; ok {
			n.Target = CallTarget{Kind: CallNative, Qualified: ns.Name + "." + n.Name}
			s.checkArity(n.At, n.Name, argc, fn.Accepts(argc))
			return
		}
	}
	for _, ns := range s.imported {
		if ns.Receiver == "" {
			continue
		}
		fn, ok := ns.Methods[n.Name]
		if !ok {
			continue
		}
		slot, ok := s.fields[ns.Receiver]
		if !ok {
			s.undefined(n.At, ns.Receiver)
			return
		}
		n.Target = CallTarget{Kind: CallHost, Field: slot}
		s.checkArity(n.At, n.Name, argc, fn.Accepts(argc))
		return
	}
	s.undefined(n.At, n.Name)
}

// namespaceReceiver reports whether recv is a bare identifier naming a
// visible namespace rather than a variable.
func (s *SemanticAnalyzer) namespaceReceiver(recv Expr) (*vm.Namespace, bool) {
	id, ok := recv.(*Identifier)
	if !ok {
		return nil, false
	}
	if _, isVar := s.lookupVar(id.Name); isVar {
		return nil, false
	}
	ns, ok := s.visible[id.Name]
	return ns, ok
}

func (s *SemanticAnalyzer) resolveMemberCall(n *MemberCall) {
	argc := len(n.Args)
	ns, ok := s.namespaceReceiver(n.Receiver)
	if !ok {
		s.analyzeExpr(n.Receiver)
		n.Target = CallTarget{Kind: CallMethod}
		return
	}

	fn, found := ns.Lookup(n.Name)
	if !found {
		s.diags.errorAt(n.At, DiagNoMember, "'%s' does not contain a definition for '%s'", ns.Name, n.Name)
		return
	}
	if ns.Receiver != "" {
		slot, ok := s.fields[ns.Receiver]
		if !ok {
			s.undefined(n.At, ns.Receiver)
			return
		}
		n.Target = CallTarget{Kind: CallHost, Field: slot}
	} else {
		n.Target = CallTarget{Kind: CallNative, Qualified: ns.Name + "." + n.Name}
	}
	s.checkArity(n.At, n.Name, argc, fn.Accepts(argc))
}
