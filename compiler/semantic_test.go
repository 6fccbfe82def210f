package compiler

import (
	"testing"

	"github.com/chazu/botscript/vm"
)

// hostNamespace mirrors the capability namespace a runner registers.
func hostNamespace() *vm.Namespace {
	return &vm.Namespace{
		Name:     "host",
		Receiver: "MCC",
		Methods: map[string]*vm.NativeFunc{
			"LogToConsole": {Name: "LogToConsole", MinArgs: 1, MaxArgs: 1},
			"SendText":     {Name: "SendText", MinArgs: 1, MaxArgs: 1},
		},
	}
}

func testRegistry() *vm.Registry {
	reg := vm.NewRegistry()
	reg.RegisterNamespace(hostNamespace())
	reg.RegisterLibrary(vm.RegexLibrary())
	return reg
}

func analyze(t *testing.T, source string) (*SourceFile, []Diagnostic) {
	t.Helper()
	sf := mustParse(t, source)
	visible, _ := testRegistry().Namespaces(nil)
	sa := NewSemanticAnalyzer(visible)
	sa.Analyze(sf)
	return sf, sa.Diagnostics()
}

func TestSemanticErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"undefined variable", `unit T { void f() { x = 1; } }`, DiagUndefinedName},
		{"undefined function", `unit T { void f() { g(); } }`, DiagUndefinedName},
		{"unknown namespace", `using nope; unit T { }`, DiagUnknownNamespace},
		{"unit function arity", `unit T { void f() { g(1); } void g() { } }`, DiagArity},
		{"native arity", `using text; unit T { void f() { Upper(); } }`, DiagArity},
		{"host arity", `using host; unit T { var MCC; void f() { SendText("x", "y"); } }`, DiagArity},
		{"break outside loop", `unit T { void f() { break; } }`, DiagNoEnclosingLoop},
		{"continue outside loop", `unit T { void f() { if (true) continue; } }`, DiagNoEnclosingLoop},
		{"duplicate member", `unit T { var a; void a() { } }`, DiagDuplicateMember},
		{"duplicate function", `unit T { void a() { } void a() { } }`, DiagDuplicateMember},
		{"shadowed local", `unit T { void f() { var a = 1; { var a = 2; } } }`, DiagDuplicateLocal},
		{"parameter redeclared", `unit T { void f(int a) { var a = 2; } }`, DiagDuplicateLocal},
		{"property assignment", `unit T { void f(List<int> xs) { xs.Count = 1; } }`, DiagNotAssignable},
		{"expression statement", `unit T { void f() { 1 + 2; } }`, DiagInvalidStatement},
		{"unknown type", `unit T { void f() { var x = new Widget(); } }`, DiagUnknownType},
		{"constructor arguments", `unit T { void f() { var x = new List<int>(4); } }`, DiagArity},
		{"missing namespace member", `using text; unit T { void f() { text.Nope(); } }`, DiagNoMember},
		{"namespace as value", `unit T { object f() { return text.Upper; } }`, DiagNoMember},
		{"host without handle field", `using host; unit T { void f() { LogToConsole("x"); } }`, DiagUndefinedName},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, diags := analyze(t, tt.src)
			errs := Errors(diags)
			if len(errs) != 1 {
				t.Fatalf("got %d errors, want 1: %v", len(errs), errs)
			}
			if errs[0].ID != tt.want {
				t.Errorf("got %s, want %s", errs[0], tt.want)
			}
		})
	}
}

func TestSemanticUnreachableWarning(t *testing.T) {
	_, diags := analyze(t, `unit T {
	object f() {
		return 1;
		g();
		g();
	}
	void g() { }
}`)
	if len(diags) != 1 {
		t.Fatalf("diags = %v", diags)
	}
	d := diags[0]
	if d.ID != DiagUnreachable || d.Severity != SeverityWarning || d.Pos.Line != 4 {
		t.Errorf("diagnostic = %v", d)
	}
	if HasErrors(diags) {
		t.Error("warning reported as error")
	}
}

func TestSemanticAnnotations(t *testing.T) {
	sf, diags := analyze(t, `using text;
using host;
unit T {
	var MCC;
	var count = 0;
	void f(int n) {
		var s = Upper("a");
		LogToConsole(s);
		g(n);
		foreach (var c in s) { count += 1; }
		text.Lower(s);
	}
	void g(int n) { }
}`)
	if len(diags) > 0 {
		t.Fatalf("diags = %v", diags)
	}

	f := sf.Unit.Funcs[0]
	if f.NumLocals != 4 {
		t.Errorf("NumLocals = %d, want 4", f.NumLocals)
	}
	stmts := f.Body.Stmts

	decl := stmts[0].(*VarDecl)
	if decl.Slot != 1 {
		t.Errorf("s slot = %d", decl.Slot)
	}
	if call := decl.Init.(*Call); call.Target.Kind != CallNative || call.Target.Qualified != "text.Upper" {
		t.Errorf("Upper target = %+v", call.Target)
	}

	host := stmts[1].(*ExprStmt).X.(*Call)
	if host.Target.Kind != CallHost || host.Target.Field != 0 {
		t.Errorf("LogToConsole target = %+v", host.Target)
	}
	if arg := host.Args[0].(*Identifier); arg.Ref != (VarRef{Kind: RefLocal, Slot: 1}) {
		t.Errorf("s ref = %+v", arg.Ref)
	}

	unit := stmts[2].(*ExprStmt).X.(*Call)
	if unit.Target.Kind != CallUnit || unit.Target.Index != 1 {
		t.Errorf("g target = %+v", unit.Target)
	}

	loop := stmts[3].(*Foreach)
	if loop.IterSlot != 2 || loop.VarSlot != 3 {
		t.Errorf("foreach slots = %d, %d", loop.IterSlot, loop.VarSlot)
	}
	inc := loop.Body.(*Block).Stmts[0].(*Assign)
	if ref := inc.Target.(*Identifier).Ref; ref != (VarRef{Kind: RefField, Slot: 1}) {
		t.Errorf("count ref = %+v", ref)
	}

	qualified := stmts[4].(*ExprStmt).X.(*MemberCall)
	if qualified.Target.Kind != CallNative || qualified.Target.Qualified != "text.Lower" {
		t.Errorf("text.Lower target = %+v", qualified.Target)
	}
}

func TestSemanticElementTemps(t *testing.T) {
	sf, diags := analyze(t, `unit T {
	void f(List<int> xs) {
		xs[0] += 2;
		xs[1]++;
	}
}`)
	if len(diags) > 0 {
		t.Fatalf("diags = %v", diags)
	}
	fn := sf.Unit.Funcs[0]
	if fn.NumLocals != 5 {
		t.Errorf("NumLocals = %d, want 5", fn.NumLocals)
	}
	if a := fn.Body.Stmts[0].(*Assign); a.Temps != [2]int{1, 2} {
		t.Errorf("assign temps = %v", a.Temps)
	}
	if inc := fn.Body.Stmts[1].(*IncDec); inc.Temps != [2]int{3, 4} {
		t.Errorf("incdec temps = %v", inc.Temps)
	}
}

func TestSemanticLocalShadowsNamespace(t *testing.T) {
	sf, diags := analyze(t, `using text;
unit T {
	void f() {
		var text = "abc";
		text.ToUpper();
	}
}`)
	if len(diags) > 0 {
		t.Fatalf("diags = %v", diags)
	}
	call := sf.Unit.Funcs[0].Body.Stmts[1].(*ExprStmt).X.(*MemberCall)
	if call.Target.Kind != CallMethod {
		t.Errorf("target = %+v", call.Target)
	}
}
