package server

import (
	"strings"
	"testing"

	protocol "github.com/tliron/glsp/protocol_3_16"

	"github.com/chazu/botscript/runner"
	"github.com/chazu/botscript/vm"
)

func newTestLSP() *LspServer {
	return NewLSP(runner.NewRegistry(vm.RegexLibrary()))
}

const extensionsDoc = "//MCCScript 1.0\n" +
	"LogToConsole(Twice(2));\n" +
	"//MCCScript Extensions\n" +
	"int Twice(int n) {\n" +
	"    return n * 2;\n" +
	"}\n"

// ---------------------------------------------------------------------------
// LSP text extraction helpers
// ---------------------------------------------------------------------------

func TestExtractPrefix(t *testing.T) {
	tests := []struct {
		text string
		pos  protocol.Position
		want string
	}{
		{"SendText", protocol.Position{Line: 0, Character: 4}, "Send"},
		{"x = text.Up", protocol.Position{Line: 0, Character: 11}, "Up"},
		{"first line\nsecond\nLogTo", protocol.Position{Line: 2, Character: 5}, "LogTo"},
		{"hello", protocol.Position{Line: 0, Character: 0}, ""},
		{"", protocol.Position{Line: 0, Character: 0}, ""},
		{"single line", protocol.Position{Line: 5, Character: 0}, ""},
		{"crlf\r\nIsM\r\n", protocol.Position{Line: 1, Character: 10}, "IsM"},
	}
	for _, tt := range tests {
		if got := extractPrefix(tt.text, tt.pos); got != tt.want {
			t.Errorf("extractPrefix(%q, %v) = %q, want %q", tt.text, tt.pos, got, tt.want)
		}
	}
}

func TestExtractWord(t *testing.T) {
	tests := []struct {
		text string
		pos  protocol.Position
		want string
	}{
		{"hello world", protocol.Position{Line: 0, Character: 3}, "hello"},
		{"hello world", protocol.Position{Line: 0, Character: 5}, "hello"},
		{"hello world", protocol.Position{Line: 0, Character: 8}, "world"},
		{"first\nSendText(x);", protocol.Position{Line: 1, Character: 3}, "SendText"},
		{"my_var", protocol.Position{Line: 0, Character: 3}, "my_var"},
		{"", protocol.Position{Line: 0, Character: 0}, ""},
		{"single line", protocol.Position{Line: 5, Character: 0}, ""},
	}
	for _, tt := range tests {
		if got := extractWord(tt.text, tt.pos); got != tt.want {
			t.Errorf("extractWord(%q, %v) = %q, want %q", tt.text, tt.pos, got, tt.want)
		}
	}
}

func TestBoolPtr(t *testing.T) {
	if p := boolPtr(true); p == nil || !*p {
		t.Errorf("boolPtr(true) = %v", p)
	}
	if p := boolPtr(false); p == nil || *p {
		t.Errorf("boolPtr(false) = %v", p)
	}
}

// ---------------------------------------------------------------------------
// Diagnostics
// ---------------------------------------------------------------------------

func TestDiagnose_Clean(t *testing.T) {
	diags := newTestLSP().Diagnose(extensionsDoc)
	if diags == nil || len(diags) != 0 {
		t.Errorf("Diagnose = %v, want empty non-nil slice", diags)
	}
}

func TestDiagnose_InvalidHeader(t *testing.T) {
	diags := newTestLSP().Diagnose("LogToConsole(1);\n")
	if len(diags) != 1 {
		t.Fatalf("got %d diagnostics, want 1", len(diags))
	}
	d := diags[0]
	if d.Range.Start.Line != 0 || !strings.Contains(d.Message, "invalid format") {
		t.Errorf("diagnostic = %+v", d)
	}
	if d.Severity == nil || *d.Severity != protocol.DiagnosticSeverityError {
		t.Errorf("severity = %v, want error", d.Severity)
	}
}

func TestDiagnose_MapsScriptLines(t *testing.T) {
	diags := newTestLSP().Diagnose("//MCCScript 1.0\nint x = 1;\n  Undefined(x);\n")
	if len(diags) != 1 {
		t.Fatalf("got %d diagnostics, want 1: %+v", len(diags), diags)
	}
	d := diags[0]
	if d.Range.Start.Line != 2 || d.Range.Start.Character != 2 {
		t.Errorf("range start = %+v, want line 2 char 2", d.Range.Start)
	}
	if d.Code == nil || d.Code.Value != "BS0103" {
		t.Errorf("code = %+v, want BS0103", d.Code)
	}
	if d.Source == nil || *d.Source != lspName {
		t.Errorf("source = %v", d.Source)
	}
}

func TestDiagnose_UnknownLibraryOnHeader(t *testing.T) {
	diags := newTestLSP().Diagnose("//MCCScript 1.0\n//dll nothere.dll\nreturn 1;\n")
	if len(diags) != 1 {
		t.Fatalf("got %d diagnostics, want 1: %+v", len(diags), diags)
	}
	if diags[0].Range.Start.Line != 0 || diags[0].Code.Value != "BS0006" {
		t.Errorf("diagnostic = %+v", diags[0])
	}
}

func TestDiagnose_Warning(t *testing.T) {
	diags := newTestLSP().Diagnose("//MCCScript 1.0\nreturn 1;\nLogToConsole(2);\n")
	if len(diags) != 1 {
		t.Fatalf("got %d diagnostics, want 1: %+v", len(diags), diags)
	}
	d := diags[0]
	if *d.Severity != protocol.DiagnosticSeverityWarning || d.Range.Start.Line != 2 {
		t.Errorf("diagnostic = %+v", d)
	}
}

// ---------------------------------------------------------------------------
// Completion, hover, definition
// ---------------------------------------------------------------------------

func labels(items []protocol.CompletionItem) map[string]string {
	out := make(map[string]string, len(items))
	for _, it := range items {
		detail := ""
		if it.Detail != nil {
			detail = *it.Detail
		}
		out[it.Label] = detail
	}
	return out
}

func TestLSP_Complete(t *testing.T) {
	lsp := newTestLSP()

	got := labels(lsp.complete(extensionsDoc, "LogTo"))
	if got["LogToConsole"] != "host.LogToConsole(1 args)" {
		t.Errorf("LogToConsole completion = %q", got["LogToConsole"])
	}

	got = labels(lsp.complete(extensionsDoc, "twi"))
	if got["Twice"] != "function" {
		t.Errorf("completion for extension member: %v", got)
	}

	got = labels(lsp.complete(extensionsDoc, "fore"))
	if got["foreach"] != "keyword" {
		t.Errorf("keyword completion: %v", got)
	}

	if _, ok := labels(lsp.complete(extensionsDoc, "__"))["__run"]; ok {
		t.Error("entry point offered as completion")
	}
}

func TestLSP_Complete_Libraries(t *testing.T) {
	lsp := newTestLSP()

	without := labels(lsp.complete("//MCCScript 1.0\n", "IsM"))
	if _, ok := without["IsMatch"]; ok {
		t.Error("library function offered without its library")
	}

	with := labels(lsp.complete("//MCCScript 1.0\n//dll regex\n", "IsM"))
	if _, ok := with["IsMatch"]; !ok {
		t.Errorf("library completion missing: %v", with)
	}
}

func TestLSP_Hover(t *testing.T) {
	lsp := newTestLSP()

	h := lsp.hover(extensionsDoc, "SendText")
	if h == nil {
		t.Fatal("hover SendText returned nil")
	}
	if v := h.Contents.(protocol.MarkupContent).Value; !strings.Contains(v, "`host.SendText(1 args)`") {
		t.Errorf("hover SendText = %q", v)
	}

	h = lsp.hover(extensionsDoc, "Twice")
	if h == nil || !strings.Contains(h.Contents.(protocol.MarkupContent).Value, "`int Twice(int n)`") {
		t.Errorf("hover Twice = %+v", h)
	}

	h = lsp.hover(extensionsDoc, "text")
	if h == nil || !strings.Contains(h.Contents.(protocol.MarkupContent).Value, "**namespace text**") {
		t.Errorf("hover text = %+v", h)
	}

	if h := lsp.hover(extensionsDoc, "Nonexistent"); h != nil {
		t.Errorf("hover Nonexistent = %+v, want nil", h)
	}
}

func TestLSP_Definition(t *testing.T) {
	lsp := newTestLSP()
	uri := protocol.DocumentUri("file:///scripts/twice.cs")

	locs := lsp.definition(uri, extensionsDoc, "Twice")
	if len(locs) != 1 {
		t.Fatalf("got %d locations, want 1", len(locs))
	}
	if locs[0].URI != uri || locs[0].Range.Start.Line != 3 || locs[0].Range.Start.Character != 0 {
		t.Errorf("location = %+v", locs[0])
	}

	if locs := lsp.definition(uri, extensionsDoc, "SendText"); len(locs) != 0 {
		t.Errorf("definition of a native = %+v", locs)
	}
	if locs := lsp.definition(uri, "no header", "Twice"); locs != nil {
		t.Errorf("definition without header = %+v", locs)
	}
}

func TestLSP_DocumentStore(t *testing.T) {
	lsp := newTestLSP()
	uri := protocol.DocumentUri("file:///a.cs")

	if _, ok := lsp.document(uri); ok {
		t.Fatal("document present before open")
	}
	lsp.setDocument(uri, extensionsDoc)
	if text, ok := lsp.document(uri); !ok || text != extensionsDoc {
		t.Errorf("document = %q, %v", text, ok)
	}
}
