// Package server implements the botscript language server: it publishes
// compiler diagnostics for open script files and offers completion, hover
// and go-to-definition over the native namespaces and the script's own
// extension members.
package server

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"unicode"

	"github.com/tliron/commonlog"
	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"
	glspserver "github.com/tliron/glsp/server"

	"github.com/chazu/botscript/compiler"
	"github.com/chazu/botscript/script"
	"github.com/chazu/botscript/store"
	"github.com/chazu/botscript/vm"

	_ "github.com/tliron/commonlog/simple"
)

const lspName = "botscript-lsp"

// LspServer bridges LSP editor features to the botscript front end.
type LspServer struct {
	frontend *compiler.Frontend

	mu   sync.Mutex
	docs map[string]string // URI → full document content

	handler protocol.Handler
	server  *glspserver.Server
	version string
	log     commonlog.Logger
}

// NewLSP creates a language server checking scripts against reg.
func NewLSP(reg *vm.Registry) *LspServer {
	s := &LspServer{
		frontend: compiler.NewFrontend(reg),
		docs:     make(map[string]string),
		version:  "0.1.0",
		log:      commonlog.GetLogger("botscript.server"),
	}

	s.handler = protocol.Handler{
		Initialize:  s.initialize,
		Initialized: s.initialized,
		Shutdown:    s.shutdown,
		SetTrace:    s.setTrace,

		TextDocumentDidOpen:   s.textDocumentDidOpen,
		TextDocumentDidChange: s.textDocumentDidChange,
		TextDocumentDidClose:  s.textDocumentDidClose,

		TextDocumentCompletion: s.textDocumentCompletion,
		TextDocumentHover:      s.textDocumentHover,
		TextDocumentDefinition: s.textDocumentDefinition,
	}

	s.server = glspserver.NewServer(&s.handler, lspName, false)

	return s
}

// Run starts the LSP server on stdio. Blocks until the client disconnects.
func (s *LspServer) Run() error {
	return s.server.RunStdio()
}

// --- LSP lifecycle handlers ---

func (s *LspServer) initialize(ctx *glsp.Context, params *protocol.InitializeParams) (any, error) {
	s.log.Info("botscript LSP initializing")

	capabilities := s.handler.CreateServerCapabilities()

	syncKind := protocol.TextDocumentSyncKindFull
	capabilities.TextDocumentSync = &protocol.TextDocumentSyncOptions{
		OpenClose: boolPtr(true),
		Change:    &syncKind,
	}

	capabilities.CompletionProvider = &protocol.CompletionOptions{
		TriggerCharacters: []string{"."},
	}

	capabilities.HoverProvider = true
	capabilities.DefinitionProvider = true

	return protocol.InitializeResult{
		Capabilities: capabilities,
		ServerInfo: &protocol.InitializeResultServerInfo{
			Name:    lspName,
			Version: &s.version,
		},
	}, nil
}

func (s *LspServer) initialized(ctx *glsp.Context, params *protocol.InitializedParams) error {
	return nil
}

func (s *LspServer) shutdown(ctx *glsp.Context) error {
	return nil
}

func (s *LspServer) setTrace(ctx *glsp.Context, params *protocol.SetTraceParams) error {
	return nil
}

// --- Document synchronization ---

func (s *LspServer) textDocumentDidOpen(ctx *glsp.Context, params *protocol.DidOpenTextDocumentParams) error {
	uri := params.TextDocument.URI
	text := params.TextDocument.Text

	s.setDocument(uri, text)
	s.publishDiagnostics(ctx, uri, text)
	return nil
}

func (s *LspServer) textDocumentDidChange(ctx *glsp.Context, params *protocol.DidChangeTextDocumentParams) error {
	uri := params.TextDocument.URI

	// With Full sync, the last change event contains the full text
	if len(params.ContentChanges) > 0 {
		last := params.ContentChanges[len(params.ContentChanges)-1]
		if whole, ok := last.(protocol.TextDocumentContentChangeEventWhole); ok {
			s.setDocument(uri, whole.Text)
			s.publishDiagnostics(ctx, uri, whole.Text)
		}
	}
	return nil
}

func (s *LspServer) textDocumentDidClose(ctx *glsp.Context, params *protocol.DidCloseTextDocumentParams) error {
	uri := params.TextDocument.URI

	s.mu.Lock()
	delete(s.docs, string(uri))
	s.mu.Unlock()

	// Clear diagnostics for the closed document
	go ctx.Notify(protocol.ServerTextDocumentPublishDiagnostics, protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: []protocol.Diagnostic{},
	})
	return nil
}

func (s *LspServer) setDocument(uri protocol.DocumentUri, text string) {
	s.mu.Lock()
	s.docs[string(uri)] = text
	s.mu.Unlock()
}

func (s *LspServer) document(uri protocol.DocumentUri) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	text, ok := s.docs[string(uri)]
	return text, ok
}

// --- Language features ---

func (s *LspServer) textDocumentCompletion(ctx *glsp.Context, params *protocol.CompletionParams) (any, error) {
	text, ok := s.document(params.TextDocument.URI)
	if !ok {
		return nil, nil
	}
	prefix := extractPrefix(text, params.Position)
	if prefix == "" {
		return nil, nil
	}
	return s.complete(text, prefix), nil
}

func (s *LspServer) textDocumentHover(ctx *glsp.Context, params *protocol.HoverParams) (*protocol.Hover, error) {
	text, ok := s.document(params.TextDocument.URI)
	if !ok {
		return nil, nil
	}
	word := extractWord(text, params.Position)
	if word == "" {
		return nil, nil
	}
	return s.hover(text, word), nil
}

func (s *LspServer) textDocumentDefinition(ctx *glsp.Context, params *protocol.DefinitionParams) (any, error) {
	uri := params.TextDocument.URI
	text, ok := s.document(uri)
	if !ok {
		return nil, nil
	}
	word := extractWord(text, params.Position)
	if word == "" {
		return nil, nil
	}
	locations := s.definition(uri, text, word)
	if len(locations) == 0 {
		return nil, nil
	}
	return locations, nil
}

// ---------------------------------------------------------------------------
// Analysis
// ---------------------------------------------------------------------------

// analysis is one document run through the front end.
type analysis struct {
	unit        *script.Unit
	file        *compiler.SourceFile // nil when parsing failed
	diagnostics []compiler.Diagnostic
	headerErr   error
}

func (s *LspServer) analyze(text string) *analysis {
	lines := store.SplitLines([]byte(text))
	sections, err := script.Preprocess(lines)
	if err != nil {
		return &analysis{headerErr: err}
	}
	unit := script.Synthesize(sections)
	sf, diags := s.frontend.Check(unit.Source, unit.Libraries)
	return &analysis{unit: unit, file: sf, diagnostics: diags}
}

// visibleNamespaces returns the namespaces a document can reach.
func (s *LspServer) visibleNamespaces(a *analysis) map[string]*vm.Namespace {
	var libs []string
	if a.unit != nil {
		libs = a.unit.Libraries
	}
	visible, _ := s.frontend.Registry().Namespaces(libs)
	return visible
}

// Diagnose converts the front end's findings for a script document into LSP
// diagnostics positioned on script lines.
func (s *LspServer) Diagnose(text string) []protocol.Diagnostic {
	a := s.analyze(text)
	source := lspName

	if a.headerErr != nil {
		severity := protocol.DiagnosticSeverityError
		return []protocol.Diagnostic{{
			Range:    lineRange(0, 0),
			Severity: &severity,
			Source:   &source,
			Message:  a.headerErr.Error(),
		}}
	}

	diagnostics := []protocol.Diagnostic{}
	for _, d := range a.diagnostics {
		severity := protocol.DiagnosticSeverityError
		if d.Severity == compiler.SeverityWarning {
			severity = protocol.DiagnosticSeverityWarning
		}
		line := a.unit.ScriptLine(d.Pos.Line) - 1
		col := d.Pos.Column - 1
		if line < 0 {
			// Boilerplate or library diagnostics land on the header.
			line, col = 0, 0
		}
		if col < 0 {
			col = 0
		}
		diagnostics = append(diagnostics, protocol.Diagnostic{
			Range:    lineRange(line, col),
			Severity: &severity,
			Code:     &protocol.IntegerOrString{Value: d.ID},
			Source:   &source,
			Message:  d.Message,
		})
	}
	return diagnostics
}

func (s *LspServer) publishDiagnostics(ctx *glsp.Context, uri protocol.DocumentUri, text string) {
	go ctx.Notify(protocol.ServerTextDocumentPublishDiagnostics, protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: s.Diagnose(text),
	})
}

func (s *LspServer) complete(text, prefix string) []protocol.CompletionItem {
	var items []protocol.CompletionItem
	lowerPrefix := strings.ToLower(prefix)
	a := s.analyze(text)

	add := func(label, detail string, kind protocol.CompletionItemKind) {
		if !strings.HasPrefix(strings.ToLower(label), lowerPrefix) {
			return
		}
		labelCopy := label
		items = append(items, protocol.CompletionItem{
			Label:      label,
			Kind:       &kind,
			Detail:     &detail,
			InsertText: &labelCopy,
		})
	}

	// Namespace members
	visible := s.visibleNamespaces(a)
	nsNames := make([]string, 0, len(visible))
	for name := range visible {
		nsNames = append(nsNames, name)
	}
	sort.Strings(nsNames)
	for _, name := range nsNames {
		ns := visible[name]
		add(name, "namespace", protocol.CompletionItemKindModule)
		for _, fn := range ns.Names() {
			f, _ := ns.Lookup(fn)
			add(fn, name+"."+signature(f), protocol.CompletionItemKindFunction)
		}
	}

	// Extension members
	if a.file != nil && a.file.Unit != nil {
		for _, fn := range a.file.Unit.Funcs {
			if fn.Name != script.EntryPoint {
				add(fn.Name, "function", protocol.CompletionItemKindFunction)
			}
		}
		for _, f := range a.file.Unit.Fields {
			add(f.Name, "field", protocol.CompletionItemKindField)
		}
	}

	for _, kw := range compiler.Keywords() {
		add(kw, "keyword", protocol.CompletionItemKindKeyword)
	}

	// Limit results
	const maxItems = 100
	if len(items) > maxItems {
		items = items[:maxItems]
	}

	return items
}

func (s *LspServer) hover(text, word string) *protocol.Hover {
	a := s.analyze(text)
	visible := s.visibleNamespaces(a)

	var b strings.Builder
	if ns, ok := visible[word]; ok {
		fmt.Fprintf(&b, "**namespace %s**\n\n", ns.Name)
		if ns.Receiver != "" {
			fmt.Fprintf(&b, "Calls are sent to `%s`.\n\n", ns.Receiver)
		}
		fmt.Fprintf(&b, "%d functions", len(ns.Names()))
	} else {
		var owners []string
		for name, ns := range visible {
			if fn, ok := ns.Lookup(word); ok {
				owners = append(owners, fmt.Sprintf("`%s.%s`", name, signature(fn)))
			}
		}
		if a.file != nil && a.file.Unit != nil {
			for _, fn := range a.file.Unit.Funcs {
				if fn.Name == word {
					owners = append(owners, "`"+funcSignature(fn)+"`")
				}
			}
		}
		if len(owners) == 0 {
			return nil
		}
		sort.Strings(owners)
		fmt.Fprintf(&b, "**%s**\n\n", word)
		for _, o := range owners {
			fmt.Fprintf(&b, "- %s\n", o)
		}
	}

	return &protocol.Hover{
		Contents: protocol.MarkupContent{
			Kind:  protocol.MarkupKindMarkdown,
			Value: b.String(),
		},
	}
}

// definition locates extension members declared in the same document.
func (s *LspServer) definition(uri protocol.DocumentUri, text, word string) []protocol.Location {
	a := s.analyze(text)
	if a.file == nil || a.file.Unit == nil {
		return nil
	}

	var locations []protocol.Location
	at := func(pos compiler.Position) {
		line := a.unit.ScriptLine(pos.Line) - 1
		if line < 0 {
			return
		}
		locations = append(locations, protocol.Location{
			URI:   uri,
			Range: lineRange(line, pos.Column-1),
		})
	}
	for _, fn := range a.file.Unit.Funcs {
		if fn.Name == word {
			at(fn.At)
		}
	}
	for _, f := range a.file.Unit.Fields {
		if f.Name == word {
			at(f.At)
		}
	}
	return locations
}

func signature(fn *vm.NativeFunc) string {
	switch {
	case fn.MaxArgs == vm.Variadic:
		return fmt.Sprintf("%s(%d+ args)", fn.Name, fn.MinArgs)
	case fn.MinArgs == fn.MaxArgs:
		return fmt.Sprintf("%s(%d args)", fn.Name, fn.MinArgs)
	}
	return fmt.Sprintf("%s(%d..%d args)", fn.Name, fn.MinArgs, fn.MaxArgs)
}

func funcSignature(fn *compiler.FuncDecl) string {
	params := make([]string, len(fn.Params))
	for i, p := range fn.Params {
		params[i] = strings.TrimSpace(p.Type + " " + p.Name)
	}
	return fmt.Sprintf("%s %s(%s)", fn.ReturnType, fn.Name, strings.Join(params, ", "))
}

func lineRange(line, col int) protocol.Range {
	if col < 0 {
		col = 0
	}
	pos := protocol.Position{Line: protocol.UInteger(line), Character: protocol.UInteger(col)}
	return protocol.Range{Start: pos, End: pos}
}

// --- Text extraction helpers ---

// extractPrefix returns the word fragment before the cursor for completion.
func extractPrefix(text string, pos protocol.Position) string {
	line, col, ok := lineAt(text, pos)
	if !ok {
		return ""
	}

	// Walk backwards from cursor to find the start of the identifier
	start := col
	for start > 0 && isIdentChar(rune(line[start-1])) {
		start--
	}
	if start == col {
		return ""
	}
	return line[start:col]
}

// extractWord returns the full identifier under the cursor.
func extractWord(text string, pos protocol.Position) string {
	line, col, ok := lineAt(text, pos)
	if !ok {
		return ""
	}

	start := col
	for start > 0 && isIdentChar(rune(line[start-1])) {
		start--
	}
	end := col
	for end < len(line) && isIdentChar(rune(line[end])) {
		end++
	}
	if start == end {
		return ""
	}
	return line[start:end]
}

func lineAt(text string, pos protocol.Position) (string, int, bool) {
	lines := strings.Split(text, "\n")
	if int(pos.Line) >= len(lines) {
		return "", 0, false
	}
	line := strings.TrimSuffix(lines[pos.Line], "\r")
	col := int(pos.Character)
	if col > len(line) {
		col = len(line)
	}
	return line, col, true
}

func isIdentChar(ch rune) bool {
	return unicode.IsLetter(ch) || unicode.IsDigit(ch) || ch == '_'
}

func boolPtr(b bool) *bool {
	return &b
}
