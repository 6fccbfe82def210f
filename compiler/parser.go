package compiler

import (
	"strconv"
	"strings"
)

// ---------------------------------------------------------------------------
// Parser: Recursive descent parser for botscript
// ---------------------------------------------------------------------------

// Parser parses botscript source into an AST. Syntax errors are collected
// as diagnostics; after an error the parser skips to the next statement
// boundary and continues.
type Parser struct {
	tokens []Token
	pos    int
	cur    Token
	diags  diagList

	recovering bool // suppress cascading errors until the next sync point
}

// member modifiers accepted and ignored on unit members.
var modifiers = map[string]bool{
	"public":    true,
	"private":   true,
	"protected": true,
	"internal":  true,
	"static":    true,
	"readonly":  true,
	"const":     true,
	"override":  true,
	"virtual":   true,
}

// NewParser creates a new parser for the given input.
func NewParser(input string) *Parser {
	p := &Parser{tokens: Tokenize(input)}
	p.cur = p.tokens[0]
	return p
}

// Diagnostics returns the syntax errors found so far.
func (p *Parser) Diagnostics() []Diagnostic {
	return p.diags.items
}

func (p *Parser) nextToken() {
	if p.pos < len(p.tokens)-1 {
		p.pos++
	}
	p.cur = p.tokens[p.pos]
}

func (p *Parser) peek(n int) Token {
	if i := p.pos + n; i < len(p.tokens) {
		return p.tokens[i]
	}
	return p.tokens[len(p.tokens)-1]
}

func (p *Parser) curTokenIs(t TokenType) bool {
	return p.cur.Type == t
}

// accept consumes the current token if it has type t.
func (p *Parser) accept(t TokenType) bool {
	if p.cur.Type == t {
		p.nextToken()
		return true
	}
	return false
}

// expect consumes a token of type t or records a syntax error.
func (p *Parser) expect(t TokenType) bool {
	if p.accept(t) {
		return true
	}
	p.unexpected(t.String())
	return false
}

func (p *Parser) expectIdent() string {
	if p.cur.Type != TokenIdentifier {
		p.unexpected("identifier")
		return ""
	}
	name := p.cur.Literal
	p.nextToken()
	return name
}

func (p *Parser) unexpected(want string) {
	if p.cur.Type == TokenError {
		p.errorf(p.cur.Pos, "%s", p.cur.Literal)
		return
	}
	p.errorf(p.cur.Pos, "%s expected, found %s", quoteExpected(want), p.cur.describe())
}

func quoteExpected(want string) string {
	if want == "identifier" || want == "expression" || want == "type" {
		return want
	}
	return "'" + want + "'"
}

func (p *Parser) errorf(pos Position, format string, args ...any) {
	if p.recovering {
		return
	}
	p.recovering = true
	p.diags.errorAt(pos, DiagSyntax, format, args...)
}

// synchronize skips to just past the next ';' or up to the next '}'.
func (p *Parser) synchronize() {
	for !p.curTokenIs(TokenEOF) {
		switch p.cur.Type {
		case TokenSemicolon:
			p.nextToken()
			p.recovering = false
			return
		case TokenRBrace:
			p.recovering = false
			return
		}
		p.nextToken()
	}
	p.recovering = false
}

// resync resynchronizes after a failed member or statement that began at
// token start. A construct that already consumed its ';' needs no skipping.
func (p *Parser) resync(start int) {
	if !p.recovering {
		return
	}
	if p.pos > start && p.tokens[p.pos-1].Type == TokenSemicolon {
		p.recovering = false
		return
	}
	p.synchronize()
}

// ---------------------------------------------------------------------------
// Source file and declarations
// ---------------------------------------------------------------------------

// ParseSourceFile parses using directives followed by one unit.
func (p *Parser) ParseSourceFile() *SourceFile {
	sf := &SourceFile{}
	for p.curTokenIs(TokenUsing) {
		if u := p.parseUsing(); u != nil {
			sf.Usings = append(sf.Usings, u)
		}
	}

	if !p.curTokenIs(TokenUnit) {
		p.unexpected("unit")
		return sf
	}
	sf.Unit = p.parseUnit()

	if !p.curTokenIs(TokenEOF) {
		p.recovering = false
		p.errorf(p.cur.Pos, "unexpected %s after unit declaration", p.cur.describe())
	}
	return sf
}

func (p *Parser) parseUsing() *UsingDecl {
	u := &UsingDecl{At: p.cur.Pos}
	p.nextToken()
	parts := []string{p.expectIdent()}
	for p.accept(TokenDot) {
		parts = append(parts, p.expectIdent())
	}
	p.accept(TokenSemicolon)
	if p.recovering {
		p.synchronize()
		return nil
	}
	u.Namespace = strings.Join(parts, ".")
	return u
}

func (p *Parser) parseUnit() *UnitDecl {
	unit := &UnitDecl{At: p.cur.Pos}
	p.nextToken()
	unit.Name = p.expectIdent()
	if !p.expect(TokenLBrace) {
		p.synchronize()
	}
	for !p.curTokenIs(TokenRBrace) && !p.curTokenIs(TokenEOF) {
		start := p.pos
		p.parseMember(unit)
		p.resync(start)
		if p.pos == start {
			p.nextToken()
		}
	}
	p.expect(TokenRBrace)
	return unit
}

func (p *Parser) parseMember(unit *UnitDecl) {
	pos := p.cur.Pos
	for p.curTokenIs(TokenIdentifier) && modifiers[p.cur.Literal] {
		p.nextToken()
	}

	if p.accept(TokenVar) {
		name := p.expectIdent()
		field := &FieldDecl{At: pos, Type: "var", Name: name}
		if p.accept(TokenAssign) {
			field.Init = p.parseExpression()
		}
		p.expect(TokenSemicolon)
		unit.Fields = append(unit.Fields, field)
		return
	}

	typ := p.parseType()
	if p.recovering {
		return
	}
	name := p.expectIdent()
	if p.recovering {
		return
	}

	if p.curTokenIs(TokenLParen) {
		fn := &FuncDecl{At: pos, ReturnType: typ, Name: name}
		fn.Params = p.parseParams()
		if p.recovering {
			return
		}
		if !p.curTokenIs(TokenLBrace) {
			p.unexpected("{")
			return
		}
		fn.Body = p.parseBlock()
		unit.Funcs = append(unit.Funcs, fn)
		return
	}

	field := &FieldDecl{At: pos, Type: typ, Name: name}
	if p.accept(TokenAssign) {
		field.Init = p.parseExpression()
	}
	p.expect(TokenSemicolon)
	unit.Fields = append(unit.Fields, field)
}

func (p *Parser) parseParams() []Param {
	p.expect(TokenLParen)
	var params []Param
	if p.accept(TokenRParen) {
		return params
	}
	for {
		typ := p.parseType()
		name := p.expectIdent()
		if p.recovering {
			return params
		}
		params = append(params, Param{Name: name, Type: typ})
		if !p.accept(TokenComma) {
			break
		}
	}
	p.expect(TokenRParen)
	return params
}

// parseType parses a type annotation: Name(.Name)*[<T, ...>]([])*.
func (p *Parser) parseType() string {
	start := p.pos
	if !p.skipType() {
		p.pos = start
		p.cur = p.tokens[start]
		p.unexpected("type")
		return ""
	}
	var sb strings.Builder
	for _, tok := range p.tokens[start:p.pos] {
		sb.WriteString(tok.Literal)
		if tok.Type == TokenComma {
			sb.WriteByte(' ')
		}
	}
	return sb.String()
}

// skipType advances over a type without reporting errors.
func (p *Parser) skipType() bool {
	if !p.accept(TokenIdentifier) {
		return false
	}
	for p.curTokenIs(TokenDot) && p.peek(1).Type == TokenIdentifier {
		p.nextToken()
		p.nextToken()
	}
	if p.accept(TokenLess) {
		for {
			if !p.skipType() {
				return false
			}
			if !p.accept(TokenComma) {
				break
			}
		}
		if !p.accept(TokenGreater) {
			return false
		}
	}
	for p.curTokenIs(TokenLBracket) && p.peek(1).Type == TokenRBracket {
		p.nextToken()
		p.nextToken()
	}
	return true
}

// isTypedDecl reports whether the tokens ahead form "Type name" followed by
// '=', ';' or 'in'.
func (p *Parser) isTypedDecl() bool {
	start := p.pos
	defer func() {
		p.pos = start
		p.cur = p.tokens[start]
	}()
	if !p.skipType() || !p.curTokenIs(TokenIdentifier) {
		return false
	}
	switch p.peek(1).Type {
	case TokenAssign, TokenSemicolon, TokenIn:
		return true
	}
	return false
}

// ---------------------------------------------------------------------------
// Statements
// ---------------------------------------------------------------------------

func (p *Parser) parseBlock() *Block {
	block := &Block{At: p.cur.Pos}
	p.expect(TokenLBrace)
	for !p.curTokenIs(TokenRBrace) && !p.curTokenIs(TokenEOF) {
		start := p.pos
		if stmt := p.parseStatement(); stmt != nil {
			block.Stmts = append(block.Stmts, stmt)
		}
		p.resync(start)
		if p.pos == start {
			p.nextToken()
		}
	}
	p.expect(TokenRBrace)
	return block
}

// ParseStatement parses a single statement.
func (p *Parser) ParseStatement() Stmt {
	return p.parseStatement()
}

func (p *Parser) parseStatement() Stmt {
	pos := p.cur.Pos
	switch p.cur.Type {
	case TokenLBrace:
		return p.parseBlock()
	case TokenSemicolon:
		p.nextToken()
		return &Block{At: pos}
	case TokenIf:
		return p.parseIf()
	case TokenWhile:
		return p.parseWhile()
	case TokenFor:
		return p.parseFor()
	case TokenForeach:
		return p.parseForeach()
	case TokenBreak:
		p.nextToken()
		p.expect(TokenSemicolon)
		return &Break{At: pos}
	case TokenContinue:
		p.nextToken()
		p.expect(TokenSemicolon)
		return &Continue{At: pos}
	case TokenReturn:
		p.nextToken()
		ret := &Return{At: pos}
		if !p.curTokenIs(TokenSemicolon) {
			ret.Value = p.parseExpression()
		}
		p.expect(TokenSemicolon)
		return ret
	}

	var stmt Stmt
	if p.curTokenIs(TokenVar) || p.isTypedDecl() {
		stmt = p.parseVarDecl()
	} else {
		stmt = p.parseSimpleStatement()
	}
	p.expect(TokenSemicolon)
	return stmt
}

func (p *Parser) parseVarDecl() *VarDecl {
	decl := &VarDecl{At: p.cur.Pos}
	if p.accept(TokenVar) {
		decl.Type = "var"
	} else {
		decl.Type = p.parseType()
	}
	decl.Name = p.expectIdent()
	if p.accept(TokenAssign) {
		decl.Init = p.parseExpression()
	}
	return decl
}

// parseSimpleStatement parses an assignment, increment or expression
// statement without the trailing semicolon.
func (p *Parser) parseSimpleStatement() Stmt {
	pos := p.cur.Pos
	if p.curTokenIs(TokenIncrement) || p.curTokenIs(TokenDecrement) {
		op := p.cur.Type
		p.nextToken()
		return &IncDec{At: pos, Op: op, Target: p.parseUnary()}
	}

	x := p.parseExpression()
	switch {
	case p.cur.Type.IsAssignOp():
		op := p.cur.Type
		p.nextToken()
		return &Assign{At: pos, Op: op, Target: x, Value: p.parseExpression()}
	case p.curTokenIs(TokenIncrement) || p.curTokenIs(TokenDecrement):
		op := p.cur.Type
		p.nextToken()
		return &IncDec{At: pos, Op: op, Target: x}
	}
	return &ExprStmt{At: pos, X: x}
}

func (p *Parser) parseCondition() Expr {
	p.expect(TokenLParen)
	cond := p.parseExpression()
	p.expect(TokenRParen)
	return cond
}

func (p *Parser) parseIf() *If {
	stmt := &If{At: p.cur.Pos}
	p.nextToken()
	stmt.Cond = p.parseCondition()
	stmt.Then = p.parseStatement()
	if p.accept(TokenElse) {
		stmt.Else = p.parseStatement()
	}
	return stmt
}

func (p *Parser) parseWhile() *While {
	stmt := &While{At: p.cur.Pos}
	p.nextToken()
	stmt.Cond = p.parseCondition()
	stmt.Body = p.parseStatement()
	return stmt
}

func (p *Parser) parseFor() *For {
	stmt := &For{At: p.cur.Pos}
	p.nextToken()
	p.expect(TokenLParen)
	if !p.curTokenIs(TokenSemicolon) {
		if p.curTokenIs(TokenVar) || p.isTypedDecl() {
			stmt.Init = p.parseVarDecl()
		} else {
			stmt.Init = p.parseSimpleStatement()
		}
	}
	p.expect(TokenSemicolon)
	if !p.curTokenIs(TokenSemicolon) {
		stmt.Cond = p.parseExpression()
	}
	p.expect(TokenSemicolon)
	if !p.curTokenIs(TokenRParen) {
		stmt.Post = p.parseSimpleStatement()
	}
	p.expect(TokenRParen)
	stmt.Body = p.parseStatement()
	return stmt
}

func (p *Parser) parseForeach() *Foreach {
	stmt := &Foreach{At: p.cur.Pos}
	p.nextToken()
	p.expect(TokenLParen)
	if !p.accept(TokenVar) {
		p.parseType()
	}
	stmt.Var = p.expectIdent()
	p.expect(TokenIn)
	stmt.Collection = p.parseExpression()
	p.expect(TokenRParen)
	stmt.Body = p.parseStatement()
	return stmt
}

// ---------------------------------------------------------------------------
// Expressions
// ---------------------------------------------------------------------------

// ParseExpression parses a single expression.
func (p *Parser) ParseExpression() Expr {
	return p.parseExpression()
}

func (p *Parser) parseExpression() Expr {
	return p.parseBinary(0)
}

// binary operator precedence levels, lowest first.
var precedence = [][]TokenType{
	{TokenOr},
	{TokenAnd},
	{TokenEq, TokenNotEq},
	{TokenLess, TokenLessEq, TokenGreater, TokenGreaterEq},
	{TokenPlus, TokenMinus},
	{TokenStar, TokenSlash, TokenPercent},
}

func (p *Parser) parseBinary(level int) Expr {
	if level == len(precedence) {
		return p.parseUnary()
	}
	left := p.parseBinary(level + 1)
	for {
		op, ok := p.matchOp(precedence[level])
		if !ok {
			return left
		}
		pos := p.cur.Pos
		p.nextToken()
		right := p.parseBinary(level + 1)
		left = &Binary{At: pos, Op: op, Left: left, Right: right}
	}
}

func (p *Parser) matchOp(ops []TokenType) (TokenType, bool) {
	for _, op := range ops {
		if p.cur.Type == op {
			return op, true
		}
	}
	return 0, false
}

func (p *Parser) parseUnary() Expr {
	if p.curTokenIs(TokenBang) || p.curTokenIs(TokenMinus) {
		pos := p.cur.Pos
		op := p.cur.Type
		p.nextToken()
		operand := p.parseUnary()
		if op == TokenMinus {
			switch lit := operand.(type) {
			case *IntLiteral:
				lit.Value, lit.At = -lit.Value, pos
				return lit
			case *FloatLiteral:
				lit.Value, lit.At = -lit.Value, pos
				return lit
			}
		}
		return &Unary{At: pos, Op: op, Operand: operand}
	}
	return p.parsePostfix()
}

func (p *Parser) parsePostfix() Expr {
	x := p.parsePrimary()
	for {
		pos := p.cur.Pos
		switch p.cur.Type {
		case TokenDot:
			p.nextToken()
			name := p.expectIdent()
			if p.curTokenIs(TokenLParen) {
				x = &MemberCall{At: pos, Receiver: x, Name: name, Args: p.parseArgs()}
			} else {
				x = &Member{At: pos, Receiver: x, Name: name}
			}
		case TokenLBracket:
			p.nextToken()
			idx := p.parseExpression()
			p.expect(TokenRBracket)
			x = &Index{At: pos, Receiver: x, Index: idx}
		case TokenLParen:
			id, ok := x.(*Identifier)
			if !ok {
				p.errorf(pos, "method name expected")
				return x
			}
			x = &Call{At: id.At, Name: id.Name, Args: p.parseArgs()}
		default:
			return x
		}
	}
}

func (p *Parser) parseArgs() []Expr {
	p.expect(TokenLParen)
	var args []Expr
	if p.accept(TokenRParen) {
		return args
	}
	for {
		args = append(args, p.parseExpression())
		if !p.accept(TokenComma) {
			break
		}
	}
	p.expect(TokenRParen)
	return args
}

func (p *Parser) parsePrimary() Expr {
	tok := p.cur
	pos := tok.Pos
	switch tok.Type {
	case TokenInteger:
		p.nextToken()
		n, err := strconv.ParseInt(tok.Literal, 10, 64)
		if err != nil {
			p.errorf(pos, "integral constant is too large")
		}
		return &IntLiteral{At: pos, Value: n}
	case TokenFloat:
		p.nextToken()
		f, err := strconv.ParseFloat(tok.Literal, 64)
		if err != nil {
			p.errorf(pos, "invalid real literal")
		}
		return &FloatLiteral{At: pos, Value: f}
	case TokenString:
		p.nextToken()
		return &StringLiteral{At: pos, Value: tok.Literal}
	case TokenTrue, TokenFalse:
		p.nextToken()
		return &BoolLiteral{At: pos, Value: tok.Type == TokenTrue}
	case TokenNull:
		p.nextToken()
		return &NullLiteral{At: pos}
	case TokenIdentifier:
		p.nextToken()
		return &Identifier{At: pos, Name: tok.Literal}
	case TokenLParen:
		p.nextToken()
		x := p.parseExpression()
		p.expect(TokenRParen)
		return x
	case TokenLBracket:
		p.nextToken()
		list := &ListLiteral{At: pos}
		for !p.curTokenIs(TokenRBracket) && !p.curTokenIs(TokenEOF) {
			list.Elements = append(list.Elements, p.parseExpression())
			if !p.accept(TokenComma) {
				break
			}
		}
		p.expect(TokenRBracket)
		return list
	case TokenNew:
		p.nextToken()
		n := &NewExpr{At: pos, Type: p.parseType()}
		if p.curTokenIs(TokenLParen) {
			n.Args = p.parseArgs()
		} else {
			p.unexpected("(")
		}
		return n
	}
	p.unexpected("expression")
	return &NullLiteral{At: pos}
}

// ---------------------------------------------------------------------------
// Convenience
// ---------------------------------------------------------------------------

// Parse parses a complete source file.
func Parse(source string) (*SourceFile, []Diagnostic) {
	p := NewParser(source)
	sf := p.ParseSourceFile()
	return sf, p.Diagnostics()
}
