package compiler

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// ---------------------------------------------------------------------------
// Lexer: Tokenizer for botscript syntax
// ---------------------------------------------------------------------------

// Lexer tokenizes botscript source code.
type Lexer struct {
	input   string
	pos     int  // current position in input
	readPos int  // reading position (after current char)
	ch      rune // current character
	line    int  // line of ch (1-based)
	col     int  // column of ch (1-based)
}

// NewLexer creates a new lexer for the given input.
func NewLexer(input string) *Lexer {
	l := &Lexer{
		input: input,
		line:  1,
	}
	l.readChar()
	return l
}

// readChar reads the next character.
func (l *Lexer) readChar() {
	if l.ch == '\n' {
		l.line++
		l.col = 0
	}
	if l.readPos >= len(l.input) {
		l.ch = 0 // EOF
		l.pos = l.readPos
		l.col++
		return
	}
	r, size := utf8.DecodeRuneInString(l.input[l.readPos:])
	l.ch = r
	l.pos = l.readPos
	l.readPos += size
	l.col++
}

// peekChar returns the next character without consuming it.
func (l *Lexer) peekChar() rune {
	if l.readPos >= len(l.input) {
		return 0
	}
	r, _ := utf8.DecodeRuneInString(l.input[l.readPos:])
	return r
}

func (l *Lexer) position() Position {
	return Position{Offset: l.pos, Line: l.line, Column: l.col}
}

func (l *Lexer) atEOF() bool {
	return l.ch == 0 && l.pos >= len(l.input)
}

// NextToken returns the next token.
func (l *Lexer) NextToken() Token {
	if tok, ok := l.skipWhitespaceAndComments(); !ok {
		return tok
	}

	pos := l.position()
	if l.atEOF() {
		return Token{Type: TokenEOF, Pos: pos}
	}

	single := func(t TokenType) Token {
		l.readChar()
		return Token{Type: t, Literal: t.String(), Pos: pos}
	}
	// either returns two if the next char is second, else one.
	either := func(second rune, two, one TokenType) Token {
		l.readChar()
		if l.ch == second {
			l.readChar()
			return Token{Type: two, Literal: two.String(), Pos: pos}
		}
		return Token{Type: one, Literal: one.String(), Pos: pos}
	}

	switch l.ch {
	case '(':
		return single(TokenLParen)
	case ')':
		return single(TokenRParen)
	case '[':
		return single(TokenLBracket)
	case ']':
		return single(TokenRBracket)
	case '{':
		return single(TokenLBrace)
	case '}':
		return single(TokenRBrace)
	case ',':
		return single(TokenComma)
	case ';':
		return single(TokenSemicolon)
	case '%':
		return single(TokenPercent)
	case '=':
		return either('=', TokenEq, TokenAssign)
	case '!':
		return either('=', TokenNotEq, TokenBang)
	case '<':
		return either('=', TokenLessEq, TokenLess)
	case '>':
		return either('=', TokenGreaterEq, TokenGreater)
	case '*':
		return either('=', TokenStarAssign, TokenStar)
	case '/':
		return either('=', TokenSlashAssign, TokenSlash)
	case '+':
		if l.peekChar() == '+' {
			l.readChar()
			return single(TokenIncrement)
		}
		return either('=', TokenPlusAssign, TokenPlus)
	case '-':
		if l.peekChar() == '-' {
			l.readChar()
			return single(TokenDecrement)
		}
		return either('=', TokenMinusAssign, TokenMinus)
	case '&':
		if l.peekChar() == '&' {
			l.readChar()
			return single(TokenAnd)
		}
	case '|':
		if l.peekChar() == '|' {
			l.readChar()
			return single(TokenOr)
		}
	case '"':
		return l.readString(pos, false)
	case '@':
		if l.peekChar() == '"' {
			l.readChar()
			return l.readString(pos, true)
		}
	case '.':
		if !isDigit(l.peekChar()) {
			return single(TokenDot)
		}
		return l.readNumber(pos)
	}

	switch {
	case isDigit(l.ch):
		return l.readNumber(pos)
	case isLetter(l.ch) || l.ch == '_':
		return l.readIdentifier(pos)
	}

	ch := l.ch
	l.readChar()
	return Token{Type: TokenError, Literal: fmt.Sprintf("unexpected character '%c'", ch), Pos: pos}
}

// skipWhitespaceAndComments skips whitespace, line comments and block
// comments. An unterminated block comment yields an error token.
func (l *Lexer) skipWhitespaceAndComments() (Token, bool) {
	for {
		for unicode.IsSpace(l.ch) || l.ch == '\ufeff' {
			l.readChar()
		}
		if l.ch == '/' && l.peekChar() == '/' {
			for l.ch != '\n' && !l.atEOF() {
				l.readChar()
			}
			continue
		}
		if l.ch == '/' && l.peekChar() == '*' {
			pos := l.position()
			l.readChar()
			l.readChar()
			for !(l.ch == '*' && l.peekChar() == '/') {
				if l.atEOF() {
					return Token{Type: TokenError, Literal: "unterminated comment", Pos: pos}, false
				}
				l.readChar()
			}
			l.readChar()
			l.readChar()
			continue
		}
		return Token{}, true
	}
}

// readString reads a double-quoted string. Verbatim strings (@"...") take
// backslashes literally and use "" for a quote.
func (l *Lexer) readString(pos Position, verbatim bool) Token {
	var sb strings.Builder
	l.readChar() // opening quote
	for {
		switch {
		case l.atEOF() || (l.ch == '\n' && !verbatim):
			return Token{Type: TokenError, Literal: "unterminated string literal", Pos: pos}
		case l.ch == '"':
			l.readChar()
			if verbatim && l.ch == '"' {
				sb.WriteByte('"')
				l.readChar()
				continue
			}
			return Token{Type: TokenString, Literal: sb.String(), Pos: pos}
		case l.ch == '\\' && !verbatim:
			l.readChar()
			switch l.ch {
			case 'n':
				sb.WriteByte('\n')
			case 't':
				sb.WriteByte('\t')
			case 'r':
				sb.WriteByte('\r')
			case '0':
				sb.WriteByte(0)
			case '"', '\\', '\'':
				sb.WriteRune(l.ch)
			default:
				return Token{Type: TokenError, Literal: fmt.Sprintf("unrecognized escape sequence '\\%c'", l.ch), Pos: pos}
			}
			l.readChar()
		default:
			sb.WriteRune(l.ch)
			l.readChar()
		}
	}
}

// readNumber reads an integer or float literal. Integers may carry the
// suffix L; floats may carry f, d or m.
func (l *Lexer) readNumber(pos Position) Token {
	start := l.pos
	isFloat := false
	for isDigit(l.ch) {
		l.readChar()
	}
	if l.ch == '.' && isDigit(l.peekChar()) {
		isFloat = true
		l.readChar()
		for isDigit(l.ch) {
			l.readChar()
		}
	}
	if l.ch == 'e' || l.ch == 'E' {
		next := l.peekChar()
		if isDigit(next) || next == '+' || next == '-' {
			isFloat = true
			l.readChar()
			if l.ch == '+' || l.ch == '-' {
				l.readChar()
			}
			for isDigit(l.ch) {
				l.readChar()
			}
		}
	}
	text := l.input[start:l.pos]
	switch l.ch {
	case 'f', 'F', 'd', 'D', 'm', 'M':
		isFloat = true
		l.readChar()
	case 'l', 'L':
		l.readChar()
	}
	if isFloat {
		return Token{Type: TokenFloat, Literal: text, Pos: pos}
	}
	return Token{Type: TokenInteger, Literal: text, Pos: pos}
}

func (l *Lexer) readIdentifier(pos Position) Token {
	start := l.pos
	for isLetter(l.ch) || isDigit(l.ch) || l.ch == '_' {
		l.readChar()
	}
	text := l.input[start:l.pos]
	if t, ok := reservedWords[text]; ok {
		return Token{Type: t, Literal: text, Pos: pos}
	}
	return Token{Type: TokenIdentifier, Literal: text, Pos: pos}
}

func isLetter(r rune) bool {
	return unicode.IsLetter(r)
}

func isDigit(r rune) bool {
	return r >= '0' && r <= '9'
}

// Tokenize returns all tokens in input, ending with EOF.
func Tokenize(input string) []Token {
	l := NewLexer(input)
	var tokens []Token
	for {
		tok := l.NextToken()
		tokens = append(tokens, tok)
		if tok.Type == TokenEOF {
			return tokens
		}
	}
}
