package compiler

import (
	"fmt"
	"sort"
)

// ---------------------------------------------------------------------------
// Token types for the botscript lexer
// ---------------------------------------------------------------------------

// TokenType represents the type of a token.
type TokenType int

const (
	// Special tokens
	TokenEOF TokenType = iota
	TokenError

	// Literals
	TokenInteger    // 42
	TokenFloat      // 3.14, 1.5e10
	TokenString     // "hello"
	TokenIdentifier // foo, Bar

	// Delimiters
	TokenLParen    // (
	TokenRParen    // )
	TokenLBracket  // [
	TokenRBracket  // ]
	TokenLBrace    // {
	TokenRBrace    // }
	TokenComma     // ,
	TokenSemicolon // ;
	TokenDot       // .

	// Assignment
	TokenAssign      // =
	TokenPlusAssign  // +=
	TokenMinusAssign // -=
	TokenStarAssign  // *=
	TokenSlashAssign // /=
	TokenIncrement   // ++
	TokenDecrement   // --

	// Operators
	TokenOr      // ||
	TokenAnd     // &&
	TokenEq      // ==
	TokenNotEq   // !=
	TokenLess    // <
	TokenLessEq  // <=
	TokenGreater // >
	TokenGreaterEq
	TokenPlus
	TokenMinus
	TokenStar
	TokenSlash
	TokenPercent
	TokenBang

	// Reserved words
	TokenUsing
	TokenUnit
	TokenVar
	TokenIf
	TokenElse
	TokenWhile
	TokenFor
	TokenForeach
	TokenIn
	TokenBreak
	TokenContinue
	TokenReturn
	TokenNew
	TokenTrue
	TokenFalse
	TokenNull
)

var tokenNames = map[TokenType]string{
	TokenEOF:         "EOF",
	TokenError:       "ERROR",
	TokenInteger:     "INTEGER",
	TokenFloat:       "FLOAT",
	TokenString:      "STRING",
	TokenIdentifier:  "IDENTIFIER",
	TokenLParen:      "(",
	TokenRParen:      ")",
	TokenLBracket:    "[",
	TokenRBracket:    "]",
	TokenLBrace:      "{",
	TokenRBrace:      "}",
	TokenComma:       ",",
	TokenSemicolon:   ";",
	TokenDot:         ".",
	TokenAssign:      "=",
	TokenPlusAssign:  "+=",
	TokenMinusAssign: "-=",
	TokenStarAssign:  "*=",
	TokenSlashAssign: "/=",
	TokenIncrement:   "++",
	TokenDecrement:   "--",
	TokenOr:          "||",
	TokenAnd:         "&&",
	TokenEq:          "==",
	TokenNotEq:       "!=",
	TokenLess:        "<",
	TokenLessEq:      "<=",
	TokenGreater:     ">",
	TokenGreaterEq:   ">=",
	TokenPlus:        "+",
	TokenMinus:       "-",
	TokenStar:        "*",
	TokenSlash:       "/",
	TokenPercent:     "%",
	TokenBang:        "!",
	TokenUsing:       "using",
	TokenUnit:        "unit",
	TokenVar:         "var",
	TokenIf:          "if",
	TokenElse:        "else",
	TokenWhile:       "while",
	TokenFor:         "for",
	TokenForeach:     "foreach",
	TokenIn:          "in",
	TokenBreak:       "break",
	TokenContinue:    "continue",
	TokenReturn:      "return",
	TokenNew:         "new",
	TokenTrue:        "true",
	TokenFalse:       "false",
	TokenNull:        "null",
}

func (t TokenType) String() string {
	if name, ok := tokenNames[t]; ok {
		return name
	}
	return fmt.Sprintf("Token(%d)", t)
}

// Token represents a lexical token.
type Token struct {
	Type    TokenType
	Literal string   // the raw text, or the decoded value for strings
	Pos     Position // start position
}

func (t Token) String() string {
	if t.Type == TokenEOF {
		return "EOF"
	}
	if t.Type == TokenError {
		return fmt.Sprintf("ERROR(%s)", t.Literal)
	}
	if len(t.Literal) > 20 {
		return fmt.Sprintf("%s(%q...)", t.Type, t.Literal[:20])
	}
	return fmt.Sprintf("%s(%q)", t.Type, t.Literal)
}

// describe renders a token for diagnostics.
func (t Token) describe() string {
	switch t.Type {
	case TokenEOF:
		return "end of input"
	case TokenIdentifier, TokenInteger, TokenFloat:
		return fmt.Sprintf("'%s'", t.Literal)
	case TokenString:
		return "string literal"
	}
	return fmt.Sprintf("'%s'", t.Type)
}

// Reserved words mapped to their token types.
var reservedWords = map[string]TokenType{
	"using":    TokenUsing,
	"unit":     TokenUnit,
	"var":      TokenVar,
	"if":       TokenIf,
	"else":     TokenElse,
	"while":    TokenWhile,
	"for":      TokenFor,
	"foreach":  TokenForeach,
	"in":       TokenIn,
	"break":    TokenBreak,
	"continue": TokenContinue,
	"return":   TokenReturn,
	"new":      TokenNew,
	"true":     TokenTrue,
	"false":    TokenFalse,
	"null":     TokenNull,
}

// Keywords returns the reserved words in order.
func Keywords() []string {
	words := make([]string, 0, len(reservedWords))
	for w := range reservedWords {
		words = append(words, w)
	}
	sort.Strings(words)
	return words
}

// IsAssignOp reports whether t is one of the assignment operators.
func (t TokenType) IsAssignOp() bool {
	switch t {
	case TokenAssign, TokenPlusAssign, TokenMinusAssign, TokenStarAssign, TokenSlashAssign:
		return true
	}
	return false
}
