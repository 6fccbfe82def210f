package compiler

import (
	"testing"
)

func TestLexerTokens(t *testing.T) {
	input := `x += 1.5e3; // comment
y-- && z || !w /* block
comment */ @"a\b" "q\"\n" 42L 2f .5`

	tests := []struct {
		typ     TokenType
		literal string
	}{
		{TokenIdentifier, "x"},
		{TokenPlusAssign, "+="},
		{TokenFloat, "1.5e3"},
		{TokenSemicolon, ";"},
		{TokenIdentifier, "y"},
		{TokenDecrement, "--"},
		{TokenAnd, "&&"},
		{TokenIdentifier, "z"},
		{TokenOr, "||"},
		{TokenBang, "!"},
		{TokenIdentifier, "w"},
		{TokenString, `a\b`},
		{TokenString, "q\"\n"},
		{TokenInteger, "42"},
		{TokenFloat, "2"},
		{TokenFloat, ".5"},
		{TokenEOF, ""},
	}

	tokens := Tokenize(input)
	if len(tokens) != len(tests) {
		t.Fatalf("got %d tokens, want %d: %v", len(tokens), len(tests), tokens)
	}
	for i, tt := range tests {
		if tokens[i].Type != tt.typ || tokens[i].Literal != tt.literal {
			t.Errorf("token %d = %s, want %s(%q)", i, tokens[i], tt.typ, tt.literal)
		}
	}
}

func TestLexerPositions(t *testing.T) {
	tokens := Tokenize("unit T {\n  var é = 1;\n}")
	want := map[int]Position{
		0: {Offset: 0, Line: 1, Column: 1},
		3: {Offset: 11, Line: 2, Column: 3},
		4: {Offset: 15, Line: 2, Column: 7},
		8: {Offset: 23, Line: 3, Column: 1},
	}
	for i, pos := range want {
		if tokens[i].Pos != pos {
			t.Errorf("token %d (%s) at %+v, want %+v", i, tokens[i], tokens[i].Pos, pos)
		}
	}
}

func TestLexerReservedWords(t *testing.T) {
	for word, typ := range reservedWords {
		tokens := Tokenize(word)
		if tokens[0].Type != typ {
			t.Errorf("%q lexed as %s, want %s", word, tokens[0].Type, typ)
		}
	}
	if tok := Tokenize("units")[0]; tok.Type != TokenIdentifier {
		t.Errorf("units lexed as %s", tok.Type)
	}
}

func TestLexerErrors(t *testing.T) {
	tests := []string{
		`"unterminated`,
		"\"broken\nline\"",
		`"bad \q escape"`,
		"/* never closed",
		"#",
		"a & b",
	}
	for _, input := range tests {
		found := false
		for _, tok := range Tokenize(input) {
			if tok.Type == TokenError {
				found = true
			}
		}
		if !found {
			t.Errorf("Tokenize(%q) produced no error token", input)
		}
	}
}
