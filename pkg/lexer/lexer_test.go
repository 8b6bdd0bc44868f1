package lexer

import (
	"testing"

	"github.com/skeinlang/skein/pkg/token"
)

func TestTokenize_Literals(t *testing.T) {
	values := Tokenize("42 foo { } add")

	want := []token.Value{
		token.Int("42"),
		token.Sym("foo"),
		token.Operator(token.OpBegin),
		token.Operator(token.OpEnd),
		token.Operator(token.OpAdd),
	}

	if len(values) != len(want) {
		t.Fatalf("got %d values, want %d: %v", len(values), len(want), values)
	}
	for i := range want {
		if values[i] != want[i] {
			t.Errorf("value %d: got %+v, want %+v", i, values[i], want[i])
		}
	}
}

func TestTokenize_AllReservedWords(t *testing.T) {
	words := "push pop def merge call join add print sync while if sub mul div mod length dup macro swap rotl rotr"
	values := Tokenize(words)
	if len(values) != 21 {
		t.Fatalf("got %d values, want 21", len(values))
	}
	for i, v := range values {
		if !v.Type.IsOperator() {
			t.Errorf("word %d: got non-operator %+v", i, v)
		}
	}
}

func TestTokenize_WhitespaceVariety(t *testing.T) {
	values := Tokenize("1\t2\n3  4")
	if len(values) != 4 {
		t.Fatalf("got %d values, want 4: %v", len(values), values)
	}
}

func TestTokenize_NoNegativeIntegers(t *testing.T) {
	// The original tokenizer this language was distilled from has no
	// sign handling; a leading '-' is therefore a Symbol, not an
	// Integer. See DESIGN.md.
	values := Tokenize("-5")
	if len(values) != 1 || values[0].Type != token.TypeSymbol || values[0].Raw != "-5" {
		t.Fatalf("got %+v, want a single Symbol '-5'", values)
	}
}

func TestTokenize_Empty(t *testing.T) {
	if values := Tokenize("   \t\n  "); len(values) != 0 {
		t.Fatalf("got %v, want empty", values)
	}
}

func TestLexer_LineColumnTracking(t *testing.T) {
	l := New("1\n22")
	first, ok := l.Next()
	if !ok || first.Line != 1 || first.Column != 1 {
		t.Fatalf("first token: got %+v", first)
	}
	second, ok := l.Next()
	if !ok || second.Line != 2 || second.Column != 1 {
		t.Fatalf("second token: got %+v", second)
	}
	if _, ok := l.Next(); ok {
		t.Fatalf("expected exhausted lexer")
	}
}
