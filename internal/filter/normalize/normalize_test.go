package normalize

import (
	"reflect"
	"testing"

	"github.com/doka-one/doka-document-core/internal/filter/lexer"
	"github.com/doka-one/doka-document-core/internal/filter/token"
)

func normalizeSource(t *testing.T, src string) []token.Token {
	t.Helper()
	toks, err := lexer.Lex(src)
	if err != nil {
		t.Fatalf("lex(%q): %v", src, err)
	}
	out, err := Normalize(toks)
	if err != nil {
		t.Fatalf("normalize(%q): %v", src, err)
	}
	return out
}

func kinds(toks []token.Token) []token.Kind {
	out := make([]token.Kind, len(toks))
	for i, t := range toks {
		out[i] = t.Kind
	}
	return out
}

func TestNormalize_SingleConditionIsConditionWrapped(t *testing.T) {
	got := kinds(normalizeSource(t, `a==1`))
	want := []token.Kind{token.ConditionOpen, token.AttributeName, token.ComparisonOp, token.IntLiteral, token.ConditionClose}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestNormalize_RedundantParensCollapse(t *testing.T) {
	a := kinds(normalizeSource(t, `a==1`))
	b := kinds(normalizeSource(t, `((a==1))`))
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("redundant parens not collapsed: %v vs %v", a, b)
	}
}

func TestNormalize_TwoOperandAndNeedsNoExtraWrap(t *testing.T) {
	toks := normalizeSource(t, `a==1 AND b==2`)
	// Exactly one LogicalOpen/LogicalClose pair (the synthetic outer one).
	opens, closes := 0, 0
	for _, tk := range toks {
		switch tk.Kind {
		case token.LogicalOpen:
			opens++
		case token.LogicalClose:
			closes++
		}
	}
	if opens != 1 || closes != 1 {
		t.Fatalf("expected exactly one logical bracket pair, got opens=%d closes=%d", opens, closes)
	}
}

func TestNormalize_ThreeOperandAndBecomesBinary(t *testing.T) {
	toks := normalizeSource(t, `a==1 AND b==2 AND c==3`)
	ands := 0
	for _, tk := range toks {
		if tk.Kind == token.LogicalAnd {
			ands++
		}
	}
	if ands != 2 {
		t.Fatalf("expected 2 AND tokens preserved, got %d", ands)
	}
	// every AND must now have exactly one condition/logical unit on each side,
	// which implies at least one extra LogicalOpen/LogicalClose pair was inserted.
	opens := 0
	for _, tk := range toks {
		if tk.Kind == token.LogicalOpen {
			opens++
		}
	}
	if opens < 2 {
		t.Fatalf("expected at least 2 LogicalOpen tokens (outer + inserted), got %d", opens)
	}
}

func TestNormalize_IsIdempotent(t *testing.T) {
	once := normalizeSource(t, `country == "FR" AND (science >= 50 OR is_open == TRUE)`)
	twice, err := Normalize(once)
	if err != nil {
		t.Fatalf("re-normalize: %v", err)
	}
	if !reflect.DeepEqual(kinds(once), kinds(twice)) {
		t.Fatalf("normalize is not idempotent: %v vs %v", kinds(once), kinds(twice))
	}
}

func TestNormalize_BracketedAndDepthNeverNegative(t *testing.T) {
	toks := normalizeSource(t, `country == "FR" AND (science >= 50 OR is_open == TRUE)`)
	depth := 0
	for _, tk := range toks {
		switch tk.Kind {
		case token.LogicalOpen, token.ConditionOpen:
			depth++
		case token.LogicalClose, token.ConditionClose:
			depth--
		}
		if depth < 0 {
			t.Fatalf("depth went negative")
		}
	}
	if depth != 0 {
		t.Fatalf("depth ended at %d, want 0", depth)
	}
}
