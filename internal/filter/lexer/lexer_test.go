package lexer

import (
	"errors"
	"testing"

	"github.com/doka-one/doka-document-core/internal/errs"
	"github.com/doka-one/doka-document-core/internal/filter/token"
)

func TestLex_PositionalAttributesAndOperators(t *testing.T) {
	toks, err := Lex(`(attribut1 > 10) AND attribut2 == "bonjour"`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var attrPositions, opPositions, valPositions []int
	for _, tk := range toks {
		switch tk.Kind {
		case token.AttributeName:
			attrPositions = append(attrPositions, tk.Pos)
		case token.ComparisonOp:
			opPositions = append(opPositions, tk.Pos)
		case token.IntLiteral, token.StringLiteral:
			valPositions = append(valPositions, tk.Pos)
		}
	}

	wantAttrs := []int{2, 22}
	wantOps := []int{12, 32}
	wantVals := []int{14, 36}

	assertIntSlice(t, "attribute", attrPositions, wantAttrs)
	assertIntSlice(t, "operator", opPositions, wantOps)
	assertIntSlice(t, "value", valPositions, wantVals)
}

func assertIntSlice(t *testing.T, label string, got, want []int) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("%s positions = %v, want %v", label, got, want)
	}
	for i := range got {
		if got[i] != want[i] {
			t.Fatalf("%s positions = %v, want %v", label, got, want)
		}
	}
}

func TestLex_EmptyInputFailsIncompleteExpression(t *testing.T) {
	_, err := Lex("")
	requireCode(t, err, errs.CodeIncompleteExpression)
}

func TestLex_UnclosedQuoteReportsOpeningPosition(t *testing.T) {
	_, err := Lex(`name == "oops`)
	var fe *errs.Error
	if !errors.As(err, &fe) {
		t.Fatalf("expected *errs.Error, got %v", err)
	}
	if fe.Code != errs.CodeUnclosedQuote {
		t.Fatalf("code = %s, want %s", fe.Code, errs.CodeUnclosedQuote)
	}
	if fe.CharPosition == nil || *fe.CharPosition != 9 {
		t.Fatalf("position = %v, want 9", fe.CharPosition)
	}
}

func TestLex_GluedOperatorIsLegal(t *testing.T) {
	toks, err := Lex(`attr>10`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(toks) != 5 { // LogicalOpen, attr, op, val, LogicalClose
		t.Fatalf("got %d tokens, want 5", len(toks))
	}
	if toks[2].Operator != token.GT {
		t.Fatalf("operator = %s, want GT", toks[2].Operator)
	}
}

func TestLex_InvalidLogicalDepth(t *testing.T) {
	_, err := Lex(`a==1))`)
	requireCode(t, err, errs.CodeInvalidLogicalDepth)
}

func TestLex_WrongLogicalOperator(t *testing.T) {
	_, err := Lex(`a==1 XOR b==2`)
	requireCode(t, err, errs.CodeWrongLogicalOperator)
}

func TestLex_EmptyCondition(t *testing.T) {
	_, err := Lex(`() AND a==1`)
	requireCode(t, err, errs.CodeEmptyCondition)
}

func TestLex_CaseInsensitiveLogicalOperators(t *testing.T) {
	_, err := Lex(`a==1 and b==2`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func requireCode(t *testing.T, err error, want string) {
	t.Helper()
	var fe *errs.Error
	if !errors.As(err, &fe) {
		t.Fatalf("expected *errs.Error, got %v", err)
	}
	if fe.Code != want {
		t.Fatalf("code = %s, want %s", fe.Code, want)
	}
}
