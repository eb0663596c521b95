package ast

import (
	"github.com/google/uuid"

	"github.com/doka-one/doka-document-core/internal/errs"
	"github.com/doka-one/doka-document-core/internal/filter/token"
)

// Parse builds an AST from a normalized token stream with a single shared
// cursor, mirroring the teacher's recursive-descent parsing style.
func Parse(toks []token.Token) (Node, error) {
	p := &parser{toks: toks}
	node, err := p.parseExprOrCond()
	if err != nil {
		return nil, err
	}
	if p.pos != len(p.toks) {
		return nil, errs.UserInput(errs.CodeClosingExpected, p.peek().Pos, "unexpected trailing tokens")
	}
	return node, nil
}

type parser struct {
	toks []token.Token
	pos  int
}

func (p *parser) peek() token.Token {
	if p.pos >= len(p.toks) {
		return token.Token{Pos: lastPos(p.toks) + 1}
	}
	return p.toks[p.pos]
}

func (p *parser) advance() token.Token {
	t := p.peek()
	p.pos++
	return t
}

func lastPos(toks []token.Token) int {
	if len(toks) == 0 {
		return 0
	}
	return toks[len(toks)-1].Pos
}

func (p *parser) parseExprOrCond() (Node, error) {
	switch p.peek().Kind {
	case token.LogicalOpen:
		return p.parseLogical()
	case token.ConditionOpen:
		return p.parseCondition()
	default:
		return nil, errs.UserInput(errs.CodeOpeningExpected, p.peek().Pos, "expected '(' to start an expression or condition")
	}
}

func (p *parser) parseLogical() (Node, error) {
	p.advance() // LogicalOpen

	left, err := p.parseExprOrCond()
	if err != nil {
		return nil, err
	}

	opTok := p.peek()
	if !opTok.Kind.IsLogicalOp() {
		return nil, errs.UserInput(errs.CodeLogicalOperatorExpected, opTok.Pos, "expected AND or OR")
	}
	p.advance()

	right, err := p.parseExprOrCond()
	if err != nil {
		return nil, err
	}

	closeTok := p.peek()
	if closeTok.Kind != token.LogicalClose {
		return nil, errs.UserInput(errs.CodeClosingExpected, closeTok.Pos, "expected ')' to close a logical expression")
	}
	p.advance()

	op := AND
	if opTok.Kind == token.LogicalOr {
		op = OR
	}
	return &Logical{Operator: op, Leaves: [2]Node{left, right}}, nil
}

func (p *parser) parseCondition() (Node, error) {
	p.advance() // ConditionOpen

	attrTok := p.peek()
	if attrTok.Kind != token.AttributeName {
		return nil, errs.UserInput(errs.CodeAttributeExpected, attrTok.Pos, "expected an attribute name")
	}
	p.advance()

	opTok := p.peek()
	if opTok.Kind != token.ComparisonOp {
		return nil, errs.UserInput(errs.CodeOperatorExpected, opTok.Pos, "expected a comparison operator")
	}
	p.advance()

	valTok := p.peek()
	value, err := valueFromToken(valTok)
	if err != nil {
		return nil, err
	}
	p.advance()

	closeTok := p.peek()
	if closeTok.Kind != token.ConditionClose {
		return nil, errs.UserInput(errs.CodeClosingExpected, closeTok.Pos, "expected ')' to close a condition")
	}
	p.advance()

	return &Condition{
		Key:       uuid.NewString(),
		Attribute: attrTok.Attribute,
		Operator:  opTok.Operator,
		Value:     value,
	}, nil
}

func valueFromToken(t token.Token) (Value, error) {
	switch t.Kind {
	case token.IntLiteral:
		return Value{Kind: ValInt, Int: t.IntVal}, nil
	case token.StringLiteral:
		return Value{Kind: ValString, Str: t.StrVal}, nil
	case token.BoolLiteral:
		return Value{Kind: ValBool, Bool: t.BoolVal}, nil
	default:
		return Value{}, errs.UserInput(errs.CodeValueExpected, t.Pos, "expected a string, integer, or boolean literal")
	}
}
