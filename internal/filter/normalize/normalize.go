// Package normalize implements the four-pass token stream normalizer
// (component C2): validation, redundant-parenthesis removal, condition
// wrapping, and binary-operator splitting. The style mirrors the teacher's
// schema.normalize.go — a sequence of small, named, table-driven passes
// applied in a fixed order over a flat token list.
package normalize

import (
	"github.com/doka-one/doka-document-core/internal/errs"
	"github.com/doka-one/doka-document-core/internal/filter/token"
)

// Normalize runs N0..N3 over toks in order and returns the canonical,
// strictly binary, bracketed token stream.
func Normalize(toks []token.Token) ([]token.Token, error) {
	if err := n0Validate(toks); err != nil {
		return nil, err
	}
	toks = n1DedupParens(toks)
	toks = n2WrapConditions(toks)
	toks = n3SplitBinary(toks, token.LogicalAnd)
	toks = n3SplitBinary(toks, token.LogicalOr)
	return toks, nil
}

// n0Validate verifies the logical-open/logical-close sequence stays
// non-negative and ends at zero.
func n0Validate(toks []token.Token) error {
	depth := 0
	for _, t := range toks {
		switch t.Kind {
		case token.LogicalOpen:
			depth++
		case token.LogicalClose:
			depth--
			if depth < 0 {
				return errs.UserInput(errs.CodeInvalidLogicalDepth, t.Pos, "unbalanced closing parenthesis")
			}
		}
	}
	if depth != 0 {
		return errs.UserInput(errs.CodeInvalidLogicalDepth, lastPos(toks), "expression ends at non-zero depth")
	}
	return nil
}

func lastPos(toks []token.Token) int {
	if len(toks) == 0 {
		return 0
	}
	return toks[len(toks)-1].Pos
}

// n1DedupParens removes every pair of immediately-adjacent identical
// openings that is matched by a pair of immediately-adjacent closings at
// the corresponding depth layer, collapsing e.g. "((x))" to "(x)".
func n1DedupParens(toks []token.Token) []token.Token {
	for {
		type pair struct{ open, close int }
		var pairs []pair
		var stack []int
		for i, t := range toks {
			switch t.Kind {
			case token.LogicalOpen:
				stack = append(stack, i)
			case token.LogicalClose:
				o := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				pairs = append(pairs, pair{o, i})
			}
		}

		toDelete := map[int]bool{}
		for _, outer := range pairs {
			for _, inner := range pairs {
				if inner.open == outer.open+1 && inner.close == outer.close-1 {
					toDelete[inner.open] = true
					toDelete[inner.close] = true
					break
				}
			}
		}

		if len(toDelete) == 0 {
			return toks
		}

		next := make([]token.Token, 0, len(toks)-len(toDelete))
		for i, t := range toks {
			if !toDelete[i] {
				next = append(next, t)
			}
		}
		toks = next
	}
}

// n2WrapConditions surrounds each attribute/operator/value window with
// ConditionOpen/ConditionClose, reusing an immediately-surrounding logical
// bracket pair when one already tightly wraps the window.
func n2WrapConditions(toks []token.Token) []token.Token {
	type insertion struct {
		pos int
		tok token.Token
	}
	var inserts []insertion
	replaced := map[int]token.Kind{}

	for i, t := range toks {
		if t.Kind != token.AttributeName {
			continue
		}
		// window is i, i+1 (operator), i+2 (value)
		openIdx, closeIdx := i-1, i+3
		if openIdx >= 0 && closeIdx < len(toks) &&
			toks[openIdx].Kind == token.ConditionOpen && toks[closeIdx].Kind == token.ConditionClose {
			continue // already wrapped by an earlier run
		}
		if openIdx >= 0 && closeIdx < len(toks) &&
			toks[openIdx].Kind == token.LogicalOpen && toks[closeIdx].Kind == token.LogicalClose {
			replaced[openIdx] = token.ConditionOpen
			replaced[closeIdx] = token.ConditionClose
			continue
		}
		inserts = append(inserts, insertion{pos: i, tok: token.Token{Kind: token.ConditionOpen, Pos: 0}})
		inserts = append(inserts, insertion{pos: i + 3, tok: token.Token{Kind: token.ConditionClose, Pos: 0}})
	}

	for i, k := range replaced {
		toks[i].Kind = k
	}

	// Apply insertions in descending position order so earlier indices stay valid.
	for idx := len(inserts) - 1; idx >= 0; idx-- {
		ins := inserts[idx]
		toks = insertAt(toks, ins.pos, ins.tok)
	}
	return toks
}

// n3SplitBinary enforces that every operator of kind opKind has exactly two
// operands, inserting a tight LogicalOpen/LogicalClose pair around the
// operator and its two immediate operands whenever one isn't already
// present.
func n3SplitBinary(toks []token.Token, opKind token.Kind) []token.Token {
	i := 0
	for i < len(toks) {
		if toks[i].Kind != opKind {
			i++
			continue
		}

		left, ok1 := leftOperandSpan(toks, i)
		right, ok2 := rightOperandSpan(toks, i)
		if !ok1 || !ok2 {
			i++
			continue
		}

		if !isTight(toks, left, right) {
			toks = insertAt(toks, right.end+1, token.Token{Kind: token.LogicalClose, Pos: 0})
			toks = insertAt(toks, left.start, token.Token{Kind: token.LogicalOpen, Pos: 0})
		}
		i++
	}
	return toks
}

type span struct{ start, end int }

func leftOperandSpan(toks []token.Token, opIdx int) (span, bool) {
	j := opIdx - 1
	if j < 0 || !isCloseKind(toks[j].Kind) {
		return span{}, false
	}
	o := matchOpen(toks, j)
	if o < 0 {
		return span{}, false
	}
	return span{o, j}, true
}

func rightOperandSpan(toks []token.Token, opIdx int) (span, bool) {
	j := opIdx + 1
	if j >= len(toks) || !isOpenKind(toks[j].Kind) {
		return span{}, false
	}
	c := matchClose(toks, j)
	if c < 0 {
		return span{}, false
	}
	return span{j, c}, true
}

// isTight reports whether left and right are already directly enclosed by a
// single matching LogicalOpen/LogicalClose pair with nothing else between
// that pair and the operands.
func isTight(toks []token.Token, left, right span) bool {
	openIdx := left.start - 1
	closeIdx := right.end + 1
	if openIdx < 0 || closeIdx >= len(toks) {
		return false
	}
	if toks[openIdx].Kind != token.LogicalOpen || toks[closeIdx].Kind != token.LogicalClose {
		return false
	}
	return matchClose(toks, openIdx) == closeIdx
}

func isOpenKind(k token.Kind) bool {
	return k == token.LogicalOpen || k == token.ConditionOpen
}

func isCloseKind(k token.Kind) bool {
	return k == token.LogicalClose || k == token.ConditionClose
}

func matchOpen(toks []token.Token, closeIdx int) int {
	depth := 0
	for k := closeIdx; k >= 0; k-- {
		if isCloseKind(toks[k].Kind) {
			depth++
		}
		if isOpenKind(toks[k].Kind) {
			depth--
			if depth == 0 {
				return k
			}
		}
	}
	return -1
}

func matchClose(toks []token.Token, openIdx int) int {
	depth := 0
	for k := openIdx; k < len(toks); k++ {
		if isOpenKind(toks[k].Kind) {
			depth++
		}
		if isCloseKind(toks[k].Kind) {
			depth--
			if depth == 0 {
				return k
			}
		}
	}
	return -1
}

func insertAt(toks []token.Token, pos int, t token.Token) []token.Token {
	out := make([]token.Token, 0, len(toks)+1)
	out = append(out, toks[:pos]...)
	out = append(out, t)
	out = append(out, toks[pos:]...)
	return out
}
