package ast

import (
	"github.com/doka-one/doka-document-core/internal/filter/lexer"
	"github.com/doka-one/doka-document-core/internal/filter/normalize"
)

// Compile runs the full source → tokens → normalized tokens → AST pipeline
// (C1, C2, C3) in one call.
func Compile(source string) (Node, error) {
	toks, err := lexer.Lex(source)
	if err != nil {
		return nil, err
	}
	toks, err = normalize.Normalize(toks)
	if err != nil {
		return nil, err
	}
	return Parse(toks)
}
