// Package ast defines the filter abstract syntax tree (two tagged variants,
// Condition and Logical) and the recursive-descent parser that builds it
// from a normalized token.Token stream (component C3).
package ast

import "github.com/doka-one/doka-document-core/internal/filter/token"

// LogicalOperator is AND or OR.
type LogicalOperator string

const (
	AND LogicalOperator = "AND"
	OR  LogicalOperator = "OR"
)

// ValueKind tags the runtime shape of a literal value.
type ValueKind int

const (
	ValInt ValueKind = iota
	ValString
	ValBool
)

// Value is the tagged-variant literal carried by a Condition.
type Value struct {
	Kind ValueKind
	Int  int64
	Str  string
	Bool bool
}

// Node is implemented by Condition and Logical, the only two AST variants.
type Node interface {
	isNode()
}

// Condition is a leaf comparison. Key is an opaque identifier, unique
// within one AST, used to index per-condition metadata computed by the
// query generator.
type Condition struct {
	Key       string
	Attribute string
	Operator  token.Op
	Value     Value
}

func (*Condition) isNode() {}

// Logical is a strictly binary AND/OR node.
type Logical struct {
	Operator LogicalOperator
	Leaves   [2]Node
}

func (*Logical) isNode() {}
