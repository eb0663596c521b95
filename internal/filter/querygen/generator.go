// Package querygen compiles a filter AST into a single parametrized
// relational query string against the tag-value schema (component C4). The
// branching-by-declared-type style mirrors the teacher's schema.generator.go,
// which dispatches DDL emission on a column's declared type; here the same
// dispatch selects a storage column and operator legality set.
package querygen

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/doka-one/doka-document-core/internal/errs"
	"github.com/doka-one/doka-document-core/internal/filter/ast"
	"github.com/doka-one/doka-document-core/internal/filter/token"
	"github.com/doka-one/doka-document-core/internal/model"
)

// Mode selects the generation strategy. Persisted calls the StatsRecorder
// hook once per condition and otherwise emits the same query as Live; it does
// not group AND-only subtrees into super-filter predicates.
type Mode int

const (
	Live Mode = iota
	Persisted
)

// Lookup resolves tag definitions for a batch of attribute names.
type Lookup func(ctx context.Context, names []string) (map[string]model.TagDefinition, error)

// Generator compiles an AST into a SELECT statement scoped to one
// customer's item/tag-value schema.
type Generator struct {
	CustomerSchema string // e.g. "cs_acme"
	Lookup         Lookup

	// StatsRecorder is invoked once per condition in Persisted mode. It is a
	// hook point only: the storage format for selectivity statistics is an
	// open question the generator does not constrain.
	StatsRecorder func(attribute string, occurrence int)
}

type occKey struct {
	attribute  string
	occurrence int
}

func (k occKey) alias() string {
	return fmt.Sprintf("ot_%s_%d", k.attribute, k.occurrence)
}

// Generate implements the C4 algorithm end-to-end.
func (g *Generator) Generate(ctx context.Context, root ast.Node, selectTags, orderTags []string, mode Mode) (string, error) {
	conds := collectConditions(root)

	occByKey := map[string]occKey{} // condition.Key -> occKey
	countByAttr := map[string]int{}
	for _, c := range conds {
		occ := countByAttr[c.Attribute]
		occByKey[c.Key] = occKey{attribute: c.Attribute, occurrence: occ}
		countByAttr[c.Attribute] = occ + 1
	}

	attrSet := map[string]bool{}
	for _, c := range conds {
		attrSet[c.Attribute] = true
	}
	for _, n := range selectTags {
		attrSet[n] = true
	}
	for _, n := range orderTags {
		attrSet[n] = true
	}
	names := make([]string, 0, len(attrSet))
	for n := range attrSet {
		names = append(names, n)
	}
	sort.Strings(names)

	defs, err := g.Lookup(ctx, names)
	if err != nil {
		return "", userErr(errs.CodeTagSearchError, "tag search failed: %v", err)
	}

	for _, n := range names {
		if _, ok := defs[n]; !ok {
			return "", userErr(errs.CodeTagUnknown, "unknown tag %q", n)
		}
	}

	// ensure select/order tags not used in any condition still get a join,
	// at occurrence 0, with no value filter.
	for _, n := range selectTags {
		if countByAttr[n] == 0 {
			countByAttr[n] = 1
		}
	}
	for _, n := range orderTags {
		if countByAttr[n] == 0 {
			countByAttr[n] = 1
		}
	}

	var joins []string
	aliasesByAttr := map[string][]string{}

	for _, n := range names {
		def := defs[n]
		nOcc := countByAttr[n]
		if nOcc == 0 {
			continue
		}
		for occ := 0; occ < nOcc; occ++ {
			k := occKey{attribute: n, occurrence: occ}

			var cond *ast.Condition
			for _, c := range conds {
				if occByKey[c.Key] == k {
					cond = c
					break
				}
			}
			if mode == Persisted && g.StatsRecorder != nil && cond != nil {
				g.StatsRecorder(n, occ)
			}

			join, err := g.joinFragment(def, k, cond)
			if err != nil {
				return "", err
			}
			joins = append(joins, join)
			aliasesByAttr[n] = append(aliasesByAttr[n], k.alias())
		}
	}

	predicate := "TRUE"
	if root != nil {
		p, err := buildPredicate(root, occByKey)
		if err != nil {
			return "", err
		}
		predicate = p
	}

	selectCols, err := coalesceColumns(selectTags, aliasesByAttr, true)
	if err != nil {
		return "", err
	}
	orderCols, err := coalesceColumns(orderTags, aliasesByAttr, false)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "SELECT i.id")
	for _, c := range selectCols {
		fmt.Fprintf(&b, ", %s", c)
	}
	fmt.Fprintf(&b, " FROM %s.item i", g.CustomerSchema)
	for _, j := range joins {
		fmt.Fprintf(&b, " %s", j)
	}
	fmt.Fprintf(&b, " WHERE %s", predicate)
	if len(orderCols) > 0 {
		fmt.Fprintf(&b, " ORDER BY %s", strings.Join(orderCols, ", "))
	}

	return b.String(), nil
}

// userErr builds a GenerationError: one of TagUnknown, TagTypeUnknown,
// TagSearchError, TagIncompatibleType, surfaced as a *errs.Error.
func userErr(code, format string, args ...any) error {
	return errs.UserInputNoPos(code, format, args...)
}

func collectConditions(n ast.Node) []*ast.Condition {
	var out []*ast.Condition
	var walk func(ast.Node)
	walk = func(n ast.Node) {
		switch v := n.(type) {
		case *ast.Condition:
			out = append(out, v)
		case *ast.Logical:
			walk(v.Leaves[0])
			walk(v.Leaves[1])
		}
	}
	walk(n)
	return out
}

func buildPredicate(n ast.Node, occByKey map[string]occKey) (string, error) {
	switch v := n.(type) {
	case *ast.Condition:
		k := occByKey[v.Key]
		return fmt.Sprintf("%s.value IS NOT NULL", k.alias()), nil
	case *ast.Logical:
		left, err := buildPredicate(v.Leaves[0], occByKey)
		if err != nil {
			return "", err
		}
		right, err := buildPredicate(v.Leaves[1], occByKey)
		if err != nil {
			return "", err
		}
		op := "AND"
		if v.Operator == ast.OR {
			op = "OR"
		}
		return fmt.Sprintf("( %s %s %s )", left, op, right), nil
	default:
		return "", fmt.Errorf("unknown AST node %T", n)
	}
}

// legalOperators is the matrix from the query generator design.
var legalOperators = map[model.TagType]map[token.Op]bool{
	model.TagBool: {token.EQ: true, token.NEQ: true},
	model.TagInt: {
		token.EQ: true, token.NEQ: true, token.GT: true,
		token.GTE: true, token.LT: true, token.LTE: true,
	},
	model.TagDouble: {
		token.EQ: true, token.NEQ: true, token.GT: true,
		token.GTE: true, token.LT: true, token.LTE: true,
	},
	model.TagText: {token.EQ: true, token.NEQ: true, token.LIKE: true},
}

func (g *Generator) joinFragment(def model.TagDefinition, k occKey, cond *ast.Condition) (string, error) {
	switch def.Type {
	case model.TagDate, model.TagDateTime, model.TagLink:
		if cond != nil {
			return "", userErr(errs.CodeTagTypeUnknown, "comparisons against %s tags are not implemented", def.Type)
		}
		// allowed as a plain select/order join with no value filter.
	case model.TagText, model.TagBool, model.TagInt, model.TagDouble:
		if cond != nil {
			if !legalOperators[def.Type][cond.Operator] {
				return "", userErr(errs.CodeTagIncompatibleType, "operator %s is not legal for tag %q of type %s", cond.Operator, def.Name, def.Type)
			}
		}
	default:
		return "", userErr(errs.CodeTagTypeUnknown, "tag %q has unknown type", def.Name)
	}

	col := def.Type.StorageColumn()
	filter := "TRUE"
	if cond != nil {
		f, err := valueFilter(def.Type, cond.Operator, cond.Value, col)
		if err != nil {
			return "", err
		}
		filter = f
	}

	return fmt.Sprintf(
		"LEFT JOIN LATERAL (SELECT tv.%s AS value FROM %s.tag_value tv WHERE tv.item_id = i.id AND tv.tag_name = '%s' AND %s LIMIT 1) %s ON TRUE",
		col, g.CustomerSchema, escapeLiteral(def.Name), filter, k.alias(),
	), nil
}

func valueFilter(t model.TagType, op token.Op, v ast.Value, col string) (string, error) {
	switch t {
	case model.TagText:
		sqlOp := map[token.Op]string{token.EQ: "=", token.NEQ: "<>", token.LIKE: "LIKE"}[op]
		return fmt.Sprintf("unaccent_lower(tv.%s) %s unaccent_lower('%s')", col, sqlOp, escapeLiteral(v.Str)), nil
	case model.TagBool:
		truthy := (op == token.EQ && v.Bool) || (op == token.NEQ && !v.Bool)
		if truthy {
			return fmt.Sprintf("tv.%s", col), nil
		}
		return fmt.Sprintf("NOT tv.%s", col), nil
	case model.TagInt, model.TagDouble:
		sqlOp := map[token.Op]string{
			token.EQ: "=", token.NEQ: "<>", token.GT: ">",
			token.GTE: ">=", token.LT: "<", token.LTE: "<=",
		}[op]
		// The filter grammar only has integer literals (§4.1 VALUE); a
		// Double tag is compared against that same integer literal.
		lit := fmt.Sprintf("%d", v.Int)
		return fmt.Sprintf("tv.%s %s %s", col, sqlOp, lit), nil
	default:
		return "", userErr(errs.CodeTagTypeUnknown, "no value filter for tag type %s", t)
	}
}

func escapeLiteral(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}

func coalesceColumns(tags []string, aliasesByAttr map[string][]string, aliased bool) ([]string, error) {
	out := make([]string, 0, len(tags))
	for _, name := range tags {
		aliases := aliasesByAttr[name]
		if len(aliases) == 0 {
			return nil, userErr(errs.CodeTagUnknown, "unknown tag %q", name)
		}
		expr := coalesceExpr(aliases)
		if aliased {
			expr = fmt.Sprintf("%s AS %s", expr, name)
		}
		out = append(out, expr)
	}
	return out, nil
}

func coalesceExpr(aliases []string) string {
	if len(aliases) == 1 {
		return aliases[0] + ".value"
	}
	return coalesceExprRec(aliases)
}

func coalesceExprRec(aliases []string) string {
	if len(aliases) == 1 {
		return aliases[0] + ".value"
	}
	return fmt.Sprintf("COALESCE(%s.value, %s)", aliases[0], coalesceExprRec(aliases[1:]))
}
