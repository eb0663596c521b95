package querygen

import (
	"context"
	"strings"
	"testing"

	"github.com/doka-one/doka-document-core/internal/errs"
	"github.com/doka-one/doka-document-core/internal/filter/ast"
	"github.com/doka-one/doka-document-core/internal/model"
)

func defsLookup(defs map[string]model.TagDefinition) Lookup {
	return func(_ context.Context, names []string) (map[string]model.TagDefinition, error) {
		out := map[string]model.TagDefinition{}
		for _, n := range names {
			if d, ok := defs[n]; ok {
				out[n] = d
			}
		}
		return out, nil
	}
}

func TestGenerate_ThreeAttributeFilter(t *testing.T) {
	node, err := ast.Compile(`country == "FR" AND (science >= 50 OR is_open == TRUE)`)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}

	g := &Generator{
		CustomerSchema: "cs_acme",
		Lookup: defsLookup(map[string]model.TagDefinition{
			"country":  {Name: "country", Type: model.TagText},
			"science":  {Name: "science", Type: model.TagInt},
			"is_open":  {Name: "is_open", Type: model.TagBool},
		}),
	}

	query, err := g.Generate(context.Background(), node, nil, nil, Live)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	for _, alias := range []string{"ot_country_0", "ot_science_0", "ot_is_open_0"} {
		if !strings.Contains(query, alias) {
			t.Fatalf("query missing join alias %s: %s", alias, query)
		}
	}

	want := "( ot_country_0.value IS NOT NULL AND ( ot_science_0.value IS NOT NULL OR ot_is_open_0.value IS NOT NULL ) )"
	if !strings.Contains(query, want) {
		t.Fatalf("query missing expected predicate.\ngot: %s\nwant substring: %s", query, want)
	}
}

func TestGenerate_RepeatedAttributeCoalescesSelect(t *testing.T) {
	node, err := ast.Compile(`lastname LIKE "%ab%" OR (postal_code == 30099 AND lastname LIKE "%h%")`)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}

	g := &Generator{
		CustomerSchema: "cs_acme",
		Lookup: defsLookup(map[string]model.TagDefinition{
			"lastname":    {Name: "lastname", Type: model.TagText},
			"postal_code": {Name: "postal_code", Type: model.TagInt},
		}),
	}

	query, err := g.Generate(context.Background(), node, []string{"lastname"}, nil, Live)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	for _, alias := range []string{"ot_lastname_0", "ot_lastname_1"} {
		if !strings.Contains(query, alias) {
			t.Fatalf("query missing join alias %s: %s", alias, query)
		}
	}

	want := "COALESCE(ot_lastname_0.value, ot_lastname_1.value) AS lastname"
	if !strings.Contains(query, want) {
		t.Fatalf("query missing expected select column.\ngot: %s\nwant substring: %s", query, want)
	}
}

func TestGenerate_IllegalOperatorForBool(t *testing.T) {
	node, err := ast.Compile(`is_active > TRUE`)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}

	g := &Generator{
		CustomerSchema: "cs_acme",
		Lookup: defsLookup(map[string]model.TagDefinition{
			"is_active": {Name: "is_active", Type: model.TagBool},
		}),
	}

	_, err = g.Generate(context.Background(), node, nil, nil, Live)
	requireGenCode(t, err, errs.CodeTagIncompatibleType)
}

func TestGenerate_UnknownTag(t *testing.T) {
	node, err := ast.Compile(`ghost == 1`)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}

	g := &Generator{CustomerSchema: "cs_acme", Lookup: defsLookup(map[string]model.TagDefinition{})}

	_, err = g.Generate(context.Background(), node, nil, nil, Live)
	requireGenCode(t, err, errs.CodeTagUnknown)
}

func requireGenCode(t *testing.T, err error, want string) {
	t.Helper()
	var fe *errs.Error
	if !errs.As(err, &fe) {
		t.Fatalf("expected *errs.Error, got %v (%T)", err, err)
	}
	if fe.Code != want {
		t.Fatalf("code = %s, want %s", fe.Code, want)
	}
}
