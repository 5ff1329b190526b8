// Package graphql derives query objects from GraphQL resolver input, so a
// resolver can hand its field straight to the planner: the selection set
// becomes the select list and the field's arguments carry filter, sort
// and pagination.
package graphql

import (
	"strings"

	"github.com/vektah/gqlparser/v2/ast"

	"github.com/querylab/queryset-go/queryset/queryerr"
	"github.com/querylab/queryset-go/queryset/queryobject"
)

// Arguments recognized on a queryable field. A single "query" argument
// holding the whole query object is also accepted; explicit arguments
// override its entries.
var knownArgs = map[string]bool{
	"filter": true, "sort": true, "skip": true,
	"limit": true, "before": true, "after": true,
}

// FromField builds a QueryObject for one resolved GraphQL field. vars are
// the operation's variable values.
func FromField(field *ast.Field, vars map[string]any) (*queryobject.QueryObject, error) {
	raw := make(map[string]any)

	for _, arg := range field.Arguments {
		if arg.Name != "query" {
			continue
		}
		value, err := arg.Value.Value(vars)
		if err != nil {
			return nil, &queryerr.QueryObjectError{Reason: err.Error()}
		}
		if value == nil {
			continue
		}
		m, ok := value.(map[string]any)
		if !ok {
			return nil, &queryerr.QueryObjectError{Reason: `"query" argument must be an object`}
		}
		for k, v := range m {
			raw[k] = v
		}
	}

	for _, arg := range field.Arguments {
		if !knownArgs[arg.Name] {
			continue
		}
		value, err := arg.Value.Value(vars)
		if err != nil {
			return nil, &queryerr.QueryObjectError{Reason: err.Error()}
		}
		if value != nil {
			raw[arg.Name] = value
		}
	}

	if selected := SelectedPaths(field.SelectionSet); len(selected) > 0 {
		raw["select"] = selected
	}

	return queryobject.Parse(raw)
}

// SelectedPaths flattens a selection set into dotted field paths:
// "books { title }" yields "books.title". Introspection fields and
// fragments' __typename probes are skipped; fragment spreads and inline
// fragments are flattened into their parent.
func SelectedPaths(set ast.SelectionSet) []string {
	var out []string
	collectPaths(set, nil, &out)
	return out
}

func collectPaths(set ast.SelectionSet, prefix []string, out *[]string) {
	for _, sel := range set {
		switch s := sel.(type) {
		case *ast.Field:
			if strings.HasPrefix(s.Name, "__") {
				continue
			}
			path := append(append([]string(nil), prefix...), s.Name)
			if len(s.SelectionSet) == 0 {
				*out = append(*out, strings.Join(path, "."))
			} else {
				collectPaths(s.SelectionSet, path, out)
			}
		case *ast.FragmentSpread:
			if s.Definition != nil {
				collectPaths(s.Definition.SelectionSet, prefix, out)
			}
		case *ast.InlineFragment:
			collectPaths(s.SelectionSet, prefix, out)
		}
	}
}
