package graphql

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/parser"

	"github.com/querylab/queryset-go/queryset/queryobject"
)

func parseField(t *testing.T, query string) *ast.Field {
	t.Helper()
	doc, err := parser.ParseQuery(&ast.Source{Input: query})
	require.NoError(t, err)
	require.NotEmpty(t, doc.Operations)
	field, ok := doc.Operations[0].SelectionSet[0].(*ast.Field)
	require.True(t, ok)
	return field
}

func TestFromField(t *testing.T) {
	t.Run("selection set becomes select", func(t *testing.T) {
		field := parseField(t, `{
			users(limit: 10, sort: ["age-"]) {
				id
				name
				articles { title author { login } }
				__typename
			}
		}`)

		qo, err := FromField(field, nil)
		require.NoError(t, err)
		assert.Equal(t, []string{"id", "name", "articles.title", "articles.author.login"}, qo.Select)
		require.NotNil(t, qo.Limit)
		assert.Equal(t, 10, *qo.Limit)
		assert.Equal(t, []queryobject.SortField{{Path: "age", Direction: queryobject.Desc}}, qo.Sort)
	})

	t.Run("filter passed through variables", func(t *testing.T) {
		// Operator sigils are not valid GraphQL names, so filters always
		// arrive as variable values.
		field := parseField(t, `query($f: Filter) { users(filter: $f) { id } }`)
		qo, err := FromField(field, map[string]any{
			"f": map[string]any{"age": map[string]any{"$gt": float64(18)}},
		})
		require.NoError(t, err)
		require.Len(t, qo.Filter, 1)
		fc := qo.Filter[0].(queryobject.FieldCondition)
		assert.Equal(t, "age", fc.Path)
		assert.Equal(t, queryobject.OpGt, fc.Operator)
	})

	t.Run("query argument carries the whole object", func(t *testing.T) {
		field := parseField(t, `query($q: Query) { users(query: $q) { id } }`)
		qo, err := FromField(field, map[string]any{
			"q": map[string]any{"limit": float64(5), "sort": []any{"name+"}},
		})
		require.NoError(t, err)
		require.NotNil(t, qo.Limit)
		assert.Equal(t, 5, *qo.Limit)
	})

	t.Run("explicit arguments override query entries", func(t *testing.T) {
		field := parseField(t, `query($q: Query) { users(query: $q, limit: 3) { id } }`)
		qo, err := FromField(field, map[string]any{
			"q": map[string]any{"limit": float64(5)},
		})
		require.NoError(t, err)
		require.NotNil(t, qo.Limit)
		assert.Equal(t, 3, *qo.Limit)
	})

	t.Run("query argument must be an object", func(t *testing.T) {
		field := parseField(t, `query($q: Query) { users(query: $q) { id } }`)
		_, err := FromField(field, map[string]any{"q": "nope"})
		assert.Error(t, err)
	})

	t.Run("unrelated arguments are ignored", func(t *testing.T) {
		field := parseField(t, `{ users(first: 3) { id } }`)
		qo, err := FromField(field, nil)
		require.NoError(t, err)
		assert.Nil(t, qo.Limit)
	})

	t.Run("without selections select stays empty", func(t *testing.T) {
		field := parseField(t, `{ users(limit: 1) }`)
		qo, err := FromField(field, nil)
		require.NoError(t, err)
		assert.Empty(t, qo.Select)
	})
}

func TestSelectedPaths(t *testing.T) {
	t.Run("inline fragments flatten", func(t *testing.T) {
		field := parseField(t, `{
			users {
				id
				... on User { login }
			}
		}`)
		assert.Equal(t, []string{"id", "login"}, SelectedPaths(field.SelectionSet))
	})

	t.Run("introspection skipped", func(t *testing.T) {
		field := parseField(t, `{ users { __typename id } }`)
		assert.Equal(t, []string{"id"}, SelectedPaths(field.SelectionSet))
	})
}
