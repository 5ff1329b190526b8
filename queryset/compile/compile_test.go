package compile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/querylab/queryset-go/queryset/queryerr"
	"github.com/querylab/queryset-go/queryset/queryobject"
	"github.com/querylab/queryset-go/queryset/schema"
	"github.com/querylab/queryset-go/queryset/utils/testutils"
)

func newResolver(t *testing.T) *Resolver {
	t.Helper()
	reg := testutils.UserSchema()
	require.NoError(t, reg.Validate())
	return NewResolver(reg, "user")
}

func TestResolve(t *testing.T) {
	t.Run("plain field", func(t *testing.T) {
		r := newResolver(t)
		f, err := r.Resolve("age", "filter")
		require.NoError(t, err)
		assert.Equal(t, "age", f.Path)
		assert.Equal(t, "user", f.Entity)
		assert.Equal(t, "", f.JoinPath)
		assert.Equal(t, schema.TypeInt, f.Type)
		assert.False(t, f.IsJSON())
		assert.Empty(t, r.Joins())
	})

	t.Run("field through relationship", func(t *testing.T) {
		r := newResolver(t)
		f, err := r.Resolve("articles.title", "select")
		require.NoError(t, err)
		assert.Equal(t, "article", f.Entity)
		assert.Equal(t, "articles", f.JoinPath)
		assert.Equal(t, schema.TypeString, f.Type)

		joins := r.Joins()
		require.Len(t, joins, 1)
		assert.Equal(t, "articles", joins[0].Path)
		assert.Equal(t, "", joins[0].ParentPath)
		assert.Equal(t, "articles", joins[0].TargetTable)
		assert.True(t, joins[0].Rel.ToMany)
	})

	t.Run("joins deduplicate by path", func(t *testing.T) {
		r := newResolver(t)
		_, err := r.Resolve("articles.title", "select")
		require.NoError(t, err)
		_, err = r.Resolve("articles.published_at", "select")
		require.NoError(t, err)
		assert.Len(t, r.Joins(), 1)
	})

	t.Run("nested relationship chain", func(t *testing.T) {
		r := newResolver(t)
		f, err := r.Resolve("articles.author.name", "select")
		require.NoError(t, err)
		assert.Equal(t, "user", f.Entity)
		assert.Equal(t, "articles.author", f.JoinPath)

		joins := r.Joins()
		require.Len(t, joins, 2)
		assert.Equal(t, "articles", joins[0].Path)
		assert.Equal(t, "articles.author", joins[1].Path)
		assert.Equal(t, "articles", joins[1].ParentPath)
	})

	t.Run("declared json leaf", func(t *testing.T) {
		r := newResolver(t)
		f, err := r.Resolve("meta.grade", "filter")
		require.NoError(t, err)
		assert.True(t, f.IsJSON())
		assert.Equal(t, []string{"grade"}, f.JSONPath)
		assert.Equal(t, schema.TypeInt, f.Type)
		assert.Equal(t, "meta", f.Field.Name)
	})

	t.Run("undeclared json leaf is any", func(t *testing.T) {
		r := newResolver(t)
		f, err := r.Resolve("meta.color.hue", "filter")
		require.NoError(t, err)
		assert.Equal(t, []string{"color", "hue"}, f.JSONPath)
		assert.Equal(t, schema.TypeAny, f.Type)
	})

	t.Run("unknown field", func(t *testing.T) {
		r := newResolver(t)
		_, err := r.Resolve("salary", "filter")
		var uerr *queryerr.UnknownFieldError
		require.ErrorAs(t, err, &uerr)
		assert.Equal(t, "user", uerr.Entity)
		assert.Equal(t, "salary", uerr.Field)
		assert.Equal(t, "filter", uerr.Where)
	})

	t.Run("unknown field on related entity", func(t *testing.T) {
		r := newResolver(t)
		_, err := r.Resolve("articles.body", "select")
		var uerr *queryerr.UnknownFieldError
		require.ErrorAs(t, err, &uerr)
		assert.Equal(t, "article", uerr.Entity)
	})

	t.Run("bare relationship is not a leaf", func(t *testing.T) {
		r := newResolver(t)
		_, err := r.Resolve("articles", "select")
		var perr *queryerr.InvalidPathError
		assert.ErrorAs(t, err, &perr)
	})

	t.Run("scalar cannot be traversed", func(t *testing.T) {
		r := newResolver(t)
		_, err := r.Resolve("age.digits", "filter")
		var perr *queryerr.InvalidPathError
		require.ErrorAs(t, err, &perr)
		assert.Equal(t, "age", perr.Segment)
	})
}

func TestCompileFilter(t *testing.T) {
	compileRaw := func(t *testing.T, raw map[string]any) (FilterNode, error) {
		t.Helper()
		conds, err := queryobject.ParseFilter(raw)
		require.NoError(t, err)
		return CompileFilter(newResolver(t), conds)
	}

	t.Run("empty filter", func(t *testing.T) {
		node, err := CompileFilter(newResolver(t), nil)
		require.NoError(t, err)
		assert.Nil(t, node)
	})

	t.Run("single comparison with coercion", func(t *testing.T) {
		node, err := compileRaw(t, map[string]any{"age": map[string]any{"$gt": float64(18)}})
		require.NoError(t, err)
		cmp := node.(Comparison)
		assert.Equal(t, queryobject.OpGt, cmp.Operator)
		assert.Equal(t, int64(18), cmp.Value)
	})

	t.Run("multiple conditions become and", func(t *testing.T) {
		node, err := compileRaw(t, map[string]any{
			"age":  map[string]any{"$gte": 18},
			"name": "alice",
		})
		require.NoError(t, err)
		and := node.(Combinator)
		assert.Equal(t, queryobject.OpAnd, and.Operator)
		assert.Len(t, and.Clauses, 2)
	})

	t.Run("in list elements coerced", func(t *testing.T) {
		node, err := compileRaw(t, map[string]any{"age": map[string]any{"$in": []any{float64(1), 2}}})
		require.NoError(t, err)
		cmp := node.(Comparison)
		assert.Equal(t, []any{int64(1), int64(2)}, cmp.Value)
	})

	t.Run("in requires an array", func(t *testing.T) {
		_, err := compileRaw(t, map[string]any{"age": map[string]any{"$in": 5}})
		var merr *queryerr.MalformedFilterError
		assert.ErrorAs(t, err, &merr)
	})

	t.Run("exists requires bool", func(t *testing.T) {
		_, err := compileRaw(t, map[string]any{"rating": map[string]any{"$exists": 1}})
		var terr *queryerr.TypeMismatchError
		assert.ErrorAs(t, err, &terr)
	})

	t.Run("size requires int", func(t *testing.T) {
		_, err := compileRaw(t, map[string]any{"tags": map[string]any{"$size": "two"}})
		var terr *queryerr.TypeMismatchError
		assert.ErrorAs(t, err, &terr)
	})

	t.Run("value type mismatch", func(t *testing.T) {
		_, err := compileRaw(t, map[string]any{"age": map[string]any{"$gt": "old"}})
		var terr *queryerr.TypeMismatchError
		require.ErrorAs(t, err, &terr)
		assert.Equal(t, "age", terr.Field)
	})

	t.Run("range on json container rejected", func(t *testing.T) {
		_, err := compileRaw(t, map[string]any{"meta": map[string]any{"$gt": 1}})
		var terr *queryerr.TypeMismatchError
		assert.ErrorAs(t, err, &terr)
	})

	t.Run("range on declared json leaf allowed", func(t *testing.T) {
		node, err := compileRaw(t, map[string]any{"meta.grade": map[string]any{"$gte": 3}})
		require.NoError(t, err)
		cmp := node.(Comparison)
		assert.Equal(t, int64(3), cmp.Value)
	})

	t.Run("range on undeclared json leaf rejected", func(t *testing.T) {
		_, err := compileRaw(t, map[string]any{"meta.color": map[string]any{"$gt": 1}})
		var terr *queryerr.TypeMismatchError
		assert.ErrorAs(t, err, &terr)
	})

	t.Run("string ordering is supported", func(t *testing.T) {
		node, err := compileRaw(t, map[string]any{"name": map[string]any{"$gt": "a"}})
		require.NoError(t, err)
		assert.Equal(t, "a", node.(Comparison).Value)
	})

	t.Run("prefix on string only", func(t *testing.T) {
		_, err := compileRaw(t, map[string]any{"name": map[string]any{"$prefix": "al"}})
		require.NoError(t, err)

		_, err = compileRaw(t, map[string]any{"age": map[string]any{"$prefix": "1"}})
		var terr *queryerr.TypeMismatchError
		assert.ErrorAs(t, err, &terr)
	})

	t.Run("array column operators", func(t *testing.T) {
		node, err := compileRaw(t, map[string]any{"tags": map[string]any{"$contains": "go"}})
		require.NoError(t, err)
		cmp := node.(Comparison)
		assert.Equal(t, []any{"go"}, cmp.Value)

		_, err = compileRaw(t, map[string]any{"tags": map[string]any{"$gt": "go"}})
		var terr *queryerr.TypeMismatchError
		assert.ErrorAs(t, err, &terr)
	})

	t.Run("combinator compiles recursively", func(t *testing.T) {
		node, err := compileRaw(t, map[string]any{
			"$or": []any{
				map[string]any{"age": map[string]any{"$lt": 18}},
				map[string]any{"age": map[string]any{"$gt": 65}},
			},
		})
		require.NoError(t, err)
		or := node.(Combinator)
		assert.Equal(t, queryobject.OpOr, or.Operator)
		require.Len(t, or.Clauses, 2)
		assert.Equal(t, int64(18), or.Clauses[0].(Comparison).Value)
	})

	t.Run("filter through relationship records join", func(t *testing.T) {
		r := newResolver(t)
		conds, err := queryobject.ParseFilter(map[string]any{"articles.title": "go"})
		require.NoError(t, err)
		_, err = CompileFilter(r, conds)
		require.NoError(t, err)
		assert.Len(t, r.Joins(), 1)
	})
}

func TestCompileSort(t *testing.T) {
	parse := func(t *testing.T, tokens ...string) []queryobject.SortField {
		t.Helper()
		fields, err := queryobject.ParseSort(tokens)
		require.NoError(t, err)
		return fields
	}

	t.Run("appends id tie-breaker", func(t *testing.T) {
		key, err := CompileSort(newResolver(t), parse(t, "age-"))
		require.NoError(t, err)
		require.Len(t, key, 2)
		assert.Equal(t, "age", key[0].Field.Path)
		assert.Equal(t, queryobject.Desc, key[0].Direction)
		assert.Equal(t, "id", key[1].Field.Path)
		assert.Equal(t, queryobject.Asc, key[1].Direction)
	})

	t.Run("id present is not duplicated", func(t *testing.T) {
		key, err := CompileSort(newResolver(t), parse(t, "id-"))
		require.NoError(t, err)
		require.Len(t, key, 1)
		assert.Equal(t, queryobject.Desc, key[0].Direction)
	})

	t.Run("empty sort is id ascending", func(t *testing.T) {
		key, err := CompileSort(newResolver(t), nil)
		require.NoError(t, err)
		require.Len(t, key, 1)
		assert.Equal(t, "id", key[0].Field.Path)
	})

	t.Run("duplicate field rejected", func(t *testing.T) {
		_, err := CompileSort(newResolver(t), parse(t, "age+", "age-"))
		var derr *queryerr.DuplicateSortFieldError
		require.ErrorAs(t, err, &derr)
		assert.Equal(t, "age", derr.Field)
	})

	t.Run("related id does not satisfy tie-breaker", func(t *testing.T) {
		key, err := CompileSort(newResolver(t), parse(t, "articles.published_at-"))
		require.NoError(t, err)
		require.Len(t, key, 2)
		assert.Equal(t, "id", key[1].Field.Path)
		assert.Equal(t, "", key[1].Field.JoinPath)
	})

	t.Run("uniform and reversed", func(t *testing.T) {
		key, err := CompileSort(newResolver(t), parse(t, "age-", "id-"))
		require.NoError(t, err)
		assert.True(t, key.Uniform())

		mixed, err := CompileSort(newResolver(t), parse(t, "age-"))
		require.NoError(t, err)
		assert.False(t, mixed.Uniform())

		rev := mixed.Reversed()
		assert.Equal(t, queryobject.Asc, rev[0].Direction)
		assert.Equal(t, queryobject.Desc, rev[1].Direction)
		assert.Equal(t, mixed.Paths(), rev.Paths())
		assert.True(t, rev[0].NullsFirst)
		assert.False(t, rev.Reversed()[0].NullsFirst)
	})
}
