package queryobject

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/querylab/queryset-go/queryset/queryerr"
)

func TestParse(t *testing.T) {
	t.Run("empty object", func(t *testing.T) {
		qo, err := Parse(map[string]any{})
		require.NoError(t, err)
		assert.Empty(t, qo.Select)
		assert.Empty(t, qo.Filter)
		assert.Empty(t, qo.Sort)
		assert.Nil(t, qo.Skip)
		assert.Nil(t, qo.Limit)
	})

	t.Run("full object", func(t *testing.T) {
		qo, err := Parse(map[string]any{
			"select": []any{"id", "name"},
			"filter": map[string]any{"age": map[string]any{"$gt": 18}},
			"sort":   []any{"age-", "id"},
			"skip":   float64(10),
			"limit":  20,
			"after":  "keys:abc",
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"id", "name"}, qo.Select)
		require.Len(t, qo.Filter, 1)
		assert.Equal(t, []SortField{
			{Path: "age", Direction: Desc},
			{Path: "id", Direction: Asc},
		}, qo.Sort)
		require.NotNil(t, qo.Skip)
		assert.Equal(t, 10, *qo.Skip)
		require.NotNil(t, qo.Limit)
		assert.Equal(t, 20, *qo.Limit)
		require.NotNil(t, qo.After)
		assert.Equal(t, "keys:abc", *qo.After)
	})

	t.Run("nil values are ignored", func(t *testing.T) {
		qo, err := Parse(map[string]any{"limit": nil, "filter": nil})
		require.NoError(t, err)
		assert.Nil(t, qo.Limit)
		assert.Empty(t, qo.Filter)
	})

	t.Run("unknown key", func(t *testing.T) {
		_, err := Parse(map[string]any{"offset": 5})
		var qerr *queryerr.QueryObjectError
		require.ErrorAs(t, err, &qerr)
		assert.Contains(t, qerr.Reason, "offset")
	})

	t.Run("negative skip", func(t *testing.T) {
		_, err := Parse(map[string]any{"skip": -1})
		var qerr *queryerr.QueryObjectError
		assert.ErrorAs(t, err, &qerr)
	})

	t.Run("fractional limit", func(t *testing.T) {
		_, err := Parse(map[string]any{"limit": 2.5})
		var qerr *queryerr.QueryObjectError
		assert.ErrorAs(t, err, &qerr)
	})

	t.Run("empty cursor string", func(t *testing.T) {
		_, err := Parse(map[string]any{"after": ""})
		var qerr *queryerr.QueryObjectError
		assert.ErrorAs(t, err, &qerr)
	})

	t.Run("filter must be an object", func(t *testing.T) {
		_, err := Parse(map[string]any{"filter": []any{}})
		var qerr *queryerr.QueryObjectError
		assert.ErrorAs(t, err, &qerr)
	})
}

func TestParseFilter(t *testing.T) {
	t.Run("shorthand eq", func(t *testing.T) {
		conds, err := ParseFilter(map[string]any{"age": 18})
		require.NoError(t, err)
		require.Len(t, conds, 1)
		assert.Equal(t, FieldCondition{Path: "age", Operator: OpEq, Value: 18}, conds[0])
	})

	t.Run("explicit operators", func(t *testing.T) {
		conds, err := ParseFilter(map[string]any{
			"age": map[string]any{"$gt": 18, "$lte": 65},
		})
		require.NoError(t, err)
		require.Len(t, conds, 2)
		ops := map[string]any{}
		for _, c := range conds {
			fc := c.(FieldCondition)
			assert.Equal(t, "age", fc.Path)
			ops[fc.Operator] = fc.Value
		}
		assert.Equal(t, map[string]any{OpGt: 18, OpLte: 65}, ops)
	})

	t.Run("same-level fields are separate conditions", func(t *testing.T) {
		conds, err := ParseFilter(map[string]any{"age": 18, "name": "alice"})
		require.NoError(t, err)
		assert.Len(t, conds, 2)
	})

	t.Run("combinator", func(t *testing.T) {
		conds, err := ParseFilter(map[string]any{
			"$or": []any{
				map[string]any{"age": map[string]any{"$gt": 18}},
				map[string]any{"name": "alice"},
			},
		})
		require.NoError(t, err)
		require.Len(t, conds, 1)
		or := conds[0].(BoolCondition)
		assert.Equal(t, OpOr, or.Operator)
		assert.Len(t, or.Clauses, 2)
	})

	t.Run("not is unary", func(t *testing.T) {
		conds, err := ParseFilter(map[string]any{
			"$not": map[string]any{"age": map[string]any{"$lt": 18}},
		})
		require.NoError(t, err)
		not := conds[0].(BoolCondition)
		assert.Equal(t, OpNot, not.Operator)
		require.Len(t, not.Clauses, 1)
		assert.Equal(t, FieldCondition{Path: "age", Operator: OpLt, Value: 18}, not.Clauses[0])
	})

	t.Run("not rejects array operand", func(t *testing.T) {
		_, err := ParseFilter(map[string]any{"$not": []any{}})
		var merr *queryerr.MalformedFilterError
		assert.ErrorAs(t, err, &merr)
	})

	t.Run("and rejects object operand", func(t *testing.T) {
		_, err := ParseFilter(map[string]any{"$and": map[string]any{"a": 1}})
		var merr *queryerr.MalformedFilterError
		assert.ErrorAs(t, err, &merr)
	})

	t.Run("unknown operator", func(t *testing.T) {
		_, err := ParseFilter(map[string]any{"age": map[string]any{"$near": 5}})
		var uerr *queryerr.UnknownOperatorError
		require.ErrorAs(t, err, &uerr)
		assert.Equal(t, "$near", uerr.Operator)
		assert.Equal(t, "age", uerr.Field)
	})

	t.Run("unknown combinator", func(t *testing.T) {
		_, err := ParseFilter(map[string]any{"$xor": []any{}})
		var uerr *queryerr.UnknownOperatorError
		assert.ErrorAs(t, err, &uerr)
	})

	t.Run("combinator under field", func(t *testing.T) {
		_, err := ParseFilter(map[string]any{"age": map[string]any{"$and": []any{}}})
		var merr *queryerr.MalformedFilterError
		assert.ErrorAs(t, err, &merr)
	})

	t.Run("empty operator object", func(t *testing.T) {
		_, err := ParseFilter(map[string]any{"age": map[string]any{}})
		var merr *queryerr.MalformedFilterError
		assert.ErrorAs(t, err, &merr)
	})

	t.Run("non-operator key under field", func(t *testing.T) {
		_, err := ParseFilter(map[string]any{"age": map[string]any{"gt": 18}})
		var merr *queryerr.MalformedFilterError
		assert.ErrorAs(t, err, &merr)
	})
}

func TestExportFilter(t *testing.T) {
	t.Run("round trip", func(t *testing.T) {
		in := map[string]any{
			"age": map[string]any{"$gt": 18},
			"$or": []any{
				map[string]any{"name": map[string]any{"$eq": "alice"}},
				map[string]any{"login": map[string]any{"$prefix": "a"}},
			},
		}
		conds, err := ParseFilter(in)
		require.NoError(t, err)
		assert.Equal(t, in, ExportFilter(conds))
	})

	t.Run("shorthand exports explicit", func(t *testing.T) {
		conds, err := ParseFilter(map[string]any{"age": 18})
		require.NoError(t, err)
		assert.Equal(t, map[string]any{"age": map[string]any{"$eq": 18}}, ExportFilter(conds))
	})
}

func TestParseSort(t *testing.T) {
	t.Run("suffixes", func(t *testing.T) {
		fields, err := ParseSort([]string{"age-", "name+", "id"})
		require.NoError(t, err)
		assert.Equal(t, []SortField{
			{Path: "age", Direction: Desc},
			{Path: "name", Direction: Asc},
			{Path: "id", Direction: Asc},
		}, fields)
	})

	t.Run("empty token", func(t *testing.T) {
		_, err := ParseSort([]string{""})
		var qerr *queryerr.QueryObjectError
		assert.ErrorAs(t, err, &qerr)
	})

	t.Run("bare suffix", func(t *testing.T) {
		_, err := ParseSort([]string{"-"})
		var qerr *queryerr.QueryObjectError
		assert.ErrorAs(t, err, &qerr)
	})

	t.Run("export", func(t *testing.T) {
		assert.Equal(t, "age-", SortField{Path: "age", Direction: Desc}.Export())
		assert.Equal(t, "id+", SortField{Path: "id", Direction: Asc}.Export())
	})
}

func TestDirectionReversed(t *testing.T) {
	assert.Equal(t, Desc, Asc.Reversed())
	assert.Equal(t, Asc, Desc.Reversed())
}
