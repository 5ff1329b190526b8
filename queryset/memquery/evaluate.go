// Package memquery executes query plans against in-memory row sets. It
// mirrors the SQL backend's semantics — operator behavior, NULL handling,
// ordering — which makes it a reference backend for tests and a fixture
// store for callers that keep small data sets in process.
package memquery

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/querylab/queryset-go/queryset/compile"
	"github.com/querylab/queryset-go/queryset/queryobject"
)

// Matches evaluates a predicate tree against one row. Rows are keyed by
// dotted field path. Comparisons against absent or NULL values follow SQL
// semantics: they do not match, except for $exists and the distinct-from
// reading of $ne.
func Matches(node compile.FilterNode, row map[string]any) (bool, error) {
	switch n := node.(type) {
	case compile.Comparison:
		return matchComparison(n, row)
	case compile.Combinator:
		return matchCombinator(n, row)
	default:
		return false, fmt.Errorf("unsupported filter node %T", node)
	}
}

func matchCombinator(n compile.Combinator, row map[string]any) (bool, error) {
	switch n.Operator {
	case queryobject.OpAnd, queryobject.OpNot:
		result := true
		for _, clause := range n.Clauses {
			ok, err := Matches(clause, row)
			if err != nil {
				return false, err
			}
			result = result && ok
		}
		if n.Operator == queryobject.OpNot {
			return !result, nil
		}
		return result, nil
	case queryobject.OpOr, queryobject.OpNor:
		result := false
		for _, clause := range n.Clauses {
			ok, err := Matches(clause, row)
			if err != nil {
				return false, err
			}
			result = result || ok
		}
		if n.Operator == queryobject.OpNor {
			return !result, nil
		}
		return result, nil
	default:
		return false, fmt.Errorf("unsupported combinator %q", n.Operator)
	}
}

func matchComparison(c compile.Comparison, row map[string]any) (bool, error) {
	raw := row[c.Field.Path]

	switch c.Operator {
	case queryobject.OpExists:
		want := c.Value.(bool)
		return (raw != nil) == want, nil
	case queryobject.OpNe:
		// IS DISTINCT FROM: NULL is distinct from every non-NULL value.
		equal, err := valuesEqual(c.Field, raw, c.Value)
		if err != nil {
			return false, err
		}
		return !equal, nil
	}

	if raw == nil {
		return false, nil
	}

	isArray := c.Field.Field.Array && !c.Field.IsJSON()

	switch c.Operator {
	case queryobject.OpEq:
		if isArray {
			if _, ok := c.Value.([]any); !ok {
				// Scalar against an array column matches any element.
				return arrayAny(c.Field, raw, c.Value)
			}
		}
		return valuesEqual(c.Field, raw, c.Value)

	case queryobject.OpGt, queryobject.OpGte, queryobject.OpLt, queryobject.OpLte:
		cmp, ok, err := compareCoerced(c.Field, raw, c.Value)
		if err != nil || !ok {
			return false, err
		}
		switch c.Operator {
		case queryobject.OpGt:
			return cmp > 0, nil
		case queryobject.OpGte:
			return cmp >= 0, nil
		case queryobject.OpLt:
			return cmp < 0, nil
		default:
			return cmp <= 0, nil
		}

	case queryobject.OpPrefix:
		s, ok := raw.(string)
		if !ok {
			return false, nil
		}
		return strings.HasPrefix(s, c.Value.(string)), nil

	case queryobject.OpIn:
		list := c.Value.([]any)
		if isArray {
			return arrayOverlap(c.Field, raw, list)
		}
		for _, candidate := range list {
			equal, err := valuesEqual(c.Field, raw, candidate)
			if err != nil {
				return false, err
			}
			if equal {
				return true, nil
			}
		}
		return false, nil

	case queryobject.OpNotIn:
		list := c.Value.([]any)
		if isArray {
			overlap, err := arrayOverlap(c.Field, raw, list)
			return !overlap, err
		}
		for _, candidate := range list {
			equal, err := valuesEqual(c.Field, raw, candidate)
			if err != nil {
				return false, err
			}
			if equal {
				return false, nil
			}
		}
		return true, nil

	case queryobject.OpContains:
		if isArray {
			return arrayContainsAll(c.Field, raw, c.Value.([]any))
		}
		return jsonContains(raw, c.Value), nil

	case queryobject.OpSize:
		elems, err := elements(raw)
		if err != nil {
			return false, nil
		}
		return int64(len(elems)) == c.Value.(int64), nil

	default:
		return false, fmt.Errorf("unsupported operator %q", c.Operator)
	}
}

// elements normalizes an array column value into []any.
func elements(v any) ([]any, error) {
	if list, ok := v.([]any); ok {
		return list, nil
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice {
		return nil, fmt.Errorf("not an array value: %T", v)
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, nil
}

func arrayAny(f compile.ResolvedField, raw, value any) (bool, error) {
	elems, err := elements(raw)
	if err != nil {
		return false, nil
	}
	for _, e := range elems {
		equal, err := valuesEqual(f, e, value)
		if err != nil {
			return false, err
		}
		if equal {
			return true, nil
		}
	}
	return false, nil
}

func arrayOverlap(f compile.ResolvedField, raw any, values []any) (bool, error) {
	for _, v := range values {
		ok, err := arrayAny(f, raw, v)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

func arrayContainsAll(f compile.ResolvedField, raw any, values []any) (bool, error) {
	for _, v := range values {
		ok, err := arrayAny(f, raw, v)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

// jsonContains implements jsonb @> semantics: every key/element of want
// must be present in got, recursively.
func jsonContains(got, want any) bool {
	switch w := want.(type) {
	case map[string]any:
		g, ok := got.(map[string]any)
		if !ok {
			return false
		}
		for k, wv := range w {
			gv, present := g[k]
			if !present || !jsonContains(gv, wv) {
				return false
			}
		}
		return true
	case []any:
		g, ok := got.([]any)
		if !ok {
			return false
		}
		for _, wv := range w {
			found := false
			for _, gv := range g {
				if jsonContains(gv, wv) {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		}
		return true
	default:
		if cmp, ok := compareScalars(got, want); ok {
			return cmp == 0
		}
		return reflect.DeepEqual(got, want)
	}
}

func valuesEqual(f compile.ResolvedField, raw, value any) (bool, error) {
	if raw == nil || value == nil {
		return raw == nil && value == nil, nil
	}
	if cmp, ok, err := compareCoerced(f, raw, value); err == nil && ok {
		return cmp == 0, nil
	}
	return reflect.DeepEqual(raw, value), nil
}

// compareCoerced coerces the row value to the field's type and compares
// it with the (already canonical) filter value.
func compareCoerced(f compile.ResolvedField, raw, value any) (int, bool, error) {
	left, err := f.Type.Coerce(raw)
	if err != nil {
		// The row holds something the declared type cannot represent;
		// treat as incomparable rather than failing the whole query.
		return 0, false, nil
	}
	cmp, ok := compareScalars(left, value)
	return cmp, ok, nil
}

// compareScalars compares two canonical scalar values. The bool result is
// false when the pair has no defined order.
func compareScalars(a, b any) (int, bool) {
	switch left := a.(type) {
	case int64:
		switch right := b.(type) {
		case int64:
			return compareOrdered(left, right), true
		case float64:
			return compareOrdered(float64(left), right), true
		}
	case float64:
		switch right := b.(type) {
		case float64:
			return compareOrdered(left, right), true
		case int64:
			return compareOrdered(left, float64(right)), true
		}
	case string:
		if right, ok := b.(string); ok {
			return strings.Compare(left, right), true
		}
	case bool:
		if right, ok := b.(bool); ok {
			return compareOrdered(b2i(left), b2i(right)), true
		}
	case time.Time:
		if right, ok := b.(time.Time); ok {
			return left.Compare(right), true
		}
	case uuid.UUID:
		if right, ok := b.(uuid.UUID); ok {
			return strings.Compare(left.String(), right.String()), true
		}
	}
	return 0, false
}

func compareOrdered[T int64 | float64](a, b T) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func b2i(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

// CompareRows orders two rows under a sort key. NULLs sort last in either
// direction, or first on an inverted key, matching the SQL the renderer
// emits.
func CompareRows(key compile.SortKey, a, b map[string]any) int {
	for _, f := range key {
		va, vb := a[f.Field.Path], b[f.Field.Path]
		if va == nil || vb == nil {
			if va == nil && vb == nil {
				continue
			}
			null := 1
			if f.NullsFirst {
				null = -1
			}
			if va == nil {
				return null
			}
			return -null
		}
		ca, errA := f.Field.Type.Coerce(va)
		cb, errB := f.Field.Type.Coerce(vb)
		if errA != nil || errB != nil {
			continue
		}
		cmp, ok := compareScalars(ca, cb)
		if !ok || cmp == 0 {
			continue
		}
		if f.Direction == queryobject.Desc {
			return -cmp
		}
		return cmp
	}
	return 0
}
