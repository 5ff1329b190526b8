// Package plan assembles compiled artifacts into one executable query
// plan. Planning is a pure function: it performs no I/O and produces an
// immutable description that an executor adapter consumes once.
package plan

import (
	"github.com/querylab/queryset-go/queryset/compile"
	"github.com/querylab/queryset-go/queryset/queryobject"
)

// WindowKind selects the pagination strategy of a plan.
type WindowKind int

const (
	// WindowAll fetches the entire filtered set.
	WindowAll WindowKind = iota
	// WindowSkipLimit is offset pagination: cost grows with the offset.
	// It is the weaker option, kept for callers that need absolute
	// positioning.
	WindowSkipLimit
	// WindowKeyset resumes after a cursor boundary: cost is independent of
	// how deep into the result set the cursor points.
	WindowKeyset
)

// Window describes the pagination slice of a plan.
type Window struct {
	Kind WindowKind
	Skip int
	// Limit is nil when the caller did not bound the page.
	Limit *int
	// Bound holds the keyset boundary tuple, ordered like the plan's
	// Sort. Rows strictly after the boundary in fetch order qualify.
	Bound []any
	// Reverse marks "before" pagination: the fetch runs against the
	// inverted sort and the executor must re-reverse the rows so output
	// stays in the caller's requested order.
	Reverse bool
}

// QueryPlan is the final immutable artifact handed to an executor
// adapter. Built once per request, consumed once, then discarded.
type QueryPlan struct {
	Entity string
	Table  string
	// Select is the resolved selection set. It always contains every sort
	// field, so cursors can be produced from result rows.
	Select []compile.ResolvedField
	// Joins is the deduplicated join list in first-seen order.
	Joins []compile.Join
	// Filter is the compiled predicate tree, nil when unfiltered.
	Filter compile.FilterNode
	// Sort is the fetch ordering. Equal to OutputSort except under
	// "before" pagination, where it is OutputSort reversed.
	Sort compile.SortKey
	// OutputSort is the caller's requested total order. Cursors are
	// always issued against it.
	OutputSort compile.SortKey
	Window     Window
}

// Lookahead returns a copy of the plan fetching one row beyond the limit,
// which is how executors detect whether a further page exists. Plans
// without a limit are returned unchanged.
func (p *QueryPlan) Lookahead() *QueryPlan {
	if p.Window.Limit == nil {
		return p
	}
	clone := *p
	bumped := *p.Window.Limit + 1
	clone.Window.Limit = &bumped
	return &clone
}

// KeysetFilter expands the keyset boundary into a predicate tree
// equivalent to "row is strictly after the boundary in fetch order":
//
//	(k1 > v1) OR (k1 = v1 AND k2 > v2) OR ...
//
// with ">" flipped to "<" for descending fields, and NULL regions folded
// in per each field's placement. Returns nil for non-keyset windows.
// Backends with row-value support may instead render a tuple comparison
// when the key is uniform and NULL-free; this form is always correct.
func (p *QueryPlan) KeysetFilter() compile.FilterNode {
	if p.Window.Kind != WindowKeyset {
		return nil
	}
	return keysetFilter(p.Sort, p.Window.Bound)
}

func keysetFilter(key compile.SortKey, bound []any) compile.FilterNode {
	branches := make([]compile.FilterNode, 0, len(key))
	for i, f := range key {
		strict := strictlyAfter(f, bound[i])
		if strict == nil {
			continue
		}
		clauses := make([]compile.FilterNode, 0, i+1)
		for j := 0; j < i; j++ {
			clauses = append(clauses, boundEquals(key[j], bound[j]))
		}
		clauses = append(clauses, strict)
		if len(clauses) == 1 {
			branches = append(branches, clauses[0])
		} else {
			branches = append(branches, compile.Combinator{Operator: queryobject.OpAnd, Clauses: clauses})
		}
	}
	if len(branches) == 1 {
		return branches[0]
	}
	return compile.Combinator{Operator: queryobject.OpOr, Clauses: branches}
}

// strictlyAfter admits rows strictly after the boundary on one key field
// alone. With NULLs trailing, the whole NULL region follows any non-NULL
// boundary and nothing follows a NULL one; with NULLs leading it is the
// mirror image. Returns nil when no row can qualify on this field, leaving
// only the tie-broken branches.
func strictlyAfter(f compile.SortField, v any) compile.FilterNode {
	op := queryobject.OpGt
	if f.Direction == queryobject.Desc {
		op = queryobject.OpLt
	}
	cmp := compile.Comparison{Field: f.Field, Operator: op, Value: v}
	if !f.Field.Nullable() {
		return cmp
	}
	if f.NullsFirst {
		if v == nil {
			return compile.Comparison{Field: f.Field, Operator: queryobject.OpExists, Value: true}
		}
		return cmp
	}
	if v == nil {
		return nil
	}
	return compile.Combinator{Operator: queryobject.OpOr, Clauses: []compile.FilterNode{
		cmp,
		compile.Comparison{Field: f.Field, Operator: queryobject.OpExists, Value: false},
	}}
}

// boundEquals is the tie clause for one key field: a NULL boundary value
// ties only with NULL.
func boundEquals(f compile.SortField, v any) compile.FilterNode {
	if v == nil {
		return compile.Comparison{Field: f.Field, Operator: queryobject.OpExists, Value: false}
	}
	return compile.Comparison{Field: f.Field, Operator: queryobject.OpEq, Value: v}
}
