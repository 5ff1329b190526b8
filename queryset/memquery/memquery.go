package memquery

import (
	"sort"

	"github.com/querylab/queryset-go/queryset/pager"
	"github.com/querylab/queryset-go/queryset/plan"
)

// FetchPage executes a plan against an in-memory row set and returns one
// page in the caller's requested order, with resumable cursors. The
// source slice is never mutated.
//
// Join semantics are out of scope here: rows are expected to already
// carry values under every dotted path the plan references, the way a
// pre-joined fixture or a denormalized cache would.
func FetchPage(p *plan.QueryPlan, source []map[string]any) (*pager.Page, error) {
	rows := make([]map[string]any, 0, len(source))
	for _, row := range source {
		if p.Filter != nil {
			ok, err := Matches(p.Filter, row)
			if err != nil {
				return nil, err
			}
			if !ok {
				continue
			}
		}
		rows = append(rows, row)
	}

	// Fetch order: for backward pagination this is the caller's order
	// reversed, exactly like the SQL backend.
	sort.SliceStable(rows, func(i, j int) bool {
		return CompareRows(p.Sort, rows[i], rows[j]) < 0
	})

	if keyset := p.KeysetFilter(); keyset != nil {
		after := rows[:0:0]
		for _, row := range rows {
			ok, err := Matches(keyset, row)
			if err != nil {
				return nil, err
			}
			if ok {
				after = append(after, row)
			}
		}
		rows = after
	}

	if p.Window.Kind == plan.WindowSkipLimit && p.Window.Skip > 0 {
		if p.Window.Skip >= len(rows) {
			rows = nil
		} else {
			rows = rows[p.Window.Skip:]
		}
	}

	if lookahead := p.Lookahead().Window.Limit; lookahead != nil && len(rows) > *lookahead {
		rows = rows[:*lookahead]
	}

	return pager.Build(p, rows)
}
