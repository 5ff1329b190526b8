// Package pager turns fetched row windows into pages with resumable
// cursors. Executor adapters fetch one row beyond the requested limit;
// the extra row proves a further page exists and is dropped from the
// output.
package pager

import (
	"github.com/querylab/queryset-go/queryset/cursor"
	"github.com/querylab/queryset-go/queryset/plan"
)

// Page is one window of results plus the cursors to reach its neighbors.
// Rows are keyed by dotted field path and always come back in the
// caller's requested sort order, for both forward and backward fetches.
type Page struct {
	Rows    []map[string]any
	HasNext bool
	HasPrev bool
	// Next resumes after the last row of this page; Prev resumes before
	// the first. Empty when the corresponding page does not exist.
	Next string
	Prev string
}

// Build assembles a Page from rows fetched with plan.Lookahead. rows must
// be in fetch order; Build re-reverses them for backward windows.
func Build(p *plan.QueryPlan, rows []map[string]any) (*Page, error) {
	limit := p.Window.Limit
	lookaheadHit := false
	if limit != nil && len(rows) > *limit {
		rows = rows[:*limit]
		lookaheadHit = true
	}

	if p.Window.Reverse {
		reverse(rows)
	}

	page := &Page{Rows: rows}
	if p.Window.Reverse {
		// Backward fetch: the lookahead probes for rows before the
		// window, and the cursor we arrived with proves rows after it.
		page.HasPrev = lookaheadHit
		page.HasNext = true
	} else {
		page.HasNext = lookaheadHit
		page.HasPrev = p.Window.Kind == plan.WindowKeyset ||
			(p.Window.Kind == plan.WindowSkipLimit && p.Window.Skip > 0)
	}

	if len(rows) == 0 {
		// An empty backward window still has rows after it: at least the
		// boundary row the cursor was issued from. Only a forward window
		// can prove the set is exhausted.
		if !p.Window.Reverse {
			page.HasNext = false
		}
		return page, nil
	}

	// Cursors always encode positions in the caller's order, so a token
	// issued from a backward page works for a later forward request.
	if page.HasNext {
		token, err := cursor.Encode(p.Entity, p.OutputSort, rows[len(rows)-1])
		if err != nil {
			return nil, err
		}
		page.Next = token
	}
	if page.HasPrev {
		token, err := cursor.Encode(p.Entity, p.OutputSort, rows[0])
		if err != nil {
			return nil, err
		}
		page.Prev = token
	}
	return page, nil
}

func reverse(rows []map[string]any) {
	for i, j := 0, len(rows)-1; i < j; i, j = i+1, j-1 {
		rows[i], rows[j] = rows[j], rows[i]
	}
}
