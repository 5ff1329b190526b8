// Package pgexec issues query plans against PostgreSQL through a pgx
// connection pool. It is the I/O boundary of the library: everything
// before it is pure compilation, and cancellation is handled here via the
// caller's context.
package pgexec

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"

	"github.com/querylab/queryset-go/queryset/pager"
	"github.com/querylab/queryset-go/queryset/pgsql"
	"github.com/querylab/queryset-go/queryset/plan"
)

type Executor struct {
	pool *pgxpool.Pool
}

func NewExecutor(pool *pgxpool.Pool) *Executor {
	return &Executor{pool: pool}
}

// FetchPage renders and runs the plan, fetching one row beyond the limit
// to detect further pages, and returns the page in the caller's requested
// order with resumable cursors.
func (e *Executor) FetchPage(ctx context.Context, p *plan.QueryPlan) (*pager.Page, error) {
	sql, args, err := pgsql.Render(p.Lookahead())
	if err != nil {
		return nil, err
	}

	conn, err := e.pool.Acquire(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "acquire connection")
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, sql, args...)
	if err != nil {
		return nil, errors.Wrap(err, "execute plan")
	}
	defer rows.Close()

	// Column names are the dotted field paths the renderer aliased them
	// to, which is exactly how pages and cursors address row values.
	fields := rows.FieldDescriptions()
	var out []map[string]any
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, errors.Wrap(err, "read row")
		}
		row := make(map[string]any, len(fields))
		for i, fd := range fields {
			row[fd.Name] = values[i]
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate rows")
	}

	return pager.Build(p, out)
}
