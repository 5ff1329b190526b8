// Package pgsql renders a QueryPlan into one parameterized PostgreSQL
// SELECT. Values are always bound as parameters, never interpolated.
package pgsql

import (
	"encoding/json"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/jinzhu/inflection"
	"github.com/pkg/errors"

	"github.com/querylab/queryset-go/queryset/compile"
	"github.com/querylab/queryset-go/queryset/plan"
	"github.com/querylab/queryset-go/queryset/queryobject"
	"github.com/querylab/queryset-go/queryset/schema"
)

// Render compiles the plan to SQL with $N placeholders and the matching
// parameter list.
func Render(p *plan.QueryPlan) (string, []any, error) {
	r := &renderer{plan: p, aliases: make(map[string]string)}
	return r.render()
}

type renderer struct {
	plan    *plan.QueryPlan
	aliases map[string]string // join path -> table alias
}

func (r *renderer) render() (string, []any, error) {
	p := r.plan
	r.assignAliases()

	cols := make([]string, len(p.Select))
	for i, f := range p.Select {
		cols[i] = fmt.Sprintf(`%s AS %s`, r.fieldExpr(f), quoteIdent(f.Path))
	}

	builder := sq.Select(cols...).From(p.Table).PlaceholderFormat(sq.Dollar)
	if r.hasToManyJoin() {
		builder = builder.Distinct()
	}

	for _, j := range p.Joins {
		parent := r.parentRef(j)
		alias := r.aliases[j.Path]
		builder = builder.LeftJoin(fmt.Sprintf(
			"%s AS %s ON %s.%s = %s.%s",
			j.TargetTable, alias,
			alias, j.Rel.RemoteColumn,
			parent, j.Rel.LocalColumn,
		))
	}

	if p.Filter != nil {
		pred, err := r.predicate(p.Filter)
		if err != nil {
			return "", nil, err
		}
		builder = builder.Where(pred)
	}

	if p.Window.Kind == plan.WindowKeyset {
		bound, err := r.keysetBound()
		if err != nil {
			return "", nil, err
		}
		builder = builder.Where(bound)
	}

	for _, f := range p.Sort {
		dir := "ASC"
		if f.Direction == queryobject.Desc {
			dir = "DESC"
		}
		nulls := "NULLS LAST"
		if f.NullsFirst {
			nulls = "NULLS FIRST"
		}
		builder = builder.OrderBy(fmt.Sprintf("%s %s %s", r.fieldExpr(f.Field), dir, nulls))
	}

	if p.Window.Limit != nil {
		builder = builder.Limit(uint64(*p.Window.Limit))
	}
	if p.Window.Kind == plan.WindowSkipLimit && p.Window.Skip > 0 {
		builder = builder.Offset(uint64(p.Window.Skip))
	}

	sql, args, err := builder.ToSql()
	if err != nil {
		return "", nil, errors.Wrap(err, "build select")
	}
	return sql, args, nil
}

// assignAliases names each joined table after its relationship path:
// "books" joins as "book", "books.author" as "book_author". Paths are
// unique, so aliases are too.
func (r *renderer) assignAliases() {
	for _, j := range r.plan.Joins {
		segments := strings.Split(j.Path, ".")
		for i, s := range segments {
			segments[i] = inflection.Singular(s)
		}
		r.aliases[j.Path] = strings.Join(segments, "_")
	}
}

func (r *renderer) parentRef(j compile.Join) string {
	if j.ParentPath == "" {
		return r.plan.Table
	}
	return r.aliases[j.ParentPath]
}

func (r *renderer) hasToManyJoin() bool {
	for _, j := range r.plan.Joins {
		if j.Rel.ToMany {
			return true
		}
	}
	return false
}

// fieldExpr renders the column reference for a resolved field, descending
// into JSON containers with -> and extracting the leaf with ->> plus a
// cast when the leaf has a declared type.
func (r *renderer) fieldExpr(f compile.ResolvedField) string {
	base := r.columnRef(f)
	if !f.IsJSON() {
		return base
	}
	expr := base
	for _, seg := range f.JSONPath[:len(f.JSONPath)-1] {
		expr += "->" + quoteLiteral(seg)
	}
	last := f.JSONPath[len(f.JSONPath)-1]
	switch f.Type {
	case schema.TypeAny:
		return expr + "->" + quoteLiteral(last)
	case schema.TypeString:
		return expr + "->>" + quoteLiteral(last)
	default:
		return fmt.Sprintf("(%s->>%s)::%s", expr, quoteLiteral(last), pgCast(f.Type))
	}
}

func (r *renderer) columnRef(f compile.ResolvedField) string {
	table := r.plan.Table
	if f.JoinPath != "" {
		table = r.aliases[f.JoinPath]
	}
	return table + "." + f.Field.ColumnName()
}

func pgCast(t schema.Type) string {
	switch t {
	case schema.TypeInt:
		return "bigint"
	case schema.TypeFloat:
		return "double precision"
	case schema.TypeBool:
		return "boolean"
	case schema.TypeTime:
		return "timestamptz"
	case schema.TypeUUID:
		return "uuid"
	default:
		return "text"
	}
}

func (r *renderer) predicate(node compile.FilterNode) (sq.Sqlizer, error) {
	switch n := node.(type) {
	case compile.Comparison:
		return r.comparison(n)
	case compile.Combinator:
		clauses := make([]sq.Sqlizer, len(n.Clauses))
		for i, clause := range n.Clauses {
			pred, err := r.predicate(clause)
			if err != nil {
				return nil, err
			}
			clauses[i] = pred
		}
		switch n.Operator {
		case queryobject.OpAnd:
			return sq.And(clauses), nil
		case queryobject.OpOr:
			return sq.Or(clauses), nil
		case queryobject.OpNor:
			return not{sq.Or(clauses)}, nil
		case queryobject.OpNot:
			return not{sq.And(clauses)}, nil
		default:
			return nil, errors.Errorf("unsupported combinator %q", n.Operator)
		}
	default:
		return nil, errors.Errorf("unsupported filter node %T", node)
	}
}

func (r *renderer) comparison(c compile.Comparison) (sq.Sqlizer, error) {
	expr := r.fieldExpr(c.Field)
	isArray := c.Field.Field.Array && !c.Field.IsJSON()
	isJSONValue := c.Field.Type == schema.TypeAny || c.Field.Type == schema.TypeJSON

	switch c.Operator {
	case queryobject.OpEq:
		if isArray {
			if list, ok := c.Value.([]any); ok {
				return sq.Expr(expr+" = ?", pgArray(c.Field.Type, list)), nil
			}
			// Scalar against an array column matches any element.
			return sq.Expr("? = ANY("+expr+")", c.Value), nil
		}
		if isJSONValue {
			return jsonCompare(expr, "=", c.Value)
		}
		return sq.Expr(expr+" = ?", c.Value), nil

	case queryobject.OpNe:
		if isArray {
			if list, ok := c.Value.([]any); ok {
				return sq.Expr(expr+" IS DISTINCT FROM ?", pgArray(c.Field.Type, list)), nil
			}
			return sq.Expr("? != ALL("+expr+")", c.Value), nil
		}
		if isJSONValue {
			return jsonCompare(expr, "IS DISTINCT FROM", c.Value)
		}
		// IS DISTINCT FROM treats NULLs the way users expect != to.
		return sq.Expr(expr+" IS DISTINCT FROM ?", c.Value), nil

	case queryobject.OpGt, queryobject.OpGte, queryobject.OpLt, queryobject.OpLte:
		return sq.Expr(fmt.Sprintf("%s %s ?", expr, rangeSQL[c.Operator]), c.Value), nil

	case queryobject.OpPrefix:
		prefix, ok := c.Value.(string)
		if !ok {
			return nil, errors.Errorf("$prefix value must be a string, got %T", c.Value)
		}
		return sq.Expr(expr+` LIKE ? ESCAPE '\'`, escapeLike(prefix)+"%"), nil

	case queryobject.OpIn:
		list := c.Value.([]any)
		if isArray {
			// Overlap: any shared element qualifies.
			return sq.Expr(expr+" && ?", pgArray(c.Field.Type, list)), nil
		}
		return sq.Eq{expr: list}, nil

	case queryobject.OpNotIn:
		list := c.Value.([]any)
		if isArray {
			return not{sq.Expr(expr+" && ?", pgArray(c.Field.Type, list))}, nil
		}
		return sq.NotEq{expr: list}, nil

	case queryobject.OpExists:
		if c.Value.(bool) {
			return sq.Expr(expr + " IS NOT NULL"), nil
		}
		return sq.Expr(expr + " IS NULL"), nil

	case queryobject.OpContains:
		if isArray {
			return sq.Expr(expr+" @> ?", pgArray(c.Field.Type, c.Value.([]any))), nil
		}
		data, err := json.Marshal(c.Value)
		if err != nil {
			return nil, errors.Wrap(err, "encode containment value")
		}
		return sq.Expr(expr+" @> ?::jsonb", string(data)), nil

	case queryobject.OpSize:
		return sq.Expr("COALESCE(array_length("+expr+", 1), 0) = ?", c.Value), nil

	default:
		return nil, errors.Errorf("unsupported operator %q", c.Operator)
	}
}

var rangeSQL = map[string]string{
	queryobject.OpGt:  ">",
	queryobject.OpGte: ">=",
	queryobject.OpLt:  "<",
	queryobject.OpLte: "<=",
}

// keysetBound renders "strictly after the boundary in fetch order". A
// uniform key over NOT NULL fields compiles to one row-value comparison;
// mixed directions and nullable fields fall back to the expanded predicate
// tree, since row-value comparison yields NULL as soon as any element is.
func (r *renderer) keysetBound() (sq.Sqlizer, error) {
	p := r.plan
	if !p.Sort.Uniform() || nullableKey(p.Sort) {
		return r.predicate(p.KeysetFilter())
	}

	exprs := make([]string, len(p.Sort))
	marks := make([]string, len(p.Sort))
	for i, f := range p.Sort {
		exprs[i] = r.fieldExpr(f.Field)
		marks[i] = "?"
	}
	op := ">"
	if p.Sort[0].Direction == queryobject.Desc {
		op = "<"
	}
	return sq.Expr(
		fmt.Sprintf("(%s) %s (%s)", strings.Join(exprs, ", "), op, strings.Join(marks, ", ")),
		p.Window.Bound...,
	), nil
}

func nullableKey(key compile.SortKey) bool {
	for _, f := range key {
		if f.Field.Nullable() {
			return true
		}
	}
	return false
}

// jsonCompare compares a jsonb expression against a literal by encoding
// the literal to jsonb, which gives exact document equality.
func jsonCompare(expr, op string, value any) (sq.Sqlizer, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return nil, errors.Wrap(err, "encode json literal")
	}
	return sq.Expr(fmt.Sprintf("%s %s ?::jsonb", expr, op), string(data)), nil
}

// pgArray converts coerced []any values into a typed slice so the driver
// encodes them as a PostgreSQL array of the column's element type.
func pgArray(t schema.Type, values []any) any {
	switch t {
	case schema.TypeInt:
		out := make([]int64, len(values))
		for i, v := range values {
			out[i] = v.(int64)
		}
		return out
	case schema.TypeFloat:
		out := make([]float64, len(values))
		for i, v := range values {
			out[i] = v.(float64)
		}
		return out
	case schema.TypeString:
		out := make([]string, len(values))
		for i, v := range values {
			out[i] = v.(string)
		}
		return out
	case schema.TypeBool:
		out := make([]bool, len(values))
		for i, v := range values {
			out[i] = v.(bool)
		}
		return out
	default:
		return values
	}
}

// not negates any Sqlizer, parenthesizing the inner expression.
type not struct {
	inner sq.Sqlizer
}

func (n not) ToSql() (string, []any, error) {
	sql, args, err := n.inner.ToSql()
	if err != nil {
		return "", nil, err
	}
	return "NOT (" + sql + ")", args, nil
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	s = strings.ReplaceAll(s, `_`, `\_`)
	return s
}
