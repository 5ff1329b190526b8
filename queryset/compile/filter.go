package compile

import (
	"fmt"

	"github.com/querylab/queryset-go/queryset/queryerr"
	"github.com/querylab/queryset-go/queryset/queryobject"
	"github.com/querylab/queryset-go/queryset/schema"
)

// FilterNode is one node of the validated predicate tree. It is a closed
// variant: only Comparison and Combinator implement it.
type FilterNode interface {
	filterNode()
}

// Comparison applies one operator to one resolved field.
type Comparison struct {
	Field    ResolvedField
	Operator string
	Value    any
}

func (Comparison) filterNode() {}

// Combinator joins clauses with $and, $or, $nor or $not.
type Combinator struct {
	Operator string
	Clauses  []FilterNode
}

func (Combinator) filterNode() {}

// scalarOps lists the operators valid for every scalar type. Range
// operators are added for ordered types, $prefix for strings.
var scalarOps = map[string]bool{
	queryobject.OpEq: true, queryobject.OpNe: true,
	queryobject.OpIn: true, queryobject.OpNotIn: true,
	queryobject.OpExists: true,
}

var rangeOps = map[string]bool{
	queryobject.OpGt: true, queryobject.OpGte: true,
	queryobject.OpLt: true, queryobject.OpLte: true,
}

// arrayOps lists the operators valid for array columns. $in/$nin compare
// against overlap, $contains requires every given element to be present.
var arrayOps = map[string]bool{
	queryobject.OpEq: true, queryobject.OpNe: true,
	queryobject.OpIn: true, queryobject.OpNotIn: true,
	queryobject.OpExists: true, queryobject.OpContains: true,
	queryobject.OpSize: true,
}

// anyOps lists the operators valid for undeclared JSON leaves and whole
// JSON containers, where no ordering is defined.
var anyOps = map[string]bool{
	queryobject.OpEq: true, queryobject.OpNe: true,
	queryobject.OpExists: true, queryobject.OpContains: true,
}

// operatorsRequiringArray always take an array operand.
var operatorsRequiringArray = map[string]bool{
	queryobject.OpIn:    true,
	queryobject.OpNotIn: true,
}

// CompileFilter validates and resolves raw conditions into a predicate
// tree. Multiple top-level conditions are AND-ed. Returns nil for an empty
// filter.
func CompileFilter(r *Resolver, conditions []queryobject.Condition) (FilterNode, error) {
	nodes, err := compileConditions(r, conditions)
	if err != nil {
		return nil, err
	}
	switch len(nodes) {
	case 0:
		return nil, nil
	case 1:
		return nodes[0], nil
	default:
		return Combinator{Operator: queryobject.OpAnd, Clauses: nodes}, nil
	}
}

func compileConditions(r *Resolver, conditions []queryobject.Condition) ([]FilterNode, error) {
	nodes := make([]FilterNode, 0, len(conditions))
	for _, cond := range conditions {
		switch c := cond.(type) {
		case queryobject.FieldCondition:
			node, err := compileComparison(r, c)
			if err != nil {
				return nil, err
			}
			nodes = append(nodes, node)
		case queryobject.BoolCondition:
			clauses, err := compileConditions(r, c.Clauses)
			if err != nil {
				return nil, err
			}
			nodes = append(nodes, Combinator{Operator: c.Operator, Clauses: clauses})
		default:
			return nil, &queryerr.MalformedFilterError{Reason: fmt.Sprintf("unexpected condition %T", cond)}
		}
	}
	return nodes, nil
}

func compileComparison(r *Resolver, c queryobject.FieldCondition) (FilterNode, error) {
	field, err := r.Resolve(c.Path, "filter")
	if err != nil {
		return nil, err
	}
	if !operatorValid(c.Operator, field) {
		return nil, &queryerr.TypeMismatchError{
			Field:    c.Path,
			Operator: c.Operator,
			Expected: describeFieldType(field),
		}
	}
	value, err := coerceOperand(field, c)
	if err != nil {
		return nil, err
	}
	return Comparison{Field: field, Operator: c.Operator, Value: value}, nil
}

func operatorValid(op string, f ResolvedField) bool {
	if f.Field.Array && !f.IsJSON() {
		return arrayOps[op]
	}
	switch f.Type {
	case schema.TypeAny, schema.TypeJSON:
		return anyOps[op]
	default:
		if scalarOps[op] {
			return true
		}
		if rangeOps[op] {
			return f.Type.Ordered()
		}
		if op == queryobject.OpPrefix {
			return f.Type == schema.TypeString
		}
		return false
	}
}

// coerceOperand type-checks the operand against the field's declared type
// and converts it to a canonical representation. The raw value never makes
// it into the compiled tree.
func coerceOperand(f ResolvedField, c queryobject.FieldCondition) (any, error) {
	switch c.Operator {
	case queryobject.OpExists:
		b, ok := c.Value.(bool)
		if !ok {
			return nil, &queryerr.TypeMismatchError{
				Field: c.Path, Expected: "bool", Actual: schema.TypeName(c.Value),
			}
		}
		return b, nil

	case queryobject.OpSize:
		n, err := schema.TypeInt.Coerce(c.Value)
		if err != nil {
			return nil, &queryerr.TypeMismatchError{
				Field: c.Path, Expected: "int", Actual: schema.TypeName(c.Value),
			}
		}
		return n, nil

	case queryobject.OpIn, queryobject.OpNotIn:
		list, ok := c.Value.([]any)
		if !ok {
			return nil, &queryerr.MalformedFilterError{
				Reason: fmt.Sprintf("%s argument for %q must be an array", c.Operator, c.Path),
			}
		}
		out := make([]any, len(list))
		for i, item := range list {
			v, err := coerceScalar(f, c.Path, item)
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil

	case queryobject.OpContains:
		if f.Field.Array && !f.IsJSON() {
			// Accept a scalar as a one-element containment check.
			list, ok := c.Value.([]any)
			if !ok {
				list = []any{c.Value}
			}
			out := make([]any, len(list))
			for i, item := range list {
				v, err := coerceScalar(f, c.Path, item)
				if err != nil {
					return nil, err
				}
				out[i] = v
			}
			return out, nil
		}
		// JSON containment takes the value verbatim.
		return c.Value, nil

	default:
		if f.Field.Array && !f.IsJSON() {
			// Array equality against an array literal, or scalar matching
			// against any element.
			if list, ok := c.Value.([]any); ok {
				out := make([]any, len(list))
				for i, item := range list {
					v, err := coerceScalar(f, c.Path, item)
					if err != nil {
						return nil, err
					}
					out[i] = v
				}
				return out, nil
			}
		}
		return coerceScalar(f, c.Path, c.Value)
	}
}

func coerceScalar(f ResolvedField, path string, v any) (any, error) {
	coerced, err := f.Type.Coerce(v)
	if err != nil {
		return nil, &queryerr.TypeMismatchError{
			Field:    path,
			Expected: string(f.Type),
			Actual:   schema.TypeName(v),
		}
	}
	return coerced, nil
}

func describeFieldType(f ResolvedField) string {
	if f.Field.Array && !f.IsJSON() {
		return string(f.Type) + "[]"
	}
	return string(f.Type)
}
