package queryobject

import (
	"fmt"
	"sort"
	"strings"

	"github.com/querylab/queryset-go/queryset/queryerr"
)

// Comparison operator sigils.
const (
	OpEq       = "$eq"
	OpNe       = "$ne"
	OpGt       = "$gt"
	OpGte      = "$gte"
	OpLt       = "$lt"
	OpLte      = "$lte"
	OpIn       = "$in"
	OpNotIn    = "$nin"
	OpPrefix   = "$prefix"
	OpExists   = "$exists"
	OpContains = "$contains"
	OpSize     = "$size"
)

// Boolean combinator sigils.
const (
	OpAnd = "$and"
	OpOr  = "$or"
	OpNor = "$nor"
	OpNot = "$not"
)

var comparisonOps = map[string]struct{}{
	OpEq: {}, OpNe: {}, OpGt: {}, OpGte: {}, OpLt: {}, OpLte: {},
	OpIn: {}, OpNotIn: {}, OpPrefix: {}, OpExists: {}, OpContains: {}, OpSize: {},
}

var combinatorOps = map[string]struct{}{
	OpAnd: {}, OpOr: {}, OpNor: {}, OpNot: {},
}

// Condition is one node of the raw, schema-unaware filter tree.
// Only FieldCondition and BoolCondition implement it.
type Condition interface {
	condition()
}

// FieldCondition applies one operator to one dotted field path.
//
//	{ "age": {"$gt": 18} }  →  FieldCondition{Path: "age", Operator: "$gt", Value: 18}
type FieldCondition struct {
	Path     string
	Operator string
	Value    any
}

func (FieldCondition) condition() {}

func (c FieldCondition) String() string {
	return fmt.Sprintf("FieldCondition(%s %s %v)", c.Path, c.Operator, c.Value)
}

// BoolCondition combines clauses with $and, $or, $nor or $not.
type BoolCondition struct {
	Operator string
	Clauses  []Condition
}

func (BoolCondition) condition() {}

func (c BoolCondition) String() string {
	return fmt.Sprintf("BoolCondition(%s, %d clauses)", c.Operator, len(c.Clauses))
}

// ParseFilter parses a filter mapping into conditions. Conditions returned
// at the top level are implicitly AND-ed. Mapping keys are visited in
// sorted order so the same filter always compiles to the same tree.
//
// Mapping keys are either dotted field paths or combinator sigils. A field
// value that is itself a mapping of operator sigils yields one condition
// per operator; a bare value is shorthand for $eq.
func ParseFilter(filter map[string]any) ([]Condition, error) {
	conditions := make([]Condition, 0, len(filter))
	for _, key := range sortedKeys(filter) {
		value := filter[key]
		if strings.HasPrefix(key, "$") {
			cond, err := parseCombinator(key, value)
			if err != nil {
				return nil, err
			}
			conditions = append(conditions, cond)
			continue
		}
		fieldConds, err := parseFieldConditions(key, value)
		if err != nil {
			return nil, err
		}
		conditions = append(conditions, fieldConds...)
	}
	return conditions, nil
}

func parseFieldConditions(path string, value any) ([]Condition, error) {
	m, ok := value.(map[string]any)
	if !ok {
		// Bare value shorthand: {field: value} means {field: {$eq: value}}.
		return []Condition{FieldCondition{Path: path, Operator: OpEq, Value: value}}, nil
	}

	conds := make([]Condition, 0, len(m))
	for _, op := range sortedKeys(m) {
		operand := m[op]
		if !strings.HasPrefix(op, "$") {
			return nil, &queryerr.MalformedFilterError{
				Reason: fmt.Sprintf("key %q under field %q is not an operator", op, path),
			}
		}
		if _, known := comparisonOps[op]; !known {
			if _, combinator := combinatorOps[op]; combinator {
				return nil, &queryerr.MalformedFilterError{
					Reason: fmt.Sprintf("combinator %s cannot appear under field %q", op, path),
				}
			}
			return nil, &queryerr.UnknownOperatorError{Operator: op, Field: path}
		}
		conds = append(conds, FieldCondition{Path: path, Operator: op, Value: operand})
	}
	if len(conds) == 0 {
		return nil, &queryerr.MalformedFilterError{
			Reason: fmt.Sprintf("field %q has an empty operator object", path),
		}
	}
	return conds, nil
}

func parseCombinator(op string, value any) (Condition, error) {
	if _, known := combinatorOps[op]; !known {
		return nil, &queryerr.UnknownOperatorError{Operator: op}
	}

	// $not is unary: it takes a single condition object.
	if op == OpNot {
		m, ok := value.(map[string]any)
		if !ok {
			return nil, &queryerr.MalformedFilterError{Reason: "$not's operand must be an object"}
		}
		clauses, err := ParseFilter(m)
		if err != nil {
			return nil, err
		}
		return BoolCondition{Operator: OpNot, Clauses: clauses}, nil
	}

	list, ok := value.([]any)
	if !ok {
		return nil, &queryerr.MalformedFilterError{Reason: fmt.Sprintf("%s's operand must be an array", op)}
	}
	var clauses []Condition
	for _, item := range list {
		m, ok := item.(map[string]any)
		if !ok {
			return nil, &queryerr.MalformedFilterError{Reason: fmt.Sprintf("%s's operands must be objects", op)}
		}
		sub, err := ParseFilter(m)
		if err != nil {
			return nil, err
		}
		clauses = append(clauses, sub...)
	}
	return BoolCondition{Operator: op, Clauses: clauses}, nil
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ExportFilter renders conditions back to the external mapping shape. It is
// the inverse of ParseFilter up to the $eq shorthand, which exports in the
// explicit form.
func ExportFilter(conditions []Condition) map[string]any {
	out := make(map[string]any)
	for _, cond := range conditions {
		switch c := cond.(type) {
		case FieldCondition:
			ops, _ := out[c.Path].(map[string]any)
			if ops == nil {
				ops = make(map[string]any)
				out[c.Path] = ops
			}
			ops[c.Operator] = c.Value
		case BoolCondition:
			if c.Operator == OpNot {
				out[OpNot] = ExportFilter(c.Clauses)
				continue
			}
			items := make([]any, len(c.Clauses))
			for i, clause := range c.Clauses {
				items[i] = ExportFilter([]Condition{clause})
			}
			out[c.Operator] = items
		}
	}
	return out
}
