// Package queryobject parses the external declarative request shape:
//
//	{select?, filter?, sort?, skip?, limit?, before?, after?}
//
// Parsing is schema-unaware: it only validates shapes and operator sigils,
// producing a raw condition tree that the compile package later resolves
// and type-checks against a schema. The raw untyped mapping never travels
// past this package.
package queryobject

import (
	"fmt"

	"github.com/querylab/queryset-go/queryset/queryerr"
)

// QueryObject is the parsed request.
type QueryObject struct {
	Select []string
	Filter []Condition
	Sort   []SortField
	Skip   *int
	Limit  *int
	Before *string
	After  *string
}

// Parse builds a QueryObject from an untyped mapping, typically the decoded
// body of an API request. Unknown top-level keys are rejected.
func Parse(raw map[string]any) (*QueryObject, error) {
	qo := &QueryObject{}
	for key, value := range raw {
		if value == nil {
			continue
		}
		var err error
		switch key {
		case "select":
			qo.Select, err = parseStringList(key, value)
		case "filter":
			m, ok := value.(map[string]any)
			if !ok {
				return nil, &queryerr.QueryObjectError{Reason: `"filter" must be an object`}
			}
			qo.Filter, err = ParseFilter(m)
		case "sort":
			var tokens []string
			tokens, err = parseStringList(key, value)
			if err == nil {
				qo.Sort, err = ParseSort(tokens)
			}
		case "skip":
			qo.Skip, err = parseNonNegativeInt(key, value)
		case "limit":
			qo.Limit, err = parseNonNegativeInt(key, value)
		case "before":
			qo.Before, err = parseCursorString(key, value)
		case "after":
			qo.After, err = parseCursorString(key, value)
		default:
			return nil, &queryerr.QueryObjectError{Reason: fmt.Sprintf("unknown key %q", key)}
		}
		if err != nil {
			return nil, err
		}
	}
	return qo, nil
}

func parseStringList(key string, value any) ([]string, error) {
	switch list := value.(type) {
	case []string:
		return list, nil
	case []any:
		out := make([]string, len(list))
		for i, item := range list {
			s, ok := item.(string)
			if !ok {
				return nil, &queryerr.QueryObjectError{Reason: fmt.Sprintf("%q must be an array of strings", key)}
			}
			out[i] = s
		}
		return out, nil
	default:
		return nil, &queryerr.QueryObjectError{Reason: fmt.Sprintf("%q must be an array of strings", key)}
	}
}

func parseNonNegativeInt(key string, value any) (*int, error) {
	var n int
	switch v := value.(type) {
	case int:
		n = v
	case int64:
		n = int(v)
	case float64:
		if v != float64(int(v)) {
			return nil, &queryerr.QueryObjectError{Reason: fmt.Sprintf("%q must be an integer", key)}
		}
		n = int(v)
	default:
		return nil, &queryerr.QueryObjectError{Reason: fmt.Sprintf("%q must be an integer", key)}
	}
	if n < 0 {
		return nil, &queryerr.QueryObjectError{Reason: fmt.Sprintf("%q must not be negative", key)}
	}
	return &n, nil
}

func parseCursorString(key string, value any) (*string, error) {
	s, ok := value.(string)
	if !ok || s == "" {
		return nil, &queryerr.QueryObjectError{Reason: fmt.Sprintf("%q must be a non-empty string", key)}
	}
	return &s, nil
}
