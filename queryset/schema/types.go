package schema

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Type is the declared value type of a field.
type Type string

const (
	TypeBool   Type = "bool"
	TypeInt    Type = "int"
	TypeFloat  Type = "float"
	TypeString Type = "string"
	TypeTime   Type = "time"
	TypeUUID   Type = "uuid"
	// TypeJSON marks a JSON container column. Dotted paths may traverse into
	// it; leaves default to TypeAny unless declared with JSONLeaf.
	TypeJSON Type = "json"
	// TypeAny is the type of an undeclared JSON leaf. Only equality-class
	// operators apply to it.
	TypeAny Type = "any"
)

// Ordered reports whether values of the type have a meaningful total order,
// making range operators ($gt and friends) applicable. String ordering is
// deliberately declared supported: it maps onto the backend collation.
func (t Type) Ordered() bool {
	switch t {
	case TypeInt, TypeFloat, TypeString, TypeTime:
		return true
	default:
		return false
	}
}

// Coerce type-checks an untyped literal against the declared type and
// converts it to the canonical Go representation. JSON decoding hands us
// float64 for every number, so integral floats are accepted for int fields.
func (t Type) Coerce(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch t {
	case TypeBool:
		if b, ok := v.(bool); ok {
			return b, nil
		}
	case TypeInt:
		switch n := v.(type) {
		case int:
			return int64(n), nil
		case int32:
			return int64(n), nil
		case int64:
			return n, nil
		case float64:
			if n == float64(int64(n)) {
				return int64(n), nil
			}
		case float32:
			if float64(n) == float64(int64(n)) {
				return int64(n), nil
			}
		}
	case TypeFloat:
		switch n := v.(type) {
		case float64:
			return n, nil
		case float32:
			return float64(n), nil
		case int:
			return float64(n), nil
		case int64:
			return float64(n), nil
		}
	case TypeString:
		if s, ok := v.(string); ok {
			return s, nil
		}
	case TypeTime:
		switch s := v.(type) {
		case time.Time:
			return s, nil
		case string:
			ts, err := time.Parse(time.RFC3339, s)
			if err != nil {
				return nil, fmt.Errorf("not an RFC 3339 timestamp: %q", s)
			}
			return ts, nil
		}
	case TypeUUID:
		switch s := v.(type) {
		case uuid.UUID:
			return s, nil
		case string:
			id, err := uuid.Parse(s)
			if err != nil {
				return nil, fmt.Errorf("not a UUID: %q", s)
			}
			return id, nil
		}
	case TypeAny, TypeJSON:
		return v, nil
	}
	return nil, fmt.Errorf("cannot use %T as %s", v, t)
}

// TypeName names the dynamic type of an untyped literal for error messages.
func TypeName(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case bool:
		return "bool"
	case string:
		return "string"
	case int, int32, int64:
		return "int"
	case float32, float64:
		return "number"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	default:
		return fmt.Sprintf("%T", v)
	}
}
