// Package queryerr defines the error taxonomy shared by every compiler
// stage. All of these are deterministic validation failures raised while
// compiling a query object; none of them is transient and nothing retries
// them. The transport layer maps each type to a user-facing status.
package queryerr

import (
	"fmt"
	"strings"
)

// QueryObjectError reports malformed top-level input: wrong value types for
// the well-known keys, negative skip/limit and similar shape problems.
type QueryObjectError struct {
	Reason string
}

func (e *QueryObjectError) Error() string {
	return fmt.Sprintf("query object error: %s", e.Reason)
}

// UnknownFieldError reports a field reference that is not declared on the
// entity it was resolved against.
type UnknownFieldError struct {
	Entity string
	Field  string
	Where  string // "select", "filter" or "sort"
}

func (e *UnknownFieldError) Error() string {
	return fmt.Sprintf("unknown field %q on entity %q (in %s)", e.Field, e.Entity, e.Where)
}

// InvalidPathError reports a dotted path whose non-terminal segment names a
// plain scalar field, i.e. something that cannot be traversed further.
type InvalidPathError struct {
	Entity  string
	Path    string
	Segment string
	Reason  string
}

func (e *InvalidPathError) Error() string {
	return fmt.Sprintf("invalid path %q on entity %q: segment %q %s", e.Path, e.Entity, e.Segment, e.Reason)
}

// UnknownOperatorError reports an unrecognized operator sigil in a filter.
type UnknownOperatorError struct {
	Operator string
	Field    string
}

func (e *UnknownOperatorError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("unknown operator %q", e.Operator)
	}
	return fmt.Sprintf("unknown operator %q for field %q", e.Operator, e.Field)
}

// MalformedFilterError reports a filter whose shape is wrong: a combinator
// given a non-sequence operand, an operator mapping mixing bare fields in,
// and the like.
type MalformedFilterError struct {
	Reason string
}

func (e *MalformedFilterError) Error() string {
	return fmt.Sprintf("malformed filter: %s", e.Reason)
}

// TypeMismatchError reports a filter value (or operator) that does not agree
// with the declared type of the field it is applied to.
type TypeMismatchError struct {
	Field    string
	Operator string
	Expected string
	Actual   string
}

func (e *TypeMismatchError) Error() string {
	if e.Operator != "" && e.Actual == "" {
		return fmt.Sprintf("operator %q is not supported for field %q of type %s", e.Operator, e.Field, e.Expected)
	}
	return fmt.Sprintf("field %q expects %s, got %s", e.Field, e.Expected, e.Actual)
}

// DuplicateSortFieldError reports a sort spec naming the same field twice.
type DuplicateSortFieldError struct {
	Field string
}

func (e *DuplicateSortFieldError) Error() string {
	return fmt.Sprintf("duplicate sort field %q", e.Field)
}

// InvalidCursorError reports a cursor token that does not decode, or that
// was issued for a different sort specification than the current one.
// Tampered tokens are rejected, never repaired.
type InvalidCursorError struct {
	Reason string
}

func (e *InvalidCursorError) Error() string {
	return fmt.Sprintf("invalid cursor: %s", e.Reason)
}

// ConflictingPaginationError reports that mutually exclusive pagination
// modes were supplied together (any two of skip, before, after).
type ConflictingPaginationError struct {
	Modes []string
}

func (e *ConflictingPaginationError) Error() string {
	return fmt.Sprintf("conflicting pagination: choose one of %s", strings.Join(e.Modes, ", "))
}
