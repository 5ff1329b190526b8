package compile

import (
	"github.com/querylab/queryset-go/queryset/queryerr"
	"github.com/querylab/queryset-go/queryset/queryobject"
)

// SortField is one resolved ordering component. NullsFirst flips the NULL
// placement: result order keeps NULLs trailing, so only inverted keys set
// it, where the NULL region has to lead for the fetch to be the exact
// mirror of the caller's order.
type SortField struct {
	Field      ResolvedField
	Direction  queryobject.Direction
	NullsFirst bool
}

// SortKey is the fully tie-broken ordering of a result set. It is always
// non-empty and always ends in a chain that makes row order total; cursor
// pagination depends on that.
type SortKey []SortField

// Paths returns the dotted paths of the key's fields, in order.
func (k SortKey) Paths() []string {
	out := make([]string, len(k))
	for i, f := range k {
		out[i] = f.Field.Path
	}
	return out
}

// Uniform reports whether every field sorts in the same direction. Uniform
// keys admit the compact row-value form of the keyset comparison.
func (k SortKey) Uniform() bool {
	for _, f := range k[1:] {
		if f.Direction != k[0].Direction {
			return false
		}
	}
	return true
}

// Reversed returns a copy of the key with every direction and NULL
// placement flipped. Used for "before" pagination, which fetches against
// the inverted order.
func (k SortKey) Reversed() SortKey {
	out := make(SortKey, len(k))
	for i, f := range k {
		out[i] = SortField{Field: f.Field, Direction: f.Direction.Reversed(), NullsFirst: !f.NullsFirst}
	}
	return out
}

// CompileSort resolves sort tokens into a SortKey. Duplicate fields are
// rejected. If the caller's fields do not include the root entity's unique
// identifier, it is appended ascending as a synthetic tie-breaker: without
// it, rows comparing equal on the caller's fields could be reordered
// between pages and corrupt cursor positions.
func CompileSort(r *Resolver, fields []queryobject.SortField) (SortKey, error) {
	key := make(SortKey, 0, len(fields)+1)
	seen := make(map[string]bool, len(fields))
	idPresent := false

	root, ok := r.Schema().Entity(r.Root())
	if !ok {
		return nil, &queryerr.UnknownFieldError{Entity: r.Root(), Field: "", Where: "sort"}
	}
	idField := root.UniqueIdentifierField()

	for _, f := range fields {
		if seen[f.Path] {
			return nil, &queryerr.DuplicateSortFieldError{Field: f.Path}
		}
		seen[f.Path] = true

		resolved, err := r.Resolve(f.Path, "sort")
		if err != nil {
			return nil, err
		}
		if resolved.JoinPath == "" && !resolved.IsJSON() && resolved.Field.Name == idField {
			idPresent = true
		}
		key = append(key, SortField{Field: resolved, Direction: f.Direction})
	}

	if !idPresent {
		resolved, err := r.Resolve(idField, "sort")
		if err != nil {
			return nil, err
		}
		key = append(key, SortField{Field: resolved, Direction: queryobject.Asc})
	}

	return key, nil
}
