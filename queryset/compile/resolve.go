// Package compile turns a parsed query object into schema-bound artifacts:
// resolved field references, a validated predicate tree and a fully
// tie-broken sort key. Every stage is a pure function of its inputs plus
// the read-only schema descriptor, so concurrent requests compile
// independently.
package compile

import (
	"strings"

	"github.com/querylab/queryset-go/queryset/queryerr"
	"github.com/querylab/queryset-go/queryset/schema"
)

// Join is one step of the relationship chain needed to reach a field.
// Joins are identified by their dotted path prefix: two fields reached
// through "books" share the single Join with Path "books".
type Join struct {
	// Path is the dotted prefix of field paths that travel through this
	// join, e.g. "books" or "books.author".
	Path string
	// ParentPath is the Path of the preceding join, "" for joins off the
	// root entity.
	ParentPath   string
	Rel          schema.Relationship
	SourceEntity string
	TargetEntity string
	TargetTable  string
}

// ResolvedField is a dotted field path bound to a concrete schema column.
// It is immutable once resolved; the compiled plan owns it.
type ResolvedField struct {
	// Path is the original dotted reference, e.g. "books.tags".
	Path string
	// Entity is the entity the terminal field belongs to.
	Entity string
	// JoinPath identifies the join the column lives under; "" means the
	// root entity's table.
	JoinPath string
	// Field is the terminal column definition. For JSON leaves this is the
	// container column.
	Field schema.Field
	// JSONPath is the sub-path inside a JSON container, nil for plain
	// columns.
	JSONPath []string
	// Type is the effective leaf type: the field type, or the declared
	// JSON leaf type (TypeAny when undeclared).
	Type schema.Type
}

// IsJSON reports whether the field is addressed inside a JSON container.
func (f ResolvedField) IsJSON() bool {
	return len(f.JSONPath) > 0
}

// Nullable reports whether the field can hold SQL NULL: nullable columns,
// plus every JSON leaf, since a document may simply omit the key.
func (f ResolvedField) Nullable() bool {
	return f.Field.Nullable || f.IsJSON()
}

// Resolver resolves dotted field paths against one root entity and
// accumulates the join chain needed to reach them. Join chains are
// deduplicated across all fields resolved through the same Resolver, so
// one request compiles each join exactly once.
type Resolver struct {
	schema schema.Descriptor
	root   string

	joins     []Join
	joinIndex map[string]int
}

// NewResolver creates a resolver rooted at the named entity.
func NewResolver(d schema.Descriptor, rootEntity string) *Resolver {
	return &Resolver{
		schema:    d,
		root:      rootEntity,
		joinIndex: make(map[string]int),
	}
}

// Root returns the root entity name.
func (r *Resolver) Root() string { return r.root }

// Schema returns the descriptor the resolver reads from.
func (r *Resolver) Schema() schema.Descriptor { return r.schema }

// Joins returns the accumulated join chain in first-seen order.
func (r *Resolver) Joins() []Join {
	out := make([]Join, len(r.joins))
	copy(out, r.joins)
	return out
}

// Resolve walks a dotted path left to right. Non-terminal segments must
// name relationships or JSON containers; the terminal segment must name a
// declared field or JSON leaf. where tags the error with the operation
// that referenced the path ("select", "filter", "sort").
func (r *Resolver) Resolve(path, where string) (ResolvedField, error) {
	segments := strings.Split(path, ".")
	entity, ok := r.schema.Entity(r.root)
	if !ok {
		return ResolvedField{}, &queryerr.UnknownFieldError{Entity: r.root, Field: path, Where: where}
	}

	joinPath := ""
	for i, segment := range segments {
		last := i == len(segments)-1

		if rel, isRel := entity.Relationship(segment); isRel {
			if last {
				// A bare relationship is not a selectable leaf.
				return ResolvedField{}, &queryerr.InvalidPathError{
					Entity:  entity.Name(),
					Path:    path,
					Segment: segment,
					Reason:  "names a relationship, not a field",
				}
			}
			next, ok := r.schema.Entity(rel.Target)
			if !ok {
				return ResolvedField{}, &queryerr.UnknownFieldError{Entity: rel.Target, Field: path, Where: where}
			}
			childPath := segment
			if joinPath != "" {
				childPath = joinPath + "." + segment
			}
			r.addJoin(Join{
				Path:         childPath,
				ParentPath:   joinPath,
				Rel:          rel,
				SourceEntity: entity.Name(),
				TargetEntity: next.Name(),
				TargetTable:  next.Table(),
			})
			joinPath = childPath
			entity = next
			continue
		}

		field, isField := entity.Field(segment)
		if !isField {
			return ResolvedField{}, &queryerr.UnknownFieldError{
				Entity: entity.Name(),
				Field:  segment,
				Where:  where,
			}
		}

		if last {
			return ResolvedField{
				Path:     path,
				Entity:   entity.Name(),
				JoinPath: joinPath,
				Field:    field,
				Type:     field.Type,
			}, nil
		}

		if !entity.IsJSONContainer(segment) {
			return ResolvedField{}, &queryerr.InvalidPathError{
				Entity:  entity.Name(),
				Path:    path,
				Segment: segment,
				Reason:  "is a scalar and cannot be traversed",
			}
		}

		// The rest of the path descends into the JSON document.
		jsonPath := segments[i+1:]
		leaf := strings.Join(segments[i:], ".")
		return ResolvedField{
			Path:     path,
			Entity:   entity.Name(),
			JoinPath: joinPath,
			Field:    field,
			JSONPath: jsonPath,
			Type:     entity.JSONLeafType(leaf),
		}, nil
	}

	// Unreachable: the loop always returns on the last segment.
	return ResolvedField{}, &queryerr.InvalidPathError{Entity: r.root, Path: path, Segment: path, Reason: "is empty"}
}

func (r *Resolver) addJoin(j Join) {
	if _, seen := r.joinIndex[j.Path]; seen {
		return
	}
	r.joinIndex[j.Path] = len(r.joins)
	r.joins = append(r.joins, j)
}
