// Package schema describes the queryable shape of entities: which fields
// exist, their types, which of them are relationships or JSON containers,
// and which column uniquely identifies a row. The compiler stages consume
// it through the read-only Descriptor capability; a Registry is built once
// at startup and never mutated afterwards, so concurrent readers need no
// synchronization.
package schema

// Field is a selectable scalar (or array-of-scalar) column of an entity.
type Field struct {
	Name string
	// Column is the backing column name; defaults to Name when empty.
	Column   string
	Type     Type
	Array    bool
	Nullable bool
	Unique   bool
}

// ColumnName returns the backing column, falling back to the field name.
func (f Field) ColumnName() string {
	if f.Column != "" {
		return f.Column
	}
	return f.Name
}

// Relationship links an entity to a target entity through a column pair.
type Relationship struct {
	Name   string
	Target string
	// LocalColumn/RemoteColumn form the join condition:
	// parent.LocalColumn = child.RemoteColumn.
	LocalColumn  string
	RemoteColumn string
	ToMany       bool
}

// Entity is one queryable entity: a table plus its declared fields,
// relationships and JSON leaf types.
type Entity struct {
	name       string
	table      string
	idField    string
	fields     map[string]Field
	fieldOrder []string
	rels       map[string]Relationship
	jsonLeaves map[string]Type
}

func NewEntity(name, table string) *Entity {
	return &Entity{
		name:       name,
		table:      table,
		fields:     make(map[string]Field),
		rels:       make(map[string]Relationship),
		jsonLeaves: make(map[string]Type),
	}
}

func (e *Entity) Name() string  { return e.name }
func (e *Entity) Table() string { return e.table }

// ID declares the unique identifier field. The field itself must also be
// declared with AddField.
func (e *Entity) ID(fieldName string) *Entity {
	e.idField = fieldName
	return e
}

func (e *Entity) AddField(f Field) *Entity {
	if _, exists := e.fields[f.Name]; !exists {
		e.fieldOrder = append(e.fieldOrder, f.Name)
	}
	e.fields[f.Name] = f
	return e
}

func (e *Entity) AddRelationship(r Relationship) *Entity {
	e.rels[r.Name] = r
	return e
}

// JSONLeaf declares the type of a nested path inside a JSON container
// field, e.g. JSONLeaf("attrs.age", TypeInt). Undeclared leaves resolve to
// TypeAny.
func (e *Entity) JSONLeaf(dottedPath string, t Type) *Entity {
	e.jsonLeaves[dottedPath] = t
	return e
}

// Field returns a declared scalar field by name.
func (e *Entity) Field(name string) (Field, bool) {
	f, ok := e.fields[name]
	return f, ok
}

// Fields returns the declared fields in declaration order.
func (e *Entity) Fields() []Field {
	out := make([]Field, 0, len(e.fieldOrder))
	for _, name := range e.fieldOrder {
		out = append(out, e.fields[name])
	}
	return out
}

// Relationship returns a declared relationship by name.
func (e *Entity) Relationship(name string) (Relationship, bool) {
	r, ok := e.rels[name]
	return r, ok
}

// IsJSONContainer reports whether the named field is a JSON column that
// dotted paths may traverse into.
func (e *Entity) IsJSONContainer(name string) bool {
	f, ok := e.fields[name]
	return ok && f.Type == TypeJSON
}

// JSONLeafType returns the declared type of a path inside a JSON container,
// or TypeAny when the leaf was not declared.
func (e *Entity) JSONLeafType(dottedPath string) Type {
	if t, ok := e.jsonLeaves[dottedPath]; ok {
		return t
	}
	return TypeAny
}

// UniqueIdentifierField returns the field that uniquely identifies a row.
func (e *Entity) UniqueIdentifierField() string {
	return e.idField
}

// Descriptor is the read-only capability the compiler stages consume. It is
// passed explicitly into every stage; nothing reads it from ambient state.
type Descriptor interface {
	Entity(name string) (*Entity, bool)
}

// Registry is the in-memory Descriptor implementation.
type Registry struct {
	entities map[string]*Entity
}

func NewRegistry() *Registry {
	return &Registry{entities: make(map[string]*Entity)}
}

func (r *Registry) Register(e *Entity) *Registry {
	r.entities[e.Name()] = e
	return r
}

func (r *Registry) Entity(name string) (*Entity, bool) {
	e, ok := r.entities[name]
	return e, ok
}
