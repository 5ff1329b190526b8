package plan

import (
	"github.com/querylab/queryset-go/queryset/compile"
	"github.com/querylab/queryset-go/queryset/cursor"
	"github.com/querylab/queryset-go/queryset/queryerr"
	"github.com/querylab/queryset-go/queryset/queryobject"
	"github.com/querylab/queryset-go/queryset/schema"
)

// Plan compiles a parsed query object against the schema into a QueryPlan.
// Every referenced field is resolved and validated; any problem surfaces
// as a typed error and no partial plan is ever returned.
func Plan(d schema.Descriptor, entity string, qo *queryobject.QueryObject) (*QueryPlan, error) {
	if err := checkPaginationModes(qo); err != nil {
		return nil, err
	}

	root, ok := d.Entity(entity)
	if !ok {
		return nil, &queryerr.UnknownFieldError{Entity: entity, Field: "", Where: "select"}
	}

	resolver := compile.NewResolver(d, entity)

	selection, err := resolveSelection(resolver, root, qo.Select)
	if err != nil {
		return nil, err
	}

	filter, err := compile.CompileFilter(resolver, qo.Filter)
	if err != nil {
		return nil, err
	}

	sortKey, err := compile.CompileSort(resolver, qo.Sort)
	if err != nil {
		return nil, err
	}

	// Cursors are produced from result rows, so every sort field must be
	// fetched even when the caller did not select it.
	selection = addSortFields(selection, sortKey)

	p := &QueryPlan{
		Entity:     entity,
		Table:      root.Table(),
		Select:     selection,
		Filter:     filter,
		Sort:       sortKey,
		OutputSort: sortKey,
	}

	switch {
	case qo.After != nil:
		bound, err := cursor.Decode(*qo.After, entity, sortKey)
		if err != nil {
			return nil, err
		}
		p.Window = Window{Kind: WindowKeyset, Bound: bound, Limit: qo.Limit}

	case qo.Before != nil:
		bound, err := cursor.Decode(*qo.Before, entity, sortKey)
		if err != nil {
			return nil, err
		}
		// Fetch against the inverted order: "strictly before the boundary"
		// in the caller's order is "strictly after" in the reversed one.
		p.Sort = sortKey.Reversed()
		p.Window = Window{Kind: WindowKeyset, Bound: bound, Limit: qo.Limit, Reverse: true}

	case qo.Skip != nil:
		p.Window = Window{Kind: WindowSkipLimit, Skip: *qo.Skip, Limit: qo.Limit}

	case qo.Limit != nil:
		p.Window = Window{Kind: WindowSkipLimit, Limit: qo.Limit}

	default:
		p.Window = Window{Kind: WindowAll}
	}

	// The join list is complete only after select, filter and sort have
	// all been resolved through the shared resolver.
	p.Joins = resolver.Joins()

	return p, nil
}

func checkPaginationModes(qo *queryobject.QueryObject) error {
	var modes []string
	if qo.Skip != nil {
		modes = append(modes, "skip")
	}
	if qo.Before != nil {
		modes = append(modes, "before")
	}
	if qo.After != nil {
		modes = append(modes, "after")
	}
	if len(modes) > 1 {
		return &queryerr.ConflictingPaginationError{Modes: modes}
	}
	return nil
}

// resolveSelection resolves the caller's selection, defaulting to every
// declared field of the root entity.
func resolveSelection(r *compile.Resolver, root *schema.Entity, selected []string) ([]compile.ResolvedField, error) {
	if len(selected) == 0 {
		fields := root.Fields()
		out := make([]compile.ResolvedField, 0, len(fields))
		for _, f := range fields {
			resolved, err := r.Resolve(f.Name, "select")
			if err != nil {
				return nil, err
			}
			out = append(out, resolved)
		}
		return out, nil
	}

	out := make([]compile.ResolvedField, 0, len(selected))
	seen := make(map[string]bool, len(selected))
	for _, path := range selected {
		if seen[path] {
			continue
		}
		seen[path] = true
		resolved, err := r.Resolve(path, "select")
		if err != nil {
			return nil, err
		}
		out = append(out, resolved)
	}
	return out, nil
}

func addSortFields(selection []compile.ResolvedField, key compile.SortKey) []compile.ResolvedField {
	present := make(map[string]bool, len(selection))
	for _, f := range selection {
		present[f.Path] = true
	}
	for _, sf := range key {
		if !present[sf.Field.Path] {
			selection = append(selection, sf.Field)
			present[sf.Field.Path] = true
		}
	}
	return selection
}
