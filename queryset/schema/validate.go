package schema

import (
	"fmt"

	"github.com/hashicorp/go-multierror"
)

// Validate checks the registry for internal consistency and reports every
// problem at once. Call it once at startup, before the registry is shared.
func (r *Registry) Validate() error {
	var result *multierror.Error

	for name, e := range r.entities {
		if e.table == "" {
			result = multierror.Append(result, fmt.Errorf("entity %q has no table", name))
		}
		if e.idField == "" {
			result = multierror.Append(result, fmt.Errorf("entity %q has no unique identifier field", name))
		} else if f, ok := e.fields[e.idField]; !ok {
			result = multierror.Append(result, fmt.Errorf("entity %q: identifier field %q is not declared", name, e.idField))
		} else if f.Nullable {
			result = multierror.Append(result, fmt.Errorf("entity %q: identifier field %q must not be nullable", name, e.idField))
		}

		for relName, rel := range e.rels {
			if _, ok := e.fields[relName]; ok {
				result = multierror.Append(result, fmt.Errorf("entity %q: %q is declared both as field and relationship", name, relName))
			}
			if _, ok := r.entities[rel.Target]; !ok {
				result = multierror.Append(result, fmt.Errorf("entity %q: relationship %q targets unknown entity %q", name, relName, rel.Target))
				continue
			}
			if rel.LocalColumn == "" || rel.RemoteColumn == "" {
				result = multierror.Append(result, fmt.Errorf("entity %q: relationship %q is missing join columns", name, relName))
			}
		}

		for path, t := range e.jsonLeaves {
			if t == TypeJSON {
				result = multierror.Append(result, fmt.Errorf("entity %q: JSON leaf %q cannot itself be a container", name, path))
			}
		}
	}

	return result.ErrorOrNil()
}
