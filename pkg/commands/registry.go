package commands

import (
	"fmt"
	"sort"
)

// Registry is the fixed command table. It is built once and only read
// afterwards.
type Registry struct {
	defs  map[string]Definition
	names []string
}

func NewRegistry(defs []Definition) (*Registry, error) {
	r := &Registry{defs: make(map[string]Definition, len(defs))}
	for _, d := range defs {
		if d.Name == "" {
			return nil, fmt.Errorf("command definition without a name")
		}
		if _, dup := r.defs[d.Name]; dup {
			return nil, fmt.Errorf("duplicate command %q", d.Name)
		}
		r.defs[d.Name] = d
		r.names = append(r.names, d.Name)
	}
	sort.Strings(r.names)
	return r, nil
}

func (r *Registry) Lookup(name string) (Definition, bool) {
	d, ok := r.defs[name]
	return d, ok
}

// All returns the definitions sorted by name.
func (r *Registry) All() []Definition {
	out := make([]Definition, 0, len(r.names))
	for _, n := range r.names {
		out = append(out, r.defs[n])
	}
	return out
}
