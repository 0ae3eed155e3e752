package skills

import (
	"fmt"
	"sync"
)

// Registry is a read-only catalog of templates.
type Registry struct {
	order []string
	byID  map[string]*Template
}

// NewRegistry validates and indexes templates in the given order.
func NewRegistry(templates ...Template) (*Registry, error) {
	r := &Registry{byID: make(map[string]*Template, len(templates))}
	for i := range templates {
		t := templates[i].clone()
		if err := t.validate(); err != nil {
			return nil, err
		}
		if _, dup := r.byID[t.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate id %s", ErrInvalidConfig, t.ID)
		}
		r.byID[t.ID] = t
		r.order = append(r.order, t.ID)
	}
	return r, nil
}

func MustNewRegistry(templates ...Template) *Registry {
	r, err := NewRegistry(templates...)
	if err != nil {
		panic(err)
	}
	return r
}

// Get returns the template with id. Callers must not modify it.
func (r *Registry) Get(id string) (*Template, bool) {
	if r == nil {
		return nil, false
	}
	t, ok := r.byID[id]
	return t, ok
}

// List returns templates in registration order.
func (r *Registry) List() []*Template {
	if r == nil {
		return nil
	}
	out := make([]*Template, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.byID[id])
	}
	return out
}

func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.order)
}

var builtin = sync.OnceValue(func() *Registry { return MustNewRegistry(BuiltinTemplates()...) })

// Builtin returns the process-wide catalog, built on first use.
func Builtin() *Registry { return builtin() }
