package framework

import (
	"fmt"
	"slices"
)

// NoStage is returned by Next and Previous at the sequence boundaries.
const NoStage = ""

// Registry holds the stage definitions in canonical pipeline order. It is
// immutable once constructed and safe for concurrent use.
type Registry struct {
	order  []string
	stages map[string]Stage
}

// NewRegistry builds a registry whose order is the order of the given stages.
func NewRegistry(stages ...Stage) (*Registry, error) {
	if len(stages) == 0 {
		return nil, fmt.Errorf("registry requires at least one stage")
	}
	r := &Registry{
		order:  make([]string, 0, len(stages)),
		stages: make(map[string]Stage, len(stages)),
	}
	for _, st := range stages {
		if st.Key == "" {
			return nil, fmt.Errorf("stage %q has an empty key", st.Title)
		}
		if _, dup := r.stages[st.Key]; dup {
			return nil, fmt.Errorf("duplicate stage key %q", st.Key)
		}
		if err := validateStage(st); err != nil {
			return nil, err
		}
		r.order = append(r.order, st.Key)
		r.stages[st.Key] = st.clone()
	}
	return r, nil
}

func validateStage(st Stage) error {
	seen := make(map[string]bool, len(st.Fields))
	for _, f := range st.Fields {
		if f.ID == "" {
			return fmt.Errorf("stage %q: field with empty id", st.Key)
		}
		if seen[f.ID] {
			return fmt.Errorf("stage %q: duplicate field id %q", st.Key, f.ID)
		}
		seen[f.ID] = true
		for _, v := range f.Validators {
			if v.Kind == ValidatorPredicate && !HasPredicate(v.Predicate) {
				return fmt.Errorf("stage %q field %q: unknown predicate %q", st.Key, f.ID, v.Predicate)
			}
		}
	}
	if len(st.Output) == 0 {
		return fmt.Errorf("stage %q declares no output fields", st.Key)
	}
	outSeen := make(map[string]bool, len(st.Output))
	for _, o := range st.Output {
		if outSeen[o.Name] {
			return fmt.Errorf("stage %q: duplicate output key %q", st.Key, o.Name)
		}
		outSeen[o.Name] = true
	}
	return nil
}

// MustRegistry is like NewRegistry but panics on error. For static catalogs.
func MustRegistry(stages ...Stage) *Registry {
	r, err := NewRegistry(stages...)
	if err != nil {
		panic(err)
	}
	return r
}

// Stage returns the definition for key.
func (r *Registry) Stage(key string) (Stage, error) {
	st, ok := r.stages[key]
	if !ok {
		return Stage{}, &UnknownStageError{Key: key}
	}
	return st.clone(), nil
}

// Has reports whether key is a registered stage.
func (r *Registry) Has(key string) bool {
	_, ok := r.stages[key]
	return ok
}

// Order returns the canonical stage order.
func (r *Registry) Order() []string {
	return slices.Clone(r.order)
}

// Stages returns all definitions in canonical order.
func (r *Registry) Stages() []Stage {
	out := make([]Stage, 0, len(r.order))
	for _, key := range r.order {
		out = append(out, r.stages[key].clone())
	}
	return out
}

// Index returns the position of key in the order, or -1.
func (r *Registry) Index(key string) int {
	return slices.Index(r.order, key)
}

// Next returns the stage after key, or NoStage.
func (r *Registry) Next(key string) string {
	i := r.Index(key)
	if i < 0 || i+1 >= len(r.order) {
		return NoStage
	}
	return r.order[i+1]
}

// Previous returns the stage before key, or NoStage.
func (r *Registry) Previous(key string) string {
	i := r.Index(key)
	if i <= 0 {
		return NoStage
	}
	return r.order[i-1]
}

// First returns the first stage key.
func (r *Registry) First() string {
	return r.order[0]
}

// Export returns the stage exports in canonical order.
func (r *Registry) Export() []StageExport {
	out := make([]StageExport, 0, len(r.order))
	for _, key := range r.order {
		out = append(out, r.stages[key].Export())
	}
	return out
}
