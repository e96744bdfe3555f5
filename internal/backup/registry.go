package backup

import (
	"context"
	"fmt"
)

// EntitySyncer is the per-entity-type unit registered with a Registry. It
// knows how to enumerate its source records into a self-contained JSON file
// and how to reconcile exported records against the live target store.
type EntitySyncer interface {
	// ModelName returns the unique id of the entity type; it is also the
	// base name of the entity's JSON file.
	ModelName() string

	// Dependencies returns the model names that must be exported (and later
	// imported) before this one.
	Dependencies() []string

	// Export enumerates and serializes all source records into
	// <dir>/<model_name>.json. Top-level failures are captured in the
	// result, never raised.
	Export(ctx context.Context, dir string) *ExportResult

	// Import reconciles the given records against the target store,
	// branching on the mode per record. Per-record failures are captured in
	// the result's error list and do not abort the batch.
	Import(ctx context.Context, ictx *ImportContext, records []Record, opts ImportOptions) *ImportResult
}

// Registry owns the model name -> entity syncer mapping for one component
// and produces a dependency-safe processing order. Registration is an
// explicit step performed at process start; there are no import-time side
// effects.
type Registry struct {
	component string
	syncers   map[string]EntitySyncer
	order     []string
}

// NewRegistry creates an empty registry for the named component.
func NewRegistry(component string) *Registry {
	return &Registry{
		component: component,
		syncers:   make(map[string]EntitySyncer),
	}
}

// Component returns the component name this registry belongs to.
func (r *Registry) Component() string {
	return r.component
}

// Register adds a syncer to the registry. A syncer with an empty model name
// is rejected; re-registration for an existing name overwrites the previous
// entry (last registration wins).
func (r *Registry) Register(s EntitySyncer) error {
	name := s.ModelName()
	if name == "" {
		return NewRegistryError("cannot register syncer with empty model name", nil)
	}
	if _, exists := r.syncers[name]; !exists {
		r.order = append(r.order, name)
	}
	r.syncers[name] = s
	return nil
}

// Get returns the syncer registered under the given model name.
func (r *Registry) Get(name string) (EntitySyncer, bool) {
	s, ok := r.syncers[name]
	return s, ok
}

// ModelNames returns all registered model names in registration order.
func (r *Registry) ModelNames() []string {
	names := make([]string, len(r.order))
	copy(names, r.order)
	return names
}

// GetOrdered returns syncers in dependency order: for every pair (a, b)
// where b depends on a, a precedes b. The default scope is all registered
// syncers; include restricts the scope (unknown names are an error), exclude
// removes names after inclusion. Dependencies pointing outside the requested
// scope are ignored. A circular dependency yields a *CycleError naming the
// offending model.
func (r *Registry) GetOrdered(include, exclude []string) ([]EntitySyncer, error) {
	scope := make(map[string]bool)
	var requested []string
	if len(include) > 0 {
		for _, name := range include {
			if _, ok := r.syncers[name]; !ok {
				return nil, NewNotFoundError(fmt.Sprintf("model %q is not registered in component %q", name, r.component), nil)
			}
			if !scope[name] {
				scope[name] = true
				requested = append(requested, name)
			}
		}
	} else {
		for _, name := range r.order {
			scope[name] = true
		}
		requested = append(requested, r.order...)
	}
	for _, name := range exclude {
		delete(scope, name)
	}

	const (
		unvisited = iota
		inProgress
		done
	)
	state := make(map[string]int)
	var sorted []string

	var visit func(name string) error
	visit = func(name string) error {
		if !scope[name] {
			return nil
		}
		switch state[name] {
		case done:
			return nil
		case inProgress:
			return &CycleError{Model: name}
		}
		state[name] = inProgress
		for _, dep := range r.syncers[name].Dependencies() {
			if err := visit(dep); err != nil {
				return err
			}
		}
		state[name] = done
		sorted = append(sorted, name)
		return nil
	}

	for _, name := range requested {
		if err := visit(name); err != nil {
			return nil, err
		}
	}

	result := make([]EntitySyncer, 0, len(sorted))
	for _, name := range sorted {
		result = append(result, r.syncers[name])
	}
	return result, nil
}

// Clear removes all registrations. Intended for tests.
func (r *Registry) Clear() {
	r.syncers = make(map[string]EntitySyncer)
	r.order = nil
}
