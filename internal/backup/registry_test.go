package backup

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSyncer is a registry test double that never touches a store.
type fakeSyncer struct {
	name string
	deps []string
}

func (f *fakeSyncer) ModelName() string      { return f.name }
func (f *fakeSyncer) Dependencies() []string { return f.deps }

func (f *fakeSyncer) Export(ctx context.Context, dir string) *ExportResult {
	return &ExportResult{Model: f.name, Success: true}
}

func (f *fakeSyncer) Import(ctx context.Context, ictx *ImportContext, records []Record, opts ImportOptions) *ImportResult {
	return &ImportResult{Model: f.name}
}

func newTestRegistry(t *testing.T, syncers ...*fakeSyncer) *Registry {
	t.Helper()
	r := NewRegistry("test")
	for _, s := range syncers {
		require.NoError(t, r.Register(s))
	}
	return r
}

func orderedNames(t *testing.T, r *Registry, include, exclude []string) []string {
	t.Helper()
	ordered, err := r.GetOrdered(include, exclude)
	require.NoError(t, err)
	names := make([]string, len(ordered))
	for i, s := range ordered {
		names[i] = s.ModelName()
	}
	return names
}

func assertBefore(t *testing.T, names []string, earlier, later string) {
	t.Helper()
	ei, li := -1, -1
	for i, n := range names {
		if n == earlier {
			ei = i
		}
		if n == later {
			li = i
		}
	}
	require.NotEqual(t, -1, ei, "%s missing from order %v", earlier, names)
	require.NotEqual(t, -1, li, "%s missing from order %v", later, names)
	assert.Less(t, ei, li, "%s must precede %s in %v", earlier, later, names)
}

func TestRegisterRejectsEmptyModelName(t *testing.T) {
	r := NewRegistry("test")
	err := r.Register(&fakeSyncer{name: ""})
	assert.Error(t, err)
	assert.True(t, IsErrorType(err, SyncErrorTypeRegistry))
}

func TestRegisterLastWins(t *testing.T) {
	first := &fakeSyncer{name: "users"}
	second := &fakeSyncer{name: "users", deps: []string{"projects"}}
	r := newTestRegistry(t, first, &fakeSyncer{name: "projects"}, second)

	got, ok := r.Get("users")
	require.True(t, ok)
	assert.Same(t, EntitySyncer(second), got)
	assert.Equal(t, []string{"users", "projects"}, r.ModelNames())
}

func TestGetOrderedDependencyOrder(t *testing.T) {
	r := newTestRegistry(t,
		&fakeSyncer{name: "reservations", deps: []string{"projects", "nodes", "users"}},
		&fakeSyncer{name: "cost_allocations", deps: []string{"reservations"}},
		&fakeSyncer{name: "nodes", deps: []string{"node_types"}},
		&fakeSyncer{name: "node_types"},
		&fakeSyncer{name: "users"},
		&fakeSyncer{name: "projects", deps: []string{"users"}},
	)

	names := orderedNames(t, r, nil, nil)
	require.Len(t, names, 6)
	assertBefore(t, names, "users", "projects")
	assertBefore(t, names, "projects", "reservations")
	assertBefore(t, names, "node_types", "nodes")
	assertBefore(t, names, "nodes", "reservations")
	assertBefore(t, names, "reservations", "cost_allocations")
}

func TestGetOrderedCycle(t *testing.T) {
	r := newTestRegistry(t,
		&fakeSyncer{name: "a", deps: []string{"b"}},
		&fakeSyncer{name: "b", deps: []string{"a"}},
	)

	_, err := r.GetOrdered(nil, nil)
	require.Error(t, err)
	var cycleErr *CycleError
	assert.True(t, errors.As(err, &cycleErr))
}

func TestGetOrderedInclude(t *testing.T) {
	r := newTestRegistry(t,
		&fakeSyncer{name: "users"},
		&fakeSyncer{name: "projects", deps: []string{"users"}},
		&fakeSyncer{name: "resources"},
	)

	names := orderedNames(t, r, []string{"projects", "users"}, nil)
	assert.Equal(t, []string{"users", "projects"}, names)
}

func TestGetOrderedIncludeUnknown(t *testing.T) {
	r := newTestRegistry(t, &fakeSyncer{name: "users"})
	_, err := r.GetOrdered([]string{"invoices"}, nil)
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
}

func TestGetOrderedExclude(t *testing.T) {
	r := newTestRegistry(t,
		&fakeSyncer{name: "users"},
		&fakeSyncer{name: "projects", deps: []string{"users"}},
	)

	names := orderedNames(t, r, nil, []string{"users"})
	assert.Equal(t, []string{"projects"}, names, "dependencies outside scope are ignored")
}

func TestGetOrderedIgnoresOutOfScopeDependency(t *testing.T) {
	// nodes depends on resources, which lives in a different component's
	// registry; ordering must not fail on the dangling edge.
	r := newTestRegistry(t,
		&fakeSyncer{name: "node_types"},
		&fakeSyncer{name: "nodes", deps: []string{"node_types", "resources"}},
	)

	names := orderedNames(t, r, nil, nil)
	assert.Equal(t, []string{"node_types", "nodes"}, names)
}

func TestClear(t *testing.T) {
	r := newTestRegistry(t, &fakeSyncer{name: "users"})
	r.Clear()
	assert.Empty(t, r.ModelNames())
	_, ok := r.Get("users")
	assert.False(t, ok)
}

func TestBuiltinRegistriesAcyclic(t *testing.T) {
	for _, reg := range []*Registry{NewCoreRegistry(nil), NewRentalRegistry(nil)} {
		ordered, err := reg.GetOrdered(nil, nil)
		require.NoError(t, err, "component %s", reg.Component())
		assert.Len(t, ordered, len(reg.ModelNames()))
	}
}
