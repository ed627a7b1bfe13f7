// Package resolver expands a component selection into its transitive
// dependency closure, rejects cycles and conflicts, and orders the result
// so that dependencies come before their dependents.
package resolver

import (
	"fmt"
	"sort"
	"strings"

	"github.com/open-edge-platform/devenv-composer/internal/registry"
	"github.com/open-edge-platform/devenv-composer/internal/utils/slice"
)

// Catalog is the read side of a component registry.
type Catalog interface {
	Lookup(name string) (registry.Component, error)
}

// ErrorKind distinguishes resolution failures.
type ErrorKind int

const (
	Cycle ErrorKind = iota + 1
	Conflict
)

func (k ErrorKind) String() string {
	switch k {
	case Cycle:
		return "cycle"
	case Conflict:
		return "conflict"
	default:
		return "unknown"
	}
}

// ResolutionError aborts a resolution. Path holds the cycle with its first
// component repeated at the end; Pair holds the conflicting components with
// the declaring one first.
type ResolutionError struct {
	Kind ErrorKind
	Path []string
	Pair [2]string
}

func (e *ResolutionError) Error() string {
	switch e.Kind {
	case Cycle:
		return "dependency cycle: " + strings.Join(e.Path, " -> ")
	case Conflict:
		return fmt.Sprintf("conflicting components: %q conflicts with %q", e.Pair[0], e.Pair[1])
	default:
		return "resolution failed"
	}
}

// Resolved is the outcome of a successful resolution.
type Resolved struct {
	// Selected is the deduplicated user selection in its given order.
	Selected []string
	// Order lists every component of the closure, dependencies first.
	Order []registry.Component
}

// Names returns the component names of Order.
func (r *Resolved) Names() []string {
	names := make([]string, len(r.Order))
	for i, c := range r.Order {
		names[i] = c.Name
	}
	return names
}

// Contains reports whether name is part of the resolved set.
func (r *Resolved) Contains(name string) bool {
	for _, c := range r.Order {
		if c.Name == name {
			return true
		}
	}
	return false
}

const (
	white = iota
	gray
	black
)

type walker struct {
	catalog    Catalog
	components map[string]registry.Component
	color      map[string]int
	rank       map[string]int
	stack      []string
}

// Resolve expands selected against catalog. Unknown selected names fail
// with an error wrapping registry.ErrNotFound. A cycle or conflict anywhere
// in the closure fails with *ResolutionError and no partial result.
//
// Components that become ready at the same time are ordered by the position
// of the earliest selected component that pulls them in, then by name.
func Resolve(selected []string, catalog Catalog) (*Resolved, error) {
	roots := slice.Dedupe(selected)

	w := &walker{
		catalog:    catalog,
		components: make(map[string]registry.Component),
		color:      make(map[string]int),
		rank:       make(map[string]int),
	}
	for i, name := range roots {
		if err := w.visit(name, i); err != nil {
			return nil, err
		}
	}

	names := make([]string, 0, len(w.components))
	for name := range w.components {
		names = append(names, name)
	}
	sort.Strings(names)

	if err := checkConflicts(names, w.components); err != nil {
		return nil, err
	}

	return &Resolved{
		Selected: roots,
		Order:    w.order(names),
	}, nil
}

// visit walks the dependency graph depth first. Gray marks components whose
// expansion is still in progress, so reaching one again closes a cycle.
func (w *walker) visit(name string, rank int) error {
	switch w.color[name] {
	case gray:
		start := 0
		for i, n := range w.stack {
			if n == name {
				start = i
				break
			}
		}
		path := append(append([]string(nil), w.stack[start:]...), name)
		return &ResolutionError{Kind: Cycle, Path: path}
	case black:
		return nil
	}

	c, err := w.catalog.Lookup(name)
	if err != nil {
		return fmt.Errorf("resolving %q: %w", name, err)
	}

	w.color[name] = gray
	w.rank[name] = rank
	w.stack = append(w.stack, name)
	for _, dep := range c.Dependencies {
		if err := w.visit(dep, rank); err != nil {
			return err
		}
	}
	w.stack = w.stack[:len(w.stack)-1]
	w.color[name] = black
	w.components[name] = c
	return nil
}

func checkConflicts(names []string, components map[string]registry.Component) error {
	for _, name := range names {
		for _, other := range components[name].Conflicts {
			if other == name {
				continue
			}
			if _, ok := components[other]; ok {
				return &ResolutionError{Kind: Conflict, Pair: [2]string{name, other}}
			}
		}
	}
	return nil
}

// order is Kahn's algorithm over the closure with a (rank, name) priority
// among ready components.
func (w *walker) order(names []string) []registry.Component {
	pending := make(map[string]int, len(names))
	dependents := make(map[string][]string, len(names))
	for _, name := range names {
		deps := slice.Dedupe(w.components[name].Dependencies)
		pending[name] = len(deps)
		for _, dep := range deps {
			dependents[dep] = append(dependents[dep], name)
		}
	}

	var ready []string
	for _, name := range names {
		if pending[name] == 0 {
			ready = append(ready, name)
		}
	}

	less := func(a, b string) bool {
		if w.rank[a] != w.rank[b] {
			return w.rank[a] < w.rank[b]
		}
		return a < b
	}

	out := make([]registry.Component, 0, len(names))
	for len(ready) > 0 {
		sort.Slice(ready, func(i, j int) bool { return less(ready[i], ready[j]) })
		next := ready[0]
		ready = ready[1:]
		out = append(out, w.components[next])
		for _, d := range dependents[next] {
			pending[d]--
			if pending[d] == 0 {
				ready = append(ready, d)
			}
		}
	}
	return out
}
