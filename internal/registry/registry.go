// Package registry loads the declarative component catalog
// (component-deps.json) and serves read-only lookups over it.
package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"sigs.k8s.io/yaml"

	"github.com/open-edge-platform/devenv-composer/internal/config/validate"
	"github.com/open-edge-platform/devenv-composer/internal/pkglist"
	"github.com/open-edge-platform/devenv-composer/internal/utils/compression"
	"github.com/open-edge-platform/devenv-composer/internal/utils/security"
	"github.com/open-edge-platform/devenv-composer/internal/utils/slice"
)

// DefaultFile is the registry file name inside the config directory.
const DefaultFile = "component-deps.json"

// ErrNotFound is returned by Lookup for names the registry does not hold.
var ErrNotFound = errors.New("component not found")

// Component is one installable unit of the catalog.
type Component struct {
	Name        string
	Description string
	// Packages maps a distro id to the ordered package references for it.
	Packages     map[string][]pkglist.Entry
	Dependencies []string
	Conflicts    []string
	PostInstall  []string
}

// PackagesFor returns the packages declared for distro and whether the
// distro is declared at all.
func (c Component) PackagesFor(distro string) ([]pkglist.Entry, bool) {
	entries, ok := c.Packages[distro]
	return entries, ok
}

// ConflictsWith reports whether c declares a conflict with name.
func (c Component) ConflictsWith(name string) bool {
	return slice.Contains(c.Conflicts, name)
}

func (c Component) clone() Component {
	out := c
	out.Packages = make(map[string][]pkglist.Entry, len(c.Packages))
	for distro, entries := range c.Packages {
		out.Packages[distro] = append([]pkglist.Entry(nil), entries...)
	}
	out.Dependencies = append([]string(nil), c.Dependencies...)
	out.Conflicts = append([]string(nil), c.Conflicts...)
	out.PostInstall = append([]string(nil), c.PostInstall...)
	return out
}

// LoadError reports a registry that cannot be used at all.
type LoadError struct {
	Component string
	// Dependency is set when the failure is a reference to an unknown
	// component.
	Dependency string
	Err        error
}

func (e *LoadError) Error() string {
	switch {
	case e.Dependency != "":
		return fmt.Sprintf("component %q depends on unknown component %q", e.Component, e.Dependency)
	case e.Component != "":
		return fmt.Sprintf("component %q: %v", e.Component, e.Err)
	default:
		return fmt.Sprintf("loading component registry: %v", e.Err)
	}
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// Registry is an immutable set of components.
type Registry struct {
	components map[string]Component
	names      []string
}

type rawComponent struct {
	Description  string              `json:"description,omitempty"`
	Packages     map[string][]string `json:"packages,omitempty"`
	Dependencies []string            `json:"dependencies,omitempty"`
	Conflicts    []string            `json:"conflicts,omitempty"`
	PostInstall  []string            `json:"post_install,omitempty"`
}

// Load parses a JSON registry document, validates it against the embedded
// schema and checks every dependency reference.
func Load(data []byte) (*Registry, error) {
	if err := validate.ValidateComponentDepsJSON(data); err != nil {
		return nil, &LoadError{Err: err}
	}

	var raw map[string]rawComponent
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, &LoadError{Err: err}
	}

	names := make([]string, 0, len(raw))
	for name := range raw {
		names = append(names, name)
	}
	sort.Strings(names)

	components := make([]Component, 0, len(raw))
	for _, name := range names {
		rc := raw[name]
		c := Component{
			Name:         name,
			Description:  rc.Description,
			Packages:     make(map[string][]pkglist.Entry, len(rc.Packages)),
			Dependencies: slice.Dedupe(rc.Dependencies),
			Conflicts:    slice.Dedupe(rc.Conflicts),
			PostInstall:  rc.PostInstall,
		}
		for distro, refs := range rc.Packages {
			distro = strings.ToLower(strings.TrimSpace(distro))
			entries := make([]pkglist.Entry, 0, len(refs))
			for _, ref := range refs {
				entry, err := pkglist.ParseRef(ref)
				if err != nil {
					return nil, &LoadError{Component: name, Err: err}
				}
				entries = append(entries, entry)
			}
			c.Packages[distro] = entries
		}
		components = append(components, c)
	}
	return New(components...)
}

// LoadFile reads a registry from disk. YAML files (.yml, .yaml) are
// converted to JSON first; compressed files are decompressed.
func LoadFile(path string) (*Registry, error) {
	data, err := compression.ReadFile(path, security.RejectSymlinks)
	if err != nil {
		return nil, fmt.Errorf("reading component registry: %w", err)
	}
	if isYAML(path) {
		data, err = yaml.YAMLToJSON(data)
		if err != nil {
			return nil, &LoadError{Err: fmt.Errorf("parsing %s: %w", path, err)}
		}
	}
	reg, err := Load(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return reg, nil
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(compression.TrimExt(path))) {
	case ".yml", ".yaml":
		return true
	}
	return false
}

// New builds a registry from already-constructed components. Names must be
// unique and every dependency must name a component in the set. Conflicts
// may name components that are not present.
func New(components ...Component) (*Registry, error) {
	r := &Registry{components: make(map[string]Component, len(components))}
	for _, c := range components {
		if c.Name == "" {
			return nil, &LoadError{Err: errors.New("component with empty name")}
		}
		if _, dup := r.components[c.Name]; dup {
			return nil, &LoadError{Component: c.Name, Err: errors.New("duplicate component")}
		}
		r.components[c.Name] = c.clone()
		r.names = append(r.names, c.Name)
	}
	sort.Strings(r.names)

	for _, name := range r.names {
		for _, dep := range r.components[name].Dependencies {
			if _, ok := r.components[dep]; !ok {
				return nil, &LoadError{Component: name, Dependency: dep}
			}
		}
	}
	return r, nil
}

// Lookup returns a copy of the named component.
func (r *Registry) Lookup(name string) (Component, error) {
	c, ok := r.components[name]
	if !ok {
		return Component{}, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	return c.clone(), nil
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	_, ok := r.components[name]
	return ok
}

// Names returns every component name in sorted order.
func (r *Registry) Names() []string {
	return append([]string(nil), r.names...)
}

// Components returns copies of every component sorted by name.
func (r *Registry) Components() []Component {
	out := make([]Component, 0, len(r.names))
	for _, name := range r.names {
		out = append(out, r.components[name].clone())
	}
	return out
}

func (r *Registry) Len() int {
	return len(r.names)
}
