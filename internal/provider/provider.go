// Package provider holds the per-distro knowledge the rest of the tool
// needs: which package manager installs which source, and how to invoke it.
package provider

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"mvdan.cc/sh/v3/syntax"

	"github.com/open-edge-platform/devenv-composer/internal/pkglist"
)

// Manager names used in plan steps.
const (
	ManagerPacman  = "pacman"
	ManagerAUR     = "aur"
	ManagerApt     = "apt"
	ManagerFlatpak = "flatpak"
)

// Provider is the interface every distro plugin implements.
type Provider interface {
	// Name is the distro id, e.g. "arch" or "ubuntu".
	Name() string

	// PrimaryManager installs entries without an explicit source.
	PrimaryManager() string

	// ManagerFor maps a package source onto the manager that installs it.
	ManagerFor(src pkglist.Source) string

	// InstallCommand returns the command installing names through manager.
	InstallCommand(manager string, names []string) (Command, error)

	// Preflight checks that the tools for managers are present on the host.
	Preflight(managers []string) error
}

var (
	mu        sync.RWMutex
	providers = make(map[string]Provider)
)

// Register makes a Provider available under its Name().
func Register(p Provider) {
	mu.Lock()
	defer mu.Unlock()
	providers[p.Name()] = p
}

// Get returns the Provider by name.
func Get(name string) (Provider, bool) {
	mu.RLock()
	defer mu.RUnlock()
	p, ok := providers[name]
	return p, ok
}

// Names lists the registered providers.
func Names() []string {
	mu.RLock()
	defer mu.RUnlock()
	names := make([]string, 0, len(providers))
	for name := range providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Command is a shell command line plus how to run it.
type Command struct {
	Line string
	Sudo bool
	Env  []string
}

// DefaultManagerFor implements the source mapping shared by all distros:
// the default source goes to primary, explicit sources keep their name.
func DefaultManagerFor(primary string, src pkglist.Source) string {
	switch src.Kind {
	case pkglist.SourceDefault:
		return primary
	case pkglist.SourceAUR:
		return ManagerAUR
	case pkglist.SourceApt:
		return ManagerApt
	default:
		return src.Name
	}
}

// QuoteWords renders words as bash-safe arguments joined by spaces.
func QuoteWords(words []string) (string, error) {
	quoted := make([]string, 0, len(words))
	for _, w := range words {
		q, err := syntax.Quote(w, syntax.LangBash)
		if err != nil {
			return "", fmt.Errorf("cannot quote %q: %w", w, err)
		}
		quoted = append(quoted, q)
	}
	return strings.Join(quoted, " "), nil
}

// FlatpakCommand is shared by every distro that supports flatpak entries.
func FlatpakCommand(names []string) (Command, error) {
	args, err := QuoteWords(names)
	if err != nil {
		return Command{}, err
	}
	return Command{Line: "flatpak install -y --noninteractive flathub " + args, Sudo: true}, nil
}

// MissingToolsError lists the manager binaries Preflight could not find.
type MissingToolsError struct {
	Distro string
	Tools  []string
}

func (e *MissingToolsError) Error() string {
	return fmt.Sprintf("%s: required tools not found: %s", e.Distro, strings.Join(e.Tools, ", "))
}

// UnsupportedManagerError is returned for managers a distro cannot drive.
type UnsupportedManagerError struct {
	Distro  string
	Manager string
}

func (e *UnsupportedManagerError) Error() string {
	return fmt.Sprintf("package manager %q is not supported on %s", e.Manager, e.Distro)
}
