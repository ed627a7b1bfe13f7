package provisioner

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/open-edge-platform/devenv-composer/internal/condition"
	"github.com/open-edge-platform/devenv-composer/internal/hwprofile"
	"github.com/open-edge-platform/devenv-composer/internal/pkglist"
	"github.com/open-edge-platform/devenv-composer/internal/registry"
	"github.com/open-edge-platform/devenv-composer/internal/verify"
)

// PackagesDir is the directory below the config dir holding one
// subdirectory of package lists per distro.
const PackagesDir = "packages"

var (
	dataExts        = []string{".json", ".yaml", ".yml"}
	compressionExts = []string{"", ".gz", ".xz", ".zst"}
)

// Catalog is what a configuration directory holds for one distro.
type Catalog struct {
	Dir          string
	RegistryPath string
	Registry     *registry.Registry
	// ProfilesPath is empty and Profiles nil when the directory has no
	// profile file.
	ProfilesPath string
	Profiles     *hwprofile.Set
	Lists        map[string]*pkglist.List
}

// FindDataFile returns the first existing variant of name in dir, trying
// JSON then YAML, each plain then compressed.
func FindDataFile(dir, name string) (string, bool) {
	stem := strings.TrimSuffix(name, filepath.Ext(name))
	for _, ext := range dataExts {
		for _, comp := range compressionExts {
			path := filepath.Join(dir, stem+ext+comp)
			if info, err := os.Stat(path); err == nil && info.Mode().IsRegular() {
				return path, true
			}
		}
	}
	return "", false
}

// ListDir returns the package list directory for distro.
func ListDir(configDir, distro string) string {
	return filepath.Join(configDir, PackagesDir, distro)
}

// LoadCatalog loads the registry, the optional hardware profiles and the
// package lists for distro from dir. When kr is non-nil the registry and
// profile files must carry a valid detached signature.
func LoadCatalog(dir, distro string, kr *verify.Keyring) (*Catalog, error) {
	c := &Catalog{Dir: dir}

	path, ok := FindDataFile(dir, registry.DefaultFile)
	if !ok {
		return nil, fmt.Errorf("no component registry (%s) in %s", registry.DefaultFile, dir)
	}
	if kr != nil {
		if err := kr.VerifyFile(path); err != nil {
			return nil, fmt.Errorf("verifying component registry: %w", err)
		}
	}
	reg, err := registry.LoadFile(path)
	if err != nil {
		return nil, err
	}
	c.RegistryPath, c.Registry = path, reg

	if path, ok := FindDataFile(dir, hwprofile.DefaultFile); ok {
		if kr != nil {
			if err := kr.VerifyFile(path); err != nil {
				return nil, fmt.Errorf("verifying hardware profiles: %w", err)
			}
		}
		set, err := hwprofile.LoadFile(path)
		if err != nil {
			return nil, err
		}
		c.ProfilesPath, c.Profiles = path, set
	}

	lists, err := pkglist.LoadDir(ListDir(dir, distro))
	if err != nil {
		return nil, err
	}
	c.Lists = lists
	return c, nil
}

// Entries returns the parsed entries of every list keyed by component.
func (c *Catalog) Entries() map[string][]pkglist.Entry {
	out := make(map[string][]pkglist.Entry, len(c.Lists))
	for name, list := range c.Lists {
		out[name] = list.Entries
	}
	return out
}

// Mentions reports whether any package list or profile entry is guarded by
// kind.
func (c *Catalog) Mentions(kind condition.Kind) bool {
	for _, list := range c.Lists {
		if mentions(list.Entries, kind) {
			return true
		}
	}
	if c.Profiles == nil {
		return false
	}
	for _, id := range c.Profiles.IDs() {
		prof, _ := c.Profiles.Get(id)
		for _, entries := range prof.Packages {
			if mentions(entries, kind) {
				return true
			}
		}
	}
	return false
}

func mentions(entries []pkglist.Entry, kind condition.Kind) bool {
	for _, e := range entries {
		if !e.Unconditional() && condition.Parse(e.Condition) == kind {
			return true
		}
	}
	return false
}
