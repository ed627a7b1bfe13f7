// Package hwprofile loads hardware profiles: named fact overrides plus extra
// packages for machines detection alone does not describe well.
package hwprofile

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"sigs.k8s.io/yaml"

	"github.com/open-edge-platform/devenv-composer/internal/condition"
	"github.com/open-edge-platform/devenv-composer/internal/config/validate"
	"github.com/open-edge-platform/devenv-composer/internal/pkglist"
	"github.com/open-edge-platform/devenv-composer/internal/plan"
	"github.com/open-edge-platform/devenv-composer/internal/utils/compression"
	"github.com/open-edge-platform/devenv-composer/internal/utils/security"
)

// DefaultFile is the profile file name inside the config directory.
const DefaultFile = "hardware-profiles.json"

// OwnerPrefix marks plan steps that come from a profile.
const OwnerPrefix = "profile:"

// ErrUnknownProfile is returned by Get for ids the file does not define.
var ErrUnknownProfile = errors.New("unknown hardware profile")

// Profile is one entry of the profile file. Nil booleans leave the detected
// value alone.
type Profile struct {
	ID          string
	Description string
	GPU         []condition.GPUVendor
	Laptop      *bool
	VM          *bool
	Asus        *bool
	Preferences []string
	Packages    map[string][]pkglist.Entry
	// Problems holds the package lines that failed to parse, per distro.
	Problems map[string][]pkglist.SyntaxError
}

type rawProfile struct {
	Description string              `json:"description"`
	GPU         []string            `json:"gpu"`
	Laptop      *bool               `json:"laptop"`
	VM          *bool               `json:"vm"`
	Asus        *bool               `json:"asus"`
	Preferences []string            `json:"preferences"`
	Packages    map[string][]string `json:"packages"`
}

// Apply merges the profile into facts: GPU vendors are unioned, declared
// booleans replace detected ones.
func (p Profile) Apply(facts condition.FactSnapshot) condition.FactSnapshot {
	out := facts.WithGPU(p.GPU...)
	if p.Laptop != nil {
		out.IsLaptop = *p.Laptop
	}
	if p.VM != nil {
		out.IsVirtualMachine = *p.VM
	}
	if p.Asus != nil {
		out.IsAsusHardware = *p.Asus
	}
	return out
}

// Prefs returns the profile's preference tokens as a set.
func (p Profile) Prefs() condition.Preferences {
	return condition.NewPreferences(p.Preferences...)
}

// Override returns the profile packages for distro as a plan override.
func (p Profile) Override(distro string) plan.Override {
	return plan.Override{
		Owner:   OwnerPrefix + p.ID,
		Entries: append([]pkglist.Entry(nil), p.Packages[distro]...),
	}
}

// Set is every profile of one file.
type Set struct {
	profiles map[string]Profile
	ids      []string
}

// Load parses and schema-checks a JSON profile document.
func Load(data []byte) (*Set, error) {
	if err := validate.ValidateHardwareProfilesJSON(data); err != nil {
		return nil, err
	}

	var raw map[string]rawProfile
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decoding hardware profiles: %w", err)
	}

	s := &Set{profiles: make(map[string]Profile, len(raw))}
	for id, rp := range raw {
		p := Profile{
			ID:          id,
			Description: rp.Description,
			Laptop:      rp.Laptop,
			VM:          rp.VM,
			Asus:        rp.Asus,
			Preferences: rp.Preferences,
			Packages:    make(map[string][]pkglist.Entry, len(rp.Packages)),
		}
		for _, g := range rp.GPU {
			p.GPU = append(p.GPU, condition.GPUVendor(strings.ToLower(g)))
		}
		keys := make([]string, 0, len(rp.Packages))
		for key := range rp.Packages {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			distro := strings.ToLower(strings.TrimSpace(key))
			entries, errs := pkglist.ParseAll(rp.Packages[key])
			p.Packages[distro] = append(p.Packages[distro], entries...)
			if len(errs) > 0 {
				if p.Problems == nil {
					p.Problems = make(map[string][]pkglist.SyntaxError)
				}
				p.Problems[distro] = append(p.Problems[distro], errs...)
			}
		}
		s.profiles[id] = p
		s.ids = append(s.ids, id)
	}
	sort.Strings(s.ids)
	return s, nil
}

// LoadFile reads a profile file; YAML and compressed files are accepted.
func LoadFile(path string) (*Set, error) {
	data, err := compression.ReadFile(path, security.RejectSymlinks)
	if err != nil {
		return nil, fmt.Errorf("reading hardware profiles: %w", err)
	}
	switch strings.ToLower(filepath.Ext(compression.TrimExt(path))) {
	case ".yml", ".yaml":
		if data, err = yaml.YAMLToJSON(data); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
	}
	set, err := Load(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return set, nil
}

// Get returns the profile with the given id.
func (s *Set) Get(id string) (Profile, error) {
	p, ok := s.profiles[id]
	if !ok {
		return Profile{}, fmt.Errorf("%w %q (available: %s)", ErrUnknownProfile, id, strings.Join(s.ids, ", "))
	}
	return p, nil
}

// IDs lists the profile ids in sorted order.
func (s *Set) IDs() []string {
	return append([]string(nil), s.ids...)
}
