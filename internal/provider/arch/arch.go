package arch

import (
	"fmt"

	"github.com/open-edge-platform/devenv-composer/internal/pkglist"
	"github.com/open-edge-platform/devenv-composer/internal/provider"
	"github.com/open-edge-platform/devenv-composer/internal/utils/logger"
	"github.com/open-edge-platform/devenv-composer/internal/utils/shell"
	"github.com/open-edge-platform/devenv-composer/internal/utils/slice"
)

const (
	OsName           = "arch"
	DefaultAURHelper = "yay"
)

var log = logger.Logger()

// commandExists is replaced in tests.
var commandExists = shell.IsCommandExist

// arch implements provider.Provider
type arch struct {
	aurHelper string
}

// New returns the arch provider using aurHelper (yay or paru) for AUR
// packages.
func New(aurHelper string) (provider.Provider, error) {
	switch aurHelper {
	case "":
		aurHelper = DefaultAURHelper
	case "yay", "paru":
	default:
		return nil, fmt.Errorf("unsupported AUR helper %q", aurHelper)
	}
	return &arch{aurHelper: aurHelper}, nil
}

// Register installs the arch provider in the provider registry.
func Register(aurHelper string) error {
	p, err := New(aurHelper)
	if err != nil {
		return err
	}
	provider.Register(p)
	return nil
}

func (p *arch) Name() string {
	return OsName
}

func (p *arch) PrimaryManager() string {
	return provider.ManagerPacman
}

func (p *arch) ManagerFor(src pkglist.Source) string {
	return provider.DefaultManagerFor(provider.ManagerPacman, src)
}

func (p *arch) InstallCommand(manager string, names []string) (provider.Command, error) {
	if len(names) == 0 {
		return provider.Command{}, fmt.Errorf("no packages to install via %s", manager)
	}
	if manager == provider.ManagerFlatpak {
		return provider.FlatpakCommand(names)
	}

	args, err := provider.QuoteWords(names)
	if err != nil {
		return provider.Command{}, err
	}
	switch manager {
	case provider.ManagerPacman:
		return provider.Command{Line: "pacman -S --needed --noconfirm " + args, Sudo: true}, nil
	case provider.ManagerAUR:
		// AUR helpers build as the invoking user and escalate on their own.
		return provider.Command{Line: p.aurHelper + " -S --needed --noconfirm " + args}, nil
	default:
		return provider.Command{}, &provider.UnsupportedManagerError{Distro: OsName, Manager: manager}
	}
}

func (p *arch) Preflight(managers []string) error {
	var missing []string
	for _, m := range slice.Dedupe(managers) {
		var tool string
		switch m {
		case provider.ManagerPacman:
			tool = "pacman"
		case provider.ManagerAUR:
			tool = p.aurHelper
		case provider.ManagerFlatpak:
			tool = "flatpak"
		default:
			return &provider.UnsupportedManagerError{Distro: OsName, Manager: m}
		}
		if !commandExists(tool) {
			missing = append(missing, tool)
		}
	}
	if len(missing) > 0 {
		return &provider.MissingToolsError{Distro: OsName, Tools: missing}
	}
	log.Debugf("arch preflight passed for managers %v", managers)
	return nil
}
