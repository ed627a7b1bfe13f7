package ubuntu

import (
	"fmt"

	"github.com/open-edge-platform/devenv-composer/internal/pkglist"
	"github.com/open-edge-platform/devenv-composer/internal/provider"
	"github.com/open-edge-platform/devenv-composer/internal/utils/logger"
	"github.com/open-edge-platform/devenv-composer/internal/utils/shell"
	"github.com/open-edge-platform/devenv-composer/internal/utils/slice"
)

const (
	OsName = "ubuntu"
)

var log = logger.Logger()

var commandExists = shell.IsCommandExist

// ubuntu implements provider.Provider
type ubuntu struct{}

// Register installs the ubuntu provider in the provider registry.
func Register() {
	provider.Register(&ubuntu{})
}

func New() provider.Provider {
	return &ubuntu{}
}

func (p *ubuntu) Name() string {
	return OsName
}

func (p *ubuntu) PrimaryManager() string {
	return provider.ManagerApt
}

func (p *ubuntu) ManagerFor(src pkglist.Source) string {
	return provider.DefaultManagerFor(provider.ManagerApt, src)
}

func (p *ubuntu) InstallCommand(manager string, names []string) (provider.Command, error) {
	if len(names) == 0 {
		return provider.Command{}, fmt.Errorf("no packages to install via %s", manager)
	}
	switch manager {
	case provider.ManagerApt:
		args, err := provider.QuoteWords(names)
		if err != nil {
			return provider.Command{}, err
		}
		return provider.Command{
			Line: "apt-get install -y " + args,
			Sudo: true,
			Env:  []string{"DEBIAN_FRONTEND=noninteractive"},
		}, nil
	case provider.ManagerFlatpak:
		return provider.FlatpakCommand(names)
	default:
		return provider.Command{}, &provider.UnsupportedManagerError{Distro: OsName, Manager: manager}
	}
}

func (p *ubuntu) Preflight(managers []string) error {
	var missing []string
	for _, m := range slice.Dedupe(managers) {
		var tool string
		switch m {
		case provider.ManagerApt:
			tool = "apt-get"
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
	log.Debugf("ubuntu preflight passed for managers %v", managers)
	return nil
}
