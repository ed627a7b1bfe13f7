package main

import (
	"fmt"
	"os"
	"os/user"

	"github.com/open-edge-platform/devenv-composer/internal/config"
	"github.com/open-edge-platform/devenv-composer/internal/detect"
	"github.com/open-edge-platform/devenv-composer/internal/provisioner"
	"github.com/open-edge-platform/devenv-composer/internal/registry"
	"github.com/open-edge-platform/devenv-composer/internal/ui/selector"
	"github.com/open-edge-platform/devenv-composer/internal/utils/logger"
	"github.com/open-edge-platform/devenv-composer/internal/utils/slice"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// newFactSource is replaced in tests.
var newFactSource = func() provisioner.FactSource {
	return detect.New()
}

// selectComponents is replaced in tests.
var selectComponents = selector.Select

// selectionFlags are shared by plan and install.
type selectionFlags struct {
	distro      string
	profile     string
	prefer      []string
	interactive bool
}

func (f *selectionFlags) register(fs *pflag.FlagSet) {
	fs.StringVar(&f.distro, "distro", "", "Target distro (auto, arch, ubuntu); overrides configuration")
	fs.StringVar(&f.profile, "profile", "", "Hardware profile id; overrides configuration")
	fs.StringArrayVar(&f.prefer, "prefer", nil, "Opt into preferences such as gaming (repeatable, comma separated)")
	fs.BoolVarP(&f.interactive, "interactive", "i", false, "Pick components from a checklist")
}

// preferences flattens --prefer values, so "--prefer gaming,dev" and two
// separate flags mean the same.
func (f *selectionFlags) preferences() []string {
	var out []string
	for _, v := range f.prefer {
		out = append(out, slice.SplitCSV(v)...)
	}
	return out
}

func (f *selectionFlags) provisioner() (*provisioner.Provisioner, error) {
	cfg := config.Global()

	distro := cfg.Distro
	if f.distro != "" {
		distro = f.distro
	}
	profile := cfg.Profile
	if f.profile != "" {
		profile = f.profile
	}
	keyring := ""
	if cfg.Verify {
		keyring = cfg.Keyring
	}

	return provisioner.New(provisioner.Options{
		ConfigDir:   cfg.ConfigDir,
		Distro:      distro,
		Profile:     profile,
		Preferences: cfg.Preferences,
		AURHelper:   cfg.AURHelper,
		Keyring:     keyring,
		Facts:       newFactSource(),
		Log:         logger.Logger(),
	})
}

// components returns the selection from args, or from the checklist when
// interactive.
func (f *selectionFlags) components(p *provisioner.Provisioner, args []string) ([]string, error) {
	if !f.interactive {
		if len(args) == 0 {
			return nil, fmt.Errorf("%w: name components or use --interactive", provisioner.ErrNoComponents)
		}
		return args, nil
	}
	return selectComponents(componentItems(p.Catalog().Registry), args)
}

func componentItems(reg *registry.Registry) []selector.Item {
	comps := reg.Components()
	items := make([]selector.Item, len(comps))
	for i, c := range comps {
		items[i] = selector.Item{Name: c.Name, Description: c.Description}
	}
	return items
}

// loadRegistry reads the registry from the configured directory.
func loadRegistry() (*registry.Registry, error) {
	dir := config.Global().ConfigDir
	path, ok := provisioner.FindDataFile(dir, registry.DefaultFile)
	if !ok {
		return nil, fmt.Errorf("no component registry (%s) in %s", registry.DefaultFile, dir)
	}
	return registry.LoadFile(path)
}

// targetUser is the account that receives group memberships: the invoking
// user when running under sudo.
func targetUser() string {
	if u := os.Getenv("SUDO_USER"); u != "" {
		return u
	}
	if u, err := user.Current(); err == nil {
		return u.Username
	}
	return os.Getenv("USER")
}

func indentPaths(values []string) []string {
	lines := make([]string, len(values))
	for i, v := range values {
		lines[i] = "  " + v
	}
	return lines
}

func printLines(cmd *cobra.Command, lines []string) {
	w := cmd.OutOrStdout()
	for _, line := range lines {
		fmt.Fprintln(w, line)
	}
}
