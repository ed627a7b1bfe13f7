// Package provisioner ties the pieces together: it loads a configuration
// directory, detects host facts, resolves the requested components, builds
// the installation plan and hands it to an executor.
package provisioner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"

	"go.uber.org/zap"

	"github.com/open-edge-platform/devenv-composer/internal/condition"
	"github.com/open-edge-platform/devenv-composer/internal/executor"
	"github.com/open-edge-platform/devenv-composer/internal/hwprofile"
	"github.com/open-edge-platform/devenv-composer/internal/plan"
	"github.com/open-edge-platform/devenv-composer/internal/provider"
	"github.com/open-edge-platform/devenv-composer/internal/provider/arch"
	"github.com/open-edge-platform/devenv-composer/internal/provider/ubuntu"
	"github.com/open-edge-platform/devenv-composer/internal/resolver"
	"github.com/open-edge-platform/devenv-composer/internal/utils/logger"
	"github.com/open-edge-platform/devenv-composer/internal/utils/slice"
	"github.com/open-edge-platform/devenv-composer/internal/verify"
)

// ErrNoComponents is returned when a plan is requested for nothing.
var ErrNoComponents = errors.New("no components selected")

// FactSource yields the host facts. detect.Detector is the live one.
type FactSource interface {
	Detect() condition.FactSnapshot
}

// Options configure a Provisioner.
type Options struct {
	ConfigDir string
	// Distro is arch, ubuntu, or auto/empty to read os-release below Root.
	Distro      string
	Root        string
	Profile     string
	Preferences []string
	AURHelper   string
	// Keyring, when set, requires signed registry and profile files.
	Keyring string
	// Provider replaces the registered provider for Distro.
	Provider provider.Provider
	Facts    FactSource
	Log      *zap.SugaredLogger
}

// Provisioner holds a loaded configuration for one distro.
type Provisioner struct {
	opts     Options
	distro   string
	provider provider.Provider
	catalog  *Catalog
	profile  *hwprofile.Profile
	eval     *condition.Evaluator
	log      *zap.SugaredLogger
}

// RegisterProviders installs the built-in distro providers.
func RegisterProviders(aurHelper string) error {
	if err := arch.Register(aurHelper); err != nil {
		return err
	}
	ubuntu.Register()
	return nil
}

// ResolveDistro returns distro, or the family read from os-release below
// root when distro is auto or empty.
func ResolveDistro(distro, root string) (string, error) {
	if distro != "" && distro != "auto" {
		return distro, nil
	}
	if root == "" {
		root = "/"
	}
	return provider.DetectDistro(root)
}

// New loads the configuration directory and selects the distro provider.
func New(opts Options) (*Provisioner, error) {
	log := opts.Log
	if log == nil {
		log = logger.Logger()
	}

	distro, err := ResolveDistro(opts.Distro, opts.Root)
	if err != nil {
		return nil, fmt.Errorf("detecting distribution: %w", err)
	}

	prov := opts.Provider
	if prov == nil {
		if err := RegisterProviders(opts.AURHelper); err != nil {
			return nil, err
		}
		var ok bool
		if prov, ok = provider.Get(distro); !ok {
			return nil, fmt.Errorf("no provider for distro %q (supported: %v)", distro, provider.Names())
		}
	}

	var kr *verify.Keyring
	if opts.Keyring != "" {
		if kr, err = verify.LoadKeyring(opts.Keyring); err != nil {
			return nil, err
		}
	}

	catalog, err := LoadCatalog(opts.ConfigDir, distro, kr)
	if err != nil {
		return nil, err
	}

	p := &Provisioner{
		opts:     opts,
		distro:   distro,
		provider: prov,
		catalog:  catalog,
		eval:     condition.NewEvaluator(log),
		log:      log,
	}

	if opts.Profile != "" {
		if catalog.Profiles == nil {
			return nil, fmt.Errorf("%w %q: %s has no hardware profiles", hwprofile.ErrUnknownProfile, opts.Profile, opts.ConfigDir)
		}
		prof, err := catalog.Profiles.Get(opts.Profile)
		if err != nil {
			return nil, err
		}
		for _, errs := range prof.Problems {
			for _, e := range errs {
				log.Warnf("hardware profile %s: %v", prof.ID, e)
			}
		}
		p.profile = &prof
	}

	p.reportLists()
	log.Debugf("loaded %d components and %d package lists for %s from %s",
		catalog.Registry.Len(), len(catalog.Lists), distro, opts.ConfigDir)
	return p, nil
}

func (p *Provisioner) reportLists() {
	names := make([]string, 0, len(p.catalog.Lists))
	for name := range p.catalog.Lists {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		list := p.catalog.Lists[name]
		for _, e := range list.Errors {
			p.log.Warnf("%s: %v", list.Path, e)
		}
		if !p.catalog.Registry.Has(name) {
			p.log.Warnf("package list %s has no matching component and is ignored", list.Path)
		}
	}
}

func (p *Provisioner) Distro() string              { return p.distro }
func (p *Provisioner) Provider() provider.Provider { return p.provider }
func (p *Provisioner) Catalog() *Catalog           { return p.catalog }

// Profile returns the selected hardware profile, if any.
func (p *Provisioner) Profile() (hwprofile.Profile, bool) {
	if p.profile == nil {
		return hwprofile.Profile{}, false
	}
	return *p.profile, true
}

// Facts detects host facts and merges the hardware profile over them.
func (p *Provisioner) Facts() condition.FactSnapshot {
	var facts condition.FactSnapshot
	if p.opts.Facts != nil {
		facts = p.opts.Facts.Detect()
	}
	if p.profile != nil {
		facts = p.profile.Apply(facts)
	}
	return facts
}

// Preferences unions the configured tokens, the profile's tokens and extra.
func (p *Provisioner) Preferences(extra ...string) condition.Preferences {
	prefs := condition.NewPreferences(append(append([]string(nil), p.opts.Preferences...), extra...)...)
	if p.profile != nil {
		prefs = prefs.Union(p.profile.Prefs())
	}
	return prefs
}

// Plan resolves selected against the registry and builds the plan.
func (p *Provisioner) Plan(selected []string, facts condition.FactSnapshot, prefs condition.Preferences) (*plan.Plan, error) {
	if len(selected) == 0 {
		return nil, ErrNoComponents
	}

	resolved, err := resolver.Resolve(selected, p.catalog.Registry)
	if err != nil {
		return nil, err
	}
	p.log.Infof("Resolved %v to %d components: %v", selected, len(resolved.Order), resolved.Names())

	in := plan.Input{
		Order:        resolved.Order,
		Distro:       p.distro,
		Managers:     p.provider,
		PackageLists: p.catalog.Entries(),
		Facts:        facts,
		Preferences:  prefs,
		Evaluator:    p.eval,
		Logger:       p.log,
	}
	if p.profile != nil {
		in.Profile = p.profile.ID
		in.Overrides = []plan.Override{p.profile.Override(p.distro)}
	}

	built := plan.Build(in)
	p.log.Infof("Plan %s: %s", built.ID, built.Summary())
	return built, nil
}

// Managers lists the package managers a plan needs, sorted.
func Managers(pl *plan.Plan) []string {
	var managers []string
	for _, s := range pl.Steps {
		if s.Kind == plan.InstallPackage {
			managers = append(managers, s.Manager)
		}
	}
	managers = slice.Dedupe(managers)
	sort.Strings(managers)
	return managers
}

// Preflight checks the host has the tools the plan's managers need.
func (p *Provisioner) Preflight(pl *plan.Plan) error {
	return p.provider.Preflight(Managers(pl))
}

// ExecutorOptions select how a plan is executed.
type ExecutorOptions struct {
	DryRun bool
	// Out receives dry-run output.
	Out  io.Writer
	User string
	// Actions are extra post-install handlers by id.
	Actions map[string]executor.ActionFunc
}

// NewExecutor returns a DryRun or System executor bound to the provider.
func (p *Provisioner) NewExecutor(opts ExecutorOptions) (executor.Executor, error) {
	eo := executor.Options{Provider: p.provider, User: opts.User, Actions: opts.Actions, Log: p.log}
	if opts.DryRun {
		return executor.NewDryRun(eo, opts.Out)
	}
	return executor.NewSystem(eo, nil)
}

// Execute runs the plan. Real executions are preflighted first.
func (p *Provisioner) Execute(ctx context.Context, pl *plan.Plan, exec executor.Executor, opts executor.RunOptions) (*executor.RunResult, error) {
	if _, dry := exec.(*executor.DryRun); !dry {
		if err := p.Preflight(pl); err != nil {
			return nil, err
		}
	}
	if opts.Log == nil {
		opts.Log = p.log
	}
	return executor.Run(ctx, pl, exec, opts)
}
