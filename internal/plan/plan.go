// Package plan turns a resolved component order into the final ordered list
// of installation steps.
package plan

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/open-edge-platform/devenv-composer/internal/condition"
	"github.com/open-edge-platform/devenv-composer/internal/pkglist"
	"github.com/open-edge-platform/devenv-composer/internal/registry"
)

// StepKind tags the variant held by a Step.
type StepKind int

const (
	InstallPackage StepKind = iota + 1
	RunPostInstall
)

func (k StepKind) String() string {
	switch k {
	case InstallPackage:
		return "install"
	case RunPostInstall:
		return "post-install"
	default:
		return "unknown"
	}
}

func (k StepKind) MarshalText() ([]byte, error) {
	if k != InstallPackage && k != RunPostInstall {
		return nil, fmt.Errorf("invalid step kind %d", int(k))
	}
	return []byte(k.String()), nil
}

func (k *StepKind) UnmarshalText(text []byte) error {
	switch string(text) {
	case "install":
		*k = InstallPackage
	case "post-install":
		*k = RunPostInstall
	default:
		return fmt.Errorf("invalid step kind %q", text)
	}
	return nil
}

// Step is one atomic action. InstallPackage steps carry Package and
// Manager; RunPostInstall steps carry Action.
type Step struct {
	Kind      StepKind       `json:"kind"`
	Component string         `json:"component"`
	Package   *pkglist.Entry `json:"package,omitempty"`
	Manager   string         `json:"manager,omitempty"`
	Action    string         `json:"action,omitempty"`
}

// Install returns an InstallPackage step.
func Install(entry pkglist.Entry, manager, owner string) Step {
	e := entry
	return Step{Kind: InstallPackage, Component: owner, Package: &e, Manager: manager}
}

// PostInstall returns a RunPostInstall step.
func PostInstall(action, owner string) Step {
	return Step{Kind: RunPostInstall, Component: owner, Action: action}
}

// Key identifies the package an install step puts on the system.
func (s Step) Key() string {
	if s.Kind != InstallPackage || s.Package == nil {
		return ""
	}
	return s.Manager + ":" + s.Package.Name
}

func (s Step) String() string {
	switch s.Kind {
	case InstallPackage:
		name := ""
		if s.Package != nil {
			name = s.Package.Name
		}
		return fmt.Sprintf("install %s via %s [%s]", name, s.Manager, s.Component)
	case RunPostInstall:
		return fmt.Sprintf("run %s [%s]", s.Action, s.Component)
	default:
		return "unknown step"
	}
}

// ManagerResolver maps a package source onto the manager that installs it.
type ManagerResolver interface {
	ManagerFor(src pkglist.Source) string
}

// Override is a set of extra entries appended after every component, such
// as a hardware profile's package list.
type Override struct {
	Owner   string
	Entries []pkglist.Entry
}

// Input is everything Build needs. It is read but never modified.
type Input struct {
	Order        []registry.Component
	Distro       string
	Managers     ManagerResolver
	PackageLists map[string][]pkglist.Entry
	Facts        condition.FactSnapshot
	Preferences  condition.Preferences
	Overrides    []Override
	Profile      string
	// Evaluator is shared when the caller wants unknown conditions reported
	// once across several builds. A fresh one is used when nil.
	Evaluator *condition.Evaluator
	Logger    *zap.SugaredLogger
}

// Plan is the final ordered list of steps plus the context it was built
// for.
type Plan struct {
	ID          string                 `json:"id"`
	CreatedAt   time.Time              `json:"created_at"`
	Distro      string                 `json:"distro"`
	Profile     string                 `json:"profile,omitempty"`
	Components  []string               `json:"components"`
	Facts       condition.FactSnapshot `json:"facts"`
	Preferences []string               `json:"preferences,omitempty"`
	Steps       []Step                 `json:"steps"`
	Duplicates  int                    `json:"duplicates"`
	Filtered    int                    `json:"filtered"`
}

type builder struct {
	in    Input
	log   *zap.SugaredLogger
	eval  *condition.Evaluator
	owner map[string]string
	plan  *Plan
}

// Build emits, for each component in order, its registry packages for the
// distro, then its package list entries whose condition holds, then its
// post-install actions. Overrides follow the last component. Install steps
// are deduplicated by manager and package name across the whole plan,
// keeping the first.
func Build(in Input) *Plan {
	log := in.Logger
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	eval := in.Evaluator
	if eval == nil {
		eval = condition.NewEvaluator(log)
	}

	b := &builder{
		in:    in,
		log:   log,
		eval:  eval,
		owner: make(map[string]string),
		plan: &Plan{
			ID:          uuid.NewString(),
			CreatedAt:   time.Now().UTC(),
			Distro:      in.Distro,
			Profile:     in.Profile,
			Components:  make([]string, 0, len(in.Order)),
			Facts:       in.Facts,
			Preferences: in.Preferences.List(),
			Steps:       []Step{},
		},
	}

	for _, c := range in.Order {
		b.plan.Components = append(b.plan.Components, c.Name)

		declared, ok := c.PackagesFor(in.Distro)
		switch {
		case ok:
			b.addEntries(c.Name, declared, false)
		case len(c.Packages) > 0:
			log.Warnf("component %s declares no packages for distro %s, skipping its package set", c.Name, in.Distro)
		default:
			log.Debugf("component %s declares no distro packages", c.Name)
		}

		if list, ok := in.PackageLists[c.Name]; ok {
			b.addEntries(c.Name, list, true)
		}

		for _, action := range c.PostInstall {
			b.plan.Steps = append(b.plan.Steps, PostInstall(action, c.Name))
		}
	}

	for _, o := range in.Overrides {
		b.addEntries(o.Owner, o.Entries, true)
	}

	log.Debugf("built plan %s: %d steps, %d duplicates dropped, %d entries filtered by condition",
		b.plan.ID, len(b.plan.Steps), b.plan.Duplicates, b.plan.Filtered)
	return b.plan
}

func (b *builder) addEntries(owner string, entries []pkglist.Entry, conditional bool) {
	for _, entry := range entries {
		if conditional && !entry.Unconditional() &&
			!b.eval.Evaluate(entry.Condition, b.in.Facts, b.in.Preferences) {
			b.plan.Filtered++
			b.log.Debugf("skipping %s for %s: condition %q does not hold", entry.Name, owner, entry.Condition)
			continue
		}

		step := Install(entry, b.manager(entry.Source), owner)
		key := step.Key()
		if first, dup := b.owner[key]; dup {
			b.plan.Duplicates++
			b.log.Debugf("package %s requested by %s is already installed for %s", entry.Name, owner, first)
			continue
		}
		b.owner[key] = owner
		b.plan.Steps = append(b.plan.Steps, step)
	}
}

func (b *builder) manager(src pkglist.Source) string {
	if b.in.Managers == nil {
		return src.String()
	}
	return b.in.Managers.ManagerFor(src)
}

// OwnerOf returns the component that owns the install step for the given
// manager and package name.
func (p *Plan) OwnerOf(manager, name string) (string, bool) {
	for _, s := range p.Steps {
		if s.Kind == InstallPackage && s.Manager == manager && s.Package != nil && s.Package.Name == name {
			return s.Component, true
		}
	}
	return "", false
}

// Packages returns the package names installed via manager in plan order.
func (p *Plan) Packages(manager string) []string {
	var out []string
	for _, s := range p.Steps {
		if s.Kind == InstallPackage && s.Manager == manager && s.Package != nil {
			out = append(out, s.Package.Name)
		}
	}
	return out
}

// Check verifies the structural invariants of a plan, for plans read back
// from disk.
func (p *Plan) Check() error {
	seen := make(map[string]int)
	for i, s := range p.Steps {
		switch s.Kind {
		case InstallPackage:
			if s.Package == nil || s.Package.Name == "" {
				return fmt.Errorf("step %d: install step without a package", i+1)
			}
			if s.Manager == "" {
				return fmt.Errorf("step %d: install step for %s without a manager", i+1, s.Package.Name)
			}
			if prev, dup := seen[s.Key()]; dup {
				return fmt.Errorf("step %d: %s is already installed by step %d", i+1, s.Key(), prev)
			}
			seen[s.Key()] = i + 1
		case RunPostInstall:
			if s.Action == "" {
				return fmt.Errorf("step %d: post-install step without an action", i+1)
			}
		default:
			return fmt.Errorf("step %d: invalid kind %d", i+1, int(s.Kind))
		}
		if s.Component == "" {
			return fmt.Errorf("step %d: missing owning component", i+1)
		}
	}
	return nil
}

// Summary holds step counts for reporting.
type Summary struct {
	Components  int            `json:"components"`
	Packages    int            `json:"packages"`
	PostInstall int            `json:"post_install"`
	ByManager   map[string]int `json:"by_manager"`
	Duplicates  int            `json:"duplicates"`
	Filtered    int            `json:"filtered"`
}

func (p *Plan) Summary() Summary {
	s := Summary{
		Components: len(p.Components),
		ByManager:  make(map[string]int),
		Duplicates: p.Duplicates,
		Filtered:   p.Filtered,
	}
	for _, step := range p.Steps {
		switch step.Kind {
		case InstallPackage:
			s.Packages++
			s.ByManager[step.Manager]++
		case RunPostInstall:
			s.PostInstall++
		}
	}
	return s
}

func (s Summary) String() string {
	managers := make([]string, 0, len(s.ByManager))
	for m := range s.ByManager {
		managers = append(managers, m)
	}
	sort.Strings(managers)
	parts := make([]string, 0, len(managers))
	for _, m := range managers {
		parts = append(parts, fmt.Sprintf("%s=%d", m, s.ByManager[m]))
	}
	return fmt.Sprintf("%d components, %d packages (%s), %d post-install actions, %d duplicates dropped, %d filtered",
		s.Components, s.Packages, strings.Join(parts, " "), s.PostInstall, s.Duplicates, s.Filtered)
}

func (p *Plan) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Plan %s for %s", p.ID, p.Distro)
	if p.Profile != "" {
		fmt.Fprintf(&sb, " (profile %s)", p.Profile)
	}
	sb.WriteString("\n")
	fmt.Fprintf(&sb, "Components: %s\n", strings.Join(p.Components, ", "))
	for i, s := range p.Steps {
		fmt.Fprintf(&sb, "%4d. %s\n", i+1, s)
	}
	fmt.Fprintf(&sb, "Summary: %s\n", p.Summary())
	return sb.String()
}

// MarshalIndent renders the plan as indented JSON.
func (p *Plan) MarshalIndent() ([]byte, error) {
	return json.MarshalIndent(p, "", "  ")
}
