package provisioner

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/open-edge-platform/devenv-composer/internal/executor"
	"github.com/open-edge-platform/devenv-composer/internal/hwprofile"
	"github.com/open-edge-platform/devenv-composer/internal/pkglist"
	"github.com/open-edge-platform/devenv-composer/internal/registry"
	"github.com/open-edge-platform/devenv-composer/internal/verify"
)

// Problem is one finding of Validate. Line is zero when it does not apply.
type Problem struct {
	File    string
	Line    int
	Message string
}

func (p Problem) String() string {
	if p.Line > 0 {
		return fmt.Sprintf("%s:%d: %s", p.File, p.Line, p.Message)
	}
	return fmt.Sprintf("%s: %s", p.File, p.Message)
}

// Report is the outcome of validating a configuration directory.
type Report struct {
	Dir        string
	Components int
	Profiles   int
	Lists      int
	Problems   []Problem
}

func (r *Report) add(file string, line int, format string, args ...interface{}) {
	r.Problems = append(r.Problems, Problem{File: file, Line: line, Message: fmt.Sprintf(format, args...)})
}

func (r *Report) OK() bool {
	return len(r.Problems) == 0
}

// Err returns nil for a clean report, otherwise an error listing every
// problem.
func (r *Report) Err() error {
	if r.OK() {
		return nil
	}
	lines := make([]string, len(r.Problems))
	for i, p := range r.Problems {
		lines[i] = p.String()
	}
	return fmt.Errorf("%d problem(s) in %s:\n  %s", len(r.Problems), r.Dir, strings.Join(lines, "\n  "))
}

// ValidateOptions tune Validate.
type ValidateOptions struct {
	Keyring *verify.Keyring
	Actions map[string]executor.ActionFunc
}

// Validate checks a configuration directory without executing anything:
// every package list of every distro, the registry, the hardware profiles,
// and that every post-install action has a handler.
func Validate(dir string, opts ValidateOptions) *Report {
	r := &Report{Dir: dir}

	reg := validateRegistry(r, dir, opts)
	validateProfiles(r, dir, opts)
	validateLists(r, dir, reg)

	sort.SliceStable(r.Problems, func(i, j int) bool {
		if r.Problems[i].File != r.Problems[j].File {
			return r.Problems[i].File < r.Problems[j].File
		}
		return r.Problems[i].Line < r.Problems[j].Line
	})
	return r
}

func validateRegistry(r *Report, dir string, opts ValidateOptions) *registry.Registry {
	path, ok := FindDataFile(dir, registry.DefaultFile)
	if !ok {
		r.add(filepath.Join(dir, registry.DefaultFile), 0, "component registry not found")
		return nil
	}
	verifySignature(r, path, opts.Keyring)

	reg, err := registry.LoadFile(path)
	if err != nil {
		r.add(path, 0, "%v", err)
		return nil
	}
	r.Components = reg.Len()

	for _, c := range reg.Components() {
		for _, action := range c.PostInstall {
			if !executor.IsKnownAction(action, opts.Actions) {
				r.add(path, 0, "component %s: unknown post-install action %q", c.Name, action)
			}
		}
	}
	return reg
}

func validateProfiles(r *Report, dir string, opts ValidateOptions) {
	path, ok := FindDataFile(dir, hwprofile.DefaultFile)
	if !ok {
		return
	}
	verifySignature(r, path, opts.Keyring)

	set, err := hwprofile.LoadFile(path)
	if err != nil {
		r.add(path, 0, "%v", err)
		return
	}
	r.Profiles = len(set.IDs())

	for _, id := range set.IDs() {
		prof, _ := set.Get(id)
		distros := make([]string, 0, len(prof.Problems))
		for d := range prof.Problems {
			distros = append(distros, d)
		}
		sort.Strings(distros)
		for _, d := range distros {
			for _, e := range prof.Problems[d] {
				r.add(path, 0, "profile %s, %s packages: %v", id, d, e)
			}
		}
	}
}

func validateLists(r *Report, dir string, reg *registry.Registry) {
	root := filepath.Join(dir, PackagesDir)
	distros, err := os.ReadDir(root)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			r.add(root, 0, "%v", err)
		}
		return
	}

	for _, d := range distros {
		if !d.IsDir() {
			continue
		}
		lists, err := pkglist.LoadDir(filepath.Join(root, d.Name()))
		if err != nil {
			r.add(filepath.Join(root, d.Name()), 0, "%v", err)
			continue
		}
		for component, list := range lists {
			r.Lists++
			for _, e := range list.Errors {
				r.add(list.Path, e.Line, "%s: %q", e.Reason, e.Content)
			}
			if reg != nil && !reg.Has(component) {
				r.add(list.Path, 0, "no component named %q in the registry", component)
			}
		}
	}
}

func verifySignature(r *Report, path string, kr *verify.Keyring) {
	if kr == nil {
		return
	}
	if err := kr.VerifyFile(path); err != nil {
		r.add(path, 0, "signature: %v", err)
	}
}
