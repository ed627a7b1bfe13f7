// Package executor carries out installation plans. System runs the steps on
// the host; DryRun only reports what would run.
package executor

import (
	"context"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"

	"github.com/open-edge-platform/devenv-composer/internal/plan"
	"github.com/open-edge-platform/devenv-composer/internal/provider"
	"github.com/open-edge-platform/devenv-composer/internal/utils/shell"
)

// Action id prefixes with built-in handling.
const (
	ServicePrefix     = "service:"
	UserServicePrefix = "user-service:"
	GroupPrefix       = "group:"
)

// Executor carries out a single plan step.
type Executor interface {
	Execute(ctx context.Context, step plan.Step) error
}

// ActionFunc implements a post-install action that is not a plain command.
type ActionFunc func(ctx context.Context, step plan.Step) error

// UnknownActionError is returned for post-install ids with no handler.
type UnknownActionError struct {
	Action    string
	Component string
}

func (e *UnknownActionError) Error() string {
	return fmt.Sprintf("unknown post-install action %q for %s", e.Action, e.Component)
}

// commander turns steps into command lines. It is shared by System and
// DryRun so both report the same commands.
type commander struct {
	provider provider.Provider
	user     string
	actions  map[string]ActionFunc
}

// stepCommand returns the command for step, or ok=false when step is
// handled by a registered ActionFunc.
func (c *commander) stepCommand(step plan.Step) (cmd provider.Command, ok bool, err error) {
	switch step.Kind {
	case plan.InstallPackage:
		if step.Package == nil {
			return cmd, false, fmt.Errorf("install step for %s has no package", step.Component)
		}
		cmd, err = c.provider.InstallCommand(step.Manager, []string{step.Package.Name})
		return cmd, err == nil, err
	case plan.RunPostInstall:
		return c.actionCommand(step)
	default:
		return cmd, false, fmt.Errorf("invalid step kind %d", int(step.Kind))
	}
}

func (c *commander) actionCommand(step plan.Step) (provider.Command, bool, error) {
	id := step.Action
	if _, registered := c.actions[id]; registered {
		return provider.Command{}, false, nil
	}

	var (
		words []string
		sudo  bool
	)
	switch {
	case strings.HasPrefix(id, ServicePrefix):
		words, sudo = []string{"systemctl", "enable", strings.TrimPrefix(id, ServicePrefix)}, true
	case strings.HasPrefix(id, UserServicePrefix):
		words = []string{"systemctl", "--user", "enable", strings.TrimPrefix(id, UserServicePrefix)}
	case strings.HasPrefix(id, GroupPrefix):
		if c.user == "" {
			return provider.Command{}, false, fmt.Errorf("action %q: no target user configured", id)
		}
		words, sudo = []string{"usermod", "-aG", strings.TrimPrefix(id, GroupPrefix), c.user}, true
	default:
		return provider.Command{}, false, &UnknownActionError{Action: id, Component: step.Component}
	}
	if words[len(words)-1] == "" {
		return provider.Command{}, false, fmt.Errorf("action %q has an empty argument", id)
	}

	line, err := provider.QuoteWords(words)
	if err != nil {
		return provider.Command{}, false, err
	}
	return provider.Command{Line: line, Sudo: sudo}, true, nil
}

// Options configure System and DryRun.
type Options struct {
	Provider provider.Provider
	// User receives group memberships.
	User    string
	Actions map[string]ActionFunc
	Log     *zap.SugaredLogger
}

func (o Options) commander() *commander {
	return &commander{provider: o.Provider, user: o.User, actions: o.Actions}
}

func (o Options) log() *zap.SugaredLogger {
	if o.Log == nil {
		return zap.NewNop().Sugar()
	}
	return o.Log
}

// System executes steps on the host through a shell executor.
type System struct {
	cmd   *commander
	shell shell.Executor
	log   *zap.SugaredLogger
	acts  map[string]ActionFunc
}

// NewSystem returns an executor that runs commands through sh, or
// shell.Default when sh is nil.
func NewSystem(opts Options, sh shell.Executor) (*System, error) {
	if opts.Provider == nil {
		return nil, fmt.Errorf("system executor needs a distro provider")
	}
	if sh == nil {
		sh = shell.Default
	}
	return &System{cmd: opts.commander(), shell: sh, log: opts.log(), acts: opts.Actions}, nil
}

func (s *System) Execute(ctx context.Context, step plan.Step) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	cmd, ok, err := s.cmd.stepCommand(step)
	if err != nil {
		return err
	}
	if !ok {
		s.log.Infof("Running action %s for %s", step.Action, step.Component)
		return s.acts[step.Action](ctx, step)
	}

	s.log.Infof("%s", step)
	if _, err := s.shell.ExecCmdWithStream(cmd.Line, cmd.Sudo, cmd.Env); err != nil {
		return fmt.Errorf("%s: %w", step, err)
	}
	return nil
}

// DryRun writes the command for every step instead of running it.
type DryRun struct {
	cmd *commander
	out io.Writer
	log *zap.SugaredLogger
}

// NewDryRun returns an executor writing to out.
func NewDryRun(opts Options, out io.Writer) (*DryRun, error) {
	if opts.Provider == nil {
		return nil, fmt.Errorf("dry-run executor needs a distro provider")
	}
	if out == nil {
		out = io.Discard
	}
	return &DryRun{cmd: opts.commander(), out: out, log: opts.log()}, nil
}

func (d *DryRun) Execute(ctx context.Context, step plan.Step) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	cmd, ok, err := d.cmd.stepCommand(step)
	if err != nil {
		return err
	}

	parts := []string{"[dry-run]"}
	switch {
	case !ok:
		parts = append(parts, "action", step.Action, "("+step.Component+")")
	case cmd.Sudo:
		parts = append(append(append(parts, "sudo"), cmd.Env...), cmd.Line)
	default:
		parts = append(append(parts, cmd.Env...), cmd.Line)
	}
	line := strings.Join(parts, " ")
	d.log.Debugf("%s", line)
	_, err = fmt.Fprintln(d.out, line)
	return err
}

// IsKnownAction reports whether id has a built-in or registered handler.
func IsKnownAction(id string, actions map[string]ActionFunc) bool {
	if _, ok := actions[id]; ok {
		return true
	}
	for _, prefix := range []string{ServicePrefix, UserServicePrefix, GroupPrefix} {
		if strings.HasPrefix(id, prefix) && len(id) > len(prefix) {
			return true
		}
	}
	return false
}
