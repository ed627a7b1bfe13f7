package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/open-edge-platform/devenv-composer/internal/condition"
	"github.com/open-edge-platform/devenv-composer/internal/config"
	"github.com/open-edge-platform/devenv-composer/internal/executor"
	"github.com/open-edge-platform/devenv-composer/internal/prompt"
	"github.com/open-edge-platform/devenv-composer/internal/provisioner"
	"github.com/open-edge-platform/devenv-composer/internal/state"
	"github.com/open-edge-platform/devenv-composer/internal/utils/logger"
	"github.com/spf13/cobra"
)

type installFlags struct {
	selectionFlags
	dryRun          bool
	yes             bool
	continueOnError bool
}

func createInstallCommand() *cobra.Command {
	var f installFlags

	cmd := &cobra.Command{
		Use:   "install [flags] COMPONENT...",
		Short: "Resolve components, then install them",
		Long: `Resolve the named components and their dependencies, print the plan,
and execute it: packages through the distro's package managers, then each
component's post-install actions.

Unless --yes is given, opt-in preferences used by the package lists (such as
gaming) are asked for, and the plan must be confirmed before it runs.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return executeInstall(cmd, &f, args)
		},
		ValidArgsFunction: componentCompletion,
	}

	f.register(cmd.Flags())
	cmd.Flags().BoolVar(&f.dryRun, "dry-run", false, "Print the commands instead of running them")
	cmd.Flags().BoolVarP(&f.yes, "yes", "y", false, "Do not ask questions; use defaults and proceed")
	cmd.Flags().BoolVar(&f.continueOnError, "continue-on-error", false, "Keep going after a failed step")

	return cmd
}

func executeInstall(cmd *cobra.Command, f *installFlags, args []string) error {
	log := logger.Logger()
	cfg := config.Global()
	out := cmd.OutOrStdout()
	dryRun := f.dryRun || cfg.DryRun

	asker := prompt.New(cmd.InOrStdin(), out)
	asker.AssumeDefaults = f.yes

	p, err := f.provisioner()
	if err != nil {
		return err
	}
	selected, err := f.components(p, args)
	if err != nil {
		return err
	}

	prefs := p.Preferences(f.preferences()...)
	if !prefs.Has("gaming") && p.Catalog().Mentions(condition.Gaming) {
		ok, err := asker.Confirm("Install gaming packages?", false)
		if err != nil {
			return err
		}
		if ok {
			prefs = prefs.Union(condition.NewPreferences("gaming"))
		}
	}

	pl, err := p.Plan(selected, p.Facts(), prefs)
	if err != nil {
		return err
	}
	fmt.Fprint(out, pl.String())

	if len(pl.Steps) == 0 {
		fmt.Fprintln(out, "Nothing to do.")
		return nil
	}
	if !dryRun && !f.yes {
		ok, err := asker.Confirm(fmt.Sprintf("Proceed with %d steps?", len(pl.Steps)), true)
		if err != nil {
			return err
		}
		if !ok {
			fmt.Fprintln(out, "Aborted.")
			return nil
		}
	}

	exec, err := p.NewExecutor(provisioner.ExecutorOptions{DryRun: dryRun, Out: out, User: targetUser()})
	if err != nil {
		return err
	}

	store := state.Store{Dir: cfg.StateDir}
	if path, err := store.SavePlan(pl); err != nil {
		log.Warnf("could not save plan: %v", err)
	} else {
		log.Debugf("saved plan to %s", path)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runOpts := executor.RunOptions{ContinueOnError: f.continueOnError, Log: log}
	if !dryRun {
		runOpts.Progress = cmd.ErrOrStderr()
	}

	started := time.Now().UTC()
	result, runErr := p.Execute(ctx, pl, exec, runOpts)
	if result != nil {
		recordRun(store, pl.ID, p.Distro(), pl.Components, dryRun, started, result)
		fmt.Fprintf(out, "%d succeeded, %d failed, %d skipped\n", result.Succeeded, len(result.Failed), result.Skipped)
	}
	return runErr
}

func recordRun(store state.Store, planID, distro string, components []string, dryRun bool, started time.Time, result *executor.RunResult) {
	rec := &state.RunRecord{
		PlanID:     planID,
		Distro:     distro,
		Components: components,
		DryRun:     dryRun,
		StartedAt:  started,
		FinishedAt: time.Now().UTC(),
		Succeeded:  result.Succeeded,
		Skipped:    result.Skipped,
	}
	for _, failure := range result.Failed {
		rec.Failed = append(rec.Failed, fmt.Sprintf("%s: %v", failure.Step, failure.Err))
	}
	if _, err := store.SaveRun(rec); err != nil {
		logger.Logger().Warnf("could not record run: %v", err)
	}
}
