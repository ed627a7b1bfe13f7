package main

import (
	"fmt"

	"github.com/open-edge-platform/devenv-composer/internal/config"
	"github.com/open-edge-platform/devenv-composer/internal/state"
	"github.com/spf13/cobra"
)

func createStateCommand() *cobra.Command {
	stateCmd := &cobra.Command{
		Use:   "state",
		Short: "Manage saved plans and run records",
		Long: `Manage the state directory used by devenv-composer.

Available commands:
  list     List saved plans
  clean    Remove saved plans or run records`,
	}

	stateCmd.AddCommand(createStateListCommand())
	stateCmd.AddCommand(createStateCleanCommand())

	return stateCmd
}

func createStateListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List saved plans",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store := state.Store{Dir: config.Global().StateDir}
			ids, err := store.ListPlans()
			if err != nil {
				return err
			}
			if len(ids) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "No saved plans in %s.\n", store.PlansDir())
				return nil
			}
			for _, id := range ids {
				pl, err := store.LoadPlan(id)
				if err != nil {
					fmt.Fprintf(cmd.OutOrStdout(), "%s (unreadable: %v)\n", id, err)
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s  %s  %s  %s\n",
					id, pl.CreatedAt.Format("2006-01-02 15:04:05"), pl.Distro, pl.Summary())
			}
			return nil
		},
	}
}

func createStateCleanCommand() *cobra.Command {
	var (
		opts state.CleanOptions
		all  bool
	)

	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Remove saved plans or run records",
		Long: `Remove saved plans or run records from the state directory.

By default, the command removes saved plans. Use flags to target run records
or to restrict cleanup to a single plan and its runs.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			plansFlag := cmd.Flags().Changed("plans")
			runsFlag := cmd.Flags().Changed("runs")

			if all {
				opts.CleanPlans = true
				opts.CleanRuns = true
			} else if !plansFlag && !runsFlag {
				opts.CleanPlans = true
			}

			if !opts.CleanPlans && !opts.CleanRuns {
				return fmt.Errorf("nothing to clean: specify --plans, --runs, or --all")
			}

			store := state.Store{Dir: config.Global().StateDir}
			result, err := store.Clean(opts)
			if err != nil {
				return err
			}

			output := []string{}
			if opts.DryRun {
				output = append(output, "Dry run: no files were deleted.")
			}

			if len(result.RemovedPaths) > 0 {
				header := "Removed paths:"
				if opts.DryRun {
					header = "Would remove:"
				}
				output = append(output, header)
				output = append(output, indentPaths(result.RemovedPaths)...)
			}

			if len(result.RemovedPaths) == 0 && len(result.SkippedPaths) == 0 {
				scopeDesc := "saved plan or run record"
				if !opts.CleanRuns {
					scopeDesc = "saved plan"
				} else if !opts.CleanPlans {
					scopeDesc = "run record"
				}
				if opts.PlanID != "" {
					scopeDesc += fmt.Sprintf(" for plan '%s'", opts.PlanID)
				}
				output = append(output, fmt.Sprintf("No %s entries found.", scopeDesc))
			}

			if len(result.SkippedPaths) > 0 {
				output = append(output, "Skipped (not found):")
				output = append(output, indentPaths(result.SkippedPaths)...)
			}

			printLines(cmd, output)
			return nil
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "Remove both saved plans and run records")
	cmd.Flags().BoolVar(&opts.CleanPlans, "plans", false, "Remove saved plans")
	cmd.Flags().BoolVar(&opts.CleanRuns, "runs", false, "Remove run records")
	cmd.Flags().StringVar(&opts.PlanID, "plan-id", "", "Restrict cleanup to one plan and its run records")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "Show what would be removed without deleting anything")

	return cmd
}
