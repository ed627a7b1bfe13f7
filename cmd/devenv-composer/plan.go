package main

import (
	"fmt"

	"github.com/open-edge-platform/devenv-composer/internal/plan"
	"github.com/open-edge-platform/devenv-composer/internal/provisioner"
	"github.com/spf13/cobra"
)

func createPlanCommand() *cobra.Command {
	var (
		sel    selectionFlags
		output string
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "plan [flags] COMPONENT...",
		Short: "Resolve components and print the installation plan",
		Long: `Resolve the named components and their dependencies, then print the
ordered installation plan without executing anything.

Use --output to save the plan; a .gz, .xz or .zst suffix compresses it.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, pl, err := buildPlan(&sel, args)
			if err != nil {
				return err
			}

			if asJSON {
				data, err := pl.MarshalIndent()
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(data))
			} else {
				fmt.Fprint(cmd.OutOrStdout(), pl.String())
			}

			if output != "" {
				if err := pl.Save(output); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Plan saved to %s\n", output)
			}
			return nil
		},
		ValidArgsFunction: componentCompletion,
	}

	sel.register(cmd.Flags())
	cmd.Flags().StringVarP(&output, "output", "o", "", "Save the plan to this file")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the plan as JSON")

	return cmd
}

// buildPlan resolves and builds a plan from the selection flags.
func buildPlan(sel *selectionFlags, args []string) (*provisioner.Provisioner, *plan.Plan, error) {
	p, err := sel.provisioner()
	if err != nil {
		return nil, nil, err
	}
	selected, err := sel.components(p, args)
	if err != nil {
		return nil, nil, err
	}
	pl, err := p.Plan(selected, p.Facts(), p.Preferences(sel.preferences()...))
	if err != nil {
		return nil, nil, err
	}
	return p, pl, nil
}

// componentCompletion suggests registry component names.
func componentCompletion(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	reg, err := loadRegistry()
	if err != nil {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	return reg.Names(), cobra.ShellCompDirectiveNoFileComp
}
