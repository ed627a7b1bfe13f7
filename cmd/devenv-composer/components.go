package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func createComponentsCommand() *cobra.Command {
	var distro string

	cmd := &cobra.Command{
		Use:   "components",
		Short: "List the components of the registry",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := loadRegistry()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, c := range reg.Components() {
				if distro != "" {
					if _, ok := c.PackagesFor(distro); !ok && len(c.Packages) > 0 {
						continue
					}
				}
				fmt.Fprintf(out, "%s", c.Name)
				if c.Description != "" {
					fmt.Fprintf(out, " - %s", c.Description)
				}
				fmt.Fprintln(out)
				if len(c.Dependencies) > 0 {
					fmt.Fprintf(out, "  depends on: %s\n", strings.Join(c.Dependencies, ", "))
				}
				if len(c.Conflicts) > 0 {
					fmt.Fprintf(out, "  conflicts with: %s\n", strings.Join(c.Conflicts, ", "))
				}
				if len(c.PostInstall) > 0 {
					fmt.Fprintf(out, "  post-install: %s\n", strings.Join(c.PostInstall, ", "))
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&distro, "distro", "", "Only list components with packages for this distro")
	return cmd
}
