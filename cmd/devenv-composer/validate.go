package main

import (
	"fmt"

	"github.com/open-edge-platform/devenv-composer/internal/config"
	"github.com/open-edge-platform/devenv-composer/internal/provisioner"
	"github.com/open-edge-platform/devenv-composer/internal/verify"
	"github.com/spf13/cobra"
)

func createValidateCommand() *cobra.Command {
	validateCmd := &cobra.Command{
		Use:   "validate [CONFIG_DIR]",
		Short: "Check the registry, hardware profiles and every package list",
		Long: `Check a configuration directory without installing anything: the
component registry and hardware profiles against their schemas, every
package list of every distro for syntax errors, and every post-install action
for a handler. All problems are reported; the exit status is non-zero if
there are any.

CONFIG_DIR defaults to config_dir from the configuration.`,
		Args: cobra.MaximumNArgs(1),
		RunE: executeValidate,
	}

	return validateCmd
}

func executeValidate(cmd *cobra.Command, args []string) error {
	cfg := config.Global()
	dir := cfg.ConfigDir
	if len(args) > 0 {
		dir = args[0]
	}

	opts := provisioner.ValidateOptions{}
	if cfg.Verify {
		kr, err := verify.LoadKeyring(cfg.Keyring)
		if err != nil {
			return err
		}
		opts.Keyring = kr
	}

	report := provisioner.Validate(dir, opts)
	out := cmd.OutOrStdout()
	for _, p := range report.Problems {
		fmt.Fprintln(out, p)
	}
	fmt.Fprintf(out, "%s: %d components, %d profiles, %d package lists, %d problems\n",
		dir, report.Components, report.Profiles, report.Lists, len(report.Problems))

	if !report.OK() {
		return fmt.Errorf("validation of %s failed with %d problems", dir, len(report.Problems))
	}
	return nil
}
