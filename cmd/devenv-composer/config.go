package main

import (
	"fmt"

	"github.com/open-edge-platform/devenv-composer/internal/config"
	"github.com/spf13/cobra"
)

// createConfigCommand creates the config subcommand
func createConfigCommand() *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration",
		Long: `Manage global configuration for devenv-composer.

Available commands:
  init    Initialize a new configuration file with default values`,
	}

	configCmd.AddCommand(createConfigInitCommand())

	return configCmd
}

// createConfigInitCommand creates the config init subcommand
func createConfigInitCommand() *cobra.Command {
	initCmd := &cobra.Command{
		Use:   "init [config-file]",
		Short: "Initialize a new configuration file",
		Long: `Initialize a new configuration file with default values.

If no path is specified, the config will be created in the current directory as devenv-composer.yml

Examples:
  # Create config in current directory
  devenv-composer config init

  # Create config in the user's config directory
  devenv-composer config init ~/.config/devenv-composer/config.yml`,
		Args: cobra.MaximumNArgs(1),
		RunE: executeConfigInit,
	}

	return initCmd
}

// executeConfigInit handles the config init command logic
func executeConfigInit(cmd *cobra.Command, args []string) error {
	configPath := "devenv-composer.yml"
	if len(args) > 0 {
		configPath = args[0]
	}

	defaultConfig := config.DefaultGlobalConfig()

	if err := defaultConfig.SaveGlobalConfigWithComments(configPath); err != nil {
		return fmt.Errorf("failed to save config file: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Configuration file created at: %s\n", configPath)
	fmt.Fprintf(out, "\nDefault configuration settings:\n")
	fmt.Fprintf(out, "  Config Directory: %s\n", defaultConfig.ConfigDir)
	fmt.Fprintf(out, "  State Directory: %s\n", defaultConfig.StateDir)
	fmt.Fprintf(out, "  Distro: %s\n", defaultConfig.Distro)
	fmt.Fprintf(out, "  AUR Helper: %s\n", defaultConfig.AURHelper)
	fmt.Fprintf(out, "  Log Level: %s\n", defaultConfig.Logging.Level)
	fmt.Fprintf(out, "\nEdit the configuration file to customize these settings.\n")

	return nil
}
