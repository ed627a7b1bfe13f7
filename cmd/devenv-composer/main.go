package main

import (
	"fmt"
	"os"

	"github.com/open-edge-platform/devenv-composer/internal/config"
	"github.com/open-edge-platform/devenv-composer/internal/utils/logger"
	"github.com/open-edge-platform/devenv-composer/internal/utils/security"
	"github.com/spf13/cobra"
)

// Command-line flags that can override config file settings
var (
	configFile string = "" // Path to config file
	logLevel   string = "" // Empty means use config file value
	logFile    string = "" // Empty means use config file value

	actualConfigFile string // Config file that was actually loaded
	loggerCleanup    func()
)

func main() {
	rootCmd := createRootCommand()
	security.AttachRecursive(rootCmd, security.DefaultLimits())

	err := rootCmd.Execute()
	if loggerCleanup != nil {
		loggerCleanup()
	}
	if err != nil {
		os.Exit(1)
	}
}

// createRootCommand creates and configures the root cobra command with all subcommands
func createRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "devenv-composer",
		Short: "Provision a desktop development environment from declarative package lists",
		Long: `devenv-composer installs a desktop development environment on Arch or
Ubuntu from a component registry and per-distro package lists.

Components declare their packages, dependencies, conflicts and post-install
actions. Package list entries may be guarded by hardware conditions (nvidia,
amd, intel, laptop, vm, asus) or opt-in preferences (gaming). The tool
resolves the requested components, builds an ordered plan and executes it,
or prints it with --dry-run.

Use 'devenv-composer --help' to see available commands.
Use 'devenv-composer <command> --help' for more information about a command.`,
		PersistentPreRunE: initConfig,
		SilenceUsage:      true,
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "",
		"Path to configuration file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "",
		"Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "",
		"Log file path to tee logs (overrides configuration file)")

	rootCmd.AddCommand(createPlanCommand())
	rootCmd.AddCommand(createInstallCommand())
	rootCmd.AddCommand(createValidateCommand())
	rootCmd.AddCommand(createComponentsCommand())
	rootCmd.AddCommand(createFactsCommand())
	rootCmd.AddCommand(createStateCommand())
	rootCmd.AddCommand(createConfigCommand())
	rootCmd.AddCommand(createVersionCommand())
	rootCmd.AddCommand(createInstallCompletionCommand())

	return rootCmd
}

// initConfig loads the configuration once flags are parsed and applies the
// logging overrides.
func initConfig(cmd *cobra.Command, args []string) error {
	path := configFile
	if path == "" {
		path = config.FindConfigFile()
	}

	globalConfig, err := config.LoadGlobalConfig(path)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	if logFile != "" {
		globalConfig.Logging.File = logFile
	}
	config.SetGlobal(globalConfig)
	actualConfigFile = path

	if loggerCleanup != nil {
		loggerCleanup()
	}
	_, cleanup, err := logger.InitWithConfig(logger.Config{
		Level:    globalConfig.Logging.Level,
		FilePath: globalConfig.Logging.File,
	})
	if err != nil {
		return err
	}
	loggerCleanup = cleanup

	// --log-level only moves the atomic level of the logger built above.
	if logLevel != "" {
		logger.SetLogLevel(logLevel)
		globalConfig.Logging.Level = logLevel
	}

	log := logger.Logger()
	if actualConfigFile != "" {
		log.Infof("Using configuration from: %s", actualConfigFile)
	}
	log.Debugf("Config: config_dir=%s, state_dir=%s, distro=%s, profile=%q, preferences=%v, dry_run=%t",
		globalConfig.ConfigDir, globalConfig.StateDir, globalConfig.Distro,
		globalConfig.Profile, globalConfig.Preferences, globalConfig.DryRun)
	return nil
}
