package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/open-edge-platform/devenv-composer/internal/utils/security"
	"github.com/spf13/cobra"
)

// createInstallCompletionCommand creates the install-completion subcommand
func createInstallCompletionCommand() *cobra.Command {
	installCompletionCmd := &cobra.Command{
		Use:   "install-completion",
		Short: "Install shell completion script",
		Long: `Install shell completion script for Bash, Zsh or Fish.
Automatically detects your shell and installs the appropriate completion script.`,
		Args: cobra.NoArgs,
		RunE: executeInstallCompletion,
	}

	installCompletionCmd.Flags().String("shell", "", "Specify shell type (bash, zsh, fish)")
	installCompletionCmd.Flags().Bool("force", false, "Force overwrite existing completion files")

	return installCompletionCmd
}

func executeInstallCompletion(cmd *cobra.Command, args []string) error {
	shellType, err := cmd.Flags().GetString("shell")
	if err != nil {
		return err
	}
	force, err := cmd.Flags().GetBool("force")
	if err != nil {
		return err
	}

	if shellType == "" {
		if shellType, err = detectShell(os.Getenv("SHELL")); err != nil {
			return err
		}
	}

	var buf bytes.Buffer
	switch shellType {
	case "bash":
		err = cmd.Root().GenBashCompletionV2(&buf, true)
	case "zsh":
		err = cmd.Root().GenZshCompletion(&buf)
	case "fish":
		err = cmd.Root().GenFishCompletion(&buf, true)
	default:
		return fmt.Errorf("unsupported shell type: %s", shellType)
	}
	if err != nil {
		return fmt.Errorf("error generating %s completion: %w", shellType, err)
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("could not determine home directory: %w", err)
	}
	targetPath := completionPath(shellType, homeDir, os.Getenv("DEVENV_COMPOSER_COMPLETION_SCOPE") == "system")

	if err := os.MkdirAll(filepath.Dir(targetPath), 0700); err != nil {
		return fmt.Errorf("could not create directory %s: %w", filepath.Dir(targetPath), err)
	}
	if _, err := os.Stat(targetPath); err == nil && !force {
		return fmt.Errorf("completion file already exists at %s. Use --force to overwrite", targetPath)
	}
	if err := security.SafeWriteFile(targetPath, buf.Bytes(), 0600, security.RejectSymlinks); err != nil {
		return fmt.Errorf("could not write completion file: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Shell completion installed for %s at %s\n", shellType, targetPath)
	fmt.Fprintln(cmd.OutOrStdout(), activationHint(shellType))
	return nil
}

// detectShell maps $SHELL onto a supported shell name.
func detectShell(shellEnv string) (string, error) {
	if shellEnv == "" {
		return "", fmt.Errorf("could not detect shell. Please specify with --shell flag")
	}
	for _, name := range []string{"bash", "zsh", "fish"} {
		if strings.Contains(filepath.Base(shellEnv), name) {
			return name, nil
		}
	}
	return "", fmt.Errorf("unsupported shell: %s. Please specify shell with --shell flag", shellEnv)
}

// completionPath returns where the script for shellType is installed. Bash
// uses the system directory only when asked to and it is writable.
func completionPath(shellType, homeDir string, system bool) string {
	switch shellType {
	case "bash":
		const systemDir = "/etc/bash_completion.d"
		if system && dirWritable(systemDir) {
			return filepath.Join(systemDir, "devenv-composer.bash")
		}
		return filepath.Join(homeDir, ".bash_completion.d", "devenv-composer.bash")
	case "zsh":
		return filepath.Join(homeDir, ".zsh", "completion", "_devenv-composer")
	default:
		return filepath.Join(homeDir, ".config", "fish", "completions", "devenv-composer.fish")
	}
}

func activationHint(shellType string) string {
	switch shellType {
	case "bash":
		return "Source the file from ~/.bashrc to enable completion in new shells."
	case "zsh":
		return "Add ~/.zsh/completion to fpath before compinit in ~/.zshrc."
	default:
		return "Fish loads the completion automatically in new shells."
	}
}

// dirWritable checks if the specified directory is writable by attempting to create and remove a temporary file.
func dirWritable(p string) bool {
	tf, err := os.CreateTemp(p, ".probe-*")
	if err != nil {
		return false
	}
	tf.Close()
	_ = os.Remove(tf.Name())
	return true
}
