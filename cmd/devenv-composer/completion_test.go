package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
)

func runInstallCompletion(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := &cobra.Command{Use: "devenv-composer"}
	root.AddCommand(createInstallCompletionCommand())
	var out strings.Builder
	root.SetOut(&out)
	root.SetArgs(append([]string{"install-completion"}, args...))
	err := root.Execute()
	return out.String(), err
}

func TestDetectShell(t *testing.T) {
	tests := []struct {
		env     string
		want    string
		wantErr bool
	}{
		{"/bin/bash", "bash", false},
		{"/usr/bin/zsh", "zsh", false},
		{"/usr/local/bin/fish", "fish", false},
		{"/bin/tcsh", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		got, err := detectShell(tt.env)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("detectShell(%q) = %q, %v", tt.env, got, err)
		}
	}
}

func TestCompletionPath(t *testing.T) {
	if got := completionPath("zsh", "/home/u", false); got != "/home/u/.zsh/completion/_devenv-composer" {
		t.Errorf("zsh path = %s", got)
	}
	if got := completionPath("fish", "/home/u", false); got != "/home/u/.config/fish/completions/devenv-composer.fish" {
		t.Errorf("fish path = %s", got)
	}
	if got := completionPath("bash", "/home/u", false); got != "/home/u/.bash_completion.d/devenv-composer.bash" {
		t.Errorf("bash path = %s", got)
	}
}

func TestInstallCompletionUnknownShell(t *testing.T) {
	t.Setenv("SHELL", "/bin/unknown-shell")
	_, err := runInstallCompletion(t)
	if err == nil || !strings.Contains(err.Error(), "unsupported shell") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestInstallCompletionZshWritesToHome(t *testing.T) {
	tmp := t.TempDir()
	t.Setenv("HOME", tmp)

	out, err := runInstallCompletion(t, "--shell", "zsh")
	if err != nil {
		t.Fatalf("install-completion failed: %v", err)
	}
	target := filepath.Join(tmp, ".zsh", "completion", "_devenv-composer")
	data, err := os.ReadFile(target)
	if err != nil {
		t.Fatalf("expected completion file at %s: %v", target, err)
	}
	if !strings.Contains(string(data), "devenv-composer") {
		t.Error("completion script does not mention the command")
	}
	if !strings.Contains(out, "Shell completion installed for zsh") {
		t.Errorf("unexpected output: %s", out)
	}

	if _, err := runInstallCompletion(t, "--shell", "zsh"); err == nil || !strings.Contains(err.Error(), "already exists") {
		t.Errorf("expected existing file to be refused, got %v", err)
	}
	if _, err := runInstallCompletion(t, "--shell", "zsh", "--force"); err != nil {
		t.Errorf("--force should overwrite: %v", err)
	}
}

func TestInstallCompletionRejectsUnsupportedType(t *testing.T) {
	if _, err := runInstallCompletion(t, "--shell", "powershell"); err == nil {
		t.Error("expected powershell to be rejected")
	}
}
