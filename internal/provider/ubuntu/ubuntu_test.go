package ubuntu

import (
	"errors"
	"testing"

	"github.com/open-edge-platform/devenv-composer/internal/pkglist"
	"github.com/open-edge-platform/devenv-composer/internal/provider"
)

// TestUbuntuProviderInterface tests that ubuntu implements Provider interface
func TestUbuntuProviderInterface(t *testing.T) {
	var _ provider.Provider = (*ubuntu)(nil)
}

func TestRegister(t *testing.T) {
	Register()
	p, ok := provider.Get(OsName)
	if !ok || p.Name() != "ubuntu" {
		t.Fatalf("ubuntu provider not registered")
	}
}

func TestManagerFor(t *testing.T) {
	p := New()
	if got := p.ManagerFor(pkglist.ParseSource("")); got != "apt" {
		t.Errorf("default source -> %s", got)
	}
	if got := p.ManagerFor(pkglist.ParseSource("aur")); got != "aur" {
		t.Errorf("aur source keeps its manager, got %s", got)
	}
}

func TestInstallCommand(t *testing.T) {
	p := New()
	cmd, err := p.InstallCommand("apt", []string{"kitty", "build-essential"})
	if err != nil {
		t.Fatal(err)
	}
	if cmd.Line != "apt-get install -y kitty build-essential" || !cmd.Sudo {
		t.Errorf("Unexpected command %+v", cmd)
	}
	if len(cmd.Env) != 1 || cmd.Env[0] != "DEBIAN_FRONTEND=noninteractive" {
		t.Errorf("Unexpected env %v", cmd.Env)
	}

	var unsupported *provider.UnsupportedManagerError
	if _, err := p.InstallCommand("aur", []string{"yay"}); !errors.As(err, &unsupported) {
		t.Errorf("AUR must be unsupported on ubuntu, got %v", err)
	}
}

func TestPreflight(t *testing.T) {
	orig := commandExists
	defer func() { commandExists = orig }()
	commandExists = func(string) bool { return false }

	var missing *provider.MissingToolsError
	if err := New().Preflight([]string{"apt"}); !errors.As(err, &missing) {
		t.Fatalf("Expected MissingToolsError, got %v", err)
	}
	if missing.Tools[0] != "apt-get" {
		t.Errorf("Unexpected tools %v", missing.Tools)
	}
	if err := New().Preflight(nil); err != nil {
		t.Errorf("No managers means nothing to check, got %v", err)
	}
}
