package arch

import (
	"errors"
	"testing"

	"github.com/open-edge-platform/devenv-composer/internal/pkglist"
	"github.com/open-edge-platform/devenv-composer/internal/provider"
)

// TestArchProviderInterface tests that arch implements Provider interface
func TestArchProviderInterface(t *testing.T) {
	var _ provider.Provider = (*arch)(nil)
}

func TestNew(t *testing.T) {
	p, err := New("")
	if err != nil {
		t.Fatal(err)
	}
	if p.(*arch).aurHelper != "yay" {
		t.Errorf("Expected default helper yay, got %s", p.(*arch).aurHelper)
	}
	if _, err := New("pikaur"); err == nil {
		t.Error("Expected unsupported helper error")
	}
}

func TestRegister(t *testing.T) {
	if err := Register("paru"); err != nil {
		t.Fatal(err)
	}
	p, ok := provider.Get(OsName)
	if !ok {
		t.Fatal("arch provider not registered")
	}
	if p.PrimaryManager() != provider.ManagerPacman {
		t.Errorf("Unexpected primary manager %s", p.PrimaryManager())
	}
}

func TestManagerFor(t *testing.T) {
	p := &arch{aurHelper: "yay"}
	if got := p.ManagerFor(pkglist.ParseSource("")); got != "pacman" {
		t.Errorf("default source -> %s", got)
	}
	if got := p.ManagerFor(pkglist.ParseSource("aur")); got != "aur" {
		t.Errorf("aur source -> %s", got)
	}
}

func TestInstallCommand(t *testing.T) {
	p := &arch{aurHelper: "paru"}
	tests := []struct {
		manager string
		names   []string
		line    string
		sudo    bool
	}{
		{"pacman", []string{"kitty", "hyprland"}, "pacman -S --needed --noconfirm kitty hyprland", true},
		{"aur", []string{"hyprpicker-git"}, "paru -S --needed --noconfirm hyprpicker-git", false},
		{"flatpak", []string{"org.gimp.GIMP"}, "flatpak install -y --noninteractive flathub org.gimp.GIMP", true},
	}
	for _, tt := range tests {
		t.Run(tt.manager, func(t *testing.T) {
			cmd, err := p.InstallCommand(tt.manager, tt.names)
			if err != nil {
				t.Fatal(err)
			}
			if cmd.Line != tt.line || cmd.Sudo != tt.sudo {
				t.Errorf("InstallCommand() = %+v, want %q sudo=%v", cmd, tt.line, tt.sudo)
			}
		})
	}

	var unsupported *provider.UnsupportedManagerError
	if _, err := p.InstallCommand("apt", []string{"vim"}); !errors.As(err, &unsupported) {
		t.Errorf("Expected UnsupportedManagerError, got %v", err)
	}
	if _, err := p.InstallCommand("pacman", nil); err == nil {
		t.Error("Expected error for empty package list")
	}
}

func TestPreflight(t *testing.T) {
	orig := commandExists
	defer func() { commandExists = orig }()

	commandExists = func(bin string) bool { return bin == "pacman" }
	p := &arch{aurHelper: "yay"}

	if err := p.Preflight([]string{"pacman", "pacman"}); err != nil {
		t.Errorf("pacman present, got %v", err)
	}

	var missing *provider.MissingToolsError
	if err := p.Preflight([]string{"pacman", "aur", "flatpak"}); !errors.As(err, &missing) {
		t.Fatalf("Expected MissingToolsError, got %v", err)
	} else if len(missing.Tools) != 2 || missing.Tools[0] != "yay" {
		t.Errorf("Unexpected missing tools %v", missing.Tools)
	}

	var unsupported *provider.UnsupportedManagerError
	if err := p.Preflight([]string{"apt"}); !errors.As(err, &unsupported) {
		t.Errorf("Expected UnsupportedManagerError, got %v", err)
	}
}
