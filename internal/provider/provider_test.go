package provider

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/open-edge-platform/devenv-composer/internal/pkglist"
)

type fakeProvider struct{ name string }

func (f fakeProvider) Name() string           { return f.name }
func (f fakeProvider) PrimaryManager() string { return "fake" }
func (f fakeProvider) ManagerFor(src pkglist.Source) string {
	return DefaultManagerFor("fake", src)
}
func (f fakeProvider) InstallCommand(string, []string) (Command, error) { return Command{}, nil }
func (f fakeProvider) Preflight([]string) error                         { return nil }

func TestRegisterAndGet(t *testing.T) {
	Register(fakeProvider{name: "zz-test"})
	p, ok := Get("zz-test")
	if !ok || p.Name() != "zz-test" {
		t.Fatalf("Get(zz-test) = %v, %v", p, ok)
	}
	if _, ok := Get("gentoo"); ok {
		t.Error("gentoo should not be registered")
	}
	found := false
	for _, n := range Names() {
		if n == "zz-test" {
			found = true
		}
	}
	if !found {
		t.Errorf("Names() = %v, missing zz-test", Names())
	}
}

func TestDefaultManagerFor(t *testing.T) {
	tests := []struct {
		src  pkglist.Source
		want string
	}{
		{pkglist.ParseSource(""), "pacman"},
		{pkglist.ParseSource("aur"), ManagerAUR},
		{pkglist.ParseSource("apt"), ManagerApt},
		{pkglist.ParseSource("flatpak"), ManagerFlatpak},
	}
	for _, tt := range tests {
		if got := DefaultManagerFor(ManagerPacman, tt.src); got != tt.want {
			t.Errorf("DefaultManagerFor(%v) = %q, want %q", tt.src, got, tt.want)
		}
	}
}

func TestQuoteWords(t *testing.T) {
	got, err := QuoteWords([]string{"kitty", "lib32-mesa", "evil;rm -rf"})
	if err != nil {
		t.Fatalf("QuoteWords failed: %v", err)
	}
	if !strings.HasPrefix(got, "kitty lib32-mesa ") {
		t.Errorf("plain words should stay bare, got %q", got)
	}
	if !strings.Contains(got, "'evil;rm -rf'") {
		t.Errorf("unsafe word should be quoted, got %q", got)
	}
	if _, err := QuoteWords([]string{"bad\x00byte"}); err == nil {
		t.Error("Expected NUL byte to be rejected")
	}
}

func TestFlatpakCommand(t *testing.T) {
	cmd, err := FlatpakCommand([]string{"com.valvesoftware.Steam"})
	if err != nil {
		t.Fatal(err)
	}
	if cmd.Line != "flatpak install -y --noninteractive flathub com.valvesoftware.Steam" || !cmd.Sudo {
		t.Errorf("Unexpected command %+v", cmd)
	}
}

func TestParseOSRelease(t *testing.T) {
	rel, err := ParseOSRelease(strings.NewReader(`
NAME="Pop!_OS"
ID=pop
ID_LIKE="ubuntu debian"
VERSION_ID="22.04"
# comment
garbage
`))
	if err != nil {
		t.Fatal(err)
	}
	if rel.ID != "pop" || rel.Name != "Pop!_OS" || rel.VersionID != "22.04" || len(rel.IDLike) != 2 {
		t.Errorf("Unexpected release %+v", rel)
	}
	if f, ok := rel.Family(); !ok || f != "ubuntu" {
		t.Errorf("Family() = %q, %v", f, ok)
	}
}

func TestFamily(t *testing.T) {
	tests := []struct {
		rel  OSRelease
		want string
		ok   bool
	}{
		{OSRelease{ID: "arch"}, "arch", true},
		{OSRelease{ID: "endeavouros", IDLike: []string{"arch"}}, "arch", true},
		{OSRelease{ID: "cachyos", IDLike: []string{"arch"}}, "arch", true},
		{OSRelease{ID: "debian"}, "ubuntu", true},
		{OSRelease{ID: "fedora", IDLike: []string{"rhel"}}, "", false},
	}
	for _, tt := range tests {
		got, ok := tt.rel.Family()
		if got != tt.want || ok != tt.ok {
			t.Errorf("Family(%+v) = %q, %v; want %q, %v", tt.rel, got, ok, tt.want, tt.ok)
		}
	}
}

func TestDetectDistro(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "etc"), 0o755); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(root, OSReleasePath)

	if _, err := DetectDistro(root); err == nil {
		t.Error("Expected error when os-release is missing")
	}

	if err := os.WriteFile(path, []byte("ID=manjaro\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	got, err := DetectDistro(root)
	if err != nil || got != "arch" {
		t.Errorf("DetectDistro() = %q, %v", got, err)
	}

	if err := os.WriteFile(path, []byte("ID=fedora\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := DetectDistro(root); err == nil {
		t.Error("Expected fedora to be unsupported")
	}
}
