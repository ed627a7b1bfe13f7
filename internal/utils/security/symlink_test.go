package security

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestResolveRegularFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "component-deps.json")
	if err := os.WriteFile(path, []byte("{}"), 0o644); err != nil {
		t.Fatalf("setup: %v", err)
	}

	for _, policy := range []SymlinkPolicy{RejectSymlinks, ResolveSymlinks} {
		got, err := Resolve(path, policy)
		if err != nil {
			t.Fatalf("Resolve(policy=%d) failed: %v", policy, err)
		}
		if got != path {
			t.Errorf("Resolve(policy=%d) = %s, want %s", policy, got, path)
		}
	}
}

func TestResolveSymlink(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "target.lst")
	link := filepath.Join(dir, "link.lst")
	if err := os.WriteFile(target, []byte("kitty\n"), 0o644); err != nil {
		t.Fatalf("setup: %v", err)
	}
	if err := os.Symlink(target, link); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}

	if _, err := Resolve(link, RejectSymlinks); err == nil {
		t.Error("Expected RejectSymlinks to fail on a symlink")
	} else if !strings.Contains(err.Error(), "symlinks are not allowed") {
		t.Errorf("Unexpected error: %v", err)
	}

	got, err := Resolve(link, ResolveSymlinks)
	if err != nil {
		t.Fatalf("ResolveSymlinks failed: %v", err)
	}
	want, _ := filepath.EvalSymlinks(target)
	if got != want {
		t.Errorf("Resolve() = %s, want %s", got, want)
	}

	data, err := SafeReadFile(link, ResolveSymlinks)
	if err != nil {
		t.Fatalf("SafeReadFile failed: %v", err)
	}
	if string(data) != "kitty\n" {
		t.Errorf("SafeReadFile() = %q", data)
	}
}

func TestResolveInvalidPolicy(t *testing.T) {
	if _, err := Resolve(t.TempDir(), SymlinkPolicy(42)); err == nil {
		t.Error("Expected error for invalid policy")
	}
}

func TestResolveMissing(t *testing.T) {
	if _, err := Resolve(filepath.Join(t.TempDir(), "missing"), RejectSymlinks); err == nil {
		t.Error("Expected error for missing file")
	}
}

func TestSafeWriteFileRejectsSymlink(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "real.json")
	link := filepath.Join(dir, "plan.json")
	if err := os.WriteFile(target, []byte("old"), 0o600); err != nil {
		t.Fatalf("setup: %v", err)
	}
	if err := os.Symlink(target, link); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}

	if err := SafeWriteFile(link, []byte("new"), 0o600, RejectSymlinks); err == nil {
		t.Error("Expected write through symlink to be rejected")
	}

	data, _ := os.ReadFile(target)
	if string(data) != "old" {
		t.Errorf("Target should be untouched, got %q", data)
	}
}

func TestSafeCreate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.json")
	f, err := SafeCreate(path, 0o600, RejectSymlinks)
	if err != nil {
		t.Fatalf("SafeCreate failed: %v", err)
	}
	if _, err := f.WriteString("{}"); err != nil {
		t.Fatalf("write: %v", err)
	}
	f.Close()

	data, err := os.ReadFile(path)
	if err != nil || string(data) != "{}" {
		t.Errorf("Unexpected content %q err=%v", data, err)
	}
}
