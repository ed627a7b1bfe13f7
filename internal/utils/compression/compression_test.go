package compression

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/open-edge-platform/devenv-composer/internal/utils/security"
)

func TestDetect(t *testing.T) {
	tests := map[string]Type{
		"terminal.lst":        None,
		"terminal.lst.gz":     Gzip,
		"component-deps.json": None,
		"deps.json.XZ":        XZ,
		"plan.json.zst":       Zstd,
		"plan.json.zstd":      Zstd,
	}
	for path, want := range tests {
		if got := Detect(path); got != want {
			t.Errorf("Detect(%q) = %q, want %q", path, got, want)
		}
	}
}

func TestTrimExt(t *testing.T) {
	if got := TrimExt("packages/arch/wm.lst.gz"); got != "packages/arch/wm.lst" {
		t.Errorf("TrimExt() = %s", got)
	}
	if got := TrimExt("wm.lst"); got != "wm.lst" {
		t.Errorf("TrimExt() = %s", got)
	}
}

func TestRoundTripAllTypes(t *testing.T) {
	payload := []byte("# --- Terminal ---\nkitty\naur:wezterm-git|gaming\n")

	for _, typ := range []Type{None, Gzip, XZ, Zstd} {
		t.Run(string(typ)+"-type", func(t *testing.T) {
			name := "list.lst"
			if typ != None {
				name += "." + string(typ)
			}
			path := filepath.Join(t.TempDir(), name)

			var buf bytes.Buffer
			w, err := NewWriter(&buf, Detect(path))
			if err != nil {
				t.Fatalf("NewWriter failed: %v", err)
			}
			if _, err := w.Write(payload); err != nil {
				t.Fatalf("Write failed: %v", err)
			}
			if err := w.Close(); err != nil {
				t.Fatalf("Close failed: %v", err)
			}
			if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
				t.Fatalf("WriteFile failed: %v", err)
			}

			got, err := ReadFile(path, security.RejectSymlinks)
			if err != nil {
				t.Fatalf("ReadFile failed: %v", err)
			}
			if !bytes.Equal(got, payload) {
				t.Errorf("ReadFile() = %q, want %q", got, payload)
			}
		})
	}
}

func TestReadFileCorruptGzip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.lst.gz")
	if err := os.WriteFile(path, []byte("not gzip"), 0o644); err != nil {
		t.Fatalf("setup: %v", err)
	}
	if _, err := ReadFile(path, security.RejectSymlinks); err == nil {
		t.Error("Expected error for corrupt gzip input")
	}
}

func TestNewReaderUnsupported(t *testing.T) {
	if _, err := NewReader(bytes.NewReader(nil), Type("bz2")); err == nil {
		t.Error("Expected unsupported type error")
	}
	if _, err := NewWriter(&bytes.Buffer{}, Type("bz2")); err == nil {
		t.Error("Expected unsupported type error")
	}
}
