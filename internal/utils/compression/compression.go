package compression

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/ulikunitz/xz"

	"github.com/open-edge-platform/devenv-composer/internal/utils/security"
)

// Type identifies the compression applied to a file, derived from its
// extension.
type Type string

const (
	None Type = ""
	Gzip Type = "gz"
	XZ   Type = "xz"
	Zstd Type = "zst"
)

// Detect returns the compression type for path by extension.
func Detect(path string) Type {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".gz":
		return Gzip
	case ".xz":
		return XZ
	case ".zst", ".zstd":
		return Zstd
	default:
		return None
	}
}

// TrimExt strips a recognised compression extension, so
// "arch.lst.gz" reports its logical name "arch.lst".
func TrimExt(path string) string {
	if Detect(path) == None {
		return path
	}
	return strings.TrimSuffix(path, filepath.Ext(path))
}

type readCloser struct {
	io.Reader
	closers []func() error
}

func (r *readCloser) Close() error {
	var first error
	for _, c := range r.closers {
		if err := c(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Open opens path for reading, transparently decompressing it.
func Open(path string, policy security.SymlinkPolicy) (io.ReadCloser, error) {
	f, err := security.SafeOpen(path, policy)
	if err != nil {
		return nil, err
	}

	r, err := NewReader(f, Detect(path))
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	return &readCloser{Reader: r, closers: []func() error{r.Close, f.Close}}, nil
}

// ReadFile reads and decompresses the whole of path.
func ReadFile(path string, policy security.SymlinkPolicy) ([]byte, error) {
	rc, err := Open(path, policy)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return data, nil
}

// NewReader wraps r with a decompressor for typ.
func NewReader(r io.Reader, typ Type) (io.ReadCloser, error) {
	switch typ {
	case None:
		return io.NopCloser(r), nil
	case Gzip:
		gz, err := gzip.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("failed to create gzip reader: %w", err)
		}
		return gz, nil
	case XZ:
		xr, err := xz.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("failed to create xz reader: %w", err)
		}
		return io.NopCloser(xr), nil
	case Zstd:
		zr, err := zstd.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("failed to create zstd reader: %w", err)
		}
		return zr.IOReadCloser(), nil
	default:
		return nil, fmt.Errorf("unsupported compression type: %s", typ)
	}
}

// NewWriter wraps w with a compressor for typ. Closing the returned writer
// flushes the compressor but does not close w.
func NewWriter(w io.Writer, typ Type) (io.WriteCloser, error) {
	switch typ {
	case None:
		return nopWriteCloser{w}, nil
	case Gzip:
		return gzip.NewWriter(w), nil
	case XZ:
		xw, err := xz.NewWriter(w)
		if err != nil {
			return nil, fmt.Errorf("failed to create xz writer: %w", err)
		}
		return xw, nil
	case Zstd:
		zw, err := zstd.NewWriter(w)
		if err != nil {
			return nil, fmt.Errorf("failed to create zstd writer: %w", err)
		}
		return zw, nil
	default:
		return nil, fmt.Errorf("unsupported compression type: %s", typ)
	}
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }
