package pkglist

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/open-edge-platform/devenv-composer/internal/utils/compression"
	"github.com/open-edge-platform/devenv-composer/internal/utils/security"
)

// Ext is the file extension of a package list, before any compression
// suffix.
const Ext = ".lst"

// List is a parsed package list file.
type List struct {
	Path    string
	Entries []Entry
	Errors  []SyntaxError
}

// ReadLines splits r into lines without their terminators.
func ReadLines(r io.Reader) ([]string, error) {
	var lines []string
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return lines, nil
}

// ParseFile reads and parses a list file. Compressed lists (.lst.gz,
// .lst.xz, .lst.zst) are decompressed transparently. Only I/O failures are
// returned as errors; syntax problems land in List.Errors.
func ParseFile(path string) (*List, error) {
	rc, err := compression.Open(path, security.RejectSymlinks)
	if err != nil {
		return nil, fmt.Errorf("opening package list %s: %w", path, err)
	}
	defer rc.Close()

	lines, err := ReadLines(rc)
	if err != nil {
		return nil, fmt.Errorf("reading package list %s: %w", path, err)
	}

	entries, errs := ParseAll(lines)
	return &List{Path: path, Entries: entries, Errors: errs}, nil
}

// ComponentName derives the component a list file belongs to from its file
// name, e.g. "terminal.lst.gz" -> "terminal". ok is false for files that are
// not package lists.
func ComponentName(path string) (string, bool) {
	base := compression.TrimExt(filepath.Base(path))
	if !strings.HasSuffix(base, Ext) {
		return "", false
	}
	name := strings.TrimSuffix(base, Ext)
	return name, name != ""
}

// LoadDir parses every package list in dir, keyed by component name. A
// missing directory yields an empty map.
func LoadDir(dir string) (map[string]*List, error) {
	lists := make(map[string]*List)

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return lists, nil
		}
		return nil, fmt.Errorf("reading package list directory %s: %w", dir, err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	for _, name := range names {
		component, ok := ComponentName(name)
		if !ok {
			continue
		}
		if _, dup := lists[component]; dup {
			return nil, fmt.Errorf("duplicate package list for component %q in %s", component, dir)
		}
		list, err := ParseFile(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		lists[component] = list
	}
	return lists, nil
}
