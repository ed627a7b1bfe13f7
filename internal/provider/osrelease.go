package provider

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// OSReleasePath is where the host's distro identification lives.
const OSReleasePath = "/etc/os-release"

// OSRelease holds the fields of os-release used for detection.
type OSRelease struct {
	ID        string
	IDLike    []string
	Name      string
	VersionID string
}

var families = map[string]string{
	"arch":        "arch",
	"manjaro":     "arch",
	"endeavouros": "arch",
	"garuda":      "arch",
	"ubuntu":      "ubuntu",
	"debian":      "ubuntu",
	"pop":         "ubuntu",
	"linuxmint":   "ubuntu",
	"elementary":  "ubuntu",
}

// ParseOSRelease reads KEY=value pairs, stripping optional quotes.
func ParseOSRelease(r io.Reader) (OSRelease, error) {
	var rel OSRelease
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		value = strings.Trim(strings.TrimSpace(value), `"'`)
		switch key {
		case "ID":
			rel.ID = strings.ToLower(value)
		case "ID_LIKE":
			rel.IDLike = strings.Fields(strings.ToLower(value))
		case "NAME":
			rel.Name = value
		case "VERSION_ID":
			rel.VersionID = value
		}
	}
	return rel, scanner.Err()
}

// Family maps the release onto a supported distro id, trying ID before
// ID_LIKE.
func (r OSRelease) Family() (string, bool) {
	if f, ok := families[r.ID]; ok {
		return f, true
	}
	for _, like := range r.IDLike {
		if f, ok := families[like]; ok {
			return f, true
		}
	}
	return "", false
}

// DetectDistro reads os-release below root ("/" on a live system) and
// returns the supported distro family.
func DetectDistro(root string) (string, error) {
	path := filepath.Join(root, OSReleasePath)
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", path, err)
	}
	defer f.Close()

	rel, err := ParseOSRelease(f)
	if err != nil {
		return "", fmt.Errorf("parsing %s: %w", path, err)
	}
	family, ok := rel.Family()
	if !ok {
		return "", fmt.Errorf("unsupported distribution %q (ID_LIKE %v)", rel.ID, rel.IDLike)
	}
	return family, nil
}
