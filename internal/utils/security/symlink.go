package security

import (
	"fmt"
	"os"
	"path/filepath"
)

// SymlinkPolicy decides what happens when a path turns out to be a symlink.
type SymlinkPolicy int

const (
	// RejectSymlinks fails on any symlink.
	RejectSymlinks SymlinkPolicy = iota
	// ResolveSymlinks follows the link and operates on its target. Inputs
	// that live in a dotfiles checkout are usually linked into place.
	ResolveSymlinks
)

// Resolve returns the path to operate on under policy.
func Resolve(path string, policy SymlinkPolicy) (string, error) {
	if policy != RejectSymlinks && policy != ResolveSymlinks {
		return "", fmt.Errorf("invalid symlink policy: %d", policy)
	}

	info, err := os.Lstat(path)
	if err != nil {
		return "", fmt.Errorf("failed to get file info for %s: %w", path, err)
	}
	if info.Mode()&os.ModeSymlink == 0 {
		return path, nil
	}

	if policy == RejectSymlinks {
		return "", fmt.Errorf("symlinks are not allowed: %s", path)
	}

	target, err := filepath.EvalSymlinks(path)
	if err != nil {
		return "", fmt.Errorf("failed to resolve symlink %s: %w", path, err)
	}
	if _, err := os.Stat(target); err != nil {
		return "", fmt.Errorf("failed to access symlink target %s: %w", target, err)
	}
	return target, nil
}

// SafeOpen opens an existing file for reading after the symlink check.
func SafeOpen(path string, policy SymlinkPolicy) (*os.File, error) {
	resolved, err := Resolve(path, policy)
	if err != nil {
		return nil, err
	}
	return os.Open(resolved)
}

// SafeReadFile reads a file after performing symlink checks
func SafeReadFile(path string, policy SymlinkPolicy) ([]byte, error) {
	resolved, err := Resolve(path, policy)
	if err != nil {
		return nil, err
	}
	return os.ReadFile(resolved)
}

// SafeCreate creates or truncates path for writing. An existing file and the
// parent directory are both subject to the symlink check.
func SafeCreate(path string, perm os.FileMode, policy SymlinkPolicy) (*os.File, error) {
	target, err := writeTarget(path, policy)
	if err != nil {
		return nil, err
	}
	return os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm)
}

// SafeWriteFile writes to a file after performing symlink checks on the directory
func SafeWriteFile(path string, data []byte, perm os.FileMode, policy SymlinkPolicy) error {
	target, err := writeTarget(path, policy)
	if err != nil {
		return err
	}
	return os.WriteFile(target, data, perm)
}

func writeTarget(path string, policy SymlinkPolicy) (string, error) {
	if _, err := os.Lstat(path); err == nil {
		resolved, err := Resolve(path, policy)
		if err != nil {
			return "", fmt.Errorf("existing file symlink check failed: %w", err)
		}
		path = resolved
	}

	dir := filepath.Dir(path)
	if dir == "." || dir == "/" {
		return path, nil
	}
	resolvedDir, err := Resolve(dir, policy)
	if err != nil {
		return "", fmt.Errorf("parent directory symlink check failed: %w", err)
	}
	return filepath.Join(resolvedDir, filepath.Base(path)), nil
}
