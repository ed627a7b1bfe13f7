package plan

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/open-edge-platform/devenv-composer/internal/utils/compression"
	"github.com/open-edge-platform/devenv-composer/internal/utils/security"
)

// Save writes p as JSON to path. A .gz, .xz or .zst suffix selects the
// matching compression.
func (p *Plan) Save(path string) (err error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating plan directory %s: %w", dir, err)
		}
	}

	f, err := security.SafeCreate(path, 0o644, security.RejectSymlinks)
	if err != nil {
		return fmt.Errorf("creating plan file %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("closing plan file %s: %w", path, cerr)
		}
	}()

	w, err := compression.NewWriter(f, compression.Detect(path))
	if err != nil {
		return fmt.Errorf("plan file %s: %w", path, err)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(p); err != nil {
		_ = w.Close()
		return fmt.Errorf("encoding plan: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("flushing plan file %s: %w", path, err)
	}
	return nil
}

// Load reads a plan written by Save and checks its invariants.
func Load(path string) (*Plan, error) {
	data, err := compression.ReadFile(path, security.RejectSymlinks)
	if err != nil {
		return nil, fmt.Errorf("reading plan %s: %w", path, err)
	}
	var p Plan
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("decoding plan %s: %w", path, err)
	}
	if err := p.Check(); err != nil {
		return nil, fmt.Errorf("plan %s is invalid: %w", path, err)
	}
	return &p, nil
}
