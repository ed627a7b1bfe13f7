// Package state manages what the tool keeps between runs: saved plans and
// the records of finished installs.
package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/open-edge-platform/devenv-composer/internal/plan"
	"github.com/open-edge-platform/devenv-composer/internal/utils/security"
)

const (
	plansSubdir = "plans"
	runsSubdir  = "runs"
	planExt     = ".json.zst"
)

// RunRecord is the manifest written after executing a plan.
type RunRecord struct {
	ID         string    `json:"id"`
	PlanID     string    `json:"plan_id"`
	Distro     string    `json:"distro"`
	Components []string  `json:"components"`
	DryRun     bool      `json:"dry_run"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Succeeded  int       `json:"succeeded"`
	Failed     []string  `json:"failed,omitempty"`
	Skipped    int       `json:"skipped"`
}

// Store is a state directory.
type Store struct {
	Dir string
}

func (s Store) PlansDir() string {
	return filepath.Join(s.Dir, plansSubdir)
}

func (s Store) RunsDir() string {
	return filepath.Join(s.Dir, runsSubdir)
}

// SavePlan writes p under the plans directory and returns its path.
func (s Store) SavePlan(p *plan.Plan) (string, error) {
	if p.ID == "" {
		return "", errors.New("plan has no id")
	}
	path := filepath.Join(s.PlansDir(), p.ID+planExt)
	if err := ensureSubPath(s.PlansDir(), path); err != nil {
		return "", err
	}
	if err := p.Save(path); err != nil {
		return "", err
	}
	return path, nil
}

// LoadPlan reads a saved plan by id.
func (s Store) LoadPlan(id string) (*plan.Plan, error) {
	path := filepath.Join(s.PlansDir(), id+planExt)
	if err := ensureSubPath(s.PlansDir(), path); err != nil {
		return nil, err
	}
	return plan.Load(path)
}

// ListPlans returns the ids of saved plans in sorted order.
func (s Store) ListPlans() ([]string, error) {
	entries, err := os.ReadDir(s.PlansDir())
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("listing plans: %w", err)
	}
	var ids []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), planExt) {
			ids = append(ids, strings.TrimSuffix(e.Name(), planExt))
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// SaveRun writes rec under the runs directory, assigning an id when unset.
func (s Store) SaveRun(rec *RunRecord) (string, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if err := os.MkdirAll(s.RunsDir(), 0o755); err != nil {
		return "", fmt.Errorf("creating runs directory: %w", err)
	}
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding run record: %w", err)
	}
	path := filepath.Join(s.RunsDir(), rec.ID+".json")
	if err := security.SafeWriteFile(path, data, 0o644, security.RejectSymlinks); err != nil {
		return "", fmt.Errorf("writing run record: %w", err)
	}
	return path, nil
}

// LoadRun reads a run record by id.
func (s Store) LoadRun(id string) (*RunRecord, error) {
	path := filepath.Join(s.RunsDir(), id+".json")
	if err := ensureSubPath(s.RunsDir(), path); err != nil {
		return nil, err
	}
	data, err := security.SafeReadFile(path, security.RejectSymlinks)
	if err != nil {
		return nil, fmt.Errorf("reading run record: %w", err)
	}
	var rec RunRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decoding run record %s: %w", path, err)
	}
	return &rec, nil
}
