package state

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// CleanOptions defines what state should be removed.
type CleanOptions struct {
	CleanPlans bool   // remove saved plans under state_dir/plans
	CleanRuns  bool   // remove run records under state_dir/runs
	PlanID     string // optional filter: only this plan and its run records
	DryRun     bool   // report actions without deleting anything
}

// CleanResult contains the outcome of a cleanup run.
type CleanResult struct {
	RemovedPaths []string
	SkippedPaths []string
}

// Clean removes state according to the provided options.
func (s Store) Clean(opts CleanOptions) (*CleanResult, error) {
	if !opts.CleanPlans && !opts.CleanRuns {
		return nil, fmt.Errorf("at least one scope must be specified")
	}

	var targets, missing []string
	if opts.CleanPlans {
		t, m, err := s.planTargets(opts.PlanID)
		if err != nil {
			return nil, err
		}
		targets, missing = append(targets, t...), append(missing, m...)
	}
	if opts.CleanRuns {
		t, err := s.runTargets(opts.PlanID)
		if err != nil {
			return nil, err
		}
		targets = append(targets, t...)
	}

	removed := make([]string, 0, len(targets))
	for _, target := range targets {
		if opts.DryRun {
			removed = append(removed, target)
			continue
		}
		if err := os.RemoveAll(target); err != nil {
			return nil, fmt.Errorf("removing %s: %w", target, err)
		}
		removed = append(removed, target)
	}

	sort.Strings(removed)
	sort.Strings(missing)
	return &CleanResult{RemovedPaths: removed, SkippedPaths: missing}, nil
}

func (s Store) planTargets(planID string) ([]string, []string, error) {
	root := s.PlansDir()
	if planID != "" {
		target := filepath.Join(root, planID+planExt)
		if err := ensureSubPath(root, target); err != nil {
			return nil, nil, err
		}
		exists, err := pathExists(target)
		if err != nil {
			return nil, nil, fmt.Errorf("checking %s: %w", target, err)
		}
		if !exists {
			return nil, []string{target}, nil
		}
		return []string{target}, nil, nil
	}
	return listDir(root)
}

func (s Store) runTargets(planID string) ([]string, error) {
	all, _, err := listDir(s.RunsDir())
	if err != nil || planID == "" {
		return all, err
	}

	var targets []string
	for _, path := range all {
		id := strings.TrimSuffix(filepath.Base(path), ".json")
		rec, err := s.LoadRun(id)
		if err != nil {
			// unreadable records are left for a full clean
			continue
		}
		if rec.PlanID == planID {
			targets = append(targets, path)
		}
	}
	return targets, nil
}

func listDir(root string) ([]string, []string, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil, nil
		}
		return nil, nil, fmt.Errorf("listing %s: %w", root, err)
	}
	targets := make([]string, 0, len(entries))
	for _, entry := range entries {
		target := filepath.Join(root, entry.Name())
		if err := ensureSubPath(root, target); err != nil {
			return nil, nil, err
		}
		targets = append(targets, target)
	}
	return targets, nil, nil
}

func ensureSubPath(base, target string) error {
	rel, err := filepath.Rel(filepath.Clean(base), filepath.Clean(target))
	if err != nil {
		return err
	}
	if rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return fmt.Errorf("refusing to operate on %s because it is outside %s", target, base)
	}
	return nil
}

func pathExists(path string) (bool, error) {
	if path == "" {
		return false, fmt.Errorf("path must not be empty")
	}
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, err
}
