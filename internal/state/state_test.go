package state

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/open-edge-platform/devenv-composer/internal/pkglist"
	"github.com/open-edge-platform/devenv-composer/internal/plan"
)

func samplePlan(id string) *plan.Plan {
	return &plan.Plan{
		ID:         id,
		CreatedAt:  time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		Distro:     "arch",
		Components: []string{"terminal"},
		Steps:      []plan.Step{plan.Install(pkglist.Entry{Name: "kitty"}, "pacman", "terminal")},
	}
}

func TestSaveLoadPlan(t *testing.T) {
	store := Store{Dir: t.TempDir()}

	path, err := store.SavePlan(samplePlan("p1"))
	if err != nil {
		t.Fatalf("SavePlan failed: %v", err)
	}
	if filepath.Base(path) != "p1.json.zst" {
		t.Errorf("Unexpected plan path %s", path)
	}
	if _, err := store.SavePlan(samplePlan("p2")); err != nil {
		t.Fatal(err)
	}

	ids, err := store.ListPlans()
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"p1", "p2"}, ids); diff != "" {
		t.Errorf("ListPlans() mismatch (-want +got):\n%s", diff)
	}

	loaded, err := store.LoadPlan("p1")
	if err != nil {
		t.Fatalf("LoadPlan failed: %v", err)
	}
	if loaded.Steps[0].Package.Name != "kitty" {
		t.Errorf("Unexpected loaded plan %+v", loaded)
	}

	if _, err := store.LoadPlan("../../etc/passwd"); err == nil {
		t.Error("Expected path traversal to be refused")
	}
	if _, err := store.SavePlan(&plan.Plan{}); err == nil {
		t.Error("Expected plan without id to be refused")
	}
}

func TestListPlansEmpty(t *testing.T) {
	ids, err := Store{Dir: filepath.Join(t.TempDir(), "none")}.ListPlans()
	if err != nil || len(ids) != 0 {
		t.Errorf("ListPlans() = %v, %v", ids, err)
	}
}

func TestSaveLoadRun(t *testing.T) {
	store := Store{Dir: t.TempDir()}
	rec := &RunRecord{PlanID: "p1", Distro: "arch", Succeeded: 3, Failed: []string{"install x via aur [wm]"}}
	path, err := store.SaveRun(rec)
	if err != nil {
		t.Fatal(err)
	}
	if rec.ID == "" || filepath.Base(path) != rec.ID+".json" {
		t.Errorf("Expected an id to be assigned, got %q at %s", rec.ID, path)
	}
	loaded, err := store.LoadRun(rec.ID)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(rec, loaded); diff != "" {
		t.Errorf("run record mismatch (-want +got):\n%s", diff)
	}
}

func TestCleanRequiresScope(t *testing.T) {
	if _, err := (Store{Dir: t.TempDir()}).Clean(CleanOptions{}); err == nil {
		t.Error("Expected error without a scope")
	}
}

func TestCleanDryRunAndReal(t *testing.T) {
	store := Store{Dir: t.TempDir()}
	p1, _ := store.SavePlan(samplePlan("p1"))
	p2, _ := store.SavePlan(samplePlan("p2"))
	run1, _ := store.SaveRun(&RunRecord{PlanID: "p1"})
	run2, _ := store.SaveRun(&RunRecord{PlanID: "p2"})

	res, err := store.Clean(CleanOptions{CleanPlans: true, CleanRuns: true, PlanID: "p1", DryRun: true})
	if err != nil {
		t.Fatal(err)
	}
	want := []string{p1, run1}
	if run1 < p1 {
		want = []string{run1, p1}
	}
	if diff := cmp.Diff(want, res.RemovedPaths); diff != "" {
		t.Errorf("dry-run removal mismatch (-want +got):\n%s", diff)
	}
	if _, err := os.Stat(p1); err != nil {
		t.Error("Dry run must not delete anything")
	}

	res, err = store.Clean(CleanOptions{CleanPlans: true})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.RemovedPaths) != 2 {
		t.Errorf("Expected both plans removed, got %v", res.RemovedPaths)
	}
	for _, p := range []string{p1, p2} {
		if _, err := os.Stat(p); !os.IsNotExist(err) {
			t.Errorf("%s should be gone", p)
		}
	}
	for _, r := range []string{run1, run2} {
		if _, err := os.Stat(r); err != nil {
			t.Errorf("run record %s should survive a plans-only clean", r)
		}
	}
}

func TestCleanMissingPlan(t *testing.T) {
	store := Store{Dir: t.TempDir()}
	res, err := store.Clean(CleanOptions{CleanPlans: true, PlanID: "ghost"})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.RemovedPaths) != 0 || len(res.SkippedPaths) != 1 {
		t.Errorf("Unexpected result %+v", res)
	}
}

func TestEnsureSubPath(t *testing.T) {
	if err := ensureSubPath("/var/lib/x", "/var/lib/x/plans/a"); err != nil {
		t.Errorf("child path refused: %v", err)
	}
	for _, bad := range []string{"/var/lib/x", "/var/lib", "/var/lib/x/../y"} {
		if err := ensureSubPath("/var/lib/x", bad); err == nil {
			t.Errorf("ensureSubPath(%q) should fail", bad)
		}
	}
}
