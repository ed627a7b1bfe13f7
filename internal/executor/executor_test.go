package executor

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/open-edge-platform/devenv-composer/internal/pkglist"
	"github.com/open-edge-platform/devenv-composer/internal/plan"
	"github.com/open-edge-platform/devenv-composer/internal/provider"
	"github.com/open-edge-platform/devenv-composer/internal/provider/arch"
	"github.com/open-edge-platform/devenv-composer/internal/utils/shell"
)

func archProvider(t *testing.T) provider.Provider {
	t.Helper()
	p, err := arch.New("yay")
	if err != nil {
		t.Fatal(err)
	}
	return p
}

func install(name, manager, owner string) plan.Step {
	return plan.Install(pkglist.Entry{Name: name}, manager, owner)
}

func samplePlan() *plan.Plan {
	return &plan.Plan{
		ID:     "test",
		Distro: "arch",
		Steps: []plan.Step{
			install("kitty", "pacman", "terminal"),
			install("hyprpicker", "aur", "wm"),
			plan.PostInstall("service:sddm", "wm"),
			plan.PostInstall("user-service:pipewire", "audio"),
			plan.PostInstall("group:video", "wm"),
		},
	}
}

func TestSystemExecutesCommands(t *testing.T) {
	mock := shell.NewMockExecutor([]shell.MockCommand{{Pattern: ".*", Output: "ok"}})
	sys, err := NewSystem(Options{Provider: archProvider(t), User: "dev"}, mock)
	if err != nil {
		t.Fatal(err)
	}

	res, err := Run(context.Background(), samplePlan(), sys, RunOptions{})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if res.Succeeded != 5 || !res.OK() {
		t.Errorf("Unexpected result %+v", res)
	}

	want := []string{
		"sudo pacman -S --needed --noconfirm kitty",
		"yay -S --needed --noconfirm hyprpicker",
		"sudo systemctl enable sddm",
		"systemctl --user enable pipewire",
		"sudo usermod -aG video dev",
	}
	if diff := cmp.Diff(want, mock.Recorded()); diff != "" {
		t.Errorf("commands mismatch (-want +got):\n%s", diff)
	}
}

func TestDryRunWritesCommands(t *testing.T) {
	var out bytes.Buffer
	called := false
	actions := map[string]ActionFunc{
		"dotfiles": func(context.Context, plan.Step) error { called = true; return nil },
	}
	dry, err := NewDryRun(Options{Provider: archProvider(t), User: "dev", Actions: actions}, &out)
	if err != nil {
		t.Fatal(err)
	}

	p := samplePlan()
	p.Steps = append(p.Steps, plan.PostInstall("dotfiles", "shell"))
	if _, err := Run(context.Background(), p, dry, RunOptions{}); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if called {
		t.Error("Dry run must not invoke registered actions")
	}

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	want := []string{
		"[dry-run] sudo pacman -S --needed --noconfirm kitty",
		"[dry-run] yay -S --needed --noconfirm hyprpicker",
		"[dry-run] sudo systemctl enable sddm",
		"[dry-run] systemctl --user enable pipewire",
		"[dry-run] sudo usermod -aG video dev",
		"[dry-run] action dotfiles (shell)",
	}
	if diff := cmp.Diff(want, lines); diff != "" {
		t.Errorf("dry-run output mismatch (-want +got):\n%s", diff)
	}
}

func TestRegisteredAction(t *testing.T) {
	var got plan.Step
	actions := map[string]ActionFunc{
		"dotfiles": func(_ context.Context, s plan.Step) error { got = s; return nil },
	}
	mock := shell.NewMockExecutor(nil)
	sys, _ := NewSystem(Options{Provider: archProvider(t), Actions: actions}, mock)

	step := plan.PostInstall("dotfiles", "shell")
	if err := sys.Execute(context.Background(), step); err != nil {
		t.Fatal(err)
	}
	if got.Action != "dotfiles" || len(mock.Recorded()) != 0 {
		t.Errorf("Expected the action func to run without shell calls, got %+v %v", got, mock.Recorded())
	}
}

func TestUnknownAndInvalidActions(t *testing.T) {
	sys, _ := NewSystem(Options{Provider: archProvider(t)}, shell.NewMockExecutor(nil))
	ctx := context.Background()

	var unknown *UnknownActionError
	if err := sys.Execute(ctx, plan.PostInstall("reboot", "wm")); !errors.As(err, &unknown) {
		t.Errorf("Expected UnknownActionError, got %v", err)
	}
	if err := sys.Execute(ctx, plan.PostInstall("group:video", "wm")); err == nil {
		t.Error("Expected error without a target user")
	}
	if err := sys.Execute(ctx, plan.PostInstall("service:", "wm")); err == nil {
		t.Error("Expected error for empty unit")
	}
	var unsupported *provider.UnsupportedManagerError
	if err := sys.Execute(ctx, install("vim", "apt", "editor")); !errors.As(err, &unsupported) {
		t.Errorf("Expected UnsupportedManagerError, got %v", err)
	}
}

func TestIsKnownAction(t *testing.T) {
	actions := map[string]ActionFunc{"dotfiles": nil}
	for id, want := range map[string]bool{
		"service:sddm":   true,
		"user-service:x": true,
		"group:video":    true,
		"dotfiles":       true,
		"service:":       false,
		"reboot":         false,
	} {
		if got := IsKnownAction(id, actions); got != want {
			t.Errorf("IsKnownAction(%q) = %v, want %v", id, got, want)
		}
	}
}

func TestRunStopsAtFirstFailure(t *testing.T) {
	mock := shell.NewMockExecutor([]shell.MockCommand{
		{Pattern: "hyprpicker", Error: errors.New("build failed")},
		{Pattern: ".*", Output: "ok"},
	})
	sys, _ := NewSystem(Options{Provider: archProvider(t), User: "dev"}, mock)

	res, err := Run(context.Background(), samplePlan(), sys, RunOptions{})
	if err == nil {
		t.Fatal("Expected failure")
	}
	if res.Succeeded != 1 || len(res.Failed) != 1 || res.Skipped != 3 {
		t.Errorf("Unexpected result %+v", res)
	}
	if res.Failed[0].Index != 1 {
		t.Errorf("Expected step 2 to fail, got index %d", res.Failed[0].Index)
	}
	if len(mock.Recorded()) != 2 {
		t.Errorf("No steps may run after a failure, got %v", mock.Recorded())
	}
}

func TestRunContinueOnError(t *testing.T) {
	mock := shell.NewMockExecutor([]shell.MockCommand{
		{Pattern: "hyprpicker", Error: errors.New("build failed")},
		{Pattern: "sddm", Error: errors.New("no such unit")},
		{Pattern: ".*", Output: "ok"},
	})
	sys, _ := NewSystem(Options{Provider: archProvider(t), User: "dev"}, mock)

	var progress bytes.Buffer
	res, err := Run(context.Background(), samplePlan(), sys, RunOptions{ContinueOnError: true, Progress: &progress})
	if err == nil || !strings.Contains(err.Error(), "2 of 5 steps failed") {
		t.Fatalf("Expected aggregated failure, got %v", err)
	}
	if res.Succeeded != 3 || len(res.Failed) != 2 || res.Skipped != 0 {
		t.Errorf("Unexpected result %+v", res)
	}
	if progress.Len() == 0 {
		t.Error("Expected progress output")
	}
}

func TestRunHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	count := 0
	exec := executorFunc(func(context.Context, plan.Step) error {
		count++
		if count == 2 {
			cancel()
		}
		return nil
	})

	res, err := Run(ctx, samplePlan(), exec, RunOptions{})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Expected context.Canceled, got %v", err)
	}
	if res.Succeeded != 2 || res.Skipped != 3 {
		t.Errorf("Unexpected result %+v", res)
	}
}

func TestNewRequiresProvider(t *testing.T) {
	if _, err := NewSystem(Options{}, nil); err == nil {
		t.Error("Expected error without provider")
	}
	if _, err := NewDryRun(Options{}, nil); err == nil {
		t.Error("Expected error without provider")
	}
}

type executorFunc func(context.Context, plan.Step) error

func (f executorFunc) Execute(ctx context.Context, s plan.Step) error { return f(ctx, s) }
