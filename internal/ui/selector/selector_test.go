package selector

import (
	"errors"
	"strings"
	"testing"

	"github.com/gdamore/tcell/v2"
	"github.com/google/go-cmp/cmp"
)

var items = []Item{
	{Name: "terminal", Description: "kitty and friends"},
	{Name: "wm", Description: "Hyprland"},
	{Name: "gaming", Description: "Steam, Lutris"},
}

func key(r rune) *tcell.EventKey {
	return tcell.NewEventKey(tcell.KeyRune, r, tcell.ModNone)
}

func TestChecklist(t *testing.T) {
	c := NewChecklist(items, []string{"wm", "unknown"})
	if diff := cmp.Diff([]string{"wm"}, c.Selected()); diff != "" {
		t.Errorf("preselection mismatch (-want +got):\n%s", diff)
	}

	c.Toggle(0)
	c.Toggle(1)
	c.Toggle(99)
	if diff := cmp.Diff([]string{"terminal"}, c.Selected()); diff != "" {
		t.Errorf("after toggle (-want +got):\n%s", diff)
	}

	c.SetAll(true)
	if len(c.Selected()) != 3 {
		t.Errorf("Expected all selected, got %v", c.Selected())
	}
	if !strings.HasSuffix(c.Label(2), "gaming") || !strings.Contains(c.Label(2), "x") {
		t.Errorf("Unexpected label %q", c.Label(2))
	}
	c.SetAll(false)
	if c.Selected() != nil {
		t.Errorf("Expected nothing selected, got %v", c.Selected())
	}
}

func TestNewBuildsList(t *testing.T) {
	s := New(items, []string{"terminal"})
	if s.list.GetItemCount() != len(items) {
		t.Fatalf("Expected %d list items, got %d", len(items), s.list.GetItemCount())
	}
	main, secondary := s.list.GetItemText(0)
	if !strings.Contains(main, "terminal") || secondary != "kitty and friends" {
		t.Errorf("Unexpected item text %q / %q", main, secondary)
	}
}

func TestHandleInput(t *testing.T) {
	s := New(items, nil)

	if ev := s.HandleInput(key(' ')); ev != nil {
		t.Error("space should be consumed")
	}
	if diff := cmp.Diff([]string{"terminal"}, s.model.Selected()); diff != "" {
		t.Errorf("space toggles current item (-want +got):\n%s", diff)
	}
	main, _ := s.list.GetItemText(0)
	if !strings.Contains(main, "x") {
		t.Errorf("list text should show the check, got %q", main)
	}

	s.HandleInput(key('a'))
	if len(s.model.Selected()) != 3 {
		t.Errorf("a selects all, got %v", s.model.Selected())
	}
	s.HandleInput(key('n'))
	if len(s.model.Selected()) != 0 {
		t.Errorf("n clears all, got %v", s.model.Selected())
	}

	if ev := s.HandleInput(key('z')); ev == nil {
		t.Error("unbound keys should pass through")
	}
	down := tcell.NewEventKey(tcell.KeyDown, 0, tcell.ModNone)
	if ev := s.HandleInput(down); ev != down {
		t.Error("navigation keys should pass through")
	}
}

func TestResult(t *testing.T) {
	s := New(items, []string{"gaming"})
	if _, err := s.result(); !errors.Is(err, ErrCancelled) {
		t.Errorf("Expected ErrCancelled before confirmation, got %v", err)
	}

	s.HandleInput(key('i'))
	got, err := s.result()
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"gaming"}, got); diff != "" {
		t.Errorf("result mismatch (-want +got):\n%s", diff)
	}
}
