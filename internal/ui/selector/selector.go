// Package selector shows a full-screen checklist of components.
package selector

import (
	"errors"
	"fmt"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/open-edge-platform/devenv-composer/internal/utils/slice"
)

// UI constants.
const (
	defaultPadding = 1
	title          = " Select components "
	helpText       = "[yellow]Enter/Space[white] toggle   [yellow]a[white] all   [yellow]n[white] none   [yellow]i[white] install   [yellow]Esc/q[white] cancel"
)

// ErrCancelled is returned when the user leaves without confirming.
var ErrCancelled = errors.New("selection cancelled")

// Item is one selectable component.
type Item struct {
	Name        string
	Description string
}

// Checklist is the selection state behind the view.
type Checklist struct {
	items   []Item
	checked []bool
}

// NewChecklist returns a checklist with the names in preselected checked.
func NewChecklist(items []Item, preselected []string) *Checklist {
	pre := slice.ToSet(preselected)
	c := &Checklist{items: items, checked: make([]bool, len(items))}
	for i, item := range items {
		_, c.checked[i] = pre[item.Name]
	}
	return c
}

func (c *Checklist) Len() int {
	return len(c.items)
}

// Toggle flips item i.
func (c *Checklist) Toggle(i int) {
	if i >= 0 && i < len(c.checked) {
		c.checked[i] = !c.checked[i]
	}
}

// SetAll checks or clears every item.
func (c *Checklist) SetAll(v bool) {
	for i := range c.checked {
		c.checked[i] = v
	}
}

// Label renders item i with its check box.
func (c *Checklist) Label(i int) string {
	box := "[ ]"
	if c.checked[i] {
		box = "[x]"
	}
	return fmt.Sprintf("%s %s", tview.Escape(box), c.items[i].Name)
}

// Selected returns the checked names in list order.
func (c *Checklist) Selected() []string {
	var out []string
	for i, item := range c.items {
		if c.checked[i] {
			out = append(out, item.Name)
		}
	}
	return out
}

// Selector is the checklist view.
type Selector struct {
	app       *tview.Application
	list      *tview.List
	flex      *tview.Flex
	model     *Checklist
	confirmed bool
}

// New builds the view without starting it.
func New(items []Item, preselected []string) *Selector {
	s := &Selector{
		app:   tview.NewApplication(),
		model: NewChecklist(items, preselected),
	}

	s.list = tview.NewList().
		ShowSecondaryText(true).
		SetSelectedFunc(func(i int, _, _ string, _ rune) {
			s.toggle(i)
		})
	for i, item := range items {
		s.list.AddItem(s.model.Label(i), item.Description, 0, nil)
	}
	s.list.SetBorder(true).SetTitle(title)
	s.list.SetBorderPadding(defaultPadding, defaultPadding, defaultPadding, defaultPadding)

	help := tview.NewTextView().
		SetDynamicColors(true).
		SetText(helpText)

	s.flex = tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(s.list, 0, 1, true).
		AddItem(help, 1, 0, false)

	s.app.SetRoot(s.flex, true).SetInputCapture(s.HandleInput)
	return s
}

func (s *Selector) toggle(i int) {
	s.model.Toggle(i)
	s.refresh(i)
}

func (s *Selector) refresh(i int) {
	s.list.SetItemText(i, s.model.Label(i), s.model.items[i].Description)
}

// HandleInput handles custom input.
func (s *Selector) HandleInput(event *tcell.EventKey) *tcell.EventKey {
	switch event.Key() {
	case tcell.KeyEscape:
		s.app.Stop()
		return nil
	case tcell.KeyRune:
	default:
		return event
	}

	switch event.Rune() {
	case ' ':
		s.toggle(s.list.GetCurrentItem())
	case 'a', 'n':
		s.model.SetAll(event.Rune() == 'a')
		for i := 0; i < s.model.Len(); i++ {
			s.refresh(i)
		}
	case 'i':
		s.confirmed = true
		s.app.Stop()
	case 'q':
		s.app.Stop()
	default:
		return event
	}
	return nil
}

// Run shows the view until the user confirms or cancels.
func (s *Selector) Run() ([]string, error) {
	if err := s.app.Run(); err != nil {
		return nil, fmt.Errorf("running component selector: %w", err)
	}
	return s.result()
}

func (s *Selector) result() ([]string, error) {
	if !s.confirmed {
		return nil, ErrCancelled
	}
	return s.model.Selected(), nil
}

// Select shows the checklist and returns the chosen component names.
func Select(items []Item, preselected []string) ([]string, error) {
	return New(items, preselected).Run()
}
