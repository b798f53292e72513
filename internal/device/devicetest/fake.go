// Package devicetest provides a scriptable in-memory device.Driver for tests.
package devicetest

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/jmylchreest/homescout/internal/device"
)

// Screen identifies what the fake is currently showing.
type Screen int

const (
	ListScreen Screen = iota
	DetailScreen
	ContactScreen
)

// Item is one slot of the fake results list.
type Item struct {
	Tag     string
	Price   string
	Details string
	// Texts are the visible texts once the contact has been revealed.
	Texts []string
	// FailClick makes opening the card fail.
	FailClick bool
}

// Locators tells the fake which locators address the results list and the
// listing screen.
type Locators struct {
	Container     device.Locator
	CardAttribute string
	Price         device.Locator
	Details       device.Locator
	RevealContact device.Locator
	TextNodes     device.Locator
}

// Element is a static element used by navigation steps.
type Element struct {
	Text     string
	Children int

	mu      sync.Mutex
	clicks  int
	entered []string
}

// Clicks returns how many times the element was clicked.
func (e *Element) Clicks() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.clicks
}

// Entered returns the text typed into the element.
func (e *Element) Entered() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.entered...)
}

// Driver is a fake device.Driver. Fields may be set before use; after that
// use the accessor methods.
type Driver struct {
	Locators Locators
	Items    []Item
	// Window is the number of rendered slots; Scroll advances by it.
	Window int
	// Elements resolves any locator not covered by Locators.
	Elements map[device.Locator]*Element
	// RevealLeavesDetail makes the contact action open a separate screen.
	RevealLeavesDetail bool
	// Installed lists the installed application ids.
	Installed map[string]bool
	// ScrollErr is returned by Scroll.
	ScrollErr error
	// HideListFor keeps the results list hidden for this many lookups.
	HideListFor int

	mu      sync.Mutex
	screen  Screen
	offset  int
	open    int
	actions []string
	quit    int
	running map[string]bool
}

// New returns a fake showing items in a list of window rendered slots.
func New(loc Locators, window int, items ...Item) *Driver {
	return &Driver{
		Locators:  loc,
		Items:     items,
		Window:    window,
		Elements:  map[device.Locator]*Element{},
		Installed: map[string]bool{},
	}
}

var _ device.Driver = (*Driver)(nil)

func (d *Driver) record(format string, args ...any) {
	d.actions = append(d.actions, fmt.Sprintf(format, args...))
}

// Actions returns the recorded action log.
func (d *Driver) Actions() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.actions...)
}

// Count returns how many recorded actions start with prefix.
func (d *Driver) Count(prefix string) int {
	n := 0
	for _, a := range d.Actions() {
		if strings.HasPrefix(a, prefix) {
			n++
		}
	}
	return n
}

// Screen returns the screen currently shown.
func (d *Driver) Screen() Screen {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.screen
}

// QuitCalls returns how many times Quit was called.
func (d *Driver) QuitCalls() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.quit
}

// Running reports whether appID was activated and not terminated since.
func (d *Driver) Running(appID string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.running[appID]
}

func (d *Driver) window() int {
	if d.Window < 1 {
		return 1
	}
	return d.Window
}

// slotIndex parses "<container>/*[i]".
func (d *Driver) slotIndex(loc device.Locator) (int, bool) {
	prefix := strings.TrimRight(string(d.Locators.Container), "/") + "/*["
	s := string(loc)
	if d.Locators.Container == "" || !strings.HasPrefix(s, prefix) || !strings.HasSuffix(s, "]") {
		return 0, false
	}
	i, err := strconv.Atoi(s[len(prefix) : len(s)-1])
	if err != nil {
		return 0, false
	}
	return i, true
}

// Find implements device.Driver.
func (d *Driver) Find(ctx context.Context, loc device.Locator) (device.Node, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	notFound := fmt.Errorf("%s: %w", loc, device.ErrNotFound)

	if loc == d.Locators.Container && loc != "" {
		if d.HideListFor > 0 {
			d.HideListFor--
			return nil, notFound
		}
		if d.screen != ListScreen {
			return nil, notFound
		}
		return &node{d: d, kind: "list"}, nil
	}

	if i, ok := d.slotIndex(loc); ok {
		idx := d.offset + i - 1
		if d.screen != ListScreen || i < 1 || i > d.window() || idx >= len(d.Items) {
			return nil, notFound
		}
		return &node{d: d, kind: "slot", item: idx}, nil
	}

	if d.screen != ListScreen && loc != "" {
		item := d.Items[d.open]
		switch loc {
		case d.Locators.Price:
			if d.screen == DetailScreen && item.Price != "" {
				return &node{d: d, kind: "text", text: item.Price}, nil
			}
			return nil, notFound
		case d.Locators.Details:
			if d.screen == DetailScreen && item.Details != "" {
				return &node{d: d, kind: "text", text: item.Details}, nil
			}
			return nil, notFound
		case d.Locators.RevealContact:
			if d.screen == DetailScreen {
				return &node{d: d, kind: "reveal"}, nil
			}
			return nil, notFound
		}
	}

	if el, ok := d.Elements[loc]; ok {
		return &node{d: d, kind: "element", el: el, loc: loc}, nil
	}
	return nil, notFound
}

// FindAll implements device.Driver.
func (d *Driver) FindAll(ctx context.Context, loc device.Locator) ([]device.Node, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if loc == d.Locators.TextNodes && d.screen != ListScreen {
		item := d.Items[d.open]
		nodes := make([]device.Node, 0, len(item.Texts))
		for _, t := range item.Texts {
			nodes = append(nodes, &node{d: d, kind: "text", text: t})
		}
		return nodes, nil
	}
	if el, ok := d.Elements[loc]; ok {
		return []device.Node{&node{d: d, kind: "element", el: el, loc: loc}}, nil
	}
	return nil, nil
}

// Children implements device.Driver.
func (d *Driver) Children(ctx context.Context, container device.Locator) ([]device.Node, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	el, ok := d.Elements[container]
	if !ok {
		return nil, fmt.Errorf("%s: %w", container, device.ErrNotFound)
	}
	nodes := make([]device.Node, el.Children)
	for i := range nodes {
		child := container.Child(i + 1)
		cel, ok := d.Elements[child]
		if !ok {
			cel = &Element{}
			d.Elements[child] = cel
		}
		nodes[i] = &node{d: d, kind: "element", el: cel, loc: child}
	}
	return nodes, nil
}

// Back implements device.Driver.
func (d *Driver) Back(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("back")
	switch d.screen {
	case ContactScreen:
		d.screen = DetailScreen
	case DetailScreen:
		d.screen = ListScreen
	}
	return nil
}

// Scroll implements device.Driver.
func (d *Driver) Scroll(ctx context.Context, dir device.Direction) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("scroll %s", dir)
	if d.ScrollErr != nil {
		return d.ScrollErr
	}
	if dir == device.ScrollDown {
		d.offset += d.window()
	} else if d.offset -= d.window(); d.offset < 0 {
		d.offset = 0
	}
	return nil
}

// HideKeyboard implements device.Driver.
func (d *Driver) HideKeyboard(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("hide_keyboard")
	return nil
}

// IsAppInstalled implements device.Driver.
func (d *Driver) IsAppInstalled(ctx context.Context, appID string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.Installed[appID], nil
}

// ActivateApp implements device.Driver.
func (d *Driver) ActivateApp(ctx context.Context, appID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("activate %s", appID)
	if !d.Installed[appID] {
		return device.ErrNotInstalled
	}
	if d.running == nil {
		d.running = map[string]bool{}
	}
	d.running[appID] = true
	return nil
}

// TerminateApp implements device.Driver.
func (d *Driver) TerminateApp(ctx context.Context, appID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("terminate %s", appID)
	delete(d.running, appID)
	return nil
}

// Screenshot implements device.Driver.
func (d *Driver) Screenshot(ctx context.Context) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("screenshot")
	return []byte("\x89PNG fake"), nil
}

// Quit implements device.Driver.
func (d *Driver) Quit() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.quit++
	if d.quit > 1 {
		return errors.New("session already closed")
	}
	return nil
}

type node struct {
	d    *Driver
	kind string
	item int
	text string
	el   *Element
	loc  device.Locator
}

func (n *node) Attribute(ctx context.Context, name string) (string, error) {
	n.d.mu.Lock()
	defer n.d.mu.Unlock()
	if n.kind == "slot" && name == n.d.Locators.CardAttribute {
		return n.d.Items[n.item].Tag, nil
	}
	return "", nil
}

func (n *node) Text(ctx context.Context) (string, error) {
	if n.el != nil {
		n.el.mu.Lock()
		defer n.el.mu.Unlock()
		return n.el.Text, nil
	}
	return n.text, nil
}

func (n *node) Click(ctx context.Context) error {
	n.d.mu.Lock()
	defer n.d.mu.Unlock()

	switch n.kind {
	case "slot":
		item := n.d.Items[n.item]
		n.d.record("open %d", n.item)
		if item.FailClick {
			return errors.New("element is not clickable")
		}
		n.d.screen = DetailScreen
		n.d.open = n.item
	case "reveal":
		n.d.record("reveal %d", n.d.open)
		if n.d.RevealLeavesDetail {
			n.d.screen = ContactScreen
		}
	case "element":
		n.d.record("click %s", n.loc)
		n.el.mu.Lock()
		n.el.clicks++
		n.el.mu.Unlock()
	}
	return nil
}

func (n *node) SendKeys(ctx context.Context, text string) error {
	if n.el == nil {
		return errors.New("element does not accept input")
	}
	n.d.mu.Lock()
	n.d.record("type %s %q", n.loc, text)
	n.d.mu.Unlock()

	n.el.mu.Lock()
	defer n.el.mu.Unlock()
	n.el.entered = append(n.el.entered, text)
	n.el.Text = text
	return nil
}
