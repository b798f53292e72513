// Package device abstracts the remote screen-automation session used to
// drive the listing application.
//
// A Driver is exclusively owned by one caller at a time and is not safe for
// concurrent use: the automated application is a single stateful session and
// every action depends on the screen the previous one left behind.
package device

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrNotFound is returned when no element matches a locator.
	ErrNotFound = errors.New("element not found")

	// ErrNotInstalled is returned when the target application is missing
	// from the device.
	ErrNotInstalled = errors.New("application not installed")
)

// Locator addresses an element in the screen hierarchy. Both backends accept
// XPath expressions.
type Locator string

// Child returns the locator of the i-th (1-based) child of l.
func (l Locator) Child(i int) Locator {
	return Locator(fmt.Sprintf("%s/*[%d]", strings.TrimRight(string(l), "/"), i))
}

// Children returns the locator matching every direct child of l.
func (l Locator) Children() Locator {
	return Locator(strings.TrimRight(string(l), "/") + "/*")
}

func (l Locator) String() string { return string(l) }

// Direction is a scroll direction.
type Direction string

const (
	ScrollDown Direction = "down"
	ScrollUp   Direction = "up"
)

// Node is a handle to a rendered element.
type Node interface {
	Attribute(ctx context.Context, name string) (string, error)
	Text(ctx context.Context) (string, error)
	Click(ctx context.Context) error
	SendKeys(ctx context.Context, text string) error
}

// Driver is the screen-driver capability.
type Driver interface {
	// Find returns the first element matching loc, or ErrNotFound.
	Find(ctx context.Context, loc Locator) (Node, error)
	// FindAll returns every element matching loc (possibly none).
	FindAll(ctx context.Context, loc Locator) ([]Node, error)
	// Children returns the direct children of the container at loc.
	Children(ctx context.Context, container Locator) ([]Node, error)

	Back(ctx context.Context) error
	Scroll(ctx context.Context, dir Direction) error
	HideKeyboard(ctx context.Context) error

	IsAppInstalled(ctx context.Context, appID string) (bool, error)
	ActivateApp(ctx context.Context, appID string) error
	TerminateApp(ctx context.Context, appID string) error

	// Screenshot returns a PNG capture of the current screen.
	Screenshot(ctx context.Context) ([]byte, error)

	// Quit tears the remote session down. It must be called exactly once.
	Quit() error
}

// Factory opens new driver sessions.
type Factory interface {
	Open(ctx context.Context) (Driver, error)
	Name() string
}

// FactoryFunc adapts a function to the Factory interface.
type FactoryFunc struct {
	Backend string
	Fn      func(ctx context.Context) (Driver, error)
}

// Open calls f.Fn.
func (f FactoryFunc) Open(ctx context.Context) (Driver, error) { return f.Fn(ctx) }

// Name returns the backend name.
func (f FactoryFunc) Name() string { return f.Backend }

// WaitFor polls until an element matching loc exists or timeout elapses.
func WaitFor(ctx context.Context, d Driver, loc Locator, timeout, poll time.Duration) (Node, error) {
	if poll <= 0 {
		poll = 250 * time.Millisecond
	}
	deadline := time.Now().Add(timeout)

	for {
		node, err := d.Find(ctx, loc)
		if err == nil {
			return node, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return nil, err
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("waiting %s for %s: %w", timeout, loc, ErrNotFound)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(poll):
		}
	}
}

// Pause sleeps for d unless ctx is cancelled first.
func Pause(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
