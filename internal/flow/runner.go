package flow

import (
	"context"
	"fmt"
	"time"

	"github.com/jmylchreest/homescout/internal/device"
	"github.com/jmylchreest/homescout/internal/listing"
	"github.com/jmylchreest/homescout/internal/logger"
)

// Runner executes flow steps against a driver.
type Runner struct {
	// Timeout bounds the wait for each step's element.
	Timeout time.Duration
	// Poll is the interval between element lookups while waiting.
	Poll time.Duration
}

// Run executes every step in order. A failing step that is not optional
// aborts the run with a *listing.SetupError naming the step.
func (r Runner) Run(ctx context.Context, d device.Driver, f *Flow, p Params) error {
	log := logger.With("component", "flow", "flow", f.Name)

	for i, step := range f.Steps {
		stepLog := log.With("step", i+1, "name", step.Name)
		stepLog.Debug("running step", "action", step.Action)

		if err := r.runStep(ctx, d, step, p); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if step.Optional {
				stepLog.Warn("optional step failed", "error", err)
				continue
			}
			stepLog.Error("step failed", "error", err)
			return &listing.SetupError{Stage: step.Name, Err: err}
		}

		if err := device.Pause(ctx, step.Pause); err != nil {
			return err
		}
	}

	log.Info("search flow complete", "steps", len(f.Steps))
	return nil
}

func (r Runner) runStep(ctx context.Context, d device.Driver, s Step, p Params) error {
	switch s.Action {
	case ActionHideKeyboard:
		return d.HideKeyboard(ctx)
	case ActionBack:
		return d.Back(ctx)
	}

	node, err := device.WaitFor(ctx, d, s.Locator, r.Timeout, r.Poll)
	if err != nil {
		return err
	}

	switch s.Action {
	case ActionWait:
		return nil
	case ActionClick:
		return node.Click(ctx)
	case ActionType:
		text, err := s.Render(p)
		if err != nil {
			return fmt.Errorf("render text: %w", err)
		}
		if s.Focus {
			if err := node.Click(ctx); err != nil {
				return fmt.Errorf("focus: %w", err)
			}
		}
		return node.SendKeys(ctx, text)
	case ActionPickChild:
		children, err := d.Children(ctx, s.Locator)
		if err != nil {
			return err
		}
		if s.Child > len(children) {
			return fmt.Errorf("child %d of %s: %w (only %d children)", s.Child, s.Locator, device.ErrNotFound, len(children))
		}
		return children[s.Child-1].Click(ctx)
	default:
		return fmt.Errorf("unknown action %q", s.Action)
	}
}
