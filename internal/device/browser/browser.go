// Package browser drives the mobile web version of a listing site in a
// headless Chrome instance, emulating a phone.
package browser

import (
	"context"
	"fmt"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/chromedp"

	"github.com/jmylchreest/homescout/internal/device"
	"github.com/jmylchreest/homescout/internal/logger"
)

func init() {
	device.Register("browser", NewFactory)
}

// Factory launches browser sessions.
type Factory struct {
	cfg     device.Config
	emulate chromedp.Device
}

// NewFactory creates a Factory from cfg. StartURL is required: it is the page
// "activating the app" navigates to.
func NewFactory(cfg device.Config) (device.Factory, error) {
	if cfg.StartURL == "" {
		return nil, fmt.Errorf("browser backend requires device.start_url")
	}
	emulate, ok := lookupDevice(cfg.EmulateDevice)
	if !ok {
		return nil, fmt.Errorf("unknown emulated device: %s", cfg.EmulateDevice)
	}
	return &Factory{cfg: cfg, emulate: emulate}, nil
}

// Name returns "browser".
func (f *Factory) Name() string { return "browser" }

// Open starts a new browser.
func (f *Factory) Open(ctx context.Context) (device.Driver, error) {
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), allocatorOptions(f.cfg.Headless)...)
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(func(format string, args ...interface{}) {
			logger.Debug("chromedp", "msg", fmt.Sprintf(format, args...))
		}),
	)

	d := &Driver{
		ctx:      browserCtx,
		startURL: f.cfg.StartURL,
		cancel: func() {
			cancelBrowser()
			cancelAlloc()
		},
	}

	if err := ctx.Err(); err != nil {
		d.cancel()
		return nil, err
	}

	// The first Run allocates the browser and must use the tab context itself;
	// a derived context would take the browser down with it.
	var actions []chromedp.Action
	if f.emulate != nil {
		actions = append(actions, chromedp.Emulate(f.emulate))
	}
	if err := chromedp.Run(browserCtx, actions...); err != nil {
		d.cancel()
		return nil, fmt.Errorf("failed to start browser: %w", err)
	}

	logger.Debug("browser session started", "emulate", f.cfg.EmulateDevice, "headless", f.cfg.Headless)
	return d, nil
}

// Driver is a device.Driver backed by one browser tab.
type Driver struct {
	ctx      context.Context
	cancel   context.CancelFunc
	startURL string
}

var _ device.Driver = (*Driver)(nil)

// run executes actions on the tab, aborting them when ctx is done.
func (d *Driver) run(ctx context.Context, actions ...chromedp.Action) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	runCtx, cancel := context.WithCancel(d.ctx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	if err := chromedp.Run(runCtx, actions...); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return err
	}
	return nil
}

func (d *Driver) nodes(ctx context.Context, loc device.Locator) ([]*cdp.Node, error) {
	var nodes []*cdp.Node
	err := d.run(ctx, chromedp.Nodes(string(loc), &nodes, chromedp.BySearch, chromedp.AtLeast(0)))
	return nodes, err
}

// Find implements device.Driver.
func (d *Driver) Find(ctx context.Context, loc device.Locator) (device.Node, error) {
	nodes, err := d.nodes(ctx, loc)
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", loc, err)
	}
	if len(nodes) == 0 {
		return nil, fmt.Errorf("%s: %w", loc, device.ErrNotFound)
	}
	return &node{d: d, id: nodes[0].NodeID}, nil
}

// FindAll implements device.Driver.
func (d *Driver) FindAll(ctx context.Context, loc device.Locator) ([]device.Node, error) {
	nodes, err := d.nodes(ctx, loc)
	if err != nil {
		return nil, fmt.Errorf("find all %s: %w", loc, err)
	}
	out := make([]device.Node, len(nodes))
	for i, n := range nodes {
		out[i] = &node{d: d, id: n.NodeID}
	}
	return out, nil
}

// Children implements device.Driver.
func (d *Driver) Children(ctx context.Context, container device.Locator) ([]device.Node, error) {
	if _, err := d.Find(ctx, container); err != nil {
		return nil, err
	}
	return d.FindAll(ctx, container.Children())
}

// Back implements device.Driver.
func (d *Driver) Back(ctx context.Context) error {
	return d.run(ctx, chromedp.NavigateBack())
}

// Scroll moves the page by most of a viewport.
func (d *Driver) Scroll(ctx context.Context, dir device.Direction) error {
	sign := 1
	if dir == device.ScrollUp {
		sign = -1
	}
	var ignored any
	return d.run(ctx, chromedp.Evaluate(fmt.Sprintf("window.scrollBy(0, %d * window.innerHeight * 0.7)", sign), &ignored))
}

// HideKeyboard blurs the focused field.
func (d *Driver) HideKeyboard(ctx context.Context) error {
	var ignored any
	return d.run(ctx, chromedp.Evaluate("document.activeElement && document.activeElement.blur()", &ignored))
}

// IsAppInstalled reports whether a start page is configured; the web
// version has nothing to install.
func (d *Driver) IsAppInstalled(ctx context.Context, appID string) (bool, error) {
	return d.startURL != "", nil
}

// ActivateApp opens the start page.
func (d *Driver) ActivateApp(ctx context.Context, appID string) error {
	return d.run(ctx, chromedp.Navigate(d.startURL), chromedp.WaitReady("body"))
}

// TerminateApp leaves the site.
func (d *Driver) TerminateApp(ctx context.Context, appID string) error {
	return d.run(ctx, chromedp.Navigate("about:blank"))
}

// Screenshot implements device.Driver.
func (d *Driver) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	if err := d.run(ctx, chromedp.CaptureScreenshot(&buf)); err != nil {
		return nil, err
	}
	return buf, nil
}

// Quit closes the browser.
func (d *Driver) Quit() error {
	d.cancel()
	return nil
}

type node struct {
	d  *Driver
	id cdp.NodeID
}

func (n *node) sel() []cdp.NodeID { return []cdp.NodeID{n.id} }

func (n *node) Attribute(ctx context.Context, name string) (string, error) {
	var value string
	var ok bool
	if err := n.d.run(ctx, chromedp.AttributeValue(n.sel(), name, &value, &ok, chromedp.ByNodeID)); err != nil {
		return "", err
	}
	return value, nil
}

func (n *node) Text(ctx context.Context) (string, error) {
	var html string
	if err := n.d.run(ctx, chromedp.OuterHTML(n.sel(), &html, chromedp.ByNodeID)); err != nil {
		return "", err
	}
	return visibleText(html)
}

func (n *node) Click(ctx context.Context) error {
	return n.d.run(ctx, chromedp.Click(n.sel(), chromedp.ByNodeID))
}

func (n *node) SendKeys(ctx context.Context, text string) error {
	return n.d.run(ctx, chromedp.SendKeys(n.sel(), text, chromedp.ByNodeID))
}
