// Package appium drives a real Android device through an Appium server using
// the W3C WebDriver protocol.
package appium

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/tebeka/selenium"

	"github.com/jmylchreest/homescout/internal/device"
	"github.com/jmylchreest/homescout/internal/logger"
)

// DefaultEndpoint is the Appium server address used when none is configured.
const DefaultEndpoint = "http://localhost:4723"

func init() {
	device.Register("appium", NewFactory)
}

// remote is the subset of selenium.WebDriver the driver uses.
type remote interface {
	FindElement(by, value string) (selenium.WebElement, error)
	FindElements(by, value string) ([]selenium.WebElement, error)
	Back() error
	Screenshot() ([]byte, error)
	ExecuteScript(script string, args []interface{}) (interface{}, error)
	Quit() error
}

// element is the subset of selenium.WebElement a node uses.
type element interface {
	Click() error
	SendKeys(keys string) error
	Text() (string, error)
	GetAttribute(name string) (string, error)
}

// newRemote opens a WebDriver session. Tests replace it.
var newRemote = func(caps selenium.Capabilities, endpoint string) (remote, error) {
	wd, err := selenium.NewRemote(caps, endpoint)
	if err != nil {
		return nil, err
	}
	return wd, nil
}

// Factory opens Appium sessions.
type Factory struct {
	cfg device.Config
}

// NewFactory creates a Factory from cfg.
func NewFactory(cfg device.Config) (device.Factory, error) {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if cfg.Platform == "" {
		cfg.Platform = "Android"
	}
	if cfg.Automation == "" {
		cfg.Automation = "UiAutomator2"
	}
	return &Factory{cfg: cfg}, nil
}

// Name returns "appium".
func (f *Factory) Name() string { return "appium" }

// Capabilities returns the capabilities sent when a session is created.
func (f *Factory) Capabilities() selenium.Capabilities {
	caps := selenium.Capabilities{
		"platformName":          f.cfg.Platform,
		"appium:automationName": f.cfg.Automation,
		"appium:noReset":        true,
	}
	if f.cfg.DeviceName != "" {
		caps["appium:deviceName"] = f.cfg.DeviceName
	}
	return caps
}

// Open creates a new session on the Appium server.
func (f *Factory) Open(ctx context.Context) (device.Driver, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	logger.Debug("opening appium session", "endpoint", f.cfg.Endpoint, "platform", f.cfg.Platform)

	wd, err := newRemote(f.Capabilities(), f.cfg.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to open appium session at %s: %w", f.cfg.Endpoint, err)
	}
	return &Driver{wd: wd, swipe: f.cfg.Swipe}, nil
}

// Driver is a device.Driver backed by one Appium session.
type Driver struct {
	wd    remote
	swipe device.SwipeConfig
}

var _ device.Driver = (*Driver)(nil)

// Find implements device.Driver.
func (d *Driver) Find(ctx context.Context, loc device.Locator) (device.Node, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	el, err := d.wd.FindElement(selenium.ByXPATH, string(loc))
	if err != nil {
		return nil, mapError(loc, err)
	}
	return &node{el: el}, nil
}

// FindAll implements device.Driver.
func (d *Driver) FindAll(ctx context.Context, loc device.Locator) ([]device.Node, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	els, err := d.wd.FindElements(selenium.ByXPATH, string(loc))
	if err != nil {
		if isNoSuchElement(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("find all %s: %w", loc, err)
	}
	nodes := make([]device.Node, len(els))
	for i, el := range els {
		nodes[i] = &node{el: el}
	}
	return nodes, nil
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
	if err := ctx.Err(); err != nil {
		return err
	}
	return d.wd.Back()
}

// Scroll swipes between the configured coordinates. Scrolling up swaps the
// start and end points.
func (d *Driver) Scroll(ctx context.Context, dir device.Direction) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s := d.swipe
	if dir == device.ScrollUp {
		s.StartX, s.EndX = s.EndX, s.StartX
		s.StartY, s.EndY = s.EndY, s.StartY
	}
	_, err := d.mobile("dragGesture", map[string]interface{}{
		"startX": s.StartX,
		"startY": s.StartY,
		"endX":   s.EndX,
		"endY":   s.EndY,
		"speed":  swipeSpeed(s),
	})
	return err
}

// swipeSpeed converts the configured gesture duration into the pixels per
// second dragGesture expects.
func swipeSpeed(s device.SwipeConfig) int {
	dx, dy := s.EndX-s.StartX, s.EndY-s.StartY
	if dx < 0 {
		dx = -dx
	}
	if dy < 0 {
		dy = -dy
	}
	dist := dx + dy
	if s.Duration <= 0 || dist == 0 {
		return 2500
	}
	return int(float64(dist) / s.Duration.Seconds())
}

// HideKeyboard implements device.Driver.
func (d *Driver) HideKeyboard(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := d.mobile("hideKeyboard", map[string]interface{}{})
	return err
}

// IsAppInstalled implements device.Driver.
func (d *Driver) IsAppInstalled(ctx context.Context, appID string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	res, err := d.mobile("isAppInstalled", map[string]interface{}{"appId": appID})
	if err != nil {
		return false, err
	}
	installed, ok := res.(bool)
	if !ok {
		return false, fmt.Errorf("unexpected isAppInstalled result %T", res)
	}
	return installed, nil
}

// ActivateApp implements device.Driver.
func (d *Driver) ActivateApp(ctx context.Context, appID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := d.mobile("activateApp", map[string]interface{}{"appId": appID})
	return err
}

// TerminateApp implements device.Driver.
func (d *Driver) TerminateApp(ctx context.Context, appID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := d.mobile("terminateApp", map[string]interface{}{"appId": appID})
	return err
}

// CurrentActivity returns the Android activity in the foreground.
func (d *Driver) CurrentActivity(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	res, err := d.mobile("getCurrentActivity", map[string]interface{}{})
	if err != nil {
		return "", err
	}
	activity, _ := res.(string)
	return activity, nil
}

// Screenshot implements device.Driver.
func (d *Driver) Screenshot(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return d.wd.Screenshot()
}

// Quit implements device.Driver.
func (d *Driver) Quit() error {
	return d.wd.Quit()
}

func (d *Driver) mobile(command string, args map[string]interface{}) (interface{}, error) {
	res, err := d.wd.ExecuteScript("mobile: "+command, []interface{}{args})
	if err != nil {
		return nil, fmt.Errorf("mobile: %s: %w", command, err)
	}
	return res, nil
}

type node struct {
	el element
}

func (n *node) Attribute(ctx context.Context, name string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return n.el.GetAttribute(name)
}

func (n *node) Text(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return n.el.Text()
}

func (n *node) Click(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return n.el.Click()
}

func (n *node) SendKeys(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return n.el.SendKeys(text)
}

func mapError(loc device.Locator, err error) error {
	if isNoSuchElement(err) {
		return fmt.Errorf("%s: %w", loc, device.ErrNotFound)
	}
	return fmt.Errorf("find %s: %w", loc, err)
}

func isNoSuchElement(err error) bool {
	var se *selenium.Error
	if errors.As(err, &se) && se.Err == "no such element" {
		return true
	}
	return strings.Contains(err.Error(), "no such element")
}
