package browser

import (
	"os/exec"

	"github.com/chromedp/chromedp"
	cdpdevice "github.com/chromedp/chromedp/device"

	"github.com/jmylchreest/homescout/internal/logger"
)

// Chrome/Chromium binary names and install locations, tried in order.
var chromeBinaryNames = []string{
	"google-chrome-stable",
	"google-chrome",
	"chromium",
	"chromium-browser",
	"chrome",
	"/Applications/Google Chrome.app/Contents/MacOS/Google Chrome",
	"/Applications/Chromium.app/Contents/MacOS/Chromium",
	"/usr/bin/chromium",
	"/snap/bin/chromium",
}

// findChromePath returns the first Chrome binary found, or "" to let chromedp
// use its own lookup.
func findChromePath() string {
	for _, name := range chromeBinaryNames {
		if path, err := exec.LookPath(name); err == nil {
			logger.Debug("found Chrome binary", "path", path)
			return path
		}
	}
	logger.Warn("no Chrome binary found - browser backend may not start")
	return ""
}

// emulatedDevices are the phones the browser backend can pretend to be.
var emulatedDevices = map[string]chromedp.Device{
	"iphone-x": cdpdevice.IPhoneX,
	"pixel-2":  cdpdevice.Pixel2,
	"pixel-5":  cdpdevice.Pixel5,
	"ipad":     cdpdevice.IPad,
}

// lookupDevice resolves an emulation name. An empty name disables emulation.
func lookupDevice(name string) (chromedp.Device, bool) {
	if name == "" {
		return nil, true
	}
	d, ok := emulatedDevices[name]
	return d, ok
}

func allocatorOptions(headless bool) []chromedp.ExecAllocatorOption {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
	)
	if path := findChromePath(); path != "" {
		opts = append(opts, chromedp.ExecPath(path))
	}
	return opts
}
