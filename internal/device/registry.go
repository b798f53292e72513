package device

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

// Config holds backend-neutral session settings.
type Config struct {
	Backend       string        `mapstructure:"backend" validate:"required"`
	Endpoint      string        `mapstructure:"endpoint"`
	Platform      string        `mapstructure:"platform"`
	Automation    string        `mapstructure:"automation"`
	DeviceName    string        `mapstructure:"device_name"`
	StartURL      string        `mapstructure:"start_url"`
	Headless      bool          `mapstructure:"headless"`
	EmulateDevice string        `mapstructure:"emulate_device"`
	WaitTimeout   time.Duration `mapstructure:"wait_timeout"`
	PollInterval  time.Duration `mapstructure:"poll_interval"`
	ScreenshotDir string        `mapstructure:"screenshot_dir"`
	Swipe         SwipeConfig   `mapstructure:"swipe"`
}

// SwipeConfig describes the scroll gesture in screen coordinates.
type SwipeConfig struct {
	StartX   int           `mapstructure:"start_x"`
	StartY   int           `mapstructure:"start_y"`
	EndX     int           `mapstructure:"end_x"`
	EndY     int           `mapstructure:"end_y"`
	Duration time.Duration `mapstructure:"duration"`
}

// DefaultConfig returns the settings used against a remote Android device.
func DefaultConfig() Config {
	return Config{
		Backend:      "appium",
		Platform:     "Android",
		Automation:   "UiAutomator2",
		Headless:     true,
		WaitTimeout:  15 * time.Second,
		PollInterval: 500 * time.Millisecond,
		Swipe: SwipeConfig{
			StartX:   500,
			StartY:   1500,
			EndX:     500,
			EndY:     800,
			Duration: 500 * time.Millisecond,
		},
	}
}

// FactoryConstructor builds a Factory from configuration.
type FactoryConstructor func(cfg Config) (Factory, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]FactoryConstructor{}
)

// Register adds a backend constructor. Backends call it from init.
func Register(name string, ctor FactoryConstructor) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = ctor
}

// NewFactory creates a Factory for cfg.Backend.
func NewFactory(cfg Config) (Factory, error) {
	registryMu.RLock()
	ctor, ok := registry[cfg.Backend]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown device backend: %s (available: %v)", cfg.Backend, Backends())
	}
	return ctor(cfg)
}

// Backends returns the registered backend names, sorted.
func Backends() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
