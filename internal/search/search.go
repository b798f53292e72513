// Package search runs one complete listing search on a device: relaunch the
// application, drive the search flow, then scrape the results list.
package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/jmylchreest/homescout/internal/device"
	"github.com/jmylchreest/homescout/internal/flow"
	"github.com/jmylchreest/homescout/internal/listing"
	"github.com/jmylchreest/homescout/internal/logger"
)

// Query is a search request.
type Query struct {
	Location    string `json:"location" yaml:"location" validate:"required"`
	MinPrice    int    `json:"min_price" yaml:"min_price" validate:"gte=0"`
	MaxPrice    int    `json:"max_price" yaml:"max_price" validate:"gte=0,gtefield=MinPrice"`
	MaxListings int    `json:"max_listings" yaml:"max_listings" validate:"min=1,max=50"`
}

// Result is the outcome of a search. Listings holds whatever was collected,
// even when Error is set.
type Result struct {
	Location  string           `json:"location" yaml:"location"`
	MinPrice  int              `json:"min_price" yaml:"min_price"`
	MaxPrice  int              `json:"max_price" yaml:"max_price"`
	Requested int              `json:"requested" yaml:"requested"`
	Listings  []listing.Record `json:"listings" yaml:"listings"`
	Scraped   int              `json:"scraped" yaml:"scraped"`
	Error     string           `json:"error,omitempty" yaml:"error,omitempty"`

	StartedAt  time.Time `json:"started_at" yaml:"started_at"`
	FinishedAt time.Time `json:"finished_at" yaml:"finished_at"`
}

// Duration returns how long the search ran.
func (r Result) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// Recorder persists finished searches.
type Recorder interface {
	Record(ctx context.Context, q Query, r Result) error
}

// Service runs searches. Calls are serialised: there is a single device.
type Service struct {
	factory        device.Factory
	flow           *flow.Flow
	scraper        *listing.Scraper
	runner         flow.Runner
	terminatePause time.Duration
	screenshotDir  string
	recorder       Recorder

	mu sync.Mutex
}

// Option configures a Service.
type Option func(*Service)

// WithRecorder stores every finished search.
func WithRecorder(r Recorder) Option {
	return func(s *Service) { s.recorder = r }
}

// WithScreenshotDir saves a screenshot there when a search cannot reach the
// results list.
func WithScreenshotDir(dir string) Option {
	return func(s *Service) { s.screenshotDir = dir }
}

// WithRunner overrides the flow step timeouts.
func WithRunner(r flow.Runner) Option {
	return func(s *Service) { s.runner = r }
}

// WithTerminatePause sets the pause between stopping and relaunching the
// application.
func WithTerminatePause(d time.Duration) Option {
	return func(s *Service) { s.terminatePause = d }
}

// New creates a Service.
func New(factory device.Factory, f *flow.Flow, cfg listing.Config, opts ...Option) (*Service, error) {
	if factory == nil {
		return nil, errors.New("device factory is required")
	}
	if f == nil {
		return nil, errors.New("search flow is required")
	}
	scraper, err := listing.NewScraper(f.Listing, cfg)
	if err != nil {
		return nil, err
	}
	s := &Service{
		factory:        factory,
		flow:           f,
		scraper:        scraper,
		runner:         flow.Runner{Timeout: cfg.ListTimeout, Poll: cfg.PollInterval},
		terminatePause: 2 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

var validate = validator.New()

// Validate checks the query bounds.
func (q Query) Validate() error {
	if err := validate.Struct(q); err != nil {
		return fmt.Errorf("invalid query: %w", err)
	}
	return nil
}

// FetchListings runs one search. Failures are reported in Result.Error; the
// device session is closed on every path.
func (s *Service) FetchListings(ctx context.Context, q Query) Result {
	res := Result{
		Location:  q.Location,
		MinPrice:  q.MinPrice,
		MaxPrice:  q.MaxPrice,
		Requested: q.MaxListings,
		Listings:  []listing.Record{},
		StartedAt: time.Now(),
	}
	log := logger.With("component", "search", "location", q.Location, "requested", q.MaxListings)

	records, err := s.fetch(ctx, q, log)
	if len(records) > 0 {
		res.Listings = records
	}
	res.Scraped = len(res.Listings)
	res.FinishedAt = time.Now()

	if err != nil {
		res.Error = err.Error()
		log.Error("search failed", "error", err, "scraped", res.Scraped)
	} else {
		log.Info("search complete", "scraped", res.Scraped, "duration", res.Duration())
	}

	if s.recorder != nil {
		if err := s.recorder.Record(context.WithoutCancel(ctx), q, res); err != nil {
			log.Warn("failed to record search", "error", err)
		}
	}
	return res
}

func (s *Service) fetch(ctx context.Context, q Query, log *slog.Logger) ([]listing.Record, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	d, err := s.factory.Open(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s session: %w", s.factory.Name(), err)
	}
	defer func() {
		if err := d.Quit(); err != nil {
			log.Warn("failed to close device session", "error", err)
		}
	}()

	if err := s.launch(ctx, d, log); err != nil {
		if listing.IsSetupFailure(err) {
			s.captureFailure(ctx, d, log)
		}
		return nil, err
	}

	params := flow.Params{Location: q.Location, MinPrice: q.MinPrice, MaxPrice: q.MaxPrice}
	if err := s.runner.Run(ctx, d, s.flow, params); err != nil {
		if listing.IsSetupFailure(err) {
			s.captureFailure(ctx, d, log)
		}
		return nil, err
	}

	records, err := s.scraper.Scrape(ctx, d, q.MaxListings)
	if listing.IsSetupFailure(err) {
		s.captureFailure(ctx, d, log)
	}
	return records, err
}

// launch starts a fresh instance of the application.
func (s *Service) launch(ctx context.Context, d device.Driver, log *slog.Logger) error {
	app := s.flow.App

	installed, err := d.IsAppInstalled(ctx, app)
	if err != nil {
		return &listing.SetupError{Stage: "install check", Err: err}
	}
	if !installed {
		return &listing.SetupError{Stage: "install check", Err: fmt.Errorf("%s: %w", app, device.ErrNotInstalled)}
	}

	if err := d.TerminateApp(ctx, app); err != nil {
		log.Debug("terminate before launch failed", "app", app, "error", err)
	}
	if err := device.Pause(ctx, s.terminatePause); err != nil {
		return err
	}

	log.Info("launching application", "app", app)
	if err := d.ActivateApp(ctx, app); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &listing.SetupError{Stage: "launch", Err: err}
	}
	return device.Pause(ctx, s.flow.LaunchPause)
}

// activityReporter is implemented by drivers that know the foreground
// activity.
type activityReporter interface {
	CurrentActivity(ctx context.Context) (string, error)
}

// captureFailure logs what the device is showing after a setup failure.
func (s *Service) captureFailure(ctx context.Context, d device.Driver, log *slog.Logger) {
	ctx = context.WithoutCancel(ctx)

	if ar, ok := d.(activityReporter); ok {
		if activity, err := ar.CurrentActivity(ctx); err == nil {
			log.Error("setup failed", "activity", activity)
		}
	}

	if s.screenshotDir == "" {
		return
	}
	png, err := d.Screenshot(ctx)
	if err != nil {
		log.Warn("failed to capture screenshot", "error", err)
		return
	}
	if err := os.MkdirAll(s.screenshotDir, 0o755); err != nil {
		log.Warn("failed to create screenshot dir", "error", err)
		return
	}
	path := filepath.Join(s.screenshotDir, fmt.Sprintf("homescout-error-%d.png", time.Now().UnixNano()))
	if err := os.WriteFile(path, png, 0o644); err != nil {
		log.Warn("failed to save screenshot", "error", err)
		return
	}
	log.Info("error screenshot saved", "path", path)
}
