package commands

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/jmylchreest/homescout/internal/agent"
	"github.com/jmylchreest/homescout/internal/device"
	_ "github.com/jmylchreest/homescout/internal/device/appium"
	_ "github.com/jmylchreest/homescout/internal/device/browser"
	"github.com/jmylchreest/homescout/internal/flow"
	"github.com/jmylchreest/homescout/internal/llm"
	"github.com/jmylchreest/homescout/internal/logger"
	"github.com/jmylchreest/homescout/internal/search"
	"github.com/jmylchreest/homescout/internal/store"
)

// loadFlow returns the configured flow, or the built-in one.
func loadFlow(path string) (*flow.Flow, error) {
	if path == "" {
		return flow.Default()
	}
	return flow.FromFile(path)
}

// openStore connects to the history database, or returns nil when none is
// configured.
func openStore(ctx context.Context) (*store.Store, error) {
	if cfg.Store.DSN == "" {
		return nil, nil
	}
	st, err := store.Open(cfg.Store.DSN)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, err
	}
	return st, nil
}

// newSearchService wires the device backend, the flow, the scraper and the
// optional history store. The returned cleanup must be called.
func newSearchService(ctx context.Context) (*search.Service, func(), error) {
	f, err := loadFlow(cfg.Flow.File)
	if err != nil {
		return nil, nil, err
	}
	factory, err := device.NewFactory(cfg.Device)
	if err != nil {
		return nil, nil, err
	}

	opts := []search.Option{
		search.WithScreenshotDir(cfg.Device.ScreenshotDir),
		search.WithRunner(flow.Runner{Timeout: cfg.Device.WaitTimeout, Poll: cfg.Device.PollInterval}),
	}

	cleanup := func() {}
	st, err := openStore(ctx)
	if err != nil {
		return nil, nil, err
	}
	if st != nil {
		opts = append(opts, search.WithRecorder(st))
		cleanup = func() { _ = st.Close() }
	}

	svc, err := search.New(factory, f, cfg.Scrape, opts...)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	logger.Debug("search service ready", "backend", factory.Name(), "flow", f.Name, "app", f.App, "history", st != nil)
	return svc, cleanup, nil
}

// newOrchestrator builds the LLM chain and the agent around searcher.
func newOrchestrator(searcher agent.Searcher) (*agent.Orchestrator, error) {
	chain := llm.BuildChain(cfg.LLM)
	if chain.Len() == 0 {
		return nil, fmt.Errorf("%w: set an API key (e.g. OPENAI_API_KEY) or run Ollama locally", llm.ErrNoProviderAvailable)
	}
	logger.Debug("llm chain built", "chain", chain.Name())
	return agent.New(chain, cfg.Agent, agent.NewFetchListingsTool(searcher)), nil
}

// parseQuery reads "<location> <min_price> <max_price> <max_listings>".
// Prices accept thousands separators such as 250_000 or 250,000.
func parseQuery(args []string) (search.Query, error) {
	nums := make([]int, 3)
	for i, name := range []string{"min_price", "max_price", "max_listings"} {
		raw := strings.NewReplacer(",", "", "_", "", " ", "").Replace(args[i+1])
		n, err := strconv.Atoi(raw)
		if err != nil {
			return search.Query{}, fmt.Errorf("%s: %q is not a number", name, args[i+1])
		}
		nums[i] = n
	}
	q := search.Query{Location: args[0], MinPrice: nums[0], MaxPrice: nums[1], MaxListings: nums[2]}
	return q, q.Validate()
}
