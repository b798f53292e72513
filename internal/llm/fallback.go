package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jmylchreest/homescout/internal/logger"
)

// ErrNoProviderAvailable is returned when a fallback chain has no providers.
var ErrNoProviderAvailable = errors.New("no LLM provider available")

// Fallback tries each provider in order until one answers.
type Fallback struct {
	providers []Provider
}

// NewFallback creates a fallback chain. Nil providers are skipped.
func NewFallback(providers ...Provider) *Fallback {
	f := &Fallback{}
	for _, p := range providers {
		if p != nil {
			f.providers = append(f.providers, p)
		}
	}
	return f
}

// Chat tries each provider in order. Cancellation stops the chain.
func (f *Fallback) Chat(ctx context.Context, req ChatRequest) (ChatResponse, error) {
	if len(f.providers) == 0 {
		return ChatResponse{}, ErrNoProviderAvailable
	}

	var lastErr error
	var tried []string
	for _, p := range f.providers {
		tried = append(tried, p.Name())
		resp, err := p.Chat(ctx, req)
		if err == nil {
			return resp, nil
		}
		if ctx.Err() != nil {
			return ChatResponse{}, ctx.Err()
		}
		logger.Warn("provider failed, trying next", "provider", p.Name(), "error", err)
		lastErr = err
	}

	return ChatResponse{}, fmt.Errorf("all providers failed (tried: %s): %w", strings.Join(tried, ", "), lastErr)
}

// Name returns the fallback chain name.
func (f *Fallback) Name() string {
	names := make([]string, 0, len(f.providers))
	for _, p := range f.providers {
		names = append(names, p.Name())
	}
	return "fallback(" + strings.Join(names, "->") + ")"
}

// Model returns the first provider's model.
func (f *Fallback) Model() string {
	if len(f.providers) == 0 {
		return ""
	}
	return f.providers[0].Model()
}

// Len returns the number of providers in the chain.
func (f *Fallback) Len() int { return len(f.providers) }
