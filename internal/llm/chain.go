package llm

import (
	"os"

	"github.com/jmylchreest/homescout/internal/logger"
)

// DefaultFallbackOrder is used when no order is configured.
var DefaultFallbackOrder = []string{"openrouter", "anthropic", "openai", "gemini", "ollama"}

// ChainConfig selects and configures the providers of a fallback chain.
type ChainConfig struct {
	// Preferred goes first when set, e.g. from --provider.
	Preferred string `mapstructure:"provider"`
	// Model overrides the preferred provider's model.
	Model string `mapstructure:"model"`
	// APIKey overrides the preferred provider's key.
	APIKey string `mapstructure:"api_key"`

	Order     []string                  `mapstructure:"fallback_order"`
	Providers map[string]ProviderConfig `mapstructure:"providers"`
	Defaults  ProviderConfig            `mapstructure:"defaults"`
}

// BuildChain creates a fallback chain. Providers without an API key are
// skipped, except ollama which runs locally.
func BuildChain(cfg ChainConfig) *Fallback {
	order := cfg.Order
	if len(order) == 0 {
		order = DefaultFallbackOrder
	}
	if cfg.Preferred != "" {
		reordered := []string{cfg.Preferred}
		for _, name := range order {
			if name != cfg.Preferred {
				reordered = append(reordered, name)
			}
		}
		order = reordered
	}

	var providers []Provider
	added := make(map[string]bool)
	for _, name := range order {
		if added[name] {
			continue
		}
		pc := providerConfig(cfg, name)
		if pc.APIKey == "" && name != "ollama" {
			logger.Debug("skipping provider without API key", "provider", name, "env", APIKeyEnv(name))
			continue
		}

		p, err := NewProvider(name, pc)
		if err != nil {
			logger.Debug("failed to create provider", "provider", name, "error", err)
			continue
		}
		added[name] = true
		providers = append(providers, p)
		logger.Debug("added provider to chain", "provider", name, "model", p.Model())
	}
	return NewFallback(providers...)
}

// providerConfig layers the per-provider section, the environment key and
// the preferred provider's overrides on top of the shared settings.
func providerConfig(cfg ChainConfig, name string) ProviderConfig {
	pc := DefaultProviderConfig()
	if cfg.Defaults.MaxRetries > 0 {
		pc.MaxRetries = cfg.Defaults.MaxRetries
	}
	if cfg.Defaults.Timeout > 0 {
		pc.Timeout = cfg.Defaults.Timeout
	}
	if own, ok := cfg.Providers[name]; ok {
		if own.APIKey != "" {
			pc.APIKey = own.APIKey
		}
		if own.BaseURL != "" {
			pc.BaseURL = own.BaseURL
		}
		if own.Model != "" {
			pc.Model = own.Model
		}
		if own.MaxRetries > 0 {
			pc.MaxRetries = own.MaxRetries
		}
		if own.Timeout > 0 {
			pc.Timeout = own.Timeout
		}
	}
	if pc.APIKey == "" {
		if env := APIKeyEnv(name); env != "" {
			pc.APIKey = os.Getenv(env)
		}
	}
	if name == cfg.Preferred {
		if cfg.Model != "" {
			pc.Model = cfg.Model
		}
		if cfg.APIKey != "" {
			pc.APIKey = cfg.APIKey
		}
	}
	return pc
}
