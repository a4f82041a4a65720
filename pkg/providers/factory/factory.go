// Package factory constructs the configured LLMProvider.
package factory

import (
	"fmt"

	"github.com/vaultpilot/vaultpilot/pkg/auth"
	"github.com/vaultpilot/vaultpilot/pkg/config"
	"github.com/vaultpilot/vaultpilot/pkg/providers"
	"github.com/vaultpilot/vaultpilot/pkg/providers/anthropic"
	"github.com/vaultpilot/vaultpilot/pkg/providers/openai_compat"
)

const qwenPortalBaseURL = "https://portal.qwen.ai/v1"

// CreateProvider is the single entry point for constructing an LLMProvider
// from configuration.
func CreateProvider(cfg *config.Config) (providers.LLMProvider, error) {
	switch cfg.Provider.Kind {
	case "anthropic":
		return anthropic.NewProviderWithBaseURL(cfg.Provider.APIKey, cfg.Provider.BaseURL), nil
	case "qwen":
		baseURL := cfg.Provider.BaseURL
		if baseURL == "" {
			baseURL = qwenPortalBaseURL
		}
		return openai_compat.NewProvider("", baseURL,
			openai_compat.WithTokenSource(auth.TokenSource("qwen"))), nil
	case "openai", "":
		baseURL := cfg.Provider.BaseURL
		if baseURL == "" {
			baseURL = "https://api.openai.com/v1"
		}
		return openai_compat.NewProvider(cfg.Provider.APIKey, baseURL), nil
	default:
		return nil, fmt.Errorf("unknown provider kind %q", cfg.Provider.Kind)
	}
}
