package llm

import (
	"context"
	"fmt"
)

// Provider names accepted by NewProvider.
const (
	ProviderGemini    = "gemini"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderMock      = "mock"
	ProviderDisabled  = "disabled"
)

// BackendConfig holds the credentials and model for one backend.
type BackendConfig struct {
	APIKey  string
	Model   string
	BaseURL string
}

// Config selects and configures a backend.
type Config struct {
	Provider  string
	Gemini    BackendConfig
	OpenAI    BackendConfig
	Anthropic BackendConfig
}

// NewProvider builds the configured backend. A backend without an API key
// yields DisabledProvider so AI requests degrade instead of failing startup.
func NewProvider(ctx context.Context, cfg Config) (Provider, error) {
	switch cfg.Provider {
	case ProviderGemini:
		if cfg.Gemini.APIKey == "" {
			return DisabledProvider{}, nil
		}
		return NewGeminiProvider(ctx, cfg.Gemini)
	case ProviderOpenAI:
		if cfg.OpenAI.APIKey == "" {
			return DisabledProvider{}, nil
		}
		return NewOpenAIProvider(cfg.OpenAI)
	case ProviderAnthropic:
		if cfg.Anthropic.APIKey == "" {
			return DisabledProvider{}, nil
		}
		return NewAnthropicProvider(cfg.Anthropic)
	case ProviderMock:
		return NewMockProvider(), nil
	case ProviderDisabled, "":
		return DisabledProvider{}, nil
	default:
		return nil, fmt.Errorf("unknown LLM provider: %q", cfg.Provider)
	}
}

func resolveModel(name string, models map[string]string) string {
	if id, ok := models[name]; ok {
		return id
	}
	return name
}
