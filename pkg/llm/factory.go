package llm

import (
	"fmt"

	"go.uber.org/zap"
)

// Supported provider names.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

// NewFromProvider creates an LLM client for the named provider.
// "openai" covers any OpenAI-compatible endpoint, including local servers.
func NewFromProvider(provider string, cfg *Config, logger *zap.Logger) (LLMClient, error) {
	switch provider {
	case ProviderOpenAI, "":
		client, err := NewClient(cfg, logger)
		if err != nil {
			return nil, fmt.Errorf("create openai client: %w", err)
		}
		return client, nil
	case ProviderAnthropic:
		client, err := NewAnthropicClient(cfg, logger)
		if err != nil {
			return nil, fmt.Errorf("create anthropic client: %w", err)
		}
		return client, nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", provider)
	}
}
