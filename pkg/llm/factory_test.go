package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewFromProvider(t *testing.T) {
	logger := zap.NewNop()

	t.Run("openai", func(t *testing.T) {
		client, err := NewFromProvider(ProviderOpenAI, &Config{
			Endpoint: "http://localhost:8000/v1",
			Model:    "qwen3",
		}, logger)
		require.NoError(t, err)
		assert.IsType(t, &Client{}, client)
		assert.Equal(t, "qwen3", client.GetModel())
	})

	t.Run("empty provider defaults to openai", func(t *testing.T) {
		client, err := NewFromProvider("", &Config{
			Endpoint: "http://localhost:8000/v1",
			Model:    "qwen3",
		}, logger)
		require.NoError(t, err)
		assert.IsType(t, &Client{}, client)
	})

	t.Run("anthropic", func(t *testing.T) {
		client, err := NewFromProvider(ProviderAnthropic, &Config{
			Model:  "claude-sonnet-4-5",
			APIKey: "test-key",
		}, logger)
		require.NoError(t, err)
		assert.IsType(t, &AnthropicClient{}, client)
	})

	t.Run("anthropic requires key", func(t *testing.T) {
		_, err := NewFromProvider(ProviderAnthropic, &Config{Model: "claude-sonnet-4-5"}, logger)
		assert.Error(t, err)
	})

	t.Run("unknown provider", func(t *testing.T) {
		_, err := NewFromProvider("bedrock", &Config{}, logger)
		assert.Error(t, err)
	})

	t.Run("openai requires endpoint and model", func(t *testing.T) {
		_, err := NewFromProvider(ProviderOpenAI, &Config{Model: "m"}, logger)
		assert.Error(t, err)

		_, err = NewFromProvider(ProviderOpenAI, &Config{Endpoint: "http://x"}, logger)
		assert.Error(t, err)
	})
}
