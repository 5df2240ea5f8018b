package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	t.Setenv("LOOKER_CLIENT_SECRET", "s3cret")
	t.Setenv("LLM_API_KEY", "key")

	path := writeConfig(t, `
timezone: America/New_York
looker:
  base_url: https://looker.example.com
  client_id: abc
llm:
  provider: openai
  endpoint: http://localhost:8000/v1
  model: qwen3
`)

	cfg, err := Load(path, "1.2.3")
	require.NoError(t, err)

	assert.Equal(t, "America/New_York", cfg.Timezone)
	assert.Equal(t, "https://looker.example.com", cfg.Looker.BaseURL)
	assert.Equal(t, "s3cret", cfg.Looker.ClientSecret)
	assert.Equal(t, "qwen3", cfg.LLM.Model)
	assert.Equal(t, "key", cfg.LLM.APIKey)
	assert.Equal(t, "1.2.3", cfg.Version)
	assert.Equal(t, 10, cfg.DefaultRowLimit)
	assert.False(t, cfg.Database.Enabled())
	assert.Equal(t, "America/New_York", cfg.Location().String())
}

func TestLoad_EnvOverridesYAML(t *testing.T) {
	t.Setenv("LOOKER_CLIENT_SECRET", "s")
	t.Setenv("LOOKER_BASE_URL", "https://override.example.com")

	path := writeConfig(t, `
looker:
  base_url: https://yaml.example.com
  client_id: abc
llm:
  model: gpt-4o
`)

	cfg, err := Load(path, "dev")
	require.NoError(t, err)
	assert.Equal(t, "https://override.example.com", cfg.Looker.BaseURL)
}

func TestLoad_MissingFileUsesEnv(t *testing.T) {
	t.Setenv("LOOKER_BASE_URL", "https://looker.example.com")
	t.Setenv("LOOKER_CLIENT_ID", "abc")
	t.Setenv("LOOKER_CLIENT_SECRET", "s")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"), "dev")
	require.NoError(t, err)
	assert.Equal(t, "abc", cfg.Looker.ClientID)
	assert.Equal(t, "gpt-4o", cfg.LLM.Model)
}

func TestLoad_Validation(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"missing base url", map[string]string{
			"LOOKER_CLIENT_ID": "abc", "LOOKER_CLIENT_SECRET": "s",
		}},
		{"missing credentials", map[string]string{
			"LOOKER_BASE_URL": "https://x",
		}},
		{"bad timezone", map[string]string{
			"LOOKER_BASE_URL": "https://x", "LOOKER_CLIENT_ID": "abc",
			"LOOKER_CLIENT_SECRET": "s", "ANALYST_TIMEZONE": "Not/AZone",
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"), "dev")
			assert.Error(t, err)
		})
	}
}
