// Package config loads application configuration.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds all configuration for ekaya-analyst.
// Configuration can come from YAML file (config.yaml) or environment variables.
// Environment variables always override YAML values for fields that support both.
// Secrets (client secrets, API keys, passwords) must only come from environment
// variables.
type Config struct {
	// Timezone for date interpretation and query execution.
	Timezone string `yaml:"timezone" env:"ANALYST_TIMEZONE" env-default:"America/Los_Angeles"`

	// Path to the explore schema definition.
	SchemaPath string `yaml:"schema_path" env:"ANALYST_SCHEMA_PATH" env-default:"config/explore_schema.json"`

	// Path to the query recipe catalog (optional; empty disables recipes).
	RecipesPath string `yaml:"recipes_path" env:"ANALYST_RECIPES_PATH" env-default:"config/recipes.json"`

	// Path to the business synonym dictionary (optional).
	DictionaryPath string `yaml:"dictionary_path" env:"ANALYST_DICTIONARY_PATH" env-default:"config/dictionary.yaml"`

	// DefaultRowLimit applies when a query names no limit.
	DefaultRowLimit int `yaml:"default_row_limit" env:"ANALYST_DEFAULT_ROW_LIMIT" env-default:"10"`

	Looker   LookerConfig   `yaml:"looker"`
	LLM      LLMConfig      `yaml:"llm"`
	Database DatabaseConfig `yaml:"database"`

	// Version is set at load time, not from config.
	Version string `yaml:"-"`
}

// LookerConfig holds Looker API connection settings.
type LookerConfig struct {
	BaseURL      string `yaml:"base_url" env:"LOOKER_BASE_URL"`
	ClientID     string `yaml:"client_id" env:"LOOKER_CLIENT_ID"`
	ClientSecret string `yaml:"-" env:"LOOKER_CLIENT_SECRET"` // Secret - not in YAML
	DefaultLimit int    `yaml:"default_limit" env:"LOOKER_DEFAULT_LIMIT" env-default:"500"`
}

// LLMConfig holds text-generation capability settings.
type LLMConfig struct {
	// Provider selects the client: "openai" (any OpenAI-compatible
	// endpoint) or "anthropic".
	Provider string `yaml:"provider" env:"LLM_PROVIDER" env-default:"openai"`
	Endpoint string `yaml:"endpoint" env:"LLM_ENDPOINT" env-default:"https://api.openai.com/v1"`
	Model    string `yaml:"model" env:"LLM_MODEL" env-default:"gpt-4o"`
	APIKey   string `yaml:"-" env:"LLM_API_KEY"` // Secret - not in YAML
}

// DatabaseConfig holds optional Postgres settings for durable conversation
// history. Leave URL empty to keep history in-process only.
type DatabaseConfig struct {
	URL             string        `yaml:"-" env:"DATABASE_URL"` // Carries credentials - not in YAML
	MaxConnections  int32         `yaml:"max_connections" env:"PGMAX_CONNECTIONS" env-default:"10"`
	MigrationsPath  string        `yaml:"migrations_path" env:"PGMIGRATIONS_PATH" env-default:"migrations"`
	MaxConnLifetime time.Duration `yaml:"max_conn_lifetime" env:"PGMAX_CONN_LIFETIME" env-default:"1h"`
}

// Enabled reports whether durable history is configured.
func (c *DatabaseConfig) Enabled() bool {
	return c.URL != ""
}

// Load reads configuration from the given YAML file with environment
// variable overrides. A missing file is fine; the environment alone can
// carry a full configuration.
func Load(path, version string) (*Config, error) {
	cfg := &Config{Version: version}

	if _, err := os.Stat(path); err == nil {
		if err := cleanenv.ReadConfig(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
	} else {
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, fmt.Errorf("failed to read environment: %w", err)
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Looker.BaseURL == "" {
		return fmt.Errorf("looker base_url is required (LOOKER_BASE_URL)")
	}
	if c.Looker.ClientID == "" || c.Looker.ClientSecret == "" {
		return fmt.Errorf("looker credentials are required (LOOKER_CLIENT_ID, LOOKER_CLIENT_SECRET)")
	}
	if c.LLM.Model == "" {
		return fmt.Errorf("llm model is required (LLM_MODEL)")
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}
	return nil
}

// Location resolves the configured timezone. Load has already validated it.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
