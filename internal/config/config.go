package config

import (
	"fmt"
	"strings"

	"github.com/kelseyhightower/envconfig"
)

// Config holds process settings read from the environment.
type Config struct {
	Environment string `envconfig:"ENVIRONMENT" default:"local"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	// DatabaseURL is optional. Without it editions are only written to disk.
	DatabaseURL string `envconfig:"DATABASE_URL"`
	DBMinConns  int32  `envconfig:"NP_DB_MIN_CONNS" default:"1"`
	DBMaxConns  int32  `envconfig:"NP_DB_MAX_CONNS" default:"8"`

	EditionConfigPath string `envconfig:"NEWSPAPER_CONFIG" default:"daily_paper.yaml"`

	LLMProvider   string `envconfig:"LLM_PROVIDER" default:"openai"`
	OpenAIAPIKey  string `envconfig:"OPENAI_API_KEY"`
	OpenAIBaseURL string `envconfig:"OPENAI_BASE_URL" default:"https://api.openai.com/v1"`
	GeminiAPIKey  string `envconfig:"GEMINI_API_KEY"`

	FetchConcurrency int     `envconfig:"FETCH_CONCURRENCY" default:"8"`
	FetchRPS         float64 `envconfig:"FETCH_RPS" default:"4"`
	HTTPUserAgent    string  `envconfig:"HTTP_USER_AGENT" default:"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.DBMinConns < 0 {
		return fmt.Errorf("NP_DB_MIN_CONNS must be >= 0")
	}
	if c.DBMaxConns < 1 {
		return fmt.Errorf("NP_DB_MAX_CONNS must be >= 1")
	}
	if c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("NP_DB_MIN_CONNS (%d) cannot exceed NP_DB_MAX_CONNS (%d)", c.DBMinConns, c.DBMaxConns)
	}
	switch c.Provider() {
	case "openai", "gemini", "none":
	default:
		return fmt.Errorf("LLM_PROVIDER must be openai, gemini or none (got %q)", c.LLMProvider)
	}
	if c.FetchConcurrency < 1 {
		return fmt.Errorf("FETCH_CONCURRENCY must be >= 1")
	}
	if c.FetchRPS < 0 {
		return fmt.Errorf("FETCH_RPS must be >= 0")
	}
	return nil
}

// Provider is the normalized LLM_PROVIDER value.
func (c *Config) Provider() string {
	if c == nil {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(c.LLMProvider))
}

func (c *Config) HasDatabase() bool {
	return c != nil && strings.TrimSpace(c.DatabaseURL) != ""
}
