// Package config loads the typed configuration a host process needs to
// wire every component together: provider API keys, enabled providers,
// default MCP servers, the Redis checkpoint DSN, Temporal host/namespace,
// default parallelism, and the default budget. Precedence is env > YAML
// file > built-in default, mirroring the layered configuration the
// pack's host binaries use for local development: a `.env` file loaded
// with github.com/joho/godotenv, a YAML file parsed with
// gopkg.in/yaml.v3, and os.Getenv overrides applied last.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ProviderConfig holds one AI provider's credentials and defaults.
type ProviderConfig struct {
	APIKey       string `yaml:"apiKey"`
	DefaultModel string `yaml:"defaultModel"`
	BaseURL      string `yaml:"baseUrl,omitempty"`
}

// Config is the full set of tunables a host process needs (§6 CLI/Config
// surface, SPEC_FULL.md §6 [FULL]).
type Config struct {
	Providers        map[string]ProviderConfig `yaml:"providers"`
	EnabledProviders []string                  `yaml:"enabledProviders"`
	DefaultMCPs      []string                  `yaml:"defaultMcps"`

	RedisCheckpointDSN string `yaml:"redisCheckpointDsn,omitempty"`

	TemporalHostPort  string `yaml:"temporalHostPort,omitempty"`
	TemporalNamespace string `yaml:"temporalNamespace,omitempty"`

	DefaultParallelism int           `yaml:"defaultParallelism"`
	DefaultBudgetCost  float64       `yaml:"defaultBudgetCost"`
	DefaultBudgetTokens int          `yaml:"defaultBudgetTokens"`
	DefaultTimeout     time.Duration `yaml:"defaultTimeout"`

	// ProviderRateLimitTPM, when non-zero, wraps every configured provider
	// client in an adaptive tokens-per-minute limiter (provider.AdaptiveRateLimiter).
	ProviderRateLimitTPM float64 `yaml:"providerRateLimitTpm,omitempty"`
}

// Default returns the built-in defaults applied before file/env overrides.
func Default() Config {
	return Config{
		Providers:          map[string]ProviderConfig{},
		DefaultParallelism: 3,
		DefaultTimeout:     5 * time.Minute,
	}
}

// Load builds a Config from, in increasing precedence: built-in
// defaults, an optional YAML file at yamlPath, an optional .env file at
// envPath, and process environment variables. Missing files at either
// path are not an error — Load degrades to whatever layers exist.
func Load(yamlPath, envPath string) (Config, error) {
	cfg := Default()

	if yamlPath != "" {
		if data, err := os.ReadFile(yamlPath); err == nil {
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("config: parse yaml %s: %w", yamlPath, err)
			}
		} else if !os.IsNotExist(err) {
			return Config{}, fmt.Errorf("config: read yaml %s: %w", yamlPath, err)
		}
	}

	if envPath != "" {
		if err := godotenv.Load(envPath); err != nil && !os.IsNotExist(err) {
			return Config{}, fmt.Errorf("config: load env file %s: %w", envPath, err)
		}
	}

	applyEnvOverrides(&cfg)
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("EXECORE_REDIS_CHECKPOINT_DSN"); v != "" {
		cfg.RedisCheckpointDSN = v
	}
	if v := os.Getenv("EXECORE_TEMPORAL_HOST_PORT"); v != "" {
		cfg.TemporalHostPort = v
	}
	if v := os.Getenv("EXECORE_TEMPORAL_NAMESPACE"); v != "" {
		cfg.TemporalNamespace = v
	}
	if v := os.Getenv("EXECORE_DEFAULT_PARALLELISM"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.DefaultParallelism = n
		}
	}
	if v := os.Getenv("EXECORE_DEFAULT_BUDGET_COST"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.DefaultBudgetCost = f
		}
	}
	if v := os.Getenv("EXECORE_DEFAULT_BUDGET_TOKENS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.DefaultBudgetTokens = n
		}
	}
	if v := os.Getenv("EXECORE_PROVIDER_RATE_LIMIT_TPM"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.ProviderRateLimitTPM = f
		}
	}

	for name, pc := range cfg.Providers {
		if v := os.Getenv(envKeyName(name)); v != "" {
			pc.APIKey = v
			cfg.Providers[name] = pc
		}
	}
}

func envKeyName(provider string) string {
	switch provider {
	case "anthropic":
		return "ANTHROPIC_API_KEY"
	case "openai":
		return "OPENAI_API_KEY"
	case "bedrock":
		return "AWS_ACCESS_KEY_ID"
	default:
		return "EXECORE_" + provider + "_API_KEY"
	}
}
