// Package config loads the translator configuration from YAML.
//
// DESIGN: One file, explicit sections per concern. String values support
// ${VAR} and ${VAR:-default} environment expansion so API keys never live in
// the file itself.
package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/llmwire/llmwire/internal/monitoring"
)

// Duration is a time.Duration that unmarshals from YAML strings like "30s".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", value.Value, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std converts to a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config is the root configuration.
type Config struct {
	Logger    monitoring.LoggerConfig `yaml:"logger"`
	Providers ProvidersConfig         `yaml:"providers"`
	Pricing   PricingConfig           `yaml:"pricing"`
	Feed      FeedConfig              `yaml:"feed"`
}

// ProvidersConfig holds per-vendor endpoint and credential settings.
type ProvidersConfig struct {
	OpenAI    ProviderConfig `yaml:"openai"`
	Anthropic ProviderConfig `yaml:"anthropic"`
	Gemini    ProviderConfig `yaml:"gemini"`
}

// ProviderConfig configures one vendor endpoint.
type ProviderConfig struct {
	Endpoint string   `yaml:"endpoint"`
	APIKey   string   `yaml:"api_key"`
	Timeout  Duration `yaml:"timeout"`
	// Bedrock enables SigV4 signing for Anthropic-on-Bedrock endpoints.
	Bedrock   bool   `yaml:"bedrock"`
	AWSRegion string `yaml:"aws_region"`
}

// PricingConfig configures the price-table cache.
type PricingConfig struct {
	CachePath string   `yaml:"cache_path"` // sqlite file, empty disables caching
	TTL       Duration `yaml:"ttl"`
}

// FeedConfig configures the debug translation-event feed.
type FeedConfig struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"` // e.g. 127.0.0.1:7788
}

// envPattern matches ${VAR} or ${VAR:-default}.
var envPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// expandEnv expands environment variables, honoring ${VAR:-default} syntax.
func expandEnv(s string) string {
	return envPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := envPattern.FindStringSubmatch(match)
		if v, ok := os.LookupEnv(parts[1]); ok {
			return v
		}
		return parts[2]
	})
}

// Load reads and parses a config file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal([]byte(expandEnv(string(data))), &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.applyDefaults()
	return &cfg, nil
}

// Default returns a usable configuration without a file.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.Logger.Level == "" {
		c.Logger.Level = "info"
	}
	if c.Logger.Format == "" {
		c.Logger.Format = "json"
	}
	if c.Pricing.TTL == 0 {
		c.Pricing.TTL = Duration(24 * time.Hour)
	}
	if c.Providers.OpenAI.Endpoint == "" {
		c.Providers.OpenAI.Endpoint = "https://api.openai.com/v1/chat/completions"
	}
	if c.Providers.Anthropic.Endpoint == "" {
		c.Providers.Anthropic.Endpoint = "https://api.anthropic.com/v1/messages"
	}
	if c.Providers.Gemini.Endpoint == "" {
		c.Providers.Gemini.Endpoint = "https://generativelanguage.googleapis.com/v1beta/models/gemini-2.0-flash:generateContent"
	}
}
