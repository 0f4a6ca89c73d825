// Package config loads PitchCraft settings: defaults, then an optional YAML
// file, then PITCHCRAFT_* environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	yamlv3 "gopkg.in/yaml.v3"
)

// EnvPrefix namespaces environment overrides. A double underscore separates
// nesting levels: PITCHCRAFT_STORE__DRIVER sets store.driver.
const EnvPrefix = "PITCHCRAFT_"

// DefaultConfig returns a Config that runs locally with no external services
// besides the generator.
func DefaultConfig() *Config {
	return &Config{
		ParamPrefix: "/pitchcraft",
		Server: ServerConfig{
			Addr:            ":8080",
			AllowedOrigins:  []string{"*"},
			RequestTimeout:  2 * time.Minute,
			ShutdownTimeout: 10 * time.Second,
		},
		Store: StoreConfig{
			Driver: StoreMemory,
			Table:  "pitches",
		},
		Generator: GeneratorConfig{
			Provider: GeneratorGemini,
		},
		Export: ExportConfig{
			Enabled: true,
			Timeout: 30 * time.Second,
			Minio: MinioConfig{
				Region:  "us-east-1",
				LinkTTL: 24 * time.Hour,
			},
		},
		Limits: LimitsConfig{
			MaxInput:      2000,
			HistoryBudget: 12000,
		},
	}
}

// Load reads configuration from path when it is non-empty and exists, then
// overlays environment variables.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	cfg := DefaultConfig()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("reading config %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("accessing config %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("loading env overrides: %w", err)
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}
	return cfg, nil
}

// Save writes the configuration to path as YAML.
func (c *Config) Save(path string) error {
	data, err := yamlv3.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshalling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.ReplaceAll(s, "__", ".")
}

var validDrivers = map[StoreDriver]bool{
	StoreDynamo:   true,
	StoreSupabase: true,
	StoreMemory:   true,
}

var validProviders = map[GeneratorProvider]bool{
	GeneratorGemini:     true,
	GeneratorOpenAI:     true,
	GeneratorOpenRouter: true,
}

// Validate checks enumerations and the fields each driver needs.
func (c *Config) Validate() error {
	if !validDrivers[c.Store.Driver] {
		return fmt.Errorf("invalid store.driver %q: must be one of dynamo, supabase, memory", c.Store.Driver)
	}
	if c.Store.Driver != StoreMemory && strings.TrimSpace(c.Store.Table) == "" {
		return errors.New("store.table is required")
	}
	if c.Store.Driver == StoreSupabase && !c.Supabase.Configured() {
		return errors.New("supabase.url and supabase.key are required for the supabase store")
	}

	if !validProviders[c.Generator.Provider] {
		return fmt.Errorf("invalid generator.provider %q: must be one of gemini, openai, openrouter", c.Generator.Provider)
	}
	if c.Generator.APIKey == "" && strings.Trim(c.ParamPrefix, "/ ") == "" {
		return errors.New("param_prefix is required unless generator.api_key is set")
	}

	if c.Limits.MaxInput <= 0 {
		return errors.New("limits.max_input must be positive")
	}
	if c.Limits.HistoryBudget <= 0 {
		return errors.New("limits.history_budget must be positive")
	}

	if m := c.Export.Minio; m.Endpoint != "" && m.Bucket == "" {
		return errors.New("export.minio.bucket is required when export.minio.endpoint is set")
	}
	if c.Server.RequestTimeout < 0 || c.Server.ShutdownTimeout < 0 || c.Export.Timeout < 0 {
		return errors.New("timeouts must be non-negative")
	}
	return nil
}

// Configured reports whether a Supabase project is set.
func (s SupabaseConfig) Configured() bool {
	return s.URL != "" && s.Key != ""
}
