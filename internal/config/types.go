package config

import "time"

// StoreDriver selects the pitches collection backend.
type StoreDriver string

const (
	StoreDynamo   StoreDriver = "dynamo"
	StoreSupabase StoreDriver = "supabase"
	StoreMemory   StoreDriver = "memory"
)

// GeneratorProvider selects the model backend.
type GeneratorProvider string

const (
	GeneratorGemini     GeneratorProvider = "gemini"
	GeneratorOpenAI     GeneratorProvider = "openai"
	GeneratorOpenRouter GeneratorProvider = "openrouter"
)

// Config is the top-level PitchCraft configuration, corresponding to
// pitchcraft.yml.
type Config struct {
	ParamPrefix string          `yaml:"param_prefix" koanf:"param_prefix"`
	Server      ServerConfig    `yaml:"server" koanf:"server"`
	Store       StoreConfig     `yaml:"store" koanf:"store"`
	Generator   GeneratorConfig `yaml:"generator" koanf:"generator"`
	Supabase    SupabaseConfig  `yaml:"supabase" koanf:"supabase"`
	Auth        AuthConfig      `yaml:"auth" koanf:"auth"`
	Redis       RedisConfig     `yaml:"redis" koanf:"redis"`
	Export      ExportConfig    `yaml:"export" koanf:"export"`
	Limits      LimitsConfig    `yaml:"limits" koanf:"limits"`
}

type ServerConfig struct {
	Addr            string        `yaml:"addr" koanf:"addr"`
	AllowedOrigins  []string      `yaml:"allowed_origins" koanf:"allowed_origins"`
	SecureCookie    bool          `yaml:"secure_cookie" koanf:"secure_cookie"`
	RequestTimeout  time.Duration `yaml:"request_timeout" koanf:"request_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" koanf:"shutdown_timeout"`
}

type StoreConfig struct {
	Driver StoreDriver `yaml:"driver" koanf:"driver"`
	Table  string      `yaml:"table" koanf:"table"`
}

// GeneratorConfig picks the model. APIKey bypasses the parameter store and is
// meant for local runs.
type GeneratorConfig struct {
	Provider    GeneratorProvider `yaml:"provider" koanf:"provider"`
	Model       string            `yaml:"model" koanf:"model"`
	BaseURL     string            `yaml:"base_url" koanf:"base_url"`
	APIKey      string            `yaml:"api_key" koanf:"api_key"`
	Temperature float64           `yaml:"temperature" koanf:"temperature"` // 0 keeps the provider default; openai only
}

// SupabaseConfig backs both the supabase store driver and sign-in.
type SupabaseConfig struct {
	URL string `yaml:"url" koanf:"url"`
	Key string `yaml:"key" koanf:"key"`
}

type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret" koanf:"jwt_secret"`
	Audience  string `yaml:"audience" koanf:"audience"`
}

// RedisConfig enables cross-process change notifications when URL is set.
type RedisConfig struct {
	URL string `yaml:"url" koanf:"url"`
}

type ExportConfig struct {
	Enabled    bool          `yaml:"enabled" koanf:"enabled"`
	ChromePath string        `yaml:"chrome_path" koanf:"chrome_path"`
	Timeout    time.Duration `yaml:"timeout" koanf:"timeout"`
	Minio      MinioConfig   `yaml:"minio" koanf:"minio"`
}

// MinioConfig enables presigned export links when Endpoint is set.
type MinioConfig struct {
	Endpoint  string        `yaml:"endpoint" koanf:"endpoint"`
	AccessKey string        `yaml:"access_key" koanf:"access_key"`
	SecretKey string        `yaml:"secret_key" koanf:"secret_key"`
	Bucket    string        `yaml:"bucket" koanf:"bucket"`
	Region    string        `yaml:"region" koanf:"region"`
	UseSSL    bool          `yaml:"use_ssl" koanf:"use_ssl"`
	LinkTTL   time.Duration `yaml:"link_ttl" koanf:"link_ttl"`
}

type LimitsConfig struct {
	MaxInput      int `yaml:"max_input" koanf:"max_input"`
	HistoryBudget int `yaml:"history_budget" koanf:"history_budget"`
}
