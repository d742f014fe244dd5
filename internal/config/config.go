package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the loglens server.
type Config struct {
	Server   ServerConfig
	Stream   StreamConfig
	AI       AIConfig
	Redis    RedisConfig
	Database DatabaseConfig
	Loki     LokiConfig
}

type ServerConfig struct {
	Port int
	Env  string
}

// StreamConfig controls batching, the pattern cache and metrics retention.
type StreamConfig struct {
	BatchSize             int
	FlushInterval         time.Duration
	PatternCacheCapacity  int
	PatternReuseThreshold int
	ResponseTimeWindow    int
}

// RedisConfig is optional; an empty URL disables the inference reply cache
// and HTTP rate limiting.
type RedisConfig struct {
	URL               string
	InferenceTTL      time.Duration
	RequestsPerMinute int
}

// DatabaseConfig is optional; an empty URL disables the analysis sink.
type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// LokiConfig is optional; an empty BaseURL disables log polling.
type LokiConfig struct {
	BaseURL      string
	Username     string
	Password     string
	OrgID        string
	Service      string
	Namespace    string
	Levels       []string
	PollInterval time.Duration
	Timeout      time.Duration
}

type AIConfig struct {
	Provider             string
	InferenceTimeout     time.Duration
	MaxRequestsPerSecond float64
	Remediation          string
	Ollama               OllamaConfig
	VLLM                 VLLMConfig
	OpenAI               OpenAIConfig
	Anthropic            AnthropicConfig
}

type OllamaConfig struct {
	BaseURL string
	Model   string
}

type VLLMConfig struct {
	BaseURL string
	Model   string
}

type OpenAIConfig struct {
	BaseURL string
	APIKey  string
	Model   string
}

type AnthropicConfig struct {
	BaseURL   string
	APIKey    string
	Model     string
	MaxTokens int
}

// Model returns the model identifier of the selected provider.
func (c AIConfig) Model() string {
	switch c.Provider {
	case "ollama":
		return c.Ollama.Model
	case "vllm":
		return c.VLLM.Model
	case "openai":
		return c.OpenAI.Model
	case "anthropic":
		return c.Anthropic.Model
	default:
		return c.Provider
	}
}

var validProviders = map[string]bool{
	"ollama":    true,
	"vllm":      true,
	"openai":    true,
	"anthropic": true,
	"mock":      true,
}

var validRemediation = map[string]bool{
	"rules":     true,
	"inference": true,
}

// Load reads configuration from environment variables and returns a validated Config.
// Returns an error with a descriptive message if any required value is missing or invalid.
func Load() (*Config, error) {
	cfg := FromEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromEnv reads configuration from environment variables without validating
// it, so callers can apply overrides before calling Validate.
func FromEnv() *Config {
	return &Config{
		Server: ServerConfig{
			Port: envInt("LOGLENS_PORT", 8080),
			Env:  envString("LOGLENS_ENV", "development"),
		},
		Stream: StreamConfig{
			BatchSize:             envInt("STREAM_BATCH_SIZE", 100),
			FlushInterval:         envDuration("STREAM_FLUSH_INTERVAL", 5*time.Second),
			PatternCacheCapacity:  envInt("STREAM_PATTERN_CACHE_CAPACITY", 1000),
			PatternReuseThreshold: envInt("STREAM_PATTERN_REUSE_THRESHOLD", 0),
			ResponseTimeWindow:    envInt("METRICS_RESPONSE_WINDOW", 1000),
		},
		AI: AIConfig{
			Provider:             os.Getenv("AI_PROVIDER"),
			InferenceTimeout:     envDurationSecs("AI_INFERENCE_TIMEOUT_SECS", 60*time.Second),
			MaxRequestsPerSecond: envFloat("AI_MAX_REQUESTS_PER_SEC", 0),
			Remediation:          envString("AI_REMEDIATION", "rules"),
			Ollama: OllamaConfig{
				BaseURL: envString("OLLAMA_BASE_URL", "http://localhost:11434"),
				Model:   envString("OLLAMA_MODEL", "llama3"),
			},
			VLLM: VLLMConfig{
				BaseURL: envString("VLLM_BASE_URL", "http://localhost:8000"),
				Model:   envString("VLLM_MODEL", ""),
			},
			OpenAI: OpenAIConfig{
				BaseURL: envString("OPENAI_BASE_URL", "https://api.openai.com"),
				APIKey:  os.Getenv("OPENAI_API_KEY"),
				Model:   envString("OPENAI_MODEL", "gpt-4o-mini"),
			},
			Anthropic: AnthropicConfig{
				BaseURL:   envString("ANTHROPIC_BASE_URL", "https://api.anthropic.com"),
				APIKey:    os.Getenv("ANTHROPIC_API_KEY"),
				Model:     envString("ANTHROPIC_MODEL", "claude-sonnet-4-5-20250929"),
				MaxTokens: envInt("ANTHROPIC_MAX_TOKENS", 1024),
			},
		},
		Redis: RedisConfig{
			URL:               os.Getenv("REDIS_URL"),
			InferenceTTL:      envDuration("INFERENCE_CACHE_TTL", 10*time.Minute),
			RequestsPerMinute: envInt("API_REQUESTS_PER_MINUTE", 600),
		},
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    envInt("DATABASE_MAX_OPEN_CONNS", 10),
			MaxIdleConns:    envInt("DATABASE_MAX_IDLE_CONNS", 2),
			ConnMaxLifetime: envDuration("DATABASE_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Loki: LokiConfig{
			BaseURL:      os.Getenv("LOKI_BASE_URL"),
			Username:     os.Getenv("LOKI_USERNAME"),
			Password:     os.Getenv("LOKI_PASSWORD"),
			OrgID:        envString("LOKI_ORG_ID", "default"),
			Service:      os.Getenv("LOKI_SERVICE"),
			Namespace:    os.Getenv("LOKI_NAMESPACE"),
			Levels:       envList("LOKI_LEVELS"),
			PollInterval: envDuration("LOKI_POLL_INTERVAL", 15*time.Second),
			Timeout:      envDuration("LOKI_TIMEOUT", 30*time.Second),
		},
	}
}

// Validate checks the configuration and returns the first problem found.
func (c *Config) Validate() error {
	if c.Stream.BatchSize <= 0 {
		return fmt.Errorf("STREAM_BATCH_SIZE must be a positive integer, got %d", c.Stream.BatchSize)
	}
	if c.Stream.PatternCacheCapacity <= 0 {
		return fmt.Errorf("STREAM_PATTERN_CACHE_CAPACITY must be a positive integer, got %d", c.Stream.PatternCacheCapacity)
	}
	if c.Stream.FlushInterval < 0 {
		return fmt.Errorf("STREAM_FLUSH_INTERVAL must not be negative, got %s", c.Stream.FlushInterval)
	}
	if c.Stream.PatternReuseThreshold < 0 {
		return fmt.Errorf("STREAM_PATTERN_REUSE_THRESHOLD must not be negative, got %d", c.Stream.PatternReuseThreshold)
	}
	if c.Stream.ResponseTimeWindow <= 0 {
		return fmt.Errorf("METRICS_RESPONSE_WINDOW must be a positive integer, got %d", c.Stream.ResponseTimeWindow)
	}

	if c.AI.Provider == "" {
		return fmt.Errorf("AI_PROVIDER is required")
	}
	if !validProviders[c.AI.Provider] {
		return fmt.Errorf("AI_PROVIDER must be one of ollama, vllm, openai, anthropic, mock; got %q", c.AI.Provider)
	}
	if c.AI.InferenceTimeout <= 0 {
		return fmt.Errorf("AI_INFERENCE_TIMEOUT_SECS must be positive")
	}
	if c.AI.MaxRequestsPerSecond < 0 {
		return fmt.Errorf("AI_MAX_REQUESTS_PER_SEC must not be negative")
	}
	if !validRemediation[c.AI.Remediation] {
		return fmt.Errorf("AI_REMEDIATION must be one of rules, inference; got %q", c.AI.Remediation)
	}

	if c.AI.Provider == "openai" && c.AI.OpenAI.APIKey == "" {
		return fmt.Errorf("OPENAI_API_KEY is required when AI_PROVIDER is openai")
	}
	if c.AI.Provider == "anthropic" && c.AI.Anthropic.APIKey == "" {
		return fmt.Errorf("ANTHROPIC_API_KEY is required when AI_PROVIDER is anthropic")
	}
	if c.AI.Provider == "vllm" && c.AI.VLLM.Model == "" {
		return fmt.Errorf("VLLM_MODEL is required when AI_PROVIDER is vllm")
	}

	if c.Loki.BaseURL != "" {
		if !strings.HasPrefix(c.Loki.BaseURL, "http://") && !strings.HasPrefix(c.Loki.BaseURL, "https://") {
			return fmt.Errorf("LOKI_BASE_URL must start with http:// or https://, got %q", c.Loki.BaseURL)
		}
		if c.Loki.Service == "" {
			return fmt.Errorf("LOKI_SERVICE is required when LOKI_BASE_URL is set")
		}
		if c.Loki.PollInterval <= 0 {
			return fmt.Errorf("LOKI_POLL_INTERVAL must be positive")
		}
	}

	return nil
}

func envString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func envFloat(key string, defaultVal float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return defaultVal
	}
	return f
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}

func envDurationSecs(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	secs, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return time.Duration(secs) * time.Second
}

func envList(key string) []string {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
