// Package config provides application configuration management with multi-source priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (runtime override)
//  2. Config file (~/.evalforge/config.yaml)
//  3. Default values (sensible defaults for quick start)
//
// Main configuration categories:
//   - AI: provider, model, temperature, retry budget, rate limit
//   - Embedding: embedder model and vector dimension
//   - Synthesis: chunking and golden-generation parameters (see synthesis.go)
//   - Storage: PostgreSQL connection (see storage.go)
//   - VectorStore: retrieval backend selection (see vectorstore.go)
//   - Trace: OTLP exporter settings
//
// Security: sensitive values (passwords, API keys) are masked in MarshalJSON.
// Validation: range checks in validation.go with sentinel errors for errors.Is().
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

var (
	// ErrConfigNil indicates the configuration is nil.
	ErrConfigNil = errors.New("configuration is nil")

	// ErrMissingAPIKey indicates a required API key is missing.
	ErrMissingAPIKey = errors.New("missing API key")

	// ErrInvalidProvider indicates the AI provider is not supported.
	ErrInvalidProvider = errors.New("invalid provider")

	// ErrInvalidModelName indicates the model name is invalid.
	ErrInvalidModelName = errors.New("invalid model name")

	// ErrInvalidTemperature indicates the temperature value is out of range.
	ErrInvalidTemperature = errors.New("invalid temperature")

	// ErrInvalidMaxTokens indicates the max tokens value is out of range.
	ErrInvalidMaxTokens = errors.New("invalid max tokens")

	// ErrInvalidRetries indicates the retry budget is out of range.
	ErrInvalidRetries = errors.New("invalid max retries")

	// ErrInvalidRateLimit indicates the requests-per-minute limit is out of range.
	ErrInvalidRateLimit = errors.New("invalid rate limit")

	// ErrInvalidOllamaHost indicates the Ollama host is invalid.
	ErrInvalidOllamaHost = errors.New("invalid Ollama host")

	// ErrInvalidEmbedderModel indicates the embedder model is invalid.
	ErrInvalidEmbedderModel = errors.New("invalid embedder model")

	// ErrInvalidEmbedderDimension indicates the embedder vector dimension is out of range.
	ErrInvalidEmbedderDimension = errors.New("invalid embedder dimension")

	// ErrInvalidChunking indicates chunk size or overlap is out of range.
	ErrInvalidChunking = errors.New("invalid chunking configuration")

	// ErrInvalidContextLimit indicates a context construction limit is out of range.
	ErrInvalidContextLimit = errors.New("invalid context limit")

	// ErrInvalidThreshold indicates a similarity or quality threshold is out of range.
	ErrInvalidThreshold = errors.New("invalid threshold")

	// ErrInvalidConcurrency indicates the synthesis worker count is out of range.
	ErrInvalidConcurrency = errors.New("invalid concurrency")

	// ErrInvalidBackend indicates the vector store backend is not supported.
	ErrInvalidBackend = errors.New("invalid vector store backend")

	// ErrInvalidTopK indicates the retrieval depth is out of range.
	ErrInvalidTopK = errors.New("invalid top_k")

	// ErrInvalidPostgresHost indicates the PostgreSQL host is invalid.
	ErrInvalidPostgresHost = errors.New("invalid PostgreSQL host")

	// ErrInvalidPostgresPort indicates the PostgreSQL port is out of range.
	ErrInvalidPostgresPort = errors.New("invalid PostgreSQL port")

	// ErrInvalidPostgresDBName indicates the PostgreSQL database name is invalid.
	ErrInvalidPostgresDBName = errors.New("invalid PostgreSQL database name")

	// ErrInvalidPostgresPassword indicates the PostgreSQL password is invalid.
	ErrInvalidPostgresPassword = errors.New("invalid PostgreSQL password")

	// ErrInvalidPostgresSSLMode indicates the PostgreSQL SSL mode is invalid.
	ErrInvalidPostgresSSLMode = errors.New("invalid PostgreSQL SSL mode")

	// ErrInvalidQdrantURL indicates the Qdrant endpoint is invalid.
	ErrInvalidQdrantURL = errors.New("invalid Qdrant URL")

	// ErrInvalidRedisAddr indicates the Redis address is invalid.
	ErrInvalidRedisAddr = errors.New("invalid Redis address")
)

const (
	// DefaultGeminiEmbedderModel is the default Gemini embedder model.
	// gemini-embedding-001 outputs 3072 dimensions by default, but supports
	// truncation via OutputDimensionality (Matryoshka Representation Learning).
	DefaultGeminiEmbedderModel = "gemini-embedding-001"

	// DefaultEmbedderDimension is the vector dimension used across the
	// vector store backends unless overridden.
	DefaultEmbedderDimension = 768

	// MaxEmbedderDimension caps the configurable vector dimension.
	MaxEmbedderDimension = 4096
)

// AI provider identifiers used in Config.Provider.
const (
	ProviderGemini   = "gemini"
	ProviderOllama   = "ollama"
	ProviderOpenAI   = "openai"
	ProviderGoogleAI = "googleai"
)

// Config stores application configuration.
// SECURITY: sensitive fields are explicitly masked in MarshalJSON().
// When adding new sensitive fields (passwords, API keys, tokens), update MarshalJSON.
type Config struct {
	// AI provider and model configuration
	Provider    string  `mapstructure:"provider" json:"provider"`     // "gemini" (default), "ollama", "openai"
	ModelName   string  `mapstructure:"model_name" json:"model_name"` // Model identifier (e.g., "gemini-2.5-flash", "llama3.3", "gpt-4o")
	Temperature float32 `mapstructure:"temperature" json:"temperature"`
	MaxTokens   int     `mapstructure:"max_tokens" json:"max_tokens"`

	// LLM client behavior
	MaxRetries        int `mapstructure:"max_retries" json:"max_retries"`
	RequestsPerMinute int `mapstructure:"requests_per_minute" json:"requests_per_minute"`

	// Ollama configuration (only used when provider is "ollama")
	OllamaHost string `mapstructure:"ollama_host" json:"ollama_host"`

	// Embedding configuration
	EmbedderModel     string `mapstructure:"embedder_model" json:"embedder_model"`
	EmbedderDimension int    `mapstructure:"embedder_dimension" json:"embedder_dimension"`

	// Golden generation configuration (see synthesis.go)
	Synthesis SynthesisConfig `mapstructure:"synthesis" json:"synthesis"`

	// Site crawler configuration (see crawler.go)
	Crawler CrawlerConfig `mapstructure:"crawler" json:"crawler"`

	// Storage configuration (see storage.go)
	PostgresHost     string `mapstructure:"postgres_host" json:"postgres_host"`
	PostgresPort     int    `mapstructure:"postgres_port" json:"postgres_port"`
	PostgresUser     string `mapstructure:"postgres_user" json:"postgres_user"`
	PostgresPassword string `mapstructure:"postgres_password" json:"postgres_password"` // SENSITIVE: masked in MarshalJSON
	PostgresDBName   string `mapstructure:"postgres_db_name" json:"postgres_db_name"`
	PostgresSSLMode  string `mapstructure:"postgres_ssl_mode" json:"postgres_ssl_mode"`

	// Vector store backend selection (see vectorstore.go)
	VectorStore VectorStoreConfig `mapstructure:"vector_store" json:"vector_store"`

	// Benchmark configuration
	TopK int `mapstructure:"top_k" json:"top_k"`

	// Logging
	LogLevel string `mapstructure:"log_level" json:"log_level"`
	JSONLogs bool   `mapstructure:"json_logs" json:"json_logs"`

	// Tracing (OTLP HTTP exporter)
	Trace TraceConfig `mapstructure:"trace" json:"trace"`
}

// TraceConfig configures the OTLP trace exporter.
type TraceConfig struct {
	Enabled     bool   `mapstructure:"enabled" json:"enabled"`
	Endpoint    string `mapstructure:"endpoint" json:"endpoint"` // host:port of the OTLP HTTP collector
	Environment string `mapstructure:"environment" json:"environment"`
	ServiceName string `mapstructure:"service_name" json:"service_name"`
}

// Load loads configuration.
// Priority: Environment variables > Configuration file > Default values
func Load() (*Config, error) {
	return LoadFrom("")
}

// LoadFrom is Load with an explicit configuration file. An empty path uses
// the default search locations (~/.evalforge/config.yaml, then the current
// directory), where a missing file is fine; a non-empty path must exist and
// parse.
func LoadFrom(path string) (*Config, error) {
	if path != "" {
		viper.SetConfigFile(path)
	} else {
		// Configuration directory: ~/.evalforge/
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting user home directory: %w", err)
		}

		configDir := filepath.Join(home, ".evalforge")

		// Ensure directory exists (0750 keeps the config private to the user)
		if err := os.MkdirAll(configDir, 0o750); err != nil {
			return nil, fmt.Errorf("creating config directory: %w", err)
		}

		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(configDir)
		viper.AddConfigPath(".") // Also support current directory
	}

	setDefaults()
	bindEnvVariables()

	// Read configuration file (if exists)
	if err := viper.ReadInConfig(); err != nil {
		if path != "" {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		// Configuration file not found is not an error, use default values
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using default values",
			"config_name", "config.yaml")
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	// DATABASE_URL overrides individual postgres_* settings when set
	if err := cfg.parseDatabaseURL(); err != nil {
		return nil, fmt.Errorf("parsing DATABASE_URL: %w", err)
	}

	// Fail fast on invalid values
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets all default configuration values.
func setDefaults() {
	// AI defaults
	viper.SetDefault("provider", ProviderGemini)
	viper.SetDefault("model_name", "gemini-2.5-flash")
	viper.SetDefault("temperature", 0.7)
	viper.SetDefault("max_tokens", 4096)
	viper.SetDefault("max_retries", 3)
	viper.SetDefault("requests_per_minute", 60)

	// Ollama defaults
	viper.SetDefault("ollama_host", "http://localhost:11434")

	// Embedding defaults
	viper.SetDefault("embedder_model", DefaultGeminiEmbedderModel)
	viper.SetDefault("embedder_dimension", DefaultEmbedderDimension)

	// Synthesis defaults (see synthesis.go for the meaning of each knob)
	viper.SetDefault("synthesis.chunk_size", DefaultChunkSize)
	viper.SetDefault("synthesis.chunk_overlap", DefaultChunkOverlap)
	viper.SetDefault("synthesis.max_contexts_per_document", DefaultMaxContextsPerDocument)
	viper.SetDefault("synthesis.max_chunks_per_context", DefaultMaxChunksPerContext)
	viper.SetDefault("synthesis.similarity_threshold", DefaultSimilarityThreshold)
	viper.SetDefault("synthesis.quality_threshold", DefaultQualityThreshold)
	viper.SetDefault("synthesis.max_quality_retries", DefaultMaxQualityRetries)
	viper.SetDefault("synthesis.num_evolutions", DefaultNumEvolutions)
	viper.SetDefault("synthesis.concurrency", DefaultConcurrency)

	// Crawler defaults
	viper.SetDefault("crawler.parallelism", 2)
	viper.SetDefault("crawler.delay_ms", 1000)
	viper.SetDefault("crawler.timeout_ms", 30000)
	viper.SetDefault("crawler.max_depth", 2)
	viper.SetDefault("crawler.max_pages", 20)

	// PostgreSQL defaults (matching docker-compose.yml)
	viper.SetDefault("postgres_host", "localhost")
	viper.SetDefault("postgres_port", 5432)
	viper.SetDefault("postgres_user", "evalforge")
	viper.SetDefault("postgres_password", "evalforge_dev_password")
	viper.SetDefault("postgres_db_name", "evalforge")
	viper.SetDefault("postgres_ssl_mode", "disable")

	// Vector store defaults
	viper.SetDefault("vector_store.backend", BackendPostgres)
	viper.SetDefault("vector_store.qdrant_url", "http://localhost:6333")
	viper.SetDefault("vector_store.redis_addr", "localhost:6379")

	// Benchmark defaults
	viper.SetDefault("top_k", 5)

	// Logging defaults
	viper.SetDefault("log_level", "info")
	viper.SetDefault("json_logs", false)

	// Trace defaults
	viper.SetDefault("trace.enabled", false)
	viper.SetDefault("trace.endpoint", "localhost:4318")
	viper.SetDefault("trace.environment", "dev")
	viper.SetDefault("trace.service_name", "evalforge")
}

// bindEnvVariables binds environment variables explicitly.
// Provider API keys (GEMINI_API_KEY, OPENAI_API_KEY) are read directly by the
// Genkit plugins, not via Viper; Validate() checks their presence based on
// the selected provider.
func bindEnvVariables() {
	// Hardcoded keys cannot fail to bind; a panic here is a bug, not a
	// runtime error.
	mustBind := func(key, envVar string) {
		if err := viper.BindEnv(key, envVar); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q to %q: %v", key, envVar, err))
		}
	}

	mustBind("provider", "EVALFORGE_PROVIDER")
	mustBind("model_name", "EVALFORGE_MODEL_NAME")
	mustBind("ollama_host", "EVALFORGE_OLLAMA_HOST")
	mustBind("embedder_model", "EVALFORGE_EMBEDDER_MODEL")
	mustBind("vector_store.backend", "EVALFORGE_VECTOR_BACKEND")
	mustBind("vector_store.qdrant_url", "QDRANT_URL")
	mustBind("vector_store.qdrant_api_key", "QDRANT_API_KEY")
	mustBind("vector_store.redis_addr", "REDIS_ADDR")
	mustBind("log_level", "EVALFORGE_LOG_LEVEL")
}

// maskedValue is the placeholder for masked sensitive data.
// Full-width blocks (U+2588) avoid accidental substring matches against the
// real secret.
const maskedValue = "████████"

// maskSecret masks a secret string for safe logging.
// Secrets of 8 characters or fewer are fully masked; longer secrets keep the
// first and last 2 characters for debug utility.
//
// This defends against accidental logging of real secrets. It is not
// cryptographically secure; if logs are compromised, rotate secrets.
func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return maskedValue
	}
	prefix := make([]byte, 2)
	suffix := make([]byte, 2)
	copy(prefix, s[:2])
	copy(suffix, s[len(s)-2:])
	return string(prefix) + "<" + maskedValue + ">" + string(suffix)
}

// MarshalJSON implements json.Marshaler with explicit sensitive field masking.
//
// Sensitive fields masked:
//   - PostgresPassword
//   - VectorStore.QdrantAPIKey (via VectorStoreConfig.MarshalJSON)
func (c Config) MarshalJSON() ([]byte, error) {
	type alias Config
	a := alias(c)
	a.PostgresPassword = maskSecret(a.PostgresPassword)
	data, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return data, nil
}

// FullModelName returns the provider-qualified model name for Genkit.
// Examples: "googleai/gemini-2.5-flash", "ollama/llama3.3", "openai/gpt-4o".
// If ModelName already contains a "/", it is returned as-is.
func (c *Config) FullModelName() string {
	if strings.Contains(c.ModelName, "/") {
		return c.ModelName
	}
	switch c.Provider {
	case ProviderOllama:
		return ProviderOllama + "/" + c.ModelName
	case ProviderOpenAI:
		return ProviderOpenAI + "/" + c.ModelName
	default:
		return ProviderGoogleAI + "/" + c.ModelName
	}
}

// String implements Stringer to prevent accidental printing of secrets.
func (c Config) String() string {
	data, err := c.MarshalJSON()
	if err != nil {
		return fmt.Sprintf("Config{error: %v}", err)
	}
	return string(data)
}
