package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"slices"
	"strings"
)

// Validate validates configuration values.
// Returns sentinel errors that can be checked with errors.Is().
func (c *Config) Validate() error {
	if c == nil {
		return ErrConfigNil
	}

	// 1. Provider and API key validation. Keys are read by the Genkit
	// plugins directly; we only check presence for the selected provider.
	switch c.Provider {
	case ProviderGemini, ProviderGoogleAI:
		if os.Getenv("GEMINI_API_KEY") == "" {
			return fmt.Errorf("%w: GEMINI_API_KEY environment variable is required\n"+
				"Get your API key at: https://ai.google.dev/gemini-api/docs/api-key",
				ErrMissingAPIKey)
		}
	case ProviderOpenAI:
		if os.Getenv("OPENAI_API_KEY") == "" {
			return fmt.Errorf("%w: OPENAI_API_KEY environment variable is required",
				ErrMissingAPIKey)
		}
	case ProviderOllama:
		if c.OllamaHost == "" {
			return fmt.Errorf("%w: ollama_host cannot be empty", ErrInvalidOllamaHost)
		}
		if !strings.HasPrefix(c.OllamaHost, "http://") && !strings.HasPrefix(c.OllamaHost, "https://") {
			return fmt.Errorf("%w: ollama_host must start with http:// or https://, got %q",
				ErrInvalidOllamaHost, c.OllamaHost)
		}
	default:
		return fmt.Errorf("%w: %q is not supported, must be one of: gemini, ollama, openai",
			ErrInvalidProvider, c.Provider)
	}

	// 2. Model configuration validation
	if c.ModelName == "" {
		return fmt.Errorf("%w: model_name cannot be empty", ErrInvalidModelName)
	}

	// Temperature range: 0.0 (deterministic) to 2.0 (maximum creativity)
	if c.Temperature < 0.0 || c.Temperature > 2.0 {
		return fmt.Errorf("%w: must be between 0.0 and 2.0, got %.2f", ErrInvalidTemperature, c.Temperature)
	}

	if c.MaxTokens < 1 || c.MaxTokens > 2097152 {
		return fmt.Errorf("%w: must be between 1 and 2,097,152, got %d", ErrInvalidMaxTokens, c.MaxTokens)
	}

	if c.MaxRetries < 0 || c.MaxRetries > 10 {
		return fmt.Errorf("%w: must be between 0 and 10, got %d", ErrInvalidRetries, c.MaxRetries)
	}

	if c.RequestsPerMinute < 1 || c.RequestsPerMinute > 10000 {
		return fmt.Errorf("%w: must be between 1 and 10,000, got %d", ErrInvalidRateLimit, c.RequestsPerMinute)
	}

	// 3. Embedding configuration validation
	if c.EmbedderModel == "" {
		return fmt.Errorf("%w: embedder_model cannot be empty", ErrInvalidEmbedderModel)
	}

	if c.EmbedderDimension < 1 || c.EmbedderDimension > MaxEmbedderDimension {
		return fmt.Errorf("%w: must be between 1 and %d, got %d",
			ErrInvalidEmbedderDimension, MaxEmbedderDimension, c.EmbedderDimension)
	}

	// 4. Synthesis configuration validation
	if err := c.Synthesis.validate(); err != nil {
		return err
	}

	// 5. Vector store backend validation
	validBackends := []string{BackendPostgres, BackendQdrant, BackendRedis}
	if !slices.Contains(validBackends, c.VectorStore.Backend) {
		return fmt.Errorf("%w: %q is not valid, must be one of: %v",
			ErrInvalidBackend, c.VectorStore.Backend, validBackends)
	}

	switch c.VectorStore.Backend {
	case BackendQdrant:
		if c.VectorStore.QdrantURL == "" {
			return fmt.Errorf("%w: qdrant_url cannot be empty", ErrInvalidQdrantURL)
		}
		if _, err := url.Parse(c.VectorStore.QdrantURL); err != nil {
			return fmt.Errorf("%w: %q: %v", ErrInvalidQdrantURL, c.VectorStore.QdrantURL, err)
		}
	case BackendRedis:
		if c.VectorStore.RedisAddr == "" {
			return fmt.Errorf("%w: redis_addr cannot be empty", ErrInvalidRedisAddr)
		}
	case BackendPostgres:
		if err := c.validatePostgres(); err != nil {
			return err
		}
	}

	// 6. Benchmark validation
	if c.TopK < 1 || c.TopK > 100 {
		return fmt.Errorf("%w: must be between 1 and 100, got %d", ErrInvalidTopK, c.TopK)
	}

	return nil
}

// validate checks the synthesis knobs. Thresholds are scores in [0, 1].
func (s *SynthesisConfig) validate() error {
	if s.ChunkSize < 1 {
		return fmt.Errorf("%w: chunk_size must be at least 1, got %d", ErrInvalidChunking, s.ChunkSize)
	}

	if s.ChunkOverlap < 0 {
		return fmt.Errorf("%w: chunk_overlap cannot be negative, got %d", ErrInvalidChunking, s.ChunkOverlap)
	}

	if s.ChunkOverlap >= s.ChunkSize {
		return fmt.Errorf("%w: chunk_overlap (%d) must be smaller than chunk_size (%d)",
			ErrInvalidChunking, s.ChunkOverlap, s.ChunkSize)
	}

	if s.MaxContextsPerDocument < 1 {
		return fmt.Errorf("%w: max_contexts_per_document must be at least 1, got %d",
			ErrInvalidContextLimit, s.MaxContextsPerDocument)
	}

	if s.MaxChunksPerContext < 1 {
		return fmt.Errorf("%w: max_chunks_per_context must be at least 1, got %d",
			ErrInvalidContextLimit, s.MaxChunksPerContext)
	}

	if s.SimilarityThreshold < 0 || s.SimilarityThreshold > 1 {
		return fmt.Errorf("%w: similarity_threshold must be between 0 and 1, got %.2f",
			ErrInvalidThreshold, s.SimilarityThreshold)
	}

	if s.QualityThreshold < 0 || s.QualityThreshold > 1 {
		return fmt.Errorf("%w: quality_threshold must be between 0 and 1, got %.2f",
			ErrInvalidThreshold, s.QualityThreshold)
	}

	if s.MaxQualityRetries < 0 || s.MaxQualityRetries > 10 {
		return fmt.Errorf("%w: max_quality_retries must be between 0 and 10, got %d",
			ErrInvalidRetries, s.MaxQualityRetries)
	}

	if s.NumEvolutions < 0 || s.NumEvolutions > 10 {
		return fmt.Errorf("%w: num_evolutions must be between 0 and 10, got %d",
			ErrInvalidRetries, s.NumEvolutions)
	}

	if s.Concurrency < 1 || s.Concurrency > 64 {
		return fmt.Errorf("%w: concurrency must be between 1 and 64, got %d",
			ErrInvalidConcurrency, s.Concurrency)
	}

	return nil
}

// validatePostgres checks the PostgreSQL connection settings. Only enforced
// when the postgres backend is selected; the other backends never open a
// database connection.
func (c *Config) validatePostgres() error {
	if c.PostgresHost == "" {
		return fmt.Errorf("%w: host cannot be empty", ErrInvalidPostgresHost)
	}

	if c.PostgresPort < 1 || c.PostgresPort > 65535 {
		return fmt.Errorf("%w: must be between 1 and 65535, got %d", ErrInvalidPostgresPort, c.PostgresPort)
	}

	if c.PostgresDBName == "" {
		return fmt.Errorf("%w: database name cannot be empty", ErrInvalidPostgresDBName)
	}

	if c.PostgresPassword == "" {
		return fmt.Errorf("%w: postgres_password must be set in config.yaml",
			ErrInvalidPostgresPassword)
	}

	// Warn on the default dev password but don't block local development.
	if c.PostgresPassword == "evalforge_dev_password" {
		slog.Warn("Using default development password for PostgreSQL",
			"warning", "Change postgres_password in config.yaml for production deployments")
	}

	if len(c.PostgresPassword) < 8 {
		return fmt.Errorf("%w: postgres_password must be at least 8 characters (got %d)",
			ErrInvalidPostgresPassword, len(c.PostgresPassword))
	}

	// Modern SSL modes only; allow/prefer are vulnerable to MITM downgrade.
	validSSLModes := []string{"disable", "require", "verify-ca", "verify-full"}
	if c.PostgresSSLMode == "" {
		return fmt.Errorf("%w: postgres_ssl_mode is empty (should have default from setDefaults)",
			ErrInvalidPostgresSSLMode)
	}

	if !slices.Contains(validSSLModes, c.PostgresSSLMode) {
		return fmt.Errorf("%w: %q is not valid, must be one of: %v",
			ErrInvalidPostgresSSLMode, c.PostgresSSLMode, validSSLModes)
	}

	return nil
}
