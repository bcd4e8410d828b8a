package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/viper"
)

// TestLoadDefaults tests that default configuration values are loaded correctly
func TestLoadDefaults(t *testing.T) {
	// Reset Viper singleton to avoid interference from other tests
	viper.Reset()

	// Create temporary config directory (no config.yaml = pure defaults)
	tmpDir := t.TempDir()
	originalHome := os.Getenv("HOME")
	defer func() {
		if err := os.Setenv("HOME", originalHome); err != nil {
			t.Errorf("Failed to restore HOME: %v", err)
		}
	}()

	if err := os.Setenv("HOME", tmpDir); err != nil {
		t.Fatalf("Failed to set HOME: %v", err)
	}

	// Set API key for validation
	if err := os.Setenv("GEMINI_API_KEY", "test-api-key"); err != nil {
		t.Fatalf("Failed to set GEMINI_API_KEY: %v", err)
	}
	defer os.Unsetenv("GEMINI_API_KEY")

	// Clear DATABASE_URL to test pure defaults
	originalDBURL := os.Getenv("DATABASE_URL")
	os.Unsetenv("DATABASE_URL")
	defer func() {
		if originalDBURL != "" {
			_ = os.Setenv("DATABASE_URL", originalDBURL) // restore env in test cleanup
		}
	}()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Provider != ProviderGemini {
		t.Errorf("expected default Provider %q, got %q", ProviderGemini, cfg.Provider)
	}

	if cfg.ModelName != "gemini-2.5-flash" {
		t.Errorf("expected default ModelName 'gemini-2.5-flash', got %q", cfg.ModelName)
	}

	if cfg.Temperature != 0.7 {
		t.Errorf("expected default Temperature 0.7, got %f", cfg.Temperature)
	}

	if cfg.EmbedderModel != DefaultGeminiEmbedderModel {
		t.Errorf("expected default EmbedderModel %q, got %q", DefaultGeminiEmbedderModel, cfg.EmbedderModel)
	}

	if cfg.EmbedderDimension != DefaultEmbedderDimension {
		t.Errorf("expected default EmbedderDimension %d, got %d", DefaultEmbedderDimension, cfg.EmbedderDimension)
	}

	if cfg.Synthesis.ChunkSize != DefaultChunkSize {
		t.Errorf("expected default ChunkSize %d, got %d", DefaultChunkSize, cfg.Synthesis.ChunkSize)
	}

	if cfg.Synthesis.ChunkOverlap != DefaultChunkOverlap {
		t.Errorf("expected default ChunkOverlap %d, got %d", DefaultChunkOverlap, cfg.Synthesis.ChunkOverlap)
	}

	if cfg.Synthesis.MaxContextsPerDocument != DefaultMaxContextsPerDocument {
		t.Errorf("expected default MaxContextsPerDocument %d, got %d",
			DefaultMaxContextsPerDocument, cfg.Synthesis.MaxContextsPerDocument)
	}

	if cfg.Synthesis.SimilarityThreshold != DefaultSimilarityThreshold {
		t.Errorf("expected default SimilarityThreshold %v, got %v",
			DefaultSimilarityThreshold, cfg.Synthesis.SimilarityThreshold)
	}

	if cfg.VectorStore.Backend != BackendPostgres {
		t.Errorf("expected default backend %q, got %q", BackendPostgres, cfg.VectorStore.Backend)
	}

	if cfg.PostgresHost != "localhost" {
		t.Errorf("expected default PostgresHost 'localhost', got %q", cfg.PostgresHost)
	}

	if cfg.PostgresPort != 5432 {
		t.Errorf("expected default PostgresPort 5432, got %d", cfg.PostgresPort)
	}

	if cfg.TopK != 5 {
		t.Errorf("expected default TopK 5, got %d", cfg.TopK)
	}
}

// TestLoadConfigFile tests loading configuration from a file
func TestLoadConfigFile(t *testing.T) {
	viper.Reset()

	tmpDir := t.TempDir()
	originalHome := os.Getenv("HOME")
	defer func() {
		if err := os.Setenv("HOME", originalHome); err != nil {
			t.Errorf("Failed to restore HOME: %v", err)
		}
	}()

	if err := os.Setenv("HOME", tmpDir); err != nil {
		t.Fatalf("Failed to set HOME: %v", err)
	}
	if err := os.Setenv("GEMINI_API_KEY", "test-api-key"); err != nil {
		t.Fatalf("Failed to set GEMINI_API_KEY: %v", err)
	}
	defer os.Unsetenv("GEMINI_API_KEY")

	originalDBURL := os.Getenv("DATABASE_URL")
	os.Unsetenv("DATABASE_URL")
	defer func() {
		if originalDBURL != "" {
			_ = os.Setenv("DATABASE_URL", originalDBURL) // restore env in test cleanup
		}
	}()

	configDir := filepath.Join(tmpDir, ".evalforge")
	if err := os.MkdirAll(configDir, 0o750); err != nil {
		t.Fatalf("failed to create config dir: %v", err)
	}

	configContent := `model_name: gemini-2.5-pro
temperature: 0.9
top_k: 10
synthesis:
  chunk_size: 512
  num_evolutions: 2
postgres_host: test-host
postgres_port: 5433
postgres_db_name: test_db
`
	configPath := filepath.Join(configDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(configContent), 0o600); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.ModelName != "gemini-2.5-pro" {
		t.Errorf("expected ModelName 'gemini-2.5-pro', got %q", cfg.ModelName)
	}

	if cfg.Temperature != 0.9 {
		t.Errorf("expected Temperature 0.9, got %f", cfg.Temperature)
	}

	if cfg.TopK != 10 {
		t.Errorf("expected TopK 10, got %d", cfg.TopK)
	}

	if cfg.Synthesis.ChunkSize != 512 {
		t.Errorf("expected ChunkSize 512, got %d", cfg.Synthesis.ChunkSize)
	}

	if cfg.Synthesis.NumEvolutions != 2 {
		t.Errorf("expected NumEvolutions 2, got %d", cfg.Synthesis.NumEvolutions)
	}

	// Unset keys keep their defaults
	if cfg.Synthesis.ChunkOverlap != DefaultChunkOverlap {
		t.Errorf("expected default ChunkOverlap %d, got %d", DefaultChunkOverlap, cfg.Synthesis.ChunkOverlap)
	}

	if cfg.PostgresHost != "test-host" {
		t.Errorf("expected PostgresHost 'test-host', got %q", cfg.PostgresHost)
	}

	if cfg.PostgresPort != 5433 {
		t.Errorf("expected PostgresPort 5433, got %d", cfg.PostgresPort)
	}

	if cfg.PostgresDBName != "test_db" {
		t.Errorf("expected PostgresDBName 'test_db', got %q", cfg.PostgresDBName)
	}
}

// TestLoadFromExplicitPath tests that an explicit config path is honored
// and, unlike the search-path lookup, must exist.
func TestLoadFromExplicitPath(t *testing.T) {
	viper.Reset()

	if err := os.Setenv("GEMINI_API_KEY", "test-api-key"); err != nil {
		t.Fatalf("Failed to set GEMINI_API_KEY: %v", err)
	}
	defer os.Unsetenv("GEMINI_API_KEY")

	originalDBURL := os.Getenv("DATABASE_URL")
	os.Unsetenv("DATABASE_URL")
	defer func() {
		if originalDBURL != "" {
			_ = os.Setenv("DATABASE_URL", originalDBURL) // restore env in test cleanup
		}
	}()

	configPath := filepath.Join(t.TempDir(), "custom.yaml")
	if err := os.WriteFile(configPath, []byte("model_name: gemini-2.5-pro\n"), 0o600); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	cfg, err := LoadFrom(configPath)
	if err != nil {
		t.Fatalf("LoadFrom() failed: %v", err)
	}
	if cfg.ModelName != "gemini-2.5-pro" {
		t.Errorf("expected ModelName 'gemini-2.5-pro', got %q", cfg.ModelName)
	}
	// Keys absent from the file keep their defaults
	if cfg.Provider != ProviderGemini {
		t.Errorf("expected default Provider %q, got %q", ProviderGemini, cfg.Provider)
	}

	viper.Reset()
	if _, err := LoadFrom(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for a missing explicit config file")
	}
}

// TestSentinelErrors tests that sentinel errors work with errors.Is()
func TestSentinelErrors(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		sentinel error
	}{
		{"ErrConfigNil", ErrConfigNil, ErrConfigNil},
		{"ErrMissingAPIKey", ErrMissingAPIKey, ErrMissingAPIKey},
		{"ErrInvalidModelName", ErrInvalidModelName, ErrInvalidModelName},
		{"ErrInvalidChunking", ErrInvalidChunking, ErrInvalidChunking},
		{"ErrInvalidBackend", ErrInvalidBackend, ErrInvalidBackend},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !errors.Is(tt.err, tt.sentinel) {
				t.Errorf("errors.Is(%v, %v) = false, want true", tt.err, tt.sentinel)
			}
		})
	}
}

func TestMaskSecret(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "empty", input: "", want: ""},
		{name: "short fully masked", input: "abc", want: maskedValue},
		{name: "exactly eight fully masked", input: "12345678", want: maskedValue},
		{name: "long keeps edges", input: "my_long_secret_key_123", want: "my<" + maskedValue + ">23"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := maskSecret(tt.input); got != tt.want {
				t.Errorf("maskSecret(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

// TestConfigMarshalJSON_MasksSecrets verifies secrets never appear in JSON output.
func TestConfigMarshalJSON_MasksSecrets(t *testing.T) {
	cfg := Config{
		PostgresPassword: "super_secret_password",
		VectorStore: VectorStoreConfig{
			Backend:      BackendQdrant,
			QdrantAPIKey: "qdrant_api_key_value",
		},
	}

	data, err := json.Marshal(cfg)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	out := string(data)
	if strings.Contains(out, "super_secret_password") {
		t.Error("postgres password leaked in JSON output")
	}
	if strings.Contains(out, "qdrant_api_key_value") {
		t.Error("qdrant API key leaked in JSON output")
	}
	if !strings.Contains(out, maskedValue) {
		t.Error("expected masked placeholder in JSON output")
	}
}

// TestConfigString_NoSecrets verifies the Stringer masks secrets as well.
func TestConfigString_NoSecrets(t *testing.T) {
	cfg := Config{PostgresPassword: "another_secret_value"}

	if strings.Contains(cfg.String(), "another_secret_value") {
		t.Error("String() leaked the postgres password")
	}
}

func TestFullModelName(t *testing.T) {
	tests := []struct {
		name     string
		provider string
		model    string
		want     string
	}{
		{name: "gemini", provider: ProviderGemini, model: "gemini-2.5-flash", want: "googleai/gemini-2.5-flash"},
		{name: "ollama", provider: ProviderOllama, model: "llama3.3", want: "ollama/llama3.3"},
		{name: "openai", provider: ProviderOpenAI, model: "gpt-4o", want: "openai/gpt-4o"},
		{name: "already qualified", provider: ProviderGemini, model: "googleai/gemini-2.5-pro", want: "googleai/gemini-2.5-pro"},
		{name: "unknown provider defaults to googleai", provider: "", model: "gemini-2.5-flash", want: "googleai/gemini-2.5-flash"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{Provider: tt.provider, ModelName: tt.model}
			if got := cfg.FullModelName(); got != tt.want {
				t.Errorf("FullModelName() = %q, want %q", got, tt.want)
			}
		})
	}
}
