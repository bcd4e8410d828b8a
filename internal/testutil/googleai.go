package testutil

import (
	"context"
	"log/slog"
	"os"
	"testing"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/googlegenai"

	"github.com/evalforge/evalforge/internal/config"
)

// GoogleAISetup contains all resources needed for tests that talk to the
// real Gemini API.
type GoogleAISetup struct {
	Genkit   *genkit.Genkit
	Embedder ai.Embedder
	Logger   *slog.Logger
}

// SetupGoogleAI initializes Genkit with the Google AI plugin and returns a
// live embedder for integration tests.
//
// Requirements:
//   - GEMINI_API_KEY environment variable must be set
//   - Skips the test if the API key is not available
//
// Example:
//
//	func TestEmbeddingLive(t *testing.T) {
//	    setup := testutil.SetupGoogleAI(t)
//	    svc, err := embedding.New(setup.Embedder, 768, setup.Logger)
//	    // ...
//	}
func SetupGoogleAI(t *testing.T) *GoogleAISetup {
	t.Helper()

	if os.Getenv("GEMINI_API_KEY") == "" {
		t.Skip("GEMINI_API_KEY not set - skipping test requiring live embedder")
	}

	ctx := context.Background()

	g := genkit.Init(ctx, genkit.WithPlugins(&googlegenai.GoogleAI{}))

	embedder := googlegenai.GoogleAIEmbedder(g, config.DefaultGeminiEmbedderModel)
	if embedder == nil {
		t.Fatalf("GoogleAIEmbedder returned nil for model %q", config.DefaultGeminiEmbedderModel)
	}

	logger := slog.New(slog.DiscardHandler)

	return &GoogleAISetup{
		Genkit:   g,
		Embedder: embedder,
		Logger:   logger,
	}
}
