// Package embedding wraps a Genkit embedder with batching and dimension
// enforcement. The cosine helper here is the single similarity definition
// shared by context grouping and retrieval scoring.
package embedding

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/firebase/genkit/go/ai"
	"google.golang.org/genai"
)

// DefaultBatchSize is the number of texts sent per embedder request.
// Gemini accepts up to 100 inputs per call; 64 leaves headroom for the
// request-size limit on long chunks.
const DefaultBatchSize = 64

// Service generates embeddings through a configured Genkit embedder.
type Service struct {
	embedder  ai.Embedder
	dim       int
	batchSize int
	logger    *slog.Logger
}

// New creates a Service. logger may be nil.
func New(embedder ai.Embedder, dim int, logger *slog.Logger) (*Service, error) {
	if embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}
	if dim <= 0 {
		return nil, fmt.Errorf("embedding dimension must be positive, got %d", dim)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		embedder:  embedder,
		dim:       dim,
		batchSize: DefaultBatchSize,
		logger:    logger,
	}, nil
}

// Dimension returns the configured vector dimension.
func (s *Service) Dimension() int {
	return s.dim
}

// EmbedTexts embeds texts in batches and returns one vector per input, in
// input order.
func (s *Service) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	vectors := make([][]float32, 0, len(texts))

	for start := 0; start < len(texts); start += s.batchSize {
		end := min(start+s.batchSize, len(texts))

		docs := make([]*ai.Document, 0, end-start)
		for _, text := range texts[start:end] {
			docs = append(docs, ai.DocumentFromText(text, nil))
		}

		req := &ai.EmbedRequest{Input: docs}

		// Gemini embedders accept a requested output dimension; other
		// providers embed at their model's native dimension.
		if strings.HasPrefix(s.embedder.Name(), "googleai/") {
			dim := int32(s.dim)
			req.Options = &genai.EmbedContentConfig{OutputDimensionality: &dim}
		}

		resp, err := s.embedder.Embed(ctx, req)
		if err != nil {
			return nil, fmt.Errorf("embedding batch [%d:%d]: %w", start, end, err)
		}
		if len(resp.Embeddings) != len(docs) {
			return nil, fmt.Errorf("embedder returned %d vectors for %d inputs",
				len(resp.Embeddings), len(docs))
		}

		for i, emb := range resp.Embeddings {
			if len(emb.Embedding) == 0 {
				return nil, fmt.Errorf("empty embedding for input %d", start+i)
			}
			vectors = append(vectors, emb.Embedding)
		}

		s.logger.Debug("embedded batch",
			"from", start,
			"to", end,
			"total", len(texts),
		)
	}

	return vectors, nil
}

// EmbedText embeds a single text.
func (s *Service) EmbedText(ctx context.Context, text string) ([]float32, error) {
	vectors, err := s.EmbedTexts(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// Cosine returns the cosine similarity between two vectors in [-1, 1].
// Mismatched lengths and zero vectors yield 0.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i] * b[i])
		normA += float64(a[i] * a[i])
		normB += float64(b[i] * b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}
