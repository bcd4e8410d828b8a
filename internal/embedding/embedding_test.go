package embedding

import (
	"context"
	"errors"
	"math"
	"sync/atomic"
	"testing"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/core/api"
)

// countingEmbedder returns deterministic position-based vectors and records
// how many Embed calls it saw.
type countingEmbedder struct {
	dim   int
	calls atomic.Int32
	err   error
}

func (e *countingEmbedder) Name() string { return "mock-embedder" }

func (e *countingEmbedder) Register(_ api.Registry) {}

func (e *countingEmbedder) Embed(_ context.Context, req *ai.EmbedRequest) (*ai.EmbedResponse, error) {
	e.calls.Add(1)
	if e.err != nil {
		return nil, e.err
	}
	embeddings := make([]*ai.Embedding, len(req.Input))
	for i := range req.Input {
		vec := make([]float32, e.dim)
		vec[0] = float32(i + 1)
		embeddings[i] = &ai.Embedding{Embedding: vec}
	}
	return &ai.EmbedResponse{Embeddings: embeddings}, nil
}

// emptyEmbedder returns no embeddings regardless of input.
type emptyEmbedder struct{}

func (e *emptyEmbedder) Name() string { return "empty-embedder" }

func (e *emptyEmbedder) Register(_ api.Registry) {}

func (e *emptyEmbedder) Embed(_ context.Context, _ *ai.EmbedRequest) (*ai.EmbedResponse, error) {
	return &ai.EmbedResponse{Embeddings: []*ai.Embedding{}}, nil
}

func TestNew_Validation(t *testing.T) {
	t.Parallel()

	if _, err := New(nil, 768, nil); err == nil {
		t.Error("New(nil embedder) expected error, got nil")
	}
	if _, err := New(&countingEmbedder{dim: 8}, 0, nil); err == nil {
		t.Error("New(dim=0) expected error, got nil")
	}
	if _, err := New(&countingEmbedder{dim: 8}, 768, nil); err != nil {
		t.Errorf("New() unexpected error: %v", err)
	}
}

func TestEmbedTexts(t *testing.T) {
	t.Parallel()

	emb := &countingEmbedder{dim: 8}
	svc, err := New(emb, 8, nil)
	if err != nil {
		t.Fatalf("New() unexpected error: %v", err)
	}

	vectors, err := svc.EmbedTexts(context.Background(), []string{"one", "two", "three"})
	if err != nil {
		t.Fatalf("EmbedTexts() unexpected error: %v", err)
	}

	if got, want := len(vectors), 3; got != want {
		t.Fatalf("EmbedTexts() returned %d vectors, want %d", got, want)
	}
	for i, vec := range vectors {
		if got, want := len(vec), 8; got != want {
			t.Errorf("vector[%d] dim = %d, want %d", i, got, want)
		}
	}
	if n := emb.calls.Load(); n != 1 {
		t.Errorf("embedder called %d times, want 1 (single batch)", n)
	}
}

func TestEmbedTexts_Empty(t *testing.T) {
	t.Parallel()

	svc, err := New(&countingEmbedder{dim: 8}, 8, nil)
	if err != nil {
		t.Fatalf("New() unexpected error: %v", err)
	}

	vectors, err := svc.EmbedTexts(context.Background(), nil)
	if err != nil {
		t.Errorf("EmbedTexts(nil) unexpected error: %v", err)
	}
	if vectors != nil {
		t.Errorf("EmbedTexts(nil) = %v, want nil", vectors)
	}
}

func TestEmbedTexts_Batching(t *testing.T) {
	t.Parallel()

	emb := &countingEmbedder{dim: 4}
	svc, err := New(emb, 4, nil)
	if err != nil {
		t.Fatalf("New() unexpected error: %v", err)
	}
	svc.batchSize = 2

	texts := []string{"a", "b", "c", "d", "e"}
	vectors, err := svc.EmbedTexts(context.Background(), texts)
	if err != nil {
		t.Fatalf("EmbedTexts() unexpected error: %v", err)
	}

	if got, want := len(vectors), 5; got != want {
		t.Errorf("EmbedTexts() returned %d vectors, want %d", got, want)
	}
	if n := emb.calls.Load(); n != 3 {
		t.Errorf("embedder called %d times, want 3 (batches of 2)", n)
	}
}

func TestEmbedTexts_EmbedderError(t *testing.T) {
	t.Parallel()

	emb := &countingEmbedder{dim: 4, err: errors.New("quota exceeded")}
	svc, err := New(emb, 4, nil)
	if err != nil {
		t.Fatalf("New() unexpected error: %v", err)
	}

	if _, err := svc.EmbedTexts(context.Background(), []string{"a"}); err == nil {
		t.Error("EmbedTexts() expected error from failing embedder, got nil")
	}
}

func TestEmbedTexts_CountMismatch(t *testing.T) {
	t.Parallel()

	svc, err := New(&emptyEmbedder{}, 4, nil)
	if err != nil {
		t.Fatalf("New() unexpected error: %v", err)
	}

	if _, err := svc.EmbedTexts(context.Background(), []string{"a"}); err == nil {
		t.Error("EmbedTexts() expected error for embedding count mismatch, got nil")
	}
}

func TestEmbedText(t *testing.T) {
	t.Parallel()

	svc, err := New(&countingEmbedder{dim: 8}, 8, nil)
	if err != nil {
		t.Fatalf("New() unexpected error: %v", err)
	}

	vec, err := svc.EmbedText(context.Background(), "single text")
	if err != nil {
		t.Fatalf("EmbedText() unexpected error: %v", err)
	}
	if got, want := len(vec), 8; got != want {
		t.Errorf("EmbedText() dim = %d, want %d", got, want)
	}
}

func TestCosine(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 0, 0}, []float32{1, 0, 0}, 1},
		{"orthogonal", []float32{1, 0, 0}, []float32{0, 1, 0}, 0},
		{"opposite", []float32{1, 0, 0}, []float32{-1, 0, 0}, -1},
		{"scaled", []float32{1, 2, 3}, []float32{2, 4, 6}, 1},
		{"length mismatch", []float32{1, 0}, []float32{1, 0, 0}, 0},
		{"zero vector", []float32{0, 0, 0}, []float32{1, 0, 0}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := Cosine(tt.a, tt.b)
			if math.Abs(got-tt.want) > 1e-6 {
				t.Errorf("Cosine(%v, %v) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestCosine_PartialSimilarity(t *testing.T) {
	t.Parallel()

	// 45 degrees between (1,0) and (1,1): cos = 1/sqrt(2)
	got := Cosine([]float32{1, 0}, []float32{1, 1})
	want := 1 / math.Sqrt2
	if math.Abs(got-want) > 1e-6 {
		t.Errorf("Cosine() = %v, want %v", got, want)
	}
}
