package synthesis

import (
	"context"
	"fmt"
	"sort"

	"github.com/evalforge/evalforge/internal/document"
	"github.com/evalforge/evalforge/internal/embedding"
)

// qualityResponse is the critic verdict for contexts and inputs.
type qualityResponse struct {
	Score  float64 `json:"score"`
	Reason string  `json:"reason"`
}

// builtContext is one accepted group of chunk texts plus its critic score.
type builtContext struct {
	texts []string
	score float64
}

// buildContexts groups a document's chunks into up to MaxContextsPerDocument
// contexts. Each context starts from a randomly ordered seed chunk and pulls
// in the most similar remaining chunks above SimilarityThreshold, capped at
// MaxChunksPerContext. A critic scores every candidate; below-threshold
// candidates are re-drawn from the next seed up to MaxQualityRetries times
// before the best-scoring candidate is kept.
func (s *Synthesizer) buildContexts(ctx context.Context, chunks []document.Chunk, vectors [][]float32) ([]builtContext, error) {
	if len(chunks) != len(vectors) {
		return nil, fmt.Errorf("chunk/vector count mismatch: %d chunks, %d vectors", len(chunks), len(vectors))
	}

	perm := s.randPerm(len(chunks))
	want := min(s.cfg.MaxContextsPerDocument, len(chunks))

	contexts := make([]builtContext, 0, want)
	cursor := 0
	for range want {
		var best builtContext
		accepted := false

		for attempt := 0; attempt <= s.cfg.MaxQualityRetries; attempt++ {
			seed := perm[cursor%len(perm)]
			cursor++

			texts := s.assembleContext(seed, chunks, vectors)

			var verdict qualityResponse
			if err := s.client.GenerateJSON(ctx, contextQualityPrompt(texts), &verdict); err != nil {
				return nil, fmt.Errorf("scoring context: %w", err)
			}
			score := clamp01(verdict.Score)

			if best.texts == nil || score > best.score {
				best = builtContext{texts: texts, score: score}
			}
			if score >= s.cfg.QualityThreshold {
				accepted = true
				break
			}
			s.logger.Debug("context below quality threshold, re-drawing",
				"score", score,
				"threshold", s.cfg.QualityThreshold,
				"attempt", attempt+1,
				"reason", verdict.Reason,
			)
		}

		if !accepted {
			s.logger.Debug("keeping best context after exhausting retries",
				"score", best.score,
				"threshold", s.cfg.QualityThreshold,
			)
		}
		contexts = append(contexts, best)
	}

	return contexts, nil
}

// assembleContext collects the seed chunk text plus the most similar other
// chunks at or above SimilarityThreshold, capped at MaxChunksPerContext.
func (s *Synthesizer) assembleContext(seed int, chunks []document.Chunk, vectors [][]float32) []string {
	type scored struct {
		idx int
		sim float64
	}

	var neighbors []scored
	for j := range chunks {
		if j == seed {
			continue
		}
		sim := embedding.Cosine(vectors[seed], vectors[j])
		if sim >= s.cfg.SimilarityThreshold {
			neighbors = append(neighbors, scored{idx: j, sim: sim})
		}
	}
	sort.Slice(neighbors, func(a, b int) bool { return neighbors[a].sim > neighbors[b].sim })

	limit := s.cfg.MaxChunksPerContext - 1
	if len(neighbors) > limit {
		neighbors = neighbors[:limit]
	}

	texts := make([]string, 0, len(neighbors)+1)
	texts = append(texts, chunks[seed].Text)
	for _, n := range neighbors {
		texts = append(texts, chunks[n.idx].Text)
	}
	return texts
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
