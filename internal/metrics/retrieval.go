package metrics

import "math"

// Ranking pairs one query's ranked retrieval results with the IDs that
// should have been retrieved. The deterministic metrics below need no
// judge; benchmark runs use them to score the retriever separately from
// the generator.
//
// Duplicate retrieved IDs earn credit only once.
type Ranking struct {
	Retrieved []string // ranked, best first
	Relevant  []string // expected IDs, order ignored
}

func (r Ranking) relevantSet() map[string]bool {
	set := make(map[string]bool, len(r.Relevant))
	for _, id := range r.Relevant {
		set[id] = true
	}
	return set
}

// hitsAtK counts distinct relevant IDs in the top k results.
func (r Ranking) hitsAtK(k int) int {
	relevant := r.relevantSet()
	seen := make(map[string]bool)
	hits := 0
	for i, id := range r.Retrieved {
		if i >= k {
			break
		}
		if relevant[id] && !seen[id] {
			seen[id] = true
			hits++
		}
	}
	return hits
}

// PrecisionAtK returns the fraction of the top k ranks filled by relevant
// IDs. Retrieving fewer than k results counts against the score.
func (r Ranking) PrecisionAtK(k int) float64 {
	if k <= 0 {
		return 0
	}
	return float64(r.hitsAtK(k)) / float64(k)
}

// RecallAtK returns the fraction of relevant IDs found in the top k.
func (r Ranking) RecallAtK(k int) float64 {
	if k <= 0 || len(r.Relevant) == 0 {
		return 0
	}
	return float64(r.hitsAtK(k)) / float64(len(r.Relevant))
}

// ReciprocalRank returns 1/rank of the first relevant result, or 0 when
// nothing relevant was retrieved.
func (r Ranking) ReciprocalRank() float64 {
	relevant := r.relevantSet()
	for i, id := range r.Retrieved {
		if relevant[id] {
			return 1 / float64(i+1)
		}
	}
	return 0
}

// NDCGAtK returns the normalized discounted cumulative gain with binary
// relevance: hits near the top are worth more, and the result is scaled
// against a perfect ranking of the same relevant set.
func (r Ranking) NDCGAtK(k int) float64 {
	if k <= 0 || len(r.Relevant) == 0 {
		return 0
	}

	relevant := r.relevantSet()
	seen := make(map[string]bool)
	dcg := 0.0
	for i, id := range r.Retrieved {
		if i >= k {
			break
		}
		if relevant[id] && !seen[id] {
			seen[id] = true
			dcg += 1 / math.Log2(float64(i)+2)
		}
	}

	ideal := min(len(r.Relevant), k)
	idcg := 0.0
	for i := range ideal {
		idcg += 1 / math.Log2(float64(i)+2)
	}
	if idcg == 0 {
		return 0
	}
	return dcg / idcg
}
