package metrics

import (
	"context"
	"fmt"

	"github.com/evalforge/evalforge/internal/llm"
)

// ContextualRelevancy measures how much of the retrieval context is
// actually relevant to the input.
//
// Statements are extracted per context node and judged against the input;
// the score is the relevant fraction across all nodes.
type ContextualRelevancy struct {
	client    *llm.Client
	threshold float64
}

// statementVerdict is a statement extracted from a context node plus its
// relevance verdict.
type statementVerdict struct {
	Statement string `json:"statement"`
	Verdict   string `json:"verdict"`
	Reason    string `json:"reason,omitempty"`
}

func (v statementVerdict) isYes() bool {
	return verdict{Verdict: v.Verdict}.isYes()
}

type statementVerdictsResponse struct {
	Verdicts []statementVerdict `json:"verdicts"`
}

// NewContextualRelevancy creates the metric with DefaultThreshold unless
// overridden.
func NewContextualRelevancy(client *llm.Client, opts ...Option) *ContextualRelevancy {
	s := newSettings(opts)
	return &ContextualRelevancy{client: client, threshold: s.threshold}
}

// Name implements Metric.
func (m *ContextualRelevancy) Name() string { return "contextual_relevancy" }

// Measure implements Metric. It requires Input and RetrievalContext.
func (m *ContextualRelevancy) Measure(ctx context.Context, tc LLMTestCase) (Result, error) {
	if tc.Input == "" {
		return Result{}, fmt.Errorf("contextual relevancy requires an input")
	}
	if len(tc.RetrievalContext) == 0 {
		return Result{}, fmt.Errorf("contextual relevancy requires a retrieval context")
	}

	total := 0
	relevantCount := 0
	var relevant, irrelevancies []string
	for i, node := range tc.RetrievalContext {
		var verdicts statementVerdictsResponse
		if err := m.client.GenerateJSON(ctx, nodeStatementsPrompt(tc.Input, node), &verdicts); err != nil {
			return Result{}, fmt.Errorf("judging context node %d: %w", i+1, err)
		}
		for _, v := range verdicts.Verdicts {
			total++
			if v.isYes() {
				relevantCount++
				relevant = append(relevant, v.Statement)
				continue
			}
			if v.Reason != "" {
				irrelevancies = append(irrelevancies, v.Reason)
			}
		}
	}
	if total == 0 {
		return result(m.Name(), 0, m.threshold,
			"The score is 0.00 because no statements could be extracted from the retrieval context."), nil
	}
	score := ratio(relevantCount, total)

	var reason reasonResponse
	if err := m.client.GenerateJSON(ctx, contextualRelevancyReasonPrompt(tc.Input, irrelevancies, relevant, formatScore(score)), &reason); err != nil {
		return Result{}, fmt.Errorf("generating reason: %w", err)
	}

	return result(m.Name(), score, m.threshold, reason.Reason), nil
}
