package metrics

import (
	"context"
	"fmt"

	"github.com/evalforge/evalforge/internal/llm"
)

// ContextualPrecision measures whether relevant retrieval-context nodes are
// ranked above irrelevant ones.
//
// Each node gets a usefulness verdict against the expected output, in
// ranked order. The score is the mean over relevant nodes of the precision
// at that node's rank, so a relevant node buried under irrelevant ones
// drags the score down even though plain precision would not change.
type ContextualPrecision struct {
	client    *llm.Client
	threshold float64
}

// NewContextualPrecision creates the metric with DefaultThreshold unless
// overridden.
func NewContextualPrecision(client *llm.Client, opts ...Option) *ContextualPrecision {
	s := newSettings(opts)
	return &ContextualPrecision{client: client, threshold: s.threshold}
}

// Name implements Metric.
func (m *ContextualPrecision) Name() string { return "contextual_precision" }

// Measure implements Metric. It requires Input, ExpectedOutput, and
// RetrievalContext.
func (m *ContextualPrecision) Measure(ctx context.Context, tc LLMTestCase) (Result, error) {
	if tc.Input == "" {
		return Result{}, fmt.Errorf("contextual precision requires an input")
	}
	if tc.ExpectedOutput == "" {
		return Result{}, fmt.Errorf("contextual precision requires an expected output")
	}
	if len(tc.RetrievalContext) == 0 {
		return Result{}, fmt.Errorf("contextual precision requires a retrieval context")
	}

	var verdicts verdictsResponse
	if err := m.client.GenerateJSON(ctx, precisionVerdictsPrompt(tc.Input, tc.ExpectedOutput, tc.RetrievalContext), &verdicts); err != nil {
		return Result{}, fmt.Errorf("judging retrieval nodes: %w", err)
	}
	if len(verdicts.Verdicts) == 0 {
		return result(m.Name(), 0, m.threshold,
			"The score is 0.00 because the judge returned no verdicts for the retrieval context."), nil
	}

	score := weightedCumulativePrecision(verdicts.Verdicts)

	ranked := make([]rankedVerdict, len(verdicts.Verdicts))
	for i, v := range verdicts.Verdicts {
		ranked[i] = rankedVerdict{Rank: i + 1, Verdict: v.Verdict, Reason: v.Reason}
	}

	var reason reasonResponse
	if err := m.client.GenerateJSON(ctx, precisionReasonPrompt(tc.Input, ranked, formatScore(score)), &reason); err != nil {
		return Result{}, fmt.Errorf("generating reason: %w", err)
	}

	return result(m.Name(), score, m.threshold, reason.Reason), nil
}

// weightedCumulativePrecision averages, over the relevant nodes, the
// precision of the ranking truncated at each relevant node. No relevant
// nodes means 0.
func weightedCumulativePrecision(verdicts []verdict) float64 {
	relevant := 0
	sum := 0.0
	for k, v := range verdicts {
		if v.isYes() {
			relevant++
			sum += float64(relevant) / float64(k+1)
		}
	}
	if relevant == 0 {
		return 0
	}
	return sum / float64(relevant)
}
