package metrics

import (
	"context"
	"fmt"

	"github.com/evalforge/evalforge/internal/llm"
)

// ContextualRecall measures how much of the expected output the retrieval
// context can back up.
//
// The judge walks the expected output sentence by sentence and decides
// whether each sentence is attributable to any retrieval-context node. The
// score is the attributable fraction.
type ContextualRecall struct {
	client    *llm.Client
	threshold float64
}

// NewContextualRecall creates the metric with DefaultThreshold unless
// overridden.
func NewContextualRecall(client *llm.Client, opts ...Option) *ContextualRecall {
	s := newSettings(opts)
	return &ContextualRecall{client: client, threshold: s.threshold}
}

// Name implements Metric.
func (m *ContextualRecall) Name() string { return "contextual_recall" }

// Measure implements Metric. It requires ExpectedOutput and
// RetrievalContext.
func (m *ContextualRecall) Measure(ctx context.Context, tc LLMTestCase) (Result, error) {
	if tc.ExpectedOutput == "" {
		return Result{}, fmt.Errorf("contextual recall requires an expected output")
	}
	if len(tc.RetrievalContext) == 0 {
		return Result{}, fmt.Errorf("contextual recall requires a retrieval context")
	}

	var verdicts verdictsResponse
	if err := m.client.GenerateJSON(ctx, recallVerdictsPrompt(tc.ExpectedOutput, tc.RetrievalContext), &verdicts); err != nil {
		return Result{}, fmt.Errorf("judging sentences: %w", err)
	}
	if len(verdicts.Verdicts) == 0 {
		return result(m.Name(), 0, m.threshold,
			"The score is 0.00 because the judge returned no verdicts for the expected output."), nil
	}

	attributed := 0
	var supportive, unsupportive []string
	for _, v := range verdicts.Verdicts {
		if v.isYes() {
			attributed++
			if v.Reason != "" {
				supportive = append(supportive, v.Reason)
			}
			continue
		}
		if v.Reason != "" {
			unsupportive = append(unsupportive, v.Reason)
		}
	}
	score := ratio(attributed, len(verdicts.Verdicts))

	var reason reasonResponse
	if err := m.client.GenerateJSON(ctx, recallReasonPrompt(tc.ExpectedOutput, supportive, unsupportive, formatScore(score)), &reason); err != nil {
		return Result{}, fmt.Errorf("generating reason: %w", err)
	}

	return result(m.Name(), score, m.threshold, reason.Reason), nil
}
