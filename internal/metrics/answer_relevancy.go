package metrics

import (
	"context"
	"fmt"

	"github.com/evalforge/evalforge/internal/llm"
)

// AnswerRelevancy measures how relevant the actual output is to the input.
//
// The actual output is broken into statements; each statement gets a
// yes/idk/no relevance verdict against the input. The score is the fraction
// of statements not judged 'no'.
type AnswerRelevancy struct {
	client    *llm.Client
	threshold float64
}

// NewAnswerRelevancy creates the metric with DefaultThreshold unless
// overridden.
func NewAnswerRelevancy(client *llm.Client, opts ...Option) *AnswerRelevancy {
	s := newSettings(opts)
	return &AnswerRelevancy{client: client, threshold: s.threshold}
}

// Name implements Metric.
func (m *AnswerRelevancy) Name() string { return "answer_relevancy" }

// Measure implements Metric. It requires Input and ActualOutput.
func (m *AnswerRelevancy) Measure(ctx context.Context, tc LLMTestCase) (Result, error) {
	if tc.Input == "" {
		return Result{}, fmt.Errorf("answer relevancy requires an input")
	}
	if tc.ActualOutput == "" {
		return Result{}, fmt.Errorf("answer relevancy requires an actual output")
	}

	var stmts statementsResponse
	if err := m.client.GenerateJSON(ctx, statementsPrompt(tc.ActualOutput), &stmts); err != nil {
		return Result{}, fmt.Errorf("extracting statements: %w", err)
	}
	if len(stmts.Statements) == 0 {
		return result(m.Name(), 0, m.threshold,
			"The score is 0.00 because no statements could be extracted from the actual output."), nil
	}

	var verdicts verdictsResponse
	if err := m.client.GenerateJSON(ctx, relevancyVerdictsPrompt(tc.Input, stmts.Statements), &verdicts); err != nil {
		return Result{}, fmt.Errorf("judging statements: %w", err)
	}
	if len(verdicts.Verdicts) == 0 {
		return result(m.Name(), 0, m.threshold,
			"The score is 0.00 because the judge returned no verdicts for the extracted statements."), nil
	}

	relevant := 0
	var irrelevantReasons []string
	for _, v := range verdicts.Verdicts {
		if v.isNo() {
			if v.Reason != "" {
				irrelevantReasons = append(irrelevantReasons, v.Reason)
			}
			continue
		}
		relevant++
	}
	score := ratio(relevant, len(verdicts.Verdicts))

	var reason reasonResponse
	if err := m.client.GenerateJSON(ctx, relevancyReasonPrompt(irrelevantReasons, tc.Input, formatScore(score)), &reason); err != nil {
		return Result{}, fmt.Errorf("generating reason: %w", err)
	}

	return result(m.Name(), score, m.threshold, reason.Reason), nil
}
