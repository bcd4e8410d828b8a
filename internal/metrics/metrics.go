// Package metrics implements evaluation metrics for RAG pipelines: four
// LLM-judged metrics (answer relevancy and the contextual precision /
// recall / relevancy family) plus deterministic retrieval rankings.
//
// LLM metrics follow a shared shape: extract claims or verdicts through
// strict JSON prompts, compute the score as a ratio, then ask the model for
// a one-sentence reason that cites the score. A metric with nothing to
// judge (no statements, no verdicts) scores 0 rather than erroring.
package metrics

import (
	"context"
	"fmt"
	"strings"

	"github.com/evalforge/evalforge/internal/llm"
)

// DefaultThreshold is the passing score used when no override is given.
const DefaultThreshold = 0.5

// LLMTestCase is one evaluation example. Which fields are required depends
// on the metric.
type LLMTestCase struct {
	Input            string   `json:"input"`
	ActualOutput     string   `json:"actual_output"`
	ExpectedOutput   string   `json:"expected_output,omitempty"`
	RetrievalContext []string `json:"retrieval_context,omitempty"`
}

// Result is a scored metric outcome.
type Result struct {
	Name      string  `json:"name"`
	Score     float64 `json:"score"`
	Threshold float64 `json:"threshold"`
	Passed    bool    `json:"passed"`
	Reason    string  `json:"reason,omitempty"`
}

// Metric scores a single test case.
type Metric interface {
	Name() string
	Measure(ctx context.Context, tc LLMTestCase) (Result, error)
}

// Option adjusts metric settings.
type Option func(*settings)

type settings struct {
	threshold float64
}

func newSettings(opts []Option) settings {
	s := settings{threshold: DefaultThreshold}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

// WithThreshold overrides the passing threshold.
func WithThreshold(threshold float64) Option {
	return func(s *settings) {
		s.threshold = threshold
	}
}

// Names returns the registered LLM metric names.
func Names() []string {
	return []string{
		"answer_relevancy",
		"contextual_precision",
		"contextual_recall",
		"contextual_relevancy",
	}
}

// ByName constructs a metric from its registered name.
func ByName(name string, client *llm.Client, opts ...Option) (Metric, error) {
	switch name {
	case "answer_relevancy":
		return NewAnswerRelevancy(client, opts...), nil
	case "contextual_precision":
		return NewContextualPrecision(client, opts...), nil
	case "contextual_recall":
		return NewContextualRecall(client, opts...), nil
	case "contextual_relevancy":
		return NewContextualRelevancy(client, opts...), nil
	default:
		return nil, fmt.Errorf("unknown metric %q (known: %s)", name, strings.Join(Names(), ", "))
	}
}

// verdict is one yes/idk/no judgment. Reason is present only when the
// prompt asks for one.
type verdict struct {
	Verdict string `json:"verdict"`
	Reason  string `json:"reason,omitempty"`
}

// isYes reports whether the verdict is affirmative.
func (v verdict) isYes() bool {
	return strings.EqualFold(strings.TrimSpace(v.Verdict), "yes")
}

// isNo reports whether the verdict is negative.
func (v verdict) isNo() bool {
	return strings.EqualFold(strings.TrimSpace(v.Verdict), "no")
}

type verdictsResponse struct {
	Verdicts []verdict `json:"verdicts"`
}

type statementsResponse struct {
	Statements []string `json:"statements"`
}

type reasonResponse struct {
	Reason string `json:"reason"`
}

// ratio divides, mapping an empty denominator to 0.
func ratio(numerator, denominator int) float64 {
	if denominator == 0 {
		return 0
	}
	return float64(numerator) / float64(denominator)
}

// formatScore renders a score the way reason prompts expect it.
func formatScore(score float64) string {
	return fmt.Sprintf("%.2f", score)
}

// result assembles a Result, deriving Passed from the threshold.
func result(name string, score, threshold float64, reason string) Result {
	return Result{
		Name:      name,
		Score:     score,
		Threshold: threshold,
		Passed:    score >= threshold,
		Reason:    reason,
	}
}
