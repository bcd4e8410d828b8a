// Package benchmark evaluates a retrieval pipeline against a golden
// dataset. For each golden the runner embeds the input, searches the
// vector collection, answers the input from the retrieved context, and
// scores the exchange with the configured metrics. Goldens that carry
// reference context additionally get deterministic rank scores for the
// retriever itself. Reports can be persisted to PostgreSQL and rendered
// as Markdown.
package benchmark

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/evalforge/evalforge/internal/embedding"
	"github.com/evalforge/evalforge/internal/llm"
	"github.com/evalforge/evalforge/internal/metrics"
	"github.com/evalforge/evalforge/internal/synthesis"
	"github.com/evalforge/evalforge/internal/vectorstore"
)

// Defaults for Config fields left zero.
const (
	DefaultTopK        = 3
	DefaultConcurrency = 4
)

// Config controls one evaluation run.
type Config struct {
	// Collection is the vector store collection searched for context.
	Collection string

	// TopK is how many chunks each search retrieves.
	TopK int

	// Concurrency bounds how many goldens are evaluated in parallel.
	Concurrency int
}

// Event reports run progress. Current counts completed cases.
type Event struct {
	Message string
	Current int
	Total   int
}

// Run identifies an evaluation run.
type Run struct {
	ID         uuid.UUID `json:"id"`
	Name       string    `json:"name"`
	Collection string    `json:"collection"`
	TopK       int       `json:"top_k"`
	CreatedAt  time.Time `json:"created_at"`
}

// CaseResult is the evaluation of one golden.
type CaseResult struct {
	Input            string           `json:"input"`
	ActualOutput     string           `json:"actual_output,omitempty"`
	ExpectedOutput   string           `json:"expected_output,omitempty"`
	RetrievalContext []string         `json:"retrieval_context,omitempty"`
	Retrieval        *RetrievalScores `json:"retrieval,omitempty"`
	Results          []metrics.Result `json:"results"`
}

// RetrievalScores are deterministic rank-quality scores for one case,
// computed at the run's top-k against the golden's reference context.
type RetrievalScores struct {
	Precision      float64 `json:"precision"`
	Recall         float64 `json:"recall"`
	NDCG           float64 `json:"ndcg"`
	ReciprocalRank float64 `json:"reciprocal_rank"`
}

// MetricSummary aggregates one metric across all cases.
type MetricSummary struct {
	Metric   string  `json:"metric"`
	Mean     float64 `json:"mean"`
	PassRate float64 `json:"pass_rate"`
	Passed   int     `json:"passed"`
	Total    int     `json:"total"`
}

// RetrievalSummary averages rank quality over the cases that carry
// reference context. MRR is the mean reciprocal rank.
type RetrievalSummary struct {
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	NDCG      float64 `json:"ndcg"`
	MRR       float64 `json:"mrr"`
	Cases     int     `json:"cases"`
}

// Report is the outcome of an evaluation run. Retrieval is nil when no
// golden carried reference context.
type Report struct {
	Run       Run               `json:"run"`
	Cases     []CaseResult      `json:"cases"`
	Summaries []MetricSummary   `json:"summaries"`
	Retrieval *RetrievalSummary `json:"retrieval,omitempty"`
}

// Runner drives evaluation runs.
//
// Runner is safe for concurrent use; each Run is independent.
type Runner struct {
	store    vectorstore.Store
	embedder *embedding.Service
	client   *llm.Client
	metrics  []metrics.Metric
	cfg      Config
	logger   *slog.Logger
	onEvent  func(Event)
}

// Option configures a Runner.
type Option func(*Runner)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithEvents registers a progress callback. The callback is invoked
// from worker goroutines and must be safe for concurrent use.
func WithEvents(fn func(Event)) Option {
	return func(r *Runner) {
		r.onEvent = fn
	}
}

// NewRunner creates a Runner. All four collaborators are required; zero
// Config fields fall back to defaults.
func NewRunner(store vectorstore.Store, embedder *embedding.Service, client *llm.Client, ms []metrics.Metric, cfg Config, opts ...Option) (*Runner, error) {
	if store == nil {
		return nil, fmt.Errorf("vector store is required")
	}
	if embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}
	if client == nil {
		return nil, fmt.Errorf("llm client is required")
	}
	if len(ms) == 0 {
		return nil, fmt.Errorf("at least one metric is required")
	}
	if cfg.Collection == "" {
		return nil, fmt.Errorf("collection is required")
	}
	if cfg.TopK <= 0 {
		cfg.TopK = DefaultTopK
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}

	r := &Runner{
		store:    store,
		embedder: embedder,
		client:   client,
		metrics:  ms,
		cfg:      cfg,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Run evaluates all goldens and returns the aggregated report. The run
// is not persisted; see RunStore.SaveReport.
func (r *Runner) Run(ctx context.Context, name string, goldens []synthesis.Golden) (*Report, error) {
	if len(goldens) == 0 {
		return nil, fmt.Errorf("no goldens to evaluate")
	}

	run := Run{
		ID:         uuid.New(),
		Name:       name,
		Collection: r.cfg.Collection,
		TopK:       r.cfg.TopK,
		CreatedAt:  time.Now().UTC(),
	}
	r.logger.Info("starting evaluation run",
		"run_id", run.ID, "name", name,
		"collection", r.cfg.Collection, "goldens", len(goldens), "metrics", len(r.metrics))

	cases := make([]CaseResult, len(goldens))
	var done atomic.Int64

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.Concurrency)
	for i, golden := range goldens {
		g.Go(func() error {
			cr, err := r.evaluateCase(ctx, golden)
			if err != nil {
				return err
			}
			cases[i] = cr
			n := int(done.Add(1))
			r.emit(fmt.Sprintf("evaluated %q", truncate(golden.Input, 48)), n, len(goldens))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	report := &Report{
		Run:       run,
		Cases:     cases,
		Summaries: summarize(cases),
		Retrieval: summarizeRetrieval(cases),
	}
	r.logger.Info("evaluation run finished", "run_id", run.ID, "cases", len(cases))
	return report, nil
}

// evaluateCase retrieves context for one golden, answers from it, and
// scores the exchange with every metric.
func (r *Runner) evaluateCase(ctx context.Context, golden synthesis.Golden) (CaseResult, error) {
	if golden.Input == "" {
		return CaseResult{}, fmt.Errorf("golden has an empty input")
	}

	vec, err := r.embedder.EmbedText(ctx, golden.Input)
	if err != nil {
		return CaseResult{}, fmt.Errorf("embedding input %q: %w", truncate(golden.Input, 48), err)
	}

	matches, err := r.store.Search(ctx, r.cfg.Collection, vec, r.cfg.TopK)
	if err != nil {
		return CaseResult{}, fmt.Errorf("searching for %q: %w", truncate(golden.Input, 48), err)
	}
	retrieved := make([]string, len(matches))
	for i, m := range matches {
		retrieved[i] = m.Text
	}

	answer, err := r.client.Generate(ctx, answerPrompt(golden.Input, retrieved))
	if err != nil {
		return CaseResult{}, fmt.Errorf("answering %q: %w", truncate(golden.Input, 48), err)
	}

	tc := metrics.LLMTestCase{
		Input:            golden.Input,
		ActualOutput:     answer,
		ExpectedOutput:   golden.ExpectedOutput,
		RetrievalContext: retrieved,
	}

	results := make([]metrics.Result, 0, len(r.metrics))
	for _, m := range r.metrics {
		res, err := m.Measure(ctx, tc)
		if err != nil {
			return CaseResult{}, fmt.Errorf("measuring %s for %q: %w", m.Name(), truncate(golden.Input, 48), err)
		}
		results = append(results, res)
	}

	return CaseResult{
		Input:            golden.Input,
		ActualOutput:     answer,
		ExpectedOutput:   golden.ExpectedOutput,
		RetrievalContext: retrieved,
		Retrieval:        r.scoreRetrieval(golden, matches),
		Results:          results,
	}, nil
}

// scoreRetrieval ranks the search results against the golden's own
// context. Expected IDs are recomputed from the context texts with the
// content-keyed scheme the indexer uses, so the scores are meaningful
// only when the collection was indexed from a dataset containing those
// texts.
func (r *Runner) scoreRetrieval(golden synthesis.Golden, matches []vectorstore.Match) *RetrievalScores {
	if len(golden.Context) == 0 {
		return nil
	}

	ranking := metrics.Ranking{
		Retrieved: make([]string, len(matches)),
		Relevant:  make([]string, len(golden.Context)),
	}
	for i, m := range matches {
		ranking.Retrieved[i] = m.ID.String()
	}
	for i, text := range golden.Context {
		ranking.Relevant[i] = vectorstore.TextID(text).String()
	}

	return &RetrievalScores{
		Precision:      ranking.PrecisionAtK(r.cfg.TopK),
		Recall:         ranking.RecallAtK(r.cfg.TopK),
		NDCG:           ranking.NDCGAtK(r.cfg.TopK),
		ReciprocalRank: ranking.ReciprocalRank(),
	}
}

func (r *Runner) emit(message string, current, total int) {
	if r.onEvent != nil {
		r.onEvent(Event{Message: message, Current: current, Total: total})
	}
}

// summarize aggregates per-metric means and pass rates, preserving the
// metric order of the first case.
func summarize(cases []CaseResult) []MetricSummary {
	var order []string
	acc := make(map[string]*MetricSummary)
	for _, c := range cases {
		for _, res := range c.Results {
			s, ok := acc[res.Name]
			if !ok {
				s = &MetricSummary{Metric: res.Name}
				acc[res.Name] = s
				order = append(order, res.Name)
			}
			s.Mean += res.Score
			s.Total++
			if res.Passed {
				s.Passed++
			}
		}
	}

	summaries := make([]MetricSummary, 0, len(order))
	for _, name := range order {
		s := acc[name]
		if s.Total > 0 {
			s.Mean /= float64(s.Total)
			s.PassRate = float64(s.Passed) / float64(s.Total)
		}
		summaries = append(summaries, *s)
	}
	return summaries
}

// summarizeRetrieval averages the per-case rank scores, or returns nil
// when no case carried reference context.
func summarizeRetrieval(cases []CaseResult) *RetrievalSummary {
	var s RetrievalSummary
	for _, c := range cases {
		if c.Retrieval == nil {
			continue
		}
		s.Precision += c.Retrieval.Precision
		s.Recall += c.Retrieval.Recall
		s.NDCG += c.Retrieval.NDCG
		s.MRR += c.Retrieval.ReciprocalRank
		s.Cases++
	}
	if s.Cases == 0 {
		return nil
	}

	n := float64(s.Cases)
	s.Precision /= n
	s.Recall /= n
	s.NDCG /= n
	s.MRR /= n
	return &s
}

// answerPrompt asks the model to answer from retrieved context only.
// The answer is judged afterwards, so it must not draw on outside
// knowledge.
func answerPrompt(input string, contexts []string) string {
	var b strings.Builder
	b.WriteString("Answer the question using ONLY the provided context. ")
	b.WriteString("If the context does not contain the answer, say that it does not.\n\nContext:\n")
	if len(contexts) == 0 {
		b.WriteString("(no context retrieved)\n")
	}
	for i, c := range contexts {
		fmt.Fprintf(&b, "%d. %s\n", i+1, c)
	}
	fmt.Fprintf(&b, "\nQuestion:\n%s\n\nAnswer:\n", input)
	return b.String()
}

// truncate shortens s for log and event messages.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}
