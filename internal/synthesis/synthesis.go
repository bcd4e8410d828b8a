// Package synthesis generates evaluation goldens: inputs (optionally with
// expected outputs) grounded in document contexts, prepared contexts, or
// pure styling instructions.
//
// The document pipeline chunks each document, embeds the chunks, groups
// cosine-similar chunks into contexts, and has the model generate one input
// per context. Generated inputs pass through evolution rewrites and a
// quality filter before they become goldens.
package synthesis

import (
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/evalforge/evalforge/internal/config"
	"github.com/evalforge/evalforge/internal/document"
	"github.com/evalforge/evalforge/internal/embedding"
	"github.com/evalforge/evalforge/internal/llm"
)

// Golden is one synthesized evaluation case.
type Golden struct {
	Input          string         `json:"input"`
	ExpectedOutput string         `json:"expected_output,omitempty"`
	Context        []string       `json:"context,omitempty"`
	SourceFile     string         `json:"source_file,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
}

// StylingConfig steers the wording of generated inputs. All fields are
// optional; empty fields leave the prompts generic.
type StylingConfig struct {
	// Scenario describes the environment the inputs should assume,
	// e.g. "customer asking about a software product".
	Scenario string

	// Task describes what the evaluated system is supposed to do with an
	// input, e.g. "answer questions from product documentation".
	Task string

	// InputFormat constrains the shape of generated inputs,
	// e.g. "a single question under 30 words".
	InputFormat string

	// ExpectedOutputFormat constrains generated expected outputs,
	// e.g. "a short paragraph citing the context".
	ExpectedOutputFormat string
}

// Stage identifies a pipeline phase in progress events.
type Stage string

const (
	StageLoad     Stage = "load"
	StageChunk    Stage = "chunk"
	StageContext  Stage = "context"
	StageGenerate Stage = "generate"
	StageEvolve   Stage = "evolve"
	StageFilter   Stage = "filter"
	StageDone     Stage = "done"
)

// Event reports pipeline progress. Current/Total are 0 when a stage has no
// meaningful count.
type Event struct {
	Stage   Stage
	Message string
	Current int
	Total   int
}

// Option configures a Synthesizer.
type Option func(*Synthesizer)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Synthesizer) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithStyling sets the styling configuration.
func WithStyling(styling StylingConfig) Option {
	return func(s *Synthesizer) {
		s.styling = styling
	}
}

// WithEvents registers a progress callback. The callback is invoked from
// worker goroutines and must be safe for concurrent use.
func WithEvents(fn func(Event)) Option {
	return func(s *Synthesizer) {
		s.onEvent = fn
	}
}

// WithEvolutions sets the evolution distribution. Weights are relative;
// evolutions with non-positive weight are never picked.
func WithEvolutions(weights map[Evolution]float64) Option {
	return func(s *Synthesizer) {
		if len(weights) > 0 {
			s.evolutions = weights
		}
	}
}

// WithExpectedOutput toggles expected-output generation (default on).
func WithExpectedOutput(enabled bool) Option {
	return func(s *Synthesizer) {
		s.includeExpected = enabled
	}
}

// WithLoader replaces the document loading step of
// GenerateFromDocuments. The default reads filesystem paths only; a
// document.Loader adds URL fetching and crawling.
func WithLoader(fn func(paths []string) ([]document.Document, error)) Option {
	return func(s *Synthesizer) {
		if fn != nil {
			s.loadDocs = fn
		}
	}
}

// WithRand sets the random source. Tests inject a fixed seed for
// deterministic seed-chunk and evolution picks.
func WithRand(rng *rand.Rand) Option {
	return func(s *Synthesizer) {
		if rng != nil {
			s.rng = rng
		}
	}
}

// Synthesizer generates goldens through a single LLM client and, for the
// document pipeline, an embedding service.
//
// Safe for concurrent use; the document pipeline itself fans out across
// documents.
type Synthesizer struct {
	client          *llm.Client
	embedder        *embedding.Service
	cfg             config.SynthesisConfig
	styling         StylingConfig
	evolutions      map[Evolution]float64
	includeExpected bool
	onEvent         func(Event)
	logger          *slog.Logger
	loadDocs        func(paths []string) ([]document.Document, error)

	mu  sync.Mutex // guards rng
	rng *rand.Rand
}

// New creates a Synthesizer. embedder may be nil when only
// GenerateFromContexts / GenerateFromScratch are used.
func New(client *llm.Client, embedder *embedding.Service, cfg config.SynthesisConfig, opts ...Option) *Synthesizer {
	s := &Synthesizer{
		client:          client,
		embedder:        embedder,
		cfg:             normalizeConfig(cfg),
		evolutions:      defaultEvolutionWeights(),
		includeExpected: true,
		logger:          slog.Default(),
		loadDocs:        document.Load,
		rng:             rand.New(rand.NewSource(time.Now().UnixNano())), // #nosec G404 -- sampling, not crypto
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// normalizeConfig fills zero values with the package defaults so the
// Synthesizer works without a loaded config file.
func normalizeConfig(cfg config.SynthesisConfig) config.SynthesisConfig {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = config.DefaultChunkSize
	}
	if cfg.ChunkOverlap < 0 {
		cfg.ChunkOverlap = config.DefaultChunkOverlap
	}
	if cfg.MaxContextsPerDocument <= 0 {
		cfg.MaxContextsPerDocument = config.DefaultMaxContextsPerDocument
	}
	if cfg.MaxChunksPerContext <= 0 {
		cfg.MaxChunksPerContext = config.DefaultMaxChunksPerContext
	}
	if cfg.SimilarityThreshold <= 0 {
		cfg.SimilarityThreshold = config.DefaultSimilarityThreshold
	}
	if cfg.QualityThreshold <= 0 {
		cfg.QualityThreshold = config.DefaultQualityThreshold
	}
	if cfg.MaxQualityRetries <= 0 {
		cfg.MaxQualityRetries = config.DefaultMaxQualityRetries
	}
	if cfg.NumEvolutions < 0 {
		cfg.NumEvolutions = config.DefaultNumEvolutions
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = config.DefaultConcurrency
	}
	return cfg
}

// emit delivers a progress event when a callback is registered.
func (s *Synthesizer) emit(stage Stage, message string, current, total int) {
	if s.onEvent == nil {
		return
	}
	s.onEvent(Event{Stage: stage, Message: message, Current: current, Total: total})
}

// randIntn returns a random int in [0, n). Safe for concurrent use.
func (s *Synthesizer) randIntn(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Intn(n)
}

// randFloat64 returns a random float in [0, 1). Safe for concurrent use.
func (s *Synthesizer) randFloat64() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Float64()
}

// randPerm returns a random permutation of [0, n). Safe for concurrent use.
func (s *Synthesizer) randPerm(n int) []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Perm(n)
}
