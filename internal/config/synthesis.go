package config

// Synthesis defaults. These mirror the knobs on SynthesisConfig; each is a
// deliberate starting point for document-grounded golden generation rather
// than a hard limit.
const (
	// DefaultChunkSize is the character budget per document chunk.
	DefaultChunkSize = 1024

	// DefaultChunkOverlap is the number of characters shared between
	// adjacent chunks.
	DefaultChunkOverlap = 0

	// DefaultMaxContextsPerDocument bounds how many contexts are built
	// from a single document.
	DefaultMaxContextsPerDocument = 3

	// DefaultMaxChunksPerContext bounds how many similar chunks are
	// grouped into one context.
	DefaultMaxChunksPerContext = 3

	// DefaultSimilarityThreshold is the minimum cosine similarity for a
	// chunk to join a context seeded by another chunk.
	DefaultSimilarityThreshold = 0.5

	// DefaultQualityThreshold is the minimum critic score (0..1) for a
	// context or generated input to be accepted.
	DefaultQualityThreshold = 0.5

	// DefaultMaxQualityRetries bounds how often a below-threshold context
	// or input is re-drawn before the best-scoring candidate is kept.
	DefaultMaxQualityRetries = 3

	// DefaultNumEvolutions is how many evolution rewrites each generated
	// input goes through.
	DefaultNumEvolutions = 1

	// DefaultConcurrency is the number of documents synthesized in
	// parallel.
	DefaultConcurrency = 4
)

// SynthesisConfig holds the golden-generation parameters.
//
// ChunkSize and ChunkOverlap drive the recursive splitter. The remaining
// knobs drive context construction and input filtration: contexts group up
// to MaxChunksPerContext chunks whose cosine similarity to the seed chunk is
// at least SimilarityThreshold, at most MaxContextsPerDocument contexts per
// document, and every context and generated input must reach
// QualityThreshold within MaxQualityRetries attempts.
type SynthesisConfig struct {
	ChunkSize              int     `mapstructure:"chunk_size" json:"chunk_size"`
	ChunkOverlap           int     `mapstructure:"chunk_overlap" json:"chunk_overlap"`
	MaxContextsPerDocument int     `mapstructure:"max_contexts_per_document" json:"max_contexts_per_document"`
	MaxChunksPerContext    int     `mapstructure:"max_chunks_per_context" json:"max_chunks_per_context"`
	SimilarityThreshold    float64 `mapstructure:"similarity_threshold" json:"similarity_threshold"`
	QualityThreshold       float64 `mapstructure:"quality_threshold" json:"quality_threshold"`
	MaxQualityRetries      int     `mapstructure:"max_quality_retries" json:"max_quality_retries"`
	NumEvolutions          int     `mapstructure:"num_evolutions" json:"num_evolutions"`
	Concurrency            int     `mapstructure:"concurrency" json:"concurrency"`
}
