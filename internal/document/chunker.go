package document

import (
	"strings"
)

// defaultSeparators is the split hierarchy, tried in order from the largest
// semantic unit to the smallest. The empty string is the character-level
// last resort.
var defaultSeparators = []string{
	"\n\n", // paragraph break
	"\n",   // line break
	". ",   // sentence end
	"? ",   // question end
	"! ",   // exclamation end
	"; ",   // semicolon
	": ",   // colon
	", ",   // comma
	" ",    // space
	"",     // character
}

// ChunkerConfig configures a Chunker.
type ChunkerConfig struct {
	// ChunkSize is the target chunk length in bytes.
	ChunkSize int

	// ChunkOverlap prefixes each chunk after the first with the tail of
	// its predecessor. Must be smaller than ChunkSize.
	ChunkOverlap int
}

// Chunker splits text recursively: it splits on the largest separator
// present, greedily packs the pieces up to ChunkSize, and recurses with
// smaller separators on pieces that are still too large.
type Chunker struct {
	chunkSize    int
	chunkOverlap int
	separators   []string
}

// NewChunker creates a Chunker. Out-of-range config values fall back to
// safe defaults rather than erroring: chunking always has a workable
// interpretation.
func NewChunker(cfg ChunkerConfig) *Chunker {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = 1024
	}
	if cfg.ChunkOverlap < 0 {
		cfg.ChunkOverlap = 0
	}
	if cfg.ChunkOverlap >= cfg.ChunkSize {
		cfg.ChunkOverlap = cfg.ChunkSize / 5
	}
	return &Chunker{
		chunkSize:    cfg.ChunkSize,
		chunkOverlap: cfg.ChunkOverlap,
		separators:   defaultSeparators,
	}
}

// Split splits text into chunks of at most ChunkSize bytes. Whitespace-only
// pieces are discarded; all other content is preserved.
func (c *Chunker) Split(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	chunks := c.split(text, c.separators)

	if c.chunkOverlap > 0 {
		chunks = c.applyOverlap(chunks)
	}

	return chunks
}

// split does one level of recursive splitting using the first separator
// present in text.
func (c *Chunker) split(text string, separators []string) []string {
	separator := ""
	rest := separators
	for i, sep := range separators {
		if sep == "" || strings.Contains(text, sep) {
			separator = sep
			rest = separators[i+1:]
			break
		}
	}

	if separator == "" {
		// Character-level last resort: fixed-size windows on rune
		// boundaries.
		return splitRunes(text, c.chunkSize)
	}

	splits := strings.Split(text, separator)

	var result []string
	var current strings.Builder

	flush := func() {
		content := strings.TrimSpace(current.String())
		if content != "" {
			result = append(result, content)
		}
		current.Reset()
	}

	for i, split := range splits {
		piece := split
		// Keep the separator attached so sentence boundaries survive.
		if i < len(splits)-1 {
			piece = split + separator
		}

		if current.Len() > 0 && current.Len()+len(piece) > c.chunkSize {
			flush()
		}

		if len(piece) > c.chunkSize {
			flush()
			result = append(result, c.split(piece, rest)...)
			continue
		}

		current.WriteString(piece)
	}
	flush()

	return result
}

// applyOverlap prefixes each chunk after the first with the tail of its
// predecessor.
func (c *Chunker) applyOverlap(chunks []string) []string {
	if len(chunks) <= 1 {
		return chunks
	}

	result := make([]string, len(chunks))
	result[0] = chunks[0]
	for i := 1; i < len(chunks); i++ {
		prev := chunks[i-1]
		overlap := min(c.chunkOverlap, len(prev))
		result[i] = prev[len(prev)-overlap:] + chunks[i]
	}
	return result
}

// splitRunes splits text into windows of at most size bytes, never cutting
// inside a multi-byte rune.
func splitRunes(text string, size int) []string {
	var result []string
	var current strings.Builder

	for _, r := range text {
		if current.Len()+len(string(r)) > size && current.Len() > 0 {
			piece := strings.TrimSpace(current.String())
			if piece != "" {
				result = append(result, piece)
			}
			current.Reset()
		}
		current.WriteRune(r)
	}
	if piece := strings.TrimSpace(current.String()); piece != "" {
		result = append(result, piece)
	}

	return result
}
