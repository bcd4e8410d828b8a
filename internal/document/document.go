// Package document loads source material from files, URLs, and crawled
// sites, and splits it into chunks sized for embedding.
package document

import (
	"errors"

	"github.com/google/uuid"
)

// ErrInsufficientChunks indicates a document produced too few chunks to
// build the requested number of contexts. Callers wrap it with the document
// name, the chunk count, and the requested context count.
var ErrInsufficientChunks = errors.New("insufficient chunks")

// Document is a loaded source text.
type Document struct {
	ID      uuid.UUID
	Name    string // display name (file base name or page title)
	Path    string // file path or URL
	Content string
}

// Chunk is a contiguous piece of a document.
type Chunk struct {
	ID         uuid.UUID
	DocumentID uuid.UUID
	Index      int
	Text       string
}

// NewDocument creates a Document with a fresh ID.
func NewDocument(name, path, content string) Document {
	return Document{
		ID:      uuid.New(),
		Name:    name,
		Path:    path,
		Content: content,
	}
}

// ChunkDocument splits doc with the given chunker and assigns chunk IDs.
func ChunkDocument(doc Document, chunker *Chunker) []Chunk {
	pieces := chunker.Split(doc.Content)
	chunks := make([]Chunk, 0, len(pieces))
	for i, text := range pieces {
		chunks = append(chunks, Chunk{
			ID:         uuid.New(),
			DocumentID: doc.ID,
			Index:      i,
			Text:       text,
		})
	}
	return chunks
}

// EstimateTokens estimates the token count of text at ~4 characters per
// token, the usual rule of thumb for English.
func EstimateTokens(text string) int {
	return (len(text) + 3) / 4
}
