// Package vectorstore persists embedded text chunks and serves cosine
// similarity search over them. Three backends implement the same Store
// interface: PostgreSQL with pgvector (the default), Qdrant over its
// REST API, and Redis with a RediSearch vector index.
//
// Collections are independent namespaces with a fixed vector dimension.
// Collection names double as table, index, and key-prefix components in
// the backends, so they are restricted to a conservative identifier
// alphabet.
package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"github.com/google/uuid"
)

// ErrInvalidCollection indicates a collection name outside the allowed
// alphabet. Names become SQL identifiers and Redis key prefixes, so
// they are validated before use.
var ErrInvalidCollection = errors.New("invalid collection name")

// collectionPattern restricts collection names to lowercase identifiers
// safe to embed in table names, index names, and key prefixes.
var collectionPattern = regexp.MustCompile(`^[a-z][a-z0-9_]{0,62}$`)

// Record is one embedded chunk stored in a collection.
type Record struct {
	ID     uuid.UUID
	Vector []float32
	Text   string
	Source string
}

// Match is a search result. Score is cosine similarity in [0, 1] where
// higher means closer. The stored vector is not returned; only ID,
// Text, and Source are populated on the embedded Record.
type Match struct {
	Record
	Score float64
}

// Store is the backend-neutral interface over a vector database.
//
// Implementations are safe for concurrent use.
type Store interface {
	// EnsureCollection creates the collection if it does not exist.
	// Calling it again with the same dimension is a no-op.
	EnsureCollection(ctx context.Context, name string, dim int) error

	// Upsert inserts or replaces records by ID. Every record must carry
	// a non-nil ID and a non-empty vector.
	Upsert(ctx context.Context, collection string, recs []Record) error

	// Search returns the k records closest to the query vector, most
	// similar first.
	Search(ctx context.Context, collection string, vector []float32, k int) ([]Match, error)

	// Delete removes records by ID. Missing IDs are ignored.
	Delete(ctx context.Context, collection string, ids []uuid.UUID) error

	// Close releases resources held by the store.
	Close()
}

// TextID derives a deterministic record ID from chunk text. Indexing the
// same text twice upserts instead of duplicating, and rank scoring can
// recompute the expected IDs for a golden from its context texts alone.
func TextID(text string) uuid.UUID {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(text))
}

// validateCollection rejects names that cannot be safely embedded in
// identifiers across all backends.
func validateCollection(name string) error {
	if !collectionPattern.MatchString(name) {
		return fmt.Errorf("%w: %q (want lowercase letters, digits, underscores; max 63 chars)", ErrInvalidCollection, name)
	}
	return nil
}

// validateRecords checks the per-record requirements shared by all
// backends before anything is written.
func validateRecords(recs []Record) error {
	for i, rec := range recs {
		if rec.ID == uuid.Nil {
			return fmt.Errorf("record %d has no id", i)
		}
		if len(rec.Vector) == 0 {
			return fmt.Errorf("record %s has an empty vector", rec.ID)
		}
	}
	return nil
}
