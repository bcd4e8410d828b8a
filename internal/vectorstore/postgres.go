package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

var _ Store = (*Postgres)(nil)

// searchTimeout bounds vector search queries so a cold HNSW index or an
// overloaded server cannot block callers indefinitely.
const searchTimeout = 10 * time.Second

// Postgres stores collections as per-collection tables (vec_<name>)
// with a pgvector embedding column and an HNSW cosine index. The
// collections catalog table records each collection's dimension.
//
// Postgres is safe for concurrent use by multiple goroutines.
type Postgres struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewPostgres creates a pgvector-backed store on an existing pool. The
// pool remains owned by the caller; Close does not close it.
func NewPostgres(pool *pgxpool.Pool, logger *slog.Logger) (*Postgres, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Postgres{pool: pool, logger: logger}, nil
}

// pgTable returns the backing table name for a collection. Callers must
// validate the collection name first; the result is interpolated into
// SQL as an identifier.
func pgTable(collection string) string {
	return "vec_" + collection
}

// EnsureCollection registers the collection in the catalog and creates
// its table and HNSW index. A second call with a different dimension
// fails rather than silently serving mixed-dimension data.
func (p *Postgres) EnsureCollection(ctx context.Context, name string, dim int) error {
	if err := validateCollection(name); err != nil {
		return err
	}
	if dim <= 0 {
		return fmt.Errorf("dimension must be positive, got %d", dim)
	}

	var existing int
	err := p.pool.QueryRow(ctx, `SELECT dim FROM collections WHERE name = $1`, name).Scan(&existing)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		// New collection, create below.
	case err != nil:
		return fmt.Errorf("checking collection %q: %w", name, err)
	case existing != dim:
		return fmt.Errorf("collection %q has dimension %d, requested %d", name, existing, dim)
	default:
		return nil
	}

	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning collection transaction: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
				p.logger.Debug("collection transaction rollback failed", "collection", name, "error", rbErr)
			}
		}
	}()

	if _, err := tx.Exec(ctx,
		`INSERT INTO collections (name, dim) VALUES ($1, $2) ON CONFLICT (name) DO NOTHING`,
		name, dim,
	); err != nil {
		return fmt.Errorf("registering collection %q: %w", name, err)
	}

	table := pgTable(name)
	// The table name passes validateCollection, so identifier
	// interpolation is safe here.
	createTable := fmt.Sprintf(
		`CREATE TABLE IF NOT EXISTS %s (
			id uuid PRIMARY KEY,
			embedding vector(%d) NOT NULL,
			content text NOT NULL,
			source text NOT NULL DEFAULT ''
		)`, table, dim)
	if _, err := tx.Exec(ctx, createTable); err != nil {
		return fmt.Errorf("creating table for collection %q: %w", name, err)
	}

	createIndex := fmt.Sprintf(
		`CREATE INDEX IF NOT EXISTS %s_embedding_idx ON %s USING hnsw (embedding vector_cosine_ops)`,
		table, table)
	if _, err := tx.Exec(ctx, createIndex); err != nil {
		return fmt.Errorf("creating index for collection %q: %w", name, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing collection %q: %w", name, err)
	}
	committed = true

	p.logger.Debug("created collection", "collection", name, "dim", dim)
	return nil
}

// Upsert writes records in a single batch round-trip. Existing IDs are
// replaced.
func (p *Postgres) Upsert(ctx context.Context, collection string, recs []Record) error {
	if err := validateCollection(collection); err != nil {
		return err
	}
	if len(recs) == 0 {
		return nil
	}
	if err := validateRecords(recs); err != nil {
		return err
	}

	sql := fmt.Sprintf(
		`INSERT INTO %s (id, embedding, content, source) VALUES ($1, $2, $3, $4)
		 ON CONFLICT (id) DO UPDATE
		 SET embedding = EXCLUDED.embedding, content = EXCLUDED.content, source = EXCLUDED.source`,
		pgTable(collection))

	batch := &pgx.Batch{}
	for _, rec := range recs {
		batch.Queue(sql, rec.ID, pgvector.NewVector(rec.Vector), rec.Text, rec.Source)
	}

	br := p.pool.SendBatch(ctx, batch)
	for _, rec := range recs {
		if _, err := br.Exec(); err != nil {
			_ = br.Close()
			return fmt.Errorf("upserting record %s into %q: %w", rec.ID, collection, err)
		}
	}
	if err := br.Close(); err != nil {
		return fmt.Errorf("closing upsert batch for %q: %w", collection, err)
	}

	p.logger.Debug("upserted records", "collection", collection, "count", len(recs))
	return nil
}

// Search returns the k nearest records by cosine distance, converted to
// similarity as 1 - distance.
func (p *Postgres) Search(ctx context.Context, collection string, vector []float32, k int) ([]Match, error) {
	if err := validateCollection(collection); err != nil {
		return nil, err
	}
	if len(vector) == 0 {
		return nil, fmt.Errorf("query vector is empty")
	}
	if k <= 0 {
		return nil, fmt.Errorf("k must be positive, got %d", k)
	}

	ctx, cancel := context.WithTimeout(ctx, searchTimeout)
	defer cancel()

	sql := fmt.Sprintf(
		`SELECT id, content, source, 1 - (embedding <=> $1) AS score
		 FROM %s
		 ORDER BY embedding <=> $1
		 LIMIT $2`,
		pgTable(collection))

	rows, err := p.pool.Query(ctx, sql, pgvector.NewVector(vector), k)
	if err != nil {
		return nil, fmt.Errorf("searching %q: %w", collection, err)
	}
	defer rows.Close()

	var matches []Match
	for rows.Next() {
		var m Match
		if err := rows.Scan(&m.ID, &m.Text, &m.Source, &m.Score); err != nil {
			return nil, fmt.Errorf("scanning search row: %w", err)
		}
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading search rows: %w", err)
	}
	return matches, nil
}

// Delete removes records by ID.
func (p *Postgres) Delete(ctx context.Context, collection string, ids []uuid.UUID) error {
	if err := validateCollection(collection); err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}

	sql := fmt.Sprintf(`DELETE FROM %s WHERE id = ANY($1)`, pgTable(collection))
	tag, err := p.pool.Exec(ctx, sql, ids)
	if err != nil {
		return fmt.Errorf("deleting from %q: %w", collection, err)
	}

	p.logger.Debug("deleted records", "collection", collection, "requested", len(ids), "deleted", tag.RowsAffected())
	return nil
}

// Close is a no-op: the pgx pool is owned and closed by the caller.
func (p *Postgres) Close() {}
