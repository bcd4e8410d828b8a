package vectorstore

import (
	"context"
	"encoding/binary"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/redis/rueidis"
)

var _ Store = (*Redis)(nil)

// Redis stores records as hashes under vec:<collection>:<id> and
// searches them through a per-collection RediSearch HNSW index.
// Requires Redis 8+ or Redis Stack with the search module.
//
// Redis is safe for concurrent use by multiple goroutines.
type Redis struct {
	client rueidis.Client
	logger *slog.Logger
}

// NewRedis connects to the given address, for example localhost:6379.
func NewRedis(addr string, logger *slog.Logger) (*Redis, error) {
	if addr == "" {
		return nil, fmt.Errorf("redis address is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress:  []string{addr},
		DisableCache: true,
		AlwaysRESP2:  true, // FT.SEARCH result parsing expects RESP2 array format
	})
	if err != nil {
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}
	return &Redis{client: client, logger: logger}, nil
}

// redisIndex returns the RediSearch index name for a collection.
func redisIndex(collection string) string {
	return "vec_" + collection + "_idx"
}

// redisPrefix returns the key prefix covered by a collection's index.
func redisPrefix(collection string) string {
	return "vec:" + collection + ":"
}

// redisKey returns the hash key for one record.
func redisKey(collection string, id uuid.UUID) string {
	return redisPrefix(collection) + id.String()
}

// EnsureCollection creates the HNSW index if it does not exist. FT.INFO
// probes existence; "unknown index" means absent.
func (r *Redis) EnsureCollection(ctx context.Context, name string, dim int) error {
	if err := validateCollection(name); err != nil {
		return err
	}
	if dim <= 0 {
		return fmt.Errorf("dimension must be positive, got %d", dim)
	}

	info := r.client.B().Arbitrary("FT.INFO").Args(redisIndex(name)).Build()
	err := r.client.Do(ctx, info).Error()
	if err == nil {
		return nil
	}
	if !isRedisErr(err, "unknown index") {
		return fmt.Errorf("checking index for %q: %w", name, err)
	}

	create := r.client.B().Arbitrary("FT.CREATE").Args(
		redisIndex(name),
		"ON", "HASH",
		"PREFIX", "1", redisPrefix(name),
		"SCHEMA",
		"embedding", "VECTOR", "HNSW", "6",
		"TYPE", "FLOAT32",
		"DIM", strconv.Itoa(dim),
		"DISTANCE_METRIC", "COSINE",
	).Build()
	if err := r.client.Do(ctx, create).Error(); err != nil {
		// A concurrent caller may have won the create race.
		if isRedisErr(err, "index already exists") {
			return nil
		}
		return fmt.Errorf("creating index for %q: %w", name, err)
	}

	r.logger.Debug("created collection", "collection", name, "dim", dim)
	return nil
}

// Upsert writes records as hashes in a single DoMulti round-trip. HSET
// replaces existing field values, so repeated IDs update in place.
func (r *Redis) Upsert(ctx context.Context, collection string, recs []Record) error {
	if err := validateCollection(collection); err != nil {
		return err
	}
	if len(recs) == 0 {
		return nil
	}
	if err := validateRecords(recs); err != nil {
		return err
	}

	cmds := make([]rueidis.Completed, len(recs))
	for i, rec := range recs {
		cmds[i] = r.client.B().Hset().Key(redisKey(collection, rec.ID)).
			FieldValue().
			FieldValue("embedding", vectorBlob(rec.Vector)).
			FieldValue("text", rec.Text).
			FieldValue("source", rec.Source).
			Build()
	}
	for i, res := range r.client.DoMulti(ctx, cmds...) {
		if err := res.Error(); err != nil {
			return fmt.Errorf("upserting record %s into %q: %w", recs[i].ID, collection, err)
		}
	}

	r.logger.Debug("upserted records", "collection", collection, "count", len(recs))
	return nil
}

// Search runs a KNN query and maps cosine distance back to similarity.
// The explicit LIMIT matters: FT.SEARCH defaults to 10 rows regardless
// of the KNN k.
func (r *Redis) Search(ctx context.Context, collection string, vector []float32, k int) ([]Match, error) {
	if err := validateCollection(collection); err != nil {
		return nil, err
	}
	if len(vector) == 0 {
		return nil, fmt.Errorf("query vector is empty")
	}
	if k <= 0 {
		return nil, fmt.Errorf("k must be positive, got %d", k)
	}

	query := fmt.Sprintf("*=>[KNN %d @embedding $BLOB]", k)
	cmd := r.client.B().Arbitrary("FT.SEARCH").Args(
		redisIndex(collection), query,
		"RETURN", "3", "text", "source", "__embedding_score",
		"SORTBY", "__embedding_score",
		"LIMIT", "0", strconv.Itoa(k),
		"PARAMS", "2", "BLOB", vectorBlob(vector),
		"DIALECT", "2",
	).Build()

	raw, err := r.client.Do(ctx, cmd).ToArray()
	if err != nil {
		return nil, fmt.Errorf("searching %q: %w", collection, err)
	}
	return parseRedisMatches(collection, raw)
}

// Delete removes record hashes in a single DoMulti round-trip.
func (r *Redis) Delete(ctx context.Context, collection string, ids []uuid.UUID) error {
	if err := validateCollection(collection); err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}

	cmds := make([]rueidis.Completed, len(ids))
	for i, id := range ids {
		cmds[i] = r.client.B().Del().Key(redisKey(collection, id)).Build()
	}
	for i, res := range r.client.DoMulti(ctx, cmds...) {
		if err := res.Error(); err != nil {
			return fmt.Errorf("deleting record %s from %q: %w", ids[i], collection, err)
		}
	}

	r.logger.Debug("deleted records", "collection", collection, "count", len(ids))
	return nil
}

// Close shuts down the client.
func (r *Redis) Close() {
	r.client.Close()
}

// parseRedisMatches decodes the 2-stride FT.SEARCH reply:
// [total, key1, fields1, key2, fields2, ...].
func parseRedisMatches(collection string, raw []rueidis.RedisMessage) ([]Match, error) {
	if len(raw) == 0 {
		return nil, nil
	}

	matches := make([]Match, 0, (len(raw)-1)/2)
	for i := 1; i+1 < len(raw); i += 2 {
		key, err := raw[i].ToString()
		if err != nil {
			return nil, fmt.Errorf("reading result key: %w", err)
		}
		fields, err := raw[i+1].ToArray()
		if err != nil {
			return nil, fmt.Errorf("reading result fields for %q: %w", key, err)
		}

		id, err := uuid.Parse(strings.TrimPrefix(key, redisPrefix(collection)))
		if err != nil {
			return nil, fmt.Errorf("parsing record id from key %q: %w", key, err)
		}

		m := Match{Record: Record{ID: id}}
		for j := 0; j+1 < len(fields); j += 2 {
			name, err := fields[j].ToString()
			if err != nil {
				continue
			}
			value, err := fields[j+1].ToString()
			if err != nil {
				continue
			}
			switch name {
			case "text":
				m.Text = value
			case "source":
				m.Source = value
			case "__embedding_score":
				dist, err := strconv.ParseFloat(value, 64)
				if err != nil {
					return nil, fmt.Errorf("parsing score %q for key %q: %w", value, key, err)
				}
				m.Score = max(0, 1-dist) // cosine distance to similarity, clamped at 0
			}
		}
		matches = append(matches, m)
	}
	return matches, nil
}

// vectorBlob encodes a vector as the little-endian float32 byte string
// RediSearch expects for FLOAT32 vector fields.
func vectorBlob(v []float32) string {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return string(buf)
}

// isRedisErr reports whether err is a Redis server error whose message
// contains substr, case-insensitively.
func isRedisErr(err error, substr string) bool {
	re, ok := rueidis.IsRedisErr(err)
	if !ok {
		return false
	}
	return strings.Contains(strings.ToLower(re.Error()), substr)
}
