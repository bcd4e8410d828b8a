package vectorstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

var _ Store = (*Qdrant)(nil)

// qdrantTimeout bounds every Qdrant request end to end.
const qdrantTimeout = 30 * time.Second

// Qdrant talks to a Qdrant server over its REST API. Records map to
// points with text and source carried as payload fields.
//
// Qdrant is safe for concurrent use by multiple goroutines.
type Qdrant struct {
	baseURL string
	apiKey  string
	client  *http.Client
	logger  *slog.Logger
}

// NewQdrant creates a Qdrant store for the given endpoint, for example
// http://localhost:6333. apiKey may be empty for unauthenticated
// servers.
func NewQdrant(baseURL, apiKey string, logger *slog.Logger) (*Qdrant, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("qdrant URL is required")
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing qdrant URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("qdrant URL must be http or https, got %q", u.Scheme)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Qdrant{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: qdrantTimeout},
		logger:  logger,
	}, nil
}

// qdrantPoint is the upsert wire format for one record.
type qdrantPoint struct {
	ID      string         `json:"id"`
	Vector  []float32      `json:"vector"`
	Payload map[string]any `json:"payload"`
}

// EnsureCollection creates the collection with cosine distance if it
// does not exist yet.
func (q *Qdrant) EnsureCollection(ctx context.Context, name string, dim int) error {
	if err := validateCollection(name); err != nil {
		return err
	}
	if dim <= 0 {
		return fmt.Errorf("dimension must be positive, got %d", dim)
	}

	var probe struct {
		Result struct {
			Exists bool `json:"exists"`
		} `json:"result"`
	}
	if err := q.call(ctx, http.MethodGet, "/collections/"+name+"/exists", nil, &probe); err != nil {
		return fmt.Errorf("checking collection %q: %w", name, err)
	}
	if probe.Result.Exists {
		return nil
	}

	body := map[string]any{
		"vectors": map[string]any{
			"size":     dim,
			"distance": "Cosine",
		},
	}
	if err := q.call(ctx, http.MethodPut, "/collections/"+name, body, nil); err != nil {
		return fmt.Errorf("creating collection %q: %w", name, err)
	}

	q.logger.Debug("created collection", "collection", name, "dim", dim)
	return nil
}

// Upsert writes records as points, waiting for the write to be applied
// so a subsequent Search sees them.
func (q *Qdrant) Upsert(ctx context.Context, collection string, recs []Record) error {
	if err := validateCollection(collection); err != nil {
		return err
	}
	if len(recs) == 0 {
		return nil
	}
	if err := validateRecords(recs); err != nil {
		return err
	}

	points := make([]qdrantPoint, len(recs))
	for i, rec := range recs {
		points[i] = qdrantPoint{
			ID:     rec.ID.String(),
			Vector: rec.Vector,
			Payload: map[string]any{
				"text":   rec.Text,
				"source": rec.Source,
			},
		}
	}

	body := map[string]any{"points": points}
	if err := q.call(ctx, http.MethodPut, "/collections/"+collection+"/points?wait=true", body, nil); err != nil {
		return fmt.Errorf("upserting %d points into %q: %w", len(recs), collection, err)
	}

	q.logger.Debug("upserted records", "collection", collection, "count", len(recs))
	return nil
}

// Search returns the k nearest points with payloads. Qdrant reports
// cosine similarity directly, so scores pass through unchanged.
func (q *Qdrant) Search(ctx context.Context, collection string, vector []float32, k int) ([]Match, error) {
	if err := validateCollection(collection); err != nil {
		return nil, err
	}
	if len(vector) == 0 {
		return nil, fmt.Errorf("query vector is empty")
	}
	if k <= 0 {
		return nil, fmt.Errorf("k must be positive, got %d", k)
	}

	body := map[string]any{
		"vector":       vector,
		"limit":        k,
		"with_payload": true,
	}
	var out struct {
		Result []struct {
			ID      string  `json:"id"`
			Score   float64 `json:"score"`
			Payload struct {
				Text   string `json:"text"`
				Source string `json:"source"`
			} `json:"payload"`
		} `json:"result"`
	}
	if err := q.call(ctx, http.MethodPost, "/collections/"+collection+"/points/search", body, &out); err != nil {
		return nil, fmt.Errorf("searching %q: %w", collection, err)
	}

	matches := make([]Match, 0, len(out.Result))
	for _, r := range out.Result {
		id, err := uuid.Parse(r.ID)
		if err != nil {
			return nil, fmt.Errorf("parsing point id %q: %w", r.ID, err)
		}
		matches = append(matches, Match{
			Record: Record{ID: id, Text: r.Payload.Text, Source: r.Payload.Source},
			Score:  r.Score,
		})
	}
	return matches, nil
}

// Delete removes points by ID.
func (q *Qdrant) Delete(ctx context.Context, collection string, ids []uuid.UUID) error {
	if err := validateCollection(collection); err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}

	points := make([]string, len(ids))
	for i, id := range ids {
		points[i] = id.String()
	}
	body := map[string]any{"points": points}
	if err := q.call(ctx, http.MethodPost, "/collections/"+collection+"/points/delete?wait=true", body, nil); err != nil {
		return fmt.Errorf("deleting %d points from %q: %w", len(ids), collection, err)
	}

	q.logger.Debug("deleted records", "collection", collection, "count", len(ids))
	return nil
}

// Close drops idle connections held by the HTTP client.
func (q *Qdrant) Close() {
	q.client.CloseIdleConnections()
}

// call sends a JSON request and decodes the response into out when out
// is non-nil. Non-2xx responses become errors carrying the server's
// status message.
func (q *Qdrant) call(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, q.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if q.apiKey != "" {
		req.Header.Set("api-key", q.apiKey)
	}

	resp, err := q.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return qdrantError(resp)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}
	return nil
}

// qdrantError extracts the error message from a failed response. The
// status field is "ok" on success but an object carrying the message on
// failure; anything unparseable falls back to the HTTP status line.
func qdrantError(resp *http.Response) error {
	var apiErr struct {
		Status struct {
			Error string `json:"error"`
		} `json:"status"`
	}
	data, readErr := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if readErr == nil && json.Unmarshal(data, &apiErr) == nil && apiErr.Status.Error != "" {
		return fmt.Errorf("qdrant: %s (HTTP %d)", apiErr.Status.Error, resp.StatusCode)
	}
	return fmt.Errorf("qdrant: HTTP %s", resp.Status)
}
