package vectorstore

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"slices"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
)

type capturedRequest struct {
	Method string
	Path   string
	Query  url.Values
	Header http.Header
	Body   []byte
}

type stubResponse struct {
	status int
	body   string
}

// newQdrantStub returns a fake Qdrant server replying from routes keyed
// by "METHOD /path", plus an accessor for the requests it received.
func newQdrantStub(t *testing.T, routes map[string]stubResponse) (*httptest.Server, func() []capturedRequest) {
	t.Helper()

	var mu sync.Mutex
	var captured []capturedRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			t.Errorf("reading request body: %v", err)
		}
		mu.Lock()
		captured = append(captured, capturedRequest{
			Method: r.Method,
			Path:   r.URL.Path,
			Query:  r.URL.Query(),
			Header: r.Header.Clone(),
			Body:   body,
		})
		mu.Unlock()

		resp, ok := routes[r.Method+" "+r.URL.Path]
		if !ok {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if resp.status != 0 {
			w.WriteHeader(resp.status)
		}
		_, _ = w.Write([]byte(resp.body))
	}))
	t.Cleanup(srv.Close)

	requests := func() []capturedRequest {
		mu.Lock()
		defer mu.Unlock()
		return slices.Clone(captured)
	}
	return srv, requests
}

func newTestQdrant(t *testing.T, baseURL, apiKey string) *Qdrant {
	t.Helper()
	q, err := NewQdrant(baseURL, apiKey, discardLogger())
	if err != nil {
		t.Fatalf("NewQdrant() unexpected error: %v", err)
	}
	return q
}

func TestNewQdrant_Validation(t *testing.T) {
	t.Parallel()

	if _, err := NewQdrant("", "", nil); err == nil {
		t.Error("NewQdrant(empty URL) = nil, want error")
	}
	if _, err := NewQdrant("localhost:6333", "", nil); err == nil {
		t.Error("NewQdrant(no scheme) = nil, want error")
	}
	if _, err := NewQdrant("ftp://localhost:6333", "", nil); err == nil {
		t.Error("NewQdrant(ftp scheme) = nil, want error")
	}
	if _, err := NewQdrant("http://localhost:6333", "", nil); err != nil {
		t.Errorf("NewQdrant(http URL) = %v, want nil", err)
	}
}

func TestQdrant_EnsureCollection_CreatesWhenMissing(t *testing.T) {
	t.Parallel()

	srv, requests := newQdrantStub(t, map[string]stubResponse{
		"GET /collections/docs/exists": {body: `{"result":{"exists":false},"status":"ok","time":0}`},
		"PUT /collections/docs":        {body: `{"result":true,"status":"ok","time":0}`},
	})
	q := newTestQdrant(t, srv.URL, "")

	if err := q.EnsureCollection(context.Background(), "docs", 4); err != nil {
		t.Fatalf("EnsureCollection() unexpected error: %v", err)
	}

	reqs := requests()
	if len(reqs) != 2 {
		t.Fatalf("request count = %d, want 2", len(reqs))
	}

	var create struct {
		Vectors struct {
			Size     int    `json:"size"`
			Distance string `json:"distance"`
		} `json:"vectors"`
	}
	if err := json.Unmarshal(reqs[1].Body, &create); err != nil {
		t.Fatalf("decoding create body: %v", err)
	}
	if create.Vectors.Size != 4 {
		t.Errorf("vectors.size = %d, want 4", create.Vectors.Size)
	}
	if create.Vectors.Distance != "Cosine" {
		t.Errorf("vectors.distance = %q, want Cosine", create.Vectors.Distance)
	}
}

func TestQdrant_EnsureCollection_SkipsExisting(t *testing.T) {
	t.Parallel()

	srv, requests := newQdrantStub(t, map[string]stubResponse{
		"GET /collections/docs/exists": {body: `{"result":{"exists":true},"status":"ok","time":0}`},
	})
	q := newTestQdrant(t, srv.URL, "")

	if err := q.EnsureCollection(context.Background(), "docs", 4); err != nil {
		t.Fatalf("EnsureCollection() unexpected error: %v", err)
	}
	if got := len(requests()); got != 1 {
		t.Errorf("request count = %d, want 1 (no create call)", got)
	}
}

func TestQdrant_EnsureCollection_Validation(t *testing.T) {
	t.Parallel()

	q := newTestQdrant(t, "http://127.0.0.1:1", "")

	err := q.EnsureCollection(context.Background(), "Docs", 4)
	if !errors.Is(err, ErrInvalidCollection) {
		t.Errorf("EnsureCollection(bad name) = %v, want ErrInvalidCollection", err)
	}
	if err := q.EnsureCollection(context.Background(), "docs", 0); err == nil {
		t.Error("EnsureCollection(dim 0) = nil, want error")
	}
}

func TestQdrant_Upsert(t *testing.T) {
	t.Parallel()

	srv, requests := newQdrantStub(t, map[string]stubResponse{
		"PUT /collections/docs/points": {body: `{"result":{"operation_id":0,"status":"completed"},"status":"ok","time":0}`},
	})
	q := newTestQdrant(t, srv.URL, "")

	id := uuid.MustParse("a2f6f34a-9db6-4a36-9e2b-5a1f4ff50f3c")
	recs := []Record{
		{ID: id, Vector: []float32{0.1, 0.2, 0.3}, Text: "alpha pump", Source: "a.txt"},
	}
	if err := q.Upsert(context.Background(), "docs", recs); err != nil {
		t.Fatalf("Upsert() unexpected error: %v", err)
	}

	reqs := requests()
	if len(reqs) != 1 {
		t.Fatalf("request count = %d, want 1", len(reqs))
	}
	if got := reqs[0].Query.Get("wait"); got != "true" {
		t.Errorf("wait query param = %q, want true", got)
	}

	var body struct {
		Points []struct {
			ID      string    `json:"id"`
			Vector  []float32 `json:"vector"`
			Payload struct {
				Text   string `json:"text"`
				Source string `json:"source"`
			} `json:"payload"`
		} `json:"points"`
	}
	if err := json.Unmarshal(reqs[0].Body, &body); err != nil {
		t.Fatalf("decoding upsert body: %v", err)
	}
	if len(body.Points) != 1 {
		t.Fatalf("points count = %d, want 1", len(body.Points))
	}
	pt := body.Points[0]
	if pt.ID != id.String() {
		t.Errorf("point id = %q, want %q", pt.ID, id)
	}
	if len(pt.Vector) != 3 {
		t.Errorf("vector length = %d, want 3", len(pt.Vector))
	}
	if pt.Payload.Text != "alpha pump" {
		t.Errorf("payload text = %q, want %q", pt.Payload.Text, "alpha pump")
	}
	if pt.Payload.Source != "a.txt" {
		t.Errorf("payload source = %q, want %q", pt.Payload.Source, "a.txt")
	}
}

func TestQdrant_Upsert_RejectsEmptyVector(t *testing.T) {
	t.Parallel()

	q := newTestQdrant(t, "http://127.0.0.1:1", "")
	recs := []Record{{ID: uuid.New()}}
	if err := q.Upsert(context.Background(), "docs", recs); err == nil || !strings.Contains(err.Error(), "empty vector") {
		t.Errorf("Upsert(empty vector) = %v, want vector error", err)
	}
}

func TestQdrant_Search(t *testing.T) {
	t.Parallel()

	id1 := uuid.MustParse("11111111-1111-4111-8111-111111111111")
	id2 := uuid.MustParse("22222222-2222-4222-8222-222222222222")
	srv, requests := newQdrantStub(t, map[string]stubResponse{
		"POST /collections/docs/points/search": {body: `{
			"result": [
				{"id": "` + id1.String() + `", "version": 3, "score": 0.93, "payload": {"text": "alpha", "source": "a.txt"}},
				{"id": "` + id2.String() + `", "version": 3, "score": 0.71, "payload": {"text": "beta", "source": "b.txt"}}
			],
			"status": "ok", "time": 0.002
		}`},
	})
	q := newTestQdrant(t, srv.URL, "")

	matches, err := q.Search(context.Background(), "docs", []float32{0.1, 0.2, 0.3}, 2)
	if err != nil {
		t.Fatalf("Search() unexpected error: %v", err)
	}
	if len(matches) != 2 {
		t.Fatalf("matches count = %d, want 2", len(matches))
	}
	if matches[0].ID != id1 || matches[0].Text != "alpha" || matches[0].Source != "a.txt" {
		t.Errorf("matches[0] = %+v, want id1/alpha/a.txt", matches[0])
	}
	if matches[0].Score != 0.93 {
		t.Errorf("matches[0].Score = %v, want 0.93", matches[0].Score)
	}
	if matches[1].ID != id2 || matches[1].Score != 0.71 {
		t.Errorf("matches[1] = %+v, want id2 with score 0.71", matches[1])
	}

	var body struct {
		Vector      []float32 `json:"vector"`
		Limit       int       `json:"limit"`
		WithPayload bool      `json:"with_payload"`
	}
	if err := json.Unmarshal(requests()[0].Body, &body); err != nil {
		t.Fatalf("decoding search body: %v", err)
	}
	if body.Limit != 2 {
		t.Errorf("limit = %d, want 2", body.Limit)
	}
	if !body.WithPayload {
		t.Error("with_payload = false, want true")
	}
	if len(body.Vector) != 3 {
		t.Errorf("vector length = %d, want 3", len(body.Vector))
	}
}

func TestQdrant_Search_BadPointID(t *testing.T) {
	t.Parallel()

	srv, _ := newQdrantStub(t, map[string]stubResponse{
		"POST /collections/docs/points/search": {body: `{"result":[{"id":"not-a-uuid","score":0.5,"payload":{}}],"status":"ok","time":0}`},
	})
	q := newTestQdrant(t, srv.URL, "")

	_, err := q.Search(context.Background(), "docs", []float32{0.1}, 1)
	if err == nil || !strings.Contains(err.Error(), "parsing point id") {
		t.Errorf("Search(bad id) = %v, want point id error", err)
	}
}

func TestQdrant_Delete(t *testing.T) {
	t.Parallel()

	srv, requests := newQdrantStub(t, map[string]stubResponse{
		"POST /collections/docs/points/delete": {body: `{"result":{"operation_id":1,"status":"completed"},"status":"ok","time":0}`},
	})
	q := newTestQdrant(t, srv.URL, "")

	ids := []uuid.UUID{uuid.New(), uuid.New()}
	if err := q.Delete(context.Background(), "docs", ids); err != nil {
		t.Fatalf("Delete() unexpected error: %v", err)
	}

	reqs := requests()
	if got := reqs[0].Query.Get("wait"); got != "true" {
		t.Errorf("wait query param = %q, want true", got)
	}
	var body struct {
		Points []string `json:"points"`
	}
	if err := json.Unmarshal(reqs[0].Body, &body); err != nil {
		t.Fatalf("decoding delete body: %v", err)
	}
	want := []string{ids[0].String(), ids[1].String()}
	if !slices.Equal(body.Points, want) {
		t.Errorf("delete points = %v, want %v", body.Points, want)
	}
}

func TestQdrant_ErrorSurfacesServerMessage(t *testing.T) {
	t.Parallel()

	srv, _ := newQdrantStub(t, map[string]stubResponse{
		"POST /collections/docs/points/search": {
			status: http.StatusBadRequest,
			body:   `{"status":{"error":"Wrong input: vector size mismatch"},"time":0}`,
		},
	})
	q := newTestQdrant(t, srv.URL, "")

	_, err := q.Search(context.Background(), "docs", []float32{0.1}, 1)
	if err == nil || !strings.Contains(err.Error(), "vector size mismatch") {
		t.Errorf("Search() = %v, want server error message", err)
	}
}

func TestQdrant_SendsAPIKeyHeader(t *testing.T) {
	t.Parallel()

	srv, requests := newQdrantStub(t, map[string]stubResponse{
		"GET /collections/docs/exists": {body: `{"result":{"exists":true},"status":"ok","time":0}`},
	})
	q := newTestQdrant(t, srv.URL, "secret-key")

	if err := q.EnsureCollection(context.Background(), "docs", 4); err != nil {
		t.Fatalf("EnsureCollection() unexpected error: %v", err)
	}
	if got := requests()[0].Header.Get("api-key"); got != "secret-key" {
		t.Errorf("api-key header = %q, want secret-key", got)
	}
}
