package document

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/evalforge/evalforge/internal/config"
	"github.com/evalforge/evalforge/internal/log"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("writing fixture %s: %v", name, err)
	}
	return path
}

func TestLoadFile_Text(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := writeFile(t, dir, "notes.txt", "Plain text content.\n\nWith paragraphs.")

	doc, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() unexpected error: %v", err)
	}

	if doc.Name != "notes.txt" {
		t.Errorf("Name = %q, want %q", doc.Name, "notes.txt")
	}
	if doc.Path != path {
		t.Errorf("Path = %q, want %q", doc.Path, path)
	}
	if doc.Content != "Plain text content.\n\nWith paragraphs." {
		t.Errorf("Content = %q, want raw file content", doc.Content)
	}
	if doc.ID.String() == "00000000-0000-0000-0000-000000000000" {
		t.Error("ID is the zero UUID, want a generated one")
	}
}

func TestLoadFile_Markdown(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := writeFile(t, dir, "guide.md", "# Title\n\nSome markdown body.")

	doc, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() unexpected error: %v", err)
	}
	if !strings.Contains(doc.Content, "# Title") {
		t.Errorf("Content = %q, want markdown preserved as-is", doc.Content)
	}
}

func TestLoadFile_HTML(t *testing.T) {
	t.Parallel()

	html := `<!DOCTYPE html>
<html>
<head><title>Release Notes</title><style>body { color: red; }</style></head>
<body>
<script>console.log("ignore me")</script>
<h1>Release Notes</h1>
<p>The first change is important.</p>
<p>The second change is also important.</p>
</body>
</html>`

	dir := t.TempDir()
	path := writeFile(t, dir, "notes.html", html)

	doc, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() unexpected error: %v", err)
	}

	if doc.Name != "Release Notes" {
		t.Errorf("Name = %q, want page title", doc.Name)
	}
	if !strings.Contains(doc.Content, "The first change is important.") {
		t.Errorf("Content = %q, want paragraph text", doc.Content)
	}
	if strings.Contains(doc.Content, "console.log") {
		t.Error("Content contains script text, want it stripped")
	}
	if strings.Contains(doc.Content, "color: red") {
		t.Error("Content contains style text, want it stripped")
	}
}

func TestLoadFile_Empty(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := writeFile(t, dir, "empty.txt", "   \n  ")

	if _, err := LoadFile(path); err == nil {
		t.Error("LoadFile(empty file) expected error, got nil")
	}
}

func TestLoadFile_Missing(t *testing.T) {
	t.Parallel()

	if _, err := LoadFile(filepath.Join(t.TempDir(), "nope.txt")); err == nil {
		t.Error("LoadFile(missing file) expected error, got nil")
	}
}

func TestLoad_WalksDirectories(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, dir, "a.txt", "Document A content.")
	writeFile(t, dir, "b.md", "Document B content.")
	writeFile(t, dir, "skip.json", `{"not": "loaded"}`)

	sub := filepath.Join(dir, "nested")
	if err := os.Mkdir(sub, 0o750); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	writeFile(t, sub, "c.txt", "Document C content.")

	docs, err := Load([]string{dir})
	if err != nil {
		t.Fatalf("Load() unexpected error: %v", err)
	}

	if got, want := len(docs), 3; got != want {
		t.Fatalf("Load() returned %d documents, want %d", got, want)
	}

	names := make(map[string]bool)
	for _, doc := range docs {
		names[doc.Name] = true
	}
	for _, want := range []string{"a.txt", "b.md", "c.txt"} {
		if !names[want] {
			t.Errorf("document %q not loaded", want)
		}
	}
	if names["skip.json"] {
		t.Error("skip.json was loaded, want unknown extensions skipped in directories")
	}
}

func TestLoad_ExplicitFileAnyExtension(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := writeFile(t, dir, "data.log", "Log content counts when named explicitly.")

	docs, err := Load([]string{path})
	if err != nil {
		t.Fatalf("Load() unexpected error: %v", err)
	}
	if len(docs) != 1 {
		t.Fatalf("Load() returned %d documents, want 1", len(docs))
	}
}

func TestLoad_MissingPath(t *testing.T) {
	t.Parallel()

	if _, err := Load([]string{filepath.Join(t.TempDir(), "ghost")}); err == nil {
		t.Error("Load(missing path) expected error, got nil")
	}
}

func TestCollapseWhitespace(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"runs of spaces", "a   b\t\tc", "a b c"},
		{"keeps paragraph breaks", "para one\n\npara  two", "para one\n\npara two"},
		{"drops blank paragraphs", "a\n\n   \n\nb", "a\n\nb"},
		{"empty", "   ", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := collapseWhitespace(tt.input); got != tt.want {
				t.Errorf("collapseWhitespace(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestLoader_Load_Files(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, dir, "a.md", "# A\n\nbody a")
	writeFile(t, dir, "b.txt", "body b")

	loader := NewLoader(config.CrawlerConfig{}, log.NewNop())
	docs, err := loader.Load([]string{dir})
	if err != nil {
		t.Fatalf("Load() unexpected error: %v", err)
	}
	if len(docs) != 2 {
		t.Errorf("len(docs) = %d, want 2", len(docs))
	}
}

// loaderTestSite serves a start page that links one hop further.
func loaderTestSite(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, crawlPage("Start", "The start page explains the basics.", "/next"))
	})
	mux.HandleFunc("/next", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, crawlPage("Next", "The next page goes deeper."))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestLoader_Load_SinglePage(t *testing.T) {
	t.Parallel()

	srv := loaderTestSite(t)

	// Depth 1 fetches only the start page even though it links further.
	loader := NewLoader(config.CrawlerConfig{MaxDepth: 1, TimeoutMs: 5000}, log.NewNop())
	docs, err := loader.Load([]string{srv.URL + "/"})
	if err != nil {
		t.Fatalf("Load() unexpected error: %v", err)
	}
	if len(docs) != 1 {
		t.Fatalf("len(docs) = %d, want 1", len(docs))
	}
	if docs[0].Name != "Start" {
		t.Errorf("Name = %q, want %q", docs[0].Name, "Start")
	}
}

func TestLoader_Load_CrawlsLinks(t *testing.T) {
	t.Parallel()

	srv := loaderTestSite(t)

	loader := NewLoader(config.CrawlerConfig{
		Parallelism: 2,
		TimeoutMs:   5000,
		MaxDepth:    2,
		MaxPages:    10,
	}, log.NewNop())
	docs, err := loader.Load([]string{srv.URL + "/"})
	if err != nil {
		t.Fatalf("Load() unexpected error: %v", err)
	}
	if len(docs) != 2 {
		t.Errorf("len(docs) = %d, want 2 (start page and its link)", len(docs))
	}
}

func TestLoader_Load_MixedOrder(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, crawlPage("Remote", "remote page body"))
	}))
	defer server.Close()

	dir := t.TempDir()
	local := writeFile(t, dir, "local.txt", "local body")

	loader := NewLoader(config.CrawlerConfig{MaxDepth: 1, TimeoutMs: 5000}, log.NewNop())
	docs, err := loader.Load([]string{local, server.URL + "/"})
	if err != nil {
		t.Fatalf("Load() unexpected error: %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("len(docs) = %d, want 2", len(docs))
	}
	if docs[0].Name != "local.txt" || docs[1].Name != "Remote" {
		t.Errorf("order = [%q, %q], want input order [local.txt, Remote]", docs[0].Name, docs[1].Name)
	}
}

func TestLoadURL_Validation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		url     string
		wantErr string
	}{
		{"unsupported scheme", "ftp://example.com/doc", "unsupported scheme"},
		{"missing host", "http://", "missing host"},
		{"unparseable", "://nope", "invalid url"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := LoadURL(tt.url, time.Second)
			if err == nil {
				t.Fatal("LoadURL() expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %q, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoader_Load_RejectsScheme(t *testing.T) {
	t.Parallel()

	loader := NewLoader(config.CrawlerConfig{}, log.NewNop())
	_, err := loader.Load([]string{"ftp://example.com/doc"})
	if err == nil {
		t.Fatal("Load() expected error, got nil")
	}
	if !strings.Contains(err.Error(), "unsupported scheme") {
		t.Errorf("error = %q, want unsupported scheme", err)
	}
}
