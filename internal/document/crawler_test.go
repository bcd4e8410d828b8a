package document

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/evalforge/evalforge/internal/config"
	"github.com/evalforge/evalforge/internal/log"
)

// crawlPage renders a minimal article page with enough text for content
// extraction to keep.
func crawlPage(title, body string, links ...string) string {
	var sb strings.Builder
	sb.WriteString("<!DOCTYPE html><html><head><title>")
	sb.WriteString(title)
	sb.WriteString("</title></head><body><article><h1>")
	sb.WriteString(title)
	sb.WriteString("</h1>")
	for i := 0; i < 3; i++ {
		fmt.Fprintf(&sb, "<p>%s This sentence pads the paragraph so the extractor keeps it around, part %d.</p>", body, i)
	}
	for _, link := range links {
		fmt.Fprintf(&sb, `<a href="%s">more</a>`, link)
	}
	sb.WriteString("</article></body></html>")
	return sb.String()
}

func testCrawlerConfig() config.CrawlerConfig {
	return config.CrawlerConfig{
		Parallelism: 2,
		DelayMs:     0,
		TimeoutMs:   5000,
		MaxDepth:    3,
		MaxPages:    20,
	}
}

func TestCrawler_Crawl(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, crawlPage("Index", "The index page explains the project.", "/guide", "/faq"))
	})
	mux.HandleFunc("/guide", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, crawlPage("Guide", "The guide describes every feature in detail."))
	})
	mux.HandleFunc("/faq", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, crawlPage("FAQ", "The FAQ answers common questions."))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := NewCrawler(testCrawlerConfig(), log.NewNop())
	docs, err := c.Crawl(srv.URL)
	if err != nil {
		t.Fatalf("Crawl() unexpected error: %v", err)
	}

	if got, want := len(docs), 3; got != want {
		t.Fatalf("Crawl() returned %d documents, want %d", got, want)
	}

	byPath := make(map[string]Document)
	for _, doc := range docs {
		byPath[doc.Path] = doc
	}
	guide, ok := byPath[srv.URL+"/guide"]
	if !ok {
		t.Fatal("guide page was not crawled")
	}
	if !strings.Contains(guide.Content, "describes every feature") {
		t.Errorf("guide content = %q, want extracted paragraph text", guide.Content)
	}
}

func TestCrawler_Crawl_MaxPages(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/" {
			fmt.Fprint(w, crawlPage("Index", "Index page content.",
				"/p1", "/p2", "/p3", "/p4", "/p5"))
			return
		}
		fmt.Fprint(w, crawlPage("Page", "A linked page with content."))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	cfg := testCrawlerConfig()
	cfg.MaxPages = 2

	c := NewCrawler(cfg, log.NewNop())
	docs, err := c.Crawl(srv.URL)
	if err != nil {
		t.Fatalf("Crawl() unexpected error: %v", err)
	}

	if len(docs) > 2 {
		t.Errorf("Crawl() returned %d documents, want at most 2 (page budget)", len(docs))
	}
	if len(docs) == 0 {
		t.Error("Crawl() returned no documents, want at least the start page")
	}
}

func TestCrawler_Crawl_MaxDepth(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, crawlPage("Index", "Index page content.", "/level2"))
	})
	mux.HandleFunc("/level2", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, crawlPage("Level2", "Second level content.", "/level3"))
	})
	mux.HandleFunc("/level3", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, crawlPage("Level3", "Third level content."))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	cfg := testCrawlerConfig()
	cfg.MaxDepth = 2

	c := NewCrawler(cfg, log.NewNop())
	docs, err := c.Crawl(srv.URL)
	if err != nil {
		t.Fatalf("Crawl() unexpected error: %v", err)
	}

	for _, doc := range docs {
		if strings.Contains(doc.Path, "level3") {
			t.Errorf("crawled %s, want depth limit to stop before it", doc.Path)
		}
	}
}

func TestCrawler_Crawl_StaysOnHost(t *testing.T) {
	t.Parallel()

	// The off-host link is rejected by the domain filter before any
	// request is made, so no DNS lookup happens for it.
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, crawlPage("Index", "Index page content.",
			"http://external.invalid/page", "/local"))
	})
	mux.HandleFunc("/local", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, crawlPage("Local", "Local page content."))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := NewCrawler(testCrawlerConfig(), log.NewNop())
	docs, err := c.Crawl(srv.URL)
	if err != nil {
		t.Fatalf("Crawl() unexpected error: %v", err)
	}

	if got, want := len(docs), 2; got != want {
		t.Errorf("Crawl() returned %d documents, want %d", got, want)
	}
	for _, doc := range docs {
		if strings.Contains(doc.Path, "external.invalid") {
			t.Errorf("crawled off-host page %s", doc.Path)
		}
	}
}

func TestCrawler_Crawl_InvalidURL(t *testing.T) {
	t.Parallel()

	c := NewCrawler(testCrawlerConfig(), log.NewNop())
	if _, err := c.Crawl("://not-a-url"); err == nil {
		t.Error("Crawl(invalid URL) expected error, got nil")
	}
}
