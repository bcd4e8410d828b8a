package document

import (
	"bytes"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	readability "github.com/go-shiori/go-readability"
	"github.com/gocolly/colly/v2"

	"github.com/evalforge/evalforge/internal/config"
)

// Crawler fetches a site breadth-first and extracts readable text from each
// HTML page. It stays on the start URL's host.
type Crawler struct {
	cfg    config.CrawlerConfig
	logger *slog.Logger
}

// NewCrawler creates a Crawler. logger may be nil.
func NewCrawler(cfg config.CrawlerConfig, logger *slog.Logger) *Crawler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Crawler{cfg: cfg, logger: logger}
}

// Crawl visits startURL and same-host pages linked from it, up to the
// configured depth and page budget, and returns one Document per readable
// page. Pages that fail to fetch or parse are logged and skipped; Crawl
// fails only when nothing could be collected.
func (c *Crawler) Crawl(startURL string) ([]Document, error) {
	parsed, err := validateURL(startURL)
	if err != nil {
		return nil, fmt.Errorf("crawl: %w", err)
	}
	host := parsed.Hostname()

	collector := colly.NewCollector(
		colly.MaxDepth(c.cfg.MaxDepth),
		colly.AllowedDomains(host, "www."+host),
		colly.Async(true),
	)
	collector.SetRequestTimeout(time.Duration(c.cfg.TimeoutMs) * time.Millisecond)

	if err := collector.Limit(&colly.LimitRule{
		DomainGlob:  "*",
		Parallelism: c.cfg.Parallelism,
		Delay:       time.Duration(c.cfg.DelayMs) * time.Millisecond,
	}); err != nil {
		return nil, fmt.Errorf("crawl %s: limit rule: %w", startURL, err)
	}

	var (
		mu       sync.Mutex
		docs     []Document
		visited  int
		firstErr error
	)

	collector.OnRequest(func(r *colly.Request) {
		mu.Lock()
		defer mu.Unlock()
		if visited >= c.cfg.MaxPages {
			r.Abort()
			return
		}
		visited++
	})

	collector.OnResponse(func(r *colly.Response) {
		contentType := r.Headers.Get("Content-Type")
		if !strings.Contains(contentType, "text/html") {
			return
		}

		article, err := readability.FromReader(bytes.NewReader(r.Body), r.Request.URL)
		if err != nil {
			c.logger.Warn("skipping unreadable page",
				"url", r.Request.URL.String(),
				"error", err,
			)
			return
		}

		content := strings.TrimSpace(article.TextContent)
		if content == "" {
			return
		}

		name := article.Title
		if name == "" {
			name = r.Request.URL.String()
		}

		mu.Lock()
		docs = append(docs, NewDocument(name, r.Request.URL.String(), content))
		mu.Unlock()

		c.logger.Debug("crawled page",
			"url", r.Request.URL.String(),
			"content_length", len(content),
		)
	})

	collector.OnHTML("a[href]", func(e *colly.HTMLElement) {
		// Visit errors here are expected noise: already-visited URLs,
		// off-domain links, and the page budget all surface as errors.
		_ = e.Request.Visit(e.Attr("href"))
	})

	collector.OnError(func(r *colly.Response, err error) {
		mu.Lock()
		if firstErr == nil {
			firstErr = err
		}
		mu.Unlock()
		c.logger.Warn("request failed",
			"url", r.Request.URL.String(),
			"error", err,
		)
	})

	if err := collector.Visit(startURL); err != nil {
		return nil, fmt.Errorf("crawl %s: %w", startURL, err)
	}
	collector.Wait()

	if len(docs) == 0 {
		if firstErr != nil {
			return nil, fmt.Errorf("crawl %s: no pages collected: %w", startURL, firstErr)
		}
		return nil, fmt.Errorf("crawl %s: no readable pages found", startURL)
	}

	c.logger.Info("crawl complete",
		"start_url", startURL,
		"pages", len(docs),
	)
	return docs, nil
}
