package document

import (
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"

	"github.com/evalforge/evalforge/internal/config"
)

// loadableExtensions are the file types Load picks up when walking a
// directory.
var loadableExtensions = map[string]bool{
	".txt":  true,
	".md":   true,
	".html": true,
	".htm":  true,
}

// Load loads every path in paths. Directories are walked recursively for
// loadable files; plain files are loaded regardless of extension.
func Load(paths []string) ([]Document, error) {
	var docs []Document

	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", path, err)
		}

		if !info.IsDir() {
			doc, err := LoadFile(path)
			if err != nil {
				return nil, err
			}
			docs = append(docs, doc)
			continue
		}

		err = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() || !loadableExtensions[strings.ToLower(filepath.Ext(p))] {
				return nil
			}
			doc, err := LoadFile(p)
			if err != nil {
				return err
			}
			docs = append(docs, doc)
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walk %s: %w", path, err)
		}
	}

	return docs, nil
}

// LoadFile loads a single file. HTML files are reduced to their text
// content; everything else is read as-is.
func LoadFile(path string) (Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Document{}, fmt.Errorf("load document %s: %w", path, err)
	}

	name := filepath.Base(path)
	content := string(data)

	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".html" || ext == ".htm" {
		title, text, err := extractHTML(content)
		if err != nil {
			return Document{}, fmt.Errorf("parse html %s: %w", path, err)
		}
		if title != "" {
			name = title
		}
		content = text
	}

	if strings.TrimSpace(content) == "" {
		return Document{}, fmt.Errorf("load document %s: file is empty", path)
	}

	return NewDocument(name, path, content), nil
}

// Loader resolves a mixed list of filesystem paths and URLs into
// documents. URLs fetch a single page when the configured crawl depth is
// 1 or less, otherwise a bounded same-host crawl; everything else goes
// through the filesystem loader.
type Loader struct {
	cfg     config.CrawlerConfig
	crawler *Crawler
}

// NewLoader creates a Loader. logger may be nil.
func NewLoader(cfg config.CrawlerConfig, logger *slog.Logger) *Loader {
	return &Loader{cfg: cfg, crawler: NewCrawler(cfg, logger)}
}

// Load loads every entry in paths, preserving input order.
func (l *Loader) Load(paths []string) ([]Document, error) {
	var docs []Document
	for _, path := range paths {
		if !isURL(path) {
			fileDocs, err := Load([]string{path})
			if err != nil {
				return nil, err
			}
			docs = append(docs, fileDocs...)
			continue
		}

		if l.cfg.MaxDepth <= 1 {
			doc, err := LoadURL(path, time.Duration(l.cfg.TimeoutMs)*time.Millisecond)
			if err != nil {
				return nil, err
			}
			docs = append(docs, doc)
			continue
		}

		crawled, err := l.crawler.Crawl(path)
		if err != nil {
			return nil, err
		}
		docs = append(docs, crawled...)
	}
	return docs, nil
}

// isURL reports whether path should be fetched rather than read from
// disk. Any scheme counts so that unsupported ones fail with a scheme
// error instead of a file-not-found.
func isURL(path string) bool {
	return strings.Contains(path, "://")
}

// validateURL checks that a URL is fetchable: http or https with a host.
func validateURL(rawURL string) (*url.URL, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid url %s: %w", rawURL, err)
	}
	switch u.Scheme {
	case "http", "https":
	default:
		return nil, fmt.Errorf("unsupported scheme %q in %s (want http or https)", u.Scheme, rawURL)
	}
	if u.Hostname() == "" {
		return nil, fmt.Errorf("missing host in %s", rawURL)
	}
	return u, nil
}

// LoadURL fetches a page and extracts its readable article text.
func LoadURL(pageURL string, timeout time.Duration) (Document, error) {
	if _, err := validateURL(pageURL); err != nil {
		return Document{}, fmt.Errorf("load url: %w", err)
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	article, err := readability.FromURL(pageURL, timeout)
	if err != nil {
		return Document{}, fmt.Errorf("load url %s: %w", pageURL, err)
	}

	content := strings.TrimSpace(article.TextContent)
	if content == "" {
		return Document{}, fmt.Errorf("load url %s: no readable content", pageURL)
	}

	name := article.Title
	if name == "" {
		name = pageURL
	}

	return NewDocument(name, pageURL, content), nil
}

// extractHTML strips markup and returns the page title and visible text.
func extractHTML(html string) (title, text string, err error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", "", err
	}

	title = strings.TrimSpace(doc.Find("title").First().Text())

	doc.Find("script, style, noscript").Remove()

	body := doc.Find("body")
	if body.Length() > 0 {
		text = body.Text()
	} else {
		text = doc.Text()
	}

	return title, collapseWhitespace(text), nil
}

// collapseWhitespace normalizes runs of whitespace to single spaces while
// keeping paragraph breaks.
func collapseWhitespace(s string) string {
	paragraphs := strings.Split(s, "\n\n")
	out := make([]string, 0, len(paragraphs))
	for _, p := range paragraphs {
		fields := strings.Fields(p)
		if len(fields) == 0 {
			continue
		}
		out = append(out, strings.Join(fields, " "))
	}
	return strings.Join(out, "\n\n")
}
