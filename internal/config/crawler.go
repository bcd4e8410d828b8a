package config

// CrawlerConfig holds the site crawler settings used when documents are
// pulled from a live site instead of local files.
type CrawlerConfig struct {
	// Parallelism is max concurrent requests per domain (default: 2)
	Parallelism int `mapstructure:"parallelism" json:"parallelism"`
	// DelayMs is delay between requests in milliseconds (default: 1000)
	DelayMs int `mapstructure:"delay_ms" json:"delay_ms"`
	// TimeoutMs is request timeout in milliseconds (default: 30000)
	TimeoutMs int `mapstructure:"timeout_ms" json:"timeout_ms"`
	// MaxDepth bounds link-following depth from the start page (default: 2)
	MaxDepth int `mapstructure:"max_depth" json:"max_depth"`
	// MaxPages bounds the total number of pages fetched per crawl (default: 20)
	MaxPages int `mapstructure:"max_pages" json:"max_pages"`
}
