// Package llm wraps Genkit text generation behind a small client with
// proactive rate limiting, retry with exponential backoff, and a strict
// JSON-response discipline.
//
// Every LLM-facing component (synthesis, metrics, MCP tools) goes through
// this client so transient provider failures are handled in exactly one
// place.
package llm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"golang.org/x/time/rate"
	"google.golang.org/genai"
)

// RetryConfig configures the retry behavior for LLM calls.
type RetryConfig struct {
	MaxRetries      int           // Maximum number of retry attempts
	InitialInterval time.Duration // Initial backoff interval
	MaxInterval     time.Duration // Maximum backoff interval
}

// DefaultRetryConfig returns sensible defaults for LLM API calls.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:      3,
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     10 * time.Second,
	}
}

// Config configures a Client.
type Config struct {
	// ModelName is the provider-qualified model, e.g. "googleai/gemini-2.5-flash".
	ModelName string

	// Temperature and MaxTokens are forwarded to providers that accept
	// per-request generation config (currently the googleai plugin).
	Temperature float32
	MaxTokens   int

	// Retry overrides the retry behavior (zero-value uses defaults).
	Retry RetryConfig

	// RequestsPerMinute caps the sustained request rate. 0 disables the
	// proactive limiter.
	RequestsPerMinute int
}

// Client issues generation requests against a single model.
type Client struct {
	g           *genkit.Genkit
	modelName   string
	temperature float32
	maxTokens   int
	retry       RetryConfig
	limiter     *rate.Limiter // nil = disabled
	logger      *slog.Logger
}

// New creates a Client. logger may be nil.
func New(g *genkit.Genkit, cfg Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}

	retry := cfg.Retry
	if retry.MaxRetries == 0 && retry.InitialInterval == 0 {
		retry = DefaultRetryConfig()
	}

	var limiter *rate.Limiter
	if cfg.RequestsPerMinute > 0 {
		// Sustained rpm with a small burst so short pipelines don't queue.
		limiter = rate.NewLimiter(rate.Limit(float64(cfg.RequestsPerMinute)/60.0), 5)
	}

	return &Client{
		g:           g,
		modelName:   cfg.ModelName,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		retry:       retry,
		limiter:     limiter,
		logger:      logger,
	}
}

// ModelName returns the provider-qualified model this client targets.
func (c *Client) ModelName() string {
	return c.modelName
}

// Generate sends prompt to the model and returns the raw response text.
// Transient failures are retried with exponential backoff; each attempt
// waits on the rate limiter first.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	opts := []ai.GenerateOption{
		ai.WithModelName(c.modelName),
		ai.WithPrompt(prompt),
	}

	// The googleai plugin accepts genai config; other providers use their
	// server-side defaults.
	if strings.HasPrefix(c.modelName, "googleai/") {
		temp := c.temperature
		genCfg := &genai.GenerateContentConfig{Temperature: &temp}
		if c.maxTokens > 0 {
			genCfg.MaxOutputTokens = int32(c.maxTokens)
		}
		opts = append(opts, ai.WithConfig(genCfg))
	}

	var lastErr error
	delay := c.retry.InitialInterval
	start := time.Now()

	for attempt := 0; attempt <= c.retry.MaxRetries; attempt++ {
		// Rate limit each attempt, not just the first; retries after a 429
		// would otherwise hammer the provider.
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return "", fmt.Errorf("rate limit wait: %w", err)
			}
		}

		resp, err := genkit.Generate(ctx, c.g, opts...)
		if err == nil {
			c.logger.Debug("generate succeeded",
				"model", c.modelName,
				"attempts", attempt+1,
				"elapsed", time.Since(start),
			)
			return resp.Text(), nil
		}

		lastErr = err

		// Non-retryable error - fail immediately
		if !retryableError(err) {
			return "", fmt.Errorf("generate: %w", err)
		}

		// Last attempt - don't sleep
		if attempt == c.retry.MaxRetries {
			break
		}

		c.logger.Debug("retrying after error",
			"attempt", attempt+1,
			"delay", delay,
			"elapsed", time.Since(start),
			"error", err,
		)

		select {
		case <-ctx.Done():
			return "", fmt.Errorf("context canceled during retry: %w", ctx.Err())
		case <-time.After(delay):
			delay = min(delay*2, c.retry.MaxInterval)
		}
	}

	return "", fmt.Errorf("generate after %d retries (elapsed: %v): %w",
		c.retry.MaxRetries, time.Since(start), lastErr)
}

// retryablePatterns groups error substrings by category.
// Matched case-insensitively against err.Error().
//
// String matching is used because Genkit and the provider SDKs do not
// expose typed errors for transient failures. Re-evaluate if Genkit adds
// structured error types in a future version.
var retryablePatterns = [][]string{
	{"rate limit", "quota exceeded", "429"},      // rate limiting
	{"500", "502", "503", "504", "unavailable"},  // transient server errors
	{"connection reset", "timeout", "temporary"}, // network errors
}

// retryableError reports whether err is transient and should trigger a retry.
func retryableError(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	for _, group := range retryablePatterns {
		if containsAny(errStr, group...) {
			return true
		}
	}
	return false
}

// containsAny checks if s contains any of the substrings (case-insensitive).
func containsAny(s string, substrs ...string) bool {
	lower := strings.ToLower(s)
	for _, sub := range substrs {
		if strings.Contains(lower, strings.ToLower(sub)) {
			return true
		}
	}
	return false
}
