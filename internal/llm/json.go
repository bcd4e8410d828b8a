package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// maxJSONResponseBytes limits LLM response size before JSON parsing (64 KB).
// Synthesis responses carry whole contexts, so the cap is generous compared
// to a plain verdict response.
const maxJSONResponseBytes = 64 * 1024

var (
	// ErrEmptyResponse indicates the model returned no text.
	ErrEmptyResponse = errors.New("empty model response")

	// ErrResponseTooLarge indicates the response exceeded the parse cap.
	ErrResponseTooLarge = errors.New("model response too large")
)

// GenerateJSON sends prompt to the model and unmarshals the JSON response
// into out. Markdown code fences around the payload are tolerated; anything
// else that fails to parse is surfaced with a truncated snippet of the raw
// response.
func (c *Client) GenerateJSON(ctx context.Context, prompt string, out any) error {
	text, err := c.Generate(ctx, prompt)
	if err != nil {
		return err
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return ErrEmptyResponse
	}

	if len(text) > maxJSONResponseBytes {
		return fmt.Errorf("%w: %d bytes", ErrResponseTooLarge, len(text))
	}

	text = StripCodeFences(text)

	if err := json.Unmarshal([]byte(text), out); err != nil {
		return fmt.Errorf("parsing model response: %w (raw: %q)", err, Truncate(text, 200))
	}

	return nil
}

// StripCodeFences removes ```json ... ``` wrapping from LLM output.
func StripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		// Remove opening fence (with optional language tag).
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		}
		// Remove closing fence.
		if idx := strings.LastIndex(s, "```"); idx != -1 {
			s = s[:idx]
		}
		s = strings.TrimSpace(s)
	}
	return s
}

// Truncate shortens s to at most n bytes for logging.
func Truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
