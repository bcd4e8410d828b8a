package tui

import (
	"strings"

	"github.com/charmbracelet/glamour"
)

// MarkdownRenderer converts Markdown reports to styled terminal
// output. Rendering is best-effort: on any failure the original text
// comes back unchanged, so reports always print.
type MarkdownRenderer struct {
	renderer *glamour.TermRenderer
}

// NewMarkdownRenderer creates a renderer wrapped to the given width.
// A nil-renderer value is returned on initialization failure; Render
// on it degrades to plain text.
func NewMarkdownRenderer(width int) *MarkdownRenderer {
	if width <= 0 {
		width = 80
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(), // detect light/dark terminal
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return &MarkdownRenderer{}
	}
	return &MarkdownRenderer{renderer: r}
}

// Render converts Markdown to styled terminal output.
func (m *MarkdownRenderer) Render(markdown string) string {
	if m == nil || m.renderer == nil {
		return markdown
	}
	rendered, err := m.renderer.Render(markdown)
	if err != nil {
		return markdown
	}
	return strings.TrimSuffix(rendered, "\n")
}
