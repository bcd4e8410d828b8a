package tui

import (
	"fmt"
	"strings"

	tea "charm.land/bubbletea/v2"
)

// View implements tea.Model. The UI renders inline (no alt screen) so
// the final state stays in the scrollback after the run.
func (m *Model) View() tea.View {
	m.viewBuf.Reset()

	m.viewBuf.WriteString(m.styles.Title.Render(m.title))
	m.viewBuf.WriteString("\n")

	m.viewBuf.WriteString(m.renderStatus())
	m.viewBuf.WriteString("\n")

	if m.total > 0 {
		m.viewBuf.WriteString(m.progress.ViewAs(float64(m.current) / float64(m.total)))
		m.viewBuf.WriteString(m.styles.Counter.Render(fmt.Sprintf(" %d/%d", m.current, m.total)))
	}
	m.viewBuf.WriteString("\n")

	m.viewBuf.WriteString(m.viewport.View())
	m.viewBuf.WriteString("\n")

	m.viewBuf.WriteString(m.styles.Help.Render("ctrl+c cancel"))

	return tea.NewView(m.viewBuf.String())
}

// renderStatus is the spinner line: what the pipeline is doing now.
func (m *Model) renderStatus() string {
	switch {
	case m.done && m.err != nil:
		return m.styles.Error.Render("failed: " + m.err.Error())
	case m.done:
		return m.styles.Success.Render("done")
	case m.canceled:
		return m.spinner.View() + " " + m.styles.Error.Render("canceling")
	}

	status := m.message
	if status == "" {
		status = "starting"
	}
	if m.stage != "" {
		status = m.styles.Stage.Render("["+m.stage+"] ") + status
	}
	return m.spinner.View() + " " + status
}

// rebuildViewportContent reconstructs the log viewport from the
// bounded line buffer.
func (m *Model) rebuildViewportContent() {
	var b strings.Builder
	for _, line := range m.logLines {
		b.WriteString(m.styles.LogLine.Render(line))
		b.WriteString("\n")
	}
	m.viewport.SetContent(b.String())
}
