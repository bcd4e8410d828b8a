package benchmark

import (
	"fmt"
	"strings"
)

// RenderMarkdown formats a report as a Markdown document: run header,
// per-metric summary table, retrieval rank summary when present, and a
// per-case breakdown. The output is plain Markdown; terminal styling is
// the caller's concern.
func RenderMarkdown(report *Report) string {
	if report == nil {
		return ""
	}

	var b strings.Builder
	title := report.Run.Name
	if title == "" {
		title = report.Run.ID.String()
	}
	fmt.Fprintf(&b, "# Evaluation run: %s\n\n", title)
	fmt.Fprintf(&b, "- Run ID: `%s`\n", report.Run.ID)
	fmt.Fprintf(&b, "- Collection: `%s` (top-k %d)\n", report.Run.Collection, report.Run.TopK)
	if !report.Run.CreatedAt.IsZero() {
		fmt.Fprintf(&b, "- Created: %s\n", report.Run.CreatedAt.Format("2006-01-02 15:04:05 MST"))
	}
	fmt.Fprintf(&b, "- Cases: %d\n", len(report.Cases))

	if len(report.Summaries) > 0 {
		b.WriteString("\n## Metrics\n\n")
		b.WriteString("| Metric | Mean score | Pass rate | Passed |\n")
		b.WriteString("|--------|-----------:|----------:|-------:|\n")
		for _, s := range report.Summaries {
			fmt.Fprintf(&b, "| %s | %.2f | %.0f%% | %d/%d |\n",
				s.Metric, s.Mean, s.PassRate*100, s.Passed, s.Total)
		}
	}

	if rs := report.Retrieval; rs != nil {
		b.WriteString("\n## Retrieval\n\n")
		fmt.Fprintf(&b, "Rank quality over %d cases with reference context:\n\n", rs.Cases)
		b.WriteString("| Precision | Recall | NDCG | MRR |\n")
		b.WriteString("|----------:|-------:|-----:|----:|\n")
		fmt.Fprintf(&b, "| %.2f | %.2f | %.2f | %.2f |\n", rs.Precision, rs.Recall, rs.NDCG, rs.MRR)
	}

	if len(report.Cases) > 0 {
		b.WriteString("\n## Cases\n")
		for i, c := range report.Cases {
			fmt.Fprintf(&b, "\n### %d. %s\n\n", i+1, c.Input)
			if c.ActualOutput != "" {
				fmt.Fprintf(&b, "Answer: %s\n\n", c.ActualOutput)
			}
			for _, res := range c.Results {
				status := "pass"
				if !res.Passed {
					status = "**FAIL**"
				}
				fmt.Fprintf(&b, "- %s: %.2f %s", res.Name, res.Score, status)
				if res.Reason != "" {
					fmt.Fprintf(&b, ". %s", res.Reason)
				}
				b.WriteString("\n")
			}
		}
	}

	return b.String()
}
