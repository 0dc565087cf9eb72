package evaluate

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
)

// FormatMetrics renders metrics as a grouped two-column table.
func FormatMetrics(m Metrics) string {
	w := table.NewWriter()
	w.SetStyle(table.StyleLight)
	w.SetTitle("Report Evaluation Metrics")
	w.AppendHeader(table.Row{"Metric", "Value"})

	w.AppendRows([]table.Row{
		{"Word Count", m.WordCount},
		{"Sentence Count", m.SentenceCount},
		{"Paragraph Count", m.ParagraphCount},
		{"Citation Count", m.CitationCount},
	})
	w.AppendSeparator()
	w.AppendRows([]table.Row{
		{"Total Sources", m.SourceCount},
		{"Unique Domains", m.UniqueDomains},
		{"Words per Source", m.WordsPerSource},
	})
	w.AppendSeparator()
	w.AppendRows([]table.Row{
		{"Avg Sentence Length", fmt.Sprintf("%.2f words", m.AvgSentenceLength)},
		{"Avg Word Length", fmt.Sprintf("%.2f chars", m.AvgWordLength)},
	})
	w.AppendSeparator()
	w.AppendRows([]table.Row{
		{"Has Sections", m.HasSections},
		{"Section Count", m.SectionCount},
		{"Topic Mentions", m.TopicMentions},
	})
	if m.ExecutionTimeSeconds > 0 {
		w.AppendSeparator()
		w.AppendRow(table.Row{"Execution Time", fmt.Sprintf("%.2fs", m.ExecutionTimeSeconds)})
	}
	return w.Render()
}
