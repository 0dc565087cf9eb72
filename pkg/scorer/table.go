package scorer

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

const maxURLWidth = 52

// RenderTable renders a fixed-width table of scored sources. Rows whose URL is
// in kept are marked as retained.
func RenderTable(scored []ScoredSource, kept []ScoredSource) string {
	keptURLs := make(map[string]bool, len(kept))
	for _, k := range kept {
		keptURLs[k.URL] = true
	}

	w := table.NewWriter()
	w.SetStyle(table.StyleLight)
	w.AppendHeader(table.Row{"Kept", "URL", "Final", "Domain", "Content", "Relevance", "Structure"})
	for _, s := range scored {
		mark := "no"
		if keptURLs[s.URL] {
			mark = "yes"
		}
		q := s.Quality
		w.AppendRow(table.Row{
			mark,
			shorten(s.URL),
			fmt.Sprintf("%.2f", q.Final),
			fmt.Sprintf("%.2f", q.Domain),
			fmt.Sprintf("%.2f", q.Content),
			fmt.Sprintf("%.2f", q.Relevance),
			fmt.Sprintf("%.2f", q.Structure),
		})
	}
	w.SetColumnConfigs([]table.ColumnConfig{
		{Number: 3, Align: text.AlignRight},
		{Number: 4, Align: text.AlignRight},
		{Number: 5, Align: text.AlignRight},
		{Number: 6, Align: text.AlignRight},
		{Number: 7, Align: text.AlignRight},
	})
	return w.Render()
}

func shorten(u string) string {
	if len(u) <= maxURLWidth {
		return u
	}
	return u[:maxURLWidth-3] + "..."
}
