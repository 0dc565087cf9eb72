package knowledge

import (
	"fmt"
	"strings"

	"github.com/Chinmay-Bakhale/scriptgen/pkg/splitter"
)

// FormatContext renders retrieved documents as a prompt context block.
func FormatContext(docs []Retrieved) string {
	if len(docs) == 0 {
		return NoPriorKnowledge
	}

	lines := []string{contextHeader + "\n"}
	for i, d := range docs {
		lines = append(lines, fmt.Sprintf("[Doc %d] Source: %s (relevance: %.2f)\n%s...\n",
			i+1, d.URL, d.RelevanceScore, splitter.Truncate(d.Content, contextSnippetLength)))
	}
	return strings.Join(lines, "\n")
}

const (
	// NoPriorKnowledge is returned by FormatContext for an empty result set.
	NoPriorKnowledge     = "No prior knowledge available."
	contextHeader        = "=== Prior Research Context (from Knowledge Base) ==="
	contextSnippetLength = 600
)
