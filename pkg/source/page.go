package source

import "strings"

// Page is the extracted content of a single URL.
type Page struct {
	URL        string `json:"url"`
	Title      string `json:"title,omitempty"`
	RawContent string `json:"raw_content"`
}

// WordCount returns the number of whitespace separated words in the page content.
func (p Page) WordCount() int {
	return len(strings.Fields(p.RawContent))
}
