// Package evaluate computes report quality metrics and writes the report
// artifacts of a finished research run.
package evaluate

import (
	"math"
	"regexp"
	"strings"

	"github.com/Chinmay-Bakhale/scriptgen/pkg/scorer"
	"github.com/Chinmay-Bakhale/scriptgen/pkg/source"
)

var (
	sentenceBreak = regexp.MustCompile(`[.!?]+`)
	sectionHeader = regexp.MustCompile(`(?m)^##\s+`)
	urlHost       = regexp.MustCompile(`https?://([^/]+)`)
)

// Metrics describes a generated report.
type Metrics struct {
	WordCount         int     `json:"word_count"`
	SentenceCount     int     `json:"sentence_count"`
	ParagraphCount    int     `json:"paragraph_count"`
	AvgSentenceLength float64 `json:"avg_sentence_length"`
	AvgWordLength     float64 `json:"avg_word_length"`
	SourceCount       int     `json:"source_count"`
	UniqueDomains     int     `json:"unique_domains"`
	CitationCount     int     `json:"citation_count"`
	TopicMentions     int     `json:"topic_mentions"`
	HasSections       bool    `json:"has_sections"`
	SectionCount      int     `json:"section_count"`
	// ExecutionTimeSeconds is omitted when the run time is unknown.
	ExecutionTimeSeconds float64        `json:"execution_time_seconds,omitempty"`
	WordsPerSource       float64        `json:"words_per_source"`
	SourceQuality        scorer.Summary `json:"source_quality"`
}

// Evaluate measures report against the topic and the pages it was built from.
func Evaluate(report, topic string, pages []source.Page, executionSeconds float64) Metrics {
	words := strings.Fields(report)
	sentences := splitSentences(report)

	m := Metrics{
		WordCount:      len(words),
		SentenceCount:  len(sentences),
		ParagraphCount: countParagraphs(report),
		SourceCount:    len(pages),
		UniqueDomains:  uniqueDomains(pages),
		CitationCount:  strings.Count(report, "["),
		TopicMentions:  topicMentions(report, topic),
		SectionCount:   len(sectionHeader.FindAllStringIndex(report, -1)),
		SourceQuality:  scorer.Summary{},
	}
	m.HasSections = m.SectionCount > 0

	if len(sentences) > 0 {
		total := 0
		for _, s := range sentences {
			total += len(strings.Fields(s))
		}
		m.AvgSentenceLength = round2(float64(total) / float64(len(sentences)))
	}
	if len(words) > 0 {
		chars := 0
		for _, w := range words {
			chars += len([]rune(w))
		}
		m.AvgWordLength = round2(float64(chars) / float64(len(words)))
	}
	if executionSeconds > 0 {
		m.ExecutionTimeSeconds = round2(executionSeconds)
	}
	if m.SourceCount > 0 {
		m.WordsPerSource = round2(float64(m.WordCount) / float64(m.SourceCount))
	}
	return m
}

func splitSentences(text string) []string {
	var out []string
	for _, s := range sentenceBreak.Split(text, -1) {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func countParagraphs(text string) int {
	n := 0
	for _, p := range strings.Split(text, "\n\n") {
		if strings.TrimSpace(p) != "" {
			n++
		}
	}
	return n
}

func uniqueDomains(pages []source.Page) int {
	domains := make(map[string]struct{})
	for _, p := range pages {
		if m := urlHost.FindStringSubmatch(p.URL); m != nil {
			domains[strings.ReplaceAll(m[1], "www.", "")] = struct{}{}
		}
	}
	return len(domains)
}

// topicMentions counts case-insensitive occurrences of topic words longer than three characters.
func topicMentions(text, topic string) int {
	lower := strings.ToLower(text)
	n := 0
	for _, w := range strings.Fields(topic) {
		if len(w) > 3 {
			n += strings.Count(lower, strings.ToLower(w))
		}
	}
	return n
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
