package evaluate

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/Chinmay-Bakhale/scriptgen/pkg/scorer"
	"github.com/Chinmay-Bakhale/scriptgen/pkg/source"
)

func TestEvaluateCounts(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		check func(Metrics) bool
	}{
		{"Words", "This is a test sentence with seven words.", func(m Metrics) bool { return m.WordCount == 8 }},
		{"Sentences", "First sentence. Second sentence! Third sentence?", func(m Metrics) bool { return m.SentenceCount == 3 }},
		{"Paragraphs", "First paragraph.\n\nSecond paragraph.\n\nThird paragraph.", func(m Metrics) bool { return m.ParagraphCount == 3 }},
		{"Citations", "Some fact [1]. Another fact [2]. More info [3].", func(m Metrics) bool { return m.CitationCount == 3 }},
		{"Sections", "# Title\n\n## Section 1\n\n## Section 2\n\n### Subsection", func(m Metrics) bool { return m.SectionCount == 2 && m.HasSections }},
		{"No sections", "Just plain text without sections", func(m Metrics) bool { return m.SectionCount == 0 && !m.HasSections }},
		{"Avg sentence length", "Short. This is longer sentence.", func(m Metrics) bool { return m.AvgSentenceLength == 2.5 }},
		{"Avg word length", "ab abcd", func(m Metrics) bool { return m.AvgWordLength == 3 }},
		{"Empty", "", func(m Metrics) bool { return m.WordCount == 0 && m.AvgWordLength == 0 && m.AvgSentenceLength == 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := Evaluate(tt.text, "", nil, 0)
			if !tt.check(m) {
				t.Errorf("unexpected metrics for %q: %+v", tt.text, m)
			}
		})
	}
}

func TestEvaluateSources(t *testing.T) {
	pages := []source.Page{
		{URL: "https://example.com/page1"},
		{URL: "https://www.example.com/page2"},
		{URL: "https://another.com/page"},
		{URL: "ftp://ignored.example/file"},
	}
	report := "## Renewable Energy\n\nRenewable energy grows. Energy storage matters."

	m := Evaluate(report, "renewable energy in Asia", pages, 12.346)

	if m.SourceCount != 4 {
		t.Errorf("source count = %d, want 4", m.SourceCount)
	}
	if m.UniqueDomains != 2 {
		t.Errorf("unique domains = %d, want 2", m.UniqueDomains)
	}
	if m.TopicMentions != 5 {
		t.Errorf("topic mentions = %d, want 5", m.TopicMentions)
	}
	if m.ExecutionTimeSeconds != 12.35 {
		t.Errorf("execution time = %v, want 12.35", m.ExecutionTimeSeconds)
	}
	if m.WordsPerSource != 2.25 {
		t.Errorf("words per source = %v, want 2.25", m.WordsPerSource)
	}
}

func TestSlug(t *testing.T) {
	tests := map[string]string{
		"Renewable Energy":        "renewable_energy",
		"AI: Risks & Rewards?":    "ai_risks__rewards",
		"multi-modal models":      "multi-modal_models",
		strings.Repeat("ab ", 30): strings.Repeat("ab_", 16) + "ab",
	}
	for topic, want := range tests {
		if got := Slug(topic); got != want {
			t.Errorf("Slug(%q) = %q, want %q", topic, got, want)
		}
	}
	if got := ReportFilename("Tidal Power"); got != "final_research_report_tidal_power.md" {
		t.Errorf("ReportFilename() = %q", got)
	}
	if got := MetricsFilename("final_research_report_x.md"); got != "final_research_report_x_metrics.json" {
		t.Errorf("MetricsFilename() = %q", got)
	}
}

func TestSaveWritesArtifacts(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2025, 3, 1, 10, 30, 0, 0, time.UTC)
	run := Run{
		Topic:         "Tidal Power",
		Report:        "## Intro\n\nTidal power is steady.",
		Pages:         []source.Page{{URL: "https://nature.com/x"}},
		Quality:       scorer.Summary{scorer.KeyTotalSources: 1},
		SearchLatency: 1.5,
		Elapsed:       3 * time.Second,
		Evaluate:      true,
	}

	for i := 0; i < 2; i++ {
		if _, err := Save(dir, run, now); err != nil {
			t.Fatalf("Save() error = %v", err)
		}
	}

	report, err := os.ReadFile(filepath.Join(dir, "final_research_report_tidal_power.md"))
	if err != nil {
		t.Fatalf("report not written: %v", err)
	}
	if string(report) != run.Report {
		t.Errorf("report = %q", report)
	}

	data, err := os.ReadFile(filepath.Join(dir, "final_research_report_tidal_power_metrics.json"))
	if err != nil {
		t.Fatalf("metrics not written: %v", err)
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		t.Fatalf("metrics file is not JSON: %v", err)
	}
	want := Record{
		Topic:                "Tidal Power",
		Timestamp:            "2025-03-01 10:30:00",
		ReportFile:           "final_research_report_tidal_power.md",
		Metrics:              Evaluate(run.Report, run.Topic, run.Pages, 3),
		SearchLatencySeconds: 1.5,
	}
	want.Metrics.SourceQuality = run.Quality
	if diff := cmp.Diff(want, rec); diff != "" {
		t.Errorf("record mismatch (-want +got):\n%s", diff)
	}

	history, err := LoadHistory(filepath.Join(dir, HistoryFile))
	if err != nil {
		t.Fatalf("LoadHistory() error = %v", err)
	}
	if len(history) != 2 {
		t.Errorf("history has %d entries, want 2", len(history))
	}
}

func TestSaveWithoutEvaluation(t *testing.T) {
	dir := t.TempDir()
	got, err := Save(dir, Run{Topic: "x", Report: "No report was generated."}, time.Now())
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if got.MetricsPath != "" || got.Record != nil {
		t.Errorf("metrics written for unevaluated run: %+v", got)
	}
	if _, err := os.Stat(filepath.Join(dir, HistoryFile)); !os.IsNotExist(err) {
		t.Errorf("history file should not exist, stat error = %v", err)
	}
}

func TestAppendHistoryRejectsCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), HistoryFile)
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := AppendHistory(path, Record{Topic: "x"}); err == nil {
		t.Fatal("AppendHistory() accepted a corrupt history file")
	}
	data, _ := os.ReadFile(path)
	if string(data) != "{not json" {
		t.Errorf("corrupt history was overwritten: %q", data)
	}
}

func TestFormatMetrics(t *testing.T) {
	out := FormatMetrics(Evaluate("## A\n\nOne. Two.", "topic", nil, 2))
	for _, want := range []string{"Word Count", "Unique Domains", "Execution Time", "2.00s"} {
		if !strings.Contains(out, want) {
			t.Errorf("formatted metrics missing %q:\n%s", want, out)
		}
	}
}
