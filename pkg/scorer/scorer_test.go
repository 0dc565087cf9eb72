package scorer

import (
	"math"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/Chinmay-Bakhale/scriptgen/pkg/source"
)

const eps = 1e-9

func approx(a, b float64) bool {
	return math.Abs(a-b) < eps
}

func words(w string, n int) string {
	return strings.TrimSpace(strings.Repeat(w+" ", n))
}

func TestScoreDomain(t *testing.T) {
	tests := []struct {
		name string
		url  string
		want float64
	}{
		{"Trusted", "https://nature.com/articles/1", 1.0},
		{"Trusted with www", "https://www.reuters.com/world", 1.0},
		{"Low quality", "https://www.reddit.com/r/science", 0.1},
		{"High authority suffix", "https://cs.stanford.edu/people", 0.8},
		{"Gov suffix", "https://data.census.gov", 0.8},
		{"Unknown", "https://example.com/post", 0.5},
		{"No scheme", "nature.com/x", 0.5},
		{"Empty", "", 0.0},
		{"Unparseable", "http://[::1", 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ScoreDomain(tt.url); got != tt.want {
				t.Errorf("ScoreDomain(%q) = %v, want %v", tt.url, got, tt.want)
			}
		})
	}
}

func TestScoreContent(t *testing.T) {
	tests := []struct {
		words int
		want  float64
	}{
		{0, 0.0},
		{50, 0.1},
		{99, 0.1},
		{100, 0.3},
		{299, 0.3},
		{300, 0.5},
		{599, 0.5},
		{600, 0.7},
		{1199, 0.7},
		{1200, 0.9},
		{1999, 0.9},
		{2000, 1.0},
		{5000, 1.0},
	}

	for _, tt := range tests {
		content := words("lorem", tt.words)
		if got := ScoreContent(content); got != tt.want {
			t.Errorf("ScoreContent(%d words) = %v, want %v", tt.words, got, tt.want)
		}
	}
}

func TestScoreRelevance(t *testing.T) {
	tests := []struct {
		name    string
		content string
		topic   string
		want    float64
	}{
		{"Empty content", "", "AI safety", 0.0},
		{"Empty topic", "some content", "", 0.0},
		{"No qualifying topic words", "anything at all", "AI ML is", 0.5},
		{"Saturated", words("ai safety", 250), "AI safety", 1.0},
		{"Half density", "safety " + words("filler", 99), "AI safety", 0.5},
		{"No mentions", words("filler", 100), "climate change", 0.0},
		{"Case insensitive", "CLIMATE " + words("filler", 49), "Climate", 1.0},
		{"Short non-ASCII topic words", "日本語 is discussed here 日本語 日本語", "日本語 AI", 0.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ScoreRelevance(tt.content, tt.topic)
			if math.Abs(got-tt.want) > 1e-6 {
				t.Errorf("ScoreRelevance() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestScoreURLStructure(t *testing.T) {
	tests := []struct {
		name string
		url  string
		want float64
	}{
		{"Empty", "", 0.0},
		{"Https no params", "https://nature.com/x", 0.8},
		{"Http no params", "http://example.com/a", 0.6},
		{"Some params", "https://example.com/a?x=1&y=2", 0.7},
		{"Many params", "http://example.com/?a=1&b=2&c=3&d=4&e=5", 0.3},
		{"Deep path", "http://e.com/a/b/c/d/e/f/g", 0.5},
		{"Long URL", "https://example.com/" + strings.Repeat("a", 200), 0.6},
		{"Non-ASCII URL counted in characters", "https://example.com/" + strings.Repeat("é", 150), 0.8},
		{"Clamped at zero", "http://e.com/a/b/c/d/e/f/g?" + strings.Repeat("a=1&", 5) + strings.Repeat("z", 200), 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ScoreURLStructure(tt.url)
			if math.Abs(got-tt.want) > 1e-6 {
				t.Errorf("ScoreURLStructure(%q) = %v, want %v", tt.url, got, tt.want)
			}
		})
	}
}

func TestScoreSourceTrustedScenario(t *testing.T) {
	page := source.Page{URL: "https://nature.com/x", RawContent: words("ai safety", 250)}

	got := ScoreSource(page, "AI safety")

	if got.Quality.Domain != 1.0 {
		t.Errorf("domain = %v, want 1.0", got.Quality.Domain)
	}
	if got.Quality.Content != 0.5 {
		t.Errorf("content = %v, want 0.5", got.Quality.Content)
	}
	if got.Quality.Relevance != 1.0 {
		t.Errorf("relevance = %v, want 1.0", got.Quality.Relevance)
	}
	if got.Quality.Final < 0.70 || got.Quality.Final > 0.85 {
		t.Errorf("final = %v, want within [0.70, 0.85]", got.Quality.Final)
	}
	if !approx(got.Quality.Final, 0.83) {
		t.Errorf("final = %v, want 0.83", got.Quality.Final)
	}
	if got.URL != page.URL || got.RawContent != page.RawContent {
		t.Errorf("scored source lost its page fields")
	}
}

func TestScoreSourceWeights(t *testing.T) {
	page := source.Page{URL: "https://example.com/a?x=1&y=2", RawContent: words("filler", 150)}
	got := ScoreSource(page, "quantum computing")

	q := got.Quality
	want := round4(0.40*q.Relevance + 0.30*q.Content + 0.20*q.Domain + 0.10*q.Structure)
	if !approx(q.Final, want) {
		t.Errorf("final = %v, want %v", q.Final, want)
	}
}

func samplePages() []source.Page {
	return []source.Page{
		{URL: "https://www.pinterest.com/pin/1", RawContent: words("recipe", 20)},
		{URL: "https://nature.com/x", RawContent: words("ai safety", 250)},
		{URL: "https://example.com/a", RawContent: "safety " + words("filler", 150)},
		{URL: "https://example.com/b", RawContent: "safety " + words("filler", 150)},
		{URL: "", RawContent: ""},
	}
}

func TestScoreSourcesSortedDescending(t *testing.T) {
	scored := ScoreSources(samplePages(), "AI safety")

	if len(scored) != len(samplePages()) {
		t.Fatalf("got %d scored sources, want %d", len(scored), len(samplePages()))
	}
	for i := 1; i < len(scored); i++ {
		if scored[i-1].Quality.Final < scored[i].Quality.Final {
			t.Errorf("not sorted at %d: %v < %v", i, scored[i-1].Quality.Final, scored[i].Quality.Final)
		}
	}
	if scored[0].URL != "https://nature.com/x" {
		t.Errorf("best source = %q, want nature.com", scored[0].URL)
	}

	// equal scores keep input order
	var tied []string
	for _, s := range scored {
		if strings.HasPrefix(s.URL, "https://example.com/") {
			tied = append(tied, s.URL)
		}
	}
	if diff := cmp.Diff([]string{"https://example.com/a", "https://example.com/b"}, tied); diff != "" {
		t.Errorf("tie order mismatch (-want +got):\n%s", diff)
	}
}

func TestFilterSourcesNeverEmpty(t *testing.T) {
	pages := []source.Page{
		{URL: "http://www.quora.com/q?a=1&b=2&c=3&d=4", RawContent: "x"},
		{URL: "http://www.reddit.com/r", RawContent: "y"},
	}

	got := FilterSources(pages, "unrelated topic words", 0.99)
	if len(got) != 1 {
		t.Fatalf("got %d sources, want exactly 1", len(got))
	}
	best := ScoreSources(pages, "unrelated topic words")[0]
	if got[0].URL != best.URL {
		t.Errorf("fallback source = %q, want top-scoring %q", got[0].URL, best.URL)
	}
}

func TestFilterSourcesThreshold(t *testing.T) {
	got := New(0.5).Filter(samplePages(), "AI safety")
	if len(got) == 0 {
		t.Fatal("expected at least one source")
	}
	for _, s := range got {
		if s.Quality.Final < 0.5 {
			t.Errorf("source %q scored %v below threshold", s.URL, s.Quality.Final)
		}
	}
}

func TestFilterSourcesEmptyInput(t *testing.T) {
	if got := FilterSources(nil, "topic", DefaultMinScore); len(got) != 0 {
		t.Errorf("got %d sources for empty input", len(got))
	}
}

func TestSummarize(t *testing.T) {
	if got := Summarize(nil); len(got) != 0 {
		t.Errorf("Summarize(nil) = %v, want empty", got)
	}

	scored := []ScoredSource{
		{Quality: Scores{Final: 0.9}},
		{Quality: Scores{Final: 0.7}},
		{Quality: Scores{Final: 0.5}},
		{Quality: Scores{Final: 0.1}},
	}
	want := Summary{
		KeyTotalSources:  4,
		KeyAvgScore:      0.55,
		KeyMaxScore:      0.9,
		KeyMinScore:      0.1,
		KeyHighQuality:   2,
		KeyMediumQuality: 1,
		KeyLowQuality:    1,
	}
	if diff := cmp.Diff(want, Summarize(scored)); diff != "" {
		t.Errorf("Summarize mismatch (-want +got):\n%s", diff)
	}
}

func TestRenderTable(t *testing.T) {
	scored := ScoreSources(samplePages(), "AI safety")
	kept := FilterSources(samplePages(), "AI safety", 0.7)

	out := RenderTable(scored, kept)
	if !strings.Contains(out, "nature.com") {
		t.Errorf("table missing source URL:\n%s", out)
	}
	if !strings.Contains(strings.ToUpper(out), "RELEVANCE") {
		t.Errorf("table missing header:\n%s", out)
	}
}
