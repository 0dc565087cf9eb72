package scorer

import (
	"math"
	"net/url"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/Chinmay-Bakhale/scriptgen/pkg/source"
)

// DefaultMinScore is the threshold used when none is configured.
const DefaultMinScore = 0.3

// Sub-score weights. They sum to 1.
const (
	relevanceWeight = 0.40
	contentWeight   = 0.30
	domainWeight    = 0.20
	structureWeight = 0.10
)

// relevanceSaturation is the keyword density that maps to a perfect relevance score.
const relevanceSaturation = 0.02

var highAuthoritySuffixes = []string{".edu", ".gov", ".org"}

var trustedSources = map[string]struct{}{
	"nature.com": {}, "science.org": {}, "pubmed.ncbi.nlm.nih.gov": {},
	"arxiv.org": {}, "scholar.google.com": {}, "reuters.com": {},
	"bbc.com": {}, "apnews.com": {}, "economist.com": {}, "wired.com": {},
	"technologyreview.com": {}, "scientificamerican.com": {},
	"theguardian.com": {}, "nytimes.com": {}, "wsj.com": {},
	"forbes.com": {}, "hbr.org": {}, "mit.edu": {}, "stanford.edu": {},
}

var lowQualityDomains = map[string]struct{}{
	"pinterest.com": {}, "quora.com": {}, "reddit.com": {},
	"facebook.com": {}, "twitter.com": {}, "instagram.com": {},
	"tiktok.com": {}, "youtube.com": {}, "amazon.com": {},
	"ebay.com": {}, "yelp.com": {},
}

// Scores is the per-dimension breakdown attached to a scored source.
type Scores struct {
	Final     float64 `json:"final"`
	Domain    float64 `json:"domain"`
	Content   float64 `json:"content"`
	Relevance float64 `json:"relevance"`
	Structure float64 `json:"structure"`
}

// ScoredSource is a page together with its quality scores.
type ScoredSource struct {
	source.Page
	Quality Scores `json:"quality_scores"`
}

// Scorer filters candidate sources by a minimum final score.
type Scorer struct {
	MinScore float64
}

// New returns a Scorer with the given threshold.
func New(minScore float64) *Scorer {
	return &Scorer{MinScore: minScore}
}

// ScoreDomain rates the authority of the URL's host.
func ScoreDomain(rawURL string) float64 {
	if rawURL == "" {
		return 0.0
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return 0.0
	}
	domain := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")

	if _, ok := trustedSources[domain]; ok {
		return 1.0
	}
	if _, ok := lowQualityDomains[domain]; ok {
		return 0.1
	}
	for _, suffix := range highAuthoritySuffixes {
		if strings.HasSuffix(domain, suffix) {
			return 0.8
		}
	}
	return 0.5
}

// ScoreContent rates content richness by word count band.
func ScoreContent(content string) float64 {
	if content == "" {
		return 0.0
	}
	words := len(strings.Fields(content))
	switch {
	case words < 100:
		return 0.1
	case words < 300:
		return 0.3
	case words < 600:
		return 0.5
	case words < 1200:
		return 0.7
	case words < 2000:
		return 0.9
	default:
		return 1.0
	}
}

// ScoreRelevance rates topic keyword density. Topic words of more than three
// characters are counted case-insensitively; a 2% density saturates the score.
func ScoreRelevance(content, topic string) float64 {
	if content == "" || topic == "" {
		return 0.0
	}

	var topicWords []string
	for _, w := range strings.Fields(topic) {
		if utf8.RuneCountInString(w) > 3 {
			topicWords = append(topicWords, strings.ToLower(w))
		}
	}
	if len(topicWords) == 0 {
		return 0.5
	}

	lower := strings.ToLower(content)
	mentions := 0
	for _, w := range topicWords {
		mentions += strings.Count(lower, w)
	}
	wordCount := max(len(strings.Fields(content)), 1)

	density := float64(mentions) / float64(wordCount)
	return math.Min(density/relevanceSaturation, 1.0)
}

// ScoreURLStructure rates URL hygiene: scheme, length, query parameters and path depth.
func ScoreURLStructure(rawURL string) float64 {
	if rawURL == "" {
		return 0.0
	}

	score := 0.5
	if strings.HasPrefix(rawURL, "https://") {
		score += 0.2
	}
	if utf8.RuneCountInString(rawURL) > 200 {
		score -= 0.2
	}

	switch params := strings.Count(rawURL, "&"); {
	case params > 3:
		score -= 0.2
	case params == 0:
		score += 0.1
	}

	// slashes beyond the two in "scheme://"
	if strings.Count(rawURL, "/")-2 > 5 {
		score -= 0.1
	}

	return math.Max(0.0, math.Min(score, 1.0))
}

// ScoreSource scores a single page against the topic.
func ScoreSource(page source.Page, topic string) ScoredSource {
	q := Scores{
		Domain:    ScoreDomain(page.URL),
		Content:   ScoreContent(page.RawContent),
		Relevance: ScoreRelevance(page.RawContent, topic),
		Structure: ScoreURLStructure(page.URL),
	}
	q.Final = round4(q.Relevance*relevanceWeight +
		q.Content*contentWeight +
		q.Domain*domainWeight +
		q.Structure*structureWeight)

	return ScoredSource{Page: page, Quality: q}
}

// ScoreSources scores every page and orders them best first. Ties keep their input order.
func ScoreSources(pages []source.Page, topic string) []ScoredSource {
	scored := make([]ScoredSource, 0, len(pages))
	for _, p := range pages {
		scored = append(scored, ScoreSource(p, topic))
	}
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Quality.Final > scored[j].Quality.Final
	})
	return scored
}

// FilterSources keeps sources whose final score reaches minScore. When none
// qualifies the single best source is returned so callers never starve.
func FilterSources(pages []source.Page, topic string, minScore float64) []ScoredSource {
	scored := ScoreSources(pages, topic)
	if len(scored) == 0 {
		return scored
	}

	filtered := make([]ScoredSource, 0, len(scored))
	for _, s := range scored {
		if s.Quality.Final >= minScore {
			filtered = append(filtered, s)
		}
	}
	if len(filtered) == 0 {
		return scored[:1]
	}
	return filtered
}

// Filter applies FilterSources with the scorer's threshold.
func (s *Scorer) Filter(pages []source.Page, topic string) []ScoredSource {
	return FilterSources(pages, topic, s.MinScore)
}

func round4(v float64) float64 {
	return math.Round(v*1e4) / 1e4
}
