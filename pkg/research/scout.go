package research

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Chinmay-Bakhale/scriptgen/pkg/search"
)

var trendQueries = []struct {
	label string
	query string
}{
	{"Reddit Trends", "trending topics on reddit this week"},
	{"Twitter/X Trends", "top viral discussions and hashtags on X this week"},
}

// TopicScout picks a trending topic from social-media search results.
type TopicScout struct {
	Provider search.Provider
	LLM      LLM
	Logger   *slog.Logger
}

// FindTrendingTopic searches for current trends and asks the LLM to distil one topic.
func (t *TopicScout) FindTrendingTopic(ctx context.Context) (string, error) {
	logger := t.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("Scanning Reddit and X for trends")

	var sections []string
	for _, tq := range trendQueries {
		results, err := t.Provider.Search(ctx, tq.query)
		if err != nil {
			return "", fmt.Errorf("could not fetch trends: %w", err)
		}
		lines := make([]string, 0, len(results))
		for _, r := range results {
			lines = append(lines, fmt.Sprintf("- %s (%s): %s", r.Title, r.URL, r.Content))
		}
		sections = append(sections, tq.label+":\n"+strings.Join(lines, "\n"))
	}

	logger.Info("Analyzing trends to identify core topic")
	resp, err := t.LLM.Invoke(ctx, scoutPrompt(strings.Join(sections, "\n\n")))
	if err != nil {
		return "", fmt.Errorf("could not synthesize topic: %w", err)
	}

	topic := strings.Trim(strings.TrimSpace(resp), `"`)
	if topic == "" {
		return "", fmt.Errorf("could not synthesize topic: %w", errEmptyResponse)
	}
	return topic, nil
}

func scoutPrompt(trends string) string {
	return fmt.Sprintf(`You are a Viral Trend Analyst. Analyze this data to identify the most engaging,
viral, and intellectually stimulating topic.

Instructions:
1. Identify recurring themes and keywords generating buzz
2. Distill into a single compelling, research-worthy topic
3. Format as a question or statement for deep investigation
4. Output ONLY the final topic string

Raw Data:
---
%s
---

Final Topic:`, trends)
}
