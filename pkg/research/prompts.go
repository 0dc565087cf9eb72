package research

import (
	"fmt"
	"strings"

	"github.com/Chinmay-Bakhale/scriptgen/pkg/scorer"
)

const (
	NoSources       = "No extracted pages available for this iteration."
	NoDraft         = "No draft could be generated for this iteration."
	NoCritique      = "No critique was produced for this iteration."
	NoReport        = "No report was generated."
	sourceSeparator = "\n\n---\n\n"
)

func planPrompt(s ResearchState) string {
	guidance := "This is the first iteration. Start a fresh research plan."
	if s.Iteration > 1 {
		guidance = "Review the research history and the judge's critique to refine the plan. " +
			"Do NOT repeat previous searches. Focus on addressing the critique and filling gaps."
	}

	prior := s.PriorContext
	if prior == "" {
		prior = "None."
	}

	return fmt.Sprintf(`You are a master research planner. Devise a detailed research strategy.

Topic: %q

Prior Knowledge:
%s

Research History:
%s

Previous Critique:
%s

Your Task (%s):
1. Create a concise, one-paragraph research plan
2. Generate 2 precise and diverse search queries

Output Format:
Plan:
[Your one-paragraph research plan]

Queries:
- [Query 1]
- [Query 2]`, s.Topic, prior, strings.Join(s.ResearchHistory, "\n"), s.Critique, guidance)
}

func draftPrompt(s ResearchState) string {
	material := make([]string, 0, len(s.ScoredSources))
	for _, src := range s.ScoredSources {
		material = append(material, fmt.Sprintf("[Source: %s]\n%s", src.URL, src.RawContent))
	}

	return fmt.Sprintf(`You are an expert writer. Synthesize the following material into a detailed,
well-structured report.

Topic: %q

Instructions:
- Analyze all provided source material
- Write an in-depth report covering key findings, arguments, evidence and viewpoints
- Structure the report with Markdown sections (## headings)
- Cite sources inline as [Source: url]
- Integrate everything into a coherent narrative suitable for a podcast
- Keep the report neutral

Prior Knowledge:
%s

Source Material:
%s`, s.Topic, s.PriorContext, strings.Join(material, sourceSeparator))
}

func critiquePrompt(s ResearchState) string {
	return fmt.Sprintf(`You are a highly critical and insightful judge. Evaluate a research report.

Topic: %q

Your Persona: First, deduce the primary audience for this topic.
Embody that persona for your critique.

Report to Critique:
%s

Your Task:
1. Provide a concise, constructive critique from your persona's point of view
2. Identify specific weaknesses, gaps in logic, or unanswered questions
3. Suggest 2-3 new specific research angles or questions for the next iteration

Output Format:
Critique:
[Your detailed critique]

Suggestions for Next Iteration:
- [Suggestion/Question 1]`, s.Topic, s.DraftReport)
}

func finalPrompt(s ResearchState) string {
	fullContext := fmt.Sprintf("Topic: %s\n\nResearch History and Critiques:\n%s\n\nFinal Draft Report to Polish:\n%s",
		s.Topic, strings.Join(s.ResearchHistory, "\n"), s.DraftReport)

	return fmt.Sprintf(`You are the lead editor. Produce the final, polished version of a research report
by integrating all context and the latest draft.

Full Context:
%s

Generate a final report based on this context, well structured as a discussion
covering the different viewpoints mentioned in it.`, fullContext)
}

func historyEntry(iteration int, plan, critique string) string {
	return fmt.Sprintf("--- Iteration %d ---\nPlan: %s\nCritique:\n%s", iteration, plan, critique)
}

func sourceURLs(scored []scorer.ScoredSource) []string {
	urls := make([]string, len(scored))
	for i, s := range scored {
		urls[i] = s.URL
	}
	return urls
}
