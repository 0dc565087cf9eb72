package research

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Chinmay-Bakhale/scriptgen/pkg/knowledge"
	"github.com/Chinmay-Bakhale/scriptgen/pkg/scorer"
	"github.com/Chinmay-Bakhale/scriptgen/pkg/search"
	"github.com/Chinmay-Bakhale/scriptgen/pkg/source"
)

var errEmptyResponse = errors.New("empty model response")

func (e *Engine) retrieve(ctx context.Context, s ResearchState) Patch {
	if e.Knowledge == nil || e.Knowledge.Len() == 0 {
		e.Logger.Info("Knowledge base empty, skipping retrieval")
		return Patch{FieldPriorContext: ""}
	}

	docs, err := e.Knowledge.RetrieveForTopic(ctx, s.Topic, priorDocs)
	if err != nil {
		e.fail(StageRetrieve, "Knowledge retrieval failed", err)
		return Patch{FieldPriorContext: ""}
	}
	if len(docs) == 0 {
		e.Logger.Info("No relevant prior knowledge found")
		return Patch{FieldPriorContext: ""}
	}

	e.Logger.Info("Retrieved prior knowledge", "documents", len(docs), "best_relevance", docs[0].RelevanceScore)
	return Patch{FieldPriorContext: knowledge.FormatContext(docs)}
}

func (e *Engine) plan(ctx context.Context, s ResearchState) Patch {
	e.Logger.Info("Starting planning phase", "iteration", s.Iteration)

	resp, err := e.Planner.Invoke(ctx, planPrompt(s))
	if err != nil {
		e.fail(StagePlan, "Planner failed, searching the topic directly", err)
		return Patch{FieldPlan: NoPlan, FieldSearchQueries: []string{s.Topic}}
	}

	plan, queries := ParsePlan(resp)
	if len(queries) == 0 {
		e.Logger.Warn("Planner produced no queries, searching the topic directly")
		queries = []string{s.Topic}
	}

	e.Logger.Info("Generated plan", "queries", queries)
	return Patch{FieldPlan: plan, FieldSearchQueries: queries}
}

func (e *Engine) search(ctx context.Context, s ResearchState) Patch {
	e.Logger.Info("Starting search phase", "queries", len(s.SearchQueries))

	out := e.Searcher.Search(ctx, s.SearchQueries)
	results := out.Results
	if results == nil {
		results = []search.Result{}
	}
	e.Metrics.ObserveSearch(out.Latency)

	return Patch{
		FieldRawSearchResults:     results,
		FieldSearchLatencySeconds: out.Latency.Seconds(),
	}
}

func (e *Engine) extract(ctx context.Context, s ResearchState) Patch {
	urls := search.URLs(s.RawSearchResults)
	if len(urls) > extractWindow {
		urls = urls[len(urls)-extractWindow:]
	}
	if len(urls) == 0 {
		e.Logger.Info("No URLs to extract")
		return Patch{FieldExtractedPages: []source.Page{}}
	}

	e.Logger.Info("Extracting pages", "urls", len(urls))
	pages, err := e.Extractor.Extract(ctx, urls)
	if err != nil {
		e.fail(StageExtract, "Extraction failed", err, "urls", urls)
		return Patch{FieldExtractedPages: []source.Page{}}
	}
	if pages == nil {
		pages = []source.Page{}
	}

	e.Logger.Info("Extracted pages", "count", len(pages))
	return Patch{FieldExtractedPages: pages}
}

func (e *Engine) store(ctx context.Context, s ResearchState) Patch {
	if e.Knowledge == nil || len(s.ExtractedPages) == 0 {
		e.Logger.Info("No pages to store")
		return Patch{}
	}

	added, err := e.Knowledge.AddDocuments(ctx, s.ExtractedPages, s.Topic, s.Iteration)
	if err != nil {
		e.fail(StageStore, "Failed to store pages in knowledge base", err)
		return Patch{}
	}

	total := e.Knowledge.Len()
	e.Metrics.SetKnowledgeDocuments(total)
	e.Logger.Info("Knowledge base updated", "added", added, "total", total)
	return Patch{}
}

func (e *Engine) scoreFilter(ctx context.Context, s ResearchState) Patch {
	pages := uniquePages(s.ExtractedPages)
	if len(pages) == 0 {
		e.Logger.Info("No pages to filter")
		return Patch{
			FieldScoredSources:  []scorer.ScoredSource{},
			FieldQualitySummary: scorer.Summary{},
		}
	}

	scored := scorer.ScoreSources(pages, s.Topic)
	summary := scorer.Summarize(scored)
	kept := e.Scorer.Filter(pages, s.Topic)

	e.Logger.Info("Scored sources",
		"kept", len(kept),
		"total", len(pages),
		"avg_score", summary[scorer.KeyAvgScore],
		"high_quality", summary[scorer.KeyHighQuality])
	fmt.Fprintf(e.Progress, "Source quality scores:\n%s\n", scorer.RenderTable(scored, kept))

	return Patch{
		FieldScoredSources:  kept,
		FieldQualitySummary: summary,
	}
}

func (e *Engine) draft(ctx context.Context, s ResearchState) Patch {
	if len(s.ScoredSources) == 0 {
		e.Logger.Info("No sources to draft from")
		return Patch{FieldDraftReport: NoSources}
	}

	e.Logger.Info("Drafting report", "sources", sourceURLs(s.ScoredSources))
	resp, err := e.Writer.Invoke(ctx, draftPrompt(s))
	if err == nil && strings.TrimSpace(resp) == "" {
		err = errEmptyResponse
	}
	if err != nil {
		e.fail(StageDraft, "Writer failed", err)
		return Patch{FieldDraftReport: NoDraft}
	}

	e.Logger.Info("Generated draft", "length", len(resp))
	return Patch{FieldDraftReport: resp}
}

func (e *Engine) critique(ctx context.Context, s ResearchState) Patch {
	e.Logger.Info("Critiquing report", "iteration", s.Iteration)

	critique, err := e.Judge.Invoke(ctx, critiquePrompt(s))
	if err == nil && strings.TrimSpace(critique) == "" {
		err = errEmptyResponse
	}
	if err != nil {
		e.fail(StageCritique, "Judge failed", err)
		critique = NoCritique
	}

	e.Logger.Info("Critique complete", "next_iteration", s.Iteration+1)
	return Patch{
		FieldCritique:        critique,
		FieldResearchHistory: []string{historyEntry(s.Iteration, s.Plan, critique)},
		FieldIteration:       s.Iteration + 1,
	}
}

func (e *Engine) finalize(ctx context.Context, s ResearchState) Patch {
	e.Logger.Info("Compiling final report")

	report, err := e.Writer.Invoke(ctx, finalPrompt(s))
	if err == nil && strings.TrimSpace(report) == "" {
		err = errEmptyResponse
	}
	if err != nil {
		e.fail(StageFinalize, "Final writer failed, keeping latest draft", err)
		report = s.DraftReport
		if strings.TrimSpace(report) == "" {
			report = NoReport
		}
	}

	e.Logger.Info("Final report generated", "length", len(report))
	return Patch{FieldFinalReport: report}
}

// uniquePages keeps the first page seen for each URL.
func uniquePages(pages []source.Page) []source.Page {
	seen := make(map[string]bool, len(pages))
	out := make([]source.Page, 0, len(pages))
	for _, p := range pages {
		if seen[p.URL] {
			continue
		}
		seen[p.URL] = true
		out = append(out, p)
	}
	return out
}
