package research

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/Chinmay-Bakhale/scriptgen/pkg/knowledge"
	"github.com/Chinmay-Bakhale/scriptgen/pkg/scorer"
	"github.com/Chinmay-Bakhale/scriptgen/pkg/search"
	"github.com/Chinmay-Bakhale/scriptgen/pkg/source"
	"github.com/Chinmay-Bakhale/scriptgen/pkg/telemetry"
)

// LLM completes a single prompt.
type LLM interface {
	Invoke(ctx context.Context, prompt string) (string, error)
}

// Searcher runs a batch of queries and merges their results.
type Searcher interface {
	Search(ctx context.Context, queries []string) search.Outcome
}

// Extractor fetches the full content of pages.
type Extractor interface {
	Extract(ctx context.Context, urls []string) ([]source.Page, error)
}

// KnowledgeBase is the persistent memory consulted and extended by each iteration.
type KnowledgeBase interface {
	AddDocuments(ctx context.Context, pages []source.Page, topic string, iteration int) (int, error)
	RetrieveForTopic(ctx context.Context, topic string, n int) ([]knowledge.Retrieved, error)
	Len() int
}

const (
	// extractWindow is how many of the most recent search result URLs are extracted.
	extractWindow = 4
	// priorDocs is how many stored documents are recalled per iteration.
	priorDocs = 3
)

type stageFunc func(ctx context.Context, s ResearchState) Patch

// Engine drives a research run through the stage graph.
type Engine struct {
	Planner   LLM
	Writer    LLM
	Judge     LLM
	Searcher  Searcher
	Extractor Extractor
	// Knowledge may be nil, in which case runs are not grounded in prior research.
	Knowledge     KnowledgeBase
	Scorer        *scorer.Scorer
	MaxIterations int

	Logger  *slog.Logger
	Metrics *telemetry.Metrics
	// Progress receives human-readable stage output such as the source score table.
	Progress io.Writer
	// OnStateUpdate is called after every merged stage.
	OnStateUpdate func(stage Stage, state ResearchState)
}

// Run researches topic until the final report is written.
func (e *Engine) Run(ctx context.Context, topic string) (ResearchState, error) {
	e.defaults()
	state := NewState(topic)
	e.Logger.Info("Starting research loop", "topic", topic, "max_iterations", e.MaxIterations)

	stages := map[Stage]stageFunc{
		StageRetrieve:    e.retrieve,
		StagePlan:        e.plan,
		StageSearch:      e.search,
		StageExtract:     e.extract,
		StageStore:       e.store,
		StageScoreFilter: e.scoreFilter,
		StageDraft:       e.draft,
		StageCritique:    e.critique,
		StageFinalize:    e.finalize,
	}

	bound := stepBound(e.MaxIterations)
	stage := StageRetrieve
	for steps := 0; stage != StageEnd; steps++ {
		if steps >= bound {
			e.Metrics.RunFinished("failed")
			return state, fmt.Errorf("%w: exceeded %d steps", ErrInvariantViolation, bound)
		}
		if err := ctx.Err(); err != nil {
			e.Metrics.RunFinished("cancelled")
			return state, fmt.Errorf("research cancelled at %s: %w", stage, err)
		}

		run, ok := stages[stage]
		if !ok {
			e.Metrics.RunFinished("failed")
			return state, fmt.Errorf("%w: no handler for stage %s", ErrInvariantViolation, stage)
		}

		start := time.Now()
		patch := run(ctx, state)
		e.Metrics.ObserveStage(string(stage), time.Since(start))

		if err := state.Apply(patch); err != nil {
			e.Metrics.RunFinished("failed")
			return state, fmt.Errorf("stage %s: %w", stage, err)
		}
		if e.OnStateUpdate != nil {
			e.OnStateUpdate(stage, state)
		}

		next, err := Next(stage, state.Iteration, e.MaxIterations)
		if err != nil {
			e.Metrics.RunFinished("failed")
			return state, err
		}
		stage = next
	}

	if state.FinalReport == "" {
		e.Metrics.RunFinished("failed")
		return state, fmt.Errorf("%w: run ended without a final report", ErrInvariantViolation)
	}

	e.Metrics.RunFinished("completed")
	e.Logger.Info("Research complete", "topic", topic, "iterations", len(state.ResearchHistory), "report_length", len(state.FinalReport))
	return state, nil
}

func (e *Engine) defaults() {
	if e.Logger == nil {
		e.Logger = slog.Default()
	}
	if e.Scorer == nil {
		e.Scorer = scorer.New(scorer.DefaultMinScore)
	}
	if e.MaxIterations <= 0 {
		e.MaxIterations = DefaultMaxIterations
	}
	if e.Progress == nil {
		e.Progress = io.Discard
	}
}

// fail records a collaborator failure absorbed by stage.
func (e *Engine) fail(stage Stage, msg string, err error, args ...any) {
	e.Metrics.StageFailed(string(stage))
	e.Logger.Error(msg, append([]any{"stage", stage, "error", err}, args...)...)
}
