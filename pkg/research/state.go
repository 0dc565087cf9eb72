package research

import (
	"errors"
	"fmt"

	"github.com/Chinmay-Bakhale/scriptgen/pkg/scorer"
	"github.com/Chinmay-Bakhale/scriptgen/pkg/search"
	"github.com/Chinmay-Bakhale/scriptgen/pkg/source"
)

// ErrInvariantViolation reports a state transition the pipeline must never make.
var ErrInvariantViolation = errors.New("research invariant violation")

// ResearchState is the record threaded through every stage of a run.
// Stages receive it by value and must not modify its slices or maps.
type ResearchState struct {
	Topic                string                `json:"topic"`
	Iteration            int                   `json:"iteration"`
	Plan                 string                `json:"plan"`
	SearchQueries        []string              `json:"search_queries"`
	RawSearchResults     []search.Result       `json:"raw_search_results"`
	ExtractedPages       []source.Page         `json:"extracted_pages"`
	ScoredSources        []scorer.ScoredSource `json:"scored_sources"`
	DraftReport          string                `json:"draft_report"`
	Critique             string                `json:"critique"`
	ResearchHistory      []string              `json:"research_history"`
	FinalReport          string                `json:"final_report"`
	QualitySummary       scorer.Summary        `json:"quality_summary"`
	SearchLatencySeconds float64               `json:"search_latency_seconds"`
	PriorContext         string                `json:"prior_context"`
}

// NewState returns the initial state for topic.
func NewState(topic string) ResearchState {
	return ResearchState{
		Topic:            topic,
		Iteration:        1,
		SearchQueries:    []string{},
		RawSearchResults: []search.Result{},
		ExtractedPages:   []source.Page{},
		ScoredSources:    []scorer.ScoredSource{},
		ResearchHistory:  []string{},
		QualitySummary:   scorer.Summary{},
	}
}

// Field names a ResearchState field in a Patch.
type Field string

const (
	FieldTopic                Field = "topic"
	FieldIteration            Field = "iteration"
	FieldPlan                 Field = "plan"
	FieldSearchQueries        Field = "search_queries"
	FieldRawSearchResults     Field = "raw_search_results"
	FieldExtractedPages       Field = "extracted_pages"
	FieldScoredSources        Field = "scored_sources"
	FieldDraftReport          Field = "draft_report"
	FieldCritique             Field = "critique"
	FieldResearchHistory      Field = "research_history"
	FieldFinalReport          Field = "final_report"
	FieldQualitySummary       Field = "quality_summary"
	FieldSearchLatencySeconds Field = "search_latency_seconds"
	FieldPriorContext         Field = "prior_context"
)

// MergePolicy decides how a patched value combines with the current one.
type MergePolicy int

const (
	Replace MergePolicy = iota
	Append
	// WriteOnce fields accept a single non-empty value.
	WriteOnce
	// Immutable fields reject every patch.
	Immutable
)

func (p MergePolicy) String() string {
	switch p {
	case Replace:
		return "replace"
	case Append:
		return "append"
	case WriteOnce:
		return "write-once"
	case Immutable:
		return "immutable"
	}
	return fmt.Sprintf("MergePolicy(%d)", int(p))
}

var mergePolicies = map[Field]MergePolicy{
	FieldTopic:                Immutable,
	FieldIteration:            Replace,
	FieldPlan:                 Replace,
	FieldSearchQueries:        Replace,
	FieldRawSearchResults:     Append,
	FieldExtractedPages:       Append,
	FieldScoredSources:        Replace,
	FieldDraftReport:          Replace,
	FieldCritique:             Replace,
	FieldResearchHistory:      Append,
	FieldFinalReport:          WriteOnce,
	FieldQualitySummary:       Replace,
	FieldSearchLatencySeconds: Replace,
	FieldPriorContext:         Replace,
}

// PolicyFor returns the merge policy of f.
func PolicyFor(f Field) (MergePolicy, bool) {
	p, ok := mergePolicies[f]
	return p, ok
}

// Patch is the partial update a stage returns. Fields absent from the patch
// are left untouched.
type Patch map[Field]any

// Apply merges p into s according to each field's policy. On error s may be
// partially updated; callers treat the error as fatal.
func (s *ResearchState) Apply(p Patch) error {
	for f, v := range p {
		if err := s.merge(f, v); err != nil {
			return err
		}
	}
	return nil
}

func (s *ResearchState) merge(f Field, v any) error {
	policy, ok := mergePolicies[f]
	if !ok {
		return fmt.Errorf("%w: unknown field %q", ErrInvariantViolation, f)
	}

	switch policy {
	case Immutable:
		return fmt.Errorf("%w: %s is immutable", ErrInvariantViolation, f)
	case WriteOnce:
		dst, ok := s.slot(f).(*string)
		if !ok {
			return fmt.Errorf("%w: %s cannot be write-once", ErrInvariantViolation, f)
		}
		if *dst != "" {
			return fmt.Errorf("%w: %s already written", ErrInvariantViolation, f)
		}
		return assign(dst, f, v)
	case Append:
		switch dst := s.slot(f).(type) {
		case *[]search.Result:
			return extend(dst, f, v)
		case *[]source.Page:
			return extend(dst, f, v)
		case *[]string:
			return extend(dst, f, v)
		}
		return fmt.Errorf("%w: %s cannot be appended", ErrInvariantViolation, f)
	default:
		switch dst := s.slot(f).(type) {
		case *int:
			return assign(dst, f, v)
		case *float64:
			return assign(dst, f, v)
		case *string:
			return assign(dst, f, v)
		case *[]string:
			return assign(dst, f, v)
		case *[]scorer.ScoredSource:
			return assign(dst, f, v)
		case *scorer.Summary:
			return assign(dst, f, v)
		}
		return fmt.Errorf("%w: %s cannot be replaced", ErrInvariantViolation, f)
	}
}

func (s *ResearchState) slot(f Field) any {
	switch f {
	case FieldTopic:
		return &s.Topic
	case FieldIteration:
		return &s.Iteration
	case FieldPlan:
		return &s.Plan
	case FieldSearchQueries:
		return &s.SearchQueries
	case FieldRawSearchResults:
		return &s.RawSearchResults
	case FieldExtractedPages:
		return &s.ExtractedPages
	case FieldScoredSources:
		return &s.ScoredSources
	case FieldDraftReport:
		return &s.DraftReport
	case FieldCritique:
		return &s.Critique
	case FieldResearchHistory:
		return &s.ResearchHistory
	case FieldFinalReport:
		return &s.FinalReport
	case FieldQualitySummary:
		return &s.QualitySummary
	case FieldSearchLatencySeconds:
		return &s.SearchLatencySeconds
	case FieldPriorContext:
		return &s.PriorContext
	}
	return nil
}

func assign[T any](dst *T, f Field, v any) error {
	val, ok := v.(T)
	if !ok {
		return fmt.Errorf("%w: %s got %T, want %T", ErrInvariantViolation, f, v, *dst)
	}
	*dst = val
	return nil
}

func extend[T any](dst *[]T, f Field, v any) error {
	val, ok := v.([]T)
	if !ok {
		return fmt.Errorf("%w: %s got %T, want %T", ErrInvariantViolation, f, v, *dst)
	}
	// copy so earlier snapshots never observe the new elements
	merged := make([]T, 0, len(*dst)+len(val))
	merged = append(merged, *dst...)
	*dst = append(merged, val...)
	return nil
}
