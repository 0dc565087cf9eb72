package research

import "fmt"

// DefaultMaxIterations is the number of critique rounds before finalizing.
const DefaultMaxIterations = 2

// Stage is a node of the research graph.
type Stage string

const (
	StageRetrieve    Stage = "retrieve"
	StagePlan        Stage = "plan"
	StageSearch      Stage = "search"
	StageExtract     Stage = "extract"
	StageStore       Stage = "store"
	StageScoreFilter Stage = "score_filter"
	StageDraft       Stage = "draft"
	StageCritique    Stage = "critique"
	StageFinalize    Stage = "finalize"
	StageEnd         Stage = "end"
)

// Branch labels an outgoing edge.
type Branch string

const (
	BranchNext     Branch = "next"
	BranchContinue Branch = "continue"
	BranchStop     Branch = "stop"
)

type edge struct {
	from   Stage
	branch Branch
}

var transitions = map[edge]Stage{
	{StageRetrieve, BranchNext}:    StagePlan,
	{StagePlan, BranchNext}:        StageSearch,
	{StageSearch, BranchNext}:      StageExtract,
	{StageExtract, BranchNext}:     StageStore,
	{StageStore, BranchNext}:       StageScoreFilter,
	{StageScoreFilter, BranchNext}: StageDraft,
	{StageDraft, BranchContinue}:   StageCritique,
	{StageDraft, BranchStop}:       StageFinalize,
	{StageCritique, BranchNext}:    StageRetrieve,
	{StageFinalize, BranchNext}:    StageEnd,
}

// ShouldFinalize reports whether the run has used up its critique rounds.
func ShouldFinalize(iteration, maxIterations int) bool {
	return iteration > maxIterations
}

// branchFor picks the outgoing edge of stage. Only the draft stage forks.
func branchFor(stage Stage, iteration, maxIterations int) Branch {
	if stage != StageDraft {
		return BranchNext
	}
	if ShouldFinalize(iteration, maxIterations) {
		return BranchStop
	}
	return BranchContinue
}

// Next returns the stage that follows stage for the given iteration.
func Next(stage Stage, iteration, maxIterations int) (Stage, error) {
	b := branchFor(stage, iteration, maxIterations)
	next, ok := transitions[edge{stage, b}]
	if !ok {
		return "", fmt.Errorf("%w: no transition from %s on %s", ErrInvariantViolation, stage, b)
	}
	return next, nil
}

// stepBound caps the number of stages a run may execute.
func stepBound(maxIterations int) int {
	perIteration := 8 // retrieve through draft, then critique or finalize
	return (maxIterations+1)*perIteration + 1
}
