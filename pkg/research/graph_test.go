package research

import (
	"errors"
	"testing"
)

func TestNext(t *testing.T) {
	tests := []struct {
		name      string
		stage     Stage
		iteration int
		want      Stage
	}{
		{"Retrieve to plan", StageRetrieve, 1, StagePlan},
		{"Plan to search", StagePlan, 1, StageSearch},
		{"Search to extract", StageSearch, 1, StageExtract},
		{"Extract to store", StageExtract, 1, StageStore},
		{"Store to filter", StageStore, 1, StageScoreFilter},
		{"Filter to draft", StageScoreFilter, 1, StageDraft},
		{"First draft is critiqued", StageDraft, 1, StageCritique},
		{"Last round is critiqued", StageDraft, 2, StageCritique},
		{"Third draft is finalized", StageDraft, 3, StageFinalize},
		{"Critique loops back", StageCritique, 2, StageRetrieve},
		{"Finalize ends", StageFinalize, 3, StageEnd},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Next(tt.stage, tt.iteration, DefaultMaxIterations)
			if err != nil {
				t.Fatalf("Next() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Next(%s, %d) = %s, want %s", tt.stage, tt.iteration, got, tt.want)
			}
		})
	}
}

func TestNextFromEnd(t *testing.T) {
	if _, err := Next(StageEnd, 1, DefaultMaxIterations); !errors.Is(err, ErrInvariantViolation) {
		t.Errorf("Next(end) error = %v, want ErrInvariantViolation", err)
	}
}

func TestShouldFinalize(t *testing.T) {
	for it, want := range map[int]bool{1: false, 2: false, 3: true, 4: true} {
		if got := ShouldFinalize(it, 2); got != want {
			t.Errorf("ShouldFinalize(%d, 2) = %v, want %v", it, got, want)
		}
	}
}
