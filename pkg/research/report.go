package research

import (
	"time"

	"github.com/Chinmay-Bakhale/scriptgen/pkg/evaluate"
)

// ArtifactRun describes the finished run for saving. Runs that ended without
// a usable report are saved without metrics.
func (s ResearchState) ArtifactRun(elapsed time.Duration) evaluate.Run {
	report := s.FinalReport
	if report == "" {
		report = NoReport
	}
	return evaluate.Run{
		Topic:         s.Topic,
		Report:        report,
		Pages:         s.ExtractedPages,
		Quality:       s.QualitySummary,
		SearchLatency: s.SearchLatencySeconds,
		Elapsed:       elapsed,
		Evaluate:      report != NoReport,
	}
}
