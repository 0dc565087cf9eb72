package scorer

// Summary keys.
const (
	KeyTotalSources  = "total_sources"
	KeyAvgScore      = "avg_score"
	KeyMaxScore      = "max_score"
	KeyMinScore      = "min_score"
	KeyHighQuality   = "high_quality_count"
	KeyMediumQuality = "medium_quality_count"
	KeyLowQuality    = "low_quality_count"
)

// Summary holds aggregate scoring statistics. An empty Summary means no sources
// were scored, which is distinct from sources that all scored zero.
type Summary map[string]float64

// Summarize aggregates final scores into counts, mean, max, min and quality buckets.
func Summarize(scored []ScoredSource) Summary {
	if len(scored) == 0 {
		return Summary{}
	}

	var sum, high, medium, low float64
	maxScore := scored[0].Quality.Final
	minScore := scored[0].Quality.Final
	for _, s := range scored {
		f := s.Quality.Final
		sum += f
		maxScore = max(maxScore, f)
		minScore = min(minScore, f)
		switch {
		case f >= 0.7:
			high++
		case f >= 0.4:
			medium++
		default:
			low++
		}
	}

	return Summary{
		KeyTotalSources:  float64(len(scored)),
		KeyAvgScore:      round4(sum / float64(len(scored))),
		KeyMaxScore:      round4(maxScore),
		KeyMinScore:      round4(minScore),
		KeyHighQuality:   high,
		KeyMediumQuality: medium,
		KeyLowQuality:    low,
	}
}
