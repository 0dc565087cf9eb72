package evaluate

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/Chinmay-Bakhale/scriptgen/pkg/scorer"
	"github.com/Chinmay-Bakhale/scriptgen/pkg/source"
)

// HistoryFile is the metrics log every evaluated run is appended to.
const HistoryFile = "metrics_history.json"

const (
	reportPrefix  = "final_research_report_"
	maxSlugLength = 50
	timeLayout    = "2006-01-02 15:04:05"
)

var slugStrip = regexp.MustCompile(`[^\p{L}\p{N}_\s-]`)

// historyMu serialises appends from concurrent runs in one process.
var historyMu sync.Mutex

// Record is the metrics document stored next to a report and in the history log.
type Record struct {
	Topic                string  `json:"topic"`
	Timestamp            string  `json:"timestamp"`
	ReportFile           string  `json:"report_file"`
	Metrics              Metrics `json:"metrics"`
	SearchLatencySeconds float64 `json:"search_latency_seconds"`
}

// Run is a finished research run to be saved.
type Run struct {
	Topic         string
	Report        string
	Pages         []source.Page
	Quality       scorer.Summary
	SearchLatency float64
	Elapsed       time.Duration
	// Evaluate is false when the run produced no usable report; only the
	// report file is written then.
	Evaluate bool
}

// Artifacts lists the files written for a run.
type Artifacts struct {
	ReportPath  string
	MetricsPath string
	HistoryPath string
	Record      *Record
}

// Slug lowercases topic, drops punctuation, replaces spaces with underscores
// and caps the result at 50 characters.
func Slug(topic string) string {
	s := slugStrip.ReplaceAllString(strings.ToLower(topic), "")
	s = strings.ReplaceAll(s, " ", "_")
	if r := []rune(s); len(r) > maxSlugLength {
		s = string(r[:maxSlugLength])
	}
	return s
}

// ReportFilename returns the report file name for topic.
func ReportFilename(topic string) string {
	return reportPrefix + Slug(topic) + ".md"
}

// MetricsFilename returns the metrics file name paired with a report file.
func MetricsFilename(reportFile string) string {
	return strings.TrimSuffix(reportFile, ".md") + "_metrics.json"
}

// Save writes the report into dir and, when requested, its metrics file and a
// history entry.
func Save(dir string, run Run, now time.Time) (Artifacts, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Artifacts{}, fmt.Errorf("failed to create output directory: %w", err)
	}

	reportFile := ReportFilename(run.Topic)
	out := Artifacts{ReportPath: filepath.Join(dir, reportFile)}
	if err := os.WriteFile(out.ReportPath, []byte(run.Report), 0o644); err != nil {
		return out, fmt.Errorf("failed to write report: %w", err)
	}
	if !run.Evaluate {
		return out, nil
	}

	m := Evaluate(run.Report, run.Topic, run.Pages, run.Elapsed.Seconds())
	if run.Quality != nil {
		m.SourceQuality = run.Quality
	}
	rec := &Record{
		Topic:                run.Topic,
		Timestamp:            now.Format(timeLayout),
		ReportFile:           reportFile,
		Metrics:              m,
		SearchLatencySeconds: run.SearchLatency,
	}
	out.Record = rec

	out.MetricsPath = filepath.Join(dir, MetricsFilename(reportFile))
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return out, err
	}
	if err := os.WriteFile(out.MetricsPath, data, 0o644); err != nil {
		return out, fmt.Errorf("failed to write metrics: %w", err)
	}

	out.HistoryPath = filepath.Join(dir, HistoryFile)
	if err := AppendHistory(out.HistoryPath, *rec); err != nil {
		return out, err
	}
	return out, nil
}

// AppendHistory adds rec to the JSON array stored at path, creating it when
// missing. A history file that cannot be parsed is left untouched.
func AppendHistory(path string, rec Record) error {
	historyMu.Lock()
	defer historyMu.Unlock()

	history, err := LoadHistory(path)
	if err != nil {
		return err
	}
	history = append(history, rec)

	data, err := json.MarshalIndent(history, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write metrics history: %w", err)
	}
	return nil
}

// LoadHistory reads the metrics history at path. A missing file is an empty history.
func LoadHistory(path string) ([]Record, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return []Record{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read metrics history: %w", err)
	}
	var history []Record
	if err := json.Unmarshal(data, &history); err != nil {
		return nil, fmt.Errorf("failed to parse metrics history %s: %w", path, err)
	}
	return history, nil
}
