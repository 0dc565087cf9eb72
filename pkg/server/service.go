package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/Chinmay-Bakhale/scriptgen/pkg/database"
	"github.com/Chinmay-Bakhale/scriptgen/pkg/evaluate"
	"github.com/Chinmay-Bakhale/scriptgen/pkg/research"
)

// Job statuses.
const (
	StatusPending   = "pending"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusCancelled = "cancelled"
)

var (
	ErrJobNotFound   = errors.New("job not found")
	ErrJobNotRunning = errors.New("job is not running")
	ErrEmptyTopic    = errors.New("topic must not be empty")
)

// Service runs research jobs in the background and records their progress in Postgres.
type Service struct {
	DB         *database.PostgresDB
	Components *research.Components
	Logger     *slog.Logger
	// OutputDir receives the report and metrics files of completed jobs.
	OutputDir string

	mu      sync.Mutex
	running map[uuid.UUID]context.CancelFunc
	wg      sync.WaitGroup
}

func NewService(db *database.PostgresDB, components *research.Components, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		DB:         db,
		Components: components,
		Logger:     logger,
		OutputDir:  components.Config.OutputDir,
		running:    make(map[uuid.UUID]context.CancelFunc),
	}
}

type Job struct {
	ID        uuid.UUID       `json:"id"`
	Topic     string          `json:"topic"`
	Status    string          `json:"status"`
	Stage     *string         `json:"stage,omitempty"`
	Iteration int             `json:"iteration"`
	Report    *string         `json:"report,omitempty"`
	Metrics   json.RawMessage `json:"metrics,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
	Config    json.RawMessage `json:"config"`
}

type CreateJobRequest struct {
	Topic string `json:"topic" binding:"required"`
}

// jobConfig snapshots the settings a job was started with.
func (s *Service) jobConfig() ([]byte, error) {
	cfg := s.Components.Config
	return json.Marshal(map[string]any{
		"max_iterations":   cfg.MaxIterations,
		"min_source_score": cfg.MinSourceScore,
		"llm_provider":     cfg.LLMProvider,
		"search_provider":  cfg.SearchProvider,
		"extractor":        cfg.Extractor,
		"embedding_model":  s.Components.Knowledge.Stats().EmbeddingModel,
	})
}

func (s *Service) CreateJob(ctx context.Context, req CreateJobRequest) (*Job, error) {
	topic := strings.TrimSpace(req.Topic)
	if topic == "" {
		return nil, ErrEmptyTopic
	}

	configJSON, err := s.jobConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to encode job config: %w", err)
	}

	query := `
		INSERT INTO research_jobs (id, topic, status, config)
		VALUES ($1, $2, $3, $4)
		RETURNING id, topic, status, iteration, created_at, updated_at, config
	`
	job := &Job{}
	err = s.DB.Pool.QueryRow(ctx, query, uuid.New(), topic, StatusPending, configJSON).Scan(
		&job.ID, &job.Topic, &job.Status, &job.Iteration, &job.CreatedAt, &job.UpdatedAt, &job.Config,
	)
	if err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}

	jobCtx, cancel := context.WithCancel(context.Background())
	s.mu.Lock()
	s.running[job.ID] = cancel
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.finish(job.ID)
		s.runWorker(jobCtx, job.ID, topic)
	}()

	return job, nil
}

const jobColumns = `id, topic, status, stage, iteration, report, metrics, created_at, updated_at, config`

func scanJob(row pgx.Row) (Job, error) {
	var job Job
	err := row.Scan(&job.ID, &job.Topic, &job.Status, &job.Stage, &job.Iteration, &job.Report,
		&job.Metrics, &job.CreatedAt, &job.UpdatedAt, &job.Config)
	return job, err
}

func (s *Service) GetJob(ctx context.Context, id uuid.UUID) (*Job, error) {
	job, err := scanJob(s.DB.Pool.QueryRow(ctx, `SELECT `+jobColumns+` FROM research_jobs WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get job %s: %w", id, err)
	}
	return &job, nil
}

func (s *Service) ListJobs(ctx context.Context) ([]Job, error) {
	rows, err := s.DB.Pool.Query(ctx, `SELECT `+jobColumns+` FROM research_jobs ORDER BY created_at DESC LIMIT 50`)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			s.Logger.Warn("Skipping unreadable job row", "error", err)
			continue
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// GetJobState returns the last persisted ResearchState snapshot of a job.
func (s *Service) GetJobState(ctx context.Context, id uuid.UUID) (json.RawMessage, error) {
	var state json.RawMessage
	err := s.DB.Pool.QueryRow(ctx, `SELECT state FROM research_jobs WHERE id = $1`, id).Scan(&state)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job state: %w", err)
	}
	return state, nil
}

type LogEntry struct {
	ID        int             `json:"id"`
	Timestamp time.Time       `json:"timestamp"`
	Level     string          `json:"level"`
	Message   string          `json:"message"`
	Metadata  json.RawMessage `json:"metadata"`
}

func (s *Service) GetJobLogs(ctx context.Context, jobID uuid.UUID) ([]LogEntry, error) {
	query := `
		SELECT id, timestamp, level, message, metadata
		FROM research_logs
		WHERE job_id = $1
		ORDER BY id ASC
	`
	rows, err := s.DB.Pool.Query(ctx, query, jobID)
	if err != nil {
		return nil, fmt.Errorf("job %s logs: %w", jobID, err)
	}
	defer rows.Close()

	var logs []LogEntry
	for rows.Next() {
		var l LogEntry
		if err := rows.Scan(&l.ID, &l.Timestamp, &l.Level, &l.Message, &l.Metadata); err != nil {
			continue
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}

// CancelJob stops a running job. The worker records the cancelled status.
func (s *Service) CancelJob(id uuid.UUID) error {
	s.mu.Lock()
	cancel, ok := s.running[id]
	s.mu.Unlock()
	if !ok {
		return ErrJobNotRunning
	}
	cancel()
	return nil
}

// Running reports how many jobs are in flight.
func (s *Service) Running() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.running)
}

// Shutdown cancels every running job and waits for the workers to exit or ctx to end.
func (s *Service) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	for _, cancel := range s.running {
		cancel()
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Service) finish(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cancel, ok := s.running[id]; ok {
		cancel()
		delete(s.running, id)
	}
}

func (s *Service) jobLogger(jobID uuid.UUID) *slog.Logger {
	return slog.New(newTeeHandler(NewDBLogHandler(s.DB, jobID), s.Logger.Handler())).With("job_id", jobID.String())
}

func (s *Service) setStatus(jobID uuid.UUID, status string) error {
	_, err := s.DB.Pool.Exec(context.Background(),
		"UPDATE research_jobs SET status = $2, updated_at = NOW() WHERE id = $1", jobID, status)
	return err
}

func (s *Service) runWorker(ctx context.Context, jobID uuid.UUID, topic string) {
	logger := s.jobLogger(jobID)

	if err := s.setStatus(jobID, StatusRunning); err != nil {
		logger.Error("Failed to mark job running", "error", err)
	}

	engine := s.Components.NewEngine(logger, nil)
	engine.OnStateUpdate = func(stage research.Stage, state research.ResearchState) {
		stateJSON, err := json.Marshal(state)
		if err != nil {
			logger.Error("Failed to marshal state", "error", err)
			return
		}
		_, err = s.DB.Pool.Exec(context.Background(),
			"UPDATE research_jobs SET state = $2, stage = $3, iteration = $4, updated_at = NOW() WHERE id = $1",
			jobID, stateJSON, string(stage), state.Iteration)
		if err != nil {
			logger.Error("Failed to save state to DB", "error", err)
		}
	}

	start := time.Now()
	state, err := engine.Run(ctx, topic)
	if errors.Is(err, context.Canceled) {
		logger.Warn("Research cancelled", "iteration", state.Iteration)
		if err := s.setStatus(jobID, StatusCancelled); err != nil {
			logger.Error("Failed to mark job cancelled", "error", err)
		}
		return
	}
	if err != nil {
		s.failJob(logger, jobID, fmt.Sprintf("Research failed: %v", err))
		return
	}

	var metricsJSON []byte
	artifacts, err := evaluate.Save(s.OutputDir, state.ArtifactRun(time.Since(start)), time.Now())
	if err != nil {
		logger.Error("Failed to save report artifacts", "error", err)
	} else {
		logger.Info("Report saved", "path", artifacts.ReportPath)
	}
	if artifacts.Record != nil {
		if metricsJSON, err = json.Marshal(artifacts.Record.Metrics); err != nil {
			logger.Error("Failed to marshal metrics", "error", err)
		}
	}

	_, err = s.DB.Pool.Exec(context.Background(),
		"UPDATE research_jobs SET status = $2, report = $3, metrics = $4, updated_at = NOW() WHERE id = $1",
		jobID, StatusCompleted, state.FinalReport, metricsJSON)
	if err != nil {
		logger.Error("Failed to save final report to DB", "error", err)
	}
}

func (s *Service) failJob(logger *slog.Logger, jobID uuid.UUID, reason string) {
	logger.Error(reason)
	if err := s.setStatus(jobID, StatusFailed); err != nil {
		logger.Error("Failed to mark job failed", "error", err)
	}
}
