// Package server exposes research runs as asynchronous jobs over HTTP.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/mikeboe/research-pipeline/pkg/database"
	"github.com/mikeboe/research-pipeline/pkg/pipeline"
)

// PipelineFactory builds a pipeline whose stages log through the given
// logger. The server builds one pipeline per job so each job's rounds land
// in its own log stream.
type PipelineFactory func(logger *slog.Logger) (*pipeline.Pipeline, error)

type Service struct {
	DB          *database.PostgresDB
	NewPipeline PipelineFactory
	MaxRounds   int
}

func NewService(db *database.PostgresDB, factory PipelineFactory, maxRounds int) *Service {
	return &Service{
		DB:          db,
		NewPipeline: factory,
		MaxRounds:   maxRounds,
	}
}

type Job struct {
	ID        uuid.UUID       `json:"id"`
	Query     string          `json:"query"`
	Status    string          `json:"status"`
	Report    *string         `json:"report,omitempty"`
	Metadata  json.RawMessage `json:"metadata,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
	Config    json.RawMessage `json:"config"`
}

type CreateJobRequest struct {
	Query string `json:"query" binding:"required"`
}

func (s *Service) CreateJob(ctx context.Context, req CreateJobRequest) (*Job, error) {
	configJSON, _ := json.Marshal(map[string]interface{}{
		"max_rounds": s.MaxRounds,
	})

	jobID := uuid.New()
	query := `
		INSERT INTO research_jobs (id, query, status, config)
		VALUES ($1, $2, 'pending', $3)
		RETURNING id, query, status, created_at, updated_at
	`

	job := &Job{}
	err := s.DB.Pool.QueryRow(ctx, query, jobID, req.Query, configJSON).Scan(
		&job.ID, &job.Query, &job.Status, &job.CreatedAt, &job.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create job: %w", err)
	}

	// Start background worker
	go s.runWorker(job.ID, req.Query)

	return job, nil
}

func (s *Service) GetJob(ctx context.Context, id uuid.UUID) (*Job, error) {
	query := `
		SELECT id, query, status, report, metadata, created_at, updated_at, config
		FROM research_jobs
		WHERE id = $1
	`
	job := &Job{}
	err := s.DB.Pool.QueryRow(ctx, query, id).Scan(
		&job.ID, &job.Query, &job.Status, &job.Report, &job.Metadata, &job.CreatedAt, &job.UpdatedAt, &job.Config,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return job, nil
}

func (s *Service) ListJobs(ctx context.Context) ([]Job, error) {
	query := `
		SELECT id, query, status, report, metadata, created_at, updated_at, config
		FROM research_jobs
		ORDER BY created_at DESC
		LIMIT 50
	`
	rows, err := s.DB.Pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []Job
	for rows.Next() {
		var job Job
		if err := rows.Scan(&job.ID, &job.Query, &job.Status, &job.Report, &job.Metadata, &job.CreatedAt, &job.UpdatedAt, &job.Config); err != nil {
			continue
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
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
		return nil, fmt.Errorf("failed to get logs: %w", err)
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
	return logs, nil
}

func (s *Service) runWorker(jobID uuid.UUID, queryText string) {
	ctx := context.Background()

	_, _ = s.DB.Pool.Exec(ctx, "UPDATE research_jobs SET status = 'running', updated_at = NOW() WHERE id = $1", jobID)

	dbLogger := slog.New(NewDBLogHandler(s.DB, jobID))

	p, err := s.NewPipeline(dbLogger)
	if err != nil {
		s.failJob(ctx, jobID, fmt.Sprintf("Failed to build pipeline: %v", err))
		return
	}

	report, err := p.Run(ctx, queryText)
	if err != nil {
		s.failJob(ctx, jobID, fmt.Sprintf("Research failed: %v", err))
		return
	}

	metaJSON, err := json.Marshal(report.Metadata)
	if err != nil {
		dbLogger.Error("Failed to marshal report metadata", "error", err)
		metaJSON = []byte("{}")
	}

	_, err = s.DB.Pool.Exec(ctx,
		"UPDATE research_jobs SET status = 'completed', report = $2, metadata = $3, updated_at = NOW() WHERE id = $1",
		jobID, report.Content, metaJSON)
	if err != nil {
		dbLogger.Error("Failed to save final report to DB", "error", err)
	}
}

func (s *Service) failJob(ctx context.Context, jobID uuid.UUID, reason string) {
	dbLogger := slog.New(NewDBLogHandler(s.DB, jobID))
	dbLogger.Error(reason)

	_, _ = s.DB.Pool.Exec(ctx, "UPDATE research_jobs SET status = 'failed', updated_at = NOW() WHERE id = $1", jobID)
}
