package database

import (
	"context"
	"fmt"
)

// InitSchema creates all tables if they do not exist. The embedding column
// keeps both a portable little-endian float32 encoding and a pgvector column
// for similarity search.
func (db *PostgresDB) InitSchema(ctx context.Context, embeddingDim int) error {
	if err := db.EnsureVectorExtension(ctx); err != nil {
		return fmt.Errorf("failed to ensure vector extension: %w", err)
	}

	// 1. Research Jobs Table
	jobsQuery := `
		CREATE TABLE IF NOT EXISTS research_jobs (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			query TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'pending',
			config JSONB,
			report TEXT,
			metadata JSONB,
			created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
			updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		);
	`
	if _, err := db.Pool.Exec(ctx, jobsQuery); err != nil {
		return fmt.Errorf("failed to create research_jobs table: %w", err)
	}

	// 2. Research Logs Table
	logsQuery := `
		CREATE TABLE IF NOT EXISTS research_logs (
			id SERIAL PRIMARY KEY,
			job_id UUID NOT NULL REFERENCES research_jobs(id) ON DELETE CASCADE,
			timestamp TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
			level TEXT NOT NULL,
			message TEXT NOT NULL,
			metadata JSONB
		);
	`
	if _, err := db.Pool.Exec(ctx, logsQuery); err != nil {
		return fmt.Errorf("failed to create research_logs table: %w", err)
	}

	// 3. Summaries Table
	summariesQuery := `
		CREATE TABLE IF NOT EXISTS summaries (
			id UUID PRIMARY KEY,
			url TEXT NOT NULL,
			title TEXT,
			text TEXT NOT NULL,
			score DOUBLE PRECISION NOT NULL DEFAULT 0,
			created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		);
	`
	if _, err := db.Pool.Exec(ctx, summariesQuery); err != nil {
		return fmt.Errorf("failed to create summaries table: %w", err)
	}

	// 4. Embeddings Table
	embeddingsQuery := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS embeddings (
			summary_id UUID PRIMARY KEY REFERENCES summaries(id) ON DELETE CASCADE,
			embedding BYTEA NOT NULL,
			dimension INT NOT NULL,
			embedding_vec vector(%d)
		);
	`, embeddingDim)
	if _, err := db.Pool.Exec(ctx, embeddingsQuery); err != nil {
		return fmt.Errorf("failed to create embeddings table: %w", err)
	}

	// Indexes for faster querying
	if _, err := db.Pool.Exec(ctx, "CREATE INDEX IF NOT EXISTS idx_research_logs_job_id ON research_logs(job_id)"); err != nil {
		return fmt.Errorf("failed to create index on research_logs: %w", err)
	}
	if _, err := db.Pool.Exec(ctx, "CREATE INDEX IF NOT EXISTS idx_research_jobs_created_at ON research_jobs(created_at DESC)"); err != nil {
		return fmt.Errorf("failed to create index on research_jobs: %w", err)
	}
	if _, err := db.Pool.Exec(ctx, "CREATE INDEX IF NOT EXISTS idx_summaries_url ON summaries(url)"); err != nil {
		return fmt.Errorf("failed to create index on summaries: %w", err)
	}

	// HNSW supports up to 2000 dimensions; above that exact search still works.
	if embeddingDim <= 2000 {
		indexQuery := `
			CREATE INDEX IF NOT EXISTS embeddings_vec_idx
			ON embeddings USING hnsw (embedding_vec vector_cosine_ops)
		`
		if _, err := db.Pool.Exec(ctx, indexQuery); err != nil {
			return fmt.Errorf("failed to create index on embeddings: %w", err)
		}
	}

	return nil
}
