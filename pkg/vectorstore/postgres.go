package vectorstore

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// PostgresStore persists records in the summaries and embeddings tables.
// Embeddings are stored twice: as packed little-endian float32 bytes for
// portability, and as a pgvector column used for similarity ordering.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// StoreBatch inserts all records in a single transaction. The embedding row
// is skipped for records with no vector.
func (s *PostgresStore) StoreBatch(ctx context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	queued := 0
	for _, r := range records {
		batch.Queue(`
			INSERT INTO summaries (id, url, title, text, score)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (id) DO UPDATE
				SET title = EXCLUDED.title, text = EXCLUDED.text, score = EXCLUDED.score
		`, r.ID, r.URL, r.Title, r.Text, r.Score)
		queued++

		if len(r.Embedding) > 0 {
			batch.Queue(`
				INSERT INTO embeddings (summary_id, embedding, dimension, embedding_vec)
				VALUES ($1, $2, $3, $4)
				ON CONFLICT (summary_id) DO UPDATE
					SET embedding = EXCLUDED.embedding,
					    dimension = EXCLUDED.dimension,
					    embedding_vec = EXCLUDED.embedding_vec
			`, r.ID, EncodeVector(r.Embedding), len(r.Embedding), pgvector.NewVector(r.Embedding))
			queued++
		}
	}

	br := tx.SendBatch(ctx, batch)
	for i := 0; i < queued; i++ {
		if _, err := br.Exec(); err != nil {
			br.Close()
			return fmt.Errorf("failed to insert record: %w", err)
		}
	}
	if err := br.Close(); err != nil {
		return fmt.Errorf("failed to flush batch: %w", err)
	}

	return tx.Commit(ctx)
}

// Search returns the topK stored summaries nearest to queryVec by cosine
// distance. Ties are broken by summary ID so ordering is deterministic. A
// non-empty ids slice restricts the search to those summaries.
func (s *PostgresStore) Search(ctx context.Context, queryVec []float32, topK int, ids []string) ([]SearchHit, error) {
	query := `
		SELECT s.id, s.url, s.title, s.text, 1 - (e.embedding_vec <=> $1) AS similarity
		FROM embeddings e
		JOIN summaries s ON s.id = e.summary_id
		ORDER BY e.embedding_vec <=> $1, s.id
		LIMIT $2
	`
	args := []any{pgvector.NewVector(queryVec), topK}
	if len(ids) > 0 {
		query = `
			SELECT s.id, s.url, s.title, s.text, 1 - (e.embedding_vec <=> $1) AS similarity
			FROM embeddings e
			JOIN summaries s ON s.id = e.summary_id
			WHERE s.id = ANY($3)
			ORDER BY e.embedding_vec <=> $1, s.id
			LIMIT $2
		`
		args = append(args, ids)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute similarity search: %w", err)
	}
	defer rows.Close()

	var hits []SearchHit
	for rows.Next() {
		var h SearchHit
		if err := rows.Scan(&h.ID, &h.URL, &h.Title, &h.Text, &h.Score); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		if h.Score < 0 {
			h.Score = 0
		} else if h.Score > 1 {
			h.Score = 1
		}
		hits = append(hits, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return hits, nil
}
