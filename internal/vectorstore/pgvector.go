package vectorstore

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/adityaverma/docuchat/internal/chunk"
)

// PgVectorIndex stores chunks in Postgres with a pgvector embedding column.
type PgVectorIndex struct {
	db *pgxpool.Pool
}

func NewPgVectorIndex(db *pgxpool.Pool) *PgVectorIndex {
	return &PgVectorIndex{db: db}
}

func (s *PgVectorIndex) Upsert(ctx context.Context, documentID string, chunks []chunk.Chunk) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, c := range chunks {
		if err := c.Validate(); err != nil {
			return fmt.Errorf("validate chunk: %w", err)
		}

		metadata, err := json.Marshal(c.Metadata)
		if err != nil {
			return fmt.Errorf("marshal metadata %s: %w", c.ID, err)
		}

		_, err = tx.Exec(ctx,
			`INSERT INTO document_chunks (id, document_id, kind, content, metadata, embedding)
			 VALUES ($1, $2, $3, $4, $5, $6)
			 ON CONFLICT (id) DO UPDATE SET kind = $3, content = $4, metadata = $5, embedding = $6`,
			c.ID, documentID, string(c.Kind), c.Content, metadata, pgvector.NewVector(c.Embedding),
		)
		if err != nil {
			return fmt.Errorf("upsert chunk %s: %w", c.ID, err)
		}
	}

	return tx.Commit(ctx)
}

func (s *PgVectorIndex) Query(ctx context.Context, vector []float32, topK int, threshold float64) ([]chunk.Candidate, error) {
	if topK <= 0 {
		topK = 10
	}

	rows, err := s.db.Query(ctx,
		`SELECT id, kind, content, metadata, 1 - (embedding <=> $1) AS score
		 FROM document_chunks
		 ORDER BY embedding <=> $1
		 LIMIT $2`,
		pgvector.NewVector(vector), topK,
	)
	if err != nil {
		return nil, fmt.Errorf("vector query: %w", err)
	}
	defer rows.Close()

	var results []chunk.Candidate
	for rows.Next() {
		var (
			c        chunk.Chunk
			kind     string
			metadata []byte
			score    float64
		)
		if err := rows.Scan(&c.ID, &kind, &c.Content, &metadata, &score); err != nil {
			return nil, fmt.Errorf("scan candidate: %w", err)
		}
		if score < threshold {
			continue
		}
		c.Kind = chunk.Kind(kind)
		if err := json.Unmarshal(metadata, &c.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshal metadata %s: %w", c.ID, err)
		}
		results = append(results, chunk.Candidate{Chunk: c, SimilarityScore: score})
	}
	return results, rows.Err()
}

func (s *PgVectorIndex) Delete(ctx context.Context, documentID string) error {
	_, err := s.db.Exec(ctx, "DELETE FROM document_chunks WHERE document_id = $1", documentID)
	if err != nil {
		return fmt.Errorf("delete chunks for %s: %w", documentID, err)
	}
	return nil
}
