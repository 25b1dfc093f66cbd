package vectorstore

import (
	"context"

	"github.com/adityaverma/docuchat/internal/chunk"
)

// Index is the vector index collaborator contract. Query applies the score
// threshold on the index side, so the retrieval core only ever sees
// candidates at or above it. Upsert and Delete form the write path used by
// ingestion.
type Index interface {
	Query(ctx context.Context, vector []float32, topK int, threshold float64) ([]chunk.Candidate, error)
	Upsert(ctx context.Context, documentID string, chunks []chunk.Chunk) error
	Delete(ctx context.Context, documentID string) error
}
