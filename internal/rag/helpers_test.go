package rag

import (
	"context"
	"fmt"
	"time"

	"github.com/adityaverma/docuchat/internal/chunk"
	"github.com/adityaverma/docuchat/internal/config"
)

type stubEmbedder struct {
	vector []float32
	err    error
	calls  int
}

func (s *stubEmbedder) EmbedQuery(_ context.Context, _ string) ([]float32, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.vector, nil
}

type stubIndex struct {
	candidates []chunk.Candidate
	err        error
	gotTopK    int
}

func (s *stubIndex) Query(_ context.Context, _ []float32, topK int, _ float64) ([]chunk.Candidate, error) {
	s.gotTopK = topK
	if s.err != nil {
		return nil, s.err
	}
	return s.candidates, nil
}

func (s *stubIndex) Upsert(_ context.Context, _ string, _ []chunk.Chunk) error { return nil }
func (s *stubIndex) Delete(_ context.Context, _ string) error                 { return nil }

type stubModel struct {
	answer  string
	err     error
	prompts []string
}

func (s *stubModel) Invoke(_ context.Context, prompt string) (string, error) {
	s.prompts = append(s.prompts, prompt)
	if s.err != nil {
		return "", s.err
	}
	return s.answer, nil
}

func (s *stubModel) Stream(ctx context.Context, prompt string) (<-chan Fragment, error) {
	return NewBlockingModel(s).Stream(ctx, prompt)
}

type stubRelevance struct {
	scores []float64
	err    error
	pairs  []QueryPassage
}

func (s *stubRelevance) Predict(_ context.Context, pairs []QueryPassage) ([]float64, error) {
	s.pairs = pairs
	if s.err != nil {
		return nil, s.err
	}
	return s.scores, nil
}

func testChunk(id, content string) chunk.Chunk {
	return chunk.Chunk{
		ID:      id,
		Kind:    chunk.KindText,
		Content: content,
		Metadata: chunk.Metadata{
			OriginalFilename: "notes.pdf",
			ChunkID:          id,
			UploadTimestamp:  time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
			SourceURL:        "upload://notes.pdf",
		},
	}
}

func testCandidate(id, content string, sim float64) chunk.Candidate {
	return chunk.Candidate{Chunk: testChunk(id, content), SimilarityScore: sim}
}

func testCandidates(n int, sim float64) []chunk.Candidate {
	out := make([]chunk.Candidate, n)
	for i := range out {
		out[i] = testCandidate(
			fmt.Sprintf("c%d", i),
			fmt.Sprintf("candidate content number %d with enough text to matter", i),
			sim,
		)
	}
	return out
}

func testRetrievalConfig() config.RetrievalConfig {
	return config.RetrievalConfig{
		TopK:                5,
		RerankTopK:          3,
		SimilarityThreshold: 0.7,
		EmbeddingDim:        4,
	}
}
