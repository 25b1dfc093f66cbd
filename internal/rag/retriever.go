package rag

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/adityaverma/docuchat/internal/chunk"
	"github.com/adityaverma/docuchat/internal/config"
	"github.com/adityaverma/docuchat/internal/vectorstore"
)

// Rerank score components. Similarity dominates; term overlap, position in
// the source document and content length refine the ordering.
const (
	rerankWeightSim      = 0.6
	rerankWeightOverlap  = 0.2
	rerankWeightPosition = 0.1
	rerankWeightQuality  = 0.1
)

// Retriever runs the two-stage retrieval pipeline: an over-fetched vector
// search followed by a heuristic rerank that keeps the best few candidates.
type Retriever struct {
	embedder   Embedder
	index      vectorstore.Index
	topK       int
	rerankTopK int
	threshold  float64
}

func NewRetriever(embedder Embedder, index vectorstore.Index, cfg config.RetrievalConfig) *Retriever {
	return &Retriever{
		embedder:   embedder,
		index:      index,
		topK:       cfg.TopK,
		rerankTopK: cfg.RerankTopK,
		threshold:  cfg.SimilarityThreshold,
	}
}

// Retrieve returns the reranked top candidates for the query.
func (r *Retriever) Retrieve(ctx context.Context, query string) ([]chunk.Candidate, error) {
	candidates, err := r.fetch(ctx, query)
	if err != nil {
		return nil, err
	}
	return r.rerank(query, candidates), nil
}

// fetch embeds the query and pulls twice the final budget from the index so
// the rerank has room to reorder.
func (r *Retriever) fetch(ctx context.Context, query string) ([]chunk.Candidate, error) {
	vec, err := r.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	candidates, err := r.index.Query(ctx, vec, 2*r.topK, r.threshold)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	return candidates, nil
}

// rerank re-scores candidates on similarity, query term overlap, chunk
// position and content quality, then keeps the top rerankTopK. Ties keep
// their incoming order.
func (r *Retriever) rerank(query string, candidates []chunk.Candidate) []chunk.Candidate {
	if len(candidates) == 0 {
		return candidates
	}

	queryTerms := strings.Fields(strings.ToLower(query))
	reranked := make([]chunk.Candidate, len(candidates))
	copy(reranked, candidates)

	for i := range reranked {
		c := &reranked[i]
		c.RelevanceScore = rerankWeightSim*c.SimilarityScore +
			rerankWeightOverlap*termOverlap(queryTerms, c.Content) +
			rerankWeightPosition*positionBonus(c.Metadata) +
			rerankWeightQuality*contentQuality(c.Content)
	}

	sort.SliceStable(reranked, func(i, j int) bool {
		return reranked[i].RelevanceScore > reranked[j].RelevanceScore
	})

	if len(reranked) > r.rerankTopK {
		reranked = reranked[:r.rerankTopK]
	}
	return reranked
}

// termOverlap is the fraction of query terms present as substrings of the
// content. Terms come in lowercased and whitespace-split.
func termOverlap(queryTerms []string, content string) float64 {
	if len(queryTerms) == 0 {
		return 0
	}

	lower := strings.ToLower(content)
	matched := 0
	for _, t := range queryTerms {
		if strings.Contains(lower, t) {
			matched++
		}
	}
	return float64(matched) / float64(len(queryTerms))
}

// positionBonus favors chunks from earlier in their source document. A
// document with a single chunk gets the full bonus.
func positionBonus(m chunk.Metadata) float64 {
	if m.TotalChunks <= 1 {
		return 1.0
	}
	return 1.0 - (float64(m.ChunkIndex)/float64(m.TotalChunks))*0.3
}

// contentQuality rewards substantial chunks, saturating at 500 characters.
func contentQuality(content string) float64 {
	return min(float64(len(content))/500.0, 1.0)
}

// RetrievalResult is a retrieval plus its confidence verdict, ready for the
// generation gate.
type RetrievalResult struct {
	Documents      []chunk.Candidate `json:"documents"`
	Metrics        ConfidenceMetrics `json:"confidence_metrics"`
	ShouldProceed  bool              `json:"should_proceed"`
	ProceedMessage string            `json:"proceed_message"`
}

// ConfidenceRetriever pairs the retriever with the confidence scorer.
// Confidence is judged on the full pre-rerank candidate set so the verdict
// reflects everything the index surfaced, not just the survivors.
type ConfidenceRetriever struct {
	retriever *Retriever
	scorer    *Scorer
}

func NewConfidenceRetriever(retriever *Retriever, scorer *Scorer) *ConfidenceRetriever {
	return &ConfidenceRetriever{retriever: retriever, scorer: scorer}
}

// RetrieveWithConfidence never fails: a broken retrieval path degrades to an
// empty result, which the confidence gate then refuses.
func (cr *ConfidenceRetriever) RetrieveWithConfidence(ctx context.Context, query string) *RetrievalResult {
	candidates, err := cr.retriever.fetch(ctx, query)
	if err != nil {
		slog.Error("retrieval failed, gating on empty result", "error", err)
		candidates = nil
	}

	metrics := cr.scorer.Score(ctx, query, candidates)
	proceed, message := ShouldProceed(metrics)

	return &RetrievalResult{
		Documents:      cr.retriever.rerank(query, candidates),
		Metrics:        metrics,
		ShouldProceed:  proceed,
		ProceedMessage: message,
	}
}
