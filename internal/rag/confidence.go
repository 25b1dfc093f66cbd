package rag

import (
	"context"
	"log/slog"
	"strings"

	"github.com/adityaverma/docuchat/internal/chunk"
)

// ConfidenceMetrics describes how trustworthy a retrieval result looks
// before any answer is generated.
type ConfidenceMetrics struct {
	MaxSimilarity     float64 `json:"max_similarity"`
	MeanSimilarity    float64 `json:"mean_similarity"`
	QueryCoverage     float64 `json:"query_coverage"`
	Relevance         float64 `json:"retrieval_relevance"`
	Overall           float64 `json:"overall_confidence"`
	SufficientContent bool    `json:"sufficient_content"`
}

// Component weights of the overall confidence score.
const (
	weightMaxSim    = 0.4
	weightMeanSim   = 0.3
	weightCoverage  = 0.2
	weightRelevance = 0.1
)

// Gate thresholds applied by ShouldProceed, in evaluation order.
const (
	overallFloor    = 0.3
	maxSimFloor     = 0.5
	cautionCeiling  = 0.6
	minContentChars = 500
)

// Scorer computes retrieval confidence. The relevance model is optional;
// without one the relevance component sits at its neutral value.
type Scorer struct {
	relevance RelevanceModel
}

func NewScorer(relevance RelevanceModel) *Scorer {
	return &Scorer{relevance: relevance}
}

// Score aggregates similarity, lexical coverage and model-judged relevance
// into one confidence number. An empty candidate set scores zero across the
// board.
func (s *Scorer) Score(ctx context.Context, query string, candidates []chunk.Candidate) ConfidenceMetrics {
	if len(candidates) == 0 {
		return ConfidenceMetrics{}
	}

	maxSim := candidates[0].SimilarityScore
	var sumSim float64
	var totalLen int
	for _, c := range candidates {
		if c.SimilarityScore > maxSim {
			maxSim = c.SimilarityScore
		}
		sumSim += c.SimilarityScore
		totalLen += len(c.Content)
	}
	meanSim := sumSim / float64(len(candidates))

	coverage := queryCoverage(query, candidates)
	relevance := s.modelRelevance(ctx, query, candidates)

	m := ConfidenceMetrics{
		MaxSimilarity:     maxSim,
		MeanSimilarity:    meanSim,
		QueryCoverage:     coverage,
		Relevance:         relevance,
		SufficientContent: totalLen > minContentChars,
	}
	m.Overall = weightMaxSim*maxSim + weightMeanSim*meanSim +
		weightCoverage*coverage + weightRelevance*relevance
	return m
}

// queryCoverage is the fraction of unique query terms found verbatim in the
// retrieved content. Terms of three or more characters count as matchable;
// shorter ones only widen the denominator.
func queryCoverage(query string, candidates []chunk.Candidate) float64 {
	terms := Tokenize(query)
	unique := make(map[string]bool, len(terms))
	for _, t := range terms {
		unique[t] = true
	}
	if len(unique) == 0 {
		return 0
	}

	var sb strings.Builder
	for _, c := range candidates {
		sb.WriteString(strings.ToLower(c.Content))
		sb.WriteByte(' ')
	}
	content := sb.String()

	matched := 0
	for term := range unique {
		if len(term) > 2 && strings.Contains(content, term) {
			matched++
		}
	}
	return float64(matched) / float64(len(unique))
}

// modelRelevance asks the relevance model to judge the query against the
// leading candidates, truncated to their opening text. Any failure falls
// back to a neutral 0.5 so scoring never blocks retrieval.
func (s *Scorer) modelRelevance(ctx context.Context, query string, candidates []chunk.Candidate) float64 {
	const neutral = 0.5
	if s.relevance == nil {
		return neutral
	}

	pairs := make([]QueryPassage, 0, 3)
	for _, c := range candidates {
		if len(pairs) == 3 {
			break
		}
		passage := c.Content
		if len(passage) > 500 {
			passage = passage[:500]
		}
		pairs = append(pairs, QueryPassage{Query: query, Passage: passage})
	}

	scores, err := s.relevance.Predict(ctx, pairs)
	if err != nil || len(scores) == 0 {
		if err != nil {
			slog.Warn("relevance model failed, using neutral score", "error", err)
		}
		return neutral
	}

	var sum float64
	for _, sc := range scores {
		sum += sc
	}
	return sum / float64(len(scores))
}

// ShouldProceed applies the confidence gate. It returns whether generation
// may run and a human-readable reason; checks run in a fixed order and the
// first failing one wins.
func ShouldProceed(m ConfidenceMetrics) (bool, string) {
	switch {
	case m.Overall < overallFloor:
		return false, "Very low confidence in retrieved documents"
	case m.MaxSimilarity < maxSimFloor:
		return false, "No highly relevant documents found"
	case !m.SufficientContent:
		return false, "Insufficient content for reliable answer"
	case m.Overall < cautionCeiling:
		return true, "Proceed with caution - moderate confidence"
	default:
		return true, "High confidence - safe to proceed"
	}
}
