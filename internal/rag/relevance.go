package rag

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/adityaverma/docuchat/internal/llm"
)

// QueryPassage is one (query, passage) pair for relevance judging.
type QueryPassage struct {
	Query   string
	Passage string
}

// RelevanceModel judges how relevant each passage is to its query on a
// 0.0 to 1.0 scale, one score per pair in input order.
type RelevanceModel interface {
	Predict(ctx context.Context, pairs []QueryPassage) ([]float64, error)
}

// LLMRelevanceModel scores each pair independently through the chat gateway,
// cross-encoder style.
type LLMRelevanceModel struct {
	gateway llm.Gateway
	model   string
}

func NewLLMRelevanceModel(gw llm.Gateway, model string) *LLMRelevanceModel {
	return &LLMRelevanceModel{gateway: gw, model: model}
}

func (m *LLMRelevanceModel) Predict(ctx context.Context, pairs []QueryPassage) ([]float64, error) {
	scores := make([]float64, len(pairs))

	for i, p := range pairs {
		resp, err := m.gateway.Chat(ctx, llm.ChatRequest{
			Model: m.model,
			Messages: []llm.Message{
				{
					Role:    "system",
					Content: "Rate the relevance of the document to the query on a scale of 0.0 to 1.0. Reply with ONLY the number.",
				},
				{
					Role:    "user",
					Content: fmt.Sprintf("Query: %s\n\nDocument: %s", p.Query, p.Passage),
				},
			},
			Temperature: 0,
		})
		if err != nil {
			return nil, fmt.Errorf("relevance chat %d: %w", i, err)
		}

		score, err := strconv.ParseFloat(strings.TrimSpace(resp.Content), 64)
		if err != nil || score < 0 || score > 1 {
			return nil, fmt.Errorf("relevance score %d: unparseable reply %q", i, resp.Content)
		}
		scores[i] = score
	}
	return scores, nil
}
