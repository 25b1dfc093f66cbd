package rag

import (
	"context"
	"log/slog"

	"github.com/adityaverma/docuchat/internal/chunk"
	"github.com/adityaverma/docuchat/internal/llm"
	"github.com/adityaverma/docuchat/internal/memory"
)

// Pipeline is the full question-answering surface: gated chat, streamed
// chat and raw retrieval.
type Pipeline interface {
	Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error)
	ChatStream(ctx context.Context, req ChatRequest) <-chan StreamEvent
	Search(ctx context.Context, req SearchRequest) (*SearchResponse, error)
}

type ChatRequest struct {
	ConversationID string `json:"conversation_id,omitempty"`
	Question       string `json:"question"`
}

type ChatResponse struct {
	ConversationID string            `json:"conversation_id,omitempty"`
	GenerationResult
	Metrics        ConfidenceMetrics `json:"confidence_metrics"`
	ShouldProceed  bool              `json:"should_proceed"`
	ProceedMessage string            `json:"proceed_message"`
}

type SearchRequest struct {
	Query   string `json:"query"`
	TopK    int    `json:"top_k,omitempty"`
	Analyze bool   `json:"analyze,omitempty"`
	Hybrid  bool   `json:"hybrid,omitempty"`
}

type SearchResponse struct {
	Results []chunk.Candidate  `json:"results"`
	Profile QueryProfile       `json:"query_profile"`
	Metrics *ConfidenceMetrics `json:"confidence_metrics,omitempty"`
}

type pipeline struct {
	retriever *ConfidenceRetriever
	generator *SafeGenerator
	engine    *Engine
	history   memory.Store
}

func NewPipeline(retriever *ConfidenceRetriever, generator *SafeGenerator, engine *Engine, history memory.Store) Pipeline {
	return &pipeline{
		retriever: retriever,
		generator: generator,
		engine:    engine,
		history:   history,
	}
}

func (p *pipeline) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	ret := p.retriever.RetrieveWithConfidence(ctx, req.Question)
	result := p.generator.Generate(ctx, req.Question, ret)

	p.remember(ctx, req.ConversationID, req.Question, result.Answer)

	return &ChatResponse{
		ConversationID:   req.ConversationID,
		GenerationResult: result,
		Metrics:          ret.Metrics,
		ShouldProceed:    ret.ShouldProceed,
		ProceedMessage:   ret.ProceedMessage,
	}, nil
}

// ChatStream forwards the generation event sequence and records the final
// answer in conversation history once the stream completes.
func (p *pipeline) ChatStream(ctx context.Context, req ChatRequest) <-chan StreamEvent {
	out := make(chan StreamEvent)

	go func() {
		defer close(out)

		ret := p.retriever.RetrieveWithConfidence(ctx, req.Question)
		for ev := range p.generator.GenerateStream(ctx, req.Question, ret) {
			if ev.Type == EventFinal && ev.Result != nil {
				p.remember(ctx, req.ConversationID, req.Question, ev.Result.Answer)
			}
			select {
			case out <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out
}

func (p *pipeline) Search(ctx context.Context, req SearchRequest) (*SearchResponse, error) {
	profile := ClassifyQuery(req.Query)

	if req.Hybrid && p.engine != nil {
		return p.hybridSearch(ctx, req, profile)
	}

	if req.Analyze {
		ret := p.retriever.RetrieveWithConfidence(ctx, req.Query)
		return &SearchResponse{
			Results: ret.Documents,
			Profile: profile,
			Metrics: &ret.Metrics,
		}, nil
	}

	results, err := p.retriever.retriever.Retrieve(ctx, req.Query)
	if err != nil {
		return nil, err
	}
	return &SearchResponse{Results: results, Profile: profile}, nil
}

// hybridSearch over-fetches from the vector index, then reorders the pool
// with fused dense and BM25 scores instead of the heuristic rerank. The
// fusion method follows the query profile.
func (p *pipeline) hybridSearch(ctx context.Context, req SearchRequest, profile QueryProfile) (*SearchResponse, error) {
	candidates, err := p.retriever.retriever.fetch(ctx, req.Query)
	if err != nil {
		return nil, err
	}

	chunks := make([]chunk.Chunk, len(candidates))
	byID := make(map[string]chunk.Candidate, len(candidates))
	for i, c := range candidates {
		chunks[i] = c.Chunk
		byID[c.ID] = c
	}

	scored := p.engine.Search(ctx, req.Query, chunks, SearchOptions{
		TopK:   req.TopK,
		Fusion: profile.Fusion,
		Alpha:  profile.Alpha,
	})

	results := make([]chunk.Candidate, len(scored))
	for i, sc := range scored {
		c := byID[sc.Chunk.ID]
		c.RelevanceScore = sc.Score
		results[i] = c
	}
	return &SearchResponse{Results: results, Profile: profile}, nil
}

// remember is best-effort: history failures never fail the chat.
func (p *pipeline) remember(ctx context.Context, conversationID, question, answer string) {
	if p.history == nil || conversationID == "" {
		return
	}
	err := p.history.Append(ctx, conversationID,
		llm.Message{Role: "user", Content: question},
		llm.Message{Role: "assistant", Content: answer},
	)
	if err != nil {
		slog.Warn("conversation history append failed",
			"conversation_id", conversationID, "error", err)
	}
}
