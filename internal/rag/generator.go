package rag

import (
	"context"
	"fmt"
	"strings"

	"github.com/adityaverma/docuchat/internal/chunk"
	"github.com/adityaverma/docuchat/internal/llm"
)

// ConfidenceLevel grades the trustworthiness of a generated answer.
type ConfidenceLevel string

const (
	ConfidenceVeryLow ConfidenceLevel = "very_low"
	ConfidenceLow     ConfidenceLevel = "low"
	ConfidenceMedium  ConfidenceLevel = "medium"
	ConfidenceHigh    ConfidenceLevel = "high"
)

// HallucinationRisk grades how likely the answer strays from its sources.
type HallucinationRisk string

const (
	RiskLow    HallucinationRisk = "low"
	RiskMedium HallucinationRisk = "medium"
	RiskHigh   HallucinationRisk = "high"
)

// SafetyCheck is the final verdict attached to every answer.
type SafetyCheck string

const (
	SafetyPassed  SafetyCheck = "passed"
	SafetyCaution SafetyCheck = "caution"
	SafetyFailed  SafetyCheck = "failed"
)

// Citation ties a bracketed source reference in the answer back to the
// retrieved chunk it names.
type Citation struct {
	SourceID        int     `json:"source_id"`
	Filename        string  `json:"filename"`
	Page            int     `json:"page,omitempty"`
	SourceURL       string  `json:"source_url"`
	SimilarityScore float64 `json:"similarity_score"`
	Snippet         string  `json:"snippet"`
}

// GenerationResult is a generated answer with its grounding verdicts.
type GenerationResult struct {
	Answer            string            `json:"answer"`
	Citations         []Citation        `json:"citations"`
	Confidence        float64           `json:"confidence"`
	ConfidenceLevel   ConfidenceLevel   `json:"confidence_level"`
	HallucinationRisk HallucinationRisk `json:"hallucination_risk"`
	SafetyCheck       SafetyCheck       `json:"safety_check"`
}

// GenerativeModel abstracts the text model behind generation. Stream yields
// answer fragments in order; a model that cannot stream natively can be
// wrapped with NewBlockingModel.
type GenerativeModel interface {
	Invoke(ctx context.Context, prompt string) (string, error)
	Stream(ctx context.Context, prompt string) (<-chan Fragment, error)
}

// GatewayModel backs GenerativeModel with the provider gateway.
type GatewayModel struct {
	gateway  llm.Gateway
	provider string
	model    string
}

func NewGatewayModel(gw llm.Gateway, provider, model string) *GatewayModel {
	return &GatewayModel{gateway: gw, provider: provider, model: model}
}

func (m *GatewayModel) Invoke(ctx context.Context, prompt string) (string, error) {
	resp, err := m.gateway.Chat(ctx, llm.ChatRequest{
		Provider: m.provider,
		Model:    m.model,
		Messages: []llm.Message{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}

func (m *GatewayModel) Stream(ctx context.Context, prompt string) (<-chan Fragment, error) {
	chunks, err := m.gateway.ChatStream(ctx, llm.ChatRequest{
		Provider: m.provider,
		Model:    m.model,
		Messages: []llm.Message{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return nil, err
	}

	out := make(chan Fragment, 64)
	go func() {
		defer close(out)
		for c := range chunks {
			if c.Error != nil {
				out <- Fragment{Err: c.Error}
				return
			}
			if c.Content == "" {
				continue
			}
			select {
			case out <- Fragment{Text: c.Content}:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

const groundedPrompt = `You are a careful assistant answering questions from retrieved documents.

Answer ONLY using the sources below. Cite the source number in square brackets, like [1], after every claim you take from it. If the sources do not contain the answer, say you cannot answer based on the provided documents.

Sources:
%s

Question: %s

Answer:`

// FormatContext renders candidates as numbered sources for the prompt.
// Numbering starts at 1 and matches the bracketed citations the model is
// asked to emit.
func FormatContext(candidates []chunk.Candidate) string {
	parts := make([]string, len(candidates))
	for i, c := range candidates {
		header := fmt.Sprintf("Source [%d]: %s", i+1, c.Metadata.OriginalFilename)
		if c.Metadata.PageNumber > 0 {
			header += fmt.Sprintf(" (Page %d)", c.Metadata.PageNumber)
		}
		parts[i] = header + "\n" + c.Content + "\n"
	}
	return strings.Join(parts, "\n")
}

// ExtractCitations finds which sources the answer actually references. Only
// markers naming a real source count; "[7]" against five sources is ignored.
func ExtractCitations(answer string, candidates []chunk.Candidate) []Citation {
	var citations []Citation
	for i, c := range candidates {
		marker := fmt.Sprintf("[%d]", i+1)
		if !strings.Contains(answer, marker) {
			continue
		}
		citations = append(citations, Citation{
			SourceID:        i + 1,
			Filename:        c.Metadata.OriginalFilename,
			Page:            c.Metadata.PageNumber,
			SourceURL:       c.Metadata.SourceURL,
			SimilarityScore: c.SimilarityScore,
			Snippet:         c.Preview(200),
		})
	}
	return citations
}

// Phrases signalling the model declined to answer from the sources.
var refusalPhrases = []string{
	"cannot answer",
	"based on the provided",
	"no information",
	"not contained",
	"insufficient",
	"unable to provide",
}

func isRefusal(answer string) bool {
	lower := strings.ToLower(answer)
	for _, p := range refusalPhrases {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

// Phrases that assert evidence. Unbacked by a citation they are a strong
// hallucination signal.
var claimPhrases = []string{
	"research shows",
	"studies indicate",
	"data suggests",
	"proves that",
}

// AssessHallucinationRisk applies the grounding heuristics in order: a
// refusal that still cites sources is contradictory, a long answer with
// sparse citations is under-grounded, an evidential claim with no citation
// at all is fabrication.
func AssessHallucinationRisk(answer string, citations []Citation) HallucinationRisk {
	if isRefusal(answer) && len(citations) > 0 {
		return RiskHigh
	}

	words := len(strings.Fields(answer))
	if words > 50 && float64(len(citations))/float64(words) < 0.01 {
		return RiskMedium
	}

	if len(citations) == 0 {
		lower := strings.ToLower(answer)
		for _, p := range claimPhrases {
			if strings.Contains(lower, p) {
				return RiskHigh
			}
		}
	}
	return RiskLow
}

// gradeConfidence folds retrieval confidence and hallucination risk into a
// single level. Risk can only drag the grade down.
func gradeConfidence(confidence float64, risk HallucinationRisk) ConfidenceLevel {
	switch {
	case confidence < 0.4 || risk == RiskHigh:
		return ConfidenceVeryLow
	case confidence < 0.6 || risk == RiskMedium:
		return ConfidenceLow
	case confidence < 0.8:
		return ConfidenceMedium
	default:
		return ConfidenceHigh
	}
}

func gradeSafety(risk HallucinationRisk) SafetyCheck {
	if risk == RiskLow {
		return SafetyPassed
	}
	return SafetyCaution
}

// Generator produces grounded answers without a confidence gate. Model
// failures surface in the answer text rather than as an error, keeping the
// result shape uniform for callers.
type Generator struct {
	model GenerativeModel
}

func NewGenerator(model GenerativeModel) *Generator {
	return &Generator{model: model}
}

func (g *Generator) Generate(ctx context.Context, question string, candidates []chunk.Candidate, confidence float64) GenerationResult {
	prompt := fmt.Sprintf(groundedPrompt, FormatContext(candidates), question)

	answer, err := g.model.Invoke(ctx, prompt)
	if err != nil {
		return invocationFailure(err, confidence)
	}
	return grade(answer, candidates, confidence)
}

// invocationFailure is the uniform shape for a model call that errored: a
// templated answer, no citations and a failed safety check.
func invocationFailure(err error, confidence float64) GenerationResult {
	return GenerationResult{
		Answer:            "Error generating response: " + err.Error(),
		Confidence:        confidence,
		ConfidenceLevel:   ConfidenceVeryLow,
		HallucinationRisk: RiskLow,
		SafetyCheck:       SafetyFailed,
	}
}

// grade runs the post-generation checks shared by blocking and streaming
// paths.
func grade(answer string, candidates []chunk.Candidate, confidence float64) GenerationResult {
	citations := ExtractCitations(answer, candidates)
	risk := AssessHallucinationRisk(answer, citations)
	level := gradeConfidence(confidence, risk)

	return GenerationResult{
		Answer:            answer,
		Citations:         citations,
		Confidence:        confidence,
		ConfidenceLevel:   level,
		HallucinationRisk: risk,
		SafetyCheck:       gradeSafety(risk),
	}
}

const gateRefusalTemplate = `I cannot provide a reliable answer based on the available documents.

Reason: %s

Retrieval Confidence: %.1f%%
Maximum Similarity: %.1f%%

Please try:
- Rephrasing your question
- Asking about a different topic
- Providing more specific context`

// SafeGenerator refuses to generate when the confidence gate says the
// retrieval cannot support a reliable answer.
type SafeGenerator struct {
	inner *Generator
}

func NewSafeGenerator(model GenerativeModel) *SafeGenerator {
	return &SafeGenerator{inner: NewGenerator(model)}
}

func (g *SafeGenerator) Generate(ctx context.Context, question string, ret *RetrievalResult) GenerationResult {
	if !ret.ShouldProceed {
		return gateRefusal(ret)
	}
	return g.inner.Generate(ctx, question, ret.Documents, ret.Metrics.Overall)
}

func gateRefusal(ret *RetrievalResult) GenerationResult {
	answer := fmt.Sprintf(gateRefusalTemplate,
		ret.ProceedMessage,
		ret.Metrics.Overall*100,
		ret.Metrics.MaxSimilarity*100,
	)
	return GenerationResult{
		Answer:            answer,
		Confidence:        ret.Metrics.Overall,
		ConfidenceLevel:   ConfidenceVeryLow,
		HallucinationRisk: RiskLow,
		SafetyCheck:       SafetyFailed,
	}
}
