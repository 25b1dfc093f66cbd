package rag

import (
	"context"
	"hash/fnv"
	"log/slog"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/adityaverma/docuchat/internal/chunk"
)

// FusionMethod selects how dense and sparse score lists are combined.
type FusionMethod string

const (
	FusionRRF      FusionMethod = "rrf"
	FusionWeighted FusionMethod = "weighted"
	FusionAuto     FusionMethod = "auto"
)

// rrfK is the standard reciprocal rank fusion constant.
const rrfK = 60

// Embedder is the embedding collaborator contract the retrieval side needs.
type Embedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

var wordPattern = regexp.MustCompile(`\w+`)

// Tokenize lowercases and splits on word boundaries. The same tokens feed
// the sparse index, query classification and coverage checks.
func Tokenize(text string) []string {
	return wordPattern.FindAllString(strings.ToLower(text), -1)
}

// ScoredChunk pairs a chunk with its fused retrieval score.
type ScoredChunk struct {
	Chunk chunk.Chunk `json:"chunk"`
	Score float64     `json:"score"`
}

type SearchOptions struct {
	TopK   int
	Fusion FusionMethod
	Alpha  float64 // weight of the sparse list in weighted fusion
}

// Engine performs hybrid dense+sparse search over an in-memory chunk
// collection. The BM25 index is built lazily on first use and cached; it is
// rebuilt from scratch whenever the collection changes. Reads are concurrent,
// rebuilds are serialized.
type Engine struct {
	embedder Embedder

	mu          sync.RWMutex
	index       *bm25Index
	fingerprint uint64
}

func NewEngine(embedder Embedder) *Engine {
	return &Engine{embedder: embedder}
}

// Search scores every chunk with both retrieval methods, fuses the lists and
// returns the top results sorted by fused score. Dense and sparse scoring run
// concurrently; fusion waits on both.
func (e *Engine) Search(ctx context.Context, query string, chunks []chunk.Chunk, opts SearchOptions) []ScoredChunk {
	if len(chunks) == 0 {
		return nil
	}
	if opts.TopK <= 0 {
		opts.TopK = 10
	}

	fusion := opts.Fusion
	alpha := opts.Alpha
	if fusion == "" {
		fusion = FusionRRF
	}
	if fusion == FusionAuto {
		profile := ClassifyQuery(query)
		fusion = profile.Fusion
		alpha = profile.Alpha
		slog.Debug("query classified",
			"type", profile.Type, "fusion", fusion, "alpha", alpha)
	}

	var dense, sparse []float64
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		dense = e.denseScores(ctx, query, chunks)
	}()
	go func() {
		defer wg.Done()
		sparse = e.sparseScores(query, chunks)
	}()
	wg.Wait()

	var fused []float64
	if fusion == FusionWeighted {
		fused = weightedFusion(dense, sparse, alpha)
	} else {
		fused = rrfFusion(dense, sparse)
	}

	scored := make([]ScoredChunk, len(chunks))
	for i, c := range chunks {
		scored[i] = ScoredChunk{Chunk: c, Score: fused[i]}
	}
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})

	if len(scored) > opts.TopK {
		scored = scored[:opts.TopK]
	}
	return scored
}

// denseScores computes cosine similarity between the unit-normalized query
// embedding and each chunk embedding. Chunks without an embedding score 0.
// An embedding failure degrades to all-zero dense scores rather than
// failing the search.
func (e *Engine) denseScores(ctx context.Context, query string, chunks []chunk.Chunk) []float64 {
	scores := make([]float64, len(chunks))

	vec, err := e.embedder.EmbedQuery(ctx, query)
	if err != nil {
		slog.Warn("query embedding failed, dense scores zeroed", "error", err)
		return scores
	}

	for i, c := range chunks {
		scores[i] = dot(vec, c.Embedding)
	}
	return scores
}

func dot(a, b []float32) float64 {
	n := min(len(a), len(b))
	var sum float64
	for i := 0; i < n; i++ {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

func (e *Engine) sparseScores(query string, chunks []chunk.Chunk) []float64 {
	idx := e.indexFor(chunks)
	return idx.Scores(Tokenize(query))
}

// indexFor returns the cached BM25 index when it was built from this exact
// collection, rebuilding it otherwise.
func (e *Engine) indexFor(chunks []chunk.Chunk) *bm25Index {
	fp := fingerprint(chunks)

	e.mu.RLock()
	if e.index != nil && e.fingerprint == fp {
		idx := e.index
		e.mu.RUnlock()
		return idx
	}
	e.mu.RUnlock()

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.index == nil || e.fingerprint != fp {
		corpus := make([][]string, len(chunks))
		for i, c := range chunks {
			corpus[i] = Tokenize(c.Content)
		}
		e.index = newBM25Index(corpus)
		e.fingerprint = fp
	}
	return e.index
}

func fingerprint(chunks []chunk.Chunk) uint64 {
	h := fnv.New64a()
	for _, c := range chunks {
		h.Write([]byte(c.ID))
		h.Write([]byte{0})
	}
	return h.Sum64()
}

// rrfFusion combines two score lists by reciprocal rank: only the ordering
// of each list matters, not its scale.
func rrfFusion(dense, sparse []float64) []float64 {
	denseRanks := ranks(dense)
	sparseRanks := ranks(sparse)

	fused := make([]float64, len(dense))
	for i := range fused {
		fused[i] = 1.0/float64(rrfK+denseRanks[i]) + 1.0/float64(rrfK+sparseRanks[i])
	}
	return fused
}

// ranks converts scores to 1-based ranks, highest score first. Ties keep
// original order.
func ranks(scores []float64) []int {
	order := make([]int, len(scores))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return scores[order[a]] > scores[order[b]]
	})

	r := make([]int, len(scores))
	for rank, idx := range order {
		r[idx] = rank + 1
	}
	return r
}

// weightedFusion min-max normalizes each list independently and blends them:
// alpha weights the sparse list, 1-alpha the dense list.
func weightedFusion(dense, sparse []float64, alpha float64) []float64 {
	normDense := minMaxNormalize(dense)
	normSparse := minMaxNormalize(sparse)

	fused := make([]float64, len(dense))
	for i := range fused {
		fused[i] = alpha*normSparse[i] + (1-alpha)*normDense[i]
	}
	return fused
}

// minMaxNormalize maps scores to [0,1]. A list with zero range maps every
// element to 0.5.
func minMaxNormalize(scores []float64) []float64 {
	if len(scores) == 0 {
		return scores
	}

	lo, hi := scores[0], scores[0]
	for _, s := range scores[1:] {
		if s < lo {
			lo = s
		}
		if s > hi {
			hi = s
		}
	}

	out := make([]float64, len(scores))
	if hi == lo {
		for i := range out {
			out[i] = 0.5
		}
		return out
	}
	for i, s := range scores {
		out[i] = (s - lo) / (hi - lo)
	}
	return out
}
