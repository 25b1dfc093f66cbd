package rag

import (
	"math"
)

const (
	bm25K1      = 1.5
	bm25B       = 0.75
	bm25Epsilon = 0.25
)

// bm25Index holds Okapi BM25 statistics for one tokenized corpus. Built once
// per chunk collection and read-only afterwards; a changed collection gets a
// fresh index, never an incremental patch.
type bm25Index struct {
	termFreqs []map[string]int
	docLens   []float64
	avgLen    float64
	idf       map[string]float64
}

func newBM25Index(corpus [][]string) *bm25Index {
	idx := &bm25Index{
		termFreqs: make([]map[string]int, len(corpus)),
		docLens:   make([]float64, len(corpus)),
		idf:       make(map[string]float64),
	}

	docFreqs := make(map[string]int)
	var totalLen float64

	for i, doc := range corpus {
		tf := make(map[string]int, len(doc))
		for _, term := range doc {
			tf[term]++
		}
		for term := range tf {
			docFreqs[term]++
		}
		idx.termFreqs[i] = tf
		idx.docLens[i] = float64(len(doc))
		totalLen += float64(len(doc))
	}
	if len(corpus) > 0 {
		idx.avgLen = totalLen / float64(len(corpus))
	}

	// IDF with the common floor: terms appearing in most documents get a
	// small positive value instead of a negative one.
	n := float64(len(corpus))
	var idfSum float64
	var negative []string
	for term, df := range docFreqs {
		idf := math.Log((n - float64(df) + 0.5) / (float64(df) + 0.5))
		idx.idf[term] = idf
		idfSum += idf
		if idf < 0 {
			negative = append(negative, term)
		}
	}
	if len(docFreqs) > 0 {
		floor := bm25Epsilon * idfSum / float64(len(docFreqs))
		for _, term := range negative {
			idx.idf[term] = floor
		}
	}

	return idx
}

// Scores returns one BM25 score per document for the tokenized query.
func (idx *bm25Index) Scores(query []string) []float64 {
	scores := make([]float64, len(idx.termFreqs))
	for _, term := range query {
		idf, ok := idx.idf[term]
		if !ok {
			continue
		}
		for i, tf := range idx.termFreqs {
			freq := float64(tf[term])
			if freq == 0 {
				continue
			}
			norm := 1 - bm25B + bm25B*idx.docLens[i]/idx.avgLen
			scores[i] += idf * freq * (bm25K1 + 1) / (freq + bm25K1*norm)
		}
	}
	return scores
}
