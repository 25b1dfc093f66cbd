package chunk

import (
	"fmt"
	"time"
)

// Kind tags what a chunk's content was derived from. Non-text kinds carry a
// textual proxy (caption, OCR text, tag list, transcript) in Content.
type Kind string

const (
	KindText            Kind = "text"
	KindImageCaption    Kind = "image_caption"
	KindImageOCR        Kind = "image_ocr"
	KindImageTags       Kind = "image_tags"
	KindImage           Kind = "image"
	KindAudioTranscript Kind = "audio_transcript"
)

func (k Kind) Valid() bool {
	switch k {
	case KindText, KindImageCaption, KindImageOCR, KindImageTags, KindImage, KindAudioTranscript:
		return true
	}
	return false
}

// Metadata carries the provenance of a chunk. The required fields are
// validated once at the ingestion boundary so the retrieval and generation
// code can rely on them being present.
type Metadata struct {
	OriginalFilename string    `json:"original_filename"`
	ChunkID          string    `json:"chunk_id"`
	UploadTimestamp  time.Time `json:"upload_timestamp"`
	SourceURL        string    `json:"source_url"`
	PageNumber       int       `json:"page_number,omitempty"`
	TotalPages       int       `json:"total_pages,omitempty"`
	ChunkIndex       int       `json:"chunk_index,omitempty"`
	TotalChunks      int       `json:"total_chunks,omitempty"`
}

// Chunk is the unit of retrievable content. Embedding is unit-normalized;
// a nil embedding is legal and scores zero dense similarity. Chunks are
// immutable once handed to the retrieval pipeline.
type Chunk struct {
	ID        string    `json:"id"`
	Kind      Kind      `json:"type"`
	Content   string    `json:"content"`
	Metadata  Metadata  `json:"metadata"`
	Embedding []float32 `json:"-"`
}

// Validate checks the shape ingestion must guarantee before a chunk enters
// the pipeline.
func (c *Chunk) Validate() error {
	if c.ID == "" {
		return fmt.Errorf("chunk: missing id")
	}
	if !c.Kind.Valid() {
		return fmt.Errorf("chunk %s: invalid kind %q", c.ID, c.Kind)
	}
	if c.Metadata.OriginalFilename == "" {
		return fmt.Errorf("chunk %s: missing original_filename", c.ID)
	}
	if c.Metadata.ChunkID == "" {
		return fmt.Errorf("chunk %s: missing chunk_id", c.ID)
	}
	if c.Metadata.UploadTimestamp.IsZero() {
		return fmt.Errorf("chunk %s: missing upload_timestamp", c.ID)
	}
	if c.Metadata.SourceURL == "" {
		return fmt.Errorf("chunk %s: missing source_url", c.ID)
	}
	return nil
}

// Candidate is a chunk scored against one query. Produced per request and
// discarded when the request completes.
type Candidate struct {
	Chunk           `json:"chunk"`
	SimilarityScore float64 `json:"similarity_score"`
	RelevanceScore  float64 `json:"relevance_score,omitempty"`
}

// Preview returns the candidate content truncated for response payloads.
func (c Candidate) Preview(maxLen int) string {
	if len(c.Chunk.Content) <= maxLen {
		return c.Chunk.Content
	}
	return c.Chunk.Content[:maxLen] + "..."
}
