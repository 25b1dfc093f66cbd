package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/adityaverma/docuchat/internal/chunk"
	"github.com/adityaverma/docuchat/internal/config"
	"github.com/adityaverma/docuchat/internal/embedding"
	"github.com/adityaverma/docuchat/internal/vectorstore"
	"github.com/adityaverma/docuchat/pkg/chunker"
	"github.com/adityaverma/docuchat/pkg/textextract"
	"github.com/adityaverma/docuchat/pkg/tokenizer"
)

// Processor turns an uploaded file into embedded chunks in the vector index:
// extract text page by page, split into pieces, embed, upsert. Status and
// stats are tracked on the document record so the API can report progress.
type Processor struct {
	docs     *Repository
	embedder *embedding.Service
	index    vectorstore.Index
	opts     chunker.Options
}

func NewProcessor(docs *Repository, embedder *embedding.Service, index vectorstore.Index, cfg config.IngestConfig) *Processor {
	return &Processor{
		docs:     docs,
		embedder: embedder,
		index:    index,
		opts: chunker.Options{
			Size:    cfg.ChunkSize,
			Overlap: cfg.ChunkOverlap,
		},
	}
}

// Process ingests one document. A returned error leaves the document marked
// failed with the reason, so retries by the queue are safe to repeat.
func (p *Processor) Process(ctx context.Context, documentID uuid.UUID) error {
	doc, err := p.docs.Get(ctx, documentID)
	if err != nil {
		return err
	}

	if err := p.docs.SetProcessing(ctx, doc.ID); err != nil {
		return err
	}

	if err := p.ingest(ctx, doc); err != nil {
		if markErr := p.docs.MarkFailed(ctx, doc.ID, err.Error()); markErr != nil {
			slog.Error("mark document failed", "document_id", doc.ID, "error", markErr)
		}
		return fmt.Errorf("ingest document %s: %w", doc.ID, err)
	}
	return nil
}

func (p *Processor) ingest(ctx context.Context, doc *Document) error {
	f, err := os.Open(doc.StoragePath)
	if err != nil {
		return fmt.Errorf("open upload: %w", err)
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat upload: %w", err)
	}

	fileType := doc.ContentType
	if fileType == "" {
		fileType = filepath.Ext(doc.Filename)
	}

	extracted, err := textextract.Extract(f, stat.Size(), fileType)
	if err != nil {
		return fmt.Errorf("extract text: %w", err)
	}

	chunks := p.buildChunks(doc, extracted)
	if len(chunks) == 0 {
		return fmt.Errorf("no text extracted")
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}
	vectors, err := p.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed chunks: %w", err)
	}
	for i := range chunks {
		chunks[i].Embedding = vectors[i]
	}

	// Replace-on-reingest: old chunks go first so a retry never duplicates.
	if err := p.index.Delete(ctx, doc.ID.String()); err != nil {
		return fmt.Errorf("clear previous chunks: %w", err)
	}
	if err := p.index.Upsert(ctx, doc.ID.String(), chunks); err != nil {
		return fmt.Errorf("store chunks: %w", err)
	}

	tokens := 0
	for _, t := range texts {
		tokens += tokenizer.Estimate(t)
	}

	slog.Info("document ingested",
		"document_id", doc.ID, "pages", extracted.TotalPages, "chunks", len(chunks), "tokens", tokens)
	return p.docs.MarkCompleted(ctx, doc.ID, extracted.TotalPages, len(chunks), tokens)
}

// buildChunks splits each extracted page and stamps the provenance metadata
// every chunk must carry. Chunk indices run across the whole document, not
// per page.
func (p *Processor) buildChunks(doc *Document, extracted *textextract.Document) []chunk.Chunk {
	var chunks []chunk.Chunk

	for _, page := range extracted.Pages {
		for _, piece := range chunker.Split(page.Text, p.opts) {
			id := fmt.Sprintf("%s:%04d", doc.ID, len(chunks))
			chunks = append(chunks, chunk.Chunk{
				ID:      id,
				Kind:    chunk.KindText,
				Content: piece.Content,
				Metadata: chunk.Metadata{
					OriginalFilename: doc.Filename,
					ChunkID:          id,
					UploadTimestamp:  doc.UploadedAt,
					SourceURL:        doc.SourceURL,
					PageNumber:       page.Number,
					TotalPages:       extracted.TotalPages,
				},
			})
		}
	}

	for i := range chunks {
		chunks[i].Metadata.ChunkIndex = i
		chunks[i].Metadata.TotalChunks = len(chunks)
	}
	return chunks
}
