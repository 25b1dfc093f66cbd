package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Document processing states.
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

var ErrDocumentNotFound = errors.New("document not found")

// Document is an uploaded file tracked through ingestion.
type Document struct {
	ID          uuid.UUID  `json:"id"`
	Filename    string     `json:"filename"`
	ContentType string     `json:"content_type"`
	SourceURL   string     `json:"source_url"`
	StoragePath string     `json:"-"`
	Status      string     `json:"status"`
	Error       string     `json:"error,omitempty"`
	TotalPages  int        `json:"total_pages"`
	ChunkCount  int        `json:"chunk_count"`
	TokenCount  int        `json:"token_count"`
	UploadedAt  time.Time  `json:"uploaded_at"`
	ProcessedAt *time.Time `json:"processed_at,omitempty"`
}

// Repository persists document records in Postgres.
type Repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

const documentColumns = `id, filename, content_type, source_url, storage_path, status, error,
	total_pages, chunk_count, token_count, uploaded_at, processed_at`

func (r *Repository) Create(ctx context.Context, doc *Document) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO documents (id, filename, content_type, source_url, storage_path, status, uploaded_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		doc.ID, doc.Filename, doc.ContentType, doc.SourceURL, doc.StoragePath, doc.Status, doc.UploadedAt,
	)
	if err != nil {
		return fmt.Errorf("create document: %w", err)
	}
	return nil
}

func (r *Repository) Get(ctx context.Context, id uuid.UUID) (*Document, error) {
	row := r.db.QueryRow(ctx,
		"SELECT "+documentColumns+" FROM documents WHERE id = $1", id)

	doc, err := scanDocument(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrDocumentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get document: %w", err)
	}
	return doc, nil
}

func (r *Repository) List(ctx context.Context, limit int) ([]Document, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := r.db.Query(ctx,
		"SELECT "+documentColumns+" FROM documents ORDER BY uploaded_at DESC LIMIT $1", limit)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		docs = append(docs, *doc)
	}
	return docs, rows.Err()
}

func (r *Repository) SetProcessing(ctx context.Context, id uuid.UUID) error {
	return r.setStatus(ctx, id, StatusProcessing, "")
}

func (r *Repository) MarkFailed(ctx context.Context, id uuid.UUID, reason string) error {
	return r.setStatus(ctx, id, StatusFailed, reason)
}

func (r *Repository) setStatus(ctx context.Context, id uuid.UUID, status, reason string) error {
	tag, err := r.db.Exec(ctx,
		"UPDATE documents SET status = $2, error = $3 WHERE id = $1", id, status, reason)
	if err != nil {
		return fmt.Errorf("set document status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrDocumentNotFound
	}
	return nil
}

// MarkCompleted records the ingestion stats alongside the terminal status.
func (r *Repository) MarkCompleted(ctx context.Context, id uuid.UUID, totalPages, chunkCount, tokenCount int) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE documents
		 SET status = $2, error = '', total_pages = $3, chunk_count = $4, token_count = $5, processed_at = now()
		 WHERE id = $1`,
		id, StatusCompleted, totalPages, chunkCount, tokenCount,
	)
	if err != nil {
		return fmt.Errorf("mark document completed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrDocumentNotFound
	}
	return nil
}

func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, "DELETE FROM documents WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrDocumentNotFound
	}
	return nil
}

func scanDocument(row pgx.Row) (*Document, error) {
	var doc Document
	err := row.Scan(
		&doc.ID, &doc.Filename, &doc.ContentType, &doc.SourceURL, &doc.StoragePath,
		&doc.Status, &doc.Error, &doc.TotalPages, &doc.ChunkCount, &doc.TokenCount,
		&doc.UploadedAt, &doc.ProcessedAt,
	)
	if err != nil {
		return nil, err
	}
	return &doc, nil
}
