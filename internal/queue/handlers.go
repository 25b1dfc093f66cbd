package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/adityaverma/docuchat/internal/ingest"
)

// IngestWorker runs document ingestion tasks.
type IngestWorker struct {
	processor *ingest.Processor
}

func NewIngestWorker(processor *ingest.Processor) *IngestWorker {
	return &IngestWorker{processor: processor}
}

func (w *IngestWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload DocumentIngestPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}

	docID, err := uuid.Parse(payload.DocumentID)
	if err != nil {
		return fmt.Errorf("parse document ID: %w", err)
	}

	slog.Info("ingesting document", "document_id", docID)
	if err := w.processor.Process(ctx, docID); err != nil {
		return err
	}
	slog.Info("document ingestion done", "document_id", docID)
	return nil
}

// NewMux wires task types to their handlers.
func NewMux(worker *IngestWorker) *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.Handle(TypeDocumentIngest, worker)
	return mux
}
