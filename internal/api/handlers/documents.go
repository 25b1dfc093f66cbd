package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/adityaverma/docuchat/internal/config"
	"github.com/adityaverma/docuchat/internal/ingest"
	"github.com/adityaverma/docuchat/internal/queue"
	"github.com/adityaverma/docuchat/internal/vectorstore"
	"github.com/adityaverma/docuchat/pkg/textextract"
)

type DocumentHandler struct {
	docs      *ingest.Repository
	index     vectorstore.Index
	queue     *queue.Client
	uploadDir string
}

func NewDocumentHandler(docs *ingest.Repository, index vectorstore.Index, qc *queue.Client, cfg config.IngestConfig) *DocumentHandler {
	return &DocumentHandler{
		docs:      docs,
		index:     index,
		queue:     qc,
		uploadDir: cfg.UploadDir,
	}
}

// Upload stores the file, records the document as pending and queues
// ingestion. The response carries the id the client polls for status.
func (h *DocumentHandler) Upload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid multipart form"})
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "file required"})
		return
	}
	defer file.Close()

	ext := strings.ToLower(filepath.Ext(header.Filename))
	if !supported(ext) {
		writeJSON(w, http.StatusUnsupportedMediaType, map[string]string{
			"error": fmt.Sprintf("unsupported file type %s, supported: %s",
				ext, strings.Join(textextract.SupportedTypes(), ", ")),
		})
		return
	}

	doc := &ingest.Document{
		ID:          uuid.New(),
		Filename:    header.Filename,
		ContentType: ext,
		SourceURL:   "upload://" + header.Filename,
		Status:      ingest.StatusPending,
		UploadedAt:  time.Now().UTC(),
	}
	doc.StoragePath = filepath.Join(h.uploadDir, doc.ID.String()+ext)

	if err := h.saveUpload(file, doc.StoragePath); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	if err := h.docs.Create(r.Context(), doc); err != nil {
		os.Remove(doc.StoragePath)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	if err := h.queue.EnqueueDocumentIngest(queue.DocumentIngestPayload{DocumentID: doc.ID.String()}); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "queue ingestion: " + err.Error()})
		return
	}

	writeJSON(w, http.StatusCreated, doc)
}

func (h *DocumentHandler) saveUpload(src io.Reader, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create upload dir: %w", err)
	}
	dst, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create upload file: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		os.Remove(path)
		return fmt.Errorf("write upload: %w", err)
	}
	return nil
}

func (h *DocumentHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	docs, err := h.docs.List(r.Context(), limit)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"documents": docs, "count": len(docs)})
}

func (h *DocumentHandler) Get(w http.ResponseWriter, r *http.Request) {
	doc, ok := h.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (h *DocumentHandler) Status(w http.ResponseWriter, r *http.Request) {
	doc, ok := h.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"id":          doc.ID,
		"status":      doc.Status,
		"error":       doc.Error,
		"chunk_count": doc.ChunkCount,
	})
}

// Delete removes the record, its chunks and the stored file.
func (h *DocumentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	doc, ok := h.lookup(w, r)
	if !ok {
		return
	}

	if err := h.index.Delete(r.Context(), doc.ID.String()); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	if err := h.docs.Delete(r.Context(), doc.ID); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	if doc.StoragePath != "" {
		os.Remove(doc.StoragePath)
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (h *DocumentHandler) lookup(w http.ResponseWriter, r *http.Request) (*ingest.Document, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid document id"})
		return nil, false
	}

	doc, err := h.docs.Get(r.Context(), id)
	if errors.Is(err, ingest.ErrDocumentNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "document not found"})
		return nil, false
	}
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return nil, false
	}
	return doc, true
}

func supported(ext string) bool {
	for _, t := range textextract.SupportedTypes() {
		if t == ext {
			return true
		}
	}
	return false
}
