package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"mediastream/internal/media"
	"mediastream/internal/models"
	"mediastream/internal/storage"
)

const defaultMaxUploadBytes = 512 << 20

// Ingestor runs the upload pipeline. Implemented by media.Orchestrator.
type Ingestor interface {
	Ingest(ctx context.Context, data []byte, filename, mimeType string) (models.MediaAsset, error)
}

// Handler frontends the media API routes.
type Handler struct {
	Store          storage.Repository
	Ingest         Ingestor
	Logger         *slog.Logger
	RateLimiter    Pinger
	MaxUploadBytes int64
}

// NewHandler wires the API handler with its collaborators.
func NewHandler(store storage.Repository, ingest Ingestor, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		Store:          store,
		Ingest:         ingest,
		Logger:         logger.With("component", "api"),
		MaxUploadBytes: defaultMaxUploadBytes,
	}
}

func (h *Handler) maxUploadBytes() int64 {
	if h.MaxUploadBytes <= 0 {
		return defaultMaxUploadBytes
	}
	return h.MaxUploadBytes
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// WriteError is an exported helper for returning JSON API errors.
func WriteError(w http.ResponseWriter, status int, err error) {
	writeError(w, status, err)
}

func errMethodNotAllowed(method string) error {
	return fmt.Errorf("method %s not allowed", method)
}

// statusForError maps pipeline and storage errors to HTTP status codes:
// unparseable MIME types are client errors, object store failures bubble up
// as bad gateway, and record persistence failures stay internal.
func statusForError(err error) int {
	switch {
	case errors.Is(err, media.ErrInvalidMimeType):
		return http.StatusBadRequest
	case errors.Is(err, media.ErrStorageUpload):
		return http.StatusBadGateway
	case errors.Is(err, media.ErrRecordPersist):
		return http.StatusInternalServerError
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
