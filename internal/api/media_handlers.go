package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"mediastream/internal/models"
)

type mediaResponse struct {
	ID        string `json:"id"`
	MediaType string `json:"mediaType"`
	Key       string `json:"key"`
	Filename  string `json:"filename"`
	URL       string `json:"url"`
	SizeBytes int64  `json:"sizeBytes"`
	CreatedAt string `json:"createdAt"`
}

type mediaListResponse struct {
	VideoFiles []mediaResponse `json:"videoFiles"`
	AudioFiles []mediaResponse `json:"audioFiles"`
}

type mediaURLResponse struct {
	URL string `json:"url"`
}

func newMediaResponse(asset models.MediaAsset) mediaResponse {
	return mediaResponse{
		ID:        asset.ID,
		MediaType: string(asset.MediaType),
		Key:       asset.StorageKey,
		Filename:  asset.OriginalFilename,
		URL:       asset.CanonicalURL,
		SizeBytes: asset.SizeBytes,
		CreatedAt: asset.CreatedAt.Format(time.RFC3339Nano),
	}
}

func newMediaResponses(assets []models.MediaAsset) []mediaResponse {
	responses := make([]mediaResponse, 0, len(assets))
	for _, asset := range assets {
		responses = append(responses, newMediaResponse(asset))
	}
	return responses
}

// Media serves /api/media: POST ingests an upload, GET lists stored video and
// audio assets.
func (h *Handler) Media(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.createMedia(w, r)
	case http.MethodGet:
		h.listMedia(w, r)
	default:
		w.Header().Set("Allow", "GET, POST")
		WriteError(w, http.StatusMethodNotAllowed, errMethodNotAllowed(r.Method))
	}
}

// MediaByID serves /api/media/{id}, returning the playback URL for the asset.
func (h *Handler) MediaByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		WriteError(w, http.StatusMethodNotAllowed, errMethodNotAllowed(r.Method))
		return
	}
	id := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/media/"), "/")
	if id == "" || strings.Contains(id, "/") {
		WriteError(w, http.StatusNotFound, fmt.Errorf("media asset not found"))
		return
	}
	asset, err := h.Store.GetMediaAsset(r.Context(), id)
	if err != nil {
		WriteError(w, statusForError(err), err)
		return
	}
	writeJSON(w, http.StatusOK, mediaURLResponse{URL: asset.CanonicalURL})
}

func (h *Handler) listMedia(w http.ResponseWriter, r *http.Request) {
	videos, err := h.Store.ListMediaAssets(r.Context(), models.MediaTypeVideo)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, fmt.Errorf("list video assets: %w", err))
		return
	}
	audios, err := h.Store.ListMediaAssets(r.Context(), models.MediaTypeAudio)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, fmt.Errorf("list audio assets: %w", err))
		return
	}
	writeJSON(w, http.StatusOK, mediaListResponse{
		VideoFiles: newMediaResponses(videos),
		AudioFiles: newMediaResponses(audios),
	})
}

type uploadedFile struct {
	data        []byte
	filename    string
	contentType string
}

func (h *Handler) createMedia(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes())
	reader, err := r.MultipartReader()
	if err != nil {
		WriteError(w, http.StatusBadRequest, fmt.Errorf("invalid multipart payload"))
		return
	}

	var file *uploadedFile
	filenameOverride := ""
	for {
		part, err := reader.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			WriteError(w, http.StatusBadRequest, fmt.Errorf("read multipart data: %w", err))
			return
		}
		name := part.FormName()
		if name == "" {
			_ = part.Close()
			continue
		}
		if name == "file" {
			if file != nil {
				_ = part.Close()
				continue
			}
			data, readErr := io.ReadAll(part)
			_ = part.Close()
			if readErr != nil {
				WriteError(w, http.StatusRequestEntityTooLarge, fmt.Errorf("read upload: %w", readErr))
				return
			}
			file = &uploadedFile{
				data:        data,
				filename:    part.FileName(),
				contentType: part.Header.Get("Content-Type"),
			}
			continue
		}
		payload, readErr := io.ReadAll(part)
		_ = part.Close()
		if readErr != nil {
			WriteError(w, http.StatusBadRequest, fmt.Errorf("read form field: %w", readErr))
			return
		}
		if name == "filename" {
			filenameOverride = strings.TrimSpace(string(payload))
		}
	}

	if file == nil {
		WriteError(w, http.StatusBadRequest, fmt.Errorf("file part is required"))
		return
	}
	filename := file.filename
	if filenameOverride != "" {
		filename = filenameOverride
	}

	asset, err := h.Ingest.Ingest(r.Context(), file.data, filename, file.contentType)
	if err != nil {
		WriteError(w, statusForError(err), err)
		return
	}
	writeJSON(w, http.StatusCreated, newMediaResponse(asset))
}
