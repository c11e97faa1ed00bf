package media

import (
	"context"
	"fmt"
	"log/slog"

	"mediastream/internal/models"
	"mediastream/internal/objectstore"
	"mediastream/internal/observability/metrics"
	"mediastream/internal/transcode"
)

// BlobStore is the object store surface the orchestrator needs.
type BlobStore interface {
	Upload(ctx context.Context, key, contentType string, body []byte) (objectstore.ObjectRef, error)
	PublicURL(key string) string
}

// JobDispatcher accepts transcode jobs without blocking or reporting errors.
type JobDispatcher interface {
	Dispatch(spec transcode.JobSpec)
}

// RecordStore persists media asset records.
type RecordStore interface {
	CreateMediaAsset(ctx context.Context, asset models.MediaAsset) (models.MediaAsset, error)
}

// Orchestrator runs the upload pipeline: classify, store the blob, dispatch a
// transcode job for video and audio, resolve the canonical URL, and persist
// the record. The transcode dispatch is fire-and-forget; everything else is
// sequential and aborts on first failure.
type Orchestrator struct {
	blobs      BlobStore
	dispatcher JobDispatcher
	records    RecordStore
	resolver   *URLResolver
	video      transcode.VideoJobBuilder
	audio      transcode.AudioJobBuilder
	logger     *slog.Logger
	metrics    *metrics.Recorder
	newKey     func(models.MediaType, string) string
}

// OrchestratorConfig wires an Orchestrator's collaborators.
type OrchestratorConfig struct {
	Blobs      BlobStore
	Dispatcher JobDispatcher
	Records    RecordStore
	Resolver   *URLResolver
	Video      transcode.VideoJobBuilder
	Audio      transcode.AudioJobBuilder
	Logger     *slog.Logger
	Metrics    *metrics.Recorder
}

// NewOrchestrator constructs the upload pipeline.
func NewOrchestrator(cfg OrchestratorConfig) *Orchestrator {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	recorder := cfg.Metrics
	if recorder == nil {
		recorder = metrics.Default()
	}
	return &Orchestrator{
		blobs:      cfg.Blobs,
		dispatcher: cfg.Dispatcher,
		records:    cfg.Records,
		resolver:   cfg.Resolver,
		video:      cfg.Video,
		audio:      cfg.Audio,
		logger:     logger.With("component", "media"),
		metrics:    recorder,
		newKey:     NewStorageKey,
	}
}

// Ingest runs the pipeline for one upload and returns the persisted record.
// Classification failures return ErrInvalidMimeType, object store failures
// ErrStorageUpload (nothing persisted), and record failures ErrRecordPersist
// (the stored blob is orphaned). Transcode submission failures never surface
// here.
func (o *Orchestrator) Ingest(ctx context.Context, data []byte, filename, mimeType string) (models.MediaAsset, error) {
	category, err := Classify(mimeType)
	if err != nil {
		o.metrics.RecordIngest("unknown", "rejected")
		return models.MediaAsset{}, err
	}

	key := o.newKey(category, filename)
	ref, err := o.blobs.Upload(ctx, key, mimeType, data)
	if err != nil {
		o.logger.Error("object store upload failed", "key", key, "error", err)
		o.metrics.RecordObjectStoreFailure()
		o.metrics.RecordIngest(string(category), "upload_failed")
		return models.MediaAsset{}, fmt.Errorf("%w: %v", ErrStorageUpload, err)
	}

	switch category {
	case models.MediaTypeVideo:
		o.dispatcher.Dispatch(o.video.Build(ref.Key))
	case models.MediaTypeAudio:
		o.dispatcher.Dispatch(o.audio.Build(ref.Key))
	}

	asset, err := o.records.CreateMediaAsset(ctx, models.MediaAsset{
		MediaType:        category,
		StorageKey:       ref.Key,
		OriginalFilename: filename,
		CanonicalURL:     o.resolver.Resolve(category, ref.Key),
		SizeBytes:        int64(len(data)),
	})
	if err != nil {
		o.logger.Error("media record persist failed, blob orphaned", "key", ref.Key, "error", err)
		o.metrics.RecordIngest(string(category), "persist_failed")
		return models.MediaAsset{}, fmt.Errorf("%w: %v", ErrRecordPersist, err)
	}

	o.logger.Info("media ingested",
		"asset_id", asset.ID,
		"media_type", asset.MediaType,
		"key", asset.StorageKey,
		"size_bytes", asset.SizeBytes,
	)
	o.metrics.RecordIngest(string(category), "stored")
	return asset, nil
}
