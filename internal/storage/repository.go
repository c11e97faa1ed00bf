// Package storage persists media asset records. Two implementations exist: a
// JSON-file store for single-node deployments and a Postgres repository for
// shared state across replicas.
package storage

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"

	"mediastream/internal/models"
)

// ErrNotFound is returned when the requested media asset does not exist.
var ErrNotFound = errors.New("media asset not found")

// Repository is the persistence surface consumed by the API layer. Create
// assigns the record ID and creation timestamp.
type Repository interface {
	CreateMediaAsset(ctx context.Context, asset models.MediaAsset) (models.MediaAsset, error)
	GetMediaAsset(ctx context.Context, id string) (models.MediaAsset, error)
	ListMediaAssets(ctx context.Context, mediaType models.MediaType) ([]models.MediaAsset, error)
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

func generateID() (string, error) {
	bytes := make([]byte, 16)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("generate id: %w", err)
	}
	return hex.EncodeToString(bytes), nil
}

func validateAsset(asset models.MediaAsset) error {
	if !asset.MediaType.Valid() {
		return fmt.Errorf("invalid media type %q", asset.MediaType)
	}
	if asset.StorageKey == "" {
		return fmt.Errorf("storage key required")
	}
	if asset.CanonicalURL == "" {
		return fmt.Errorf("canonical url required")
	}
	return nil
}
