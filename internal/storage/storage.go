package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"mediastream/internal/models"
)

type dataset struct {
	MediaAssets map[string]models.MediaAsset `json:"mediaAssets"`
}

func newDataset() dataset {
	return dataset{MediaAssets: make(map[string]models.MediaAsset)}
}

// Storage is a JSON-file backed Repository. Every mutation rewrites the file
// atomically through a temp file rename.
type Storage struct {
	mu       sync.RWMutex
	filePath string
	data     dataset
	// persistOverride allows tests to intercept persist operations.
	persistOverride func(dataset) error
	now             func() time.Time
}

// NewStorage opens or initialises the store file at path.
func NewStorage(path string) (*Storage, error) {
	store := &Storage{
		filePath: path,
		now:      time.Now,
	}
	if err := store.load(); err != nil {
		return nil, err
	}
	return store, nil
}

func (s *Storage) load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.filePath), 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	file, err := os.Open(s.filePath)
	if errors.Is(err, os.ErrNotExist) {
		s.data = newDataset()
		return nil
	} else if err != nil {
		return fmt.Errorf("open store file: %w", err)
	}
	defer file.Close()

	decoder := json.NewDecoder(file)
	if err := decoder.Decode(&s.data); err != nil {
		if errors.Is(err, io.EOF) {
			s.data = newDataset()
			return nil
		}
		return fmt.Errorf("decode store file: %w", err)
	}
	if s.data.MediaAssets == nil {
		s.data.MediaAssets = make(map[string]models.MediaAsset)
	}
	return nil
}

func (s *Storage) persist() error {
	if s.persistOverride != nil {
		if err := s.persistOverride(s.data); err != nil {
			return err
		}
	}

	dir := filepath.Dir(s.filePath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	tmpFile, err := os.CreateTemp(dir, "store-*.json")
	if err != nil {
		return fmt.Errorf("create temp store file: %w", err)
	}
	tmpPath := tmpFile.Name()
	success := false
	defer func() {
		if !success {
			_ = tmpFile.Close()
			_ = os.Remove(tmpPath)
		}
	}()

	encoder := json.NewEncoder(tmpFile)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(s.data); err != nil {
		return fmt.Errorf("encode store file: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		return fmt.Errorf("flush store file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("close temp store file: %w", err)
	}

	if err := os.Rename(tmpPath, s.filePath); err != nil {
		return fmt.Errorf("replace store file: %w", err)
	}
	success = true
	return nil
}

// CreateMediaAsset assigns an ID and timestamp, validates the record, and
// persists it.
func (s *Storage) CreateMediaAsset(_ context.Context, asset models.MediaAsset) (models.MediaAsset, error) {
	if err := validateAsset(asset); err != nil {
		return models.MediaAsset{}, err
	}
	id, err := generateID()
	if err != nil {
		return models.MediaAsset{}, err
	}
	asset.ID = id
	asset.CreatedAt = s.now().UTC()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.MediaAssets[asset.ID] = asset
	if err := s.persist(); err != nil {
		delete(s.data.MediaAssets, asset.ID)
		return models.MediaAsset{}, err
	}
	return asset, nil
}

// GetMediaAsset returns the record with the given ID or ErrNotFound.
func (s *Storage) GetMediaAsset(_ context.Context, id string) (models.MediaAsset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	asset, ok := s.data.MediaAssets[id]
	if !ok {
		return models.MediaAsset{}, ErrNotFound
	}
	return asset, nil
}

// ListMediaAssets returns records of the given media type, newest first.
func (s *Storage) ListMediaAssets(_ context.Context, mediaType models.MediaType) ([]models.MediaAsset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	assets := make([]models.MediaAsset, 0, len(s.data.MediaAssets))
	for _, asset := range s.data.MediaAssets {
		if asset.MediaType == mediaType {
			assets = append(assets, asset)
		}
	}
	sort.Slice(assets, func(i, j int) bool {
		if !assets[i].CreatedAt.Equal(assets[j].CreatedAt) {
			return assets[i].CreatedAt.After(assets[j].CreatedAt)
		}
		return assets[i].ID < assets[j].ID
	})
	return assets, nil
}

// Ping reports whether the store file remains writable.
func (s *Storage) Ping(_ context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	dir := filepath.Dir(s.filePath)
	if _, err := os.Stat(dir); err != nil {
		return fmt.Errorf("store directory unavailable: %w", err)
	}
	return nil
}

// Close is a no-op for the file store.
func (s *Storage) Close(_ context.Context) error {
	return nil
}
