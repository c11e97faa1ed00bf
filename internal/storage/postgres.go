package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"mediastream/internal/models"
)

// PostgresConfig tunes the connection pool behind the Postgres repository.
// Only DSN is required.
type PostgresConfig struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
	AppName         string
}

// PostgresRepository persists media asset records to Postgres, allowing
// multiple API replicas to share state.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository opens a pooled connection using the provided
// configuration and verifies connectivity.
func NewPostgresRepository(ctx context.Context, cfg PostgresConfig) (*PostgresRepository, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("postgres dsn required")
	}
	poolConfig, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres config: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolConfig.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolConfig.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	}
	if cfg.MaxConnIdleTime > 0 {
		poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime
	}
	if cfg.AppName != "" {
		poolConfig.ConnConfig.RuntimeParams["application_name"] = cfg.AppName
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("open postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &PostgresRepository{pool: pool}, nil
}

// Migrate creates the media_assets table when it does not exist.
func (r *PostgresRepository) Migrate(ctx context.Context) error {
	_, err := r.pool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS media_assets (
    id TEXT PRIMARY KEY,
    media_type TEXT NOT NULL CHECK (media_type IN ('video', 'audio', 'other')),
    storage_key TEXT NOT NULL UNIQUE,
    original_filename TEXT NOT NULL,
    canonical_url TEXT NOT NULL,
    size_bytes BIGINT NOT NULL DEFAULT 0,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS media_assets_media_type_created_at_idx
    ON media_assets (media_type, created_at DESC);
`)
	if err != nil {
		return fmt.Errorf("migrate media_assets: %w", err)
	}
	return nil
}

// CreateMediaAsset assigns an ID and timestamp and inserts the record.
func (r *PostgresRepository) CreateMediaAsset(ctx context.Context, asset models.MediaAsset) (models.MediaAsset, error) {
	if err := validateAsset(asset); err != nil {
		return models.MediaAsset{}, err
	}
	id, err := generateID()
	if err != nil {
		return models.MediaAsset{}, err
	}
	asset.ID = id
	asset.CreatedAt = time.Now().UTC()
	_, err = r.pool.Exec(ctx, `
INSERT INTO media_assets (id, media_type, storage_key, original_filename, canonical_url, size_bytes, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
`, asset.ID, string(asset.MediaType), asset.StorageKey, asset.OriginalFilename, asset.CanonicalURL, asset.SizeBytes, asset.CreatedAt)
	if err != nil {
		return models.MediaAsset{}, fmt.Errorf("insert media asset: %w", err)
	}
	return asset, nil
}

// GetMediaAsset returns the record with the given ID or ErrNotFound.
func (r *PostgresRepository) GetMediaAsset(ctx context.Context, id string) (models.MediaAsset, error) {
	row := r.pool.QueryRow(ctx, `
SELECT id, media_type, storage_key, original_filename, canonical_url, size_bytes, created_at
FROM media_assets
WHERE id = $1
`, id)
	asset, err := scanMediaAsset(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.MediaAsset{}, ErrNotFound
		}
		return models.MediaAsset{}, fmt.Errorf("select media asset: %w", err)
	}
	return asset, nil
}

// ListMediaAssets returns records of the given media type, newest first.
func (r *PostgresRepository) ListMediaAssets(ctx context.Context, mediaType models.MediaType) ([]models.MediaAsset, error) {
	rows, err := r.pool.Query(ctx, `
SELECT id, media_type, storage_key, original_filename, canonical_url, size_bytes, created_at
FROM media_assets
WHERE media_type = $1
ORDER BY created_at DESC, id
`, string(mediaType))
	if err != nil {
		return nil, fmt.Errorf("list media assets: %w", err)
	}
	defer rows.Close()
	var assets []models.MediaAsset
	for rows.Next() {
		asset, err := scanMediaAsset(rows)
		if err != nil {
			return nil, fmt.Errorf("scan media asset: %w", err)
		}
		assets = append(assets, asset)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list media assets: %w", err)
	}
	return assets, nil
}

// Ping verifies pool connectivity.
func (r *PostgresRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// Close releases the connection pool, honouring the context deadline.
func (r *PostgresRepository) Close(ctx context.Context) error {
	if r == nil || r.pool == nil {
		return nil
	}
	done := make(chan struct{})
	go func() {
		r.pool.Close()
		close(done)
	}()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMediaAsset(row rowScanner) (models.MediaAsset, error) {
	var (
		asset     models.MediaAsset
		mediaType string
	)
	if err := row.Scan(&asset.ID, &mediaType, &asset.StorageKey, &asset.OriginalFilename, &asset.CanonicalURL, &asset.SizeBytes, &asset.CreatedAt); err != nil {
		return models.MediaAsset{}, err
	}
	parsed, err := models.ParseMediaType(mediaType)
	if err != nil {
		return models.MediaAsset{}, err
	}
	asset.MediaType = parsed
	return asset, nil
}
