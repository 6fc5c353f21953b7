// Package postgres provides the Postgres-backed recall metadata store.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/recallwatch/labelworker/internal/labels"
	"github.com/recallwatch/labelworker/internal/store"
)

// Config controls the Postgres connection pool.
type Config struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type pgxQuerier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Close()
}

// RecallStore implements store.RecallStore on Postgres.
type RecallStore struct {
	pool pgxQuerier
}

// NewRecallStore connects a pool from config.
func NewRecallStore(ctx context.Context, cfg Config) (*RecallStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("db.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &RecallStore{pool: pool}, nil
}

// NewRecallStoreWithPool constructs a store from an existing pool (primarily
// for testing).
func NewRecallStoreWithPool(pool pgxQuerier) (*RecallStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &RecallStore{pool: pool}, nil
}

// Close releases the underlying pool resources.
func (s *RecallStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// GetRecallsNeedingImages returns the most recent recalls, newest first.
func (s *RecallStore) GetRecallsNeedingImages(ctx context.Context, limit int) ([]labels.Recall, error) {
	query := `
		SELECT id, summary, extracted_urls, processed_images,
		       total_image_count, has_errors, images_processed_at
		FROM recalls
		ORDER BY recall_date DESC
		LIMIT $1;
	`
	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("select recalls: %w", err)
	}
	defer rows.Close()

	var recalls []labels.Recall
	for rows.Next() {
		var (
			r             labels.Recall
			extractedJSON []byte
			imagesJSON    []byte
		)
		if err := rows.Scan(
			&r.ID,
			&r.Summary,
			&extractedJSON,
			&imagesJSON,
			&r.TotalImageCount,
			&r.HasErrors,
			&r.ImagesProcessedAt,
		); err != nil {
			return nil, fmt.Errorf("scan recall row: %w", err)
		}
		if len(extractedJSON) > 0 {
			if err := json.Unmarshal(extractedJSON, &r.ExtractedURLs); err != nil {
				return nil, fmt.Errorf("unmarshal extracted urls for %s: %w", r.ID, err)
			}
		}
		if len(imagesJSON) > 0 {
			if err := json.Unmarshal(imagesJSON, &r.ProcessedImages); err != nil {
				return nil, fmt.Errorf("unmarshal processed images for %s: %w", r.ID, err)
			}
		}
		recalls = append(recalls, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate recall rows: %w", err)
	}
	return recalls, nil
}

// UpdateRecallImages writes the five outcome fields in a single statement so
// a recall is never observed half-updated.
func (s *RecallStore) UpdateRecallImages(ctx context.Context, id string, update labels.ImageUpdate) error {
	if id == "" {
		return fmt.Errorf("recall id is required")
	}
	imagesJSON, err := json.Marshal(update.ProcessedImages)
	if err != nil {
		return fmt.Errorf("marshal processed images: %w", err)
	}
	urlsJSON, err := json.Marshal(update.ExtractedURLs)
	if err != nil {
		return fmt.Errorf("marshal extracted urls: %w", err)
	}

	query := `
		UPDATE recalls
		SET processed_images = $1,
		    extracted_urls = $2,
		    total_image_count = $3,
		    has_errors = $4,
		    images_processed_at = $5
		WHERE id = $6;
	`
	tag, err := s.pool.Exec(ctx, query,
		imagesJSON,
		urlsJSON,
		update.TotalImageCount,
		update.HasErrors,
		update.ImagesProcessedAt,
		id,
	)
	if err != nil {
		return fmt.Errorf("update recall images: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}
