package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/aura-events/ticketing/pkg/database"
)

// Postgres stores artifacts as bytea rows; used when no S3 bucket is configured.
type Postgres struct {
	db           database.DB
	mediaBaseURL string
}

// NewPostgres creates a Postgres-backed artifact store.
func NewPostgres(db database.DB, mediaBaseURL string) *Postgres {
	return &Postgres{db: db, mediaBaseURL: mediaBaseURL}
}

// Put inserts or replaces the object under key.
func (p *Postgres) Put(ctx context.Context, key, contentType string, data []byte) error {
	const q = `INSERT INTO artifacts (key, content_type, data) VALUES ($1, $2, $3)
		ON CONFLICT (key) DO UPDATE SET content_type = EXCLUDED.content_type, data = EXCLUDED.data, created_at = NOW()`
	if _, err := p.db.Exec(ctx, q, key, contentType, data); err != nil {
		return fmt.Errorf("store artifact %s: %w", key, err)
	}
	return nil
}

// Get returns the object under key.
func (p *Postgres) Get(ctx context.Context, key string) ([]byte, error) {
	var data []byte
	err := p.db.QueryRow(ctx, `SELECT data FROM artifacts WHERE key = $1`, key).Scan(&data)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("load artifact %s: %w", key, err)
	}
	return data, nil
}

// Delete removes the object under key; missing keys are not an error.
func (p *Postgres) Delete(ctx context.Context, key string) error {
	if _, err := p.db.Exec(ctx, `DELETE FROM artifacts WHERE key = $1`, key); err != nil {
		return fmt.Errorf("delete artifact %s: %w", key, err)
	}
	return nil
}

// URL returns the API media URL for key.
func (p *Postgres) URL(key string) string {
	return MediaURL(p.mediaBaseURL, key)
}
