package settings

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/aura-events/ticketing/internal/models"
	"github.com/aura-events/ticketing/pkg/database"
)

// Repository handles the single-row registration gate and event settings tables.
type Repository struct {
	db database.DB
}

// NewRepository creates a settings repository.
func NewRepository(db database.DB) *Repository {
	return &Repository{db: db}
}

// GetGate returns the registration gate, creating it open on first read.
func (r *Repository) GetGate(ctx context.Context) (*models.Gate, error) {
	if _, err := r.db.Exec(ctx, `INSERT INTO registration_settings (id, is_open) VALUES (1, TRUE) ON CONFLICT (id) DO NOTHING`); err != nil {
		return nil, fmt.Errorf("ensure registration gate: %w", err)
	}
	var g models.Gate
	err := r.db.QueryRow(ctx, `SELECT is_open, updated_at FROM registration_settings WHERE id = 1`).Scan(&g.IsOpen, &g.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("load registration gate: %w", err)
	}
	return &g, nil
}

// SetGate stores an explicit open/closed value.
func (r *Repository) SetGate(ctx context.Context, open bool, at time.Time) (*models.Gate, error) {
	const q = `INSERT INTO registration_settings (id, is_open, updated_at) VALUES (1, $1, $2)
		ON CONFLICT (id) DO UPDATE SET is_open = EXCLUDED.is_open, updated_at = EXCLUDED.updated_at
		RETURNING is_open, updated_at`
	var g models.Gate
	if err := r.db.QueryRow(ctx, q, open, at).Scan(&g.IsOpen, &g.UpdatedAt); err != nil {
		return nil, fmt.Errorf("set registration gate: %w", err)
	}
	return &g, nil
}

// ToggleGate flips the gate in one statement. A missing row starts open, so its first flip closes it.
func (r *Repository) ToggleGate(ctx context.Context, at time.Time) (*models.Gate, error) {
	const q = `INSERT INTO registration_settings (id, is_open, updated_at) VALUES (1, FALSE, $1)
		ON CONFLICT (id) DO UPDATE SET is_open = NOT registration_settings.is_open, updated_at = EXCLUDED.updated_at
		RETURNING is_open, updated_at`
	var g models.Gate
	if err := r.db.QueryRow(ctx, q, at).Scan(&g.IsOpen, &g.UpdatedAt); err != nil {
		return nil, fmt.Errorf("toggle registration gate: %w", err)
	}
	return &g, nil
}

// GetEvent returns the event settings. An unset row yields zero values.
func (r *Repository) GetEvent(ctx context.Context) (*models.EventSettings, error) {
	const q = `SELECT event_name, event_description, venue, start_date, end_date, logo_url, updated_at
		FROM event_settings WHERE id = 1`
	var e models.EventSettings
	err := r.db.QueryRow(ctx, q).Scan(&e.EventName, &e.EventDescription, &e.Venue, &e.StartDate, &e.EndDate, &e.LogoURL, &e.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return &models.EventSettings{}, nil
		}
		return nil, fmt.Errorf("load event settings: %w", err)
	}
	return &e, nil
}

// SaveEvent upserts the event settings.
func (r *Repository) SaveEvent(ctx context.Context, e *models.EventSettings) error {
	const q = `INSERT INTO event_settings (id, event_name, event_description, venue, start_date, end_date, logo_url, updated_at)
		VALUES (1, $1, $2, $3, $4, $5, $6, NOW())
		ON CONFLICT (id) DO UPDATE SET event_name = EXCLUDED.event_name, event_description = EXCLUDED.event_description,
			venue = EXCLUDED.venue, start_date = EXCLUDED.start_date, end_date = EXCLUDED.end_date,
			logo_url = EXCLUDED.logo_url, updated_at = NOW()
		RETURNING updated_at`
	err := r.db.QueryRow(ctx, q, e.EventName, e.EventDescription, e.Venue, e.StartDate, e.EndDate, e.LogoURL).Scan(&e.UpdatedAt)
	if err != nil {
		return fmt.Errorf("save event settings: %w", err)
	}
	return nil
}

// SetLogo records the URL of an uploaded logo, keeping the other fields.
func (r *Repository) SetLogo(ctx context.Context, url string) error {
	const q = `INSERT INTO event_settings (id, logo_url) VALUES (1, $1)
		ON CONFLICT (id) DO UPDATE SET logo_url = EXCLUDED.logo_url, updated_at = NOW()`
	if _, err := r.db.Exec(ctx, q, url); err != nil {
		return fmt.Errorf("set event logo: %w", err)
	}
	return nil
}
