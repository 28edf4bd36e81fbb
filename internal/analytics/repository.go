package analytics

import (
	"context"
	"fmt"

	"github.com/aura-events/ticketing/pkg/database"
)

// Counts is the raw attendance and email tally.
type Counts struct {
	Registrations int
	CheckedIn     int
	EmailsSent    int
	EmailsFailed  int
}

// Repository aggregates participants and email logs.
type Repository struct {
	db database.DB
}

// NewRepository creates an analytics repository.
func NewRepository(db database.DB) *Repository {
	return &Repository{db: db}
}

// Counts tallies registrations, redeemed tickets and final email outcomes.
func (r *Repository) Counts(ctx context.Context) (Counts, error) {
	var out Counts
	const q = `SELECT
		(SELECT COUNT(*) FROM participants),
		(SELECT COUNT(*) FROM participants WHERE used),
		(SELECT COUNT(*) FROM email_logs WHERE status = 'sent'),
		(SELECT COUNT(*) FROM email_logs WHERE status = 'failed')`
	if err := r.db.QueryRow(ctx, q).Scan(&out.Registrations, &out.CheckedIn, &out.EmailsSent, &out.EmailsFailed); err != nil {
		return Counts{}, fmt.Errorf("analytics counts: %w", err)
	}
	return out, nil
}
