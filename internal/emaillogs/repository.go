package emaillogs

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/aura-events/ticketing/internal/models"
	"github.com/aura-events/ticketing/pkg/database"
)

// Repository handles email_logs persistence.
type Repository struct {
	db database.DB
}

// NewRepository creates an email logs repository.
func NewRepository(db database.DB) *Repository {
	return &Repository{db: db}
}

// Create records a pending delivery attempt and fills ID and CreatedAt.
func (r *Repository) Create(ctx context.Context, el *models.EmailLog) error {
	const q = `INSERT INTO email_logs (participant_id, email_type, recipient_email, subject, status, attempt, fallback)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6, $7)
		RETURNING id, created_at`
	if el.Status == "" {
		el.Status = models.EmailLogStatusPending
	}
	err := r.db.QueryRow(ctx, q, el.ParticipantID, el.EmailType, el.RecipientEmail, el.Subject, el.Status, el.Attempt, el.Fallback).
		Scan(&el.ID, &el.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert email log: %w", err)
	}
	return nil
}

// MarkSent marks a log row as delivered.
func (r *Repository) MarkSent(ctx context.Context, id uuid.UUID, fallback bool) error {
	const q = `UPDATE email_logs SET status = $2, fallback = $3, sent_at = NOW(), error_message = NULL WHERE id = $1`
	if _, err := r.db.Exec(ctx, q, id, models.EmailLogStatusSent, fallback); err != nil {
		return fmt.Errorf("mark email log sent: %w", err)
	}
	return nil
}

// MarkFailed marks a log row as failed with the delivery error.
func (r *Repository) MarkFailed(ctx context.Context, id uuid.UUID, errMsg string) error {
	const q = `UPDATE email_logs SET status = $2, error_message = $3 WHERE id = $1`
	if _, err := r.db.Exec(ctx, q, id, models.EmailLogStatusFailed, errMsg); err != nil {
		return fmt.Errorf("mark email log failed: %w", err)
	}
	return nil
}

// ListByParticipant returns email logs for a participant, newest first.
func (r *Repository) ListByParticipant(ctx context.Context, participantID int64) ([]*models.EmailLog, error) {
	const q = `SELECT id, participant_id, email_type, recipient_email, subject, status, attempt, fallback, sent_at, error_message, created_at
		FROM email_logs
		WHERE participant_id = $1
		ORDER BY created_at DESC`
	rows, err := r.db.Query(ctx, q, participantID)
	if err != nil {
		return nil, fmt.Errorf("list email logs: %w", err)
	}
	defer rows.Close()
	list := []*models.EmailLog{}
	for rows.Next() {
		var el models.EmailLog
		var subject, errMsg *string
		if err := rows.Scan(&el.ID, &el.ParticipantID, &el.EmailType, &el.RecipientEmail, &subject, &el.Status,
			&el.Attempt, &el.Fallback, &el.SentAt, &errMsg, &el.CreatedAt); err != nil {
			return nil, err
		}
		if subject != nil {
			el.Subject = *subject
		}
		if errMsg != nil {
			el.ErrorMessage = *errMsg
		}
		list = append(list, &el)
	}
	return list, rows.Err()
}
