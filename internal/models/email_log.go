package models

import (
	"time"

	"github.com/google/uuid"
)

// EmailType for ticket notifications.
const (
	EmailTypeInvitation        = "invitation"
	EmailTypeParticipantUpdate = "participant_update"
)

// EmailLogStatus for delivery.
const (
	EmailLogStatusPending = "pending"
	EmailLogStatusSent    = "sent"
	EmailLogStatusFailed  = "failed"
)

// EmailLog records one delivery attempt of a ticket email.
type EmailLog struct {
	ID             uuid.UUID  `json:"id"`
	ParticipantID  *int64     `json:"participant_id,omitempty"`
	EmailType      string     `json:"email_type"`
	RecipientEmail string     `json:"recipient_email"`
	Subject        string     `json:"subject,omitempty"`
	Status         string     `json:"status"`
	Attempt        int        `json:"attempt"`
	Fallback       bool       `json:"fallback"`
	SentAt         *time.Time `json:"sent_at,omitempty"`
	ErrorMessage   string     `json:"error_message,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}
