package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Participant is a registered attendee and the holder of exactly one ticket.
type Participant struct {
	ID           int64      `json:"id"`
	TicketUUID   uuid.UUID  `json:"ticket_uuid"`
	FirstName    string     `json:"first_name"`
	LastName     string     `json:"last_name"`
	Email        string     `json:"email"`
	Phone        string     `json:"phone"`
	Organization string     `json:"organization"`
	Position     string     `json:"position"`
	Country      string     `json:"country"`
	EventType    string     `json:"event_type"`
	QRKey        *string    `json:"-"`
	Used         bool       `json:"used"`
	UsedAt       *time.Time `json:"used_at"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// FullName joins first and last name.
func (p *Participant) FullName() string {
	return strings.TrimSpace(p.FirstName + " " + p.LastName)
}

// ParticipantView is a Participant with its QR artifact references for API responses.
type ParticipantView struct {
	Participant
	QRBase64 *string `json:"qr_base64"`
	QRURL    *string `json:"qr_url"`
}
