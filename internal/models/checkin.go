package models

import (
	"time"

	"github.com/google/uuid"
)

// Check-in outcomes broadcast on the live feed.
const (
	CheckinAdmitted = "admitted"
	CheckinRejected = "already_used"
)

// CheckinEvent is published whenever a ticket is scanned at the door.
type CheckinEvent struct {
	Outcome    string     `json:"outcome"`
	TicketUUID uuid.UUID  `json:"ticket_uuid"`
	FullName   string     `json:"full_name"`
	Email      string     `json:"email"`
	UsedAt     *time.Time `json:"used_at,omitempty"`
	ScannedAt  time.Time  `json:"scanned_at"`
}
