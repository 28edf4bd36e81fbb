package models

import "time"

// Gate is the single registration open/closed flag.
type Gate struct {
	IsOpen    bool      `json:"is_open"`
	UpdatedAt time.Time `json:"updated_at"`
}

// EventSettings holds the event metadata rendered into ticket emails.
type EventSettings struct {
	EventName        string     `json:"event_name"`
	EventDescription string     `json:"event_description"`
	Venue            string     `json:"venue"`
	StartDate        *time.Time `json:"start_date"`
	EndDate          *time.Time `json:"end_date"`
	LogoURL          string     `json:"logo_url"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// DisplayName returns the event name, or fallback when unset.
func (e EventSettings) DisplayName(fallback string) string {
	if e.EventName != "" {
		return e.EventName
	}
	return fallback
}
