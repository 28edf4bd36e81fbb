package realtime

import (
	"context"

	"github.com/aura-events/ticketing/internal/models"
)

// Feed publishes door scans to the check-in room.
type Feed struct {
	hub *Hub
}

// NewFeed creates a check-in feed over hub.
func NewFeed(hub *Hub) *Feed {
	return &Feed{hub: hub}
}

// PublishCheckin sends ev to every connected scanner.
func (f *Feed) PublishCheckin(ctx context.Context, ev models.CheckinEvent) error {
	return f.hub.Publish(ctx, RoomCheckins, EventCheckin, ev)
}
