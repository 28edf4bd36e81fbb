package notify

import (
	"context"

	"github.com/aura-events/ticketing/internal/models"
	"github.com/aura-events/ticketing/pkg/queue"
)

// Enqueuer accepts email jobs.
type Enqueuer interface {
	EnqueueEmail(ctx context.Context, payload queue.EmailPayload) error
}

// QueueNotifier schedules ticket emails on the job queue for the email worker.
type QueueNotifier struct {
	queue Enqueuer
}

// NewQueueNotifier creates a notifier backed by q.
func NewQueueNotifier(q Enqueuer) *QueueNotifier {
	return &QueueNotifier{queue: q}
}

// Notify enqueues an email of emailType for p.
func (n *QueueNotifier) Notify(ctx context.Context, p *models.Participant, emailType string) error {
	return n.queue.EnqueueEmail(ctx, queue.EmailPayload{
		EmailType:      emailType,
		ParticipantID:  p.ID,
		RecipientEmail: p.Email,
	})
}
