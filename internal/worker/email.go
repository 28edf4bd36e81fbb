package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aura-events/ticketing/internal/metrics"
	"github.com/aura-events/ticketing/internal/models"
	"github.com/aura-events/ticketing/internal/notify"
	"github.com/aura-events/ticketing/internal/participants"
	"github.com/aura-events/ticketing/pkg/queue"
)

// JobQueue is the queue surface the worker consumes.
type JobQueue interface {
	Dequeue(ctx context.Context, timeout time.Duration) (*queue.Job, error)
	Retry(ctx context.Context, job *queue.Job) error
}

// Tickets loads participants and their QR images.
type Tickets interface {
	Get(ctx context.Context, id int64) (*models.Participant, error)
	QRImage(ctx context.Context, p *models.Participant) ([]byte, error)
}

// EventSource loads the event settings rendered into emails.
type EventSource interface {
	GetEvent(ctx context.Context) (*models.EventSettings, error)
}

// EmailLogs records delivery attempts.
type EmailLogs interface {
	Create(ctx context.Context, el *models.EmailLog) error
	MarkSent(ctx context.Context, id uuid.UUID, fallback bool) error
	MarkFailed(ctx context.Context, id uuid.UUID, errMsg string) error
}

// Mailer delivers rendered messages.
type Mailer interface {
	Send(ctx context.Context, m notify.Message) notify.Outcome
}

// EmailProcessor renders and sends ticket emails taken from the job queue.
type EmailProcessor struct {
	queue    JobQueue
	tickets  Tickets
	events   EventSource
	logs     EmailLogs
	renderer *notify.Renderer
	mailer   Mailer
	logger   *zap.Logger
	backoff  time.Duration
	poll     time.Duration
}

// NewEmailProcessor creates an email processor.
func NewEmailProcessor(q JobQueue, tickets Tickets, events EventSource, logs EmailLogs, renderer *notify.Renderer, mailer Mailer, logger *zap.Logger) *EmailProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EmailProcessor{
		queue:    q,
		tickets:  tickets,
		events:   events,
		logs:     logs,
		renderer: renderer,
		mailer:   mailer,
		logger:   logger,
		backoff:  queue.RetryBackoff,
		poll:     5 * time.Second,
	}
}

// Process executes one email job. A returned error means the job should be retried.
func (p *EmailProcessor) Process(ctx context.Context, job *queue.Job) error {
	if job.Type != queue.JobTypeEmail {
		p.logger.Warn("dropping job of unknown type", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
		return nil
	}
	var payload queue.EmailPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		p.logger.Warn("dropping malformed email job", zap.String("job_id", job.ID), zap.Error(err))
		return nil
	}

	participant, err := p.tickets.Get(ctx, payload.ParticipantID)
	if err != nil {
		if errors.Is(err, participants.ErrNotFound) {
			p.logger.Info("participant gone, skipping email", zap.Int64("participant_id", payload.ParticipantID))
			return nil
		}
		return fmt.Errorf("load participant: %w", err)
	}

	png, err := p.tickets.QRImage(ctx, participant)
	if err != nil {
		p.logger.Warn("sending email without qr image", zap.Int64("participant_id", participant.ID), zap.Error(err))
	}
	event := models.EventSettings{}
	if e, err := p.events.GetEvent(ctx); err != nil {
		p.logger.Warn("event settings unavailable", zap.Error(err))
	} else {
		event = *e
	}

	msg, err := p.renderer.Render(payload.EmailType, participant, event, png)
	if err != nil {
		p.logger.Warn("email template failed, using fallback", zap.String("email_type", payload.EmailType), zap.Error(err))
	}

	entry := &models.EmailLog{
		ParticipantID:  &participant.ID,
		EmailType:      payload.EmailType,
		RecipientEmail: participant.Email,
		Subject:        msg.Subject,
		Attempt:        job.Attempt + 1,
		Fallback:       msg.Fallback,
	}
	if err := p.logs.Create(ctx, entry); err != nil {
		return fmt.Errorf("record email log: %w", err)
	}

	out := p.mailer.Send(ctx, msg)
	if !out.Sent {
		metrics.Email(payload.EmailType, models.EmailLogStatusFailed)
		if out.Err == nil {
			out.Err = errors.New("email not sent")
		}
		if err := p.logs.MarkFailed(ctx, entry.ID, out.Err.Error()); err != nil {
			p.logger.Error("mark email log failed", zap.Error(err))
		}
		return out.Err
	}
	metrics.Email(payload.EmailType, models.EmailLogStatusSent)
	if err := p.logs.MarkSent(ctx, entry.ID, out.Fallback); err != nil {
		p.logger.Error("mark email log sent", zap.Error(err))
	}
	return nil
}

// Run starts the worker loop: dequeue, process, retry on error.
func (p *EmailProcessor) Run(ctx context.Context) {
	p.logger.Info("email worker started")
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("email worker stopping")
			return
		default:
		}

		job, err := p.queue.Dequeue(ctx, p.poll)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			p.logger.Warn("dequeue error", zap.Error(err))
			p.sleep(ctx)
			continue
		}
		if job == nil {
			continue
		}

		p.logger.Debug("processing job", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
		if err := p.Process(ctx, job); err != nil {
			p.logger.Error("job failed", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt), zap.Error(err))
			if reErr := p.queue.Retry(ctx, job); reErr != nil {
				p.logger.Error("retry enqueue failed", zap.Error(reErr))
			}
			p.sleep(ctx)
		}
	}
}

func (p *EmailProcessor) sleep(ctx context.Context) {
	t := time.NewTimer(p.backoff)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
