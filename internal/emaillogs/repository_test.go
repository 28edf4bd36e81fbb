package emaillogs

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v3"

	"github.com/aura-events/ticketing/internal/models"
)

func TestEmailLogLifecycle(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()
	repo := NewRepository(mock)
	ctx := context.Background()
	pid := int64(9)
	id := uuid.New()
	now := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)

	el := &models.EmailLog{ParticipantID: &pid, EmailType: models.EmailTypeInvitation, RecipientEmail: "ada@example.com", Subject: "Your ticket", Attempt: 1}
	mock.ExpectQuery("INSERT INTO email_logs").
		WithArgs(&pid, models.EmailTypeInvitation, "ada@example.com", "Your ticket", models.EmailLogStatusPending, 1, false).
		WillReturnRows(pgxmock.NewRows([]string{"id", "created_at"}).AddRow(id, now))
	if err := repo.Create(ctx, el); err != nil {
		t.Fatalf("create: %v", err)
	}
	if el.ID != id || el.Status != models.EmailLogStatusPending {
		t.Fatalf("unexpected log %+v", el)
	}

	mock.ExpectExec("UPDATE email_logs SET status").
		WithArgs(id, models.EmailLogStatusSent, true).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	if err := repo.MarkSent(ctx, id, true); err != nil {
		t.Fatalf("mark sent: %v", err)
	}

	subject := "Your ticket"
	mock.ExpectQuery("FROM email_logs").
		WithArgs(pid).
		WillReturnRows(pgxmock.NewRows([]string{"id", "participant_id", "email_type", "recipient_email", "subject", "status",
			"attempt", "fallback", "sent_at", "error_message", "created_at"}).
			AddRow(id, &pid, models.EmailTypeInvitation, "ada@example.com", &subject, models.EmailLogStatusSent,
				1, true, &now, (*string)(nil), now))
	logs, err := repo.ListByParticipant(ctx, pid)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(logs) != 1 || logs[0].Subject != "Your ticket" || logs[0].ErrorMessage != "" || !logs[0].Fallback {
		t.Fatalf("unexpected logs %+v", logs)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
