package participants

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/aura-events/ticketing/internal/models"
	"github.com/aura-events/ticketing/pkg/database"
)

const participantColumns = `id, ticket_uuid::text, first_name, last_name, email, phone, organization, position, country, event_type,
	qr_key, used, used_at, created_at, updated_at`

// Repository handles participant persistence.
type Repository struct {
	db database.DB
}

// NewRepository creates a participant repository.
func NewRepository(db database.DB) *Repository {
	return &Repository{db: db}
}

func scanParticipant(row pgx.Row) (*models.Participant, error) {
	var p models.Participant
	var ticket string
	err := row.Scan(&p.ID, &ticket, &p.FirstName, &p.LastName, &p.Email, &p.Phone, &p.Organization, &p.Position,
		&p.Country, &p.EventType, &p.QRKey, &p.Used, &p.UsedAt, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if p.TicketUUID, err = uuid.Parse(ticket); err != nil {
		return nil, fmt.Errorf("parse ticket uuid %q: %w", ticket, err)
	}
	return &p, nil
}

// mapWriteError translates unique violations into domain errors.
func mapWriteError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == database.UniqueViolation {
		switch pgErr.ConstraintName {
		case "participants_email_key":
			return ErrDuplicateEmail
		case "participants_ticket_uuid_key":
			return ErrTicketCollision
		}
	}
	return err
}

// Create inserts p and fills its ID.
func (r *Repository) Create(ctx context.Context, p *models.Participant) error {
	const q = `INSERT INTO participants (ticket_uuid, first_name, last_name, email, phone, organization, position, country, event_type, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10)
		RETURNING id`
	err := r.db.QueryRow(ctx, q, p.TicketUUID.String(), p.FirstName, p.LastName, p.Email, p.Phone, p.Organization,
		p.Position, p.Country, p.EventType, p.CreatedAt).Scan(&p.ID)
	if err != nil {
		if mapped := mapWriteError(err); mapped != err {
			return mapped
		}
		return fmt.Errorf("insert participant: %w", err)
	}
	p.UpdatedAt = p.CreatedAt
	return nil
}

// GetByID returns a participant by row id.
func (r *Repository) GetByID(ctx context.Context, id int64) (*models.Participant, error) {
	p, err := scanParticipant(r.db.QueryRow(ctx, `SELECT `+participantColumns+` FROM participants WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get participant %d: %w", id, err)
	}
	return p, nil
}

// GetByTicket returns a participant by ticket identifier.
func (r *Repository) GetByTicket(ctx context.Context, ticket uuid.UUID) (*models.Participant, error) {
	p, err := scanParticipant(r.db.QueryRow(ctx, `SELECT `+participantColumns+` FROM participants WHERE ticket_uuid = $1`, ticket.String()))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get participant by ticket: %w", err)
	}
	return p, nil
}

// EmailTaken reports whether another participant (other than exceptID) uses email.
func (r *Repository) EmailTaken(ctx context.Context, email string, exceptID int64) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM participants WHERE email = $1 AND id <> $2)`, email, exceptID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check participant email: %w", err)
	}
	return exists, nil
}

// List returns participants newest first, narrowed by f.
func (r *Repository) List(ctx context.Context, f Filter) ([]*models.Participant, error) {
	var where []string
	var args []any
	if f.Used != nil {
		args = append(args, *f.Used)
		where = append(where, fmt.Sprintf("used = $%d", len(args)))
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		args = append(args, "%"+s+"%")
		n := len(args)
		where = append(where, fmt.Sprintf("(first_name ILIKE $%d OR last_name ILIKE $%d OR email ILIKE $%d OR ticket_uuid::text ILIKE $%d)", n, n, n, n))
	}
	q := `SELECT ` + participantColumns + ` FROM participants`
	if len(where) > 0 {
		q += ` WHERE ` + strings.Join(where, " AND ")
	}
	q += ` ORDER BY created_at DESC, id DESC`

	rows, err := r.db.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list participants: %w", err)
	}
	defer rows.Close()
	list := []*models.Participant{}
	for rows.Next() {
		p, err := scanParticipant(rows)
		if err != nil {
			return nil, fmt.Errorf("scan participant: %w", err)
		}
		list = append(list, p)
	}
	return list, rows.Err()
}

// Update writes the profile fields of p. Ticket and redemption state are never touched.
func (r *Repository) Update(ctx context.Context, p *models.Participant) error {
	const q = `UPDATE participants SET first_name = $2, last_name = $3, email = $4, phone = $5, organization = $6,
		position = $7, country = $8, event_type = $9, updated_at = $10
		WHERE id = $1`
	tag, err := r.db.Exec(ctx, q, p.ID, p.FirstName, p.LastName, p.Email, p.Phone, p.Organization, p.Position,
		p.Country, p.EventType, p.UpdatedAt)
	if err != nil {
		if mapped := mapWriteError(err); mapped != err {
			return mapped
		}
		return fmt.Errorf("update participant %d: %w", p.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a participant and returns its QR artifact key, if any.
func (r *Repository) Delete(ctx context.Context, id int64) (*string, error) {
	var key *string
	err := r.db.QueryRow(ctx, `DELETE FROM participants WHERE id = $1 RETURNING qr_key`, id).Scan(&key)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("delete participant %d: %w", id, err)
	}
	return key, nil
}

// SetQRKey records where the participant's QR image is stored.
func (r *Repository) SetQRKey(ctx context.Context, id int64, key string) error {
	if _, err := r.db.Exec(ctx, `UPDATE participants SET qr_key = $2 WHERE id = $1`, id, key); err != nil {
		return fmt.Errorf("set qr key for participant %d: %w", id, err)
	}
	return nil
}

// MarkUsed redeems the ticket if it is still unused. The second return value is true only for
// the caller whose update changed the row; everyone else gets the already-redeemed record.
func (r *Repository) MarkUsed(ctx context.Context, ticket uuid.UUID, at time.Time) (*models.Participant, bool, error) {
	q := `UPDATE participants SET used = TRUE, used_at = GREATEST($2, created_at)
		WHERE ticket_uuid = $1 AND used = FALSE
		RETURNING ` + participantColumns
	p, err := scanParticipant(r.db.QueryRow(ctx, q, ticket.String(), at))
	if err == nil {
		return p, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, fmt.Errorf("redeem ticket: %w", err)
	}
	p, err = r.GetByTicket(ctx, ticket)
	if err != nil {
		return nil, false, err
	}
	return p, false, nil
}
