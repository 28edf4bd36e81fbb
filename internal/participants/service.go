package participants

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aura-events/ticketing/internal/metrics"
	"github.com/aura-events/ticketing/internal/models"
	"github.com/aura-events/ticketing/pkg/qrcode"
	"github.com/aura-events/ticketing/pkg/storage"
)

const maxTicketAttempts = 3

// Store is the participant persistence the registry needs.
type Store interface {
	Create(ctx context.Context, p *models.Participant) error
	GetByID(ctx context.Context, id int64) (*models.Participant, error)
	GetByTicket(ctx context.Context, ticket uuid.UUID) (*models.Participant, error)
	EmailTaken(ctx context.Context, email string, exceptID int64) (bool, error)
	List(ctx context.Context, f Filter) ([]*models.Participant, error)
	Update(ctx context.Context, p *models.Participant) error
	Delete(ctx context.Context, id int64) (*string, error)
	SetQRKey(ctx context.Context, id int64, key string) error
	MarkUsed(ctx context.Context, ticket uuid.UUID, at time.Time) (*models.Participant, bool, error)
}

// GateStore persists the registration gate.
type GateStore interface {
	GetGate(ctx context.Context) (*models.Gate, error)
	SetGate(ctx context.Context, open bool, at time.Time) (*models.Gate, error)
	ToggleGate(ctx context.Context, at time.Time) (*models.Gate, error)
}

// Codec renders QR payloads to PNG.
type Codec interface {
	Encode(payload string) ([]byte, error)
}

// Notifier schedules a ticket email for a participant.
type Notifier interface {
	Notify(ctx context.Context, p *models.Participant, emailType string) error
}

// Publisher receives door scans for the live check-in feed.
type Publisher interface {
	PublishCheckin(ctx context.Context, ev models.CheckinEvent) error
}

// Profile is the participant-editable part of a registration.
type Profile struct {
	FirstName    string `json:"first_name" validate:"required,max=150"`
	LastName     string `json:"last_name" validate:"max=150"`
	Email        string `json:"email" validate:"required,email,max=254"`
	Phone        string `json:"phone" validate:"max=30"`
	Organization string `json:"organization" validate:"max=200"`
	Position     string `json:"position" validate:"max=150"`
	Country      string `json:"country" validate:"max=100"`
	EventType    string `json:"event_type" validate:"max=100"`
}

// Filter narrows List.
type Filter struct {
	Used   *bool
	Search string
}

// RegistrationResult is the outcome of a successful Register. Advisories lists enrichment steps that failed.
type RegistrationResult struct {
	Participant *models.Participant
	QRPNG       []byte
	Advisories  []Advisory
}

// VerificationStatus is the outcome of a ticket check.
type VerificationStatus string

const (
	StatusValid       VerificationStatus = "valid"
	StatusAlreadyUsed VerificationStatus = "already_used"
	StatusNotFound    VerificationStatus = "not_found"
)

// VerificationResult is returned by Verify. Redeemed is true only when this call performed the redemption.
type VerificationResult struct {
	Status      VerificationStatus
	Participant *models.Participant
	Redeemed    bool
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Registry owns participant registration, ticket verification and the registration gate.
type Registry struct {
	store     Store
	gate      GateStore
	codec     Codec
	artifacts storage.Store
	notifier  Notifier
	publisher Publisher
	logger    *zap.Logger
	now       func() time.Time
	newTicket func() uuid.UUID
}

// NewRegistry creates a registry. artifacts and notifier may be nil.
func NewRegistry(store Store, gate GateStore, codec Codec, artifacts storage.Store, notifier Notifier, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		store:     store,
		gate:      gate,
		codec:     codec,
		artifacts: artifacts,
		notifier:  notifier,
		logger:    logger,
		now:       time.Now,
		newTicket: uuid.New,
	}
}

// SetPublisher attaches the check-in feed.
func (r *Registry) SetPublisher(p Publisher) {
	r.publisher = p
}

// SetClock replaces the time source.
func (r *Registry) SetClock(now func() time.Time) {
	r.now = now
}

func normalize(p Profile) Profile {
	return Profile{
		FirstName:    strings.TrimSpace(p.FirstName),
		LastName:     strings.TrimSpace(p.LastName),
		Email:        strings.ToLower(strings.TrimSpace(p.Email)),
		Phone:        strings.TrimSpace(p.Phone),
		Organization: strings.TrimSpace(p.Organization),
		Position:     strings.TrimSpace(p.Position),
		Country:      strings.TrimSpace(p.Country),
		EventType:    strings.TrimSpace(p.EventType),
	}
}

func validateProfile(p Profile) error {
	err := validate.Struct(p)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validate profile: %w", err)
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			fields[fe.Field()] = "This field is required."
		case "email":
			fields[fe.Field()] = "Enter a valid email address."
		case "max":
			fields[fe.Field()] = fmt.Sprintf("Ensure this field has no more than %s characters.", fe.Param())
		default:
			fields[fe.Field()] = "Invalid value."
		}
	}
	return &ValidationError{Fields: fields}
}

func applyProfile(dst *models.Participant, p Profile) {
	dst.FirstName = p.FirstName
	dst.LastName = p.LastName
	dst.Email = p.Email
	dst.Phone = p.Phone
	dst.Organization = p.Organization
	dst.Position = p.Position
	dst.Country = p.Country
	dst.EventType = p.EventType
}

// Register creates a participant if the gate is open and the email is unused, then issues the
// QR artifact and schedules the invitation email. Only the insert can fail the call.
func (r *Registry) Register(ctx context.Context, in Profile) (*RegistrationResult, error) {
	prof := normalize(in)
	if err := validateProfile(prof); err != nil {
		metrics.Registration("invalid")
		return nil, err
	}

	gate, err := r.gate.GetGate(ctx)
	if err != nil {
		metrics.Registration("error")
		return nil, fmt.Errorf("read registration gate: %w", err)
	}
	if !gate.IsOpen {
		metrics.Registration("closed")
		return nil, ErrRegistrationClosed
	}

	taken, err := r.store.EmailTaken(ctx, prof.Email, 0)
	if err != nil {
		metrics.Registration("error")
		return nil, err
	}
	if taken {
		metrics.Registration("duplicate")
		return nil, ErrDuplicateEmail
	}

	p := &models.Participant{}
	applyProfile(p, prof)
	for attempt := 1; ; attempt++ {
		p.TicketUUID = r.newTicket()
		p.CreatedAt = r.now().UTC()
		err = r.store.Create(ctx, p)
		if !errors.Is(err, ErrTicketCollision) || attempt == maxTicketAttempts {
			break
		}
		r.logger.Warn("ticket identifier collision, regenerating", zap.Int("attempt", attempt))
	}
	if err != nil {
		if errors.Is(err, ErrDuplicateEmail) {
			metrics.Registration("duplicate")
		} else {
			metrics.Registration("error")
		}
		return nil, err
	}
	metrics.Registration("created")

	res := &RegistrationResult{Participant: p}
	res.QRPNG, res.Advisories = r.issueQR(ctx, p)
	if adv := r.notify(ctx, p, models.EmailTypeInvitation); adv != nil {
		res.Advisories = append(res.Advisories, *adv)
	}
	return res, nil
}

// issueQR renders the ticket QR and stores it. Failures are returned as advisories.
func (r *Registry) issueQR(ctx context.Context, p *models.Participant) ([]byte, []Advisory) {
	png, err := r.codec.Encode(qrcode.Payload(p.TicketUUID))
	if err != nil {
		return nil, []Advisory{r.advise(StageCodec, p, err)}
	}
	if r.artifacts == nil {
		return png, nil
	}
	key := storage.QRKey(p.TicketUUID.String())
	if err := r.artifacts.Put(ctx, key, "image/png", png); err != nil {
		return png, []Advisory{r.advise(StageArtifact, p, err)}
	}
	if err := r.store.SetQRKey(ctx, p.ID, key); err != nil {
		return png, []Advisory{r.advise(StageArtifact, p, err)}
	}
	p.QRKey = &key
	return png, nil
}

func (r *Registry) notify(ctx context.Context, p *models.Participant, emailType string) *Advisory {
	if r.notifier == nil {
		return nil
	}
	if err := r.notifier.Notify(ctx, p, emailType); err != nil {
		adv := r.advise(StageNotification, p, err)
		return &adv
	}
	return nil
}

func (r *Registry) advise(stage string, p *models.Participant, err error) Advisory {
	metrics.Advisory(stage)
	r.logger.Warn("registration enrichment failed",
		zap.String("stage", stage),
		zap.Int64("participant_id", p.ID),
		zap.String("ticket_uuid", p.TicketUUID.String()),
		zap.Error(err),
	)
	return Advisory{Stage: stage, Err: err}
}

// Verify checks a ticket given as a bare UUID or a "ticket:<uuid>" QR payload. With markUsed it
// redeems an unused ticket; of several concurrent callers exactly one sees StatusValid.
func (r *Registry) Verify(ctx context.Context, ticket string, markUsed bool) (*VerificationResult, error) {
	if strings.TrimSpace(ticket) == "" {
		return nil, ErrTicketRequired
	}
	id, err := qrcode.ParsePayload(ticket)
	if err != nil {
		metrics.Verification(string(StatusNotFound), false)
		return &VerificationResult{Status: StatusNotFound}, nil
	}

	p, err := r.store.GetByTicket(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			metrics.Verification(string(StatusNotFound), false)
			return &VerificationResult{Status: StatusNotFound}, nil
		}
		return nil, err
	}

	var res *VerificationResult
	switch {
	case p.Used:
		res = &VerificationResult{Status: StatusAlreadyUsed, Participant: p}
	case !markUsed:
		res = &VerificationResult{Status: StatusValid, Participant: p}
	default:
		updated, won, err := r.store.MarkUsed(ctx, id, r.now().UTC())
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				metrics.Verification(string(StatusNotFound), false)
				return &VerificationResult{Status: StatusNotFound}, nil
			}
			return nil, err
		}
		if won {
			res = &VerificationResult{Status: StatusValid, Participant: updated, Redeemed: true}
		} else {
			res = &VerificationResult{Status: StatusAlreadyUsed, Participant: updated}
		}
	}

	metrics.Verification(string(res.Status), res.Redeemed)
	if markUsed {
		r.publishScan(ctx, res)
	}
	return res, nil
}

func (r *Registry) publishScan(ctx context.Context, res *VerificationResult) {
	if r.publisher == nil || res.Participant == nil {
		return
	}
	outcome := models.CheckinRejected
	if res.Redeemed {
		outcome = models.CheckinAdmitted
	}
	ev := models.CheckinEvent{
		Outcome:    outcome,
		TicketUUID: res.Participant.TicketUUID,
		FullName:   res.Participant.FullName(),
		Email:      res.Participant.Email,
		UsedAt:     res.Participant.UsedAt,
		ScannedAt:  r.now().UTC(),
	}
	if err := r.publisher.PublishCheckin(ctx, ev); err != nil {
		r.logger.Warn("publish check-in", zap.String("ticket_uuid", ev.TicketUUID.String()), zap.Error(err))
	}
}

// ToggleRegistration sets the gate to *explicit, or flips it when explicit is nil.
func (r *Registry) ToggleRegistration(ctx context.Context, explicit *bool) (*models.Gate, error) {
	at := r.now().UTC()
	var (
		g   *models.Gate
		err error
	)
	if explicit != nil {
		g, err = r.gate.SetGate(ctx, *explicit, at)
	} else {
		g, err = r.gate.ToggleGate(ctx, at)
	}
	if err != nil {
		return nil, err
	}
	r.logger.Info("registration gate changed", zap.Bool("is_open", g.IsOpen), zap.Bool("explicit", explicit != nil))
	return g, nil
}

// GateState returns the current gate.
func (r *Registry) GateState(ctx context.Context) (*models.Gate, error) {
	return r.gate.GetGate(ctx)
}

// List returns participants newest first.
func (r *Registry) List(ctx context.Context, f Filter) ([]*models.Participant, error) {
	return r.store.List(ctx, f)
}

// Get returns a participant by id.
func (r *Registry) Get(ctx context.Context, id int64) (*models.Participant, error) {
	return r.store.GetByID(ctx, id)
}

// Update edits the profile of an existing participant and schedules a participant_update email.
func (r *Registry) Update(ctx context.Context, id int64, in Profile) (*models.Participant, []Advisory, error) {
	prof := normalize(in)
	if err := validateProfile(prof); err != nil {
		return nil, nil, err
	}
	p, err := r.store.GetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if prof.Email != p.Email {
		taken, err := r.store.EmailTaken(ctx, prof.Email, id)
		if err != nil {
			return nil, nil, err
		}
		if taken {
			return nil, nil, ErrDuplicateEmail
		}
	}
	applyProfile(p, prof)
	p.UpdatedAt = r.now().UTC()
	if err := r.store.Update(ctx, p); err != nil {
		return nil, nil, err
	}
	var advisories []Advisory
	if adv := r.notify(ctx, p, models.EmailTypeParticipantUpdate); adv != nil {
		advisories = append(advisories, *adv)
	}
	return p, advisories, nil
}

// Delete removes a participant and, best effort, its QR artifact.
func (r *Registry) Delete(ctx context.Context, id int64) error {
	key, err := r.store.Delete(ctx, id)
	if err != nil {
		return err
	}
	if key != nil && r.artifacts != nil {
		if err := r.artifacts.Delete(ctx, *key); err != nil {
			metrics.Advisory(StageArtifact)
			r.logger.Warn("delete qr artifact", zap.Int64("participant_id", id), zap.String("key", *key), zap.Error(err))
		}
	}
	return nil
}

// Resend schedules the invitation email again.
func (r *Registry) Resend(ctx context.Context, id int64) (*models.Participant, error) {
	if r.notifier == nil {
		return nil, ErrNotifierDisabled
	}
	p, err := r.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := r.notifier.Notify(ctx, p, models.EmailTypeInvitation); err != nil {
		return nil, fmt.Errorf("schedule invitation: %w", err)
	}
	return p, nil
}

// QRImage returns the participant's QR PNG, from the artifact store when possible and otherwise
// freshly rendered. A missing artifact is stored again.
func (r *Registry) QRImage(ctx context.Context, p *models.Participant) ([]byte, error) {
	if p.QRKey != nil && r.artifacts != nil {
		png, err := r.artifacts.Get(ctx, *p.QRKey)
		if err == nil {
			return png, nil
		}
		if !errors.Is(err, storage.ErrNotFound) {
			r.logger.Warn("load qr artifact", zap.String("key", *p.QRKey), zap.Error(err))
		}
	}
	png, advisories := r.issueQR(ctx, p)
	if png == nil && len(advisories) > 0 {
		return nil, advisories[0].Err
	}
	return png, nil
}

// QRURL returns the public URL of the participant's stored QR image, or nil.
func (r *Registry) QRURL(p *models.Participant) *string {
	if p.QRKey == nil || r.artifacts == nil {
		return nil
	}
	u := r.artifacts.URL(*p.QRKey)
	return &u
}
