package participants

import (
	"errors"
	"sort"
	"strings"
)

var (
	ErrRegistrationClosed = errors.New("registrations are closed")
	ErrDuplicateEmail     = errors.New("participant with this email already exists")
	ErrNotFound           = errors.New("participant not found")
	ErrTicketRequired     = errors.New("ticket_uuid required")
	ErrInvalidProfile     = errors.New("invalid participant profile")
	ErrTicketCollision    = errors.New("ticket identifier collision")
	ErrNotifierDisabled   = errors.New("email delivery is not configured")
)

// ValidationError lists per-field problems with a submitted profile.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "invalid participant profile: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error { return ErrInvalidProfile }

// Advisory stages.
const (
	StageCodec        = "codec"
	StageArtifact     = "artifact"
	StageNotification = "notification"
)

// Advisory is an enrichment failure that did not fail the operation it belongs to.
type Advisory struct {
	Stage string
	Err   error
}

func (a Advisory) Error() string { return a.Stage + ": " + a.Err.Error() }
