package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/wneessen/go-mail"
	"go.uber.org/zap"
)

// Transport delivers built messages. *mail.Client satisfies it.
type Transport interface {
	DialAndSendWithContext(ctx context.Context, messages ...*mail.Msg) error
}

// SMTPConfig configures the SMTP transport.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	Timeout  time.Duration
}

// NewSMTPTransport creates a go-mail client. An empty host yields a DryRun transport that only logs.
func NewSMTPTransport(cfg SMTPConfig, logger *zap.Logger) (Transport, error) {
	if cfg.Host == "" {
		return &DryRun{logger: logger}, nil
	}
	opts := []mail.Option{
		mail.WithPort(cfg.Port),
		mail.WithTLSPolicy(mail.TLSOpportunistic),
	}
	if cfg.Timeout > 0 {
		opts = append(opts, mail.WithTimeout(cfg.Timeout))
	}
	if cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.Username),
			mail.WithPassword(cfg.Password),
		)
	}
	client, err := mail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("create smtp client: %w", err)
	}
	return client, nil
}

// DryRun logs messages instead of sending them.
type DryRun struct {
	logger *zap.Logger
}

// DialAndSendWithContext implements Transport.
func (d *DryRun) DialAndSendWithContext(_ context.Context, messages ...*mail.Msg) error {
	logger := d.logger
	if logger == nil {
		logger = zap.NewNop()
	}
	for _, m := range messages {
		to, _ := m.GetRecipients()
		logger.Info("email not sent (no SMTP host configured)",
			zap.Strings("to", to),
			zap.Strings("subject", m.GetGenHeader(mail.HeaderSubject)),
		)
	}
	return nil
}

// Outcome reports what happened to one message. Send never returns an error; Err carries it.
type Outcome struct {
	Sent     bool
	Fallback bool
	Err      error
}

// Sender builds MIME messages and hands them to a Transport.
type Sender struct {
	transport Transport
	from      string
	fromName  string
	logger    *zap.Logger
}

// NewSender creates a sender.
func NewSender(transport Transport, from, fromName string, logger *zap.Logger) *Sender {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sender{transport: transport, from: from, fromName: fromName, logger: logger}
}

func (s *Sender) build(m Message) (*mail.Msg, error) {
	msg := mail.NewMsg()
	if err := msg.FromFormat(s.fromName, s.from); err != nil {
		return nil, fmt.Errorf("from address: %w", err)
	}
	if err := msg.AddToFormat(m.ToName, m.To); err != nil {
		return nil, fmt.Errorf("recipient address: %w", err)
	}
	msg.Subject(m.Subject)
	msg.SetBodyString(mail.TypeTextPlain, m.Text)
	if m.HTML != "" {
		msg.AddAlternativeString(mail.TypeTextHTML, m.HTML)
	}
	return msg, nil
}

// Send delivers m.
func (s *Sender) Send(ctx context.Context, m Message) Outcome {
	out := Outcome{Fallback: m.Fallback}
	msg, err := s.build(m)
	if err != nil {
		out.Err = err
		s.logger.Warn("build email", zap.String("to", m.To), zap.String("email_type", m.EmailType), zap.Error(err))
		return out
	}
	if err := s.transport.DialAndSendWithContext(ctx, msg); err != nil {
		out.Err = fmt.Errorf("send email: %w", err)
		s.logger.Warn("send email", zap.String("to", m.To), zap.String("email_type", m.EmailType), zap.Error(err))
		return out
	}
	out.Sent = true
	s.logger.Info("email sent", zap.String("to", m.To), zap.String("email_type", m.EmailType), zap.Bool("fallback", m.Fallback))
	return out
}
