// Package notification renders supplier notices and delivers them by email.
package notification

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/domodwyer/mailyak/v3"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/AnnixInvestments/annix-sub017/config"
	"github.com/AnnixInvestments/annix-sub017/internal/models"
)

const portalPath = "/supplier/portal/boqs"

// Notice is one supplier notification
type Notice struct {
	Recipient     string
	SupplierName  string
	ProjectName   string
	BoqNumber     string
	SectionTitles []string
	Customer      *models.CustomerInfo
}

// Transport delivers a rendered message
type Transport interface {
	Deliver(ctx context.Context, to string, msg Message) error
}

// Mailer renders notices and hands them to a transport
type Mailer struct {
	transport Transport
	link      string
}

// NewMailer creates a mailer linking to the supplier portal under portalURL
func NewMailer(transport Transport, portalURL string) *Mailer {
	return &Mailer{
		transport: transport,
		link:      strings.TrimRight(portalURL, "/") + portalPath,
	}
}

// NewMailerFromConfig picks the SMTP transport when enabled and the log transport otherwise
func NewMailerFromConfig(cfg config.SMTPConfig) *Mailer {
	if !cfg.Enabled {
		log.Warn().Msg("SMTP disabled, notifications will be logged only")
		return NewMailer(LogTransport{}, cfg.PortalURL)
	}
	return NewMailer(NewSMTPTransport(cfg), cfg.PortalURL)
}

// SendDistributionNotice tells a supplier about a new BOQ
func (m *Mailer) SendDistributionNotice(ctx context.Context, n Notice) error {
	return m.send(ctx, KindDistribution, n)
}

// SendUpdateNotice tells a supplier that a BOQ changed
func (m *Mailer) SendUpdateNotice(ctx context.Context, n Notice) error {
	return m.send(ctx, KindUpdate, n)
}

// SendReminderNotice reminds a supplier of an open BOQ
func (m *Mailer) SendReminderNotice(ctx context.Context, n Notice) error {
	return m.send(ctx, KindReminder, n)
}

func (m *Mailer) send(ctx context.Context, kind Kind, n Notice) error {
	if n.Recipient == "" {
		return errors.New("notice has no recipient")
	}
	msg, err := Render(kind, n, m.link)
	if err != nil {
		return err
	}
	if err := m.transport.Deliver(ctx, n.Recipient, msg); err != nil {
		return errors.Wrapf(err, "failed to deliver %s notice", kind)
	}
	return nil
}

// SMTPTransport sends mail through an SMTP relay
type SMTPTransport struct {
	addr     string
	auth     smtp.Auth
	from     string
	fromName string
}

// NewSMTPTransport creates an SMTP transport; auth is skipped when no username is set
func NewSMTPTransport(cfg config.SMTPConfig) *SMTPTransport {
	var auth smtp.Auth
	if cfg.Username != "" {
		auth = smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	}
	return &SMTPTransport{
		addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		auth:     auth,
		from:     cfg.From,
		fromName: cfg.FromName,
	}
}

// Deliver sends msg to one recipient. mailyak has no context support, so the send runs
// in its own goroutine and is abandoned when ctx ends.
func (t *SMTPTransport) Deliver(ctx context.Context, to string, msg Message) error {
	mail := mailyak.New(t.addr, t.auth)
	mail.To(to)
	mail.From(t.from)
	mail.FromName(t.fromName)
	mail.Subject(msg.Subject)
	mail.HTML().Set(msg.HTML)
	mail.Plain().Set(msg.Text)

	done := make(chan error, 1)
	go func() {
		done <- mail.Send()
	}()

	select {
	case err := <-done:
		if err != nil {
			return errors.Wrap(err, "smtp send failed")
		}
		log.Info().Str("to", to).Str("subject", msg.Subject).Msg("Email sent")
		return nil
	case <-ctx.Done():
		return errors.Wrap(ctx.Err(), "smtp send interrupted")
	}
}

// LogTransport writes messages to the log instead of sending them
type LogTransport struct{}

// Deliver logs msg
func (LogTransport) Deliver(_ context.Context, to string, msg Message) error {
	log.Info().
		Str("to", to).
		Str("subject", msg.Subject).
		Str("body", msg.Text).
		Msg("Email (log only)")
	return nil
}
