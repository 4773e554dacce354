package mailer

import (
	"context"
	"errors"
	"fmt"

	"github.com/cinevault/apiserver/config"
	"github.com/cinevault/apiserver/internal/logging"
	"github.com/cinevault/apiserver/internal/metrics"
	"gopkg.in/gomail.v2"
)

// Email represents an email message.
type Email struct {
	To       []string `json:"to"`
	Subject  string   `json:"subject"`
	Body     string   `json:"body"`
	HTMLBody string   `json:"htmlBody,omitempty"`
}

// Sender delivers an email.
type Sender interface {
	Send(ctx context.Context, email Email) error
}

var errNoRecipients = errors.New("no recipients specified")

// SMTPMailer delivers mail synchronously over SMTP.
type SMTPMailer struct {
	from   string
	dialer *gomail.Dialer
}

func NewSMTPMailer(cfg config.SMTPConfig) (*SMTPMailer, error) {
	if !cfg.Enabled() {
		return nil, errors.New("smtp host is required")
	}
	if cfg.From == "" {
		return nil, errors.New("smtp from address is required")
	}
	return &SMTPMailer{
		from:   cfg.From,
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
	}, nil
}

func (m *SMTPMailer) Send(ctx context.Context, email Email) error {
	if len(email.To) == 0 {
		return errNoRecipients
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", email.To...)
	msg.SetHeader("Subject", email.Subject)
	if email.HTMLBody != "" {
		msg.SetBody("text/html", email.HTMLBody)
		if email.Body != "" {
			msg.AddAlternative("text/plain", email.Body)
		}
	} else {
		msg.SetBody("text/plain", email.Body)
	}

	if err := m.dialer.DialAndSend(msg); err != nil {
		metrics.MailDeliveriesTotal.WithLabelValues("smtp", "error").Inc()
		return fmt.Errorf("smtp send: %w", err)
	}
	metrics.MailDeliveriesTotal.WithLabelValues("smtp", "sent").Inc()
	return nil
}

// LogMailer only logs that a message would have been sent.
// It is used when no SMTP server is configured.
type LogMailer struct{}

func (LogMailer) Send(ctx context.Context, email Email) error {
	if len(email.To) == 0 {
		return errNoRecipients
	}
	for _, to := range email.To {
		logging.Ctx(ctx).Warn().
			Str("to", logging.MaskEmail(to)).
			Str("subject", email.Subject).
			Msg("smtp not configured, email dropped")
	}
	metrics.MailDeliveriesTotal.WithLabelValues("log", "dropped").Inc()
	return nil
}
