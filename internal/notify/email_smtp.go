package notify

import (
	"context"
	"fmt"

	"gopkg.in/gomail.v2"

	"github.com/alfredai/landing-leads/pkg/logging"
)

// SMTPConfig configures SMTPSender. Port 465 uses implicit TLS, other ports
// negotiate STARTTLS when the server offers it.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
}

// Dialer is the gomail dialer surface used by SMTPSender.
type Dialer interface {
	DialAndSend(m ...*gomail.Message) error
}

// SMTPSender sends email through an SMTP relay.
type SMTPSender struct {
	dialer Dialer
	from   SenderConfig
	logger *logging.Logger
}

// NewSMTPSender returns nil when no host is configured.
func NewSMTPSender(cfg SMTPConfig, from SenderConfig, logger *logging.Logger) *SMTPSender {
	if cfg.Host == "" {
		return nil
	}
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	d := gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
	d.SSL = cfg.Port == 465
	return newSMTPSenderWithDialer(d, from, logger)
}

func newSMTPSenderWithDialer(d Dialer, from SenderConfig, logger *logging.Logger) *SMTPSender {
	if logger == nil {
		logger = logging.Default()
	}
	return &SMTPSender{dialer: d, from: from, logger: logger}
}

// Send builds a multipart message and delivers it. gomail has no context
// support, so cancellation is only checked before dialing.
func (s *SMTPSender) Send(ctx context.Context, msg EmailMessage) error {
	if s == nil || s.dialer == nil {
		return fmt.Errorf("notify: smtp dialer not configured")
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("notify: smtp send: %w", err)
	}

	m := buildSMTPMessage(s.from, msg)
	if err := s.dialer.DialAndSend(m); err != nil {
		s.logger.Error("smtp send failed", "error", err, "to", msg.To)
		return fmt.Errorf("notify: smtp send: %w", err)
	}

	s.logger.Info("email sent via smtp", "to", msg.To, "subject", msg.Subject)
	return nil
}

func buildSMTPMessage(from SenderConfig, msg EmailMessage) *gomail.Message {
	m := gomail.NewMessage()
	m.SetAddressHeader("From", from.FromEmail, from.displayName(msg))
	if msg.ToName != "" {
		m.SetAddressHeader("To", msg.To, msg.ToName)
	} else {
		m.SetHeader("To", msg.To)
	}
	m.SetHeader("Subject", msg.Subject)
	m.SetBody("text/plain", msg.Body)
	if msg.HTML != "" {
		m.AddAlternative("text/html", msg.HTML)
	}
	return m
}

var _ EmailSender = (*SMTPSender)(nil)
