package notify

import (
	"context"
	"time"

	"github.com/alfredai/landing-leads/pkg/logging"
)

// Email kinds reported to EmailObserver.
const (
	KindConfirmation = "confirmation"
	KindAdmin        = "admin"
)

// LeadContact is the subset of a stored lead needed to build notifications.
type LeadContact struct {
	LeadID      string
	Name        string
	Email       string
	Company     string
	Message     string
	SubmittedAt time.Time
}

// EmailObserver receives the delivery outcome of each notification.
type EmailObserver interface {
	ObserveEmail(kind string, sent bool)
}

// Config configures LeadNotifier.
type Config struct {
	AdminEmail string
	AppURL     string
}

// LeadNotifier sends the submitter confirmation and the admin alert.
type LeadNotifier struct {
	sender   EmailSender
	cfg      Config
	observer EmailObserver
	logger   *logging.Logger
	now      func() time.Time
}

// NewLeadNotifier creates a notifier. A nil sender falls back to the stub.
func NewLeadNotifier(sender EmailSender, cfg Config, observer EmailObserver, logger *logging.Logger) *LeadNotifier {
	if logger == nil {
		logger = logging.Default()
	}
	if sender == nil {
		sender = NewStubEmailSender(logger)
	}
	if cfg.AppURL == "" {
		cfg.AppURL = "http://localhost:3000"
	}
	return &LeadNotifier{
		sender:   sender,
		cfg:      cfg,
		observer: observer,
		logger:   logger,
		now:      time.Now,
	}
}

// SendConfirmation emails the submitter.
func (n *LeadNotifier) SendConfirmation(ctx context.Context, contact LeadContact) error {
	msg, err := renderConfirmation(contact, n.cfg.AppURL, n.now())
	if err != nil {
		return err
	}
	err = n.sender.Send(ctx, msg)
	n.observe(KindConfirmation, err)
	if err != nil {
		n.logger.Error("failed to send confirmation email", "error", err, "lead_id", contact.LeadID)
		return err
	}
	n.logger.Info("confirmation email sent", "lead_id", contact.LeadID)
	return nil
}

// NotifyAdmin emails the configured admin address. It is a no-op when no
// admin address is set.
func (n *LeadNotifier) NotifyAdmin(ctx context.Context, contact LeadContact) error {
	if n.cfg.AdminEmail == "" {
		n.logger.Warn("ADMIN_EMAIL not configured, skipping admin notification", "lead_id", contact.LeadID)
		return nil
	}
	msg, err := renderAdmin(contact, n.cfg.AdminEmail, n.cfg.AppURL)
	if err != nil {
		return err
	}
	err = n.sender.Send(ctx, msg)
	n.observe(KindAdmin, err)
	if err != nil {
		n.logger.Error("failed to send admin notification", "error", err, "lead_id", contact.LeadID)
		return err
	}
	n.logger.Info("admin notification sent", "lead_id", contact.LeadID)
	return nil
}

func (n *LeadNotifier) observe(kind string, err error) {
	if n.observer != nil {
		n.observer.ObserveEmail(kind, err == nil)
	}
}
