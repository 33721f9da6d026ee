// Package audit records security-relevant intake events.
package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/alfredai/landing-leads/pkg/logging"
)

// EventType identifies a security audit event.
type EventType string

const (
	// EventPatternDetected is logged when a field matches a malicious-input pattern.
	EventPatternDetected EventType = "security.pattern_detected"
	// EventHoneypotTriggered is logged when the hidden form field is filled in.
	EventHoneypotTriggered EventType = "security.honeypot_triggered"
	// EventRateLimited is logged when a client exceeds its submission budget.
	EventRateLimited EventType = "security.rate_limited"
)

const maxHoneypotValue = 256

// Event is an immutable audit record.
type Event struct {
	ID        string          `json:"id"`
	EventType EventType       `json:"event_type"`
	ClientIP  string          `json:"client_ip,omitempty"`
	Field     string          `json:"field,omitempty"`
	Details   json.RawMessage `json:"details,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// Details holds event-specific data.
type Details struct {
	Threat        string     `json:"threat,omitempty"`
	HoneypotValue string     `json:"honeypot_value,omitempty"`
	Limit         int        `json:"limit,omitempty"`
	ResetAt       *time.Time `json:"reset_at,omitempty"`
}

// Service writes audit events to the log and, when configured, to Postgres.
type Service struct {
	db     *sql.DB
	logger *logging.Logger
	now    func() time.Time
}

// NewService creates an audit service. A nil db keeps events in the log only.
func NewService(db *sql.DB, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{db: db, logger: logger, now: time.Now}
}

// Record logs the event and persists it.
func (s *Service) Record(ctx context.Context, event Event) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = s.now().UTC()
	}

	s.logger.Security(string(event.EventType),
		"event_id", event.ID,
		"ip", event.ClientIP,
		"field", event.Field,
		"details", string(event.Details),
	)

	if s.db == nil {
		return nil
	}

	query := `
		INSERT INTO security_audit_events (
			id, event_type, client_ip, field, details, created_at
		) VALUES ($1, $2, $3, $4, $5, $6)
	`
	details := event.Details
	if len(details) == 0 {
		details = json.RawMessage(`{}`)
	}
	_, err := s.db.ExecContext(ctx, query,
		event.ID,
		string(event.EventType),
		nullString(event.ClientIP),
		nullString(event.Field),
		[]byte(details),
		event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("audit: failed to record event: %w", err)
	}
	return nil
}

// LogPatternDetected records a rejected field. The offending value is not stored.
func (s *Service) LogPatternDetected(ctx context.Context, clientIP, field, threat string) error {
	detailsJSON, _ := json.Marshal(Details{Threat: threat})
	return s.Record(ctx, Event{
		EventType: EventPatternDetected,
		ClientIP:  clientIP,
		Field:     field,
		Details:   detailsJSON,
	})
}

// LogHoneypot records a filled honeypot field, truncating the value.
func (s *Service) LogHoneypot(ctx context.Context, clientIP, field, value string) error {
	detailsJSON, _ := json.Marshal(Details{HoneypotValue: truncate(value, maxHoneypotValue)})
	return s.Record(ctx, Event{
		EventType: EventHoneypotTriggered,
		ClientIP:  clientIP,
		Field:     field,
		Details:   detailsJSON,
	})
}

// LogRateLimited records a denied submission.
func (s *Service) LogRateLimited(ctx context.Context, clientIP string, limit int, resetAt time.Time) error {
	resetAt = resetAt.UTC()
	detailsJSON, _ := json.Marshal(Details{Limit: limit, ResetAt: &resetAt})
	return s.Record(ctx, Event{
		EventType: EventRateLimited,
		ClientIP:  clientIP,
		Details:   detailsJSON,
	})
}

// PurgeOlderThan deletes events older than age and returns the number removed.
func (s *Service) PurgeOlderThan(ctx context.Context, age time.Duration) (int64, error) {
	if s.db == nil {
		return 0, nil
	}
	cutoff := s.now().UTC().Add(-age)
	res, err := s.db.ExecContext(ctx, `DELETE FROM security_audit_events WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("audit: failed to purge events: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("audit: purge rows affected: %w", err)
	}
	return n, nil
}

// StartRetention purges once immediately and then every interval until ctx
// is done. The returned channel closes when the loop exits.
func (s *Service) StartRetention(ctx context.Context, age, interval time.Duration) <-chan struct{} {
	done := make(chan struct{})
	if s.db == nil || age <= 0 || interval <= 0 {
		close(done)
		return done
	}

	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			s.purge(ctx, age)
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()
	return done
}

func (s *Service) purge(ctx context.Context, age time.Duration) {
	n, err := s.PurgeOlderThan(ctx, age)
	if err != nil {
		if ctx.Err() == nil {
			s.logger.Error("audit retention purge failed", "error", err)
		}
		return
	}
	if n > 0 {
		s.logger.Info("audit retention purge", "deleted", n, "older_than", age.String())
	}
}

func truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	return string([]rune(s)[:max])
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
