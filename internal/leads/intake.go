package leads

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/alfredai/landing-leads/internal/notify"
	"github.com/alfredai/landing-leads/internal/observability/metrics"
	"github.com/alfredai/landing-leads/internal/ratelimit"
	"github.com/alfredai/landing-leads/internal/tracking"
	"github.com/alfredai/landing-leads/internal/validation"
	"github.com/alfredai/landing-leads/pkg/logging"
)

var tracer = otel.Tracer("landing.internal.leads")

const (
	maxBodyBytes      = 64 << 10
	unknownIdentifier = "unknown"
	defaultHoneypot   = "website"
)

// Submission outcomes reported to metrics.
const (
	OutcomeCreated           = "created"
	OutcomeRateLimited       = "rate_limited"
	OutcomeMalformed         = "malformed"
	OutcomeValidationFailed  = "validation_failed"
	OutcomeSecurityRejected  = "security_rejected"
	OutcomeHoneypot          = "honeypot"
	OutcomePersistenceFailed = "persistence_failed"
	OutcomeInternalError     = "internal_error"
)

// RateLimiter is the sliding-window check consulted before anything else.
type RateLimiter interface {
	Check(identifier string) ratelimit.Result
}

// TrackingExtractor derives attribution data from the request.
type TrackingExtractor interface {
	Extract(ctx context.Context, r *http.Request) tracking.Data
}

// Notifier sends the lead emails.
type Notifier interface {
	SendConfirmation(ctx context.Context, contact notify.LeadContact) error
	NotifyAdmin(ctx context.Context, contact notify.LeadContact) error
}

// TaskQueue runs work in the background.
type TaskQueue interface {
	Enqueue(task notify.Task) error
}

// SecurityAuditor records security events.
type SecurityAuditor interface {
	LogPatternDetected(ctx context.Context, clientIP, field, threat string) error
	LogHoneypot(ctx context.Context, clientIP, field, value string) error
	LogRateLimited(ctx context.Context, clientIP string, limit int, resetAt time.Time) error
}

// IntakeDeps wires the collaborators of the submission pipeline.
type IntakeDeps struct {
	Limiter       RateLimiter
	Extractor     TrackingExtractor
	Repo          Repository
	Notifier      Notifier
	Queue         TaskQueue
	Auditor       SecurityAuditor
	Metrics       *metrics.LeadMetrics
	HoneypotField string
	Logger        *logging.Logger
}

// Intake runs one contact form submission through rate limiting, validation,
// bot filtering, attribution, persistence and notification.
type Intake struct {
	limiter       RateLimiter
	extractor     TrackingExtractor
	repo          Repository
	notifier      Notifier
	queue         TaskQueue
	auditor       SecurityAuditor
	metrics       *metrics.LeadMetrics
	honeypotField string
	logger        *logging.Logger
}

// SubmitResult describes an accepted submission. Lead is nil when the
// honeypot fired.
type SubmitResult struct {
	Lead      *Lead
	RateLimit ratelimit.Result
	Honeypot  bool
}

// NewIntake creates the orchestrator. Limiter, Extractor and Repo are required.
func NewIntake(deps IntakeDeps) *Intake {
	if deps.Limiter == nil || deps.Extractor == nil || deps.Repo == nil {
		panic("leads: limiter, extractor and repository are required")
	}
	if deps.Logger == nil {
		deps.Logger = logging.Default()
	}
	if deps.HoneypotField == "" {
		deps.HoneypotField = defaultHoneypot
	}
	return &Intake{
		limiter:       deps.Limiter,
		extractor:     deps.Extractor,
		repo:          deps.Repo,
		notifier:      deps.Notifier,
		queue:         deps.Queue,
		auditor:       deps.Auditor,
		metrics:       deps.Metrics,
		honeypotField: deps.HoneypotField,
		logger:        deps.Logger,
	}
}

// Submit processes r. Errors are *RateLimitError, *ValidationError,
// ErrMalformedRequest or ErrPersistence; notification failures are never
// returned.
func (in *Intake) Submit(ctx context.Context, r *http.Request) (*SubmitResult, error) {
	ctx, span := tracer.Start(ctx, "leads.submit")
	defer span.End()

	clientIP := tracking.ClientIP(r)
	identifier := clientIP
	if identifier == "" {
		identifier = unknownIdentifier
	}

	limit := in.limiter.Check(identifier)
	span.SetAttributes(attribute.Int("ratelimit.remaining", limit.Remaining))
	if !limit.Allowed {
		in.logger.RateLimited(identifier, "remaining", limit.Remaining, "reset_at", limit.ResetAt.UTC().Format(time.RFC3339))
		// One audit row per blocked period keeps a flood off the database.
		if limit.FirstDenial {
			in.audit(func(a SecurityAuditor) error {
				return a.LogRateLimited(ctx, clientIP, limit.Limit, limit.ResetAt)
			})
		}
		in.finish(span, OutcomeRateLimited)
		return nil, &RateLimitError{Result: limit}
	}

	payload, err := decodePayload(r.Body)
	if err != nil {
		in.logger.Warn("malformed submission", "error", err, "ip", clientIP)
		in.finish(span, OutcomeMalformed)
		return nil, ErrMalformedRequest
	}

	submission, fieldErrs := validation.ValidateLead(payload)
	if fieldErrs.HasErrors() {
		in.logger.Warn("validation failed", "errors", fieldErrs.AsMap(), "ip", clientIP)
		outcome := OutcomeValidationFailed
		if fieldErrs.HasSecurityViolation() {
			outcome = OutcomeSecurityRejected
			in.recordSecurityRejections(ctx, clientIP, fieldErrs)
		}
		in.finish(span, outcome)
		return nil, &ValidationError{Fields: fieldErrs}
	}

	if value, ok := honeypotValue(payload, in.honeypotField); ok {
		in.audit(func(a SecurityAuditor) error {
			return a.LogHoneypot(ctx, clientIP, in.honeypotField, value)
		})
		in.finish(span, OutcomeHoneypot)
		return &SubmitResult{RateLimit: limit, Honeypot: true}, nil
	}

	data := in.extractor.Extract(ctx, r)
	applyBodyUTM(&data, payload)
	source := tracking.BuildSource(data)

	in.logger.Info("processing lead submission",
		"source", source,
		"country", deref(data.Country),
		"device", data.DeviceType,
	)

	lead, err := in.repo.Create(ctx, &CreateLeadRequest{
		Name:        submission.Name,
		Email:       submission.Email,
		Company:     submission.Company,
		Message:     submission.Message,
		IP:          optional(clientIP),
		Source:      source,
		UTMSource:   data.UTMSource,
		UTMMedium:   data.UTMMedium,
		UTMCampaign: data.UTMCampaign,
		Referrer:    data.Referrer,
		UserAgent:   data.UserAgent,
		DeviceType:  optional(data.DeviceType),
		Country:     data.Country,
	})
	if err != nil {
		in.logger.Error("failed to persist lead", "error", err)
		span.RecordError(err)
		in.finish(span, OutcomePersistenceFailed)
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	span.SetAttributes(attribute.String("lead.id", lead.ID), attribute.String("lead.source", lead.Source))
	in.logger.Info("lead created", "id", lead.ID, "source", lead.Source)

	in.notify(ctx, lead)

	in.finish(span, OutcomeCreated)
	return &SubmitResult{Lead: lead, RateLimit: limit}, nil
}

// notify awaits the confirmation email and hands the admin alert to the
// background queue.
func (in *Intake) notify(ctx context.Context, lead *Lead) {
	if in.notifier == nil {
		return
	}
	contact := notify.LeadContact{
		LeadID:      lead.ID,
		Name:        lead.Name,
		Email:       lead.Email,
		Company:     deref(lead.Company),
		Message:     lead.Message,
		SubmittedAt: lead.CreatedAt,
	}

	// Errors are logged and counted by the notifier.
	_ = in.notifier.SendConfirmation(ctx, contact)

	task := notify.Task{
		Name: "admin_notification:" + lead.ID,
		Run: func(ctx context.Context) error {
			return in.notifier.NotifyAdmin(ctx, contact)
		},
	}
	if in.queue == nil {
		go func() {
			_ = task.Run(context.WithoutCancel(ctx))
		}()
		return
	}
	if err := in.queue.Enqueue(task); err != nil {
		in.logger.Error("admin notification not queued", "error", err, "lead_id", lead.ID)
	}
}

func (in *Intake) recordSecurityRejections(ctx context.Context, clientIP string, errs validation.Errors) {
	for _, fe := range errs {
		if fe.Rule != validation.RuleSecurity {
			continue
		}
		in.metrics.ObserveSecurityRejection(fe.Field)
		in.audit(func(a SecurityAuditor) error {
			return a.LogPatternDetected(ctx, clientIP, fe.Field, string(fe.Threat))
		})
	}
}

func (in *Intake) audit(record func(SecurityAuditor) error) {
	if in.auditor == nil {
		return
	}
	if err := record(in.auditor); err != nil {
		in.logger.Error("security audit write failed", "error", err)
	}
}

func (in *Intake) finish(span trace.Span, outcome string) {
	span.SetAttributes(attribute.String("lead.outcome", outcome))
	if outcome == OutcomePersistenceFailed {
		span.SetStatus(codes.Error, outcome)
	}
	in.metrics.ObserveSubmission(outcome)
}

func decodePayload(body io.Reader) (map[string]any, error) {
	if body == nil {
		return nil, errors.New("empty body")
	}
	raw, err := io.ReadAll(io.LimitReader(body, maxBodyBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if len(raw) > maxBodyBytes {
		return nil, errors.New("body too large")
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	var payload map[string]any
	if err := dec.Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode body: %w", err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return nil, errors.New("trailing data after JSON object")
	}
	if payload == nil {
		return nil, errors.New("body is not a JSON object")
	}
	return payload, nil
}

func honeypotValue(payload map[string]any, field string) (string, bool) {
	switch v := payload[field].(type) {
	case nil:
		return "", false
	case bool:
		if !v {
			return "", false
		}
	case float64:
		if v == 0 {
			return "", false
		}
	case string:
		if strings.TrimSpace(v) == "" {
			return "", false
		}
		return v, true
	}
	// Any other filled value in a hidden text input is a bot.
	return fmt.Sprint(payload[field]), true
}

// applyBodyUTM lets UTM values posted with the form win over the URL query,
// field by field.
func applyBodyUTM(data *tracking.Data, payload map[string]any) {
	override := func(dst **string, key string) {
		s, ok := payload[key].(string)
		if !ok {
			return
		}
		s = validation.SanitizeString(s)
		if s == "" {
			return
		}
		*dst = &s
	}
	override(&data.UTMSource, "utm_source")
	override(&data.UTMMedium, "utm_medium")
	override(&data.UTMCampaign, "utm_campaign")
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
