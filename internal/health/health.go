// Package health serves the liveness and readiness report.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/alfredai/landing-leads/pkg/logging"
)

const (
	StatusHealthy   = "healthy"
	StatusUnhealthy = "unhealthy"
	checkOK         = "ok"
	checkError      = "error"

	defaultProbeTimeout = 2 * time.Second
)

// Pinger probes database reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Check is the result of one probe.
type Check struct {
	Status       string `json:"status"`
	Message      string `json:"message,omitempty"`
	ResponseTime *int64 `json:"responseTime,omitempty"`
}

// Report is the response body of GET /api/health.
type Report struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Uptime    float64   `json:"uptime"`
	Checks    struct {
		Database    Check `json:"database"`
		Environment Check `json:"environment"`
	} `json:"checks"`
}

// Handler reports uptime, database reachability and missing configuration.
type Handler struct {
	db           Pinger
	missing      func() []string
	started      time.Time
	probeTimeout time.Duration
	now          func() time.Time
	logger       *logging.Logger
}

// NewHandler creates a health handler. missing returns the names of required
// configuration values that are unset.
func NewHandler(db Pinger, missing func() []string, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	if missing == nil {
		missing = func() []string { return nil }
	}
	return &Handler{
		db:           db,
		missing:      missing,
		started:      time.Now(),
		probeTimeout: defaultProbeTimeout,
		now:          time.Now,
		logger:       logger,
	}
}

// ServeHTTP answers 200 when every check passes and 503 otherwise.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	report := h.Check(r.Context())

	status := http.StatusOK
	if report.Status != StatusHealthy {
		status = http.StatusServiceUnavailable
		h.logger.Warn("health check failed",
			"database", report.Checks.Database.Status,
			"environment", report.Checks.Environment.Status,
		)
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(report)
}

// Check runs all probes.
func (h *Handler) Check(ctx context.Context) Report {
	now := h.now()
	var report Report
	report.Timestamp = now.UTC()
	report.Uptime = now.Sub(h.started).Seconds()
	report.Checks.Database = h.checkDatabase(ctx)
	report.Checks.Environment = h.checkEnvironment()

	report.Status = StatusHealthy
	if report.Checks.Database.Status != checkOK || report.Checks.Environment.Status != checkOK {
		report.Status = StatusUnhealthy
	}
	return report
}

func (h *Handler) checkDatabase(ctx context.Context) Check {
	if h.db == nil {
		return Check{Status: checkError, Message: "Database not configured"}
	}

	ctx, cancel := context.WithTimeout(ctx, h.probeTimeout)
	defer cancel()

	start := h.now()
	err := h.db.Ping(ctx)
	elapsed := h.now().Sub(start).Milliseconds()

	if err != nil {
		h.logger.Error("health check: database ping failed", "error", err)
		return Check{Status: checkError, Message: "Database connection failed", ResponseTime: &elapsed}
	}
	return Check{Status: checkOK, ResponseTime: &elapsed}
}

func (h *Handler) checkEnvironment() Check {
	missing := h.missing()
	if len(missing) > 0 {
		return Check{
			Status:  checkError,
			Message: "Missing environment variables: " + strings.Join(missing, ", "),
		}
	}
	return Check{Status: checkOK}
}
