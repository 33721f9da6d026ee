package leads

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	httpmiddleware "github.com/alfredai/landing-leads/internal/http/middleware"
	"github.com/alfredai/landing-leads/internal/observability/metrics"
	"github.com/alfredai/landing-leads/internal/ratelimit"
	"github.com/alfredai/landing-leads/pkg/logging"
)

const (
	successMessage      = "Thank you! We'll be in touch soon."
	recentLeadsLimit    = 20
	msgRateLimited      = "Too many requests. Please try again later."
	msgValidation       = "Validation failed"
	msgMalformed        = "Invalid request format"
	msgPersistence      = "Failed to save your information. Please try again."
	msgUnexpected       = "An unexpected error occurred. Please try again later."
	msgMethodNotAllowed = "Method not allowed"
	msgFetchFailed      = "Failed to fetch leads"
	msgLeadNotFound     = "Lead not found"
)

// Handler handles HTTP requests for leads
type Handler struct {
	intake  *Intake
	repo    Repository
	metrics *metrics.LeadMetrics
	logger  *logging.Logger
}

// NewHandler creates a new leads handler
func NewHandler(intake *Intake, repo Repository, m *metrics.LeadMetrics, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{
		intake:  intake,
		repo:    repo,
		metrics: m,
		logger:  logger,
	}
}

type errorResponse struct {
	Success   bool                `json:"success"`
	Error     string              `json:"error"`
	Errors    map[string][]string `json:"errors,omitempty"`
	RateLimit *rateLimitBody      `json:"rateLimit,omitempty"`
}

type rateLimitBody struct {
	Remaining int   `json:"remaining"`
	ResetAt   int64 `json:"resetAt"`
}

type submitResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    *submitData `json:"data,omitempty"`
}

type submitData struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
}

// SubmitLead handles POST /api/submit-lead
func (h *Handler) SubmitLead(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	defer func() {
		h.metrics.ObserveSubmitDuration(time.Since(start).Seconds())
	}()
	defer func() {
		if rec := recover(); rec != nil {
			h.logger.Error("panic in submit-lead", "panic", rec)
			h.metrics.ObserveSubmission(OutcomeInternalError)
			writeJSON(w, http.StatusInternalServerError, errorResponse{Error: msgUnexpected})
		}
	}()

	h.logger.Info("request", "method", r.Method, "path", r.URL.Path, "user_agent", r.UserAgent())

	result, err := h.intake.Submit(r.Context(), r)
	if err != nil {
		h.writeSubmitError(w, err)
		h.logger.Info("response", "path", r.URL.Path, "duration_ms", time.Since(start).Milliseconds())
		return
	}

	setRateLimitHeaders(w, result.RateLimit)
	resp := submitResponse{Success: true, Message: successMessage}
	if result.Lead != nil {
		resp.Data = &submitData{ID: result.Lead.ID, CreatedAt: result.Lead.CreatedAt}
	}
	writeJSON(w, http.StatusOK, resp)
	h.logger.Info("response", "path", r.URL.Path, "status", http.StatusOK, "duration_ms", time.Since(start).Milliseconds())
}

func (h *Handler) writeSubmitError(w http.ResponseWriter, err error) {
	var rateErr *RateLimitError
	var validationErr *ValidationError

	switch {
	case errors.As(err, &rateErr):
		setRateLimitHeaders(w, rateErr.Result)
		writeJSON(w, http.StatusTooManyRequests, errorResponse{
			Error: msgRateLimited,
			RateLimit: &rateLimitBody{
				Remaining: rateErr.Result.Remaining,
				ResetAt:   rateErr.Result.ResetAt.UnixMilli(),
			},
		})
	case errors.As(err, &validationErr):
		writeJSON(w, http.StatusBadRequest, errorResponse{
			Error:  msgValidation,
			Errors: validationErr.Fields.AsMap(),
		})
	case errors.Is(err, ErrMalformedRequest):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: msgMalformed})
	case errors.Is(err, ErrPersistence):
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: msgPersistence})
	default:
		h.logger.Error("unexpected error in submit-lead", "error", err)
		h.metrics.ObserveSubmission(OutcomeInternalError)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: msgUnexpected})
	}
}

// MethodNotAllowed answers non-POST requests on the submit endpoint.
func (h *Handler) MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Allow", http.MethodPost)
	writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: msgMethodNotAllowed})
}

// ViewLeadsResponse is the response for GET /api/view-leads
type ViewLeadsResponse struct {
	Success bool    `json:"success"`
	Stats   Stats   `json:"stats"`
	Leads   []*Lead `json:"leads"`
}

// ViewLeads handles GET /api/view-leads
func (h *Handler) ViewLeads(w http.ResponseWriter, r *http.Request) {
	leads, err := h.repo.ListRecent(r.Context(), recentLeadsLimit)
	if err != nil {
		h.logger.Error("failed to fetch leads", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: msgFetchFailed})
		return
	}
	if leads == nil {
		leads = []*Lead{}
	}
	if viewer, ok := httpmiddleware.ReportViewerFromContext(r.Context()); ok {
		h.logger.Info("lead report viewed", "viewer", viewer.Subject, "leads", len(leads))
	}
	writeJSON(w, http.StatusOK, ViewLeadsResponse{
		Success: true,
		Stats:   ComputeStats(leads),
		Leads:   leads,
	})
}

// GetLead handles GET /api/view-leads/{id}
func (h *Handler) GetLead(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	lead, err := h.repo.GetByID(r.Context(), id)
	switch {
	case errors.Is(err, ErrLeadNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: msgLeadNotFound})
		return
	case err != nil:
		h.logger.Error("failed to fetch lead", "error", err, "id", id)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: msgFetchFailed})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "lead": lead})
}

// setRateLimitHeaders writes X-RateLimit-*; the reset is epoch milliseconds.
func setRateLimitHeaders(w http.ResponseWriter, res ratelimit.Result) {
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(res.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(res.ResetAt.UnixMilli(), 10))
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
