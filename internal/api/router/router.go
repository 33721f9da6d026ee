package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	httpmiddleware "github.com/alfredai/landing-leads/internal/http/middleware"
	"github.com/alfredai/landing-leads/internal/leads"
	"github.com/alfredai/landing-leads/internal/ratelimit"
	"github.com/alfredai/landing-leads/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger             *logging.Logger
	LeadsHandler       *leads.Handler
	HealthHandler      http.Handler
	MetricsHandler     http.Handler
	CORSAllowedOrigins []string

	// Reporting endpoint guards (optional)
	ReportAuthSecret string
	ReportLimiter    *ratelimit.Limiter
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	if cfg.HealthHandler != nil {
		r.Method(http.MethodGet, "/api/health", cfg.HealthHandler)
	}
	if cfg.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", cfg.MetricsHandler)
	}

	if h := cfg.LeadsHandler; h != nil {
		r.Post("/api/submit-lead", h.SubmitLead)
		for _, method := range []string{http.MethodGet, http.MethodPut, http.MethodPatch, http.MethodDelete} {
			r.MethodFunc(method, "/api/submit-lead", h.MethodNotAllowed)
		}

		r.Route("/api/view-leads", func(report chi.Router) {
			if cfg.ReportLimiter != nil {
				report.Use(httpmiddleware.RateLimit(cfg.ReportLimiter, cfg.Logger))
			}
			if cfg.ReportAuthSecret != "" {
				report.Use(httpmiddleware.ReportAuth(cfg.ReportAuthSecret))
			}
			report.Get("/", h.ViewLeads)
			report.Get("/{id}", h.GetLead)
		})
	}

	return r
}
