package router

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/alfredai/landing-leads/internal/health"
	"github.com/alfredai/landing-leads/internal/leads"
	"github.com/alfredai/landing-leads/internal/notify"
	"github.com/alfredai/landing-leads/internal/observability/metrics"
	"github.com/alfredai/landing-leads/internal/ratelimit"
	"github.com/alfredai/landing-leads/internal/tracking"
	"github.com/alfredai/landing-leads/pkg/logging"
)

func newTestRouter(t *testing.T, secret string) http.Handler {
	t.Helper()

	logger := logging.Discard()
	reg := prometheus.NewRegistry()
	m := metrics.NewLeadMetrics(reg)
	repo := leads.NewInMemoryRepository()

	intake := leads.NewIntake(leads.IntakeDeps{
		Limiter:   ratelimit.New(5, time.Hour),
		Extractor: tracking.NewExtractor(nil, logger),
		Repo:      repo,
		Notifier:  notify.NewLeadNotifier(notify.NewStubEmailSender(logger), notify.Config{}, m, logger),
		Metrics:   m,
		Logger:    logger,
	})

	cfg := &Config{
		Logger:             logger,
		LeadsHandler:       leads.NewHandler(intake, repo, m, logger),
		HealthHandler:      health.NewHandler(repo, nil, logger),
		MetricsHandler:     promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		CORSAllowedOrigins: []string{"https://alfredai.bot"},
		ReportAuthSecret:   secret,
		ReportLimiter:      ratelimit.New(60, time.Minute),
	}
	return New(cfg)
}

func TestRouterHealthEndpoint(t *testing.T) {
	router := newTestRouter(t, "")

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rr.Code)
	}
	var resp map[string]any
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode health response: %v", err)
	}
	if resp["status"] != "healthy" {
		t.Errorf("expected status 'healthy', got %v", resp["status"])
	}
}

func TestRouterSubmitLeadEndpoint(t *testing.T) {
	router := newTestRouter(t, "")

	body := `{"name":"Router Test","email":"router@example.com","message":"Interested in the proposal generator."}`
	req := httptest.NewRequest(http.MethodPost, "/api/submit-lead?utm_source=newsletter", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Origin", "https://alfredai.bot")
	req.Header.Set("X-Forwarded-For", "198.51.100.44")
	rr := httptest.NewRecorder()

	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, rr.Code, rr.Body.String())
	}
	if rr.Header().Get("Access-Control-Allow-Origin") != "https://alfredai.bot" {
		t.Errorf("expected CORS header on submit response")
	}
	if rr.Header().Get("X-RateLimit-Remaining") != "4" {
		t.Errorf("expected remaining 4, got %q", rr.Header().Get("X-RateLimit-Remaining"))
	}

	// The new lead shows up in the report.
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/view-leads", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected view-leads 200, got %d", rr.Code)
	}
	var report leads.ViewLeadsResponse
	if err := json.NewDecoder(rr.Body).Decode(&report); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	if report.Stats.Total != 1 || report.Stats.BySource["newsletter"] != 1 {
		t.Fatalf("unexpected stats %+v", report.Stats)
	}
}

func TestRouterSubmitLeadMethodNotAllowed(t *testing.T) {
	router := newTestRouter(t, "")

	for _, method := range []string{http.MethodGet, http.MethodPut, http.MethodDelete} {
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, httptest.NewRequest(method, "/api/submit-lead", nil))
		if rr.Code != http.StatusMethodNotAllowed {
			t.Fatalf("%s: expected 405, got %d", method, rr.Code)
		}
		if !strings.Contains(rr.Body.String(), "Method not allowed") {
			t.Fatalf("%s: unexpected body %s", method, rr.Body.String())
		}
	}
}

func TestRouterViewLeadsRequiresTokenWhenConfigured(t *testing.T) {
	router := newTestRouter(t, "report-secret")

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/view-leads", nil))
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rr.Code)
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "sales-dashboard",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
	})
	signed, err := token.SignedString([]byte("report-secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/view-leads", nil)
	req.Header.Set("Authorization", "Bearer "+signed)
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 with token, got %d", rr.Code)
	}
}

func TestRouterMetricsEndpoint(t *testing.T) {
	router := newTestRouter(t, "")

	body := `{"name":"Router Test","email":"router@example.com","message":"short"}`
	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/submit-lead", strings.NewReader(body)))

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected metrics 200, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), `landing_leads_submissions_total{outcome="validation_failed"} 1`) {
		t.Fatalf("expected submission counter in metrics output")
	}
}

func TestRouterCORSPreflight(t *testing.T) {
	router := newTestRouter(t, "")

	req := httptest.NewRequest(http.MethodOptions, "/api/submit-lead", nil)
	req.Header.Set("Origin", "https://alfredai.bot")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected 204 preflight, got %d", rr.Code)
	}
}
