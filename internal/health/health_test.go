package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alfredai/landing-leads/pkg/logging"
)

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

func serve(t *testing.T, h *Handler) (*httptest.ResponseRecorder, Report) {
	t.Helper()
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	var report Report
	require.NoError(t, json.NewDecoder(w.Body).Decode(&report))
	return w, report
}

func TestHealth_Healthy(t *testing.T) {
	h := NewHandler(pingerFunc(func(context.Context) error { return nil }), nil, logging.Discard())
	h.started = time.Now().Add(-90 * time.Second)

	w, report := serve(t, h)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, StatusHealthy, report.Status)
	assert.Equal(t, "ok", report.Checks.Database.Status)
	assert.NotNil(t, report.Checks.Database.ResponseTime)
	assert.Equal(t, "ok", report.Checks.Environment.Status)
	assert.GreaterOrEqual(t, report.Uptime, 90.0)
}

func TestHealth_DatabaseDown(t *testing.T) {
	h := NewHandler(pingerFunc(func(context.Context) error { return errors.New("dial tcp: refused") }), nil, logging.Discard())

	w, report := serve(t, h)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, StatusUnhealthy, report.Status)
	assert.Equal(t, "error", report.Checks.Database.Status)
	assert.Equal(t, "Database connection failed", report.Checks.Database.Message)
}

func TestHealth_ProbeTimeout(t *testing.T) {
	h := NewHandler(pingerFunc(func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}), nil, logging.Discard())
	h.probeTimeout = 10 * time.Millisecond

	w, _ := serve(t, h)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestHealth_MissingEnvironment(t *testing.T) {
	h := NewHandler(pingerFunc(func(context.Context) error { return nil }), func() []string {
		return []string{"DATABASE_URL", "ADMIN_EMAIL"}
	}, logging.Discard())

	w, report := serve(t, h)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "error", report.Checks.Environment.Status)
	assert.Equal(t, "Missing environment variables: DATABASE_URL, ADMIN_EMAIL", report.Checks.Environment.Message)
}

func TestHealth_NoDatabase(t *testing.T) {
	h := NewHandler(nil, nil, logging.Discard())
	_, report := serve(t, h)
	assert.Equal(t, StatusUnhealthy, report.Status)
	assert.Equal(t, "Database not configured", report.Checks.Database.Message)
}
