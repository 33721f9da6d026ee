package leads

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alfredai/landing-leads/internal/notify"
	"github.com/alfredai/landing-leads/internal/ratelimit"
	"github.com/alfredai/landing-leads/internal/tracking"
	"github.com/alfredai/landing-leads/pkg/logging"
)

type stubGeo struct {
	country string
	err     error
}

func (s stubGeo) Country(context.Context, string) (string, error) {
	return s.country, s.err
}

type fakeNotifier struct {
	mu            sync.Mutex
	confirmations []notify.LeadContact
	admins        []notify.LeadContact
	confirmErr    error
}

func (f *fakeNotifier) SendConfirmation(_ context.Context, c notify.LeadContact) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.confirmations = append(f.confirmations, c)
	return f.confirmErr
}

func (f *fakeNotifier) NotifyAdmin(_ context.Context, c notify.LeadContact) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.admins = append(f.admins, c)
	return nil
}

func (f *fakeNotifier) counts() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.confirmations), len(f.admins)
}

// syncQueue runs tasks inline so tests can assert on their effects.
type syncQueue struct {
	tasks []string
	err   error
}

func (q *syncQueue) Enqueue(task notify.Task) error {
	if q.err != nil {
		return q.err
	}
	q.tasks = append(q.tasks, task.Name)
	return task.Run(context.Background())
}

type fakeAuditor struct {
	patterns  []string
	honeypots []string
	limited   int
}

func (a *fakeAuditor) LogPatternDetected(_ context.Context, _, field, threat string) error {
	a.patterns = append(a.patterns, field+":"+threat)
	return nil
}

func (a *fakeAuditor) LogHoneypot(_ context.Context, _, _, value string) error {
	a.honeypots = append(a.honeypots, value)
	return nil
}

func (a *fakeAuditor) LogRateLimited(context.Context, string, int, time.Time) error {
	a.limited++
	return nil
}

type failingRepo struct {
	*InMemoryRepository
}

func (failingRepo) Create(context.Context, *CreateLeadRequest) (*Lead, error) {
	return nil, errors.New("connection refused")
}

type intakeFixture struct {
	intake   *Intake
	repo     *InMemoryRepository
	notifier *fakeNotifier
	queue    *syncQueue
	auditor  *fakeAuditor
	limiter  *ratelimit.Limiter
}

func newIntakeFixture(t *testing.T, geo tracking.GeoLocator) *intakeFixture {
	t.Helper()
	f := &intakeFixture{
		repo:     NewInMemoryRepository(),
		notifier: &fakeNotifier{},
		queue:    &syncQueue{},
		auditor:  &fakeAuditor{},
		limiter:  ratelimit.New(5, time.Hour),
	}
	f.intake = NewIntake(IntakeDeps{
		Limiter:   f.limiter,
		Extractor: tracking.NewExtractor(geo, logging.Discard()),
		Repo:      f.repo,
		Notifier:  f.notifier,
		Queue:     f.queue,
		Auditor:   f.auditor,
		Logger:    logging.Discard(),
	})
	return f
}

const validBody = `{"name":"Jane Doe","email":"Jane@Example.com","company":"Acme Engineering","message":"We write forty fee proposals a month."}`

func newSubmitRequest(body, target string) *http.Request {
	if target == "" {
		target = "/api/submit-lead"
	}
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(body))
	req.Host = "alfredai.bot"
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Forwarded-For", "203.0.113.10")
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64)")
	return req
}

func TestSubmit_CreatesLead(t *testing.T) {
	f := newIntakeFixture(t, stubGeo{country: "United States"})

	result, err := f.intake.Submit(context.Background(), newSubmitRequest(validBody, ""))
	require.NoError(t, err)
	require.NotNil(t, result.Lead)

	lead := result.Lead
	assert.Equal(t, "Jane Doe", lead.Name)
	assert.Equal(t, "jane@example.com", lead.Email)
	assert.Equal(t, StatusNew, lead.Status)
	assert.Equal(t, "direct", lead.Source)
	assert.Equal(t, "203.0.113.10", *lead.IP)
	assert.Equal(t, "desktop", *lead.DeviceType)
	assert.Equal(t, "United States", *lead.Country)
	assert.True(t, result.RateLimit.Allowed)
	assert.Equal(t, 4, result.RateLimit.Remaining)

	assert.Equal(t, 1, f.repo.Len())
	confirmations, admins := f.notifier.counts()
	assert.Equal(t, 1, confirmations)
	assert.Equal(t, 1, admins)
	assert.Equal(t, []string{"admin_notification:" + lead.ID}, f.queue.tasks)
	assert.Equal(t, "Acme Engineering", f.notifier.confirmations[0].Company)
}

func TestSubmit_BodyUTMTakesPriority(t *testing.T) {
	f := newIntakeFixture(t, nil)

	body := `{"name":"Jane Doe","email":"jane@example.com","message":"We write forty fee proposals a month.","utm_source":"ads"}`
	req := newSubmitRequest(body, "/api/submit-lead?utm_source=seo&utm_medium=cpc")

	result, err := f.intake.Submit(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "ads", *result.Lead.UTMSource)
	assert.Equal(t, "cpc", *result.Lead.UTMMedium)
	assert.Nil(t, result.Lead.UTMCampaign)
	assert.Equal(t, "utm:ads", result.Lead.Source)
}

func TestSubmit_ReferrerSource(t *testing.T) {
	f := newIntakeFixture(t, nil)
	req := newSubmitRequest(validBody, "")
	req.Header.Set("Referer", "https://www.linkedin.com/feed/")

	result, err := f.intake.Submit(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "www.linkedin.com", result.Lead.Source)
}

func TestSubmit_GeolocationFailureStillSucceeds(t *testing.T) {
	f := newIntakeFixture(t, stubGeo{err: errors.New("timeout")})

	result, err := f.intake.Submit(context.Background(), newSubmitRequest(validBody, ""))
	require.NoError(t, err)
	assert.Nil(t, result.Lead.Country)
}

func TestSubmit_HoneypotReturnsSuccessWithoutSideEffects(t *testing.T) {
	f := newIntakeFixture(t, nil)

	body := `{"name":"Jane Doe","email":"jane@example.com","message":"We write forty fee proposals a month.","website":"http://spam.example"}`
	result, err := f.intake.Submit(context.Background(), newSubmitRequest(body, ""))
	require.NoError(t, err)
	assert.True(t, result.Honeypot)
	assert.Nil(t, result.Lead)

	assert.Zero(t, f.repo.Len())
	confirmations, admins := f.notifier.counts()
	assert.Zero(t, confirmations)
	assert.Zero(t, admins)
	assert.Equal(t, []string{"http://spam.example"}, f.auditor.honeypots)
}

func TestSubmit_BlankHoneypotIsIgnored(t *testing.T) {
	f := newIntakeFixture(t, nil)

	body := `{"name":"Jane Doe","email":"jane@example.com","message":"We write forty fee proposals a month.","website":"   "}`
	result, err := f.intake.Submit(context.Background(), newSubmitRequest(body, ""))
	require.NoError(t, err)
	assert.False(t, result.Honeypot)
	assert.Equal(t, 1, f.repo.Len())
}

func TestSubmit_SecurityPatternRejected(t *testing.T) {
	f := newIntakeFixture(t, nil)

	body := `{"name":"Jane Doe","email":"jane@example.com","message":"hello there; DROP TABLE leads; --"}`
	_, err := f.intake.Submit(context.Background(), newSubmitRequest(body, ""))

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.True(t, verr.Security())
	assert.Contains(t, verr.Fields.AsMap(), "message")
	assert.Equal(t, []string{"message:sql_injection"}, f.auditor.patterns)
	assert.Zero(t, f.repo.Len())
}

func TestSubmit_ValidationFailureIsNotAudited(t *testing.T) {
	f := newIntakeFixture(t, nil)

	body := `{"name":"Jane Doe","email":"jane@example.com","message":"too short"}`
	_, err := f.intake.Submit(context.Background(), newSubmitRequest(body, ""))

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.False(t, verr.Security())
	assert.Empty(t, f.auditor.patterns)
}

func TestSubmit_MalformedBody(t *testing.T) {
	for _, body := range []string{`{"name":`, `[1,2,3]`, `null`, ``, `{"name":"Jane"} not json at all`, `{"name":"Jane"}{"name":"Joe"}`} {
		f := newIntakeFixture(t, nil)
		_, err := f.intake.Submit(context.Background(), newSubmitRequest(body, ""))
		assert.ErrorIs(t, err, ErrMalformedRequest, "body %q", body)
	}
}

func TestSubmit_RateLimitedAfterCap(t *testing.T) {
	f := newIntakeFixture(t, nil)

	for i := 0; i < 5; i++ {
		_, err := f.intake.Submit(context.Background(), newSubmitRequest(validBody, ""))
		require.NoError(t, err)
	}

	_, err := f.intake.Submit(context.Background(), newSubmitRequest(validBody, ""))
	var rerr *RateLimitError
	require.ErrorAs(t, err, &rerr)
	assert.False(t, rerr.Result.Allowed)
	assert.Equal(t, 0, rerr.Result.Remaining)
	assert.Equal(t, 1, f.auditor.limited)
	assert.Equal(t, 5, f.repo.Len())
}

func TestSubmit_RepeatedDenialsAuditedOncePerPeriod(t *testing.T) {
	f := newIntakeFixture(t, nil)

	for i := 0; i < 5; i++ {
		_, err := f.intake.Submit(context.Background(), newSubmitRequest(validBody, ""))
		require.NoError(t, err)
	}
	for i := 0; i < 200; i++ {
		_, err := f.intake.Submit(context.Background(), newSubmitRequest(validBody, ""))
		var rerr *RateLimitError
		require.ErrorAs(t, err, &rerr)
	}

	assert.Equal(t, 1, f.auditor.limited)
	assert.Equal(t, 5, f.repo.Len())
}

func TestSubmit_InvalidSubmissionsCountAgainstLimit(t *testing.T) {
	f := newIntakeFixture(t, nil)

	for i := 0; i < 5; i++ {
		_, _ = f.intake.Submit(context.Background(), newSubmitRequest(`{}`, ""))
	}
	_, err := f.intake.Submit(context.Background(), newSubmitRequest(validBody, ""))
	var rerr *RateLimitError
	assert.ErrorAs(t, err, &rerr)
}

func TestSubmit_UnknownClientSharesBucket(t *testing.T) {
	f := newIntakeFixture(t, nil)
	req := newSubmitRequest(validBody, "")
	req.Header.Del("X-Forwarded-For")

	_, err := f.intake.Submit(context.Background(), req)
	require.NoError(t, err)
	stats, ok := f.limiter.Stats("unknown")
	require.True(t, ok)
	assert.Equal(t, 1, stats.Count)
}

func TestSubmit_PersistenceFailure(t *testing.T) {
	f := newIntakeFixture(t, nil)
	f.intake.repo = failingRepo{NewInMemoryRepository()}

	_, err := f.intake.Submit(context.Background(), newSubmitRequest(validBody, ""))
	assert.ErrorIs(t, err, ErrPersistence)
	confirmations, admins := f.notifier.counts()
	assert.Zero(t, confirmations)
	assert.Zero(t, admins)
}

func TestSubmit_NotificationFailuresDoNotFailRequest(t *testing.T) {
	f := newIntakeFixture(t, nil)
	f.notifier.confirmErr = errors.New("smtp down")
	f.queue.err = notify.ErrQueueFull

	result, err := f.intake.Submit(context.Background(), newSubmitRequest(validBody, ""))
	require.NoError(t, err)
	assert.NotNil(t, result.Lead)
	assert.Equal(t, 1, f.repo.Len())
}

func TestSubmit_WithoutQueueStillNotifiesAdmin(t *testing.T) {
	f := newIntakeFixture(t, nil)
	f.intake.queue = nil

	_, err := f.intake.Submit(context.Background(), newSubmitRequest(validBody, ""))
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		_, admins := f.notifier.counts()
		return admins == 1
	}, time.Second, 5*time.Millisecond)
}

func TestSubmit_FalsyHoneypotIsIgnored(t *testing.T) {
	for _, value := range []string{"false", "0", "null"} {
		f := newIntakeFixture(t, nil)
		body := strings.TrimSuffix(validBody, "}") + `,"website":` + value + `}`

		result, err := f.intake.Submit(context.Background(), newSubmitRequest(body, ""))
		require.NoError(t, err, value)
		assert.False(t, result.Honeypot, value)
		assert.Equal(t, 1, f.repo.Len(), value)
		assert.Empty(t, f.auditor.honeypots, value)
	}
}

func TestHoneypotValue(t *testing.T) {
	tests := []struct {
		payload map[string]any
		want    string
		ok      bool
	}{
		{map[string]any{}, "", false},
		{map[string]any{"website": nil}, "", false},
		{map[string]any{"website": ""}, "", false},
		{map[string]any{"website": "x"}, "x", true},
		{map[string]any{"website": float64(1)}, "1", true},
		{map[string]any{"website": "   "}, "", false},
		{map[string]any{"website": false}, "", false},
		{map[string]any{"website": float64(0)}, "", false},
		{map[string]any{"website": true}, "true", true},
		{map[string]any{"website": []any{"a"}}, "[a]", true},
	}
	for _, tt := range tests {
		got, ok := honeypotValue(tt.payload, "website")
		assert.Equal(t, tt.ok, ok)
		assert.Equal(t, tt.want, got)
	}
}
