package tracking

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/time/rate"
)

var tracer = otel.Tracer("landing.internal.tracking")

const (
	defaultGeoBaseURL   = "https://ipapi.co"
	defaultGeoTimeout   = 3 * time.Second
	geoUserAgent        = "AlfredAI-Landing/1.0"
	maxCountryBodyBytes = 256
)

var (
	// ErrGeoThrottled is returned when the outbound lookup budget is spent.
	ErrGeoThrottled = errors.New("tracking: geolocation budget exhausted")
	// ErrInvalidIP is returned for lookups of values that are not IP addresses.
	ErrInvalidIP = errors.New("tracking: invalid ip address")
)

// GeoObserver receives the outcome of each lookup ("ok", "empty", "error", "throttled").
type GeoObserver interface {
	ObserveGeolocation(status string)
}

// IPAPIClientConfig configures the ipapi.co style lookup client.
type IPAPIClientConfig struct {
	BaseURL   string
	Timeout   time.Duration
	PerMinute int
}

// IPAPIClient resolves countries via GET {base}/{ip}/country_name/.
type IPAPIClient struct {
	baseURL  string
	timeout  time.Duration
	http     *http.Client
	limiter  *rate.Limiter
	observer GeoObserver
}

// NewIPAPIClient creates a client. PerMinute <= 0 disables the budget.
func NewIPAPIClient(cfg IPAPIClientConfig, httpClient *http.Client, observer GeoObserver) *IPAPIClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultGeoBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultGeoTimeout
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	var limiter *rate.Limiter
	if cfg.PerMinute > 0 {
		limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.PerMinute)), cfg.PerMinute)
	}
	return &IPAPIClient{
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		timeout:  cfg.Timeout,
		http:     httpClient,
		limiter:  limiter,
		observer: observer,
	}
}

// Country returns the country name for ip, or "" when the service has no answer.
func (c *IPAPIClient) Country(ctx context.Context, ip string) (string, error) {
	ctx, span := tracer.Start(ctx, "tracking.geolocate")
	defer span.End()

	ip, ok := CanonicalIP(ip)
	if !ok {
		c.observe("error")
		return "", ErrInvalidIP
	}

	if c.limiter != nil && !c.limiter.Allow() {
		c.observe("throttled")
		span.SetAttributes(attribute.Bool("geo.throttled", true))
		return "", ErrGeoThrottled
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	country, err := c.fetch(ctx, ip)
	if err != nil {
		c.observe("error")
		span.RecordError(err)
		span.SetStatus(codes.Error, "lookup failed")
		return "", err
	}
	if country == "" {
		c.observe("empty")
		return "", nil
	}
	c.observe("ok")
	span.SetAttributes(attribute.String("geo.country", country))
	return country, nil
}

func (c *IPAPIClient) fetch(ctx context.Context, ip string) (string, error) {
	endpoint := fmt.Sprintf("%s/%s/country_name/", c.baseURL, url.PathEscape(ip))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("tracking: build geolocation request: %w", err)
	}
	req.Header.Set("User-Agent", geoUserAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("tracking: geolocation request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("tracking: geolocation returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxCountryBodyBytes))
	if err != nil {
		return "", fmt.Errorf("tracking: read geolocation body: %w", err)
	}
	country := strings.TrimSpace(string(body))
	if strings.EqualFold(country, "undefined") {
		return "", nil
	}
	return country, nil
}

func (c *IPAPIClient) observe(status string) {
	if c.observer != nil {
		c.observer.ObserveGeolocation(status)
	}
}
