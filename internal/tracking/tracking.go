// Package tracking derives marketing attribution and device metadata from an
// inbound form request.
package tracking

import (
	"context"
	"net"
	"net/http"
	"net/url"
	"strings"

	"github.com/alfredai/landing-leads/pkg/logging"
)

// Device classes produced by DetectDeviceType.
const (
	DeviceMobile  = "mobile"
	DeviceTablet  = "tablet"
	DeviceDesktop = "desktop"
	DeviceUnknown = "unknown"
)

// Data is the per-request tracking snapshot folded into a lead.
type Data struct {
	UTMSource   *string
	UTMMedium   *string
	UTMCampaign *string
	Referrer    *string
	UserAgent   *string
	DeviceType  string
	Country     *string
}

// GeoLocator resolves a client IP to a country name.
type GeoLocator interface {
	Country(ctx context.Context, ip string) (string, error)
}

// Extractor builds Data from requests.
type Extractor struct {
	geo    GeoLocator
	logger *logging.Logger
}

// NewExtractor creates an extractor. A nil geo locator disables country lookup.
func NewExtractor(geo GeoLocator, logger *logging.Logger) *Extractor {
	if logger == nil {
		logger = logging.Default()
	}
	return &Extractor{geo: geo, logger: logger}
}

// Extract gathers UTM parameters, referrer, device class and country. Lookup
// failures are logged and leave Country nil.
func (e *Extractor) Extract(ctx context.Context, r *http.Request) Data {
	utm := r.URL.Query()
	userAgent := optional(r.Header.Get("User-Agent"))

	data := Data{
		UTMSource:   queryValue(utm, "utm_source"),
		UTMMedium:   queryValue(utm, "utm_medium"),
		UTMCampaign: queryValue(utm, "utm_campaign"),
		Referrer:    ExtractReferrer(r),
		UserAgent:   userAgent,
		DeviceType:  DetectDeviceType(r.Header.Get("User-Agent")),
	}

	ip := ClientIP(r)
	if e.geo == nil || IsPrivateIP(ip) {
		return data
	}
	// Forwarding headers are client controlled; only real addresses are
	// sent to the lookup service and used as cache keys.
	ip, ok := CanonicalIP(ip)
	if !ok {
		e.logger.Warn("skipping geolocation for invalid client ip")
		return data
	}
	country, err := e.geo.Country(ctx, ip)
	if err != nil {
		e.logger.Warn("geolocation lookup failed", "error", err, "ip", ip)
		return data
	}
	data.Country = optional(country)
	return data
}

// ClientIP returns the first X-Forwarded-For entry, then X-Real-IP, then
// CF-Connecting-IP. It returns "" when none is present.
func ClientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		return strings.TrimSpace(first)
	}
	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		return realIP
	}
	if cfIP := r.Header.Get("CF-Connecting-IP"); cfIP != "" {
		return cfIP
	}
	return ""
}

// ExtractReferrer returns the referring hostname, or nil for same-site and
// missing referrers. Values that do not parse as absolute URLs are returned
// unchanged.
func ExtractReferrer(r *http.Request) *string {
	referer := r.Header.Get("Referer")
	if referer == "" {
		referer = r.Header.Get("Referrer")
	}
	if referer == "" {
		return nil
	}

	parsed, err := url.Parse(referer)
	if err != nil || parsed.Host == "" {
		return &referer
	}

	host := parsed.Hostname()
	if strings.EqualFold(host, requestHostname(r)) {
		return nil
	}
	return &host
}

// DetectDeviceType classifies a user agent. Tablet rules win over mobile.
func DetectDeviceType(userAgent string) string {
	if userAgent == "" {
		return DeviceUnknown
	}
	ua := strings.ToLower(userAgent)

	if strings.Contains(ua, "ipad") ||
		(strings.Contains(ua, "tablet") && !strings.Contains(ua, "mobile")) ||
		(strings.Contains(ua, "android") && !strings.Contains(ua, "mobile")) {
		return DeviceTablet
	}

	for _, marker := range []string{"mobile", "iphone", "ipod", "android", "webos", "blackberry", "windows phone"} {
		if strings.Contains(ua, marker) {
			return DeviceMobile
		}
	}
	return DeviceDesktop
}

// CanonicalIP parses ip and returns its canonical text form.
func CanonicalIP(ip string) (string, bool) {
	parsed := net.ParseIP(strings.TrimSpace(ip))
	if parsed == nil {
		return "", false
	}
	return parsed.String(), true
}

// IsPrivateIP reports whether ip is empty, loopback or in a private range
// that geolocation cannot resolve.
func IsPrivateIP(ip string) bool {
	if ip == "" || ip == "localhost" {
		return true
	}
	for _, prefix := range []string{"127.", "::1", "192.168.", "10.", "172."} {
		if strings.HasPrefix(ip, prefix) {
			return true
		}
	}
	return false
}

// BuildSource derives the lead source: "utm:<source>", else the referrer
// host, else "direct".
func BuildSource(d Data) string {
	if d.UTMSource != nil && *d.UTMSource != "" {
		return "utm:" + *d.UTMSource
	}
	if d.Referrer != nil && *d.Referrer != "" {
		return *d.Referrer
	}
	return "direct"
}

func requestHostname(r *http.Request) string {
	host := r.Host
	if host == "" && r.URL != nil {
		host = r.URL.Host
	}
	return (&url.URL{Host: host}).Hostname()
}

func queryValue(values url.Values, key string) *string {
	if !values.Has(key) {
		return nil
	}
	v := values.Get(key)
	return &v
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
