package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	msgReportAuthDisabled = "Lead report access is not configured"
	msgReportTokenMissing = "Missing report access token"
	msgReportTokenExpired = "Report access token has expired"
	msgReportTokenInvalid = "Invalid report access token"
)

var reportSigningMethods = []string{"HS256", "HS384", "HS512"}

type reportViewerKey struct{}

// ReportViewer identifies the holder of a lead report token.
type ReportViewer struct {
	Subject   string
	ExpiresAt time.Time
}

// ReportAuth guards the lead report with an HMAC-signed bearer token that
// must carry an expiry. An empty secret rejects every request.
func ReportAuth(secret string) func(http.Handler) http.Handler {
	key := []byte(secret)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(key) == 0 {
				writeError(w, http.StatusUnauthorized, msgReportAuthDisabled)
				return
			}
			raw, ok := bearerToken(r)
			if !ok {
				writeError(w, http.StatusUnauthorized, msgReportTokenMissing)
				return
			}

			viewer, err := parseReportToken(raw, key)
			switch {
			case errors.Is(err, jwt.ErrTokenExpired):
				writeError(w, http.StatusUnauthorized, msgReportTokenExpired)
			case err != nil:
				writeError(w, http.StatusUnauthorized, msgReportTokenInvalid)
			default:
				ctx := context.WithValue(r.Context(), reportViewerKey{}, viewer)
				next.ServeHTTP(w, r.WithContext(ctx))
			}
		})
	}
}

// ReportViewerFromContext returns the authenticated report viewer, if any.
func ReportViewerFromContext(ctx context.Context) (ReportViewer, bool) {
	viewer, ok := ctx.Value(reportViewerKey{}).(ReportViewer)
	return viewer, ok
}

func bearerToken(r *http.Request) (string, bool) {
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func parseReportToken(raw string, key []byte) (ReportViewer, error) {
	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return key, nil
	}, jwt.WithValidMethods(reportSigningMethods), jwt.WithExpirationRequired())
	if err != nil {
		return ReportViewer{}, err
	}

	viewer := ReportViewer{Subject: claims.Subject}
	if claims.ExpiresAt != nil {
		viewer.ExpiresAt = claims.ExpiresAt.Time
	}
	return viewer, nil
}
