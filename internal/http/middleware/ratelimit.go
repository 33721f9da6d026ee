package middleware

import (
	"net"
	"net/http"
	"strconv"

	"github.com/alfredai/landing-leads/internal/ratelimit"
	"github.com/alfredai/landing-leads/internal/tracking"
	"github.com/alfredai/landing-leads/pkg/logging"
)

// RateLimit rejects clients that exceed limiter's sliding window with a 429
// JSON body. Clients are keyed by forwarded IP, then the socket address.
func RateLimit(limiter *ratelimit.Limiter, logger *logging.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := clientKey(r)
			res := limiter.Check(id)

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(res.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(res.ResetAt.UnixMilli(), 10))

			if !res.Allowed {
				logger.RateLimited(id, "path", r.URL.Path)
				writeError(w, http.StatusTooManyRequests, "Too many requests. Please try again later.")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientKey(r *http.Request) string {
	if ip := tracking.ClientIP(r); ip != "" {
		return ip
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	if r.RemoteAddr != "" {
		return r.RemoteAddr
	}
	return "unknown"
}
