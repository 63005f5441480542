package middleware

import (
	"net"
	"net/http"
	"strconv"

	pkgerrors "kgraph/pkg/errors"
	"kgraph/pkg/ratelimit"

	"go.uber.org/zap"
)

// RateLimit rejects callers that exceed the limiter with 429. Callers are
// keyed by remote IP; run it after chi's RealIP.
func RateLimit(limiter ratelimit.Limiter, retryAfterSeconds int, errHandler *pkgerrors.ErrorHandler, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := clientIP(r)
			allowed, err := limiter.Allow(r.Context(), key)
			if err != nil {
				// fail open
				logger.Warn("Rate limiter error", zap.String("client", key), zap.Error(err))
			}
			if err == nil && !allowed {
				w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds))
				errHandler.HandleStatus(w, r, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
