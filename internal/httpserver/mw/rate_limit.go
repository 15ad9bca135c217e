package mw

import (
	"net/http"
	"strconv"
	"time"

	"github.com/mattelianyc/microdawgs/internal/api"
	"github.com/mattelianyc/microdawgs/internal/httpserver/deps"
	"github.com/mattelianyc/microdawgs/internal/logger"
	"github.com/mattelianyc/microdawgs/internal/utils"
)

// RateLimit applies the global per-client sliding window. The attempt is
// recorded in the window whether or not it is admitted; a limiter backend
// failure surfaces as an internal error, never as a silent pass.
// Per-service budgets are checked separately at dispatch time, after
// routing resolves the target.
func RateLimit(l deps.RateLimiter, trustProxy bool, log logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			clientIP := utils.ClientIP(r, trustProxy)

			res, err := l.CheckClient(r.Context(), clientIP)
			if err != nil {
				log.Error("rate limit check failed", logger.Error(err))
				api.WriteError(w, api.InternalError("rate limiter unavailable", err))
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(res.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))

			if !res.Allowed {
				retry := int(time.Until(res.ResetAt).Seconds())
				if retry < 1 {
					retry = 1
				}
				w.Header().Set("Retry-After", strconv.Itoa(retry))
				log.Debug("rate limit exceeded",
					logger.String("client_ip", clientIP),
					logger.Int("limit", res.Limit))
				api.WriteError(w, api.RateLimitError("rate limit exceeded"))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
